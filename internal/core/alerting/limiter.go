package alerting

import (
	"sync"
	"time"
)

type limiterEntry struct {
	mu        sync.Mutex
	firings   []time.Time // admitted firings within the trailing day, pruned on read
	lastFired time.Time
}

// Limiter tracks per-rule firing counters over true trailing hour/day
// windows plus a cooldown. One entry per rule, each with its own lock, so
// concurrent evaluation of one rule never blocks another.
type Limiter struct {
	mu      sync.RWMutex
	entries map[string]*limiterEntry
}

// NewLimiter creates an empty limiter.
func NewLimiter() *Limiter {
	return &Limiter{entries: make(map[string]*limiterEntry)}
}

// Seed primes a rule's cooldown clock from persisted state, so a restart
// does not forget a recent firing.
func (l *Limiter) Seed(ruleID string, lastFired time.Time) {
	entry := l.entry(ruleID)
	entry.mu.Lock()
	if lastFired.After(entry.lastFired) {
		entry.lastFired = lastFired
	}
	entry.mu.Unlock()
}

// Admit decides whether a new firing of the rule is allowed at now.
// Admission requires all of: trailing-hour count under maxPerHour,
// trailing-day count under maxPerDay, and cooldown elapsed since the last
// admitted firing. On admission both counters and the cooldown clock update
// atomically; on denial no state changes.
func (l *Limiter) Admit(ruleID string, maxPerHour, maxPerDay int, cooldown time.Duration, now time.Time) bool {
	entry := l.entry(ruleID)

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Prune everything older than the day window.
	dayCutoff := now.Add(-24 * time.Hour)
	kept := entry.firings[:0]
	for _, t := range entry.firings {
		if t.After(dayCutoff) {
			kept = append(kept, t)
		}
	}
	entry.firings = kept

	hourCutoff := now.Add(-time.Hour)
	hourCount := 0
	for _, t := range entry.firings {
		if t.After(hourCutoff) {
			hourCount++
		}
	}

	if maxPerHour > 0 && hourCount >= maxPerHour {
		return false
	}
	if maxPerDay > 0 && len(entry.firings) >= maxPerDay {
		return false
	}
	if cooldown > 0 && !entry.lastFired.IsZero() && now.Sub(entry.lastFired) < cooldown {
		return false
	}

	entry.firings = append(entry.firings, now)
	entry.lastFired = now
	return true
}

func (l *Limiter) entry(ruleID string) *limiterEntry {
	l.mu.RLock()
	entry, ok := l.entries[ruleID]
	l.mu.RUnlock()
	if ok {
		return entry
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if entry, ok = l.entries[ruleID]; ok {
		return entry
	}
	entry = &limiterEntry{}
	l.entries[ruleID] = entry
	return entry
}
