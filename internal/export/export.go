// Package export renders a computed report's metric snapshot into byte
// artifacts on disk. The engine only asks "render this metric set in format
// X" and records the resulting path and size.
package export

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

// Renderer turns a report snapshot into one artifact.
type Renderer interface {
	Format() string
	Render(ctx context.Context, report *models.GeneratedReport, template *models.ReportTemplate) (path string, size int64, err error)
}

// Registry holds the available renderers keyed by format.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	logger    *logrus.Logger
}

// NewRegistry creates an empty renderer registry.
func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		renderers: make(map[string]Renderer),
		logger:    logger,
	}
}

// Register adds a renderer, replacing any previous one for the same format.
func (r *Registry) Register(renderer Renderer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.renderers[renderer.Format()] = renderer
}

// Formats lists the registered formats.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	formats := make([]string, 0, len(r.renderers))
	for format := range r.renderers {
		formats = append(formats, format)
	}
	return formats
}

// Render produces the artifact for one requested format.
func (r *Registry) Render(ctx context.Context, format string, report *models.GeneratedReport, template *models.ReportTemplate) (string, int64, error) {
	r.mu.RLock()
	renderer, ok := r.renderers[format]
	r.mu.RUnlock()
	if !ok {
		return "", 0, fmt.Errorf("no renderer registered for format %q", format)
	}
	return renderer.Render(ctx, report, template)
}
