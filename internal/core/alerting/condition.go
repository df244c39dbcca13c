package alerting

import (
	"fmt"
	"math"

	"github.com/pulsehq/insight-engine/internal/database/models"
)

// Epsilon absorbs floating-point noise in equals / not_equals comparisons.
const Epsilon = 1e-9

// EvaluateCondition decides whether a condition holds for the given current
// and baseline values. Pure; it never fetches baselines itself.
//
// With a basis other than current, the evaluated value is the ratio of
// current to baseline, compared against the thresholds as configured. A
// malformed condition (missing second threshold, zero baseline) returns
// false with a non-nil error; callers log it as a configuration problem and
// move on.
func EvaluateCondition(cond models.Condition, current, baseline float64) (bool, error) {
	value := current
	if cond.Basis == models.BasisPrevious || cond.Basis == models.BasisLastYear {
		if baseline == 0 {
			return false, fmt.Errorf("condition basis %s requires a non-zero baseline", cond.Basis)
		}
		value = current / baseline
	}

	switch cond.Operator {
	case models.OperatorGreaterThan:
		return value > cond.Threshold, nil
	case models.OperatorLessThan:
		return value < cond.Threshold, nil
	case models.OperatorEquals:
		return math.Abs(value-cond.Threshold) <= Epsilon, nil
	case models.OperatorNotEquals:
		return math.Abs(value-cond.Threshold) > Epsilon, nil
	case models.OperatorBetween, models.OperatorOutsideRange:
		if cond.UpperThreshold == nil {
			return false, fmt.Errorf("operator %s requires a second threshold", cond.Operator)
		}
		lo, hi := cond.Threshold, *cond.UpperThreshold
		if hi < lo {
			lo, hi = hi, lo
		}
		inside := value >= lo && value <= hi
		if cond.Operator == models.OperatorBetween {
			return inside, nil
		}
		return !inside, nil
	default:
		return false, fmt.Errorf("unknown operator %q", cond.Operator)
	}
}

// NeedsBaseline reports whether the condition's basis requires fetching a
// baseline value before evaluation.
func NeedsBaseline(cond models.Condition) bool {
	return cond.Basis == models.BasisPrevious || cond.Basis == models.BasisLastYear
}
