package analytics

import (
	"fmt"

	"github.com/sells-group/pressure-cli/internal/model"
)

// MissingInputError reports that a stage could not run because a required
// table or column was absent. The stage aborts; other stages continue.
type MissingInputError struct {
	Stage string
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("%s: missing input %s", e.Stage, e.Input)
}

// ZeroDenominatorError reports a district excluded from a stage because a
// ratio denominator was zero.
type ZeroDenominatorError struct {
	Key   model.DistrictKey
	Field string
}

func (e *ZeroDenominatorError) Error() string {
	return fmt.Sprintf("%s: %s is zero", e.Key, e.Field)
}

// InsufficientDataWarning reports a fallback value applied to a district
// whose series was too short or flat to compute a statistic.
type InsufficientDataWarning struct {
	Key    model.DistrictKey
	Reason string
}

func (e *InsufficientDataWarning) Error() string {
	return fmt.Sprintf("%s: insufficient data: %s", e.Key, e.Reason)
}

// Output is a stage's table plus the districts it excluded or patched.
type Output[T any] struct {
	Rows     []T
	Excluded []*ZeroDenominatorError
	Warnings []*InsufficientDataWarning
}
