package transform

import (
	"errors"
	"fmt"
)

// PlanError reports that a requested rewrite cannot be carried out on the
// given tree, such as a merge path that skips an engine the tree uses.
type PlanError struct {
	Message string
}

func (e *PlanError) Error() string {
	return "plan error: " + e.Message
}

func newPlanError(format string, args ...any) error {
	return &PlanError{Message: fmt.Sprintf(format, args...)}
}

// IsPlanError reports whether err wraps a PlanError.
func IsPlanError(err error) bool {
	var pe *PlanError
	return errors.As(err, &pe)
}
