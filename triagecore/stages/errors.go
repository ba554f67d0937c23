package stages

import "fmt"

// ValidationError reports a classification result outside the accepted
// vocabulary. It is always recovered locally via a safe default and never
// aborts a run; it exists so the recovery path can log a typed cause.
type ValidationError struct {
	Field string
	Value string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s classification: %q", e.Field, e.Value)
}
