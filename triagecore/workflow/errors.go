package workflow

import "fmt"

// StageError reports a stage failure. It wraps the underlying cause so
// callers can inspect it with errors.As / errors.Is.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// GraphError reports an invalid stage graph (duplicate names, unknown
// dependencies, or cycles). Raised at construction time, never during a run.
type GraphError struct {
	Message string
}

func (e *GraphError) Error() string {
	return fmt.Sprintf("invalid stage graph: %s", e.Message)
}
