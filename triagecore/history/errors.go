package history

import "fmt"

// PersistenceError describes malformed or unreadable ledger content. It is
// recovered inside the store (by reinitializing the ledger) and logged, never
// returned to callers of Load or Count.
type PersistenceError struct {
	Path    string
	Message string
	Cause   error
}

func (e *PersistenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("ledger %s: %s: %v", e.Path, e.Message, e.Cause)
	}
	return fmt.Sprintf("ledger %s: %s", e.Path, e.Message)
}

func (e *PersistenceError) Unwrap() error {
	return e.Cause
}
