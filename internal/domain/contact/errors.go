package contact

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound = errors.New("contact not found")
	// ErrPreconditionRequired means a conditional write arrived without a
	// version token. The caller must read the contact first.
	ErrPreconditionRequired = errors.New("version precondition required")
)

// RevisionMismatchError means the supplied revision is stale. CurrentRevision
// is the revision now stored, so the caller can hand the fresh token back.
type RevisionMismatchError struct {
	ID              string
	CurrentRevision int64
}

func (e *RevisionMismatchError) Error() string {
	return fmt.Sprintf("contact %s revision mismatch, current revision is %d", e.ID, e.CurrentRevision)
}

// DependentsError rejects a delete because the contact still has children.
// Details and Suggestions are machine-readable remediation info for the UI.
type DependentsError struct {
	ID          string
	Message     string
	Details     map[string]any
	Suggestions []string
}

func (e *DependentsError) Error() string {
	return e.Message
}
