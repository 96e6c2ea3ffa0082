package client

import (
	"errors"
	"fmt"
)

// ErrPreconditionRequired reports HTTP 428: a conditional write was attempted
// without ever having fetched the contact's current version in this session.
// Recovery: Get first, then retry.
var ErrPreconditionRequired = errors.New("precondition required: fetch the contact before writing")

// ConcurrencyConflictError reports HTTP 412: the cached version token is
// stale relative to the server. CurrentToken carries the server's current
// version when the response included one; the client has already cached it,
// so a user-triggered retry carries the fresh precondition automatically.
type ConcurrencyConflictError struct {
	ID           string
	CurrentToken string
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("contact %s was changed elsewhere", e.ID)
}

// DeletionBlockedError reports HTTP 409: the server refused the delete for
// business reasons. Fields mirror the response body verbatim so the UI can
// explain why, not just that, deletion failed.
type DeletionBlockedError struct {
	Message     string         `json:"message"`
	Details     map[string]any `json:"details"`
	Suggestions []string       `json:"suggestions"`
}

func (e *DeletionBlockedError) Error() string {
	return e.Message
}

// HTTPError is any other non-2xx response, propagated with its status code.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.StatusCode)
}
