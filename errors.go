package switchboard

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyQuestion is returned by Ask/Submit when the question text is
	// empty or blank. No request state is created in that case.
	ErrEmptyQuestion = errors.New("switchboard: question is required")

	// ErrUnknownRequest is the soft failure for resolve/cancel calls that
	// reference an identifier that is not currently open. The original asker
	// already received, or will receive, its outcome through its own handle,
	// so callers should log this and move on.
	ErrUnknownRequest = errors.New("switchboard: unknown or already closed request")
)

// Well-known cancellation reasons. Cancel accepts any reason string; these
// are the ones the broker itself produces.
const (
	ReasonShutdown  = "shutdown"
	ReasonTimeout   = "timeout"
	ReasonAbandoned = "abandoned"
)

// CancelledError is the terminal outcome an asker observes when its request
// was cancelled instead of answered. Callers must branch on it rather than
// treat it as an answer.
type CancelledError struct {
	Reason string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("switchboard: request cancelled: %s", e.Reason)
}

// IsCancelled reports whether err is a cancellation outcome and, if so,
// returns the reason it carries.
func IsCancelled(err error) (string, bool) {
	var cerr *CancelledError
	if errors.As(err, &cerr) {
		return cerr.Reason, true
	}
	return "", false
}
