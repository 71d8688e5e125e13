package resilience

import (
	"context"
	"errors"
	"strings"
)

// ErrDeadline is returned by CallWithDeadline when the wrapped call does not
// finish inside its budget. A timed-out lookup is an attempt failure, not
// grounds for a session restart.
var ErrDeadline = errors.New("resilience: call deadline exceeded")

// RestartError wraps a failure that calls for a session restart before the
// single permitted retry.
type RestartError struct {
	Err error
}

func (e *RestartError) Error() string {
	return e.Err.Error()
}

func (e *RestartError) Unwrap() error {
	return e.Err
}

// NewRestartError marks err as restart-worthy.
func NewRestartError(err error) *RestartError {
	return &RestartError{Err: err}
}

// restartPatterns match collaborator failure text that indicates a wedged
// automation session rather than a bad input: the portal's input control has
// gone missing, the browser aborted internally, or the page bounced us back
// to a sign-in form.
var restartPatterns = []string{
	"could not find",
	"waiting for selector",
	"input control",
	"net::err_aborted",
	"target closed",
	"target crashed",
	"browser closed",
	"session expired",
	"session lost",
	"not logged in",
}

// IsRestartable reports whether the error justifies a close-reinit-retry
// cycle. Deadline expiry and context cancellation never do.
func IsRestartable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrDeadline) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var re *RestartError
	if errors.As(err, &re) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, p := range restartPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}
