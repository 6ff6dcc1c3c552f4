package briteverify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrMissingAPIKey is returned by New when the key is blank.
	ErrMissingAPIKey = &ValidationError{Field: "api_key", Reason: "api key is required"}
	// ErrInvalidAPIKey is returned by New when the key cannot be sent as a header.
	ErrInvalidAPIKey = &ValidationError{Field: "api_key", Reason: "api key contains control characters"}
	// ErrUnauthorized matches any *HTTPError with status 401.
	ErrUnauthorized = errors.New("briteverify: unauthorized")
	// ErrMissingPageCount is returned when a complete list reports no page count.
	ErrMissingPageCount = errors.New("briteverify: list has no page count")
)

// ValidationError reports input rejected before any request was sent.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	msg := "briteverify: invalid " + e.Field + ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

// HTTPError is a non-2xx response. Remote carries the API's error payload when
// it returned one; Body is a short summary of the response body otherwise.
type HTTPError struct {
	Operation  string
	StatusCode int
	Remote     *ListError
	Body       string
}

func (e *HTTPError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "briteverify: %s: http %d", e.Operation, e.StatusCode)
	if text := http.StatusText(e.StatusCode); text != "" {
		b.WriteString(" " + text)
	}
	switch {
	case e.Remote != nil && e.Remote.Message != "":
		fmt.Fprintf(&b, ": %s", e.Remote.Message)
		if e.Remote.Status != "" {
			fmt.Fprintf(&b, " (%s)", e.Remote.Status)
		}
	case e.Body != "":
		fmt.Fprintf(&b, ": %s", e.Body)
	}
	return b.String()
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *HTTPError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// NotFoundError reports a list the API does not know.
type NotFoundError struct {
	JobID  string
	Remote *ListError
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("briteverify: list %q not found", e.JobID)
	if e.Remote != nil && e.Remote.Message != "" {
		msg += ": " + e.Remote.Message
	}
	return msg
}

// StateError reports an operation attempted on a list in the wrong phase.
type StateError struct {
	JobID     string
	State     ListState
	Phase     JobPhase
	Operation string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("briteverify: cannot %s list %q while %s (state %s)", e.Operation, e.JobID, e.Phase, e.State)
}

// RemoteJobError reports a list that ended in an error state.
type RemoteJobError struct {
	JobID  string
	State  ListState
	Errors []ListError
}

func (e *RemoteJobError) Error() string {
	msg := fmt.Sprintf("briteverify: list %q failed with state %s", e.JobID, e.State)
	if len(e.Errors) > 0 {
		parts := make([]string, 0, len(e.Errors))
		for _, le := range e.Errors {
			parts = append(parts, le.String())
		}
		msg += ": " + strings.Join(parts, "; ")
	}
	return msg
}

// TimeoutError reports a poll deadline that passed before the list finished.
// The list keeps running remotely; JobID can be polled again later.
type TimeoutError struct {
	JobID     string
	Timeout   time.Duration
	LastState ListState
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("briteverify: list %q not finished after %s (last state %s)", e.JobID, e.Timeout, e.LastState)
}

// TransportError wraps a failure below HTTP (DNS, TLS, connection reset).
type TransportError struct {
	Operation string
	Err       error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("briteverify: %s: %v", e.Operation, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// MismatchedResponseError reports a single verification whose response lacks
// the requested sub-result.
type MismatchedResponseError struct {
	Want   string
	Result *VerificationResult
}

func (e *MismatchedResponseError) Error() string {
	return fmt.Sprintf("briteverify: response has no %s result", e.Want)
}
