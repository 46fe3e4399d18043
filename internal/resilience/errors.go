package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
	"time"
)

// TransientError marks an error safe to retry through the task backoff path
// (timeouts, 5xx, connection drops).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// NewTransientError wraps err as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitError signals the source's rate window is exhausted. It does not
// count against a task's attempt ceiling; workers pause the channel until
// RetryAfter (when the source reported one) or the limiter's next window.
type RateLimitError struct {
	Source     string
	RetryAfter time.Duration
	Err        error
}

func (e *RateLimitError) Error() string {
	if e.Err != nil {
		return "rate limited by " + e.Source + ": " + e.Err.Error()
	}
	return "rate limited by " + e.Source
}

func (e *RateLimitError) Unwrap() error { return e.Err }

// AuthError is fatal for a source: the credential is missing, expired, or
// rejected. The channel is disabled for the rest of the run; other channels
// continue.
type AuthError struct {
	Source string
	Err    error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "authentication failed for " + e.Source + ": " + e.Err.Error()
	}
	return "authentication failed for " + e.Source
}

func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError marks a single malformed item (missing identity field,
// unparseable listing). The item is skipped and logged; page processing
// continues.
type ValidationError struct {
	Item string
	Err  error
}

func (e *ValidationError) Error() string {
	return "invalid item " + e.Item + ": " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ErrDuplicateActiveTask is returned by the queue when a pending or
// processing task already exists for a (person, channel) pair. Callers treat
// it as a successful no-op, never surface it to the user.
var ErrDuplicateActiveTask = errors.New("duplicate active task")

// ErrLeaseLost is returned when a fenced task write carries a lease token
// that no longer owns the task (the lease expired and the task was
// reclaimed). The caller's result must be discarded.
var ErrLeaseLost = errors.New("task lease lost")

// IsRateLimit reports whether the error chain contains a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsAuth reports whether the error chain contains an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsValidation reports whether the error chain contains a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransient reports whether the error is retryable: an explicit
// TransientError, a network timeout, or a known connection-level failure.
// Rate limit, auth, and validation errors are not transient; each has its
// own handling path.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsRateLimit(err) || IsAuth(err) || IsValidation(err) {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// Wrapped client errors that lost their type on the way up.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ClassifyHTTPStatus maps an HTTP response status to the error taxonomy for
// a given source. 429 becomes a RateLimitError, 401/403 an AuthError, 408
// and 5xx a TransientError; anything else passes through unchanged.
func ClassifyHTTPStatus(source string, statusCode int, err error) error {
	switch {
	case statusCode == 429:
		return &RateLimitError{Source: source, Err: err}
	case statusCode == 401 || statusCode == 403:
		return &AuthError{Source: source, Err: err}
	case statusCode == 408 || statusCode >= 500:
		return NewTransientError(err, statusCode)
	default:
		return err
	}
}
