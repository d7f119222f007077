// Package resilience classifies errors from external services and retries the
// transient ones with exponential backoff.
package resilience

import (
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// TransientError wraps an error that is safe to retry (e.g., 5xx, network timeout).
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitError signals that a service refused a request because of rate
// limiting. Quota is set when the service reports its daily allowance as
// exhausted, which warrants a long pause instead of short backoff.
type RateLimitError struct {
	Err   error
	Quota bool
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError wraps err as a rate-limit signal.
func NewRateLimitError(err error, quota bool) *RateLimitError {
	return &RateLimitError{Err: err, Quota: quota}
}

// IsRateLimited reports whether err carries a RateLimitError.
func IsRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsQuotaExhausted reports whether err carries a RateLimitError for an exhausted quota.
func IsQuotaExhausted(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl) && rl.Quota
}

// IsTransient returns true if the error is a TransientError or RateLimitError,
// or if it matches common transient network failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if IsRateLimited(err) {
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

	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"unexpected eof",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout,
		529: // overloaded
		return true
	default:
		return false
	}
}

// FromStatus classifies an HTTP failure. 429 and 529 become rate-limit errors
// (quota when the message mentions a quota or daily limit), other transient statuses become
// TransientErrors, and everything else is returned unchanged.
func FromStatus(err error, statusCode int) error {
	if err == nil {
		return nil
	}
	switch {
	case statusCode == http.StatusTooManyRequests || statusCode == 529:
		msg := strings.ToLower(err.Error())
		quota := strings.Contains(msg, "quota") || strings.Contains(msg, "daily")
		return NewRateLimitError(err, quota)
	case IsTransientHTTPStatus(statusCode):
		return NewTransientError(err, statusCode)
	default:
		return err
	}
}
