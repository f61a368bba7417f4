package resilience

import (
	"errors"
	"io/fs"
	"net"
	"strings"
	"syscall"
)

// TransientError marks an error as safe to retry.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// Transient wraps err as retryable. A nil err stays nil.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

// IsTransient reports whether err (or any error in its chain) is marked
// transient or looks like a passing network failure.
func IsTransient(err error) bool {
	if err == nil {
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

	// pgx wraps dial failures in its own types; fall back to the text.
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection reset by peer",
		"connection refused",
		"broken pipe",
		"i/o timeout",
		"the database system is starting up",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsPartialFile reports whether err is what a reader typically sees while
// another process is still writing or replacing the file: it is missing
// for a moment, truncated, or not yet a valid archive.
func IsPartialFile(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrNotExist) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, p := range []string{
		"unexpected eof",
		"not a valid zip file",
		"zip: not a valid",
	} {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}
