// ABOUTME: Backoff policy for service calls
// ABOUTME: Repeats transient failures with doubling delays and stops on permanent ones
package genai

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Backoff describes how often and how patiently a call is repeated
type Backoff struct {
	// Attempts counts the first call; values below 1 mean a single call
	Attempts int
	Base     time.Duration
	Cap      time.Duration
}

func defaultBackoff(retries int) Backoff {
	return Backoff{Attempts: retries + 1, Base: 200 * time.Millisecond, Cap: 5 * time.Second}
}

// wait returns the pause before attempt n+1, doubling from Base up to Cap
func (b Backoff) wait(n int) time.Duration {
	d := b.Base
	for i := 1; i < n && d < b.Cap; i++ {
		d *= 2
	}
	return min(d, b.Cap)
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth repeating; Do returns the unwrapped err
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do calls fn until it succeeds, fails permanently, runs out of attempts
// or ctx ends. The last failure is returned.
func (b Backoff) Do(ctx context.Context, fn func() error) error {
	for n := 1; ; n++ {
		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		switch {
		case errors.As(err, &perm):
			return perm.err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case n >= b.Attempts:
			return err
		}

		timer := time.NewTimer(b.wait(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// transientStatus reports whether a response status may succeed on a later call
func transientStatus(code int) bool {
	switch {
	case code == http.StatusTooManyRequests, code == http.StatusRequestTimeout:
		return true
	case code == http.StatusNotImplemented, code == http.StatusHTTPVersionNotSupported:
		return false
	default:
		return code >= 500
	}
}
