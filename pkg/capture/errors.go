// ABOUTME: Capture error types
// ABOUTME: Distinguishes device acquisition failures from streaming session failures
package capture

import "errors"

var (
	// ErrCaptureUnavailable matches any CaptureUnavailableError
	ErrCaptureUnavailable = errors.New("capture unavailable")

	// ErrStreamingSession matches any StreamingSessionError
	ErrStreamingSession = errors.New("streaming session failed")

	// ErrAlreadyRunning is returned by Start on a running pipeline
	ErrAlreadyRunning = errors.New("capture already running")
)

// CaptureUnavailableError reports that the capture device could not be
// acquired, including permission denial
type CaptureUnavailableError struct {
	Err error
}

func (e *CaptureUnavailableError) Error() string {
	return "capture unavailable: " + e.Err.Error()
}

func (e *CaptureUnavailableError) Unwrap() error { return e.Err }

func (e *CaptureUnavailableError) Is(target error) bool { return target == ErrCaptureUnavailable }

// StreamingSessionError reports that the attached sink failed mid-stream
type StreamingSessionError struct {
	Err error
}

func (e *StreamingSessionError) Error() string {
	return "streaming session failed: " + e.Err.Error()
}

func (e *StreamingSessionError) Unwrap() error { return e.Err }

func (e *StreamingSessionError) Is(target error) bool { return target == ErrStreamingSession }
