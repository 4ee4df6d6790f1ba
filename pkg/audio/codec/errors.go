// ABOUTME: Codec error types
// ABOUTME: Malformed text and mis-sized PCM payloads
package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedEncoding matches any MalformedEncodingError
	ErrMalformedEncoding = errors.New("malformed encoding")

	// ErrBufferSizeMismatch matches any BufferSizeMismatchError
	ErrBufferSizeMismatch = errors.New("buffer size mismatch")
)

// MalformedEncodingError is returned when text is not valid base64
type MalformedEncodingError struct {
	Err error
}

func (e *MalformedEncodingError) Error() string {
	return "malformed encoding: " + e.Err.Error()
}

func (e *MalformedEncodingError) Is(target error) bool {
	return target == ErrMalformedEncoding
}

func (e *MalformedEncodingError) Unwrap() error {
	return e.Err
}

// BufferSizeMismatchError is returned when a PCM16 payload does not split
// evenly into frames
type BufferSizeMismatchError struct {
	Length   int
	Channels int
}

func (e *BufferSizeMismatchError) Error() string {
	return fmt.Sprintf("buffer size mismatch: %d bytes is not a multiple of %d", e.Length, 2*e.Channels)
}

func (e *BufferSizeMismatchError) Is(target error) bool {
	return target == ErrBufferSizeMismatch
}
