// ABOUTME: Audio output device interface definition
// ABOUTME: Devices expose a monotonic clock and start buffers at clock times
package output

import (
	"errors"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio"
)

// ErrClosed is returned when starting a buffer on a closed device
var ErrClosed = errors.New("output device closed")

// Device represents an audio output device with its own clock
type Device interface {
	// Now returns the device clock, monotonic from device creation
	Now() time.Duration

	// Format returns the format buffers must be in
	Format() audio.Format

	// Start plays buf beginning at device time at. done runs once when the
	// buffer finishes naturally; it does not run for stopped voices.
	Start(buf audio.Buffer, at time.Duration, done func()) (Voice, error)

	// Close releases output resources
	Close() error
}

// Voice is one scheduled buffer on a device
type Voice interface {
	// Stop halts the voice; stopping a finished voice is a no-op
	Stop()
}
