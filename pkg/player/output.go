// ABOUTME: Process-wide audio output context
// ABOUTME: Opens the device on first use and owns its scheduler
package player

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/output"
)

// Opener creates the output device
type Opener func() (output.Device, error)

// Output manages the output device and its playback cursor
type Output struct {
	open  Opener
	hooks Hooks

	mu        sync.Mutex
	device    output.Device
	scheduler *Scheduler
	closed    bool
}

// NewOutput creates an output context; the device is opened lazily
func NewOutput(open Opener, hooks Hooks) *Output {
	return &Output{open: open, hooks: hooks}
}

// Enqueue schedules buf after everything already scheduled
func (o *Output) Enqueue(buf audio.Buffer) (Handle, error) {
	s, err := o.ensure()
	if err != nil {
		return Handle{}, err
	}
	return s.Enqueue(buf)
}

// StopAll halts all scheduled audio; a never-opened output has nothing to stop
func (o *Output) StopAll() {
	o.mu.Lock()
	s := o.scheduler
	o.mu.Unlock()

	if s != nil {
		s.StopAll()
	}
}

// Now returns the device clock, opening the device if needed
func (o *Output) Now() (time.Duration, error) {
	s, err := o.ensure()
	if err != nil {
		return 0, err
	}
	return s.device.Now(), nil
}

// Format returns the device format, opening the device if needed
func (o *Output) Format() (audio.Format, error) {
	s, err := o.ensure()
	if err != nil {
		return audio.Format{}, err
	}
	return s.device.Format(), nil
}

// Active returns the number of scheduled buffers not yet finished
func (o *Output) Active() int {
	o.mu.Lock()
	s := o.scheduler
	o.mu.Unlock()

	if s == nil {
		return 0
	}
	return s.Active()
}

// Stats returns scheduler statistics
func (o *Output) Stats() SchedulerStats {
	o.mu.Lock()
	s := o.scheduler
	o.mu.Unlock()

	if s == nil {
		return SchedulerStats{}
	}
	return s.Stats()
}

// Close stops playback and releases the device
func (o *Output) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.closed = true
	if o.device == nil {
		return nil
	}

	o.scheduler.StopAll()
	err := o.device.Close()
	o.device = nil
	o.scheduler = nil
	return err
}

func (o *Output) ensure() (*Scheduler, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, output.ErrClosed
	}
	if o.scheduler != nil {
		return o.scheduler, nil
	}

	device, err := o.open()
	if err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}

	format := device.Format()
	log.Printf("Audio output ready: %dHz, %d channels", format.SampleRate, format.Channels)

	o.device = device
	o.scheduler = NewScheduler(device, o.hooks)
	return o.scheduler, nil
}
