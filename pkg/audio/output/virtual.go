// ABOUTME: Virtual audio output driven by a software clock
// ABOUTME: Used headless and in tests; records every scheduled start
package output

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio"
)

// Virtual is a silent Device whose clock only moves through Advance or Run
type Virtual struct {
	format audio.Format

	mu     sync.Mutex
	now    time.Duration
	voices map[*virtualVoice]struct{}
	starts []time.Duration
	closed bool
}

// NewVirtual creates a virtual device at time zero
func NewVirtual(format audio.Format) *Virtual {
	return &Virtual{
		format: format,
		voices: make(map[*virtualVoice]struct{}),
	}
}

// Now returns the virtual clock
func (v *Virtual) Now() time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

// Format returns the device format
func (v *Virtual) Format() audio.Format {
	return v.format
}

// Start records a voice spanning [at, at+duration)
func (v *Virtual) Start(buf audio.Buffer, at time.Duration, done func()) (Voice, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.closed {
		return nil, ErrClosed
	}

	voice := &virtualVoice{device: v, start: at, end: at + buf.Duration(), done: done}
	v.voices[voice] = struct{}{}
	v.starts = append(v.starts, at)
	return voice, nil
}

// Advance moves the clock forward and completes voices that have ended
func (v *Virtual) Advance(d time.Duration) {
	v.mu.Lock()
	v.now += d
	var finished []*virtualVoice
	for voice := range v.voices {
		if voice.end <= v.now {
			finished = append(finished, voice)
			delete(v.voices, voice)
		}
	}
	v.mu.Unlock()

	sort.Slice(finished, func(i, j int) bool { return finished[i].end < finished[j].end })
	for _, voice := range finished {
		if voice.done != nil {
			voice.done()
		}
	}
}

// Run advances the clock in real time until ctx is cancelled
func (v *Virtual) Run(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			v.Advance(now.Sub(last))
			last = now
		}
	}
}

// Starts returns the start time of every voice in scheduling order
func (v *Virtual) Starts() []time.Duration {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]time.Duration, len(v.starts))
	copy(out, v.starts)
	return out
}

// Playing returns the number of voices not yet finished or stopped
func (v *Virtual) Playing() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.voices)
}

// Close drops all voices
func (v *Virtual) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.closed = true
	v.voices = make(map[*virtualVoice]struct{})
	return nil
}

type virtualVoice struct {
	device *Virtual
	start  time.Duration
	end    time.Duration
	done   func()
}

func (vv *virtualVoice) Stop() {
	vv.device.mu.Lock()
	delete(vv.device.voices, vv)
	vv.device.mu.Unlock()
}
