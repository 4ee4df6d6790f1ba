// ABOUTME: Oto-based audio output implementation
// ABOUTME: One persistent oto player streams a sample-accurate timeline of scheduled buffers
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/greetcast/greetcast-go/pkg/audio"
)

// Oto output implementation using oto library.
// oto allows a single context per process, so create one Oto and share it.
type Oto struct {
	otoCtx   *oto.Context
	player   *oto.Player
	timeline *timeline
	format   audio.Format

	mu     sync.Mutex
	volume int
	muted  bool
	closed bool
}

// NewOto opens the system output at the given format and starts the
// persistent stream
func NewOto(format audio.Format) (*Oto, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid output format: %w", err)
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
	}

	otoCtx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	tl := newTimeline(format)
	player := otoCtx.NewPlayer(tl)
	player.Play()

	log.Printf("Audio output initialized: %dHz, %d channels", format.SampleRate, format.Channels)

	return &Oto{
		otoCtx:   otoCtx,
		player:   player,
		timeline: tl,
		format:   format,
		volume:   100,
	}, nil
}

// Now returns the stream position. It runs ahead of what is audible by
// oto's internal buffer.
func (o *Oto) Now() time.Duration {
	return o.timeline.now()
}

// Format returns the device format
func (o *Oto) Format() audio.Format {
	return o.format
}

// Start places buf on the stream at device time at
func (o *Oto) Start(buf audio.Buffer, at time.Duration, done func()) (Voice, error) {
	if buf.Format != o.format {
		return nil, fmt.Errorf("buffer format %dHz/%dch does not match device %dHz/%dch",
			buf.Format.SampleRate, buf.Format.Channels, o.format.SampleRate, o.format.Channels)
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil, ErrClosed
	}

	return &otoVoice{voice: o.timeline.place(buf, at, done)}, nil
}

// Close stops the stream and suspends the context
func (o *Oto) Close() error {
	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return nil
	}
	o.closed = true
	o.mu.Unlock()

	if err := o.player.Close(); err != nil {
		log.Printf("Failed to close oto player: %v", err)
	}
	if err := o.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	return nil
}

// SetVolume sets the volume (0-100)
func (o *Oto) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	o.mu.Lock()
	o.volume = volume
	o.timeline.setGain(volumeMultiplier(o.volume, o.muted))
	o.mu.Unlock()

	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (o *Oto) SetMuted(muted bool) {
	o.mu.Lock()
	o.muted = muted
	o.timeline.setGain(volumeMultiplier(o.volume, o.muted))
	o.mu.Unlock()

	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (o *Oto) GetVolume() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.volume
}

// IsMuted returns mute state
func (o *Oto) IsMuted() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.muted
}

type otoVoice struct {
	voice *timelineVoice
}

// Stop drops the voice's unrendered samples
func (v *otoVoice) Stop() {
	v.voice.tl.remove(v.voice)
}

// volumeMultiplier calculates volume multiplier
func volumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}
