// ABOUTME: Cursor-based playback scheduler
// ABOUTME: Starts each buffer where the previous one ends and tracks active voices
package player

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/output"
	"github.com/greetcast/greetcast-go/pkg/audio/resample"
)

// Handle identifies a scheduled buffer
type Handle struct {
	ID      uint64
	StartAt time.Duration
	EndAt   time.Duration
}

// SchedulerStats tracks scheduler metrics
type SchedulerStats struct {
	Enqueued  int64
	Completed int64
	Stopped   int64
	Failed    int64
}

// Hooks are optional callbacks for observing the scheduler
type Hooks struct {
	OnEnqueue func(Handle)
	OnStopAll func(stopped int)
}

// Scheduler manages the playback cursor and the set of active voices
type Scheduler struct {
	device output.Device
	hooks  Hooks

	mu     sync.Mutex
	cursor time.Duration
	nextID uint64
	active map[uint64]output.Voice
	stats  SchedulerStats
}

// NewScheduler creates a scheduler for device with its cursor at zero
func NewScheduler(device output.Device, hooks Hooks) *Scheduler {
	return &Scheduler{
		device: device,
		hooks:  hooks,
		active: make(map[uint64]output.Voice),
	}
}

// Enqueue schedules buf to start at max(cursor, now) and advances the
// cursor past it
func (s *Scheduler) Enqueue(buf audio.Buffer) (Handle, error) {
	buf, err := conform(buf, s.device.Format())
	if err != nil {
		return Handle{}, err
	}

	s.mu.Lock()

	startAt := s.cursor
	if now := s.device.Now(); now > startAt {
		startAt = now
	}

	s.nextID++
	handle := Handle{
		ID:      s.nextID,
		StartAt: startAt,
		EndAt:   startAt + buf.Duration(),
	}

	voice, err := s.device.Start(buf, startAt, func() { s.complete(handle.ID) })
	if err != nil {
		s.stats.Failed++
		s.mu.Unlock()
		return Handle{}, fmt.Errorf("failed to start buffer: %w", err)
	}

	s.cursor = handle.EndAt
	s.active[handle.ID] = voice
	s.stats.Enqueued++

	if s.stats.Enqueued <= 3 {
		log.Printf("Scheduled buffer #%d: start=%v duration=%v", handle.ID, startAt, buf.Duration())
	}
	s.mu.Unlock()

	if s.hooks.OnEnqueue != nil {
		s.hooks.OnEnqueue(handle)
	}

	return handle, nil
}

// StopAll halts every active voice and empties the active set.
// The cursor is left alone.
func (s *Scheduler) StopAll() {
	s.mu.Lock()
	stopped := len(s.active)
	for id, voice := range s.active {
		voice.Stop()
		delete(s.active, id)
	}
	s.stats.Stopped += int64(stopped)
	s.mu.Unlock()

	if stopped > 0 {
		log.Printf("Stopped %d active buffers", stopped)
	}
	if s.hooks.OnStopAll != nil {
		s.hooks.OnStopAll(stopped)
	}
}

// Active returns the number of buffers playing or waiting to play
func (s *Scheduler) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Cursor returns the device time at which the next buffer would start if
// the device clock has not passed it
func (s *Scheduler) Cursor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() SchedulerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Scheduler) complete(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[id]; ok {
		delete(s.active, id)
		s.stats.Completed++
	}
}

// conform converts buf to the device rate and channel count
func conform(buf audio.Buffer, format audio.Format) (audio.Buffer, error) {
	if err := buf.Format.Validate(); err != nil {
		return audio.Buffer{}, fmt.Errorf("invalid buffer: %w", err)
	}

	if buf.Format.Channels != format.Channels {
		remixed, err := remix(buf, format.Channels)
		if err != nil {
			return audio.Buffer{}, err
		}
		buf = remixed
	}

	if buf.Format.SampleRate != format.SampleRate {
		buf = resample.Buffer(buf, format.SampleRate)
	}

	return buf, nil
}

// remix duplicates mono to every channel or averages down to mono
func remix(buf audio.Buffer, channels int) (audio.Buffer, error) {
	frames := buf.Frames()
	out := audio.NewBuffer(audio.Format{SampleRate: buf.Format.SampleRate, Channels: channels}, frames)

	switch {
	case buf.Format.Channels == 1:
		for ch := range out.Samples {
			copy(out.Samples[ch], buf.Samples[0])
		}
	case channels == 1:
		scale := 1 / float32(buf.Format.Channels)
		for i := 0; i < frames; i++ {
			var sum float32
			for ch := range buf.Samples {
				sum += buf.Samples[ch][i]
			}
			out.Samples[0][i] = sum * scale
		}
	default:
		return audio.Buffer{}, fmt.Errorf("cannot remix %d channels to %d", buf.Format.Channels, channels)
	}

	return out, nil
}
