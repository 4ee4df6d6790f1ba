// ABOUTME: Tests for the cursor-based playback scheduler
// ABOUTME: Tests gapless ordering, stop-all and format conversion
package player

import (
	"errors"
	"testing"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/output"
)

var testFormat = audio.Format{SampleRate: 1000, Channels: 1}

func bufferOf(d time.Duration) audio.Buffer {
	return audio.NewBuffer(testFormat, int(d/time.Millisecond))
}

func TestSchedulerGaplessOrdering(t *testing.T) {
	dev := output.NewVirtual(testFormat)
	dev.Advance(100 * time.Millisecond)
	s := NewScheduler(dev, Hooks{})

	durations := []time.Duration{300 * time.Millisecond, 500 * time.Millisecond, 200 * time.Millisecond}
	expected := []time.Duration{100 * time.Millisecond, 400 * time.Millisecond, 900 * time.Millisecond}

	for i, d := range durations {
		h, err := s.Enqueue(bufferOf(d))
		if err != nil {
			t.Fatalf("enqueue %d failed: %v", i, err)
		}
		if h.StartAt != expected[i] {
			t.Errorf("buffer %d: expected start %v, got %v", i, expected[i], h.StartAt)
		}
	}

	if s.Cursor() != 1100*time.Millisecond {
		t.Errorf("expected cursor at 1.1s, got %v", s.Cursor())
	}
	if s.Active() != 3 {
		t.Errorf("expected 3 active buffers, got %d", s.Active())
	}
}

func TestSchedulerBackToBackSpeech(t *testing.T) {
	dev := output.NewVirtual(testFormat)
	s := NewScheduler(dev, Hooks{})

	first, err := s.Enqueue(bufferOf(2 * time.Second))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	second, err := s.Enqueue(bufferOf(3 * time.Second))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	if second.StartAt != first.StartAt+2*time.Second {
		t.Errorf("expected second buffer at %v, got %v", first.StartAt+2*time.Second, second.StartAt)
	}
}

func TestSchedulerStartsAtNowAfterSilence(t *testing.T) {
	dev := output.NewVirtual(testFormat)
	s := NewScheduler(dev, Hooks{})

	if _, err := s.Enqueue(bufferOf(time.Second)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}

	dev.Advance(5 * time.Second)

	h, err := s.Enqueue(bufferOf(time.Second))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if h.StartAt != 5*time.Second {
		t.Errorf("expected start at device clock 5s, got %v", h.StartAt)
	}
}

func TestSchedulerCompletionRemovesHandle(t *testing.T) {
	dev := output.NewVirtual(testFormat)
	s := NewScheduler(dev, Hooks{})

	s.Enqueue(bufferOf(100 * time.Millisecond))
	s.Enqueue(bufferOf(100 * time.Millisecond))

	dev.Advance(150 * time.Millisecond)
	if s.Active() != 1 {
		t.Fatalf("expected 1 active buffer, got %d", s.Active())
	}

	dev.Advance(100 * time.Millisecond)
	if s.Active() != 0 {
		t.Fatalf("expected no active buffers, got %d", s.Active())
	}

	stats := s.Stats()
	if stats.Enqueued != 2 || stats.Completed != 2 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestSchedulerStopAll(t *testing.T) {
	dev := output.NewVirtual(testFormat)
	stopCalls := 0
	s := NewScheduler(dev, Hooks{OnStopAll: func(int) { stopCalls++ }})

	for i := 0; i < 3; i++ {
		if _, err := s.Enqueue(bufferOf(time.Second)); err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
	}
	cursor := s.Cursor()

	dev.Advance(500 * time.Millisecond)
	s.StopAll()

	if s.Active() != 0 {
		t.Errorf("expected empty active set, got %d", s.Active())
	}
	if dev.Playing() != 0 {
		t.Errorf("expected device to have no voices, got %d", dev.Playing())
	}
	if s.Cursor() != cursor {
		t.Errorf("expected cursor untouched at %v, got %v", cursor, s.Cursor())
	}
	if s.Stats().Stopped != 3 {
		t.Errorf("expected 3 stopped, got %d", s.Stats().Stopped)
	}

	// Stopped voices never report completion
	dev.Advance(10 * time.Second)
	if s.Stats().Completed != 0 {
		t.Errorf("expected no completions after StopAll, got %d", s.Stats().Completed)
	}

	h, err := s.Enqueue(bufferOf(time.Second))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if h.StartAt < dev.Now() {
		t.Errorf("expected start >= now %v, got %v", dev.Now(), h.StartAt)
	}

	// A second StopAll with nothing active is harmless
	s.StopAll()
	if stopCalls != 2 {
		t.Errorf("expected 2 stop hooks, got %d", stopCalls)
	}
}

func TestSchedulerResamplesToDeviceRate(t *testing.T) {
	dev := output.NewVirtual(audio.Format{SampleRate: 24000, Channels: 2})
	s := NewScheduler(dev, Hooks{})

	h, err := s.Enqueue(audio.Mono(16000, make([]float32, 16000)))
	if err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if h.EndAt-h.StartAt != time.Second {
		t.Errorf("expected 1s voice, got %v", h.EndAt-h.StartAt)
	}
}

func TestSchedulerRejectsInvalidBuffer(t *testing.T) {
	s := NewScheduler(output.NewVirtual(testFormat), Hooks{})

	if _, err := s.Enqueue(audio.Buffer{}); err == nil {
		t.Fatal("expected error for buffer without format")
	}
}

func TestSchedulerDeviceFailure(t *testing.T) {
	dev := output.NewVirtual(testFormat)
	dev.Close()
	s := NewScheduler(dev, Hooks{})

	_, err := s.Enqueue(bufferOf(time.Second))
	if !errors.Is(err, output.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if s.Cursor() != 0 {
		t.Errorf("expected cursor unchanged after failure, got %v", s.Cursor())
	}
	if s.Stats().Failed != 1 {
		t.Errorf("expected 1 failure, got %d", s.Stats().Failed)
	}
}

func TestRemix(t *testing.T) {
	stereo := audio.NewBuffer(audio.Format{SampleRate: 1000, Channels: 2}, 1)
	stereo.Samples[0][0] = 0.5
	stereo.Samples[1][0] = -0.25

	mono, err := remix(stereo, 1)
	if err != nil {
		t.Fatalf("remix failed: %v", err)
	}
	if mono.Samples[0][0] != 0.125 {
		t.Errorf("expected 0.125, got %v", mono.Samples[0][0])
	}

	if _, err := remix(stereo, 6); err == nil {
		t.Error("expected error remixing stereo to 6 channels")
	}
}
