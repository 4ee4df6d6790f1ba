// ABOUTME: Capture source interface and in-memory source
// ABOUTME: SliceSource replays samples from memory or a WAV file
package capture

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/resample"
)

// Source is a mono capture device
type Source interface {
	// Open acquires the device at sampleRate, delivering frameSize samples per read
	Open(ctx context.Context, sampleRate, frameSize int) error

	// Read fills frame completely; io.EOF ends the capture normally
	Read(ctx context.Context, frame []float32) error

	// Close releases the device
	Close() error
}

// SliceSource replays fixed samples as capture frames
type SliceSource struct {
	// Paced makes reads wait one frame duration, like a live device
	Paced bool

	mu         sync.Mutex
	samples    []float32
	pos        int
	sampleRate int
	open       bool
}

// NewSliceSource creates a source that replays samples
func NewSliceSource(samples []float32) *SliceSource {
	return &SliceSource{samples: samples}
}

// NewWAVSource loads a WAV file and replays it at sampleRate
func NewWAVSource(path string, sampleRate int) (*SliceSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open wav: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("not a valid wav file: %s", path)
	}

	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to read wav samples: %w", err)
	}

	channels := pcm.Format.NumChannels
	frames := len(pcm.Data) / channels
	bitDepth := pcm.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = 16
	}
	scale := float32(int64(1) << (bitDepth - 1))

	// Mix down to mono
	mono := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for ch := 0; ch < channels; ch++ {
			sum += float32(pcm.Data[i*channels+ch]) / scale
		}
		mono[i] = sum / float32(channels)
	}

	buf := resample.Buffer(audio.Mono(pcm.Format.SampleRate, mono), sampleRate)
	return NewSliceSource(buf.Samples[0]), nil
}

// Open starts replay from the beginning
func (s *SliceSource) Open(_ context.Context, sampleRate, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pos = 0
	s.sampleRate = sampleRate
	s.open = true
	return nil
}

// Read copies the next frame; a partial final frame is zero-padded
func (s *SliceSource) Read(ctx context.Context, frame []float32) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return fmt.Errorf("source not open")
	}
	if s.pos >= len(s.samples) {
		s.mu.Unlock()
		return io.EOF
	}

	n := copy(frame, s.samples[s.pos:])
	for i := n; i < len(frame); i++ {
		frame[i] = 0
	}
	s.pos += n
	paced, rate := s.Paced, s.sampleRate
	s.mu.Unlock()

	if paced && rate > 0 {
		timer := time.NewTimer(time.Duration(len(frame)) * time.Second / time.Duration(rate))
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return nil
}

// Close ends replay
func (s *SliceSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}
