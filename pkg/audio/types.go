// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, playback buffers and PCM16 scaling constants
package audio

import (
	"fmt"
	"time"
)

const (
	// PCM16Scale maps floating-point samples in [-1, 1] onto the int16 range
	PCM16Scale = 32768.0

	// CaptureSampleRate is the microphone rate sent to the live speech service
	CaptureSampleRate = 16000

	// OutputSampleRate is the rate of synthesized and streamed speech
	OutputSampleRate = 24000

	// CaptureFrameSize is the number of samples read per capture tick
	CaptureFrameSize = 4096
)

// Format describes an audio stream format
type Format struct {
	SampleRate int
	Channels   int
}

// Validate checks the format can describe playable audio
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	return nil
}

// Buffer is a decoded, ready-to-play block of audio.
// Samples holds one plane per channel, each with Frames() entries in [-1, 1].
type Buffer struct {
	Format  Format
	Samples [][]float32
}

// NewBuffer allocates a silent buffer of the given length
func NewBuffer(format Format, frames int) Buffer {
	planes := make([][]float32, format.Channels)
	for ch := range planes {
		planes[ch] = make([]float32, frames)
	}
	return Buffer{Format: format, Samples: planes}
}

// Mono wraps a single plane of samples as a one-channel buffer
func Mono(sampleRate int, samples []float32) Buffer {
	return Buffer{
		Format:  Format{SampleRate: sampleRate, Channels: 1},
		Samples: [][]float32{samples},
	}
}

// Frames returns the number of sample frames per channel
func (b Buffer) Frames() int {
	if len(b.Samples) == 0 {
		return 0
	}
	return len(b.Samples[0])
}

// Duration returns frames / sampleRate
func (b Buffer) Duration() time.Duration {
	if b.Format.SampleRate <= 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.Format.SampleRate)
}

// Interleaved returns the samples flattened frame by frame
func (b Buffer) Interleaved() []float32 {
	channels := len(b.Samples)
	frames := b.Frames()
	out := make([]float32, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			out[i*channels+ch] = b.Samples[ch][i]
		}
	}
	return out
}

// SampleToInt16 scales a float sample to int16 without clamping.
// Values outside [-1, 1] wrap modulo 2^16 like a plain 16-bit truncation,
// for any scaled value within the int64 range.
func SampleToInt16(sample float32) int16 {
	return int16(int64(sample * PCM16Scale))
}

// SampleFromInt16 scales an int16 sample back to [-1, 1)
func SampleFromInt16(sample int16) float32 {
	return float32(sample) / PCM16Scale
}
