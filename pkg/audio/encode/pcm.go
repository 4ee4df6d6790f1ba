// ABOUTME: PCM16 audio encoder
// ABOUTME: Converts float samples to little-endian 16-bit PCM and encoded frames
package encode

import (
	"encoding/binary"
	"fmt"

	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
)

// PCMEncoder encodes interleaved float samples as PCM16
type PCMEncoder struct {
	format audio.Format
}

// NewPCM creates a new PCM16 encoder
func NewPCM(format audio.Format) (Encoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format for PCM encoder: %w", err)
	}

	return &PCMEncoder{format: format}, nil
}

// Encode converts interleaved float samples to PCM16 bytes
func (e *PCMEncoder) Encode(samples []float32) ([]byte, error) {
	if len(samples)%e.format.Channels != 0 {
		return nil, fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), e.format.Channels)
	}
	return PCM16Bytes(ToPCM16(samples)), nil
}

// Close releases resources
func (e *PCMEncoder) Close() error {
	return nil
}

// ToPCM16 scales each sample by 32768 and truncates to int16.
// Out-of-range input wraps rather than clamps; see ToPCM16Clamped.
func ToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = audio.SampleToInt16(s)
	}
	return out
}

// ToPCM16Clamped is ToPCM16 with input limited to [-1, 32767/32768]
func ToPCM16Clamped(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		scaled := int64(s * audio.PCM16Scale)
		if scaled > 32767 {
			scaled = 32767
		} else if scaled < -32768 {
			scaled = -32768
		}
		out[i] = int16(scaled)
	}
	return out
}

// PCM16Bytes serializes samples little-endian, 2 bytes each
func PCM16Bytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(sample))
	}
	return out
}

// Frame converts one capture frame into a transport-ready EncodedFrame
func Frame(samples []float32, sampleRate int) codec.EncodedFrame {
	return codec.NewFrame(PCM16Bytes(ToPCM16(samples)), sampleRate)
}
