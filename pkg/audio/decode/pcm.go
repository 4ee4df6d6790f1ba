// ABOUTME: PCM16 audio decoder
// ABOUTME: Rebuilds float playback buffers from little-endian 16-bit PCM
package decode

import (
	"encoding/binary"
	"fmt"

	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
)

// PCMDecoder decodes PCM16 payloads at a fixed format
type PCMDecoder struct {
	format audio.Format
}

// NewPCM creates a new PCM16 decoder
func NewPCM(format audio.Format) (Decoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("invalid format for PCM decoder: %w", err)
	}

	return &PCMDecoder{format: format}, nil
}

// Decode converts PCM bytes to a playback buffer
func (d *PCMDecoder) Decode(data []byte) (audio.Buffer, error) {
	return FromPCM16(data, d.format.SampleRate, d.format.Channels)
}

// Close releases resources
func (d *PCMDecoder) Close() error {
	return nil
}

// FromPCM16 reinterprets data as interleaved int16 samples, splits them by
// channel and scales each back to [-1, 1).
func FromPCM16(data []byte, sampleRate, channels int) (audio.Buffer, error) {
	format := audio.Format{SampleRate: sampleRate, Channels: channels}
	if err := format.Validate(); err != nil {
		return audio.Buffer{}, err
	}

	if len(data)%(2*channels) != 0 {
		return audio.Buffer{}, &codec.BufferSizeMismatchError{Length: len(data), Channels: channels}
	}

	frames := len(data) / 2 / channels
	buf := audio.NewBuffer(format, frames)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			offset := (i*channels + ch) * 2
			sample := int16(binary.LittleEndian.Uint16(data[offset:]))
			buf.Samples[ch][i] = audio.SampleFromInt16(sample)
		}
	}

	return buf, nil
}

// FromEncoded decodes a base64 PCM16 payload such as a stored greeting's audio
func FromEncoded(text string, sampleRate, channels int) (audio.Buffer, error) {
	data, err := codec.DecodeBytes(text)
	if err != nil {
		return audio.Buffer{}, err
	}
	return FromPCM16(data, sampleRate, channels)
}
