//go:build portaudio

// ABOUTME: PortAudio microphone source
// ABOUTME: Blocking-read mono float32 capture using PortAudio
package capture

import (
	"context"
	"fmt"
	"log"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSource captures from the default input using PortAudio
type PortAudioSource struct {
	stream *portaudio.Stream
	buffer []float32
}

// NewPortAudioSource creates a PortAudio source
func NewPortAudioSource() *PortAudioSource {
	return &PortAudioSource{}
}

// Open initializes PortAudio and starts the input stream
func (p *PortAudioSource) Open(_ context.Context, sampleRate, frameSize int) error {
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	p.buffer = make([]float32, frameSize)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), frameSize, p.buffer)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}

	p.stream = stream
	log.Printf("Capture device initialized: %dHz mono (portaudio)", sampleRate)
	return nil
}

// Read blocks for one stream buffer at a time until frame is full
func (p *PortAudioSource) Read(ctx context.Context, frame []float32) error {
	if p.stream == nil {
		return fmt.Errorf("capture device not open")
	}

	for filled := 0; filled < len(frame); {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := p.stream.Read(); err != nil {
			return fmt.Errorf("failed to read stream: %w", err)
		}
		filled += copy(frame[filled:], p.buffer)
	}
	return nil
}

// Close releases resources
func (p *PortAudioSource) Close() error {
	if p.stream == nil {
		return nil
	}
	p.stream.Stop()
	err := p.stream.Close()
	p.stream = nil
	portaudio.Terminate()
	if err != nil {
		return fmt.Errorf("failed to close stream: %w", err)
	}
	return nil
}
