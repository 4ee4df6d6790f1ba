//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package capture

import (
	"context"
	"fmt"
)

// PortAudioSource capture implementation (stub)
type PortAudioSource struct{}

// NewPortAudioSource creates a new PortAudio source
func NewPortAudioSource() *PortAudioSource {
	return &PortAudioSource{}
}

// Open initializes PortAudio
func (p *PortAudioSource) Open(_ context.Context, _, _ int) error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Read reads captured samples
func (p *PortAudioSource) Read(_ context.Context, _ []float32) error {
	return fmt.Errorf("PortAudio support not enabled (build with -tags portaudio)")
}

// Close releases resources
func (p *PortAudioSource) Close() error {
	return nil
}
