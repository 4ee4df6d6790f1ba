// ABOUTME: Tests for audio types
// ABOUTME: Tests sample scaling, buffer geometry and durations
package audio

import (
	"math"
	"testing"
	"time"
)

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16384},
		{"negative half", -0.5, -16384},
		{"min", -1, -32768},
		{"truncates toward zero", 0.00002, 0},
		{"just below one", 32767.0 / 32768.0, 32767},
		// 1.0 * 32768 does not fit in int16 and wraps to the minimum
		{"one wraps", 1, -32768},
		{"overflow wraps", 1.5, -16384},
		// scaled value exceeds int32 but still wraps modulo 2^16
		{"beyond int32 wraps", 70000.5, 16384},
		{"negative beyond int32 wraps", -70000.5, -16384},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"positive", 16384, 0.5},
		{"negative", -16384, -0.5},
		{"min", -32768, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %f, got %f", tt.expected, result)
			}
		})
	}
}

func TestRoundTripWithinOneStep(t *testing.T) {
	// Samples at typical magnitudes survive within 1/32768
	for _, original := range []float32{0, 0.1, -0.1, 0.333, -0.777, 0.99, -1} {
		result := SampleFromInt16(SampleToInt16(original))
		if diff := math.Abs(float64(result - original)); diff > 1.0/PCM16Scale {
			t.Errorf("round-trip of %f drifted by %g", original, diff)
		}
	}
}

func TestBufferDuration(t *testing.T) {
	buf := NewBuffer(Format{SampleRate: OutputSampleRate, Channels: 1}, 2*OutputSampleRate)
	if buf.Duration() != 2*time.Second {
		t.Errorf("expected 2s, got %v", buf.Duration())
	}

	stereo := NewBuffer(Format{SampleRate: 48000, Channels: 2}, 4800)
	if stereo.Frames() != 4800 {
		t.Errorf("expected 4800 frames, got %d", stereo.Frames())
	}
	if stereo.Duration() != 100*time.Millisecond {
		t.Errorf("expected 100ms, got %v", stereo.Duration())
	}

	var empty Buffer
	if empty.Duration() != 0 {
		t.Errorf("expected zero duration for empty buffer, got %v", empty.Duration())
	}
}

func TestBufferInterleaved(t *testing.T) {
	buf := Buffer{
		Format:  Format{SampleRate: 8000, Channels: 2},
		Samples: [][]float32{{0.1, 0.2}, {-0.1, -0.2}},
	}

	got := buf.Interleaved()
	want := []float32{0.1, -0.1, 0.2, -0.2}
	if len(got) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestFormatValidate(t *testing.T) {
	if err := (Format{SampleRate: 16000, Channels: 1}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (Format{SampleRate: 0, Channels: 1}).Validate(); err == nil {
		t.Error("expected error for zero sample rate")
	}
	if err := (Format{SampleRate: 16000}).Validate(); err == nil {
		t.Error("expected error for zero channels")
	}
}
