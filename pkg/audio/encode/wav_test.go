// ABOUTME: Tests for WAV clip encoding
// ABOUTME: Writes a clip to disk and reads it back with the wav decoder
package encode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func TestWAVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}

	samples := []float32{0, 0.5, -0.5, 0.25}
	if err := WAV(f, samples, 16000); err != nil {
		t.Fatalf("wav encode failed: %v", err)
	}
	f.Close()

	in, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open clip: %v", err)
	}
	defer in.Close()

	dec := wav.NewDecoder(in)
	if !dec.IsValidFile() {
		t.Fatal("expected a valid wav file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("failed to read pcm: %v", err)
	}

	if dec.SampleRate != 16000 {
		t.Errorf("expected 16000Hz, got %d", dec.SampleRate)
	}

	want := []int{0, 16384, -16384, 8192}
	if len(buf.Data) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Data))
	}
	for i := range want {
		if buf.Data[i] != want[i] {
			t.Errorf("sample %d: expected %d, got %d", i, want[i], buf.Data[i])
		}
	}
}
