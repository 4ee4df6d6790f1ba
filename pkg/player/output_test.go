// ABOUTME: Tests for the audio output context
// ABOUTME: Tests lazy device opening and failure handling
package player

import (
	"errors"
	"testing"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio/output"
)

func TestOutputOpensLazily(t *testing.T) {
	opened := 0
	dev := output.NewVirtual(testFormat)
	out := NewOutput(func() (output.Device, error) {
		opened++
		return dev, nil
	}, Hooks{})

	out.StopAll()
	if opened != 0 {
		t.Fatalf("expected StopAll not to open the device, opened %d times", opened)
	}

	if _, err := out.Enqueue(bufferOf(time.Second)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if _, err := out.Enqueue(bufferOf(time.Second)); err != nil {
		t.Fatalf("enqueue failed: %v", err)
	}
	if opened != 1 {
		t.Errorf("expected device opened once, got %d", opened)
	}
	if out.Active() != 2 {
		t.Errorf("expected 2 active, got %d", out.Active())
	}

	out.StopAll()
	if out.Active() != 0 {
		t.Errorf("expected 0 active after StopAll, got %d", out.Active())
	}
}

func TestOutputOpenFailure(t *testing.T) {
	openErr := errors.New("no device")
	out := NewOutput(func() (output.Device, error) { return nil, openErr }, Hooks{})

	if _, err := out.Enqueue(bufferOf(time.Second)); !errors.Is(err, openErr) {
		t.Fatalf("expected open error, got %v", err)
	}
	if _, err := out.Now(); !errors.Is(err, openErr) {
		t.Fatalf("expected open error from Now, got %v", err)
	}
}

func TestOutputClose(t *testing.T) {
	out := NewOutput(func() (output.Device, error) { return output.NewVirtual(testFormat), nil }, Hooks{})

	format, err := out.Format()
	if err != nil {
		t.Fatalf("format failed: %v", err)
	}
	if format != testFormat {
		t.Errorf("expected %+v, got %+v", testFormat, format)
	}

	if err := out.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	if _, err := out.Enqueue(bufferOf(time.Second)); !errors.Is(err, output.ErrClosed) {
		t.Errorf("expected ErrClosed after close, got %v", err)
	}
}
