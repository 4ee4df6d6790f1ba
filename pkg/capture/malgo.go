// ABOUTME: Malgo-based microphone source
// ABOUTME: Captures mono float32 audio through miniaudio into a ring buffer
package capture

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"

	"github.com/gen2brain/malgo"
)

// ErrDeviceStopped is returned by Read when the device stops unexpectedly
var ErrDeviceStopped = errors.New("capture device stopped")

// MalgoSource captures from the default input device using malgo/miniaudio
type MalgoSource struct {
	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	ring     *RingBuffer
	notify   chan struct{}
	stopped  chan struct{}
	closing  bool
}

// NewMalgoSource creates a microphone source
func NewMalgoSource() *MalgoSource {
	return &MalgoSource{}
}

// Open initializes the capture device
func (m *MalgoSource) Open(_ context.Context, sampleRate, frameSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("capture device already open")
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	// Two seconds of headroom, at least a few frames
	capacity := sampleRate * 2
	if capacity < frameSize*4 {
		capacity = frameSize * 4
	}
	m.ring = NewRingBuffer(capacity)
	m.notify = make(chan struct{}, 1)
	m.stopped = make(chan struct{})
	m.closing = false

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	ring, notify, stopped := m.ring, m.notify, m.stopped
	var stopOnce sync.Once

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(_, pInputSamples []byte, frameCount uint32) {
			samples := make([]float32, frameCount)
			for i := range samples {
				samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(pInputSamples[i*4:]))
			}
			if n := ring.Write(samples); n < len(samples) {
				log.Printf("Capture ring buffer overrun, lost %d samples", len(samples)-n)
			}
			select {
			case notify <- struct{}{}:
			default:
			}
		},
		Stop: func() {
			stopOnce.Do(func() { close(stopped) })
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to start capture device: %w", err)
	}

	m.malgoCtx = ctx
	m.device = device

	log.Printf("Capture device initialized: %dHz mono (malgo/f32)", sampleRate)

	return nil
}

// Read blocks until a full frame is buffered
func (m *MalgoSource) Read(ctx context.Context, frame []float32) error {
	m.mu.Lock()
	ring, notify, stopped := m.ring, m.notify, m.stopped
	m.mu.Unlock()

	if ring == nil {
		return fmt.Errorf("capture device not open")
	}

	for {
		if ring.Available() >= len(frame) {
			ring.Read(frame)
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopped:
			m.mu.Lock()
			closing := m.closing
			m.mu.Unlock()
			if closing {
				return context.Canceled
			}
			return ErrDeviceStopped
		case <-notify:
		}
	}
}

// Close releases the device and context
func (m *MalgoSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closing = true
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Failed to uninit malgo context: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}
