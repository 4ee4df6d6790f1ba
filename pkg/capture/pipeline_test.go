// ABOUTME: Tests for the capture pipeline
// ABOUTME: Tests accumulation, streaming, queue overflow and failure handling
package capture

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio/codec"
)

type recordingSink struct {
	mu      sync.Mutex
	frames  []codec.EncodedFrame
	sendErr error
	block   chan struct{}
	closed  bool
}

func (s *recordingSink) SendAudio(ctx context.Context, frame codec.EncodedFrame) error {
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return s.sendErr
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) received() []codec.EncodedFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]codec.EncodedFrame(nil), s.frames...)
}

// stalledSink ignores ctx like a socket whose peer stopped reading;
// only Close unblocks it
type stalledSink struct {
	once   sync.Once
	closed chan struct{}
}

func newStalledSink() *stalledSink {
	return &stalledSink{closed: make(chan struct{})}
}

func (s *stalledSink) SendAudio(context.Context, codec.EncodedFrame) error {
	<-s.closed
	return errors.New("use of closed network connection")
}

func (s *stalledSink) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

type failingSource struct {
	openErr error
	readErr error
	closed  bool
}

func (f *failingSource) Open(context.Context, int, int) error { return f.openErr }

func (f *failingSource) Read(context.Context, []float32) error { return f.readErr }

func (f *failingSource) Close() error {
	f.closed = true
	return nil
}

func waitDone(t *testing.T, p *Pipeline) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for capture to stop")
	}
}

func rampSamples(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i%200)/200 - 0.5
	}
	return samples
}

func TestPipelineStreamsFrames(t *testing.T) {
	source := NewSliceSource(rampSamples(3 * 4096))
	sink := &recordingSink{}

	p := New(source, Config{})
	p.Attach(sink)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitDone(t, p)

	if err := p.Err(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	frames := sink.received()
	if len(frames) != 3 {
		t.Fatalf("expected 3 encoded frames, got %d", len(frames))
	}
	for i, frame := range frames {
		if frame.MimeType != "audio/pcm;rate=16000" {
			t.Errorf("frame %d: unexpected mime type %q", i, frame.MimeType)
		}
		data, err := frame.Bytes()
		if err != nil {
			t.Fatalf("frame %d: decode failed: %v", i, err)
		}
		if len(data) != 4096*2 {
			t.Errorf("frame %d: expected %d bytes, got %d", i, 4096*2, len(data))
		}
	}

	if got := len(p.Samples()); got != 3*4096 {
		t.Errorf("expected %d accumulated samples, got %d", 3*4096, got)
	}
	if p.Frames() != 3 {
		t.Errorf("expected 3 frames, got %d", p.Frames())
	}
	if !sink.closed {
		t.Error("expected sink to be closed when capture ends")
	}
	if p.Running() {
		t.Error("expected pipeline to be stopped")
	}
}

func TestPipelineWithoutSinkOnlyAccumulates(t *testing.T) {
	var seen int
	p := New(NewSliceSource(rampSamples(1000)), Config{FrameSize: 256})
	p.SetHooks(Hooks{OnFrame: func([]float32) { seen++ }})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitDone(t, p)

	// 1000 samples in 256-sample frames; the last frame is zero-padded
	if p.Frames() != 4 {
		t.Errorf("expected 4 frames, got %d", p.Frames())
	}
	if len(p.Samples()) != 4*256 {
		t.Errorf("expected %d samples, got %d", 4*256, len(p.Samples()))
	}
	if seen != 4 {
		t.Errorf("expected OnFrame 4 times, got %d", seen)
	}
}

func TestPipelineOpenFailure(t *testing.T) {
	denied := errors.New("permission denied")
	p := New(&failingSource{openErr: denied}, Config{})

	err := p.Start(context.Background())

	var unavailable *CaptureUnavailableError
	if !errors.As(err, &unavailable) {
		t.Fatalf("expected CaptureUnavailableError, got %v", err)
	}
	if !errors.Is(err, ErrCaptureUnavailable) || !errors.Is(err, denied) {
		t.Errorf("expected error to match sentinel and cause, got %v", err)
	}
	if p.Running() {
		t.Error("expected pipeline not to be running")
	}
}

func TestPipelineDeviceErrorStopsCapture(t *testing.T) {
	source := &failingSource{readErr: errors.New("device unplugged")}
	p := New(source, Config{})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitDone(t, p)

	if p.Err() == nil {
		t.Fatal("expected device error to be surfaced")
	}
	if !source.closed {
		t.Error("expected source to be released")
	}
}

func TestPipelineSinkErrorKeepsSamples(t *testing.T) {
	source := NewSliceSource(rampSamples(10 * 512))
	source.Paced = true
	sink := &recordingSink{sendErr: errors.New("session dropped")}

	p := New(source, Config{FrameSize: 512})
	p.Attach(sink)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitDone(t, p)

	err := p.Err()
	var streamErr *StreamingSessionError
	if !errors.As(err, &streamErr) {
		t.Fatalf("expected StreamingSessionError, got %v", err)
	}
	if !errors.Is(err, ErrStreamingSession) {
		t.Errorf("expected error to match ErrStreamingSession")
	}
	if len(p.Samples()) == 0 {
		t.Error("expected accumulated samples to survive the streaming failure")
	}
	if p.Frames() >= 10 {
		t.Errorf("expected capture to stop early, captured %d frames", p.Frames())
	}
}

func TestPipelineQueueOverflowDropsTransmissionOnly(t *testing.T) {
	sink := &recordingSink{block: make(chan struct{})}
	var drops int

	p := New(NewSliceSource(rampSamples(5*128)), Config{FrameSize: 128, QueueSize: 1})
	p.Attach(sink)
	p.SetHooks(Hooks{OnDrop: func() { drops++ }})

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Frames() < 5 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(sink.block)
	waitDone(t, p)

	if p.Frames() != 5 {
		t.Fatalf("expected all 5 frames accumulated, got %d", p.Frames())
	}
	// At most one frame in the sink and one in the queue
	if p.Dropped() < 3 {
		t.Errorf("expected at least 3 dropped frames, got %d", p.Dropped())
	}
	if p.Dropped() != drops {
		t.Errorf("expected OnDrop per dropped frame, got %d hooks for %d drops", drops, p.Dropped())
	}
	if got := len(sink.received()) + p.Dropped(); got != 5 {
		t.Errorf("expected sent+dropped to equal 5, got %d", got)
	}
}

func TestPipelineStop(t *testing.T) {
	source := NewSliceSource(rampSamples(100 * 256))
	source.Paced = true

	p := New(source, Config{FrameSize: 256})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := p.Start(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("expected ErrAlreadyRunning, got %v", err)
	}

	time.Sleep(50 * time.Millisecond)
	p.Stop()

	if p.Running() {
		t.Error("expected pipeline to be stopped")
	}
	if p.Err() != nil {
		t.Errorf("expected no error after manual stop, got %v", p.Err())
	}
	if p.Frames() == 0 || p.Frames() >= 100 {
		t.Errorf("expected a partial capture, got %d frames", p.Frames())
	}

	// Stopping twice is harmless
	p.Stop()
}

func TestPipelineClip(t *testing.T) {
	p := New(NewSliceSource(rampSamples(2048)), Config{FrameSize: 1024})
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitDone(t, p)

	path := filepath.Join(t.TempDir(), "clip.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := p.Clip(f); err != nil {
		t.Fatalf("clip failed: %v", err)
	}
	f.Close()

	source, err := NewWAVSource(path, 16000)
	if err != nil {
		t.Fatalf("failed to reload clip: %v", err)
	}
	if len(source.samples) != 2048 {
		t.Errorf("expected 2048 samples from clip, got %d", len(source.samples))
	}
}

func TestPipelineStopWithStalledSink(t *testing.T) {
	source := NewSliceSource(rampSamples(4000 * 256))
	sink := newStalledSink()

	p := New(source, Config{FrameSize: 256, QueueSize: 4})
	p.Attach(sink)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for p.Dropped() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	stopped := make(chan struct{})
	go func() {
		p.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop blocked: frames=%d dropped=%d", p.Frames(), p.Dropped())
	}

	select {
	case <-sink.closed:
	default:
		t.Error("expected stalled sink to be closed")
	}

	source.mu.Lock()
	open := source.open
	source.mu.Unlock()
	if open {
		t.Error("expected capture source to be released")
	}
	if p.Err() != nil {
		t.Errorf("expected no error after manual stop, got %v", p.Err())
	}
	if p.Frames() == 0 {
		t.Error("expected accumulated frames to survive stop")
	}
}

func TestPipelineSinkNotReusedAfterStop(t *testing.T) {
	sink := &recordingSink{}
	p := New(NewSliceSource(rampSamples(2*256)), Config{FrameSize: 256})
	p.Attach(sink)

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitDone(t, p)
	sent := len(sink.received())

	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	waitDone(t, p)

	if err := p.Err(); err != nil {
		t.Errorf("expected second session without a sink to succeed, got %v", err)
	}
	if got := len(sink.received()); got != sent {
		t.Errorf("expected closed sink to receive no more frames, got %d after %d", got, sent)
	}
	if p.Frames() != 2 {
		t.Errorf("expected second session to capture 2 frames, got %d", p.Frames())
	}
}
