// ABOUTME: Capture pipeline with local accumulation and bounded streaming queue
// ABOUTME: Owns the capture device for one session and forwards frames to a sink
package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"

	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
	"github.com/greetcast/greetcast-go/pkg/audio/encode"
)

const defaultQueueSize = 32

// Sink receives encoded frames, typically a live speech session
type Sink interface {
	SendAudio(ctx context.Context, frame codec.EncodedFrame) error
	Close() error
}

// Config holds pipeline configuration
type Config struct {
	// SampleRate defaults to audio.CaptureSampleRate
	SampleRate int

	// FrameSize is the samples per tick, default audio.CaptureFrameSize
	FrameSize int

	// QueueSize bounds frames waiting for the sink, default 32
	QueueSize int
}

// Hooks are optional callbacks for observing the pipeline
type Hooks struct {
	// OnFrame runs on the capture goroutine for every accumulated frame
	OnFrame func(frame []float32)

	// OnDrop runs when a frame is not transmitted because the queue is full
	OnDrop func()
}

// Pipeline records one capture session
type Pipeline struct {
	source Source
	config Config
	hooks  Hooks

	mu      sync.Mutex
	sink    Sink
	running bool
	samples []float32
	frames  int
	dropped int
	err     error
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates a pipeline reading from source
func New(source Source, config Config) *Pipeline {
	if config.SampleRate == 0 {
		config.SampleRate = audio.CaptureSampleRate
	}
	if config.FrameSize == 0 {
		config.FrameSize = audio.CaptureFrameSize
	}
	if config.QueueSize == 0 {
		config.QueueSize = defaultQueueSize
	}

	done := make(chan struct{})
	close(done)

	return &Pipeline{
		source: source,
		config: config,
		done:   done,
	}
}

// SetHooks installs observation callbacks; call before Start
func (p *Pipeline) SetHooks(hooks Hooks) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hooks = hooks
}

// Attach sets the streaming sink for the next Start only. The pipeline
// closes the sink when that session ends.
func (p *Pipeline) Attach(sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sink = sink
}

// Start opens the source and begins capturing. A previous session's
// samples are discarded.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return ErrAlreadyRunning
	}

	if err := p.source.Open(ctx, p.config.SampleRate, p.config.FrameSize); err != nil {
		return &CaptureUnavailableError{Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	sink := p.sink
	p.sink = nil
	p.running = true
	p.samples = nil
	p.frames = 0
	p.dropped = 0
	p.err = nil
	p.cancel = cancel
	p.done = make(chan struct{})

	var queue chan codec.EncodedFrame
	var sendDone chan struct{}

	if sink != nil {
		queue = make(chan codec.EncodedFrame, p.config.QueueSize)
		sendDone = make(chan struct{})
		go func() {
			defer close(sendDone)
			p.sendLoop(runCtx, sink, queue)
		}()
	}

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		p.readLoop(runCtx, queue)
	}()

	go p.supervise(runCtx, cancel, sink, readDone, sendDone, p.done)

	log.Printf("Capture started: %dHz, %d samples per frame, streaming=%v",
		p.config.SampleRate, p.config.FrameSize, sink != nil)

	return nil
}

// Stop ends the session and waits for the device to be released.
// Accumulated samples stay available.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed once the session has fully stopped
func (p *Pipeline) Done() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.done
}

// Err returns the error that stopped the session, if any
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Running reports whether a session is active
func (p *Pipeline) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Samples returns a copy of every sample captured this session
func (p *Pipeline) Samples() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]float32, len(p.samples))
	copy(out, p.samples)
	return out
}

// Frames returns the number of frames captured this session
func (p *Pipeline) Frames() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.frames
}

// Dropped returns the number of frames not transmitted because the queue was full
func (p *Pipeline) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// SampleRate returns the capture rate
func (p *Pipeline) SampleRate() int {
	return p.config.SampleRate
}

// Clip writes the accumulated samples as a 16-bit mono WAV file
func (p *Pipeline) Clip(w io.WriteSeeker) error {
	return encode.WAV(w, p.Samples(), p.config.SampleRate)
}

func (p *Pipeline) readLoop(ctx context.Context, queue chan codec.EncodedFrame) {
	if queue != nil {
		defer close(queue)
	}

	for {
		frame := make([]float32, p.config.FrameSize)
		if err := p.source.Read(ctx, frame); err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, io.EOF) {
				log.Printf("Capture source exhausted")
				return
			}
			p.fail(fmt.Errorf("capture device read failed: %w", err))
			return
		}

		p.mu.Lock()
		p.samples = append(p.samples, frame...)
		p.frames++
		onFrame := p.hooks.OnFrame
		p.mu.Unlock()

		if onFrame != nil {
			onFrame(frame)
		}

		if queue == nil {
			continue
		}

		select {
		case queue <- encode.Frame(frame, p.config.SampleRate):
		default:
			p.mu.Lock()
			p.dropped++
			dropped, onDrop := p.dropped, p.hooks.OnDrop
			p.mu.Unlock()

			if dropped == 1 || dropped%50 == 0 {
				log.Printf("Streaming queue full, dropped %d frames", dropped)
			}
			if onDrop != nil {
				onDrop()
			}
		}
	}
}

func (p *Pipeline) sendLoop(ctx context.Context, sink Sink, queue <-chan codec.EncodedFrame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-queue:
			if !ok {
				return
			}
			if err := sink.SendAudio(ctx, frame); err != nil {
				if ctx.Err() != nil {
					return
				}
				p.fail(&StreamingSessionError{Err: err})
				return
			}
		}
	}
}

// fail records the first error and stops the session
func (p *Pipeline) fail(err error) {
	p.mu.Lock()
	if p.err == nil {
		p.err = err
	}
	cancel := p.cancel
	p.mu.Unlock()

	log.Printf("Capture failed: %v", err)
	if cancel != nil {
		cancel()
	}
}

// supervise releases the device as soon as reading stops, then waits for
// the sink to drain. Cancellation closes the sink so a send blocked on the
// network cannot hold the session open.
func (p *Pipeline) supervise(ctx context.Context, cancel context.CancelFunc, sink Sink, readDone, sendDone, done chan struct{}) {
	<-readDone
	if err := p.source.Close(); err != nil {
		log.Printf("Failed to close capture source: %v", err)
	}

	if sink != nil {
		select {
		case <-sendDone:
			closeSink(sink)
		case <-ctx.Done():
			closeSink(sink)
			<-sendDone
		}
	}
	cancel()

	p.mu.Lock()
	p.running = false
	p.cancel = nil
	frames, dropped := p.frames, p.dropped
	p.mu.Unlock()

	log.Printf("Capture stopped: %d frames, %d dropped", frames, dropped)
	close(done)
}

func closeSink(sink Sink) {
	if err := sink.Close(); err != nil {
		log.Printf("Failed to close streaming session: %v", err)
	}
}
