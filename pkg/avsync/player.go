// ABOUTME: Sync playback state machine
// ABOUTME: Runs one session at a time with a ready-or-timeout start
package avsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/greetcast/greetcast-go/pkg/audio"
)

// DefaultReadyTimeout is how long Loading waits for the video before
// starting anyway
const DefaultReadyTimeout = 10 * time.Second

// ErrClosed is returned by Request after Close
var ErrClosed = errors.New("sync player closed")

// Config holds sync player configuration
type Config struct {
	// ReadyTimeout defaults to DefaultReadyTimeout
	ReadyTimeout time.Duration

	// OnChange runs after every state change. It must not call Request,
	// Reset or Close.
	OnChange func(State)
}

type timerFunc func(d time.Duration) (<-chan time.Time, func() bool)

func realTimer(d time.Duration) (<-chan time.Time, func() bool) {
	t := time.NewTimer(d)
	return t.C, t.Stop
}

type session struct {
	id     uint64
	video  Video
	buf    audio.Buffer
	cancel context.CancelFunc
	done   chan struct{}
}

// Player coordinates a video resource with its speech buffer
type Player struct {
	audio    Audio
	config   Config
	newTimer timerFunc

	// requestMu serializes Request and Reset so at most one session exists
	requestMu sync.Mutex

	// audioMu serializes scheduling so a stale session never touches audio
	audioMu sync.Mutex

	mu      sync.Mutex
	state   State
	session *session
	nextID  uint64
	changed chan struct{}
	closed  bool
}

// New creates a sync player scheduling speech on out
func New(out Audio, config Config) *Player {
	if config.ReadyTimeout <= 0 {
		config.ReadyTimeout = DefaultReadyTimeout
	}

	return &Player{
		audio:    out,
		config:   config,
		newTimer: realTimer,
		changed:  make(chan struct{}),
	}
}

// Request tears down any current session and starts loading video with
// speech. An empty speech buffer plays the video alone.
func (p *Player) Request(video Video, speech audio.Buffer) error {
	if video == nil {
		return fmt.Errorf("video resource is required")
	}

	p.requestMu.Lock()
	defer p.requestMu.Unlock()

	p.teardown()

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		video.Close()
		return ErrClosed
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.nextID++
	s := &session{
		id:     p.nextID,
		video:  video,
		buf:    speech,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	p.session = s
	st := p.setLocked(State{Phase: Loading, Session: s.id})
	p.mu.Unlock()

	p.notify(st)
	log.Printf("Sync session %d loading (%v speech)", s.id, speech.Duration())

	go p.run(ctx, s)

	return nil
}

// Reset ends any session and returns to Idle
func (p *Player) Reset() {
	p.requestMu.Lock()
	defer p.requestMu.Unlock()

	p.teardown()

	p.mu.Lock()
	st := p.setLocked(State{Phase: Idle})
	p.mu.Unlock()

	p.notify(st)
}

// Close resets the player and rejects further requests
func (p *Player) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()

	p.Reset()
}

// State returns the current state
func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Wait blocks until the player is Ended, Error or Idle
func (p *Player) Wait(ctx context.Context) (State, error) {
	for {
		p.mu.Lock()
		st, changed := p.state, p.changed
		p.mu.Unlock()

		if st.Phase.Terminal() || st.Phase == Idle {
			return st, nil
		}

		select {
		case <-ctx.Done():
			return st, ctx.Err()
		case <-changed:
		}
	}
}

func (p *Player) run(ctx context.Context, s *session) {
	defer close(s.done)
	defer func() {
		if err := s.video.Close(); err != nil {
			log.Printf("Failed to close video resource: %v", err)
		}
	}()

	timeout, stopTimer := p.newTimer(p.config.ReadyTimeout)
	select {
	case <-ctx.Done():
		stopTimer()
		return
	case <-s.video.Ready():
		stopTimer()
	case <-timeout:
		log.Printf("Sync session %d: video not ready after %v, starting anyway", s.id, p.config.ReadyTimeout)
	case err := <-s.video.Failed():
		stopTimer()
		p.fail(s, err)
		return
	}

	if !p.transition(s, Buffering, "") {
		return
	}

	warning := p.scheduleSpeech(s)

	if err := s.video.Play(ctx); err != nil {
		if ctx.Err() != nil {
			return
		}
		p.fail(s, err)
		return
	}

	if !p.transition(s, Playing, warning) {
		return
	}

	select {
	case <-ctx.Done():
	case <-s.video.Ended():
		p.transition(s, Ended, warning)
	case err := <-s.video.Failed():
		p.fail(s, err)
	}
}

// scheduleSpeech enqueues the session audio and returns a warning on failure
func (p *Player) scheduleSpeech(s *session) string {
	if s.buf.Frames() == 0 {
		return ""
	}

	p.audioMu.Lock()
	defer p.audioMu.Unlock()

	if !p.current(s) {
		return ""
	}

	if _, err := p.audio.Enqueue(s.buf); err != nil {
		log.Printf("Sync session %d: audio unavailable, playing video only: %v", s.id, err)
		return fmt.Sprintf("audio unavailable: %v", err)
	}
	return ""
}

func (p *Player) fail(s *session, err error) {
	if err == nil {
		err = errors.New("unknown video error")
	}
	var resErr *PlaybackResourceError
	if !errors.As(err, &resErr) {
		err = &PlaybackResourceError{Err: err}
	}

	p.audioMu.Lock()
	if !p.current(s) {
		p.audioMu.Unlock()
		return
	}
	p.audio.StopAll()
	p.audioMu.Unlock()

	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return
	}
	st := p.setLocked(State{Phase: Error, Session: s.id, Err: err})
	p.mu.Unlock()

	log.Printf("Sync session %d failed: %v", s.id, err)
	p.notify(st)
}

// transition moves a current session to phase, reporting false if the
// session was superseded
func (p *Player) transition(s *session, phase Phase, warning string) bool {
	p.mu.Lock()
	if p.session != s {
		p.mu.Unlock()
		return false
	}
	st := p.setLocked(State{Phase: phase, Session: s.id, Warning: warning})
	p.mu.Unlock()

	log.Printf("Sync session %d: %s", s.id, phase)
	p.notify(st)
	return true
}

func (p *Player) current(s *session) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session == s
}

// teardown cancels the current session, waits for it and stops audio
func (p *Player) teardown() {
	p.mu.Lock()
	s := p.session
	p.session = nil
	p.mu.Unlock()

	if s != nil {
		s.cancel()
		<-s.done
	}

	p.audioMu.Lock()
	p.audio.StopAll()
	p.audioMu.Unlock()
}

func (p *Player) setLocked(st State) State {
	p.state = st
	close(p.changed)
	p.changed = make(chan struct{})
	return st
}

func (p *Player) notify(st State) {
	if p.config.OnChange != nil {
		p.config.OnChange(st)
	}
}
