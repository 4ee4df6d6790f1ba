// ABOUTME: Playable greeting video resource
// ABOUTME: Ready once cached locally, played silently through an external player
package media

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/exec"
	"sync"
)

// ErrNoPlayer is returned when no player command is configured
var ErrNoPlayer = errors.New("no video player command configured")

// Video is a cached video played by an external command.
// The audio track is never played; speech is scheduled separately.
type Video struct {
	uri     string
	command []string

	ready  chan struct{}
	ended  chan struct{}
	failed chan error

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	path    string
	cmd     *exec.Cmd
	started bool
	closed  bool
}

// Open starts fetching uri into cache and returns immediately.
// command is the player argv; the local file path is appended.
func Open(ctx context.Context, cache *Cache, uri string, command []string) *Video {
	ctx, cancel := context.WithCancel(ctx)
	v := &Video{
		uri:     uri,
		command: command,
		ready:   make(chan struct{}),
		ended:   make(chan struct{}),
		failed:  make(chan error, 1),
		ctx:     ctx,
		cancel:  cancel,
	}

	go func() {
		path, err := cache.Fetch(ctx, uri)
		if err != nil {
			v.fail(fmt.Errorf("load video: %w", err))
			return
		}
		v.mu.Lock()
		v.path = path
		v.mu.Unlock()
		close(v.ready)
	}()

	return v
}

func (v *Video) Ready() <-chan struct{} { return v.ready }

func (v *Video) Ended() <-chan struct{} { return v.ended }

func (v *Video) Failed() <-chan error { return v.failed }

// Path returns the local file once ready
func (v *Video) Path() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.path
}

// Play launches the player. It may be called before Ready, in which case the
// player starts as soon as the file is cached.
func (v *Video) Play(ctx context.Context) error {
	if len(v.command) == 0 {
		return ErrNoPlayer
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return errors.New("video closed")
	}
	if v.started {
		v.mu.Unlock()
		return nil
	}
	v.started = true
	v.mu.Unlock()

	go v.run()
	return nil
}

func (v *Video) run() {
	select {
	case <-v.ready:
	case <-v.ctx.Done():
		return
	}

	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	args := append(append([]string{}, v.command[1:]...), v.path)
	cmd := exec.CommandContext(v.ctx, v.command[0], args...)
	if err := cmd.Start(); err != nil {
		v.mu.Unlock()
		v.fail(fmt.Errorf("start player: %w", err))
		return
	}
	v.cmd = cmd
	v.mu.Unlock()

	log.Printf("Video player started: %s (pid %d)", v.path, cmd.Process.Pid)

	err := cmd.Wait()
	if v.ctx.Err() != nil {
		return
	}
	if err != nil {
		v.fail(fmt.Errorf("player exited: %w", err))
		return
	}

	log.Printf("Video playback ended: %s", v.path)
	close(v.ended)
}

func (v *Video) fail(err error) {
	log.Printf("Video error: %v", err)
	select {
	case v.failed <- err:
	default:
	}
}

// Close stops the player and any pending download
func (v *Video) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	v.mu.Unlock()

	v.cancel()
	return nil
}
