// ABOUTME: Sync playback phases and observable state
// ABOUTME: Defines the phase enum and the Video and Audio collaborators
package avsync

import (
	"context"

	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/player"
)

// Phase is a step of the sync playback state machine
type Phase int

const (
	Idle Phase = iota
	Loading
	Buffering
	Playing
	Ended
	Error
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether a session in this phase is finished
func (p Phase) Terminal() bool {
	return p == Ended || p == Error
}

// State is a snapshot of the player
type State struct {
	Phase   Phase
	Session uint64

	// Err is set in the Error phase
	Err error

	// Warning is set when audio could not be scheduled but video played
	Warning string
}

// Video is a silent video resource
type Video interface {
	// Ready is closed when the video can start without stalling
	Ready() <-chan struct{}

	// Play starts playback
	Play(ctx context.Context) error

	// Ended is closed when playback completes
	Ended() <-chan struct{}

	// Failed delivers a load or playback error
	Failed() <-chan error

	// Close releases the resource
	Close() error
}

// Audio schedules speech; *player.Output implements it
type Audio interface {
	Enqueue(buf audio.Buffer) (player.Handle, error)
	StopAll()
}
