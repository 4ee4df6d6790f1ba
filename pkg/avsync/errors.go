// ABOUTME: Playback error types
// ABOUTME: Wraps failures reported by the video resource
package avsync

import "errors"

// ErrPlaybackResource matches any PlaybackResourceError
var ErrPlaybackResource = errors.New("playback resource failed")

// PlaybackResourceError reports that the video resource failed to load or play
type PlaybackResourceError struct {
	Err error
}

func (e *PlaybackResourceError) Error() string {
	return "playback resource failed: " + e.Err.Error()
}

func (e *PlaybackResourceError) Unwrap() error { return e.Err }

func (e *PlaybackResourceError) Is(target error) bool { return target == ErrPlaybackResource }
