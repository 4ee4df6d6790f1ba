// ABOUTME: Audio/video synchronized playback package
// ABOUTME: Drives a silent video and a speech buffer through one state machine
// Package avsync plays a generated greeting video together with its
// synthesized speech.
//
// A session moves Idle -> Loading -> Buffering -> Playing -> Ended. It
// leaves Loading when the video reports ready or when the ready timeout
// expires, whichever happens first. Audio is scheduled before the video
// starts. A video failure before Ended moves the session to Error and stops
// the audio; recovery is a manual Reset followed by a new Request.
//
// Example:
//
//	p := avsync.New(out, avsync.Config{})
//	p.Request(video, speech)
//	state, err := p.Wait(ctx)
package avsync
