// ABOUTME: Microphone capture pipeline package
// ABOUTME: Reads fixed-size frames, accumulates them and streams them to a sink
// Package capture records microphone audio for a greeting session.
//
// A Pipeline reads fixed-size float frames from a Source, appends every
// frame to the session accumulator, and when a Sink is attached converts
// each frame to an encoded PCM16 frame and streams it through a bounded
// queue. A full queue drops the frame from transmission only; the
// accumulator always keeps it.
//
// Example:
//
//	p := capture.New(capture.NewMalgoSource(), capture.Config{})
//	p.Attach(liveClient)
//	if err := p.Start(ctx); err != nil {
//		// *capture.CaptureUnavailableError when the microphone cannot open
//	}
//	...
//	p.Stop()
//	samples := p.Samples()
package capture
