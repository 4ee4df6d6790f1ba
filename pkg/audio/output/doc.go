// ABOUTME: Audio output package for playing audio
// ABOUTME: Provides the Device interface with oto and virtual implementations
// Package output provides clocked audio playback devices.
//
// A Device plays each buffer as a voice starting at a given device time.
// Oto renders every voice into one continuous stream positioned in frames,
// so a scheduler can chain buffers without gaps.
//
// Example:
//
//	dev, err := output.NewOto(audio.Format{SampleRate: 24000, Channels: 1})
//	voice, err := dev.Start(buf, dev.Now(), func() { log.Print("done") })
//	voice.Stop()
package output
