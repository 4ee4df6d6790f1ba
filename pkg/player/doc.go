// ABOUTME: Gapless playback scheduling package
// ABOUTME: Chains buffers back to back on a clocked output device
// Package player schedules decoded speech on an output device.
//
// A Scheduler keeps a playback cursor: each buffer starts at the later of
// the cursor and the device clock, so consecutive buffers play without gaps
// and a buffer arriving after a silence starts immediately. StopAll halts
// everything scheduled so far.
//
// Output wraps a lazily opened device and its Scheduler. Create one per
// process and pass it to every component that plays audio.
//
// Example:
//
//	out := player.NewOutput(func() (output.Device, error) {
//		return output.NewOto(audio.Format{SampleRate: 24000, Channels: 1})
//	})
//	handle, err := out.Enqueue(buf)
//	out.StopAll()
package player
