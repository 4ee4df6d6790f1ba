// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and PCM16 sample scaling
// Package audio provides the fundamental audio types shared by the capture,
// codec and playback packages.
//
//   - Format: sample rate and channel count
//   - Buffer: decoded audio as per-channel float32 planes in [-1, 1]
//
// Sample scaling follows the PCM16 convention used on the wire: a float is
// multiplied by 32768 and truncated to int16 (wrapping, never clamping), and
// an int16 is divided by 32768 to go back.
//
// Example:
//
//	buf := audio.Mono(audio.OutputSampleRate, samples)
//	fmt.Println(buf.Duration())
package audio
