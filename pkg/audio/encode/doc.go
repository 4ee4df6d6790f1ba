// ABOUTME: Audio encoder package
// ABOUTME: Provides the Encoder interface, PCM16 conversion and WAV clips
// Package encode converts float samples into wire formats.
//
// Supports: PCM16 (little-endian) and WAV clips of a whole capture session.
//
// Conversion deliberately does not clamp: a sample s becomes int16(s*32768)
// with 16-bit wraparound. ToPCM16Clamped is available for callers that want
// saturation instead.
//
// Example:
//
//	frame := encode.Frame(samples, 16000)
//	err := encode.WAV(file, allSamples, 16000)
package encode
