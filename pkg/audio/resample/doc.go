// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between different sample rates
// Package resample provides audio sample rate conversion.
//
// Uses linear interpolation for converting between sample rates.
// Handles both upsampling and downsampling.
//
// Example:
//
//	r := resample.New(16000, 24000, 1)
//	n := r.Resample(inputSamples, outputSamples)
//
//	converted := resample.Buffer(buf, 24000)
package resample
