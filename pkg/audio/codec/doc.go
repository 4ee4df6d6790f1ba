// ABOUTME: Byte codec package for transport-safe audio frames
// ABOUTME: Base64 text encoding plus the audio/pcm MIME descriptor
// Package codec converts raw PCM bytes to and from the text form carried in
// JSON messages and stored greeting records.
//
// Example:
//
//	frame := codec.NewFrame(pcmBytes, 16000)
//	// frame.MimeType == "audio/pcm;rate=16000"
//	raw, err := codec.DecodeBytes(frame.Data)
package codec
