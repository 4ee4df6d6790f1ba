// ABOUTME: Audio decoder package
// ABOUTME: Provides Decoder interface and the PCM16 implementation
// Package decode turns PCM16 payloads received from the speech services or
// stored in greeting records into playable audio.Buffer values.
//
// Example:
//
//	buf, err := decode.FromPCM16(data, 24000, 1)
//	buf, err = decode.FromEncoded(record.AudioRef, 24000, 1)
package decode
