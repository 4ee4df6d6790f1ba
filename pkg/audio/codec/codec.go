// ABOUTME: Base64 byte codec and encoded frame type
// ABOUTME: Encodes PCM bytes for JSON transport and parses rate descriptors
package codec

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
)

// PCMMimePrefix is the MIME type prefix for raw PCM16 audio
const PCMMimePrefix = "audio/pcm"

// EncodedFrame is a transport-safe PCM16 payload tagged with its sample rate
type EncodedFrame struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

// NewFrame encodes PCM bytes captured at the given rate
func NewFrame(pcm []byte, sampleRate int) EncodedFrame {
	return EncodedFrame{
		Data:     EncodeBytes(pcm),
		MimeType: MimeType(sampleRate),
	}
}

// Bytes decodes the frame payload
func (f EncodedFrame) Bytes() ([]byte, error) {
	return DecodeBytes(f.Data)
}

// Rate returns the sample rate carried by the MIME descriptor
func (f EncodedFrame) Rate() (int, error) {
	return ParseRate(f.MimeType)
}

// EncodeBytes returns the standard base64 form of data
func EncodeBytes(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBytes reverses EncodeBytes
func DecodeBytes(text string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, &MalformedEncodingError{Err: err}
	}
	return data, nil
}

// MimeType builds the descriptor for PCM16 at sampleRate
func MimeType(sampleRate int) string {
	return fmt.Sprintf("%s;rate=%d", PCMMimePrefix, sampleRate)
}

// ParseRate extracts the rate parameter from an audio/pcm descriptor
func ParseRate(mimeType string) (int, error) {
	parts := strings.Split(mimeType, ";")
	if strings.TrimSpace(parts[0]) != PCMMimePrefix {
		return 0, fmt.Errorf("unsupported mime type: %q", mimeType)
	}

	for _, param := range parts[1:] {
		key, value, ok := strings.Cut(strings.TrimSpace(param), "=")
		if !ok || strings.TrimSpace(key) != "rate" {
			continue
		}
		rate, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || rate <= 0 {
			return 0, fmt.Errorf("invalid rate in mime type %q", mimeType)
		}
		return rate, nil
	}

	return 0, fmt.Errorf("mime type %q has no rate", mimeType)
}
