// ABOUTME: Decoder interface definition
// ABOUTME: Common interface for PCM payload decoders
package decode

import "github.com/greetcast/greetcast-go/pkg/audio"

// Decoder decodes wire audio into playable buffers
type Decoder interface {
	// Decode converts encoded audio data to a playback buffer
	Decode(data []byte) (audio.Buffer, error)

	// Close releases decoder resources
	Close() error
}
