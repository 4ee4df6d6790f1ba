// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for PCM sample encoders
package encode

// Encoder encodes float samples to wire bytes
type Encoder interface {
	// Encode converts samples in [-1, 1] to encoded audio data
	Encode(samples []float32) ([]byte, error)

	// Close releases encoder resources
	Close() error
}
