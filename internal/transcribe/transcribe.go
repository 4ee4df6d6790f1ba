// ABOUTME: Offline transcription of recorded greeting clips
// ABOUTME: Sends a WAV clip to an OpenAI-compatible transcription endpoint
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/greetcast/greetcast-go/internal/config"
	openai "github.com/sashabaranov/go-openai"
)

// ErrDisabled is returned when transcription is turned off in config
var ErrDisabled = errors.New("transcription disabled")

// Client transcribes recorded clips
type Client struct {
	client   *openai.Client
	model    string
	language string
	enabled  bool
}

// New creates a transcription client from config
func New(cfg config.TranscribeConfig) *Client {
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	model := cfg.Model
	if model == "" {
		model = openai.Whisper1
	}

	return &Client{
		client:   openai.NewClientWithConfig(oc),
		model:    model,
		language: cfg.Language,
		enabled:  cfg.Enabled,
	}
}

// Enabled reports whether the client will accept requests
func (c *Client) Enabled() bool {
	return c.enabled
}

// Transcribe returns the text spoken in a WAV clip
func (c *Client) Transcribe(ctx context.Context, wav io.Reader) (string, error) {
	if !c.enabled {
		return "", ErrDisabled
	}

	req := openai.AudioRequest{
		Model:    c.model,
		Language: c.language,
		Format:   openai.AudioResponseFormatJSON,
		Reader:   wav,
		FilePath: "greeting.wav",
	}

	resp, err := c.client.CreateTranscription(ctx, req)
	if err != nil {
		return "", fmt.Errorf("failed to transcribe clip: %w", err)
	}

	text := strings.TrimSpace(resp.Text)
	log.Printf("Transcribed clip: %d chars", len(text))
	return text, nil
}
