// ABOUTME: Batch speech synthesis and greeting text client
// ABOUTME: Returns synthesized speech as base64 PCM16 ready for storage
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/greetcast/greetcast-go/internal/config"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
)

// ErrEmptyResponse is returned when the service answers without content
var ErrEmptyResponse = errors.New("empty response from service")

type part struct {
	Text       string              `json:"text,omitempty"`
	InlineData *codec.EncodedFrame `json:"inlineData,omitempty"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type speechConfig struct {
	VoiceConfig struct {
		PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
	} `json:"voiceConfig"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities,omitempty"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
	Temperature        float64       `json:"temperature,omitempty"`
	MaxOutputTokens    int           `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []content         `json:"contents"`
	SystemInstruction *content          `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

func (r generateResponse) firstPart() (part, bool) {
	if len(r.Candidates) == 0 || len(r.Candidates[0].Content.Parts) == 0 {
		return part{}, false
	}
	return r.Candidates[0].Content.Parts[0], true
}

// SpeechClient synthesizes greeting speech
type SpeechClient struct {
	transport
	model      string
	voice      string
	sampleRate int
}

// NewSpeechClient creates a speech client from config
func NewSpeechClient(cfg config.SpeechConfig, log *slog.Logger) *SpeechClient {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	return &SpeechClient{
		transport:  newTransport(cfg.Endpoint, cfg.APIKey, timeout, cfg.MaxRetries, log),
		model:      cfg.Model,
		voice:      cfg.Voice,
		sampleRate: cfg.SampleRate,
	}
}

// SetObserver installs a callback for request metrics
func (c *SpeechClient) SetObserver(fn ObserveFunc) {
	c.observe = fn
}

// SampleRate is the PCM rate of synthesized speech
func (c *SpeechClient) SampleRate() int {
	return c.sampleRate
}

// Synthesize speaks text with voice (the configured voice when empty) and
// returns base64 PCM16 mono audio at SampleRate
func (c *SpeechClient) Synthesize(ctx context.Context, text, voice string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("text must not be empty")
	}
	if voice == "" {
		voice = c.voice
	}

	sc := &speechConfig{}
	sc.VoiceConfig.PrebuiltVoiceConfig.VoiceName = voice

	req := generateRequest{
		Contents: []content{{Parts: []part{{Text: text}}}},
		GenerationConfig: &generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig:       sc,
		},
	}

	var resp generateResponse
	path := fmt.Sprintf("models/%s:generateContent", c.model)
	if err := c.do(ctx, "synthesize", http.MethodPost, path, req, &resp); err != nil {
		return "", err
	}

	p, ok := resp.firstPart()
	if !ok || p.InlineData == nil || p.InlineData.Data == "" {
		return "", fmt.Errorf("synthesize: %w", ErrEmptyResponse)
	}

	// Reject payloads that would fail later at playback
	if _, err := codec.DecodeBytes(p.InlineData.Data); err != nil {
		return "", fmt.Errorf("synthesize: %w", err)
	}
	if rate, err := p.InlineData.Rate(); err == nil && rate != c.sampleRate {
		c.log.Warn("synthesized speech rate differs from config",
			slog.Int("rate", rate), slog.Int("expected", c.sampleRate))
	}

	c.log.Info("speech synthesized", slog.String("voice", voice), slog.Int("chars", len(text)))
	return p.InlineData.Data, nil
}

// WriteMessage drafts a short greeting for occasion using details from the user
func (c *SpeechClient) WriteMessage(ctx context.Context, occasion, details string) (string, error) {
	prompt := fmt.Sprintf("Write a warm greeting card message for this occasion: %s.", occasion)
	if details != "" {
		prompt += " Details: " + details
	}

	req := generateRequest{
		SystemInstruction: &content{Parts: []part{{Text: "You write short greeting card messages of two or three sentences. Reply with the message only."}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig:  &generationConfig{Temperature: 0.8, MaxOutputTokens: 200},
	}

	var resp generateResponse
	if err := c.do(ctx, "write_message", http.MethodPost, "models/gemini-2.0-flash:generateContent", req, &resp); err != nil {
		return "", err
	}

	p, ok := resp.firstPart()
	if !ok || strings.TrimSpace(p.Text) == "" {
		return "", fmt.Errorf("write message: %w", ErrEmptyResponse)
	}
	return strings.TrimSpace(p.Text), nil
}
