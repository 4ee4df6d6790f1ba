// ABOUTME: Long-running video generation client
// ABOUTME: Starts a generation operation and polls it until the video URI is ready
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
)

// VideoRequest describes the greeting video to generate
type VideoRequest struct {
	Prompt string

	// Audio is the base64 PCM16 narration the video is timed to
	Audio         string
	AudioMimeType string

	// Image is an optional base64 still to animate
	Image         string
	ImageMimeType string

	AspectRatio string
}

type videoInstance struct {
	Prompt string      `json:"prompt"`
	Audio  *inlineBlob `json:"audio,omitempty"`
	Image  *inlineBlob `json:"image,omitempty"`
}

type inlineBlob struct {
	BytesBase64Encoded string `json:"bytesBase64Encoded"`
	MimeType           string `json:"mimeType"`
}

type videoParameters struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type predictRequest struct {
	Instances  []videoInstance `json:"instances"`
	Parameters videoParameters `json:"parameters"`
}

type operation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// ErrGenerationFailed is returned when the operation finishes with an error
var ErrGenerationFailed = errors.New("video generation failed")

// VideoClient generates greeting videos
type VideoClient struct {
	transport
	model        string
	aspectRatio  string
	pollInterval time.Duration
	timeout      time.Duration
}

// NewVideoClient creates a video client from config
func NewVideoClient(cfg config.VideoConfig, log *slog.Logger) *VideoClient {
	return &VideoClient{
		transport:    newTransport(cfg.Endpoint, cfg.APIKey, 60*time.Second, 2, log),
		model:        cfg.Model,
		aspectRatio:  cfg.AspectRatio,
		pollInterval: time.Duration(cfg.PollIntervalMS) * time.Millisecond,
		timeout:      time.Duration(cfg.TimeoutMS) * time.Millisecond,
	}
}

// SetObserver installs a callback for request metrics
func (c *VideoClient) SetObserver(fn ObserveFunc) {
	c.observe = fn
}

// Generate starts a video generation and waits for its URI
func (c *VideoClient) Generate(ctx context.Context, req VideoRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("prompt must not be empty")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	instance := videoInstance{Prompt: req.Prompt}
	if req.Image != "" {
		mime := req.ImageMimeType
		if mime == "" {
			mime = "image/png"
		}
		instance.Image = &inlineBlob{BytesBase64Encoded: req.Image, MimeType: mime}
	}
	if req.Audio != "" {
		instance.Audio = &inlineBlob{BytesBase64Encoded: req.Audio, MimeType: req.AudioMimeType}
	}

	aspect := req.AspectRatio
	if aspect == "" {
		aspect = c.aspectRatio
	}

	var op operation
	path := fmt.Sprintf("models/%s:predictLongRunning", c.model)
	body := predictRequest{Instances: []videoInstance{instance}, Parameters: videoParameters{AspectRatio: aspect}}
	if err := c.do(ctx, "video_start", http.MethodPost, path, body, &op); err != nil {
		return "", err
	}
	if op.Name == "" {
		return "", fmt.Errorf("video start: %w", ErrEmptyResponse)
	}

	c.log.Info("video generation started", slog.String("operation", op.Name))

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for !op.Done {
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("video generation %s: %w", op.Name, ctx.Err())
		case <-ticker.C:
		}

		name := op.Name
		if err := c.do(ctx, "video_poll", http.MethodGet, name, nil, &op); err != nil {
			return "", err
		}
		if op.Name == "" {
			op.Name = name
		}
		c.log.Debug("video generation polled", slog.String("operation", op.Name), slog.Bool("done", op.Done))
	}

	if op.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrGenerationFailed, op.Error.Message)
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		return "", fmt.Errorf("%w: no video in response", ErrGenerationFailed)
	}

	uri := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	c.log.Info("video generation complete", slog.String("operation", op.Name))
	return uri, nil
}
