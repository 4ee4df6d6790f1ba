// ABOUTME: Shared HTTP JSON transport for the generation services
// ABOUTME: Adds the API key, retries transient failures and reports request timing
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ObserveFunc receives the outcome of every service call
type ObserveFunc func(op string, elapsed time.Duration, err error)

// APIError is a non-2xx service response
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("service error %d: %s", e.StatusCode, e.Message)
}

type transport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      Backoff
	log        *slog.Logger
	observe    ObserveFunc
}

func newTransport(baseURL, apiKey string, timeout time.Duration, retries int, log *slog.Logger) transport {
	return transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		retry:      defaultBackoff(retries),
		log:        log,
	}
}

func (t *transport) url(path string) string {
	u := t.baseURL + "/" + strings.TrimLeft(path, "/")
	if t.apiKey == "" {
		return u
	}
	return u + "?key=" + url.QueryEscape(t.apiKey)
}

// do sends body (nil for GET) and decodes the JSON response into out
func (t *transport) do(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
	}

	start := time.Now()
	err := t.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, method, t.url(path), bytes.NewReader(payload))
		if err != nil {
			return Permanent(fmt.Errorf("creating request: %w", err))
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := t.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("sending request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response: %w", err)
		}

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			apiErr := &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
			if transientStatus(resp.StatusCode) {
				t.log.Warn("service call failed, retrying", slog.String("op", op), slog.Int("status", resp.StatusCode))
				return apiErr
			}
			return Permanent(apiErr)
		}

		if err := json.Unmarshal(respBody, out); err != nil {
			return Permanent(fmt.Errorf("decoding response: %w", err))
		}
		return nil
	})

	elapsed := time.Since(start)
	if t.observe != nil {
		t.observe(op, elapsed, err)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	t.log.Debug("service call complete", slog.String("op", op), slog.Duration("elapsed", elapsed))
	return nil
}

// errorMessage extracts {"error":{"message":...}} or falls back to the raw body
func errorMessage(body []byte) string {
	var envelope struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return envelope.Error.Message
	}
	return strings.TrimSpace(string(body))
}
