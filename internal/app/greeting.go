// ABOUTME: Greeting creation and playback flows
// ABOUTME: Drafts, synthesizes and stores greetings, then plays them with their video
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/greetcast/greetcast-go/internal/genai"
	"github.com/greetcast/greetcast-go/internal/media"
	"github.com/greetcast/greetcast-go/internal/store"
	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/codec"
	"github.com/greetcast/greetcast-go/pkg/audio/decode"
	"github.com/greetcast/greetcast-go/pkg/avsync"
)

// CreateRequest describes a greeting to create
type CreateRequest struct {
	Occasion string

	// Message is drafted from Details when empty
	Message string
	Details string

	Voice string

	// Image is an optional base64 still for the video
	Image         string
	ImageMimeType string
	ImageRef      string

	WithVideo bool
}

// Create drafts, voices and stores a greeting. Video generation failures
// keep the audio-only record.
func (a *App) Create(ctx context.Context, req CreateRequest) (store.Record, error) {
	if strings.TrimSpace(req.Occasion) == "" {
		return store.Record{}, errors.New("occasion is required")
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		drafted, err := a.speech.WriteMessage(ctx, req.Occasion, req.Details)
		if err != nil {
			return store.Record{}, fmt.Errorf("draft message: %w", err)
		}
		message = drafted
	}

	voice := req.Voice
	if voice == "" {
		voice = a.cfg.Speech.Voice
	}

	audioRef, err := a.speech.Synthesize(ctx, message, voice)
	if err != nil {
		return store.Record{}, fmt.Errorf("synthesize greeting: %w", err)
	}

	rec, err := a.store.Create(ctx, store.Record{
		Occasion: req.Occasion,
		Message:  message,
		ImageRef: req.ImageRef,
		AudioRef: audioRef,
		Voice:    voice,
	})
	if err != nil {
		return store.Record{}, err
	}

	if !req.WithVideo {
		return rec, nil
	}

	uri, err := a.video.Generate(ctx, genai.VideoRequest{
		Prompt:        videoPrompt(req.Occasion, message),
		Audio:         audioRef,
		AudioMimeType: codec.MimeType(a.speech.SampleRate()),
		Image:         req.Image,
		ImageMimeType: req.ImageMimeType,
	})
	if err != nil {
		a.log.Warn("video generation failed, keeping audio-only greeting",
			slog.String("id", rec.ID), slog.Any("error", err))
		return rec, nil
	}

	if err := a.store.SetVideoRef(ctx, rec.ID, uri); err != nil {
		return rec, err
	}
	rec.VideoRef = uri
	return rec, nil
}

func videoPrompt(occasion, message string) string {
	return fmt.Sprintf("A short, joyful, silent greeting card animation for %s. The card reads: %q", occasion, message)
}

// Say synthesizes text and plays it without storing anything
func (a *App) Say(ctx context.Context, text, voice string) error {
	audioRef, err := a.speech.Synthesize(ctx, text, voice)
	if err != nil {
		return err
	}

	buf, err := decode.FromEncoded(audioRef, a.speech.SampleRate(), 1)
	if err != nil {
		return err
	}
	return a.playAudio(ctx, buf)
}

// List returns the newest greetings first
func (a *App) List(ctx context.Context, limit int) ([]store.Record, error) {
	return a.store.List(ctx, limit)
}

// Get returns one greeting
func (a *App) Get(ctx context.Context, id string) (store.Record, error) {
	return a.store.Get(ctx, id)
}

// Delete removes a greeting and its cached video
func (a *App) Delete(ctx context.Context, id string) error {
	rec, err := a.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := a.store.Delete(ctx, id); err != nil {
		return err
	}
	if rec.VideoRef != "" {
		if err := a.cache.Remove(rec.VideoRef); err != nil {
			a.log.Warn("failed to remove cached video", slog.String("id", id), slog.Any("error", err))
		}
	}
	return nil
}

// Play plays a stored greeting, its video in sync when present, and
// returns the final sync state.
func (a *App) Play(ctx context.Context, id string) (avsync.State, error) {
	rec, err := a.store.Get(ctx, id)
	if err != nil {
		return avsync.State{}, err
	}

	var speech audio.Buffer
	if rec.AudioRef != "" {
		speech, err = decode.FromEncoded(rec.AudioRef, a.speech.SampleRate(), 1)
		if err != nil {
			return avsync.State{}, fmt.Errorf("decode greeting audio: %w", err)
		}
	}

	if rec.VideoRef == "" {
		if err := a.playAudio(ctx, speech); err != nil {
			return avsync.State{}, err
		}
		return avsync.State{Phase: avsync.Ended}, nil
	}

	return a.PlaySynced(ctx, rec.VideoRef, speech)
}

type syncRequest struct {
	videoRef string
	speech   audio.Buffer
}

// ErrNothingToRetry is returned by Retry before any synced playback
var ErrNothingToRetry = errors.New("nothing to retry")

// Retry replays the last synced greeting from the start
func (a *App) Retry(ctx context.Context) (avsync.State, error) {
	a.mu.Lock()
	last := a.last
	a.mu.Unlock()

	if last == nil {
		return avsync.State{}, ErrNothingToRetry
	}
	a.sync.Reset()
	return a.PlaySynced(ctx, last.videoRef, last.speech)
}

// PlaySynced plays a video resource with speech and waits for the session to finish
func (a *App) PlaySynced(ctx context.Context, videoRef string, speech audio.Buffer) (avsync.State, error) {
	a.mu.Lock()
	a.last = &syncRequest{videoRef: videoRef, speech: speech}
	a.mu.Unlock()

	video := media.Open(a.ctx, a.cache, videoRef, a.cfg.Media.PlayerCommand)
	if err := a.sync.Request(video, speech); err != nil {
		return avsync.State{}, err
	}

	st, err := a.sync.Wait(ctx)
	if err != nil {
		a.sync.Reset()
		return st, err
	}
	return st, nil
}

// playAudio schedules buf and blocks until it has played
func (a *App) playAudio(ctx context.Context, buf audio.Buffer) error {
	if buf.Frames() == 0 {
		return nil
	}

	h, err := a.output.Enqueue(buf)
	if err != nil {
		return err
	}

	now, err := a.output.Now()
	if err != nil {
		return err
	}

	wait := h.EndAt - now
	a.log.Info("playing speech", slog.Duration("duration", buf.Duration()), slog.Duration("wait", wait))

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		a.output.StopAll()
		return ctx.Err()
	}
}
