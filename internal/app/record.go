// ABOUTME: Microphone recording sessions
// ABOUTME: Streams capture to the live speech service and plays its replies
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/greetcast/greetcast-go/internal/discovery"
	"github.com/greetcast/greetcast-go/internal/transcribe"
	"github.com/greetcast/greetcast-go/internal/version"
	"github.com/greetcast/greetcast-go/pkg/audio/decode"
	"github.com/greetcast/greetcast-go/pkg/capture"
	"github.com/greetcast/greetcast-go/pkg/protocol"
)

// RecordEvents receives progress from a recording session. Callbacks run
// on session goroutines and must not block.
type RecordEvents struct {
	OnConnected  func(url string)
	OnFrame      func(frames, dropped int, recorded time.Duration, level float64)
	OnTranscript func(role, text string)
}

// RecordOptions configures one recording session
type RecordOptions struct {
	// Duration stops the session automatically; zero records until cancelled
	Duration time.Duration

	// Live streams audio to the speech service
	Live bool

	// ClipPath saves the recording as WAV when set
	ClipPath string

	Events RecordEvents
}

// RecordResult summarizes a finished session
type RecordResult struct {
	Frames   int
	Dropped  int
	Duration time.Duration

	// Transcript is filled by the fallback transcriber when the live
	// session failed or was not used
	Transcript string

	// Err is the session error, if any; the samples are still kept
	Err error
}

// Recorder owns the pipeline of one recording session
type Recorder struct {
	app      *App
	opts     RecordOptions
	pipeline *capture.Pipeline
	live     *protocol.LiveClient
	cancel   context.CancelFunc
	relayed  chan struct{}
}

// StartRecording opens the capture source and, for live sessions, the
// speech session. Call Wait to finish.
func (a *App) StartRecording(ctx context.Context, opts RecordOptions) (*Recorder, error) {
	source, err := a.captureSource()
	if err != nil {
		return nil, err
	}

	pipeline := capture.New(source, capture.Config{
		SampleRate: a.cfg.Capture.SampleRate,
		FrameSize:  a.cfg.Capture.FrameSize,
		QueueSize:  a.cfg.Capture.QueueSize,
	})

	ctx, cancel := context.WithCancel(ctx)
	if opts.Duration > 0 {
		ctx, cancel = withDuration(ctx, cancel, opts.Duration)
	}

	r := &Recorder{app: a, opts: opts, pipeline: pipeline, cancel: cancel}
	pipeline.SetHooks(capture.Hooks{
		OnFrame: r.onFrame,
		OnDrop:  a.metrics.RecordDrop,
	})

	if opts.Live {
		live, url, err := a.connectLive(ctx)
		if err != nil {
			a.log.Warn("live session unavailable, recording offline", slog.Any("error", err))
		} else {
			r.live = live
			pipeline.Attach(live)
			r.relayed = make(chan struct{})
			go r.relay(ctx)
			if opts.Events.OnConnected != nil {
				opts.Events.OnConnected(url)
			}
		}
	}

	if err := pipeline.Start(ctx); err != nil {
		cancel()
		if r.live != nil {
			r.live.Close()
			<-r.relayed
		}
		return nil, err
	}

	a.log.Info("recording started", slog.Bool("live", r.live != nil), slog.Duration("limit", opts.Duration))
	return r, nil
}

func withDuration(ctx context.Context, cancel context.CancelFunc, d time.Duration) (context.Context, context.CancelFunc) {
	tctx, tcancel := context.WithTimeout(ctx, d)
	return tctx, func() {
		tcancel()
		cancel()
	}
}

// Stop ends the session early
func (r *Recorder) Stop() {
	r.cancel()
}

// Wait blocks until the session ends, then saves the clip and runs the
// fallback transcriber when needed
func (r *Recorder) Wait(ctx context.Context) (RecordResult, error) {
	select {
	case <-r.pipeline.Done():
	case <-ctx.Done():
		r.pipeline.Stop()
	}
	r.cancel()
	if r.relayed != nil {
		<-r.relayed
	}

	res := RecordResult{
		Frames:   r.pipeline.Frames(),
		Dropped:  r.pipeline.Dropped(),
		Duration: time.Duration(len(r.pipeline.Samples())) * time.Second / time.Duration(r.pipeline.SampleRate()),
		Err:      r.pipeline.Err(),
	}

	a := r.app
	a.log.Info("recording finished",
		slog.Int("frames", res.Frames),
		slog.Int("dropped", res.Dropped),
		slog.Duration("duration", res.Duration),
		slog.Any("error", res.Err))

	if r.opts.ClipPath != "" {
		if err := r.saveClip(r.opts.ClipPath); err != nil {
			return res, err
		}
	}

	if r.live == nil || res.Err != nil {
		text, err := r.transcribeClip(ctx)
		switch {
		case errors.Is(err, transcribe.ErrDisabled):
		case err != nil:
			a.log.Warn("fallback transcription failed", slog.Any("error", err))
		default:
			res.Transcript = text
			if r.opts.Events.OnTranscript != nil && text != "" {
				r.opts.Events.OnTranscript("user", text)
			}
		}
	}

	return res, nil
}

func (r *Recorder) onFrame(frame []float32) {
	r.app.metrics.RecordFrame(frame)

	if r.opts.Events.OnFrame == nil {
		return
	}

	var sum float64
	for _, s := range frame {
		sum += float64(s) * float64(s)
	}
	level := 0.0
	if len(frame) > 0 {
		level = math.Sqrt(sum / float64(len(frame)))
	}

	frames := r.pipeline.Frames()
	recorded := time.Duration(frames*len(frame)) * time.Second / time.Duration(r.pipeline.SampleRate())
	r.opts.Events.OnFrame(frames, r.pipeline.Dropped(), recorded, level)
}

// relay plays model audio as it arrives and stops playback on barge-in
func (r *Recorder) relay(ctx context.Context) {
	defer close(r.relayed)

	a := r.app
	live := r.live
	for {
		select {
		case frame := <-live.Audio:
			rate, err := frame.Rate()
			if err != nil {
				rate = a.cfg.Speech.SampleRate
			}
			buf, err := decode.FromEncoded(frame.Data, rate, 1)
			if err != nil {
				a.log.Warn("dropping malformed model audio", slog.Any("error", err))
				continue
			}
			if _, err := a.output.Enqueue(buf); err != nil {
				a.log.Warn("failed to schedule model audio", slog.Any("error", err))
			}

		case <-live.Interrupted:
			a.output.StopAll()

		case t := <-live.Transcripts:
			if r.opts.Events.OnTranscript != nil {
				r.opts.Events.OnTranscript(t.Role, t.Text)
			}

		case <-live.Done():
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Recorder) saveClip(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create clip: %w", err)
	}
	defer f.Close()

	if err := r.pipeline.Clip(f); err != nil {
		return fmt.Errorf("write clip: %w", err)
	}
	r.app.log.Info("clip saved", slog.String("path", path))
	return nil
}

func (r *Recorder) transcribeClip(ctx context.Context) (string, error) {
	if !r.app.transcribe.Enabled() {
		return "", transcribe.ErrDisabled
	}
	if len(r.pipeline.Samples()) == 0 {
		return "", nil
	}

	var buf writeSeekBuffer
	if err := r.pipeline.Clip(&buf); err != nil {
		return "", err
	}
	return r.app.transcribe.Transcribe(ctx, bytes.NewReader(buf.Bytes()))
}

// captureSource picks the microphone backend from config
func (a *App) captureSource() (capture.Source, error) {
	switch a.cfg.Capture.Source {
	case "malgo", "":
		return capture.NewMalgoSource(), nil
	case "portaudio":
		return capture.NewPortAudioSource(), nil
	case "file":
		src, err := capture.NewWAVSource(a.cfg.Capture.File, a.cfg.Capture.SampleRate)
		if err != nil {
			return nil, &capture.CaptureUnavailableError{Err: err}
		}
		src.Paced = !a.virtual
		return src, nil
	default:
		return nil, fmt.Errorf("unknown capture source %q", a.cfg.Capture.Source)
	}
}

// connectLive opens a live speech session, discovering a gateway on the
// local network when no URL is configured
func (a *App) connectLive(ctx context.Context) (*protocol.LiveClient, string, error) {
	url := a.cfg.Speech.LiveURL
	if url == "" {
		if !a.cfg.Discovery.Enabled {
			return nil, "", errors.New("no live speech URL configured")
		}
		mgr := discovery.NewManager(discovery.Config{
			Service: a.cfg.Discovery.Service,
			Timeout: time.Duration(a.cfg.Discovery.TimeoutMS) * time.Millisecond,
		})
		defer mgr.Stop()

		gw, err := mgr.Find(ctx)
		if err != nil {
			return nil, "", err
		}
		url = gw.URL()
	}

	live := protocol.NewLiveClient(protocol.Config{
		URL:               url,
		APIKey:            a.cfg.Speech.APIKey,
		Model:             a.cfg.Speech.LiveModel,
		Voice:             a.cfg.Speech.Voice,
		SystemInstruction: a.cfg.Speech.SystemInstruction,
	})
	if err := live.Connect(ctx); err != nil {
		return nil, "", err
	}
	a.log.Info("live session connected",
		slog.String("url", url),
		slog.String("session", live.SessionID()),
		slog.String("client", version.String()))
	return live, url, nil
}

// writeSeekBuffer is an in-memory io.WriteSeeker for WAV encoding
type writeSeekBuffer struct {
	buf []byte
	pos int
}

func (w *writeSeekBuffer) Write(p []byte) (int, error) {
	if need := w.pos + len(p); need > len(w.buf) {
		w.buf = append(w.buf, make([]byte, need-len(w.buf))...)
	}
	n := copy(w.buf[w.pos:], p)
	w.pos += n
	return n, nil
}

func (w *writeSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(w.pos) + offset
	case io.SeekEnd:
		next = int64(len(w.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	w.pos = int(next)
	return next, nil
}

func (w *writeSeekBuffer) Bytes() []byte {
	return w.buf
}
