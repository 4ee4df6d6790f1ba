// ABOUTME: Greeting studio application wiring
// ABOUTME: Builds the output device, store, service clients, sync player and metrics from config
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/greetcast/greetcast-go/internal/config"
	"github.com/greetcast/greetcast-go/internal/genai"
	"github.com/greetcast/greetcast-go/internal/media"
	"github.com/greetcast/greetcast-go/internal/metrics"
	"github.com/greetcast/greetcast-go/internal/store"
	"github.com/greetcast/greetcast-go/internal/transcribe"
	"github.com/greetcast/greetcast-go/pkg/audio"
	"github.com/greetcast/greetcast-go/pkg/audio/output"
	"github.com/greetcast/greetcast-go/pkg/avsync"
	"github.com/greetcast/greetcast-go/pkg/player"
)

// Options adjusts how the app is built
type Options struct {
	// VirtualAudio replaces the sound card with a clock-driven device
	VirtualAudio bool

	// OnSync observes every sync player state change
	OnSync func(avsync.State)
}

// volumeControl is implemented by devices with a software mixer
type volumeControl interface {
	SetVolume(volume int)
	SetMuted(muted bool)
}

// App owns the long-lived components of one process
type App struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	device output.Device
	output *player.Output
	sync   *avsync.Player

	store      *store.Store
	speech     *genai.SpeechClient
	video      *genai.VideoClient
	transcribe *transcribe.Client
	cache      *media.Cache

	virtual bool
	onSync  func(avsync.State)
	last    *syncRequest
}

// New builds the app. The audio device opens on first playback.
func New(ctx context.Context, cfg config.Config, log *slog.Logger, opts Options) (*App, error) {
	ctx, cancel := context.WithCancel(ctx)

	a := &App{
		cfg:     cfg,
		log:     log,
		metrics: metrics.New(),
		ctx:     ctx,
		cancel:  cancel,
		virtual: opts.VirtualAudio || cfg.Playback.Device == "virtual",
		onSync:  opts.OnSync,
	}

	st, err := store.Open(ctx, cfg.Store, log.With(slog.String("component", "store")))
	if err != nil {
		cancel()
		return nil, err
	}
	a.store = st

	cache, err := media.NewCache(cfg.Media.CacheDir, cfg.Video.APIKey)
	if err != nil {
		cancel()
		st.Close()
		return nil, err
	}
	a.cache = cache

	a.speech = genai.NewSpeechClient(cfg.Speech, log.With(slog.String("component", "speech")))
	a.speech.SetObserver(a.metrics.ObserveService)
	a.video = genai.NewVideoClient(cfg.Video, log.With(slog.String("component", "video")))
	a.video.SetObserver(a.metrics.ObserveService)
	a.transcribe = transcribe.New(cfg.Transcribe)

	a.output = player.NewOutput(a.openDevice, player.Hooks{
		OnEnqueue: func(h player.Handle) {
			a.metrics.RecordScheduled(h.EndAt - h.StartAt)
		},
		OnStopAll: a.metrics.RecordStopAll,
	})

	a.sync = avsync.New(a.output, avsync.Config{
		ReadyTimeout: cfg.ReadyTimeout(),
		OnChange:     a.syncChanged,
	})

	if cfg.Metrics.Bind != "" {
		go func() {
			if err := a.metrics.Serve(ctx, cfg.Metrics.Bind, log); err != nil {
				log.Error("metrics server failed", slog.Any("error", err))
			}
		}()
	}

	log.Info("app ready",
		slog.String("store", cfg.Store.Path),
		slog.Bool("virtual_audio", a.virtual),
		slog.Duration("ready_timeout", cfg.ReadyTimeout()))

	return a, nil
}

// openDevice creates the process-wide output device
func (a *App) openDevice() (output.Device, error) {
	format := audio.Format{SampleRate: a.cfg.Playback.SampleRate, Channels: a.cfg.Playback.Channels}

	if a.virtual {
		dev := output.NewVirtual(format)
		go dev.Run(a.ctx, 10*time.Millisecond)
		a.setDevice(dev)
		a.log.Info("virtual audio device opened", slog.Int("rate", format.SampleRate))
		return dev, nil
	}

	dev, err := output.NewOto(format)
	if err != nil {
		return nil, err
	}
	dev.SetVolume(a.cfg.Playback.Volume)
	a.setDevice(dev)
	a.log.Info("audio device opened", slog.Int("rate", format.SampleRate), slog.Int("channels", format.Channels))
	return dev, nil
}

func (a *App) syncChanged(st avsync.State) {
	a.metrics.RecordPhase(st.Phase.String())

	attrs := []any{slog.String("phase", st.Phase.String()), slog.Uint64("session", st.Session)}
	switch {
	case st.Err != nil:
		a.log.Warn("sync playback failed", append(attrs, slog.Any("error", st.Err))...)
	case st.Warning != "":
		a.log.Warn("sync playback degraded", append(attrs, slog.String("warning", st.Warning))...)
	default:
		a.log.Debug("sync playback", attrs...)
	}

	a.mu.Lock()
	onSync := a.onSync
	a.mu.Unlock()

	if onSync != nil {
		onSync(st)
	}
}

// SetSyncObserver replaces the sync state observer
func (a *App) SetSyncObserver(fn func(avsync.State)) {
	a.mu.Lock()
	a.onSync = fn
	a.mu.Unlock()
}

func (a *App) setDevice(dev output.Device) {
	a.mu.Lock()
	a.device = dev
	a.mu.Unlock()
}

// SetVolume adjusts the output device volume when it supports it
func (a *App) SetVolume(volume int, muted bool) {
	a.mu.Lock()
	dev := a.device
	a.mu.Unlock()

	if vc, ok := dev.(volumeControl); ok {
		vc.SetVolume(volume)
		vc.SetMuted(muted)
	}
}

// StopAll halts every playing voice
func (a *App) StopAll() {
	a.output.StopAll()
}

// Metrics exposes the registry for the CLI and tests
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Close releases every component
func (a *App) Close() error {
	a.sync.Close()

	var errs []error
	if err := a.output.Close(); err != nil && !errors.Is(err, output.ErrClosed) {
		errs = append(errs, fmt.Errorf("close output: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}

	a.cancel()
	return errors.Join(errs...)
}
