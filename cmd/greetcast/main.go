// ABOUTME: Entry point for the greetcast CLI
// ABOUTME: Sets up logging and config, then dispatches cobra subcommands
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/greetcast/greetcast-go/internal/app"
	"github.com/greetcast/greetcast-go/internal/config"
	"github.com/spf13/cobra"
)

var (
	configPath   string
	noTUI        bool
	virtualAudio bool
)

var rootCmd = &cobra.Command{
	Use:   "greetcast",
	Short: "Record, voice and play animated greeting cards",
	Long: `greetcast records spoken greetings, streams them to a live speech
service, synthesizes voiced messages and plays them in sync with a
generated greeting video.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file")
	rootCmd.PersistentFlags().BoolVar(&noTUI, "no-tui", false, "Disable TUI, stream logs to stdout instead")
	rootCmd.PersistentFlags().BoolVar(&virtualAudio, "virtual-audio", false, "Use a clock-driven virtual audio device")

	rootCmd.AddCommand(recordCmd, sayCmd, createCmd, listCmd, playCmd, deleteCmd, versionCmd)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// session holds what every command needs
type session struct {
	cfg     config.Config
	log     *slog.Logger
	app     *app.App
	closeFn func()
}

func (s *session) Close() {
	if s.app != nil {
		if err := s.app.Close(); err != nil {
			s.log.Warn("shutdown error", slog.Any("error", err))
		}
	}
	if s.closeFn != nil {
		s.closeFn()
	}
}

// startSession loads config, configures logging and builds the app.
// tui reports whether the command will draw the TUI.
func startSession(ctx context.Context, tui bool) (*session, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, closeFn, err := setupLogging(cfg.Log, tui)
	if err != nil {
		return nil, err
	}

	a, err := app.New(ctx, cfg, logger, app.Options{VirtualAudio: virtualAudio})
	if err != nil {
		closeFn()
		return nil, err
	}

	return &session{cfg: cfg, log: logger, app: a, closeFn: closeFn}, nil
}

// setupLogging routes the standard logger and slog to the log file, and
// also to stdout unless the TUI owns the terminal
func setupLogging(cfg config.LogConfig, tui bool) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stdout
	closeFn := func() {}

	if cfg.File != "" {
		f, err := os.OpenFile(cfg.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		closeFn = func() { _ = f.Close() }

		if tui {
			out = f
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	} else if tui {
		out = io.Discard
	}

	log.SetOutput(out)

	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(out, opts)
	default:
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler), closeFn, nil
}
