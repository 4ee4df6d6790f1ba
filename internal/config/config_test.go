// ABOUTME: Tests for configuration loading
// ABOUTME: Tests defaults, YAML files, env overrides and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Capture.SampleRate != 16000 || cfg.Capture.FrameSize != 4096 {
		t.Fatalf("unexpected capture defaults %+v", cfg.Capture)
	}
	if cfg.Playback.SampleRate != 24000 {
		t.Fatalf("expected 24000 Hz playback, got %d", cfg.Playback.SampleRate)
	}
	if cfg.ReadyTimeout() != 10*time.Second {
		t.Fatalf("expected 10s ready timeout, got %v", cfg.ReadyTimeout())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "greetcast.yaml")
	data := `
playback:
  device: virtual
  channels: 2
sync:
  ready_timeout_ms: 2500
media:
  player_command: ["mpv", "--no-audio"]
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Playback.Device != "virtual" || cfg.Playback.Channels != 2 {
		t.Fatalf("expected playback overrides, got %+v", cfg.Playback)
	}
	if cfg.Playback.SampleRate != 24000 {
		t.Fatalf("expected unset fields to keep defaults, got %d", cfg.Playback.SampleRate)
	}
	if cfg.ReadyTimeout() != 2500*time.Millisecond {
		t.Fatalf("expected 2.5s timeout, got %v", cfg.ReadyTimeout())
	}
	if strings.Join(cfg.Media.PlayerCommand, " ") != "mpv --no-audio" {
		t.Fatalf("unexpected player command %v", cfg.Media.PlayerCommand)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GREETCAST_API_KEY", "shared-key")
	t.Setenv("GREETCAST_VIDEO_API_KEY", "video-key")
	t.Setenv("GREETCAST_CAPTURE_SOURCE", "file")
	t.Setenv("GREETCAST_CAPTURE_FILE", "/tmp/take.wav")
	t.Setenv("GREETCAST_PLAYBACK_VOLUME", "40")
	t.Setenv("GREETCAST_DISCOVERY_ENABLED", "false")
	t.Setenv("GREETCAST_MEDIA_PLAYER_COMMAND", "vlc --no-audio --play-and-exit")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Speech.APIKey != "shared-key" {
		t.Fatalf("expected shared key for speech, got %q", cfg.Speech.APIKey)
	}
	if cfg.Video.APIKey != "video-key" {
		t.Fatalf("expected specific key to win for video, got %q", cfg.Video.APIKey)
	}
	if cfg.Capture.Source != "file" || cfg.Capture.File != "/tmp/take.wav" {
		t.Fatalf("expected capture overrides, got %+v", cfg.Capture)
	}
	if cfg.Playback.Volume != 40 {
		t.Fatalf("expected volume 40, got %d", cfg.Playback.Volume)
	}
	if cfg.Discovery.Enabled {
		t.Fatal("expected discovery disabled")
	}
	if len(cfg.Media.PlayerCommand) != 3 {
		t.Fatalf("expected 3-part player command, got %v", cfg.Media.PlayerCommand)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"bad capture source", func(c *Config) { c.Capture.Source = "tape" }, "capture.source"},
		{"file source without file", func(c *Config) { c.Capture.Source = "file" }, "capture.file"},
		{"bad device", func(c *Config) { c.Playback.Device = "alsa" }, "playback.device"},
		{"too many channels", func(c *Config) { c.Playback.Channels = 6 }, "playback.channels"},
		{"volume out of range", func(c *Config) { c.Playback.Volume = 150 }, "playback.volume"},
		{"zero timeout", func(c *Config) { c.Sync.ReadyTimeoutMS = 0 }, "sync.ready_timeout_ms"},
		{"timeout under poll", func(c *Config) { c.Video.TimeoutMS = 10 }, "video.timeout_ms"},
		{"empty store", func(c *Config) { c.Store.Path = "" }, "store.path"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := validate(cfg)
			if err == nil || !strings.Contains(err.Error(), tt.errMsg) {
				t.Fatalf("expected error mentioning %q, got %v", tt.errMsg, err)
			}
		})
	}

	if err := validate(Default()); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
}
