// ABOUTME: Application configuration
// ABOUTME: Defaults, YAML file loading, GREETCAST_* environment overrides and validation
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type CaptureConfig struct {
	Source     string `yaml:"source"` // malgo, portaudio, file
	File       string `yaml:"file"`
	SampleRate int    `yaml:"sample_rate"`
	FrameSize  int    `yaml:"frame_size"`
	QueueSize  int    `yaml:"queue_size"`
}

type PlaybackConfig struct {
	Device     string `yaml:"device"` // oto, virtual
	SampleRate int    `yaml:"sample_rate"`
	Channels   int    `yaml:"channels"`
	Volume     int    `yaml:"volume"`
}

type SyncConfig struct {
	ReadyTimeoutMS int `yaml:"ready_timeout_ms"`
}

type SpeechConfig struct {
	LiveURL           string `yaml:"live_url"`
	LiveModel         string `yaml:"live_model"`
	Endpoint          string `yaml:"endpoint"`
	Model             string `yaml:"model"`
	APIKey            string `yaml:"api_key"`
	Voice             string `yaml:"voice"`
	SystemInstruction string `yaml:"system_instruction"`
	SampleRate        int    `yaml:"sample_rate"`
	TimeoutMS         int    `yaml:"timeout_ms"`
	MaxRetries        int    `yaml:"max_retries"`
}

type VideoConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Model          string `yaml:"model"`
	APIKey         string `yaml:"api_key"`
	AspectRatio    string `yaml:"aspect_ratio"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	TimeoutMS      int    `yaml:"timeout_ms"`
}

type TranscribeConfig struct {
	Enabled  bool   `yaml:"enabled"`
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Language string `yaml:"language"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

type MediaConfig struct {
	CacheDir      string   `yaml:"cache_dir"`
	PlayerCommand []string `yaml:"player_command"`
}

type DiscoveryConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Service   string `yaml:"service"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

type MetricsConfig struct {
	Bind string `yaml:"bind"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text, json
	File   string `yaml:"file"`
}

type Config struct {
	Capture    CaptureConfig    `yaml:"capture"`
	Playback   PlaybackConfig   `yaml:"playback"`
	Sync       SyncConfig       `yaml:"sync"`
	Speech     SpeechConfig     `yaml:"speech"`
	Video      VideoConfig      `yaml:"video"`
	Transcribe TranscribeConfig `yaml:"transcribe"`
	Store      StoreConfig      `yaml:"store"`
	Media      MediaConfig      `yaml:"media"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	Log        LogConfig        `yaml:"log"`
}

func Default() Config {
	return Config{
		Capture: CaptureConfig{
			Source:     "malgo",
			SampleRate: 16000,
			FrameSize:  4096,
			QueueSize:  32,
		},
		Playback: PlaybackConfig{
			Device:     "oto",
			SampleRate: 24000,
			Channels:   1,
			Volume:     100,
		},
		Sync: SyncConfig{
			ReadyTimeoutMS: 10000,
		},
		Speech: SpeechConfig{
			LiveURL:           "",
			LiveModel:         "gemini-live-2.5-flash-preview",
			Endpoint:          "https://generativelanguage.googleapis.com/v1beta",
			Model:             "gemini-2.5-flash-preview-tts",
			Voice:             "Kore",
			SystemInstruction: "You help the user write a short, warm greeting card message. Keep replies brief.",
			SampleRate:        24000,
			TimeoutMS:         60000,
			MaxRetries:        3,
		},
		Video: VideoConfig{
			Endpoint:       "https://generativelanguage.googleapis.com/v1beta",
			Model:          "veo-3.0-fast-generate-preview",
			AspectRatio:    "16:9",
			PollIntervalMS: 10000,
			TimeoutMS:      600000,
		},
		Transcribe: TranscribeConfig{
			Enabled: false,
			Model:   "whisper-1",
		},
		Store: StoreConfig{
			Path: "./data/greetcast.db",
		},
		Media: MediaConfig{
			CacheDir:      "./data/media",
			PlayerCommand: []string{"ffplay", "-an", "-autoexit", "-loglevel", "error"},
		},
		Discovery: DiscoveryConfig{
			Enabled:   true,
			Service:   "_greetcast-speech._tcp",
			TimeoutMS: 3000,
		},
		Metrics: MetricsConfig{
			Bind: "",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
			File:   "greetcast.log",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ReadyTimeout returns the sync ready timeout as a duration
func (c Config) ReadyTimeout() time.Duration {
	return time.Duration(c.Sync.ReadyTimeoutMS) * time.Millisecond
}

func applyEnvOverrides(cfg *Config) {
	// Shared key for both generation services
	if key, ok := os.LookupEnv("GREETCAST_API_KEY"); ok && strings.TrimSpace(key) != "" {
		cfg.Speech.APIKey = key
		cfg.Video.APIKey = key
	}

	overrideString(&cfg.Capture.Source, "GREETCAST_CAPTURE_SOURCE")
	overrideString(&cfg.Capture.File, "GREETCAST_CAPTURE_FILE")
	overrideInt(&cfg.Capture.SampleRate, "GREETCAST_CAPTURE_SAMPLE_RATE")
	overrideInt(&cfg.Capture.FrameSize, "GREETCAST_CAPTURE_FRAME_SIZE")
	overrideInt(&cfg.Capture.QueueSize, "GREETCAST_CAPTURE_QUEUE_SIZE")
	overrideString(&cfg.Playback.Device, "GREETCAST_PLAYBACK_DEVICE")
	overrideInt(&cfg.Playback.SampleRate, "GREETCAST_PLAYBACK_SAMPLE_RATE")
	overrideInt(&cfg.Playback.Channels, "GREETCAST_PLAYBACK_CHANNELS")
	overrideInt(&cfg.Playback.Volume, "GREETCAST_PLAYBACK_VOLUME")
	overrideInt(&cfg.Sync.ReadyTimeoutMS, "GREETCAST_SYNC_READY_TIMEOUT_MS")
	overrideString(&cfg.Speech.LiveURL, "GREETCAST_SPEECH_LIVE_URL")
	overrideString(&cfg.Speech.LiveModel, "GREETCAST_SPEECH_LIVE_MODEL")
	overrideString(&cfg.Speech.Endpoint, "GREETCAST_SPEECH_ENDPOINT")
	overrideString(&cfg.Speech.Model, "GREETCAST_SPEECH_MODEL")
	overrideString(&cfg.Speech.APIKey, "GREETCAST_SPEECH_API_KEY")
	overrideString(&cfg.Speech.Voice, "GREETCAST_SPEECH_VOICE")
	overrideInt(&cfg.Speech.SampleRate, "GREETCAST_SPEECH_SAMPLE_RATE")
	overrideInt(&cfg.Speech.TimeoutMS, "GREETCAST_SPEECH_TIMEOUT_MS")
	overrideInt(&cfg.Speech.MaxRetries, "GREETCAST_SPEECH_MAX_RETRIES")
	overrideString(&cfg.Video.Endpoint, "GREETCAST_VIDEO_ENDPOINT")
	overrideString(&cfg.Video.Model, "GREETCAST_VIDEO_MODEL")
	overrideString(&cfg.Video.APIKey, "GREETCAST_VIDEO_API_KEY")
	overrideInt(&cfg.Video.PollIntervalMS, "GREETCAST_VIDEO_POLL_INTERVAL_MS")
	overrideInt(&cfg.Video.TimeoutMS, "GREETCAST_VIDEO_TIMEOUT_MS")
	overrideBool(&cfg.Transcribe.Enabled, "GREETCAST_TRANSCRIBE_ENABLED")
	overrideString(&cfg.Transcribe.BaseURL, "GREETCAST_TRANSCRIBE_BASE_URL")
	overrideString(&cfg.Transcribe.APIKey, "GREETCAST_TRANSCRIBE_API_KEY")
	overrideString(&cfg.Transcribe.Model, "GREETCAST_TRANSCRIBE_MODEL")
	overrideString(&cfg.Transcribe.Language, "GREETCAST_TRANSCRIBE_LANGUAGE")
	overrideString(&cfg.Store.Path, "GREETCAST_STORE_PATH")
	overrideString(&cfg.Media.CacheDir, "GREETCAST_MEDIA_CACHE_DIR")
	overrideStringSlice(&cfg.Media.PlayerCommand, "GREETCAST_MEDIA_PLAYER_COMMAND")
	overrideBool(&cfg.Discovery.Enabled, "GREETCAST_DISCOVERY_ENABLED")
	overrideString(&cfg.Discovery.Service, "GREETCAST_DISCOVERY_SERVICE")
	overrideInt(&cfg.Discovery.TimeoutMS, "GREETCAST_DISCOVERY_TIMEOUT_MS")
	overrideString(&cfg.Metrics.Bind, "GREETCAST_METRICS_BIND")
	overrideString(&cfg.Log.Level, "GREETCAST_LOG_LEVEL")
	overrideString(&cfg.Log.Format, "GREETCAST_LOG_FORMAT")
	overrideString(&cfg.Log.File, "GREETCAST_LOG_FILE")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

// overrideStringSlice splits on whitespace, for command lines
func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if fields := strings.Fields(value); len(fields) > 0 {
			*target = fields
		}
	}
}

func validate(cfg Config) error {
	switch cfg.Capture.Source {
	case "malgo", "portaudio":
	case "file":
		if cfg.Capture.File == "" {
			return errors.New("capture.file must be set when source=file")
		}
	default:
		return errors.New("capture.source must be one of malgo|portaudio|file")
	}
	if cfg.Capture.SampleRate <= 0 {
		return errors.New("capture.sample_rate must be positive")
	}
	if cfg.Capture.FrameSize <= 0 {
		return errors.New("capture.frame_size must be positive")
	}
	if cfg.Capture.QueueSize <= 0 {
		return errors.New("capture.queue_size must be >= 1")
	}
	switch cfg.Playback.Device {
	case "oto", "virtual":
	default:
		return errors.New("playback.device must be one of oto|virtual")
	}
	if cfg.Playback.SampleRate <= 0 {
		return errors.New("playback.sample_rate must be positive")
	}
	if cfg.Playback.Channels != 1 && cfg.Playback.Channels != 2 {
		return errors.New("playback.channels must be 1 or 2")
	}
	if cfg.Playback.Volume < 0 || cfg.Playback.Volume > 100 {
		return errors.New("playback.volume must be between 0 and 100")
	}
	if cfg.Sync.ReadyTimeoutMS <= 0 {
		return errors.New("sync.ready_timeout_ms must be positive")
	}
	if cfg.Speech.SampleRate <= 0 {
		return errors.New("speech.sample_rate must be positive")
	}
	if cfg.Speech.MaxRetries < 0 {
		return errors.New("speech.max_retries must be >= 0")
	}
	if cfg.Video.PollIntervalMS <= 0 {
		return errors.New("video.poll_interval_ms must be positive")
	}
	if cfg.Video.TimeoutMS < cfg.Video.PollIntervalMS {
		return errors.New("video.timeout_ms must be at least one poll interval")
	}
	if cfg.Store.Path == "" {
		return errors.New("store.path must not be empty")
	}
	if cfg.Media.CacheDir == "" {
		return errors.New("media.cache_dir must not be empty")
	}
	if len(cfg.Media.PlayerCommand) == 0 {
		return errors.New("media.player_command must not be empty")
	}
	if cfg.Discovery.Enabled && cfg.Discovery.Service == "" {
		return errors.New("discovery.service must not be empty when discovery is enabled")
	}
	switch cfg.Log.Format {
	case "text", "json":
	default:
		return errors.New("log.format must be one of text|json")
	}
	return nil
}
