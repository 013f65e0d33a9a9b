package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"voicetype/internal/domain"
)

type Config struct {
	Daemon   DaemonConfig   `yaml:"daemon"`
	Audio    AudioConfig    `yaml:"audio"`
	Whisper  WhisperConfig  `yaml:"whisper"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Output   OutputConfig   `yaml:"output"`
	Status   StatusConfig   `yaml:"status"`
	Log      LogConfig      `yaml:"log"`
}

type DaemonConfig struct {
	TriggerKey  string   `yaml:"trigger_key"`
	MinDuration *float64 `yaml:"min_duration"`
	MaxPending  *int     `yaml:"max_pending"`
}

type AudioConfig struct {
	SampleRate      int `yaml:"sample_rate"`
	FramesPerBuffer int `yaml:"frames_per_buffer"`
}

type WhisperConfig struct {
	URL         string `yaml:"url"`
	Model       string `yaml:"model"`
	Language    string `yaml:"language"`
	Timeout     string `yaml:"timeout"`
	StartupWait string `yaml:"startup_wait"`
}

type FeedbackConfig struct {
	BeepEnabled         *bool   `yaml:"beep_enabled"`
	StartFrequency      float64 `yaml:"start_frequency"`
	StopFrequency       float64 `yaml:"stop_frequency"`
	BeepDuration        float64 `yaml:"beep_duration"`
	UseSoundFiles       *bool   `yaml:"beep_use_wav_files"`
	StartSound          string  `yaml:"start_sound"`
	StopSound           string  `yaml:"stop_sound"`
	Notifications       *bool   `yaml:"notifications"`
	NotificationTimeout int     `yaml:"notification_timeout"`
	PreviewLength       int     `yaml:"preview_length"`
}

type OutputConfig struct {
	Method      string   `yaml:"method"`
	PasteDelay  *float64 `yaml:"paste_delay"`
	PasteShift  *bool    `yaml:"paste_shift"`
	TypeCommand []string `yaml:"type_command"`
}

type StatusConfig struct {
	Addr string `yaml:"addr"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultPath is ~/.config/voicetype/config.yaml.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "voicetype", "config.yaml")
}

// Load reads the YAML config at path. An empty path means DefaultPath,
// which may be absent; an explicit path must exist. A .env file next to the
// config is loaded before ${VAR} expansion.
func Load(path string) (*Config, error) {
	optional := path == ""
	if optional {
		path = DefaultPath()
	}

	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", envFile, err)
	}

	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case optional && errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

func (c *Config) setDefaults() {
	if c.Daemon.TriggerKey == "" {
		c.Daemon.TriggerKey = domain.DefaultTriggerKeyName
	}
	if c.Daemon.MinDuration == nil {
		c.Daemon.MinDuration = ptr(0.3)
	}
	if c.Daemon.MaxPending == nil {
		c.Daemon.MaxPending = ptr(8)
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = domain.DefaultSampleRate
	}
	if c.Audio.FramesPerBuffer == 0 {
		c.Audio.FramesPerBuffer = 1024
	}
	if c.Whisper.URL == "" {
		c.Whisper.URL = "http://127.0.0.1:2022"
	}
	if c.Whisper.Model == "" {
		c.Whisper.Model = "whisper-1"
	}
	if c.Whisper.Timeout == "" {
		c.Whisper.Timeout = "30s"
	}
	if c.Whisper.StartupWait == "" {
		c.Whisper.StartupWait = "20s"
	}
	if c.Feedback.BeepEnabled == nil {
		c.Feedback.BeepEnabled = ptr(true)
	}
	if c.Feedback.StartFrequency == 0 {
		c.Feedback.StartFrequency = 800
	}
	if c.Feedback.StopFrequency == 0 {
		c.Feedback.StopFrequency = 400
	}
	if c.Feedback.BeepDuration == 0 {
		c.Feedback.BeepDuration = 0.1
	}
	if c.Feedback.UseSoundFiles == nil {
		c.Feedback.UseSoundFiles = ptr(true)
	}
	if c.Feedback.StartSound == "" {
		c.Feedback.StartSound = filepath.Join(filepath.Dir(DefaultPath()), "sounds", "start.wav")
	}
	if c.Feedback.Notifications == nil {
		c.Feedback.Notifications = ptr(true)
	}
	if c.Feedback.NotificationTimeout == 0 {
		c.Feedback.NotificationTimeout = 5000
	}
	if c.Feedback.PreviewLength == 0 {
		c.Feedback.PreviewLength = 50
	}
	if c.Output.Method == "" {
		c.Output.Method = "auto"
	}
	if c.Output.PasteDelay == nil {
		c.Output.PasteDelay = ptr(0.15)
	}
	if c.Output.PasteShift == nil {
		c.Output.PasteShift = ptr(true)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

func (c *Config) validate() error {
	if *c.Daemon.MinDuration < 0 {
		return fmt.Errorf("daemon.min_duration must not be negative: %v", *c.Daemon.MinDuration)
	}
	if *c.Daemon.MaxPending < 0 {
		return fmt.Errorf("daemon.max_pending must not be negative: %d", *c.Daemon.MaxPending)
	}
	c.Output.Method = strings.ToLower(strings.TrimSpace(c.Output.Method))
	switch c.Output.Method {
	case "auto", "clipboard", "type":
	default:
		return fmt.Errorf("output.method must be auto, clipboard or type: %q", c.Output.Method)
	}
	if _, err := time.ParseDuration(c.Whisper.Timeout); err != nil {
		return fmt.Errorf("parsing whisper.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Whisper.StartupWait); err != nil {
		return fmt.Errorf("parsing whisper.startup_wait: %w", err)
	}
	return nil
}

// TriggerKey resolves daemon.trigger_key. ok is false when the name is
// unknown and the default key was substituted.
func (c *Config) TriggerKey() (key domain.TriggerKey, ok bool) {
	if key, ok := domain.LookupTriggerKey(c.Daemon.TriggerKey); ok {
		return key, true
	}
	return domain.DefaultTriggerKey(), false
}

func (c *Config) MinDuration() time.Duration {
	return seconds(*c.Daemon.MinDuration)
}

func (c *Config) MaxPending() int {
	return *c.Daemon.MaxPending
}

func (c *Config) PasteDelay() time.Duration {
	return seconds(*c.Output.PasteDelay)
}

func (c *Config) BeepDuration() time.Duration {
	return seconds(c.Feedback.BeepDuration)
}

func (c *Config) NotificationTimeout() time.Duration {
	return time.Duration(c.Feedback.NotificationTimeout) * time.Millisecond
}

func (c *Config) WhisperTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Whisper.Timeout)
	return d
}

func (c *Config) StartupWait() time.Duration {
	d, _ := time.ParseDuration(c.Whisper.StartupWait)
	return d
}

func (c *Config) OutputMethod() string {
	return c.Output.Method
}

// SoundFiles returns the start and stop WAV files, or empty paths when
// sound files are disabled.
func (c *Config) SoundFiles() (start, stop string) {
	if !*c.Feedback.UseSoundFiles {
		return "", ""
	}
	return c.Feedback.StartSound, c.Feedback.StopSound
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func ptr[T any](v T) *T {
	return &v
}
