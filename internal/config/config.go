package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"
)

// Capture backends understood by audio.New.
const (
	BackendPortAudio = "portaudio"
	BackendMalgo     = "malgo"
	BackendPulse     = "pulse"
	BackendFake      = "fake"
)

type Config struct {
	Hotkey       string          `json:"hotkey"`
	HotkeyDarwin string          `json:"hotkey_darwin"`
	Mode         string          `json:"mode"` // "PushToTalk" or "Toggle"
	Audio        AudioConfig     `json:"audio"`
	Recording    RecordingConfig `json:"recording"`
	LogLevel     string          `json:"log_level"`
}

type AudioConfig struct {
	Backend         string `json:"backend"`
	DeviceID        string `json:"device_id"`
	SampleRate      int    `json:"sample_rate"`
	Channels        int    `json:"channels"`
	FramesPerBuffer int    `json:"frames_per_buffer"`
}

type RecordingConfig struct {
	MaxSeconds int      `json:"max_seconds"` // 0 means no limit
	OnComplete []string `json:"on_complete"` // command receiving the artifact on stdin
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Hotkey:       "Alt+Space",
		HotkeyDarwin: "Ctrl+Space",
		Mode:         ModeToggle,
		Audio: AudioConfig{
			Backend:         BackendPortAudio,
			DeviceID:        "",
			SampleRate:      16000,
			Channels:        1,
			FramesPerBuffer: 512,
		},
		LogLevel: "info",
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	return LoadFile(configPath())
}

// LoadFile reads the config at path on top of the defaults and applies the
// CLIP_RECORDER_* environment overrides. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg, err := readFile(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// readFile returns the defaults overlaid with the file at path, without any
// environment overrides.
func readFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return cfg, nil
}

// Update applies change to the config stored at path and writes it back.
// Environment and command-line overrides of the running process are not
// part of the stored config and are never written.
func Update(path string, change func(*Config)) error {
	cfg, err := readFile(path)
	if err != nil {
		return err
	}

	change(cfg)

	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.SaveFile(path)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CLIP_RECORDER_BACKEND"); v != "" {
		cfg.Audio.Backend = v
	}
	if v := os.Getenv("CLIP_RECORDER_DEVICE"); v != "" {
		cfg.Audio.DeviceID = v
	}
	if v := os.Getenv("CLIP_RECORDER_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModePushToTalk, ModeToggle:
	default:
		return fmt.Errorf("unknown mode %q", c.Mode)
	}

	switch strings.ToLower(c.Audio.Backend) {
	case BackendPortAudio, BackendMalgo, BackendPulse, BackendFake:
	default:
		return fmt.Errorf("unknown audio backend %q", c.Audio.Backend)
	}

	if c.Audio.SampleRate <= 0 {
		return fmt.Errorf("sample_rate must be positive, got %d", c.Audio.SampleRate)
	}
	if c.Audio.Channels < 1 || c.Audio.Channels > 8 {
		return fmt.Errorf("channels must be between 1 and 8, got %d", c.Audio.Channels)
	}
	if c.Audio.FramesPerBuffer < 0 {
		return fmt.Errorf("frames_per_buffer must not be negative, got %d", c.Audio.FramesPerBuffer)
	}
	if c.Recording.MaxSeconds < 0 {
		return fmt.Errorf("max_seconds must not be negative, got %d", c.Recording.MaxSeconds)
	}
	return nil
}

// SaveFile writes the config to path, creating its directory.
func (c *Config) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// PlatformHotkey returns the appropriate hotkey for the current platform
func (c *Config) PlatformHotkey() string {
	if runtime.GOOS == "darwin" && c.HotkeyDarwin != "" {
		return c.HotkeyDarwin
	}
	return c.Hotkey
}

// Path returns the config file location for this platform.
func Path() string {
	return configPath()
}

// configPath returns the platform-specific config file path
func configPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, "clip-recorder", "config.json")
}
