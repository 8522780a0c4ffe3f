package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileMissingUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Audio.Backend != BackendPortAudio {
		t.Errorf("expected backend %s, got %s", BackendPortAudio, cfg.Audio.Backend)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("expected sample rate 16000, got %d", cfg.Audio.SampleRate)
	}
	if cfg.Mode != ModeToggle {
		t.Errorf("expected mode %s, got %s", ModeToggle, cfg.Mode)
	}
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := Default()
	cfg.Mode = ModePushToTalk
	cfg.Audio.DeviceID = "USB Mic"
	cfg.Recording.MaxSeconds = 90
	cfg.Recording.OnComplete = []string{"cat"}
	if err := cfg.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got.Mode != ModePushToTalk || got.Audio.DeviceID != "USB Mic" || got.Recording.MaxSeconds != 90 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CLIP_RECORDER_BACKEND", BackendFake)
	t.Setenv("CLIP_RECORDER_DEVICE", "hw:1")
	t.Setenv("CLIP_RECORDER_LOG_LEVEL", "debug")

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Audio.Backend != BackendFake || cfg.Audio.DeviceID != "hw:1" || cfg.LogLevel != "debug" {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadFileRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "bad json", body: `{"mode":`},
		{name: "unknown mode", body: `{"mode":"Hold"}`},
		{name: "unknown backend", body: `{"audio":{"backend":"alsa"}}`},
		{name: "zero sample rate", body: `{"audio":{"sample_rate":0}}`},
		{name: "too many channels", body: `{"audio":{"channels":9}}`},
		{name: "negative limit", body: `{"recording":{"max_seconds":-1}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			if err := os.WriteFile(path, []byte(tt.body), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestUpdateKeepsOverridesOutOfFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	stored := Default()
	stored.Audio.DeviceID = "USB Mic"
	if err := stored.SaveFile(path); err != nil {
		t.Fatalf("SaveFile: %v", err)
	}

	t.Setenv("CLIP_RECORDER_BACKEND", BackendFake)
	t.Setenv("CLIP_RECORDER_DEVICE", "hw:1")

	effective, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if effective.Audio.Backend != BackendFake {
		t.Fatalf("expected override backend, got %s", effective.Audio.Backend)
	}

	if err := Update(path, func(c *Config) { c.Mode = ModePushToTalk }); err != nil {
		t.Fatalf("Update: %v", err)
	}

	got, err := readFile(path)
	if err != nil {
		t.Fatalf("readFile: %v", err)
	}
	if got.Mode != ModePushToTalk {
		t.Errorf("expected mode %s, got %s", ModePushToTalk, got.Mode)
	}
	if got.Audio.Backend != BackendPortAudio {
		t.Errorf("override leaked into file: backend %s", got.Audio.Backend)
	}
	if got.Audio.DeviceID != "USB Mic" {
		t.Errorf("override leaked into file: device %s", got.Audio.DeviceID)
	}
}

func TestUpdateRejectsInvalidChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	if err := Update(path, func(c *Config) { c.Mode = "Hold" }); err == nil {
		t.Fatal("expected an error")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("invalid change should not be written, stat err = %v", err)
	}
}
