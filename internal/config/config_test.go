package config_test

import (
	"strings"
	"testing"
	"time"

	"github.com/Yuhamixli/voice-input-assistant/internal/config"
)

const validYAML = `
server:
  control_addr: "127.0.0.1:9999"
  log_level: debug
audio:
  device_id: "2"
  sample_rate: 16000
  frames_per_buffer: 1024
recognition:
  vad_threshold: 0.03
  dynamic_recording: true
  min_recording_duration: 0.5
  max_recording_duration: 5.0
  silence_duration_to_stop: 0.8
  cooldown_time: 0.3
  language: en
engine:
  name: whisper
  base_url: "http://localhost:8080"
refiner:
  enabled: true
  name: openai
  model: gpt-4o-mini
  api_key: sk-test
`

func TestLoadFromReader_ValidConfig(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.ControlAddr != "127.0.0.1:9999" {
		t.Errorf("control_addr = %q; want 127.0.0.1:9999", cfg.Server.ControlAddr)
	}
	if cfg.Server.LogLevel != config.LogDebug {
		t.Errorf("log_level = %q; want debug", cfg.Server.LogLevel)
	}
	if cfg.Audio.DeviceID != "2" {
		t.Errorf("device_id = %q; want 2", cfg.Audio.DeviceID)
	}
	if cfg.Recognition.VADThreshold != 0.03 {
		t.Errorf("vad_threshold = %v; want 0.03", cfg.Recognition.VADThreshold)
	}
	if cfg.Recognition.MaxDuration() != 5*time.Second {
		t.Errorf("MaxDuration = %v; want 5s", cfg.Recognition.MaxDuration())
	}
	if cfg.Engine.Name != "whisper" {
		t.Errorf("engine.name = %q; want whisper", cfg.Engine.Name)
	}
	if !cfg.Refiner.Enabled || cfg.Refiner.Model != "gpt-4o-mini" {
		t.Errorf("refiner = %+v; want enabled gpt-4o-mini", cfg.Refiner)
	}
}

func TestLoadFromReader_AbsentKeysKeepDefaults(t *testing.T) {
	cfg, err := config.LoadFromReader(strings.NewReader("engine:\n  name: whisper\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Recognition.VADThreshold != 0.020 {
		t.Errorf("vad_threshold = %v; want default 0.020", cfg.Recognition.VADThreshold)
	}
	if !cfg.Recognition.DynamicRecording {
		t.Error("dynamic_recording should default to true")
	}
	if cfg.Recognition.AutoRecordingDuration != 2.5 {
		t.Errorf("auto_recording_duration = %v; want default 2.5", cfg.Recognition.AutoRecordingDuration)
	}
	if cfg.Recognition.MinRecordingDuration != 0.5 {
		t.Errorf("min_recording_duration = %v; want default 0.5", cfg.Recognition.MinRecordingDuration)
	}
	if cfg.Recognition.SilenceDurationToStop != 0.8 {
		t.Errorf("silence_duration_to_stop = %v; want default 0.8", cfg.Recognition.SilenceDurationToStop)
	}
	if cfg.Recognition.CooldownTime != 0.3 {
		t.Errorf("cooldown_time = %v; want default 0.3", cfg.Recognition.CooldownTime)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate = %v; want default 16000", cfg.Audio.SampleRate)
	}
	if cfg.Audio.FramesPerBuffer != 1024 {
		t.Errorf("frames_per_buffer = %v; want default 1024", cfg.Audio.FramesPerBuffer)
	}
}

func TestLoadFromReader_MaxDurationDefaultsToAutoCappedAtTen(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want float64
	}{
		{"auto below cap", "engine:\n  name: whisper\nrecognition:\n  auto_recording_duration: 2.5\n", 2.5},
		{"auto above cap", "engine:\n  name: whisper\nrecognition:\n  auto_recording_duration: 30\n", 10.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := config.LoadFromReader(strings.NewReader(tt.yaml))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Recognition.MaxRecordingDuration != tt.want {
				t.Errorf("max_recording_duration = %v; want %v", cfg.Recognition.MaxRecordingDuration, tt.want)
			}
		})
	}
}

func TestLoadFromReader_ClampsOutOfRangeValues(t *testing.T) {
	const badYAML = `
engine:
  name: whisper
server:
  log_level: bananas
recognition:
  vad_threshold: -3
  min_recording_duration: -1
  silence_duration_to_stop: 0
  cooldown_time: -0.5
audio:
  sample_rate: 0
`
	cfg, err := config.LoadFromReader(strings.NewReader(badYAML))
	if err != nil {
		t.Fatalf("out-of-range values must clamp, not fail: %v", err)
	}

	if cfg.Server.LogLevel != config.LogInfo {
		t.Errorf("log_level = %q; want clamped to info", cfg.Server.LogLevel)
	}
	if cfg.Recognition.VADThreshold != 0.020 {
		t.Errorf("vad_threshold = %v; want clamped to 0.020", cfg.Recognition.VADThreshold)
	}
	if cfg.Recognition.MinRecordingDuration != 0.5 {
		t.Errorf("min_recording_duration = %v; want clamped to 0.5", cfg.Recognition.MinRecordingDuration)
	}
	if cfg.Recognition.SilenceDurationToStop != 0.8 {
		t.Errorf("silence_duration_to_stop = %v; want clamped to 0.8", cfg.Recognition.SilenceDurationToStop)
	}
	if cfg.Recognition.CooldownTime != 0.3 {
		t.Errorf("cooldown_time = %v; want clamped to 0.3", cfg.Recognition.CooldownTime)
	}
	if cfg.Audio.SampleRate != 16000 {
		t.Errorf("sample_rate = %v; want clamped to 16000", cfg.Audio.SampleRate)
	}
}

func TestLoadFromReader_MaxClampedUpToMin(t *testing.T) {
	const yamlText = `
engine:
  name: whisper
recognition:
  min_recording_duration: 2.0
  max_recording_duration: 1.0
`
	cfg, err := config.LoadFromReader(strings.NewReader(yamlText))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Recognition.MaxRecordingDuration != 2.0 {
		t.Errorf("max_recording_duration = %v; want clamped to min 2.0", cfg.Recognition.MaxRecordingDuration)
	}
}

func TestLoadFromReader_UnknownFieldFails(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("bogus_key: true\n"))
	if err == nil {
		t.Fatal("expected error for unknown top-level key, got nil")
	}
}

func TestLoadFromReader_MissingEngineNameFails(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("engine:\n  name: \"\"\n"))
	if err == nil {
		t.Fatal("expected error for empty engine.name, got nil")
	}
}

func TestLoadFromReader_RefinerWithoutNameIsDisabled(t *testing.T) {
	const yamlText = `
engine:
  name: whisper
refiner:
  enabled: true
`
	cfg, err := config.LoadFromReader(strings.NewReader(yamlText))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Refiner.Enabled {
		t.Error("refiner without a provider name should be disabled")
	}
}

func TestLoadFromReader_EnvOverrides(t *testing.T) {
	t.Setenv("VOICEINPUT_WHISPER_URL", "http://whisper.internal:8080")
	t.Setenv("VOICEINPUT_DEVICE_ID", "7")
	t.Setenv("VOICEINPUT_LANGUAGE", "de")
	t.Setenv("OPENAI_API_KEY", "sk-env")

	const yamlText = `
engine:
  name: whisper
  base_url: "http://localhost:8080"
refiner:
  enabled: true
  name: openai
`
	cfg, err := config.LoadFromReader(strings.NewReader(yamlText))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Engine.BaseURL != "http://whisper.internal:8080" {
		t.Errorf("engine.base_url = %q; want env override", cfg.Engine.BaseURL)
	}
	if cfg.Audio.DeviceID != "7" {
		t.Errorf("audio.device_id = %q; want env override 7", cfg.Audio.DeviceID)
	}
	if cfg.Recognition.Language != "de" {
		t.Errorf("recognition.language = %q; want env override de", cfg.Recognition.Language)
	}
	if cfg.Refiner.APIKey != "sk-env" {
		t.Errorf("refiner.api_key = %q; want env fallback sk-env", cfg.Refiner.APIKey)
	}
}

func TestLoadFromReader_YAMLAPIKeyWinsOverEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-env")

	const yamlText = `
engine:
  name: whisper
refiner:
  enabled: true
  name: openai
  api_key: sk-yaml
`
	cfg, err := config.LoadFromReader(strings.NewReader(yamlText))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Refiner.APIKey != "sk-yaml" {
		t.Errorf("refiner.api_key = %q; want sk-yaml (explicit key wins)", cfg.Refiner.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load("/nonexistent/config.yaml")
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}
