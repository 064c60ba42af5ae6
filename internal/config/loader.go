package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known backend names per provider kind.
// Used by [Config.Validate] to warn about unrecognised names.
var ValidProviderNames = map[string][]string{
	"engine":  {"whisper", "whisper-native"},
	"refiner": {"openai", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
}

// maxVADThreshold bounds vad_threshold. RMS energy of normalised samples
// cannot exceed 1.0, so any larger threshold would classify everything as
// silence forever.
const maxVADThreshold = 1.0

// Load reads the YAML configuration file at path, applies environment
// overrides, and returns a validated [Config]. Absent keys keep the
// [Default] values.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults, applies
// environment overrides, and validates the result. Useful in tests where
// configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets the environment win over YAML for the handful of
// settings that are commonly deployment-specific or secret.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOICEINPUT_WHISPER_URL"); v != "" {
		cfg.Engine.BaseURL = v
	}
	if v := os.Getenv("VOICEINPUT_WHISPER_MODEL"); v != "" {
		cfg.Engine.Model = v
	}
	if v := os.Getenv("VOICEINPUT_DEVICE_ID"); v != "" {
		cfg.Audio.DeviceID = v
	}
	if v := os.Getenv("VOICEINPUT_LANGUAGE"); v != "" {
		cfg.Recognition.Language = v
	}
	if cfg.Refiner.APIKey == "" {
		cfg.Refiner.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// Validate checks cfg for coherence. Out-of-range tuning values are clamped
// or reset to their defaults with a warning rather than rejected, so a
// hand-edited config can never brick the dictation pipeline. Only a missing
// engine name — which leaves nothing to transcribe with — is an error.
func (cfg *Config) Validate() error {
	var errs []error

	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		slog.Warn("invalid log level, using info",
			"log_level", cfg.Server.LogLevel)
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}

	cfg.validateAudio()
	cfg.validateRecognition()

	if cfg.Engine.Name == "" {
		errs = append(errs, errors.New("engine.name is required"))
	}
	validateProviderName("engine", cfg.Engine.Name)

	if cfg.Refiner.Enabled && cfg.Refiner.Name == "" {
		slog.Warn("refiner.enabled is set but refiner.name is empty; disabling refinement")
		cfg.Refiner.Enabled = false
	}
	if cfg.Refiner.Enabled {
		validateProviderName("refiner", cfg.Refiner.Name)
	}

	return errors.Join(errs...)
}

// validateAudio resets impossible audio values to their defaults.
func (cfg *Config) validateAudio() {
	if cfg.Audio.SampleRate <= 0 {
		slog.Warn("audio.sample_rate must be positive, using default",
			"sample_rate", cfg.Audio.SampleRate, "default", 16000)
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.FramesPerBuffer <= 0 {
		slog.Warn("audio.frames_per_buffer must be positive, using default",
			"frames_per_buffer", cfg.Audio.FramesPerBuffer, "default", 1024)
		cfg.Audio.FramesPerBuffer = 1024
	}
}

// validateRecognition clamps the segmentation knobs into sane ranges.
func (cfg *Config) validateRecognition() {
	r := &cfg.Recognition

	if r.VADThreshold <= 0 || r.VADThreshold > maxVADThreshold {
		slog.Warn("recognition.vad_threshold out of range (0, 1], using default",
			"vad_threshold", r.VADThreshold, "default", 0.020)
		r.VADThreshold = 0.020
	}
	if r.AutoRecordingDuration <= 0 {
		slog.Warn("recognition.auto_recording_duration must be positive, using default",
			"auto_recording_duration", r.AutoRecordingDuration, "default", 2.5)
		r.AutoRecordingDuration = 2.5
	}
	if r.MinRecordingDuration <= 0 {
		slog.Warn("recognition.min_recording_duration must be positive, using default",
			"min_recording_duration", r.MinRecordingDuration, "default", 0.5)
		r.MinRecordingDuration = 0.5
	}
	if r.MaxRecordingDuration <= 0 {
		r.MaxRecordingDuration = min(r.AutoRecordingDuration, 10.0)
	}
	if r.MaxRecordingDuration < r.MinRecordingDuration {
		slog.Warn("recognition.max_recording_duration below min_recording_duration, clamping",
			"max_recording_duration", r.MaxRecordingDuration,
			"min_recording_duration", r.MinRecordingDuration)
		r.MaxRecordingDuration = r.MinRecordingDuration
	}
	if r.SilenceDurationToStop <= 0 {
		slog.Warn("recognition.silence_duration_to_stop must be positive, using default",
			"silence_duration_to_stop", r.SilenceDurationToStop, "default", 0.8)
		r.SilenceDurationToStop = 0.8
	}
	if r.CooldownTime < 0 {
		slog.Warn("recognition.cooldown_time must not be negative, using default",
			"cooldown_time", r.CooldownTime, "default", 0.3)
		r.CooldownTime = 0.3
	}
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
