// Package config provides the configuration schema, loader, file watcher, and
// provider registry for the voice input assistant.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Audio       AudioConfig       `yaml:"audio"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Engine      ProviderEntry     `yaml:"engine"`
	Refiner     RefinerConfig     `yaml:"refiner"`
}

// ServerConfig holds the local control listener and logging settings.
type ServerConfig struct {
	// ControlAddr is the TCP address of the local control listener serving
	// health and metrics endpoints (e.g., "127.0.0.1:8090").
	ControlAddr string `yaml:"control_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// AudioConfig holds capture device and stream settings.
type AudioConfig struct {
	// DeviceID selects the input device. Empty means the platform default
	// input device, falling back to the first device with input channels.
	DeviceID string `yaml:"device_id"`

	// SampleRate is the capture rate in Hz. Default: 16000 — the rate
	// whisper models are trained on.
	SampleRate int `yaml:"sample_rate"`

	// FramesPerBuffer is the number of samples delivered per frame.
	// Default: 1024 (64 ms at 16 kHz).
	FramesPerBuffer int `yaml:"frames_per_buffer"`
}

// RecognitionConfig holds the VAD and segmentation tuning knobs.
// Durations are expressed in seconds to keep the YAML readable.
// All values are clamped or defaulted by [Config.Validate]; an out-of-range
// value is never fatal.
type RecognitionConfig struct {
	// VADThreshold is the RMS energy above which a frame counts as voiced.
	// Default: 0.020.
	VADThreshold float64 `yaml:"vad_threshold"`

	// DynamicRecording selects silence-terminated recording. When false,
	// every utterance records exactly AutoRecordingDuration seconds.
	// Default: true.
	DynamicRecording bool `yaml:"dynamic_recording"`

	// AutoRecordingDuration is the fixed-policy recording length in seconds.
	// Default: 2.5.
	AutoRecordingDuration float64 `yaml:"auto_recording_duration"`

	// MinRecordingDuration is the shortest dynamic-policy utterance in
	// seconds. Default: 0.5.
	MinRecordingDuration float64 `yaml:"min_recording_duration"`

	// MaxRecordingDuration is the hard cap on dynamic-policy utterances in
	// seconds. Default: min(AutoRecordingDuration, 10.0).
	MaxRecordingDuration float64 `yaml:"max_recording_duration"`

	// SilenceDurationToStop is how much trailing silence ends a dynamic
	// recording, in seconds. Default: 0.8.
	SilenceDurationToStop float64 `yaml:"silence_duration_to_stop"`

	// CooldownTime is the quiet period after an utterance completes before
	// a new onset may be accepted, in seconds. Default: 0.3.
	CooldownTime float64 `yaml:"cooldown_time"`

	// Language is the BCP-47 language code passed to the transcription
	// engine. Empty means the engine default.
	Language string `yaml:"language"`
}

// MinDuration returns MinRecordingDuration as a time.Duration.
func (r RecognitionConfig) MinDuration() time.Duration {
	return secondsToDuration(r.MinRecordingDuration)
}

// MaxDuration returns MaxRecordingDuration as a time.Duration.
func (r RecognitionConfig) MaxDuration() time.Duration {
	return secondsToDuration(r.MaxRecordingDuration)
}

// AutoDuration returns AutoRecordingDuration as a time.Duration.
func (r RecognitionConfig) AutoDuration() time.Duration {
	return secondsToDuration(r.AutoRecordingDuration)
}

// SilenceToStop returns SilenceDurationToStop as a time.Duration.
func (r RecognitionConfig) SilenceToStop() time.Duration {
	return secondsToDuration(r.SilenceDurationToStop)
}

// Cooldown returns CooldownTime as a time.Duration.
func (r RecognitionConfig) Cooldown() time.Duration {
	return secondsToDuration(r.CooldownTime)
}

func secondsToDuration(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// ProviderEntry is the common configuration block shared by the transcription
// engine and LLM refiner backends. The Name field is used to look up the
// constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered implementation (e.g., "whisper", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the backend's API if any.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the backend's default endpoint. For the "whisper"
	// engine this is the whisper-server address; for "whisper-native" it is
	// unused (set Model to the model file path instead).
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the backend (e.g.,
	// "gpt-4o-mini", or a .bin path for whisper-native).
	Model string `yaml:"model"`

	// Options holds backend-specific configuration values not covered by
	// the standard fields above.
	Options map[string]any `yaml:"options"`
}

// RefinerConfig configures the optional LLM transcript polishing stage.
type RefinerConfig struct {
	// Enabled turns refinement on. When false the raw transcript is
	// delivered directly.
	Enabled bool `yaml:"enabled"`

	ProviderEntry `yaml:",inline"`
}

// Default returns a Config populated with the documented defaults.
// [Load] decodes YAML over this value so absent keys keep their defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ControlAddr: "127.0.0.1:8090",
			LogLevel:    LogInfo,
		},
		Audio: AudioConfig{
			SampleRate:      16000,
			FramesPerBuffer: 1024,
		},
		Recognition: RecognitionConfig{
			VADThreshold:          0.020,
			DynamicRecording:      true,
			AutoRecordingDuration: 2.5,
			MinRecordingDuration:  0.5,
			SilenceDurationToStop: 0.8,
			CooldownTime:          0.3,
		},
		Engine: ProviderEntry{
			Name:    "whisper",
			BaseURL: "http://localhost:8080",
		},
	}
}
