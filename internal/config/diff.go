package config

import "reflect"

// ConfigDiff describes what changed between two configs, so the reload path
// can decide what to apply live and what needs a session restart.
type ConfigDiff struct {
	// LogLevelChanged is safe to apply immediately.
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RecognitionChanged covers the segmentation knobs; the session picks
	// them up at the next boundary (recording start or session start).
	RecognitionChanged bool

	// AudioChanged covers device and stream settings; applying it requires
	// reopening the capture stream.
	AudioChanged bool

	// EngineChanged and RefinerChanged require reconstructing the backend.
	EngineChanged  bool
	RefinerChanged bool
}

// Any reports whether the diff contains any change at all.
func (d ConfigDiff) Any() bool {
	return d.LogLevelChanged || d.RecognitionChanged || d.AudioChanged ||
		d.EngineChanged || d.RefinerChanged
}

// Diff compares two configs and returns what changed between them.
func Diff(prev, next *Config) ConfigDiff {
	d := ConfigDiff{}

	if prev.Server.LogLevel != next.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = next.Server.LogLevel
	}

	if prev.Recognition != next.Recognition {
		d.RecognitionChanged = true
	}
	if prev.Audio != next.Audio {
		d.AudioChanged = true
	}
	if !providerEntryEqual(prev.Engine, next.Engine) {
		d.EngineChanged = true
	}
	if prev.Refiner.Enabled != next.Refiner.Enabled ||
		!providerEntryEqual(prev.Refiner.ProviderEntry, next.Refiner.ProviderEntry) {
		d.RefinerChanged = true
	}

	return d
}

// providerEntryEqual compares two entries field by field. The Options map
// keeps ProviderEntry from being comparable with ==.
func providerEntryEqual(a, b ProviderEntry) bool {
	return a.Name == b.Name &&
		a.APIKey == b.APIKey &&
		a.BaseURL == b.BaseURL &&
		a.Model == b.Model &&
		reflect.DeepEqual(a.Options, b.Options)
}
