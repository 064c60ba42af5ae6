// Package transcribe defines the Engine interface for speech-to-text
// backends.
//
// An engine wraps a local or remote transcription model (e.g. a whisper.cpp
// server or the native whisper.cpp bindings) and exposes a uniform batch
// interface: one finished utterance in, one transcript out. Calls may block
// for seconds and are always made from a worker goroutine, never from the
// capture path.
//
// Implementors must be safe for concurrent use.
package transcribe

import "context"

// Engine is the abstraction over any speech-to-text backend.
type Engine interface {
	// Transcribe converts one utterance of mono float32 PCM (normalised to
	// [-1.0, 1.0]) into text. language is a BCP-47 code such as "en"; an
	// empty string means the engine default. An empty transcript with a nil
	// error is a valid outcome for unintelligible audio.
	//
	// Implementations must respect ctx cancellation promptly.
	Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error)

	// Close releases any resources held by the engine (loaded models,
	// connection pools). The engine is unusable afterwards.
	Close() error
}
