// Package mock provides a test double for the transcribe.Engine interface.
//
// Use Engine in unit tests to feed controlled transcripts and verify call
// counts without a live model.
package mock

import (
	"context"
	"sync"

	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/transcribe"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Samples is a copy of the utterance passed to Transcribe.
	Samples []float32

	// SampleRate and Language are the remaining arguments as passed.
	SampleRate int
	Language   string
}

// Engine is a mock implementation of transcribe.Engine.
// Zero values cause methods to return zero values and nil errors.
type Engine struct {
	mu sync.Mutex

	// Text is returned by Transcribe.
	Text string

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Texts, if non-empty, overrides Text: call n returns Texts[n],
	// repeating the final entry once exhausted.
	Texts []string

	// Block, if non-nil, makes Transcribe wait until the channel is closed
	// or ctx is cancelled before returning. Used to simulate a slow model.
	Block chan struct{}

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall

	// CloseCount is the number of times Close was called.
	CloseCount int
}

// Transcribe records the call and returns the scripted text or error.
func (e *Engine) Transcribe(ctx context.Context, samples []float32, sampleRate int, language string) (string, error) {
	e.mu.Lock()
	n := len(e.Calls)
	e.Calls = append(e.Calls, TranscribeCall{
		Samples:    append([]float32(nil), samples...),
		SampleRate: sampleRate,
		Language:   language,
	})
	text := e.Text
	if len(e.Texts) > 0 {
		i := n
		if i >= len(e.Texts) {
			i = len(e.Texts) - 1
		}
		text = e.Texts[i]
	}
	err := e.Err
	block := e.Block
	e.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return text, err
}

// Close increments CloseCount.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.CloseCount++
	return nil
}

// CallCount returns the number of Transcribe invocations so far. Thread-safe.
func (e *Engine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Calls)
}

// Reset clears all recorded calls. Thread-safe.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls = nil
	e.CloseCount = 0
}

// Ensure Engine implements transcribe.Engine at compile time.
var _ transcribe.Engine = (*Engine)(nil)
