// Package audio defines the capture-side types shared by the dictation
// pipeline: frames of PCM samples, input devices, and the Capture/Stream
// interfaces implemented by the portaudio backend and by test doubles.
package audio

import (
	"errors"
	"time"
)

// ErrNoDevice is returned when no usable input device can be resolved.
// A session must fail fast on this error instead of attempting to open a
// stream.
var ErrNoDevice = errors.New("audio: no usable input device")

// ErrStreamRead wraps I/O faults reported by a Stream mid-capture. Callers
// treat it as recoverable: the current utterance is aborted, not the process.
var ErrStreamRead = errors.New("audio: stream read")

// Frame is one fixed-size buffer of mono PCM samples. Samples are float32
// values normalised to [-1.0, 1.0]. A Frame handed out by a Stream is owned
// by the caller; implementations must not reuse the backing slice.
type Frame struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the wall time this frame covers.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(f.Samples)) * time.Second / time.Duration(f.SampleRate)
}

// Device describes an enumerable audio input device.
type Device struct {
	// ID uniquely identifies the device for configuration purposes.
	ID string

	// Name is the human-readable device name as reported by the host API.
	Name string

	// MaxInputChannels is the number of input channels the device supports.
	// Devices with zero input channels are outputs and never resolvable.
	MaxInputChannels int

	// DefaultSampleRate is the device's preferred sample rate in Hz.
	DefaultSampleRate float64

	// IsDefault marks the platform default input device.
	IsDefault bool
}

// Stream is an open audio input stream delivering frames one blocking Read
// at a time. Exactly one goroutine may call Read.
type Stream interface {
	// Read blocks until the next frame is available. Errors other than those
	// caused by Close wrap [ErrStreamRead].
	Read() (Frame, error)

	// Close releases the stream. It unblocks a concurrent Read.
	Close() error
}

// Capture is an audio backend: it enumerates input devices and opens
// streams against them.
type Capture interface {
	// Devices lists all currently enumerable input devices.
	Devices() ([]Device, error)

	// Open starts a persistent mono input stream on dev. framesPerBuffer is
	// the number of samples delivered per Read.
	Open(dev Device, sampleRate, framesPerBuffer int) (Stream, error)

	// Close releases the backend and any host-API global state.
	Close() error
}
