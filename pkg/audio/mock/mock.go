// Package mock provides test doubles for the audio.Capture and audio.Stream
// interfaces.
//
// Use Capture and Stream in unit tests to script frame sequences and inject
// device or read errors without touching a real audio host API. All fields
// are safe to set before the double is handed to the code under test;
// mutating them during a concurrent call is the caller's responsibility.
package mock

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
)

// Compile-time assertions.
var (
	_ audio.Capture = (*Capture)(nil)
	_ audio.Stream  = (*Stream)(nil)
)

// ErrInjected is a ready-made fault for tests that exercise read-error paths.
var ErrInjected = errors.New("mock: injected fault")

// OpenCall records a single invocation of Open.
type OpenCall struct {
	Device          audio.Device
	SampleRate      int
	FramesPerBuffer int
}

// Capture is a mock implementation of audio.Capture.
type Capture struct {
	mu sync.Mutex

	// DeviceList is returned by Devices.
	DeviceList []audio.Device

	// DevicesErr, if non-nil, is returned by Devices instead of DeviceList.
	DevicesErr error

	// OpenStream is returned by Open. When nil, Open returns an empty *Stream.
	OpenStream *Stream

	// OpenErr, if non-nil, is returned by Open.
	OpenErr error

	// OpenCalls records every invocation of Open in order.
	OpenCalls []OpenCall

	// CloseCount is the number of times Close was called.
	CloseCount int
}

// Devices returns DeviceList or DevicesErr.
func (c *Capture) Devices() ([]audio.Device, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.DevicesErr != nil {
		return nil, c.DevicesErr
	}
	return append([]audio.Device(nil), c.DeviceList...), nil
}

// Open records the call and returns OpenStream, OpenErr.
func (c *Capture) Open(dev audio.Device, sampleRate, framesPerBuffer int) (audio.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OpenCalls = append(c.OpenCalls, OpenCall{Device: dev, SampleRate: sampleRate, FramesPerBuffer: framesPerBuffer})
	if c.OpenErr != nil {
		return nil, c.OpenErr
	}
	if c.OpenStream != nil {
		return c.OpenStream, nil
	}
	return NewStream(), nil
}

// Close increments CloseCount.
func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.CloseCount++
	return nil
}

// Reset clears all recorded calls. Thread-safe.
func (c *Capture) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.OpenCalls = nil
	c.CloseCount = 0
}

// Stream is a scripted audio.Stream. Read delivers the scripted frames in
// order; behaviour after the script is exhausted depends on ExhaustedErr:
// when nil, Read blocks until Close is called (mimicking a live microphone
// that has gone quiet at the host level), when non-nil, Read returns that
// error.
type Stream struct {
	mu sync.Mutex

	frames []audio.Frame
	reads  int

	// ReadErrAt injects an error at the given zero-based Read index. The
	// error is wrapped with audio.ErrStreamRead.
	ReadErrAt map[int]error

	// ExhaustedErr, if non-nil, is returned once the scripted frames run out.
	ExhaustedErr error

	// Delay, if positive, paces Read like a live stream: each call sleeps
	// this long before returning its frame. Close interrupts the sleep.
	Delay time.Duration

	closed    chan struct{}
	closeOnce sync.Once
}

// NewStream creates a Stream that will deliver the given frames in order.
func NewStream(frames ...audio.Frame) *Stream {
	return &Stream{
		frames: append([]audio.Frame(nil), frames...),
		closed: make(chan struct{}),
	}
}

// Append adds more frames to the script.
func (s *Stream) Append(frames ...audio.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frames...)
}

// Read implements audio.Stream.
func (s *Stream) Read() (audio.Frame, error) {
	select {
	case <-s.closed:
		return audio.Frame{}, fmt.Errorf("mock: stream closed: %w", audio.ErrStreamRead)
	default:
	}

	s.mu.Lock()
	delay := s.Delay
	s.mu.Unlock()
	if delay > 0 {
		t := time.NewTimer(delay)
		select {
		case <-s.closed:
			t.Stop()
			return audio.Frame{}, fmt.Errorf("mock: stream closed: %w", audio.ErrStreamRead)
		case <-t.C:
		}
	}

	s.mu.Lock()
	idx := s.reads
	if s.ReadErrAt != nil {
		if err, ok := s.ReadErrAt[idx]; ok {
			s.reads++
			s.mu.Unlock()
			return audio.Frame{}, fmt.Errorf("mock: %w: %w", audio.ErrStreamRead, err)
		}
	}
	if idx < len(s.frames) {
		f := s.frames[idx]
		s.reads++
		s.mu.Unlock()
		return f, nil
	}
	exhausted := s.ExhaustedErr
	s.mu.Unlock()

	if exhausted != nil {
		return audio.Frame{}, exhausted
	}

	// Script exhausted: block until Close like a quiet live stream.
	<-s.closed
	return audio.Frame{}, fmt.Errorf("mock: stream closed: %w", audio.ErrStreamRead)
}

// Reads returns the number of Read calls made so far.
func (s *Stream) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

// Close implements audio.Stream. Idempotent.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

// Closed reports whether Close has been called.
func (s *Stream) Closed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}
