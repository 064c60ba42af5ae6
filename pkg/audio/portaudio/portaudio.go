// Package portaudio implements the audio.Capture interface on top of the
// PortAudio host API. It owns the library-global Initialize/Terminate pair,
// so at most one Backend should be alive per process.
package portaudio

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
)

// Compile-time assertions.
var (
	_ audio.Capture = (*Backend)(nil)
	_ audio.Stream  = (*stream)(nil)
)

// Backend is the PortAudio-based capture backend.
type Backend struct {
	closeOnce sync.Once
	closeErr  error
}

// New initialises the PortAudio library and returns a ready Backend.
// The caller must call Close when the backend is no longer needed.
func New() (*Backend, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("portaudio: initialize: %w", err)
	}
	return &Backend{}, nil
}

// Devices lists all host devices, inputs and outputs alike. Device IDs are
// the PortAudio device indices rendered as strings, which stay stable for
// the lifetime of the host API instance.
func (b *Backend) Devices() ([]audio.Device, error) {
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}

	var defaultInput *portaudio.DeviceInfo
	if d, err := portaudio.DefaultInputDevice(); err == nil {
		defaultInput = d
	}

	devices := make([]audio.Device, 0, len(infos))
	for i, info := range infos {
		devices = append(devices, audio.Device{
			ID:                strconv.Itoa(i),
			Name:              info.Name,
			MaxInputChannels:  info.MaxInputChannels,
			DefaultSampleRate: info.DefaultSampleRate,
			IsDefault:         defaultInput != nil && info.Name == defaultInput.Name,
		})
	}
	return devices, nil
}

// Open starts a persistent mono input stream on dev. Each Read delivers
// framesPerBuffer samples.
func (b *Backend) Open(dev audio.Device, sampleRate, framesPerBuffer int) (audio.Stream, error) {
	idx, err := strconv.Atoi(dev.ID)
	if err != nil {
		return nil, fmt.Errorf("portaudio: invalid device id %q: %w", dev.ID, err)
	}
	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio: enumerate devices: %w", err)
	}
	if idx < 0 || idx >= len(infos) {
		return nil, fmt.Errorf("portaudio: device id %q out of range: %w", dev.ID, audio.ErrNoDevice)
	}
	info := infos[idx]

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   info,
			Channels: 1,
			Latency:  info.DefaultLowInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}

	buf := make([]float32, framesPerBuffer)
	st, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio: open stream on %q: %w", dev.Name, err)
	}
	if err := st.Start(); err != nil {
		st.Close()
		return nil, fmt.Errorf("portaudio: start stream on %q: %w", dev.Name, err)
	}

	return &stream{st: st, buf: buf, sampleRate: sampleRate, closed: make(chan struct{})}, nil
}

// Close terminates the PortAudio library. Open streams must be closed first.
func (b *Backend) Close() error {
	b.closeOnce.Do(func() {
		b.closeErr = portaudio.Terminate()
	})
	return b.closeErr
}

// stream wraps a running PortAudio input stream. The read buffer is reused
// across Read calls; each frame carries its own copy of the samples.
type stream struct {
	st         *portaudio.Stream
	buf        []float32
	sampleRate int

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

func (s *stream) Read() (audio.Frame, error) {
	if err := s.st.Read(); err != nil {
		select {
		case <-s.closed:
			return audio.Frame{}, fmt.Errorf("portaudio: stream closed: %w", audio.ErrStreamRead)
		default:
		}
		return audio.Frame{}, fmt.Errorf("portaudio: read: %w (%v)", audio.ErrStreamRead, err)
	}

	return audio.Frame{
		Samples:    append([]float32(nil), s.buf...),
		SampleRate: s.sampleRate,
	}, nil
}

func (s *stream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		if err := s.st.Stop(); err != nil {
			s.closeErr = err
		}
		if err := s.st.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
