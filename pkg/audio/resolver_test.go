package audio_test

import (
	"errors"
	"testing"

	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
)

func TestResolve_ConfiguredDevicePreferred(t *testing.T) {
	devices := []audio.Device{
		{ID: "0", Name: "Default Mic", MaxInputChannels: 1, IsDefault: true},
		{ID: "3", Name: "USB Mic", MaxInputChannels: 2},
	}

	dev, err := audio.Resolve(devices, "3")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dev.ID != "3" {
		t.Errorf("resolved device %q; want configured device %q", dev.ID, "3")
	}
}

func TestResolve_ConfiguredDeviceMissing_FallsBackToDefault(t *testing.T) {
	devices := []audio.Device{
		{ID: "0", Name: "Line In", MaxInputChannels: 1},
		{ID: "1", Name: "Built-in Mic", MaxInputChannels: 1, IsDefault: true},
	}

	dev, err := audio.Resolve(devices, "99")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dev.ID != "1" {
		t.Errorf("resolved device %q; want default device %q", dev.ID, "1")
	}
}

func TestResolve_NoDefault_PicksFirstInput(t *testing.T) {
	devices := []audio.Device{
		{ID: "7", Name: "Speakers", MaxInputChannels: 0},
		{ID: "8", Name: "Webcam Mic", MaxInputChannels: 1},
		{ID: "9", Name: "Headset Mic", MaxInputChannels: 1},
	}

	dev, err := audio.Resolve(devices, "")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if dev.ID != "8" {
		t.Errorf("resolved device %q; want first input device %q", dev.ID, "8")
	}
}

func TestResolve_OutputOnlyDevices_ReturnsErrNoDevice(t *testing.T) {
	devices := []audio.Device{
		{ID: "7", Name: "Speakers", MaxInputChannels: 0},
	}

	_, err := audio.Resolve(devices, "")
	if !errors.Is(err, audio.ErrNoDevice) {
		t.Fatalf("Resolve error = %v; want ErrNoDevice", err)
	}
}

func TestResolve_EmptyList_ReturnsErrNoDevice(t *testing.T) {
	_, err := audio.Resolve(nil, "")
	if !errors.Is(err, audio.ErrNoDevice) {
		t.Fatalf("Resolve error = %v; want ErrNoDevice", err)
	}
}

func TestFrameDuration(t *testing.T) {
	f := audio.Frame{Samples: make([]float32, 1024), SampleRate: 16000}
	got := f.Duration()
	want := 1024 * 1_000_000 / 16 // 64 ms in microseconds
	if got.Microseconds() != int64(want) {
		t.Errorf("Duration() = %v; want %dµs", got, want)
	}
}

func TestFrameDuration_ZeroSampleRate_IsZero(t *testing.T) {
	f := audio.Frame{Samples: make([]float32, 1024)}
	if d := f.Duration(); d != 0 {
		t.Errorf("Duration() = %v; want 0", d)
	}
}
