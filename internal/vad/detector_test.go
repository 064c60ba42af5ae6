package vad_test

import (
	"math"
	"testing"
	"time"

	"github.com/Yuhamixli/voice-input-assistant/internal/vad"
	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
)

// makeFrame builds a frame of n constant-valued samples at 16 kHz. The RMS
// energy of a constant signal equals the absolute sample value.
func makeFrame(value float32, n int) audio.Frame {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = value
	}
	return audio.Frame{Samples: samples, SampleRate: 16000}
}

func TestEnergy_ConstantSignal(t *testing.T) {
	got := vad.Energy(makeFrame(0.05, 1024).Samples)
	if math.Abs(got-0.05) > 1e-6 {
		t.Errorf("Energy = %v; want 0.05", got)
	}
}

func TestEnergy_SineWave(t *testing.T) {
	// RMS of a full-cycle sine of amplitude A is A/sqrt(2).
	const amplitude = 0.2
	samples := make([]float32, 1600)
	for i := range samples {
		samples[i] = float32(amplitude * math.Sin(2*math.Pi*float64(i)/float64(len(samples))))
	}
	got := vad.Energy(samples)
	want := amplitude / math.Sqrt2
	if math.Abs(got-want) > 1e-3 {
		t.Errorf("Energy = %v; want %v", got, want)
	}
}

func TestEnergy_EmptyFrame_IsZero(t *testing.T) {
	if got := vad.Energy(nil); got != 0 {
		t.Errorf("Energy(nil) = %v; want 0", got)
	}
}

func TestIsVoiced_AboveThreshold(t *testing.T) {
	d := vad.New(0.02)
	if !d.IsVoiced(makeFrame(0.05, 1024)) {
		t.Error("frame with energy 0.05 should be voiced at threshold 0.02")
	}
}

func TestIsVoiced_BelowThreshold(t *testing.T) {
	d := vad.New(0.02)
	if d.IsVoiced(makeFrame(0.01, 1024)) {
		t.Error("frame with energy 0.01 should be silent at threshold 0.02")
	}
}

func TestIsVoiced_ExactlyAtThreshold_IsSilent(t *testing.T) {
	d := vad.New(0.02)
	if d.IsVoiced(makeFrame(0.02, 1024)) {
		t.Error("voiced requires energy strictly above the threshold")
	}
}

func TestConsecutiveSilence_AccumulatesFrameDurations(t *testing.T) {
	d := vad.New(0.02)
	frame := makeFrame(0.0, 1024) // 64 ms at 16 kHz

	for i := 0; i < 5; i++ {
		d.IsVoiced(frame)
	}

	want := 5 * frame.Duration()
	if got := d.ConsecutiveSilence(); got != want {
		t.Errorf("ConsecutiveSilence = %v; want %v", got, want)
	}
}

func TestConsecutiveSilence_ResetByVoicedFrame(t *testing.T) {
	d := vad.New(0.02)

	d.IsVoiced(makeFrame(0.0, 1024))
	d.IsVoiced(makeFrame(0.0, 1024))
	d.IsVoiced(makeFrame(0.05, 1024))

	if got := d.ConsecutiveSilence(); got != 0 {
		t.Errorf("ConsecutiveSilence after voiced frame = %v; want 0", got)
	}
}

func TestReset_ClearsSilenceClock(t *testing.T) {
	d := vad.New(0.02)
	d.IsVoiced(makeFrame(0.0, 1024))
	d.Reset()

	if got := d.ConsecutiveSilence(); got != time.Duration(0) {
		t.Errorf("ConsecutiveSilence after Reset = %v; want 0", got)
	}
}

func TestStopThreshold_IsRatioOfOnset(t *testing.T) {
	d := vad.New(0.02)
	want := 0.02 * vad.StopThresholdRatio
	if got := d.StopThreshold(); math.Abs(got-want) > 1e-9 {
		t.Errorf("StopThreshold = %v; want %v", got, want)
	}
}
