package recorder_test

import (
	"context"
	"testing"
	"time"

	"github.com/Yuhamixli/voice-input-assistant/internal/recorder"
	"github.com/Yuhamixli/voice-input-assistant/internal/vad"
	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
)

const (
	sampleRate   = 16000
	frameSamples = 1024
)

var frameDur = time.Duration(frameSamples) * time.Second / sampleRate // 64 ms

// makeFrame builds a frame of constant-valued samples; the RMS energy of a
// constant signal equals the absolute sample value.
func makeFrame(value float32) audio.Frame {
	samples := make([]float32, frameSamples)
	for i := range samples {
		samples[i] = value
	}
	return audio.Frame{Samples: samples, SampleRate: sampleRate}
}

// feed sends voiced then silent frames on a fresh channel and closes it.
func feed(t *testing.T, voiced, silent int) <-chan audio.Frame {
	t.Helper()
	ch := make(chan audio.Frame, voiced+silent)
	for i := 0; i < voiced; i++ {
		ch <- makeFrame(0.05)
	}
	for i := 0; i < silent; i++ {
		ch <- makeFrame(0.0)
	}
	close(ch)
	return ch
}

func dynamicPolicy() recorder.Dynamic {
	return recorder.Dynamic{
		Min:           500 * time.Millisecond,
		Max:           5 * time.Second,
		SilenceToStop: 800 * time.Millisecond,
	}
}

func TestRecord_VoicedThenSilence_StopsAfterSilenceWindow(t *testing.T) {
	// 40 voiced frames (~2.56 s) then plenty of silence: recording must stop
	// once the trailing silence reaches 800 ms, i.e. after 13 silent frames.
	r := recorder.New(dynamicPolicy(), 0.02*vad.StopThresholdRatio)

	res := r.Record(context.Background(), feed(t, 40, 30))
	if !res.OK {
		t.Fatal("expected an utterance, got none")
	}

	wantMin := 40 * frameDur
	wantMax := 40*frameDur + 800*time.Millisecond + frameDur
	if res.Duration < wantMin || res.Duration > wantMax {
		t.Errorf("duration = %v; want in [%v, %v]", res.Duration, wantMin, wantMax)
	}
	if res.SampleRate != sampleRate {
		t.Errorf("sample rate = %d; want %d", res.SampleRate, sampleRate)
	}
}

func TestRecord_ContinuousVoice_StopsExactlyAtMax(t *testing.T) {
	r := recorder.New(dynamicPolicy(), 0.02*vad.StopThresholdRatio)

	res := r.Record(context.Background(), feed(t, 200, 0))
	if !res.OK {
		t.Fatal("expected an utterance, got none")
	}
	if res.Duration != 5*time.Second {
		t.Errorf("duration = %v; want exactly 5s (final frame trimmed)", res.Duration)
	}
	if got, want := len(res.Samples), 5*sampleRate; got != want {
		t.Errorf("samples = %d; want %d", got, want)
	}
}

func TestRecord_DurationAlwaysWithinPolicyBounds(t *testing.T) {
	cases := []struct {
		name   string
		voiced int
		silent int
	}{
		{"short burst", 10, 30},
		{"medium", 40, 20},
		{"long", 120, 20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := dynamicPolicy()
			r := recorder.New(p, 0.02*vad.StopThresholdRatio)

			res := r.Record(context.Background(), feed(t, tc.voiced, tc.silent))
			if !res.OK {
				t.Fatal("expected an utterance, got none")
			}
			if res.Duration < p.Min || res.Duration > p.Max {
				t.Errorf("duration %v outside [%v, %v]", res.Duration, p.Min, p.Max)
			}
		})
	}
}

func TestRecord_BriefEnergyDip_DoesNotStopRecording(t *testing.T) {
	// Energy 0.01 is below the onset threshold (0.02) but above the stop
	// threshold (0.02 × 0.3 = 0.006): during recording it must not count as
	// silence, so recording continues until the max cap.
	r := recorder.New(dynamicPolicy(), 0.02*vad.StopThresholdRatio)

	ch := make(chan audio.Frame, 200)
	for i := 0; i < 10; i++ {
		ch <- makeFrame(0.05)
	}
	for i := 0; i < 150; i++ {
		ch <- makeFrame(0.01)
	}
	close(ch)

	res := r.Record(context.Background(), ch)
	if !res.OK {
		t.Fatal("expected an utterance, got none")
	}
	if res.Duration != 5*time.Second {
		t.Errorf("duration = %v; want 5s — low-energy frames above the stop threshold must not trigger the silence stop", res.Duration)
	}
}

func TestRecord_Cancelled_DiscardsPartialBuffer(t *testing.T) {
	r := recorder.New(dynamicPolicy(), 0.02*vad.StopThresholdRatio)

	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan audio.Frame)
	go func() {
		ch <- makeFrame(0.05)
		ch <- makeFrame(0.05)
		cancel()
	}()

	res := r.Record(ctx, ch)
	if res.OK {
		t.Errorf("cancelled recording produced an utterance of %v; want none", res.Duration)
	}
}

func TestRecord_ChannelClosedMidUtterance_ReturnsNoUtterance(t *testing.T) {
	// The capture loop closes the channel on a stream read fault; the partial
	// buffer must be discarded.
	r := recorder.New(dynamicPolicy(), 0.02*vad.StopThresholdRatio)

	res := r.Record(context.Background(), feed(t, 5, 0))
	if res.OK {
		t.Errorf("aborted recording produced an utterance of %v; want none", res.Duration)
	}
}

func TestRecord_EmptyChannel_ReturnsNoUtterance(t *testing.T) {
	r := recorder.New(dynamicPolicy(), 0.02*vad.StopThresholdRatio)

	res := r.Record(context.Background(), feed(t, 0, 0))
	if res.OK {
		t.Error("empty input produced an utterance; want none")
	}
}

func TestRecord_FixedPolicy_RecordsExactDuration(t *testing.T) {
	r := recorder.New(recorder.Fixed{Duration: 2500 * time.Millisecond}, 0.02*vad.StopThresholdRatio)

	// All silence: the fixed policy ignores silence entirely.
	res := r.Record(context.Background(), feed(t, 0, 100))
	if !res.OK {
		t.Fatal("expected an utterance, got none")
	}
	if res.Duration != 2500*time.Millisecond {
		t.Errorf("duration = %v; want exactly 2.5s", res.Duration)
	}
	if got, want := len(res.Samples), sampleRate*25/10; got != want {
		t.Errorf("samples = %d; want %d", got, want)
	}
}

func TestRecord_FixedPolicy_SilenceDoesNotShorten(t *testing.T) {
	r := recorder.New(recorder.Fixed{Duration: time.Second}, 0.02*vad.StopThresholdRatio)

	ch := make(chan audio.Frame, 40)
	ch <- makeFrame(0.05)
	for i := 0; i < 39; i++ {
		ch <- makeFrame(0.0)
	}
	close(ch)

	res := r.Record(context.Background(), ch)
	if !res.OK {
		t.Fatal("expected an utterance, got none")
	}
	if res.Duration != time.Second {
		t.Errorf("duration = %v; want 1s", res.Duration)
	}
}
