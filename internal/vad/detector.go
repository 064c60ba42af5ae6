// Package vad implements energy-based voice activity detection over float32
// PCM frames.
//
// A frame is voiced when its root-mean-square energy exceeds the onset
// threshold. Once an utterance is being recorded, silence is judged against
// the stricter stop threshold (onset threshold × [StopThresholdRatio]) so
// that brief energy dips inside a sentence do not cut the recording short.
package vad

import (
	"math"
	"time"

	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
)

// StopThresholdRatio scales the onset threshold down for the stop-phase
// silence classification. The asymmetry is deliberate hysteresis: starting
// requires clear speech energy, stopping requires near-silence.
const StopThresholdRatio = 0.3

// Energy returns the root-mean-square energy of samples. Samples are assumed
// to be normalised to [-1.0, 1.0], so the result is in [0.0, 1.0]. Returns 0
// for an empty frame.
func Energy(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Detector classifies frames as voiced or silent and tracks the duration of
// the current run of consecutive silent frames.
//
// A Detector is stateful and single-writer: exactly one goroutine may call
// IsVoiced. This matches the serialized frame delivery of the capture loop.
type Detector struct {
	threshold          float64
	consecutiveSilence time.Duration
}

// New creates a Detector with the given onset energy threshold.
func New(threshold float64) *Detector {
	return &Detector{threshold: threshold}
}

// Threshold returns the onset energy threshold.
func (d *Detector) Threshold() float64 { return d.threshold }

// StopThreshold returns the stricter threshold used for stop-phase silence
// classification.
func (d *Detector) StopThreshold() float64 { return d.threshold * StopThresholdRatio }

// IsVoiced reports whether f carries speech energy above the onset
// threshold. A voiced frame resets the consecutive-silence clock; a silent
// frame advances it by the frame's duration.
func (d *Detector) IsVoiced(f audio.Frame) bool {
	if Energy(f.Samples) > d.threshold {
		d.consecutiveSilence = 0
		return true
	}
	d.consecutiveSilence += f.Duration()
	return false
}

// ConsecutiveSilence returns the duration of the current run of silent
// frames.
func (d *Detector) ConsecutiveSilence() time.Duration {
	return d.consecutiveSilence
}

// Reset clears the consecutive-silence clock.
func (d *Detector) Reset() {
	d.consecutiveSilence = 0
}
