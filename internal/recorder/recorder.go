// Package recorder accumulates audio frames into a single utterance under a
// configurable stopping policy.
//
// The recorder does not own an input stream: frames arrive over a channel
// fed by the capture loop, so there is exactly one stream reader in the
// process. Recording time is derived from sample counts, not wall clocks,
// which keeps the stopping behaviour deterministic.
package recorder

import (
	"context"
	"log/slog"
	"time"

	"github.com/Yuhamixli/voice-input-assistant/internal/vad"
	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
)

// Policy decides when an in-progress recording is complete.
type Policy interface {
	// Done reports whether recording should stop given the audio recorded so
	// far and the current run of trailing silence.
	Done(recorded, silence time.Duration) bool

	// Cap is the hard upper bound on utterance duration. The recorder trims
	// the final frame so the result never exceeds it.
	Cap() time.Duration
}

// Dynamic stops on trailing silence once a minimum has been recorded, and
// unconditionally at the maximum duration.
type Dynamic struct {
	Min           time.Duration
	Max           time.Duration
	SilenceToStop time.Duration
}

// Done implements Policy.
func (p Dynamic) Done(recorded, silence time.Duration) bool {
	if recorded >= p.Max {
		return true
	}
	return recorded >= p.Min && silence >= p.SilenceToStop
}

// Cap implements Policy.
func (p Dynamic) Cap() time.Duration { return p.Max }

// Fixed records exactly Duration of audio regardless of silence.
type Fixed struct {
	Duration time.Duration
}

// Done implements Policy.
func (p Fixed) Done(recorded, _ time.Duration) bool { return recorded >= p.Duration }

// Cap implements Policy.
func (p Fixed) Cap() time.Duration { return p.Duration }

// Result is the outcome of one recording run. OK is false when no utterance
// was produced — cancelled, aborted by a stream fault, or empty — and the
// caller must not transcribe.
type Result struct {
	Samples    []float32
	SampleRate int
	Duration   time.Duration
	OK         bool
}

// Option is a functional option for a Recorder.
type Option func(*Recorder)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Recorder) { r.logger = l }
}

// WithDeviceID attaches the capture device id to recorder log records.
func WithDeviceID(id string) Option {
	return func(r *Recorder) { r.deviceID = id }
}

// Recorder drains a frame channel into one utterance. A Recorder is used for
// a single Record call; construct a fresh one per utterance.
type Recorder struct {
	policy        Policy
	stopThreshold float64
	logger        *slog.Logger
	deviceID      string
}

// New creates a Recorder. stopThreshold is the energy level below which a
// frame counts as trailing silence; callers derive it from the onset
// threshold via [vad.StopThresholdRatio].
func New(policy Policy, stopThreshold float64, opts ...Option) *Recorder {
	r := &Recorder{
		policy:        policy,
		stopThreshold: stopThreshold,
		logger:        slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Record consumes frames until the policy is satisfied, ctx is cancelled, or
// the channel closes (the capture loop closes it on a stream read fault).
// Cancellation and stream faults abort the utterance: the partial buffer is
// discarded and Result.OK is false.
func (r *Recorder) Record(ctx context.Context, frames <-chan audio.Frame) Result {
	var (
		buffer     []float32
		sampleRate int
		recorded   time.Duration
		silence    time.Duration
	)

	limit := r.policy.Cap()

	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("recording cancelled",
				"elapsed", recorded,
				"device", r.deviceID,
			)
			return Result{}

		case f, ok := <-frames:
			if !ok {
				r.logger.Warn("recording aborted by stream fault",
					"elapsed", recorded,
					"device", r.deviceID,
				)
				return Result{}
			}
			if sampleRate == 0 {
				sampleRate = f.SampleRate
			}

			dur := f.Duration()
			if limit > 0 && recorded+dur >= limit {
				// Trim the final frame so the utterance lands exactly on the cap.
				keep := int((limit - recorded) * time.Duration(f.SampleRate) / time.Second)
				if keep > len(f.Samples) {
					keep = len(f.Samples)
				}
				buffer = append(buffer, f.Samples[:keep]...)
				recorded = limit
				return r.finish(buffer, sampleRate, recorded)
			}

			buffer = append(buffer, f.Samples...)
			recorded += dur

			if vad.Energy(f.Samples) > r.stopThreshold {
				silence = 0
			} else {
				silence += dur
			}

			if r.policy.Done(recorded, silence) {
				return r.finish(buffer, sampleRate, recorded)
			}
		}
	}
}

func (r *Recorder) finish(buffer []float32, sampleRate int, recorded time.Duration) Result {
	if len(buffer) == 0 {
		return Result{}
	}
	r.logger.Debug("utterance recorded",
		"duration", recorded,
		"samples", len(buffer),
		"device", r.deviceID,
	)
	return Result{
		Samples:    buffer,
		SampleRate: sampleRate,
		Duration:   recorded,
		OK:         true,
	}
}
