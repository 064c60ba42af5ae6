// Package session drives the dictation pipeline: it owns the microphone
// stream, watches for speech onsets, and hands finished utterances to the
// transcription engine and the optional refiner.
//
// Exactly one goroutine — the capture loop — reads the stream and runs the
// state machine Idle → Monitoring → Recording → Cooldown → Monitoring. On a
// speech onset it forwards frames, onset frame included, over a buffered
// channel to a worker goroutine that records, transcribes, refines, and
// finally invokes the delivery callback. Stopping the session bumps a
// generation counter so results from an in-flight worker are discarded
// rather than delivered late.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/Yuhamixli/voice-input-assistant/internal/config"
	"github.com/Yuhamixli/voice-input-assistant/internal/observe"
	"github.com/Yuhamixli/voice-input-assistant/internal/recorder"
	"github.com/Yuhamixli/voice-input-assistant/internal/vad"
	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/transcribe"
)

// ErrAlreadyStarted is returned by Start when the session is not idle.
var ErrAlreadyStarted = errors.New("session: already started")

// stopJoinTimeout bounds how long Stop waits for the capture loop and any
// in-flight worker to exit. A worker stuck in a slow engine call is abandoned
// past the deadline; its result is discarded by the generation check anyway.
const stopJoinTimeout = time.Second

// frameChannelSlack is extra capacity on the frame channel beyond one
// max-length utterance, absorbing the frames that arrive between the recorder
// finishing and the capture loop noticing.
const frameChannelSlack = 8

// State is the lifecycle state of a Session.
type State int

// Session lifecycle states.
const (
	StateIdle State = iota
	StateMonitoring
	StateRecording
	StateCooldown
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMonitoring:
		return "monitoring"
	case StateRecording:
		return "recording"
	case StateCooldown:
		return "cooldown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Callback receives the final transcript of one utterance. It is invoked from
// a worker goroutine; implementations should return quickly or hand off.
type Callback func(text string)

// Refiner is the optional transcript polishing stage. Implementations must
// not fail: on any backend problem they return the input unchanged.
type Refiner interface {
	Refine(ctx context.Context, text string) string
}

// Option is a functional option for a Session.
type Option func(*Session)

// WithRefiner enables LLM transcript refinement.
func WithRefiner(r Refiner) Option {
	return func(s *Session) { s.refiner = r }
}

// WithCallback sets the initial delivery callback.
func WithCallback(cb Callback) Option {
	return func(s *Session) { s.callback = cb }
}

// WithMetrics records pipeline metrics on m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Session) { s.metrics = m }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// Session is the dictation session. All methods are safe for concurrent use.
type Session struct {
	capture    audio.Capture
	engine     transcribe.Engine
	engineName string
	refiner    Refiner
	metrics    *observe.Metrics
	logger     *slog.Logger

	mu          sync.Mutex
	cfg         *config.Config
	state       State
	callback    Callback
	generation  uint64
	cancel      context.CancelFunc
	stream      audio.Stream
	monitorDone chan struct{}
	workers     sync.WaitGroup
}

// New creates a Session over the given capture backend and transcription
// engine. The session does not own either: callers close them after Stop.
func New(cfg *config.Config, capture audio.Capture, engine transcribe.Engine, opts ...Option) *Session {
	s := &Session{
		capture:    capture,
		engine:     engine,
		engineName: cfg.Engine.Name,
		logger:     slog.Default(),
		cfg:        cfg,
		state:      StateIdle,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// SetCallback replaces the delivery callback. It applies to utterances
// completing after the call.
func (s *Session) SetCallback(cb Callback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// ReloadConfig installs a new validated configuration. Recognition settings
// take effect at the next recording start; audio device and stream settings
// at the next session start.
func (s *Session) ReloadConfig(cfg *config.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.logger.Info("session configuration updated",
		"applies", "next recording / next session start")
}

// Start resolves an input device, opens the microphone stream, and launches
// the capture loop. It fails fast when no usable device exists, wrapping
// [audio.ErrNoDevice].
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	cfg := s.cfg
	s.mu.Unlock()

	devices, err := s.capture.Devices()
	if err != nil {
		return fmt.Errorf("session: enumerate input devices: %w", err)
	}
	dev, err := audio.Resolve(devices, cfg.Audio.DeviceID)
	if err != nil {
		return fmt.Errorf("session: %w", err)
	}

	stream, err := s.capture.Open(dev, cfg.Audio.SampleRate, cfg.Audio.FramesPerBuffer)
	if err != nil {
		return fmt.Errorf("session: open stream on device %q: %w", dev.ID, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	s.mu.Lock()
	if s.state != StateIdle {
		// Lost a Start/Start race while the stream was being opened.
		s.mu.Unlock()
		cancel()
		stream.Close()
		return ErrAlreadyStarted
	}
	s.generation++
	gen := s.generation
	s.state = StateMonitoring
	s.cancel = cancel
	s.stream = stream
	s.monitorDone = done
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.ActiveSessions.Add(ctx, 1)
	}
	s.logger.Info("dictation session started",
		"device", dev.ID,
		"device_name", dev.Name,
		"sample_rate", cfg.Audio.SampleRate,
		"frames_per_buffer", cfg.Audio.FramesPerBuffer,
	)

	go s.captureLoop(ctx, stream, dev, cfg, gen, done)
	return nil
}

// Stop cancels capture and recording cooperatively and waits up to
// [stopJoinTimeout] for the capture loop and workers to exit. An in-flight
// utterance is abandoned; its transcript is never delivered. Stopping an
// idle session is a no-op.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	// Invalidate in-flight workers before waking anything up.
	s.generation++
	cancel := s.cancel
	stream := s.stream
	done := s.monitorDone
	s.state = StateIdle
	s.cancel = nil
	s.stream = nil
	s.monitorDone = nil
	s.mu.Unlock()

	cancel()
	stream.Close() // unblocks the capture loop's blocking Read

	workersDone := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(workersDone)
	}()

	deadline := time.After(stopJoinTimeout)
	select {
	case <-done:
	case <-deadline:
		s.logger.Warn("capture loop did not exit before join timeout")
		return
	}
	select {
	case <-workersDone:
	case <-deadline:
		s.logger.Warn("recording worker did not exit before join timeout")
	}
	s.logger.Info("dictation session stopped")
}

// Toggle starts the session when idle and stops it otherwise. This is the
// hotkey entry point.
func (s *Session) Toggle() error {
	if s.State() == StateIdle {
		return s.Start()
	}
	s.Stop()
	return nil
}

// publishState mirrors the capture loop's local state into the Session,
// unless the session has been stopped or restarted since this loop began.
func (s *Session) publishState(gen uint64, st State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation == gen {
		s.state = st
	}
}

// teardown returns the session to Idle after the capture loop halts on its
// own (stream fault), releasing the resources Stop would otherwise release.
func (s *Session) teardown(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return
	}
	s.state = StateIdle
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.stream = nil
	s.monitorDone = nil
}

// recognitionSnapshot copies the recognition settings for one recording.
func (s *Session) recognitionSnapshot() config.RecognitionConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Recognition
}

// metricAttrs is the standard per-engine attribute set.
func metricAttrs(engine string) metric.MeasurementOption {
	return metric.WithAttributes(observe.Attr("engine", engine))
}

// buildPolicy maps the recognition settings to a recorder stopping policy.
func buildPolicy(rec config.RecognitionConfig) recorder.Policy {
	if rec.DynamicRecording {
		return recorder.Dynamic{
			Min:           rec.MinDuration(),
			Max:           rec.MaxDuration(),
			SilenceToStop: rec.SilenceToStop(),
		}
	}
	return recorder.Fixed{Duration: rec.AutoDuration()}
}

// captureLoop is the single reader of the input stream. It classifies frames,
// starts recordings on speech onsets, forwards frames to the active recorder,
// and runs the cooldown clock.
func (s *Session) captureLoop(ctx context.Context, stream audio.Stream, dev audio.Device, cfg *config.Config, gen uint64, done chan struct{}) {
	defer close(done)
	defer stream.Close()
	if s.metrics != nil {
		defer s.metrics.ActiveSessions.Add(context.Background(), -1)
	}

	det := vad.New(cfg.Recognition.VADThreshold)
	frameDur := time.Duration(cfg.Audio.FramesPerBuffer) * time.Second /
		time.Duration(cfg.Audio.SampleRate)

	var (
		state         = StateMonitoring
		frames        chan audio.Frame // non-nil while a recording is active
		recDone       chan struct{}    // signalled when the recorder stops consuming
		cooldown      time.Duration
		cooldownUntil time.Time
	)

	for {
		f, err := stream.Read()
		if err != nil {
			if frames != nil {
				close(frames) // aborts the in-flight recording
			}
			if ctx.Err() != nil {
				return // normal shutdown via Stop
			}
			s.logger.Error("stream read failed, session halted",
				"device", dev.ID,
				"error", err,
			)
			s.teardown(gen)
			return
		}

		// Reap a finished recording before handling the new frame.
		if frames != nil {
			select {
			case <-recDone:
				close(frames)
				frames = nil
				cooldownUntil = time.Now().Add(cooldown)
				state = StateCooldown
				s.publishState(gen, state)
			default:
			}
		}

		switch state {
		case StateRecording:
			select {
			case frames <- f:
			default:
				// The channel holds a max-length utterance, so overflow means
				// the worker is wedged. Drop rather than block the reader.
				if s.metrics != nil {
					s.metrics.AddDroppedFrames(ctx, 1)
				}
			}

		case StateCooldown:
			if time.Now().Before(cooldownUntil) {
				continue
			}
			det.Reset()
			state = StateMonitoring
			s.publishState(gen, state)
			fallthrough

		case StateMonitoring:
			if !det.IsVoiced(f) {
				continue
			}
			rec := s.recognitionSnapshot()
			policy := buildPolicy(rec)
			capacity := int(policy.Cap()/frameDur) + frameChannelSlack
			frames = make(chan audio.Frame, capacity)
			recDone = make(chan struct{}, 1)
			cooldown = rec.Cooldown()
			state = StateRecording
			s.publishState(gen, state)

			frames <- f // onset frame included; capacity is never zero
			s.workers.Add(1)
			go s.transcribeUtterance(ctx, gen, frames, recDone, rec, dev)
		}
	}
}

// transcribeUtterance runs one utterance through record → transcribe →
// refine → callback. Engine failures are logged and counted but never
// surface: the session keeps monitoring for the next utterance.
func (s *Session) transcribeUtterance(ctx context.Context, gen uint64, frames <-chan audio.Frame, recDone chan<- struct{}, rec config.RecognitionConfig, dev audio.Device) {
	defer s.workers.Done()

	r := recorder.New(buildPolicy(rec), rec.VADThreshold*vad.StopThresholdRatio,
		recorder.WithLogger(s.logger),
		recorder.WithDeviceID(dev.ID),
	)
	res := r.Record(ctx, frames)
	recDone <- struct{}{} // buffered; the capture loop reaps it on its next frame

	if !res.OK {
		return
	}
	seconds := res.Duration.Seconds()

	start := time.Now()
	text, err := s.engine.Transcribe(ctx, res.Samples, res.SampleRate, rec.Language)
	if s.metrics != nil {
		s.metrics.TranscriptionDuration.Record(ctx, time.Since(start).Seconds(),
			metricAttrs(s.engineName))
	}
	if err != nil {
		s.logger.Error("transcription failed, utterance discarded",
			"engine", s.engineName,
			"duration", res.Duration,
			"error", err,
		)
		if s.metrics != nil {
			s.metrics.RecordEngineError(ctx, s.engineName)
			s.metrics.RecordUtterance(ctx, s.engineName, "error", seconds)
		}
		return
	}
	if s.metrics != nil {
		s.metrics.RecordUtterance(ctx, s.engineName, "ok", seconds)
	}

	if strings.TrimSpace(text) == "" {
		s.logger.Debug("engine returned empty transcript, nothing to deliver",
			"duration", res.Duration)
		return
	}

	if s.refiner != nil {
		text = s.refiner.Refine(ctx, text)
	}

	s.mu.Lock()
	stale := s.generation != gen
	cb := s.callback
	s.mu.Unlock()

	if stale {
		s.logger.Debug("discarding transcript from stopped session")
		return
	}
	if cb != nil {
		cb(text)
	}
}
