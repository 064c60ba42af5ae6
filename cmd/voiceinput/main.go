// Command voiceinput runs the voice dictation assistant: it monitors the
// microphone, records hotkey-toggled utterances, transcribes them through the
// configured engine, and prints the final text to stdout.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/Yuhamixli/voice-input-assistant/internal/config"
	"github.com/Yuhamixli/voice-input-assistant/internal/health"
	"github.com/Yuhamixli/voice-input-assistant/internal/hotkey"
	"github.com/Yuhamixli/voice-input-assistant/internal/observe"
	"github.com/Yuhamixli/voice-input-assistant/internal/refine"
	"github.com/Yuhamixli/voice-input-assistant/internal/resilience"
	"github.com/Yuhamixli/voice-input-assistant/internal/session"
	"github.com/Yuhamixli/voice-input-assistant/pkg/audio"
	"github.com/Yuhamixli/voice-input-assistant/pkg/audio/portaudio"
	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/llm"
	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/llm/anyllm"
	oaillm "github.com/Yuhamixli/voice-input-assistant/pkg/provider/llm/openai"
	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/transcribe"
	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/transcribe/whisper"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	logLevel := flag.String("log-level", "", "override log level (debug, info, warn, error)")
	engineName := flag.String("engine", "", "override the transcription engine name")
	deviceID := flag.String("device", "", "override the input device id")
	listDevices := flag.Bool("list-devices", false, "list audio input devices and exit")
	flag.Parse()

	if *listDevices {
		return printDevices()
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "voiceinput: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "voiceinput: %v\n", err)
		}
		return 1
	}
	applyFlagOverrides(cfg, *logLevel, *engineName, *deviceID)

	// ── Logger ────────────────────────────────────────────────────────────────
	slog.SetDefault(newLogger(cfg.Server.LogLevel))

	slog.Info("voiceinput starting",
		"version", version,
		"config", *configPath,
		"engine", cfg.Engine.Name,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "voiceinput",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	engine, err := reg.NewEngine(cfg.Engine)
	if err != nil {
		slog.Error("failed to create transcription engine", "name", cfg.Engine.Name, "err", err)
		return 1
	}
	defer engine.Close()
	slog.Info("transcription engine ready", "name", cfg.Engine.Name, "model", cfg.Engine.Model)

	var refiner session.Refiner
	if cfg.Refiner.Enabled {
		provider, err := reg.NewLLM(cfg.Refiner.ProviderEntry)
		if err != nil {
			slog.Error("failed to create refiner provider", "name", cfg.Refiner.Name, "err", err)
			return 1
		}
		breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name: "refiner",
		})
		refiner = refine.New(provider,
			refine.WithBreaker(breaker),
			refine.WithMetrics(metrics),
		)
		slog.Info("transcript refiner enabled", "provider", cfg.Refiner.Name, "model", cfg.Refiner.Model)
	}

	// ── Audio backend ─────────────────────────────────────────────────────────
	backend, err := portaudio.New()
	if err != nil {
		slog.Error("failed to initialise audio backend", "err", err)
		return 1
	}
	defer backend.Close()

	// ── Session ───────────────────────────────────────────────────────────────
	sessOpts := []session.Option{
		session.WithMetrics(metrics),
		// Default delivery: print the final transcript to stdout, one
		// utterance per line, so the output can be piped to a typing tool.
		session.WithCallback(func(text string) { fmt.Println(text) }),
	}
	if refiner != nil {
		sessOpts = append(sessOpts, session.WithRefiner(refiner))
	}
	sess := session.New(cfg, backend, engine, sessOpts...)

	// ── Hotkey trigger ────────────────────────────────────────────────────────
	trigger := hotkey.NewSignalTrigger()
	defer trigger.Close()

	// ── Config watcher ────────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(prev, next *config.Config) {
		diff := config.Diff(prev, next)
		if !diff.Any() {
			return
		}
		if diff.LogLevelChanged {
			slog.SetDefault(newLogger(diff.NewLogLevel))
			slog.Info("log level changed", "level", diff.NewLogLevel)
		}
		sess.ReloadConfig(new)
	})
	if err != nil {
		slog.Error("failed to start config watcher", "err", err)
		return 1
	}
	defer watcher.Stop()

	printStartupSummary(cfg)

	// Dictation begins monitoring immediately; the hotkey toggles it off/on.
	if err := sess.Start(); err != nil {
		if errors.Is(err, audio.ErrNoDevice) {
			slog.Error("no usable input device — check `voiceinput -list-devices`")
		} else {
			slog.Error("failed to start dictation session", "err", err)
		}
		return 1
	}
	defer sess.Stop()

	// ── Control listener + main loops ─────────────────────────────────────────
	mux := http.NewServeMux()
	health.New(health.Checker{
		Name: "audio",
		Check: func(context.Context) error {
			devices, err := backend.Devices()
			if err != nil {
				return err
			}
			_, err = audio.Resolve(devices, cfg.Audio.DeviceID)
			return err
		},
	}).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.Server.ControlAddr,
		Handler: observe.Middleware(metrics)(mux),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("control listener ready", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("control listener: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case _, ok := <-trigger.Toggles():
				if !ok {
					return nil
				}
				if err := sess.Toggle(); err != nil {
					slog.Error("toggle failed", "err", err)
				} else {
					slog.Info("dictation toggled", "state", sess.State())
				}
			}
		}
	})

	slog.Info("ready — send SIGUSR1 to toggle dictation, Ctrl+C to quit")

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyLLMProviders are the refiner backends constructed through any-llm-go
// with the optional-APIKey + optional-BaseURL pattern.
var anyLLMProviders = []string{
	"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in engine and LLM factories into
// reg. Registration of fixed names cannot fail; errors are ignored.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Transcription engines ─────────────────────────────────────────────────

	reg.RegisterEngine("whisper", func(entry config.ProviderEntry) (transcribe.Engine, error) {
		var opts []whisper.ServerOption
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.NewServer(entry.BaseURL, opts...)
	})

	reg.RegisterEngine("whisper-native", func(entry config.ProviderEntry) (transcribe.Engine, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.NativeOption
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithNativeLanguage(lang))
		}
		return whisper.NewNative(modelPath, opts...)
	})

	// ── Refiner LLMs ──────────────────────────────────────────────────────────

	// openai goes through the official SDK for full request/usage fidelity.
	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range anyLLMProviders {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterLLM("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.New("ollama", entry.Model, opts...)
	})

	for _, name := range reg.EngineNames() {
		slog.Debug("registered provider", "kind", "engine", "name", name)
	}
	for _, name := range reg.LLMNames() {
		slog.Debug("registered provider", "kind", "llm", "name", name)
	}
}

// ── Device listing ────────────────────────────────────────────────────────────

func printDevices() int {
	backend, err := portaudio.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voiceinput: audio backend: %v\n", err)
		return 1
	}
	defer backend.Close()

	devices, err := backend.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "voiceinput: enumerate devices: %v\n", err)
		return 1
	}

	fmt.Println("Input devices:")
	for _, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		marker := " "
		if d.IsDefault {
			marker = "*"
		}
		fmt.Printf("  %s %-24s  %s (channels=%d, rate=%.0f)\n",
			marker, d.ID, d.Name, d.MaxInputChannels, d.DefaultSampleRate)
	}
	fmt.Println("(* = system default; pass an id via -device or audio.device_id)")
	return 0
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═════════════════════════════════════════════╗")
	fmt.Println("║        voiceinput — startup summary         ║")
	fmt.Println("╠═════════════════════════════════════════════╣")
	printEntry("Engine", providerLabel(cfg.Engine.Name, cfg.Engine.Model))
	if cfg.Refiner.Enabled {
		printEntry("Refiner", providerLabel(cfg.Refiner.Name, cfg.Refiner.Model))
	} else {
		printEntry("Refiner", "(disabled)")
	}
	if cfg.Audio.DeviceID != "" {
		printEntry("Device", cfg.Audio.DeviceID)
	} else {
		printEntry("Device", "(system default)")
	}
	if cfg.Recognition.DynamicRecording {
		printEntry("Recording", "dynamic")
	} else {
		printEntry("Recording", fmt.Sprintf("fixed %.1fs", cfg.Recognition.AutoRecordingDuration))
	}
	printEntry("Control addr", cfg.Server.ControlAddr)
	fmt.Println("╚═════════════════════════════════════════════╝")
}

func providerLabel(name, model string) string {
	if name == "" {
		return "(not configured)"
	}
	if model != "" {
		return name + " / " + model
	}
	return name
}

func printEntry(kind, value string) {
	if len(value) > 26 {
		value = value[:23] + "…"
	}
	fmt.Printf("║  %-13s : %-26s ║\n", kind, value)
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// applyFlagOverrides lets CLI flags win over the config file.
func applyFlagOverrides(cfg *config.Config, logLevel, engineName, deviceID string) {
	if logLevel != "" {
		lvl := config.LogLevel(logLevel)
		if lvl.IsValid() {
			cfg.Server.LogLevel = lvl
		} else {
			fmt.Fprintf(os.Stderr, "voiceinput: ignoring invalid -log-level %q\n", logLevel)
		}
	}
	if engineName != "" {
		cfg.Engine.Name = engineName
	}
	if deviceID != "" {
		cfg.Audio.DeviceID = deviceID
	}
}

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
