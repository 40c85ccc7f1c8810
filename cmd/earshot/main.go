// Command earshot is the wake-word voice assistant daemon.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/earshot-dev/earshot/internal/app"
	"github.com/earshot-dev/earshot/internal/config"
	historypg "github.com/earshot-dev/earshot/internal/history/postgres"
	"github.com/earshot-dev/earshot/internal/observe"
	"github.com/earshot-dev/earshot/pkg/audio/portaudio"
	"github.com/earshot-dev/earshot/pkg/provider/brain"
	"github.com/earshot-dev/earshot/pkg/provider/brain/anyllm"
	oaibrain "github.com/earshot-dev/earshot/pkg/provider/brain/openai"
	"github.com/earshot-dev/earshot/pkg/provider/stt"
	oaistt "github.com/earshot-dev/earshot/pkg/provider/stt/openai"
	"github.com/earshot-dev/earshot/pkg/provider/stt/whisper"
	"github.com/earshot-dev/earshot/pkg/provider/tts"
	"github.com/earshot-dev/earshot/pkg/provider/tts/piper"
	"github.com/earshot-dev/earshot/pkg/wake"
	porcupinewake "github.com/earshot-dev/earshot/pkg/wake/porcupine"
)

// version is stamped by the release build.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "earshot: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "earshot: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("earshot starting",
		"version", version,
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	shutdownObs, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "earshot",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise observability", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownObs(shutdownCtx); err != nil {
			slog.Warn("observability shutdown error", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(ctx, cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(cfg, providers, logger, nil)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}
	defer application.Shutdown()

	slog.Info("assistant ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyllmProviders lists the dialogue backends reached through the any-llm
// multiplexer. OpenAI is registered separately on the native SDK.
var anyllmProviders = []string{
	"anthropic", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile",
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives its config block and constructs the provider from
// the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Wake word ─────────────────────────────────────────────────────────────

	reg.RegisterWake("porcupine", func(wc config.WakeConfig) (wake.Detector, error) {
		return porcupinewake.New(porcupinewake.Config{
			AccessKey:    wc.AccessKey,
			KeywordPaths: wc.KeywordPaths,
			ModelPath:    wc.ModelPath,
			Sensitivity:  wc.Sensitivity,
		})
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	// whisper runs the model in-process; Model is the GGML file path.
	reg.RegisterSTT("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.Model, opts...)
	})

	reg.RegisterSTT("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oaistt.Option
		if entry.Model != "" {
			opts = append(opts, oaistt.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, oaistt.WithLanguage(entry.Language))
		}
		return oaistt.New(entry.APIKey, opts...)
	})

	// ── Brain ─────────────────────────────────────────────────────────────────

	reg.RegisterBrain("openai", func(entry config.ProviderEntry) (brain.Brain, error) {
		var opts []oaibrain.Option
		if entry.SystemPrompt != "" {
			opts = append(opts, oaibrain.WithSystemPrompt(entry.SystemPrompt))
		}
		return oaibrain.New(entry.APIKey, entry.Model, opts...)
	})

	// The any-llm backends share the optional APIKey + BaseURL pattern.
	for _, providerName := range anyllmProviders {
		reg.RegisterBrain(providerName, func(entry config.ProviderEntry) (brain.Brain, error) {
			var opts []anyllm.Option
			if entry.SystemPrompt != "" {
				opts = append(opts, anyllm.WithSystemPrompt(entry.SystemPrompt))
			}
			var backendOpts []anyllmlib.Option
			if entry.APIKey != "" {
				backendOpts = append(backendOpts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				backendOpts = append(backendOpts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts, backendOpts...)
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterBrain("ollama", func(entry config.ProviderEntry) (brain.Brain, error) {
		var opts []anyllm.Option
		if entry.SystemPrompt != "" {
			opts = append(opts, anyllm.WithSystemPrompt(entry.SystemPrompt))
		}
		var backendOpts []anyllmlib.Option
		if entry.BaseURL != "" {
			backendOpts = append(backendOpts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		return anyllm.NewOllama(entry.Model, opts, backendOpts...)
	})

	// ── TTS ───────────────────────────────────────────────────────────────────

	// piper synthesizes locally; Model is the voice file path.
	reg.RegisterTTS("piper", func(entry config.ProviderEntry) (tts.Speaker, error) {
		var opts []piper.Option
		if bin := optString(entry.Options, "piper_binary"); bin != "" {
			opts = append(opts, piper.WithPiperBinary(bin))
		}
		if bin := optString(entry.Options, "aplay_binary"); bin != "" {
			opts = append(opts, piper.WithAplayBinary(bin))
		}
		return piper.New(entry.Model, opts...)
	})
}

// buildProviders instantiates everything named in cfg using the registry and
// returns the filled [app.Providers] for the application to consume. The
// wake detector comes first because it dictates the microphone frame length.
func buildProviders(ctx context.Context, cfg *config.Config, reg *config.Registry) (app.Providers, error) {
	var ps app.Providers

	detector, err := reg.CreateWake(cfg.Wake)
	if err != nil {
		return ps, fmt.Errorf("create wake detector %q: %w", cfg.Wake.Name, err)
	}
	ps.Wake = detector
	slog.Info("provider created", "kind", "wake", "name", cfg.Wake.Name, "frame_length", detector.FrameLength())

	source, err := portaudio.Open(cfg.Audio.SampleRate, detector.FrameLength(), slog.Default())
	if err != nil {
		return ps, fmt.Errorf("open audio source: %w", err)
	}
	ps.Source = source

	ps.STT, err = reg.CreateSTT(cfg.Providers.STT)
	if err != nil {
		return ps, fmt.Errorf("create stt provider %q: %w", cfg.Providers.STT.Name, err)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	if name := cfg.Providers.STTConversing.Name; name != "" {
		ps.STTConversing, err = reg.CreateSTT(cfg.Providers.STTConversing)
		if err != nil {
			return ps, fmt.Errorf("create conversing stt provider %q: %w", name, err)
		}
		slog.Info("provider created", "kind", "stt_conversing", "name", name)
	}

	ps.Brain, err = reg.CreateBrain(cfg.Providers.Brain)
	if err != nil {
		return ps, fmt.Errorf("create brain provider %q: %w", cfg.Providers.Brain.Name, err)
	}
	slog.Info("provider created", "kind", "brain", "name", cfg.Providers.Brain.Name)

	ps.Speaker, err = reg.CreateTTS(cfg.Providers.TTS)
	if err != nil {
		return ps, fmt.Errorf("create tts provider %q: %w", cfg.Providers.TTS.Name, err)
	}
	slog.Info("provider created", "kind", "tts", "name", cfg.Providers.TTS.Name)

	// Speakers that can pre-render the acknowledgement double as the ack
	// cache; anything else falls back to live synthesis per wake.
	if ack, ok := ps.Speaker.(tts.AckCache); ok {
		ps.Ack = ack
	}

	if dsn := cfg.History.DSN; dsn != "" {
		store, err := historypg.New(ctx, dsn)
		if err != nil {
			return ps, fmt.Errorf("connect history store: %w", err)
		}
		ps.History = store
		slog.Info("history store connected")
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Earshot — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Wake", cfg.Wake.Name, "")
	printProvider("STT", cfg.Providers.STT.Name, cfg.Providers.STT.Model)
	printProvider("STT (conv)", cfg.Providers.STTConversing.Name, cfg.Providers.STTConversing.Model)
	printProvider("Brain", cfg.Providers.Brain.Name, cfg.Providers.Brain.Model)
	printProvider("TTS", cfg.Providers.TTS.Name, cfg.Providers.TTS.Model)
	fmt.Printf("║  Sample rate     : %-19d ║\n", cfg.Audio.SampleRate)
	if cfg.History.DSN != "" {
		fmt.Printf("║  History         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  History         : %-19s ║\n", "(disabled)")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(kind, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", kind, value)
}

// ── Logger ─────────────────────────────────────────────────────────────────────

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
