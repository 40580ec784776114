// Command orato is the main entry point for the Orato speech-coaching server.
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

	"github.com/orato-voice/orato/internal/app"
	"github.com/orato-voice/orato/internal/capture"
	"github.com/orato-voice/orato/internal/config"
	"github.com/orato-voice/orato/internal/health"
	"github.com/orato-voice/orato/internal/observe"
	"github.com/orato-voice/orato/internal/oracle"
	"github.com/orato-voice/orato/internal/resilience"
	"github.com/orato-voice/orato/internal/server"
	"github.com/orato-voice/orato/internal/store"
	"github.com/orato-voice/orato/internal/store/postgres"
	"github.com/orato-voice/orato/internal/transcript"
	"github.com/orato-voice/orato/pkg/audio"
	"github.com/orato-voice/orato/pkg/audio/alsa"
	"github.com/orato-voice/orato/pkg/provider/embeddings"
	oaembed "github.com/orato-voice/orato/pkg/provider/embeddings/openai"
	"github.com/orato-voice/orato/pkg/provider/llm"
	"github.com/orato-voice/orato/pkg/provider/llm/anyllm"
	"github.com/orato-voice/orato/pkg/provider/stt"
	"github.com/orato-voice/orato/pkg/provider/stt/live"
	oastt "github.com/orato-voice/orato/pkg/provider/stt/openai"
	"github.com/orato-voice/orato/pkg/provider/stt/whisper"
)

const defaultListenAddr = ":8080"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "orato.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "orato: config file %q not found; copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "orato: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, levelVar := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("orato starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "orato"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Providers ─────────────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Store ─────────────────────────────────────────────────────────────────
	var (
		records  store.RecordStore
		index    store.SessionIndex
		checkers []health.Checker
	)
	if cfg.Store.PostgresDSN != "" {
		dims := cfg.Store.EmbeddingDimensions
		if dims <= 0 {
			dims = 1536
		}
		pg, err := postgres.NewStore(ctx, cfg.Store.PostgresDSN, dims)
		if err != nil {
			slog.Error("failed to open postgres store", "err", err)
			return 1
		}
		defer pg.Close()
		records, index = pg, pg
		checkers = append(checkers, health.Checker{Name: "store", Check: pg.Ping})
		slog.Info("using postgres store", "embedding_dimensions", dims)
	} else {
		mem := store.NewMemStore()
		records, index = mem, mem
		slog.Info("using in-memory store")
	}

	// ── Capture pipeline ──────────────────────────────────────────────────────
	device := alsa.New(cfg.Capture.Device, audio.Format{SampleRate: 16000, Channels: 1},
		alsa.WithLogger(logger))
	coordinator := capture.New(capture.Config{
		Device:      device,
		Streams:     providers.Stream,
		Language:    cfg.Capture.Language,
		MaxDuration: cfg.Capture.MaxDuration(),
		MinDuration: cfg.Capture.MinDuration(),
		GraceIdle:   cfg.Capture.GraceIdle(),
		Logger:      logger,
		Metrics:     metrics,
	})

	reconciler := transcript.NewReconciler(providers.Transcriber, logger, metrics)

	oracleLLM := oracle.NewLLM(providers.LLM, logger, metrics)
	if temp := optFloat(cfg.Providers.LLM.Options, "temperature"); temp > 0 {
		oracleLLM.Temperature = temp
	}

	manager := app.New(app.Config{
		Coordinator: coordinator,
		Reconciler:  reconciler,
		Oracle:      oracleLLM,
		Store:       records,
		Index:       index,
		Embedder:    providers.Embeddings,
		Logger:      logger,
		Metrics:     metrics,
	})

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			levelVar.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", d.NewLogLevel)
		}
		if d.RequiresRestart() {
			slog.Warn("config changes to providers, store, capture, or listen_addr need a restart")
		}
	})
	if err != nil {
		slog.Warn("config hot reload disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	// ── HTTP server ───────────────────────────────────────────────────────────
	listenAddr := cfg.Server.ListenAddr
	if listenAddr == "" {
		listenAddr = defaultListenAddr
	}
	srvCfg := server.Config{
		Addr:    listenAddr,
		Manager: manager,
		Health:  health.New(checkers...),
		Metrics: metrics,
		Logger:  logger,
	}
	if tls := cfg.Server.TLS; tls != nil {
		srvCfg.TLSCertFile = tls.CertFile
		srvCfg.TLSKeyFile = tls.KeyFile
	}

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := server.New(srvCfg).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("server error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// providers holds the instantiated provider set the application consumes.
type providerSet struct {
	LLM         llm.Provider
	Stream      stt.StreamProvider
	Transcriber stt.Transcriber
	Embeddings  embeddings.Provider
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages.
func registerBuiltinProviders(reg *config.Registry) {
	// ── LLM ───────────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
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

	// ── Live streaming transcription ──────────────────────────────────────────

	reg.RegisterStream("openai-realtime", func(entry config.ProviderEntry) (stt.StreamProvider, error) {
		var opts []live.Option
		if entry.Model != "" {
			opts = append(opts, live.WithModel(entry.Model))
		}
		return live.New(entry.BaseURL, entry.APIKey, opts...)
	})

	// ── Batch transcription ───────────────────────────────────────────────────

	reg.RegisterTranscriber("openai", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []oastt.Option
		if entry.BaseURL != "" {
			opts = append(opts, oastt.WithBaseURL(entry.BaseURL))
		}
		return oastt.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterTranscriber("whisper", func(entry config.ProviderEntry) (stt.Transcriber, error) {
		var opts []whisper.Option
		if lang := optString(entry.Options, "language"); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		return whisper.New(entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates all providers named in cfg. The transcriber is
// wrapped in a circuit-breaking fallback group when a fallback is configured.
func buildProviders(cfg *config.Config, reg *config.Registry) (*providerSet, error) {
	ps := &providerSet{}

	p, err := reg.CreateLLM(cfg.Providers.LLM)
	if err != nil {
		return nil, fmt.Errorf("create llm provider %q: %w", cfg.Providers.LLM.Name, err)
	}
	ps.LLM = p
	slog.Info("provider created", "kind", "llm", "name", cfg.Providers.LLM.Name)

	if name := cfg.Providers.LiveSTT.Name; name != "" {
		s, err := reg.CreateStream(cfg.Providers.LiveSTT)
		if err != nil {
			return nil, fmt.Errorf("create live_stt provider %q: %w", name, err)
		}
		ps.Stream = s
		slog.Info("provider created", "kind", "live_stt", "name", name)
	}

	primary, err := reg.CreateTranscriber(cfg.Providers.Transcriber)
	if err != nil {
		return nil, fmt.Errorf("create transcriber %q: %w", cfg.Providers.Transcriber.Name, err)
	}
	ps.Transcriber = primary
	slog.Info("provider created", "kind", "transcriber", "name", cfg.Providers.Transcriber.Name)

	if name := cfg.Providers.FallbackTranscriber.Name; name != "" {
		fallback, err := reg.CreateTranscriber(cfg.Providers.FallbackTranscriber)
		if err != nil {
			return nil, fmt.Errorf("create fallback transcriber %q: %w", name, err)
		}
		group := resilience.NewTranscribeFallback(primary, cfg.Providers.Transcriber.Name, resilience.FallbackConfig{
			CircuitBreaker: resilience.CircuitBreakerConfig{
				MaxFailures:  cfg.Resilience.MaxFailures,
				ResetTimeout: cfg.Resilience.ResetTimeout(),
			},
		})
		group.AddFallback(name, fallback)
		ps.Transcriber = group
		slog.Info("provider created", "kind", "fallback_transcriber", "name", name)
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		e, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		}
		ps.Embeddings = e
		slog.Info("provider created", "kind", "embeddings", "name", name)
	}

	return ps, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := &slog.LevelVar{}
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, ok := opts[key].(string)
	if !ok {
		return ""
	}
	return s
}

// optFloat extracts a numeric value from a provider Options map. YAML decodes
// bare numbers as int or float64 depending on their spelling.
func optFloat(opts map[string]any, key string) float64 {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return 0
	}
}
