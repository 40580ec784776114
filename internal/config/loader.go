package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm":                  {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"live_stt":             {"openai-realtime"},
	"transcriber":          {"openai", "whisper"},
	"fallback_transcriber": {"openai", "whisper"},
	"embeddings":           {"openai"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("live_stt", cfg.Providers.LiveSTT.Name)
	validateProviderName("transcriber", cfg.Providers.Transcriber.Name)
	validateProviderName("fallback_transcriber", cfg.Providers.FallbackTranscriber.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)

	// The analysis pipeline cannot function without these two.
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required; analysis cannot run without an LLM"))
	}
	if cfg.Providers.Transcriber.Name == "" {
		errs = append(errs, errors.New("providers.transcriber.name is required; recordings cannot be transcribed without one"))
	}

	// The streaming channel has no default endpoint.
	if cfg.Providers.LiveSTT.Name != "" && cfg.Providers.LiveSTT.BaseURL == "" {
		errs = append(errs, errors.New("providers.live_stt.base_url is required when live_stt is configured"))
	}
	if cfg.Providers.LiveSTT.Name == "" {
		slog.Warn("providers.live_stt is not configured; recordings will have no live transcript preview")
	}

	// The local whisper transcriber loads its model from disk.
	for _, t := range []struct {
		key   string
		entry ProviderEntry
	}{
		{"transcriber", cfg.Providers.Transcriber},
		{"fallback_transcriber", cfg.Providers.FallbackTranscriber},
	} {
		if t.entry.Name == "whisper" && t.entry.Model == "" {
			errs = append(errs, fmt.Errorf("providers.%s.model must be a whisper model file path", t.key))
		}
		if t.entry.Name == "openai" && t.entry.APIKey == "" {
			slog.Warn("transcriber has no api_key; requests will rely on ambient credentials", "kind", t.key)
		}
	}

	// Embeddings ↔ store dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Store.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but store.embedding_dimensions is not set; defaulting to 1536")
	}
	if cfg.Providers.Embeddings.Name != "" && cfg.Store.PostgresDSN == "" {
		slog.Warn("providers.embeddings is configured but store.postgres_dsn is empty; similar-session retrieval needs the PostgreSQL store")
	}

	// Store availability
	if cfg.Store.PostgresDSN == "" {
		slog.Warn("store.postgres_dsn is empty; using the in-memory store, sessions are lost on restart")
	}

	// Capture limits
	if cfg.Capture.MaxDurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("capture.max_duration_seconds %d must not be negative", cfg.Capture.MaxDurationSeconds))
	}
	if cfg.Capture.MinDurationSeconds < 0 {
		errs = append(errs, fmt.Errorf("capture.min_duration_seconds %d must not be negative", cfg.Capture.MinDurationSeconds))
	}
	if cfg.Capture.GraceIdleMillis < 0 {
		errs = append(errs, fmt.Errorf("capture.grace_idle_ms %d must not be negative", cfg.Capture.GraceIdleMillis))
	}
	if cfg.Capture.MaxDurationSeconds > 0 && cfg.Capture.MinDurationSeconds > 0 &&
		cfg.Capture.MinDurationSeconds >= cfg.Capture.MaxDurationSeconds {
		errs = append(errs, fmt.Errorf("capture.min_duration_seconds %d must be below capture.max_duration_seconds %d",
			cfg.Capture.MinDurationSeconds, cfg.Capture.MaxDurationSeconds))
	}

	// Resilience
	if cfg.Resilience.MaxFailures < 0 {
		errs = append(errs, fmt.Errorf("resilience.max_failures %d must not be negative", cfg.Resilience.MaxFailures))
	}
	if cfg.Resilience.ResetTimeoutSeconds < 0 {
		errs = append(errs, fmt.Errorf("resilience.reset_timeout_seconds %d must not be negative", cfg.Resilience.ResetTimeoutSeconds))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
