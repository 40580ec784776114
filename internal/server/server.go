// Package server exposes the REST control surface: recording control,
// session management, challenges, drills, question rounds and personas,
// plus health probes and the Prometheus /metrics endpoint.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orato-voice/orato/internal/app"
	"github.com/orato-voice/orato/internal/health"
	"github.com/orato-voice/orato/internal/observe"
)

// shutdownTimeout bounds graceful shutdown once the context is cancelled.
const shutdownTimeout = 15 * time.Second

// Config wires a [Server]. Manager is required; Health, Metrics and Logger
// may be nil.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// TLSCertFile and TLSKeyFile enable HTTPS when both are set.
	TLSCertFile string
	TLSKeyFile  string

	Manager *app.Manager
	Health  *health.Handler
	Metrics *observe.Metrics
	Logger  *slog.Logger
}

// Server serves the control surface over HTTP.
type Server struct {
	addr     string
	certFile string
	keyFile  string
	manager  *app.Manager
	health   *health.Handler
	metrics  *observe.Metrics
	log      *slog.Logger
}

// New builds a Server from cfg.
func New(cfg Config) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	h := cfg.Health
	if h == nil {
		h = health.New()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Server{
		addr:     cfg.Addr,
		certFile: cfg.TLSCertFile,
		keyFile:  cfg.TLSKeyFile,
		manager:  cfg.Manager,
		health:   h,
		metrics:  metrics,
		log:      log,
	}
}

// Handler returns the full route table wrapped in the observability
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Recording control.
	mux.HandleFunc("POST /recording/start", s.handleStartRecording)
	mux.HandleFunc("POST /recording/stop", s.handleStopRecording)
	mux.HandleFunc("POST /recording/cancel", s.handleCancelRecording)
	mux.HandleFunc("GET /recording/status", s.handleRecordingStatus)

	// Sessions.
	mux.HandleFunc("GET /sessions", s.handleListSessions)
	mux.HandleFunc("GET /sessions/{id}", s.handleGetSession)
	mux.HandleFunc("POST /sessions/{id}/rename", s.handleRenameSession)
	mux.HandleFunc("POST /sessions/{id}/favorite", s.handleFavoriteSession)
	mux.HandleFunc("DELETE /sessions/{id}", s.handleDeleteSession)
	mux.HandleFunc("POST /sessions/{id}/practice", s.handleFinishPractice)
	mux.HandleFunc("POST /sessions/{id}/drills", s.handleGenerateDrills)
	mux.HandleFunc("POST /sessions/{id}/qa", s.handleStartQA)
	mux.HandleFunc("POST /sessions/{id}/qa/{qaID}/answer", s.handleAnswerQA)

	// Challenges.
	mux.HandleFunc("GET /challenges", s.handleListChallenges)
	mux.HandleFunc("POST /challenges/generate", s.handleGenerateChallenge)
	mux.HandleFunc("POST /challenges/{id}/accept", s.handleAcceptChallenge)
	mux.HandleFunc("POST /challenges/{id}/decline", s.handleDeclineChallenge)

	// Drills.
	mux.HandleFunc("GET /drills", s.handleListDrills)
	mux.HandleFunc("POST /drills/{id}/complete", s.handleCompleteDrill)

	// Personas.
	mux.HandleFunc("GET /personas", s.handleListPersonas)
	mux.HandleFunc("POST /personas", s.handleSavePersona)
	mux.HandleFunc("DELETE /personas/{id}", s.handleDeletePersona)

	// Probes and metrics.
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return observe.Middleware(s.metrics)(mux)
}

// Run serves until ctx is cancelled, then shuts down gracefully within
// [shutdownTimeout].
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		if s.certFile != "" && s.keyFile != "" {
			s.log.Info("https server listening", "addr", s.addr)
			errCh <- srv.ListenAndServeTLS(s.certFile, s.keyFile)
			return
		}
		s.log.Info("http server listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
