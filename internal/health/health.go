// Package health serves the liveness and readiness probes for the Orato
// backend process.
//
// /healthz answers 200 whenever the process can serve HTTP at all. /readyz
// additionally runs every registered [Checker] (the record store's ping,
// for instance) and answers 503 until all of them pass. Both respond with
// a JSON body carrying a "status" field and, for readiness, a per-check
// "checks" map that an operator can read off directly.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// checkTimeout caps a single readiness check. A hung store connection must
// not hold the probe open past the kubelet's own timeout.
const checkTimeout = 5 * time.Second

// Checker probes one dependency for readiness.
type Checker struct {
	// Name labels the check in the /readyz response, e.g. "store".
	Name string

	// Check returns nil when the dependency can serve traffic. It must
	// respect ctx cancellation.
	Check func(ctx context.Context) error
}

// probeBody is the JSON response of both probe endpoints.
type probeBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Handler serves the probe endpoints over a fixed checker list. Safe for
// concurrent use.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler]. Checkers run sequentially, in the order given,
// on every /readyz request.
func New(checkers ...Checker) *Handler {
	c := make([]Checker, len(checkers))
	copy(c, checkers)
	return &Handler{checkers: c}
}

// Register adds the /healthz and /readyz routes to mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

// Healthz is the liveness probe. Reaching it at all is the signal.
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeBody(w, http.StatusOK, probeBody{Status: "ok"})
}

// Readyz is the readiness probe. It reports 200 only when every checker
// passes; each check runs under its own [checkTimeout] deadline derived
// from the request context.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks, ready := h.runChecks(r.Context())

	body := probeBody{Status: "ok", Checks: checks}
	status := http.StatusOK
	if !ready {
		body.Status = "fail"
		status = http.StatusServiceUnavailable
	}
	writeBody(w, status, body)
}

// runChecks evaluates every checker and reports whether all passed.
func (h *Handler) runChecks(ctx context.Context) (map[string]string, bool) {
	checks := make(map[string]string, len(h.checkers))
	ready := true
	for _, c := range h.checkers {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := c.Check(cctx)
		cancel()

		if err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
			continue
		}
		checks[c.Name] = "ok"
	}
	return checks, ready
}

// writeBody encodes v with the given status. An encoding failure falls back
// to a plain 500.
func writeBody(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
