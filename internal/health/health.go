// Package health serves the liveness and readiness endpoints of the local
// control listener.
//
// /healthz answers 200 whenever the process is up. /readyz runs the
// registered checks (the audio backend can enumerate an input device, the
// transcription engine answers) and reports 503 until all of them pass, so
// a supervisor or tray UI can tell "running" apart from "able to dictate".
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// perCheckTimeout bounds each readiness check. An engine that cannot answer
// within this window is not ready.
const perCheckTimeout = 5 * time.Second

// Checker is a named readiness check, e.g. "audio" for the capture backend
// or "engine" for the transcription backend.
type Checker struct {
	// Name identifies the check in the /readyz response body.
	Name string

	// Check reports nil when the dependency is usable. It must respect the
	// context deadline.
	Check func(ctx context.Context) error
}

// Handler serves the health endpoints.
type Handler struct {
	checkers []Checker
}

// New creates a [Handler] with the given readiness checkers. Liveness needs
// none; a Handler with no checkers reports ready unconditionally.
func New(checkers ...Checker) *Handler {
	return &Handler{checkers: checkers}
}

// report is the JSON body of a health response.
type report struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz is the liveness endpoint. It returns 200 as long as the process
// can serve HTTP at all.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, report{Status: "ok"})
}

// Readyz is the readiness endpoint. It runs every registered check and
// returns 200 only when all pass, 503 otherwise, with the per-check outcome
// in the body.
func (h *Handler) Readyz(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string, len(h.checkers))
	ready := true

	for _, c := range h.checkers {
		if err := h.runCheck(r.Context(), c); err != nil {
			checks[c.Name] = "fail: " + err.Error()
			ready = false
			slog.Warn("readiness check failed", "check", c.Name, "error", err)
		} else {
			checks[c.Name] = "ok"
		}
	}

	status, code := "ready", http.StatusOK
	if !ready {
		status, code = "not ready", http.StatusServiceUnavailable
	}
	writeJSON(w, code, report{Status: status, Checks: checks})
}

func (h *Handler) runCheck(ctx context.Context, c Checker) error {
	ctx, cancel := context.WithTimeout(ctx, perCheckTimeout)
	defer cancel()
	return c.Check(ctx)
}

// Register mounts the health endpoints on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.HandleFunc("GET /readyz", h.Readyz)
}

func writeJSON(w http.ResponseWriter, code int, body report) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode health response", "error", err)
	}
}
