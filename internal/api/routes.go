package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/flight-control/fcc/internal/auth"
	"github.com/flight-control/fcc/internal/command"
)

// maxPlanBytes bounds a mission request body.
const maxPlanBytes = 1 << 20

// RegisterRoutes registers all v1 endpoints.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	apiV1 := "/api/v1"
	m := s.authMiddleware
	read := func(h http.HandlerFunc) http.HandlerFunc { return m.RequireAuth(m.RequireScope(auth.ScopeRead)(h)) }
	control := func(h http.HandlerFunc) http.HandlerFunc { return m.RequireAuth(m.RequireScope(auth.ScopeControl)(h)) }
	telemetry := func(h http.HandlerFunc) http.HandlerFunc {
		return m.RequireAuth(m.RequireScope(auth.ScopeTelemetry)(h))
	}

	mux.HandleFunc(auth.HealthPath, s.handleHealth)
	mux.HandleFunc(apiV1+"/session", read(s.handleSession))
	mux.HandleFunc(apiV1+"/missions", control(s.handleStartMission))
	mux.HandleFunc(apiV1+"/missions/current", read(s.handleCurrentMission))
	mux.HandleFunc(apiV1+"/missions/cancel", control(s.handleCancelMission))
	mux.HandleFunc(apiV1+"/telemetry", telemetry(s.handleTelemetry))
	mux.HandleFunc(apiV1+"/telemetry/ws", telemetry(s.handleTelemetryWS))
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	WriteError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED",
		fmt.Sprintf("Only %s method is allowed", method), nil)
	return false
}

// handleHealth handles GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	WriteSuccess(w, map[string]interface{}{
		"status":  "ok",
		"version": Version,
		"uptime":  time.Since(s.startTime).Round(time.Second).String(),
	})
}

// handleSession handles GET /session.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.session == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Dispatcher not available", nil)
		return
	}
	WriteSuccess(w, s.session.Session(r.Context()))
}

// handleStartMission handles POST /missions. The body is a plan, a single
// command object, or {"plan": ...}.
func (s *Server) handleStartMission(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.missions == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Mission runner not available", nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPlanBytes+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Failed to read request body", nil)
		return
	}
	if len(body) > maxPlanBytes {
		WriteError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Plan too large", nil)
		return
	}

	entries, err := command.DecodePlan(unwrapPlan(body))
	if err != nil {
		writeAPIError(w, err)
		return
	}
	if len(entries) == 0 {
		WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "Plan has no commands", nil)
		return
	}

	status, err := s.missions.Start(r.Context(), entries)
	if err != nil {
		writeAPIError(w, err)
		return
	}
	s.log.Info("Mission accepted", "mission", status.ID, "entries", status.Entries)
	WriteAccepted(w, status)
}

// unwrapPlan returns the value of a top-level "plan" key, or body unchanged.
func unwrapPlan(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return body
	}

	var wrapper struct {
		Plan    json.RawMessage `json:"plan"`
		Command json.RawMessage `json:"command"`
	}
	if err := json.Unmarshal(trimmed, &wrapper); err != nil || wrapper.Plan == nil || wrapper.Command != nil {
		return body
	}
	return wrapper.Plan
}

// handleCurrentMission handles GET /missions/current.
func (s *Server) handleCurrentMission(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.missions == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Mission runner not available", nil)
		return
	}
	WriteSuccess(w, s.missions.Status())
}

// handleCancelMission handles POST /missions/cancel.
func (s *Server) handleCancelMission(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodPost) {
		return
	}
	if s.missions == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Mission runner not available", nil)
		return
	}
	if err := s.missions.Cancel(); err != nil {
		writeAPIError(w, err)
		return
	}
	WriteSuccess(w, s.missions.Status())
}

// handleTelemetry handles GET /telemetry (SSE).
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.telemetry == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry not available", nil)
		return
	}
	if err := s.telemetry.Subscribe(r.Context(), w, r); err != nil {
		s.log.Warn("Telemetry stream ended with error", "error", err)
	}
}

// handleTelemetryWS handles GET /telemetry/ws.
func (s *Server) handleTelemetryWS(w http.ResponseWriter, r *http.Request) {
	if !allowMethod(w, r, http.MethodGet) {
		return
	}
	if s.telemetry == nil {
		WriteError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "Telemetry not available", nil)
		return
	}
	if err := s.telemetry.ServeWS(w, r); err != nil {
		s.log.Warn("Telemetry websocket ended with error", "error", err)
	}
}
