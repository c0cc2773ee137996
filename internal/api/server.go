// Package api provides the HTTP API for driving and observing the day.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token when an admin key is configured.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/talgya/daysim/internal/agents"
	"github.com/talgya/daysim/internal/engine"
	"github.com/talgya/daysim/internal/persistence"
	"github.com/talgya/daysim/internal/population"
	"github.com/talgya/daysim/internal/remote"
	"github.com/talgya/daysim/internal/timecode"
)

const (
	maxRequestBody = 1 << 20
	defaultEvents  = 50
	maxEventsLimit = 500
)

// Server serves the simulation over HTTP.
type Server struct {
	Sim    *engine.Simulation
	DB     *persistence.DB // Optional run journal
	Remote *remote.Client  // Optional remote population source

	Port        int
	AdminKey    string // Bearer token for POST endpoints. Empty = POST open.
	CORSOrigins string // Comma-separated extra allowed origins

	// Local population seeding.
	MaxAgents int
	Seed      int64
	Jitter    float64

	// StartLimit bounds start-day calls per IP per hour. Zero uses 60.
	StartLimit int

	streamConns int32
}

// Handler builds the routed, CORS-wrapped handler.
func (s *Server) Handler() http.Handler {
	limit := s.StartLimit
	if limit <= 0 {
		limit = 60
	}
	startLimiter := NewRateLimiter(limit, time.Hour)

	mux := http.NewServeMux()

	// Public endpoints.
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/v1/agents", s.handleAgents)
	mux.HandleFunc("/api/v1/agent/", s.handleAgentRoutes)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/days", s.handleDays)
	mux.HandleFunc("/api/v1/day/", s.handleDayEvents)
	mux.HandleFunc("/api/v1/stream", s.handleStream)

	// Control endpoints (POST, bearer token when configured).
	mux.HandleFunc("/api/v1/start_day", s.adminOnly(RateLimitMiddleware(startLimiter, s.handleStartDay)))
	mux.HandleFunc("/api/v1/scrub", s.adminOnly(s.handleScrub))
	mux.HandleFunc("/api/v1/stop", s.adminOnly(s.handleStop))
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))

	// Remote passthrough for frontends that talk to the worker directly.
	mux.HandleFunc("/api/start_day", RateLimitMiddleware(startLimiter, s.handleRemoteStartDay))

	return corsMiddleware(parseOrigins(s.CORSOrigins), mux)
}

// Start begins serving the HTTP API in a goroutine. The returned server
// can be shut down by the caller.
func (s *Server) Start() *http.Server {
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "",
		"remote", s.Remote.Enabled(), "journal", s.DB != nil)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	return srv
}

// parseOrigins returns the allowed origin set. Localhost dev servers are
// always allowed.
func parseOrigins(csv string) map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	for _, origin := range strings.Split(csv, ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowed[origin] = true
		}
	}
	return allowed
}

// corsMiddleware adds CORS headers for allowed frontend origins.
func corsMiddleware(allowedOrigins map[string]bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests
// when an admin key is set. GET requests pass through.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost && s.AdminKey != "" && !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	reading := s.Sim.Clock.Now()

	status := map[string]any{
		"name":    "daysim",
		"minute":  reading.Minute,
		"time":    reading.Time(),
		"running": reading.Running,
		"epoch":   reading.Epoch,
		"speed":   s.Sim.Engine.Speed(),
		"day_id":  nil,
		"agents":  0,
		"visible": 0,
	}
	if day := s.Sim.Day(); day != nil {
		status["day_id"] = day.ID
		status["source"] = day.Source
		status["start_time"] = timecode.Format(day.StartMinute)
		status["agents"] = day.Population.Len()
		status["visible"] = day.Population.VisibleCount()
	}
	writeJSON(w, status)
}

type startDayRequest struct {
	StartTime  string `json:"startTime"`
	AgentCount int    `json:"agentCount"`
	Source     string `json:"source,omitempty"` // "local" (default) or "remote"
}

func (s *Server) handleStartDay(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req startDayRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	if _, err := timecode.Parse(req.StartTime); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	maxAgents := s.MaxAgents
	if maxAgents <= 0 {
		maxAgents = 50
	}
	if req.AgentCount < 1 || req.AgentCount > maxAgents {
		http.Error(w, fmt.Sprintf("agentCount must be 1-%d", maxAgents), http.StatusBadRequest)
		return
	}

	var list []*agents.Agent
	switch req.Source {
	case "", "local":
		req.Source = "local"
		list = agents.NewSpawner(s.Seed, s.Jitter).Spawn(req.AgentCount)
	case "remote":
		if !s.Remote.Enabled() {
			http.Error(w, "remote source not configured", http.StatusServiceUnavailable)
			return
		}
		var err error
		list, err = s.Remote.FetchPopulation(r.Context(), remote.StartRequest{
			StartTime:  req.StartTime,
			AgentCount: req.AgentCount,
		})
		if err != nil {
			slog.Warn("remote population failed", "error", err)
			http.Error(w, "remote population: "+err.Error(), http.StatusBadGateway)
			return
		}
	default:
		http.Error(w, "unknown source (use: local, remote)", http.StatusBadRequest)
		return
	}

	day, err := s.Sim.StartDay(req.StartTime, list, req.Source)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, map[string]any{
		"day":    day,
		"agents": day.Population.Len(),
		"clock":  s.Sim.Clock.Now(),
	})
}

// handleRemoteStartDay forwards the body to the remote worker and relays
// its status and body unchanged.
func (s *Server) handleRemoteStartDay(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	if !s.Remote.Enabled() {
		http.Error(w, "remote source not configured", http.StatusServiceUnavailable)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	resp, err := s.Remote.Forward(r.Context(), body)
	if err != nil {
		slog.Warn("remote start_day failed", "error", err)
		http.Error(w, "remote unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	w.Write(resp.Body)
}

func (s *Server) handleScrub(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Minute *int   `json:"minute"`
		Time   string `json:"time"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var minute int
	switch {
	case req.Minute != nil:
		minute = *req.Minute
	case req.Time != "":
		m, err := timecode.Parse(req.Time)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		minute = m
	default:
		http.Error(w, "minute or time required", http.StatusBadRequest)
		return
	}

	if err := s.Sim.Scrub(minute); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, s.Sim.Clock.Now())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}
	writeJSON(w, s.Sim.Stop())
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := s.Sim.Engine.SetSpeed(req.Speed); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		slog.Info("speed changed", "speed", req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Sim.Engine.Speed()})
}

// handleSnapshot returns the snapshot at ?minute=N, ?time=HH:MM, or the
// current clock minute.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	minute := s.Sim.Clock.Now().Minute

	q := r.URL.Query()
	if v := q.Get("minute"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 || n > timecode.MinutesPerDay {
			http.Error(w, fmt.Sprintf("minute must be 0-%d", timecode.MinutesPerDay), http.StatusBadRequest)
			return
		}
		minute = n
	} else if v := q.Get("time"); v != "" {
		n, err := timecode.Parse(v)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		minute = n
	}

	writeJSON(w, s.Sim.Snapshot(minute))
}

func (s *Server) handleAgents(w http.ResponseWriter, r *http.Request) {
	type agentSummary struct {
		ID         agents.AgentID `json:"id"`
		Name       string         `json:"name"`
		Age        int            `json:"age"`
		Gender     string         `json:"gender"`
		Occupation string         `json:"occupation"`
		Activity   string         `json:"activity,omitempty"`
		Visible    bool           `json:"visible"`
	}

	result := []agentSummary{}
	day := s.Sim.Day()
	if day == nil {
		writeJSON(w, result)
		return
	}

	minute := s.Sim.Clock.Now().Minute
	visibleOnly := r.URL.Query().Get("visible") == "true"
	for _, a := range day.Population.ListAgents() {
		visible := day.Population.IsVisible(a.ID)
		if visibleOnly && !visible {
			continue
		}
		summary := agentSummary{
			ID:         a.ID,
			Name:       a.Name,
			Age:        a.Age,
			Gender:     a.Gender,
			Occupation: a.Occupation,
			Visible:    visible,
		}
		if act, ok := a.Current(minute); ok {
			summary.Activity = act.Name()
		}
		result = append(result, summary)
	}
	writeJSON(w, result)
}

// handleAgentRoutes dispatches /api/v1/agent/:id and /api/v1/agent/:id/visibility.
func (s *Server) handleAgentRoutes(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/agent/"), "/"), "/")
	if parts[0] == "" {
		http.Error(w, "missing agent id", http.StatusBadRequest)
		return
	}
	id := agents.AgentID(parts[0])

	day := s.Sim.Day()
	if day == nil {
		http.Error(w, engine.ErrNoDay.Error(), http.StatusNotFound)
		return
	}
	agent, ok := day.Population.Agent(id)
	if !ok {
		http.Error(w, "agent not found", http.StatusNotFound)
		return
	}

	if len(parts) >= 2 && parts[1] == "visibility" {
		s.adminOnly(func(w http.ResponseWriter, r *http.Request) {
			s.handleVisibility(w, r, id)
		})(w, r)
		return
	}
	if len(parts) > 1 {
		http.NotFound(w, r)
		return
	}

	minute := s.Sim.Clock.Now().Minute
	detail := struct {
		*agents.Agent
		Visible    bool             `json:"visible"`
		Current    *agents.Activity `json:"current_activity"`
		Trajectory []agents.Coord   `json:"trajectory"`
	}{
		Agent:      agent,
		Visible:    day.Population.IsVisible(id),
		Trajectory: agent.Trajectory(minute),
	}
	if act, ok := agent.Current(minute); ok {
		detail.Current = &act
	}
	writeJSON(w, detail)
}

func (s *Server) handleVisibility(w http.ResponseWriter, r *http.Request, id agents.AgentID) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	visible, err := s.Sim.ToggleVisibility(id)
	switch {
	case errors.Is(err, population.ErrUnknownAgent):
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	case errors.Is(err, engine.ErrNoDay):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"agent_id": id, "visible": visible})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, defaultEvents, maxEventsLimit)

	// Optional category filter: day, clock, activity.
	category := r.URL.Query().Get("category")
	if category == "" {
		writeJSON(w, s.Sim.Events(limit))
		return
	}

	filtered := []engine.Event{}
	for _, e := range s.Sim.Events(0) {
		if e.Category == category {
			filtered = append(filtered, e)
		}
	}
	if len(filtered) > limit {
		filtered = filtered[len(filtered)-limit:]
	}
	writeJSON(w, filtered)
}

func (s *Server) handleDays(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	days, err := s.DB.RecentDays(queryLimit(r, 20, 200))
	if err != nil {
		slog.Error("journal query failed", "error", err)
		http.Error(w, "journal query failed", http.StatusInternalServerError)
		return
	}
	if days == nil {
		days = []persistence.DayRecord{}
	}
	writeJSON(w, days)
}

// handleDayEvents returns the journaled events of /api/v1/day/:id.
func (s *Server) handleDayEvents(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "journal disabled", http.StatusServiceUnavailable)
		return
	}
	id := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/day/"), "/")
	if id == "" {
		http.Error(w, "missing day id", http.StatusBadRequest)
		return
	}
	events, err := s.DB.DayEvents(id, queryLimit(r, defaultEvents, maxEventsLimit))
	if err != nil {
		slog.Error("journal query failed", "day", id, "error", err)
		http.Error(w, "journal query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func queryLimit(r *http.Request, def, max int) int {
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= max {
			return n
		}
	}
	return def
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
