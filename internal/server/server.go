// Package server exposes the HTTP trigger, health and inspection endpoints.
package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	corslib "github.com/rs/cors"

	"github.com/rewired-gh/paceoracle/internal/logger"
	"github.com/rewired-gh/paceoracle/internal/models"
	"github.com/rewired-gh/paceoracle/internal/monitor"
	"github.com/rewired-gh/paceoracle/internal/tracker"
)

const (
	defaultAlertLimit = 20
	maxAlertLimit     = 500
)

// Runner runs tracking cycles on demand.
type Runner interface {
	RunCycle(ctx context.Context) (*tracker.TickResult, error)
	Status() monitor.Status
}

// StateReader reads persisted game state.
type StateReader interface {
	Load(ctx context.Context, gameID string) (*models.GameState, error)
	List(ctx context.Context) ([]*models.GameState, error)
}

// AlertLog returns recently emitted alerts, newest first.
type AlertLog interface {
	GetRecentAlerts(ctx context.Context, k int) ([]models.Alert, error)
}

// Pinger is a dependency the health check probes.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds everything the handlers need.
type Deps struct {
	Runner         Runner
	States         StateReader
	Alerts         AlertLog
	Checks         map[string]Pinger
	AllowedOrigins []string
}

type handler struct {
	deps Deps
}

// NewRouter creates the chi router with all middleware and routes.
func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := d.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := corslib.New(corslib.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	})
	r.Use(c.Handler)

	h := &handler{deps: d}

	r.Get("/health", h.health)
	r.Post("/run-orchestration", h.runOrchestration)
	r.Get("/games", h.listGames)
	r.Get("/games/{gameID}", h.getGame)
	r.Get("/alerts", h.recentAlerts)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("%s %s -> %d in %v", r.Method, r.URL.Path, ww.Status(), time.Since(start))
	})
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(h.deps.Checks))
	for name, p := range h.deps.Checks {
		if err := p.Ping(ctx); err != nil {
			checks[name] = "unhealthy: " + err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "healthy"
	}

	body := map[string]interface{}{
		"status":    "healthy",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if status != http.StatusOK {
		body["status"] = "unhealthy"
	}
	if h.deps.Runner != nil {
		body["monitor"] = h.deps.Runner.Status()
	}
	writeJSON(w, status, body)
}

type cycleResponse struct {
	Games    int            `json:"games"`
	Alerts   []models.Alert `json:"alerts"`
	Outcomes map[string]int `json:"outcomes"`
	Tracked  []string       `json:"tracked"`
	Duration string         `json:"duration"`
}

func (h *handler) runOrchestration(w http.ResponseWriter, r *http.Request) {
	if h.deps.Runner == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "tracking is not configured")
		return
	}

	res, err := h.deps.Runner.RunCycle(r.Context())
	if errors.Is(err, monitor.ErrCycleInProgress) {
		writeError(w, http.StatusConflict, "busy", err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusBadGateway, "cycle_failed", err.Error())
		return
	}

	outcomes := make(map[string]int)
	for _, g := range res.Games {
		outcomes[string(g.Outcome)]++
	}
	alerts := res.Alerts
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, cycleResponse{
		Games:    len(res.Games),
		Alerts:   alerts,
		Outcomes: outcomes,
		Tracked:  h.deps.Runner.Status().Tracked,
		Duration: res.Duration.String(),
	})
}

func (h *handler) listGames(w http.ResponseWriter, r *http.Request) {
	states, err := h.deps.States.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if states == nil {
		states = []*models.GameState{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(states),
		"games": states,
	})
}

func (h *handler) getGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "gameID")
	st, err := h.deps.States.Load(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if st == nil {
		writeError(w, http.StatusNotFound, "not_found", "no state for game "+id)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) recentAlerts(w http.ResponseWriter, r *http.Request) {
	if h.deps.Alerts == nil {
		writeError(w, http.StatusServiceUnavailable, "unavailable", "alert log is not configured")
		return
	}

	limit := defaultAlertLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = min(n, maxAlertLimit)
	}

	alerts, err := h.deps.Alerts.GetRecentAlerts(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
		return
	}
	if alerts == nil {
		alerts = []models.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(alerts),
		"alerts": alerts,
	})
}

// Server wraps the HTTP listener.
type Server struct {
	http *http.Server
}

// New creates a server listening on addr.
func New(addr string, d Deps) *Server {
	return &Server{http: &http.Server{
		Addr:              addr,
		Handler:           NewRouter(d),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start serves in the background. Listener errors other than a clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		logger.Info("HTTP server listening on %s", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed: %v", err)
		}
	}()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
