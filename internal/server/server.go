// Package server exposes the pipeline to collaborators as a JSON API.
package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"transitmap/internal/directions"
	"transitmap/internal/filecache"
	"transitmap/internal/geo"
	"transitmap/internal/realtime"
	"transitmap/internal/routes"
)

// Server is the HTTP API for the schedule and routing pipelines.
type Server struct {
	router   chi.Router
	port     int
	logger   *slog.Logger
	compiler *routes.Compiler
	routing  *directions.Client
	cache    *filecache.Store
	rt       *realtime.Store
}

// New creates a Server with all routes registered.
func New(port int, compiler *routes.Compiler, routing *directions.Client, cache *filecache.Store, rt *realtime.Store, logger *slog.Logger) *Server {
	s := &Server{
		port:     port,
		logger:   logger,
		compiler: compiler,
		routing:  routing,
		cache:    cache,
		rt:       rt,
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	r.Use(requestLogger(logger))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/routes/{provider}", s.handleRoutes)
		r.Get("/stops/{provider}", s.handleStops)
		r.Post("/directions", s.handleDirections)
		r.Delete("/cache", s.handleClearCache)
		r.Get("/cache/stats", s.handleCacheStats)
		r.Get("/vehicles", s.handleVehicles)
	})

	s.router = r
	return s
}

// Handler returns the underlying HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRoutes compiles per-trip geometries for a provider. Pipeline
// failures degrade to an empty list, never a 5xx.
func (s *Server) handleRoutes(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	subCategory := r.URL.Query().Get("category")

	records := s.compiler.Compile(r.Context(), provider, subCategory)
	if records == nil {
		records = []routes.TripRouteRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleStops(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	subCategory := r.URL.Query().Get("category")

	stops := s.compiler.Stops(r.Context(), provider, subCategory)
	if stops == nil {
		stops = []routes.StopRecord{}
	}
	writeJSON(w, http.StatusOK, stops)
}

type directionsRequest struct {
	Waypoints []struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	} `json:"waypoints"`
}

// handleDirections resolves a waypoint chain to a road-following path.
// Resolution itself never fails; only a malformed body is a client error.
func (s *Server) handleDirections(w http.ResponseWriter, r *http.Request) {
	var req directionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}

	waypoints := make([]geo.Point, len(req.Waypoints))
	for i, wp := range req.Waypoints {
		waypoints[i] = geo.Point{Lng: wp.Lng, Lat: wp.Lat}
	}

	path := s.routing.Resolve(r.Context(), waypoints)
	if path == nil {
		path = []geo.Point{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": path})
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	subCategory := r.URL.Query().Get("category")

	if err := s.cache.Clear(r.Context(), provider, subCategory); err != nil {
		s.logger.Error("cache clear failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "cache clear failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.cache.FileStats(r.Context())
	if err != nil {
		s.logger.Error("cache stats failed", "error", err)
		writeJSON(w, http.StatusOK, filecache.Stats{})
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles := s.rt.All()
	if routeID := r.URL.Query().Get("route"); routeID != "" {
		vehicles = s.rt.ByRoute(routeID)
	}
	if vehicles == nil {
		vehicles = []realtime.VehiclePosition{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
