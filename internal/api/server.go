// Package api serves the dashboard and evaluation HTTP API. Read endpoints
// aggregate stored runs into the stats the dashboard renders; write
// endpoints kick off evaluations as background jobs.
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/provider"
	"github.com/sells-group/citewatch/internal/registry"
	"github.com/sells-group/citewatch/internal/runlog"
	"github.com/sells-group/citewatch/internal/runner"
	"github.com/sells-group/citewatch/internal/store"
)

// Server wires the store, run logs, and provider registry behind the REST
// API.
type Server struct {
	store    store.Store
	logs     *runlog.Writer
	clusters []registry.Cluster
	registry *provider.Registry
	runOpts  runner.Options

	// Fallbacks for evaluate/cite requests that omit prompts or targets.
	defaultPrompts []string
	defaultTargets []model.TargetSpec
}

// NewServer builds a Server. clusters may be nil, in which case the built-in
// cluster set is used.
func NewServer(st store.Store, logs *runlog.Writer, clusters []registry.Cluster, reg *provider.Registry, runOpts runner.Options) *Server {
	if len(clusters) == 0 {
		clusters = registry.DefaultClusters()
	}
	return &Server{
		store:    st,
		logs:     logs,
		clusters: clusters,
		registry: reg,
		runOpts:  runOpts,
	}
}

// SetDefaults installs the prompt and target sets used when a request does
// not carry its own.
func (s *Server) SetDefaults(prompts []string, targets []model.TargetSpec) {
	s.defaultPrompts = prompts
	s.defaultTargets = targets
}

// Router assembles the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(logRequests)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/healthz", s.handleHealthz)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/clusters", s.handleClusters)
		r.Get("/clusters/{clusterID}", s.handleClusterDetail)
		r.Get("/prompts", s.handlePrompts)
		r.Get("/models", s.handleModels)
		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{timestamp}", s.handleRunDetail)
		r.Post("/evaluate", s.handleEvaluate)
		r.Get("/jobs/{jobID}", s.handleJob)
		r.Post("/cite", s.handleCite)
	})
	return r
}

// requestID tags every request so log lines from one call can be correlated.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", w.Header().Get("X-Request-ID")),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
