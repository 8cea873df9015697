// Package api serves the run ledger and metrics over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/psantana5/shopbench/internal/report"
	"github.com/psantana5/shopbench/pkg/logging"
	"github.com/psantana5/shopbench/pkg/store"
)

// ResultsHandler exposes recorded experiment runs
type ResultsHandler struct {
	store   store.Store
	metrics *report.Metrics
	logger  *logging.Logger
}

// NewResultsHandler creates a handler over a ledger. metrics may be nil.
func NewResultsHandler(s store.Store, metrics *report.Metrics, logger *logging.Logger) *ResultsHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	return &ResultsHandler{store: s, metrics: metrics, logger: logger}
}

// RegisterRoutes registers all API routes
func (h *ResultsHandler) RegisterRoutes(r *mux.Router) {
	// specific routes before parameterized ones
	r.HandleFunc("/runs/unsolved", h.ListUnsolved).Methods("GET")
	r.HandleFunc("/runs", h.ListRuns).Methods("GET")
	r.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	r.HandleFunc("/runs/{id}/result", h.GetRunResult).Methods("GET")

	if h.metrics != nil {
		r.Handle("/metrics", h.metrics.Handler()).Methods("GET")
	}
	r.HandleFunc("/health", h.Health).Methods("GET")
}

// ListRuns returns the newest runs first, ?limit=N bounds the list
func (h *ResultsHandler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	runs, err := h.store.ListRuns(limit)
	if err != nil {
		h.logger.Error("Failed to list runs", logging.Fields{"error": err.Error()})
		http.Error(w, fmt.Sprintf("Failed to list runs: %v", err), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun returns one ledger entry
func (h *ResultsHandler) GetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// GetRunResult streams the persisted result record of a run
func (h *ResultsHandler) GetRunResult(w http.ResponseWriter, r *http.Request) {
	run, ok := h.lookup(w, r)
	if !ok {
		return
	}
	data, err := os.ReadFile(run.ResultPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, fmt.Sprintf("Result file %s no longer exists", run.ResultPath), http.StatusGone)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to read result: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// ListUnsolved returns the most recent runs that produced no schedule
func (h *ResultsHandler) ListUnsolved(w http.ResponseWriter, r *http.Request) {
	n, err := queryInt(r, "limit", 20)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	samples := []report.UnsolvedSample{}
	if h.metrics != nil {
		samples = h.metrics.Unsolved.GetRecent(n)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"unsolved": samples,
		"count":    len(samples),
	})
}

// Health reports whether the ledger is reachable
func (h *ResultsHandler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *ResultsHandler) lookup(w http.ResponseWriter, r *http.Request) (*store.Run, bool) {
	id := mux.Vars(r)["id"]
	run, err := h.store.GetRun(id)
	if err != nil {
		if errors.Is(err, store.ErrRunNotFound) {
			http.Error(w, fmt.Sprintf("Run not found: %s", id), http.StatusNotFound)
			return nil, false
		}
		http.Error(w, fmt.Sprintf("Failed to get run: %v", err), http.StatusInternalServerError)
		return nil, false
	}
	return run, true
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
