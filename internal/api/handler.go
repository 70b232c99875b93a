// Package api serves persisted runs and their derived tables over HTTP for
// dashboards and the visualization layer.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/pressure-cli/internal/metrics"
	"github.com/sells-group/pressure-cli/internal/model"
	"github.com/sells-group/pressure-cli/internal/pipeline"
	"github.com/sells-group/pressure-cli/internal/store"
)

// Reader is the subset of the store the API reads from.
type Reader interface {
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
	LatestRun(ctx context.Context) (*model.Run, error)
	GetTable(ctx context.Context, runID string, name string) (json.RawMessage, error)
}

// Runner creates analysis runs and executes them.
type Runner interface {
	Create(ctx context.Context, locations map[model.Category]string) (string, error)
	Execute(ctx context.Context, runID string, locations map[model.Category]string) (*pipeline.Outcome, error)
}

// Handler wires run endpoints to the store.
type Handler struct {
	store   Reader
	runner  Runner
	metrics *metrics.Metrics
	running sync.WaitGroup
}

// New constructs a Handler. A nil runner disables POST /runs and nil metrics
// disables /metrics.
func New(st Reader, runner Runner, m *metrics.Metrics) *Handler {
	return &Handler{store: st, runner: runner, metrics: m}
}

// Wait blocks until every run started through the API has finished.
func (h *Handler) Wait() {
	h.running.Wait()
}

// Router builds the HTTP routes with CORS for the given origins.
func (h *Handler) Router(origins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", h.HandleHealth)
	r.Route("/runs", func(r chi.Router) {
		r.Get("/", h.HandleListRuns)
		if h.runner != nil {
			r.Post("/", h.HandleCreateRun)
		}
		r.Get("/latest", h.HandleLatestRun)
		r.Get("/latest/tables/{table}", h.HandleLatestTable)
		r.Get("/{id}", h.HandleGetRun)
		r.Get("/{id}/tables/{table}", h.HandleGetTable)
	})
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}
	return r
}

// HandleHealth handles GET /health.
func (h *Handler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListRuns handles GET /runs?status=&limit=&offset=.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{Status: model.RunStatus(q.Get("status"))}

	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	runs, err := h.store.ListRuns(r.Context(), filter)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// createRunRequest names the three fact table locations of a new run.
type createRunRequest struct {
	Enrollment  string `json:"enrollment"`
	Biometric   string `json:"biometric"`
	Demographic string `json:"demographic"`
}

// HandleCreateRun handles POST /runs. The run is recorded before the reply,
// which carries its id; it then executes in the background behind any run
// already in progress. Clients poll GET /runs/{id} for the outcome.
func (h *Handler) HandleCreateRun(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	locations := map[model.Category]string{
		model.CategoryEnrollment:  req.Enrollment,
		model.CategoryBiometric:   req.Biometric,
		model.CategoryDemographic: req.Demographic,
	}
	for _, c := range model.Categories {
		if locations[c] == "" {
			writeError(w, http.StatusBadRequest, c.Key()+" location is required")
			return
		}
	}

	runID, err := h.runner.Create(r.Context(), locations)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	ctx := context.WithoutCancel(r.Context())
	h.running.Add(1)
	go func() {
		defer h.running.Done()
		out, err := h.runner.Execute(ctx, runID, locations)
		if err != nil {
			zap.L().Error("api: run failed", zap.String("run_id", runID), zap.Error(err))
			return
		}
		zap.L().Info("api: run finished",
			zap.String("run_id", out.RunID),
			zap.String("status", string(out.Status())),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted", "run_id": runID})
}

// HandleGetRun handles GET /runs/{id}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleLatestRun handles GET /runs/latest.
func (h *Handler) HandleLatestRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// HandleGetTable handles GET /runs/{id}/tables/{table}.
func (h *Handler) HandleGetTable(w http.ResponseWriter, r *http.Request) {
	h.writeTable(w, r, chi.URLParam(r, "id"))
}

// HandleLatestTable handles GET /runs/latest/tables/{table}.
func (h *Handler) HandleLatestTable(w http.ResponseWriter, r *http.Request) {
	run, err := h.store.LatestRun(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	h.writeTable(w, r, run.ID)
}

func (h *Handler) writeTable(w http.ResponseWriter, r *http.Request, runID string) {
	table := chi.URLParam(r, "table")
	if !slices.Contains(model.TableNames, table) {
		writeError(w, http.StatusNotFound, "unknown table "+table)
		return
	}

	rows, err := h.store.GetTable(r.Context(), runID, table)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rows)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	zap.L().Error("api: store request failed",
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal error")
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, errors.New("invalid")
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}
