// Package api exposes scoring, leak estimation and stored runs over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/batch"
	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/ingest"
	"github.com/sells-group/adlead-cli/internal/leak"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 10 << 20

// Server holds the shared scoring collaborators. Store may be nil, in which
// case the run endpoints are not mounted and score requests are not saved.
type Server struct {
	deps        batch.Deps
	concurrency int
	estimateAll bool
	store       store.Store
	origins     []string
}

// Option configures a Server.
type Option func(*Server)

// WithStore enables run persistence and the /v1/runs endpoints.
func WithStore(s store.Store) Option {
	return func(srv *Server) { srv.store = s }
}

// WithAllowedOrigins sets the CORS allow list. Empty allows any origin.
func WithAllowedOrigins(origins []string) Option {
	return func(srv *Server) { srv.origins = origins }
}

// WithBatchOptions sets the concurrency and estimate_all defaults for
// score requests.
func WithBatchOptions(concurrency int, estimateAll bool) Option {
	return func(srv *Server) {
		srv.concurrency = concurrency
		srv.estimateAll = estimateAll
	}
}

// New creates a Server. The deps are validated once here so a broken
// configuration fails at startup rather than on the first request.
func New(deps batch.Deps, opts ...Option) (*Server, error) {
	if _, err := batch.New(deps, batch.Options{}); err != nil {
		return nil, err
	}
	if deps.Estimator == nil {
		deps.Estimator = leak.NewEstimator(leak.DefaultTable(), leak.DefaultCorrection)
	}
	s := &Server{deps: deps}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/score", s.score)
		r.Post("/estimate", s.estimate)
		r.Get("/icps", s.listICPs)
		if s.store != nil {
			r.Get("/runs", s.listRuns)
			r.Get("/runs/{run_id}", s.getRun)
			r.Get("/runs/{run_id}/outcomes", s.listOutcomes)
		}
	})
	return r
}

type scoreRequest struct {
	Profile     string          `json:"profile"`
	EstimateAll *bool           `json:"estimate_all"`
	Save        bool            `json:"save"`
	Prospects   json.RawMessage `json:"prospects"`
}

type scoreResponse struct {
	RunID    string            `json:"run_id,omitempty"`
	Summary  model.RunSummary  `json:"summary"`
	Outcomes []model.Outcome   `json:"outcomes"`
	Rejected []ingest.RowError `json:"rejected,omitempty"`
}

func (s *Server) score(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	if len(req.Prospects) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "prospects is required")
		return
	}

	in, err := ingest.ReadBytes(r.Context(), req.Prospects, ingest.FormatJSON)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_prospects", err.Error())
		return
	}

	opts := batch.Options{Profile: req.Profile, Concurrency: s.concurrency, EstimateAll: s.estimateAll}
	if req.EstimateAll != nil {
		opts.EstimateAll = *req.EstimateAll
	}
	runner, err := batch.New(s.deps, opts)
	if err != nil {
		status := http.StatusInternalServerError
		if config.IsValidationError(err) {
			status = http.StatusUnprocessableEntity
		}
		writeError(w, status, "invalid_profile", err.Error())
		return
	}

	outcomes, sum, err := runner.Run(r.Context(), in.Prospects)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "cancelled", err.Error())
		return
	}
	in.Apply(&sum)

	resp := scoreResponse{Summary: sum, Outcomes: outcomes, Rejected: in.Rejected}
	if req.Save && s.store != nil {
		id, err := s.save(r, req.Profile, outcomes, sum)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
			return
		}
		resp.RunID = id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) save(r *http.Request, profile string, outcomes []model.Outcome, sum model.RunSummary) (string, error) {
	ctx := r.Context()
	run, err := s.store.CreateRun(ctx, profile, "api:"+middleware.GetReqID(ctx))
	if err != nil {
		return "", err
	}
	if err := s.store.SaveOutcomes(ctx, run.ID, outcomes); err != nil {
		_ = s.store.FailRun(ctx, run.ID, err.Error())
		return "", err
	}
	if err := s.store.CompleteRun(ctx, run.ID, sum); err != nil {
		return "", err
	}
	return run.ID, nil
}

type estimateRequest struct {
	leak.Metrics
	Industry string `json:"industry"`
}

type estimateResponse struct {
	model.LeakEstimate
	Display string `json:"display"`
}

func (s *Server) estimate(w http.ResponseWriter, r *http.Request) {
	var req estimateRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}
	est := s.deps.Estimator.Estimate(req.Metrics, req.Industry)
	display, err := leak.FormatLeak(est)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "estimate_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, estimateResponse{LeakEstimate: est, Display: display})
}

func (s *Server) listICPs(w http.ResponseWriter, _ *http.Request) {
	names := s.deps.Profiles.Names()
	out := make([]any, 0, len(names))
	for _, n := range names {
		p, _ := s.deps.Profiles.Get(n)
		out = append(out, p)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"default":  s.deps.Profiles.Default().Name,
		"profiles": out,
	})
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.RunFilter{
		Status:  model.RunStatus(q.Get("status")),
		Profile: q.Get("profile"),
		Limit:   20,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}
	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(r.Context(), chi.URLParam(r, "run_id"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) listOutcomes(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "run_id")
	if _, err := s.store.GetRun(r.Context(), id); err != nil {
		writeStoreError(w, err)
		return
	}
	qualified := r.URL.Query().Get("qualified") == "true"
	outcomes, err := s.store.ListOutcomes(r.Context(), id, qualified)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcomes": outcomes})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	return json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, map[string]string{"error": code, "message": msg})
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "store_failed", err.Error())
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
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
