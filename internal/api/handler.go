// Package api exposes simulations over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourusername/scenario-risk/internal/metrics"
	"github.com/yourusername/scenario-risk/internal/models"
	"github.com/yourusername/scenario-risk/internal/scenario"
	"github.com/yourusername/scenario-risk/internal/service"
	"github.com/yourusername/scenario-risk/internal/simulation"
)

const (
	maxBodyBytes       = 1 << 20
	maxBatchSize       = 32
	routeSimulate      = "/api/v1/simulations"
	routeBatch         = "/api/v1/simulations/batch"
	routeResult        = "/api/v1/simulations/{id}"
	routeHistory       = "/api/v1/scenarios/{id}/results"
	routeScenarioCache = "/api/v1/scenarios/{id}/cache"
	routeCache         = "/api/v1/cache"
	defaultTimeout     = 2 * time.Minute
	defaultHistory     = 20
)

// SimulationRequest is the body of POST /api/v1/simulations
type SimulationRequest struct {
	Scenario json.RawMessage `json:"scenario"`
	Seed     *int64          `json:"seed,omitempty"`
	Persist  bool            `json:"persist,omitempty"`
}

// BatchRequest is the body of POST /api/v1/simulations/batch
type BatchRequest struct {
	Simulations []SimulationRequest `json:"simulations"`
}

// ErrorResponse is returned for every failed request
type ErrorResponse struct {
	Error    string `json:"error"`
	Field    string `json:"field,omitempty"`
	RunIndex *int   `json:"runIndex,omitempty"`
}

// Config tunes the handler
type Config struct {
	RateLimit      float64
	RateBurst      int
	RequestTimeout time.Duration
}

// Handler serves the simulation API
type Handler struct {
	svc     *service.SimulationService
	limiter *rate.Limiter
	timeout time.Duration
	logger  *logrus.Logger
	mux     *http.ServeMux
}

// NewHandler creates the API handler
func NewHandler(svc *service.SimulationService, cfg Config, logger *logrus.Logger) *Handler {
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	h := &Handler{
		svc:     svc,
		limiter: rate.NewLimiter(limit, burst),
		timeout: timeout,
		logger:  logger,
		mux:     http.NewServeMux(),
	}
	h.mux.HandleFunc("POST "+routeSimulate, h.limited(routeSimulate, h.handleSimulate))
	h.mux.HandleFunc("POST "+routeBatch, h.limited(routeBatch, h.handleBatch))
	h.mux.HandleFunc("GET "+routeResult, h.handleGetResult)
	h.mux.HandleFunc("GET "+routeSimulate, h.handleLatest)
	h.mux.HandleFunc("DELETE "+routeResult, h.handleDeleteResult)
	h.mux.HandleFunc("GET "+routeHistory, h.handleHistory)
	h.mux.HandleFunc("DELETE "+routeScenarioCache, h.handleInvalidate)
	h.mux.HandleFunc("GET "+routeCache, h.handleCacheStats)
	h.mux.HandleFunc("DELETE "+routeCache, h.handleClearCache)
	return h
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// limited rejects requests over the configured rate
func (h *Handler) limited(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			h.writeError(w, route, http.StatusTooManyRequests, ErrorResponse{Error: "rate limit exceeded"})
			return
		}
		next(w, r)
	}
}

func (h *Handler) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var body SimulationRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, routeSimulate, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}

	req, err := toServiceRequest(body)
	if err != nil {
		h.writeFailure(w, routeSimulate, err)
		return
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	resp, err := h.svc.Simulate(ctx, req)
	if err != nil {
		h.writeFailure(w, routeSimulate, err)
		return
	}
	h.writeJSON(w, routeSimulate, http.StatusOK, resp)
}

func (h *Handler) handleBatch(w http.ResponseWriter, r *http.Request) {
	var body BatchRequest
	if err := decodeBody(w, r, &body); err != nil {
		h.writeError(w, routeBatch, http.StatusBadRequest, ErrorResponse{Error: err.Error()})
		return
	}
	if len(body.Simulations) == 0 || len(body.Simulations) > maxBatchSize {
		h.writeError(w, routeBatch, http.StatusBadRequest, ErrorResponse{
			Error: fmt.Sprintf("batch must hold between 1 and %d simulations", maxBatchSize),
		})
		return
	}

	reqs := make([]service.Request, len(body.Simulations))
	for i, sim := range body.Simulations {
		req, err := toServiceRequest(sim)
		if err != nil {
			h.writeFailure(w, routeBatch, fmt.Errorf("scenario %d: %w", i, err))
			return
		}
		reqs[i] = req
	}

	ctx, cancel := contextWithTimeout(r, h.timeout)
	defer cancel()

	resps, err := h.svc.SimulateBatch(ctx, reqs)
	if err != nil {
		h.writeFailure(w, routeBatch, err)
		return
	}
	h.writeJSON(w, routeBatch, http.StatusOK, resps)
}

func (h *Handler) handleGetResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, routeResult, http.StatusBadRequest, ErrorResponse{Error: "invalid result id"})
		return
	}

	result, err := h.svc.GetResult(r.Context(), id)
	if err != nil {
		h.writeFailure(w, routeResult, err)
		return
	}
	h.writeJSON(w, routeResult, http.StatusOK, result)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, routeHistory, http.StatusBadRequest, ErrorResponse{Error: "invalid scenario id"})
		return
	}
	limit, ok := h.limit(w, r, routeHistory)
	if !ok {
		return
	}

	records, err := h.svc.History(r.Context(), id, limit)
	if err != nil {
		h.writeFailure(w, routeHistory, err)
		return
	}
	if records == nil {
		records = []*models.SimulationRecord{}
	}
	h.writeJSON(w, routeHistory, http.StatusOK, records)
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	limit, ok := h.limit(w, r, routeSimulate)
	if !ok {
		return
	}
	records, err := h.svc.Latest(r.Context(), limit)
	if err != nil {
		h.writeFailure(w, routeSimulate, err)
		return
	}
	if records == nil {
		records = []*models.SimulationRecord{}
	}
	h.writeJSON(w, routeSimulate, http.StatusOK, records)
}

func (h *Handler) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, routeResult, http.StatusBadRequest, ErrorResponse{Error: "invalid result id"})
		return
	}
	if err := h.svc.DeleteResult(r.Context(), id); err != nil {
		h.writeFailure(w, routeResult, err)
		return
	}
	h.writeNoContent(w, routeResult)
}

func (h *Handler) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.writeError(w, routeScenarioCache, http.StatusBadRequest, ErrorResponse{Error: "invalid scenario id"})
		return
	}
	removed := h.svc.InvalidateScenario(id)
	h.writeJSON(w, routeScenarioCache, http.StatusOK, map[string]int{"removed": removed})
}

func (h *Handler) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, routeCache, http.StatusOK, h.svc.CacheStats())
}

func (h *Handler) handleClearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache()
	h.writeNoContent(w, routeCache)
}

// limit reads the optional ?limit= query parameter
func (h *Handler) limit(w http.ResponseWriter, r *http.Request, route string) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultHistory, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		h.writeError(w, route, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
		return 0, false
	}
	return limit, true
}

func toServiceRequest(body SimulationRequest) (service.Request, error) {
	if len(body.Scenario) == 0 {
		return service.Request{}, &simulation.ScenarioError{Field: "scenario", Reason: "is required"}
	}
	cfg, err := scenario.Parse(body.Scenario, scenario.FormatJSON)
	if err != nil {
		return service.Request{}, err
	}
	return service.Request{Scenario: cfg, Seed: body.Seed, Persist: body.Persist}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeFailure maps service errors onto status codes
func (h *Handler) writeFailure(w http.ResponseWriter, route string, err error) {
	var (
		serr *simulation.ScenarioError
		eerr *simulation.EvaluatorError
		cerr *simulation.CancelledError
	)
	switch {
	case errors.As(err, &serr):
		h.writeError(w, route, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), Field: serr.Field})
	case errors.As(err, &eerr):
		idx := eerr.RunIndex
		h.writeError(w, route, http.StatusUnprocessableEntity, ErrorResponse{Error: err.Error(), RunIndex: &idx})
	case errors.As(err, &cerr):
		h.writeError(w, route, http.StatusServiceUnavailable, ErrorResponse{Error: err.Error()})
	case errors.Is(err, models.ErrNotFound):
		h.writeError(w, route, http.StatusNotFound, ErrorResponse{Error: "not found"})
	case errors.Is(err, service.ErrPersistenceDisabled):
		h.writeError(w, route, http.StatusNotImplemented, ErrorResponse{Error: err.Error()})
	default:
		if h.logger != nil {
			h.logger.WithError(err).WithField("route", route).Error("API request failed")
		}
		h.writeError(w, route, http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
	}
}

func (h *Handler) writeError(w http.ResponseWriter, route string, status int, body ErrorResponse) {
	h.writeJSON(w, route, status, body)
}

func (h *Handler) writeNoContent(w http.ResponseWriter, route string) {
	metrics.RecordAPIRequest(route, strconv.Itoa(http.StatusNoContent))
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, route string, status int, body any) {
	metrics.RecordAPIRequest(route, strconv.Itoa(status))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
