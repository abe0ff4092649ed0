package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/doshi-kevin/medrec/internal/domain"
	healthuc "github.com/doshi-kevin/medrec/internal/usecase/health"
	recommenduc "github.com/doshi-kevin/medrec/internal/usecase/recommend"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// StatusProvider reports what the pipeline has loaded.
type StatusProvider interface {
	Status() domain.Status
}

// Server is the HTTP API over the recommendation pipeline.
type Server struct {
	recommender   *recommenduc.Service
	health        *healthuc.Service
	status        StatusProvider
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server.
func NewServer(
	recommender *recommenduc.Service,
	health *healthuc.Service,
	status StatusProvider,
	logger *zap.Logger,
) *Server {
	s := &Server{
		recommender: recommender,
		health:      health,
		status:      status,
		logger:      logger,
	}
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrInputRejected, http.StatusBadRequest, codeInputRejected),
		sentinelHandler(domain.ErrRecommendationNotFound, http.StatusNotFound, codeRecommendationNotFound),
		sentinelHandler(domain.ErrMedicineNotFound, http.StatusNotFound, codeMedicineNotFound),
		sentinelHandler(domain.ErrRankingQuotaExceeded, http.StatusPaymentRequired, codeRankingQuotaExceeded),
		sentinelHandler(domain.ErrRankingUnavailable, http.StatusBadGateway, codeRankingUnavailable),
		sentinelHandler(domain.ErrModelUnavailable, http.StatusServiceUnavailable, codeModelUnavailable),
		sentinelHandler(domain.ErrSchemaMismatch, http.StatusInternalServerError, codeSchemaMismatch),
	}
	return s
}

// Routes registers all handlers on the router.
func (s *Server) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/recommend", s.Recommend)
		r.Post("/interactions", s.CheckInteractions)
		r.Get("/recommendations", s.ListRecommendations)
		r.Get("/recommendations/{id}", s.GetRecommendation)
		r.Get("/status", s.GetStatus)
		r.Get("/health", s.HealthCheck)
	})
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
}

// Recommend handles POST /api/v1/recommend.
func (s *Server) Recommend(w http.ResponseWriter, r *http.Request) {
	var req recommendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if strings.TrimSpace(req.Symptoms) == "" {
		writeError(w, http.StatusBadRequest, codeValidationFailed, "symptoms text is required")
		return
	}

	topK := 0
	if req.TopK != nil {
		if *req.TopK <= 0 {
			writeError(w, http.StatusBadRequest, codeValidationFailed, "top_k must be positive")
			return
		}
		topK = *req.TopK
	}

	outcome, err := s.recommender.Recommend(r.Context(), recommenduc.Request{
		Text: req.Symptoms,
		TopK: topK,
	})
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

// CheckInteractions handles POST /api/v1/interactions.
func (s *Server) CheckInteractions(w http.ResponseWriter, r *http.Request) {
	var req interactionsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, codeBadRequest, "Invalid request body: "+err.Error())
		return
	}

	profile := domain.PatientProfile{
		Medicines:  req.Medicines,
		Allergies:  req.Allergies,
		Conditions: req.Conditions,
	}

	report, err := s.recommender.CheckInteractions(r.Context(), profile, req.CandidateIDs)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, safetyToResponse(report))
}

// GetRecommendation handles GET /api/v1/recommendations/{id}.
func (s *Server) GetRecommendation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	outcome, err := s.recommender.Get(r.Context(), id)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, outcomeToResponse(outcome))
}

// ListRecommendations handles GET /api/v1/recommendations.
func (s *Server) ListRecommendations(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxListLimit {
			writeError(w, http.StatusBadRequest, codeValidationFailed,
				fmt.Sprintf("limit must be between 1 and %d", maxListLimit))
			return
		}
		limit = n
	}

	outcomes, err := s.recommender.Recent(r.Context(), limit)
	if err != nil {
		s.handleDomainError(w, err)
		return
	}

	items := make([]recommendationResponse, len(outcomes))
	for i, o := range outcomes {
		items[i] = outcomeToResponse(o)
	}

	writeJSON(w, http.StatusOK, recommendationListResponse{
		Items: items,
		Total: len(items),
	})
}

// GetStatus handles GET /api/v1/status.
func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusToResponse(s.status.Status()))
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status != healthuc.Healthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, healthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrInputRejected,
		domain.ErrRecommendationNotFound,
		domain.ErrMedicineNotFound,
		domain.ErrRankingQuotaExceeded,
		domain.ErrRankingUnavailable,
		domain.ErrModelUnavailable,
		domain.ErrSchemaMismatch,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, err error) {
	s.logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
}
