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

	"github.com/kailas-cloud/vecmatch/internal/domain"
	"github.com/kailas-cloud/vecmatch/internal/domain/search/query"
	logpkg "github.com/kailas-cloud/vecmatch/internal/logger"
	healthuc "github.com/kailas-cloud/vecmatch/internal/usecase/health"
	matchuc "github.com/kailas-cloud/vecmatch/internal/usecase/match"
)

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the vecmatch HTTP API.
type Server struct {
	match         *matchuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler

	defaultPerPage int
	maxPerPage     int
}

// NewServer creates an HTTP API server.
func NewServer(match *matchuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		match:  match,
		health: health,
		logger: logger,
	}
	// Order matters: a retrieval outage caused by a dimension mismatch is still an outage.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrRetrievalUnavailable, http.StatusServiceUnavailable, CodeRetrievalUnavailable),
		sentinelHandler(domain.ErrUnsupportedInput, http.StatusUnprocessableEntity, CodeUnsupportedInput),
		sentinelHandler(domain.ErrValidation, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, CodeNotFound),
		sentinelHandler(domain.ErrDegenerateVector, http.StatusUnprocessableEntity, CodeDegenerateVector),
		sentinelHandler(domain.ErrDimensionMismatch, http.StatusBadRequest, CodeDimensionMismatch),
		sentinelHandler(domain.ErrEmbeddingProviderError,
			http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrNotImplemented, http.StatusNotImplemented, CodeNotImplemented),
	}
	return s
}

// WithPagination overrides the default and maximum per_page.
func (s *Server) WithPagination(defaultPerPage, maxPerPage int) *Server {
	s.defaultPerPage = defaultPerPage
	s.maxPerPage = maxPerPage
	return s
}

// Routes registers every API route on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/embeddings", s.CreateEmbedding)
		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Post("/match", s.Match)
			r.Post("/compare", s.Compare)
			r.Post("/records", s.CreateRecord)
			r.Put("/records/{id}", s.UpsertRecord)
			r.Get("/records/{id}", s.GetRecord)
			r.Delete("/records/{id}", s.DeleteRecord)
		})
	})
}

// Match handles POST /collections/{collection}/match.
func (s *Server) Match(w http.ResponseWriter, r *http.Request) {
	var req MatchRequest
	if !decodeBody(w, r, &req) {
		return
	}

	filters, err := filtersFromDTO(req.Filters)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, err.Error())
		return
	}

	params := query.Params{
		Collection:     chi.URLParam(r, "collection"),
		RecordID:       req.ID,
		Partition:      req.Partition,
		Filters:        filters,
		Page:           req.Page,
		PerPage:        req.PerPage,
		DefaultPerPage: s.defaultPerPage,
		MaxPerPage:     s.maxPerPage,
	}
	if req.Query != "" {
		kind := req.Type
		if kind == "" {
			kind = domain.InputText
		}
		params.Input = &domain.Input{Kind: kind, Payload: req.Query}
	}
	q, err := query.New(params)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.WithUsage(r.Context())
	res, err := s.match.Match(ctx, q)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	cacheStatus := "MISS"
	if res.Cached {
		cacheStatus = "HIT"
	}
	w.Header().Set("X-Cache", cacheStatus)
	setEmbeddingHeaders(w, usage)
	writeRaw(w, http.StatusOK, res.Body)
}

// CreateRecord handles POST /collections/{collection}/records.
func (s *Server) CreateRecord(w http.ResponseWriter, r *http.Request) {
	s.writeRecord(w, r, "")
}

// UpsertRecord handles PUT /collections/{collection}/records/{id}.
func (s *Server) UpsertRecord(w http.ResponseWriter, r *http.Request) {
	s.writeRecord(w, r, chi.URLParam(r, "id"))
}

func (s *Server) writeRecord(w http.ResponseWriter, r *http.Request, id string) {
	var req RecordRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := domain.NewInput(req.Type, req.Input)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	collection := chi.URLParam(r, "collection")
	ctx, usage := domain.WithUsage(r.Context())
	rec, created, err := s.match.Ingest(ctx, matchuc.IngestRequest{
		Collection: collection,
		ID:         id,
		Partition:  req.Partition,
		Input:      in,
		Attributes: req.Attributes,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		w.Header().Set("Location", fmt.Sprintf("/api/v1/collections/%s/records/%s", collection, rec.ID()))
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, status, recordToDTO(rec))
}

// GetRecord handles GET /collections/{collection}/records/{id}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.match.Get(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToDTO(rec))
}

// DeleteRecord handles DELETE /collections/{collection}/records/{id}.
func (s *Server) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := s.match.Delete(r.Context(), chi.URLParam(r, "collection"), chi.URLParam(r, "id")); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Compare handles POST /collections/{collection}/compare.
func (s *Server) Compare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a, err := req.A.toInput()
	if err != nil {
		s.handleDomainError(w, r, fmt.Errorf("side a: %w", err))
		return
	}
	b, err := req.B.toInput()
	if err != nil {
		s.handleDomainError(w, r, fmt.Errorf("side b: %w", err))
		return
	}

	ctx, usage := domain.WithUsage(r.Context())
	cmp, err := s.match.Compare(ctx, chi.URLParam(r, "collection"),
		matchuc.Side{ID: req.A.ID, Input: a},
		matchuc.Side{ID: req.B.ID, Input: b},
	)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, CompareResponse{
		Similarity:  cmp.Similarity,
		Description: cmp.Description,
	})
}

// CreateEmbedding handles POST /embeddings.
// Provider failures surface as 422, matching the standalone embedding service contract.
func (s *Server) CreateEmbedding(w http.ResponseWriter, r *http.Request) {
	var req EmbeddingRequest
	if !decodeBody(w, r, &req) {
		return
	}
	in, err := domain.NewInput(req.Type, req.Input)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	ctx, usage := domain.WithUsage(r.Context())
	res, err := s.match.Embed(ctx, in)
	if errors.Is(err, domain.ErrEmbeddingProviderError) {
		logpkg.FromContextOr(r.Context(), s.logger).Warn("embedding provider error", zap.Error(err))
		writeError(w, http.StatusUnprocessableEntity, CodeEmbeddingProviderError, domain.ErrEmbeddingProviderError.Error())
		return
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, EmbeddingResponse{
		Status:             "success",
		Embeddings:         res.Embedding,
		EmbeddingDimension: len(res.Embedding),
	})
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
	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.Usage) {
	if usage != nil && usage.EmbeddingCalls > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.EmbeddingTokens))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRaw writes an already serialized JSON body.
func writeRaw(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a client-safe message: the validation detail for
// caller mistakes, otherwise only the sentinel text.
func safeDomainMessage(err error) string {
	if msg, ok := validationMessage(err); ok {
		return msg
	}
	sentinels := []error{
		domain.ErrRetrievalUnavailable,
		domain.ErrUnsupportedInput,
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrDegenerateVector,
		domain.ErrDimensionMismatch,
		domain.ErrEmbeddingProviderError,
		domain.ErrNotImplemented,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// validationMessage finds the error produced by domain.Validationf in err's chain.
func validationMessage(err error) (string, bool) {
	if errors.Is(err, domain.ErrRetrievalUnavailable) {
		return "", false
	}
	prefix := domain.ErrValidation.Error() + ": "
	for e := err; e != nil; e = errors.Unwrap(e) {
		if strings.HasPrefix(e.Error(), prefix) {
			return e.Error(), true
		}
	}
	return "", false
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logpkg.FromContextOr(r.Context(), s.logger)
	logger.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}
