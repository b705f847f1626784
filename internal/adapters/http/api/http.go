// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/swipescore/internal/adapters/http/swagger"
	service "github.com/okian/swipescore/internal/app"
	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/internal/validation"
	"github.com/okian/swipescore/pkg/logger"
	"github.com/okian/swipescore/pkg/metrics"
)

// maxBodyBytes bounds every request body.
const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers.
type Dependencies interface {
	StatsProvider

	StartSession(ctx context.Context, userID string, totalCards int) (model.Session, error)
	RecordSwipe(ctx context.Context, in service.SwipeInput) (model.Interaction, error)
	ComputeResults(ctx context.Context, sessionID string) (service.Results, error)
	Result(ctx context.Context, sessionID string) (service.Results, error)
	Deck(ctx context.Context, limit int) ([]model.CatalogItem, error)
	PutItems(ctx context.Context, items []model.CatalogItem) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	sessionsHandler *SessionsHandler
	swipesHandler   *SwipesHandler
	itemsHandler    *ItemsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:   NewHealthHandler(),
		statsHandler:    NewStatsHandler(deps),
		sessionsHandler: NewSessionsHandler(deps),
		swipesHandler:   NewSwipesHandler(deps),
		itemsHandler:    NewItemsHandler(deps),
	}
}

// Routes returns the router serving every API endpoint.
func (s *Server) Routes(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/stats", s.statsHandler.HandleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))

	r.Post("/sessions", s.sessionsHandler.HandleCreate)
	r.Post("/sessions/{id}/results", s.sessionsHandler.HandleComputeResults)
	r.Get("/sessions/{id}/results", s.sessionsHandler.HandleGetResults)
	r.Post("/swipes", s.swipesHandler.HandlePostSwipe)
	r.Get("/items", s.itemsHandler.HandleGetDeck)
	r.Put("/items", s.itemsHandler.HandlePutItems)

	swagger.Register(ctx, r)
	return r
}

type errorResponse struct {
	Code    string                  `json:"code"`
	Message string                  `json:"message"`
	Fields  []validation.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps err onto a status code and error body.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, code := classify(err)
	resp := errorResponse{Code: code, Message: err.Error()}

	var verr *validation.RequestValidationError
	if errors.As(err, &verr) {
		resp.Fields = verr.Fields
	}
	if status >= http.StatusInternalServerError {
		logger.Get().Named("api").Error(ctx, "request failed", logger.Error(err))
		resp.Message = ErrInternal.Error()
	}
	writeJSON(w, status, resp)
}

func classify(err error) (int, string) {
	var verr *validation.RequestValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, service.ErrNoInteractions):
		return http.StatusNotFound, "no_swipes"
	case errors.Is(err, service.ErrResultNotFound):
		return http.StatusNotFound, "result_not_found"
	case errors.Is(err, service.ErrDuplicateInteraction):
		return http.StatusConflict, "duplicate_swipe"
	case errors.Is(err, service.ErrSessionCompleted):
		return http.StatusConflict, "session_completed"
	case errors.Is(err, service.ErrResultExists):
		return http.StatusConflict, "result_exists"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// decodeBody decodes a JSON body into dst. An empty body is an error.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("request body is empty")
	}
	return json.Unmarshal(data, dst)
}
