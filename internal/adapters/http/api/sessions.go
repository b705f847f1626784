package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/swipescore/internal/app"
	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/internal/validation"
)

// SessionDependencies defines the session and result operations.
type SessionDependencies interface {
	StartSession(ctx context.Context, userID string, totalCards int) (model.Session, error)
	ComputeResults(ctx context.Context, sessionID string) (service.Results, error)
	Result(ctx context.Context, sessionID string) (service.Results, error)
}

// SessionsHandler handles session and result requests.
type SessionsHandler struct {
	deps SessionDependencies
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps SessionDependencies) *SessionsHandler {
	return &SessionsHandler{deps: deps}
}

type createSessionRequest struct {
	UserID     string `json:"user_id" validate:"required,max=255"`
	TotalCards int    `json:"total_cards" validate:"omitempty,gte=1,lte=50"`
}

type resultsResponse struct {
	Result   model.SessionResult `json:"result"`
	TopItems []model.ScoredItem  `json:"top_items"`
	Items    []model.CatalogItem `json:"items"`
}

func newResultsResponse(res service.Results) resultsResponse {
	top := res.Result.Items
	if top == nil {
		top = []model.ScoredItem{}
	}
	res.Result.Items = top
	items := res.Items
	if items == nil {
		items = []model.CatalogItem{}
	}
	return resultsResponse{Result: res.Result, TopItems: top, Items: items}
}

// HandleCreate handles POST /sessions requests.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	var req createSessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}

	sess, err := h.deps.StartSession(r.Context(), req.UserID, req.TotalCards)
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// HandleComputeResults handles POST /sessions/{id}/results requests.
func (h *SessionsHandler) HandleComputeResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.compute_results"
	res, err := h.deps.ComputeResults(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, newResultsResponse(res))
}

// HandleGetResults handles GET /sessions/{id}/results requests.
func (h *SessionsHandler) HandleGetResults(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_results"
	res, err := h.deps.Result(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, newResultsResponse(res))
}
