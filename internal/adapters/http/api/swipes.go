package api

import (
	"context"
	"net/http"

	service "github.com/okian/swipescore/internal/app"
	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/internal/validation"
)

// SwipeDependencies defines the interface for recording swipes.
type SwipeDependencies interface {
	RecordSwipe(ctx context.Context, in service.SwipeInput) (model.Interaction, error)
}

// SwipesHandler handles swipe requests.
type SwipesHandler struct {
	deps SwipeDependencies
}

// NewSwipesHandler creates a new swipes handler.
func NewSwipesHandler(deps SwipeDependencies) *SwipesHandler {
	return &SwipesHandler{deps: deps}
}

type swipeRequest struct {
	SessionID  string `json:"session_id" validate:"required,uuid"`
	ItemID     string `json:"item_id" validate:"required,max=255"`
	Direction  string `json:"direction" validate:"required,direction"`
	DurationMS *int64 `json:"swipe_duration_ms" validate:"omitempty,gt=0"`
}

// HandlePostSwipe handles POST /swipes requests.
func (h *SwipesHandler) HandlePostSwipe(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_swipe"
	var req swipeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}

	in, err := h.deps.RecordSwipe(r.Context(), service.SwipeInput{
		SessionID:  req.SessionID,
		ItemID:     req.ItemID,
		Direction:  model.Direction(req.Direction),
		DurationMS: req.DurationMS,
	})
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, in)
}
