package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/internal/validation"
)

// maxItemsPerRequest bounds one catalog upsert.
const maxItemsPerRequest = 1000

// ItemDependencies defines the catalog operations.
type ItemDependencies interface {
	Deck(ctx context.Context, limit int) ([]model.CatalogItem, error)
	PutItems(ctx context.Context, items []model.CatalogItem) error
}

// ItemsHandler handles catalog requests.
type ItemsHandler struct {
	deps ItemDependencies
}

// NewItemsHandler creates a new items handler.
func NewItemsHandler(deps ItemDependencies) *ItemsHandler {
	return &ItemsHandler{deps: deps}
}

type itemRequest struct {
	ID           string     `json:"id" validate:"required,max=255"`
	Title        string     `json:"title" validate:"max=500"`
	CategoryID   string     `json:"category_id" validate:"max=255"`
	DiscoveredAt *time.Time `json:"discovered_at"`
}

// HandleGetDeck handles GET /items requests. The optional limit query
// parameter sets the deck size.
func (h *ItemsHandler) HandleGetDeck(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_deck"
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(r.Context(), w, WrapKind(op, ErrBadRequest, fmt.Errorf("limit: %w", err)))
			return
		}
		limit = n
	}

	items, err := h.deps.Deck(r.Context(), limit)
	if err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	if items == nil {
		items = []model.CatalogItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// HandlePutItems handles PUT /items requests.
func (h *ItemsHandler) HandlePutItems(w http.ResponseWriter, r *http.Request) {
	const op = "api.put_items"
	var req []itemRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if len(req) == 0 || len(req) > maxItemsPerRequest {
		writeError(r.Context(), w, WrapKind(op, ErrBadRequest,
			fmt.Errorf("expected 1 to %d items, got %d", maxItemsPerRequest, len(req))))
		return
	}

	items := make([]model.CatalogItem, len(req))
	for i, it := range req {
		if err := validation.Struct(it); err != nil {
			writeError(r.Context(), w, Wrap(op, fmt.Errorf("item %d: %w", i, err)))
			return
		}
		items[i] = model.CatalogItem{ID: it.ID, Title: it.Title, CategoryID: it.CategoryID}
		if it.DiscoveredAt != nil {
			items[i].DiscoveredAt = it.DiscoveredAt.UTC()
		}
	}

	if err := h.deps.PutItems(r.Context(), items); err != nil {
		writeError(r.Context(), w, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
