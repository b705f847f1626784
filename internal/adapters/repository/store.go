// Package repository persists sessions, swipes, catalog items and session results.
package repository

import (
	"context"
	"time"

	"github.com/okian/swipescore/internal/domain/model"
)

// Backend names accepted by Open.
const (
	BackendMemory   = "memory"
	BackendBadger   = "badger"
	BackendPostgres = "postgres"
)

// Store provides read/write access to swipe sessions and their results.
type Store interface {
	// CreateSession persists a new session.
	CreateSession(ctx context.Context, s model.Session) error
	// Session returns the session with id or ErrSessionNotFound.
	Session(ctx context.Context, id string) (model.Session, error)
	// CompleteSession stamps the session's completion time.
	CompleteSession(ctx context.Context, id string, at time.Time) error

	// RecordInteraction stores one swipe. A second swipe on the same item in the
	// same session returns ErrDuplicateInteraction.
	RecordInteraction(ctx context.Context, in model.Interaction) error
	// Interactions returns the session's swipes in the order they were recorded.
	Interactions(ctx context.Context, sessionID string) ([]model.Interaction, error)

	// PutItems inserts or updates catalog items. Engagement counters of existing
	// items are preserved.
	PutItems(ctx context.Context, items []model.CatalogItem) error
	// Items returns the catalog items with the given ids. Unknown ids are skipped.
	Items(ctx context.Context, ids []string) ([]model.CatalogItem, error)
	// ListItems returns up to limit catalog items ordered by id. A limit of
	// zero or less returns every item.
	ListItems(ctx context.Context, limit int) ([]model.CatalogItem, error)
	// ApplyEngagement bumps the counters of an item for one swipe.
	// Returns ErrItemNotFound if the item is unknown.
	ApplyEngagement(ctx context.Context, itemID string, d model.Direction) error

	// SaveResult persists a session's result. Returns ErrResultExists if the
	// session already has one.
	SaveResult(ctx context.Context, r model.SessionResult) error
	// Result returns the session's result or ErrResultNotFound.
	Result(ctx context.Context, sessionID string) (model.SessionResult, error)

	Close() error
}
