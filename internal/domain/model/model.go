// Package model contains domain models passed between layers.
package model

import "time"

// Interaction is one swipe: a user's verdict on a catalog item within a session.
// A session holds at most one interaction per item.
type Interaction struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	ItemID     string    `json:"item_id"`
	Direction  Direction `json:"direction"`
	DurationMS *int64    `json:"swipe_duration_ms,omitempty"` // view time before the swipe, if measured
	CreatedAt  time.Time `json:"created_at"`
}

// HasDuration reports whether a positive view duration was measured.
func (i Interaction) HasDuration() bool {
	return i.DurationMS != nil && *i.DurationMS > 0
}

// CatalogItem is a recommendable entity. Scoring treats it as read-only.
type CatalogItem struct {
	ID           string    `json:"id"`
	Title        string    `json:"title,omitempty"`
	CategoryID   string    `json:"category_id,omitempty"` // empty when uncategorized
	DiscoveredAt time.Time `json:"discovered_at"`

	// Engagement counters maintained from recorded swipes.
	Views      int64 `json:"view_count"`
	Accepts    int64 `json:"accept_count"`
	Rejects    int64 `json:"reject_count"`
	Superlikes int64 `json:"superlike_count"`
}

// RecordEngagement counts one view plus the counter for d.
func (c *CatalogItem) RecordEngagement(d Direction) {
	c.Views++
	switch d {
	case DirectionAccept:
		c.Accepts++
	case DirectionReject:
		c.Rejects++
	case DirectionSuperlike:
		c.Superlikes++
	}
}

// ScoredItem is a ranked recommendation with the reasons behind its score.
type ScoredItem struct {
	ItemID  string   `json:"item_id"`
	Score   float64  `json:"score"`
	Rank    int      `json:"rank"`
	Reasons []string `json:"reasons"`
}

// Session is a bounded run of swipes by one user.
type Session struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TotalCards  int        `json:"total_cards"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether results were already produced for the session.
func (s Session) Completed() bool { return s.CompletedAt != nil }

// SessionResult is the persisted top-N for a session. There is one per session.
type SessionResult struct {
	ID        string       `json:"id"`
	SessionID string       `json:"session_id"`
	UserID    string       `json:"user_id"`
	Items     []ScoredItem `json:"top_items"`
	CreatedAt time.Time    `json:"created_at"`
}

// EngagementEvent carries a recorded swipe to the asynchronous counter updater.
type EngagementEvent struct {
	ItemID    string
	Direction Direction
}
