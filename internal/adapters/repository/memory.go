package repository

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/swipescore/internal/domain/model"
)

// MemoryStore keeps everything in maps guarded by a single RWMutex.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	swipes   map[string][]model.Interaction
	swiped   map[string]struct{}
	items    map[string]model.CatalogItem
	results  map[string]model.SessionResult
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]model.Session),
		swipes:   make(map[string][]model.Interaction),
		swiped:   make(map[string]struct{}),
		items:    make(map[string]model.CatalogItem),
		results:  make(map[string]model.SessionResult),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	return nil
}

func (s *MemoryStore) Session(_ context.Context, id string) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	if !ok {
		return model.Session{}, ErrSessionNotFound
	}
	return sess, nil
}

func (s *MemoryStore) CompleteSession(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	sess.CompletedAt = &at
	s.sessions[id] = sess
	return nil
}

func (s *MemoryStore) RecordInteraction(_ context.Context, in model.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[in.SessionID]; !ok {
		return ErrSessionNotFound
	}
	key := swipeKey(in.SessionID, in.ItemID)
	if _, dup := s.swiped[key]; dup {
		return ErrDuplicateInteraction
	}
	s.swiped[key] = struct{}{}
	s.swipes[in.SessionID] = append(s.swipes[in.SessionID], in)
	return nil
}

func (s *MemoryStore) Interactions(_ context.Context, sessionID string) ([]model.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Interaction, len(s.swipes[sessionID]))
	copy(out, s.swipes[sessionID])
	return out, nil
}

func (s *MemoryStore) PutItems(_ context.Context, items []model.CatalogItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		s.items[it.ID] = mergeItem(s.items[it.ID], it)
	}
	return nil
}

func (s *MemoryStore) Items(_ context.Context, ids []string) ([]model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CatalogItem, 0, len(ids))
	for _, id := range ids {
		if it, ok := s.items[id]; ok {
			out = append(out, it)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListItems(_ context.Context, limit int) ([]model.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.CatalogItem, 0, len(s.items))
	for _, it := range s.items {
		out = append(out, it)
	}
	slices.SortFunc(out, func(a, b model.CatalogItem) int { return strings.Compare(a.ID, b.ID) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ApplyEngagement(_ context.Context, itemID string, d model.Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok {
		return ErrItemNotFound
	}
	it.RecordEngagement(d)
	s.items[itemID] = it
	return nil
}

func (s *MemoryStore) SaveResult(_ context.Context, r model.SessionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[r.SessionID]; ok {
		return ErrResultExists
	}
	s.results[r.SessionID] = r
	return nil
}

func (s *MemoryStore) Result(_ context.Context, sessionID string) (model.SessionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[sessionID]
	if !ok {
		return model.SessionResult{}, ErrResultNotFound
	}
	return r, nil
}

func (s *MemoryStore) Close() error { return nil }

func swipeKey(sessionID, itemID string) string {
	return sessionID + ":" + itemID
}

// mergeItem applies an upsert onto the stored item, keeping its counters.
func mergeItem(existing, update model.CatalogItem) model.CatalogItem {
	update.Views = existing.Views
	update.Accepts = existing.Accepts
	update.Rejects = existing.Rejects
	update.Superlikes = existing.Superlikes
	return update
}
