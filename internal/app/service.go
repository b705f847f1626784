// Package service orchestrates swipe sessions around the pure session scorer:
// it records swipes, feeds engagement counters and persists session results.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/swipescore/internal/adapters/mq/queue"
	workerpool "github.com/okian/swipescore/internal/adapters/mq/worker"
	"github.com/okian/swipescore/internal/adapters/repository"
	"github.com/okian/swipescore/internal/domain/dedupe"
	"github.com/okian/swipescore/internal/domain/model"
	"github.com/okian/swipescore/internal/domain/scoring"
	"github.com/okian/swipescore/pkg/logger"
	"github.com/okian/swipescore/pkg/metrics"
)

// Session size bounds.
const (
	DefaultTotalCards = 25
	MaxTotalCards     = 50
)

// SwipeInput is one swipe as submitted by a client.
type SwipeInput struct {
	SessionID  string
	ItemID     string
	Direction  model.Direction
	DurationMS *int64
}

// Results is a session result with the catalog items it ranks, in rank order.
type Results struct {
	Result model.SessionResult
	Items  []model.CatalogItem
}

// Service implements the API dependencies for swipe sessions.
type Service struct {
	mu sync.RWMutex

	store   repository.Store
	deduper dedupe.Deduper
	queue   *eventqueue.InMemoryQueue
	pool    *workerpool.Pool
	scorer  *scoring.SessionScorer

	workerCount int
	queueSize   int
	dedupeSize  int
	scoringOpts []scoring.Option
	now         func() time.Time

	started bool
	logger  logger.Logger
}

// New constructs a Service. Without WithStore it keeps everything in memory.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   10_000,
		dedupeSize:  50_000,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.scorer = scoring.New(append([]scoring.Option{scoring.WithClock(s.now)}, s.scoringOpts...)...)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))

	return s
}

// Start launches the engagement workers.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.store)
	s.pool.Start(ctx)
	s.started = true

	s.logger.Info(ctx, "swipe service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queue_size", s.queueSize),
		logger.Int("dedupe_size", s.dedupeSize),
		logger.Int("top_n", s.scorer.TopN()),
	)
	return nil
}

// Stop drains queued engagement events and closes the store. If the workers
// do not finish in time the store stays open and Stop may be called again.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "engagement workers still running; store left open",
			logger.Int64("engagement_applied", s.pool.Processed()),
			logger.Error(err),
		)
		return fmt.Errorf("stop workers: %w", err)
	}
	s.started = false

	var closeErr error
	if err := s.store.Close(); err != nil {
		closeErr = fmt.Errorf("close store: %w", err)
	}

	s.logger.Info(ctx, "swipe service stopped",
		logger.Int64("engagement_applied", s.pool.Processed()),
		logger.Int64("engagement_failed", s.pool.Failed()),
	)
	return closeErr
}

// StartSession opens a new session for userID. totalCards of zero selects
// DefaultTotalCards.
func (s *Service) StartSession(ctx context.Context, userID string, totalCards int) (model.Session, error) {
	if userID == "" {
		return model.Session{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if totalCards == 0 {
		totalCards = DefaultTotalCards
	}
	if totalCards < 1 || totalCards > MaxTotalCards {
		return model.Session{}, fmt.Errorf("%w: total cards must be between 1 and %d, got %d", ErrInvalidInput, MaxTotalCards, totalCards)
	}

	sess := model.Session{
		ID:         uuid.NewString(),
		UserID:     userID,
		TotalCards: totalCards,
		StartedAt:  s.now().UTC(),
	}

	start := time.Now()
	err := s.store.CreateSession(ctx, sess)
	observeStore("create_session", start)
	if err != nil {
		metrics.RecordErrorByComponent("store", "create_session")
		return model.Session{}, fmt.Errorf("create session: %w", err)
	}

	metrics.RecordSessionStarted()
	s.logger.Debug(ctx, "session started",
		logger.String("session_id", sess.ID),
		logger.String("user_id", userID),
		logger.Int("total_cards", totalCards),
	)
	return sess, nil
}

// RecordSwipe stores one swipe and queues its engagement update. A second
// swipe on the same item in the same session returns ErrDuplicateInteraction.
func (s *Service) RecordSwipe(ctx context.Context, in SwipeInput) (model.Interaction, error) {
	direction, err := model.ParseDirection(in.Direction.String())
	if err != nil {
		return model.Interaction{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if in.ItemID == "" {
		return model.Interaction{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if in.DurationMS != nil && *in.DurationMS <= 0 {
		return model.Interaction{}, fmt.Errorf("%w: swipe duration must be positive", ErrInvalidInput)
	}

	sess, err := s.store.Session(ctx, in.SessionID)
	if err != nil {
		return model.Interaction{}, err
	}
	if sess.Completed() {
		return model.Interaction{}, ErrSessionCompleted
	}

	key := dedupe.Key(in.SessionID, in.ItemID)
	if s.deduper.SeenAndRecord(ctx, key) {
		metrics.RecordSwipeDuplicate()
		return model.Interaction{}, ErrDuplicateInteraction
	}

	interaction := model.Interaction{
		ID:         uuid.NewString(),
		SessionID:  in.SessionID,
		ItemID:     in.ItemID,
		Direction:  direction,
		DurationMS: in.DurationMS,
		CreatedAt:  s.now().UTC(),
	}

	start := time.Now()
	err = s.store.RecordInteraction(ctx, interaction)
	observeStore("record_interaction", start)
	switch {
	case errors.Is(err, repository.ErrDuplicateInteraction):
		metrics.RecordSwipeDuplicate()
		return model.Interaction{}, ErrDuplicateInteraction
	case err != nil:
		s.deduper.Unrecord(ctx, key)
		metrics.RecordErrorByComponent("store", "record_interaction")
		return model.Interaction{}, fmt.Errorf("record swipe: %w", err)
	}

	metrics.RecordSwipe(direction.String())

	ev := model.EngagementEvent{ItemID: in.ItemID, Direction: direction}
	if err := s.queue.Enqueue(ctx, ev); err != nil {
		s.logger.Warn(ctx, "engagement update dropped",
			logger.String("session_id", in.SessionID),
			logger.String("item_id", in.ItemID),
			logger.Error(err),
		)
	}
	return interaction, nil
}

// ComputeResults scores the session's swipes, persists the top items and marks
// the session completed. Each session has at most one result.
func (s *Service) ComputeResults(ctx context.Context, sessionID string) (Results, error) {
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil {
		return Results{}, err
	}

	interactions, err := s.store.Interactions(ctx, sessionID)
	if err != nil {
		metrics.RecordErrorByComponent("store", "interactions")
		return Results{}, fmt.Errorf("load swipes: %w", err)
	}
	if len(interactions) == 0 {
		return Results{}, ErrNoInteractions
	}

	catalog, err := s.store.Items(ctx, itemIDs(interactions))
	if err != nil {
		metrics.RecordErrorByComponent("store", "items")
		return Results{}, fmt.Errorf("load catalog items: %w", err)
	}

	start := time.Now()
	scored := s.scorer.Score(interactions, catalog)
	metrics.RecordScoringLatency(float64(time.Since(start).Microseconds()) / 1000)

	now := s.now().UTC()
	result := model.SessionResult{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    sess.UserID,
		Items:     scored,
		CreatedAt: now,
	}

	start = time.Now()
	err = s.store.SaveResult(ctx, result)
	observeStore("save_result", start)
	if err != nil {
		if errors.Is(err, repository.ErrResultExists) {
			return Results{}, s.completeStored(ctx, sessionID)
		}
		metrics.RecordErrorByComponent("store", "save_result")
		return Results{}, fmt.Errorf("save result: %w", err)
	}

	if err := s.store.CompleteSession(ctx, sessionID, now); err != nil {
		metrics.RecordErrorByComponent("store", "complete_session")
		return Results{}, fmt.Errorf("complete session: %w", err)
	}

	metrics.RecordResultComputed(len(scored))
	s.logger.Info(ctx, "session results computed",
		logger.String("session_id", sessionID),
		logger.Int("swipes", len(interactions)),
		logger.Int("items", len(scored)),
	)

	return Results{Result: result, Items: rankedItems(scored, catalog)}, nil
}

// completeStored marks a session completed when its result was saved but the
// completion was not. It returns ErrResultExists unless that repair fails.
func (s *Service) completeStored(ctx context.Context, sessionID string) error {
	sess, err := s.store.Session(ctx, sessionID)
	if err != nil || sess.Completed() {
		return ErrResultExists
	}

	stored, err := s.store.Result(ctx, sessionID)
	if err != nil {
		return ErrResultExists
	}
	if err := s.store.CompleteSession(ctx, sessionID, stored.CreatedAt); err != nil {
		metrics.RecordErrorByComponent("store", "complete_session")
		return fmt.Errorf("complete session: %w", err)
	}

	s.logger.Info(ctx, "completed session with stored result",
		logger.String("session_id", sessionID),
	)
	return ErrResultExists
}

// Result returns the stored result of a session.
func (s *Service) Result(ctx context.Context, sessionID string) (Results, error) {
	result, err := s.store.Result(ctx, sessionID)
	if err != nil {
		return Results{}, err
	}

	ids := make([]string, len(result.Items))
	for i, it := range result.Items {
		ids[i] = it.ItemID
	}
	catalog, err := s.store.Items(ctx, ids)
	if err != nil {
		return Results{}, fmt.Errorf("load catalog items: %w", err)
	}
	return Results{Result: result, Items: rankedItems(result.Items, catalog)}, nil
}

// Deck returns the catalog items a session swipes through. A limit of zero
// selects DefaultTotalCards.
func (s *Service) Deck(ctx context.Context, limit int) ([]model.CatalogItem, error) {
	if limit == 0 {
		limit = DefaultTotalCards
	}
	if limit < 1 || limit > MaxTotalCards {
		return nil, fmt.Errorf("%w: deck size must be between 1 and %d, got %d", ErrInvalidInput, MaxTotalCards, limit)
	}

	start := time.Now()
	items, err := s.store.ListItems(ctx, limit)
	observeStore("list_items", start)
	if err != nil {
		metrics.RecordErrorByComponent("store", "list_items")
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// PutItems inserts or updates catalog items. Items without a discovery time
// are stamped with the current time.
func (s *Service) PutItems(ctx context.Context, items []model.CatalogItem) error {
	now := s.now().UTC()
	batch := make([]model.CatalogItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			return fmt.Errorf("%w: item %d has no id", ErrInvalidInput, i)
		}
		if it.DiscoveredAt.IsZero() {
			it.DiscoveredAt = now
		}
		batch[i] = it
	}

	start := time.Now()
	err := s.store.PutItems(ctx, batch)
	observeStore("put_items", start)
	if err != nil {
		metrics.RecordErrorByComponent("store", "put_items")
		return fmt.Errorf("put items: %w", err)
	}
	return nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueCapacity": s.queue.Capacity(),
		"queueLength":   s.queue.Len(),
		"queueClosed":   s.queue.IsClosed(),
		"dedupeSize":    s.dedupeSize,
		"dedupeEntries": s.deduper.Size(),
		"topN":          s.scorer.TopN(),
	}
	if s.pool != nil {
		stats["engagementApplied"] = s.pool.Processed()
		stats["engagementFailed"] = s.pool.Failed()
	}
	return stats
}

func observeStore(op string, start time.Time) {
	metrics.RecordStoreLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// itemIDs returns the distinct item ids of interactions in first-seen order.
func itemIDs(interactions []model.Interaction) []string {
	ids := make([]string, 0, len(interactions))
	seen := make(map[string]struct{}, len(interactions))
	for _, in := range interactions {
		if _, ok := seen[in.ItemID]; ok {
			continue
		}
		seen[in.ItemID] = struct{}{}
		ids = append(ids, in.ItemID)
	}
	return ids
}

// rankedItems returns the catalog entries of scored in rank order, skipping
// items the catalog does not know.
func rankedItems(scored []model.ScoredItem, catalog []model.CatalogItem) []model.CatalogItem {
	out := make([]model.CatalogItem, 0, len(scored))
	for _, sc := range scored {
		if i := slices.IndexFunc(catalog, func(c model.CatalogItem) bool { return c.ID == sc.ItemID }); i >= 0 {
			out = append(out, catalog[i])
		}
	}
	return out
}
