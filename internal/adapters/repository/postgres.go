package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/swipescore/internal/domain/model"
)

// PostgreSQL error codes and constraints the store maps to sentinel errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"

	swipesUniqueConstraint  = "swipes_session_gadget_unique"
	resultsUniqueConstraint = "session_results_session_unique"
)

// schema creates the tables used by PostgresStore when they are missing.
const schema = `
CREATE TABLE IF NOT EXISTS gadgets (
	id                TEXT PRIMARY KEY,
	title             TEXT NOT NULL DEFAULT '',
	category_id       TEXT,
	fetched_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	view_count        INTEGER NOT NULL DEFAULT 0,
	right_swipe_count INTEGER NOT NULL DEFAULT 0,
	left_swipe_count  INTEGER NOT NULL DEFAULT 0,
	super_swipe_count INTEGER NOT NULL DEFAULT 0,
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_gadgets_category ON gadgets (category_id);

CREATE TABLE IF NOT EXISTS swipe_sessions (
	id           TEXT PRIMARY KEY,
	user_id      TEXT NOT NULL,
	total_cards  INTEGER NOT NULL DEFAULT 25,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON swipe_sessions (user_id);

CREATE TABLE IF NOT EXISTS swipes (
	id                TEXT PRIMARY KEY,
	user_id           TEXT NOT NULL,
	session_id        TEXT NOT NULL REFERENCES swipe_sessions (id) ON DELETE CASCADE,
	gadget_id         TEXT NOT NULL,
	direction         TEXT NOT NULL,
	swipe_duration_ms INTEGER,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	seq               BIGSERIAL,
	CONSTRAINT swipes_session_gadget_unique UNIQUE (session_id, user_id, gadget_id)
);
ALTER TABLE swipes ADD COLUMN IF NOT EXISTS seq BIGSERIAL;
CREATE INDEX IF NOT EXISTS idx_swipes_session_seq ON swipes (session_id, seq);

CREATE TABLE IF NOT EXISTS session_results (
	id          TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL REFERENCES swipe_sessions (id) ON DELETE CASCADE,
	user_id     TEXT NOT NULL,
	top_gadgets JSONB NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT session_results_session_unique UNIQUE (session_id)
);
CREATE INDEX IF NOT EXISTS idx_results_user ON session_results (user_id);
`

// DB is the subset of *pgxpool.Pool used by PostgresStore.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Close()
}

// PostgresStore implements Store on PostgreSQL.
type PostgresStore struct {
	db DB
}

// NewPostgresStore wraps db.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgresStore connects a pool to dsn and creates missing tables.
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := NewPostgresStore(pool)
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the tables and indexes if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.Exec(ctx,
		`INSERT INTO swipe_sessions (id, user_id, total_cards, started_at) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.UserID, sess.TotalCards, sess.StartedAt)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Session(ctx context.Context, id string) (model.Session, error) {
	var sess model.Session
	err := s.db.QueryRow(ctx,
		`SELECT id, user_id, total_cards, started_at, completed_at FROM swipe_sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.UserID, &sess.TotalCards, &sess.StartedAt, &sess.CompletedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Session{}, ErrSessionNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("select session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) CompleteSession(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx, `UPDATE swipe_sessions SET completed_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("complete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) RecordInteraction(ctx context.Context, in model.Interaction) error {
	// user_id is copied from the session so the unique constraint covers it.
	tag, err := s.db.Exec(ctx,
		`INSERT INTO swipes (id, user_id, session_id, gadget_id, direction, swipe_duration_ms, created_at)
		 SELECT $1, user_id, id, $3, $4, $5, $6 FROM swipe_sessions WHERE id = $2`,
		in.ID, in.SessionID, in.ItemID, in.Direction.String(), in.DurationMS, in.CreatedAt)
	if err != nil {
		if constraintViolated(err, pgUniqueViolation, swipesUniqueConstraint) {
			return ErrDuplicateInteraction
		}
		return fmt.Errorf("insert swipe: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotFound
	}
	return nil
}

func (s *PostgresStore) Interactions(ctx context.Context, sessionID string) ([]model.Interaction, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, gadget_id, direction, swipe_duration_ms, created_at
		 FROM swipes WHERE session_id = $1 ORDER BY seq`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("select swipes: %w", err)
	}
	defer rows.Close()

	var out []model.Interaction
	for rows.Next() {
		var (
			in        model.Interaction
			direction string
		)
		if err := rows.Scan(&in.ID, &in.SessionID, &in.ItemID, &direction, &in.DurationMS, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan swipe: %w", err)
		}
		if in.Direction, err = model.ParseDirection(direction); err != nil {
			return nil, fmt.Errorf("swipe %s: %w", in.ID, err)
		}
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate swipes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) PutItems(ctx context.Context, items []model.CatalogItem) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, it := range items {
		var category *string
		if it.CategoryID != "" {
			category = &it.CategoryID
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO gadgets (id, title, category_id, fetched_at) VALUES ($1, $2, $3, $4)
			 ON CONFLICT (id) DO UPDATE SET title = EXCLUDED.title, category_id = EXCLUDED.category_id,
			 fetched_at = EXCLUDED.fetched_at, updated_at = now()`,
			it.ID, it.Title, category, it.DiscoveredAt); err != nil {
			return fmt.Errorf("upsert item %s: %w", it.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// itemColumns is the select list scanned by scanItems.
const itemColumns = `id, title, COALESCE(category_id, ''), fetched_at,
	view_count, right_swipe_count, left_swipe_count, super_swipe_count`

func (s *PostgresStore) Items(ctx context.Context, ids []string) ([]model.CatalogItem, error) {
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM gadgets WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, fmt.Errorf("select items: %w", err)
	}
	return scanItems(rows, len(ids))
}

func (s *PostgresStore) ListItems(ctx context.Context, limit int) ([]model.CatalogItem, error) {
	// LIMIT NULL returns every row.
	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+` FROM gadgets ORDER BY id LIMIT $1`, lim)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return scanItems(rows, max(limit, 0))
}

func scanItems(rows pgx.Rows, capacity int) ([]model.CatalogItem, error) {
	defer rows.Close()

	out := make([]model.CatalogItem, 0, capacity)
	for rows.Next() {
		var it model.CatalogItem
		if err := rows.Scan(&it.ID, &it.Title, &it.CategoryID, &it.DiscoveredAt,
			&it.Views, &it.Accepts, &it.Rejects, &it.Superlikes); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) ApplyEngagement(ctx context.Context, itemID string, d model.Direction) error {
	var accept, reject, super int
	switch d {
	case model.DirectionAccept:
		accept = 1
	case model.DirectionReject:
		reject = 1
	case model.DirectionSuperlike:
		super = 1
	}

	tag, err := s.db.Exec(ctx,
		`UPDATE gadgets SET view_count = view_count + 1,
		        right_swipe_count = right_swipe_count + $2,
		        left_swipe_count = left_swipe_count + $3,
		        super_swipe_count = super_swipe_count + $4,
		        updated_at = now()
		 WHERE id = $1`, itemID, accept, reject, super)
	if err != nil {
		return fmt.Errorf("update counters: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *PostgresStore) SaveResult(ctx context.Context, r model.SessionResult) error {
	payload, err := json.Marshal(r.Items)
	if err != nil {
		return fmt.Errorf("marshal result items: %w", err)
	}

	_, err = s.db.Exec(ctx,
		`INSERT INTO session_results (id, session_id, user_id, top_gadgets, created_at) VALUES ($1, $2, $3, $4, $5)`,
		r.ID, r.SessionID, r.UserID, payload, r.CreatedAt)
	switch {
	case err == nil:
		return nil
	case constraintViolated(err, pgUniqueViolation, resultsUniqueConstraint):
		return ErrResultExists
	case constraintViolated(err, pgForeignKeyViolation, ""):
		return ErrSessionNotFound
	default:
		return fmt.Errorf("insert result: %w", err)
	}
}

func (s *PostgresStore) Result(ctx context.Context, sessionID string) (model.SessionResult, error) {
	var (
		r       model.SessionResult
		payload []byte
	)
	err := s.db.QueryRow(ctx,
		`SELECT id, session_id, user_id, top_gadgets, created_at FROM session_results WHERE session_id = $1`, sessionID).
		Scan(&r.ID, &r.SessionID, &r.UserID, &payload, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.SessionResult{}, ErrResultNotFound
	}
	if err != nil {
		return model.SessionResult{}, fmt.Errorf("select result: %w", err)
	}
	if err := json.Unmarshal(payload, &r.Items); err != nil {
		return model.SessionResult{}, fmt.Errorf("decode result items: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) Close() error {
	s.db.Close()
	return nil
}

// constraintViolated reports whether err is a PostgreSQL error with code and,
// when constraint is non-empty, on that constraint.
func constraintViolated(err error, code, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != code {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
