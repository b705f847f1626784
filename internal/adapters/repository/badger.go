package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/okian/swipescore/internal/domain/model"
)

// Key prefixes for BadgerDB storage.
const (
	sessionKeyPrefix = "session:"
	swipeKeyPrefix   = "swipe:"
	itemKeyPrefix    = "item:"
	resultKeyPrefix  = "result:"
)

// swipeSeqKey holds the sequence that orders swipes by recording time.
const (
	swipeSeqKey       = "seq:swipe"
	swipeSeqBandwidth = 128
)

// maxConflictRetries bounds retries of a transaction that lost a write race.
const maxConflictRetries = 3

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db       *badger.DB
	swipeSeq *badger.Sequence
	owned    bool
}

// badgerSwipe is the stored form of a swipe. Seq increases with every
// recorded swipe and survives restarts.
type badgerSwipe struct {
	Seq uint64 `json:"seq"`
	model.Interaction
}

// NewBadgerStore wraps an already opened database. Close leaves db open.
func NewBadgerStore(db *badger.DB) (*BadgerStore, error) {
	seq, err := db.GetSequence([]byte(swipeSeqKey), swipeSeqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("swipe sequence: %w", err)
	}
	return &BadgerStore{db: db, swipeSeq: seq}, nil
}

// OpenBadgerStore opens the database at path. An empty path runs in memory.
func OpenBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger db: %w", err)
	}

	s, err := NewBadgerStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

func (s *BadgerStore) CreateSession(_ context.Context, sess model.Session) error {
	return s.update(func(txn *badger.Txn) error {
		return setJSON(txn, sessionKeyPrefix+sess.ID, sess)
	})
}

func (s *BadgerStore) Session(_ context.Context, id string) (model.Session, error) {
	var sess model.Session
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, sessionKeyPrefix+id, &sess, ErrSessionNotFound)
	})
	return sess, err
}

func (s *BadgerStore) CompleteSession(_ context.Context, id string, at time.Time) error {
	return s.update(func(txn *badger.Txn) error {
		var sess model.Session
		if err := getJSON(txn, sessionKeyPrefix+id, &sess, ErrSessionNotFound); err != nil {
			return err
		}
		sess.CompletedAt = &at
		return setJSON(txn, sessionKeyPrefix+id, sess)
	})
}

func (s *BadgerStore) RecordInteraction(_ context.Context, in model.Interaction) error {
	seq, err := s.swipeSeq.Next()
	if err != nil {
		return fmt.Errorf("next swipe sequence: %w", err)
	}

	return s.update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(sessionKeyPrefix + in.SessionID)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("get session: %w", err)
		}

		key := swipeKeyPrefix + swipeKey(in.SessionID, in.ItemID)
		_, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			return ErrDuplicateInteraction
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("get swipe: %w", err)
		}
		return setJSON(txn, key, badgerSwipe{Seq: seq, Interaction: in})
	})
}

func (s *BadgerStore) Interactions(_ context.Context, sessionID string) ([]model.Interaction, error) {
	var stored []badgerSwipe

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(swipeKeyPrefix + sessionID + ":")
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sw badgerSwipe
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sw)
			}); err != nil {
				return fmt.Errorf("decode swipe: %w", err)
			}
			stored = append(stored, sw)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Keys iterate in item order; callers expect recording order.
	slices.SortFunc(stored, func(a, b badgerSwipe) int {
		return cmp.Compare(a.Seq, b.Seq)
	})

	out := make([]model.Interaction, len(stored))
	for i, sw := range stored {
		out[i] = sw.Interaction
	}
	return out, nil
}

func (s *BadgerStore) PutItems(_ context.Context, items []model.CatalogItem) error {
	return s.update(func(txn *badger.Txn) error {
		for _, it := range items {
			var existing model.CatalogItem
			err := getJSON(txn, itemKeyPrefix+it.ID, &existing, ErrItemNotFound)
			if err != nil && !errors.Is(err, ErrItemNotFound) {
				return err
			}
			if err := setJSON(txn, itemKeyPrefix+it.ID, mergeItem(existing, it)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BadgerStore) Items(_ context.Context, ids []string) ([]model.CatalogItem, error) {
	out := make([]model.CatalogItem, 0, len(ids))
	err := s.db.View(func(txn *badger.Txn) error {
		for _, id := range ids {
			var it model.CatalogItem
			err := getJSON(txn, itemKeyPrefix+id, &it, ErrItemNotFound)
			if errors.Is(err, ErrItemNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, it)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) ListItems(_ context.Context, limit int) ([]model.CatalogItem, error) {
	var out []model.CatalogItem
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(itemKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(out) >= limit {
				break
			}
			var item model.CatalogItem
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &item)
			}); err != nil {
				return fmt.Errorf("decode item: %w", err)
			}
			out = append(out, item)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *BadgerStore) ApplyEngagement(_ context.Context, itemID string, d model.Direction) error {
	return s.update(func(txn *badger.Txn) error {
		var it model.CatalogItem
		if err := getJSON(txn, itemKeyPrefix+itemID, &it, ErrItemNotFound); err != nil {
			return err
		}
		it.RecordEngagement(d)
		return setJSON(txn, itemKeyPrefix+itemID, it)
	})
}

func (s *BadgerStore) SaveResult(_ context.Context, r model.SessionResult) error {
	return s.update(func(txn *badger.Txn) error {
		key := resultKeyPrefix + r.SessionID
		_, err := txn.Get([]byte(key))
		switch {
		case err == nil:
			return ErrResultExists
		case !errors.Is(err, badger.ErrKeyNotFound):
			return fmt.Errorf("get result: %w", err)
		}
		return setJSON(txn, key, r)
	})
}

func (s *BadgerStore) Result(_ context.Context, sessionID string) (model.SessionResult, error) {
	var r model.SessionResult
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, resultKeyPrefix+sessionID, &r, ErrResultNotFound)
	})
	return r, err
}

// Close releases the swipe sequence and closes the database if the store
// opened it.
func (s *BadgerStore) Close() error {
	var errs []error
	if err := s.swipeSeq.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release swipe sequence: %w", err))
	}
	if s.owned {
		if err := s.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// update runs fn in a read-write transaction, retrying when a concurrent
// transaction committed a conflicting write first.
func (s *BadgerStore) update(fn func(txn *badger.Txn) error) error {
	var err error
	for range maxConflictRetries {
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	if err := txn.Set([]byte(key), data); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func getJSON(txn *badger.Txn, key string, v any, notFound error) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return notFound
	}
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}
