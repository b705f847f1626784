package repository

import (
	"context"
	"fmt"
)

// Option configures Open.
type Option func(*openOptions)

type openOptions struct {
	badgerPath  string
	postgresDSN string
}

// WithBadgerPath sets the BadgerDB directory. Empty runs badger in memory.
func WithBadgerPath(path string) Option {
	return func(o *openOptions) {
		o.badgerPath = path
	}
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *openOptions) {
		o.postgresDSN = dsn
	}
}

// Open builds the Store for backend.
func Open(ctx context.Context, backend string, opts ...Option) (Store, error) {
	var o openOptions
	for _, opt := range opts {
		opt(&o)
	}

	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBadger:
		s, err := OpenBadgerStore(o.badgerPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendPostgres:
		s, err := OpenPostgresStore(ctx, o.postgresDSN)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
