package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/db"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/record"
)

// SQL is the SQLite-backed store.
type SQL struct {
	db   *sql.DB
	feed *feed
	own  bool
}

// NewSQL wraps an already initialized database. Close does not close it.
func NewSQL(database *sql.DB) *SQL {
	return &SQL{db: database, feed: newFeed()}
}

// OpenSQL initializes the database under baseDir and returns a store owning it.
func OpenSQL(baseDir string, cfg *config.Config) (*SQL, error) {
	database, err := db.Init(baseDir)
	if err != nil {
		return nil, err
	}
	db.ConfigurePool(database, cfg)
	return &SQL{db: database, feed: newFeed(), own: true}, nil
}

// DB exposes the underlying database for the storage mapping and offline ops.
func (s *SQL) DB() *sql.DB {
	return s.db
}

// Put validates and appends r in its own transaction, then publishes it.
func (s *SQL) Put(ctx context.Context, r record.Record) error {
	if err := r.Validate(); err != nil {
		return errors.NewInvalidRequest(err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("begin: %w", err))
	}
	defer tx.Rollback()

	if err := db.InsertElement(ctx, tx, r); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.NewInternal(fmt.Errorf("commit: %w", err))
	}

	s.feed.publish(r)
	return nil
}

// GetAll returns every record in insertion order.
func (s *SQL) GetAll(ctx context.Context) ([]record.Record, error) {
	return db.ListElements(ctx, s.db)
}

// Get returns a single record or NOT_FOUND.
func (s *SQL) Get(ctx context.Context, id string) (*record.Record, error) {
	return db.GetElement(ctx, s.db, id)
}

// Subscribe returns a channel of committed changes and its cancel func.
func (s *SQL) Subscribe(buf int) (<-chan Change, func()) {
	return s.feed.subscribe(buf)
}

// Close ends all subscriptions and closes the database if the store opened it.
func (s *SQL) Close() error {
	s.feed.closeAll()
	if s.own {
		return s.db.Close()
	}
	return nil
}
