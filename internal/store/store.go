// Package store is the durable element store: an append-only collection of
// captured records keyed by id. It is the single source of truth for records;
// every other copy (the storage mirror, control-surface lists) is derived from
// it through the change feed.
package store

import (
	"context"

	"github.com/hpungsan/elclones/internal/record"
)

// Records is the store contract used by capture and clone.
// There is deliberately no update or delete.
type Records interface {
	// Put appends r and returns once the write has committed.
	Put(ctx context.Context, r record.Record) error
	// GetAll returns every record. Order is insertion order for the
	// implementations in this package, but callers must not depend on it.
	GetAll(ctx context.Context) ([]record.Record, error)
}

// Store is a Records collection with a change feed.
type Store interface {
	Records
	Get(ctx context.Context, id string) (*record.Record, error)
	Subscribe(buf int) (<-chan Change, func())
}
