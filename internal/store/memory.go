package store

import (
	"context"
	"sync"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/record"
)

// Memory is an in-process store with the same semantics as SQL.
// Used for --ephemeral runs and tests.
type Memory struct {
	mu      sync.RWMutex
	records []record.Record
	index   map[string]int
	feed    *feed
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{index: make(map[string]int), feed: newFeed()}
}

// Put appends r; a duplicate id is rejected.
func (m *Memory) Put(ctx context.Context, r record.Record) error {
	if err := ctx.Err(); err != nil {
		return errors.NewCancelled("put")
	}
	if err := r.Validate(); err != nil {
		return errors.NewInvalidRequest(err.Error())
	}

	m.mu.Lock()
	if _, ok := m.index[r.ID]; ok {
		m.mu.Unlock()
		return errors.NewDuplicateID(r.ID)
	}
	m.index[r.ID] = len(m.records)
	m.records = append(m.records, r)
	m.mu.Unlock()

	m.feed.publish(r)
	return nil
}

// GetAll returns a copy of every record in insertion order.
func (m *Memory) GetAll(ctx context.Context) ([]record.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("get all")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]record.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

// Get returns a single record or NOT_FOUND.
func (m *Memory) Get(ctx context.Context, id string) (*record.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[id]
	if !ok {
		return nil, errors.NewNotFound(id)
	}
	r := m.records[i]
	return &r, nil
}

// Subscribe returns a channel of committed changes and its cancel func.
func (m *Memory) Subscribe(buf int) (<-chan Change, func()) {
	return m.feed.subscribe(buf)
}
