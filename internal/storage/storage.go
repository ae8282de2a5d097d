// Package storage is the persisted key/value mapping shared between contexts,
// the equivalent of an extension's local storage area. It carries the enabled
// flag and a mirror of the record list for control surfaces. It is a read
// model: the page agent never reads it back.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/db"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/record"
)

// Keys written by elclones.
const (
	KeyEnabled        = "isEnabled"
	KeyStoredElements = "storedElements"
)

// Change is the old and new raw JSON of a key. Old is nil for a new key.
type Change struct {
	Old json.RawMessage
	New json.RawMessage
}

// Changes maps changed keys to their change.
type Changes map[string]Change

// Area is the SQLite-backed mapping.
type Area struct {
	db  *sql.DB
	log *zap.Logger

	mu        sync.Mutex
	listeners map[int]func(Changes)
	next      int
}

// NewArea returns an Area over an initialized database.
func NewArea(database *sql.DB, log *zap.Logger) *Area {
	return &Area{
		db:        database,
		log:       logging.OrNop(log).Named("storage"),
		listeners: make(map[int]func(Changes)),
	}
}

// Get returns the raw JSON values of keys; missing keys are absent.
func (a *Area) Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error) {
	rows, err := db.GetStorage(ctx, a.db, keys...)
	if err != nil {
		return nil, err
	}
	out := make(map[string]json.RawMessage, len(rows))
	for k, r := range rows {
		out[k] = json.RawMessage(r.Value)
	}
	return out, nil
}

// Has reports whether key has ever been written.
func (a *Area) Has(ctx context.Context, key string) (bool, error) {
	vals, err := a.Get(ctx, key)
	if err != nil {
		return false, err
	}
	_, ok := vals[key]
	return ok, nil
}

// Set writes every item in one transaction, replacing whole values, then
// notifies OnChanged listeners with the keys whose value actually changed.
func (a *Area) Set(ctx context.Context, items map[string]any) error {
	if len(items) == 0 {
		return nil
	}

	encoded := make(map[string]string, len(items))
	keys := make([]string, 0, len(items))
	for k, v := range items {
		data, err := json.Marshal(v)
		if err != nil {
			return errors.NewInvalidRequest(fmt.Sprintf("storage key %q: %v", k, err))
		}
		encoded[k] = string(data)
		keys = append(keys, k)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.NewInternal(err)
	}
	defer tx.Rollback()

	old, err := db.GetStorage(ctx, tx, keys...)
	if err != nil {
		return err
	}

	changes := make(Changes)
	for _, k := range keys {
		if _, err := db.PutStorage(ctx, tx, k, encoded[k]); err != nil {
			return err
		}
		prev, existed := old[k]
		if existed && prev.Value == encoded[k] {
			continue
		}
		c := Change{New: json.RawMessage(encoded[k])}
		if existed {
			c.Old = json.RawMessage(prev.Value)
		}
		changes[k] = c
	}

	if err := tx.Commit(); err != nil {
		return errors.NewInternal(err)
	}

	if len(changes) > 0 {
		a.notify(changes)
	}
	return nil
}

// OnChanged registers fn for changes made through this Area. Listeners run
// synchronously after commit, in no particular order. The returned func
// removes the listener.
func (a *Area) OnChanged(fn func(Changes)) func() {
	a.mu.Lock()
	id := a.next
	a.next++
	a.listeners[id] = fn
	a.mu.Unlock()

	return func() {
		a.mu.Lock()
		delete(a.listeners, id)
		a.mu.Unlock()
	}
}

func (a *Area) notify(changes Changes) {
	a.mu.Lock()
	fns := make([]func(Changes), 0, len(a.listeners))
	for _, fn := range a.listeners {
		fns = append(fns, fn)
	}
	a.mu.Unlock()

	for _, fn := range fns {
		fn(changes)
	}
}

// Enabled returns the persisted enabled flag, false when absent.
func (a *Area) Enabled(ctx context.Context) (bool, error) {
	vals, err := a.Get(ctx, KeyEnabled)
	if err != nil {
		return false, err
	}
	raw, ok := vals[KeyEnabled]
	if !ok {
		return false, nil
	}
	var enabled bool
	if err := json.Unmarshal(raw, &enabled); err != nil {
		a.log.Warn("ignoring malformed enabled flag", zap.ByteString("value", raw), zap.Error(err))
		return false, nil
	}
	return enabled, nil
}

// SetEnabled persists the enabled flag.
func (a *Area) SetEnabled(ctx context.Context, enabled bool) error {
	return a.Set(ctx, map[string]any{KeyEnabled: enabled})
}

// StoredElements returns the mirrored record list, empty when absent.
func (a *Area) StoredElements(ctx context.Context) ([]record.Record, error) {
	vals, err := a.Get(ctx, KeyStoredElements)
	if err != nil {
		return nil, err
	}
	return DecodeRecords(vals[KeyStoredElements])
}

// SetStoredElements replaces the mirrored record list as a whole.
func (a *Area) SetStoredElements(ctx context.Context, records []record.Record) error {
	if records == nil {
		records = []record.Record{}
	}
	return a.Set(ctx, map[string]any{KeyStoredElements: records})
}

// DecodeRecords parses a storedElements value. Empty input is an empty list.
func DecodeRecords(raw json.RawMessage) ([]record.Record, error) {
	records := []record.Record{}
	if len(raw) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, errors.NewInternal(fmt.Errorf("decode %s: %w", KeyStoredElements, err))
	}
	return records, nil
}
