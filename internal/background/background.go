// Package background is the process-wide coordinator. It seeds the
// persisted mapping on first install and keeps the storedElements mirror
// in step with the durable store. It is the only writer of the mirror.
package background

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/bus"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/storage"
	"github.com/hpungsan/elclones/internal/store"
)

// DefaultResyncInterval is how often Run compares the mirror with the
// store to pick up writes made by another process.
const DefaultResyncInterval = 2 * time.Second

// Coordinator owns the bus for the lifetime of the process, so receivers
// stay registered for as long as their contexts live.
type Coordinator struct {
	area   *storage.Area
	store  store.Store
	bus    *bus.Bus
	log    *zap.Logger
	resync time.Duration
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithResyncInterval sets the resync period. Zero or less turns resync off,
// leaving the change feed as the only trigger.
func WithResyncInterval(d time.Duration) Option {
	return func(c *Coordinator) { c.resync = d }
}

// New returns a coordinator.
func New(area *storage.Area, st store.Store, b *bus.Bus, log *zap.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		area:   area,
		store:  st,
		bus:    b,
		log:    logging.OrNop(log).Named("background"),
		resync: DefaultResyncInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Bus returns the message bus shared by all contexts.
func (c *Coordinator) Bus() *bus.Bus { return c.bus }

// Install writes the default mapping: disabled, no stored elements. Keys
// already present are left alone, so a restart keeps the user's toggle.
func (c *Coordinator) Install(ctx context.Context) error {
	defaults := map[string]any{
		storage.KeyEnabled:        false,
		storage.KeyStoredElements: []any{},
	}

	current, err := c.area.Get(ctx, storage.KeyEnabled, storage.KeyStoredElements)
	if err != nil {
		return err
	}
	missing := make(map[string]any)
	for k, v := range defaults {
		if _, ok := current[k]; !ok {
			missing[k] = v
		}
	}
	if len(missing) == 0 {
		return nil
	}
	if err := c.area.Set(ctx, missing); err != nil {
		return err
	}
	c.log.Info("installed default state", zap.Int("keys", len(missing)))
	return nil
}

// Run projects the store into the mirror until ctx is done or the store's
// feed closes. Each projection replaces the whole list with GetAll, so
// coalesced or dropped notifications only delay the mirror. The feed only
// carries this process's writes; a periodic resync covers the rest, such
// as an import run from another process.
func (c *Coordinator) Run(ctx context.Context) error {
	changes, cancel := c.store.Subscribe(64)
	defer cancel()

	// Catch up with anything written while no projector was running.
	c.project(ctx)

	var tick <-chan time.Time
	if c.resync > 0 {
		t := time.NewTicker(c.resync)
		defer t.Stop()
		tick = t.C
	}

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			c.resyncMirror(ctx)
		case ch, ok := <-changes:
			if !ok {
				return nil
			}
			if last != 0 && ch.Seq != last+1 {
				c.log.Debug("change feed gap", zap.Uint64("from", last), zap.Uint64("to", ch.Seq))
			}
			last = ch.Seq
			last = drain(changes, last)
			c.project(ctx)
		}
	}
}

// drain consumes changes already buffered; one projection covers them.
func drain(changes <-chan store.Change, last uint64) uint64 {
	for {
		select {
		case ch, ok := <-changes:
			if !ok {
				return last
			}
			last = ch.Seq
		default:
			return last
		}
	}
}

func (c *Coordinator) project(ctx context.Context) {
	records, err := c.store.GetAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Error("mirror projection failed to read store", zap.Error(err))
		}
		return
	}
	if err := c.area.SetStoredElements(ctx, records); err != nil {
		if ctx.Err() == nil {
			c.log.Error("mirror projection failed to write", zap.Error(err))
		}
		return
	}
	c.log.Debug("mirror updated", zap.Int("records", len(records)))
}

// resyncMirror projects only when the mirror's ids differ from the store's.
// Records are immutable, so equal ids mean an equal list.
func (c *Coordinator) resyncMirror(ctx context.Context) {
	records, err := c.store.GetAll(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Debug("resync failed to read store", zap.Error(err))
		}
		return
	}
	mirror, err := c.area.StoredElements(ctx)
	if err != nil {
		if ctx.Err() == nil {
			c.log.Debug("resync failed to read mirror", zap.Error(err))
		}
		return
	}
	if sameIDs(records, mirror) {
		return
	}
	c.log.Info("mirror out of date, resyncing",
		zap.Int("store", len(records)), zap.Int("mirror", len(mirror)))
	if err := c.area.SetStoredElements(ctx, records); err != nil {
		if ctx.Err() == nil {
			c.log.Error("mirror resync failed to write", zap.Error(err))
		}
	}
}

func sameIDs(a, b []record.Record) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID {
			return false
		}
	}
	return true
}
