package store

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
)

// Opener opens a store. It runs once, off the caller's goroutine.
type Opener func(ctx context.Context) (Store, error)

// Handle is an asynchronously opened store owned by one agent instance.
// Until the open settles, and forever after a failed open, Store reports
// unavailable and callers are expected to skip their operation.
type Handle struct {
	mu    sync.RWMutex
	store Store
	err   error
	done  chan struct{}
}

// Open starts opening the store in the background and returns immediately.
// A failure is logged once; the handle never retries.
func Open(ctx context.Context, open Opener, log *zap.Logger) *Handle {
	log = logging.OrNop(log)
	h := &Handle{done: make(chan struct{})}

	go func() {
		defer close(h.done)
		s, err := open(ctx)
		if err == nil && s == nil {
			err = errors.NewStoreUnavailable("opener returned no store")
		}

		h.mu.Lock()
		defer h.mu.Unlock()
		if err != nil {
			h.err = err
			log.Warn("element store unavailable, capture and clone disabled", zap.Error(err))
			return
		}
		h.store = s
		log.Debug("element store opened")
	}()

	return h
}

// Ready wraps an already open store in a settled handle.
func Ready(s Store) *Handle {
	h := &Handle{store: s, done: make(chan struct{})}
	close(h.done)
	return h
}

// Store returns the open store, or false while pending or after a failure.
func (h *Handle) Store() (Store, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.store, h.store != nil
}

// Wait blocks until the open settles and returns the open error, if any.
func (h *Handle) Wait(ctx context.Context) error {
	select {
	case <-h.done:
	case <-ctx.Done():
		return errors.NewCancelled("store open")
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Err returns the open error once settled, nil otherwise.
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}
