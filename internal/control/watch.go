package control

import (
	"context"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/storage"
)

// Watch calls refresh with the current items, then again after every
// change, until ctx is done. In-process surfaces follow the store's change
// feed; without a store, the storedElements mirror in the database under
// dir is watched instead.
func (s *Surface) Watch(ctx context.Context, dir string, refresh func([]Item)) error {
	if s.store == nil {
		s.refresh(ctx, refresh)
		return s.area.Watch(ctx, dir, 0, func(c storage.Changes) {
			if _, ok := c[storage.KeyStoredElements]; ok {
				s.refresh(ctx, refresh)
			}
		})
	}

	changes, cancel := s.store.Subscribe(16)
	defer cancel()
	s.refresh(ctx, refresh)
	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			s.refresh(ctx, refresh)
		}
	}
}

func (s *Surface) refresh(ctx context.Context, refresh func([]Item)) {
	items, err := s.Items(ctx)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Warn("element list refresh failed", zap.Error(err))
		}
		return
	}
	refresh(items)
}
