package storage

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/db"
	"github.com/hpungsan/elclones/internal/errors"
)

// DefaultPollInterval bounds how stale a watcher can get when the platform
// misses file events (WAL checkpoints do not always touch the main file).
const DefaultPollInterval = time.Second

// Watch reports changes written by any connection, including other
// processes, to the database under dir. fn runs on the watcher goroutine,
// which is the caller's; Watch returns when ctx is done.
func (a *Area) Watch(ctx context.Context, dir string, interval time.Duration, fn func(Changes)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	rows, err := db.GetStorage(ctx, a.db)
	if err != nil {
		return err
	}
	seen := make(map[string]string, len(rows))
	var rev int64
	for k, r := range rows {
		seen[k] = r.Value
		if r.Rev > rev {
			rev = r.Rev
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternal(err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return errors.NewInternal(err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	poll := func() {
		changed, err := db.StorageChangedSince(ctx, a.db, rev)
		if err != nil {
			if ctx.Err() == nil {
				a.log.Warn("storage poll failed", zap.Error(err))
			}
			return
		}
		changes := make(Changes)
		for _, r := range changed {
			rev = r.Rev
			prev, existed := seen[r.Key]
			if existed && prev == r.Value {
				continue
			}
			c := Change{New: json.RawMessage(r.Value)}
			if existed {
				c.Old = json.RawMessage(prev)
			}
			changes[r.Key] = c
			seen[r.Key] = r.Value
		}
		if len(changes) > 0 {
			fn(changes)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if strings.HasPrefix(filepath.Base(ev.Name), db.FileName) && ev.Has(fsnotify.Write|fsnotify.Create) {
				poll()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("storage watcher error", zap.Error(err))
		case <-ticker.C:
			poll()
		}
	}
}
