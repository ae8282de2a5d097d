package ops

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/hpungsan/elclones/internal/config"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/store"
)

func newTestStore(t *testing.T) *store.SQL {
	t.Helper()
	s, err := store.OpenSQL(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("OpenSQL failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func newTestRecord(name string, ts int64) record.Record {
	return record.Record{
		ID:        uuid.NewString(),
		HTML:      `<div class="card">` + name + `</div>`,
		Styles:    `{"color":"rgb(255, 0, 0)","display":"block"}`,
		Timestamp: ts,
		Name:      name,
	}
}

func putRecords(t *testing.T, s store.Records, recs ...record.Record) {
	t.Helper()
	for _, r := range recs {
		if err := s.Put(context.Background(), r); err != nil {
			t.Fatalf("Put(%s) failed: %v", r.ID, err)
		}
	}
}

// unsafeConfig lets tests write under t.TempDir().
func unsafeConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.AllowUnsafePaths = true
	return cfg
}
