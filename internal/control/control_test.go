package control

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/hpungsan/elclones/internal/bus"
	"github.com/hpungsan/elclones/internal/db"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/message"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/storage"
	"github.com/hpungsan/elclones/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	dir   string
	area  *storage.Area
	store *store.SQL
	bus   *bus.Bus
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	dir := t.TempDir()
	database, err := db.Init(dir)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	st := store.NewSQL(database)
	t.Cleanup(func() { st.Close() })
	return fixture{dir: dir, area: storage.NewArea(database, nil), store: st, bus: bus.New(nil)}
}

func TestInit_ReadsPersistedFlag(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := New(f.area, f.store, f.bus, nil)

	enabled, err := s.Init(ctx)
	require.NoError(t, err)
	require.False(t, enabled, "absent flag reads as false")

	require.NoError(t, f.area.SetEnabled(ctx, true))
	enabled, err = New(f.area, f.store, f.bus, nil).Init(ctx)
	require.NoError(t, err)
	require.True(t, enabled)
}

func TestToggleExtension_PersistsThenSends(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mb, err := f.bus.Register("tab")
	require.NoError(t, err)
	f.bus.SetActive("tab")

	s := New(f.area, f.store, f.bus, nil)
	delivered, err := s.ToggleExtension(ctx, true)
	require.NoError(t, err)
	require.True(t, delivered)
	require.True(t, s.Enabled())

	enabled, err := f.area.Enabled(ctx)
	require.NoError(t, err)
	require.True(t, enabled)
	require.Equal(t, []message.Message{message.ToggleExtension{Enabled: true}}, mb.Drain())
}

func TestToggle_NoActivePage(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := New(f.area, f.store, f.bus, nil)

	delivered, err := s.ToggleExtension(ctx, true)
	require.NoError(t, err)
	require.False(t, delivered)
	enabled, err := f.area.Enabled(ctx)
	require.NoError(t, err)
	require.True(t, enabled, "flag is persisted even without a receiver")

	delivered, err = s.ToggleElementHighlight(ctx, "x", true)
	require.NoError(t, err)
	require.False(t, delivered)

	_, err = s.ToggleElementHighlight(ctx, "", true)
	require.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestItems_LabelsAndHighlights(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	idA, idB := record.NewID(), record.NewID()
	require.NoError(t, f.store.Put(ctx, record.Record{ID: idA, HTML: "<p></p>", Styles: "{}", Timestamp: 1, Name: "p.note"}))
	require.NoError(t, f.store.Put(ctx, record.Record{ID: idB, HTML: "<i></i>", Styles: "{}", Timestamp: 2}))

	s := New(f.area, f.store, f.bus, nil)
	_, err := s.ToggleElementHighlight(ctx, idB, true)
	require.NoError(t, err)

	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Equal(t, []Item{
		{ID: idA, Label: "p.note", Timestamp: 1},
		{ID: idB, Label: "Element " + idB, Highlighted: true, Timestamp: 2},
	}, items)

	r, err := s.Get(ctx, idA)
	require.NoError(t, err)
	require.Equal(t, "p.note", r.Name)
	_, err = s.Get(ctx, record.NewID())
	require.True(t, errors.Is(err, errors.ErrNotFound))
}

func TestItems_FromMirrorWithoutStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.area.SetStoredElements(ctx, []record.Record{{ID: "m", HTML: "<b></b>", Styles: "{}", Name: "b"}}))

	s := New(f.area, nil, nil, nil)
	items, err := s.Items(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Equal(t, "m", items[0].ID)

	r, err := s.Get(ctx, "m")
	require.NoError(t, err)
	require.Equal(t, "b", r.Name)
}

type collector struct {
	mu    sync.Mutex
	calls [][]Item
}

func (c *collector) refresh(items []Item) {
	c.mu.Lock()
	c.calls = append(c.calls, items)
	c.mu.Unlock()
}

func (c *collector) last() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.calls) == 0 {
		return nil
	}
	return c.calls[len(c.calls)-1]
}

func TestWatch_StoreFeed(t *testing.T) {
	f := newFixture(t)
	s := New(f.area, f.store, f.bus, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var c collector
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, f.dir, c.refresh) }()

	require.Eventually(t, func() bool { return c.last() != nil }, 5*time.Second, 5*time.Millisecond)
	require.Empty(t, c.last())

	require.NoError(t, f.store.Put(context.Background(), record.Record{ID: record.NewID(), HTML: "<a></a>", Styles: "{}", Name: "a"}))
	require.Eventually(t, func() bool { return len(c.last()) == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestWatch_MirrorFromAnotherProcess(t *testing.T) {
	f := newFixture(t)
	s := New(f.area, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var c collector
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, f.dir, c.refresh) }()

	// Keep rewriting the mirror until the watcher, which may still be
	// taking its baseline, reports it.
	require.Eventually(t, func() bool {
		_ = f.area.SetStoredElements(context.Background(), []record.Record{
			{ID: "x", HTML: "<a></a>", Styles: "{}", Timestamp: time.Now().UnixNano(), Name: "a"},
		})
		return len(c.last()) == 1
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestHighlighted_Sorted(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	s := New(f.area, f.store, nil, nil)

	for _, id := range []string{"c", "a", "b"} {
		_, err := s.ToggleElementHighlight(ctx, id, true)
		require.NoError(t, err)
	}
	_, err := s.ToggleElementHighlight(ctx, "b", false)
	require.NoError(t, err)
	require.Equal(t, []string{"a", "c"}, s.Highlighted())
}
