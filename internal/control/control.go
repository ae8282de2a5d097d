// Package control is the core of a control surface: the enabled toggle, the
// list of captured elements and per-element highlight toggles. The MCP,
// web and CLI surfaces are thin shells over a Surface.
package control

import (
	"context"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/bus"
	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/message"
	"github.com/hpungsan/elclones/internal/record"
	"github.com/hpungsan/elclones/internal/storage"
	"github.com/hpungsan/elclones/internal/store"
)

// Item is one row of the element list.
type Item struct {
	ID          string `json:"id" yaml:"id"`
	Label       string `json:"label" yaml:"label"`
	Highlighted bool   `json:"highlighted" yaml:"highlighted"`
	Timestamp   int64  `json:"timestamp" yaml:"timestamp"`
}

// Sender delivers messages to the active page agent.
type Sender interface {
	SendActive(m message.Message) error
}

// Surface is safe for concurrent use.
type Surface struct {
	area   *storage.Area
	store  store.Store
	sender Sender
	log    *zap.Logger

	mu          sync.Mutex
	enabled     bool
	highlighted map[string]bool
}

var _ Sender = (*bus.Bus)(nil)

// New returns a surface. With a nil store the list is read from the
// storedElements mirror instead, as a separate process has to.
func New(area *storage.Area, st store.Store, sender Sender, log *zap.Logger) *Surface {
	return &Surface{
		area:        area,
		store:       st,
		sender:      sender,
		log:         logging.OrNop(log).Named("control"),
		highlighted: make(map[string]bool),
	}
}

// Init loads the toggle state from the persisted flag, false when unset.
func (s *Surface) Init(ctx context.Context) (bool, error) {
	enabled, err := s.area.Enabled(ctx)
	if err != nil {
		return false, err
	}
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()
	return enabled, nil
}

// Enabled returns the toggle state.
func (s *Surface) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// ToggleExtension persists the flag, then tells the active agent.
// delivered is false when no agent is active; the flag is persisted anyway.
func (s *Surface) ToggleExtension(ctx context.Context, enabled bool) (delivered bool, err error) {
	if err := s.area.SetEnabled(ctx, enabled); err != nil {
		return false, err
	}
	s.mu.Lock()
	s.enabled = enabled
	s.mu.Unlock()

	return s.send(message.ToggleExtension{Enabled: enabled})
}

// ToggleElementHighlight tells the active agent to add or remove id from
// its highlighted set. Nothing is persisted: highlights live in the agent.
func (s *Surface) ToggleElementHighlight(_ context.Context, id string, on bool) (delivered bool, err error) {
	if id == "" {
		return false, errors.NewInvalidRequest("element id is required")
	}
	s.mu.Lock()
	if on {
		s.highlighted[id] = true
	} else {
		delete(s.highlighted, id)
	}
	s.mu.Unlock()

	return s.send(message.ToggleElementHighlight{ElementID: id, IsHighlighted: on})
}

// Highlighted returns the ids highlighted from this surface, sorted.
func (s *Surface) Highlighted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.highlighted))
	for id := range s.highlighted {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func (s *Surface) send(m message.Message) (bool, error) {
	if s.sender == nil {
		return false, nil
	}
	if err := s.sender.SendActive(m); err != nil {
		if errors.Is(err, errors.ErrNoReceiver) {
			s.log.Warn("no active page to notify", zap.String("type", m.Type()))
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Items lists the captured elements with this surface's highlight toggles.
func (s *Surface) Items(ctx context.Context) ([]Item, error) {
	records, err := s.records(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	items := make([]Item, 0, len(records))
	for _, r := range records {
		items = append(items, Item{
			ID:          r.ID,
			Label:       r.Label(),
			Highlighted: s.highlighted[r.ID],
			Timestamp:   r.Timestamp,
		})
	}
	return items, nil
}

// Get returns one captured element.
func (s *Surface) Get(ctx context.Context, id string) (*record.Record, error) {
	if s.store != nil {
		return s.store.Get(ctx, id)
	}
	records, err := s.area.StoredElements(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.ID == id {
			return &r, nil
		}
	}
	return nil, errors.NewNotFound(id)
}

func (s *Surface) records(ctx context.Context) ([]record.Record, error) {
	if s.store != nil {
		return s.store.GetAll(ctx)
	}
	return s.area.StoredElements(ctx)
}
