// Package bus routes control messages between contexts in one process.
// Each receiver owns a named mailbox: an unbounded FIFO queue, so a sender
// never blocks and nothing is dropped while the receiver is registered.
package bus

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/elclones/internal/errors"
	"github.com/hpungsan/elclones/internal/logging"
	"github.com/hpungsan/elclones/internal/message"
)

// Bus is safe for concurrent use.
type Bus struct {
	mu     sync.Mutex
	boxes  map[string]*Mailbox
	active string
	log    *zap.Logger
}

// New returns an empty bus.
func New(log *zap.Logger) *Bus {
	return &Bus{
		boxes: make(map[string]*Mailbox),
		log:   logging.OrNop(log).Named("bus"),
	}
}

// Register creates the mailbox for name.
func (b *Bus) Register(name string) (*Mailbox, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if name == "" {
		return nil, errors.NewInvalidRequest("receiver name is required")
	}
	if _, ok := b.boxes[name]; ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("receiver %q already registered", name))
	}
	mb := newMailbox(name)
	b.boxes[name] = mb
	b.log.Debug("receiver registered", zap.String("name", name))
	return mb, nil
}

// Unregister closes and removes the mailbox for name. Queued messages are
// discarded. If name was active, no receiver is active afterwards.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	mb, ok := b.boxes[name]
	delete(b.boxes, name)
	if b.active == name {
		b.active = ""
	}
	b.mu.Unlock()

	if ok {
		mb.close()
		b.log.Debug("receiver unregistered", zap.String("name", name))
	}
}

// SetActive makes name the target of SendActive. It need not be registered yet.
func (b *Bus) SetActive(name string) {
	b.mu.Lock()
	b.active = name
	b.mu.Unlock()
}

// Active returns the active receiver name.
func (b *Bus) Active() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// Names returns the registered receivers, sorted.
func (b *Bus) Names() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.boxes))
	for n := range b.boxes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Send queues m for the receiver name.
func (b *Bus) Send(name string, m message.Message) error {
	b.mu.Lock()
	mb, ok := b.boxes[name]
	b.mu.Unlock()

	if !ok || !mb.put(m) {
		return errors.NewNoReceiver(name)
	}
	return nil
}

// SendActive queues m for the active receiver.
func (b *Bus) SendActive(m message.Message) error {
	b.mu.Lock()
	name := b.active
	mb, ok := b.boxes[name]
	b.mu.Unlock()

	if name == "" {
		return errors.NewNoReceiver("active")
	}
	if !ok || !mb.put(m) {
		return errors.NewNoReceiver(name)
	}
	return nil
}

// Mailbox is one receiver's queue.
type Mailbox struct {
	name   string
	mu     sync.Mutex
	queue  []message.Message
	closed bool
	notify chan struct{}
	done   chan struct{}
}

func newMailbox(name string) *Mailbox {
	return &Mailbox{
		name:   name,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Name returns the receiver name.
func (m *Mailbox) Name() string { return m.name }

func (m *Mailbox) put(msg message.Message) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	m.queue = append(m.queue, msg)
	select {
	case m.notify <- struct{}{}:
	default:
	}
	return true
}

func (m *Mailbox) close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.queue = nil
	close(m.done)
}

// Notify fires after messages are queued. One signal may cover several
// messages; call Drain to take them all.
func (m *Mailbox) Notify() <-chan struct{} { return m.notify }

// Done is closed when the mailbox is unregistered.
func (m *Mailbox) Done() <-chan struct{} { return m.done }

// Drain returns and removes every queued message in arrival order.
func (m *Mailbox) Drain() []message.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.queue
	m.queue = nil
	return out
}

// Receive blocks for the next message. It fails with CANCELLED when ctx is
// done and NO_RECEIVER once the mailbox is unregistered.
func (m *Mailbox) Receive(ctx context.Context) (message.Message, error) {
	for {
		m.mu.Lock()
		if len(m.queue) > 0 {
			msg := m.queue[0]
			m.queue = m.queue[1:]
			m.mu.Unlock()
			return msg, nil
		}
		closed := m.closed
		m.mu.Unlock()

		if closed {
			return nil, errors.NewNoReceiver(m.name)
		}

		select {
		case <-m.notify:
		case <-m.done:
		case <-ctx.Done():
			return nil, errors.NewCancelled("receive")
		}
	}
}
