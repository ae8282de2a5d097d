package store

import (
	"sync"

	"github.com/hpungsan/elclones/internal/record"
)

// Change is published after a Put commits.
// Seq is consecutive per store; a gap tells the subscriber that
// notifications were dropped and it should re-read with GetAll.
type Change struct {
	Seq    uint64
	Record record.Record
}

// feed fans committed records out to subscribers. Publishing never blocks:
// a subscriber whose buffer is full misses the change.
type feed struct {
	mu     sync.Mutex
	seq    uint64
	next   int
	subs   map[int]chan Change
	closed bool
}

func newFeed() *feed {
	return &feed{subs: make(map[int]chan Change)}
}

func (f *feed) subscribe(buf int) (<-chan Change, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Change, buf)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := f.next
	f.next++
	f.subs[id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (f *feed) publish(r record.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	c := Change{Seq: f.seq, Record: r}
	for _, ch := range f.subs {
		select {
		case ch <- c:
		default:
		}
	}
}

// closeAll ends every subscription. Later subscribers get a closed channel.
func (f *feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
