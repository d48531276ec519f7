package memstore

import (
	"context"
	"sync"

	"github.com/pcdogyu/trader-clock/internal/market"
	"github.com/pcdogyu/trader-clock/internal/notify"
)

const DefaultEventCap = 256

// Store keeps the latest evaluated state and a bounded feed of recent events in memory.
// The browser polls both; only the event feed is also written to SQLite.
type Store struct {
	mu sync.RWMutex

	state struct {
		val market.DisplayState
		ok  bool
	}

	events struct {
		seq uint64
		cap int
		buf []notify.Event
	}
}

func New(eventCap int) *Store {
	if eventCap <= 0 {
		eventCap = DefaultEventCap
	}
	s := &Store{}
	s.events.cap = eventCap
	s.events.buf = make([]notify.Event, 0, eventCap)
	return s
}

func (s *Store) SetState(st market.DisplayState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.val = st
	s.state.ok = true
}

func (s *Store) State() (market.DisplayState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.val, s.state.ok
}

// Notify appends ev to the feed with the next sequence number.
func (s *Store) Notify(_ context.Context, ev notify.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events.seq++
	ev.Seq = s.events.seq
	if len(s.events.buf) == s.events.cap {
		copy(s.events.buf, s.events.buf[1:])
		s.events.buf = s.events.buf[:len(s.events.buf)-1]
	}
	s.events.buf = append(s.events.buf, ev)
	return nil
}

// EventsSince returns the retained events with Seq > since, oldest first.
func (s *Store) EventsSince(since uint64) []notify.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]notify.Event, 0)
	for _, ev := range s.events.buf {
		if ev.Seq > since {
			out = append(out, ev)
		}
	}
	return out
}

func (s *Store) LastSeq() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.events.seq
}
