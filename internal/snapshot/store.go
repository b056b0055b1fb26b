package snapshot

import (
	"sort"
	"sync"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
)

// Store keeps the latest event per symbol for one event kind. Exactly one
// listener writes to a store; any number of goroutines may read.
type Store[E dxfeed.Event] struct {
	mu     sync.RWMutex
	events map[string]E
}

func NewStore[E dxfeed.Event]() *Store[E] {
	return &Store[E]{events: make(map[string]E)}
}

// Put overwrites the entry for the event's symbol and returns the new size.
func (s *Store[E]) Put(ev E) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.Symbol()] = ev
	return len(s.events)
}

func (s *Store[E]) Get(symbol string) (E, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[symbol]
	return ev, ok
}

func (s *Store[E]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// Snapshot returns a copy of the current entries.
func (s *Store[E]) Snapshot() map[string]E {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]E, len(s.events))
	for k, v := range s.events {
		out[k] = v
	}
	return out
}

// appendSorted appends the store's events ordered by symbol.
func appendSorted[E dxfeed.Event](dst []dxfeed.Event, s *Store[E]) []dxfeed.Event {
	snap := s.Snapshot()
	symbols := make([]string, 0, len(snap))
	for sym := range snap {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	for _, sym := range symbols {
		dst = append(dst, snap[sym])
	}
	return dst
}
