// Package dxlinktest provides in-memory streamers for tests.
package dxlinktest

import (
	"context"
	"sync"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/dxlink"
)

// Responder reacts to a subscription, typically by emitting events.
type Responder func(s *Streamer, kind dxfeed.EventType, symbols []string)

// Streamer is an in-memory dxlink.Streamer.
type Streamer struct {
	respond Responder

	mu      sync.Mutex
	streams map[dxfeed.EventType]chan dxfeed.Event
	subs    map[dxfeed.EventType][]string
	closed  bool
	err     error
}

// Compile-time interface verification
var _ dxlink.Streamer = (*Streamer)(nil)

func NewStreamer(respond Responder) *Streamer {
	s := &Streamer{
		respond: respond,
		streams: make(map[dxfeed.EventType]chan dxfeed.Event),
		subs:    make(map[dxfeed.EventType][]string),
	}
	for _, kind := range dxfeed.EventTypes {
		s.streams[kind] = make(chan dxfeed.Event, 1024)
	}
	return s
}

func (s *Streamer) Subscribe(ctx context.Context, kind dxfeed.EventType, symbols []string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return dxlink.ErrClosed
	}
	s.subs[kind] = append(s.subs[kind], symbols...)
	s.mu.Unlock()

	if s.respond != nil {
		s.respond(s, kind, symbols)
	}
	return nil
}

func (s *Streamer) Listen(kind dxfeed.EventType) <-chan dxfeed.Event {
	return s.streams[kind]
}

// Emit delivers ev on its kind's stream. Events after Close are dropped.
func (s *Streamer) Emit(ev dxfeed.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.streams[ev.Type()] <- ev
}

// Subscriptions returns the symbols subscribed for kind, in order.
func (s *Streamer) Subscriptions(kind dxfeed.EventType) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.subs[kind]...)
}

// End closes every stream as if the connection dropped with err.
func (s *Streamer) End(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	for _, ch := range s.streams {
		close(ch)
	}
}

func (s *Streamer) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Streamer) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Streamer) Close() error {
	s.End(dxlink.ErrClosed)
	return nil
}

// Dialer hands out a new Streamer per Open.
type Dialer struct {
	Respond Responder

	mu     sync.Mutex
	opened []*Streamer
}

// Compile-time interface verification
var _ dxlink.Dialer = (*Dialer)(nil)

func (d *Dialer) Open(ctx context.Context) (dxlink.Streamer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := NewStreamer(d.Respond)
	d.mu.Lock()
	d.opened = append(d.opened, s)
	d.mu.Unlock()
	return s, nil
}

// Opened returns every streamer handed out so far.
func (d *Dialer) Opened() []*Streamer {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Streamer(nil), d.opened...)
}

// EventFunc builds the event for one symbol, or nil to send nothing.
type EventFunc func(kind dxfeed.EventType, symbol string) dxfeed.Event

// EmitEach returns a Responder that emits fn's event for every subscribed
// symbol.
func EmitEach(fn EventFunc) Responder {
	return func(s *Streamer, kind dxfeed.EventType, symbols []string) {
		for _, sym := range symbols {
			if ev := fn(kind, sym); ev != nil {
				s.Emit(ev)
			}
		}
	}
}

// Blank returns an empty event of kind for symbol.
func Blank(kind dxfeed.EventType, symbol string) dxfeed.Event {
	switch kind {
	case dxfeed.QuoteEvent:
		return &dxfeed.Quote{EventSymbol: symbol}
	case dxfeed.CandleEvent:
		return &dxfeed.Candle{EventSymbol: symbol}
	case dxfeed.SummaryEvent:
		return &dxfeed.Summary{EventSymbol: symbol}
	case dxfeed.TradeEvent:
		return &dxfeed.Trade{EventSymbol: symbol}
	case dxfeed.GreeksEvent:
		return &dxfeed.Greeks{EventSymbol: symbol}
	}
	return nil
}
