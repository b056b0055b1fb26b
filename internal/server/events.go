package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// UpdateEvent announces that a ticker's table was recommitted.
type UpdateEvent struct {
	Ticker    string    `json:"ticker"`
	UpdatedAt time.Time `json:"updated_at"`
	Sequence  uint64    `json:"sequence"`
}

// SnapshotEvent is the state a new subscriber starts from.
type SnapshotEvent struct {
	Tickers  []tickerInfo `json:"tickers"`
	Sequence uint64       `json:"sequence"`
}

// Broadcaster polls the output directory and pushes table updates to SSE
// subscribers.
type Broadcaster struct {
	dir      string
	interval time.Duration
	logger   *zap.Logger

	mu       sync.Mutex
	sequence uint64
	seen     map[string]time.Time
	clients  map[*sseClient]bool
}

type sseClient struct {
	dataCh chan []byte
	doneCh chan struct{}
}

// NewBroadcaster creates a broadcaster over dir. The current files are the
// baseline; only later commits are announced.
func NewBroadcaster(dir string, interval time.Duration, logger *zap.Logger) *Broadcaster {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	b := &Broadcaster{
		dir:      dir,
		interval: interval,
		logger:   logger,
		seen:     make(map[string]time.Time),
		clients:  make(map[*sseClient]bool),
	}
	if tables, err := listTables(dir); err == nil {
		for _, t := range tables {
			b.seen[t.Symbol] = t.UpdatedAt
		}
	}
	return b
}

// Run starts the periodic scan loop.
func (b *Broadcaster) Run(ctx context.Context) {
	b.logger.Info("update broadcaster starting",
		zap.String("dir", b.dir),
		zap.Duration("interval", b.interval),
	)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("update broadcaster stopping")
			return
		case <-ticker.C:
			b.Scan()
		}
	}
}

// Scan compares the directory to the last scan and broadcasts each changed
// table. It returns the events sent.
func (b *Broadcaster) Scan() []UpdateEvent {
	tables, err := listTables(b.dir)
	if err != nil {
		b.logger.Debug("failed to scan output directory", zap.Error(err))
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var events []UpdateEvent
	for _, t := range tables {
		if prev, ok := b.seen[t.Symbol]; ok && !t.UpdatedAt.After(prev) {
			continue
		}
		b.seen[t.Symbol] = t.UpdatedAt
		b.sequence++
		events = append(events, UpdateEvent{Ticker: t.Symbol, UpdatedAt: t.UpdatedAt, Sequence: b.sequence})
	}

	for _, ev := range events {
		msg, err := formatEvent("update", ev)
		if err != nil {
			b.logger.Warn("failed to encode update", zap.Error(err))
			continue
		}
		for c := range b.clients {
			select {
			case c.dataCh <- msg:
			default:
				b.logger.Debug("dropping update for slow client", zap.String("ticker", ev.Ticker))
			}
		}
	}
	return events
}

// HandleSSE streams a snapshot followed by update events.
func (b *Broadcaster) HandleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := &sseClient{
		dataCh: make(chan []byte, 10),
		doneCh: make(chan struct{}),
	}
	snapshot := b.addClient(client)
	defer b.removeClient(client)

	b.logger.Info("events client connected", zap.String("remote_addr", r.RemoteAddr))

	msg, err := formatEvent("snapshot", snapshot)
	if err != nil {
		b.logger.Error("failed to encode snapshot", zap.Error(err))
		return
	}
	if _, err := w.Write(msg); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			b.logger.Info("events client disconnected", zap.String("remote_addr", r.RemoteAddr))
			return
		case <-client.doneCh:
			return
		case data := <-client.dataCh:
			if _, err := w.Write(data); err != nil {
				b.logger.Debug("failed to write to client", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

// Clients returns the number of connected subscribers.
func (b *Broadcaster) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

func (b *Broadcaster) addClient(c *sseClient) SnapshotEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.clients[c] = true

	snap := SnapshotEvent{Tickers: make([]tickerInfo, 0, len(b.seen)), Sequence: b.sequence}
	for sym, ts := range b.seen {
		snap.Tickers = append(snap.Tickers, tickerInfo{Symbol: sym, UpdatedAt: ts})
	}
	sortTickers(snap.Tickers)
	return snap
}

func (b *Broadcaster) removeClient(c *sseClient) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.clients, c)
	close(c.doneCh)
}

func formatEvent(name string, v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []byte(fmt.Sprintf("event: %s\ndata: %s\n\n", name, data)), nil
}
