package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/output"
)

func touch(t *testing.T, dir, ticker string, ts time.Time) {
	t.Helper()
	path := filepath.Join(dir, output.GEXFileName(ticker, output.FormatCSV))
	if _, err := os.Stat(path); err != nil {
		writeTable(t, dir, ticker, spyRows())
	}
	require.NoError(t, os.Chtimes(path, ts, ts))
}

func TestBroadcasterScan(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch(t, dir, "SPY", base)

	b := NewBroadcaster(dir, time.Second, zap.NewNop())
	assert.Empty(t, b.Scan(), "existing tables are the baseline")

	touch(t, dir, "SPY", base.Add(time.Minute))
	touch(t, dir, "QQQ", base)

	events := b.Scan()
	require.Len(t, events, 2)
	assert.Equal(t, "QQQ", events[0].Ticker)
	assert.Equal(t, uint64(1), events[0].Sequence)
	assert.Equal(t, "SPY", events[1].Ticker)
	assert.Equal(t, uint64(2), events[1].Sequence)

	assert.Empty(t, b.Scan())
}

type sseMessage struct {
	event string
	data  string
}

func readEvent(t *testing.T, r *bufio.Reader) sseMessage {
	t.Helper()
	var msg sseMessage
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "":
			return msg
		case strings.HasPrefix(line, "event: "):
			msg.event = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			msg.data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestBroadcasterSSE(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	touch(t, dir, "SPY", base)

	b := NewBroadcaster(dir, time.Second, zap.NewNop())
	srv := httptest.NewServer(NewRouter(NewServer(dir, zap.NewNop()), b, "", zap.NewNop()))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	first := readEvent(t, reader)
	require.Equal(t, "snapshot", first.event)
	var snap SnapshotEvent
	require.NoError(t, json.Unmarshal([]byte(first.data), &snap))
	require.Len(t, snap.Tickers, 1)
	assert.Equal(t, "SPY", snap.Tickers[0].Symbol)

	require.Eventually(t, func() bool { return b.Clients() == 1 }, time.Second, 10*time.Millisecond)
	touch(t, dir, "SPY", base.Add(time.Minute))
	require.Len(t, b.Scan(), 1)

	next := readEvent(t, reader)
	require.Equal(t, "update", next.event)
	var update UpdateEvent
	require.NoError(t, json.Unmarshal([]byte(next.data), &update))
	assert.Equal(t, "SPY", update.Ticker)
	assert.Equal(t, uint64(1), update.Sequence)
}
