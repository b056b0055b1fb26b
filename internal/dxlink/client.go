// Package dxlink implements a streaming client for the DXLink websocket
// protocol: one FEED channel per event kind, FULL data format.
package dxlink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
	"github.com/dgnsrekt/tastygex/internal/tastytrade"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4 * 1024 * 1024

	// Events buffered per kind before the read loop blocks.
	listenBufferSize = 4096
)

// Streamer is a live event feed.
type Streamer interface {
	// Subscribe adds symbols to the feed for one event kind.
	Subscribe(ctx context.Context, kind dxfeed.EventType, symbols []string) error
	// Listen returns the ordered event stream for a kind. The channel is
	// closed when the connection ends; Err then reports why.
	Listen(kind dxfeed.EventType) <-chan dxfeed.Event
	Err() error
	Close() error
}

// Dialer opens streamers.
type Dialer interface {
	Open(ctx context.Context) (Streamer, error)
}

// TokenSource supplies the streaming URL and credentials.
type TokenSource interface {
	QuoteToken(ctx context.Context) (*tastytrade.QuoteToken, error)
}

// Options tune the connection.
type Options struct {
	Keepalive        time.Duration
	HandshakeTimeout time.Duration
	Aggregation      time.Duration
	CandleLookback   time.Duration
}

func (o Options) withDefaults() Options {
	if o.Keepalive <= 0 {
		o.Keepalive = 60 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 15 * time.Second
	}
	if o.CandleLookback <= 0 {
		o.CandleLookback = 24 * time.Hour
	}
	return o
}

// TokenDialer fetches a fresh quote token for every connection.
type TokenDialer struct {
	tokens TokenSource
	opts   Options
	logger *zap.Logger
}

func NewDialer(tokens TokenSource, opts Options, logger *zap.Logger) *TokenDialer {
	return &TokenDialer{tokens: tokens, opts: opts.withDefaults(), logger: logger}
}

// Compile-time interface verification
var _ Dialer = (*TokenDialer)(nil)

func (d *TokenDialer) Open(ctx context.Context) (Streamer, error) {
	tok, err := d.tokens.QuoteToken(ctx)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, tok.DXLinkURL, tok.Token, d.opts, d.logger)
}

// Conn is an authorised DXLink connection.
type Conn struct {
	conn     *websocket.Conn
	opts     Options
	logger   *zap.Logger
	channels map[dxfeed.EventType]int
	streams  map[dxfeed.EventType]chan dxfeed.Event

	writeMu sync.Mutex

	closeOnce sync.Once
	done      chan struct{}
	errMu     sync.Mutex
	err       error
}

// Compile-time interface verification
var _ Streamer = (*Conn)(nil)

// Connect dials url, authorises with token and opens one feed channel per
// event kind.
func Connect(ctx context.Context, url, token string, opts Options, logger *zap.Logger) (*Conn, error) {
	opts = opts.withDefaults()

	dialCtx, cancel := context.WithTimeout(ctx, opts.HandshakeTimeout)
	defer cancel()

	ws, _, err := websocket.DefaultDialer.DialContext(dialCtx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	ws.SetReadLimit(maxMessageSize)

	c := &Conn{
		conn:     ws,
		opts:     opts,
		logger:   logger,
		channels: make(map[dxfeed.EventType]int),
		streams:  make(map[dxfeed.EventType]chan dxfeed.Event),
		done:     make(chan struct{}),
	}
	for i, kind := range dxfeed.EventTypes {
		c.channels[kind] = i + 1
		c.streams[kind] = make(chan dxfeed.Event, listenBufferSize)
	}

	deadline, _ := dialCtx.Deadline()
	if err := c.handshake(token, deadline); err != nil {
		_ = ws.Close()
		return nil, err
	}

	go c.readPump()
	go c.keepalivePump()

	logger.Debug("dxlink connected", zap.String("url", url), zap.Int("channels", len(c.channels)))
	return c, nil
}

// handshake runs SETUP, AUTH and opens the feed channels before the read
// loop starts.
func (c *Conn) handshake(token string, deadline time.Time) error {
	_ = c.conn.SetReadDeadline(deadline)
	defer func() { _ = c.conn.SetReadDeadline(time.Time{}) }()

	if err := c.write(setupMessage(c.opts.Keepalive)); err != nil {
		return fmt.Errorf("sending setup: %w", err)
	}
	if err := c.write(authMessage(token)); err != nil {
		return fmt.Errorf("sending auth: %w", err)
	}

	authorized := false
	opened := make(map[int]bool)
	for !authorized || len(opened) < len(c.channels) {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("reading handshake: %w", err)
		}

		switch msg.Type {
		case msgAuthState:
			if msg.State != authStateAuthorized || authorized {
				continue
			}
			authorized = true
			for _, kind := range dxfeed.EventTypes {
				ch := c.channels[kind]
				if err := c.write(channelRequestMessage(ch)); err != nil {
					return fmt.Errorf("requesting channel %d: %w", ch, err)
				}
				if err := c.write(feedSetupMessage(ch, kind, c.opts.Aggregation)); err != nil {
					return fmt.Errorf("setting up channel %d: %w", ch, err)
				}
			}
		case msgChannelOpened:
			opened[msg.Channel] = true
		case msgError:
			if msg.Error == "UNAUTHORIZED" {
				return fmt.Errorf("%w: %s", ErrAuthRejected, msg.Message)
			}
			return fmt.Errorf("dxlink error %s: %s", msg.Error, msg.Message)
		}
	}
	return nil
}

func (c *Conn) Subscribe(ctx context.Context, kind dxfeed.EventType, symbols []string) error {
	ch, ok := c.channels[kind]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-c.done:
		return c.Err()
	default:
	}

	from := time.Now().Add(-c.opts.CandleLookback)
	if err := c.write(subscriptionMessage(ch, kind, symbols, from)); err != nil {
		return fmt.Errorf("subscribing %s: %w", kind, err)
	}

	c.logger.Debug("subscribed",
		zap.String("kind", string(kind)),
		zap.Int("symbols", len(symbols)),
	)
	return nil
}

func (c *Conn) Listen(kind dxfeed.EventType) <-chan dxfeed.Event {
	if s, ok := c.streams[kind]; ok {
		return s
	}
	closed := make(chan dxfeed.Event)
	close(closed)
	return closed
}

func (c *Conn) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

func (c *Conn) Close() error {
	c.shutdown(ErrClosed)
	return nil
}

func (c *Conn) shutdown(reason error) {
	c.closeOnce.Do(func() {
		c.errMu.Lock()
		c.err = reason
		c.errMu.Unlock()
		close(c.done)

		c.writeMu.Lock()
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		_ = c.conn.Close()
	})
}

// readPump decodes feed data and routes events to their kind's stream.
// It is the only goroutine that closes the streams.
func (c *Conn) readPump() {
	defer func() {
		for _, s := range c.streams {
			close(s)
		}
	}()

	kinds := make(map[int]dxfeed.EventType, len(c.channels))
	for kind, ch := range c.channels {
		kinds[ch] = kind
	}

	for {
		var msg inbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			select {
			case <-c.done:
			default:
				c.logger.Debug("dxlink read error", zap.Error(err))
				c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
			}
			return
		}

		switch msg.Type {
		case msgFeedData:
			kind, ok := kinds[msg.Channel]
			if !ok {
				continue
			}
			events, err := decodeFeedData(msg.Data)
			if err != nil {
				c.logger.Debug("failed to decode feed data", zap.Int("channel", msg.Channel), zap.Error(err))
				continue
			}
			for _, ev := range events {
				select {
				case c.streams[kind] <- ev:
				case <-c.done:
					return
				}
			}

		case msgChannelClosed:
			c.logger.Warn("dxlink channel closed by server", zap.Int("channel", msg.Channel))

		case msgError:
			c.logger.Error("dxlink error", zap.String("error", msg.Error), zap.String("message", msg.Message))
			c.shutdown(fmt.Errorf("%w: %s: %s", ErrClosed, msg.Error, msg.Message))
			return
		}
	}
}

// keepalivePump sends KEEPALIVE at half the negotiated timeout.
func (c *Conn) keepalivePump() {
	ticker := time.NewTicker(c.opts.Keepalive / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			if err := c.write(keepaliveMessage()); err != nil {
				c.logger.Debug("keepalive failed", zap.Error(err))
				c.shutdown(fmt.Errorf("%w: %v", ErrClosed, err))
				return
			}
		}
	}
}

func (c *Conn) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(v)
}
