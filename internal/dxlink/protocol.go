package dxlink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgnsrekt/tastygex/internal/dxfeed"
)

// Message types of the DXLink websocket protocol.
const (
	msgSetup            = "SETUP"
	msgAuth             = "AUTH"
	msgAuthState        = "AUTH_STATE"
	msgChannelRequest   = "CHANNEL_REQUEST"
	msgChannelOpened    = "CHANNEL_OPENED"
	msgChannelClosed    = "CHANNEL_CLOSED"
	msgFeedSetup        = "FEED_SETUP"
	msgFeedConfig       = "FEED_CONFIG"
	msgFeedSubscription = "FEED_SUBSCRIPTION"
	msgFeedData         = "FEED_DATA"
	msgKeepalive        = "KEEPALIVE"
	msgError            = "ERROR"

	authStateAuthorized = "AUTHORIZED"

	protocolVersion = "0.1-tastygex-go"
)

// inbound is the union of fields the client reads from the server.
type inbound struct {
	Type    string          `json:"type"`
	Channel int             `json:"channel"`
	State   string          `json:"state,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type subscriptionEntry struct {
	Type     dxfeed.EventType `json:"type"`
	Symbol   string           `json:"symbol"`
	FromTime int64            `json:"fromTime,omitempty"`
}

func setupMessage(keepalive time.Duration) map[string]any {
	return map[string]any{
		"type":                   msgSetup,
		"channel":                0,
		"version":                protocolVersion,
		"keepaliveTimeout":       int(keepalive.Seconds()),
		"acceptKeepaliveTimeout": int(keepalive.Seconds()),
	}
}

func authMessage(token string) map[string]any {
	return map[string]any{
		"type":    msgAuth,
		"channel": 0,
		"token":   token,
	}
}

func keepaliveMessage() map[string]any {
	return map[string]any{
		"type":    msgKeepalive,
		"channel": 0,
	}
}

func channelRequestMessage(channel int) map[string]any {
	return map[string]any{
		"type":       msgChannelRequest,
		"channel":    channel,
		"service":    "FEED",
		"parameters": map[string]string{"contract": "AUTO"},
	}
}

func feedSetupMessage(channel int, kind dxfeed.EventType, aggregation time.Duration) map[string]any {
	return map[string]any{
		"type":                    msgFeedSetup,
		"channel":                 channel,
		"acceptAggregationPeriod": aggregation.Seconds(),
		"acceptDataFormat":        "FULL",
		"acceptEventFields": map[dxfeed.EventType][]string{
			kind: dxfeed.Fields(kind),
		},
	}
}

// subscriptionMessage builds an additive FEED_SUBSCRIPTION. Candle
// subscriptions need a fromTime to start the series.
func subscriptionMessage(channel int, kind dxfeed.EventType, symbols []string, candleFrom time.Time) map[string]any {
	add := make([]subscriptionEntry, 0, len(symbols))
	for _, s := range symbols {
		entry := subscriptionEntry{Type: kind, Symbol: s}
		if kind == dxfeed.CandleEvent {
			entry.FromTime = candleFrom.UnixMilli()
		}
		add = append(add, entry)
	}
	return map[string]any{
		"type":    msgFeedSubscription,
		"channel": channel,
		"add":     add,
	}
}

// decodeFeedData parses the FULL-format data array of a FEED_DATA message.
// Events of unknown kinds are skipped.
func decodeFeedData(data json.RawMessage) ([]dxfeed.Event, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal feed data: %w", err)
	}

	events := make([]dxfeed.Event, 0, len(items))
	for _, item := range items {
		ev, err := dxfeed.Decode(item)
		if err != nil {
			continue
		}
		events = append(events, ev)
	}
	return events, nil
}
