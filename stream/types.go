package stream

import (
	"encoding/json"
	"fmt"
)

// DefaultURL is the broker's push-data endpoint.
const DefaultURL = "wss://wspush.webullfintech.com:443/mqtt"

// Ticker topic types. A subscription names an instrument and one of these
// feed classes.
const (
	TopicTickerStatus        = 101
	TopicTickerQuote         = 102
	TopicTickerTrade         = 103
	TopicTickerBook          = 104
	TopicTickerQuoteAndTrade = 105
	TopicTickerQuoteOptional = 106
	TopicTickerTradeAndBook  = 107
	TopicTickerFull          = 108
)

// AllTickerTopics lists every ticker feed class.
func AllTickerTopics() []int {
	return []int{
		TopicTickerStatus, TopicTickerQuote, TopicTickerTrade,
		TopicTickerBook, TopicTickerQuoteAndTrade, TopicTickerQuoteOptional,
		TopicTickerTradeAndBook, TopicTickerFull,
	}
}

// BasicTickerTopics lists the quote/trade/book classes most consumers want.
func BasicTickerTopics() []int {
	return []int{TopicTickerQuote, TopicTickerTrade, TopicTickerBook}
}

// Topic identifies one subscription: a ticker feed (TickerID+Type) or the
// account's order push feed (AccountID).
type Topic struct {
	TickerID  int64  `json:"tickerId,omitempty"`
	Type      int    `json:"type,omitempty"`
	AccountID string `json:"secAccountId,omitempty"`
}

// Key returns the dedupe key for subscription tracking.
func (t Topic) Key() string {
	if t.AccountID != "" {
		return "orders:" + t.AccountID
	}
	return fmt.Sprintf("ticker:%d:%d", t.TickerID, t.Type)
}

// IsOrders reports whether this is the order push topic.
func (t Topic) IsOrders() bool { return t.AccountID != "" }

// Frame types on the wire.
const (
	frameLogin       = "login"
	frameConnected   = "connected"
	frameError       = "error"
	frameSubscribe   = "subscribe"
	frameUnsubscribe = "unsubscribe"
	framePush        = "push"
)

// frame is the wire envelope in both directions.
type frame struct {
	Type        string          `json:"type"`
	AccessToken string          `json:"accessToken,omitempty"`
	DeviceID    string          `json:"deviceId,omitempty"`
	Topics      []Topic         `json:"topics,omitempty"`
	Topic       *Topic          `json:"topic,omitempty"`
	Code        string          `json:"code,omitempty"`
	Msg         string          `json:"msg,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

// Handler consumes pushed frames for a topic. Handlers run on the
// dispatch goroutine; a slow handler delays later frames, not the socket.
type Handler func(topic Topic, payload json.RawMessage)

// State is the connection lifecycle state.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}
