// Package ws holds WebSocket message types and the Hub implementation.
// messages.go defines all message structs broadcast to connected clients.
package ws

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pariline/oraclemarket/internal/domain"
)

// MsgType identifies the kind of WS message so clients can switch on it.
type MsgType string

const (
	MsgTypeMarketUpdate   MsgType = "market_update"
	MsgTypeMarketCreated  MsgType = "market_created"
	MsgTypeMarketResolved MsgType = "market_resolved"
	MsgTypeError          MsgType = "error"
)

// ──────────────────────────────────────────────────────────────────────────────
// MarketUpdateMessage — pushed after every pool movement and on the periodic
// scheduler tick.
// ──────────────────────────────────────────────────────────────────────────────

// MarketUpdateMessage carries the live pool split and countdown of one market.
// Pools are decimal wei strings; percent_a is display math.
type MarketUpdateMessage struct {
	Type        MsgType         `json:"type"`
	MarketID    int64           `json:"market_id"`
	Phase       domain.Phase    `json:"phase"`
	PoolA       string          `json:"pool_a"`
	PoolB       string          `json:"pool_b"`
	PercentA    decimal.Decimal `json:"percent_a"`
	TimeLeftSec int64           `json:"time_left_sec"`
	Timestamp   time.Time       `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketCreatedMessage — broadcast when an operator opens a market.
// ──────────────────────────────────────────────────────────────────────────────

// MarketCreatedMessage carries the identity of a freshly opened market.
type MarketCreatedMessage struct {
	Type      MsgType   `json:"type"`
	MarketID  int64     `json:"market_id"`
	Title     string    `json:"title"`
	OptionA   string    `json:"option_a"`
	OptionB   string    `json:"option_b"`
	EndTime   time.Time `json:"end_time"`
	Timestamp time.Time `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketResolvedMessage — broadcast when the oracle's outcome lands.
// ──────────────────────────────────────────────────────────────────────────────

// MarketResolvedMessage tells clients which side won.
type MarketResolvedMessage struct {
	Type      MsgType        `json:"type"`
	MarketID  int64          `json:"market_id"`
	Winner    domain.Outcome `json:"winner"`
	PoolA     string         `json:"pool_a"`
	PoolB     string         `json:"pool_b"`
	Timestamp time.Time      `json:"timestamp"`
}

// ──────────────────────────────────────────────────────────────────────────────
// ErrorMessage — sent to a single client on a non-fatal error.
// ──────────────────────────────────────────────────────────────────────────────

// ErrorMessage is sent directly to one client (not broadcast).
type ErrorMessage struct {
	Type    MsgType `json:"type"`
	Code    string  `json:"code"`
	Message string  `json:"message"`
}

// NewMarketUpdate builds a MarketUpdateMessage from a snapshot.
func NewMarketUpdate(snap *domain.MarketSnapshot) MarketUpdateMessage {
	return MarketUpdateMessage{
		Type:        MsgTypeMarketUpdate,
		MarketID:    snap.Market.ID,
		Phase:       snap.Phase,
		PoolA:       snap.Market.PoolA.Dec(),
		PoolB:       snap.Market.PoolB.Dec(),
		PercentA:    snap.PercentA,
		TimeLeftSec: snap.TimeLeftSec,
		Timestamp:   time.Now().UTC(),
	}
}
