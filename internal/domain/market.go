// Package domain defines the core business entities of the binary-outcome
// prediction market settlement engine: markets, positions and the lifecycle
// rules that gate staking, resolution and claiming.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/shopspring/decimal"
)

// ──────────────────────────────────────────────────────────────────────────────
// Outcome
// ──────────────────────────────────────────────────────────────────────────────

// Outcome identifies one of the two sides of a market.  The numeric values
// are part of the oracle signature payload and must never change.
type Outcome uint8

const (
	OutcomeA Outcome = 0
	OutcomeB Outcome = 1
)

// IsValid returns true if the outcome is one of the two recognised sides.
func (o Outcome) IsValid() bool {
	return o == OutcomeA || o == OutcomeB
}

// Opposite returns the other side of the market.
func (o Outcome) Opposite() Outcome {
	if o == OutcomeA {
		return OutcomeB
	}
	return OutcomeA
}

// String renders the outcome as "A" or "B".
func (o Outcome) String() string {
	if o == OutcomeA {
		return "A"
	}
	return "B"
}

// ParseOutcome accepts "A"/"B" (case-insensitive) or the 0/1 encoding used
// by the signature payload.
func ParseOutcome(s string) (Outcome, error) {
	switch s {
	case "A", "a", "0":
		return OutcomeA, nil
	case "B", "b", "1":
		return OutcomeB, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidOutcome, s)
}

// MarshalJSON encodes the outcome as "A" or "B".
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.String())
}

// UnmarshalJSON accepts "A"/"B" strings or raw 0/1 numbers.
func (o *Outcome) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n uint8
		if numErr := json.Unmarshal(data, &n); numErr != nil {
			return fmt.Errorf("%w: %s", ErrInvalidOutcome, data)
		}
		s = fmt.Sprintf("%d", n)
	}
	parsed, err := ParseOutcome(s)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Stage & Phase
// ──────────────────────────────────────────────────────────────────────────────

// Stage is the persisted lifecycle state of a market.  Only two values are
// ever stored: "awaiting resolution" is a time-derived classification, not a
// stored state (see Phase).
type Stage string

const (
	StageOpen     Stage = "open"
	StageResolved Stage = "resolved"
)

// Phase is the query-time classification shown to callers.
type Phase string

const (
	PhaseOpen               Phase = "open"
	PhaseAwaitingResolution Phase = "awaiting_resolution"
	PhaseResolved           Phase = "resolved"
)

// ──────────────────────────────────────────────────────────────────────────────
// Market
// ──────────────────────────────────────────────────────────────────────────────

// Market is one binary-outcome staking event.  Markets are appended with
// sequential integer ids and never deleted; pool totals only grow until
// resolution and only shrink by paid-out claims afterwards.
type Market struct {
	ID             int64         `json:"id"              db:"id"`
	Title          string        `json:"title"           db:"title"`
	OptionA        string        `json:"option_a"        db:"option_a"`
	OptionB        string        `json:"option_b"        db:"option_b"`
	Stage          Stage         `json:"stage"           db:"stage"`
	PoolA          ledger.Amount `json:"pool_a"          db:"pool_a"`
	PoolB          ledger.Amount `json:"pool_b"          db:"pool_b"`
	WinningOutcome *Outcome      `json:"winning_outcome" db:"winning_outcome"`
	EndTime        time.Time     `json:"end_time"        db:"end_time"`
	CreatedAt      time.Time     `json:"created_at"      db:"created_at"`
	ResolvedAt     *time.Time    `json:"resolved_at"     db:"resolved_at"`
}

// TotalPool returns poolA + poolB.
func (m *Market) TotalPool() (ledger.Amount, error) {
	return ledger.Add(m.PoolA, m.PoolB)
}

// Pool returns the pool behind the given outcome.
func (m *Market) Pool(o Outcome) ledger.Amount {
	if o == OutcomeA {
		return m.PoolA
	}
	return m.PoolB
}

// IsResolved returns true once the market has a final outcome.
func (m *Market) IsResolved() bool {
	return m.Stage == StageResolved
}

// AcceptsStakes reports whether a stake placed at now would be accepted.
// Expiry is time-derived: the stored stage still reads "open" after the
// deadline until resolution, but stakes must be rejected regardless.
func (m *Market) AcceptsStakes(now time.Time) bool {
	return m.Stage == StageOpen && now.Before(m.EndTime)
}

// CanResolve checks the lifecycle guards for a resolution attempted at now.
// Signature validity is checked separately.
func (m *Market) CanResolve(now time.Time) error {
	if m.IsResolved() {
		return ErrMarketAlreadyResolved
	}
	if now.Before(m.EndTime) {
		return ErrResolveTooEarly
	}
	return nil
}

// Phase classifies the market for display and list filtering.
func (m *Market) Phase(now time.Time) Phase {
	switch {
	case m.IsResolved():
		return PhaseResolved
	case !now.Before(m.EndTime):
		return PhaseAwaitingResolution
	default:
		return PhaseOpen
	}
}

// TimeLeft returns the duration until the staking deadline, clamped at zero.
func (m *Market) TimeLeft(now time.Time) time.Duration {
	remaining := m.EndTime.Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// PercentA returns the share of the total pool staked on outcome A (0-100).
// Display math only; returns 50 for an empty market so progress bars render
// a neutral split.
func (m *Market) PercentA() decimal.Decimal {
	a := m.PoolA.Ether()
	total := a.Add(m.PoolB.Ether())
	if total.IsZero() {
		return decimal.NewFromInt(50)
	}
	return a.Div(total).Mul(decimal.NewFromInt(100))
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketSnapshot — read model for list endpoints and WS broadcasts
// ──────────────────────────────────────────────────────────────────────────────

// MarketFilter selects which markets a list query returns.
type MarketFilter string

const (
	FilterAll                MarketFilter = "all"
	FilterOpen               MarketFilter = "open"
	FilterAwaitingResolution MarketFilter = "awaiting_resolution"
	FilterResolved           MarketFilter = "resolved"
)

// IsValid returns true for a recognised filter.  The empty string means all.
func (f MarketFilter) IsValid() bool {
	switch f {
	case "", FilterAll, FilterOpen, FilterAwaitingResolution, FilterResolved:
		return true
	}
	return false
}

// MarketSnapshot is a derived, read-only view of a market joined with the
// caller's position, if any.
type MarketSnapshot struct {
	Market      Market          `json:"market"`
	Phase       Phase           `json:"phase"`
	PercentA    decimal.Decimal `json:"percent_a"`
	TimeLeftSec int64           `json:"time_left_sec"`
	Position    *Position       `json:"position,omitempty"`
}

// Snapshot builds a MarketSnapshot at the given instant.  pos may be nil.
func (m *Market) Snapshot(now time.Time, pos *Position) MarketSnapshot {
	return MarketSnapshot{
		Market:      *m,
		Phase:       m.Phase(now),
		PercentA:    m.PercentA(),
		TimeLeftSec: int64(m.TimeLeft(now).Seconds()),
		Position:    pos,
	}
}
