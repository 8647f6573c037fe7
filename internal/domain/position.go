package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/pariline/oraclemarket/internal/ledger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Position
// ──────────────────────────────────────────────────────────────────────────────

// Position is one staker's cumulative stake on one market.  Created lazily
// on first stake; the choice is fixed at creation — later stakes on the same
// market must match it.  Claimed flips exactly once.
type Position struct {
	MarketID  int64         `json:"market_id"  db:"market_id"`
	Staker    string        `json:"staker"     db:"staker"` // 0x-hex address, lowercase
	Amount    ledger.Amount `json:"amount"     db:"amount"`
	Choice    Outcome       `json:"choice"     db:"choice"`
	Claimed   bool          `json:"claimed"    db:"claimed"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// HasStake reports whether the position carries any staked value.
func (p *Position) HasStake() bool {
	return p != nil && !p.Amount.IsZero()
}

// IsWinner reports whether the position is on the market's winning side.
// Always false before resolution.
func (p *Position) IsWinner(m *Market) bool {
	return p.HasStake() && m.IsResolved() && m.WinningOutcome != nil && p.Choice == *m.WinningOutcome
}

// EmptyPosition is the well-defined "no position" value returned by queries
// when a staker has never staked on a market.
func EmptyPosition(marketID int64, staker string) *Position {
	return &Position{
		MarketID: marketID,
		Staker:   staker,
		Choice:   OutcomeA, // meaningless until HasStake()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Payout — audit record for each claim
// ──────────────────────────────────────────────────────────────────────────────

// PayoutStatus tracks fund release after a claim's flag is set.
type PayoutStatus string

const (
	// PayoutPending: claimed flag set, funds not yet released.
	PayoutPending PayoutStatus = "pending"
	// PayoutPaid: funds released to the staker.
	PayoutPaid PayoutStatus = "paid"
	// PayoutFailed: fund release failed after the claim flag was set.
	// Requires manual reconciliation; never retried automatically.
	PayoutFailed PayoutStatus = "failed"
)

// Payout is the immutable record of a claim settlement.  A failed payout is
// the operator-visible "claimed-but-unpaid" condition.
type Payout struct {
	ID        uuid.UUID     `json:"id"         db:"id"`
	MarketID  int64         `json:"market_id"  db:"market_id"`
	Staker    string        `json:"staker"     db:"staker"`
	Amount    ledger.Amount `json:"amount"     db:"amount"`
	Status    PayoutStatus  `json:"status"     db:"status"`
	Detail    string        `json:"detail"     db:"detail"` // failure reason, if any
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Wallet — internal balance ledger funding stakes and receiving payouts
// ──────────────────────────────────────────────────────────────────────────────

// Wallet holds a staker's spendable balance.  One wallet per staker address,
// created on first deposit.
type Wallet struct {
	Staker    string        `json:"staker"     db:"staker"`
	Balance   ledger.Amount `json:"balance"    db:"balance"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// TxType enumerates wallet transaction types for auditing.
type TxType string

const (
	TxDeposit TxType = "deposit"
	TxStake   TxType = "stake"
	TxPayout  TxType = "payout"
)

// Transaction is an immutable audit record for every wallet balance change.
type Transaction struct {
	ID            uuid.UUID     `json:"id"             db:"id"`
	Staker        string        `json:"staker"         db:"staker"`
	Type          TxType        `json:"type"           db:"type"`
	Amount        ledger.Amount `json:"amount"         db:"amount"`
	BalanceBefore ledger.Amount `json:"balance_before" db:"balance_before"`
	BalanceAfter  ledger.Amount `json:"balance_after"  db:"balance_after"`
	MarketID      *int64        `json:"market_id"      db:"market_id"`
	Description   string        `json:"description"    db:"description"`
	CreatedAt     time.Time     `json:"created_at"     db:"created_at"`
}
