// Package settlement computes pari-mutuel payouts for resolved markets.
// Pure arithmetic over ledger amounts; all persistence and claim-flag
// handling lives in the service layer.
package settlement

import (
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
)

// ComputePayout returns the amount a winning position is owed:
//
//	payout = stake + floor(losingPool * stake / winningPool)
//
// The winner recovers their own stake plus a share of the losing pool
// proportional to their share of the winning pool.  Floor rounding means the
// sum of all payouts never exceeds poolA + poolB at resolution time; the
// dust stays in the pool.
//
// Degenerate case: a declared winning outcome nobody staked on makes the
// winning pool zero.  Any position that somehow claims then receives a bare
// stake refund — an explicit branch, never a division fault.
func ComputePayout(m *domain.Market, p *domain.Position) (ledger.Amount, error) {
	if !m.IsResolved() || m.WinningOutcome == nil {
		return ledger.Zero(), domain.ErrMarketNotResolved
	}
	if !p.HasStake() {
		return ledger.Zero(), domain.ErrNoPosition
	}
	if p.Claimed {
		return ledger.Zero(), domain.ErrAlreadyClaimed
	}
	if p.Choice != *m.WinningOutcome {
		return ledger.Zero(), domain.ErrNotAWinner
	}

	winningPool := m.Pool(*m.WinningOutcome)
	losingPool := m.Pool(m.WinningOutcome.Opposite())

	if winningPool.IsZero() {
		return p.Amount, nil
	}

	share, err := ledger.Proportion(losingPool, p.Amount, winningPool)
	if err != nil {
		return ledger.Zero(), err
	}
	return ledger.Add(p.Amount, share)
}
