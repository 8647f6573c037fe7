package settlement_test

import (
	"errors"
	"testing"
	"time"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/settlement"
)

func resolvedMarket(poolA, poolB uint64, winner domain.Outcome) *domain.Market {
	now := time.Now().UTC()
	return &domain.Market{
		ID:             1,
		Stage:          domain.StageResolved,
		PoolA:          ledger.FromUint64(poolA),
		PoolB:          ledger.FromUint64(poolB),
		WinningOutcome: &winner,
		EndTime:        now.Add(-time.Hour),
		ResolvedAt:     &now,
	}
}

func position(amount uint64, choice domain.Outcome) *domain.Position {
	return &domain.Position{
		MarketID: 1,
		Staker:   "0x00000000000000000000000000000000000000aa",
		Amount:   ledger.FromUint64(amount),
		Choice:   choice,
	}
}

// TestComputePayout_Worked pins the reference example:
// poolA=300, poolB=100, winner A, stake 100 of the 300
// → 100 + floor(100 * 100/300) = 133.
func TestComputePayout_Worked(t *testing.T) {
	m := resolvedMarket(300, 100, domain.OutcomeA)

	payout, err := settlement.ComputePayout(m, position(100, domain.OutcomeA))
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	if payout.Dec() != "133" {
		t.Errorf("payout = %s, want 133", payout.Dec())
	}
}

// TestComputePayout_Conservation: the sum of every winner's payout never
// exceeds poolA + poolB; floor rounding loses at most winners-1 wei to the
// pool.
func TestComputePayout_Conservation(t *testing.T) {
	m := resolvedMarket(300, 100, domain.OutcomeA)
	stakes := []uint64{100, 150, 50} // the full 300 on A

	total := ledger.Zero()
	for _, s := range stakes {
		p, err := settlement.ComputePayout(m, position(s, domain.OutcomeA))
		if err != nil {
			t.Fatalf("ComputePayout(%d): %v", s, err)
		}
		total, err = ledger.Add(total, p)
		if err != nil {
			t.Fatalf("Add: %v", err)
		}
	}

	pool, _ := m.TotalPool()
	if pool.LessThan(total) {
		t.Errorf("total payouts %s exceed pool %s", total.Dec(), pool.Dec())
	}

	// Dust bound: at most len(stakes)-1 wei left behind.
	dust, err := ledger.Sub(pool, total)
	if err != nil {
		t.Fatalf("Sub: %v", err)
	}
	if ledger.FromUint64(uint64(len(stakes)-1)).LessThan(dust) {
		t.Errorf("dust = %s, want at most %d", dust.Dec(), len(stakes)-1)
	}
}

// TestComputePayout_SoleWinner takes the whole losing pool.
func TestComputePayout_SoleWinner(t *testing.T) {
	m := resolvedMarket(250, 750, domain.OutcomeA)

	payout, err := settlement.ComputePayout(m, position(250, domain.OutcomeA))
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	if payout.Dec() != "1000" {
		t.Errorf("sole winner payout = %s, want 1000", payout.Dec())
	}
}

// TestComputePayout_EmptyWinningPool: stake refund only, no division fault.
func TestComputePayout_EmptyWinningPool(t *testing.T) {
	m := resolvedMarket(0, 500, domain.OutcomeA)

	// A position cannot normally exist on an empty pool, but the formula
	// must still be total: refund the stake, touch nothing else.
	payout, err := settlement.ComputePayout(m, position(123, domain.OutcomeA))
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	if payout.Dec() != "123" {
		t.Errorf("payout = %s, want bare refund 123", payout.Dec())
	}
}

func TestComputePayout_EmptyLosingPool(t *testing.T) {
	m := resolvedMarket(400, 0, domain.OutcomeA)

	payout, err := settlement.ComputePayout(m, position(400, domain.OutcomeA))
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	if payout.Dec() != "400" {
		t.Errorf("payout = %s, want stake back 400", payout.Dec())
	}
}

func TestComputePayout_Guards(t *testing.T) {
	winner := domain.OutcomeA

	t.Run("unresolved market", func(t *testing.T) {
		m := resolvedMarket(300, 100, winner)
		m.Stage = domain.StageOpen
		m.WinningOutcome = nil
		if _, err := settlement.ComputePayout(m, position(100, winner)); !errors.Is(err, domain.ErrMarketNotResolved) {
			t.Errorf("err = %v, want ErrMarketNotResolved", err)
		}
	})

	t.Run("not a winner", func(t *testing.T) {
		m := resolvedMarket(300, 100, winner)
		if _, err := settlement.ComputePayout(m, position(100, domain.OutcomeB)); !errors.Is(err, domain.ErrNotAWinner) {
			t.Errorf("err = %v, want ErrNotAWinner", err)
		}
	})

	t.Run("already claimed", func(t *testing.T) {
		m := resolvedMarket(300, 100, winner)
		p := position(100, winner)
		p.Claimed = true
		if _, err := settlement.ComputePayout(m, p); !errors.Is(err, domain.ErrAlreadyClaimed) {
			t.Errorf("err = %v, want ErrAlreadyClaimed", err)
		}
	})

	t.Run("no position", func(t *testing.T) {
		m := resolvedMarket(300, 100, winner)
		if _, err := settlement.ComputePayout(m, domain.EmptyPosition(1, "0xabc")); !errors.Is(err, domain.ErrNoPosition) {
			t.Errorf("err = %v, want ErrNoPosition", err)
		}
	})
}

// TestComputePayout_BigNumbers exercises the 512-bit intermediate with
// ether-scale wei values.
func TestComputePayout_BigNumbers(t *testing.T) {
	winner := domain.OutcomeA
	now := time.Now().UTC()
	m := &domain.Market{
		ID:             1,
		Stage:          domain.StageResolved,
		PoolA:          ledger.MustFromDecimal("3000000000000000000000"), // 3000 ether
		PoolB:          ledger.MustFromDecimal("1000000000000000000000"), // 1000 ether
		WinningOutcome: &winner,
		EndTime:        now.Add(-time.Hour),
	}
	p := &domain.Position{
		MarketID: 1,
		Staker:   "0xabc",
		Amount:   ledger.MustFromDecimal("1000000000000000000000"), // 1000 of the 3000
		Choice:   winner,
	}

	payout, err := settlement.ComputePayout(m, p)
	if err != nil {
		t.Fatalf("ComputePayout: %v", err)
	}
	// 1000 + floor(1000 * 1000/3000) = 1333.333... ether
	want := "1333333333333333333333"
	if payout.Dec() != want {
		t.Errorf("payout = %s, want %s", payout.Dec(), want)
	}
}
