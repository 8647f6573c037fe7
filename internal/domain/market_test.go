package domain_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
)

// ── Outcome ───────────────────────────────────────────────────────────────────

func TestOutcome_IsValid(t *testing.T) {
	if !domain.OutcomeA.IsValid() || !domain.OutcomeB.IsValid() {
		t.Error("A and B should be valid outcomes")
	}
	if domain.Outcome(2).IsValid() {
		t.Error("outcome 2 should not be valid")
	}
}

func TestOutcome_Opposite(t *testing.T) {
	if domain.OutcomeA.Opposite() != domain.OutcomeB {
		t.Error("opposite of A should be B")
	}
	if domain.OutcomeB.Opposite() != domain.OutcomeA {
		t.Error("opposite of B should be A")
	}
}

func TestParseOutcome(t *testing.T) {
	cases := map[string]domain.Outcome{
		"A": domain.OutcomeA, "a": domain.OutcomeA, "0": domain.OutcomeA,
		"B": domain.OutcomeB, "b": domain.OutcomeB, "1": domain.OutcomeB,
	}
	for in, want := range cases {
		got, err := domain.ParseOutcome(in)
		if err != nil || got != want {
			t.Errorf("ParseOutcome(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := domain.ParseOutcome("C"); !errors.Is(err, domain.ErrInvalidOutcome) {
		t.Errorf("ParseOutcome(C) err = %v, want ErrInvalidOutcome", err)
	}
}

func TestOutcome_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(domain.OutcomeB)
	if err != nil || string(data) != `"B"` {
		t.Fatalf("Marshal = %s, %v; want \"B\"", data, err)
	}
	var o domain.Outcome
	if err := json.Unmarshal([]byte(`"A"`), &o); err != nil || o != domain.OutcomeA {
		t.Errorf("Unmarshal(\"A\") = %v, %v", o, err)
	}
	// The original on-chain layer encodes choices as 0/1.
	if err := json.Unmarshal([]byte(`1`), &o); err != nil || o != domain.OutcomeB {
		t.Errorf("Unmarshal(1) = %v, %v", o, err)
	}
}

// ── Market lifecycle ─────────────────────────────────────────────────────────

func openMarket(end time.Time) *domain.Market {
	return &domain.Market{
		ID:      1,
		Title:   "PSG vs OM, who wins?",
		OptionA: "PSG",
		OptionB: "OM",
		Stage:   domain.StageOpen,
		EndTime: end,
	}
}

func TestMarket_AcceptsStakes(t *testing.T) {
	now := time.Now().UTC()
	m := openMarket(now.Add(time.Hour))

	if !m.AcceptsStakes(now) {
		t.Error("market before deadline should accept stakes")
	}
	// Past the deadline the stored stage still reads open, but stakes must
	// be rejected: expiry is time-derived.
	if m.AcceptsStakes(now.Add(2 * time.Hour)) {
		t.Error("market past deadline should not accept stakes")
	}
	m.Stage = domain.StageResolved
	if m.AcceptsStakes(now) {
		t.Error("resolved market should not accept stakes")
	}
}

func TestMarket_CanResolve(t *testing.T) {
	now := time.Now().UTC()
	m := openMarket(now.Add(time.Hour))

	if err := m.CanResolve(now); !errors.Is(err, domain.ErrResolveTooEarly) {
		t.Errorf("resolve before deadline err = %v, want ErrResolveTooEarly", err)
	}
	if err := m.CanResolve(now.Add(2 * time.Hour)); err != nil {
		t.Errorf("resolve after deadline err = %v, want nil", err)
	}
	m.Stage = domain.StageResolved
	if err := m.CanResolve(now.Add(2 * time.Hour)); !errors.Is(err, domain.ErrMarketAlreadyResolved) {
		t.Errorf("second resolve err = %v, want ErrMarketAlreadyResolved", err)
	}
}

func TestMarket_Phase(t *testing.T) {
	now := time.Now().UTC()
	m := openMarket(now.Add(time.Hour))

	if got := m.Phase(now); got != domain.PhaseOpen {
		t.Errorf("Phase before deadline = %s, want open", got)
	}
	if got := m.Phase(now.Add(2 * time.Hour)); got != domain.PhaseAwaitingResolution {
		t.Errorf("Phase after deadline = %s, want awaiting_resolution", got)
	}
	winner := domain.OutcomeA
	m.Stage = domain.StageResolved
	m.WinningOutcome = &winner
	if got := m.Phase(now.Add(2 * time.Hour)); got != domain.PhaseResolved {
		t.Errorf("Phase after resolution = %s, want resolved", got)
	}
}

func TestMarket_TotalPool(t *testing.T) {
	m := openMarket(time.Now().Add(time.Hour))
	m.PoolA = ledger.FromUint64(300)
	m.PoolB = ledger.FromUint64(100)

	total, err := m.TotalPool()
	if err != nil {
		t.Fatalf("TotalPool: %v", err)
	}
	if total.Dec() != "400" {
		t.Errorf("TotalPool = %s, want 400", total.Dec())
	}
}

func TestMarket_PercentA(t *testing.T) {
	m := openMarket(time.Now().Add(time.Hour))
	m.PoolA = ledger.MustFromDecimal("3000000000000000000") // 3 ether
	m.PoolB = ledger.MustFromDecimal("1000000000000000000") // 1 ether

	if got := m.PercentA(); got.String() != "75" {
		t.Errorf("PercentA = %s, want 75", got)
	}

	empty := openMarket(time.Now().Add(time.Hour))
	if got := empty.PercentA(); got.String() != "50" {
		t.Errorf("empty market PercentA = %s, want neutral 50", got)
	}
}

// ── Position ─────────────────────────────────────────────────────────────────

func TestPosition_IsWinner(t *testing.T) {
	now := time.Now().UTC()
	m := openMarket(now.Add(-time.Hour))
	winner := domain.OutcomeA
	m.Stage = domain.StageResolved
	m.WinningOutcome = &winner

	pos := &domain.Position{MarketID: 1, Staker: "0xabc", Amount: ledger.FromUint64(100), Choice: domain.OutcomeA}
	if !pos.IsWinner(m) {
		t.Error("position on winning outcome should be a winner")
	}

	pos.Choice = domain.OutcomeB
	if pos.IsWinner(m) {
		t.Error("position on losing outcome should not be a winner")
	}

	// Unresolved market never has winners.
	m.Stage = domain.StageOpen
	m.WinningOutcome = nil
	pos.Choice = domain.OutcomeA
	if pos.IsWinner(m) {
		t.Error("no winners before resolution")
	}
}

func TestEmptyPosition(t *testing.T) {
	pos := domain.EmptyPosition(7, "0xabc")
	if pos.HasStake() {
		t.Error("empty position should have no stake")
	}
	if pos.Claimed {
		t.Error("empty position should not be claimed")
	}
}

// ── Error taxonomy ───────────────────────────────────────────────────────────

func TestErrorTaxonomy(t *testing.T) {
	if !domain.IsValidation(domain.ErrInvalidAmount) {
		t.Error("ErrInvalidAmount should classify as validation")
	}
	if !domain.IsNotFound(domain.ErrMarketNotFound) {
		t.Error("ErrMarketNotFound should classify as not-found")
	}
	if !domain.IsConflict(domain.ErrAlreadyClaimed) {
		t.Error("ErrAlreadyClaimed should classify as conflict")
	}
	if !domain.IsAuthError(domain.ErrInvalidOracleSignature) {
		t.Error("ErrInvalidOracleSignature should classify as auth error")
	}
	if domain.IsConflict(domain.ErrInvalidAmount) || domain.IsValidation(domain.ErrNotAWinner) {
		t.Error("taxonomy classes should not overlap")
	}
}
