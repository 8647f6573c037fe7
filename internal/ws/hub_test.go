package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/service"
)

// The hub is what main() injects into the services; these assertions pin the
// interface contracts at compile time.
var (
	_ service.Broadcaster         = (*Hub)(nil)
	_ service.CreationBroadcaster = (*Hub)(nil)
)

// drain pulls one queued broadcast frame or fails the test.
func drain(t *testing.T, h *Hub) []byte {
	t.Helper()
	select {
	case msg := <-h.broadcast:
		return msg
	default:
		t.Fatal("expected a queued broadcast message, channel is empty")
		return nil
	}
}

func TestBroadcastMarketCreated(t *testing.T) {
	h := NewHub(nil, nil)

	end := time.Now().UTC().Add(24 * time.Hour)
	h.BroadcastMarketCreated(&domain.Market{
		ID:      7,
		Title:   "Will the bridge audit pass?",
		OptionA: "Yes",
		OptionB: "No",
		Stage:   domain.StageOpen,
		EndTime: end,
	})

	var msg MarketCreatedMessage
	if err := json.Unmarshal(drain(t, h), &msg); err != nil {
		t.Fatalf("broadcast frame is not valid JSON: %v", err)
	}
	if msg.Type != MsgTypeMarketCreated {
		t.Errorf("Type = %q, want %q", msg.Type, MsgTypeMarketCreated)
	}
	if msg.MarketID != 7 || msg.Title != "Will the bridge audit pass?" {
		t.Errorf("unexpected identity fields: %+v", msg)
	}
	if !msg.EndTime.Equal(end) {
		t.Errorf("EndTime = %v, want %v", msg.EndTime, end)
	}
}

func TestBroadcastMarketUpdate_OpenMarket(t *testing.T) {
	h := NewHub(nil, nil)

	m := domain.Market{
		ID:      3,
		Stage:   domain.StageOpen,
		PoolA:   ledger.FromUint64(300),
		PoolB:   ledger.FromUint64(100),
		EndTime: time.Now().UTC().Add(time.Hour),
	}
	snap := m.Snapshot(time.Now().UTC(), nil)
	h.BroadcastMarketUpdate(&snap)

	var msg MarketUpdateMessage
	if err := json.Unmarshal(drain(t, h), &msg); err != nil {
		t.Fatalf("broadcast frame is not valid JSON: %v", err)
	}
	if msg.Type != MsgTypeMarketUpdate {
		t.Errorf("Type = %q, want %q", msg.Type, MsgTypeMarketUpdate)
	}
	if msg.PoolA != "300" || msg.PoolB != "100" {
		t.Errorf("pools = %s/%s, want 300/100", msg.PoolA, msg.PoolB)
	}

	// An open market produces exactly one frame, no resolved notice.
	select {
	case extra := <-h.broadcast:
		t.Errorf("unexpected second broadcast frame: %s", extra)
	default:
	}
}

func TestBroadcastMarketUpdate_ResolvedEmitsNotice(t *testing.T) {
	h := NewHub(nil, nil)

	winner := domain.OutcomeB
	resolvedAt := time.Now().UTC()
	m := domain.Market{
		ID:             9,
		Stage:          domain.StageResolved,
		PoolA:          ledger.FromUint64(250),
		PoolB:          ledger.FromUint64(750),
		WinningOutcome: &winner,
		EndTime:        resolvedAt.Add(-time.Hour),
		ResolvedAt:     &resolvedAt,
	}
	snap := m.Snapshot(resolvedAt, nil)
	h.BroadcastMarketUpdate(&snap)

	// The resolved notice goes out first, then the snapshot update.
	var resolved struct {
		Type     MsgType `json:"type"`
		MarketID int64   `json:"market_id"`
		Winner   string  `json:"winner"`
		PoolA    string  `json:"pool_a"`
		PoolB    string  `json:"pool_b"`
	}
	if err := json.Unmarshal(drain(t, h), &resolved); err != nil {
		t.Fatalf("resolved frame is not valid JSON: %v", err)
	}
	if resolved.Type != MsgTypeMarketResolved {
		t.Fatalf("first frame Type = %q, want %q", resolved.Type, MsgTypeMarketResolved)
	}
	if resolved.Winner != "B" || resolved.PoolA != "250" || resolved.PoolB != "750" {
		t.Errorf("resolved payload = %+v", resolved)
	}

	var update MarketUpdateMessage
	if err := json.Unmarshal(drain(t, h), &update); err != nil {
		t.Fatalf("update frame is not valid JSON: %v", err)
	}
	if update.Type != MsgTypeMarketUpdate || update.Phase != domain.PhaseResolved {
		t.Errorf("second frame = type %q phase %q, want %q/%q",
			update.Type, update.Phase, MsgTypeMarketUpdate, domain.PhaseResolved)
	}
}
