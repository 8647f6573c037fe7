package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pariline/oraclemarket/internal/config"
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/repository"
)

// Broadcaster is the minimal interface the money services need from the WS
// hub.  Declared here to avoid importing the ws package.
type Broadcaster interface {
	BroadcastMarketUpdate(snapshot *domain.MarketSnapshot)
}

// ──────────────────────────────────────────────────────────────────────────────
// StakeService
// ──────────────────────────────────────────────────────────────────────────────

// StakeService orchestrates stake placement.  A stake atomically debits the
// staker's wallet, grows the chosen pool and the staker's position, and
// writes an audit record — all inside a single PostgreSQL transaction with
// the market row locked, so concurrent stakes on one market serialise.
type StakeService struct {
	db           *sqlx.DB
	marketRepo   *repository.MarketRepository
	positionRepo *repository.PositionRepository
	walletRepo   *repository.WalletRepository
	cfg          *config.Config
	broadcaster  Broadcaster // injected after the WS hub is built
}

// NewStakeService creates a StakeService.
func NewStakeService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	positionRepo *repository.PositionRepository,
	walletRepo *repository.WalletRepository,
	cfg *config.Config,
) *StakeService {
	return &StakeService{
		db:           db,
		marketRepo:   marketRepo,
		positionRepo: positionRepo,
		walletRepo:   walletRepo,
		cfg:          cfg,
	}
}

// SetBroadcaster injects the WS hub dependency post-construction.
func (s *StakeService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// StakeRequest carries one stake placement.
type StakeRequest struct {
	MarketID int64
	Staker   string // lowercase 0x-hex, set by the auth middleware
	Choice   domain.Outcome
	Amount   ledger.Amount
}

// Stake places a stake.  Guards, in order: the amount is non-zero, the
// outcome is valid, the market exists and its deadline has not passed, the
// staker's wallet covers the amount, and any existing position is on the
// same outcome.  Rejection at any guard leaves every balance and pool
// untouched.
func (s *StakeService) Stake(ctx context.Context, req StakeRequest) (*domain.Position, error) {
	// ── 1. Input validation ──────────────────────────────────────────────────
	if req.Amount.IsZero() {
		return nil, domain.ErrInvalidAmount
	}
	if !req.Choice.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}

	// ── 2. Begin transaction ─────────────────────────────────────────────────
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("stake_service.Stake: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	// ── 3. Lock market, check lifecycle ──────────────────────────────────────
	// The row lock serialises all stakes and the resolution on this market.
	market, err := s.marketRepo.GetByIDForUpdate(ctx, tx, req.MarketID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	if !market.AcceptsStakes(now) {
		if market.IsResolved() {
			err = domain.ErrMarketAlreadyResolved
		} else {
			err = domain.ErrMarketExpired
		}
		return nil, err
	}

	// ── 4. Debit wallet ──────────────────────────────────────────────────────
	before, after, err := s.walletRepo.Debit(ctx, tx, req.Staker, req.Amount)
	if err != nil {
		return nil, err
	}

	// ── 5. Create or grow the position ───────────────────────────────────────
	pos, err := s.positionRepo.GetForUpdate(ctx, tx, req.MarketID, req.Staker)
	switch {
	case err == nil:
		if pos.Choice != req.Choice {
			err = domain.ErrChoiceMismatch
			return nil, err
		}
		var newAmount ledger.Amount
		newAmount, err = ledger.Add(pos.Amount, req.Amount)
		if err != nil {
			return nil, err
		}
		if err = s.positionRepo.SetAmount(ctx, tx, req.MarketID, req.Staker, newAmount, now); err != nil {
			return nil, err
		}
		pos.Amount = newAmount
		pos.UpdatedAt = now
	case domain.IsNotFound(err):
		pos = &domain.Position{
			MarketID:  req.MarketID,
			Staker:    req.Staker,
			Amount:    req.Amount,
			Choice:    req.Choice,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err = s.positionRepo.Create(ctx, tx, pos); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	// ── 6. Grow the pool ─────────────────────────────────────────────────────
	var newPool ledger.Amount
	newPool, err = ledger.Add(market.Pool(req.Choice), req.Amount)
	if err != nil {
		return nil, err
	}
	if err = s.marketRepo.SetPool(ctx, tx, req.MarketID, req.Choice, newPool); err != nil {
		return nil, err
	}

	// ── 7. Audit log ─────────────────────────────────────────────────────────
	marketID := req.MarketID
	txn := &domain.Transaction{
		ID:            uuid.New(),
		Staker:        req.Staker,
		Type:          domain.TxStake,
		Amount:        req.Amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		MarketID:      &marketID,
		Description:   fmt.Sprintf("Stake on %s: market %d", req.Choice, req.MarketID),
		CreatedAt:     now,
	}
	if err = s.walletRepo.LogTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	// ── 8. Commit ────────────────────────────────────────────────────────────
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("stake_service.Stake: commit: %w", err)
	}

	// ── 9. Async WS broadcast of the moved pools ─────────────────────────────
	go s.broadcastMarket(req.MarketID)

	return pos, nil
}

// broadcastMarket pushes the refreshed market snapshot to WS subscribers.
// Runs in a goroutine after commit; errors are dropped, the periodic
// scheduler broadcast catches up.
func (s *StakeService) broadcastMarket(marketID int64) {
	if s.broadcaster == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return
	}
	snap := market.Snapshot(time.Now().UTC(), nil)
	s.broadcaster.BroadcastMarketUpdate(&snap)
}
