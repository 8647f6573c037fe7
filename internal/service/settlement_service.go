package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/repository"
	"github.com/pariline/oraclemarket/internal/settlement"
)

// Transferrer releases claimed funds to a staker.  The wallet-backed
// implementation below credits the internal balance; swapping in an
// on-chain transfer only touches this boundary.
type Transferrer interface {
	Transfer(ctx context.Context, staker string, amount ledger.Amount, marketID int64) error
}

// ──────────────────────────────────────────────────────────────────────────────
// SettlementService
// ──────────────────────────────────────────────────────────────────────────────

// SettlementService handles claims.  A claim runs in two phases:
//
//	phase 1 (one transaction): flip the position's claimed flag and record
//	a pending payout.  The conditional UPDATE makes the flip race-safe, so
//	a payout can never be computed twice.
//	phase 2: release the funds, then mark the payout paid.
//
// If phase 2 fails, the claim flag stays set and the payout row is marked
// failed.  That is deliberate: retrying the transfer automatically would
// risk paying twice, so the row waits for operator reconciliation and the
// staker sees ErrPayoutTransferFailed.
type SettlementService struct {
	db           *sqlx.DB
	marketRepo   *repository.MarketRepository
	positionRepo *repository.PositionRepository
	payoutRepo   *repository.PayoutRepository
	transferrer  Transferrer
	logger       *slog.Logger
}

// NewSettlementService builds a SettlementService.
func NewSettlementService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	positionRepo *repository.PositionRepository,
	payoutRepo *repository.PayoutRepository,
	transferrer Transferrer,
	logger *slog.Logger,
) *SettlementService {
	return &SettlementService{
		db:           db,
		marketRepo:   marketRepo,
		positionRepo: positionRepo,
		payoutRepo:   payoutRepo,
		transferrer:  transferrer,
		logger:       logger,
	}
}

// Claim settles a winning position: payout = stake + the position's
// proportional share of the losing pool, rounded down.  Guards, in order:
// the market exists and is resolved, the staker holds a position, the
// position is on the winning side, and it has not been claimed before.
func (s *SettlementService) Claim(ctx context.Context, marketID int64, staker string) (*domain.Payout, error) {
	// Resolved markets are immutable, so the market read needs no lock.
	market, err := s.marketRepo.GetByID(ctx, marketID)
	if err != nil {
		return nil, err
	}
	if !market.IsResolved() {
		return nil, domain.ErrMarketNotResolved
	}

	payout, err := s.recordClaim(ctx, market, staker)
	if err != nil {
		return nil, err
	}

	// Phase 2: move the funds.  The claim is already durable; a failure
	// here is the one condition that needs a human.
	if err := s.transferrer.Transfer(ctx, staker, payout.Amount, marketID); err != nil {
		now := time.Now().UTC()
		s.logger.Error("payout transfer failed after claim was recorded",
			"payout_id", payout.ID,
			"market_id", marketID,
			"staker", staker,
			"amount", payout.Amount.Dec(),
			"err", err,
		)
		if markErr := s.payoutRepo.MarkFailed(ctx, payout.ID, err.Error(), now); markErr != nil {
			s.logger.Error("could not mark payout failed", "payout_id", payout.ID, "err", markErr)
		}
		payout.Status = domain.PayoutFailed
		payout.Detail = err.Error()
		return payout, domain.ErrPayoutTransferFailed
	}

	now := time.Now().UTC()
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.Claim: begin mark tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = s.payoutRepo.MarkPaid(ctx, tx, payout.ID, now); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("settlement_service.Claim: commit mark: %w", err)
	}
	payout.Status = domain.PayoutPaid

	s.logger.Info("payout settled",
		"payout_id", payout.ID,
		"market_id", marketID,
		"staker", staker,
		"amount", payout.Amount.Dec(),
	)
	return payout, nil
}

// recordClaim is phase 1: computes the payout from the locked position and
// atomically flips the claimed flag alongside a pending payout row.
func (s *SettlementService) recordClaim(ctx context.Context, market *domain.Market, staker string) (*domain.Payout, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.recordClaim: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	pos, err := s.positionRepo.GetForUpdate(ctx, tx, market.ID, staker)
	if err != nil {
		return nil, err
	}

	var amount ledger.Amount
	amount, err = settlement.ComputePayout(market, pos)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err = s.positionRepo.MarkClaimed(ctx, tx, market.ID, staker, now); err != nil {
		return nil, err
	}

	payout := &domain.Payout{
		ID:        uuid.New(),
		MarketID:  market.ID,
		Staker:    staker,
		Amount:    amount,
		Status:    domain.PayoutPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err = s.payoutRepo.Create(ctx, tx, payout); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("settlement_service.recordClaim: commit: %w", err)
	}
	return payout, nil
}

// GetPayout returns the settlement record for a (market, staker) pair.
func (s *SettlementService) GetPayout(ctx context.Context, marketID int64, staker string) (*domain.Payout, error) {
	p, err := s.payoutRepo.Get(ctx, marketID, staker)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.GetPayout: %w", err)
	}
	return p, nil
}

// ListUnsettled returns payouts whose funds never demonstrably moved,
// oldest first.  Surfaced by the scheduler and the operator endpoint.
func (s *SettlementService) ListUnsettled(ctx context.Context, olderThan time.Time) ([]*domain.Payout, error) {
	payouts, err := s.payoutRepo.ListUnsettled(ctx, olderThan)
	if err != nil {
		return nil, fmt.Errorf("settlement_service.ListUnsettled: %w", err)
	}
	return payouts, nil
}

// ──────────────────────────────────────────────────────────────────────────────
// Wallet-backed Transferrer
// ──────────────────────────────────────────────────────────────────────────────

// WalletTransferrer releases payouts by crediting the staker's internal
// wallet in its own transaction, with an audit record.
type WalletTransferrer struct {
	db         *sqlx.DB
	walletRepo *repository.WalletRepository
}

// NewWalletTransferrer creates a WalletTransferrer.
func NewWalletTransferrer(db *sqlx.DB, walletRepo *repository.WalletRepository) *WalletTransferrer {
	return &WalletTransferrer{db: db, walletRepo: walletRepo}
}

// Transfer credits amount to the staker's wallet.
func (t *WalletTransferrer) Transfer(ctx context.Context, staker string, amount ledger.Amount, marketID int64) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("wallet_transferrer.Transfer: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	before, after, err := t.walletRepo.Credit(ctx, tx, staker, amount, now)
	if err != nil {
		return err
	}

	marketIDCopy := marketID
	txn := &domain.Transaction{
		ID:            uuid.New(),
		Staker:        staker,
		Type:          domain.TxPayout,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		MarketID:      &marketIDCopy,
		Description:   fmt.Sprintf("Payout: market %d", marketID),
		CreatedAt:     now,
	}
	if err = t.walletRepo.LogTransaction(ctx, tx, txn); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("wallet_transferrer.Transfer: commit: %w", err)
	}
	return nil
}
