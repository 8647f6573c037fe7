package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/repository"
)

// WalletService handles the internal balance ledger that funds stakes and
// receives payouts.  Deposits are an admin operation: this service has no
// payment rails, an operator credits balances after funds arrive off-system.
type WalletService struct {
	db         *sqlx.DB
	walletRepo *repository.WalletRepository
}

// NewWalletService creates a WalletService.
func NewWalletService(db *sqlx.DB, walletRepo *repository.WalletRepository) *WalletService {
	return &WalletService{db: db, walletRepo: walletRepo}
}

// GetWallet returns a staker's wallet.  A staker with no deposits yet gets
// a zero-balance view, not an error.
func (s *WalletService) GetWallet(ctx context.Context, staker string) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByStaker(ctx, staker)
	if err != nil {
		if domain.IsNotFound(err) {
			return &domain.Wallet{Staker: staker, Balance: ledger.Zero()}, nil
		}
		return nil, fmt.Errorf("wallet_service.GetWallet: %w", err)
	}
	return w, nil
}

// Deposit credits a staker's wallet, creating it on first use.  Admin only;
// the audit record names the operator.
func (s *WalletService) Deposit(ctx context.Context, staker string, amount ledger.Amount, operator string) (*domain.Wallet, error) {
	if amount.IsZero() {
		return nil, domain.ErrInvalidAmount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.Deposit: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	before, after, err := s.walletRepo.Credit(ctx, tx, staker, amount, now)
	if err != nil {
		return nil, err
	}

	txn := &domain.Transaction{
		ID:            uuid.New(),
		Staker:        staker,
		Type:          domain.TxDeposit,
		Amount:        amount,
		BalanceBefore: before,
		BalanceAfter:  after,
		Description:   fmt.Sprintf("Deposit credited by %s", operator),
		CreatedAt:     now,
	}
	if err = s.walletRepo.LogTransaction(ctx, tx, txn); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("wallet_service.Deposit: commit: %w", err)
	}

	return &domain.Wallet{Staker: staker, Balance: after, UpdatedAt: now}, nil
}

// GetTransactions returns paginated audit history for a staker's wallet.
func (s *WalletService) GetTransactions(ctx context.Context, staker string, limit, offset int) ([]*domain.Transaction, error) {
	txns, err := s.walletRepo.GetTransactions(ctx, staker, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_service.GetTransactions: %w", err)
	}
	return txns, nil
}
