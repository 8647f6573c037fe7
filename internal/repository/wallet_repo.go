package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
)

// WalletRepository handles all database operations for wallets and their
// transaction audit trail.  Balance arithmetic happens in Go on locked rows
// so every mutation goes through the overflow-checked ledger.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetByStaker fetches the wallet for a staker address.
func (r *WalletRepository) GetByStaker(ctx context.Context, staker string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE staker = $1`, staker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrWalletNotFound
		}
		return nil, fmt.Errorf("wallet_repo.GetByStaker: %w", err)
	}
	return &w, nil
}

// Debit subtracts amount from a staker's balance inside tx.  Locks the row
// first so concurrent stakes cannot both pass the balance check.  Returns
// the balance before and after for the audit record.
func (r *WalletRepository) Debit(ctx context.Context, tx *sqlx.Tx, staker string, amount ledger.Amount) (before, after ledger.Amount, err error) {
	err = tx.GetContext(ctx, &before,
		`SELECT balance FROM wallets WHERE staker = $1 FOR UPDATE`, staker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ledger.Zero(), ledger.Zero(), domain.ErrWalletNotFound
		}
		return ledger.Zero(), ledger.Zero(), fmt.Errorf("wallet_repo.Debit lock: %w", err)
	}

	if before.LessThan(amount) {
		return ledger.Zero(), ledger.Zero(), domain.ErrInsufficientBalance
	}
	after, err = ledger.Sub(before, amount)
	if err != nil {
		return ledger.Zero(), ledger.Zero(), fmt.Errorf("wallet_repo.Debit: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = now() WHERE staker = $2`,
		after, staker)
	if err != nil {
		return ledger.Zero(), ledger.Zero(), fmt.Errorf("wallet_repo.Debit update: %w", err)
	}
	return before, after, nil
}

// Credit adds amount to a staker's balance inside tx, creating the wallet on
// first use.  Returns the balance before and after for the audit record.
func (r *WalletRepository) Credit(ctx context.Context, tx *sqlx.Tx, staker string, amount ledger.Amount, at time.Time) (before, after ledger.Amount, err error) {
	// Upsert-then-lock so a first deposit and a concurrent credit serialise
	// on the same row.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO wallets (staker, balance, created_at, updated_at)
		 VALUES ($1, 0, $2, $2)
		 ON CONFLICT (staker) DO NOTHING`,
		staker, at)
	if err != nil {
		return ledger.Zero(), ledger.Zero(), fmt.Errorf("wallet_repo.Credit upsert: %w", err)
	}

	err = tx.GetContext(ctx, &before,
		`SELECT balance FROM wallets WHERE staker = $1 FOR UPDATE`, staker)
	if err != nil {
		return ledger.Zero(), ledger.Zero(), fmt.Errorf("wallet_repo.Credit lock: %w", err)
	}

	after, err = ledger.Add(before, amount)
	if err != nil {
		return ledger.Zero(), ledger.Zero(), fmt.Errorf("wallet_repo.Credit: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE wallets SET balance = $1, updated_at = $2 WHERE staker = $3`,
		after, at, staker)
	if err != nil {
		return ledger.Zero(), ledger.Zero(), fmt.Errorf("wallet_repo.Credit update: %w", err)
	}
	return before, after, nil
}

// LogTransaction inserts an audit record into wallet_transactions inside tx.
func (r *WalletRepository) LogTransaction(ctx context.Context, tx *sqlx.Tx, txn *domain.Transaction) error {
	query := `
		INSERT INTO wallet_transactions
			(id, staker, type, amount, balance_before, balance_after, market_id, description, created_at)
		VALUES
			(:id, :staker, :type, :amount, :balance_before, :balance_after, :market_id, :description, :created_at)`
	if _, err := tx.NamedExecContext(ctx, query, txn); err != nil {
		return fmt.Errorf("wallet_repo.LogTransaction: %w", err)
	}
	return nil
}

// GetTransactions returns paginated transaction history for a staker.
func (r *WalletRepository) GetTransactions(ctx context.Context, staker string, limit, offset int) ([]*domain.Transaction, error) {
	var txns []*domain.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM wallet_transactions
		WHERE staker = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		staker, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.GetTransactions: %w", err)
	}
	return txns, nil
}

// ListAllTransactions returns paginated transaction history across every
// staker, newest first.  Backoffice finance view.
func (r *WalletRepository) ListAllTransactions(ctx context.Context, limit, offset int) ([]*domain.Transaction, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM wallet_transactions`); err != nil {
		return nil, 0, fmt.Errorf("wallet_repo.ListAllTransactions count: %w", err)
	}

	var txns []*domain.Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT * FROM wallet_transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("wallet_repo.ListAllTransactions: %w", err)
	}
	return txns, total, nil
}

// WalletStats aggregates the wallets table for the ops dashboard.
type WalletStats struct {
	WalletCount  int           `db:"wallet_count"`
	TotalBalance ledger.Amount `db:"total_balance"`
}

// Stats computes the wallet count and the total spendable balance held on
// the platform.
func (r *WalletRepository) Stats(ctx context.Context) (*WalletStats, error) {
	var s WalletStats
	err := r.db.GetContext(ctx, &s, `
		SELECT COUNT(*) AS wallet_count, COALESCE(SUM(balance), 0) AS total_balance
		FROM wallets`)
	if err != nil {
		return nil, fmt.Errorf("wallet_repo.Stats: %w", err)
	}
	return &s, nil
}
