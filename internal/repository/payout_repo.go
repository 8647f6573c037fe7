package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
)

// PayoutRepository persists the per-claim settlement records.  One row per
// claimed position; the status column is the source of truth for whether the
// funds actually moved.
type PayoutRepository struct {
	db *sqlx.DB
}

// NewPayoutRepository creates a new PayoutRepository.
func NewPayoutRepository(db *sqlx.DB) *PayoutRepository {
	return &PayoutRepository{db: db}
}

// Create inserts a pending payout inside tx, in the same transaction that
// flips the position's claimed flag.
func (r *PayoutRepository) Create(ctx context.Context, tx *sqlx.Tx, p *domain.Payout) error {
	query := `
		INSERT INTO payouts
			(id, market_id, staker, amount, status, detail, created_at, updated_at)
		VALUES
			(:id, :market_id, :staker, :amount, :status, :detail, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("payout_repo.Create: %w", err)
	}
	return nil
}

// MarkPaid records that the funds reached the staker.
func (r *PayoutRepository) MarkPaid(ctx context.Context, tx *sqlx.Tx, id uuid.UUID, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE payouts SET status = 'paid', updated_at = $1 WHERE id = $2 AND status = 'pending'`,
		at, id)
	if err != nil {
		return fmt.Errorf("payout_repo.MarkPaid: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payout_repo.MarkPaid: payout %s not pending", id)
	}
	return nil
}

// MarkFailed records that fund release failed after the claim flag was set.
// Runs on the pool connection, not the claim transaction: the failure record
// must survive the rollback of the transfer.
func (r *PayoutRepository) MarkFailed(ctx context.Context, id uuid.UUID, detail string, at time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE payouts SET status = 'failed', detail = $1, updated_at = $2 WHERE id = $3`,
		detail, at, id)
	if err != nil {
		return fmt.Errorf("payout_repo.MarkFailed: %w", err)
	}
	return nil
}

// Get fetches the payout for a (market, staker) pair.
func (r *PayoutRepository) Get(ctx context.Context, marketID int64, staker string) (*domain.Payout, error) {
	var p domain.Payout
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM payouts WHERE market_id = $1 AND staker = $2`,
		marketID, staker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPosition
		}
		return nil, fmt.Errorf("payout_repo.Get: %w", err)
	}
	return &p, nil
}

// ListUnsettled returns payouts stuck in pending or failed, oldest first.
// These are positions whose claimed flag is set but whose funds never
// demonstrably moved; the scheduler surfaces them for operator review.
func (r *PayoutRepository) ListUnsettled(ctx context.Context, olderThan time.Time) ([]*domain.Payout, error) {
	var payouts []*domain.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts
		WHERE status <> 'paid' AND created_at <= $1
		ORDER BY created_at ASC`,
		olderThan)
	if err != nil {
		return nil, fmt.Errorf("payout_repo.ListUnsettled: %w", err)
	}
	return payouts, nil
}

// ListByStatus returns payouts in one status, newest first.  Used by the
// backoffice to page through failed or pending settlements.
func (r *PayoutRepository) ListByStatus(ctx context.Context, status domain.PayoutStatus, limit, offset int) ([]*domain.Payout, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM payouts WHERE status = $1`, status); err != nil {
		return nil, 0, fmt.Errorf("payout_repo.ListByStatus count: %w", err)
	}

	var payouts []*domain.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("payout_repo.ListByStatus: %w", err)
	}
	return payouts, total, nil
}

// PayoutStats aggregates the payouts table for the ops dashboard.
type PayoutStats struct {
	PendingCount int           `db:"pending_count"`
	FailedCount  int           `db:"failed_count"`
	PaidCount    int           `db:"paid_count"`
	PaidTotal    ledger.Amount `db:"paid_total"`
	UnpaidTotal  ledger.Amount `db:"unpaid_total"`
}

// Stats computes per-status counts and paid/unpaid value totals.
func (r *PayoutRepository) Stats(ctx context.Context) (*PayoutStats, error) {
	var s PayoutStats
	err := r.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*) FILTER (WHERE status = 'pending')                  AS pending_count,
			COUNT(*) FILTER (WHERE status = 'failed')                   AS failed_count,
			COUNT(*) FILTER (WHERE status = 'paid')                     AS paid_count,
			COALESCE(SUM(amount) FILTER (WHERE status =  'paid'), 0)    AS paid_total,
			COALESCE(SUM(amount) FILTER (WHERE status <> 'paid'), 0)    AS unpaid_total
		FROM payouts`)
	if err != nil {
		return nil, fmt.Errorf("payout_repo.Stats: %w", err)
	}
	return &s, nil
}

// ListByStaker returns a staker's payout history, newest first.
func (r *PayoutRepository) ListByStaker(ctx context.Context, staker string, limit, offset int) ([]*domain.Payout, error) {
	var payouts []*domain.Payout
	err := r.db.SelectContext(ctx, &payouts, `
		SELECT * FROM payouts
		WHERE staker = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`,
		staker, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("payout_repo.ListByStaker: %w", err)
	}
	return payouts, nil
}
