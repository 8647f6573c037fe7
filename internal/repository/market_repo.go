// Package repository contains the PostgreSQL persistence layer.  All money
// mutations run inside caller-owned transactions with row locks; repositories
// never open their own transactions.
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

// MarketRepository handles all database operations for markets.
type MarketRepository struct {
	db *sqlx.DB
}

// NewMarketRepository creates a new MarketRepository.
func NewMarketRepository(db *sqlx.DB) *MarketRepository {
	return &MarketRepository{db: db}
}

// Create inserts a new market row and fills in the assigned sequential id.
func (r *MarketRepository) Create(ctx context.Context, m *domain.Market) error {
	query := `
		INSERT INTO markets
			(title, option_a, option_b, stage, pool_a, pool_b, end_time, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	err := r.db.GetContext(ctx, &m.ID, query,
		m.Title, m.OptionA, m.OptionB, m.Stage, m.PoolA, m.PoolB, m.EndTime, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("market_repo.Create: %w", err)
	}
	return nil
}

// GetByID fetches a market by its primary key.
func (r *MarketRepository) GetByID(ctx context.Context, id int64) (*domain.Market, error) {
	var m domain.Market
	err := r.db.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByID: %w", err)
	}
	return &m, nil
}

// GetByIDForUpdate fetches a market inside tx with a row lock, serialising
// concurrent stakes and resolutions on the same market.
func (r *MarketRepository) GetByIDForUpdate(ctx context.Context, tx *sqlx.Tx, id int64) (*domain.Market, error) {
	var m domain.Market
	err := tx.GetContext(ctx, &m, `SELECT * FROM markets WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrMarketNotFound
		}
		return nil, fmt.Errorf("market_repo.GetByIDForUpdate: %w", err)
	}
	return &m, nil
}

// SetPool writes a new total for one side's pool inside tx.  The caller holds
// the row lock and has already computed the overflow-checked sum; the repo
// stores the result verbatim rather than doing arithmetic in SQL.
func (r *MarketRepository) SetPool(ctx context.Context, tx *sqlx.Tx, marketID int64, outcome domain.Outcome, total ledger.Amount) error {
	var query string
	if outcome == domain.OutcomeA {
		query = `UPDATE markets SET pool_a = $1 WHERE id = $2`
	} else {
		query = `UPDATE markets SET pool_b = $1 WHERE id = $2`
	}
	if _, err := tx.ExecContext(ctx, query, total, marketID); err != nil {
		return fmt.Errorf("market_repo.SetPool: %w", err)
	}
	return nil
}

// Resolve finalises the market inside tx.  The stage guard in the WHERE
// clause makes the write idempotent under races: a second resolver sees zero
// rows affected and gets ErrMarketAlreadyResolved.
func (r *MarketRepository) Resolve(ctx context.Context, tx *sqlx.Tx, marketID int64, winner domain.Outcome, at time.Time) error {
	query := `
		UPDATE markets
		SET stage           = 'resolved',
		    winning_outcome = $1,
		    resolved_at     = $2
		WHERE id = $3 AND stage = 'open'`
	res, err := tx.ExecContext(ctx, query, winner, at, marketID)
	if err != nil {
		return fmt.Errorf("market_repo.Resolve: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrMarketAlreadyResolved
	}
	return nil
}

// List returns a paginated slice of markets matching the phase filter, newest
// first.  The open/awaiting split is computed against now because expiry is
// never written back to the row.
// Returns (markets, totalCount, error).
func (r *MarketRepository) List(ctx context.Context, filter domain.MarketFilter, now time.Time, limit, offset int) ([]*domain.Market, int, error) {
	where, args := filterClause(filter, now)

	var total int
	countQuery := `SELECT COUNT(*) FROM markets` + where
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("market_repo.List count: %w", err)
	}

	var markets []*domain.Market
	listQuery := fmt.Sprintf(
		`SELECT * FROM markets%s ORDER BY id DESC LIMIT $%d OFFSET $%d`,
		where, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	if err := r.db.SelectContext(ctx, &markets, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("market_repo.List select: %w", err)
	}
	return markets, total, nil
}

// GetAwaitingResolution returns open markets whose deadline has passed, the
// set the scheduler nags the oracle about.
func (r *MarketRepository) GetAwaitingResolution(ctx context.Context, now time.Time) ([]*domain.Market, error) {
	var markets []*domain.Market
	err := r.db.SelectContext(ctx, &markets,
		`SELECT * FROM markets WHERE stage = 'open' AND end_time <= $1 ORDER BY end_time ASC`,
		now)
	if err != nil {
		return nil, fmt.Errorf("market_repo.GetAwaitingResolution: %w", err)
	}
	return markets, nil
}

// MarketStats aggregates the market table for the ops dashboard.
type MarketStats struct {
	OpenCount     int           `db:"open_count"`
	AwaitingCount int           `db:"awaiting_count"`
	ResolvedCount int           `db:"resolved_count"`
	OpenPoolTotal ledger.Amount `db:"open_pool_total"`
}

// Stats computes phase counts and the total value locked in unresolved
// markets, split against now like List.
func (r *MarketRepository) Stats(ctx context.Context, now time.Time) (*MarketStats, error) {
	var s MarketStats
	err := r.db.GetContext(ctx, &s, `
		SELECT
			COUNT(*) FILTER (WHERE stage = 'open' AND end_time >  $1)  AS open_count,
			COUNT(*) FILTER (WHERE stage = 'open' AND end_time <= $1)  AS awaiting_count,
			COUNT(*) FILTER (WHERE stage = 'resolved')                 AS resolved_count,
			COALESCE(SUM(pool_a + pool_b) FILTER (WHERE stage = 'open'), 0) AS open_pool_total
		FROM markets`,
		now)
	if err != nil {
		return nil, fmt.Errorf("market_repo.Stats: %w", err)
	}
	return &s, nil
}

func filterClause(filter domain.MarketFilter, now time.Time) (string, []interface{}) {
	switch filter {
	case domain.FilterOpen:
		return ` WHERE stage = 'open' AND end_time > $1`, []interface{}{now}
	case domain.FilterAwaitingResolution:
		return ` WHERE stage = 'open' AND end_time <= $1`, []interface{}{now}
	case domain.FilterResolved:
		return ` WHERE stage = 'resolved'`, nil
	default: // "" or FilterAll
		return ``, nil
	}
}
