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

// PositionRepository handles all database operations for positions.
type PositionRepository struct {
	db *sqlx.DB
}

// NewPositionRepository creates a new PositionRepository.
func NewPositionRepository(db *sqlx.DB) *PositionRepository {
	return &PositionRepository{db: db}
}

// Get fetches the position for a (market, staker) pair.  Returns
// ErrNoPosition when the staker has never staked on the market.
func (r *PositionRepository) Get(ctx context.Context, marketID int64, staker string) (*domain.Position, error) {
	var p domain.Position
	err := r.db.GetContext(ctx, &p,
		`SELECT * FROM positions WHERE market_id = $1 AND staker = $2`,
		marketID, staker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPosition
		}
		return nil, fmt.Errorf("position_repo.Get: %w", err)
	}
	return &p, nil
}

// GetForUpdate fetches a position inside tx with a row lock, serialising
// concurrent stakes and claims on the same position.
func (r *PositionRepository) GetForUpdate(ctx context.Context, tx *sqlx.Tx, marketID int64, staker string) (*domain.Position, error) {
	var p domain.Position
	err := tx.GetContext(ctx, &p,
		`SELECT * FROM positions WHERE market_id = $1 AND staker = $2 FOR UPDATE`,
		marketID, staker)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoPosition
		}
		return nil, fmt.Errorf("position_repo.GetForUpdate: %w", err)
	}
	return &p, nil
}

// Create inserts a fresh position inside tx.
func (r *PositionRepository) Create(ctx context.Context, tx *sqlx.Tx, p *domain.Position) error {
	query := `
		INSERT INTO positions
			(market_id, staker, amount, choice, claimed, created_at, updated_at)
		VALUES
			(:market_id, :staker, :amount, :choice, :claimed, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("position_repo.Create: %w", err)
	}
	return nil
}

// SetAmount stores the new cumulative stake for an existing position inside
// tx.  The caller holds the row lock and has done the overflow-checked add.
func (r *PositionRepository) SetAmount(ctx context.Context, tx *sqlx.Tx, marketID int64, staker string, amount ledger.Amount, at time.Time) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE positions SET amount = $1, updated_at = $2 WHERE market_id = $3 AND staker = $4`,
		amount, at, marketID, staker)
	if err != nil {
		return fmt.Errorf("position_repo.SetAmount: %w", err)
	}
	return nil
}

// MarkClaimed flips the claimed flag inside tx.  The NOT claimed guard makes
// the flip idempotent under races: a concurrent second claim sees zero rows
// affected and gets ErrAlreadyClaimed.
func (r *PositionRepository) MarkClaimed(ctx context.Context, tx *sqlx.Tx, marketID int64, staker string, at time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE positions SET claimed = TRUE, updated_at = $1
		 WHERE market_id = $2 AND staker = $3 AND NOT claimed`,
		at, marketID, staker)
	if err != nil {
		return fmt.Errorf("position_repo.MarkClaimed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrAlreadyClaimed
	}
	return nil
}

// ListByMarket returns every position on a market, largest stake first.
func (r *PositionRepository) ListByMarket(ctx context.Context, marketID int64) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.SelectContext(ctx, &positions,
		`SELECT * FROM positions WHERE market_id = $1 ORDER BY amount DESC, staker ASC`,
		marketID)
	if err != nil {
		return nil, fmt.Errorf("position_repo.ListByMarket: %w", err)
	}
	return positions, nil
}

// ListByStaker returns every position a staker holds, newest market first.
func (r *PositionRepository) ListByStaker(ctx context.Context, staker string) ([]*domain.Position, error) {
	var positions []*domain.Position
	err := r.db.SelectContext(ctx, &positions,
		`SELECT * FROM positions WHERE staker = $1 ORDER BY market_id DESC`,
		staker)
	if err != nil {
		return nil, fmt.Errorf("position_repo.ListByStaker: %w", err)
	}
	return positions, nil
}

// MapByStaker returns the staker's positions keyed by market id, for joining
// onto market lists.
func (r *PositionRepository) MapByStaker(ctx context.Context, staker string) (map[int64]*domain.Position, error) {
	positions, err := r.ListByStaker(ctx, staker)
	if err != nil {
		return nil, err
	}
	byMarket := make(map[int64]*domain.Position, len(positions))
	for _, p := range positions {
		byMarket[p.MarketID] = p
	}
	return byMarket, nil
}
