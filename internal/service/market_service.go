// Package service contains the business orchestration layer.  Services own
// the PostgreSQL transactions: every money movement happens inside a single
// transaction with row locks, repositories only execute statements.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pariline/oraclemarket/internal/config"
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/repository"
)

// ──────────────────────────────────────────────────────────────────────────────
// Request types
// ──────────────────────────────────────────────────────────────────────────────

// CreateMarketRequest contains the fields required to open a new market.
type CreateMarketRequest struct {
	Title   string    `json:"title"    binding:"required"`
	OptionA string    `json:"option_a" binding:"required"`
	OptionB string    `json:"option_b" binding:"required"`
	EndTime time.Time `json:"end_time" binding:"required"`
}

// Validate applies the creation guards against now.
func (r *CreateMarketRequest) Validate(now time.Time) error {
	if strings.TrimSpace(r.Title) == "" ||
		strings.TrimSpace(r.OptionA) == "" ||
		strings.TrimSpace(r.OptionB) == "" {
		return domain.ErrInvalidTitle
	}
	if !r.EndTime.After(now) {
		return domain.ErrInvalidDeadline
	}
	return nil
}

// ──────────────────────────────────────────────────────────────────────────────
// MarketService
// ──────────────────────────────────────────────────────────────────────────────

// CreationBroadcaster announces freshly opened markets to live clients.
// Split from Broadcaster because creation pushes the market itself, not a
// pool snapshot.
type CreationBroadcaster interface {
	BroadcastMarketCreated(m *domain.Market)
}

// MarketService handles market creation and all read paths: single markets,
// filtered lists, and the snapshot views joined with a caller's positions.
type MarketService struct {
	marketRepo   *repository.MarketRepository
	positionRepo *repository.PositionRepository
	cfg          *config.Config
	broadcaster  CreationBroadcaster // injected after the WS hub is built
}

// NewMarketService creates a MarketService.
func NewMarketService(
	marketRepo *repository.MarketRepository,
	positionRepo *repository.PositionRepository,
	cfg *config.Config,
) *MarketService {
	return &MarketService{
		marketRepo:   marketRepo,
		positionRepo: positionRepo,
		cfg:          cfg,
	}
}

// SetBroadcaster injects the WS hub dependency post-construction.
func (s *MarketService) SetBroadcaster(b CreationBroadcaster) { s.broadcaster = b }

// CreateMarket validates the request and opens a new market with empty pools.
// Ids are assigned sequentially by the database; markets are never deleted.
func (s *MarketService) CreateMarket(ctx context.Context, req CreateMarketRequest) (*domain.Market, error) {
	now := time.Now().UTC()
	if err := req.Validate(now); err != nil {
		return nil, err
	}

	m := &domain.Market{
		Title:     strings.TrimSpace(req.Title),
		OptionA:   strings.TrimSpace(req.OptionA),
		OptionB:   strings.TrimSpace(req.OptionB),
		Stage:     domain.StageOpen,
		EndTime:   req.EndTime.UTC(),
		CreatedAt: now,
	}
	if err := s.marketRepo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("market_service.CreateMarket: %w", err)
	}

	if s.broadcaster != nil {
		go s.broadcaster.BroadcastMarketCreated(m)
	}
	return m, nil
}

// GetMarket returns the snapshot of one market.  staker may be empty; when
// set, the caller's position is joined onto the snapshot.
func (s *MarketService) GetMarket(ctx context.Context, id int64, staker string) (*domain.MarketSnapshot, error) {
	m, err := s.marketRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("market_service.GetMarket: %w", err)
	}

	var pos *domain.Position
	if staker != "" {
		pos, err = s.positionRepo.Get(ctx, id, staker)
		if err != nil && !domain.IsNotFound(err) {
			return nil, fmt.Errorf("market_service.GetMarket: position: %w", err)
		}
	}

	snap := m.Snapshot(time.Now().UTC(), pos)
	return &snap, nil
}

// ListMarkets returns paginated market snapshots matching the phase filter,
// newest first.  staker may be empty; when set, each snapshot carries the
// caller's position on that market, if any.
// Returns (snapshots, total, error).
func (s *MarketService) ListMarkets(ctx context.Context, filter domain.MarketFilter, staker string, limit, offset int) ([]domain.MarketSnapshot, int, error) {
	if !filter.IsValid() {
		return nil, 0, fmt.Errorf("%w: unknown filter %q", domain.ErrInvalidOutcome, filter)
	}
	now := time.Now().UTC()

	markets, total, err := s.marketRepo.List(ctx, filter, now, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("market_service.ListMarkets: %w", err)
	}

	var positions map[int64]*domain.Position
	if staker != "" {
		positions, err = s.positionRepo.MapByStaker(ctx, staker)
		if err != nil {
			return nil, 0, fmt.Errorf("market_service.ListMarkets: positions: %w", err)
		}
	}

	snapshots := make([]domain.MarketSnapshot, 0, len(markets))
	for _, m := range markets {
		snapshots = append(snapshots, m.Snapshot(now, positions[m.ID]))
	}
	return snapshots, total, nil
}

// GetPosition returns a staker's position on a market.  A staker who never
// staked gets the well-defined empty position, not an error.
func (s *MarketService) GetPosition(ctx context.Context, marketID int64, staker string) (*domain.Position, error) {
	if _, err := s.marketRepo.GetByID(ctx, marketID); err != nil {
		return nil, fmt.Errorf("market_service.GetPosition: %w", err)
	}
	pos, err := s.positionRepo.Get(ctx, marketID, staker)
	if err != nil {
		if domain.IsNotFound(err) {
			return domain.EmptyPosition(marketID, staker), nil
		}
		return nil, fmt.Errorf("market_service.GetPosition: %w", err)
	}
	return pos, nil
}

// ListPositions returns every position on a market, for the operator view.
func (s *MarketService) ListPositions(ctx context.Context, marketID int64) ([]*domain.Position, error) {
	if _, err := s.marketRepo.GetByID(ctx, marketID); err != nil {
		return nil, fmt.Errorf("market_service.ListPositions: %w", err)
	}
	positions, err := s.positionRepo.ListByMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("market_service.ListPositions: %w", err)
	}
	return positions, nil
}
