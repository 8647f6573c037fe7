package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/oracle"
	"github.com/pariline/oraclemarket/internal/repository"
)

// ResolutionService finalises markets.  Resolution is signature-driven: the
// caller submits the outcome together with the oracle's attestation over the
// (market, outcome) pair, and the service trusts nothing but a valid
// signature from the configured oracle address.
type ResolutionService struct {
	db          *sqlx.DB
	marketRepo  *repository.MarketRepository
	verifier    *oracle.Verifier
	broadcaster Broadcaster
	logger      *slog.Logger
}

// NewResolutionService builds a ResolutionService.
func NewResolutionService(
	db *sqlx.DB,
	marketRepo *repository.MarketRepository,
	verifier *oracle.Verifier,
	logger *slog.Logger,
) *ResolutionService {
	return &ResolutionService{
		db:         db,
		marketRepo: marketRepo,
		verifier:   verifier,
		logger:     logger,
	}
}

// SetBroadcaster injects the WS hub dependency post-construction.
func (s *ResolutionService) SetBroadcaster(b Broadcaster) { s.broadcaster = b }

// ResolveRequest carries one resolution attempt.
type ResolveRequest struct {
	MarketID  int64
	Outcome   domain.Outcome
	Signature string // 0x-prefixed hex, 65 bytes
	Submitter string // authenticated address, for the audit log only
}

// Resolve finalises a market.  Guards, in order: the outcome is valid, the
// market exists, the deadline has passed, the market is not already
// resolved, and the signature is a valid oracle attestation for exactly
// this (market, outcome) pair.  Any caller may submit a resolution — the
// signature is the authority, not the submitter.
//
// The stage write is guarded in SQL, so a concurrent duplicate loses the
// race and gets ErrMarketAlreadyResolved with no state change.
func (s *ResolutionService) Resolve(ctx context.Context, req ResolveRequest) (*domain.Market, error) {
	if !req.Outcome.IsValid() {
		return nil, domain.ErrInvalidOutcome
	}

	market, err := s.marketRepo.GetByID(ctx, req.MarketID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := market.CanResolve(now); err != nil {
		return nil, err
	}

	// Signature check is fail-closed and runs after the cheap lifecycle
	// guards.  A failed verification is logged: it may be a forgery attempt.
	if !s.verifier.VerifyHex(req.MarketID, req.Outcome, req.Signature) {
		s.logger.Warn("rejected resolution: signature did not verify",
			"market_id", req.MarketID,
			"outcome", req.Outcome.String(),
			"submitter", req.Submitter,
		)
		return nil, domain.ErrInvalidOracleSignature
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("resolution_service.Resolve: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.marketRepo.Resolve(ctx, tx, req.MarketID, req.Outcome, now); err != nil {
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("resolution_service.Resolve: commit: %w", err)
	}

	outcome := req.Outcome
	market.Stage = domain.StageResolved
	market.WinningOutcome = &outcome
	market.ResolvedAt = &now

	s.logger.Info("market resolved",
		"market_id", market.ID,
		"outcome", outcome.String(),
		"pool_a", market.PoolA.Dec(),
		"pool_b", market.PoolB.Dec(),
		"submitter", req.Submitter,
	)

	if s.broadcaster != nil {
		snap := market.Snapshot(now, nil)
		s.broadcaster.BroadcastMarketUpdate(&snap)
	}
	return market, nil
}

// ListAwaitingResolution returns open markets past their deadline, the set
// the scheduler logs as waiting on the oracle.
func (s *ResolutionService) ListAwaitingResolution(ctx context.Context) ([]*domain.Market, error) {
	markets, err := s.marketRepo.GetAwaitingResolution(ctx, time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("resolution_service.ListAwaitingResolution: %w", err)
	}
	return markets, nil
}
