// Package scheduler manages the three background goroutines that keep the
// settlement engine honest between requests:
//  1. snapshotLoop     – pushes live pool snapshots of open markets to WS
//     clients every few seconds.
//  2. awaitingLoop     – watches for markets past their deadline that still
//     have no oracle outcome and logs how long they have been waiting.
//  3. payoutAuditLoop  – surfaces claimed-but-unpaid payouts.  A pending or
//     failed payout row older than the audit window means a staker's claim
//     was recorded but the credit never landed; that is an operator page,
//     never something to retry silently.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/service"
	"github.com/pariline/oraclemarket/internal/ws"
)

// ──────────────────────────────────────────────────────────────────────────────
// WsHub interface — minimally required from the Hub
// ──────────────────────────────────────────────────────────────────────────────

// WsHub defines the broadcast operations the Scheduler needs from the
// WebSocket hub.  Declared here so the scheduler package does not depend on
// the ws.Hub implementation directly.
type WsHub interface {
	BroadcastMarketUpdate(snap *domain.MarketSnapshot)
	ConnectedCount() int
}

var _ WsHub = (*ws.Hub)(nil)

// ──────────────────────────────────────────────────────────────────────────────
// Scheduler
// ──────────────────────────────────────────────────────────────────────────────

// Intervals and thresholds for the three loops.
const (
	snapshotInterval    = 5 * time.Second
	awaitingInterval    = 30 * time.Second
	payoutAuditInterval = 5 * time.Minute

	// A payout still unpaid this long after its claim is considered stuck.
	payoutStuckAfter = 10 * time.Minute

	// How many open markets a single snapshot tick broadcasts.
	snapshotPageSize = 50
)

// Scheduler runs the background lifecycle goroutines.  Call Start(ctx) once
// from main(); cancel the context to shut it down gracefully.
type Scheduler struct {
	marketSvc     *service.MarketService
	resolutionSvc *service.ResolutionService
	settlementSvc *service.SettlementService
	hub           WsHub
	logger        *slog.Logger
}

// NewScheduler creates a Scheduler.
func NewScheduler(
	marketSvc *service.MarketService,
	resolutionSvc *service.ResolutionService,
	settlementSvc *service.SettlementService,
	hub WsHub,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		marketSvc:     marketSvc,
		resolutionSvc: resolutionSvc,
		settlementSvc: settlementSvc,
		hub:           hub,
		logger:        logger,
	}
}

// Start launches the background goroutines.  It returns immediately; all
// loops run until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	go s.snapshotLoop(ctx)
	go s.awaitingLoop(ctx)
	go s.payoutAuditLoop(ctx)
	s.logger.Info("scheduler started")
}

// ──────────────────────────────────────────────────────────────────────────────
// snapshotLoop
// ──────────────────────────────────────────────────────────────────────────────

// snapshotLoop broadcasts the pool split and countdown of every open market
// to all connected WS clients on a fixed tick.  Skipped entirely while no
// client is connected.
func (s *Scheduler) snapshotLoop(ctx context.Context) {
	defer s.recoverAndLog("snapshotLoop")

	ticker := time.NewTicker(snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("snapshotLoop: shutting down")
			return
		case <-ticker.C:
			s.broadcastSnapshots(ctx)
		}
	}
}

// broadcastSnapshots is the inner body of snapshotLoop, extracted so the
// defer/recover in the loop catches panics correctly.
func (s *Scheduler) broadcastSnapshots(ctx context.Context) {
	if s.hub == nil || s.hub.ConnectedCount() == 0 {
		return
	}

	snaps, _, err := s.marketSvc.ListMarkets(ctx, domain.FilterOpen, "", snapshotPageSize, 0)
	if err != nil {
		s.logger.Warn("snapshotLoop: list open markets failed", "err", err)
		return
	}
	for i := range snaps {
		s.hub.BroadcastMarketUpdate(&snaps[i])
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// awaitingLoop
// ──────────────────────────────────────────────────────────────────────────────

// awaitingLoop checks for markets whose deadline has passed without an oracle
// outcome.  Resolution only ever happens through a signed attestation, so the
// loop cannot act on these markets itself; it logs them so operators can chase
// the oracle, escalating to error level once a market is overdue by more than
// an hour.
func (s *Scheduler) awaitingLoop(ctx context.Context) {
	defer s.recoverAndLog("awaitingLoop")

	ticker := time.NewTicker(awaitingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("awaitingLoop: shutting down")
			return
		case <-ticker.C:
			s.checkAwaiting(ctx)
		}
	}
}

func (s *Scheduler) checkAwaiting(ctx context.Context) {
	markets, err := s.resolutionSvc.ListAwaitingResolution(ctx)
	if err != nil {
		s.logger.Error("awaitingLoop: ListAwaitingResolution", "err", err)
		return
	}
	if len(markets) == 0 {
		return
	}

	now := time.Now().UTC()
	for _, m := range markets {
		overdue := now.Sub(m.EndTime).Round(time.Second)
		if overdue > time.Hour {
			s.logger.Error("market overdue for oracle outcome",
				"market_id", m.ID, "title", m.Title, "overdue", overdue)
		} else {
			s.logger.Warn("market awaiting oracle outcome",
				"market_id", m.ID, "title", m.Title, "overdue", overdue)
		}
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// payoutAuditLoop
// ──────────────────────────────────────────────────────────────────────────────

// payoutAuditLoop scans for payout rows that were claimed but never paid.
// These represent the one unrecoverable state of the engine: the claim flag
// is set, the money did not move, and nothing retries automatically.
func (s *Scheduler) payoutAuditLoop(ctx context.Context) {
	defer s.recoverAndLog("payoutAuditLoop")

	ticker := time.NewTicker(payoutAuditInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("payoutAuditLoop: shutting down")
			return
		case <-ticker.C:
			s.auditPayouts(ctx)
		}
	}
}

func (s *Scheduler) auditPayouts(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-payoutStuckAfter)
	payouts, err := s.settlementSvc.ListUnsettled(ctx, cutoff)
	if err != nil {
		s.logger.Error("payoutAuditLoop: ListUnsettled", "err", err)
		return
	}
	for _, p := range payouts {
		s.logger.Error("claimed payout still unpaid — manual intervention required",
			"payout_id", p.ID,
			"market_id", p.MarketID,
			"staker", p.Staker,
			"amount", p.Amount.Dec(),
			"status", p.Status,
			"claimed_at", p.CreatedAt.Format(time.RFC3339),
		)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Panic recovery
// ──────────────────────────────────────────────────────────────────────────────

// recoverAndLog is deferred inside each goroutine to catch unexpected panics,
// log them, and allow the rest of the scheduler to continue running.
func (s *Scheduler) recoverAndLog(loop string) {
	if r := recover(); r != nil {
		s.logger.Error("PANIC recovered in scheduler loop",
			"loop", loop, "panic", r)
	}
}
