package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/pariline/oraclemarket/internal/repository"
)

// DashboardHandler serves the /admin/dashboard endpoint.
type DashboardHandler struct {
	marketRepo *repository.MarketRepository
	walletRepo *repository.WalletRepository
	payoutRepo *repository.PayoutRepository
}

// NewDashboardHandler creates a DashboardHandler.
func NewDashboardHandler(
	marketRepo *repository.MarketRepository,
	walletRepo *repository.WalletRepository,
	payoutRepo *repository.PayoutRepository,
) *DashboardHandler {
	return &DashboardHandler{
		marketRepo: marketRepo,
		walletRepo: walletRepo,
		payoutRepo: payoutRepo,
	}
}

// Dashboard godoc
// GET /admin/dashboard
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	now := time.Now().UTC()

	marketStats, err := h.marketRepo.Stats(ctx, now)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	walletStats, err := h.walletRepo.Stats(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	payoutStats, err := h.payoutRepo.Stats(ctx)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	// Markets stuck past their deadline without an oracle outcome, oldest
	// first — the list the operator chases the oracle about.
	awaiting, _ := h.marketRepo.GetAwaitingResolution(ctx, now)
	awaitingView := make([]gin.H, 0, len(awaiting))
	for _, m := range awaiting {
		awaitingView = append(awaitingView, gin.H{
			"id":             m.ID,
			"title":          m.Title,
			"end_time":       m.EndTime,
			"overdue_sec":    int64(now.Sub(m.EndTime).Seconds()),
			"pool_a":         m.PoolA.Dec(),
			"pool_b":         m.PoolB.Dec(),
			"risk_indicator": riskIndicator(m.PercentA()),
		})
	}

	respondSuccess(c, gin.H{
		"timestamp": now,
		"markets": gin.H{
			"open":            marketStats.OpenCount,
			"awaiting":        marketStats.AwaitingCount,
			"resolved":        marketStats.ResolvedCount,
			"open_pool_total": marketStats.OpenPoolTotal.Dec(),
		},
		"wallets": gin.H{
			"count":         walletStats.WalletCount,
			"total_balance": walletStats.TotalBalance.Dec(),
		},
		"payouts": gin.H{
			"pending":      payoutStats.PendingCount,
			"failed":       payoutStats.FailedCount,
			"paid":         payoutStats.PaidCount,
			"paid_total":   payoutStats.PaidTotal.Dec(),
			"unpaid_total": payoutStats.UnpaidTotal.Dec(),
		},
		"awaiting_resolution": awaitingView,
	})
}

// riskIndicator returns GREEN/YELLOW/RED based on pool imbalance.  A heavily
// one-sided pool means winners get almost no profit share and losers fund
// nearly the whole payout — worth an operator's glance before resolution.
func riskIndicator(percentA decimal.Decimal) string {
	dominant := percentA
	if other := decimal.NewFromInt(100).Sub(percentA); other.GreaterThan(dominant) {
		dominant = other
	}
	switch {
	case dominant.GreaterThan(decimal.NewFromInt(85)):
		return "RED"
	case dominant.GreaterThan(decimal.NewFromInt(70)):
		return "YELLOW"
	default:
		return "GREEN"
	}
}
