package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/repository"
)

// FinanceHandler serves /admin/finance endpoints.
type FinanceHandler struct {
	walletRepo *repository.WalletRepository
	payoutRepo *repository.PayoutRepository
}

// NewFinanceHandler creates a FinanceHandler.
func NewFinanceHandler(
	walletRepo *repository.WalletRepository,
	payoutRepo *repository.PayoutRepository,
) *FinanceHandler {
	return &FinanceHandler{walletRepo: walletRepo, payoutRepo: payoutRepo}
}

// Report godoc
// GET /admin/finance/report
//
// Money-in-money-out view: total wallet float against settled and unsettled
// payout value.  The unpaid total should read zero on a healthy system.
func (h *FinanceHandler) Report(c *gin.Context) {
	ctx := c.Request.Context()

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

	respondSuccess(c, gin.H{
		"wallet_count":         walletStats.WalletCount,
		"wallet_float":         walletStats.TotalBalance.Dec(),
		"payouts_paid":         payoutStats.PaidCount,
		"payouts_paid_total":   payoutStats.PaidTotal.Dec(),
		"payouts_pending":      payoutStats.PendingCount,
		"payouts_failed":       payoutStats.FailedCount,
		"payouts_unpaid_total": payoutStats.UnpaidTotal.Dec(),
	})
}

// Transactions godoc
// GET /admin/finance/transactions?page=1&limit=50
func (h *FinanceHandler) Transactions(c *gin.Context) {
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	txns, total, err := h.walletRepo.ListAllTransactions(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, txns, total, page, limit)
}

// Payouts godoc
// GET /admin/finance/payouts?status=failed&page=1&limit=50
func (h *FinanceHandler) Payouts(c *gin.Context) {
	status := domain.PayoutStatus(c.DefaultQuery("status", string(domain.PayoutFailed)))
	switch status {
	case domain.PayoutPending, domain.PayoutPaid, domain.PayoutFailed:
	default:
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "unknown payout status")
		return
	}

	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	payouts, total, err := h.payoutRepo.ListByStatus(c.Request.Context(), status, limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, payouts, total, page, limit)
}
