package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/api/middleware"
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/service"
)

// SettlementHandler serves resolution and claim endpoints.
type SettlementHandler struct {
	resolutionSvc *service.ResolutionService
	settlementSvc *service.SettlementService
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(resolutionSvc *service.ResolutionService, settlementSvc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{
		resolutionSvc: resolutionSvc,
		settlementSvc: settlementSvc,
	}
}

// resolveBody carries the outcome and the oracle's attestation over it.
type resolveBody struct {
	Outcome   string `json:"outcome"   binding:"required"` // "A" or "B"
	Signature string `json:"signature" binding:"required"` // 0x-prefixed hex
}

// Resolve godoc
// POST /api/markets/:id/resolve  (authed — the signature is the authority,
// the token only identifies the submitter for the audit log)
func (h *SettlementHandler) Resolve(c *gin.Context) {
	marketID, ok := parseMarketID(c)
	if !ok {
		return
	}

	var body resolveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	outcome, err := domain.ParseOutcome(body.Outcome)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	market, err := h.resolutionSvc.Resolve(c.Request.Context(), service.ResolveRequest{
		MarketID:  marketID,
		Outcome:   outcome,
		Signature: body.Signature,
		Submitter: middleware.GetStaker(c),
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, market)
}

// Claim godoc
// POST /api/markets/:id/claim  (authed)
func (h *SettlementHandler) Claim(c *gin.Context) {
	marketID, ok := parseMarketID(c)
	if !ok {
		return
	}

	payout, err := h.settlementSvc.Claim(c.Request.Context(), marketID, middleware.GetStaker(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payout)
}

// GetPayout godoc
// GET /api/markets/:id/payout  (authed)
func (h *SettlementHandler) GetPayout(c *gin.Context) {
	marketID, ok := parseMarketID(c)
	if !ok {
		return
	}

	payout, err := h.settlementSvc.GetPayout(c.Request.Context(), marketID, middleware.GetStaker(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payout)
}

// ListUnsettled godoc
// GET /api/payouts/unsettled  (admin) — the claimed-but-unpaid reconciliation
// queue.
func (h *SettlementHandler) ListUnsettled(c *gin.Context) {
	payouts, err := h.settlementSvc.ListUnsettled(c.Request.Context(), time.Now().UTC())
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, payouts)
}
