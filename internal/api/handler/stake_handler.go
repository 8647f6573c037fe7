package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/api/middleware"
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/service"
)

// StakeHandler serves stake placement.
type StakeHandler struct {
	stakeSvc *service.StakeService
}

// NewStakeHandler creates a StakeHandler.
func NewStakeHandler(stakeSvc *service.StakeService) *StakeHandler {
	return &StakeHandler{stakeSvc: stakeSvc}
}

// stakeBody is the wire shape of a stake.  The amount is a decimal wei
// string so the full uint256 range survives JSON.
type stakeBody struct {
	Choice string `json:"choice" binding:"required"` // "A" or "B"
	Amount string `json:"amount" binding:"required"` // decimal wei string
}

// Stake godoc
// POST /api/markets/:id/stake  (authed)
func (h *StakeHandler) Stake(c *gin.Context) {
	marketID, ok := parseMarketID(c)
	if !ok {
		return
	}

	var body stakeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	choice, err := domain.ParseOutcome(body.Choice)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	amount, err := ledger.FromDecimalString(body.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "amount must be a decimal wei string")
		return
	}

	pos, err := h.stakeSvc.Stake(c.Request.Context(), service.StakeRequest{
		MarketID: marketID,
		Staker:   middleware.GetStaker(c),
		Choice:   choice,
		Amount:   amount,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, pos)
}
