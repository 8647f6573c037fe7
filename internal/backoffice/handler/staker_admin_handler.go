package handler

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/repository"
)

// StakerAdminHandler serves /admin/stakers endpoints.  Stakers are wallet
// addresses, not accounts: there is nothing to suspend or edit, only money
// history to inspect.
type StakerAdminHandler struct {
	walletRepo   *repository.WalletRepository
	positionRepo *repository.PositionRepository
	payoutRepo   *repository.PayoutRepository
}

// NewStakerAdminHandler creates a StakerAdminHandler.
func NewStakerAdminHandler(
	walletRepo *repository.WalletRepository,
	positionRepo *repository.PositionRepository,
	payoutRepo *repository.PayoutRepository,
) *StakerAdminHandler {
	return &StakerAdminHandler{
		walletRepo:   walletRepo,
		positionRepo: positionRepo,
		payoutRepo:   payoutRepo,
	}
}

// Detail godoc
// GET /admin/stakers/:address
//
// The full financial picture of one address: wallet balance, every position,
// every payout and the most recent transactions.
func (h *StakerAdminHandler) Detail(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ADDRESS", "not a valid address")
		return
	}
	staker := strings.ToLower(common.HexToAddress(raw).Hex())

	ctx := c.Request.Context()

	wallet, err := h.walletRepo.GetByStaker(ctx, staker)
	if err != nil && !domain.IsNotFound(err) {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	positions, _ := h.positionRepo.ListByStaker(ctx, staker)
	payouts, _ := h.payoutRepo.ListByStaker(ctx, staker, 50, 0)
	txns, _ := h.walletRepo.GetTransactions(ctx, staker, 50, 0)

	respondSuccess(c, gin.H{
		"staker":       staker,
		"wallet":       wallet, // null when the address never deposited
		"positions":    positions,
		"payouts":      payouts,
		"transactions": txns,
	})
}
