package handler

import (
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/api/middleware"
	"github.com/pariline/oraclemarket/internal/ledger"
	"github.com/pariline/oraclemarket/internal/service"
)

// WalletHandler serves the internal balance ledger endpoints.
type WalletHandler struct {
	walletSvc *service.WalletService
}

// NewWalletHandler creates a WalletHandler.
func NewWalletHandler(walletSvc *service.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// GetBalance godoc
// GET /api/wallet  (authed)
func (h *WalletHandler) GetBalance(c *gin.Context) {
	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), middleware.GetStaker(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, wallet)
}

// GetTransactions godoc
// GET /api/wallet/transactions?page=1&limit=20  (authed)
func (h *WalletHandler) GetTransactions(c *gin.Context) {
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	txns, err := h.walletSvc.GetTransactions(c.Request.Context(), middleware.GetStaker(c), limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, txns, len(txns), page, limit)
}

// depositBody credits a staker's wallet.
type depositBody struct {
	Staker string `json:"staker" binding:"required"` // 0x-hex address
	Amount string `json:"amount" binding:"required"` // decimal wei string
}

// Deposit godoc
// POST /api/wallet/deposit  (admin)
func (h *WalletHandler) Deposit(c *gin.Context) {
	var body depositBody
	if err := c.ShouldBindJSON(&body); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}
	if !common.IsHexAddress(body.Staker) {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "staker must be a hex address")
		return
	}
	amount, err := ledger.FromDecimalString(body.Amount)
	if err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "amount must be a decimal wei string")
		return
	}

	staker := strings.ToLower(common.HexToAddress(body.Staker).Hex())
	wallet, err := h.walletSvc.Deposit(c.Request.Context(), staker, amount, middleware.GetStaker(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, wallet)
}
