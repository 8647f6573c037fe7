// Package handler contains the gin HTTP handlers.  Handlers parse and
// validate transport concerns, delegate to services, and translate domain
// errors into the response envelope.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/api/middleware"
	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/service"
)

// MarketHandler serves market creation and query endpoints.
type MarketHandler struct {
	marketSvc *service.MarketService
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(marketSvc *service.MarketService) *MarketHandler {
	return &MarketHandler{marketSvc: marketSvc}
}

// Create godoc
// POST /api/markets  (admin)
func (h *MarketHandler) Create(c *gin.Context) {
	var req service.CreateMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
		return
	}

	market, err := h.marketSvc.CreateMarket(c.Request.Context(), req)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusCreated, market)
}

// List godoc
// GET /api/markets?filter=open&page=1&limit=20
func (h *MarketHandler) List(c *gin.Context) {
	filter := domain.MarketFilter(c.Query("filter"))
	if !filter.IsValid() {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "unknown filter")
		return
	}
	page, limit := parsePagination(c)
	offset := (page - 1) * limit

	// Optional auth: with a token the caller's positions ride along.
	staker := middleware.GetStaker(c)

	snapshots, total, err := h.marketSvc.ListMarkets(c.Request.Context(), filter, staker, limit, offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondList(c, snapshots, total, page, limit)
}

// GetByID godoc
// GET /api/markets/:id
func (h *MarketHandler) GetByID(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}

	snap, err := h.marketSvc.GetMarket(c.Request.Context(), id, middleware.GetStaker(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, snap)
}

// GetPosition godoc
// GET /api/markets/:id/position  (authed)
func (h *MarketHandler) GetPosition(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}

	pos, err := h.marketSvc.GetPosition(c.Request.Context(), id, middleware.GetStaker(c))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, pos)
}

// ListPositions godoc
// GET /api/markets/:id/positions  (admin)
func (h *MarketHandler) ListPositions(c *gin.Context) {
	id, ok := parseMarketID(c)
	if !ok {
		return
	}

	positions, err := h.marketSvc.ListPositions(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	respondSuccess(c, http.StatusOK, positions)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func parseMarketID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return 0, false
	}
	return id, true
}

func parsePagination(c *gin.Context) (page, limit int) {
	page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ = strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return
}
