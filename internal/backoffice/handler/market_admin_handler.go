package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/repository"
)

// MarketAdminHandler serves /admin/markets endpoints.
type MarketAdminHandler struct {
	marketRepo   *repository.MarketRepository
	positionRepo *repository.PositionRepository
}

// NewMarketAdminHandler creates a MarketAdminHandler.
func NewMarketAdminHandler(
	marketRepo *repository.MarketRepository,
	positionRepo *repository.PositionRepository,
) *MarketAdminHandler {
	return &MarketAdminHandler{
		marketRepo:   marketRepo,
		positionRepo: positionRepo,
	}
}

// List godoc
// GET /admin/markets?filter=open&page=1&limit=50
func (h *MarketAdminHandler) List(c *gin.Context) {
	filter := domain.MarketFilter(c.DefaultQuery("filter", string(domain.FilterAll)))
	if !filter.IsValid() {
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", "unknown filter")
		return
	}
	page, limit := adminPagination(c)
	offset := (page - 1) * limit

	markets, total, err := h.marketRepo.List(c.Request.Context(), filter, time.Now().UTC(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}
	respondList(c, markets, total, page, limit)
}

// Detail godoc
// GET /admin/markets/:id
//
// Returns the market with every position on it, claim status included, so an
// operator can reconcile a disputed settlement from one screen.
func (h *MarketAdminHandler) Detail(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		respondError(c, http.StatusBadRequest, "ERR_INVALID_ID", "invalid market id")
		return
	}

	ctx := c.Request.Context()
	market, err := h.marketRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrMarketNotFound) {
			respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
			return
		}
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", err.Error())
		return
	}

	positions, _ := h.positionRepo.ListByMarket(ctx, id)

	var positionsA, positionsB []*domain.Position
	for _, p := range positions {
		if p.Choice == domain.OutcomeA {
			positionsA = append(positionsA, p)
		} else {
			positionsB = append(positionsB, p)
		}
	}

	respondSuccess(c, gin.H{
		"market":      market.Snapshot(time.Now().UTC(), nil),
		"positions_a": positionsA,
		"positions_b": positionsB,
	})
}
