package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/ledger"
)

// ──────────────────────────────────────────────────────────────────────────────
// Standard response helpers
// ──────────────────────────────────────────────────────────────────────────────

// respondSuccess writes {"success": true, "data": data} with the given status.
func respondSuccess(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{
		"success": true,
		"data":    data,
	})
}

// respondError writes {"success": false, "error": msg, "code": code}.
func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

// respondList writes {"success": true, "data": items, "meta": {...}}.
func respondList(c *gin.Context, items interface{}, total, page, limit int) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    items,
		"meta": gin.H{
			"total": total,
			"page":  page,
			"limit": limit,
		},
	})
}

// respondDomainError maps the error taxonomy onto HTTP statuses: validation
// → 400, not found → 404, lifecycle guard → 409, auth → 401/403, arithmetic
// → 422, payout-transfer failure → 502.  Anything else is a 500 with a
// generic message so internals never leak.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, "ERR_VALIDATION", err.Error())
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, "ERR_NOT_FOUND", err.Error())
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, "ERR_CONFLICT", err.Error())
	case errors.Is(err, domain.ErrForbidden), errors.Is(err, domain.ErrInvalidOracleSignature):
		respondError(c, http.StatusForbidden, "ERR_FORBIDDEN", err.Error())
	case domain.IsAuthError(err):
		respondError(c, http.StatusUnauthorized, "ERR_UNAUTHORIZED", err.Error())
	case ledger.IsArithmeticError(err):
		respondError(c, http.StatusUnprocessableEntity, "ERR_ARITHMETIC", err.Error())
	case errors.Is(err, domain.ErrPayoutTransferFailed):
		respondError(c, http.StatusBadGateway, "ERR_PAYOUT_FAILED", err.Error())
	default:
		respondError(c, http.StatusInternalServerError, "ERR_INTERNAL", "internal error")
	}
}
