package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Admin list pages default small and cap hard; the console renders tables,
// not infinite scrolls.
const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// The admin surface is read-only, so every successful response is a 200.
// The envelope matches the public API so console tooling can share clients.
func respondSuccess(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{"success": true, "data": data})
}

func respondError(c *gin.Context, status int, code, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}

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

// adminPagination reads page/limit query params, clamping out-of-range values
// instead of rejecting them.
func adminPagination(c *gin.Context) (page, limit int) {
	page = queryInt(c, "page", 1)
	if page < 1 {
		page = 1
	}
	limit = queryInt(c, "limit", defaultPageSize)
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page, limit
}

func queryInt(c *gin.Context, key string, fallback int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}
