package handler

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func paginationFor(t *testing.T, query string) (page, limit int) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/admin/markets?"+query, nil)
	return adminPagination(c)
}

func TestAdminPagination(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		wantPage  int
		wantLimit int
	}{
		{"defaults", "", 1, defaultPageSize},
		{"explicit", "page=3&limit=20", 3, 20},
		{"max limit accepted", "limit=500", 1, maxPageSize},
		{"over-limit clamped", "limit=501", 1, defaultPageSize},
		{"zero page clamped", "page=0", 1, defaultPageSize},
		{"negative limit clamped", "limit=-5", 1, defaultPageSize},
		{"garbage falls back", "page=abc&limit=xyz", 1, defaultPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, limit := paginationFor(t, tt.query)
			if page != tt.wantPage || limit != tt.wantLimit {
				t.Errorf("adminPagination(%q) = (%d, %d), want (%d, %d)",
					tt.query, page, limit, tt.wantPage, tt.wantLimit)
			}
		})
	}
}
