package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/domain"
	"github.com/pariline/oraclemarket/internal/service"
)

// ContextKey constants for gin.Context values set by middleware.
const (
	CtxStaker = "staker" // lowercase 0x-hex address
	CtxRole   = "role"
)

// ──────────────────────────────────────────────────────────────────────────────
// JWTMiddleware
// ──────────────────────────────────────────────────────────────────────────────

// JWTMiddleware validates the Bearer token in the Authorization header.
// On success it stores the staker address (string) and role in the gin
// context.  The address comes from the token subject, set at login after
// the wallet signature proved control of the key.
func JWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrUnauthorized.Error(),
			})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": domain.ErrTokenInvalid.Error(),
			})
			return
		}

		c.Set(CtxStaker, strings.ToLower(claims.Subject))
		c.Set(CtxRole, claims.Role)
		c.Next()
	}
}

// OptionalJWTMiddleware parses a Bearer token when one is present but never
// rejects the request.  Used on public read routes so an authenticated
// caller's positions ride along in market snapshots.
func OptionalJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if strings.HasPrefix(header, "Bearer ") {
			if claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer ")); err == nil {
				c.Set(CtxStaker, strings.ToLower(claims.Subject))
				c.Set(CtxRole, claims.Role)
			}
		}
		c.Next()
	}
}

// AdminMiddleware allows only the admin role to access the route.  Must be
// placed after JWTMiddleware in the chain.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != service.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": domain.ErrForbidden.Error(),
			})
			return
		}
		c.Next()
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Context helpers for handlers
// ──────────────────────────────────────────────────────────────────────────────

// GetStaker retrieves the authenticated staker address from the gin context.
// Returns "" if the middleware was not applied.
func GetStaker(c *gin.Context) string {
	v, _ := c.Get(CtxStaker)
	s, _ := v.(string)
	return s
}

// GetRole retrieves the authenticated role string from the gin context.
func GetRole(c *gin.Context) string {
	v, _ := c.Get(CtxRole)
	r, _ := v.(string)
	return r
}
