// Package backoffice is the operator console: a separate admin-only HTTP
// server with its own port and IP allowlist.  It is strictly read-and-audit —
// money only ever moves through the public API's guarded operations, so a
// compromised backoffice credential cannot mint or drain funds.
package backoffice

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/backoffice/handler"
	"github.com/pariline/oraclemarket/internal/config"
	"github.com/pariline/oraclemarket/internal/repository"
	"github.com/pariline/oraclemarket/internal/service"
)

// BackofficeDeps bundles every dependency needed for the admin router.
type BackofficeDeps struct {
	AuthSvc      *service.AuthService
	MarketRepo   *repository.MarketRepository
	PositionRepo *repository.PositionRepository
	WalletRepo   *repository.WalletRepository
	PayoutRepo   *repository.PayoutRepository
	Cfg          *config.Config
}

// SetupBackofficeRouter creates the admin gin engine.
func SetupBackofficeRouter(deps BackofficeDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(ipWhitelistMiddleware(deps.Cfg.Server.BackofficeAllowedIPs))

	dashH := handler.NewDashboardHandler(deps.MarketRepo, deps.WalletRepo, deps.PayoutRepo)
	marketH := handler.NewMarketAdminHandler(deps.MarketRepo, deps.PositionRepo)
	stakerH := handler.NewStakerAdminHandler(deps.WalletRepo, deps.PositionRepo, deps.PayoutRepo)
	financeH := handler.NewFinanceHandler(deps.WalletRepo, deps.PayoutRepo)

	jwtMW := adminJWTMiddleware(deps.AuthSvc)

	admin := r.Group("/admin")
	admin.Use(jwtMW)
	{
		admin.GET("/dashboard", dashH.Dashboard)

		// Markets
		m := admin.Group("/markets")
		{
			m.GET("", marketH.List)
			m.GET("/:id", marketH.Detail)
		}

		// Stakers
		admin.GET("/stakers/:address", stakerH.Detail)

		// Finance
		fin := admin.Group("/finance")
		{
			fin.GET("/report", financeH.Report)
			fin.GET("/transactions", financeH.Transactions)
			fin.GET("/payouts", financeH.Payouts)
		}
	}

	return r
}

// ── IP whitelist middleware ───────────────────────────────────────────────────

// ipWhitelistMiddleware blocks requests from IPs not in the allowlist.
// allowedIPs is a comma-separated string; empty means allow all.
func ipWhitelistMiddleware(allowedIPs string) gin.HandlerFunc {
	if allowedIPs == "" {
		return func(c *gin.Context) { c.Next() } // dev mode: no restriction
	}

	allowed := make(map[string]bool)
	for _, ip := range strings.Split(allowedIPs, ",") {
		ip = strings.TrimSpace(ip)
		if ip != "" {
			allowed[ip] = true
		}
	}

	return func(c *gin.Context) {
		if !allowed[c.ClientIP()] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": "access denied: your IP is not whitelisted",
			})
			return
		}
		c.Next()
	}
}

// ── Admin JWT middleware ──────────────────────────────────────────────────────

// adminJWTMiddleware validates a JWT and requires the admin role.  The token
// comes from the same wallet-signature login as the public API; the role was
// assigned there from the configured admin address list.
func adminJWTMiddleware(authSvc *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		claims, err := authSvc.ParseAccessToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if claims.Role != service.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient permissions"})
			return
		}

		c.Set("staker", strings.ToLower(claims.Subject))
		c.Set("role", claims.Role)
		c.Next()
	}
}
