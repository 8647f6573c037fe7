// Package api builds the HTTP surface: gin router, middleware chain, and
// the WebSocket upgrade endpoint.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pariline/oraclemarket/internal/api/handler"
	"github.com/pariline/oraclemarket/internal/api/middleware"
	"github.com/pariline/oraclemarket/internal/config"
	"github.com/pariline/oraclemarket/internal/service"
	"github.com/pariline/oraclemarket/internal/ws"
)

// RouterDeps bundles every dependency needed to build the router.
// Populated once in main() and passed to SetupRouter.
type RouterDeps struct {
	AuthSvc       *service.AuthService
	MarketSvc     *service.MarketService
	StakeSvc      *service.StakeService
	ResolutionSvc *service.ResolutionService
	SettlementSvc *service.SettlementService
	WalletSvc     *service.WalletService
	Hub           *ws.Hub
	Cfg           *config.Config
}

// SetupRouter creates and configures the main gin engine with all routes,
// middleware, CORS and rate limiting rules.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.IsProd() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	// ── CORS ─────────────────────────────────────────────────────────────────
	r.Use(corsMiddleware(deps.Cfg))

	// ── Health check ─────────────────────────────────────────────────────────
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(deps.AuthSvc)
	marketH := handler.NewMarketHandler(deps.MarketSvc)
	stakeH := handler.NewStakeHandler(deps.StakeSvc)
	settlementH := handler.NewSettlementHandler(deps.ResolutionSvc, deps.SettlementSvc)
	walletH := handler.NewWalletHandler(deps.WalletSvc)

	// ── Middleware ───────────────────────────────────────────────────────────
	jwtMW := middleware.JWTMiddleware(deps.AuthSvc)
	optionalJWT := middleware.OptionalJWTMiddleware(deps.AuthSvc)
	adminMW := middleware.AdminMiddleware()

	authRL := middleware.RateLimitMiddleware(10)  // challenge/login per IP
	stakeRL := middleware.RateLimitMiddleware(30) // money endpoints per IP

	api := r.Group("/api")
	{
		// ── Auth (public, strict rate limit) ─────────────────────────────────
		auth := api.Group("/auth")
		auth.Use(authRL)
		{
			auth.POST("/challenge", authH.Challenge)
			auth.POST("/login", authH.Login)
		}

		// ── Market reads (public; token optional for position joins) ─────────
		markets := api.Group("/markets")
		markets.Use(optionalJWT)
		{
			markets.GET("", marketH.List)
			markets.GET("/:id", marketH.GetByID)
		}

		// ── Authenticated routes ─────────────────────────────────────────────
		authed := api.Group("")
		authed.Use(jwtMW)
		{
			// Money movement
			money := authed.Group("/markets")
			money.Use(stakeRL)
			{
				money.POST("/:id/stake", stakeH.Stake)
				money.POST("/:id/resolve", settlementH.Resolve)
				money.POST("/:id/claim", settlementH.Claim)
			}

			authed.GET("/markets/:id/position", marketH.GetPosition)
			authed.GET("/markets/:id/payout", settlementH.GetPayout)

			// Wallet
			wallet := authed.Group("/wallet")
			{
				wallet.GET("", walletH.GetBalance)
				wallet.GET("/transactions", walletH.GetTransactions)
			}

			// Operator routes
			admin := authed.Group("")
			admin.Use(adminMW)
			{
				admin.POST("/markets", marketH.Create)
				admin.GET("/markets/:id/positions", marketH.ListPositions)
				admin.POST("/wallet/deposit", walletH.Deposit)
				admin.GET("/payouts/unsettled", settlementH.ListUnsettled)
			}
		}
	}

	// ── WebSocket ─────────────────────────────────────────────────────────────
	if deps.Hub != nil {
		r.GET("/ws", func(c *gin.Context) {
			deps.Hub.ServeWs(c.Writer, c.Request)
		})
	}

	return r
}

// ── CORS helper ───────────────────────────────────────────────────────────────

// corsMiddleware sets CORS headers.  In development all origins are allowed;
// in production only the configured origins.
func corsMiddleware(cfg *config.Config) gin.HandlerFunc {
	allowed := make(map[string]bool, len(cfg.Server.AllowedOrigins))
	for _, o := range cfg.Server.AllowedOrigins {
		allowed[o] = true
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if !cfg.IsProd() {
			c.Header("Access-Control-Allow-Origin", "*")
		} else if origin != "" && allowed[origin] {
			c.Header("Access-Control-Allow-Origin", origin)
		}

		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Request-ID")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
