// Package main is the entry point for the oraclemarket settlement API
// server.  It wires together repositories, services, the WebSocket hub and
// the background scheduler, then runs the HTTP server until a shutdown
// signal arrives.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/pariline/oraclemarket/internal/api"
	"github.com/pariline/oraclemarket/internal/config"
	"github.com/pariline/oraclemarket/internal/oracle"
	"github.com/pariline/oraclemarket/internal/repository"
	"github.com/pariline/oraclemarket/internal/scheduler"
	"github.com/pariline/oraclemarket/internal/service"
	"github.com/pariline/oraclemarket/internal/ws"
)

func main() {
	// ── 1. Config + logger ────────────────────────────────────────────────────
	cfg := config.MustLoad()

	var logHandler slog.Handler
	if cfg.IsProd() {
		logHandler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		logHandler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	logger.Info("starting oraclemarket server",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"oracle", cfg.Oracle.SignerAddress.Hex(),
	)

	// ── 2. Database ───────────────────────────────────────────────────────────
	db, err := sqlx.Connect("postgres", cfg.DB.DSN)
	if err != nil {
		logger.Error("database connection failed", "err", err)
		os.Exit(1)
	}
	db.SetMaxOpenConns(cfg.DB.MaxOpenConns)
	db.SetMaxIdleConns(cfg.DB.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.DB.ConnMaxLifetime)

	if err = db.Ping(); err != nil {
		logger.Error("database ping failed", "err", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// ── 3. Migrations ─────────────────────────────────────────────────────────
	if err = runMigrations(db, "migrations"); err != nil {
		logger.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	logger.Info("migrations applied")

	// ── 4. Repositories ───────────────────────────────────────────────────────
	marketRepo := repository.NewMarketRepository(db)
	positionRepo := repository.NewPositionRepository(db)
	walletRepo := repository.NewWalletRepository(db)
	payoutRepo := repository.NewPayoutRepository(db)

	// ── 5. Oracle verifier ────────────────────────────────────────────────────
	verifier := oracle.NewVerifier(cfg.Oracle.SignerAddress)

	// ── 6. Services (order matters for injection) ─────────────────────────────
	authSvc := service.NewAuthService(cfg)
	marketSvc := service.NewMarketService(marketRepo, positionRepo, cfg)
	stakeSvc := service.NewStakeService(db, marketRepo, positionRepo, walletRepo, cfg)
	resolutionSvc := service.NewResolutionService(db, marketRepo, verifier, logger)
	walletSvc := service.NewWalletService(db, walletRepo)

	transferrer := service.NewWalletTransferrer(db, walletRepo)
	settlementSvc := service.NewSettlementService(db, marketRepo, positionRepo, payoutRepo, transferrer, logger)

	// ── 7. WebSocket hub ──────────────────────────────────────────────────────
	hub := ws.NewHub([]byte(cfg.JWT.Secret), cfg.Server.AllowedOrigins)

	marketSvc.SetBroadcaster(hub)
	stakeSvc.SetBroadcaster(hub)
	resolutionSvc.SetBroadcaster(hub)

	// ── 8. Root context + signal handling ─────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go hub.Run()
	logger.Info("websocket hub started")

	// ── 9. Scheduler ──────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(marketSvc, resolutionSvc, settlementSvc, hub, logger)
	sched.Start(ctx)

	// ── 10. HTTP router + server ──────────────────────────────────────────────
	router := api.SetupRouter(api.RouterDeps{
		AuthSvc:       authSvc,
		MarketSvc:     marketSvc,
		StakeSvc:      stakeSvc,
		ResolutionSvc: resolutionSvc,
		SettlementSvc: settlementSvc,
		WalletSvc:     walletSvc,
		Hub:           hub,
		Cfg:           cfg,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
			stop() // trigger graceful shutdown
		}
	}()

	// ── 11. Graceful shutdown ─────────────────────────────────────────────────
	<-ctx.Done()
	logger.Info("shutdown signal received, draining connections…")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err = srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown error", "err", err)
	}

	db.Close()
	logger.Info("server stopped cleanly")
}

// runMigrations reads all *.sql files from dir, sorted by name, and executes
// them sequentially.  Idempotent: SQL files should use IF NOT EXISTS / ON CONFLICT.
func runMigrations(db *sqlx.DB, dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("runMigrations: read dir %q: %w", dir, err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("runMigrations: read %q: %w", f, err)
		}
		if _, err = db.Exec(string(data)); err != nil {
			return fmt.Errorf("runMigrations: exec %q: %w", f, err)
		}
		slog.Info("migration applied", "file", filepath.Base(f))
	}
	return nil
}
