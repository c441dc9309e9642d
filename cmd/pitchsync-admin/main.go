// Command pitchsync-admin serves the ambiguity review queue and health
// endpoints operators use to unblock fuzzy matches the pipeline couldn't
// confidently auto-link, and runs the background maintenance tickers and
// the ambiguity-queue LISTEN/NOTIFY consumer alongside the HTTP server.
//
// Usage:
//
//	pitchsync-admin
//	API_PORT=8080 pitchsync-admin
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/pitchsync/pitchsync/internal/api"
	"github.com/pitchsync/pitchsync/internal/cache"
	"github.com/pitchsync/pitchsync/internal/config"
	"github.com/pitchsync/pitchsync/internal/db"
	"github.com/pitchsync/pitchsync/internal/listener"
	"github.com/pitchsync/pitchsync/internal/maintenance"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	logger.Info("connecting to database")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected", "min_conns", cfg.DBPoolMinConns, "max_conns", cfg.DBPoolMaxConns)

	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("cache initialized", "enabled", cfg.CacheEnabled)

	go listener.Start(ctx, cfg.DatabaseURL, nil, logger)

	seasonYear := config.SeasonYear(time.Now())
	go maintenance.Start(ctx, pool.Pool, maintenance.DefaultConfig(seasonYear), logger)

	router := api.NewRouter(pool.Pool, appCache, cfg)

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting pitchsync-admin", "addr", addr, "environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	logger.Info("server stopped")
}
