package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scotland-capacity/internal/api"
	"scotland-capacity/internal/config"
	"scotland-capacity/internal/logging"
	"scotland-capacity/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load(".env")

	cfgPath := flag.String("config", os.Getenv("CAPACITY_CONFIG"), "Path to YAML config (optional)")
	flag.Parse()

	logger := logging.Must()
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		logger.Fatal("invalid configuration", zap.String("path", *cfgPath), zap.Error(err))
	}

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	svc := pipeline.FromConfig(cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Server.WatchRegion && *cfgPath != "" {
		watcher, err := config.NewRegionWatcher(*cfgPath, cfg, svc.SetRegion, logger)
		if err != nil {
			logger.Warn("region watcher disabled", zap.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			logger.Warn("region watcher disabled", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	// Pre-load capacity data on startup
	if !cfg.Server.SkipPreload {
		logger.Info("pre-loading capacity data")
		sum := svc.GetSummary(ctx, false)
		source, _ := svc.CacheInfo()
		logger.Info("capacity data ready",
			zap.String("source", source),
			zap.Int("records", sum.RecordCount),
			zap.Float64("grand_total_mw", sum.GrandTotal))
	}

	router, err := api.NewRouter(svc, logger, cfg.Server.StaticDir)
	if err != nil {
		logger.Fatal("failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting API server", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("failed to start server", zap.Error(err))
	}
}
