// cmd/historian drains the draft-history queue from Redis into Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/cache"
	"github.com/THoguet/random-lol/internal/config"
	"github.com/THoguet/random-lol/internal/database"
	"github.com/THoguet/random-lol/internal/history"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()
	if cfg.RedisAddr == "" || cfg.DatabaseURL == "" {
		logger.Fatal("REDIS_ADDR and DATABASE_URL are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatal(err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		logger.Fatal(err)
	}
	defer pool.Close()
	if err := history.EnsureSchema(ctx, pool); err != nil {
		logger.Fatal(err)
	}

	w := history.NewWriter(rdb, pool, cfg.HistorianQueue, cfg.HistorianBatchSize, cfg.FlushDelay(), logger)
	logger.WithField("queue", cfg.HistorianQueue).Info("Historian started")
	if err := w.Run(ctx); err != nil {
		logger.WithError(err).Error("Historian stopped")
	}
	logger.Info("Historian shutdown complete")
}
