// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/cache"
	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/config"
	"github.com/THoguet/random-lol/internal/gateway"
	"github.com/THoguet/random-lol/internal/handlers"
	"github.com/THoguet/random-lol/internal/history"
	"github.com/THoguet/random-lol/internal/random"
	"github.com/THoguet/random-lol/internal/room"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb, err = cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, running without roster cache and draft history")
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	opts := []room.Option{room.WithLogger(logger)}
	if rdb != nil {
		pub := history.NewPublisher(rdb, cfg.HistorianQueue, 256, logger)
		go pub.Run(ctx)
		opts = append(opts, room.WithObserver(pub.Observe))
	}
	manager := room.New(champion.EmptyRoster(), random.NewSecure(), opts...)

	hub := gateway.NewHub(manager, logger)
	hubDone := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(hubDone)
	}()

	var source champion.Source = champion.NewFetcher(cfg.ChampionDataURL)
	if rdb != nil {
		source = champion.NewCachedSource(source, cache.NewJSON(rdb, "random-lol:"), cfg.RosterCacheTTL, logger)
	}
	loader := &champion.Loader{
		Source: source,
		Logger: logger,
		OnLoad: func(r *champion.Roster) {
			if err := hub.SetRoster(ctx, r); err != nil {
				logger.WithError(err).Warn("Failed to install roster")
			}
		},
	}
	go func() {
		if err := loader.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.WithError(err).Error("Roster loader stopped")
		}
	}()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handlers.NewRouter(logger, hub, cfg.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("HTTP shutdown")
		}
	}()

	logger.Infof("Running on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatalf("server exited: %v", err)
	}
	<-hubDone
	logger.Info("Server stopped")
}
