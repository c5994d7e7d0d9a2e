// cmd/draft is a terminal client: a solo randomizer, or a member of a room
// on a draft server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/THoguet/random-lol/internal/cache"
	"github.com/THoguet/random-lol/internal/champion"
	"github.com/THoguet/random-lol/internal/client"
	"github.com/THoguet/random-lol/internal/config"
	"github.com/THoguet/random-lol/internal/random"
	"github.com/THoguet/random-lol/internal/session"
)

func main() {
	server := flag.String("server", "", "room server WebSocket URL, e.g. ws://localhost:8080/ws")
	create := flag.Bool("create", false, "create a room on -server")
	join := flag.String("join", "", "join the room with this code on -server")
	name := flag.String("name", "Player", "player name shown in rooms")
	profile := flag.String("profile", "default", "key prefix for solo state kept in Redis")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("config: %v", err)
	}
	logger := cfg.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store session.Store = session.NewMemoryStore()
	var source champion.Source = champion.NewFetcher(cfg.ChampionDataURL)
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, solo state will not be kept")
		} else {
			defer rdb.Close()
			store = session.NewRedisStore(rdb, "random-lol:"+*profile+":")
			source = champion.NewCachedSource(source, cache.NewJSON(rdb, "random-lol:"), cfg.RosterCacheTTL, logger)
		}
	}

	state, err := session.New(ctx, store, random.NewSecure(), logger)
	if err != nil {
		logger.Fatal(err)
	}
	if unwatch, err := state.Watch(ctx); err != nil {
		logger.WithError(err).Warn("Not following changes from other clients")
	} else {
		defer unwatch()
	}

	loader := &champion.Loader{
		Source: source,
		Logger: logger,
		OnLoad: func(r *champion.Roster) {
			if err := state.SetRoster(ctx, r); err != nil {
				logger.WithError(err).Warn("Failed to apply roster")
			}
		},
	}
	go func() { _ = loader.Run(ctx) }()

	var c *client.Client
	if *server != "" {
		c, err = client.Dial(ctx, *server, client.WithSession(state), client.WithLogger(logger))
		if err != nil {
			logger.Fatal(err)
		}
		defer c.Close()

		switch {
		case *create:
			id, err := c.CreateRoom(ctx, *name)
			if err != nil {
				logger.Fatal(err)
			}
			fmt.Printf("Room %s created, share the code to invite others.\n", id)
		case *join != "":
			if err := c.JoinRoom(ctx, *join, *name); err != nil {
				logger.Fatal(err)
			}
		}
	}

	r := &repl{state: state, client: c, name: *name, out: os.Stdout}
	if err := r.run(ctx, os.Stdin); err != nil {
		logger.Fatal(err)
	}
}
