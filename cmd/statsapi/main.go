// Command statsapi serves read-only building statistics over HTTP.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/opencadastre/regiontag/internal/config"
	"github.com/opencadastre/regiontag/internal/health"
	"github.com/opencadastre/regiontag/internal/logger"
	"github.com/opencadastre/regiontag/internal/observability"
	"github.com/opencadastre/regiontag/internal/server"
	"github.com/opencadastre/regiontag/internal/stats"
	"github.com/opencadastre/regiontag/internal/statscache"
	"github.com/opencadastre/regiontag/internal/store/mongostore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "statsapi",
	}, os.Stdout)

	observability.ExposeBuildInfo(Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Error().Err(err).Msg("mongo connect")
		return 1
	}
	defer client.Close(context.Background())

	deps := map[string]health.Pinger{"mongo": client}

	var cache stats.Cache
	if cfg.RedisAddr != "" {
		sc, err := statscache.New(ctx, cfg.RedisAddr, cfg.StatsCacheTTL, cfg.StatsCacheMem)
		if err != nil {
			log.Error().Err(err).Msg("stats cache connect")
			return 1
		}
		defer sc.Close()
		cache = sc
		deps["redis"] = sc
	}

	svc := stats.NewService(mongostore.NewStatsBackend(client), cache)

	log.Info().
		Str("addr", cfg.Addr).
		Str("version", Version).
		Bool("cache", cache != nil).
		Msg("starting statsapi")

	if err := server.Run(ctx, cfg.Addr, log, svc, deps); err != nil {
		log.Error().Err(err).Msg("server failed")
		return 1
	}
	return 0
}
