// Command assigner tags untagged buildings with the municipality containing
// their footprint centroid.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/opencadastre/regiontag/internal/assign"
	"github.com/opencadastre/regiontag/internal/config"
	"github.com/opencadastre/regiontag/internal/logger"
	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/observability"
	"github.com/opencadastre/regiontag/internal/statscache"
	"github.com/opencadastre/regiontag/internal/store/mongostore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	dataset := flag.String("dataset", "", "dataset to assign (microsoft or google)")
	batch := flag.Int("batch", 0, "override BATCH_SIZE")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()
	if *batch > 0 {
		cfg.BatchSize = *batch
	}

	d, err := model.ParseDataset(*dataset)
	if err != nil {
		flag.Usage()
		return 2
	}

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "assigner",
		Dataset:   d.String(),
	}, os.Stdout)

	observability.SetDataset(d.String())
	observability.ExposeBuildInfo(Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, logger.NewID())

	client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Error().Err(err).Msg("mongo connect")
		return 1
	}
	defer client.Close(context.Background())

	regions, err := mongostore.NewRegionStore(client).All(ctx)
	if err != nil {
		log.Error().Err(err).Msg("load region catalog")
		return 1
	}
	if len(regions) == 0 {
		log.Error().Msg("region catalog is empty; run regionload first")
		return 1
	}

	a, err := assign.New(regions, cfg.BatchSize, assign.WithLogger(log))
	if err != nil {
		var cerr *assign.ConfigError
		if errors.As(err, &cerr) {
			log.Error().Err(err).Msg("invalid region configuration")
			return 2
		}
		log.Error().Err(err).Msg("assigner setup")
		return 1
	}

	store := mongostore.NewBuildingStore(client, d)
	cur, err := store.Untagged(ctx, cfg.MinConfidence)
	if err != nil {
		log.Error().Err(err).Msg("open untagged cursor")
		return 1
	}
	defer cur.Close(context.Background())

	st, err := a.Run(ctx, cur, store)
	if err != nil {
		log.Error().Err(err).
			Int64("scanned", st.Scanned).
			Int64("matched", st.Matched).
			Msg("assignment aborted")
		return 1
	}

	if st.Matched > 0 {
		invalidateStatsCache(ctx, cfg, log)
	}

	log.Info().
		Int64("scanned", st.Scanned).
		Int64("matched", st.Matched).
		Int64("unmatched", st.Unmatched).
		Int64("skipped", st.Skipped).
		Int64("write_failed", st.WriteFailed).
		Msg("assignment finished")
	return 0
}

func invalidateStatsCache(ctx context.Context, cfg config.Config, log zerolog.Logger) {
	if cfg.RedisAddr == "" {
		return
	}
	c, err := statscache.New(ctx, cfg.RedisAddr, cfg.StatsCacheTTL, cfg.StatsCacheMem)
	if err != nil {
		log.Warn().Err(err).Msg("stats cache unreachable, skipping invalidation")
		return
	}
	defer c.Close()
	if err := c.Invalidate(ctx); err != nil {
		log.Warn().Err(err).Msg("stats cache invalidation failed")
	}
}
