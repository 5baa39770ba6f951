// Command regionload loads a municipality catalog (GeoJSON FeatureCollection)
// into the regions collection.
package main

import (
	"context"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/opencadastre/regiontag/internal/config"
	"github.com/opencadastre/regiontag/internal/ingest"
	"github.com/opencadastre/regiontag/internal/logger"
	"github.com/opencadastre/regiontag/internal/observability"
	"github.com/opencadastre/regiontag/internal/statscache"
	"github.com/opencadastre/regiontag/internal/store/mongostore"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	input := flag.String("input", "", "path to the municipality GeoJSON file")
	source := flag.String("source", "dane", "catalog source name recorded on each region")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "regionload",
	}, os.Stdout)

	observability.ExposeBuildInfo(Version)

	if *input == "" {
		log.Error().Msg("missing required flag -input")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()
	ctx = logger.WithRunID(ctx, logger.NewID())

	f, err := os.Open(*input)
	if err != nil {
		log.Error().Err(err).Msg("open catalog")
		return 1
	}
	defer f.Close()

	regions, report, err := ingest.ParseMunicipalities(f, *source)
	if err != nil {
		log.Error().Err(err).Msg("parse catalog")
		return 1
	}
	for _, e := range report.Errors {
		log.Warn().Str("reason", e).Msg("municipality skipped")
	}

	client, err := mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Error().Err(err).Msg("mongo connect")
		return 1
	}
	defer client.Close(context.Background())

	if err := client.EnsureCollections(ctx); err != nil {
		log.Error().Err(err).Msg("ensure collections")
		return 1
	}
	if err := client.EnsureIndexes(ctx); err != nil {
		log.Error().Err(err).Msg("ensure indexes")
		return 1
	}

	res, err := mongostore.NewRegionStore(client).Upsert(ctx, regions)
	if err != nil {
		log.Error().Err(err).Msg("region upsert")
		return 1
	}

	invalidateStatsCache(ctx, cfg, log)

	log.Info().
		Int("parsed", report.Parsed).
		Int("skipped", report.Skipped).
		Int64("upserted", res.Upserted).
		Int64("modified", res.Modified).
		Int64("failed", res.Failed).
		Msg("region catalog loaded")
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
