// Command buildingload reads GeoJSONL footprint files and upserts them into
// the per-dataset building collection.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/opencadastre/regiontag/internal/config"
	"github.com/opencadastre/regiontag/internal/ingest"
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
	dataset := flag.String("dataset", "", "dataset the files belong to (microsoft or google)")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.FromEnv()

	d, err := model.ParseDataset(*dataset)
	if err != nil {
		flag.Usage()
		return 2
	}

	log := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "buildingload",
		Dataset:   d.String(),
	}, os.Stdout)

	observability.SetDataset(d.String())
	observability.ExposeBuildInfo(Version)

	paths := flag.Args()
	if len(paths) == 0 {
		// default to whatever buildingfetch put in the data dir
		paths, _ = filepath.Glob(filepath.Join(cfg.DataDir, d.String(), "*.geojsonl"))
	}
	if len(paths) == 0 {
		log.Error().Msg("no input files; pass paths or run buildingfetch first")
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, logger.NewID())

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

	store := mongostore.NewBuildingStore(client, d)
	var loaded, skipped, failed int64
	for _, path := range paths {
		if ctx.Err() != nil {
			log.Warn().Msg("interrupted")
			return 1
		}
		st, err := loadFile(ctx, path, d, store, cfg.BatchSize, log)
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("load failed")
			return 1
		}
		loaded += st.Loaded
		skipped += st.Skipped
		failed += st.Failed
	}

	invalidateStatsCache(ctx, cfg, log)

	log.Info().
		Int("files", len(paths)).
		Int64("loaded", loaded).
		Int64("skipped", skipped).
		Int64("failed", failed).
		Msg("building load finished")
	return 0
}

func loadFile(ctx context.Context, path string, d model.Dataset, store *mongostore.BuildingStore, batchSize int, log zerolog.Logger) (ingest.LoadStats, error) {
	f, err := os.Open(path)
	if err != nil {
		return ingest.LoadStats{}, err
	}
	defer f.Close()

	flog := log.With().Str("path", path).Logger()
	br := ingest.NewBuildingReader(f, d)
	return ingest.LoadBuildings(ctx, br, store, batchSize, flog)
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
