// Command buildingfetch downloads footprint tiles listed in a provider
// dataset index into a local directory for buildingload.
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

	"github.com/opencadastre/regiontag/internal/config"
	"github.com/opencadastre/regiontag/internal/fetch"
	"github.com/opencadastre/regiontag/internal/logger"
	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/observability"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	dataset := flag.String("dataset", "microsoft", "dataset the tiles belong to (microsoft or google)")
	indexURL := flag.String("index", fetch.MicrosoftIndexURL, "dataset index CSV url")
	location := flag.String("location", "Colombia", "index location filter")
	limit := flag.Int("limit", 0, "stop after this many tiles (0 = all)")
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
		Component: "buildingfetch",
		Dataset:   d.String(),
	}, os.Stdout)

	observability.SetDataset(d.String())
	observability.ExposeBuildInfo(Version)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx = logger.WithRunID(ctx, logger.NewID())

	fc := fetch.New(cfg.FetchRetries, cfg.FetchBackoff, log)
	tiles, err := fc.Index(ctx, *indexURL, *location)
	if err != nil {
		log.Error().Err(err).Msg("dataset index")
		return 1
	}
	if *limit > 0 && len(tiles) > *limit {
		tiles = tiles[:*limit]
	}

	dir := filepath.Join(cfg.DataDir, d.String())
	var failed int
	for _, tile := range tiles {
		if ctx.Err() != nil {
			log.Warn().Msg("interrupted")
			return 1
		}
		if _, err := fc.Download(ctx, tile, dir); err != nil {
			failed++
			log.Error().Err(err).Str("quadkey", tile.QuadKey).Msg("tile failed")
		}
	}

	log.Info().
		Int("tiles", len(tiles)).
		Int("failed", failed).
		Str("dir", dir).
		Msg("fetch finished")
	if failed == len(tiles) && len(tiles) > 0 {
		return 1
	}
	return 0
}
