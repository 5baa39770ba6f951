package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/observability"
)

// BatchUpserter is the store-side half of a bulk load. Implemented by
// mongostore.BuildingStore.
type BatchUpserter interface {
	UpsertBatch(ctx context.Context, docs []model.Building) (applied, failed int64, err error)
}

// LoadStats summarizes one bulk load.
type LoadStats struct {
	Read     int64
	Loaded   int64
	Skipped  int64
	Failed   int64
	Duration time.Duration
}

// LoadBuildings drains the reader into the store in unordered bulk batches.
// Per-item store rejections are counted, not fatal; the load only aborts
// when a whole batch is lost or the input cannot be read further.
func LoadBuildings(ctx context.Context, br *BuildingReader, store BatchUpserter, batchSize int, log zerolog.Logger) (LoadStats, error) {
	if batchSize < 1 {
		batchSize = 1
	}
	start := time.Now()
	var st LoadStats
	batch := make([]model.Building, 0, batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		applied, failed, err := store.UpsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("upsert %d buildings: %w", len(batch), err)
		}
		st.Loaded += applied
		st.Failed += failed
		observability.AddIngest("loaded", applied)
		observability.AddIngest("failed", failed)
		batch = batch[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		b, err := br.Next()
		if err != nil {
			return st, err
		}
		if b == nil {
			break
		}
		batch = append(batch, *b)
		if len(batch) >= batchSize {
			if err := flush(); err != nil {
				return st, err
			}
			if st.Loaded%100000 < int64(batchSize) {
				log.Debug().Int64("loaded", st.Loaded).Msg("load progress")
			}
		}
	}
	if err := flush(); err != nil {
		return st, err
	}

	st.Read = int64(br.Lines())
	st.Skipped = int64(br.Skipped())
	observability.AddIngest("skipped", st.Skipped)
	st.Duration = time.Since(start)

	log.Info().
		Int64("read", st.Read).
		Int64("loaded", st.Loaded).
		Int64("skipped", st.Skipped).
		Int64("failed", st.Failed).
		Dur("took", st.Duration).
		Msg("bulk load finished")
	return st, nil
}
