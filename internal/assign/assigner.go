// Package assign tags building records with the administrative region whose
// boundary contains them, committing results to the record store in bulk.
package assign

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog"

	"github.com/opencadastre/regiontag/internal/geo"
	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/observability"
)

// ConfigError marks a fatal setup problem. A bad region boundary would
// silently corrupt the tie-break order for every record that follows, so
// the run refuses to start instead.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "assign: " + e.Reason }

// Record is the minimal view of a stored feature the assigner needs.
type Record struct {
	ID    string
	Shape orb.Geometry
}

// Source streams untagged records. Next returns (nil, nil) once the stream
// is exhausted, and an error only when the underlying cursor fails. The
// store query behind it must exclude records that already carry a region
// tag; that filter is what makes re-running a no-op.
type Source interface {
	Next(ctx context.Context) (*Record, error)
}

// Update pairs a record id with the region resolved for it.
type Update struct {
	ID         string
	RegionCode string
	RegionName string
	Department string
}

// FailedUpdate reports one item of a flush that did not persist.
type FailedUpdate struct {
	ID     string
	Reason string
}

// FlushResult carries per-item outcomes of one bulk flush.
type FlushResult struct {
	Applied int
	Failed  []FailedUpdate
}

// Sink persists a batch of resolved assignments as one unordered bulk
// partial update. Items are isolated: one item's failure must not block the
// rest, and such failures come back in FlushResult rather than as the
// error. A non-nil error means the whole flush was lost.
type Sink interface {
	Flush(ctx context.Context, updates []Update) (FlushResult, error)
}

// Stats summarizes one assignment run. Unmatched is an expected outcome,
// not an error: records outside every boundary are left untouched.
type Stats struct {
	Scanned     int64
	Matched     int64
	Unmatched   int64
	Skipped     int64
	WriteFailed int64
}

type region struct {
	code       string
	name       string
	department string
	boundary   geo.Boundary
}

// Assigner classifies records into at most one region each. It is not safe
// to run two assigners against the same record collection concurrently.
type Assigner struct {
	regions []region
	batch   int
	log     zerolog.Logger
}

type Option func(*Assigner)

func WithLogger(l zerolog.Logger) Option {
	return func(a *Assigner) { a.log = l }
}

// New prepares an assigner over an ordered region list. Order matters: the
// first region containing a record's centroid wins, so the caller's ordering
// is the tie-break policy if boundaries overlap due to upstream data error.
func New(regions []model.Region, batchSize int, opts ...Option) (*Assigner, error) {
	if len(regions) == 0 {
		return nil, &ConfigError{Reason: "empty region set"}
	}
	if batchSize < 1 {
		return nil, &ConfigError{Reason: fmt.Sprintf("batch size must be >= 1, got %d", batchSize)}
	}

	a := &Assigner{
		regions: make([]region, 0, len(regions)),
		batch:   batchSize,
		log:     zerolog.Nop(),
	}
	for _, o := range opts {
		o(a)
	}

	for i, r := range regions {
		if r.Code == "" {
			return nil, &ConfigError{Reason: fmt.Sprintf("region at position %d has no code", i)}
		}
		if r.Geometry == nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("region %s has no boundary", r.Code)}
		}
		b, err := geo.NewBoundary(r.Geometry.Geometry())
		if err != nil {
			return nil, &ConfigError{Reason: fmt.Sprintf("region %s boundary: %v", r.Code, err)}
		}
		a.regions = append(a.regions, region{
			code:       r.Code,
			name:       r.Name,
			department: r.Department,
			boundary:   b,
		})
	}
	return a, nil
}

// Run consumes the source in a single pass and flushes resolved assignments
// through the sink every batchSize records, plus once at end of input. A
// record whose shape cannot produce a centroid is counted as skipped and the
// run continues; per-item write failures are counted and not retried, since
// the records stay untagged and a later run picks them up again.
func (a *Assigner) Run(ctx context.Context, src Source, sink Sink) (Stats, error) {
	var st Stats
	pending := make([]Update, 0, a.batch)

	flush := func() error {
		if len(pending) == 0 {
			return nil
		}
		start := time.Now()
		res, err := sink.Flush(ctx, pending)
		if err != nil {
			return fmt.Errorf("flush %d updates: %w", len(pending), err)
		}
		observability.ObserveFlush(time.Since(start).Seconds(), res.Applied, len(res.Failed))
		st.WriteFailed += int64(len(res.Failed))
		for _, f := range res.Failed {
			a.log.Warn().Str("id", f.ID).Str("reason", f.Reason).Msg("assignment not persisted")
		}
		pending = pending[:0]
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		rec, err := src.Next(ctx)
		if err != nil {
			return st, fmt.Errorf("record source: %w", err)
		}
		if rec == nil {
			break
		}
		st.Scanned++

		pt, err := geo.RepresentativePoint(rec.Shape)
		if err != nil {
			st.Skipped++
			observability.IncRecord("skipped")
			a.log.Debug().Str("id", rec.ID).Err(err).Msg("record skipped")
			continue
		}

		r, ok := a.match(pt)
		if !ok {
			st.Unmatched++
			observability.IncRecord("unmatched")
			continue
		}
		st.Matched++
		observability.IncRecord("matched")

		pending = append(pending, Update{
			ID:         rec.ID,
			RegionCode: r.code,
			RegionName: r.name,
			Department: r.department,
		})
		if len(pending) >= a.batch {
			if err := flush(); err != nil {
				return st, err
			}
		}
	}

	if err := flush(); err != nil {
		return st, err
	}

	a.log.Info().
		Int64("scanned", st.Scanned).
		Int64("matched", st.Matched).
		Int64("unmatched", st.Unmatched).
		Int64("skipped", st.Skipped).
		Int64("write_failed", st.WriteFailed).
		Msg("assignment finished")
	return st, nil
}

// match scans regions in catalog order and returns the first whose boundary
// contains pt.
func (a *Assigner) match(pt orb.Point) (*region, bool) {
	for i := range a.regions {
		if a.regions[i].boundary.Contains(pt) {
			return &a.regions[i], true
		}
	}
	return nil, false
}
