// Package stats computes summary statistics over the building collections
// and serves them through an optional response cache.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/statscache"
)

// Summary describes one provider collection.
type Summary struct {
	Dataset  string    `json:"dataset"`
	Total    int64     `json:"total"`
	Tagged   int64     `json:"tagged"`
	Untagged int64     `json:"untagged"`
	Area     AreaStats `json:"area"`
}

type AreaStats struct {
	TotalM2 float64 `json:"total_m2"`
	AvgM2   float64 `json:"avg_m2"`
	MinM2   float64 `json:"min_m2"`
	MaxM2   float64 `json:"max_m2"`
}

// RegionRow is one line of a top-N regions table.
type RegionRow struct {
	Code       string  `json:"code" bson:"_id"`
	Name       string  `json:"name" bson:"name"`
	Department string  `json:"department" bson:"department"`
	Buildings  int64   `json:"buildings" bson:"buildings"`
	AreaM2     float64 `json:"area_m2" bson:"area_m2"`
	AvgAreaM2  float64 `json:"avg_area_m2" bson:"avg_area_m2"`
}

// Orderings accepted by TopRegions.
const (
	ByCount = "count"
	ByArea  = "area"
)

// ErrUnknownOrdering is returned for orderings other than ByCount and ByArea.
var ErrUnknownOrdering = errors.New("unknown ordering")

// Backend runs the aggregations against the store.
type Backend interface {
	Summary(ctx context.Context, dataset model.Dataset) (*Summary, error)
	TopRegions(ctx context.Context, dataset model.Dataset, by string, limit int) ([]RegionRow, error)
	Regions(ctx context.Context) ([]model.Region, error)
}

// Cache stores rendered responses. statscache.Cache satisfies it; tests use
// an in-memory fake.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, body []byte)
}

// Service answers stats queries, consulting the cache first. A nil cache
// disables caching entirely.
type Service struct {
	backend Backend
	cache   Cache
}

func NewService(backend Backend, cache Cache) *Service {
	return &Service{backend: backend, cache: cache}
}

func (s *Service) Summary(ctx context.Context, dataset model.Dataset) (*Summary, error) {
	key := statscache.Key("summary", dataset.String(), "")
	if body, ok := s.cached(ctx, key); ok {
		var out Summary
		if err := json.Unmarshal(body, &out); err == nil {
			return &out, nil
		}
	}

	out, err := s.backend.Summary(ctx, dataset)
	if err != nil {
		return nil, fmt.Errorf("summary %s: %w", dataset, err)
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *Service) TopRegions(ctx context.Context, dataset model.Dataset, by string, limit int) ([]RegionRow, error) {
	if by != ByCount && by != ByArea {
		return nil, fmt.Errorf("%w %q (want %q or %q)", ErrUnknownOrdering, by, ByCount, ByArea)
	}
	if limit < 1 {
		limit = 10
	}

	key := statscache.Key("top", dataset.String(), by+":"+strconv.Itoa(limit))
	if body, ok := s.cached(ctx, key); ok {
		var out []RegionRow
		if err := json.Unmarshal(body, &out); err == nil {
			return out, nil
		}
	}

	out, err := s.backend.TopRegions(ctx, dataset, by, limit)
	if err != nil {
		return nil, fmt.Errorf("top regions %s: %w", dataset, err)
	}
	s.store(ctx, key, out)
	return out, nil
}

func (s *Service) Regions(ctx context.Context) ([]model.Region, error) {
	key := statscache.Key("regions", "catalog", "")
	if body, ok := s.cached(ctx, key); ok {
		var out []model.Region
		if err := json.Unmarshal(body, &out); err == nil {
			return out, nil
		}
	}

	out, err := s.backend.Regions(ctx)
	if err != nil {
		return nil, fmt.Errorf("region catalog: %w", err)
	}
	s.store(ctx, key, out)
	return out, nil
}

// Compare runs the summary for every known dataset; a missing collection
// yields a zero summary rather than an error.
func (s *Service) Compare(ctx context.Context) ([]Summary, error) {
	out := make([]Summary, 0, len(model.Datasets()))
	for _, d := range model.Datasets() {
		sum, err := s.Summary(ctx, d)
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, nil
}

func (s *Service) cached(ctx context.Context, key string) ([]byte, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(ctx, key)
}

func (s *Service) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	body, err := json.Marshal(v)
	if err != nil {
		return
	}
	s.cache.Put(ctx, key, body)
}
