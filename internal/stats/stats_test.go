package stats

import (
	"context"
	"errors"
	"testing"

	"github.com/opencadastre/regiontag/internal/model"
)

type fakeBackend struct {
	summaryCalls int
	topCalls     int
}

func (f *fakeBackend) Summary(_ context.Context, d model.Dataset) (*Summary, error) {
	f.summaryCalls++
	return &Summary{Dataset: d.String(), Total: 100, Tagged: 60, Untagged: 40}, nil
}

func (f *fakeBackend) TopRegions(_ context.Context, _ model.Dataset, by string, limit int) ([]RegionRow, error) {
	f.topCalls++
	return []RegionRow{{Code: "05001", Buildings: int64(limit)}}, nil
}

func (f *fakeBackend) Regions(context.Context) ([]model.Region, error) {
	return []model.Region{{Code: "05001", Name: "MEDELLIN"}}, nil
}

type mapCache struct {
	m map[string][]byte
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := c.m[key]
	return v, ok
}

func (c *mapCache) Put(_ context.Context, key string, body []byte) {
	c.m[key] = body
}

func TestSummaryServedFromCache(t *testing.T) {
	be := &fakeBackend{}
	svc := NewService(be, &mapCache{m: map[string][]byte{}})

	first, err := svc.Summary(context.Background(), model.DatasetMicrosoft)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	second, err := svc.Summary(context.Background(), model.DatasetMicrosoft)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if be.summaryCalls != 1 {
		t.Fatalf("backend called %d times, cache should absorb the second call", be.summaryCalls)
	}
	if *first != *second {
		t.Fatalf("cached summary differs: %+v vs %+v", first, second)
	}
}

func TestDatasetsDoNotShareCacheEntries(t *testing.T) {
	be := &fakeBackend{}
	svc := NewService(be, &mapCache{m: map[string][]byte{}})

	if _, err := svc.Summary(context.Background(), model.DatasetMicrosoft); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if _, err := svc.Summary(context.Background(), model.DatasetGoogle); err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if be.summaryCalls != 2 {
		t.Fatalf("backend called %d times, want 2 (one per dataset)", be.summaryCalls)
	}
}

func TestTopRegionsValidatesOrdering(t *testing.T) {
	svc := NewService(&fakeBackend{}, nil)
	_, err := svc.TopRegions(context.Background(), model.DatasetGoogle, "height", 5)
	if !errors.Is(err, ErrUnknownOrdering) {
		t.Fatalf("err=%v want ErrUnknownOrdering", err)
	}
}

func TestTopRegionsDefaultsLimit(t *testing.T) {
	be := &fakeBackend{}
	svc := NewService(be, nil)
	rows, err := svc.TopRegions(context.Background(), model.DatasetGoogle, ByCount, 0)
	if err != nil {
		t.Fatalf("TopRegions: %v", err)
	}
	if rows[0].Buildings != 10 {
		t.Fatalf("limit passed to backend was %d, want default 10", rows[0].Buildings)
	}
}

func TestTopRegionsCacheKeyIncludesParams(t *testing.T) {
	be := &fakeBackend{}
	svc := NewService(be, &mapCache{m: map[string][]byte{}})

	if _, err := svc.TopRegions(context.Background(), model.DatasetGoogle, ByCount, 5); err != nil {
		t.Fatalf("TopRegions: %v", err)
	}
	if _, err := svc.TopRegions(context.Background(), model.DatasetGoogle, ByArea, 5); err != nil {
		t.Fatalf("TopRegions: %v", err)
	}
	if _, err := svc.TopRegions(context.Background(), model.DatasetGoogle, ByCount, 5); err != nil {
		t.Fatalf("TopRegions: %v", err)
	}
	if be.topCalls != 2 {
		t.Fatalf("backend called %d times, want 2 (distinct orderings, one repeat)", be.topCalls)
	}
}

func TestNilCacheDisablesCaching(t *testing.T) {
	be := &fakeBackend{}
	svc := NewService(be, nil)
	for i := 0; i < 3; i++ {
		if _, err := svc.Summary(context.Background(), model.DatasetMicrosoft); err != nil {
			t.Fatalf("Summary: %v", err)
		}
	}
	if be.summaryCalls != 3 {
		t.Fatalf("backend called %d times, want 3 with caching off", be.summaryCalls)
	}
}

func TestCompareCoversAllDatasets(t *testing.T) {
	svc := NewService(&fakeBackend{}, nil)
	out, err := svc.Compare(context.Background())
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if len(out) != len(model.Datasets()) {
		t.Fatalf("got %d summaries, want %d", len(out), len(model.Datasets()))
	}
	for i, d := range model.Datasets() {
		if out[i].Dataset != d.String() {
			t.Fatalf("summary %d is for %q, want %q", i, out[i].Dataset, d)
		}
	}
}
