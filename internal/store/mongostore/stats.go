package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/observability"
	"github.com/opencadastre/regiontag/internal/stats"
)

// StatsBackend implements stats.Backend with aggregation pipelines over the
// building collections.
type StatsBackend struct {
	c *Client
}

func NewStatsBackend(c *Client) *StatsBackend {
	return &StatsBackend{c: c}
}

func (b *StatsBackend) Summary(ctx context.Context, dataset model.Dataset) (*stats.Summary, error) {
	col := b.c.db.Collection(dataset.Collection())

	start := time.Now()
	total, err := col.CountDocuments(ctx, bson.M{})
	observability.ObserveMongoOp("stats_count_total", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("count %s: %w", col.Name(), err)
	}

	start = time.Now()
	tagged, err := col.CountDocuments(ctx, bson.M{"region_code": bson.M{"$exists": true}})
	observability.ObserveMongoOp("stats_count_tagged", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("count tagged %s: %w", col.Name(), err)
	}

	out := &stats.Summary{
		Dataset:  dataset.String(),
		Total:    total,
		Tagged:   tagged,
		Untagged: total - tagged,
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"properties.area_m2": bson.M{"$gt": 0}}}},
		{{Key: "$group", Value: bson.M{
			"_id":      nil,
			"total_m2": bson.M{"$sum": "$properties.area_m2"},
			"avg_m2":   bson.M{"$avg": "$properties.area_m2"},
			"min_m2":   bson.M{"$min": "$properties.area_m2"},
			"max_m2":   bson.M{"$max": "$properties.area_m2"},
		}}},
	}

	start = time.Now()
	cur, err := col.Aggregate(ctx, pipeline)
	observability.ObserveMongoOp("stats_area", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("aggregate area %s: %w", col.Name(), err)
	}
	defer cur.Close(ctx)

	var rows []struct {
		TotalM2 float64 `bson:"total_m2"`
		AvgM2   float64 `bson:"avg_m2"`
		MinM2   float64 `bson:"min_m2"`
		MaxM2   float64 `bson:"max_m2"`
	}
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode area stats %s: %w", col.Name(), err)
	}
	if len(rows) > 0 {
		out.Area = stats.AreaStats{
			TotalM2: rows[0].TotalM2,
			AvgM2:   rows[0].AvgM2,
			MinM2:   rows[0].MinM2,
			MaxM2:   rows[0].MaxM2,
		}
	}
	return out, nil
}

func (b *StatsBackend) TopRegions(ctx context.Context, dataset model.Dataset, by string, limit int) ([]stats.RegionRow, error) {
	sortField := "area_m2"
	if by == stats.ByCount {
		sortField = "buildings"
	}

	col := b.c.db.Collection(dataset.Collection())
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"region_code": bson.M{"$exists": true, "$ne": ""}}}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$region_code",
			"name":        bson.M{"$first": "$region_name"},
			"department":  bson.M{"$first": "$department"},
			"buildings":   bson.M{"$sum": 1},
			"area_m2":     bson.M{"$sum": "$properties.area_m2"},
			"avg_area_m2": bson.M{"$avg": "$properties.area_m2"},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: sortField, Value: -1}}}},
		{{Key: "$limit", Value: limit}},
	}

	start := time.Now()
	cur, err := col.Aggregate(ctx, pipeline)
	observability.ObserveMongoOp("stats_top_regions", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("aggregate top regions %s: %w", col.Name(), err)
	}
	defer cur.Close(ctx)

	var rows []stats.RegionRow
	if err := cur.All(ctx, &rows); err != nil {
		return nil, fmt.Errorf("decode top regions %s: %w", col.Name(), err)
	}
	return rows, nil
}

func (b *StatsBackend) Regions(ctx context.Context) ([]model.Region, error) {
	return NewRegionStore(b.c).Names(ctx)
}
