package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/observability"
)

type RegionStore struct {
	col *mongo.Collection
}

func NewRegionStore(c *Client) *RegionStore {
	return &RegionStore{col: c.db.Collection(RegionsCollection)}
}

// All returns the full region catalog ordered by code. That order is the
// assignment tie-break order, so it must be stable across runs.
func (s *RegionStore) All(ctx context.Context) ([]model.Region, error) {
	start := time.Now()
	cur, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "code", Value: 1}}))
	observability.ObserveMongoOp("regions_find", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("find regions: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Region
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode regions: %w", err)
	}
	return out, nil
}

// Names returns the catalog without boundary geometry, for display and
// exports.
func (s *RegionStore) Names(ctx context.Context) ([]model.Region, error) {
	start := time.Now()
	opts := options.Find().
		SetSort(bson.D{{Key: "code", Value: 1}}).
		SetProjection(bson.M{"geometry": 0})
	cur, err := s.col.Find(ctx, bson.M{}, opts)
	observability.ObserveMongoOp("regions_names", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("find region names: %w", err)
	}
	defer cur.Close(ctx)

	var out []model.Region
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode region names: %w", err)
	}
	return out, nil
}

type RegionUpsertResult struct {
	Upserted int64
	Modified int64
	Failed   int64
}

// Upsert replaces catalog entries by code, inserting new ones. Reloading the
// same catalog file is idempotent.
func (s *RegionStore) Upsert(ctx context.Context, regions []model.Region) (RegionUpsertResult, error) {
	if len(regions) == 0 {
		return RegionUpsertResult{}, nil
	}

	models := make([]mongo.WriteModel, 0, len(regions))
	for _, r := range regions {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"code": r.Code}).
			SetReplacement(r).
			SetUpsert(true))
	}

	start := time.Now()
	res, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	observability.ObserveMongoOp("regions_upsert", err, time.Since(start).Seconds())
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) {
			return RegionUpsertResult{}, fmt.Errorf("upsert regions: %w", err)
		}
		out := RegionUpsertResult{Failed: int64(len(bwe.WriteErrors))}
		if bwe.WriteConcernError == nil && res != nil {
			out.Upserted = res.UpsertedCount
			out.Modified = res.ModifiedCount
		}
		return out, nil
	}
	return RegionUpsertResult{Upserted: res.UpsertedCount, Modified: res.ModifiedCount}, nil
}

func (s *RegionStore) Count(ctx context.Context) (int64, error) {
	start := time.Now()
	n, err := s.col.CountDocuments(ctx, bson.M{})
	observability.ObserveMongoOp("regions_count", err, time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("count regions: %w", err)
	}
	return n, nil
}
