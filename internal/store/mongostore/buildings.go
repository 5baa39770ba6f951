package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/paulmach/orb/geojson"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/opencadastre/regiontag/internal/assign"
	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/observability"
)

type BuildingStore struct {
	col     *mongo.Collection
	dataset model.Dataset
}

func NewBuildingStore(c *Client, d model.Dataset) *BuildingStore {
	return &BuildingStore{col: c.db.Collection(d.Collection()), dataset: d}
}

func (s *BuildingStore) Dataset() model.Dataset { return s.dataset }

// Untagged opens a cursor over footprints that do not carry a region tag
// yet, optionally restricted to a minimum provider confidence. The filter is
// what makes assignment runs idempotent: tagged records never re-enter the
// stream. Restart by calling Untagged again.
func (s *BuildingStore) Untagged(ctx context.Context, minConfidence float64) (*UntaggedCursor, error) {
	filter := bson.M{"region_code": bson.M{"$exists": false}}
	if minConfidence > 0 {
		filter["properties.confidence"] = bson.M{"$gte": minConfidence}
	}

	opts := options.Find().
		SetProjection(bson.M{"geometry": 1}).
		SetBatchSize(1000)

	start := time.Now()
	cur, err := s.col.Find(ctx, filter, opts)
	observability.ObserveMongoOp("buildings_untagged", err, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("find untagged buildings: %w", err)
	}
	return &UntaggedCursor{cur: cur}, nil
}

// UntaggedCursor adapts a MongoDB cursor to the assigner's record stream.
type UntaggedCursor struct {
	cur *mongo.Cursor
}

// Next implements assign.Source.
func (c *UntaggedCursor) Next(ctx context.Context) (*assign.Record, error) {
	if !c.cur.Next(ctx) {
		if err := c.cur.Err(); err != nil {
			return nil, fmt.Errorf("building cursor: %w", err)
		}
		return nil, nil
	}

	var doc struct {
		ID       string            `bson:"_id"`
		Geometry *geojson.Geometry `bson:"geometry"`
	}
	if err := c.cur.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode building: %w", err)
	}

	rec := &assign.Record{ID: doc.ID}
	if doc.Geometry != nil {
		rec.Shape = doc.Geometry.Geometry()
	}
	return rec, nil
}

func (c *UntaggedCursor) Close(ctx context.Context) error {
	return c.cur.Close(ctx)
}

// Flush implements assign.Sink as one unordered BulkWrite of partial
// updates. The filter re-checks that region_code is still unset, so an
// already-tagged record can never be overwritten, whatever fed the batch.
// Per-item write errors come back in the result; only a wholesale failure
// (connection loss, bad namespace) is returned as an error.
func (s *BuildingStore) Flush(ctx context.Context, updates []assign.Update) (assign.FlushResult, error) {
	if len(updates) == 0 {
		return assign.FlushResult{}, nil
	}

	models := make([]mongo.WriteModel, 0, len(updates))
	for _, u := range updates {
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{
				"_id":         u.ID,
				"region_code": bson.M{"$exists": false},
			}).
			SetUpdate(bson.M{"$set": bson.M{
				"region_code": u.RegionCode,
				"region_name": u.RegionName,
				"department":  u.Department,
			}}))
	}

	start := time.Now()
	_, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	observability.ObserveMongoOp("buildings_set_region", err, time.Since(start).Seconds())
	if err != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(err, &bwe) {
			return assign.FlushResult{}, fmt.Errorf("bulk update %s: %w", s.col.Name(), err)
		}
		res := assign.FlushResult{}
		for _, we := range bwe.WriteErrors {
			if we.Index < 0 || we.Index >= len(updates) {
				continue
			}
			res.Failed = append(res.Failed, assign.FailedUpdate{
				ID:     updates[we.Index].ID,
				Reason: we.Message,
			})
		}
		res.Applied = len(updates) - len(res.Failed)
		return res, nil
	}
	return assign.FlushResult{Applied: len(updates)}, nil
}

// UpsertBatch replaces footprint documents by id, inserting new ones.
// Re-loading a provider file is an upsert, not a duplication. Returns the
// number of documents applied and the number rejected per-item.
func (s *BuildingStore) UpsertBatch(ctx context.Context, docs []model.Building) (applied, failed int64, err error) {
	if len(docs) == 0 {
		return 0, 0, nil
	}

	models := make([]mongo.WriteModel, 0, len(docs))
	for _, d := range docs {
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": d.ID}).
			SetReplacement(d).
			SetUpsert(true))
	}

	start := time.Now()
	_, werr := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	observability.ObserveMongoOp("buildings_upsert", werr, time.Since(start).Seconds())
	if werr != nil {
		var bwe mongo.BulkWriteException
		if !errors.As(werr, &bwe) {
			return 0, int64(len(docs)), fmt.Errorf("bulk upsert %s: %w", s.col.Name(), werr)
		}
		failed = int64(len(bwe.WriteErrors))
		return int64(len(docs)) - failed, failed, nil
	}
	return int64(len(docs)), 0, nil
}

func (s *BuildingStore) Count(ctx context.Context, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	start := time.Now()
	n, err := s.col.CountDocuments(ctx, filter)
	observability.ObserveMongoOp("buildings_count", err, time.Since(start).Seconds())
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.col.Name(), err)
	}
	return n, nil
}
