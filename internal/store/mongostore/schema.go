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

// namespaceExists is the server error code for creating a collection that
// is already there.
const namespaceExists = 48

var geometrySchema = bson.M{
	"bsonType": "object",
	"required": bson.A{"type", "coordinates"},
	"properties": bson.M{
		"type":        bson.M{"enum": bson.A{"Polygon", "MultiPolygon"}},
		"coordinates": bson.M{"bsonType": "array"},
	},
}

// EnsureCollections creates the catalog and building collections with their
// JSON-schema validators. Existing collections are left untouched.
func (c *Client) EnsureCollections(ctx context.Context) error {
	regionValidator := bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"code", "name", "department", "geometry"},
			"properties": bson.M{
				"code": bson.M{
					"bsonType": "string",
					"pattern":  "^[0-9A-Za-z]{1,12}$",
				},
				"name":       bson.M{"bsonType": "string", "minLength": 1},
				"department": bson.M{"bsonType": "string"},
				"geometry":   geometrySchema,
			},
		},
	}
	if err := c.createCollection(ctx, RegionsCollection, regionValidator); err != nil {
		return err
	}

	buildingValidator := bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": bson.A{"_id", "geometry", "properties", "meta"},
			"properties": bson.M{
				"_id":      bson.M{"bsonType": "string"},
				"geometry": geometrySchema,
				"properties": bson.M{
					"bsonType": "object",
					"required": bson.A{"area_m2"},
					"properties": bson.M{
						"area_m2":    bson.M{"bsonType": "double", "minimum": 0},
						"confidence": bson.M{"bsonType": "double"},
					},
				},
				"region_code": bson.M{"bsonType": "string"},
				"meta": bson.M{
					"bsonType": "object",
					"required": bson.A{"source", "loaded_at"},
				},
			},
		},
	}
	for _, d := range model.Datasets() {
		if err := c.createCollection(ctx, d.Collection(), buildingValidator); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) createCollection(ctx context.Context, name string, validator bson.M) error {
	opts := options.CreateCollection().
		SetValidator(validator).
		SetValidationLevel("strict").
		SetValidationAction("error")

	start := time.Now()
	err := c.db.CreateCollection(ctx, name, opts)
	observability.ObserveMongoOp("create_collection", err, time.Since(start).Seconds())
	if err != nil {
		var ce mongo.CommandError
		if errors.As(err, &ce) && ce.Code == namespaceExists {
			return nil
		}
		return fmt.Errorf("create collection %s: %w", name, err)
	}
	return nil
}

// EnsureIndexes creates the indexes every run depends on: the unique region
// code, the 2dsphere geometry indexes, and a sparse index on region_code so
// the untagged query and the per-region aggregations stay off collection
// scans.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	regions := c.db.Collection(RegionsCollection)
	regionModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "code", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("code_unique"),
		},
		{
			Keys:    bson.D{{Key: "geometry", Value: "2dsphere"}},
			Options: options.Index().SetName("geometry_2dsphere"),
		},
	}
	start := time.Now()
	_, err := regions.Indexes().CreateMany(ctx, regionModels)
	observability.ObserveMongoOp("ensure_indexes", err, time.Since(start).Seconds())
	if err != nil {
		return fmt.Errorf("indexes on %s: %w", RegionsCollection, err)
	}

	buildingModels := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "geometry", Value: "2dsphere"}},
			Options: options.Index().SetName("geometry_2dsphere"),
		},
		{
			Keys:    bson.D{{Key: "region_code", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("region_code_sparse"),
		},
		{
			Keys:    bson.D{{Key: "properties.confidence", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("confidence_sparse"),
		},
	}
	for _, d := range model.Datasets() {
		col := c.db.Collection(d.Collection())
		start := time.Now()
		_, err := col.Indexes().CreateMany(ctx, buildingModels)
		observability.ObserveMongoOp("ensure_indexes", err, time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("indexes on %s: %w", col.Name(), err)
		}
	}
	return nil
}
