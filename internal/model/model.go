// Package model defines the documents shared across the pipeline: the
// region catalog and the building footprint collections.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Region is one administrative boundary (a municipality). The catalog is
// small enough to hold in memory for a whole run; Code is the stable key,
// Name and Department are display attributes only.
type Region struct {
	Code       string            `bson:"code" json:"code"`
	Name       string            `bson:"name" json:"name"`
	Department string            `bson:"department" json:"department"`
	DeptCode   string            `bson:"dept_code,omitempty" json:"dept_code,omitempty"`
	Geometry   *geojson.Geometry `bson:"geometry" json:"geometry,omitempty"`
	Meta       RegionMeta        `bson:"meta,omitempty" json:"meta,omitempty"`
}

type RegionMeta struct {
	Source   string    `bson:"source,omitempty" json:"source,omitempty"`
	AreaKM2  float64   `bson:"area_km2,omitempty" json:"area_km2,omitempty"`
	Year     int       `bson:"year,omitempty" json:"year,omitempty"`
	LoadedAt time.Time `bson:"loaded_at,omitempty" json:"loaded_at,omitempty"`
}

// Building is the canonical footprint document. Earlier iterations of the
// loaders disagreed on where area and the region tag lived; this shape is
// the one every component reads and writes: the region tag fields sit at the
// top level, provider attributes under properties.
type Building struct {
	ID         string             `bson:"_id" json:"id"`
	Geometry   *geojson.Geometry  `bson:"geometry" json:"geometry"`
	Properties BuildingProperties `bson:"properties" json:"properties"`

	// Set once by the assigner, never overwritten.
	RegionCode string `bson:"region_code,omitempty" json:"region_code,omitempty"`
	RegionName string `bson:"region_name,omitempty" json:"region_name,omitempty"`
	Department string `bson:"department,omitempty" json:"department,omitempty"`

	Meta SourceMeta `bson:"meta" json:"meta"`
}

type BuildingProperties struct {
	AreaM2     float64  `bson:"area_m2" json:"area_m2"`
	Confidence *float64 `bson:"confidence,omitempty" json:"confidence,omitempty"`
	HeightM    *float64 `bson:"height_m,omitempty" json:"height_m,omitempty"`
}

type SourceMeta struct {
	Source   string    `bson:"source" json:"source"`
	LoadedAt time.Time `bson:"loaded_at" json:"loaded_at"`
}

// Dataset names a footprint provider; each provider loads into its own
// collection.
type Dataset string

const (
	DatasetMicrosoft Dataset = "microsoft"
	DatasetGoogle    Dataset = "google"
)

func ParseDataset(s string) (Dataset, error) {
	switch Dataset(strings.ToLower(strings.TrimSpace(s))) {
	case DatasetMicrosoft:
		return DatasetMicrosoft, nil
	case DatasetGoogle:
		return DatasetGoogle, nil
	}
	return "", fmt.Errorf("unknown dataset %q (want %q or %q)", s, DatasetMicrosoft, DatasetGoogle)
}

func (d Dataset) String() string { return string(d) }

// Collection returns the MongoDB collection holding this provider's
// footprints.
func (d Dataset) Collection() string { return "buildings_" + string(d) }

func Datasets() []Dataset { return []Dataset{DatasetMicrosoft, DatasetGoogle} }
