package ingest

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/opencadastre/regiontag/internal/geo"
	"github.com/opencadastre/regiontag/internal/model"
)

// Some provider tiles put a whole multipolygon on one line.
const maxLineBytes = 16 * 1024 * 1024

// BuildingReader streams a provider GeoJSONL file, one feature per line.
// Malformed lines are counted and skipped rather than aborting the load.
type BuildingReader struct {
	sc      *bufio.Scanner
	source  model.Dataset
	loadedAt time.Time
	line    int
	skipped int
}

func NewBuildingReader(r io.Reader, source model.Dataset) *BuildingReader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &BuildingReader{
		sc:       sc,
		source:   source,
		loadedAt: time.Now().UTC(),
	}
}

// Skipped reports how many lines were dropped so far.
func (br *BuildingReader) Skipped() int { return br.skipped }

// Lines reports how many lines were consumed so far.
func (br *BuildingReader) Lines() int { return br.line }

// Next returns the next valid building, or nil at end of input.
func (br *BuildingReader) Next() (*model.Building, error) {
	for br.sc.Scan() {
		br.line++
		raw := bytes.TrimSpace(br.sc.Bytes())
		if len(raw) == 0 {
			continue
		}

		b, err := br.parseLine(raw)
		if err != nil {
			br.skipped++
			continue
		}
		return b, nil
	}
	if err := br.sc.Err(); err != nil {
		return nil, fmt.Errorf("read line %d: %w", br.line+1, err)
	}
	return nil, nil
}

func (br *BuildingReader) parseLine(raw []byte) (*model.Building, error) {
	f, err := geojson.UnmarshalFeature(raw)
	if err != nil {
		return nil, err
	}
	if _, err := geo.RepresentativePoint(f.Geometry); err != nil {
		return nil, err
	}

	gm := geojson.NewGeometry(f.Geometry)
	props := model.BuildingProperties{
		AreaM2:     featureArea(f),
		Confidence: positiveFloat(f.Properties, "confidence"),
		HeightM:    positiveFloat(f.Properties, "height"),
	}

	return &model.Building{
		ID:         stableID(br.source, gm),
		Geometry:   gm,
		Properties: props,
		Meta: model.SourceMeta{
			Source:   br.source.String(),
			LoadedAt: br.loadedAt,
		},
	}, nil
}

// featureArea prefers the provider's own measurement when present; the MS
// export carries it as area_m2, the Google one as area_in_meters. Otherwise
// it is computed geodesically from the footprint itself.
func featureArea(f *geojson.Feature) float64 {
	for _, k := range []string{"area_m2", "area_in_meters"} {
		if v, ok := f.Properties[k].(float64); ok && v > 0 {
			return v
		}
	}
	return geo.AreaM2(f.Geometry)
}

// positiveFloat maps a provider attribute to an optional field; both
// providers use negative values for "unknown".
func positiveFloat(props geojson.Properties, key string) *float64 {
	if v, ok := props[key].(float64); ok && v >= 0 {
		return &v
	}
	return nil
}

// stableID derives the document id from the geometry itself, so re-loading
// a tile upserts instead of duplicating. Providers don't ship ids of their
// own.
func stableID(source model.Dataset, gm *geojson.Geometry) string {
	body, err := gm.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("%s-invalid", source)
	}
	return fmt.Sprintf("%s-%016x", source, xxhash.Sum64(body))
}
