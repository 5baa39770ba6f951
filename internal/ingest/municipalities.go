// Package ingest parses the external catalogs (the municipality boundary
// GeoJSON and the provider building GeoJSONL files) into canonical
// documents ready for the store.
package ingest

import (
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/opencadastre/regiontag/internal/geo"
	"github.com/opencadastre/regiontag/internal/model"
)

// Property keys as exported by the DANE MGN catalog, with the spreadsheet
// style headers older exports used.
var (
	codeKeys       = []string{"mpio_cdpmp", "Código DANE Municipio"}
	nameKeys       = []string{"mpio_cnmbr", "Municipio"}
	departmentKeys = []string{"dpto_cnmbr", "Departamento"}
	deptCodeKeys   = []string{"dpto_ccdgo", "Código DANE Departamento"}
)

// MunicipalityReport accounts for catalog entries that could not be loaded.
type MunicipalityReport struct {
	Parsed  int
	Skipped int
	Errors  []string
}

// ParseMunicipalities reads a boundary FeatureCollection into Region
// documents. Features without a usable code or boundary are skipped and
// reported: an invalid boundary in the catalog would abort every later
// assignment run, so it must not reach the store.
func ParseMunicipalities(r io.Reader, source string) ([]model.Region, *MunicipalityReport, error) {
	body, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read catalog: %w", err)
	}
	fc, err := geojson.UnmarshalFeatureCollection(body)
	if err != nil {
		return nil, nil, fmt.Errorf("parse catalog: %w", err)
	}

	report := &MunicipalityReport{}
	now := time.Now().UTC()
	out := make([]model.Region, 0, len(fc.Features))

	for i, f := range fc.Features {
		code := propString(f.Properties, codeKeys)
		if code == "" {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("feature %d: no municipality code", i))
			continue
		}
		if _, err := geo.NewBoundary(f.Geometry); err != nil {
			report.Skipped++
			report.Errors = append(report.Errors, fmt.Sprintf("feature %d (%s): %v", i, code, err))
			continue
		}

		out = append(out, model.Region{
			Code:       code,
			Name:       propString(f.Properties, nameKeys),
			Department: propString(f.Properties, departmentKeys),
			DeptCode:   propString(f.Properties, deptCodeKeys),
			Geometry:   geojson.NewGeometry(f.Geometry),
			Meta: model.RegionMeta{
				Source:   source,
				AreaKM2:  propFloat(f.Properties, "mpio_narea"),
				Year:     int(propFloat(f.Properties, "mpio_nano")),
				LoadedAt: now,
			},
		})
		report.Parsed++
	}
	return out, report, nil
}

func propString(props geojson.Properties, keys []string) string {
	for _, k := range keys {
		if v, ok := props[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

func propFloat(props geojson.Properties, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}
