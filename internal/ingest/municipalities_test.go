package ingest

import (
	"strings"
	"testing"
)

const catalogFixture = `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "properties": {
        "mpio_cdpmp": "05001",
        "mpio_cnmbr": "MEDELLIN",
        "dpto_cnmbr": "ANTIOQUIA",
        "dpto_ccdgo": "05",
        "mpio_narea": 380.64,
        "mpio_nano": 2024
      },
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[-75.7, 6.1], [-75.4, 6.1], [-75.4, 6.4], [-75.7, 6.4], [-75.7, 6.1]]]
      }
    },
    {
      "type": "Feature",
      "properties": {
        "Código DANE Municipio": "19001",
        "Municipio": "POPAYAN",
        "Departamento": "CAUCA"
      },
      "geometry": {
        "type": "MultiPolygon",
        "coordinates": [[[[-76.7, 2.3], [-76.5, 2.3], [-76.5, 2.5], [-76.7, 2.5], [-76.7, 2.3]]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"mpio_cnmbr": "SIN CODIGO"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0, 0], [1, 0], [1, 1], [0, 1], [0, 0]]]
      }
    },
    {
      "type": "Feature",
      "properties": {"mpio_cdpmp": "99999", "mpio_cnmbr": "ROTO"},
      "geometry": {
        "type": "Polygon",
        "coordinates": [[[0, 0], [1, 0], [0, 0]]]
      }
    }
  ]
}`

func TestParseMunicipalities(t *testing.T) {
	regions, report, err := ParseMunicipalities(strings.NewReader(catalogFixture), "DANE MGN 2024")
	if err != nil {
		t.Fatalf("ParseMunicipalities: %v", err)
	}
	if report.Parsed != 2 || report.Skipped != 2 {
		t.Fatalf("report=%+v want 2 parsed, 2 skipped", report)
	}
	if len(report.Errors) != 2 {
		t.Fatalf("errors=%v", report.Errors)
	}

	if regions[0].Code != "05001" || regions[0].Name != "MEDELLIN" || regions[0].Department != "ANTIOQUIA" {
		t.Fatalf("region 0 = %+v", regions[0])
	}
	if regions[0].Meta.AreaKM2 != 380.64 || regions[0].Meta.Year != 2024 {
		t.Fatalf("region 0 meta = %+v", regions[0].Meta)
	}
	if regions[0].Meta.Source != "DANE MGN 2024" {
		t.Fatalf("source = %q", regions[0].Meta.Source)
	}

	// Legacy header fallbacks.
	if regions[1].Code != "19001" || regions[1].Name != "POPAYAN" || regions[1].Department != "CAUCA" {
		t.Fatalf("region 1 = %+v", regions[1])
	}
	if regions[1].Geometry == nil || regions[1].Geometry.Type != "MultiPolygon" {
		t.Fatalf("region 1 geometry = %+v", regions[1].Geometry)
	}
}

func TestParseMunicipalities_BadInput(t *testing.T) {
	if _, _, err := ParseMunicipalities(strings.NewReader("not geojson"), "x"); err == nil {
		t.Fatalf("expected parse error")
	}
}
