// Package export renders stats tables as CSV for downstream analysis.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/opencadastre/regiontag/internal/stats"
)

// WriteRegionsCSV writes a top-N region table with a header row.
func WriteRegionsCSV(w io.Writer, rows []stats.RegionRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"code", "name", "department", "buildings", "area_m2", "avg_area_m2"}); err != nil {
		return err
	}
	for _, r := range rows {
		rec := []string{
			r.Code,
			r.Name,
			r.Department,
			strconv.FormatInt(r.Buildings, 10),
			strconv.FormatFloat(r.AreaM2, 'f', 2, 64),
			strconv.FormatFloat(r.AvgAreaM2, 'f', 2, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// RegionsCSVFile writes the table to path, creating parent directories.
func RegionsCSVFile(path string, rows []stats.RegionRow) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteRegionsCSV(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
