package fetch

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

const indexCSV = `Location,QuadKey,Url,Size
Colombia,021331,https://example.com/021331.csv.gz,12MB
Chile,021330,https://example.com/021330.csv.gz,9MB
colombia,021332,https://example.com/021332.csv.gz,3MB
`

func TestIndexFiltersByLocation(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(indexCSV))
	}))
	defer ts.Close()

	c := New(0, time.Millisecond, zerolog.Nop())
	tiles, err := c.Index(context.Background(), ts.URL, "Colombia")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	if len(tiles) != 2 {
		t.Fatalf("tiles=%d want 2 (case-insensitive location match)", len(tiles))
	}
	if tiles[0].QuadKey != "021331" || tiles[1].QuadKey != "021332" {
		t.Fatalf("tiles=%+v", tiles)
	}
}

func TestIndexRejectsMissingColumns(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("Location,Size\nColombia,1MB\n"))
	}))
	defer ts.Close()

	if _, err := New(0, time.Millisecond, zerolog.Nop()).Index(context.Background(), ts.URL, "Colombia"); err == nil {
		t.Fatalf("expected error for index without url column")
	}
}

func TestDownloadGunzipsAndRenames(t *testing.T) {
	const payload = `{"type":"Feature"}` + "\n"
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		gz := gzip.NewWriter(w)
		_, _ = gz.Write([]byte(payload))
		_ = gz.Close()
	}))
	defer ts.Close()

	dir := t.TempDir()
	c := New(0, time.Millisecond, zerolog.Nop())
	path, err := c.Download(context.Background(), Tile{QuadKey: "021331", URL: ts.URL + "/021331.csv.gz"}, dir)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if filepath.Base(path) != "021331.geojsonl" {
		t.Fatalf("path=%s", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("content=%q", got)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".partial") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestGetRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer ts.Close()

	c := New(3, time.Millisecond, zerolog.Nop())
	body, err := c.get(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	body.Close()
	if calls.Load() != 3 {
		t.Fatalf("calls=%d want 3", calls.Load())
	}
}

func TestGetDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer ts.Close()

	c := New(5, time.Millisecond, zerolog.Nop())
	if _, err := c.get(context.Background(), ts.URL); err == nil {
		t.Fatalf("expected error")
	}
	if calls.Load() != 1 {
		t.Fatalf("calls=%d want 1 (404 is permanent)", calls.Load())
	}
}

func TestGetGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	c := New(2, time.Millisecond, zerolog.Nop())
	if _, err := c.get(context.Background(), ts.URL); err == nil {
		t.Fatalf("expected error after exhausting retries")
	}
	if calls.Load() != 3 {
		t.Fatalf("calls=%d want 3", calls.Load())
	}
}
