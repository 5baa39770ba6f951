// Package fetch downloads building footprint tiles from the provider
// dataset indexes.
package fetch

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/opencadastre/regiontag/internal/httpclient"
)

// Default index for the Microsoft global building footprints release.
const MicrosoftIndexURL = "https://minedbuildings.z5.web.core.windows.net/global-buildings/dataset-links.csv"

// Tile is one row of a provider dataset index.
type Tile struct {
	Location string
	QuadKey  string
	URL      string
}

type Client struct {
	hc      *http.Client
	retries int
	backoff time.Duration
	log     zerolog.Logger
}

// New returns a fetch client. retries counts attempts after the first,
// backoff is the base delay and doubles per attempt.
func New(retries int, backoff time.Duration, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		hc:      httpclient.NewOutbound(),
		retries: retries,
		backoff: backoff,
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type Option func(*Client)

// WithHTTPClient overrides the outbound client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// Index downloads a dataset index CSV and returns the tiles for location.
// The index has a header row with at least Location, QuadKey and Url columns.
func (c *Client) Index(ctx context.Context, indexURL, location string) ([]Tile, error) {
	body, err := c.get(ctx, indexURL)
	if err != nil {
		return nil, fmt.Errorf("dataset index: %w", err)
	}
	defer body.Close()

	rd := csv.NewReader(body)
	rd.FieldsPerRecord = -1

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("dataset index header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, want := range []string{"location", "quadkey", "url"} {
		if _, ok := col[want]; !ok {
			return nil, fmt.Errorf("dataset index: missing column %q", want)
		}
	}

	var tiles []Tile
	for {
		rec, err := rd.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("dataset index row: %w", err)
		}
		if len(rec) <= col["url"] {
			continue
		}
		if !strings.EqualFold(strings.TrimSpace(rec[col["location"]]), location) {
			continue
		}
		tiles = append(tiles, Tile{
			Location: strings.TrimSpace(rec[col["location"]]),
			QuadKey:  strings.TrimSpace(rec[col["quadkey"]]),
			URL:      strings.TrimSpace(rec[col["url"]]),
		})
	}
	c.log.Info().Str("location", location).Int("tiles", len(tiles)).Msg("dataset index loaded")
	return tiles, nil
}

// Download fetches one tile into dir, decompressing gzip on the way, and
// returns the path of the written .geojsonl file. Partial files are never
// left behind under their final name.
func (c *Client) Download(ctx context.Context, tile Tile, dir string) (string, error) {
	body, err := c.get(ctx, tile.URL)
	if err != nil {
		return "", fmt.Errorf("tile %s: %w", tile.QuadKey, err)
	}
	defer body.Close()

	var r io.Reader = body
	if strings.HasSuffix(strings.ToLower(tile.URL), ".gz") ||
		strings.Contains(tile.URL, "csv.gz") {
		gz, err := gzip.NewReader(body)
		if err != nil {
			return "", fmt.Errorf("tile %s: gunzip: %w", tile.QuadKey, err)
		}
		defer gz.Close()
		r = gz
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, "tile-*.partial")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("tile %s: write: %w", tile.QuadKey, err)
	}

	dest := filepath.Join(dir, tile.QuadKey+".geojsonl")
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return "", err
	}
	c.log.Info().Str("quadkey", tile.QuadKey).Int64("bytes", n).Msg("tile downloaded")
	return dest, nil
}

// get runs a GET with bounded retry. Responses other than 200 count as
// attempts too, except 404 which fails immediately.
func (c *Client) get(ctx context.Context, url string) (io.ReadCloser, error) {
	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			c.log.Warn().Str("url", url).Int("attempt", attempt).Dur("delay", delay).
				Err(lastErr).Msg("retrying download")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		resp, err := c.hc.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			return resp.Body, nil
		case resp.StatusCode == http.StatusNotFound:
			resp.Body.Close()
			return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
		default:
			resp.Body.Close()
			lastErr = fmt.Errorf("GET %s: %s", url, resp.Status)
		}
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", c.retries+1, lastErr)
}
