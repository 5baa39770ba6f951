// Package router wires the stats endpoints onto chi.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/opencadastre/regiontag/internal/logger"
	"github.com/opencadastre/regiontag/internal/model"
	"github.com/opencadastre/regiontag/internal/stats"
)

// StatsService is the part of stats.Service the handlers call.
type StatsService interface {
	Summary(ctx context.Context, dataset model.Dataset) (*stats.Summary, error)
	TopRegions(ctx context.Context, dataset model.Dataset, by string, limit int) ([]stats.RegionRow, error)
	Regions(ctx context.Context) ([]model.Region, error)
	Compare(ctx context.Context) ([]stats.Summary, error)
}

// Mount registers the v1 API on r.
func Mount(r chi.Router, svc StatsService, log zerolog.Logger) {
	h := &handlers{svc: svc, log: log}
	r.Route("/v1", func(r chi.Router) {
		r.Get("/regions", h.regions)
		r.Get("/compare", h.compare)
		r.Route("/datasets/{dataset}", func(r chi.Router) {
			r.Get("/summary", h.summary)
			r.Get("/top", h.top)
		})
	})
}

type handlers struct {
	svc StatsService
	log zerolog.Logger
}

func (h *handlers) summary(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}
	out, err := h.svc.Summary(r.Context(), d)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) top(w http.ResponseWriter, r *http.Request) {
	d, ok := h.dataset(w, r)
	if !ok {
		return
	}

	by := strings.TrimSpace(r.URL.Query().Get("by"))
	if by == "" {
		by = stats.ByCount
	}
	limit := 10
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}

	out, err := h.svc.TopRegions(r.Context(), d, by, limit)
	if err != nil {
		if errors.Is(err, stats.ErrUnknownOrdering) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) regions(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Regions(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) compare(w http.ResponseWriter, r *http.Request) {
	out, err := h.svc.Compare(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) dataset(w http.ResponseWriter, r *http.Request) (model.Dataset, bool) {
	d, err := model.ParseDataset(chi.URLParam(r, "dataset"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return "", false
	}
	return d, true
}

func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	logger.FromContext(r.Context(), &h.log).Error().Err(err).
		Str("path", r.URL.Path).
		Msg("stats query failed")
	http.Error(w, "query failed", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
