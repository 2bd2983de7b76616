// Package router parses and validates HTTP requests and maps them onto the
// retrieval core.
package router

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"immo-explorer/internal/composer"
	"immo-explorer/internal/filterstore"
	"immo-explorer/internal/geocode"
	"immo-explorer/internal/model"
	"immo-explorer/internal/observability"
	"immo-explorer/internal/search"
)

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// ParseSearchRequest reads filter criteria from query parameters. Absent
// parameters stay nil in the patch so saved/default values apply.
func ParseSearchRequest(r *http.Request) (search.FilterPatch, string, error) {
	q := r.URL.Query()

	dpe, err := parseRatings(q.Get("dpe"))
	if err != nil {
		return search.FilterPatch{}, "", fmt.Errorf("invalid dpe: %w", err)
	}
	ges, err := parseRatings(q.Get("ges"))
	if err != nil {
		return search.FilterPatch{}, "", fmt.Errorf("invalid ges: %w", err)
	}

	smin, err := parseOptFloat(q.Get("surface_min"))
	if err != nil {
		return search.FilterPatch{}, "", fmt.Errorf("invalid surface_min: %w", err)
	}
	smax, err := parseOptFloat(q.Get("surface_max"))
	if err != nil {
		return search.FilterPatch{}, "", fmt.Errorf("invalid surface_max: %w", err)
	}
	if smin != nil && smax != nil && *smin > *smax {
		return search.FilterPatch{}, "", errors.New("surface_min must not exceed surface_max")
	}

	return search.FilterPatch{
		DPE:         dpe,
		GES:         ges,
		SurfaceMin:  smin,
		SurfaceMax:  smax,
		PostalCodes: splitList(q.Get("cp")),
	}, strings.TrimSpace(q.Get("saved")), nil
}

// ParseMapOptions reads the overlay and enrichment flags for /map.
func ParseMapOptions(r *http.Request) composer.Options {
	q := r.URL.Query()
	return composer.Options{
		EnrichPrices: parseBool(q.Get("prices")),
		Cadastral:    parseBool(q.Get("cadastral")),
		Communes:     parseBool(q.Get("communes")),
	}
}

func parseRatings(raw string) ([]string, error) {
	out := splitList(raw)
	for i, v := range out {
		v = strings.ToUpper(v)
		if len(v) != 1 || v[0] < 'A' || v[0] > 'G' {
			return nil, fmt.Errorf("rating %q must be A-G", out[i])
		}
		out[i] = v
	}
	return out, nil
}

func splitList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(raw, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseOptFloat(raw string) (*float64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, fmt.Errorf("parse float: %w", err)
	}
	if f < 0 {
		return nil, errors.New("must not be negative")
	}
	return &f, nil
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "y", "yes":
		return true
	}
	return false
}

// HandleSearch serves the reconciled record query as plain JSON.
func HandleSearch(logger *slog.Logger, svc *search.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		patch, savedName, err := ParseSearchRequest(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/search", sw.code, time.Since(start).Seconds())
			return
		}

		fs := svc.Reconcile(patch, savedName)
		recs := svc.Search(r.Context(), fs)
		logger.DebugContext(r.Context(), "search served",
			"postal_codes", strings.Join(fs.PostalCodes, ","), "records", len(recs))

		writeJSON(sw, map[string]any{
			"filters": fs,
			"count":   len(recs),
			"records": recs,
		})
		observability.ObserveHTTP(r.Method, "/search", sw.code, time.Since(start).Seconds())
	}
}

// HandleMap serves the composed map view.
func HandleMap(logger *slog.Logger, svc *search.Service, comp *composer.Composer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		patch, savedName, err := ParseSearchRequest(r)
		if err != nil {
			http.Error(sw, err.Error(), http.StatusBadRequest)
			observability.ObserveHTTP(r.Method, "/map", sw.code, time.Since(start).Seconds())
			return
		}

		fs := svc.Reconcile(patch, savedName)
		recs := svc.Search(r.Context(), fs)

		opts := ParseMapOptions(r)
		opts.PostalCodes = fs.PostalCodes

		view := comp.Compose(r.Context(), recs, opts)
		logger.DebugContext(r.Context(), "map composed",
			"markers", len(view.Markers.Features), "overlays", len(view.Overlays))
		writeJSON(sw, view)
		observability.ObserveHTTP(r.Method, "/map", sw.code, time.Since(start).Seconds())
	}
}

// HandleListFilters serves all saved filter-sets.
func HandleListFilters(logger *slog.Logger, store *filterstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := store.Load()
		if err != nil {
			logger.Error("filter store load failed", "err", err)
			http.Error(w, "filter store unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, all)
	}
}

// HandleSaveFilter upserts a named filter-set from the request body.
func HandleSaveFilter(logger *slog.Logger, store *filterstore.Store, validate *validator.Validate) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if name == "" {
			http.Error(w, "filter name is required", http.StatusBadRequest)
			return
		}

		var fs model.FilterSet
		if err := json.NewDecoder(r.Body).Decode(&fs); err != nil {
			http.Error(w, "invalid filter body: "+err.Error(), http.StatusBadRequest)
			return
		}
		if err := validate.Struct(fs); err != nil {
			http.Error(w, "invalid filter: "+err.Error(), http.StatusBadRequest)
			return
		}

		if err := store.Save(name, fs); err != nil {
			logger.Error("filter save failed", "name", name, "err", err)
			http.Error(w, "filter store unavailable", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleDeleteFilter removes a named filter-set, reporting whether it existed.
func HandleDeleteFilter(logger *slog.Logger, store *filterstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		deleted, err := store.Delete(name)
		if err != nil {
			logger.Error("filter delete failed", "name", name, "err", err)
			http.Error(w, "filter store unavailable", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]bool{"deleted": deleted})
	}
}

// HandleReverseGeocode maps a clicked coordinate to a postal code. A failed
// lookup is an empty postal code, not an error status.
func HandleReverseGeocode(logger *slog.Logger, geo *geocode.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lat, err := parseCoord(r.URL.Query().Get("lat"), 90)
		if err != nil {
			http.Error(w, "invalid lat: "+err.Error(), http.StatusBadRequest)
			return
		}
		lon, err := parseCoord(r.URL.Query().Get("lon"), 180)
		if err != nil {
			http.Error(w, "invalid lon: "+err.Error(), http.StatusBadRequest)
			return
		}

		pc := geo.ReversePostalCode(r.Context(), lat, lon)
		writeJSON(w, map[string]string{"postal_code": pc})
	}
}

func parseCoord(raw string, bound float64) (float64, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, errors.New("missing")
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	if f < -bound || f > bound {
		return 0, fmt.Errorf("must be in [%.0f,%.0f]", -bound, bound)
	}
	return f, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
