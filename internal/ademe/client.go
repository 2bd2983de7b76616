// Package ademe fetches energy-performance (DPE/GES) records from the ADEME
// open-data API and normalizes them into model.EnergyRecord.
package ademe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"immo-explorer/internal/cache"
	"immo-explorer/internal/cache/keys"
	"immo-explorer/internal/model"
	"immo-explorer/internal/observability"
)

// Query is one outbound search. Empty rating slices mean "no rating filter"
// and are omitted from the request entirely.
type Query struct {
	DPE        []string
	GES        []string
	SurfaceMin float64
	SurfaceMax float64
	PostalCode string
}

// SharedCache is the optional second cache tier behind the in-process memo.
type SharedCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type Client struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
	rows    int
	memo    *cache.Memo[[]model.EnergyRecord]

	shared    SharedCache
	sharedTTL time.Duration
}

type Option func(*Client)

// WithSharedCache adds a shared (cross-process) cache tier consulted on memo
// misses.
func WithSharedCache(sc SharedCache, ttl time.Duration) Option {
	return func(c *Client) {
		c.shared = sc
		c.sharedTTL = ttl
	}
}

func New(logger *slog.Logger, hc *http.Client, baseURL string, rows int, memo *cache.Memo[[]model.EnergyRecord], opts ...Option) *Client {
	c := &Client{
		logger:  logger,
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		rows:    rows,
		memo:    memo,
	}
	for _, f := range opts {
		f(c)
	}
	return c
}

// Fetch returns records sorted by descending habitable surface. Any
// transport or decode failure is logged and yields an empty slice; the caller
// never sees an error.
func (c *Client) Fetch(ctx context.Context, q Query) []model.EnergyRecord {
	key := cacheKey(q)
	if recs, ok := c.memo.Get(key); ok {
		return recs
	}

	if recs, ok := c.sharedGet(ctx, key); ok {
		c.memo.Add(key, recs)
		return recs
	}

	recs, err := c.fetchUpstream(ctx, q)
	if err != nil {
		c.logger.ErrorContext(ctx, "dpe fetch failed", "postal_code", q.PostalCode, "err", err)
		return nil
	}

	c.memo.Add(key, recs)
	c.sharedSet(ctx, key, recs)
	return recs
}

func (c *Client) fetchUpstream(ctx context.Context, q Query) ([]model.EnergyRecord, error) {
	u := c.baseURL + "?" + buildParams(q, c.rows).Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency("ademe", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return nil, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}

	var envelope struct {
		Records []struct {
			Fields map[string]any `json:"fields"`
		} `json:"records"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode body: %w", err)
	}

	recs := make([]model.EnergyRecord, 0, len(envelope.Records))
	for _, r := range envelope.Records {
		recs = append(recs, normalize(r.Fields))
	}

	// the upstream is asked to sort, but the contract is ours to keep
	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Surface > recs[j].Surface
	})
	return recs, nil
}

func buildParams(q Query, rows int) url.Values {
	p := url.Values{}
	if len(q.DPE) > 0 {
		p.Set("etiquette_dpe_search", strings.Join(q.DPE, ","))
	}
	if len(q.GES) > 0 {
		p.Set("etiquette_ges_search", strings.Join(q.GES, ","))
	}
	p.Set("surface_habitable_logement_gte", formatSurface(q.SurfaceMin))
	p.Set("surface_habitable_logement_lte", formatSurface(q.SurfaceMax))
	p.Set("code_postal_ban_starts", q.PostalCode)
	p.Set("sort", "-surface_habitable_logement")
	p.Set("rows", strconv.Itoa(rows))
	return p
}

func cacheKey(q Query) string {
	return keys.Query("ademe",
		strings.Join(q.DPE, ","),
		strings.Join(q.GES, ","),
		formatSurface(q.SurfaceMin),
		formatSurface(q.SurfaceMax),
		q.PostalCode,
	)
}

func formatSurface(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// normalize maps one raw fields object into an EnergyRecord, falling back to
// zero values for anything missing or of an unexpected type.
func normalize(fields map[string]any) model.EnergyRecord {
	rec := model.EnergyRecord{
		Address:    asString(fields["adresse_ban"]),
		DPE:        asString(fields["etiquette_dpe"]),
		GES:        asString(fields["etiquette_ges"]),
		PostalCode: asString(fields["code_postal_ban"]),
	}
	if f, ok := asFloat(fields["surface_habitable_logement"]); ok {
		rec.Surface = f
	}
	if f, ok := asFloat(fields["latitude"]); ok {
		rec.Latitude = &f
	}
	if f, ok := asFloat(fields["longitude"]); ok {
		rec.Longitude = &f
	}
	return rec
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// asFloat tolerates numbers encoded as strings, which the upstream does for
// some coordinate fields.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func (c *Client) sharedGet(ctx context.Context, key string) ([]model.EnergyRecord, bool) {
	if c.shared == nil {
		return nil, false
	}
	b, err := c.shared.Get(ctx, key)
	if err != nil {
		c.logger.WarnContext(ctx, "shared cache get failed", "err", err)
		return nil, false
	}
	if b == nil {
		return nil, false
	}
	var recs []model.EnergyRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		c.logger.WarnContext(ctx, "shared cache entry corrupt", "key", key, "err", err)
		return nil, false
	}
	return recs, true
}

func (c *Client) sharedSet(ctx context.Context, key string, recs []model.EnergyRecord) {
	if c.shared == nil {
		return
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return
	}
	if err := c.shared.Set(ctx, key, b, c.sharedTTL); err != nil {
		c.logger.WarnContext(ctx, "shared cache set failed", "err", err)
	}
}
