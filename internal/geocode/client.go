// Package geocode resolves map coordinates to postal codes (Nominatim) and
// postal codes to commune boundary geometries (geo.api.gouv.fr). Both are
// single best-effort calls with no retry.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"immo-explorer/internal/observability"
)

type Client struct {
	logger        *slog.Logger
	http          *http.Client
	nominatimBase string
	geoAPIBase    string
	userAgent     string
	timeout       time.Duration
}

func New(logger *slog.Logger, hc *http.Client, nominatimBase, geoAPIBase, userAgent string, timeout time.Duration) *Client {
	return &Client{
		logger:        logger,
		http:          hc,
		nominatimBase: strings.TrimRight(nominatimBase, "/"),
		geoAPIBase:    strings.TrimRight(geoAPIBase, "/"),
		userAgent:     userAgent,
		timeout:       timeout,
	}
}

// ReversePostalCode resolves a coordinate pair to a postal code, or "" when
// the lookup fails for any reason.
func (c *Client) ReversePostalCode(ctx context.Context, lat, lon float64) string {
	params := url.Values{}
	params.Set("lat", fmt.Sprintf("%f", lat))
	params.Set("lon", fmt.Sprintf("%f", lon))
	params.Set("format", "json")
	params.Set("addressdetails", "1")

	body, err := c.get(ctx, c.nominatimBase+"/reverse?"+params.Encode(), "nominatim")
	if err != nil {
		c.logger.WarnContext(ctx, "reverse geocode failed", "lat", lat, "lon", lon, "err", err)
		return ""
	}

	var payload struct {
		Address struct {
			Postcode string `json:"postcode"`
		} `json:"address"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		c.logger.WarnContext(ctx, "reverse geocode decode failed", "err", err)
		return ""
	}
	return payload.Address.Postcode
}

// CommuneBoundaries returns the contour geometries of the communes matching a
// postal code as a GeoJSON document, or nil on failure.
func (c *Client) CommuneBoundaries(ctx context.Context, postalCode string) json.RawMessage {
	params := url.Values{}
	params.Set("codePostal", postalCode)
	params.Set("format", "geojson")
	params.Set("geometry", "contour")

	body, err := c.get(ctx, c.geoAPIBase+"/communes?"+params.Encode(), "geo_api")
	if err != nil {
		c.logger.WarnContext(ctx, "commune boundary fetch failed", "postal_code", postalCode, "err", err)
		return nil
	}
	if !json.Valid(body) {
		c.logger.WarnContext(ctx, "commune boundary response not json", "postal_code", postalCode)
		return nil
	}
	return json.RawMessage(body)
}

func (c *Client) get(ctx context.Context, u, upstream string) ([]byte, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// Nominatim rejects anonymous clients
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	observability.ObserveUpstreamLatency(upstream, time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return b, nil
}
