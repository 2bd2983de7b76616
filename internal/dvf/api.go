package dvf

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

	"immo-explorer/internal/cache"
	"immo-explorer/internal/model"
	"immo-explorer/internal/observability"
)

// resultLimit bounds how many transactions the upstream returns per lookup.
const resultLimit = 5

// APISource queries the DVF transactions API per lookup.
type APISource struct {
	logger  *slog.Logger
	http    *http.Client
	baseURL string
	memo    *cache.Memo[model.SalePrice]
}

func NewAPISource(logger *slog.Logger, hc *http.Client, baseURL string, memo *cache.Memo[model.SalePrice]) *APISource {
	return &APISource{
		logger:  logger,
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		memo:    memo,
	}
}

func (s *APISource) LastSalePrice(ctx context.Context, postalCode, address string) model.SalePrice {
	key := cacheKey(postalCode, address)
	if p, ok := s.memo.Get(key); ok {
		return p
	}

	p, err := s.fetch(ctx, postalCode, address)
	if err != nil {
		s.logger.ErrorContext(ctx, "dvf fetch failed", "postal_code", postalCode, "err", err)
		return model.NoSalePrice()
	}

	s.memo.Add(key, p)
	return p
}

func (s *APISource) fetch(ctx context.Context, postalCode, address string) (model.SalePrice, error) {
	params := url.Values{}
	params.Set("code_postal", postalCode)
	if address != "" {
		params.Set("adresse", address)
	}
	params.Set("limit", fmt.Sprint(resultLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return model.SalePrice{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := s.http.Do(req)
	observability.ObserveUpstreamLatency("dvf", time.Since(start).Seconds())
	if err != nil {
		return model.SalePrice{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<10))
		return model.SalePrice{}, fmt.Errorf("upstream status %d: %s", resp.StatusCode, string(b))
	}

	var payload struct {
		Features []feature `json:"features"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return model.SalePrice{}, fmt.Errorf("decode body: %w", err)
	}

	return latestPrice(payload.Features), nil
}

// feature tolerates the two envelope variants the upstream has shipped:
// price and date either nested under properties or at the feature level.
type feature struct {
	Properties     map[string]any `json:"properties"`
	ValeurFonciere any            `json:"valeur_fonciere"`
	DateMutation   string         `json:"date_mutation"`
}

func (f feature) price() (float64, bool) {
	if f.Properties != nil {
		if p, ok := parsePrice(f.Properties["valeur_fonciere"]); ok {
			return p, true
		}
	}
	return parsePrice(f.ValeurFonciere)
}

func (f feature) date() string {
	if f.Properties != nil {
		if s, ok := f.Properties["date_mutation"].(string); ok && s != "" {
			return s
		}
	}
	return f.DateMutation
}

// latestPrice picks the priced feature with the greatest mutation date.
// Dates are ISO formatted, so string order is date order.
func latestPrice(features []feature) model.SalePrice {
	best := model.NoSalePrice()
	bestDate := ""
	for _, f := range features {
		p, ok := f.price()
		if !ok {
			continue
		}
		d := f.date()
		if !best.Available || d > bestDate {
			best = model.SalePrice{Amount: p, Available: true}
			bestDate = d
		}
	}
	return best
}
