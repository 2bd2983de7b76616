package dvf

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"immo-explorer/internal/cache"
	"immo-explorer/internal/model"
	"immo-explorer/internal/observability"
)

// BulkSource downloads the full delimited-text DVF dataset once and answers
// lookups by filtering it locally: postal-code prefix match, address
// substring match, newest transactions first, top 5 considered.
type BulkSource struct {
	logger *slog.Logger
	http   *http.Client
	url    string
	memo   *cache.Memo[model.SalePrice]

	rows []bulkRow // nil until the first successful download
}

type bulkRow struct {
	date       string
	price      float64
	postalCode string
	address    string
}

func NewBulkSource(logger *slog.Logger, hc *http.Client, url string, memo *cache.Memo[model.SalePrice]) *BulkSource {
	return &BulkSource{
		logger: logger,
		http:   hc,
		url:    url,
		memo:   memo,
	}
}

func (s *BulkSource) LastSalePrice(ctx context.Context, postalCode, address string) model.SalePrice {
	key := cacheKey(postalCode, address)
	if p, ok := s.memo.Get(key); ok {
		return p
	}

	if s.rows == nil {
		rows, err := s.download(ctx)
		if err != nil {
			s.logger.ErrorContext(ctx, "dvf bulk download failed", "err", err)
			return model.NoSalePrice()
		}
		s.rows = rows
	}

	p := s.filter(postalCode, address)
	s.memo.Add(key, p)
	return p
}

func (s *BulkSource) filter(postalCode, address string) model.SalePrice {
	addrNeedle := strings.ToLower(strings.TrimSpace(address))

	var matched []bulkRow
	for _, r := range s.rows {
		if !strings.HasPrefix(r.postalCode, postalCode) {
			continue
		}
		if addrNeedle != "" && !strings.Contains(strings.ToLower(r.address), addrNeedle) {
			continue
		}
		matched = append(matched, r)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].date > matched[j].date
	})
	if len(matched) > resultLimit {
		matched = matched[:resultLimit]
	}

	if len(matched) == 0 {
		return model.NoSalePrice()
	}
	return model.SalePrice{Amount: matched[0].price, Available: true}
}

func (s *BulkSource) download(ctx context.Context) ([]bulkRow, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	start := time.Now()
	resp, err := s.http.Do(req)
	observability.ObserveUpstreamLatency("dvf_bulk", time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
	}

	rd := csv.NewReader(resp.Body)
	rd.FieldsPerRecord = -1

	header, err := rd.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	dateIdx, ok := col["date_mutation"]
	if !ok {
		return nil, fmt.Errorf("missing date_mutation column")
	}
	priceIdx, ok := col["valeur_fonciere"]
	if !ok {
		return nil, fmt.Errorf("missing valeur_fonciere column")
	}
	cpIdx, ok := col["code_postal"]
	if !ok {
		return nil, fmt.Errorf("missing code_postal column")
	}
	addrIdx, ok := col["adresse_nom_voie"]
	if !ok {
		addrIdx, ok = col["adresse"]
		if !ok {
			return nil, fmt.Errorf("missing address column")
		}
	}

	var rows []bulkRow
	for {
		rec, err := rd.Read()
		if err != nil {
			break // EOF or a torn row; keep what parsed
		}
		if len(rec) <= dateIdx || len(rec) <= priceIdx || len(rec) <= cpIdx || len(rec) <= addrIdx {
			continue
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(rec[priceIdx]), 64)
		if err != nil {
			continue
		}
		rows = append(rows, bulkRow{
			date:       rec[dateIdx],
			price:      price,
			postalCode: rec[cpIdx],
			address:    rec[addrIdx],
		})
	}

	s.logger.InfoContext(ctx, "dvf bulk dataset loaded", "rows", len(rows))
	return rows, nil
}
