// Package dvf looks up historical sale prices (DVF transactions) for an
// address. Two sources exist: the live transactions API and a bulk
// delimited-text dataset filtered locally.
package dvf

import (
	"context"
	"strconv"
	"strings"

	"immo-explorer/internal/cache/keys"
	"immo-explorer/internal/model"
)

// Source returns the most recent sale price for the closest matching address,
// or the "not available" sentinel. Implementations never return errors; a
// failed lookup degrades to an unavailable price.
type Source interface {
	LastSalePrice(ctx context.Context, postalCode, address string) model.SalePrice
}

func cacheKey(postalCode, address string) string {
	return keys.Query("dvf", postalCode, address)
}

func parsePrice(v any) (float64, bool) {
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
