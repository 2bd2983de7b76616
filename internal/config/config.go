// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr     string
	LogLevel string

	AdemeBaseURL string
	DVFMode      string // "api" or "bulk"
	DVFBaseURL   string
	DVFBulkURL   string

	NominatimBaseURL string
	GeoAPIBaseURL    string
	UserAgent        string

	RequestTimeout time.Duration
	GeocodeTimeout time.Duration

	CacheSize      int
	CacheTTL       time.Duration
	CacheRedisAddr string

	RowLimit          int
	FiltersFile       string
	DefaultPostalCode string
}

func FromEnv() Config {
	rows := getint("ROW_LIMIT", 100)
	if rows < 1 {
		rows = 100
	}
	if rows > 1000 {
		rows = 1000
	}

	mode := strings.ToLower(getenv("DVF_MODE", "api"))
	if mode != "bulk" {
		mode = "api"
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		AdemeBaseURL: getenv("ADEME_BASE_URL", "https://data.ademe.fr/data-fair/api/v1/datasets/dpe03existant/full"),
		DVFMode:      mode,
		DVFBaseURL:   getenv("DVF_BASE_URL", "https://api.dvf.etalab.gouv.fr/parcelles"),
		DVFBulkURL:   getenv("DVF_BULK_URL", ""),

		NominatimBaseURL: getenv("NOMINATIM_BASE_URL", "https://nominatim.openstreetmap.org"),
		GeoAPIBaseURL:    getenv("GEO_API_BASE_URL", "https://geo.api.gouv.fr"),
		UserAgent:        getenv("USER_AGENT", "immo-explorer/1.0"),

		RequestTimeout: getduration("REQUEST_TIMEOUT", 10*time.Second),
		GeocodeTimeout: getduration("GEOCODE_TIMEOUT", 5*time.Second),

		CacheSize:      getint("CACHE_SIZE", 32),
		CacheTTL:       getduration("CACHE_TTL", 0),
		CacheRedisAddr: getenv("CACHE_REDIS_ADDR", ""),

		RowLimit:          rows,
		FiltersFile:       getenv("FILTERS_FILE", "saved_filters.json"),
		DefaultPostalCode: getenv("DEFAULT_POSTAL_CODE", "01"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
