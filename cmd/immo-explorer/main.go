package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"immo-explorer/internal/ademe"
	"immo-explorer/internal/cache"
	"immo-explorer/internal/cache/redisstore"
	"immo-explorer/internal/composer"
	"immo-explorer/internal/config"
	"immo-explorer/internal/dvf"
	"immo-explorer/internal/filterstore"
	"immo-explorer/internal/geocode"
	"immo-explorer/internal/httpclient"
	"immo-explorer/internal/logger"
	"immo-explorer/internal/model"
	"immo-explorer/internal/observability"
	"immo-explorer/internal/search"
	"immo-explorer/internal/server"
)

var Version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	_ = godotenv.Load()

	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Component: "immo-explorer",
	}, os.Stdout)
	appLog := logger.NewSlog(&zl)

	observability.ExposeBuildInfo(Version)
	appLog.Info("starting immo-explorer",
		"addr", cfg.Addr,
		"version", Version,
		"dvf_mode", cfg.DVFMode)

	httpClient := httpclient.NewOutbound(cfg.RequestTimeout)

	recordMemo := cache.NewMemo[[]model.EnergyRecord]("ademe", cfg.CacheSize, cfg.CacheTTL)
	priceMemo := cache.NewMemo[model.SalePrice]("dvf", cfg.CacheSize, cfg.CacheTTL)

	var ademeOpts []ademe.Option
	if cfg.CacheRedisAddr != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		shared, err := redisstore.New(ctx, cfg.CacheRedisAddr)
		cancel()
		if err != nil {
			// the in-process memo still works; run degraded
			appLog.Warn("shared cache unavailable", "addr", cfg.CacheRedisAddr, "err", err)
		} else {
			defer func() { _ = shared.Close() }()
			ademeOpts = append(ademeOpts, ademe.WithSharedCache(shared, cfg.CacheTTL))
		}
	}

	records := ademe.New(appLog, httpClient, cfg.AdemeBaseURL, cfg.RowLimit, recordMemo, ademeOpts...)

	var prices dvf.Source
	if cfg.DVFMode == "bulk" && cfg.DVFBulkURL != "" {
		prices = dvf.NewBulkSource(appLog, httpClient, cfg.DVFBulkURL, priceMemo)
	} else {
		prices = dvf.NewAPISource(appLog, httpClient, cfg.DVFBaseURL, priceMemo)
	}

	geocoder := geocode.New(appLog, httpClient, cfg.NominatimBaseURL, cfg.GeoAPIBaseURL, cfg.UserAgent, cfg.GeocodeTimeout)
	store := filterstore.New(cfg.FiltersFile)
	comp := composer.New(appLog, prices, geocoder)
	svc := search.New(appLog, records, store, search.Defaults(cfg.DefaultPostalCode))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, cfg, appLog, server.Deps{
		Search:   svc,
		Composer: comp,
		Filters:  store,
		Geocoder: geocoder,
	}); err != nil {
		appLog.Error("server failed", "err", err)
		return 1
	}
	return 0
}
