// Package server wires the HTTP surface and runs it until shutdown.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"immo-explorer/internal/composer"
	"immo-explorer/internal/config"
	"immo-explorer/internal/filterstore"
	"immo-explorer/internal/geocode"
	"immo-explorer/internal/health"
	"immo-explorer/internal/middleware"
	"immo-explorer/internal/router"
	"immo-explorer/internal/search"
)

// Deps are the constructed components the HTTP surface exposes.
type Deps struct {
	Search   *search.Service
	Composer *composer.Composer
	Filters  *filterstore.Store
	Geocoder *geocode.Client
}

// Routes builds the full handler tree; split out from Run so tests can drive
// it with httptest.
func Routes(logger *slog.Logger, d Deps) http.Handler {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(logger))
	r.Use(middleware.CORS())

	r.Get("/healthz", health.Liveness())
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Get("/search", router.HandleSearch(logger, d.Search))
	r.Get("/map", router.HandleMap(logger, d.Search, d.Composer))

	r.Get("/filters", router.HandleListFilters(logger, d.Filters))
	r.Put("/filters/{name}", router.HandleSaveFilter(logger, d.Filters, validate))
	r.Delete("/filters/{name}", router.HandleDeleteFilter(logger, d.Filters))

	r.Get("/geocode/reverse", router.HandleReverseGeocode(logger, d.Geocoder))

	return r
}

// Run serves until the context is canceled.
func Run(ctx context.Context, cfg config.Config, logger *slog.Logger, d Deps) error {
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           Routes(logger, d),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
