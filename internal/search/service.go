// Package search reconciles filter criteria and fans queries out per postal
// code.
package search

import (
	"context"
	"log/slog"

	"immo-explorer/internal/ademe"
	"immo-explorer/internal/filterstore"
	"immo-explorer/internal/model"
)

// RecordSource is the energy-record fetcher seam.
type RecordSource interface {
	Fetch(ctx context.Context, q ademe.Query) []model.EnergyRecord
}

// FilterPatch carries the criteria a request supplied explicitly. Nil/empty
// fields mean "not given" and fall through to the saved or default value.
type FilterPatch struct {
	DPE         []string
	GES         []string
	SurfaceMin  *float64
	SurfaceMax  *float64
	PostalCodes []string
}

type Service struct {
	logger   *slog.Logger
	records  RecordSource
	store    *filterstore.Store
	defaults model.FilterSet
}

// Defaults mirrors the filters the dashboard starts with.
func Defaults(postalCode string) model.FilterSet {
	return model.FilterSet{
		DPE:         []string{"D"},
		GES:         []string{"D"},
		SurfaceMin:  0,
		SurfaceMax:  500,
		PostalCodes: []string{postalCode},
	}
}

func New(logger *slog.Logger, records RecordSource, store *filterstore.Store, defaults model.FilterSet) *Service {
	return &Service{
		logger:   logger,
		records:  records,
		store:    store,
		defaults: defaults,
	}
}

// Reconcile merges criteria, most specific first: the request patch wins over
// the named saved filter-set, which wins over the defaults. The postal-code
// list is never left empty; it falls back to the default codes.
func (s *Service) Reconcile(patch FilterPatch, savedName string) model.FilterSet {
	out := s.defaults

	if savedName != "" {
		saved, err := s.store.Load()
		if err != nil {
			s.logger.Warn("filter store unreadable, using defaults", "err", err)
		} else if fs, ok := saved[savedName]; ok {
			out = fs
		} else {
			s.logger.Warn("saved filter not found", "name", savedName)
		}
	}

	if len(patch.DPE) > 0 {
		out.DPE = patch.DPE
	}
	if len(patch.GES) > 0 {
		out.GES = patch.GES
	}
	if patch.SurfaceMin != nil {
		out.SurfaceMin = *patch.SurfaceMin
	}
	if patch.SurfaceMax != nil {
		out.SurfaceMax = *patch.SurfaceMax
	}
	if len(patch.PostalCodes) > 0 {
		out.PostalCodes = patch.PostalCodes
	}

	if len(out.PostalCodes) == 0 {
		out.PostalCodes = s.defaults.PostalCodes
	}
	return out
}

// Search runs one fetch per postal code and concatenates the results. A
// failing code contributes nothing; the pass still renders.
func (s *Service) Search(ctx context.Context, fs model.FilterSet) []model.EnergyRecord {
	var out []model.EnergyRecord
	for _, cp := range fs.PostalCodes {
		recs := s.records.Fetch(ctx, ademe.Query{
			DPE:        fs.DPE,
			GES:        fs.GES,
			SurfaceMin: fs.SurfaceMin,
			SurfaceMax: fs.SurfaceMax,
			PostalCode: cp,
		})
		out = append(out, recs...)
	}
	return out
}
