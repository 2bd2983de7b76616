// Package composer builds the map view served to clients: one marker per
// record with coordinates, plus optional cadastral and commune overlays.
package composer

import (
	"context"
	"encoding/json"
	"log/slog"

	"immo-explorer/internal/model"
)

// PriceSource enriches markers with the last known sale price.
type PriceSource interface {
	LastSalePrice(ctx context.Context, postalCode, address string) model.SalePrice
}

// BoundarySource provides commune contour geometries per postal code.
type BoundarySource interface {
	CommuneBoundaries(ctx context.Context, postalCode string) json.RawMessage
}

// Options select what goes on the map beyond the bare markers.
type Options struct {
	EnrichPrices bool
	Cadastral    bool
	Communes     bool
	PostalCodes  []string
}

// MapView is the render-ready document for a single compose pass.
type MapView struct {
	Markers  FeatureCollection `json:"markers"`
	Overlays []Overlay         `json:"overlays,omitempty"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

type Feature struct {
	Type       string           `json:"type"`
	Geometry   Point            `json:"geometry"`
	Properties MarkerProperties `json:"properties"`
}

type Point struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"` // lon, lat
}

type MarkerProperties struct {
	Address   string           `json:"address"`
	DPE       string           `json:"dpe"`
	GES       string           `json:"ges"`
	Surface   float64          `json:"surface"`
	SalePrice *model.SalePrice `json:"sale_price,omitempty"`
}

type Overlay struct {
	Kind        string          `json:"kind"` // "wms" or "geojson"
	Name        string          `json:"name"`
	URL         string          `json:"url,omitempty"`
	Layers      string          `json:"layers,omitempty"`
	Format      string          `json:"format,omitempty"`
	Transparent bool            `json:"transparent,omitempty"`
	Geometry    json.RawMessage `json:"geometry,omitempty"`
}

const (
	cadastralWMSURL   = "https://wxs.ign.fr/cadastre/geoportail/wms"
	cadastralWMSLayer = "CADASTRALPARCELLES"
)

type Composer struct {
	logger     *slog.Logger
	prices     PriceSource
	boundaries BoundarySource
}

func New(logger *slog.Logger, prices PriceSource, boundaries BoundarySource) *Composer {
	return &Composer{
		logger:     logger,
		prices:     prices,
		boundaries: boundaries,
	}
}

// Compose builds a MapView from normalized records. Records missing either
// coordinate are skipped silently. Price lookups are made once per unique
// (postal code, address) pair, not once per marker.
func (c *Composer) Compose(ctx context.Context, records []model.EnergyRecord, opts Options) MapView {
	view := MapView{
		Markers: FeatureCollection{
			Type:     "FeatureCollection",
			Features: make([]Feature, 0, len(records)),
		},
	}

	var priced map[[2]string]model.SalePrice
	if opts.EnrichPrices && c.prices != nil {
		priced = make(map[[2]string]model.SalePrice)
	}

	for _, rec := range records {
		if !rec.HasCoordinates() {
			continue
		}

		props := MarkerProperties{
			Address: rec.Address,
			DPE:     rec.DPE,
			GES:     rec.GES,
			Surface: rec.Surface,
		}

		if priced != nil {
			key := [2]string{rec.PostalCode, rec.Address}
			p, ok := priced[key]
			if !ok {
				p = c.prices.LastSalePrice(ctx, rec.PostalCode, rec.Address)
				priced[key] = p
			}
			props.SalePrice = &p
		}

		view.Markers.Features = append(view.Markers.Features, Feature{
			Type: "Feature",
			Geometry: Point{
				Type:        "Point",
				Coordinates: [2]float64{*rec.Longitude, *rec.Latitude},
			},
			Properties: props,
		})
	}

	if opts.Cadastral {
		view.Overlays = append(view.Overlays, Overlay{
			Kind:        "wms",
			Name:        "Parcelles cadastrales",
			URL:         cadastralWMSURL,
			Layers:      cadastralWMSLayer,
			Format:      "image/png",
			Transparent: true,
		})
	}

	if opts.Communes && c.boundaries != nil {
		for _, cp := range opts.PostalCodes {
			geom := c.boundaries.CommuneBoundaries(ctx, cp)
			if geom == nil {
				continue
			}
			view.Overlays = append(view.Overlays, Overlay{
				Kind:     "geojson",
				Name:     "Communes " + cp,
				Geometry: geom,
			})
		}
	}

	return view
}
