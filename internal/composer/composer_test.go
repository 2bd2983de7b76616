package composer

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"immo-explorer/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f(v float64) *float64 { return &v }

type countingPrices struct {
	calls int
	price model.SalePrice
}

func (c *countingPrices) LastSalePrice(_ context.Context, _, _ string) model.SalePrice {
	c.calls++
	return c.price
}

type fakeBoundaries struct {
	calls []string
	geom  json.RawMessage
}

func (b *fakeBoundaries) CommuneBoundaries(_ context.Context, postalCode string) json.RawMessage {
	b.calls = append(b.calls, postalCode)
	return b.geom
}

func TestCompose_SkipsRecordsMissingCoordinates(t *testing.T) {
	c := New(testLogger(), nil, nil)

	records := []model.EnergyRecord{
		{Address: "a", Latitude: f(45.7), Longitude: f(4.8)},
		{Address: "no-lat", Longitude: f(4.8)},
		{Address: "no-lon", Latitude: f(45.7)},
		{Address: "b", Latitude: f(48.8), Longitude: f(2.3)},
	}

	view := c.Compose(context.Background(), records, Options{})
	if len(view.Markers.Features) != 2 {
		t.Fatalf("got %d markers want 2", len(view.Markers.Features))
	}
	if view.Markers.Features[0].Properties.Address != "a" || view.Markers.Features[1].Properties.Address != "b" {
		t.Fatalf("valid records affected by skipped ones: %+v", view.Markers.Features)
	}
	// GeoJSON order is lon,lat
	if got := view.Markers.Features[0].Geometry.Coordinates; got != [2]float64{4.8, 45.7} {
		t.Fatalf("coordinates=%v", got)
	}
}

func TestCompose_PriceLookupPerUniqueAddress(t *testing.T) {
	prices := &countingPrices{price: model.SalePrice{Amount: 200000, Available: true}}
	c := New(testLogger(), prices, nil)

	records := []model.EnergyRecord{
		{Address: "1 rue A", PostalCode: "69001", Latitude: f(45.7), Longitude: f(4.8)},
		{Address: "1 rue A", PostalCode: "69001", Latitude: f(45.7), Longitude: f(4.8)},
		{Address: "2 rue B", PostalCode: "69001", Latitude: f(45.8), Longitude: f(4.9)},
	}

	view := c.Compose(context.Background(), records, Options{EnrichPrices: true})
	if prices.calls != 2 {
		t.Fatalf("price source called %d times want 2 (one per unique address)", prices.calls)
	}
	for i, ft := range view.Markers.Features {
		if ft.Properties.SalePrice == nil || !ft.Properties.SalePrice.Available {
			t.Fatalf("marker %d missing price: %+v", i, ft.Properties)
		}
	}
}

func TestCompose_NoEnrichmentNoLookups(t *testing.T) {
	prices := &countingPrices{}
	c := New(testLogger(), prices, nil)

	records := []model.EnergyRecord{
		{Address: "1 rue A", Latitude: f(45.7), Longitude: f(4.8)},
	}

	view := c.Compose(context.Background(), records, Options{})
	if prices.calls != 0 {
		t.Fatalf("price source called %d times want 0", prices.calls)
	}
	if view.Markers.Features[0].Properties.SalePrice != nil {
		t.Fatal("unexpected price on marker")
	}
}

func TestCompose_CadastralOverlayOnlyWhenFlagged(t *testing.T) {
	c := New(testLogger(), nil, nil)

	plain := c.Compose(context.Background(), nil, Options{})
	if len(plain.Overlays) != 0 {
		t.Fatalf("unexpected overlays: %+v", plain.Overlays)
	}

	withCad := c.Compose(context.Background(), nil, Options{Cadastral: true})
	if len(withCad.Overlays) != 1 {
		t.Fatalf("got %d overlays want 1", len(withCad.Overlays))
	}
	ov := withCad.Overlays[0]
	if ov.Kind != "wms" || ov.Layers != "CADASTRALPARCELLES" || !ov.Transparent {
		t.Fatalf("cadastral overlay malformed: %+v", ov)
	}
}

func TestCompose_CommuneOverlaysPerPostalCode(t *testing.T) {
	b := &fakeBoundaries{geom: json.RawMessage(`{"type":"FeatureCollection","features":[]}`)}
	c := New(testLogger(), nil, b)

	view := c.Compose(context.Background(), nil, Options{Communes: true, PostalCodes: []string{"69001", "69002"}})
	if len(b.calls) != 2 {
		t.Fatalf("boundary source called for %v want both codes", b.calls)
	}
	if len(view.Overlays) != 2 {
		t.Fatalf("got %d overlays want 2", len(view.Overlays))
	}
}

func TestCompose_CommuneOverlayNeedsPostalCodes(t *testing.T) {
	b := &fakeBoundaries{geom: json.RawMessage(`{}`)}
	c := New(testLogger(), nil, b)

	view := c.Compose(context.Background(), nil, Options{Communes: true})
	if len(b.calls) != 0 || len(view.Overlays) != 0 {
		t.Fatalf("commune overlay produced without postal codes: %+v", view.Overlays)
	}
}

func TestCompose_FailedBoundaryFetchSkipped(t *testing.T) {
	b := &fakeBoundaries{geom: nil}
	c := New(testLogger(), nil, b)

	view := c.Compose(context.Background(), nil, Options{Communes: true, PostalCodes: []string{"69001"}})
	if len(view.Overlays) != 0 {
		t.Fatalf("nil geometry must not become an overlay: %+v", view.Overlays)
	}
}
