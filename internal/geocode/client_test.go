package geocode

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestReversePostalCode_ParsesPostcodeAndSendsUserAgent(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path != "/reverse" {
			t.Errorf("path=%q want /reverse", r.URL.Path)
		}
		if r.URL.Query().Get("addressdetails") != "1" {
			t.Errorf("addressdetails missing")
		}
		_, _ = w.Write([]byte(`{"address":{"postcode":"69002","city":"Lyon"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(testLogger(), srv.Client(), srv.URL, srv.URL, "immo-explorer-test/1.0", time.Second)

	pc := c.ReversePostalCode(context.Background(), 45.75, 4.83)
	if pc != "69002" {
		t.Fatalf("postcode=%q want 69002", pc)
	}
	if gotUA != "immo-explorer-test/1.0" {
		t.Fatalf("user agent=%q", gotUA)
	}
}

func TestReversePostalCode_FailureIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)

	c := New(testLogger(), srv.Client(), srv.URL, srv.URL, "ua", time.Second)
	if pc := c.ReversePostalCode(context.Background(), 45.75, 4.83); pc != "" {
		t.Fatalf("failure must yield empty postcode, got %q", pc)
	}
}

func TestReversePostalCode_MissingPostcodeIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"address":{"city":"Lyon"}}`))
	}))
	t.Cleanup(srv.Close)

	c := New(testLogger(), srv.Client(), srv.URL, srv.URL, "ua", time.Second)
	if pc := c.ReversePostalCode(context.Background(), 45.75, 4.83); pc != "" {
		t.Fatalf("missing postcode must be empty, got %q", pc)
	}
}

func TestCommuneBoundaries_ReturnsGeoJSON(t *testing.T) {
	doc := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[4.8,45.7],[4.9,45.7],[4.9,45.8],[4.8,45.7]]]}}]}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/communes" {
			t.Errorf("path=%q want /communes", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("codePostal") != "69002" || q.Get("format") != "geojson" || q.Get("geometry") != "contour" {
			t.Errorf("unexpected query %v", q)
		}
		_, _ = w.Write([]byte(doc))
	}))
	t.Cleanup(srv.Close)

	c := New(testLogger(), srv.Client(), srv.URL, srv.URL, "ua", time.Second)
	got := c.CommuneBoundaries(context.Background(), "69002")
	if string(got) != doc {
		t.Fatalf("boundaries=%q", got)
	}
}

func TestCommuneBoundaries_FailureIsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	t.Cleanup(srv.Close)

	c := New(testLogger(), srv.Client(), srv.URL, srv.URL, "ua", time.Second)
	if got := c.CommuneBoundaries(context.Background(), "69002"); got != nil {
		t.Fatalf("non-json body must yield nil, got %q", got)
	}
}
