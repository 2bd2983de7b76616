package search

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"reflect"
	"testing"

	"immo-explorer/internal/ademe"
	"immo-explorer/internal/filterstore"
	"immo-explorer/internal/model"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeRecords struct {
	queries []ademe.Query
	perCode map[string][]model.EnergyRecord
}

func (f *fakeRecords) Fetch(_ context.Context, q ademe.Query) []model.EnergyRecord {
	f.queries = append(f.queries, q)
	return f.perCode[q.PostalCode]
}

func newService(t *testing.T) (*Service, *fakeRecords, *filterstore.Store) {
	t.Helper()
	store := filterstore.New(filepath.Join(t.TempDir(), "filters.json"))
	records := &fakeRecords{perCode: map[string][]model.EnergyRecord{}}
	svc := New(testLogger(), records, store, Defaults("01"))
	return svc, records, store
}

func TestReconcile_DefaultsWhenNothingGiven(t *testing.T) {
	svc, _, _ := newService(t)

	fs := svc.Reconcile(FilterPatch{}, "")
	want := Defaults("01")
	if !reflect.DeepEqual(fs, want) {
		t.Fatalf("got %+v want defaults %+v", fs, want)
	}
}

func TestReconcile_SavedOverridesDefaults(t *testing.T) {
	svc, _, store := newService(t)

	saved := model.FilterSet{
		DPE:         []string{"A", "B"},
		GES:         []string{"C"},
		SurfaceMin:  50,
		SurfaceMax:  120,
		PostalCodes: []string{"69001"},
	}
	if err := store.Save("mine", saved); err != nil {
		t.Fatalf("Save: %v", err)
	}

	fs := svc.Reconcile(FilterPatch{}, "mine")
	if !reflect.DeepEqual(fs, saved) {
		t.Fatalf("got %+v want saved %+v", fs, saved)
	}
}

func TestReconcile_PatchWinsOverSaved(t *testing.T) {
	svc, _, store := newService(t)

	if err := store.Save("mine", model.FilterSet{
		DPE:         []string{"A"},
		GES:         []string{"A"},
		SurfaceMin:  50,
		SurfaceMax:  120,
		PostalCodes: []string{"69001"},
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	smax := 300.0
	fs := svc.Reconcile(FilterPatch{DPE: []string{"F"}, SurfaceMax: &smax}, "mine")

	if !reflect.DeepEqual(fs.DPE, []string{"F"}) {
		t.Fatalf("patch dpe lost: %+v", fs.DPE)
	}
	if fs.SurfaceMax != 300 {
		t.Fatalf("patch surface lost: %v", fs.SurfaceMax)
	}
	// untouched fields keep the saved values
	if !reflect.DeepEqual(fs.GES, []string{"A"}) || fs.SurfaceMin != 50 || !reflect.DeepEqual(fs.PostalCodes, []string{"69001"}) {
		t.Fatalf("saved fields lost: %+v", fs)
	}
}

func TestReconcile_UnknownSavedNameFallsThrough(t *testing.T) {
	svc, _, _ := newService(t)

	fs := svc.Reconcile(FilterPatch{}, "no-such")
	if !reflect.DeepEqual(fs, Defaults("01")) {
		t.Fatalf("unknown saved name must keep defaults, got %+v", fs)
	}
}

func TestReconcile_PostalCodesNeverEmpty(t *testing.T) {
	store := filterstore.New(filepath.Join(t.TempDir(), "filters.json"))
	if err := store.Save("empty-cp", model.FilterSet{DPE: []string{"D"}}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	svc := New(testLogger(), &fakeRecords{}, store, Defaults("01"))

	fs := svc.Reconcile(FilterPatch{}, "empty-cp")
	if !reflect.DeepEqual(fs.PostalCodes, []string{"01"}) {
		t.Fatalf("postal codes must fall back to default, got %v", fs.PostalCodes)
	}
}

func TestSearch_FansOutPerPostalCode(t *testing.T) {
	svc, records, _ := newService(t)
	records.perCode["69"] = []model.EnergyRecord{{Address: "a"}, {Address: "b"}}
	records.perCode["75"] = []model.EnergyRecord{{Address: "c"}}

	fs := model.FilterSet{
		DPE:         []string{"D"},
		SurfaceMax:  500,
		PostalCodes: []string{"69", "75", "13"},
	}
	recs := svc.Search(context.Background(), fs)

	if len(records.queries) != 3 {
		t.Fatalf("fetched %d times want 3", len(records.queries))
	}
	if len(recs) != 3 {
		t.Fatalf("got %d records want 3", len(recs))
	}
	for _, q := range records.queries {
		if !reflect.DeepEqual(q.DPE, fs.DPE) || q.SurfaceMax != 500 {
			t.Fatalf("criteria not forwarded: %+v", q)
		}
	}
}
