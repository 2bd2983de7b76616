package keys

import (
	"strings"
	"testing"
)

func TestQuery_DistinctTuplesDistinctKeys(t *testing.T) {
	a := Query("ademe", "D,E", "D", "0", "500", "75")
	b := Query("ademe", "E,D", "D", "0", "500", "75")
	if a == b {
		t.Fatalf("parameter order must not be canonicalized: %q", a)
	}

	c := Query("ademe", "D,E", "D", "0", "500", "75")
	if a != c {
		t.Fatalf("identical tuples must share a key: %q vs %q", a, c)
	}
}

func TestQuery_PartBoundariesMatter(t *testing.T) {
	// ("ab","c") and ("a","bc") must not collide
	a := Query("dvf", "ab", "c")
	b := Query("dvf", "a", "bc")
	if a == b {
		t.Fatalf("joined parts collided: %q", a)
	}
}

func TestQuery_KeyIsSafeAndBounded(t *testing.T) {
	long := strings.Repeat("12 rue de la République, Lyon ", 20)
	k := Query("dvf", "69001", long)
	if len(k) > 200 {
		t.Fatalf("key too long: %d", len(k))
	}
	for _, r := range k {
		if r == ' ' || r > 127 {
			t.Fatalf("unsafe rune %q in key %q", r, k)
		}
	}
	if !strings.HasPrefix(k, "dvf:") {
		t.Fatalf("missing source prefix: %q", k)
	}
}
