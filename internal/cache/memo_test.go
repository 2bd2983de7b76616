package cache

import (
	"fmt"
	"testing"
	"time"
)

func TestMemo_GetAdd(t *testing.T) {
	m := NewMemo[int]("test", 4, 0)

	if _, ok := m.Get("a"); ok {
		t.Fatal("empty cache returned a hit")
	}

	m.Add("a", 1)
	v, ok := m.Get("a")
	if !ok || v != 1 {
		t.Fatalf("got (%d,%v) want (1,true)", v, ok)
	}
}

func TestMemo_CapacityEviction(t *testing.T) {
	m := NewMemo[int]("test", 2, 0)

	m.Add("a", 1)
	m.Add("b", 2)
	m.Add("c", 3) // evicts "a", the least recently used

	if _, ok := m.Get("a"); ok {
		t.Fatal("oldest entry survived eviction")
	}
	if _, ok := m.Get("b"); !ok {
		t.Fatal("recent entry evicted")
	}
	if _, ok := m.Get("c"); !ok {
		t.Fatal("newest entry evicted")
	}
	if m.Len() != 2 {
		t.Fatalf("len=%d want 2", m.Len())
	}
}

func TestMemo_TTLExpiry(t *testing.T) {
	m := NewMemo[int]("test", 8, 20*time.Millisecond)

	m.Add("a", 1)
	if _, ok := m.Get("a"); !ok {
		t.Fatal("fresh entry missing")
	}

	time.Sleep(60 * time.Millisecond)
	if _, ok := m.Get("a"); ok {
		t.Fatal("expired entry still served")
	}
}

func TestMemo_DefaultSize(t *testing.T) {
	m := NewMemo[string]("test", 0, 0)
	for i := 0; i < 64; i++ {
		m.Add(fmt.Sprintf("k%d", i), "v")
	}
	if m.Len() > 32 {
		t.Fatalf("default capacity not enforced: len=%d", m.Len())
	}
}
