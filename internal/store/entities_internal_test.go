package store

import "testing"

func TestUnionSetDedupesAndPreservesNameFirst(t *testing.T) {
	got := unionSet("Wudu", []string{"Woudou", "Wudu", "Ablutions"})
	want := []string{"Wudu", "Woudou", "Ablutions"}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d (%v)", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestIntersectionSizeCountsSharedMembers(t *testing.T) {
	a := toSet([]string{"Wudu", "Woudou"})
	b := toSet([]string{"Wudu", "Ablutions"})
	if n := intersectionSize(a, b); n != 1 {
		t.Fatalf("intersectionSize = %d, want 1", n)
	}
}

func TestIntersectionSizeNoOverlap(t *testing.T) {
	a := toSet([]string{"X"})
	b := toSet([]string{"Y"})
	if n := intersectionSize(a, b); n != 0 {
		t.Fatalf("intersectionSize = %d, want 0", n)
	}
}
