package geom

import (
	"math"
	"testing"
)

func TestNormalizeZeroVector(t *testing.T) {
	if got := Normalize(Vec2{}); got != (Vec2{}) {
		t.Fatalf("expected zero vector, got %v", got)
	}
	got := Normalize(V(3, 4))
	if math.Abs(got.Len()-1) > 1e-9 {
		t.Fatalf("expected unit length, got %v", got.Len())
	}
}

func TestSaturatedAdd(t *testing.T) {
	if got := SaturatedAdd(-10, 10, 9, 5); got != 10 {
		t.Fatalf("expected clamp to 10, got %v", got)
	}
	if got := SaturatedAdd(-10, 10, 15, 5); got != 15 {
		t.Fatalf("expected out of range value kept, got %v", got)
	}
	if got := SaturatedAdd(-10, 10, -9, -5); got != -10 {
		t.Fatalf("expected clamp to -10, got %v", got)
	}
}

func TestRoundToInt(t *testing.T) {
	cases := map[float64]int{1.5: 2, 1.49: 1, -1.5: -2, -1.49: -1, 0: 0}
	for in, want := range cases {
		if got := RoundToInt(in); got != want {
			t.Fatalf("RoundToInt(%v): expected %d, got %d", in, want, got)
		}
	}
}

func TestClosestPointOnLine(t *testing.T) {
	p, ok := ClosestPointOnLine(V(0, 0), V(10, 0), V(5, 3))
	if !ok || p != V(5, 0) {
		t.Fatalf("expected (5,0) on segment, got %v ok=%v", p, ok)
	}
	if _, ok := ClosestPointOnLine(V(0, 0), V(10, 0), V(-5, 3)); ok {
		t.Fatalf("expected projection outside segment")
	}
}
