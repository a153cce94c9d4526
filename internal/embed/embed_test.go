package embed

import (
	"math"
	"testing"
)

func TestComputeEmptyTextIsZeroVector(t *testing.T) {
	v := Compute("   ")
	for i, x := range v {
		if x != 0 {
			t.Fatalf("expected zero vector, index %d = %v", i, x)
		}
	}
	if len(v) != Dim {
		t.Fatalf("expected dim %d, got %d", Dim, len(v))
	}
}

func TestComputeIsUnitNorm(t *testing.T) {
	v := Compute("blocker: decision needed by friday on carbon fiber")
	norm := L2Norm(v)
	if math.Abs(norm-1.0) > 1e-9 {
		t.Fatalf("expected unit norm, got %v", norm)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	a := Compute("vendor a lead time 6 weeks")
	b := Compute("vendor a lead time 6 weeks")
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("expected deterministic output, index %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestDotOfIdenticalUnitVectorsIsOne(t *testing.T) {
	v := Compute("urgent blocker")
	if math.Abs(Dot(v, v)-1.0) > 1e-9 {
		t.Fatalf("expected self dot product 1, got %v", Dot(v, v))
	}
}
