package profile

import (
	"math"
	"testing"
)

func TestWeightedQueryVectorRenormalizesWithoutPhase(t *testing.T) {
	roleVec := []float64{1, 0, 0, 0}
	userVec := []float64{0, 1, 0, 0}
	result := WeightedQueryVector(roleVec, userVec, nil, QueryVectorWeights{Role: 0.45, User: 0.35, Phase: 0.20})

	if result.Weights.Phase != 0 {
		t.Errorf("expected phase weight 0 without a phase vector, got %v", result.Weights.Phase)
	}
	wantRole := 0.45 / (0.45 + 0.35)
	if math.Abs(result.Weights.Role-wantRole) > 1e-9 {
		t.Errorf("expected renormalized role weight %v, got %v", wantRole, result.Weights.Role)
	}
}

func TestWeightedQueryVectorFallsBackToRoleVector(t *testing.T) {
	roleVec := []float64{1, 0, 0, 0}
	result := WeightedQueryVector(roleVec, nil, nil, QueryVectorWeights{Role: 0.45, User: 0.35, Phase: 0.20})
	norm := 0.0
	for _, x := range result.Vector {
		norm += x * x
	}
	if math.Abs(math.Sqrt(norm)-1.0) > 1e-9 {
		t.Errorf("expected unit-norm query vector, got norm^2=%v", norm)
	}
}

func TestWeightedQueryVectorWithPhaseKeepsAllThreeWeights(t *testing.T) {
	roleVec := []float64{1, 0}
	userVec := []float64{0, 1}
	phaseVec := []float64{1, 1}
	w := QueryVectorWeights{Role: 0.45, User: 0.35, Phase: 0.20}
	result := WeightedQueryVector(roleVec, userVec, phaseVec, w)
	if result.Weights != w {
		t.Errorf("expected weights unchanged when a phase vector is present, got %+v", result.Weights)
	}
}

func TestTopIndicesOrdersByAbsoluteValue(t *testing.T) {
	v := []float64{0.1, -0.9, 0.3, -0.2, 0.05, 0.5}
	idx := topIndices(v, 3)
	want := []int{1, 5, 2}
	for i := range want {
		if idx[i] != want[i] {
			t.Fatalf("got %v, want %v", idx, want)
		}
	}
}
