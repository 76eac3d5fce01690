package mbr

import (
	"math"
	"testing"
)

func TestAlignWindowSizeThree(t *testing.T) {
	src := zeroAlignment(3)
	v := []Label{Epsilon, 1, 2}
	cf := KroneckerCost{}

	dst := align(src, v, Label(1), 0.5, cf, 3)

	if dst.score != 0.5 {
		t.Fatalf("score = %v, want 0.5", dst.score)
	}
	want := []float64{1, 0, 1}
	for i, c := range want {
		if dst.costs[i] != c {
			t.Fatalf("costs[%d] = %v, want %v (costs=%v)", i, dst.costs[i], c, dst.costs)
		}
	}
}

func TestAlignWindowSizeOneComparesDirectly(t *testing.T) {
	src := zeroAlignment(1)
	cf := KroneckerCost{}

	match := align(src, []Label{7}, Label(7), 0, cf, 1)
	if match.costs[0] != 0 {
		t.Fatalf("matching labels cost %v, want 0", match.costs[0])
	}

	mismatch := align(src, []Label{7}, Label(8), 0, cf, 1)
	if mismatch.costs[0] != 1 {
		t.Fatalf("mismatched labels cost %v, want 1", mismatch.costs[0])
	}
}

func TestCombineAlignmentsAveragesEquallyWeightedPaths(t *testing.T) {
	a := alignment{score: 0, costs: []float64{1, 2, 3}}
	b := alignment{score: 0, costs: []float64{3, 2, 1}}

	merged := combineAlignments(a, b)

	wantScore := -math.Log(2)
	if math.Abs(merged.score-wantScore) > 1e-9 {
		t.Fatalf("score = %v, want %v", merged.score, wantScore)
	}
	for i, c := range merged.costs {
		if math.Abs(c-2) > 1e-9 {
			t.Fatalf("costs[%d] = %v, want 2", i, c)
		}
	}
}

func TestCombineAlignmentsHandlesZeroWeightPaths(t *testing.T) {
	inf := math.Inf(1)
	a := alignment{score: inf, costs: []float64{5}}
	b := alignment{score: inf, costs: []float64{9}}

	merged := combineAlignments(a, b)

	if merged.costs[0] != 5 {
		t.Fatalf("costs[0] = %v, want min(5,9) = 5 when both paths carry zero weight", merged.costs[0])
	}
}
