package confnet

import "testing"

func TestCompactDropsPureEpsilonSlots(t *testing.T) {
	raw := RawCN{Slots: []RawSlot{
		{Arcs: []Arc{{Label: Epsilon, Score: 0}}},
		{Arcs: []Arc{{Label: 1, Score: 0.1}, {Label: Epsilon, Score: 0.2}}},
	}}

	cn := Compact(raw, DefaultConfig())

	if len(cn.Slots) != 1 {
		t.Fatalf("Compact kept %d slots, want 1 (pure-epsilon slot dropped)", len(cn.Slots))
	}
	if len(cn.Slots[0]) != 1 || cn.Slots[0][0].Label != 1 {
		t.Fatalf("Compact slot = %v, want single arc with label 1", cn.Slots[0])
	}
}

func TestCompactPrunesToTopKWithFiller(t *testing.T) {
	raw := RawCN{Slots: []RawSlot{
		{Arcs: []Arc{{Label: 1, Score: 0.1}, {Label: 2, Score: 0.5}, {Label: 3, Score: 5.0}}},
	}}
	cfg := DefaultConfig()
	cfg.TopK = 2

	cn := Compact(raw, cfg)

	if len(cn.Slots[0]) != 3 { // 2 kept + 1 filler
		t.Fatalf("Compact slot has %d arcs, want 3 (2 kept + filler)", len(cn.Slots[0]))
	}
	last := cn.Slots[0][len(cn.Slots[0])-1]
	if last.Label != LastLabel {
		t.Fatalf("last arc label = %v, want LastLabel filler", last.Label)
	}
}

func TestAssignSlotsFlushesEpsilonScore(t *testing.T) {
	l := Lattice{
		NumStates: 3,
		Arcs: []LatticeArc{
			{From: 0, To: 1, Label: Epsilon, Score: 0.3},
			{From: 1, To: 2, Label: 7, Score: 0.2},
		},
	}
	stateSlot := map[StateID]int{0: 0, 1: 0, 2: 1}

	assigned := AssignSlots(l, stateSlot, DefaultConfig())

	if len(assigned) != 1 {
		t.Fatalf("AssignSlots produced %d arcs, want 1 (epsilon arc consumed)", len(assigned))
	}
	if assigned[0].Arc.Label != 7 {
		t.Fatalf("surviving arc label = %v, want 7", assigned[0].Arc.Label)
	}
	if assigned[0].FlushedScore != float64(Score(0.3)) {
		t.Fatalf("FlushedScore = %v, want 0.3 (carried over from the epsilon arc)", assigned[0].FlushedScore)
	}
}

func TestAssignSlotsWarnsOnMissingSlotInfo(t *testing.T) {
	l := Lattice{
		NumStates: 2,
		Arcs:      []LatticeArc{{From: 0, To: 1, Label: 1, Score: 0}},
	}
	// No slot recorded for state 1.
	stateSlot := map[StateID]int{0: 0}

	assigned := AssignSlots(l, stateSlot, DefaultConfig())

	if len(assigned) != 0 {
		t.Fatalf("AssignSlots produced %d arcs, want 0 (arc skipped for missing slot info)", len(assigned))
	}
}

// buildLinearLattice builds a single-path lattice 0->1->2 with two
// words, "a" (label 1) then "b" (label 2), each spanning one slot.
func buildLinearLattice() (Lattice, map[StateID]int, ForwardBackward, float64) {
	l := Lattice{
		NumStates: 3,
		Arcs: []LatticeArc{
			{From: 0, To: 1, Label: 1, Score: 0.5},
			{From: 1, To: 2, Label: 2, Score: 0.5},
		},
		Final: []StateID{2},
	}
	stateSlot := map[StateID]int{0: 0, 1: 1, 2: 2}
	fb := ForwardBackward{
		Forward:  []float64{0, 0.5, 1.0},
		Backward: []float64{1.0, 0.5, 0},
	}
	total := 1.0
	return l, stateSlot, fb, total
}

func TestEstimatePosteriorsSingleContinuationIsCertain(t *testing.T) {
	l, stateSlot, fb, total := buildLinearLattice()
	assigned := AssignSlots(l, stateSlot, DefaultConfig())
	cfg := DefaultConfig()
	cfg.WindowSize = 2

	trees := EstimatePosteriors(assigned, fb, total, 2, cfg)

	if len(trees) != 2 {
		t.Fatalf("EstimatePosteriors produced %d trees, want 2", len(trees))
	}

	// Slot 0 (word "a"): no context, a single continuation, so its
	// conditional posterior must be certain (score 0).
	v0 := trees[0].Lookup([]Label{1})
	if v0.CondPosteriorScore > 1e-3 || v0.CondPosteriorScore < -1e-3 {
		t.Fatalf("slot 0 posterior for the only continuation = %v, want ~0", v0.CondPosteriorScore)
	}

	// Slot 1 (word "b" given context "a"): again a single continuation.
	v1 := trees[1].Lookup([]Label{1, 2})
	if v1.CondPosteriorScore > 1e-3 || v1.CondPosteriorScore < -1e-3 {
		t.Fatalf("slot 1 posterior given context [1] = %v, want ~0", v1.CondPosteriorScore)
	}
}

func TestTreeLookupMissingContextReturnsZeroValue(t *testing.T) {
	l, stateSlot, fb, total := buildLinearLattice()
	assigned := AssignSlots(l, stateSlot, DefaultConfig())
	cfg := DefaultConfig()
	cfg.WindowSize = 2

	trees := EstimatePosteriors(assigned, fb, total, 2, cfg)

	v := trees[1].Lookup([]Label{99, 2})
	if v.Label != Epsilon {
		t.Fatalf("Lookup with an unseen context returned %v, want the zero sentinel", v)
	}
}
