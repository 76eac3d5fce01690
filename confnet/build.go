package confnet

// Result is the output of Build: a compact confusion network alongside
// the per-slot conditional-posterior trees computed from the lattice
// that produced it.
type Result struct {
	CN    CompactCN
	Trees []Tree
}

// Build runs the full C7 pipeline: compact the raw confusion network,
// assign every lattice arc to the slot range it overspans, and estimate
// conditional and tuple posteriors for each slot's context window.
// totalScore is the lattice's overall -log total probability.
func Build(raw RawCN, l Lattice, stateSlot map[StateID]int, fb ForwardBackward, totalScore float64, cfg Config) Result {
	cn := Compact(raw, cfg)
	assigned := AssignSlots(l, stateSlot, cfg)
	trees := EstimatePosteriors(assigned, fb, totalScore, len(cn.Slots), cfg)
	return Result{CN: cn, Trees: trees}
}
