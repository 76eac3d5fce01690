package confnet

import "log/slog"

// SlotRange is the inclusive range of compact-CN slot indices a lattice
// arc overspans.
type SlotRange struct {
	First, Last int
}

// Empty reports whether the range spans no slot, which happens for an
// epsilon arc whose endpoints fall within the same slot boundary.
func (r SlotRange) Empty() bool { return r.Last < r.First }

// AssignedArc pairs a lattice arc with the slot range it overspans and
// any forward score flushed into it from preceding epsilon arcs.
type AssignedArc struct {
	Arc          LatticeArc
	Range        SlotRange
	FlushedScore float64
}

// AssignSlots walks l in topological order and determines each arc's
// slot range from stateSlot, the boundary-slot index of every lattice
// state (0 for the lattice's start, len(slots) for its end). Epsilon
// arcs, which span no slot, accumulate their score as a pending flush
// that is added onto the next non-epsilon arc leaving the same state;
// an epsilon arc reaching a final state with nothing to flush into is
// silently dropped. An arc whose endpoints have no recorded slot is
// skipped with a warning, matching the "arcs without slot information"
// anomaly spec.md calls out.
func AssignSlots(l Lattice, stateSlot map[StateID]int, cfg Config) []AssignedArc {
	order := topologicalOrder(l)
	position := make(map[StateID]int, len(order))
	for i, s := range order {
		position[s] = i
	}

	byFrom := make(map[StateID][]LatticeArc)
	for _, a := range l.Arcs {
		byFrom[a.From] = append(byFrom[a.From], a)
	}

	pendingFlush := make(map[StateID]float64)
	var assigned []AssignedArc

	for _, s := range order {
		flush := pendingFlush[s]
		for _, a := range byFrom[s] {
			fromSlot, ok1 := stateSlot[a.From]
			toSlot, ok2 := stateSlot[a.To]
			if !ok1 || !ok2 {
				cfg.logger().Warn("confnet: arc missing slot information",
					slog.Any("from", a.From), slog.Any("to", a.To))
				continue
			}

			r := SlotRange{First: fromSlot, Last: toSlot - 1}
			if a.Label == Epsilon && r.Empty() {
				pendingFlush[a.To] += flush + float64(a.Score)
				continue
			}

			assigned = append(assigned, AssignedArc{
				Arc:          a,
				Range:        r,
				FlushedScore: flush,
			})
		}
	}
	return assigned
}
