// Package confnet builds per-slot conditional-posterior trees over a
// confusion network (C7): given a lattice, its forward/backward scores,
// a raw confusion network over that lattice, and a context window size,
// it compacts the network, assigns each lattice arc to the slot range it
// overspans, and estimates P(w_t | w_{t-w+1} … w_{t-1}) and the matching
// tuple posterior for every context actually observed. The supplied
// forward/backward scores are used as given; they are not recomputed on
// the slot-synchronous graph.
package confnet

import "github.com/rwthsearch/asrsearch/semiring"

// Score is a negative-log probability, matching the convention used
// throughout the search core.
type Score = semiring.Score

// Label identifies a word (or filler) at one confusion-network slot.
type Label = uint32

// Epsilon marks an arc or slot entry carrying no word.
const Epsilon Label = ^Label(0)

// LastLabel marks the synthetic filler arc inserted at a pruned slot to
// carry the probability mass of every discarded alternative.
const LastLabel Label = ^Label(0) - 1

// Arc is one (label, score) alternative at a confusion-network slot,
// score in -log space.
type Arc struct {
	Label Label
	Score Score
}

// RawSlot is one position of an uncompacted confusion network: every
// competing word hypothesis at that lattice position, including Epsilon
// entries.
type RawSlot struct {
	Arcs []Arc
}

// RawCN is a confusion network before compaction: one RawSlot per
// lattice position, in left-to-right order.
type RawCN struct {
	Slots []RawSlot
}

// isPureEpsilon reports whether every arc at a slot is Epsilon.
func (s RawSlot) isPureEpsilon() bool {
	for _, a := range s.Arcs {
		if a.Label != Epsilon {
			return false
		}
	}
	return len(s.Arcs) > 0
}
