package confnet

import (
	"math"
	"sort"

	"github.com/rwthsearch/asrsearch/semiring"
)

// CompactCN is a confusion network with pure-epsilon slots removed and
// epsilon arcs dropped from every remaining slot.
type CompactCN struct {
	Slots [][]Arc
}

// Compact builds the compact form of raw: slots that carry only Epsilon
// are dropped entirely, and any Epsilon arc at a surviving slot is
// dropped. If cfg.TopK is positive, each slot keeps at most that many
// arcs (the best-scoring, i.e. lowest -log-probability, ones) and the
// discarded mass is folded into a synthetic LastLabel filler arc whose
// score is the -log of the summed discarded probability.
func Compact(raw RawCN, cfg Config) CompactCN {
	out := CompactCN{Slots: make([][]Arc, 0, len(raw.Slots))}
	for _, slot := range raw.Slots {
		if slot.isPureEpsilon() {
			continue
		}
		arcs := make([]Arc, 0, len(slot.Arcs))
		for _, a := range slot.Arcs {
			if a.Label != Epsilon {
				arcs = append(arcs, a)
			}
		}
		if len(arcs) == 0 {
			continue
		}
		out.Slots = append(out.Slots, prune(arcs, cfg.TopK))
	}
	return out
}

// prune keeps the topK best-scoring arcs (all of them if topK <= 0 or
// there aren't more than topK), folding any discarded arcs' mass into a
// LastLabel filler.
func prune(arcs []Arc, topK int) []Arc {
	if topK <= 0 || len(arcs) <= topK {
		return arcs
	}
	sorted := append([]Arc(nil), arcs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })

	kept := sorted[:topK]
	discarded := sorted[topK:]

	var collector semiring.Collector
	for _, a := range discarded {
		collector.Add(float64(a.Score))
	}
	fillerScore := Score(math.Inf(1))
	if !collector.Empty() {
		fillerScore = Score(collector.Total())
	}

	result := append([]Arc(nil), kept...)
	result = append(result, Arc{Label: LastLabel, Score: fillerScore})
	return result
}
