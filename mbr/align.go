package mbr

import "math"

// alignment is one windowed edit-distance hypothesis: a path score in
// -log space and the accumulated edit cost of aligning a hypothesis-word
// window against a reference-word window, one cost per window column.
type alignment struct {
	score float64
	costs []float64
}

// zeroAlignment is the alignment before any word has been aligned: zero
// score, zero cost in every column.
func zeroAlignment(windowSize int) alignment {
	return alignment{costs: make([]float64, windowSize)}
}

// align advances src by one (hyp,ref) word pair. v holds the reference
// window after the step: the previous windowSize-1 reference labels
// (left-padded with Epsilon if the utterance hasn't produced that many
// yet) followed by the new reference label. wHyp is the hypothesis
// label held fixed across every column this step: the middle element of
// the hypothesis window from before this step's extension, i.e. the
// "present" word of that window.
//
// For the first column only substitution and insertion are candidates
// (there is no earlier column to delete from); for the last column only
// substitution and deletion are candidates (there is no later column to
// insert into); every interior column considers all three edits.
func align(src alignment, v []Label, wHyp Label, wCondScore float64, cf CostFunction, windowSize int) alignment {
	dst := alignment{score: src.score + wCondScore, costs: make([]float64, windowSize)}
	if windowSize == 1 {
		dst.costs[0] = src.costs[0] + cf.Sub(wHyp, v[0])
		return dst
	}
	dst.costs[0] = math.Min(
		src.costs[0]+cf.Sub(wHyp, v[0]),
		src.costs[1]+cf.Ins(wHyp),
	)
	for i := 1; i < windowSize-1; i++ {
		sub := src.costs[i] + cf.Sub(wHyp, v[i])
		del := dst.costs[i-1] + cf.Del(v[i])
		ins := src.costs[i+1] + cf.Ins(wHyp)
		dst.costs[i] = math.Min(sub, math.Min(del, ins))
	}
	last := windowSize - 1
	dst.costs[last] = math.Min(
		src.costs[last]+cf.Sub(wHyp, v[last]),
		dst.costs[last-1]+cf.Del(v[last]),
	)
	return dst
}

// combineAlignments merges two alignments that recombine at the same
// (reference-window, hypothesis-window) search-space state: scores
// log-add, and each cost column becomes the probability-weighted
// average of the two paths' costs at that column.
func combineAlignments(a, b alignment) alignment {
	merged := alignment{score: logAdd(a.score, b.score), costs: make([]float64, len(a.costs))}
	wa, wb := math.Exp(-a.score), math.Exp(-b.score)
	total := wa + wb
	for i := range merged.costs {
		if total == 0 {
			merged.costs[i] = math.Min(a.costs[i], b.costs[i])
			continue
		}
		merged.costs[i] = (a.costs[i]*wa + b.costs[i]*wb) / total
	}
	return merged
}
