package mbr

import (
	"log/slog"
	"math"

	"github.com/rwthsearch/asrsearch/confnet"
	"github.com/rwthsearch/asrsearch/semiring"
)

// wSuffixState is one surviving hypothesis-window continuation (a
// "WSuffix" in the windowed-alignment literature): the trailing
// hypothesis-word window it carries forward, and the alignment
// accumulated by every path that recombines into this window.
type wSuffixState struct {
	wWindow []Label
	align   alignment
}

// vSuffixGroup is every hypothesis-window continuation sharing one
// trailing reference-word window (a "VSuffix"), for one particular
// choice of the word that just aged out of that window (its "VHead").
type vSuffixGroup struct {
	vWindow   []Label
	byWWindow map[string]*wSuffixState
}

// Decode runs the windowed Levenshtein decoder over cn's slots using
// trees (one conditional-posterior tree per slot, as produced by
// package confnet) to weight competing hypothesis continuations.
// len(trees) must equal len(cn.Slots).
func Decode(cn confnet.CompactCN, trees []confnet.Tree, cfg Config) Result {
	windowSize := 2*cfg.ContextRadius + 1
	prefixLen := windowSize - 1
	wHypIndex := cfg.ContextRadius
	costFcn := cfg.costFunction()

	// The search space starts as a single hypothesis with empty
	// windows and an all-zero alignment.
	searchSpace := map[string]*vSuffixGroup{
		"": {byWWindow: map[string]*wSuffixState{"": {align: zeroAlignment(windowSize)}}},
	}

	var words []Word
	bestRisk := math.Inf(1)
	pruneCount := 0

	for s := 0; s < len(cn.Slots); s++ {
		tree := trees[s]
		vCandidates := candidateLabels(cn.Slots[s], cfg.VRestricted)

		// candidates[newVSuffixKey][head] accumulates, for every
		// choice of the word that ages out of the reference window
		// this step, the set of surviving hypothesis-window
		// continuations and their alignments.
		candidates := map[string]map[Label]*vSuffixGroup{}

		for _, vs := range searchSpace {
			vPrefix := padLeft(vs.vWindow, prefixLen)

			for _, vLabel := range vCandidates {
				// With no context window, a word is decided the
				// instant it's chosen; otherwise the decided word is
				// the one aging out of the window's oldest position.
				head := vLabel
				if windowSize > 1 {
					head = vPrefix[0]
				}
				v := append(append(make([]Label, 0, windowSize), vPrefix...), vLabel)
				newVWindow := slideWindow(vs.vWindow, vLabel, prefixLen)
				newVKey := windowKey(newVWindow)

				for _, ws := range vs.byWWindow {
					var wHyp Label
					if windowSize > 1 {
						wHyp = padLeft(ws.wWindow, prefixLen)[wHypIndex]
					}

					for _, wv := range continuations(tree, ws.wWindow) {
						// With no context window at all, the cost
						// formula compares the new hypothesis label
						// directly rather than a fixed "present" word
						// from the (nonexistent) prefix.
						hyp := wHyp
						if windowSize == 1 {
							hyp = wv.Label
						}
						newAlign := align(ws.align, v, hyp, float64(wv.CondPosteriorScore), costFcn, windowSize)
						newWWindow := slideWindow(ws.wWindow, wv.Label, prefixLen)
						newWKey := windowKey(newWWindow)

						heads := candidates[newVKey]
						if heads == nil {
							heads = map[Label]*vSuffixGroup{}
							candidates[newVKey] = heads
						}
						group := heads[head]
						if group == nil {
							group = &vSuffixGroup{vWindow: newVWindow, byWWindow: map[string]*wSuffixState{}}
							heads[head] = group
						}
						if existing, ok := group.byWWindow[newWKey]; ok {
							existing.align = combineAlignments(existing.align, newAlign)
						} else {
							group.byWWindow[newWKey] = &wSuffixState{wWindow: newWWindow, align: newAlign}
						}
					}
				}
			}
		}

		// collect: find the globally minimum-risk (VSuffix, VHead)
		// pair across every surviving continuation.
		risks := make(map[string]map[Label]float64, len(candidates))
		bestLabel := Epsilon
		bestThisSlot := math.Inf(1)
		for vKey, heads := range candidates {
			risks[vKey] = make(map[Label]float64, len(heads))
			for head, group := range heads {
				var scoreCol semiring.Collector
				var costSum weightedSum
				for _, ws := range group.byWWindow {
					scoreCol.Add(ws.align.score)
					costSum.add(ws.align.score, ws.align.costs[cfg.ContextRadius])
				}
				scoreSum := scoreCol.Total()
				if dev := math.Exp(-scoreSum) - 1; math.Abs(dev) > cfg.NormalizationTolerance {
					cfg.logger().Warn("mbr: conditional posterior mass not normalized",
						slog.Int("slot", s), slog.Float64("deviation", dev))
				}
				risk := costSum.total()
				risks[vKey][head] = risk
				if risk < bestThisSlot {
					bestThisSlot = risk
					bestLabel = head
				}
			}
		}

		if math.IsInf(bestThisSlot, 1) {
			cfg.logger().Warn("mbr: no surviving hypothesis at slot, aborting", slog.Int("slot", s))
			return Result{BestRisk: math.Inf(1)}
		}
		bestRisk = bestThisSlot

		if s >= prefixLen {
			switch bestLabel {
			case Epsilon:
				// No word decided yet for this position.
			case confnet.LastLabel:
				cfg.logger().Warn("mbr: best hypothesis is the pruning filler, discarding word",
					slog.Int("slot", s))
			default:
				words = append(words, Word{Label: bestLabel, Risk: bestRisk})
			}
		}

		// Every VSuffix whose aged-out head disagrees with the
		// globally chosen word is now inconsistent with the already
		// committed output and is dropped; the rest carry forward
		// only the continuations belonging to the winning head.
		doPrune := cfg.PruningRiskThreshold < math.Inf(1) && s >= cfg.PruningSupplySize
		if doPrune {
			pruneCount++
			if pruneCount < cfg.PruningInterval {
				doPrune = false
			} else {
				pruneCount = 0
			}
		}
		threshold := bestRisk + cfg.PruningRiskThreshold

		next := make(map[string]*vSuffixGroup, len(candidates))
		for vKey, heads := range candidates {
			group, ok := heads[bestLabel]
			if !ok {
				continue
			}
			if doPrune && risks[vKey][bestLabel] > threshold {
				continue
			}
			next[vKey] = group
		}
		if len(next) == 0 {
			cfg.logger().Warn("mbr: pruning emptied the search space, aborting", slog.Int("slot", s))
			return Result{BestRisk: math.Inf(1)}
		}
		searchSpace = next
	}

	return Result{BestRisk: bestRisk, Words: words}
}

// continuations returns the labels observed to follow context at this
// slot's posterior tree, alongside their conditional posterior scores.
func continuations(tree confnet.Tree, context []Label) []confnet.Value {
	return tree.LookupRange(append(append(make([]Label, 0, len(context)+1), context...), Epsilon))
}

// candidateLabels collects every distinct label competing at a compact
// confusion-network slot, used as the candidate output alphabet.
func candidateLabels(slot []confnet.Arc, restricted bool) []Label {
	labels := make([]Label, 0, len(slot))
	for _, a := range slot {
		if restricted && a.Label == confnet.LastLabel {
			continue
		}
		labels = append(labels, a.Label)
	}
	return labels
}
