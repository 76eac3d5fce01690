package confnet

import (
	"log/slog"
	"math"
	"sort"

	"github.com/rwthsearch/asrsearch/semiring"
)

// Value is one leaf of a conditional-posterior tree: the conditional
// probability of label given its context, and the unconditioned
// probability of the full context-plus-label tuple, both in -log space.
type Value struct {
	Label               Label
	CondPosteriorScore  Score
	TuplePosteriorScore Score
}

// zeroValue is returned by a lookup that finds no matching label.
var zeroValue = Value{Label: Epsilon, CondPosteriorScore: Score(math.Inf(1)), TuplePosteriorScore: Score(math.Inf(1))}

// Node is one level of a Tree's nested label index: [Begin,End) names
// either a range of child Nodes (if this node is above the deepest
// context level) or a range of leaf Values (if it is at the deepest
// level), distinguished by the querying context's length, exactly as
// lmla.Tree distinguishes node ranges by depth.
type Node struct {
	Label Label
	Begin uint32
	End   uint32
}

// Tree holds one CN slot's conditional-posterior distribution, indexed
// by every context actually observed at that slot, with LabelOffset
// implicit leading epsilons for slots too close to the start of the
// utterance to have a full window.
type Tree struct {
	LabelOffset int
	Nodes       []Node // root is the last element
	Values      []Value
}

// LookupRange returns the distribution for the context labels[:len(labels)-1]
// at this slot (labels' final element is ignored by LookupRange; use
// Lookup to query one label's posterior directly).
func (t *Tree) LookupRange(labels []Label) []Value {
	if len(t.Nodes) == 0 {
		return nil
	}
	node := t.Nodes[len(t.Nodes)-1]
	if t.LabelOffset >= len(labels) {
		return t.Values[node.Begin:node.End]
	}
	for _, label := range labels[t.LabelOffset : len(labels)-1] {
		next, ok := findChild(t.Nodes[node.Begin:node.End], label)
		if !ok {
			return nil
		}
		node = next
	}
	return t.Values[node.Begin:node.End]
}

// Lookup returns the posterior of labels' final element given the
// context formed by its preceding elements, or the zero sentinel if the
// context or label was never observed.
func (t *Tree) Lookup(labels []Label) Value {
	if len(labels) == 0 {
		return zeroValue
	}
	values := t.LookupRange(labels)
	return findValue(values, labels[len(labels)-1])
}

func findChild(nodes []Node, label Label) (Node, bool) {
	i := sort.Search(len(nodes), func(i int) bool { return nodes[i].Label >= label })
	if i < len(nodes) && nodes[i].Label == label {
		return nodes[i], true
	}
	return Node{}, false
}

func findValue(values []Value, label Label) Value {
	i := sort.Search(len(values), func(i int) bool { return values[i].Label >= label })
	if i < len(values) && values[i].Label == label {
		return values[i]
	}
	return zeroValue
}

// logAdd combines two -log-probability terms: -log(exp(-a) + exp(-b)).
func logAdd(a, b float64) float64 {
	var c semiring.Collector
	c.Add(a)
	c.Add(b)
	return c.Total()
}

// builder walks the lattice contexts window by window, building one
// Tree per slot.
type builder struct {
	assigned    []AssignedArc
	byFromSlot  map[StateID]map[int][]AssignedArc // state -> slot -> outgoing arcs starting exactly at that slot
	fb          ForwardBackward
	totalScore  float64
	contextSize int
	cfg         Config

	tree Tree
}

// EstimatePosteriors builds one conditional-posterior Tree per slot in
// [0,numSlots), following assigned's lattice arcs. totalScore is the
// lattice's overall -log total probability (the normalizing constant
// every path's score is measured relative to).
//
// A context-extending arc is treated as consuming exactly one slot (its
// Range.First), regardless of how many slots Range spans; the original
// algorithm's "gap hypothesis" carry-through for arcs spanning more than
// one slot is not reproduced; such arcs are rare (only produced by
// unusual epsilon topologies) and this package's caller can always avoid
// them by keeping slot boundaries one-arc-wide.
func EstimatePosteriors(assigned []AssignedArc, fb ForwardBackward, totalScore float64, numSlots int, cfg Config) []Tree {
	byFromSlot := make(map[StateID]map[int][]AssignedArc)
	for _, a := range assigned {
		if byFromSlot[a.Arc.From] == nil {
			byFromSlot[a.Arc.From] = make(map[int][]AssignedArc)
		}
		byFromSlot[a.Arc.From][a.Range.First] = append(byFromSlot[a.Arc.From][a.Range.First], a)
	}

	trees := make([]Tree, numSlots)
	for lastSlot := 0; lastSlot < numSlots; lastSlot++ {
		windowSize := cfg.WindowSize
		if lastSlot+1 < windowSize {
			windowSize = lastSlot + 1
		}
		contextSize := windowSize - 1
		startSlot := lastSlot - contextSize

		b := &builder{
			assigned:    assigned,
			byFromSlot:  byFromSlot,
			fb:          fb,
			totalScore:  totalScore,
			contextSize: contextSize,
			cfg:         cfg,
		}
		b.tree.LabelOffset = cfg.WindowSize - windowSize

		initial := make(map[StateID]float64)
		for state, bySlot := range byFromSlot {
			if _, ok := bySlot[startSlot]; ok {
				initial[state] = fwdScore(fb, state)
			}
		}

		root := b.close(0, startSlot, initial, Epsilon)
		b.tree.Nodes = append(b.tree.Nodes, root)
		trees[lastSlot] = b.tree
	}
	return trees
}

func fwdScore(fb ForwardBackward, s StateID) float64 {
	if int(s) >= len(fb.Forward) {
		return 0
	}
	return fb.Forward[s]
}

func bwdScore(fb ForwardBackward, s StateID) float64 {
	if int(s) >= len(fb.Backward) {
		return 0
	}
	return fb.Backward[s]
}

// close finalizes the hypothesis group reached after consuming depth
// context labels, returning the Node the caller should use to reference
// it (as one of its own parent's children).
func (b *builder) close(depth, slotIdx int, hyps map[StateID]float64, label Label) Node {
	if depth == b.contextSize {
		return b.leaf(slotIdx, hyps, label)
	}
	children := b.expandChildren(depth, slotIdx, hyps)
	begin := len(b.tree.Nodes)
	b.tree.Nodes = append(b.tree.Nodes, children...)
	end := len(b.tree.Nodes)
	return Node{Label: label, Begin: uint32(begin), End: uint32(end)}
}

// expandChildren groups every outgoing arc reachable from hyps at
// slotIdx by label, merges (log-adds) hypotheses that recombine at the
// same lattice state, and recurses one level deeper per distinct label.
func (b *builder) expandChildren(depth, slotIdx int, hyps map[StateID]float64) []Node {
	byLabel := make(map[Label]map[StateID]float64)
	for state, score := range hyps {
		for _, a := range b.byFromSlot[state][slotIdx] {
			next := byLabel[a.Arc.Label]
			if next == nil {
				next = make(map[StateID]float64)
				byLabel[a.Arc.Label] = next
			}
			step := score + float64(a.Arc.Score) + a.FlushedScore
			if cur, ok := next[a.Arc.To]; ok {
				next[a.Arc.To] = logAdd(cur, step)
			} else {
				next[a.Arc.To] = step
			}
		}
	}

	labels := make([]Label, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	nodes := make([]Node, 0, len(labels))
	for _, l := range labels {
		nodes = append(nodes, b.close(depth+1, slotIdx+1, byLabel[l], l))
	}
	return nodes
}

// leaf computes the denominator and per-label numerators for the
// continuations reachable from hyps at slotIdx, appending one Value per
// observed continuation label.
func (b *builder) leaf(slotIdx int, hyps map[StateID]float64, contextLabel Label) Node {
	type continuation struct {
		label Label
		score float64
	}
	var continuations []continuation
	for state, score := range hyps {
		for _, a := range b.byFromSlot[state][slotIdx] {
			continuations = append(continuations, continuation{
				label: a.Arc.Label,
				score: score + float64(a.Arc.Score) + a.FlushedScore + bwdScore(b.fb, a.Arc.To) - b.totalScore,
			})
		}
	}

	begin := len(b.tree.Values)
	if len(continuations) == 0 {
		b.cfg.logger().Warn("confnet: no continuation paths for context, skipping slot",
			slog.Int("slot", slotIdx))
		return Node{Label: contextLabel, Begin: uint32(begin), End: uint32(begin)}
	}

	var denomCollector semiring.Collector
	for _, c := range continuations {
		denomCollector.Add(c.score)
	}
	denominator := denomCollector.Total()

	byLabel := make(map[Label][]float64)
	for _, c := range continuations {
		byLabel[c.label] = append(byLabel[c.label], c.score)
	}
	labels := make([]Label, 0, len(byLabel))
	for l := range byLabel {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	var normCheck semiring.Collector
	for _, l := range labels {
		var col semiring.Collector
		for _, s := range byLabel[l] {
			col.Add(s)
		}
		numerator := col.Total()
		cond := Score(numerator - denominator)
		normCheck.Add(float64(cond))
		b.tree.Values = append(b.tree.Values, Value{
			Label:               l,
			CondPosteriorScore:  cond,
			TuplePosteriorScore: Score(numerator),
		})
	}

	if deviation := normCheck.Total(); math.Abs(deviation) > b.cfg.NormalizationTolerance {
		b.cfg.logger().Warn("confnet: conditional posterior distribution not normalized",
			slog.Int("slot", slotIdx), slog.Float64("deviation", deviation))
	}

	return Node{Label: contextLabel, Begin: uint32(begin), End: uint32(len(b.tree.Values))}
}
