// Package decoder implements a time-synchronous Viterbi beam search over
// an HMM state network: at each frame it advances every surviving
// hypothesis one acoustic step, folds in any word boundaries crossed
// along the way, and prunes the result back down with a cascade of
// acoustic, per-state, histogram, and language-model look-ahead beams
// before moving to the next frame.
//
// The frame loop mirrors the epsilon-closure/move split a lazy automaton
// uses to step a state set across an input symbol: expandStates plays
// the role of move (consume one acoustic frame), emitWordExits plays the
// role of epsilonClosure (follow label edges, which cost no frame, until
// only genuine acoustic states remain active).
package decoder

import (
	"log/slog"
	"math"
	"sort"

	"github.com/rwthsearch/asrsearch/internal/conv"
	"github.com/rwthsearch/asrsearch/internal/sparse"
	"github.com/rwthsearch/asrsearch/lmla"
	"github.com/rwthsearch/asrsearch/network"
	"github.com/rwthsearch/asrsearch/semiring"
)

// AcousticScorer scores one network state's acoustic model against one
// frame of observations.
type AcousticScorer interface {
	Score(frame int, acousticModelIndex uint32) Score
}

// TransitionScorer scores the self-loop and forward transition
// probabilities of an HMM transition model.
type TransitionScorer interface {
	LoopScore(transitionModelIndex uint32) Score
	ForwardScore(transitionModelIndex uint32) Score
}

// PronunciationLookup resolves a network exit's pronunciation to the word
// token it recognizes and that pronunciation's score.
type PronunciationLookup interface {
	Word(pronunciationID uint32) (token uint32, score Score)
}

// LanguageModel scores words in context and extends a history with a
// newly recognized word, composing lmla's look-ahead scoring interface
// with the one additional operation the decoder itself needs.
type LanguageModel interface {
	lmla.LanguageModel
	Extend(history lmla.History, token uint32) lmla.History
}

// FrameStats reports one frame's search statistics, handed to the sink
// function supplied at construction (if any) so a host can build
// dashboards without the decoder committing to a particular metrics
// backend.
type FrameStats struct {
	Frame           int
	ActiveStates    int
	ActiveHyps      int
	WordEnds        int
	BestScore       Score
	AcousticPruned  int
	HistogramPruned int
	WordEndPruned   int
	LookaheadPruned int
}

// Decoder runs the frame-synchronous beam search described in the
// package doc comment.
type Decoder struct {
	net   *network.Network
	exits []network.Exit

	acoustic   AcousticScorer
	transition TransitionScorer
	pron       PronunciationLookup
	lm         LanguageModel
	lookahead  *lmla.Lookahead

	cfg   Config
	stats func(FrameStats)

	frame   int
	current map[network.StateID][]Hyp
	next    map[network.StateID][]Hyp

	trace []WordBackPointer

	// LookaheadNodeFor maps a network state to its look-ahead tree node,
	// wired by the caller from the same Tree used to build lookahead
	// (typically tree.NodeForState). Left nil, look-ahead pruning
	// distinguishes nothing between arrivals.
	LookaheadNodeFor func(network.StateID) lmla.NodeID
}

// New returns a Decoder over net, whose exit labels index into exits.
func New(net *network.Network, exits []network.Exit, acoustic AcousticScorer, transition TransitionScorer, pron PronunciationLookup, lm LanguageModel, lookahead *lmla.Lookahead, cfg Config) *Decoder {
	return &Decoder{
		net:        net,
		exits:      exits,
		acoustic:   acoustic,
		transition: transition,
		pron:       pron,
		lm:         lm,
		lookahead:  lookahead,
		cfg:        cfg,
		current:    make(map[network.StateID][]Hyp),
		next:       make(map[network.StateID][]Hyp),
	}
}

// OnFrameStats registers sink to be called once per Step with that
// frame's statistics.
func (d *Decoder) OnFrameStats(sink func(FrameStats)) { d.stats = sink }

// Reset clears all active hypotheses and seeds a single hypothesis at
// root with the given starting history and frame counter.
func (d *Decoder) Reset(root network.StateID, history lmla.History) {
	d.frame = 0
	d.trace = d.trace[:0]
	d.current = map[network.StateID][]Hyp{
		root: {{Score: 0, History: history, BackPointer: InvalidBackPointer}},
	}
	d.next = make(map[network.StateID][]Hyp)
}

// ActiveHypCount returns the number of (state, hypothesis) pairs
// currently active.
func (d *Decoder) ActiveHypCount() int {
	n := 0
	for _, hyps := range d.current {
		n += len(hyps)
	}
	return n
}

// Step advances the search by one acoustic frame. If the active set is
// empty (every hypothesis was pruned or the search was never seeded),
// it reseeds from root and logs a warning, matching the "reseed from
// root with warning" failure semantics for a dead search.
func (d *Decoder) Step(frame int, root network.StateID, rootHistory lmla.History) {
	d.frame = frame
	if len(d.current) == 0 {
		d.cfg.logger().Warn("decoder: active set empty, reseeding from root",
			slog.Int("frame", frame))
		d.current[root] = []Hyp{{Score: 0, History: rootHistory, BackPointer: InvalidBackPointer}}
	}

	clear(d.next)
	stats := FrameStats{Frame: frame, BestScore: semiring.Inf}

	d.expandStates(frame, &stats)
	stats.AcousticPruned = d.pruneAcoustic()
	d.perStatePrune()
	stats.HistogramPruned = d.pruneHistogram()
	wordEnds := d.emitWordExits(frame)
	wordEnds, stats.WordEndPruned = d.pruneWordEnds(wordEnds)
	stats.WordEnds = len(wordEnds)
	stats.LookaheadPruned = d.pruneLookahead(wordEnds)

	d.current, d.next = d.next, d.current

	stats.ActiveStates = len(d.current)
	stats.ActiveHyps = d.ActiveHypCount()
	for _, hyps := range d.current {
		for _, h := range hyps {
			if h.Score < stats.BestScore {
				stats.BestScore = h.Score
			}
		}
	}
	if d.stats != nil {
		d.stats(stats)
	}
}

// expandStates is the "move" half of the frame step: every current
// hypothesis advances across its state's self-loop and forward
// transitions, each scored against this frame's acoustic model, landing
// in d.next. A hypothesis whose resulting score is non-finite is
// discarded with a warning rather than propagated, per the decoder's
// "discard non-finite scores" failure semantics.
func (d *Decoder) expandStates(frame int, stats *FrameStats) {
	for state, hyps := range d.current {
		s := d.net.State(state)
		for _, h := range hyps {
			for it := d.net.Successors(state); it.Next(); {
				if it.IsLabel() {
					continue // word boundaries are handled by emitWordExits
				}
				target := it.State()
				var score Score
				if target == state {
					score = h.Score + d.transition.LoopScore(s.Desc.TransitionModelIndex) + d.acoustic.Score(frame, s.Desc.AcousticModelIndex)
				} else {
					targetDesc := d.net.State(target).Desc
					score = h.Score + d.transition.ForwardScore(s.Desc.TransitionModelIndex) + d.acoustic.Score(frame, targetDesc.AcousticModelIndex)
				}
				if !semiring.Finite(score) {
					d.cfg.logger().Warn("decoder: discarding non-finite score",
						slog.Int("frame", frame), slog.Any("state", target))
					continue
				}
				d.addHyp(d.next, target, Hyp{Score: score, History: h.History, BackPointer: h.BackPointer})
			}
		}
	}
}

// addHyp inserts h at state, recombining with any existing hypothesis
// that carries the identical history (keeping whichever scores better).
func (d *Decoder) addHyp(set map[network.StateID][]Hyp, state network.StateID, h Hyp) {
	hyps := set[state]
	for i, existing := range hyps {
		if existing.History == h.History {
			if h.Score < existing.Score {
				hyps[i] = h
			}
			return
		}
	}
	set[state] = append(hyps, h)
}

// pruneAcoustic drops every hypothesis in d.next whose score exceeds the
// frame's best by more than AcousticPruningThreshold, returning the
// number dropped.
func (d *Decoder) pruneAcoustic() int {
	best := d.bestScore(d.next)
	if !semiring.Finite(best) {
		return 0
	}
	limit := best + d.cfg.AcousticPruningThreshold
	return d.pruneAbove(d.next, limit)
}

func (d *Decoder) bestScore(set map[network.StateID][]Hyp) Score {
	best := semiring.Inf
	for _, hyps := range set {
		for _, h := range hyps {
			if h.Score < best {
				best = h.Score
			}
		}
	}
	return best
}

func (d *Decoder) pruneAbove(set map[network.StateID][]Hyp, limit Score) int {
	dropped := 0
	for state, hyps := range set {
		kept := hyps[:0]
		for _, h := range hyps {
			if h.Score <= limit {
				kept = append(kept, h)
			} else {
				dropped++
			}
		}
		if len(kept) == 0 {
			delete(set, state)
		} else {
			set[state] = kept
		}
	}
	return dropped
}

// perStatePrune caps each state's hypothesis list at
// Config.StatesPerStateLimit, keeping the best-scoring entries.
func (d *Decoder) perStatePrune() {
	for state, hyps := range d.next {
		if len(hyps) <= d.cfg.StatesPerStateLimit {
			continue
		}
		sort.Slice(hyps, func(i, j int) bool { return hyps[i].Score < hyps[j].Score })
		d.next[state] = hyps[:d.cfg.StatesPerStateLimit]
	}
}

// pruneHistogram tightens the active beam to approximately
// MaxActiveHyps by bucketing scores at HistogramBucketWidth resolution
// and raising the cutoff only as far as needed, avoiding a full sort of
// the active set.
func (d *Decoder) pruneHistogram() int {
	total := 0
	for _, hyps := range d.next {
		total += len(hyps)
	}
	if total <= d.cfg.MaxActiveHyps {
		return 0
	}

	best := d.bestScore(d.next)
	width := d.cfg.HistogramBucketWidth
	buckets := make(map[int]int)
	for _, hyps := range d.next {
		for _, h := range hyps {
			b := int(math.Floor(float64((h.Score - best) / width)))
			buckets[b]++
		}
	}

	maxBucket := 0
	for b := range buckets {
		if b > maxBucket {
			maxBucket = b
		}
	}

	cumulative := 0
	cutoffBucket := maxBucket
	for b := 0; b <= maxBucket; b++ {
		cumulative += buckets[b]
		if cumulative >= d.cfg.MaxActiveHyps {
			cutoffBucket = b
			break
		}
	}

	limit := best + Score(cutoffBucket+1)*width
	return d.pruneAbove(d.next, limit)
}

// wordEnd is one candidate word-boundary arrival produced by
// emitWordExits, awaiting look-ahead scoring and pruning.
type wordEnd struct {
	state network.StateID
	hyp   Hyp
}

// emitWordExits follows every label (exit) successor reachable from
// d.next's states, scoring the completed pronunciation against the
// language model, extending its history, and inserting the resulting
// hypothesis at the exit's transit state — itself back into d.next, so a
// chain of immediate exits (e.g. a non-word token directly followed by
// another word boundary) is fully resolved within the same frame, no
// differently than a lazy automaton's epsilon closure.
func (d *Decoder) emitWordExits(frame int) []wordEnd {
	var frontier []wordEnd
	for state, hyps := range d.next {
		for _, h := range hyps {
			frontier = append(frontier, wordEnd{state: state, hyp: h})
		}
	}

	var emitted []wordEnd
	seen := sparse.New(conv.IntToUint32(d.net.StateCount()))
	for len(frontier) > 0 {
		we := frontier[0]
		frontier = frontier[1:]

		for it := d.net.Successors(we.state); it.Next(); {
			if !it.IsLabel() {
				continue
			}
			label := it.Label()
			if int(label) >= len(d.exits) {
				continue
			}
			exit := d.exits[label]

			nh := we.hyp
			var token uint32
			hasWord := exit.PronunciationID != network.SilentExit
			if hasWord {
				var pronScore Score
				token, pronScore = d.pron.Word(exit.PronunciationID)
				lmScore := d.lm.Score(we.hyp.History, token)
				nh.Score = we.hyp.Score + pronScore + lmScore
				nh.History = d.lm.Extend(we.hyp.History, token)
				d.trace = append(d.trace, WordBackPointer{Frame: frame, Token: token, Prev: we.hyp.BackPointer})
				nh.BackPointer = uint32(len(d.trace) - 1)
			}

			target := exit.TransitState
			d.addHyp(d.next, target, nh)
			if hasWord {
				emitted = append(emitted, wordEnd{state: target, hyp: nh})
			}
			// Only the first hypothesis to reach a given transit state
			// re-enqueues it: the network's label successors from that
			// state are the same regardless of which history arrived,
			// so walking them once per state (not once per hypothesis)
			// is enough to discover every reachable exit.
			if seen.Insert(uint32(target)) {
				frontier = append(frontier, wordEnd{state: target, hyp: nh})
			}
		}
	}
	return emitted
}

// pruneWordEnds drops any newly emitted word-boundary hypothesis whose
// raw score (before look-ahead is added) exceeds the best word-boundary
// score by more than WordEndPruningThreshold, returning the survivors
// and the number dropped. This runs before look-ahead scoring so the
// more expensive per-arrival lookahead fill only touches arrivals that
// already look competitive on acoustic and language-model score alone.
func (d *Decoder) pruneWordEnds(wordEnds []wordEnd) ([]wordEnd, int) {
	if len(wordEnds) == 0 {
		return wordEnds, 0
	}

	best := semiring.Inf
	for _, we := range wordEnds {
		if we.hyp.Score < best {
			best = we.hyp.Score
		}
	}
	limit := best + d.cfg.WordEndPruningThreshold

	survivors := wordEnds[:0]
	dropped := 0
	for _, we := range wordEnds {
		if we.hyp.Score <= limit {
			survivors = append(survivors, we)
		} else {
			d.removeHyp(d.next, we.state, we.hyp)
			dropped++
		}
	}
	return survivors, dropped
}

// pruneLookahead attaches a language-model look-ahead score to every
// newly emitted word-boundary arrival and drops any whose combined score
// exceeds the best combined score by more than LookaheadPruningThreshold,
// returning the number dropped.
func (d *Decoder) pruneLookahead(wordEnds []wordEnd) int {
	if d.lookahead == nil || len(wordEnds) == 0 {
		return 0
	}

	type scored struct {
		we    wordEnd
		combo Score
	}
	scoredEnds := make([]scored, 0, len(wordEnds))
	best := semiring.Inf
	for _, we := range wordEnds {
		table, filled := d.lookahead.GetLookahead(we.hyp.History)
		if !filled {
			d.lookahead.Fill(table, we.hyp.History)
		}
		node := d.lookaheadNodeFor(we.state)
		combo := we.hyp.Score + table.ScoreForNode(node)
		scoredEnds = append(scoredEnds, scored{we: we, combo: combo})
		if combo < best {
			best = combo
		}
	}

	limit := best + d.cfg.LookaheadPruningThreshold
	dropped := 0
	for _, s := range scoredEnds {
		if s.combo > limit {
			d.removeHyp(d.next, s.we.state, s.we.hyp)
			dropped++
		}
	}
	return dropped
}

// lookaheadNodeFor is overridden in tests/wiring that have a real
// network-state-to-look-ahead-node mapping; the zero value (node 0)
// degrades to "no distinguishing look-ahead" when none is configured.
func (d *Decoder) lookaheadNodeFor(state network.StateID) lmla.NodeID {
	if d.LookaheadNodeFor == nil {
		return 0
	}
	return d.LookaheadNodeFor(state)
}

func (d *Decoder) removeHyp(set map[network.StateID][]Hyp, state network.StateID, h Hyp) {
	hyps := set[state]
	for i, existing := range hyps {
		if existing.History == h.History {
			set[state] = append(hyps[:i], hyps[i+1:]...)
			if len(set[state]) == 0 {
				delete(set, state)
			}
			return
		}
	}
}

// BestHypothesis returns the best-scoring active hypothesis and the
// state it occupies, or ok=false if the active set is empty.
func (d *Decoder) BestHypothesis() (state network.StateID, h Hyp, ok bool) {
	best := semiring.Inf
	for s, hyps := range d.current {
		for _, cand := range hyps {
			if cand.Score < best {
				best = cand.Score
				state, h, ok = s, cand, true
			}
		}
	}
	return
}

// BestWordSequence chases h's back pointer chain to the start of the
// trace, returning the recognized words in emission order.
func (d *Decoder) BestWordSequence(h Hyp) []uint32 {
	var words []uint32
	for bp := h.BackPointer; bp != InvalidBackPointer; {
		rec := d.trace[bp]
		words = append(words, rec.Token)
		bp = rec.Prev
	}
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return words
}
