package lmla

import (
	"math"

	"github.com/rwthsearch/asrsearch/lmla/sparsehash"
	"github.com/rwthsearch/asrsearch/semiring"
)

// LanguageModel is the scoring source a Lookahead consults to fill a
// history's look-ahead table.
type LanguageModel interface {
	// Score returns the -log probability of token continuing history.
	Score(history History, token uint32) Score
	// BackOff returns history's generic back-off cost: the score assigned
	// to continuations not explicitly distinguished by a sparse table.
	BackOff(history History) Score
}

// Config controls how Lookahead fills and caches tables.
type Config struct {
	// Sparse, when true, fills tables into a hash keyed by node rather
	// than a dense per-node array, skipping any node whose score is not
	// at least SparseThreshold better than the history's back-off score.
	Sparse bool
	// Approx selects the marker-byte ApproxLinearMiniHash over the
	// key-storing LinearMiniHash when Sparse is set, halving memory at
	// the cost of a bounded false-positive rate on lookup.
	Approx bool

	// SparseThreshold is the absolute -log-probability margin a node's
	// score must beat the back-off score by to earn a sparse entry. Used
	// when ThresholdExpectationBased is false.
	SparseThreshold Score
	// ThresholdExpectationBased derives the margin from how many of the
	// tree's nodes are expected to need a distinct entry, rather than
	// from a fixed absolute margin: log(totalNodes) - log(expectedNonzeroNodes).
	ThresholdExpectationBased bool
	// ExpectedNonzeroNodes is the denominator for the expectation-based
	// threshold.
	ExpectedNonzeroNodes uint32

	// SparseHashSizeFactor scales the predicted entry count into the hash
	// table's initial capacity, giving it headroom before a resize is
	// needed.
	SparseHashSizeFactor float32
	// SparseHashResizeAtFillFraction is the occupancy fraction (0-256)
	// past which LinearMiniHash.CheckResize doubles capacity.
	SparseHashResizeAtFillFraction int

	// CacheSizeLow and CacheSizeHigh are the cache's soft/hard table
	// count limits; see cache's doc comment.
	CacheSizeLow, CacheSizeHigh int
}

// Lookahead ties a compressed Tree to a LanguageModel and a cache of
// per-history ContextLookahead tables.
type Lookahead struct {
	tree *Tree
	lm   LanguageModel
	cfg  Config

	cache      *cache
	prediction *LinearPrediction
}

// NewLookahead returns a look-ahead cache over tree, scoring fills with
// lm according to cfg.
func NewLookahead(tree *Tree, lm LanguageModel, cfg Config) *Lookahead {
	if cfg.CacheSizeHigh == 0 {
		cfg.CacheSizeHigh = 32
	}
	if cfg.CacheSizeLow == 0 {
		cfg.CacheSizeLow = cfg.CacheSizeHigh / 2
	}
	if cfg.SparseHashSizeFactor == 0 {
		cfg.SparseHashSizeFactor = 2
	}
	if cfg.SparseHashResizeAtFillFraction == 0 {
		cfg.SparseHashResizeAtFillFraction = 192 // 0.75 * 256
	}
	n := tree.NumNodes()
	if n == 0 {
		n = 1
	}
	return &Lookahead{
		tree:       tree,
		lm:         lm,
		cfg:        cfg,
		cache:      newCache(tree, cfg.CacheSizeLow, cfg.CacheSizeHigh),
		prediction: NewLinearPrediction(64, uint32(n)+1),
	}
}

// ActiveTables reports how many tables the cache currently tracks.
func (l *Lookahead) ActiveTables() int { return l.cache.Active() }

// GetLookahead returns history's table, acquiring (but not filling) one
// if this is the first request for it. Callers must call Fill before
// reading scores from a freshly acquired table.
func (l *Lookahead) GetLookahead(history History) (table *ContextLookahead, alreadyFilled bool) {
	t, created := l.cache.acquire(history)
	return t, !created && t.filled
}

// Fill populates table (already returned by GetLookahead) with scores for
// history. A call on an already-filled table is a no-op.
func (l *Lookahead) Fill(table *ContextLookahead, history History) {
	if table.filled {
		return
	}
	if l.cfg.Sparse {
		l.fillSparse(table, history)
	} else {
		l.fillDense(table, history)
	}
	table.filled = true
}

// FillZero fills table with a zero score at every node, used when the
// caller wants look-ahead disabled without special-casing every read
// site.
func (l *Lookahead) FillZero(table *ContextLookahead) {
	n := l.tree.NumNodes()
	table.dense = make([]Score, n)
	table.mode = dense
	table.backOff = 0
	table.filled = true
}

// bestScores computes, for every node, the minimum score reachable
// through its own word-ends or any descendant's, via a memoized
// post-order walk. A node reached through more than one path (the tree's
// successors/parents form a DAG, not strictly a tree, once prefixes
// reconverge at shared word-end states) is computed once and reused; a
// cycle (a non-word self-loop folded into the tree) is broken by treating
// the repeated visit as contributing no score.
func (l *Lookahead) bestScores(history History) []Score {
	n := l.tree.NumNodes()
	scores := make([]Score, n)
	computed := make([]bool, n)
	visiting := make([]bool, n)

	var compute func(node NodeID) Score
	compute = func(node NodeID) Score {
		if computed[node] {
			return scores[node]
		}
		if visiting[node] {
			return semiring.Inf
		}
		visiting[node] = true

		best := semiring.Inf
		for _, e := range l.tree.EndsOf(node) {
			s := l.lm.Score(history, e.Token) + e.Offset
			if s < best {
				best = s
			}
		}
		for _, succ := range l.tree.SuccessorsOf(node) {
			if succ == node {
				continue
			}
			if s := compute(succ); s < best {
				best = s
			}
		}

		visiting[node] = false
		computed[node] = true
		scores[node] = best
		return best
	}

	for node := NodeID(0); int(node) < n; node++ {
		compute(node)
	}
	return scores
}

func (l *Lookahead) fillDense(table *ContextLookahead, history History) {
	table.dense = l.bestScores(history)
	table.mode = dense
	table.backOff = l.lm.BackOff(history)
}

// sparseThreshold returns the margin a node's score must beat the
// back-off score by to earn an explicit sparse entry.
func (l *Lookahead) sparseThreshold() Score {
	if l.cfg.ThresholdExpectationBased && l.cfg.ExpectedNonzeroNodes > 0 {
		n := l.tree.NumNodes()
		return Score(math.Log(float64(n)) - math.Log(float64(l.cfg.ExpectedNonzeroNodes)))
	}
	return l.cfg.SparseThreshold
}

func (l *Lookahead) fillSparse(table *ContextLookahead, history History) {
	scores := l.bestScores(history)
	backOff := l.lm.BackOff(history)
	threshold := l.sparseThreshold()

	n := uint32(len(scores))
	predicted := l.prediction.Predict(n)
	capacity := uint32(float32(predicted) * l.cfg.SparseHashSizeFactor)
	if capacity < 8 {
		capacity = 8
	}

	qualifies := func(node NodeID) bool { return backOff-scores[node] >= threshold }

	var nonzero uint32
	if l.cfg.Approx {
		table.approxSparse = sparsehash.NewApproxLinearMiniHash()
		for attempt := 0; attempt < 2; attempt++ {
			table.approxSparse.Clear(capacity)
			nonzero = 0
			for node := NodeID(0); int(node) < len(scores); node++ {
				if qualifies(node) {
					table.approxSparse.Insert(uint32(node), scores[node])
					nonzero++
				}
			}
			if table.approxSparse.CheckResize(l.cfg.SparseHashResizeAtFillFraction) == 0 {
				break
			}
			capacity *= 2
		}
		table.mode = sparseApprox
	} else {
		table.sparse = sparsehash.NewLinearMiniHash(backOff)
		table.sparse.Clear(capacity)
		for node := NodeID(0); int(node) < len(scores); node++ {
			if qualifies(node) {
				table.sparse.Insert(uint32(node), scores[node])
				nonzero++
				table.sparse.CheckResize(l.cfg.SparseHashResizeAtFillFraction)
			}
		}
		table.mode = sparseExact
	}

	table.backOff = backOff
	l.prediction.Add(n, nonzero)
}
