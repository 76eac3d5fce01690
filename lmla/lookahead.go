package lmla

import "github.com/rwthsearch/asrsearch/lmla/sparsehash"

// fillMode selects how a ContextLookahead's scores are represented once
// filled, trading completeness for memory and fill time.
type fillMode int

const (
	dense fillMode = iota
	sparseExact
	sparseApprox
)

// ContextLookahead holds one history's look-ahead scores over every node
// of a Tree. A freshly acquired table is unfilled; Lookahead.Fill must run
// before ScoreForNode/ScoreForLookAheadHash return meaningful scores.
type ContextLookahead struct {
	tree *Tree

	mode   fillMode
	filled bool

	dense        []Score
	sparse       *sparsehash.LinearMiniHash
	approxSparse *sparsehash.ApproxLinearMiniHash
	backOff      Score

	// cache bookkeeping: history is set by the owning cache on acquire;
	// refs is not maintained by the cache.
	refs    int
	history any
}

func newContextLookahead(tree *Tree) *ContextLookahead {
	return &ContextLookahead{tree: tree}
}

func (c *ContextLookahead) reset() {
	c.filled = false
	c.mode = dense
	c.dense = c.dense[:0]
	c.sparse = nil
	c.approxSparse = nil
	c.backOff = 0
	c.history = nil
}

// IsSparse reports whether this table was filled sparsely (exact or
// approximate), i.e. most nodes fall back to BackOffScore.
func (c *ContextLookahead) IsSparse() bool { return c.mode != dense }

// BackOffScore is the score assigned to nodes with no explicit entry in a
// sparse table. It is meaningless for a dense table.
func (c *ContextLookahead) BackOffScore() Score { return c.backOff }

// ScoreForNode returns node's look-ahead score, querying the dense array
// or the appropriate sparse hash depending on how the table was filled.
func (c *ContextLookahead) ScoreForNode(node NodeID) Score {
	switch c.mode {
	case dense:
		return c.dense[node]
	case sparseExact:
		if v, ok := c.sparse.Get(uint32(node)); ok {
			return v
		}
		return c.backOff
	case sparseApprox:
		if v, ok := c.approxSparse.Get(uint32(node)); ok {
			return v
		}
		return c.backOff
	default:
		return c.backOff
	}
}
