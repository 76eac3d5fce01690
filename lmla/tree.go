// Package lmla implements the language-model look-ahead cache: an
// offline-built compressed tree over the HMM state network's future
// word distribution, plus a per-history score cache (dense, sparse, or
// approximate-sparse) used to prune arc expansion before the language
// model is actually consulted for a word.
//
// In the compressed tree each network state reached from the roots gets its
// own look-ahead node down to the construction cutoff depth, and every
// state past the cutoff is folded into the node of the cutoff-depth state
// it was reached through; states with identical futures are not otherwise
// merged. A node's children/word-ends/parents are packed into compressed
// sparse-row ranges (Node.FirstSuccessor/FirstEnd/FirstParent index into
// shared Successors/Ends/Parents slices, a node i's range being
// [field[i], field[i+1])).
package lmla

import (
	"sort"

	"github.com/rwthsearch/asrsearch/network"
	"github.com/rwthsearch/asrsearch/semiring"
)

// Score is a -log probability, matching the tropical/log-semiring
// convention used throughout the decoder.
type Score = semiring.Score

// NodeID indexes into a Tree's compressed node arrays. InvalidNode marks
// "no node" (e.g. a root with no parent).
type NodeID uint32

// InvalidNode is never a valid index into a Tree's node arrays.
const InvalidNode NodeID = ^NodeID(0)

// Node is one compressed look-ahead tree node. Its successors, word-ends
// and parents are the half-open ranges [FirstX, next.FirstX) into the
// owning Tree's Successors/Ends/Parents slices.
type Node struct {
	FirstEnd       uint32
	FirstSuccessor uint32
	FirstParent    uint32
	Depth          uint32
}

// End is one word reachable as an exit at a tree node, together with the
// pronunciation/exit score to add on top of the language model's word
// score.
type End struct {
	Token  uint32
	Offset Score
}

// TokenLocation is one (node, offset) location at which a word token is
// reachable; a word can be reachable at more than one place in the tree.
type TokenLocation struct {
	Node   NodeID
	Offset Score
}

// Tree is the immutable, compressed look-ahead structure built once per
// network (or per network revision) by Build.
type Tree struct {
	Nodes      []Node // len(Nodes) == numNodes+1; the last entry is a sentinel carrying total counts.
	Ends       []End
	Successors []NodeID
	Parents    []NodeID

	nodeForToken      []TokenLocation
	firstNodeForToken []uint32 // len == vocabSize+1

	// NodeID lookup, indexed by network.StateID.
	nodeForState []NodeID
}

// NumNodes returns the number of real (non-sentinel) look-ahead nodes.
func (t *Tree) NumNodes() int { return len(t.Nodes) - 1 }

// SuccessorsOf returns node's child look-ahead nodes.
func (t *Tree) SuccessorsOf(node NodeID) []NodeID {
	return t.Successors[t.Nodes[node].FirstSuccessor:t.Nodes[node+1].FirstSuccessor]
}

// EndsOf returns the words ending at node.
func (t *Tree) EndsOf(node NodeID) []End {
	return t.Ends[t.Nodes[node].FirstEnd:t.Nodes[node+1].FirstEnd]
}

// ParentsOf returns node's parent look-ahead nodes.
func (t *Tree) ParentsOf(node NodeID) []NodeID {
	return t.Parents[t.Nodes[node].FirstParent:t.Nodes[node+1].FirstParent]
}

// Depth returns node's distance from the tree's root(s).
func (t *Tree) Depth(node NodeID) uint32 { return t.Nodes[node].Depth }

// IsSingleWordNode reports whether node leads to exactly one word-end and
// has no further branching, the condition under which a single word's
// score can stand in for the whole subtree's look-ahead score.
func (t *Tree) IsSingleWordNode(node NodeID) bool {
	n, next := t.Nodes[node], t.Nodes[node+1]
	return next.FirstEnd-n.FirstEnd == 1 && next.FirstSuccessor == n.FirstSuccessor
}

// NodeForState maps a network state to its look-ahead node. States beyond
// the construction cutoff map to the node of the cutoff-depth state they
// were reached through; states not reached by Build, or ids outside the
// network, map to InvalidNode.
func (t *Tree) NodeForState(s network.StateID) NodeID {
	if int(s) >= len(t.nodeForState) {
		return InvalidNode
	}
	return t.nodeForState[s]
}

// LocationsForToken returns every (node, offset) at which token is
// reachable as a word-end.
func (t *Tree) LocationsForToken(token uint32) []TokenLocation {
	if int(token)+1 >= len(t.firstNodeForToken) {
		return nil
	}
	return t.nodeForToken[t.firstNodeForToken[token]:t.firstNodeForToken[token+1]]
}

// BuildConfig controls how the HMM state network is collapsed into a
// look-ahead tree.
type BuildConfig struct {
	// CutoffDepth bounds how deep the tree is expanded; states reached
	// beyond this depth are all folded into one node per branch, losing
	// distinction between them (a speed/memory versus look-ahead
	// precision trade-off). CutoffDepth <= 0 means unbounded.
	CutoffDepth int

	// VocabSize is the number of distinct word tokens the exits can name;
	// NodeForToken/FirstNodeForToken are sized from it.
	VocabSize uint32
}

// ExitToken maps a network exit's label to the word token and
// pronunciation score it contributes.
type ExitToken struct {
	Label  uint32
	Token  uint32
	Offset Score
}

// Build constructs a look-ahead tree over n reachable from roots, using
// tokens to translate output labels encountered along the way into word
// tokens. Each network state retains its own look-ahead node up to
// cfg.CutoffDepth; beyond that, all states at a given branch collapse
// into a single node so the tree stays bounded regardless of network
// depth.
func Build(n *network.Network, roots []network.StateID, tokens []ExitToken, cfg BuildConfig) *Tree {
	labelToToken := make(map[uint32]ExitToken, len(tokens))
	for _, tok := range tokens {
		labelToToken[tok.Label] = tok
	}

	b := &builder{
		network:      n,
		labelToToken: labelToToken,
		cutoffDepth:  cfg.CutoffDepth,
		nodeForState: make([]NodeID, n.StateCount()),
	}
	for i := range b.nodeForState {
		b.nodeForState[i] = InvalidNode
	}

	for _, root := range roots {
		b.visit(root, 0, InvalidNode)
	}

	return b.compress(cfg.VocabSize)
}

type constructionNode struct {
	ends       []End
	successors []NodeID
	parents    []NodeID
	depth      uint32
}

type builder struct {
	network      *network.Network
	labelToToken map[uint32]ExitToken
	cutoffDepth  int
	nodeForState []NodeID
	nodes        []*constructionNode
}

func (b *builder) newNode(depth uint32) NodeID {
	b.nodes = append(b.nodes, &constructionNode{depth: depth})
	return NodeID(len(b.nodes) - 1)
}

// visit assigns state a look-ahead node and recurses into its successors.
// collapseInto is InvalidNode while still within the uncollapsed part of
// the tree; once depth reaches cutoffDepth, the state at that boundary
// becomes collapseInto for everything beneath it, so an arbitrarily deep
// network still produces a tree bounded by cutoffDepth, at the cost of no
// longer distinguishing states past that point.
func (b *builder) visit(state network.StateID, depth int, collapseInto NodeID) NodeID {
	if b.nodeForState[state] != InvalidNode {
		return b.nodeForState[state]
	}

	var node NodeID
	childCollapseInto := collapseInto
	switch {
	case collapseInto != InvalidNode:
		node = collapseInto
	case b.cutoffDepth > 0 && depth >= b.cutoffDepth:
		node = b.newNode(uint32(depth))
		childCollapseInto = node
	default:
		node = b.newNode(uint32(depth))
	}
	b.nodeForState[state] = node

	for _, label := range b.network.TargetOutputSet(state) {
		if tok, ok := b.labelToToken[label]; ok {
			b.nodes[node].ends = append(b.nodes[node].ends, End{Token: tok.Token, Offset: tok.Offset})
		}
	}

	for _, succ := range b.network.TargetNodeSet(state) {
		child := b.visit(succ, depth+1, childCollapseInto)
		if child != node {
			b.nodes[node].successors = appendUnique(b.nodes[node].successors, child)
			b.nodes[child].parents = appendUnique(b.nodes[child].parents, node)
		}
	}
	return node
}

func appendUnique(s []NodeID, v NodeID) []NodeID {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

func (b *builder) compress(vocabSize uint32) *Tree {
	n := len(b.nodes)
	t := &Tree{
		Nodes:        make([]Node, n+1),
		nodeForState: b.nodeForState,
	}

	for i, cn := range b.nodes {
		t.Nodes[i] = Node{
			FirstEnd:       uint32(len(t.Ends)),
			FirstSuccessor: uint32(len(t.Successors)),
			FirstParent:    uint32(len(t.Parents)),
			Depth:          cn.depth,
		}
		t.Ends = append(t.Ends, cn.ends...)
		t.Successors = append(t.Successors, cn.successors...)
		t.Parents = append(t.Parents, cn.parents...)
	}
	t.Nodes[n] = Node{
		FirstEnd:       uint32(len(t.Ends)),
		FirstSuccessor: uint32(len(t.Successors)),
		FirstParent:    uint32(len(t.Parents)),
	}

	t.buildTokenIndex(vocabSize)
	return t
}

func (t *Tree) buildTokenIndex(vocabSize uint32) {
	t.firstNodeForToken = make([]uint32, vocabSize+1)
	entries := make([]TokenLocation, 0, len(t.Ends))
	tokenOf := make([]uint32, 0, len(t.Ends))
	for node := 0; node < len(t.Nodes)-1; node++ {
		for _, e := range t.EndsOf(NodeID(node)) {
			entries = append(entries, TokenLocation{Node: NodeID(node), Offset: e.Offset})
			tokenOf = append(tokenOf, e.Token)
		}
	}

	order := make([]int, len(entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return tokenOf[order[i]] < tokenOf[order[j]] })

	t.nodeForToken = make([]TokenLocation, len(entries))
	idx := 0
	for token := uint32(0); token < vocabSize; token++ {
		t.firstNodeForToken[token] = uint32(idx)
		for idx < len(order) && tokenOf[order[idx]] == token {
			t.nodeForToken[idx] = entries[order[idx]]
			idx++
		}
	}
	t.firstNodeForToken[vocabSize] = uint32(idx)
}
