// Package network implements the HMM state network: a directed, cyclic
// graph of acoustic HMM states whose edges are packed successor batches
// (see batch.Manager), plus the exit labels that mark word boundaries.
//
// The network owns all states; edges carry StateID indices rather than
// pointers, so the backing array can be freely reallocated (on growth) or
// rebuilt (by Cleanup) without invalidating any live reference held as an
// id. Successors is a Deadline-free structure: nothing but Cleanup ever
// shrinks it, and Cleanup always produces a consistent renumbering.
package network

import (
	"sort"

	"github.com/rwthsearch/asrsearch/batch"
	"github.com/rwthsearch/asrsearch/internal/conv"
)

// StateID identifies a state in a Network. Zero is reserved: index 0 of
// the backing array is never a real state.
type StateID uint32

// InvalidState is the reserved sentinel meaning "no state".
const InvalidState StateID = 0

// TreeIndex identifies one tree (a group of states built together, e.g.
// all states of one phonetic context) within a Network.
type TreeIndex uint32

// EmptyTreeIndex is the reserved tree with no nodes; by convention it
// stands for "no tree" / "directly activate a label".
const EmptyTreeIndex TreeIndex = 0

// labelFlag marks an encoded successor element as a label rather than a
// state id. It is a distinct bit from batch's own singleton-batch tag:
// this flag lives on the *value* stored inside a successor batch, batch's
// tag lives on the *id* of the batch itself, and the two never interact.
const labelFlag uint32 = 1 << 30

// IsLabel reports whether a raw successor element encodes a label.
func IsLabel(raw uint32) bool { return raw&labelFlag != 0 }

// EncodeLabel packs a label index into a successor-batch element.
func EncodeLabel(label uint32) uint32 { return label | labelFlag }

// DecodeLabel extracts the label index from an encoded successor element.
// Behavior is undefined if IsLabel(raw) is false.
func DecodeLabel(raw uint32) uint32 { return raw &^ labelFlag }

// StateDesc names the acoustic state and transition model a State scores
// with; the network itself never interprets these, it just carries them
// for the decoder and emission lookup.
type StateDesc struct {
	AcousticModelIndex   uint32
	TransitionModelIndex uint32
}

// State is one node of the network: a description plus the batch of its
// successors (other states and/or exit labels, see IsLabel).
type State struct {
	Desc       StateDesc
	Successors batch.ID
}

// HasSingleSuccessor reports whether s's successor batch is the
// single-element encoding, letting a caller skip the iterator for the
// overwhelmingly common one-successor case.
func (s State) HasSingleSuccessor() bool { return batch.IsSingleton(s.Successors) }

// Tree groups the states allocated together under one parent context; its
// Nodes batch lists every state belonging to it in allocation order.
type Tree struct {
	Nodes batch.ID
}

// SilentExit is the PronunciationID value that marks a silent (non-
// speaking) exit.
const SilentExit uint32 = 0xFFFFFFFF

// Exit describes a word boundary: which pronunciation was completed and
// which state recognition resumes at (supporting right-context
// coarticulation).
type Exit struct {
	PronunciationID uint32
	TransitState    StateID
}

// Network is a directed graph of HMM states with exit-labels, organized
// into trees. It supports incremental mutation (AddTargetToNode,
// AddOutputToNode, Change/Apply) and compaction (Cleanup).
type Network struct {
	states []State
	trees  []Tree

	subTree *batch.Manager // lists of states belonging to one tree
	succ    *batch.Manager // lists of successor elements (states or labels)

	// edgeTargetLists mirrors the original format's legacy per-label
	// batch-id list. No public operation in this package populates it;
	// it is carried only so the persistent format (networkio) round-
	// trips byte-for-byte, matching upstream's own unused vestige.
	edgeTargetLists []uint32
}

// New returns an empty network with its reserved zero state and zero
// (empty) tree already allocated.
func New() *Network {
	return &Network{
		states:          make([]State, 1),
		trees:           make([]Tree, 1),
		subTree:         batch.NewUnmanaged(),
		succ:            batch.NewUnmanaged(),
		edgeTargetLists: []uint32{0},
	}
}

// State returns a pointer to the state with the given id. The pointer is
// invalidated by any call that grows or rebuilds the states array
// (AllocateTreeNode, Cleanup): do not retain it across those.
func (n *Network) State(id StateID) *State {
	if id == InvalidState || int(id) >= len(n.states) {
		panic(invalidState(id))
	}
	return &n.states[id]
}

// StateCount returns one past the highest valid StateID.
func (n *Network) StateCount() int { return len(n.states) }

// Tree returns a pointer to the tree with the given index, subject to the
// same invalidation rule as State.
func (n *Network) Tree(idx TreeIndex) *Tree {
	if idx == EmptyTreeIndex || int(idx) >= len(n.trees) {
		panic(invalidTree(idx))
	}
	return &n.trees[idx]
}

// TreeCount returns one past the highest valid TreeIndex.
func (n *Network) TreeCount() int { return len(n.trees) }

// AllocateTree reserves a fresh, empty tree and returns its index.
func (n *Network) AllocateTree() TreeIndex {
	n.trees = append(n.trees, Tree{Nodes: batch.Invalid})
	return TreeIndex(len(n.trees) - 1)
}

// AllocateTreeNode allocates a new state and adds it to parent's node
// list. As many nodes for the same parent should be allocated in a row as
// possible: doing so lets the underlying batch fold them into one
// contiguous run instead of a chain.
func (n *Network) AllocateTreeNode(parent TreeIndex) StateID {
	if parent == EmptyTreeIndex {
		panic(invalidTree(parent))
	}
	id := StateID(conv.IntToUint32(len(n.states)))
	n.states = append(n.states, State{Successors: batch.Invalid})
	t := &n.trees[parent]
	t.Nodes = n.subTree.AppendRange(t.Nodes, uint32(id), uint32(id)+1)
	return id
}

// NodeCount returns the number of states belonging to parent.
func (n *Network) NodeCount(parent TreeIndex) int {
	return n.subTree.Count(n.trees[parent].Nodes)
}

// TreeNode returns the i-th state (in allocation order) belonging to
// parent.
func (n *Network) TreeNode(parent TreeIndex, i int) StateID {
	return StateID(n.subTree.Values(n.trees[parent].Nodes)[i])
}

// ClearOutputEdges drops every successor of node; the memory is only
// reclaimed by a subsequent Cleanup.
func (n *Network) ClearOutputEdges(node StateID) {
	n.states[node].Successors = batch.Invalid
}

// addToEdge links target (already encoded, state id or label) onto list.
func (n *Network) addToEdge(list *batch.ID, target uint32) {
	*list = n.succ.AppendRange(*list, target, target+1)
}

// AddTargetToNode appends target as a successor state of src.
func (n *Network) AddTargetToNode(src, target StateID) {
	n.addToEdge(&n.states[src].Successors, uint32(target))
}

// AddOutputToNode appends label as an exit successor of src.
func (n *Network) AddOutputToNode(src StateID, label uint32) {
	n.addToEdge(&n.states[src].Successors, EncodeLabel(label))
}

// removeTargetFromNode removes target, a state successor, from node's
// successor batch, rebuilding it through a ChangePlan.
func (n *Network) removeTargetFromNode(node, target StateID) {
	p := n.Change(node)
	p.RemoveSuccessor(target)
	p.Apply()
}

// RemoveTargetFromNode removes target, a state successor, from node's
// successor batch.
func (n *Network) RemoveTargetFromNode(node, target StateID) {
	n.removeTargetFromNode(node, target)
}

// RemoveOutputFromNode removes label, an exit successor, from node's
// successor batch.
func (n *Network) RemoveOutputFromNode(node StateID, label uint32) {
	p := n.Change(node)
	p.RemoveSuccessorLabel(label)
	p.Apply()
}

// SuccessorIterator walks the successors (states and/or labels) of one
// state, in ascending order once the owning network has been cleaned.
type SuccessorIterator struct {
	it *batch.Iterator
}

// Next advances to the next successor, returning false when exhausted.
func (s *SuccessorIterator) Next() bool { return s.it.Next() }

// IsLabel reports whether the current successor is an exit label rather
// than a state.
func (s *SuccessorIterator) IsLabel() bool { return IsLabel(s.it.Value()) }

// Label returns the current successor's label index. Valid only when
// IsLabel is true.
func (s *SuccessorIterator) Label() uint32 { return DecodeLabel(s.it.Value()) }

// State returns the current successor's state id. Valid only when IsLabel
// is false.
func (s *SuccessorIterator) State() StateID { return StateID(s.it.Value()) }

// Successors returns an iterator over node's successors.
func (n *Network) Successors(node StateID) *SuccessorIterator {
	return &SuccessorIterator{it: n.succ.Iterate(n.states[node].Successors)}
}

// TargetNodeSet returns the distinct state successors of node.
func (n *Network) TargetNodeSet(node StateID) []StateID {
	var out []StateID
	for it := n.Successors(node); it.Next(); {
		if !it.IsLabel() {
			out = append(out, it.State())
		}
	}
	return out
}

// TargetOutputSet returns the distinct label successors of node.
func (n *Network) TargetOutputSet(node StateID) []uint32 {
	var out []uint32
	for it := n.Successors(node); it.Next(); {
		if it.IsLabel() {
			out = append(out, it.Label())
		}
	}
	return out
}

// ChangePlan accumulates successor adds/removes for one state; Apply
// rebuilds that state's successor batch so the final edge set has no
// duplicates and is split into ascending state targets followed by
// ascending labels.
type ChangePlan struct {
	node   StateID
	add    map[uint32]struct{}
	remove map[uint32]struct{}
	n      *Network
}

// Change starts a change plan for node. The plan has no effect until
// Apply is called.
func (n *Network) Change(node StateID) *ChangePlan {
	return &ChangePlan{node: node, add: map[uint32]struct{}{}, remove: map[uint32]struct{}{}, n: n}
}

// AddSuccessor schedules target to be present after Apply.
func (p *ChangePlan) AddSuccessor(target StateID) {
	delete(p.remove, uint32(target))
	p.add[uint32(target)] = struct{}{}
}

// AddSuccessorLabel schedules label to be present after Apply.
func (p *ChangePlan) AddSuccessorLabel(label uint32) {
	k := EncodeLabel(label)
	delete(p.remove, k)
	p.add[k] = struct{}{}
}

// RemoveSuccessor schedules target to be absent after Apply.
func (p *ChangePlan) RemoveSuccessor(target StateID) {
	delete(p.add, uint32(target))
	p.remove[uint32(target)] = struct{}{}
}

// RemoveSuccessorLabel schedules label to be absent after Apply.
func (p *ChangePlan) RemoveSuccessorLabel(label uint32) {
	k := EncodeLabel(label)
	delete(p.add, k)
	p.remove[k] = struct{}{}
}

// Apply rebuilds the plan's node's successor batch from its current
// contents plus the scheduled adds/removes.
func (p *ChangePlan) Apply() {
	if len(p.add) == 0 && len(p.remove) == 0 {
		return
	}
	n := p.n
	targets := map[uint32]struct{}{}
	outputs := map[uint32]struct{}{}

	for it := n.Successors(p.node); it.Next(); {
		v := it.it.Value()
		if _, dead := p.remove[v]; dead {
			continue
		}
		if IsLabel(v) {
			outputs[DecodeLabel(v)] = struct{}{}
		} else {
			targets[v] = struct{}{}
		}
	}
	for k := range p.add {
		if IsLabel(k) {
			outputs[DecodeLabel(k)] = struct{}{}
		} else {
			targets[k] = struct{}{}
		}
	}

	n.ClearOutputEdges(p.node)
	list := &n.states[p.node].Successors
	for _, t := range sortedKeys(targets) {
		n.addToEdge(list, t)
	}
	for _, o := range sortedKeys(outputs) {
		n.addToEdge(list, EncodeLabel(o))
	}
}

func sortedKeys(m map[uint32]struct{}) []uint32 {
	out := make([]uint32, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
