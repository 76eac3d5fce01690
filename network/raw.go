package network

import "github.com/rwthsearch/asrsearch/batch"

// The accessors and the constructor in this file exist solely so networkio
// can serialize and reconstruct a Network's backing arrays verbatim (see
// spec.md §6.1's field list). They are not meant for general use by
// decoding code, which should go through State/Tree/Successors.

// States returns the backing state array, including the reserved index 0.
// The slice aliases Network's internal storage; callers must not mutate it.
func (n *Network) States() []State { return n.states }

// Trees returns the backing tree array, including the reserved
// EmptyTreeIndex. The slice aliases Network's internal storage; callers
// must not mutate it.
func (n *Network) Trees() []Tree { return n.trees }

// SubTreeBatches returns the raw (start,next,end) triples backing the
// per-tree node lists.
func (n *Network) SubTreeBatches() []uint32 { return n.subTree.Raw() }

// SuccessorBatches returns the raw (start,next,end) triples backing the
// per-state successor lists.
func (n *Network) SuccessorBatches() []uint32 { return n.succ.Raw() }

// EdgeTargetLists returns the legacy per-label batch-id list carried for
// wire-format fidelity (see the Network.edgeTargetLists doc comment).
func (n *Network) EdgeTargetLists() []uint32 { return n.edgeTargetLists }

// FromRaw reconstructs a Network directly from its backing arrays, as read
// back from a persistent image. The slices are used directly, not copied.
func FromRaw(states []State, trees []Tree, subTreeBatches, succBatches, edgeTargetLists []uint32) *Network {
	return &Network{
		states:          states,
		trees:           trees,
		subTree:         batch.NewUnmanagedFromRaw(subTreeBatches),
		succ:            batch.NewUnmanagedFromRaw(succBatches),
		edgeTargetLists: edgeTargetLists,
	}
}
