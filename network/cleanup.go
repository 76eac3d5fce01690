package network

import (
	"github.com/rwthsearch/asrsearch/batch"
	"github.com/rwthsearch/asrsearch/internal/conv"
)

// CleanupResult maps every state and tree that survived a Cleanup from its
// old id to its new one.
type CleanupResult struct {
	NodeMap map[StateID]StateID
	TreeMap map[TreeIndex]TreeIndex
}

// MapNodes maps a slice of pre-cleanup state ids through NodeMap. Panics if
// any of them did not survive cleanup.
func (r *CleanupResult) MapNodes(nodes []StateID) []StateID {
	out := make([]StateID, len(nodes))
	for i, s := range nodes {
		mapped, ok := r.NodeMap[s]
		if !ok {
			panic(invalidState(s))
		}
		out[i] = mapped
	}
	return out
}

// clearDeadEnds removes the output edges of every state with no path to
// any exit, then repeatedly strips edges pointing at now-empty states
// until none remain. A state with InvalidState successors after this pass
// can never reach an exit and will be dropped by the reachability pass of
// Cleanup.
func (n *Network) clearDeadEnds() {
	const unset = -1
	counts := make([]int32, len(n.states))
	for i := range counts {
		counts[i] = unset
	}

	var reachableEnds func(StateID) int32
	reachableEnds = func(node StateID) int32 {
		if counts[node] != unset {
			return counts[node]
		}
		// Guard against cycles: a state re-entered while still being
		// computed contributes zero reachable ends to its ancestors.
		counts[node] = 0
		var total int32
		for it := n.Successors(node); it.Next(); {
			if it.IsLabel() {
				total++
			} else {
				total += reachableEnds(it.State())
			}
		}
		counts[node] = total
		return total
	}

	for node := StateID(1); node < StateID(len(n.states)); node++ {
		if reachableEnds(node) == 0 {
			n.ClearOutputEdges(node)
		}
	}

	for node := StateID(1); node < StateID(len(n.states)); node++ {
		for {
			removed := false
			for it := n.Successors(node); it.Next(); {
				if it.IsLabel() {
					continue
				}
				target := it.State()
				if n.states[target].Successors == batch.Invalid {
					n.removeTargetFromNode(node, target)
					removed = true
					break
				}
			}
			if !removed {
				break
			}
		}
	}
}

// Cleanup removes every tree and state unreachable from startNodes,
// compacting the surviving ones into a dense renumbering, and returns the
// old-to-new id map. masterTree is always kept even if nothing in
// startNodes reaches into it directly (mirroring the original's
// always-keep-the-active-tree contract).
//
// If onlyBatches is true, reachability is skipped (every state and tree is
// kept) and only the batch layout is repacked; this is used to re-pack a
// network after edits without pruning it.
//
// The second-order batch-packing pass below chases one follow pointer per
// state so that, while enumerating a tree's states in the new order,
// consecutive second-order (skip-transition) successors end up adjacent in
// the new state array: for state s, first-order successor t, second-order
// successor u of t, we set follow[previousU] = u. This is what keeps
// skip-transition reads contiguous during decoding.
func (n *Network) Cleanup(startNodes []StateID, masterTree TreeIndex, clearDeadEnds, onlyBatches bool) *CleanupResult {
	if clearDeadEnds && !onlyBatches {
		n.clearDeadEnds()
	}

	visited := map[StateID]bool{}
	visitedTrees := map[TreeIndex]bool{}

	if onlyBatches {
		for t := TreeIndex(1); t < TreeIndex(len(n.trees)); t++ {
			visitedTrees[t] = true
		}
		for s := StateID(1); s < StateID(len(n.states)); s++ {
			visited[s] = true
		}
	} else {
		visitedTrees[masterTree] = true
		var visit func(StateID)
		visit = func(node StateID) {
			if visited[node] {
				return
			}
			visited[node] = true
			for it := n.Successors(node); it.Next(); {
				if !it.IsLabel() {
					visit(it.State())
				}
			}
		}
		for _, s := range startNodes {
			visit(s)
		}
		for t := TreeIndex(1); t < TreeIndex(len(n.trees)); t++ {
			for it := n.subTree.Iterate(n.trees[t].Nodes); it.Next(); {
				if visited[StateID(it.Value())] {
					visitedTrees[t] = true
					break
				}
			}
		}
	}

	// Second-order batch-packing order, per tree.
	follow := make([]StateID, len(n.states))
	orderedPerTree := make([][]StateID, len(n.trees))
	for tree := TreeIndex(1); tree < TreeIndex(len(n.trees)); tree++ {
		nodeList := n.subTree.Values(n.trees[tree].Nodes)

		for _, raw := range nodeList {
			node := StateID(raw)
			if !visited[node] {
				continue
			}
			var previousTarget, previousSkipTarget StateID
			for it := n.Successors(node); it.Next(); {
				if it.IsLabel() {
					break
				}
				target := it.State()
				if follow[previousTarget] == InvalidState {
					follow[previousTarget] = target
				}
				previousTarget = target

				for skip := n.Successors(target); skip.Next(); {
					if skip.IsLabel() {
						break
					}
					skipTarget := skip.State()
					follow[previousSkipTarget] = skipTarget
					previousSkipTarget = skipTarget
				}
			}
		}

		var ordered []StateID
		had := map[StateID]bool{}
		for _, raw := range nodeList {
			current := StateID(raw)
			if !visited[current] {
				continue
			}
			if onlyBatches {
				ordered = append(ordered, current)
				continue
			}
			for current != InvalidState {
				if had[current] {
					break
				}
				ordered = append(ordered, current)
				had[current] = true
				current = follow[current]
			}
		}
		orderedPerTree[tree] = ordered
	}

	result := &CleanupResult{NodeMap: map[StateID]StateID{}, TreeMap: map[TreeIndex]TreeIndex{}}

	newTrees := make([]Tree, 1, len(n.trees))
	newStates := make([]State, 1, len(n.states))
	newSubTree := batch.NewUnmanaged()

	for tree := TreeIndex(1); tree < TreeIndex(len(n.trees)); tree++ {
		if !visitedTrees[tree] {
			continue
		}
		newIdx := TreeIndex(len(newTrees))
		result.TreeMap[tree] = newIdx
		newTrees = append(newTrees, Tree{Nodes: batch.Invalid})

		for _, node := range orderedPerTree[tree] {
			newID := StateID(conv.IntToUint32(len(newStates)))
			// The copied state's Successors field still references
			// the OLD edge-target batches; it is rewritten below
			// once every node has a new id to map old targets to.
			newStates = append(newStates, n.states[node])
			newTrees[newIdx].Nodes = newSubTree.AppendRange(newTrees[newIdx].Nodes, uint32(newID), uint32(newID)+1)
			result.NodeMap[node] = newID
		}
		if newTrees[newIdx].Nodes == batch.Invalid {
			panic(&Error{Kind: EmptyTree, Message: "network: cleanup produced a tree with no surviving states"})
		}
	}
	if len(newStates) <= 1 {
		panic(&Error{Kind: EmptyTree, Message: "network: cleanup left no reachable states"})
	}

	oldSucc := n.succ
	newSucc := batch.NewUnmanaged()
	for node := StateID(1); node < StateID(len(newStates)); node++ {
		oldBatch := newStates[node].Successors
		var newBatch batch.ID
		for it := oldSucc.Iterate(oldBatch); it.Next(); {
			v := it.Value()
			if IsLabel(v) {
				newBatch = newSucc.AppendRange(newBatch, v, v+1)
				continue
			}
			mapped, ok := result.NodeMap[StateID(v)]
			if !ok {
				panic(&Error{Kind: UnreachableEdge, Message: "network: cleanup found an edge into an unreachable state"})
			}
			newBatch = newSucc.AppendRange(newBatch, uint32(mapped), uint32(mapped)+1)
		}
		newStates[node].Successors = newBatch
	}

	n.trees = newTrees
	n.states = newStates
	n.subTree = newSubTree
	n.succ = newSucc

	if !onlyBatches {
		recheck := map[StateID]bool{}
		var revisit func(StateID)
		revisit = func(node StateID) {
			if recheck[node] {
				return
			}
			recheck[node] = true
			for it := n.Successors(node); it.Next(); {
				if !it.IsLabel() {
					revisit(it.State())
				}
			}
		}
		for _, s := range startNodes {
			mapped, ok := result.NodeMap[s]
			if !ok {
				panic(&Error{Kind: ReachabilityChanged, Message: "network: cleanup start node became unreachable"})
			}
			revisit(mapped)
		}
		if len(recheck) != len(visited) {
			panic(&Error{Kind: ReachabilityChanged, Message: "network: cleanup changed the reachable state count"})
		}
	}

	return result
}
