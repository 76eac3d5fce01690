package confnet

// StateID identifies a state of the lattice the confusion network was
// built from.
type StateID uint32

// LatticeArc is one transition of the lattice: Label is Epsilon for a
// non-word (silence, alignment-only) transition.
type LatticeArc struct {
	From, To StateID
	Label    Label
	Score    Score
}

// Lattice is the minimal view this package needs of the word lattice a
// confusion network was built from: the transitions and which states are
// final. Forward/backward scores are supplied separately (ForwardBackward)
// since they are a property of the full lattice scoring this package does
// not itself compute.
type Lattice struct {
	NumStates int
	Arcs      []LatticeArc
	Final     []StateID
}

// ForwardBackward carries the already-computed forward and backward
// -log-probability score of every lattice state.
type ForwardBackward struct {
	Forward  []float64 // indexed by StateID
	Backward []float64 // indexed by StateID
}

// topologicalOrder returns the lattice's states in a topological order
// (sources before sinks) using Kahn's algorithm. The lattice is assumed
// acyclic, as any well-formed word lattice is.
func topologicalOrder(l Lattice) []StateID {
	inDegree := make([]int, l.NumStates)
	adj := make([][]int, l.NumStates)
	for _, a := range l.Arcs {
		inDegree[a.To]++
		adj[a.From] = append(adj[a.From], int(a.To))
	}

	queue := make([]StateID, 0, l.NumStates)
	for s := 0; s < l.NumStates; s++ {
		if inDegree[s] == 0 {
			queue = append(queue, StateID(s))
		}
	}

	order := make([]StateID, 0, l.NumStates)
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		order = append(order, s)
		for _, t := range adj[s] {
			inDegree[t]--
			if inDegree[t] == 0 {
				queue = append(queue, StateID(t))
			}
		}
	}
	return order
}
