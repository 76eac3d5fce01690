package networkio

import (
	"fmt"
	"io"

	"github.com/rwthsearch/asrsearch/network"
)

// WriteDot dumps the network reachable from startNodes as a Graphviz digraph,
// for offline inspection of a loaded search network. Debug tooling only, not
// used on the decoding path.
func WriteDot(w io.Writer, n *network.Network, startNodes []network.StateID) error {
	if _, err := fmt.Fprintln(w, "digraph network {"); err != nil {
		return err
	}
	if _, err := fmt.Fprintln(w, "\trankdir=LR;"); err != nil {
		return err
	}

	visited := make(map[network.StateID]bool)
	queue := append([]network.StateID(nil), startNodes...)
	for _, id := range startNodes {
		visited[id] = true
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		state := n.State(id)
		if _, err := fmt.Fprintf(w, "\t%d [label=\"%d\\nam=%d tm=%d\"];\n",
			id, id, state.Desc.AcousticModelIndex, state.Desc.TransitionModelIndex); err != nil {
			return err
		}

		for _, target := range n.TargetNodeSet(id) {
			if _, err := fmt.Fprintf(w, "\t%d -> %d;\n", id, target); err != nil {
				return err
			}
			if !visited[target] {
				visited[target] = true
				queue = append(queue, target)
			}
		}
		for _, label := range n.TargetOutputSet(id) {
			exitNode := fmt.Sprintf("exit_%d_%d", id, label)
			if _, err := fmt.Fprintf(w, "\t%s [shape=box,label=\"%d\"];\n", exitNode, label); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "\t%d -> %s;\n", id, exitNode); err != nil {
				return err
			}
		}
	}

	_, err := fmt.Fprintln(w, "}")
	return err
}
