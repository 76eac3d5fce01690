package lmla

import (
	"testing"

	"github.com/rwthsearch/asrsearch/network"
)

// buildFork builds root -> {a, b}, each with its own label-exit, a
// diamond reconvergence a->c, b->c with c carrying a third label.
func buildFork(t *testing.T) (*network.Network, network.StateID) {
	t.Helper()
	n := network.New()
	tree := n.AllocateTree()
	root := n.AllocateTreeNode(tree)
	a := n.AllocateTreeNode(tree)
	b := n.AllocateTreeNode(tree)
	c := n.AllocateTreeNode(tree)

	n.AddTargetToNode(root, a)
	n.AddTargetToNode(root, b)
	n.AddTargetToNode(a, c)
	n.AddTargetToNode(b, c)

	n.AddOutputToNode(a, 10)
	n.AddOutputToNode(b, 20)
	n.AddOutputToNode(c, 30)
	return n, root
}

func TestBuildProducesOneNodePerState(t *testing.T) {
	n, root := buildFork(t)
	tokens := []ExitToken{{Label: 10, Token: 1}, {Label: 20, Token: 2}, {Label: 30, Token: 3}}

	tree := Build(n, []network.StateID{root}, tokens, BuildConfig{VocabSize: 4})

	if tree.NumNodes() != 4 {
		t.Fatalf("NumNodes() = %d, want 4", tree.NumNodes())
	}

	rootNode := tree.NodeForState(root)
	if len(tree.SuccessorsOf(rootNode)) != 2 {
		t.Fatalf("root successors = %v, want 2", tree.SuccessorsOf(rootNode))
	}
}

func TestBuildReconvergesSharedState(t *testing.T) {
	n, root := buildFork(t)
	tokens := []ExitToken{{Label: 10, Token: 1}, {Label: 20, Token: 2}, {Label: 30, Token: 3}}
	tree := Build(n, []network.StateID{root}, tokens, BuildConfig{VocabSize: 4})

	// c is reachable from both a and b; it must map to a single node with
	// two parents, not be duplicated.
	var cState network.StateID = 4 // root=1,a=2,b=3,c=4 given AllocateTreeNode's allocation order
	cNode := tree.NodeForState(cState)
	if len(tree.ParentsOf(cNode)) != 2 {
		t.Fatalf("c's parents = %v, want 2", tree.ParentsOf(cNode))
	}
}

func TestBuildCutoffDepthCollapsesDeepStates(t *testing.T) {
	n := network.New()
	tree := n.AllocateTree()
	s0 := n.AllocateTreeNode(tree)
	s1 := n.AllocateTreeNode(tree)
	s2 := n.AllocateTreeNode(tree)
	s3 := n.AllocateTreeNode(tree)
	n.AddTargetToNode(s0, s1)
	n.AddTargetToNode(s1, s2)
	n.AddTargetToNode(s2, s3)
	n.AddOutputToNode(s3, 5)

	lt := Build(n, []network.StateID{s0}, []ExitToken{{Label: 5, Token: 1}}, BuildConfig{CutoffDepth: 2, VocabSize: 2})

	// depth 0 (s0) and depth 1 (s1) get distinct nodes; s2, at the cutoff
	// boundary, gets the collapsed node that s3 (depth beyond the cutoff)
	// then folds into too.
	if lt.NumNodes() != 3 {
		t.Fatalf("NumNodes() = %d, want 3 under a cutoff of 2", lt.NumNodes())
	}
	if lt.NodeForState(s3) != lt.NodeForState(s2) {
		t.Fatalf("s3 should collapse into s2's node")
	}
	if lt.NodeForState(s2) == lt.NodeForState(s1) {
		t.Fatalf("s2 (the cutoff boundary) should still get its own node")
	}
}

func TestLocationsForTokenFindsAllEnds(t *testing.T) {
	n, root := buildFork(t)
	tokens := []ExitToken{{Label: 10, Token: 1, Offset: 0.5}, {Label: 20, Token: 1}, {Label: 30, Token: 2}}
	tree := Build(n, []network.StateID{root}, tokens, BuildConfig{VocabSize: 3})

	locs := tree.LocationsForToken(1)
	if len(locs) != 2 {
		t.Fatalf("LocationsForToken(1) = %v, want 2 entries", locs)
	}
}

func TestIsSingleWordNode(t *testing.T) {
	n, root := buildFork(t)
	tokens := []ExitToken{{Label: 10, Token: 1}, {Label: 20, Token: 2}, {Label: 30, Token: 3}}
	tree := Build(n, []network.StateID{root}, tokens, BuildConfig{VocabSize: 4})

	rootNode := tree.NodeForState(root)
	if tree.IsSingleWordNode(rootNode) {
		t.Fatalf("root should not be a single-word node, it branches")
	}
}
