package nonword

import (
	"testing"

	"github.com/rwthsearch/asrsearch/network"
)

func buildTwoStateNetwork(t *testing.T) (*network.Network, network.StateID, network.StateID) {
	t.Helper()
	n := network.New()
	tree := n.AllocateTree()
	a := n.AllocateTreeNode(tree)
	b := n.AllocateTreeNode(tree)
	n.AddTargetToNode(a, b)
	n.AddOutputToNode(a, 1) // a already has lemma 1's self-loop
	return n, a, b
}

func TestAddNonWordTokensAllStatesSkipsExisting(t *testing.T) {
	n, a, b := buildTwoStateNetwork(t)
	lemmas := []Lemma{{Label: 1}, {Label: 2}}

	added, err := AddNonWordTokens(n, lemmas, Config{Mode: AllStates})
	if err != nil {
		t.Fatalf("AddNonWordTokens: %v", err)
	}
	// a: only label 2 is new (label 1 already present) -> 1 add
	// b: both labels are new -> 2 adds
	if added != 3 {
		t.Fatalf("added = %d, want 3", added)
	}

	aLabels := n.TargetOutputSet(a)
	if !hasLabel(aLabels, 1) || !hasLabel(aLabels, 2) {
		t.Fatalf("a labels = %v, want {1,2}", aLabels)
	}
	bLabels := n.TargetOutputSet(b)
	if !hasLabel(bLabels, 1) || !hasLabel(bLabels, 2) {
		t.Fatalf("b labels = %v, want {1,2}", bLabels)
	}
}

func TestAddNonWordTokensUnigramStateOnly(t *testing.T) {
	n, a, b := buildTwoStateNetwork(t)
	lemmas := []Lemma{{Label: 2}}

	added, err := AddNonWordTokens(n, lemmas, Config{Mode: UnigramState, UnigramState: a})
	if err != nil {
		t.Fatalf("AddNonWordTokens: %v", err)
	}
	if added != 1 {
		t.Fatalf("added = %d, want 1", added)
	}
	if labels := n.TargetOutputSet(b); len(labels) != 0 {
		t.Fatalf("b should be untouched, got labels %v", labels)
	}
}

func TestAddNonWordTokensRenormalizeCallback(t *testing.T) {
	n, a, _ := buildTwoStateNetwork(t)
	var calls []network.StateID
	var gotLabels []uint32

	_, err := AddNonWordTokens(n, []Lemma{{Label: 2}}, Config{
		Mode:         UnigramState,
		UnigramState: a,
		Renormalize:  true,
		Renormalizer: func(state network.StateID, labels []uint32) {
			calls = append(calls, state)
			gotLabels = append(gotLabels, labels...)
		},
	})
	if err != nil {
		t.Fatalf("AddNonWordTokens: %v", err)
	}
	if len(calls) != 1 || calls[0] != a {
		t.Fatalf("renormalizer calls = %v, want [%d]", calls, a)
	}
	if len(gotLabels) != 1 || gotLabels[0] != 2 {
		t.Fatalf("renormalizer labels = %v, want [2]", gotLabels)
	}
}

func TestAddNonWordTokensNoOpWhenAllPresent(t *testing.T) {
	n, a, _ := buildTwoStateNetwork(t)
	added, err := AddNonWordTokens(n, []Lemma{{Label: 1}}, Config{Mode: UnigramState, UnigramState: a})
	if err != nil {
		t.Fatalf("AddNonWordTokens: %v", err)
	}
	if added != 0 {
		t.Fatalf("added = %d, want 0", added)
	}
}

func hasLabel(labels []uint32, want uint32) bool {
	for _, l := range labels {
		if l == want {
			return true
		}
	}
	return false
}
