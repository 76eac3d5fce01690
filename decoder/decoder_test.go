package decoder

import (
	"testing"

	"github.com/rwthsearch/asrsearch/lmla"
	"github.com/rwthsearch/asrsearch/network"
)

// fakeAcoustic scores every (frame, model) pair with a fixed cost keyed
// only by model index, so tests can tell states apart by their score.
type fakeAcoustic struct{}

func (fakeAcoustic) Score(frame int, acousticModelIndex uint32) Score {
	return Score(acousticModelIndex)
}

type fakeTransition struct{}

func (fakeTransition) LoopScore(transitionModelIndex uint32) Score    { return 1 }
func (fakeTransition) ForwardScore(transitionModelIndex uint32) Score { return 0 }

// fakePron maps pronunciation id directly to an identical word token at
// zero added cost.
type fakePron struct{}

func (fakePron) Word(pronunciationID uint32) (uint32, Score) { return pronunciationID, 0 }

// fakeLM never penalizes any word and extends history by appending the
// token, so histories are comparable strings of tokens.
type fakeLM struct{}

func (fakeLM) Score(history lmla.History, token uint32) Score { return 0 }
func (fakeLM) BackOff(history lmla.History) Score             { return 0 }
func (fakeLM) Extend(history lmla.History, token uint32) lmla.History {
	return history.(string) + string(rune('a'+token))
}

// buildChain builds start -> mid -(exit label 0, word 0)-> end, where the
// three states use distinct acoustic states (1, 2, 3) and end is a
// dead-end accepting state.
func buildChain(t *testing.T) (*network.Network, network.StateID, []network.Exit) {
	t.Helper()
	n := network.New()
	tree := n.AllocateTree()
	start := n.AllocateTreeNode(tree)
	mid := n.AllocateTreeNode(tree)
	end := n.AllocateTreeNode(tree)

	n.State(start).Desc = network.StateDesc{AcousticModelIndex: 1, TransitionModelIndex: 1}
	n.State(mid).Desc = network.StateDesc{AcousticModelIndex: 2, TransitionModelIndex: 2}
	n.State(end).Desc = network.StateDesc{AcousticModelIndex: 3, TransitionModelIndex: 3}

	n.AddTargetToNode(start, mid)
	n.AddOutputToNode(mid, 0)

	exits := []network.Exit{{PronunciationID: 0, TransitState: end}}
	return n, start, exits
}

func newTestDecoder(t *testing.T) (*Decoder, network.StateID) {
	t.Helper()
	n, start, exits := buildChain(t)
	cfg := DefaultConfig()
	d := New(n, exits, fakeAcoustic{}, fakeTransition{}, fakePron{}, fakeLM{}, nil, cfg)
	return d, start
}

func TestStepAdvancesAcrossWordBoundary(t *testing.T) {
	d, start := newTestDecoder(t)
	d.Reset(start, "")

	d.Step(0, start, "")

	state, h, ok := d.BestHypothesis()
	if !ok {
		t.Fatalf("no active hypothesis after one step")
	}
	if state == start {
		t.Fatalf("hypothesis did not leave the start state")
	}
	words := d.BestWordSequence(h)
	if len(words) != 1 || words[0] != 0 {
		t.Fatalf("BestWordSequence = %v, want [0]", words)
	}
}

func TestStepReseedsOnEmptyActiveSet(t *testing.T) {
	d, start := newTestDecoder(t)
	d.current = map[network.StateID][]Hyp{} // simulate a dead search

	d.Step(0, start, "")

	if len(d.current) == 0 {
		t.Fatalf("reseed did not repopulate the active set")
	}
}

func TestPruneAcousticDropsFarWorseHyps(t *testing.T) {
	d, _ := newTestDecoder(t)
	d.cfg.AcousticPruningThreshold = 1
	d.next = map[network.StateID][]Hyp{
		1: {{Score: 0, History: "a"}},
		2: {{Score: 100, History: "b"}},
	}

	dropped := d.pruneAcoustic()

	if dropped != 1 {
		t.Fatalf("pruneAcoustic dropped %d, want 1", dropped)
	}
	if _, ok := d.next[2]; ok {
		t.Fatalf("far worse hypothesis survived pruning")
	}
}

func TestPerStatePruneCapsHypsPerState(t *testing.T) {
	d, _ := newTestDecoder(t)
	d.cfg.StatesPerStateLimit = 2
	d.next = map[network.StateID][]Hyp{
		1: {
			{Score: 3, History: "a"},
			{Score: 1, History: "b"},
			{Score: 2, History: "c"},
		},
	}

	d.perStatePrune()

	if len(d.next[1]) != 2 {
		t.Fatalf("perStatePrune left %d hyps, want 2", len(d.next[1]))
	}
	for _, h := range d.next[1] {
		if h.Score == 3 {
			t.Fatalf("worst hypothesis survived per-state pruning")
		}
	}
}

func TestAddHypRecombinesSameHistory(t *testing.T) {
	d, _ := newTestDecoder(t)
	set := map[network.StateID][]Hyp{}

	d.addHyp(set, 1, Hyp{Score: 5, History: "a"})
	d.addHyp(set, 1, Hyp{Score: 2, History: "a"})
	d.addHyp(set, 1, Hyp{Score: 9, History: "b"})

	if len(set[1]) != 2 {
		t.Fatalf("addHyp produced %d entries, want 2 (one per distinct history)", len(set[1]))
	}
	for _, h := range set[1] {
		if h.History == "a" && h.Score != 2 {
			t.Fatalf("recombination kept score %v for history a, want 2", h.Score)
		}
	}
}

func TestBestWordSequenceOrdersWordsByEmission(t *testing.T) {
	d, _ := newTestDecoder(t)
	d.trace = []WordBackPointer{
		{Frame: 0, Token: 7, Prev: InvalidBackPointer},
		{Frame: 1, Token: 8, Prev: 0},
	}
	h := Hyp{BackPointer: 1}

	words := d.BestWordSequence(h)

	if len(words) != 2 || words[0] != 7 || words[1] != 8 {
		t.Fatalf("BestWordSequence = %v, want [7 8]", words)
	}
}
