package networkio

import (
	"bytes"
	"errors"
	"testing"

	"github.com/rwthsearch/asrsearch/network"
)

func buildChain(t *testing.T) (*network.Network, network.StateID, network.StateID, network.StateID) {
	t.Helper()
	n := network.New()
	tree := n.AllocateTree()
	a := n.AllocateTreeNode(tree)
	b := n.AllocateTreeNode(tree)
	c := n.AllocateTreeNode(tree)
	n.AddTargetToNode(a, b)
	n.AddTargetToNode(b, c)
	n.AddOutputToNode(b, 7)
	return n, a, b, c
}

func TestWriteReadRoundTrip(t *testing.T) {
	n, a, b, c := buildChain(t)
	store := &Store{
		Network:     n,
		Exits:       []network.Exit{{PronunciationID: 42, TransitState: b}},
		RootState:   a,
		CIRootState: a,
		CoarticulatedRootStates: []network.StateID{a},
		RootTransitDescriptions: map[network.StateID]RootContext{
			a: {LeftContextPhoneme: -1, RightContextPhoneme: 3},
		},
		PushedWordEndNodes:           []network.StateID{c},
		UncoarticulatedWordEndStates: []network.StateID{c},
	}

	var buf bytes.Buffer
	if err := Write(&buf, store, 0xDEADBEEF); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf, 0xDEADBEEF)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.RootState != a || got.CIRootState != a {
		t.Fatalf("root states not preserved: got root=%d ci=%d", got.RootState, got.CIRootState)
	}
	if got.Network.StateCount() != n.StateCount() {
		t.Fatalf("state count mismatch: got %d want %d", got.Network.StateCount(), n.StateCount())
	}
	if len(got.Exits) != 1 || got.Exits[0].PronunciationID != 42 || got.Exits[0].TransitState != b {
		t.Fatalf("exits not preserved: %+v", got.Exits)
	}
	targets := got.Network.TargetNodeSet(a)
	if len(targets) != 1 || targets[0] != b {
		t.Fatalf("successor of a not preserved: %v", targets)
	}
	targets = got.Network.TargetNodeSet(b)
	if len(targets) != 1 || targets[0] != c {
		t.Fatalf("successor of b not preserved: %v", targets)
	}
	labels := got.Network.TargetOutputSet(b)
	if len(labels) != 1 || labels[0] != 7 {
		t.Fatalf("exit label on b not preserved: %v", labels)
	}
	ctx, ok := got.RootTransitDescriptions[a]
	if !ok || ctx.LeftContextPhoneme != -1 || ctx.RightContextPhoneme != 3 {
		t.Fatalf("root transit description not preserved: %+v ok=%v", ctx, ok)
	}
}

func TestReadRejectsChecksumMismatch(t *testing.T) {
	n, a, _, _ := buildChain(t)
	store := &Store{Network: n, RootState: a, CIRootState: a}

	var buf bytes.Buffer
	if err := Write(&buf, store, 111); err != nil {
		t.Fatalf("Write: %v", err)
	}

	_, err := Read(&buf, 222)
	var e *Error
	if !errors.As(err, &e) || e.Kind != ChecksumMismatch {
		t.Fatalf("expected ChecksumMismatch, got %v", err)
	}
}

func TestReadRejectsFormatMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := writeU32(&buf, FormatVersion+1); err != nil {
		t.Fatalf("writeU32: %v", err)
	}

	_, err := Read(&buf, 0)
	var e *Error
	if !errors.As(err, &e) || e.Kind != FormatMismatch {
		t.Fatalf("expected FormatMismatch, got %v", err)
	}
}

func TestRemoveOutputsStripsAllLabels(t *testing.T) {
	n, _, b, _ := buildChain(t)
	store := &Store{Network: n}
	RemoveOutputs(store)
	if labels := n.TargetOutputSet(b); len(labels) != 0 {
		t.Fatalf("expected no labels after RemoveOutputs, got %v", labels)
	}
}

func TestCleanupRenumbersExits(t *testing.T) {
	n := network.New()
	tree := n.AllocateTree()
	a := n.AllocateTreeNode(tree)
	b := n.AllocateTreeNode(tree)
	dead := n.AllocateTreeNode(tree)
	_ = dead
	n.AddTargetToNode(a, b)
	n.AddOutputToNode(b, 1)

	store := &Store{
		Network: n,
		Exits:   []network.Exit{{PronunciationID: 1, TransitState: b}},
	}

	result := Cleanup(store, []network.StateID{a}, tree, true, false, true)
	mapped, ok := result.NodeMap[b]
	if !ok {
		t.Fatalf("expected b to survive cleanup")
	}
	if len(store.Exits) != 1 || store.Exits[0].TransitState != mapped {
		t.Fatalf("exit not renumbered: %+v (want transit=%d)", store.Exits, mapped)
	}
}
