package stateseq

import "testing"

func TestInternDedupesStructurallyEqualSequences(t *testing.T) {
	m := New()

	a := StateSequence{{EmissionIndex: 1, TransitionIndex: 0}, {EmissionIndex: 2, TransitionIndex: 0}}
	b := StateSequence{{EmissionIndex: 1, TransitionIndex: 0}, {EmissionIndex: 2, TransitionIndex: 0}}
	c := StateSequence{{EmissionIndex: 1, TransitionIndex: 0}, {EmissionIndex: 3, TransitionIndex: 0}}

	idA := m.Intern(a)
	idB := m.Intern(b)
	idC := m.Intern(c)

	if idA != idB {
		t.Fatalf("structurally equal sequences got different ids: %d vs %d", idA, idB)
	}
	if idA == idC {
		t.Fatalf("distinct sequences got the same id: %d", idA)
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 distinct sequences, got %d", m.Len())
	}
}

func TestInternIsStableAndReadable(t *testing.T) {
	m := New()
	seq := StateSequence{{EmissionIndex: 9, TransitionIndex: 4}}
	id := m.Intern(seq)

	got := m.Sequence(id)
	if len(got) != 1 || got[0] != seq[0] {
		t.Fatalf("Sequence(%d) = %v, want %v", id, got, seq)
	}

	mutable := m.Intern(seq)
	if mutable != id {
		t.Fatalf("re-interning an already-seen sequence changed its id: %d -> %d", id, mutable)
	}
}

func TestInternCopiesInputSlice(t *testing.T) {
	m := New()
	seq := StateSequence{{EmissionIndex: 1, TransitionIndex: 1}}
	id := m.Intern(seq)

	seq[0].EmissionIndex = 99
	stored := m.Sequence(id)
	if stored[0].EmissionIndex != 1 {
		t.Fatalf("Intern aliased caller's slice: stored=%v after mutating input", stored)
	}
}

func TestEmptySequenceDistinctFromNonEmpty(t *testing.T) {
	m := New()
	empty := m.Intern(StateSequence{})
	nonEmpty := m.Intern(StateSequence{{EmissionIndex: 1, TransitionIndex: 2}})
	if empty == nonEmpty {
		t.Fatalf("empty and non-empty sequences got the same id")
	}
	if m.Len() != 2 {
		t.Fatalf("expected 2 distinct sequences, got %d", m.Len())
	}
}
