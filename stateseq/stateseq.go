// Package stateseq implements the deduplicated table of tied HMM state
// sequences (C4): every HMM edge in the compiled network is replaced by a
// dense index into this table, and decoding looks the sequence back up to
// recover per-frame emission/transition indices.
package stateseq

import (
	"encoding/binary"

	"github.com/rwthsearch/asrsearch/internal/conv"
)

// AllophoneState is one tied acoustic state within a StateSequence: the
// emission index used to score an observation, and the transition index
// selecting which transition-model probabilities apply.
type AllophoneState struct {
	EmissionIndex   uint32
	TransitionIndex uint32
}

// StateSequence is the ordered list of tied acoustic states making up one
// (tied) HMM segment, e.g. the three states of a triphone allophone.
type StateSequence []AllophoneState

// key returns a byte string that is equal for two StateSequences if and
// only if they are equal element-by-element, used as an exact (not
// probabilistic) map key for structural-equality dedup.
func (s StateSequence) key() string {
	buf := make([]byte, len(s)*8)
	for i, st := range s {
		binary.LittleEndian.PutUint32(buf[i*8:], st.EmissionIndex)
		binary.LittleEndian.PutUint32(buf[i*8+4:], st.TransitionIndex)
	}
	return string(buf)
}

// SequenceID indexes a StateSequence within a TiedStateSequenceMap.
type SequenceID uint32

// TiedStateSequenceMap deduplicates StateSequence values by structural
// equality: two HMM edges with the same ordered list of
// {emissionIndex, transitionIndex} pairs share one SequenceID. Unlike the
// hash-keyed state cache this pattern is usually built with, the key here
// is the sequence's exact byte encoding rather than a fixed-width hash, so
// there is no possibility of a collision silently merging two distinct
// sequences — correctness here is load-bearing, since a wrong merge would
// misscore every edge tied to it.
type TiedStateSequenceMap struct {
	byKey     map[string]SequenceID
	sequences []StateSequence
}

// New returns an empty table.
func New() *TiedStateSequenceMap {
	return &TiedStateSequenceMap{byKey: make(map[string]SequenceID)}
}

// Intern returns the SequenceID for seq, inserting it if this is the first
// time an equal sequence has been seen. The returned id is stable for the
// lifetime of the map.
func (m *TiedStateSequenceMap) Intern(seq StateSequence) SequenceID {
	k := seq.key()
	if id, ok := m.byKey[k]; ok {
		return id
	}
	id := SequenceID(conv.IntToUint32(len(m.sequences)))
	cp := make(StateSequence, len(seq))
	copy(cp, seq)
	m.sequences = append(m.sequences, cp)
	m.byKey[k] = id
	return id
}

// Sequence returns the StateSequence stored at id. The returned slice must
// not be mutated by the caller.
func (m *TiedStateSequenceMap) Sequence(id SequenceID) StateSequence {
	return m.sequences[id]
}

// Len returns the number of distinct sequences interned so far.
func (m *TiedStateSequenceMap) Len() int {
	return len(m.sequences)
}
