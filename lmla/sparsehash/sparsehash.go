// Package sparsehash implements the two open-addressed, fixed-capacity
// hash tables C5's sparse ContextLookahead variants are built on:
// LinearMiniHash, which stores keys and so answers lookups exactly, and
// ApproxLinearMiniHash, which discards keys and instead embeds a one-byte
// marker derived from the key into the stored score, trading a small
// false-positive rate for half the memory.
//
// Both are sized once (via Clear) from an externally supplied capacity
// estimate (lmla.LinearPrediction) and never shrink; entries are never
// deleted, only ever inserted, matching the construction-time-only use
// they get as a per-history look-ahead cache fill.
package sparsehash

import (
	"math"

	"github.com/rwthsearch/asrsearch/semiring"
)

// InvalidKey marks an empty slot in LinearMiniHash. LookaheadId never
// legitimately takes this value.
const InvalidKey uint32 = math.MaxUint32

func constrain(mask, v uint32) uint32 { return v & mask }

func nextPowerOfTwo(min uint32) uint32 {
	size := uint32(1)
	for size < min {
		size <<= 1
	}
	return size
}

// LinearMiniHash is an exact open-addressed hash table from a dense key
// (LookaheadId) to a Score, with linear probing and no deletion.
type LinearMiniHash struct {
	keys         []uint32
	values       []semiring.Score
	mask         uint32
	size         uint32
	defaultValue semiring.Score
}

// NewLinearMiniHash returns an empty table; Clear must be called with a
// capacity estimate before Insert.
func NewLinearMiniHash(defaultValue semiring.Score) *LinearMiniHash {
	return &LinearMiniHash{defaultValue: defaultValue}
}

// Clear resets the table, discarding all entries. If minHashSize is 0 the
// table is emptied with zero capacity; otherwise it is sized to the next
// power of two at least minHashSize.
func (h *LinearMiniHash) Clear(minHashSize uint32) {
	h.size = 0
	if minHashSize == 0 {
		h.keys = nil
		h.values = nil
		h.mask = 0
		return
	}
	size := nextPowerOfTwo(minHashSize)
	h.mask = size - 1
	h.keys = make([]uint32, size)
	h.values = make([]semiring.Score, size)
	for i := range h.keys {
		h.keys[i] = InvalidKey
		h.values[i] = h.defaultValue
	}
}

// HashSize returns the table's current slot count.
func (h *LinearMiniHash) HashSize() int { return len(h.keys) }

// Size returns the number of entries inserted.
func (h *LinearMiniHash) Size() uint32 { return h.size }

// Insert adds key/value, returning the number of occupied slots it had to
// probe past. key must not already be present and must not equal
// InvalidKey.
func (h *LinearMiniHash) Insert(key uint32, value semiring.Score) uint32 {
	h.size++
	pos := constrain(h.mask, key)
	if h.keys[pos] == InvalidKey {
		h.keys[pos] = key
		h.values[pos] = value
		return 0
	}
	var probes uint32
	for p := constrain(h.mask, pos+1); p != pos; p = constrain(h.mask, p+1) {
		probes++
		if h.keys[p] == InvalidKey {
			h.keys[p] = key
			h.values[p] = value
			return probes
		}
	}
	panic("sparsehash: LinearMiniHash is full")
}

// Get reports whether key is present, returning its value.
func (h *LinearMiniHash) Get(key uint32) (semiring.Score, bool) {
	if len(h.keys) == 0 {
		return h.defaultValue, false
	}
	pos := constrain(h.mask, key)
	for p := pos; ; p = constrain(h.mask, p+1) {
		if h.keys[p] == InvalidKey {
			return h.defaultValue, false
		}
		if h.keys[p] == key {
			return h.values[p], true
		}
		if constrain(h.mask, p+1) == pos {
			return h.defaultValue, false
		}
	}
}

// Contains reports whether key is present.
func (h *LinearMiniHash) Contains(key uint32) bool {
	_, ok := h.Get(key)
	return ok
}

// CheckResize doubles the table's capacity and reinserts every entry when
// occupancy reaches resizeAtFraction/256 of the current capacity,
// returning the new capacity (0 if no resize was needed).
func (h *LinearMiniHash) CheckResize(resizeAtFraction int) uint32 {
	if h.size < (uint32(len(h.keys))*uint32(resizeAtFraction))>>8 {
		return 0
	}
	old := *h
	h.Clear(nextPowerOfTwo(uint32(len(old.keys)) * 2))
	for i, k := range old.keys {
		if k != InvalidKey {
			h.Insert(k, old.values[i])
		}
	}
	return uint32(len(h.keys))
}

// approxEmpty is the sentinel marking an unoccupied ApproxLinearMiniHash
// slot; real scores (even semiring.Inf) never approach float32's max.
const approxEmpty semiring.Score = math.MaxFloat32

// ApproxLinearMiniHash is a key-less open-addressed hash table: a slot
// holds only a Score with a one-byte marker (derived from the key's high
// bits) overwritten into its lowest byte, so a lookup can tell a real hit
// from a stale collision without storing the key. A marker match on a
// different key is an accepted, bounded-probability false positive.
type ApproxLinearMiniHash struct {
	values []semiring.Score
	mask   uint32
	size   uint32
}

// NewApproxLinearMiniHash returns an empty table; Clear must be called
// with a capacity estimate before Insert.
func NewApproxLinearMiniHash() *ApproxLinearMiniHash {
	return &ApproxLinearMiniHash{}
}

// Clear resets the table as LinearMiniHash.Clear does.
func (h *ApproxLinearMiniHash) Clear(minHashSize uint32) {
	h.size = 0
	if minHashSize == 0 {
		h.values = nil
		h.mask = 0
		return
	}
	size := nextPowerOfTwo(minHashSize)
	h.mask = size - 1
	h.values = make([]semiring.Score, size)
	for i := range h.values {
		h.values[i] = approxEmpty
	}
}

// HashSize returns the table's current slot count.
func (h *ApproxLinearMiniHash) HashSize() int { return len(h.values) }

// Size returns the number of entries inserted.
func (h *ApproxLinearMiniHash) Size() uint32 { return h.size }

func marker(key uint32) byte { return byte(key >> 16) }

func mark(value semiring.Score, m byte) semiring.Score {
	bits := math.Float32bits(value)
	bits = (bits &^ 0xFF) | uint32(m)
	return math.Float32frombits(bits)
}

func isMarked(value semiring.Score, m byte) bool {
	return byte(math.Float32bits(value)) == m
}

// Insert adds value for key, combining with any existing (possibly
// colliding) occupant via the tropical-semiring minimum, and returns 1 if
// the slot was already occupied (a collision), 0 otherwise.
func (h *ApproxLinearMiniHash) Insert(key uint32, value semiring.Score) uint32 {
	pos := constrain(h.mask, key)
	h.size++
	m := marker(key)
	marked := mark(value, m)
	if h.values[pos] == approxEmpty {
		h.values[pos] = marked
		return 0
	}
	h.values[pos] = semiring.Min(h.values[pos], marked)
	return 1
}

// Get reports whether key's marker matches the occupant of its slot. A
// false positive (an unrelated key sharing both slot and marker) is
// possible and accepted, bounded at roughly 1/256 per probe.
func (h *ApproxLinearMiniHash) Get(key uint32) (semiring.Score, bool) {
	if len(h.values) == 0 {
		return 0, false
	}
	pos := constrain(h.mask, key)
	v := h.values[pos]
	if v != approxEmpty && isMarked(v, marker(key)) {
		return unmark(v), true
	}
	return 0, false
}

func unmark(value semiring.Score) semiring.Score {
	bits := math.Float32bits(value) &^ 0xFF
	return math.Float32frombits(bits)
}

// CheckResize reports the capacity a caller should rebuild into (0 if no
// resize is needed yet), matching ApproxLinearMiniHash's original
// contract of leaving the actual rebuild to the caller rather than
// performing it in place as LinearMiniHash.CheckResize does.
func (h *ApproxLinearMiniHash) CheckResize(resizeAtFraction int) uint32 {
	if h.size >= (uint32(len(h.values))*uint32(resizeAtFraction))>>8 {
		return uint32(len(h.values)) * 2
	}
	return 0
}
