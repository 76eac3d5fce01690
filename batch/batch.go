// Package batch implements the packed variable-length successor-list
// container described by spec.md's component C1. A Manager holds many
// ordered multisets of uint32 elements ("batches"), each identified by an
// ID that is one of:
//
//   - Invalid (0): the empty/no-batch sentinel.
//   - a singleton, with the top bit set and the element packed directly
//     into the remaining bits — no triple is ever allocated for it.
//   - an index into an internal array of (start, next, end) triples; the
//     elements of the batch are the contiguous range [start, end) of the
//     backing element array, continued by walking `next` until Invalid.
//
// Append is amortised O(1) when extending a contiguous range (the common
// case when a caller appends several increasing runs of newly-allocated
// elements) and O(chain length) otherwise, since finding the tail requires
// walking the batch's chain. Prepend is always O(1): it never needs to
// find the tail, only to link a new head triple in front of the old one.
package batch

import "github.com/rwthsearch/asrsearch/internal/conv"

// ID identifies a batch within a Manager.
type ID uint32

const (
	// Invalid is the sentinel batch id meaning "no batch" / "empty".
	Invalid ID = 0

	// singletonBit marks an ID as a singleton batch: the element is
	// ID &^ singletonBit, and no triple backs it.
	singletonBit ID = 1 << 31
)

// IsSingleton reports whether id packs its one element directly.
func IsSingleton(id ID) bool {
	return id != Invalid && id&singletonBit != 0
}

// batchSize is the stride of one (start, next, end) triple in the
// batches array.
const batchSize = 3

// Manager owns either a self-managed element array (for simple batches of
// plain values, built with NewManaged) or links ranges into a
// caller-managed array (for batches whose element array has structure the
// caller controls — e.g. network's encoded successor ints, built with
// NewUnmanaged). Calling the wrong family of methods for the mode a
// Manager was built in panics, mirroring the assertion-guarded contract
// in the original.
type Manager struct {
	batches []uint32 // triples: batches[id], batches[id+1]=next, batches[id+2]=end
	elems   []uint32 // backing element array; owned iff managed
	managed bool
}

// NewManaged returns a Manager that owns its element array: Append/Prepend
// append values directly and grow the array automatically.
func NewManaged() *Manager {
	return &Manager{
		batches: make([]uint32, batchSize), // index 0 reserved (Invalid)
		managed: true,
	}
}

// NewUnmanaged returns a Manager that only links ranges into an array the
// caller owns and mutates separately (see AppendRange/PrependRange).
func NewUnmanaged() *Manager {
	return &Manager{
		batches: make([]uint32, batchSize),
		managed: false,
	}
}

// Elems returns the Manager's owned backing array. Panics if the Manager
// was built with NewUnmanaged.
func (m *Manager) Elems() []uint32 {
	if !m.managed {
		panic("batch: Elems called on an unmanaged Manager")
	}
	return m.elems
}

// NewUnmanagedFromRaw rebuilds an unmanaged Manager around a triples array
// read back from storage (see networkio). The slice is used directly, not
// copied.
func NewUnmanagedFromRaw(raw []uint32) *Manager {
	return &Manager{batches: raw, managed: false}
}

// Raw returns the Manager's backing triples array, for persistence. The
// slice aliases the Manager's internal state; callers must not mutate it.
func (m *Manager) Raw() []uint32 {
	return m.batches
}

// Len returns the number of live (start,next,end) triples allocated, not
// counting singletons (which allocate none) or the reserved slot 0.
func (m *Manager) Len() int {
	return len(m.batches)/batchSize - 1
}

func (m *Manager) start(id ID) uint32 { return m.batches[id] }
func (m *Manager) next(id ID) ID      { return ID(m.batches[id+1]) }
func (m *Manager) end(id ID) uint32   { return m.batches[id+2] }

func (m *Manager) setNext(id ID, next ID) { m.batches[id+1] = uint32(next) }
func (m *Manager) setEnd(id ID, end uint32) { m.batches[id+2] = end }

// tail walks the chain starting at id and returns the id of the last
// batch in the chain. id must not be Invalid or a singleton.
func (m *Manager) tail(id ID) ID {
	for {
		n := m.next(id)
		if n == Invalid {
			return id
		}
		id = n
	}
}

// allocTriple appends a new (start, follow, end) triple and returns its id.
func (m *Manager) allocTriple(start, end uint32, follow ID) ID {
	id := ID(conv.IntToUint32(len(m.batches)))
	m.batches = append(m.batches, start, uint32(follow), end)
	return id
}

// AppendOne appends a single value, returning the (possibly changed) batch
// id and the index the value was stored at. Only valid on a managed
// Manager.
func (m *Manager) AppendOne(id ID, v uint32) (ID, uint32) {
	if !m.managed {
		panic("batch: AppendOne called on an unmanaged Manager")
	}
	idx := conv.IntToUint32(len(m.elems))
	m.elems = append(m.elems, v)
	return m.AppendRange(id, idx, idx+1), idx
}

// PrependOne prepends a single value, returning the new batch id and the
// index the value was stored at. Only valid on a managed Manager.
func (m *Manager) PrependOne(id ID, v uint32) (ID, uint32) {
	if !m.managed {
		panic("batch: PrependOne called on an unmanaged Manager")
	}
	idx := conv.IntToUint32(len(m.elems))
	m.elems = append(m.elems, v)
	return m.PrependRange(id, idx, idx+1), idx
}

// AppendRange links the range [from, to) of the backing element array to
// the end of id's chain, returning the batch id to use from now on
// (unchanged unless id was Invalid or a singleton).
//
// If the tail of id's chain already ends exactly at from, the range is
// folded into the tail in place instead of allocating a new triple — this
// is the contiguous-append fast path spec.md describes, and is what lets
// a builder that always appends freshly-allocated, increasing indices run
// in amortised O(1) per append.
func (m *Manager) AppendRange(id ID, from, to uint32) ID {
	if from == to {
		return id
	}
	if id == Invalid {
		if to == from+1 {
			return ID(from) | singletonBit
		}
		return m.allocTriple(from, to, Invalid)
	}
	if IsSingleton(id) {
		solo := uint32(id &^ singletonBit)
		id = m.allocTriple(solo, solo+1, Invalid)
	}
	t := m.tail(id)
	if m.end(t) == from {
		m.setEnd(t, to)
		return id
	}
	m.setNext(t, m.allocTriple(from, to, Invalid))
	return id
}

// PrependRange links the range [from, to) of the backing element array to
// the front of id's chain, returning the new batch id.
//
// Unlike AppendRange this never walks the chain: it always allocates one
// new triple pointing at the old head, so repeated single-element
// prepends run in true O(1) rather than amortised O(1).
func (m *Manager) PrependRange(id ID, from, to uint32) ID {
	if from == to {
		return id
	}
	if id == Invalid && to == from+1 {
		return ID(from) | singletonBit
	}
	if IsSingleton(id) {
		solo := uint32(id &^ singletonBit)
		id = m.allocTriple(solo, solo+1, Invalid)
	}
	return m.allocTriple(from, to, id)
}

// Iterator walks the elements of one batch in insertion order.
type Iterator struct {
	m       *Manager
	id      ID
	cur     uint32
	curEnd  uint32
	value   uint32
	started bool
}

// Iterate returns an iterator over id's elements. Use as:
//
//	for it := m.Iterate(id); it.Next(); {
//	    v := it.Value()
//	}
func (m *Manager) Iterate(id ID) *Iterator {
	it := &Iterator{m: m, id: id}
	if IsSingleton(id) {
		it.cur = uint32(id &^ singletonBit)
		it.curEnd = it.cur + 1
	} else if id != Invalid {
		it.cur = m.start(id)
		it.curEnd = m.end(id)
	}
	return it
}

// Next advances to the next element, returning false when exhausted.
func (it *Iterator) Next() bool {
	if it.id == Invalid {
		return false
	}
	if it.started {
		it.cur++
	}
	it.started = true
	for it.cur >= it.curEnd {
		if IsSingleton(it.id) {
			it.id = Invalid
			return false
		}
		it.id = it.m.next(it.id)
		if it.id == Invalid {
			return false
		}
		it.cur = it.m.start(it.id)
		it.curEnd = it.m.end(it.id)
	}
	it.value = it.cur
	return true
}

// Value returns the index most recently yielded by Next.
func (it *Iterator) Value() uint32 {
	return it.value
}

// Values materializes every index in id's batch, in insertion order. For
// hot paths prefer Iterate, which never allocates a slice.
func (m *Manager) Values(id ID) []uint32 {
	var out []uint32
	for it := m.Iterate(id); it.Next(); {
		out = append(out, it.Value())
	}
	return out
}

// Count returns the number of elements in id's batch by walking its
// chain. O(chain length); prefer tracking counts separately on a hot path.
func (m *Manager) Count(id ID) int {
	n := 0
	for it := m.Iterate(id); it.Next(); {
		n++
	}
	return n
}
