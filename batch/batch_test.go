package batch

import "testing"

func TestAppendRangeMergesContiguous(t *testing.T) {
	m := NewUnmanaged()
	id := Invalid
	id = m.AppendRange(id, 10, 12)
	id = m.AppendRange(id, 12, 14)
	id = m.AppendRange(id, 20, 21)

	got := m.Values(id)
	want := []uint32{10, 11, 12, 13, 20}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestSingletonRoundtrip(t *testing.T) {
	m := NewUnmanaged()
	id := m.AppendRange(Invalid, 42, 43)
	if !IsSingleton(id) {
		t.Fatal("single-element range should produce a singleton batch id")
	}
	got := m.Values(id)
	if len(got) != 1 || got[0] != 42 {
		t.Fatalf("Values() = %v, want [42]", got)
	}
}

func TestAppendToSingletonUpgrades(t *testing.T) {
	m := NewUnmanaged()
	id := m.AppendRange(Invalid, 5, 6)
	id = m.AppendRange(id, 100, 102)
	got := m.Values(id)
	want := []uint32{5, 100, 101}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestPrependIsO1AndOrdersCorrectly(t *testing.T) {
	m := NewUnmanaged()
	id := Invalid
	id = m.PrependRange(id, 3, 4)  // [3]
	id = m.PrependRange(id, 2, 3)  // [2, 3]
	id = m.PrependRange(id, 0, 2)  // [0, 1, 2, 3]
	got := m.Values(id)
	want := []uint32{0, 1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("Values() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Values() = %v, want %v", got, want)
		}
	}
}

func TestEmptyBatchIteratesNothing(t *testing.T) {
	m := NewUnmanaged()
	if got := m.Values(Invalid); len(got) != 0 {
		t.Fatalf("Values(Invalid) = %v, want empty", got)
	}
	count := 0
	for it := m.Iterate(Invalid); it.Next(); {
		count++
	}
	if count != 0 {
		t.Fatalf("iterating Invalid yielded %d elements", count)
	}
}

func TestManagedAppendOnePacksValuesDirectly(t *testing.T) {
	m := NewManaged()
	id := Invalid
	var idx uint32
	id, idx = m.AppendOne(id, 100)
	if m.Elems()[idx] != 100 {
		t.Fatalf("Elems()[%d] = %d, want 100", idx, m.Elems()[idx])
	}
	id, _ = m.AppendOne(id, 200)
	got := m.Values(id)
	for i, v := range got {
		if m.Elems()[v] != uint32(100+i*100) {
			t.Errorf("element %d = %d", i, m.Elems()[v])
		}
	}
}

func TestIteratorCountMatchesInsertions(t *testing.T) {
	m := NewUnmanaged()
	id := Invalid
	total := 0
	for i := 0; i < 50; i++ {
		n := uint32(i%3 + 1)
		id = m.AppendRange(id, uint32(i*10), uint32(i*10)+n)
		total += int(n)
	}
	if got := m.Count(id); got != total {
		t.Fatalf("Count() = %d, want %d", got, total)
	}
}
