package sparsehash

import "testing"

func TestLinearMiniHashInsertGet(t *testing.T) {
	h := NewLinearMiniHash(1e6)
	h.Clear(8)

	h.Insert(3, 1.5)
	h.Insert(11, 2.5) // collides with 3 under mask 7 (11&7 == 3)

	if v, ok := h.Get(3); !ok || v != 1.5 {
		t.Fatalf("Get(3) = %v, %v, want 1.5, true", v, ok)
	}
	if v, ok := h.Get(11); !ok || v != 2.5 {
		t.Fatalf("Get(11) = %v, %v, want 2.5, true", v, ok)
	}
	if _, ok := h.Get(99); ok {
		t.Fatalf("Get(99) found, want miss")
	}
}

func TestLinearMiniHashClearResets(t *testing.T) {
	h := NewLinearMiniHash(0)
	h.Clear(4)
	h.Insert(1, 1)
	h.Clear(4)
	if h.Contains(1) {
		t.Fatalf("Contains(1) after Clear, want false")
	}
	if h.Size() != 0 {
		t.Fatalf("Size() = %d after Clear, want 0", h.Size())
	}
}

func TestLinearMiniHashCheckResizeGrowsAndPreserves(t *testing.T) {
	h := NewLinearMiniHash(0)
	h.Clear(4)
	h.Insert(1, 10)
	h.Insert(2, 20)
	h.Insert(3, 30)

	newSize := h.CheckResize(192) // 3/4 = 0.75 >= 192/256
	if newSize == 0 {
		t.Fatalf("CheckResize returned 0, want a resize")
	}
	if h.HashSize() != int(newSize) {
		t.Fatalf("HashSize() = %d, want %d", h.HashSize(), newSize)
	}
	for k, want := range map[uint32]float32{1: 10, 2: 20, 3: 30} {
		if v, ok := h.Get(k); !ok || v != want {
			t.Fatalf("Get(%d) = %v, %v after resize, want %v, true", k, v, ok, want)
		}
	}
}

func TestApproxLinearMiniHashInsertGet(t *testing.T) {
	h := NewApproxLinearMiniHash()
	h.Clear(256)

	h.Insert(42, 3.25)
	v, ok := h.Get(42)
	if !ok || v != 3.25 {
		t.Fatalf("Get(42) = %v, %v, want 3.25, true", v, ok)
	}

	if _, ok := h.Get(1000000); ok {
		t.Fatalf("Get on unrelated key in an empty slot unexpectedly hit")
	}
}

func TestApproxLinearMiniHashCollisionKeepsMinimum(t *testing.T) {
	h := NewApproxLinearMiniHash()
	h.Clear(4) // mask = 3, so keys 1 and 5 collide (1&3 == 5&3 == 1)

	// Same marker (key>>16 == 0 for both) so the collision is resolved by
	// combine, not masked by a marker mismatch.
	collided := h.Insert(1, 5.0)
	if collided != 0 {
		t.Fatalf("first insert reported a collision")
	}
	collided = h.Insert(5, 2.0)
	if collided != 1 {
		t.Fatalf("second insert into the same slot did not report a collision")
	}

	v, ok := h.Get(1)
	if !ok {
		t.Fatalf("Get(1) missed after collision")
	}
	if v != 2.0 {
		t.Fatalf("Get(1) = %v after collision, want the minimum 2.0", v)
	}
}

func TestApproxLinearMiniHashClear(t *testing.T) {
	h := NewApproxLinearMiniHash()
	h.Clear(8)
	h.Insert(2, 1.0)
	h.Clear(8)
	if _, ok := h.Get(2); ok {
		t.Fatalf("Get(2) after Clear, want miss")
	}
}
