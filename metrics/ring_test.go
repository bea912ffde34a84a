package metrics

import "testing"

func TestRingOverwritesOldest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Push(Tick{T: float64(i)})
	}
	if r.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", r.Len())
	}
	snap := r.Snapshot()
	want := []float64{2, 3, 4}
	for i, tick := range snap {
		if tick.T != want[i] {
			t.Fatalf("snapshot[%d].T = %v, want %v", i, tick.T, want[i])
		}
	}
}

func TestRingBelowCapacity(t *testing.T) {
	r := NewRing(5)
	r.Push(Tick{T: 1})
	r.Push(Tick{T: 2})
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}
	snap := r.Snapshot()
	if snap[0].T != 1 || snap[1].T != 2 {
		t.Fatalf("snapshot = %+v, want [1, 2]", snap)
	}
}
