package robinhood

import (
	"testing"

	"github.com/jguida941/adaptive-hashmap-core/xhash"
)

func newTestMap() *Map {
	return New(xhash.New(1), 8, Config{})
}

func TestPutGetDelete(t *testing.T) {
	m := newTestMap()

	if _, ok := m.Get("a"); ok {
		t.Fatalf("expected absent key on empty map")
	}

	if !m.Put("a", "1") {
		t.Fatalf("expected first put to report insertion")
	}
	if m.Put("a", "2") {
		t.Fatalf("expected overwrite to report false")
	}

	v, ok := m.Get("a")
	if !ok || v != "2" {
		t.Fatalf("got (%q, %v), want (2, true)", v, ok)
	}

	if !m.Delete("a") {
		t.Fatalf("expected delete to find key")
	}
	if m.Delete("a") {
		t.Fatalf("expected second delete to report false")
	}
	if _, ok := m.Get("a"); ok {
		t.Fatalf("expected key absent after delete")
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

// TestTombstoneReuseNoDuplication: put("a",1); put("b",2); delete("a");
// put("b",3) must yield items() == [("b",3)] with n==1 and tombstones==1.
func TestTombstoneReuseNoDuplication(t *testing.T) {
	m := New(xhash.New(1), 8, Config{})

	m.Put("a", "1")
	m.Put("b", "2")
	m.Delete("a")
	m.Put("b", "3")

	items := m.Items()
	if len(items) != 1 || items[0].Key != "b" || items[0].Value != "3" {
		t.Fatalf("items = %v, want [{b 3}]", items)
	}
	if m.Len() != 1 {
		t.Fatalf("n = %d, want 1", m.Len())
	}
	if m.tombstones != 1 {
		t.Fatalf("tombstones = %d, want 1", m.tombstones)
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestPutDeletePutReinsertSameKey(t *testing.T) {
	m := New(xhash.New(1), 8, Config{})

	m.Put("k", "v1")
	m.Delete("k")
	m.Put("k", "v2")

	v, ok := m.Get("k")
	if !ok || v != "v2" {
		t.Fatalf("Get(k) = (%q, %v), want (v2, true)", v, ok)
	}

	count := 0
	for _, kv := range m.Items() {
		if kv.Key == "k" {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("key k appears %d times, want 1", count)
	}
}

func TestOracleAgreement(t *testing.T) {
	m := New(xhash.New(11), 8, Config{})
	oracle := map[string]string{}

	ops := []struct{ op, key, val string }{
		{"put", "k0", "v0"}, {"put", "k1", "v1"}, {"put", "k2", "v2"},
		{"del", "k1", ""}, {"put", "k3", "v3"}, {"put", "k1", "v1b"},
		{"del", "k99", ""}, {"put", "k2", "v2b"},
	}

	for _, op := range ops {
		switch op.op {
		case "put":
			m.Put(op.key, op.val)
			oracle[op.key] = op.val
		case "del":
			got := m.Delete(op.key)
			_, existed := oracle[op.key]
			if got != existed {
				t.Fatalf("delete(%q) = %v, oracle had it = %v", op.key, got, existed)
			}
			delete(oracle, op.key)
		}
		if m.Len() != len(oracle) {
			t.Fatalf("len mismatch: map=%d oracle=%d", m.Len(), len(oracle))
		}
		if err := m.Verify(); err != nil {
			t.Fatalf("Verify failed after %+v: %v", op, err)
		}
	}

	for k, want := range oracle {
		got, ok := m.Get(k)
		if !ok || got != want {
			t.Fatalf("Get(%q) = (%q, %v), want (%q, true)", k, got, ok, want)
		}
	}
}

// zeroHasher sends every key to slot 0, forcing the longest possible
// richer-than-thou displacement chains.
type zeroHasher struct{}

func (zeroHasher) Sum64(string) uint64 { return 0 }

func TestSingleSlotCollisionsAllRetrievable(t *testing.T) {
	m := New(zeroHasher{}, 128, Config{MaxLoadFactor: 2})

	n := 100
	for i := 0; i < n; i++ {
		key := keyFor(i)
		m.Put(key, key+"-v")
	}

	for i := 0; i < n; i++ {
		key := keyFor(i)
		v, ok := m.Get(key)
		if !ok || v != key+"-v" {
			t.Fatalf("Get(%q) = (%q, %v), want (%q-v, true)", key, v, ok, key)
		}
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func keyFor(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return string(letters[i%len(letters)]) + string(rune('0'+i/len(letters)))
}

func TestCompactRemovesTombstones(t *testing.T) {
	m := New(xhash.New(1), 8, Config{})
	m.Put("a", "1")
	m.Put("b", "2")
	m.Put("c", "3")
	m.Delete("b")

	compacted := Compact(m, 0, xhash.New(1), Config{})

	if compacted.tombstones != 0 {
		t.Fatalf("expected 0 tombstones after compaction, got %d", compacted.tombstones)
	}
	if compacted.Len() != 2 {
		t.Fatalf("expected 2 live entries after compaction, got %d", compacted.Len())
	}
	for _, kv := range m.Items() {
		v, ok := compacted.Get(kv.Key)
		if !ok || v != kv.Value {
			t.Fatalf("compacted map missing or mismatched %q", kv.Key)
		}
	}
	if err := compacted.Verify(); err != nil {
		t.Fatalf("Verify failed on compacted map: %v", err)
	}
}

func TestCompactIdempotentWhenNoTombstones(t *testing.T) {
	m := New(xhash.New(1), 8, Config{})
	m.Put("a", "1")
	m.Put("b", "2")

	before := m.Items()
	compacted := Compact(m, 0, xhash.New(1), Config{})
	after := compacted.Items()

	if len(before) != len(after) {
		t.Fatalf("item count changed across a no-op compaction")
	}
}

func TestNeedsResizeAndCompaction(t *testing.T) {
	m := New(xhash.New(2), 8, Config{MaxLoadFactor: 0.5, MaxTombstoneRatio: 0.2})

	m.Put("a", "1")
	m.Put("b", "2")
	m.Put("c", "3")
	m.Put("d", "4")

	if !m.NeedsResize() {
		t.Fatalf("expected NeedsResize once load factor crosses threshold")
	}

	m.Delete("a")
	m.Delete("b")
	if !m.NeedsCompaction() {
		t.Fatalf("expected NeedsCompaction once tombstone ratio crosses threshold")
	}
}

// TestTombstoneReuseKeepsDeeperKeysReachable pins the subtle half of the
// tombstone-reuse discipline: a reclaimed slot must never end up with a
// smaller displacement than the entry it used to hold, or the probe
// short-circuit would cut off keys that settled beyond it.
func TestTombstoneReuseKeepsDeeperKeysReachable(t *testing.T) {
	m := New(zeroHasher{}, 8, Config{})

	m.Put("a", "1")
	m.Put("b", "2")
	m.Put("c", "3")
	m.Delete("b")
	m.Put("d", "4")

	for _, key := range []string{"a", "c", "d"} {
		if _, ok := m.Get(key); !ok {
			t.Fatalf("key %q unreachable after tombstone reuse", key)
		}
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestProbeHistogram(t *testing.T) {
	m := New(zeroHasher{}, 8, Config{})
	m.Put("a", "1")
	m.Put("b", "2")
	m.Put("c", "3")

	hist := m.ProbeHistogram()
	if len(hist) != 3 {
		t.Fatalf("expected 3 distinct distances for a full collision chain, got %v", hist)
	}
	total := 0
	for _, pair := range hist {
		total += pair[1]
	}
	if total != 3 {
		t.Fatalf("histogram counts sum to %d, want 3", total)
	}
	if hist[0][0] != 0 || hist[1][0] != 1 || hist[2][0] != 2 {
		t.Fatalf("expected distances [0 1 2], got %v", hist)
	}
}

func TestPutGrowsWhenNearlyFull(t *testing.T) {
	m := New(xhash.New(5), 8, Config{})

	for i := 0; i < 20; i++ {
		m.Put(keyFor(i), "v")
	}
	if m.Cap() <= 8 {
		t.Fatalf("expected capacity to grow past 8, got %d", m.Cap())
	}
	for i := 0; i < 20; i++ {
		if _, ok := m.Get(keyFor(i)); !ok {
			t.Fatalf("key %q lost across growth", keyFor(i))
		}
	}
	if err := m.Verify(); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
}

func TestTargetCapacityHelpers(t *testing.T) {
	if got := TargetCapacityForGrowth(5); got < 8 {
		t.Fatalf("TargetCapacityForGrowth(5) = %d, want >= 8", got)
	}
	if got := TargetCapacityForCompaction(3); got != 8 {
		t.Fatalf("TargetCapacityForCompaction(3) = %d, want 8", got)
	}
	if got := TargetCapacityForCompaction(20); got != 32 {
		t.Fatalf("TargetCapacityForCompaction(20) = %d, want 32", got)
	}
}
