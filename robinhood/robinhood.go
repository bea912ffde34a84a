// Package robinhood implements the Robin-Hood open-addressing backend: a
// linear-probed table storing per-slot displacement alongside the key, laid
// out as parallel arrays (struct-of-arrays) so probe walks stay
// cache-friendly and the invariant checker is a single sequential scan.
// Deletions leave tombstones; Compact builds a fresh table without them.
package robinhood

import "github.com/jguida941/adaptive-hashmap-core/xhash"

type slotState uint8

const (
	empty slotState = iota
	occupied
	tombstone
)

// Config controls the thresholds that decide when Map reports it wants a
// resize or compaction. The hybrid supervisor drives the actual resize as
// a migration, same as the chaining backend.
type Config struct {
	// MaxLoadFactor is the n/cap at or above which the backend reports it
	// wants a resize. Zero selects 0.85.
	MaxLoadFactor float64
	// MaxAvgProbe is the avg_probe_estimate at or above which the
	// backend reports it wants a resize. Zero selects 3.0.
	MaxAvgProbe float64
	// MaxTombstoneRatio is the tombstones/cap at or above which the
	// backend reports it wants compaction. Zero selects 0.2.
	MaxTombstoneRatio float64
}

const minCapacity = 8

// Map is the Robin-Hood open-addressing backend (C2).
type Map struct {
	hasher xhash.Hash64
	cap    int

	state []slotState
	key   []string
	value []string
	dist  []int

	n          int
	tombstones int
	distSum    int

	maxLoadFactor     float64
	maxAvgProbe       float64
	maxTombstoneRatio float64
}

// New constructs an empty Robin-Hood map with capacity rounded up to a
// power of two no smaller than 8.
func New(hasher xhash.Hash64, capacity int, cfg Config) *Map {
	capacity = nextPow2(max(capacity, minCapacity))

	maxLF := cfg.MaxLoadFactor
	if maxLF <= 0 {
		maxLF = 0.85
	}
	maxAvgProbe := cfg.MaxAvgProbe
	if maxAvgProbe <= 0 {
		maxAvgProbe = 3.0
	}
	maxTombRatio := cfg.MaxTombstoneRatio
	if maxTombRatio <= 0 {
		maxTombRatio = 0.2
	}

	return &Map{
		hasher:            hasher,
		cap:               capacity,
		state:             make([]slotState, capacity),
		key:               make([]string, capacity),
		value:             make([]string, capacity),
		dist:              make([]int, capacity),
		maxLoadFactor:      maxLF,
		maxAvgProbe:        maxAvgProbe,
		maxTombstoneRatio:  maxTombRatio,
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Len reports the number of occupied slots.
func (m *Map) Len() int { return m.n }

// Cap reports the table capacity.
func (m *Map) Cap() int { return m.cap }

func (m *Map) home(key string) int {
	return xhash.Spread(m.hasher.Sum64(key), m.cap)
}

// Get returns the value for key, if present: advance until EMPTY (absent)
// or a matching OCCUPIED key (found), short-circuiting as soon as an
// OCCUPIED slot's displacement falls below the walk's current
// displacement - a hit any deeper is impossible under Robin-Hood ordering.
// Tombstones advance the walk without short-circuiting.
func (m *Map) Get(key string) (string, bool) {
	i := m.home(key)
	d := 0
	for {
		switch m.state[i] {
		case empty:
			return "", false
		case occupied:
			if m.key[i] == key {
				return m.value[i], true
			}
			if m.dist[i] < d {
				return "", false
			}
		case tombstone:
			// advances without short-circuiting
		}
		i = (i + 1) % m.cap
		d++
	}
}

// Put inserts or overwrites key's value, returning true if newly inserted.
//
// Overwrite is resolved first with a plain Get walk; the insert walk only
// ever runs for a key known to be absent, so claiming a tombstone can
// never leave a second live copy of the key further along the path.
// A tombstone keeps the displacement of the entry it used to
// hold, and may only be claimed by a carried entry whose displacement at
// that slot is at least as large: lowering a slot's displacement would
// break the dist[i] < d probe short-circuit for every key that settled
// beyond the slot back when it was richer.
func (m *Map) Put(key, value string) bool {
	i := m.home(key)
	d := 0
walk:
	for {
		switch m.state[i] {
		case empty:
			break walk
		case occupied:
			if m.key[i] == key {
				m.value[i] = value
				return false
			}
			if m.dist[i] < d {
				break walk
			}
		case tombstone:
		}
		i = (i + 1) % m.cap
		d++
	}

	if m.n+m.tombstones >= m.cap-1 {
		// Last-resort guard for standalone use: the insert walk below needs
		// a reachable EMPTY slot. Under the hybrid supervisor a migration
		// fires long before this.
		m.grow(TargetCapacityForGrowth(m.n + 1))
	}

	m.insertAbsent(key, value)
	m.n++
	return true
}

// insertAbsent places a key known to be absent, running the Robin-Hood
// displacement walk from its home slot.
func (m *Map) insertAbsent(key, value string) {
	carryKey, carryValue := key, value
	carryDist := 0
	i := m.home(key)

	for {
		switch m.state[i] {
		case empty:
			m.occupy(i, carryKey, carryValue, carryDist)
			return

		case tombstone:
			if carryDist >= m.dist[i] {
				m.tombstones--
				m.occupy(i, carryKey, carryValue, carryDist)
				return
			}

		case occupied:
			if m.dist[i] < carryDist {
				// richer-than-thou: evict the poorer occupant and keep
				// walking with it, carrying its stored displacement forward.
				evictedKey, evictedValue, evictedDist := m.key[i], m.value[i], m.dist[i]
				m.distSum += carryDist - m.dist[i]
				m.key[i], m.value[i], m.dist[i] = carryKey, carryValue, carryDist
				carryKey, carryValue, carryDist = evictedKey, evictedValue, evictedDist
			}
		}

		i = (i + 1) % m.cap
		carryDist++
	}
}

func (m *Map) occupy(i int, key, value string, dist int) {
	m.state[i] = occupied
	m.key[i] = key
	m.value[i] = value
	m.dist[i] = dist
	m.distSum += dist
}

// grow rebuilds the table at the given capacity, re-inserting every
// occupied entry in index order. Tombstones vanish; displacements
// recompute.
func (m *Map) grow(capacity int) {
	fresh := New(m.hasher, capacity, Config{
		MaxLoadFactor:     m.maxLoadFactor,
		MaxAvgProbe:       m.maxAvgProbe,
		MaxTombstoneRatio: m.maxTombstoneRatio,
	})
	for i := 0; i < m.cap; i++ {
		if m.state[i] == occupied {
			fresh.insertAbsent(m.key[i], m.value[i])
			fresh.n++
		}
	}
	*m = *fresh
}

// Delete removes key if present and reports whether it was found. The slot
// becomes a tombstone that keeps its displacement, so a later insert can
// only reclaim it without disturbing probe ordering.
func (m *Map) Delete(key string) bool {
	i := m.home(key)
	d := 0
	for {
		switch m.state[i] {
		case empty:
			return false
		case occupied:
			if m.key[i] == key {
				m.state[i] = tombstone
				m.key[i] = ""
				m.value[i] = ""
				m.distSum -= m.dist[i]
				m.n--
				m.tombstones++
				return true
			}
			if m.dist[i] < d {
				return false
			}
		case tombstone:
		}
		i = (i + 1) % m.cap
		d++
	}
}

// KV is a single key/value pair in physical slot order.
type KV struct {
	Key   string
	Value string
}

// Items returns every occupied (key, value) pair in index order.
func (m *Map) Items() []KV {
	out := make([]KV, 0, m.n)
	for i := 0; i < m.cap; i++ {
		if m.state[i] == occupied {
			out = append(out, KV{Key: m.key[i], Value: m.value[i]})
		}
	}
	return out
}

// LoadFactor is n / cap.
func (m *Map) LoadFactor() float64 {
	return float64(m.n) / float64(m.cap)
}

// TombstoneRatio is tombstones / cap.
func (m *Map) TombstoneRatio() float64 {
	return float64(m.tombstones) / float64(m.cap)
}

// AvgProbeEstimate is the mean displacement over occupied slots, maintained
// as a running sum so the supervisor can read it on every operation.
func (m *Map) AvgProbeEstimate() float64 {
	if m.n == 0 {
		return 0
	}
	return float64(m.distSum) / float64(m.n)
}

// ProbeHistogram returns (distance, count) pairs over occupied slots,
// sorted by distance ascending. This is the probe_hist field of the
// metrics tick.
func (m *Map) ProbeHistogram() [][2]int {
	counts := map[int]int{}
	maxDist := 0
	for i := 0; i < m.cap; i++ {
		if m.state[i] == occupied {
			counts[m.dist[i]]++
			if m.dist[i] > maxDist {
				maxDist = m.dist[i]
			}
		}
	}
	if len(counts) == 0 {
		return nil
	}
	out := make([][2]int, 0, len(counts))
	for d := 0; d <= maxDist; d++ {
		if c, ok := counts[d]; ok {
			out = append(out, [2]int{d, c})
		}
	}
	return out
}

// SlotOccupancy reports, per physical slot, whether it currently holds a
// live entry. The metrics key heatmap is built from this.
func (m *Map) SlotOccupancy() []bool {
	out := make([]bool, m.cap)
	for i := 0; i < m.cap; i++ {
		out[i] = m.state[i] == occupied
	}
	return out
}

// NeedsResize reports whether load factor or average probe length have
// crossed their configured thresholds.
func (m *Map) NeedsResize() bool {
	return m.LoadFactor() >= m.maxLoadFactor || m.AvgProbeEstimate() >= m.maxAvgProbe
}

// NeedsCompaction reports whether the tombstone ratio has crossed its
// configured threshold.
func (m *Map) NeedsCompaction() bool {
	return m.TombstoneRatio() >= m.maxTombstoneRatio
}

// TargetCapacityForGrowth is next_pow2(max(8, ceil(1.3*n))), the sizing
// rule for both the chaining->robinhood migration and robinhood's own
// growth migration.
func TargetCapacityForGrowth(n int) int {
	target := int(1.3*float64(n) + 0.999999)
	return nextPow2(max(target, minCapacity))
}

// TargetCapacityForCompaction is the smallest power of two >= n, never
// below 8, used when tombstone pressure triggers a compacting migration.
func TargetCapacityForCompaction(n int) int {
	return nextPow2(max(n, minCapacity))
}

// Compact rebuilds a fresh table of the given capacity (0 selects the same
// capacity) and re-inserts every occupied entry in index order. Tombstones
// vanish and displacements recompute. m itself is not modified. The hybrid
// supervisor does not call Compact; it compacts by migrating incrementally
// into a freshly constructed Map.
func Compact(m *Map, capacity int, hasher xhash.Hash64, cfg Config) *Map {
	if capacity <= 0 {
		capacity = m.cap
	}
	fresh := New(hasher, capacity, cfg)
	for i := 0; i < m.cap; i++ {
		if m.state[i] == occupied {
			fresh.Put(m.key[i], m.value[i])
		}
	}
	return fresh
}

// Verify checks the table's structural invariants: every OCCUPIED slot
// satisfies (home(key)+dist) mod cap == i, no key
// appears twice, and the n/tombstones counters match the physical state.
// It returns nil if all invariants hold, or the first violation found.
func (m *Map) Verify() error {
	seen := make(map[string]int, m.n)
	occupiedCount := 0
	tombCount := 0
	distTotal := 0

	for i := 0; i < m.cap; i++ {
		switch m.state[i] {
		case occupied:
			occupiedCount++
			distTotal += m.dist[i]
			if prev, dup := seen[m.key[i]]; dup {
				return &InvariantError{Reason: "duplicate key", Key: m.key[i], SlotA: prev, SlotB: i}
			}
			seen[m.key[i]] = i

			want := (m.home(m.key[i]) + m.dist[i]) % m.cap
			if want != i {
				return &InvariantError{Reason: "displacement mismatch", Key: m.key[i], SlotA: i, SlotB: want}
			}
		case tombstone:
			tombCount++
		}
	}

	if occupiedCount != m.n {
		return &InvariantError{Reason: "n does not match occupied count", SlotA: m.n, SlotB: occupiedCount}
	}
	if tombCount != m.tombstones {
		return &InvariantError{Reason: "tombstones does not match tombstone count", SlotA: m.tombstones, SlotB: tombCount}
	}
	if distTotal != m.distSum {
		return &InvariantError{Reason: "distSum does not match summed displacements", SlotA: m.distSum, SlotB: distTotal}
	}
	return nil
}

// InvariantError describes a Robin-Hood invariant violation found by
// Verify. It is a programming-error-grade finding: callers that see this
// should treat their map as corrupted.
type InvariantError struct {
	Reason string
	Key    string
	SlotA  int
	SlotB  int
}

func (e *InvariantError) Error() string {
	if e.Key != "" {
		return e.Reason + " for key " + e.Key
	}
	return e.Reason
}

// OccupancyMetrics is the gauge set the supervisor and metrics tick read:
// load factor, average probe estimate, and tombstone ratio.
type OccupancyMetrics struct {
	LoadFactor       float64
	AvgProbeEstimate float64
	TombstoneRatio   float64
	Len              int
	Cap              int
	Tombstones       int
}

func (m *Map) Occupancy() OccupancyMetrics {
	return OccupancyMetrics{
		LoadFactor:       m.LoadFactor(),
		AvgProbeEstimate: m.AvgProbeEstimate(),
		TombstoneRatio:   m.TombstoneRatio(),
		Len:              m.n,
		Cap:              m.cap,
		Tombstones:       m.tombstones,
	}
}
