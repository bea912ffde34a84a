// Package chaining implements the two-level chaining backend: an outer
// array of buckets, each bucket a short ordered sequence of groups, each
// group a short association list. It is the insert-optimized backend;
// Grow rebuilds the whole table rather than evacuating incrementally (the
// hybrid supervisor is what makes resize incremental, by migrating to a
// freshly sized backend instead of growing this one in place).
package chaining

import "github.com/jguida941/adaptive-hashmap-core/xhash"

// groupCap is the default number of (key, value) pairs a single group holds
// before a bucket starts a new group.
const groupCap = 8

// defaultOuterLen is the minimum outer array size. The outer length is
// always a power of two no smaller than this.
const defaultOuterLen = 4

// entry carries the high bits of the key's hash alongside the pair, so a
// group scan can skip full key comparisons for entries whose tags differ.
type entry struct {
	top   uint8
	key   string
	value string
}

// group is a short association list. Groups are stored by value in
// bucket.groups so appends reuse capacity without extra allocations until a
// group is actually full.
type group struct {
	entries []entry
}

type bucket struct {
	groups []group
}

// Map is the two-level chaining backend (C1).
type Map struct {
	hasher   xhash.Hash64
	buckets  []bucket
	outerLen int
	n        int
	groupCap int

	// maxGroupLen is kept current on every mutation so the supervisor can
	// read it on every operation without rescanning the table.
	maxGroupLen int

	maxGroupLenThreshold int
	maxLoadFactor        float64
}

// Config controls the thresholds that decide when Map reports that it
// wants a resize. The hybrid supervisor reads these via NeedsResize rather
// than Map resizing itself, since resize at that layer is a migration.
type Config struct {
	// GroupCap bounds the number of entries per group before a bucket opens
	// a new one. Zero selects the default of 8.
	GroupCap int
	// MaxGroupLenThreshold is the max_group_len above which the backend
	// reports it wants a resize. Zero selects GroupCap*2.
	MaxGroupLenThreshold int
	// MaxLoadFactor is the load_factor at or above which the backend
	// reports it wants a resize. Zero selects 0.75.
	MaxLoadFactor float64
}

// New constructs an empty chaining map with outerLen rounded up to the
// nearest power of two no smaller than 4.
func New(hasher xhash.Hash64, outerLen int, cfg Config) *Map {
	if outerLen < defaultOuterLen {
		outerLen = defaultOuterLen
	}
	outerLen = nextPow2(outerLen)

	gc := cfg.GroupCap
	if gc <= 0 {
		gc = groupCap
	}
	maxGroupLen := cfg.MaxGroupLenThreshold
	if maxGroupLen <= 0 {
		maxGroupLen = gc * 2
	}
	maxLF := cfg.MaxLoadFactor
	if maxLF <= 0 {
		maxLF = 0.75
	}

	return &Map{
		hasher:               hasher,
		buckets:              make([]bucket, outerLen),
		outerLen:             outerLen,
		groupCap:             gc,
		maxGroupLenThreshold: maxGroupLen,
		maxLoadFactor:        maxLF,
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Len reports the number of live keys.
func (m *Map) Len() int { return m.n }

// OuterLen reports the current outer bucket array size.
func (m *Map) OuterLen() int { return m.outerLen }

func (m *Map) locate(key string) (*bucket, uint8) {
	hash := m.hasher.Sum64(key)
	idx := xhash.Spread(hash, m.outerLen)
	return &m.buckets[idx], xhash.TopHash(hash)
}

// Get returns the value for key, if present.
func (m *Map) Get(key string) (string, bool) {
	b, top := m.locate(key)
	for gi := range b.groups {
		g := &b.groups[gi]
		for _, e := range g.entries {
			if e.top == top && e.key == key {
				return e.value, true
			}
		}
	}
	return "", false
}

// Put inserts or overwrites key's value. It returns true if the key was
// newly inserted (as opposed to overwritten). A new entry lands in the
// last group with spare capacity; only when every group is full does the
// bucket open a new one.
func (m *Map) Put(key, value string) bool {
	b, top := m.locate(key)
	for gi := range b.groups {
		g := &b.groups[gi]
		for ei, e := range g.entries {
			if e.top == top && e.key == key {
				g.entries[ei].value = value
				return false
			}
		}
	}

	for gi := len(b.groups) - 1; gi >= 0; gi-- {
		g := &b.groups[gi]
		if len(g.entries) < m.groupCap {
			g.entries = append(g.entries, entry{top, key, value})
			if len(g.entries) > m.maxGroupLen {
				m.maxGroupLen = len(g.entries)
			}
			m.n++
			return true
		}
	}
	b.groups = append(b.groups, group{entries: []entry{{top, key, value}}})
	if m.maxGroupLen < 1 {
		m.maxGroupLen = 1
	}
	m.n++
	return true
}

// Delete removes key if present and reports whether it was found.
func (m *Map) Delete(key string) bool {
	b, top := m.locate(key)
	for gi := range b.groups {
		g := &b.groups[gi]
		for ei, e := range g.entries {
			if e.top == top && e.key == key {
				wasMax := len(g.entries) == m.maxGroupLen
				g.entries = append(g.entries[:ei], g.entries[ei+1:]...)
				m.n--
				if wasMax {
					m.maxGroupLen = m.scanMaxGroupLen()
				}
				return true
			}
		}
	}
	return false
}

// Items returns every (key, value) pair in bucket-then-group-then-entry
// order: deterministic for a given sequence of operations, not insertion
// order.
func (m *Map) Items() []KV {
	out := make([]KV, 0, m.n)
	for bi := range m.buckets {
		for gi := range m.buckets[bi].groups {
			for _, e := range m.buckets[bi].groups[gi].entries {
				out = append(out, KV{Key: e.key, Value: e.value})
			}
		}
	}
	return out
}

// KV is a single key/value pair, used by Items and by the supervisor's
// migration cursor to read entries out in physical order.
type KV struct {
	Key   string
	Value string
}

// LoadFactor is n / outer_len.
func (m *Map) LoadFactor() float64 {
	return float64(m.n) / float64(m.outerLen)
}

// MaxGroupLen is the largest group size across all buckets.
func (m *Map) MaxGroupLen() int { return m.maxGroupLen }

func (m *Map) scanMaxGroupLen() int {
	max := 0
	for bi := range m.buckets {
		for gi := range m.buckets[bi].groups {
			if l := len(m.buckets[bi].groups[gi].entries); l > max {
				max = l
			}
		}
	}
	return max
}

// NeedsResize reports whether load factor or max group length have crossed
// the configured thresholds. Under the hybrid supervisor this is observed
// on every operation and answered with a migration to a freshly sized
// backend; standalone callers use Grow.
func (m *Map) NeedsResize() bool {
	return m.LoadFactor() >= m.maxLoadFactor || m.maxGroupLen > m.maxGroupLenThreshold
}

// Grow doubles the outer array and rebuilds: every entry is re-hashed into
// fresh buckets holding a single group each, splitting into further groups
// only as one overflows. This is the non-incremental resize, for
// standalone use of the backend.
func (m *Map) Grow() {
	newOuter := m.outerLen * 2
	fresh := make([]bucket, newOuter)

	for bi := range m.buckets {
		for gi := range m.buckets[bi].groups {
			for _, e := range m.buckets[bi].groups[gi].entries {
				hash := m.hasher.Sum64(e.key)
				b := &fresh[xhash.Spread(hash, newOuter)]
				placed := false
				for fi := len(b.groups) - 1; fi >= 0; fi-- {
					if len(b.groups[fi].entries) < m.groupCap {
						b.groups[fi].entries = append(b.groups[fi].entries, e)
						placed = true
						break
					}
				}
				if !placed {
					b.groups = append(b.groups, group{entries: []entry{e}})
				}
			}
		}
	}

	m.buckets = fresh
	m.outerLen = newOuter
	m.maxGroupLen = m.scanMaxGroupLen()
}

// OccupancyMetrics is the gauge set the supervisor and metrics tick read:
// load factor and max group length.
type OccupancyMetrics struct {
	LoadFactor  float64
	MaxGroupLen int
	Len         int
	OuterLen    int
}

func (m *Map) Occupancy() OccupancyMetrics {
	return OccupancyMetrics{
		LoadFactor:  m.LoadFactor(),
		MaxGroupLen: m.maxGroupLen,
		Len:         m.n,
		OuterLen:    m.outerLen,
	}
}
