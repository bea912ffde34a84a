// Package dna implements the single-pass workload fingerprint analyzer
// (C6): a streaming pass over an (op, key, value) sequence that produces an
// immutable statistical record (schema workload_dna.v1) used to pre-select
// a backend and to surface tuning advice.
package dna

import (
	"fmt"
	"math"
	"sort"

	"github.com/jguida941/adaptive-hashmap-core/xhash"
)

// Op is one of the three operation kinds the analyzer counts.
type Op string

const (
	Put Op = "put"
	Get Op = "get"
	Del Op = "del"
)

const (
	hashBucketBits  = 12
	bucketCount     = 1 << hashBucketBits
	defaultTopKeys  = 10
	defaultMaxKeys  = 200_000
	schemaTag       = "workload_dna.v1"
)

// Stats is a Welford running-mean/variance summary.
type Stats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
	Stdev float64 `json:"stdev"`
}

// runningStats accumulates Stats incrementally without storing samples.
type runningStats struct {
	count  int
	mean   float64
	m2     float64
	min    float64
	max    float64
	hasMin bool
}

func (s *runningStats) add(value float64) {
	if !s.hasMin {
		s.min, s.max = value, value
		s.hasMin = true
	} else {
		if value < s.min {
			s.min = value
		}
		if value > s.max {
			s.max = value
		}
	}
	s.count++
	delta := value - s.mean
	s.mean += delta / float64(s.count)
	delta2 := value - s.mean
	s.m2 += delta * delta2
}

func (s *runningStats) snapshot() Stats {
	if s.count == 0 {
		return Stats{}
	}
	variance := 0.0
	if s.count > 1 {
		variance = s.m2 / float64(s.count)
	}
	return Stats{Count: s.count, Min: s.min, Max: s.max, Mean: s.mean, Stdev: math.Sqrt(variance)}
}

// HotKey is one entry of the top-N-by-frequency list.
type HotKey struct {
	Key   string  `json:"key"`
	Count uint64  `json:"count"`
	Share float64 `json:"share"`
}

// CoverageTargets is how many top keys (by frequency, descending) are
// needed to cover 50/80/95% of all observed accesses.
type CoverageTargets struct {
	P50 int `json:"p50"`
	P80 int `json:"p80"`
	P95 int `json:"p95"`
}

// Result is the immutable fingerprint the analyzer produces, schema
// workload_dna.v1.
type Result struct {
	Schema string `json:"schema"`

	TotalRows int              `json:"total_rows"`
	OpCounts  map[Op]uint64    `json:"op_counts"`
	OpMix     map[Op]float64   `json:"op_mix"`

	MutationFraction    float64 `json:"mutation_fraction"`
	UniqueKeysEstimated int     `json:"unique_keys_estimated"`
	KeySpaceDepth       float64 `json:"key_space_depth"`

	KeyLengthStats Stats `json:"key_length_stats"`
	ValueSizeStats Stats `json:"value_size_stats"`

	KeyEntropyBits       float64 `json:"key_entropy_bits"`
	KeyEntropyNormalised float64 `json:"key_entropy_normalised"`

	HotKeys         []HotKey        `json:"hot_keys"`
	CoverageTargets CoverageTargets `json:"coverage_targets"`

	NumericKeyFraction            float64 `json:"numeric_key_fraction"`
	SequentialNumericStepFraction float64 `json:"sequential_numeric_step_fraction"`
	AdjacentDuplicateFraction     float64 `json:"adjacent_duplicate_fraction"`

	HashCollisionHotspots   map[int]uint64      `json:"hash_collision_hotspots"`
	BucketCounts            []uint64            `json:"bucket_counts"`
	BucketPercentiles       map[string]float64  `json:"bucket_percentiles"`
	CollisionDepthHistogram map[uint64]int      `json:"collision_depth_histogram"`
	NonEmptyBuckets         int                 `json:"non_empty_buckets"`
	MaxBucketDepth          uint64              `json:"max_bucket_depth"`
}

// Analyzer consumes one (op, key, value) triple at a time. The tracked-key
// frequency table caps at maxTrackedKeys and decays when full, and the
// collision-bucket table has at most bucketCount entries; the set of seen
// key hashes used for the unique-key estimate is not capped and grows with
// every distinct key.
type Analyzer struct {
	hasher         xhash.Hash64
	maxTrackedKeys int

	totalRows int
	opCounts  map[Op]uint64

	keyLengths runningStats
	valueSizes runningStats

	keyCounts  map[string]uint64
	seenHashes map[uint64]struct{}
	hashBuckets map[int]uint64

	hasPrevKey bool
	prevKey    string
	dupRuns    int

	numericKeys        int
	numericPairTotal   int
	numericStepMatches int
	hasPrevNumeric     bool
	prevNumeric        int64
}

// NewAnalyzer constructs an empty Analyzer. maxTrackedKeys <= 0 selects
// 200,000.
func NewAnalyzer(hasher xhash.Hash64, maxTrackedKeys int) *Analyzer {
	if maxTrackedKeys <= 0 {
		maxTrackedKeys = defaultMaxKeys
	}
	return &Analyzer{
		hasher:         hasher,
		maxTrackedKeys: maxTrackedKeys,
		opCounts:       map[Op]uint64{},
		keyCounts:      map[string]uint64{},
		seenHashes:     map[uint64]struct{}{},
		hashBuckets:    map[int]uint64{},
	}
}

// Observe folds one operation into the running fingerprint.
func (a *Analyzer) Observe(op Op, key, value string) {
	a.totalRows++
	a.opCounts[op]++

	a.keyLengths.add(float64(len(key)))
	if op == Put {
		a.valueSizes.add(float64(len(value)))
	}

	hash := a.hasher.Sum64(key)
	if _, seen := a.seenHashes[hash]; !seen {
		a.seenHashes[hash] = struct{}{}
		bucket := int(hash & (bucketCount - 1))
		a.hashBuckets[bucket]++
	}

	a.keyCounts[key]++
	if len(a.keyCounts) > a.maxTrackedKeys {
		a.decay()
	}

	if a.hasPrevKey && a.prevKey == key {
		a.dupRuns++
	}
	a.hasPrevKey = true
	a.prevKey = key

	if n, ok := extractNumericSuffix(key); ok {
		a.numericKeys++
		if a.hasPrevNumeric {
			a.numericPairTotal++
			if n == a.prevNumeric+1 {
				a.numericStepMatches++
			}
		}
		a.prevNumeric = n
		a.hasPrevNumeric = true
	} else {
		a.hasPrevNumeric = false
	}
}

// decay is a Misra-Gries-style sweep: decrement every tracked key's count
// by one and drop any that reach zero. Heavy hitters survive repeated
// sweeps; the table stays bounded.
func (a *Analyzer) decay() {
	for key, count := range a.keyCounts {
		if count <= 1 {
			delete(a.keyCounts, key)
		} else {
			a.keyCounts[key] = count - 1
		}
	}
}

// extractNumericSuffix parses a key's numeric tail: a key that is wholly a
// (possibly signed) integer literal is parsed whole; otherwise, its
// trailing run of digits (if any) is parsed.
func extractNumericSuffix(key string) (int64, bool) {
	if key == "" {
		return 0, false
	}
	if isAllDigits(key) || (key[0] == '-' && len(key) > 1 && isAllDigits(key[1:])) {
		return parseInt(key)
	}
	end := len(key)
	start := end
	for start > 0 && key[start-1] >= '0' && key[start-1] <= '9' {
		start--
	}
	if start == end {
		return 0, false
	}
	return parseInt(key[start:end])
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func parseInt(s string) (int64, bool) {
	neg := false
	if s != "" && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	if s == "" {
		return 0, false
	}
	var v int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		v = v*10 + int64(r-'0')
	}
	if neg {
		v = -v
	}
	return v, true
}

// Result compiles the current state into an immutable fingerprint. topKeys
// <= 0 selects 10.
func (a *Analyzer) Result(topKeys int) Result {
	if topKeys <= 0 {
		topKeys = defaultTopKeys
	}

	opCounts := map[Op]uint64{Put: a.opCounts[Put], Get: a.opCounts[Get], Del: a.opCounts[Del]}
	total := a.totalRows

	opMix := map[Op]float64{}
	for _, op := range []Op{Put, Get, Del} {
		if total > 0 {
			opMix[op] = float64(opCounts[op]) / float64(total)
		}
	}

	mutationFraction := 0.0
	if total > 0 {
		mutationFraction = float64(opCounts[Put]+opCounts[Del]) / float64(total)
	}

	uniqueKeys := len(a.seenHashes)
	keySpaceDepth := 0.0
	if uniqueKeys > 0 {
		keySpaceDepth = float64(total) / float64(uniqueKeys)
	}

	numericFraction := 0.0
	sequentialFraction := 0.0
	duplicateFraction := 0.0
	if total > 0 {
		numericFraction = float64(a.numericKeys) / float64(total)
		duplicateFraction = float64(a.dupRuns) / float64(total)
	}
	if a.numericPairTotal > 0 {
		sequentialFraction = float64(a.numericStepMatches) / float64(a.numericPairTotal)
	}

	entropyBits := shannonEntropy(a.keyCounts)
	maxEntropy := 0.0
	if uniqueKeys > 1 {
		maxEntropy = math.Log2(float64(uniqueKeys))
	}
	entropyNormalised := 0.0
	if maxEntropy > 0 {
		entropyNormalised = entropyBits / maxEntropy
	}

	hotKeys := formatHotKeys(a.keyCounts, topKeys, total)
	coverage := coverageTargets(a.keyCounts, total)

	bucketCounts := make([]uint64, bucketCount)
	for bucket, count := range a.hashBuckets {
		bucketCounts[bucket] = count
	}
	nonEmpty := 0
	var maxDepth uint64
	for _, c := range bucketCounts {
		if c > 0 {
			nonEmpty++
		}
		if c > maxDepth {
			maxDepth = c
		}
	}
	depthHistogram := map[uint64]int{}
	for _, c := range bucketCounts {
		depthHistogram[c]++
	}
	percentiles := bucketPercentiles(bucketCounts)

	hotspots := map[int]uint64{}
	for bucket, count := range a.hashBuckets {
		if count > 1 {
			hotspots[bucket] = count
		}
	}

	return Result{
		Schema:                        schemaTag,
		TotalRows:                     total,
		OpCounts:                      opCounts,
		OpMix:                         opMix,
		MutationFraction:              mutationFraction,
		UniqueKeysEstimated:           uniqueKeys,
		KeySpaceDepth:                 keySpaceDepth,
		KeyLengthStats:                a.keyLengths.snapshot(),
		ValueSizeStats:                a.valueSizes.snapshot(),
		KeyEntropyBits:                entropyBits,
		KeyEntropyNormalised:          entropyNormalised,
		HotKeys:                       hotKeys,
		CoverageTargets:               coverage,
		NumericKeyFraction:            numericFraction,
		SequentialNumericStepFraction: sequentialFraction,
		AdjacentDuplicateFraction:     duplicateFraction,
		HashCollisionHotspots:         hotspots,
		BucketCounts:                  bucketCounts,
		BucketPercentiles:             percentiles,
		CollisionDepthHistogram:       depthHistogram,
		NonEmptyBuckets:               nonEmpty,
		MaxBucketDepth:                maxDepth,
	}
}

func shannonEntropy(counts map[string]uint64) float64 {
	var total uint64
	for _, c := range counts {
		if c > 0 {
			total += c
		}
	}
	if total == 0 {
		return 0
	}
	entropy := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		entropy -= p * math.Log2(p)
	}
	return entropy
}

func formatHotKeys(counts map[string]uint64, limit, total int) []HotKey {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]HotKey, 0, len(counts))
	for k, c := range counts {
		share := 0.0
		if total > 0 {
			share = float64(c) / float64(total)
		}
		keys = append(keys, HotKey{Key: k, Count: c, Share: share})
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Count != keys[j].Count {
			return keys[i].Count > keys[j].Count
		}
		return keys[i].Key < keys[j].Key
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

func coverageTargets(counts map[string]uint64, total int) CoverageTargets {
	if len(counts) == 0 || total == 0 {
		return CoverageTargets{}
	}
	sorted := make([]uint64, 0, len(counts))
	for _, c := range counts {
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] > sorted[j] })

	result := CoverageTargets{}
	var cumulative uint64
	idx := 0
	for _, c := range sorted {
		idx++
		cumulative += c
		coverage := float64(cumulative) / float64(total)
		if result.P50 == 0 && coverage >= 0.5 {
			result.P50 = idx
		}
		if result.P80 == 0 && coverage >= 0.8 {
			result.P80 = idx
		}
		if result.P95 == 0 && coverage >= 0.95 {
			result.P95 = idx
		}
	}
	if result.P50 == 0 {
		result.P50 = len(sorted)
	}
	if result.P80 == 0 {
		result.P80 = len(sorted)
	}
	if result.P95 == 0 {
		result.P95 = len(sorted)
	}
	return result
}

func bucketPercentiles(counts []uint64) map[string]float64 {
	nonZero := make([]float64, 0, len(counts))
	for _, c := range counts {
		if c > 0 {
			nonZero = append(nonZero, float64(c))
		}
	}
	target := nonZero
	if len(target) == 0 {
		target = make([]float64, len(counts))
		for i, c := range counts {
			target[i] = float64(c)
		}
	}
	if len(target) == 0 {
		return map[string]float64{"p50": 0, "p75": 0, "p90": 0, "p95": 0, "p99": 0}
	}
	sort.Float64s(target)
	return map[string]float64{
		"p50": percentile(target, 0.5),
		"p75": percentile(target, 0.75),
		"p90": percentile(target, 0.90),
		"p95": percentile(target, 0.95),
		"p99": percentile(target, 0.99),
	}
}

func percentile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	position := q * float64(len(sorted)-1)
	lower := int(math.Floor(position))
	upper := int(math.Ceil(position))
	if lower == upper {
		return sorted[lower]
	}
	weight := position - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

// FormatHotKeyShare renders a hot-key share the way a human-facing report
// does: a percentage above 0.1%, basis points below it.
func FormatHotKeyShare(share float64) string {
	if share <= 0 {
		return "0"
	}
	if share >= 0.001 {
		return formatPercent2(share * 100)
	}
	return formatBP1(share * 10000)
}

func formatPercent2(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}

func formatBP1(v float64) string {
	return fmt.Sprintf("%.1f bp", v)
}
