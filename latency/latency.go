// Package latency implements the per-operation latency reservoir and
// cumulative bucketed histogram (C3): a fixed-size uniform reservoir for
// percentile estimation, plus an immutable-bucket-vector cumulative
// histogram for Prometheus-style exposition.
package latency

import (
	"math"
	"sort"

	"golang.org/x/exp/rand"
)

// DefaultBucketBoundsMS is the coarse preset, up to 10ms.
var DefaultBucketBoundsMS = []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, math.Inf(1)}

// MicroBucketBoundsMS is the fine preset, starting at 1us.
var MicroBucketBoundsMS = []float64{
	0.001, 0.002, 0.005, 0.01, 0.02, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 10.0, math.Inf(1),
}

// Presets maps a preset name to its bucket bounds.
var Presets = map[string][]float64{
	"default": DefaultBucketBoundsMS,
	"micro":   MicroBucketBoundsMS,
}

// ResolveBucketBounds returns the canonical preset name and its bounds. An
// empty name selects "default". Unknown names are a BadInput-tier error at
// the caller (this package just reports absence via ok).
func ResolveBucketBounds(name string) (key string, bounds []float64, ok bool) {
	if name == "" {
		name = "default"
	}
	bounds, ok = Presets[name]
	return name, bounds, ok
}

const defaultReservoirSize = 1000
const defaultSeed = 0xC0FFEE

// Reservoir is a fixed-size uniform reservoir: once full, each new sample
// replaces a uniformly random existing slot with probability k/n, giving
// an unbiased sample of the stream seen so far.
type Reservoir struct {
	k   int
	buf []float64
	n   int
	rng *rand.Rand
}

// NewReservoir constructs a reservoir of capacity k (default 1000 if k<=0)
// seeded with seed, so the replacement draws are reproducible across runs.
func NewReservoir(k int, seed uint64) *Reservoir {
	if k <= 0 {
		k = defaultReservoirSize
	}
	if seed == 0 {
		seed = defaultSeed
	}
	return &Reservoir{
		k:   k,
		rng: rand.New(rand.NewSource(seed)),
	}
}

// Offer records a new sample.
func (r *Reservoir) Offer(valueMS float64) {
	r.n++
	if len(r.buf) < r.k {
		r.buf = append(r.buf, valueMS)
		return
	}
	j := r.rng.Intn(r.n)
	if j < r.k {
		r.buf[j] = valueMS
	}
}

// Count is the number of samples offered, including ones since discarded.
func (r *Reservoir) Count() int { return r.n }

// Percentiles returns p -> value for each requested quantile in [0, 1],
// selecting the value at the floor-rounded rank p*(len-1) over a sorted
// copy of the reservoir's current contents.
func (r *Reservoir) Percentiles(ps []float64) map[string]float64 {
	out := make(map[string]float64, len(ps))
	if len(r.buf) == 0 {
		for _, p := range ps {
			out[quantileLabel(p)] = 0
		}
		return out
	}

	data := make([]float64, len(r.buf))
	copy(data, r.buf)
	sort.Float64s(data)

	for _, p := range ps {
		idx := int(math.Floor(p * float64(len(data)-1)))
		if idx < 0 {
			idx = 0
		}
		if idx > len(data)-1 {
			idx = len(data) - 1
		}
		out[quantileLabel(p)] = data[idx]
	}
	return out
}

func quantileLabel(p float64) string {
	switch p {
	case 0.5:
		return "p50"
	case 0.9:
		return "p90"
	case 0.99:
		return "p99"
	default:
		return "p" + formatPercent(p)
	}
}

func formatPercent(p float64) string {
	n := int(p * 100)
	digits := []byte{}
	if n == 0 {
		return "0"
	}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

// Histogram is a fixed, ordered vector of upper bounds; Observe increments
// every bucket whose upper bound is >= the observed value (cumulative
// counts), plus separate sum/count accumulators.
type Histogram struct {
	bounds []float64
	counts []uint64
	sum    float64
	count  uint64
}

// NewHistogram constructs a histogram over the given (immutable after
// construction) bucket bounds. The last bound should be +Inf.
func NewHistogram(bounds []float64) *Histogram {
	b := make([]float64, len(bounds))
	copy(b, bounds)
	return &Histogram{bounds: b, counts: make([]uint64, len(b))}
}

// Observe records value, incrementing every bucket whose bound is >= value.
func (h *Histogram) Observe(value float64) {
	h.sum += value
	h.count++
	for i, bound := range h.bounds {
		if value <= bound {
			h.counts[i]++
		}
	}
}

// Bucket is one (upper bound, cumulative count) pair.
type Bucket struct {
	UpperBound float64
	Count      uint64
}

// Buckets returns the cumulative bucket counts in bound order.
func (h *Histogram) Buckets() []Bucket {
	out := make([]Bucket, len(h.bounds))
	for i, bound := range h.bounds {
		out[i] = Bucket{UpperBound: bound, Count: h.counts[i]}
	}
	return out
}

// Sum is the accumulated sum of all observed values.
func (h *Histogram) Sum() float64 { return h.sum }

// Count is the number of observed values.
func (h *Histogram) Count() uint64 { return h.count }

// Reset clears all counts, sum, and count while keeping the bucket bounds,
// used when a fresh per-tick histogram is needed without reallocating.
func (h *Histogram) Reset() {
	for i := range h.counts {
		h.counts[i] = 0
	}
	h.sum = 0
	h.count = 0
}
