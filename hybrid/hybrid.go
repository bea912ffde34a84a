// Package hybrid implements the adaptive supervisor (C7): it owns one
// backend at a time, decides when to migrate based on C4/C5 signals, and
// drives incremental migration into a shadow backend while transparently
// routing foreground operations against whichever slice of the keyspace
// has and hasn't moved yet.
package hybrid

import (
	"math"
	"strconv"
	"time"

	"github.com/jguida941/adaptive-hashmap-core/chaining"
	"github.com/jguida941/adaptive-hashmap-core/dna"
	"github.com/jguida941/adaptive-hashmap-core/errs"
	"github.com/jguida941/adaptive-hashmap-core/latency"
	"github.com/jguida941/adaptive-hashmap-core/logger"
	"github.com/jguida941/adaptive-hashmap-core/metrics"
	"github.com/jguida941/adaptive-hashmap-core/robinhood"
	"github.com/jguida941/adaptive-hashmap-core/snapshot"
	"github.com/jguida941/adaptive-hashmap-core/watchdog"
	"github.com/jguida941/adaptive-hashmap-core/xhash"
)

// BackendName identifies which concrete backend is active.
type BackendName string

const (
	Chaining  BackendName = "chaining"
	RobinHood BackendName = "robinhood"
)

// state is the supervisor's top-level state machine.
type state int

const (
	steady state = iota
	migrating
)

const defaultBStep = 64
const defaultTickEveryOps = 100

// kv is the supervisor's backend-agnostic key/value pair, used for
// migration's frozen source snapshot.
type kv struct{ key, value string }

// backend is the capability set the supervisor needs from a storage
// implementation: put, get, delete, len, items, and occupancy gauges.
// chaining.Map and robinhood.Map satisfy it through the adapters below;
// there is deliberately no third-party plug-in point.
type backend interface {
	Put(key, value string) bool
	Get(key string) (string, bool)
	Delete(key string) bool
	Len() int
	Items() []kv
	occupancy() occupancy
}

// occupancy is the neutral gauge set both backends report, a superset of
// whichever fields a given backend actually has (the others read zero).
type occupancy struct {
	LoadFactor       float64
	MaxGroupLen      int
	AvgProbeEstimate float64
	TombstoneRatio   float64
}

type chainingBackend struct{ m *chaining.Map }

func (b chainingBackend) Put(key, value string) bool { return b.m.Put(key, value) }
func (b chainingBackend) Get(key string) (string, bool) { return b.m.Get(key) }
func (b chainingBackend) Delete(key string) bool { return b.m.Delete(key) }
func (b chainingBackend) Len() int { return b.m.Len() }
func (b chainingBackend) Items() []kv {
	items := b.m.Items()
	out := make([]kv, len(items))
	for i, it := range items {
		out[i] = kv{it.Key, it.Value}
	}
	return out
}
func (b chainingBackend) occupancy() occupancy {
	o := b.m.Occupancy()
	return occupancy{LoadFactor: o.LoadFactor, MaxGroupLen: o.MaxGroupLen}
}

type robinhoodBackend struct{ m *robinhood.Map }

func (b robinhoodBackend) Put(key, value string) bool { return b.m.Put(key, value) }
func (b robinhoodBackend) Get(key string) (string, bool) { return b.m.Get(key) }
func (b robinhoodBackend) Delete(key string) bool { return b.m.Delete(key) }
func (b robinhoodBackend) Len() int { return b.m.Len() }
func (b robinhoodBackend) Items() []kv {
	items := b.m.Items()
	out := make([]kv, len(items))
	for i, it := range items {
		out[i] = kv{it.Key, it.Value}
	}
	return out
}
func (b robinhoodBackend) occupancy() occupancy {
	o := b.m.Occupancy()
	return occupancy{LoadFactor: o.LoadFactor, AvgProbeEstimate: o.AvgProbeEstimate, TombstoneRatio: o.TombstoneRatio}
}

// Config configures an adaptive Map. Zero values select working defaults
// throughout.
type Config struct {
	// InitialBackend selects the starting backend when no DNA fingerprint
	// informs the choice. Defaults to Chaining.
	InitialBackend BackendName
	InitialOuterLen int
	InitialCapacity int

	ChainingConfig  chaining.Config
	RobinHoodConfig robinhood.Config

	// BStep bounds how many source entries a single foreground operation
	// migrates. Zero selects 64.
	BStep int

	// MigrateOnCollisionPressure enables the optional, policy-gated fourth
	// trigger rule (chronic collision pressure on chaining with low
	// mutation fraction migrates to robinhood). Default false: the rule is
	// speculative, so a deployment must opt in explicitly rather than
	// inherit a silent behavior change.
	MigrateOnCollisionPressure bool
	CollisionPressureMaxGroupLen int
	CollisionPressureMaxMutationFraction float64

	Seed              uint64
	ReservoirSize     int
	LatencyBucketName string
	MaxTrackedKeys    int

	// TickEveryOps and TickInterval set the tick cadence: a tick is
	// compiled every N operations or every T elapsed, whichever comes
	// first. Zero values select 100 ops and 1 second.
	TickEveryOps int
	TickInterval time.Duration

	RingCapacity int

	// HeatmapRows/HeatmapCols size the optional key_heatmap emitted on
	// ticks while a Robin-Hood backend is active. Zero disables it.
	HeatmapRows int
	HeatmapCols int

	// EMAAlpha smooths the aggregator's throughput estimate. Zero selects
	// 0.25; values are clamped to [0,1].
	EMAAlpha float64

	Watchdog watchdog.Policy
	Logger   logger.Logger
}

// Map is the adaptive hybrid hashmap (C7): the only type most callers
// touch directly.
type Map struct {
	cfg    Config
	hasher xhash.Hash64
	log    logger.Logger

	st     state
	name   BackendName
	active backend
	target backend

	migrationSnapshot []kv
	cursor            int
	migratingTo       BackendName
	compacting        bool

	reservoirs map[string]*latency.Reservoir
	histograms map[string]*latency.Histogram

	dnaAnalyzer *dna.Analyzer

	aggregator *metrics.Aggregator
	watchdog   *watchdog.Watchdog
	ring       *metrics.Ring
	subscriber func(metrics.Tick)

	ops          uint64
	opsByType    metrics.OpsByType
	migrations   uint64
	compactions  uint64
	opsSinceTick int
	lastTickAt   time.Time

	pendingEvents []metrics.Event

	startedAt time.Time
}

// Validate reports the first configuration problem as a BadInput error, or
// nil if cfg is usable. Zero values are fine (they select defaults); only
// values that name something nonexistent or out of range are rejected.
func (c Config) Validate() error {
	switch c.InitialBackend {
	case "", Chaining, RobinHood:
	default:
		return errs.BadInput("initial_backend", `must be "chaining" or "robinhood"`)
	}
	if c.LatencyBucketName != "" {
		if _, _, ok := latency.ResolveBucketBounds(c.LatencyBucketName); !ok {
			return errs.BadInput("latency_bucket_name", "unknown histogram preset")
		}
	}
	if c.EMAAlpha < 0 || c.EMAAlpha > 1 {
		return errs.BadInput("ema_alpha", "must be within [0, 1]")
	}
	if c.BStep < 0 {
		return errs.BadInput("bstep", "must be non-negative")
	}
	return nil
}

// New constructs a Map steady on a fresh backend chosen per
// cfg.InitialBackend. Use NewFromDNA when a workload fingerprint should
// pick the backend instead.
func New(cfg Config) *Map {
	if cfg.Logger == nil {
		cfg.Logger = logger.NoOp()
	}
	if cfg.BStep <= 0 {
		cfg.BStep = defaultBStep
	}
	if cfg.TickEveryOps <= 0 {
		cfg.TickEveryOps = defaultTickEveryOps
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if cfg.RingCapacity <= 0 {
		cfg.RingCapacity = 256
	}

	hasher := xhash.New(cfg.Seed)

	m := &Map{
		cfg:         cfg,
		hasher:      hasher,
		log:         cfg.Logger,
		reservoirs:  map[string]*latency.Reservoir{},
		histograms:  map[string]*latency.Histogram{},
		dnaAnalyzer: dna.NewAnalyzer(hasher, cfg.MaxTrackedKeys),
		aggregator:  metrics.NewAggregator(0, cfg.EMAAlpha),
		watchdog:    watchdog.New(cfg.Watchdog, cfg.Logger),
		ring:        metrics.NewRing(cfg.RingCapacity),
		startedAt:   time.Now(),
	}
	m.lastTickAt = m.startedAt

	name := cfg.InitialBackend
	if name == "" {
		name = Chaining
	}
	m.name = name
	m.active = m.freshBackend(name, max(cfg.InitialOuterLen, cfg.InitialCapacity))

	return m
}

// NewFromDNA constructs a Map whose initial backend is chosen from a
// workload fingerprint: high mutation fraction and high entropy favors
// chaining; read-heavy, low-entropy, high-skew workloads favor robinhood.
func NewFromDNA(cfg Config, fingerprint dna.Result) *Map {
	if fingerprint.MutationFraction > 0.4 && fingerprint.KeyEntropyNormalised > 0.6 {
		cfg.InitialBackend = Chaining
	} else {
		cfg.InitialBackend = RobinHood
	}
	return New(cfg)
}

func (m *Map) freshBackend(name BackendName, sizeHint int) backend {
	switch name {
	case RobinHood:
		return robinhoodBackend{m: robinhood.New(m.hasher, sizeHint, m.cfg.RobinHoodConfig)}
	default:
		return chainingBackend{m: chaining.New(m.hasher, sizeHint, m.cfg.ChainingConfig)}
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Backend reports the currently active backend name. During migration this
// is the backend being migrated away from; the "adaptive:"-prefixed
// compound name appears only on tick records, Backend() itself always
// names a concrete backend.
func (m *Map) Backend() BackendName { return m.name }

// Migrating reports whether a migration is currently in flight.
func (m *Map) Migrating() bool { return m.st == migrating }

// Len reports the live key count. During migration every live key resides
// in exactly one of source or target, so the counts sum.
func (m *Map) Len() int {
	if m.st == migrating {
		return m.target.Len() + m.active.Len()
	}
	return m.active.Len()
}

// Put inserts or overwrites key's value and records latency/DNA/
// migration-cursor bookkeeping. While migrating, the write lands in the
// target and the key is removed from the source, keeping every live key in
// exactly one of the two.
func (m *Map) Put(key, value string) bool {
	start := time.Now()
	m.checkTriggers()
	var inserted bool

	if m.st == migrating {
		targetInserted := m.target.Put(key, value)
		sourceHeld := m.active.Delete(key)
		inserted = targetInserted && !sourceHeld
		m.advanceCursor()
	} else {
		inserted = m.active.Put(key, value)
	}

	m.recordOp("put", key, value, start)
	return inserted
}

// Get looks up key, preferring the migration target while migrating.
func (m *Map) Get(key string) (string, bool) {
	start := time.Now()
	m.checkTriggers()
	var value string
	var ok bool

	if m.st == migrating {
		value, ok = m.target.Get(key)
		if !ok {
			value, ok = m.active.Get(key)
		}
		m.advanceCursor()
	} else {
		value, ok = m.active.Get(key)
	}

	m.recordOp("get", key, "", start)
	return value, ok
}

// Delete removes key from whichever backend(s) are live, returning the OR
// of both attempts while migrating.
func (m *Map) Delete(key string) bool {
	start := time.Now()
	m.checkTriggers()
	var deleted bool

	if m.st == migrating {
		deletedTarget := m.target.Delete(key)
		deletedSource := m.active.Delete(key)
		deleted = deletedTarget || deletedSource
		m.advanceCursor()
	} else {
		deleted = m.active.Delete(key)
	}

	m.recordOp("del", key, "", start)
	return deleted
}

func (m *Map) recordOp(op, key, value string, start time.Time) {
	elapsedMS := float64(time.Since(start)) / float64(time.Millisecond)

	m.observeLatency("overall", elapsedMS)
	m.observeLatency(op, elapsedMS)

	switch op {
	case "put":
		m.dnaAnalyzer.Observe(dna.Put, key, value)
		m.opsByType.Put++
	case "get":
		m.dnaAnalyzer.Observe(dna.Get, key, value)
		m.opsByType.Get++
	case "del":
		m.dnaAnalyzer.Observe(dna.Del, key, value)
		m.opsByType.Del++
	}
	m.ops++
	m.opsSinceTick++

	if m.opsSinceTick >= m.cfg.TickEveryOps || time.Since(m.lastTickAt) >= m.cfg.TickInterval {
		m.emitTick()
	}
}

// checkTriggers evaluates the migration trigger rules at the start of every
// foreground operation while steady, so a threshold crossed by one
// operation starts the migration on the next one rather than waiting for
// the tick cadence. Both backends report their gauges in constant time, so
// this is cheap enough to run per op.
func (m *Map) checkTriggers() {
	if m.st != steady {
		return
	}
	if err := m.MaybeMigrate(); err != nil {
		m.log.Errorf("migration trigger check failed: %v", err)
	}
}

func (m *Map) observeLatency(op string, valueMS float64) {
	if _, ok := m.reservoirs[op]; !ok {
		m.reservoirs[op] = latency.NewReservoir(m.cfg.ReservoirSize, m.cfg.Seed)
		_, bounds, ok := latency.ResolveBucketBounds(m.cfg.LatencyBucketName)
		if !ok {
			_, bounds, _ = latency.ResolveBucketBounds("")
		}
		m.histograms[op] = latency.NewHistogram(bounds)
	}
	m.reservoirs[op].Offer(valueMS)
	m.histograms[op].Observe(valueMS)
}

// advanceCursor moves up to BStep source entries into the target, skipping
// entries the foreground has already overwritten in the target and entries
// the foreground has already deleted from the source, which is what keeps
// the migration overhead amortized O(1) per op. The snapshot taken at
// BeginMigration is frozen, so a foreground Delete of a not-yet-migrated
// key only removes it from the live m.active, not from the snapshot;
// checking m.active's current presence (rather than trusting the
// snapshotted entry) is what stops that stale entry from being copied into
// the target and resurrecting a key the caller already deleted.
func (m *Map) advanceCursor() {
	if m.st != migrating {
		return
	}

	moved := 0
	for moved < m.cfg.BStep && m.cursor < len(m.migrationSnapshot) {
		entry := m.migrationSnapshot[m.cursor]
		m.cursor++
		moved++

		if _, present := m.target.Get(entry.key); present {
			continue
		}
		if value, present := m.active.Get(entry.key); present {
			m.target.Put(entry.key, value)
			m.active.Delete(entry.key)
		}
	}

	if m.cursor >= len(m.migrationSnapshot) {
		m.completeMigration()
	}
}

func (m *Map) completeMigration() {
	m.st = steady
	m.active = m.target
	m.name = m.migratingTo
	m.target = nil
	m.migrationSnapshot = nil
	m.cursor = 0
	m.migrations++
	m.recordEvent("migration_completed")
	if m.compacting {
		m.compactions++
		m.recordEvent("compaction_completed")
		m.compacting = false
	}
	m.log.Infof("migration completed: now steady on %s", m.name)
}

func (m *Map) recordEvent(kind string) {
	m.pendingEvents = append(m.pendingEvents, metrics.Event{
		Kind: kind,
		At:   time.Since(m.startedAt).Seconds(),
	})
}

// BeginMigration starts migrating the active backend to a freshly sized
// backend named to. At most one migration may be in flight: a second
// request is rejected with errs.Policy and callers must wait for
// completion.
func (m *Map) BeginMigration(to BackendName, capacity int) error {
	return m.beginMigration(to, capacity, false)
}

func (m *Map) beginMigration(to BackendName, capacity int, compaction bool) error {
	if m.st == migrating {
		return errs.Policy("migration already in flight")
	}

	m.target = m.freshBackend(to, capacity)
	m.migrationSnapshot = m.active.Items()
	m.cursor = 0
	m.migratingTo = to
	m.compacting = compaction
	m.st = migrating
	m.recordEvent("migration_started")
	if compaction {
		m.recordEvent("compaction_started")
	}
	m.log.Infof("migration started: %s -> %s (capacity %d)", m.name, to, capacity)
	return nil
}

// MaybeMigrate evaluates the migration trigger rules against the active
// backend's current occupancy and begins a migration if
// one is warranted. The Map runs this itself before every foreground
// operation; it is exported so batch drivers can force an evaluation
// between operation streams. It is a no-op while already migrating,
// matching the "at most one migration in flight" invariant.
func (m *Map) MaybeMigrate() error {
	if m.st == migrating {
		return nil
	}

	switch b := m.active.(type) {
	case chainingBackend:
		if b.m.NeedsResize() {
			target := robinhood.TargetCapacityForGrowth(b.m.Len())
			return m.BeginMigration(RobinHood, target)
		}
		if m.cfg.MigrateOnCollisionPressure && m.chronicCollisionPressure(b) {
			target := robinhood.TargetCapacityForGrowth(b.m.Len())
			return m.BeginMigration(RobinHood, target)
		}
	case robinhoodBackend:
		if b.m.NeedsCompaction() {
			target := robinhood.TargetCapacityForCompaction(b.m.Len())
			return m.beginMigration(RobinHood, target, true)
		}
		if b.m.NeedsResize() {
			target := robinhood.TargetCapacityForGrowth(b.m.Len())
			return m.BeginMigration(RobinHood, target)
		}
	}
	return nil
}

// chronicCollisionPressure implements the optional fourth trigger rule: a
// chaining backend whose max group length is elevated while mutation
// traffic is low suggests a read-heavy, skewed workload that would benefit
// from Robin-Hood's shorter probe chains.
func (m *Map) chronicCollisionPressure(b chainingBackend) bool {
	threshold := m.cfg.CollisionPressureMaxGroupLen
	if threshold <= 0 {
		threshold = 4
	}
	maxMutation := m.cfg.CollisionPressureMaxMutationFraction
	if maxMutation <= 0 {
		maxMutation = 0.2
	}

	fingerprint := m.dnaAnalyzer.Result(0)
	return b.m.MaxGroupLen() > threshold && fingerprint.MutationFraction < maxMutation
}

// Subscribe registers a callback invoked with every completed tick, on the
// owner goroutine. Tick emission is push-only: fan-out and backpressure
// are the subscriber's problem.
func (m *Map) Subscribe(fn func(metrics.Tick)) { m.subscriber = fn }

// Ring exposes the bounded tick history for out-of-band consumers.
func (m *Map) Ring() *metrics.Ring { return m.ring }

// Aggregator exposes the cumulative counters/gauges/Prometheus renderer.
func (m *Map) Aggregator() *metrics.Aggregator { return m.aggregator }

func (m *Map) emitTick() {
	m.opsSinceTick = 0
	m.lastTickAt = time.Now()

	occ := m.active.occupancy()
	backendName := string(m.name)
	if m.st == migrating {
		backendName = "adaptive:" + string(m.name) + "->" + string(m.migratingTo)
	}

	tick := metrics.Tick{
		Schema:      metrics.TickSchema,
		T:           time.Since(m.startedAt).Seconds(),
		Backend:     backendName,
		Ops:         m.ops,
		OpsByType:   m.opsByType,
		Migrations:  m.migrations,
		Compactions: m.compactions,

		LoadFactor:       occ.LoadFactor,
		MaxGroupLen:      float64(occ.MaxGroupLen),
		AvgProbeEstimate: occ.AvgProbeEstimate,
		TombstoneRatio:   occ.TombstoneRatio,

		LatencyMS:        m.buildLatencyQuantiles(),
		LatencyHistMS:    m.buildLatencyHistograms(),
		LatencyHistSumMS: m.buildLatencyHistogramSums(),

		Events: m.pendingEvents,
	}
	m.pendingEvents = nil

	if rb, ok := m.active.(robinhoodBackend); ok && m.st == steady {
		tick.ProbeHist = rb.m.ProbeHistogram()
		if m.cfg.HeatmapRows > 0 && m.cfg.HeatmapCols > 0 {
			tick.KeyHeatmap = metrics.BuildKeyHeatmap(rb.m.SlotOccupancy(), m.cfg.HeatmapRows, m.cfg.HeatmapCols)
		}
	}

	alerts, flags := m.watchdog.Evaluate(watchdog.Tick{
		Backend:          backendName,
		LoadFactor:       occ.LoadFactor,
		AvgProbeEstimate: occ.AvgProbeEstimate,
		TombstoneRatio:   occ.TombstoneRatio,
	})
	tick.AlertFlags = flags
	for _, a := range alerts {
		tick.Alerts = append(tick.Alerts, metrics.Alert{
			Metric:    a.Metric,
			Value:     a.Value,
			Threshold: a.Threshold,
			Severity:  a.Severity,
			Backend:   a.Backend,
			Message:   a.Message,
		})
	}

	m.aggregator.ApplyTick(tick)
	tick.OpsPerSecondInstant = m.aggregator.OpsPerSecondInstant()
	tick.OpsPerSecondEMA = m.aggregator.OpsPerSecondEMA()

	m.ring.Push(tick)
	if m.subscriber != nil {
		m.subscriber(tick)
	}
}

func (m *Map) buildLatencyQuantiles() map[string]metrics.QuantileSet {
	out := make(map[string]metrics.QuantileSet, len(m.reservoirs))
	for op, r := range m.reservoirs {
		p := r.Percentiles([]float64{0.5, 0.9, 0.99})
		out[op] = metrics.QuantileSet{P50: p["p50"], P90: p["p90"], P99: p["p99"]}
	}
	return out
}

func (m *Map) buildLatencyHistograms() map[string][]metrics.HistBucket {
	out := make(map[string][]metrics.HistBucket, len(m.histograms))
	for op, h := range m.histograms {
		buckets := h.Buckets()
		hb := make([]metrics.HistBucket, len(buckets))
		for i, b := range buckets {
			hb[i] = metrics.HistBucket{Le: formatBound(b.UpperBound), Count: b.Count}
		}
		out[op] = hb
	}
	return out
}

func (m *Map) buildLatencyHistogramSums() map[string]float64 {
	out := make(map[string]float64, len(m.histograms))
	for op, h := range m.histograms {
		out[op] = h.Sum()
	}
	return out
}

// formatBound renders a histogram bucket's upper bound: "+Inf" for the
// infinite terminal bucket, six fractional digits for every finite bound.
func formatBound(v float64) string {
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// Dump produces the full logical key/value set as a snapshot.Dump: every
// currently live
// key exactly once, reflecting whichever backend currently owns it while a
// migration is in flight. Items() is merged the same way Get() resolves a
// key during migration, target first, falling back to active, so a snapshot
// taken mid-migration matches what callers actually observe.
func (m *Map) Dump() snapshot.Dump {
	seen := make(map[string]struct{}, m.Len())
	entries := make([]snapshot.Entry, 0, m.Len())

	if m.st == migrating {
		for _, it := range m.target.Items() {
			if _, ok := seen[it.key]; ok {
				continue
			}
			seen[it.key] = struct{}{}
			entries = append(entries, snapshot.Entry{Key: it.key, Value: it.value})
		}
	}
	for _, it := range m.active.Items() {
		if _, ok := seen[it.key]; ok {
			continue
		}
		seen[it.key] = struct{}{}
		entries = append(entries, snapshot.Entry{Key: it.key, Value: it.value})
	}

	return snapshot.Dump{Backend: string(m.name), Items: entries}
}

// WriteSnapshot serializes the map's current contents and writes them
// durably to path as a checkpoint container, atomically written per
// snapshot.WriteFile.
func (m *Map) WriteSnapshot(path string, gzipCompress bool) error {
	payload, err := snapshot.EncodeDump(m.Dump())
	if err != nil {
		return errs.Internal("snapshot dump encoding: " + err.Error())
	}
	return snapshot.WriteFile(path, payload, gzipCompress)
}

// LoadSnapshot rebuilds a Map from a snapshot previously written by
// WriteSnapshot: a fresh Map is constructed per cfg (with InitialBackend
// overridden to match the snapshot's backend), then every entry is replayed
// through Put in the order it was stored.
func LoadSnapshot(cfg Config, path string, maxPayloadSize int64) (*Map, error) {
	payload, err := snapshot.ReadFile(path, maxPayloadSize)
	if err != nil {
		return nil, err
	}
	dump, err := snapshot.DecodeDump(payload)
	if err != nil {
		return nil, errs.IO(path, err)
	}

	cfg.InitialBackend = BackendName(dump.Backend)
	if cfg.InitialOuterLen == 0 && cfg.InitialCapacity == 0 {
		cfg.InitialCapacity = len(dump.Items)
		cfg.InitialOuterLen = len(dump.Items)
	}

	m := New(cfg)
	for _, e := range dump.Items {
		m.Put(e.Key, e.Value)
	}
	return m, nil
}
