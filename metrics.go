package sched

import (
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/go-enb/sched/internal/interfaces"
)

// LatencyBuckets are the per-TTI scheduling-duration histogram buckets,
// in nanoseconds. A TTI budget is 1ms; buckets are spaced to show
// exactly how close a cell is running to that deadline.
var LatencyBuckets = []uint64{
	10_000,    // 10us
	50_000,    // 50us
	100_000,   // 100us
	250_000,   // 250us
	500_000,   // 500us
	750_000,   // 750us
	1_000_000, // 1ms: the TTI deadline
	2_000_000, // 2ms: a missed deadline
}

const numLatencyBuckets = 8

// allocKinds lists every interfaces.AllocKind in declaration order, used
// to size the per-kind counter arrays and to iterate them for Collect.
var allocKinds = []interfaces.AllocKind{
	interfaces.AllocDLBroadcast,
	interfaces.AllocDLPaging,
	interfaces.AllocDLRAR,
	interfaces.AllocDLData,
	interfaces.AllocULData,
	interfaces.AllocULMsg3,
}

var allocKindNames = map[interfaces.AllocKind]string{
	interfaces.AllocDLBroadcast: "dl_broadcast",
	interfaces.AllocDLPaging:    "dl_paging",
	interfaces.AllocDLRAR:       "dl_rar",
	interfaces.AllocDLData:      "dl_data",
	interfaces.AllocULData:      "ul_data",
	interfaces.AllocULMsg3:      "ul_msg3",
}

var allocOutcomeNames = map[interfaces.AllocOutcome]string{
	interfaces.OutcomeSuccess:      "success",
	interfaces.OutcomeDCICollision: "dci_collision",
	interfaces.OutcomeRBCollision:  "rb_collision",
	interfaces.OutcomeNofRBInvalid: "nof_rb_invalid",
	interfaces.OutcomeError:        "error",
}

// Metrics is the scheduler's metrics/audit component (component N): a set
// of atomic counters covering every allocation outcome, HARQ drop, RAR
// window drop, and SIB skip, plus a per-TTI scheduling-duration
// histogram. It implements interfaces.Observer directly, and
// prometheus.Collector so it can be registered with a Prometheus
// registry without keeping a second, parallel set of metric state.
type Metrics struct {
	allocCounts [len(allocKinds)][5]atomic.Uint64 // [kind][outcome]

	HARQDropDL atomic.Uint64
	HARQDropUL atomic.Uint64
	RARWindowDrops atomic.Uint64
	SIBSkips       atomic.Uint64

	TTIDurationBuckets [numLatencyBuckets]atomic.Uint64
	TTIDurationTotalNs atomic.Uint64
	TTICount           atomic.Uint64

	StartTime atomic.Int64
	StopTime  atomic.Int64
}

// NewMetrics returns a fresh metrics instance with its start time stamped
// at now.
func NewMetrics(now time.Time) *Metrics {
	m := &Metrics{}
	m.StartTime.Store(now.UnixNano())
	return m
}

// ObserveAllocation implements interfaces.Observer.
func (m *Metrics) ObserveAllocation(kind interfaces.AllocKind, outcome interfaces.AllocOutcome) {
	m.allocCounts[int(kind)][int(outcome)].Add(1)
}

// ObserveHARQDrop implements interfaces.Observer.
func (m *Metrics) ObserveHARQDrop(dl bool) {
	if dl {
		m.HARQDropDL.Add(1)
	} else {
		m.HARQDropUL.Add(1)
	}
}

// ObserveRARWindowDrop implements interfaces.Observer.
func (m *Metrics) ObserveRARWindowDrop() { m.RARWindowDrops.Add(1) }

// ObserveSIBSkip implements interfaces.Observer.
func (m *Metrics) ObserveSIBSkip() { m.SIBSkips.Add(1) }

var _ interfaces.Observer = (*Metrics)(nil)

// RecordTTIDuration records how long one dl_sched+ul_sched cycle took,
// updating the cumulative histogram buckets (§5: the real-time deadline
// this is meant to make visible).
func (m *Metrics) RecordTTIDuration(d time.Duration) {
	ns := uint64(d.Nanoseconds())
	m.TTIDurationTotalNs.Add(ns)
	m.TTICount.Add(1)
	for i, bucket := range LatencyBuckets {
		if ns <= bucket {
			m.TTIDurationBuckets[i].Add(1)
		}
	}
}

// Stop marks the metrics instance as stopped, for uptime calculation.
func (m *Metrics) Stop(now time.Time) { m.StopTime.Store(now.UnixNano()) }

// Snapshot is a point-in-time view of the metrics, suitable for JSON
// encoding or a simple text dashboard.
type Snapshot struct {
	AllocCounts map[string]map[string]uint64

	HARQDropDL     uint64
	HARQDropUL     uint64
	RARWindowDrops uint64
	SIBSkips       uint64

	AvgTTIDurationNs uint64
	TTICount         uint64
	UptimeNs         uint64

	TTIDurationHistogram [numLatencyBuckets]uint64
}

// Snapshot captures the current counter values without taking the
// scheduler's scheduling mutex (§5: a metrics scrape must never stall a
// TTI deadline).
func (m *Metrics) Snapshot(now time.Time) Snapshot {
	snap := Snapshot{
		AllocCounts:    make(map[string]map[string]uint64, len(allocKinds)),
		HARQDropDL:     m.HARQDropDL.Load(),
		HARQDropUL:     m.HARQDropUL.Load(),
		RARWindowDrops: m.RARWindowDrops.Load(),
		SIBSkips:       m.SIBSkips.Load(),
		TTICount:       m.TTICount.Load(),
	}

	for _, kind := range allocKinds {
		byOutcome := make(map[string]uint64, len(allocOutcomeNames))
		for outcome, name := range allocOutcomeNames {
			byOutcome[name] = m.allocCounts[int(kind)][int(outcome)].Load()
		}
		snap.AllocCounts[allocKindNames[kind]] = byOutcome
	}

	if snap.TTICount > 0 {
		snap.AvgTTIDurationNs = m.TTIDurationTotalNs.Load() / snap.TTICount
	}
	stopTime := m.StopTime.Load()
	if stopTime > 0 {
		snap.UptimeNs = uint64(stopTime - m.StartTime.Load())
	} else {
		snap.UptimeNs = uint64(now.UnixNano() - m.StartTime.Load())
	}
	for i := range snap.TTIDurationHistogram {
		snap.TTIDurationHistogram[i] = m.TTIDurationBuckets[i].Load()
	}
	return snap
}

var (
	allocDesc = prometheus.NewDesc(
		"enb_mac_sched_allocations_total",
		"Total scheduler allocation attempts by kind and outcome.",
		[]string{"kind", "outcome"}, nil,
	)
	harqDropDesc = prometheus.NewDesc(
		"enb_mac_sched_harq_drops_total",
		"Total HARQ processes dropped for exceeding the retransmission budget.",
		[]string{"direction"}, nil,
	)
	rarWindowDropDesc = prometheus.NewDesc(
		"enb_mac_sched_rar_window_drops_total",
		"Total pending RARs dropped after their response window expired.",
		nil, nil,
	)
	sibSkipDesc = prometheus.NewDesc(
		"enb_mac_sched_sib_skips_total",
		"Total SIB transmission opportunities skipped for lack of PDCCH/PRB space.",
		nil, nil,
	)
	ttiDurationDesc = prometheus.NewDesc(
		"enb_mac_sched_tti_duration_seconds",
		"Cumulative count of TTI scheduling cycles at or below each latency bucket.",
		[]string{"le"}, nil,
	)
)

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	ch <- allocDesc
	ch <- harqDropDesc
	ch <- rarWindowDropDesc
	ch <- sibSkipDesc
	ch <- ttiDurationDesc
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	for _, kind := range allocKinds {
		for outcome, outcomeName := range allocOutcomeNames {
			v := float64(m.allocCounts[int(kind)][int(outcome)].Load())
			ch <- prometheus.MustNewConstMetric(allocDesc, prometheus.CounterValue, v, allocKindNames[kind], outcomeName)
		}
	}
	ch <- prometheus.MustNewConstMetric(harqDropDesc, prometheus.CounterValue, float64(m.HARQDropDL.Load()), "dl")
	ch <- prometheus.MustNewConstMetric(harqDropDesc, prometheus.CounterValue, float64(m.HARQDropUL.Load()), "ul")
	ch <- prometheus.MustNewConstMetric(rarWindowDropDesc, prometheus.CounterValue, float64(m.RARWindowDrops.Load()))
	ch <- prometheus.MustNewConstMetric(sibSkipDesc, prometheus.CounterValue, float64(m.SIBSkips.Load()))
	for i, bucket := range LatencyBuckets {
		le := strconv.FormatFloat(float64(bucket)/1e9, 'g', -1, 64)
		ch <- prometheus.MustNewConstMetric(ttiDurationDesc, prometheus.CounterValue, float64(m.TTIDurationBuckets[i].Load()), le)
	}
}

var _ prometheus.Collector = (*Metrics)(nil)
