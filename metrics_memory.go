package mqtt3

import (
	"cmp"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryMetrics keeps every series in process memory. Tests read single
// series through GetCounter, GetGauge and GetHistogram; Snapshot lists all
// of them, which is enough to dump a running client's metrics for debugging.
type MemoryMetrics struct {
	mu     sync.Mutex
	series map[seriesKey]*memorySeries
}

// NewMemoryMetrics creates an empty in-memory metrics registry.
func NewMemoryMetrics() *MemoryMetrics {
	return &MemoryMetrics{series: make(map[seriesKey]*memorySeries)}
}

// MetricSample is a point-in-time reading of one series.
type MetricSample struct {
	Name   string
	Type   MetricType
	Labels MetricLabels

	// Value is the counter or gauge value, or the histogram sum.
	Value float64

	// Count is the number of histogram observations.
	Count uint64
}

type seriesKey struct {
	kind MetricType
	id   string
}

type memorySeries struct {
	name   string
	labels MetricLabels
	metric any
}

// seriesID renders name and labels as name{k="v",...} with sorted keys.
func seriesID(name string, labels MetricLabels) string {
	if len(labels) == 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range slices.Sorted(maps.Keys(labels)) {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Quote(labels[k]))
	}
	b.WriteByte('}')
	return b.String()
}

func (m *MemoryMetrics) lookup(kind MetricType, name string, labels MetricLabels, create func() any) any {
	key := seriesKey{kind: kind, id: seriesID(name, labels)}

	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.series[key]; ok {
		return s.metric
	}
	if create == nil {
		return nil
	}

	s := &memorySeries{name: name, labels: maps.Clone(labels), metric: create()}
	m.series[key] = s
	return s.metric
}

// Counter returns the counter for name and labels, creating it on first use.
func (m *MemoryMetrics) Counter(name string, labels MetricLabels) Counter {
	return m.lookup(MetricTypeCounter, name, labels, func() any { return &memoryCounter{} }).(*memoryCounter)
}

// Gauge returns the gauge for name and labels, creating it on first use.
func (m *MemoryMetrics) Gauge(name string, labels MetricLabels) Gauge {
	return m.lookup(MetricTypeGauge, name, labels, func() any { return &memoryGauge{} }).(*memoryGauge)
}

// Histogram returns the histogram for name and labels, creating it on first use.
func (m *MemoryMetrics) Histogram(name string, labels MetricLabels) Histogram {
	return m.lookup(MetricTypeHistogram, name, labels, func() any { return &memoryHistogram{} }).(*memoryHistogram)
}

// GetCounter returns an existing counter, or nil.
func (m *MemoryMetrics) GetCounter(name string, labels MetricLabels) Counter {
	if c, ok := m.lookup(MetricTypeCounter, name, labels, nil).(*memoryCounter); ok {
		return c
	}
	return nil
}

// GetGauge returns an existing gauge, or nil.
func (m *MemoryMetrics) GetGauge(name string, labels MetricLabels) Gauge {
	if g, ok := m.lookup(MetricTypeGauge, name, labels, nil).(*memoryGauge); ok {
		return g
	}
	return nil
}

// GetHistogram returns an existing histogram, or nil.
func (m *MemoryMetrics) GetHistogram(name string, labels MetricLabels) Histogram {
	if h, ok := m.lookup(MetricTypeHistogram, name, labels, nil).(*memoryHistogram); ok {
		return h
	}
	return nil
}

// Snapshot reads every series, ordered by name, then labels, then type.
func (m *MemoryMetrics) Snapshot() []MetricSample {
	m.mu.Lock()
	keys := slices.Collect(maps.Keys(m.series))
	series := make([]*memorySeries, len(keys))
	slices.SortFunc(keys, func(a, b seriesKey) int {
		return cmp.Or(strings.Compare(a.id, b.id), cmp.Compare(a.kind, b.kind))
	})
	for i, k := range keys {
		series[i] = m.series[k]
	}
	m.mu.Unlock()

	samples := make([]MetricSample, len(keys))
	for i, s := range series {
		sample := MetricSample{Name: s.name, Type: keys[i].kind, Labels: maps.Clone(s.labels)}
		switch v := s.metric.(type) {
		case *memoryCounter:
			sample.Value = v.Value()
		case *memoryGauge:
			sample.Value = v.Value()
		case *memoryHistogram:
			sample.Value = v.Sum()
			sample.Count = v.Count()
		}
		samples[i] = sample
	}
	return samples
}

// atomicFloat is a float64 updated with compare-and-swap on its bits.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) load() float64   { return math.Float64frombits(f.bits.Load()) }
func (f *atomicFloat) store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) add(delta float64) {
	for {
		old := f.bits.Load()
		if f.bits.CompareAndSwap(old, math.Float64bits(math.Float64frombits(old)+delta)) {
			return
		}
	}
}

type memoryCounter struct{ v atomicFloat }

func (c *memoryCounter) Inc()              { c.v.add(1) }
func (c *memoryCounter) Add(delta float64) { c.v.add(delta) }
func (c *memoryCounter) Value() float64    { return c.v.load() }

type memoryGauge struct{ v atomicFloat }

func (g *memoryGauge) Set(value float64) { g.v.store(value) }
func (g *memoryGauge) Inc()              { g.v.add(1) }
func (g *memoryGauge) Dec()              { g.v.add(-1) }
func (g *memoryGauge) Add(delta float64) { g.v.add(delta) }
func (g *memoryGauge) Sub(delta float64) { g.v.add(-delta) }
func (g *memoryGauge) Value() float64    { return g.v.load() }

type memoryHistogram struct {
	count atomic.Uint64
	sum   atomicFloat
}

func (h *memoryHistogram) Observe(value float64) {
	h.count.Add(1)
	h.sum.add(value)
}

func (h *memoryHistogram) ObserveDuration(d time.Duration) { h.Observe(d.Seconds()) }
func (h *memoryHistogram) Count() uint64                   { return h.count.Load() }
func (h *memoryHistogram) Sum() float64                    { return h.sum.load() }
