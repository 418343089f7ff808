package metrics

import (
	"sort"
	"sync"
	"time"
)

const (
	collectorCadence  = 100 * time.Millisecond
	sampleWindowSize  = 1000
	minSamplesForPctl = 10
	gaugeTrailSize    = 100
)

// Stats is the accumulated statistics for one named metric.
type Stats struct {
	Name  string
	Kind  Kind
	Count uint64
	Min   uint64
	Max   uint64
	Sum   uint64
	Mean  float64
	P50   uint64
	P90   uint64
	P95   uint64
	P99   uint64
	P999  uint64

	samples []uint64 // last-N ring for percentile estimation (LATENCY/HISTOGRAM)
	gauge   []uint64 // last-100 trail (GAUGE)
}

func newStats(name string, kind Kind) *Stats {
	return &Stats{Name: name, Kind: kind, Min: ^uint64(0)}
}

// update folds one value into the statistics per the metric's kind.
func (s *Stats) update(value uint64) {
	switch s.Kind {
	case Counter:
		s.Sum += value
		s.Count++
		s.Mean = float64(s.Sum) / float64(s.Count)
		return
	case Gauge:
		s.Sum = value // last value wins
		s.Count++
		s.gauge = append(s.gauge, value)
		if len(s.gauge) > gaugeTrailSize {
			s.gauge = s.gauge[len(s.gauge)-gaugeTrailSize:]
		}
		return
	}

	// LATENCY / HISTOGRAM
	s.Count++
	if value < s.Min {
		s.Min = value
	}
	if value > s.Max {
		s.Max = value
	}
	s.Sum += value
	s.Mean = float64(s.Sum) / float64(s.Count)

	s.samples = append(s.samples, value)
	if len(s.samples) > sampleWindowSize {
		s.samples = s.samples[len(s.samples)-sampleWindowSize:]
	}
	if len(s.samples) >= minSamplesForPctl {
		s.recomputePercentiles()
	}
}

// recomputePercentiles sorts the sample window and indexes p50=n/2,
// p90=90n/100, p95=95n/100, p99=99n/100, p999=999n/1000.
func (s *Stats) recomputePercentiles() {
	sorted := make([]uint64, len(s.samples))
	copy(sorted, s.samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	n := len(sorted)
	s.P50 = sorted[n/2]
	s.P90 = sorted[90*n/100]
	s.P95 = sorted[95*n/100]
	s.P99 = sorted[99*n/100]
	s.P999 = sorted[999*n/1000]
}

// Snapshot returns a defensive copy safe to read without the collector's
// lock.
func (s *Stats) Snapshot() Stats {
	cp := *s
	cp.samples = nil
	cp.gauge = nil
	return cp
}

// Collector drains every registered Ingest on a fixed cadence and folds
// entries into a shared map guarded by one mutex.
type Collector struct {
	reg registry

	mu    sync.Mutex
	stats map[string]*Stats

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewCollector creates a Collector. Call Run to start its drain loop.
func NewCollector() *Collector {
	return &Collector{
		stats:  make(map[string]*Stats),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (c *Collector) register(i *Ingest) { c.reg.add(i) }

// Run drains all registered ingests every 100ms until Stop is called.
// Intended to run in its own goroutine.
func (c *Collector) Run() {
	ticker := time.NewTicker(collectorCadence)
	defer ticker.Stop()
	defer close(c.doneCh)

	for {
		select {
		case <-c.stopCh:
			c.drainOnce()
			return
		case <-ticker.C:
			c.drainOnce()
		}
	}
}

// Stop signals the drain loop to exit after one final drain, then blocks
// until it has.
func (c *Collector) Stop() {
	close(c.stopCh)
	<-c.doneCh
}

func (c *Collector) drainOnce() {
	for _, ing := range c.reg.snapshot() {
		ing.drain(func(e Entry) {
			c.mu.Lock()
			st, ok := c.stats[e.Label]
			if !ok {
				st = newStats(e.Label, e.Kind)
				c.stats[e.Label] = st
			}
			st.update(e.Value)
			c.mu.Unlock()
		})
	}
}

// Snapshot returns a defensive copy of every metric's current statistics.
func (c *Collector) Snapshot() map[string]Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Stats, len(c.stats))
	for k, v := range c.stats {
		out[k] = v.Snapshot()
	}
	return out
}
