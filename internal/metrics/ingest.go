// Package metrics implements the four-layer lock-free metrics pipeline:
// per-goroutine ingest rings, a collector that folds entries into
// percentile statistics, a per-service publisher, and a cross-service
// aggregator.
package metrics

import (
	"sync"
	"sync/atomic"

	"github.com/abdoElHodaky/hft-core/internal/lockfree"
)

// Kind is the category of a recorded metric value.
type Kind uint8

const (
	Latency Kind = iota
	Counter
	Gauge
	Histogram
)

// Entry is one recorded metric value, timestamped at record time.
type Entry struct {
	Label     string
	Value     uint64
	Kind      Kind
	Timestamp uint64
}

const ingestCapacity = 1 << 16

// Ingest is a per-goroutine wait-free ring buffer of metric entries. Each
// long-running goroutine that records metrics owns exactly one Ingest.
type Ingest struct {
	ring  *lockfree.SPSCQueue[Entry]
	drops atomic.Uint64
}

// NewIngest creates an ingest ring and registers it with the given
// Collector so the collector's drain loop picks it up.
func NewIngest(c *Collector) *Ingest {
	ing := &Ingest{ring: lockfree.NewSPSCQueue[Entry](ingestCapacity)}
	c.register(ing)
	return ing
}

// Record is wait-free: on a full ring the entry is dropped and Drops
// increments.
func (ing *Ingest) Record(label string, value uint64, kind Kind, timestampNs uint64) {
	if !ing.ring.Push(Entry{Label: label, Value: value, Kind: kind, Timestamp: timestampNs}) {
		ing.drops.Add(1)
	}
}

// Drops returns the number of entries dropped due to ring saturation.
func (ing *Ingest) Drops() uint64 { return ing.drops.Load() }

func (ing *Ingest) drain(fn func(Entry)) int {
	n := 0
	for {
		e, ok := ing.ring.Pop()
		if !ok {
			break
		}
		fn(e)
		n++
	}
	return n
}

// registry is the set of ingest rings a Collector drains each cycle.
type registry struct {
	mu      sync.Mutex
	ingests []*Ingest
}

func (r *registry) add(i *Ingest) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ingests = append(r.ingests, i)
}

func (r *registry) snapshot() []*Ingest {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Ingest, len(r.ingests))
	copy(out, r.ingests)
	return out
}
