// Package lockfree provides the SPSC queue, SPMC ring, padded atomics, and
// backoff primitive used by the transport and metrics-ingest layers.
package lockfree

import "sync/atomic"

// cacheLineSize is the assumed cache line width used to pad hot atomics so
// false sharing between producer and consumer indices cannot occur.
const cacheLineSize = 64

// PaddedUint64 is a single atomic.Uint64 padded out to one cache line.
// Required for the SPSC/SPMC head and tail indices, which are written by
// different goroutines at high frequency.
type PaddedUint64 struct {
	v   atomic.Uint64
	_   [cacheLineSize - 8]byte
}

func (p *PaddedUint64) Load() uint64           { return p.v.Load() }
func (p *PaddedUint64) Store(val uint64)       { p.v.Store(val) }
func (p *PaddedUint64) Add(delta uint64) uint64 { return p.v.Add(delta) }
func (p *PaddedUint64) CompareAndSwap(old, new uint64) bool {
	return p.v.CompareAndSwap(old, new)
}
