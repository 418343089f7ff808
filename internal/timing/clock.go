// Package timing provides a monotonic, sub-nanosecond-capable clock shared
// by every service. It calibrates a ticks-per-second factor at startup and
// is safe to call from any goroutine without synchronization thereafter.
package timing

import (
	"sync/atomic"
	"time"
)

const calibrationSamples = 5
const calibrationInterval = 100 * time.Millisecond

// Clock converts between raw ticks and nanoseconds. On platforms without a
// usable hardware cycle counter, ticks are monotonic nanoseconds directly
// and TicksToNanos is the identity — the calibrated frequency is still
// computed so callers never need to special-case the backend.
type Clock struct {
	start     time.Time
	freqHz    atomic.Uint64
	tsc       tscSource
	tscOffset uint64
}

// New creates and calibrates a Clock. Calibration takes ~500ms when a
// hardware counter is available and returns at once on the monotonic
// fallback.
func New() *Clock {
	c := &Clock{start: time.Now()}
	c.tsc = newTSCSource()
	c.calibrate()
	return c
}

// calibrate takes five 100ms samples of wall-clock vs. tick delta and
// averages them into ticks_per_second.
func (c *Clock) calibrate() {
	if !c.tsc.available() {
		c.freqHz.Store(uint64(time.Second))
		return
	}

	var total uint64
	for i := 0; i < calibrationSamples; i++ {
		t0 := time.Now()
		tk0 := c.tsc.read()
		time.Sleep(calibrationInterval)
		t1 := time.Now()
		tk1 := c.tsc.read()

		elapsedNs := uint64(t1.Sub(t0).Nanoseconds())
		tickDelta := tk1 - tk0
		if elapsedNs == 0 || tickDelta == 0 {
			continue
		}
		hz := tickDelta * uint64(time.Second) / elapsedNs
		total += hz
	}
	if total == 0 {
		c.freqHz.Store(uint64(time.Second))
		return
	}
	c.freqHz.Store(total / calibrationSamples)
}

// NowTicks returns the current tick count. Wait-free, no locks.
func (c *Clock) NowTicks() uint64 {
	if c.tsc.available() {
		return c.tsc.read()
	}
	return uint64(time.Since(c.start).Nanoseconds())
}

// TicksToNanos converts a tick count into nanoseconds using the calibrated
// frequency: (ticks * 1e9) / freq.
func (c *Clock) TicksToNanos(ticks uint64) uint64 {
	freq := c.freqHz.Load()
	if freq == 0 {
		return ticks
	}
	return ticks * uint64(time.Second) / freq
}

// NowNanos is a convenience wrapper equal to TicksToNanos(NowTicks()).
func (c *Clock) NowNanos() uint64 {
	return c.TicksToNanos(c.NowTicks())
}
