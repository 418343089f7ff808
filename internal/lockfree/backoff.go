package lockfree

import (
	"runtime"
	"time"
)

// Backoff implements the spin, then yield, then sleep-with-exponential-cap
// discipline every non-blocking hot-path wait uses.
type Backoff struct {
	spins   int
	sleepNs int64
}

const (
	maxSpins       = 64
	initialSleepNs = 1_000       // 1us
	maxSleepNs     = 1_000_000   // 1ms
)

// Pause should be called once per failed non-blocking attempt. It spins
// briefly, then yields the goroutine, then sleeps with an exponentially
// growing, capped duration.
func (b *Backoff) Pause() {
	if b.spins < maxSpins {
		b.spins++
		for i := 0; i < b.spins; i++ {
			procPause()
		}
		return
	}

	if b.sleepNs == 0 {
		b.sleepNs = initialSleepNs
	}
	runtime.Gosched()
	time.Sleep(time.Duration(b.sleepNs))
	b.sleepNs *= 2
	if b.sleepNs > maxSleepNs {
		b.sleepNs = maxSleepNs
	}
}

// Reset clears accumulated backoff state after a successful operation.
func (b *Backoff) Reset() {
	b.spins = 0
	b.sleepNs = 0
}

// procPause is a cheap busy-wait hint; Go has no portable PAUSE instruction
// intrinsic, so an empty loop iteration stands in for it (the compiler
// cannot hoist it away because of the loop counter in the caller).
func procPause() {}
