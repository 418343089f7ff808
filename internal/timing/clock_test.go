package timing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNowTicksIsMonotonic(t *testing.T) {
	c := New()
	prev := c.NowTicks()
	for i := 0; i < 1000; i++ {
		now := c.NowTicks()
		require.GreaterOrEqual(t, now, prev)
		prev = now
	}
}

func TestTicksToNanosIdentityOnMonotonicFallback(t *testing.T) {
	c := New()
	// without a hardware counter, ticks are nanoseconds and the
	// calibrated frequency is 1e9
	assert.Equal(t, uint64(1_000_000_000), c.freqHz.Load())
	assert.Equal(t, uint64(12345), c.TicksToNanos(12345))
}

func TestNowNanosTracksWallClock(t *testing.T) {
	c := New()
	a := c.NowNanos()
	time.Sleep(10 * time.Millisecond)
	b := c.NowNanos()
	assert.GreaterOrEqual(t, b-a, uint64(10*time.Millisecond/2))
}

func TestClockSafeForConcurrentUse(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10_000; j++ {
				_ = c.TicksToNanos(c.NowTicks())
			}
		}()
	}
	wg.Wait()
}
