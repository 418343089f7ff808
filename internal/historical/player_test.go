package historical

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points() []DataPoint {
	return []DataPoint{
		{TimestampMs: 3000, Symbol: "AAPL", LastPrice: 103, BidPrice: 102.9, AskPrice: 103.1, TotalVolume: 200},
		{TimestampMs: 1000, Symbol: "AAPL", LastPrice: 101, BidPrice: 100.9, AskPrice: 101.1, TotalVolume: 200},
		{TimestampMs: 2000, Symbol: "AAPL", LastPrice: 102, BidPrice: 101.9, AskPrice: 102.1, TotalVolume: 200},
	}
}

func TestPlayerSortsChronologically(t *testing.T) {
	p := New(points(), func(time.Duration) {}, nil)
	p.PlaybackSpeed = 0

	tick, ok := p.Next()
	require.True(t, ok)
	assert.InDelta(t, 101, tick.LastPrice, 1e-9)

	tick, ok = p.Next()
	require.True(t, ok)
	assert.InDelta(t, 102, tick.LastPrice, 1e-9)

	tick, ok = p.Next()
	require.True(t, ok)
	assert.InDelta(t, 103, tick.LastPrice, 1e-9)

	_, ok = p.Next()
	assert.False(t, ok)
}

func TestPlayerPacesBySpeed(t *testing.T) {
	var slept []time.Duration
	current := time.Unix(0, 0)
	p := New(points(), func(d time.Duration) {
		slept = append(slept, d)
		current = current.Add(d)
	}, nil)
	p.PlaybackSpeed = 2.0
	p.now = func() time.Time { return current }

	for {
		_, ok := p.Next()
		if !ok {
			break
		}
	}

	require.Len(t, slept, 2) // no sleep before the first point
	assert.Equal(t, 500*time.Millisecond, slept[0])
	assert.Equal(t, 500*time.Millisecond, slept[1])
}

func TestPlayerPacingAbsorbsProcessingOverhead(t *testing.T) {
	var slept []time.Duration
	current := time.Unix(0, 0)
	p := New(points(), func(d time.Duration) {
		slept = append(slept, d)
		current = current.Add(d)
	}, nil)
	p.PlaybackSpeed = 2.0
	p.now = func() time.Time { return current }

	_, ok := p.Next() // first point anchors t0/d0, no sleep
	require.True(t, ok)

	current = current.Add(200 * time.Millisecond) // simulated per-tick processing cost
	_, ok = p.Next()
	require.True(t, ok)

	// the 200ms overhead is deducted from the 500ms target, not added on top
	require.Len(t, slept, 1)
	assert.Equal(t, 300*time.Millisecond, slept[0])
}

func TestPlayerTimeRangeFilter(t *testing.T) {
	p := New(points(), func(time.Duration) {}, nil)
	p.PlaybackSpeed = 0
	p.StartTimeMs = 1500
	p.EndTimeMs = 2500

	tick, ok := p.Next()
	require.True(t, ok)
	assert.InDelta(t, 102, tick.LastPrice, 1e-9)

	_, ok = p.Next()
	assert.False(t, ok)
}

func TestPlayerCompletionCallback(t *testing.T) {
	var completed bool
	p := New(points(), func(time.Duration) {}, nil)
	p.PlaybackSpeed = 0
	p.OnComplete = func() { completed = true }

	for {
		_, ok := p.Next()
		if !ok {
			break
		}
	}
	assert.True(t, completed)
	assert.Equal(t, uint64(3), p.MessagesSent())
	assert.Equal(t, 1.0, p.Progress())
}

func TestDataPointToMarketDataSplitsVolume(t *testing.T) {
	dp := DataPoint{Symbol: "AAPL", BidPrice: 100, AskPrice: 100.2, LastPrice: 100.1, TotalVolume: 400, TimestampMs: 1}
	md := dp.ToMarketData()
	assert.Equal(t, uint32(200), md.BidSize)
	assert.Equal(t, uint32(200), md.AskSize)
	assert.Equal(t, uint32(400), md.LastSize)
}
