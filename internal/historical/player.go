// Package historical implements the historical data player: it
// replays a chronologically ordered series of bars as normalized
// MarketData ticks, pacing emission by wall-clock time scaled by a
// playback speed, so it can stand in for a live feed behind
// internal/marketdata.Service's Source contract.
package historical

import (
	"time"

	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// DataPoint is one bar of historical data, as loaded by
// internal/historical/csv.Load.
type DataPoint struct {
	TimestampMs uint64 // Unix timestamp, milliseconds
	Symbol      string
	OpenPrice   float64
	HighPrice   float64
	LowPrice    float64
	LastPrice   float64
	BidPrice    float64
	AskPrice    float64
	TotalVolume uint64
}

// ToMarketData converts a bar to the wire tick shape, splitting volume
// evenly across bid/ask size.
func (d DataPoint) ToMarketData() wire.MarketData {
	half := uint32(d.TotalVolume / 2)
	return wire.MarketData{
		Symbol:       d.Symbol,
		BidPrice:     d.BidPrice,
		AskPrice:     d.AskPrice,
		BidSize:      half,
		AskSize:      half,
		LastPrice:    d.LastPrice,
		LastSize:     uint32(d.TotalVolume),
		ExchangeTsNs: d.TimestampMs * uint64(time.Millisecond),
	}
}

// SleepFunc pauses the calling goroutine for d. Overridable in tests so
// suites don't actually wait on wall-clock time.
type SleepFunc func(d time.Duration)

// ProgressFunc is invoked periodically (every progressInterval points)
// with the player's playback progress in [0,1].
type ProgressFunc func(progress float64, messagesSent uint64)

// CompleteFunc is invoked exactly once after the last eligible point has
// been emitted.
type CompleteFunc func()

const progressInterval = 1000

// Player replays data in chronological order, satisfying
// internal/marketdata.Source. A PlaybackSpeed of 0 replays with no
// inter-tick delay (as fast as the consumer can keep up); 1.0 paces
// ticks at the rate the original data was recorded.
type Player struct {
	data []DataPoint

	PlaybackSpeed float64
	StartTimeMs   uint64 // 0 disables the lower bound
	EndTimeMs     uint64 // 0 disables the upper bound

	OnProgress ProgressFunc
	OnComplete CompleteFunc

	sleep  SleepFunc
	now    func() time.Time
	logger *zap.Logger

	index        int
	messagesSent uint64
	startWall    time.Time // wall clock at first emission
	dataStartMs  uint64    // data clock at first emission
	started      bool
	completed    bool
}

// New creates a Player over data, which need not already be sorted: New
// sorts its own copy chronologically.
func New(data []DataPoint, sleep SleepFunc, logger *zap.Logger) *Player {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sleep == nil {
		sleep = time.Sleep
	}
	sorted := make([]DataPoint, len(data))
	copy(sorted, data)
	insertionSortByTimestamp(sorted)
	return &Player{data: sorted, PlaybackSpeed: 1.0, sleep: sleep, now: time.Now, logger: logger}
}

func insertionSortByTimestamp(d []DataPoint) {
	for i := 1; i < len(d); i++ {
		for j := i; j > 0 && d[j].TimestampMs < d[j-1].TimestampMs; j-- {
			d[j], d[j-1] = d[j-1], d[j]
		}
	}
}

// Next returns the next in-range tick, pacing by PlaybackSpeed, or
// ok=false once the data set is exhausted. Satisfies
// internal/marketdata.Source.
func (p *Player) Next() (wire.MarketData, bool) {
	for p.index < len(p.data) {
		point := p.data[p.index]

		if p.StartTimeMs != 0 && point.TimestampMs < p.StartTimeMs {
			p.index++
			continue
		}
		if p.EndTimeMs != 0 && point.TimestampMs > p.EndTimeMs {
			p.index++
			continue
		}

		if !p.started {
			p.started = true
			p.startWall = p.now()
			p.dataStartMs = point.TimestampMs
		} else if p.PlaybackSpeed > 0 {
			p.pace(point.TimestampMs)
		}
		p.index++
		p.messagesSent++

		if p.messagesSent%progressInterval == 0 {
			p.reportProgress()
		}

		return point.ToMarketData(), true
	}

	if !p.completed {
		p.completed = true
		p.logger.Info("historical data playback completed", zap.Uint64("messages_sent", p.messagesSent))
		if p.OnComplete != nil {
			p.OnComplete()
		}
	}
	return wire.MarketData{}, false
}

// pace sleeps until wall-clock time reaches t0 + (d_i - d0)/speed, where
// t0/d0 were recorded at the first emission. Anchoring to the start
// rather than the previous point keeps per-iteration processing overhead
// from accumulating as drift over a long replay.
func (p *Player) pace(timestampMs uint64) {
	if timestampMs <= p.dataStartMs {
		return
	}
	target := time.Duration(float64(timestampMs-p.dataStartMs) / p.PlaybackSpeed * float64(time.Millisecond))
	elapsed := p.now().Sub(p.startWall)
	if target > elapsed {
		p.sleep(target - elapsed)
	}
}

func (p *Player) reportProgress() {
	progress := p.Progress()
	p.logger.Info("historical data playback progress",
		zap.Uint64("messages_sent", p.messagesSent), zap.Float64("progress", progress))
	if p.OnProgress != nil {
		p.OnProgress(progress, p.messagesSent)
	}
}

// Progress returns the fraction of points consumed so far in [0,1].
func (p *Player) Progress() float64 {
	if len(p.data) == 0 {
		return 0
	}
	return float64(p.index) / float64(len(p.data))
}

// MessagesSent returns the number of ticks emitted so far.
func (p *Player) MessagesSent() uint64 { return p.messagesSent }

// TotalDataPoints returns the size of the loaded data set.
func (p *Player) TotalDataPoints() int { return len(p.data) }
