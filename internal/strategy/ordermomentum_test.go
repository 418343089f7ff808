package strategy

import (
	"testing"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/book"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderBookMomentumStrategySignalsOnAgreeingMomentumAndFlow(t *testing.T) {
	books := book.NewManager()
	b := books.Get("AAPL")
	// Strong bid-side imbalance: bid size far exceeds ask size.
	b.ApplySnapshot(
		[]wire.Level{{Price: 99.80, Size: 900}},
		[]wire.Level{{Price: 100.20, Size: 100}},
		1, 1,
	)

	var signals []wire.TradingSignal
	handle := func(s wire.TradingSignal) { signals = append(signals, s) }
	now := func() uint64 { return 0 }

	s := NewOrderBookMomentumStrategy(1, handle, books, now, nil)

	// First tick only seeds state.
	s.OnMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 99.98, AskPrice: 100.02}) // mid 100.00
	require.Empty(t, signals)

	// Upward move (2%) with matching bullish book imbalance, well past both thresholds.
	s.OnMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 101.98, AskPrice: 102.02}) // mid 102.00

	require.Len(t, signals, 1)
	assert.Equal(t, wire.ActionBuy, signals[0].Action)
	assert.Equal(t, uint64(1), signals[0].StrategyID)
	assert.Greater(t, signals[0].Quantity, uint32(0))
}

func TestOrderBookMomentumStrategySkipsWhenMomentumAndFlowDisagree(t *testing.T) {
	books := book.NewManager()
	b := books.Get("AAPL")
	// Bearish imbalance (ask size dominates) despite an upward price move.
	b.ApplySnapshot(
		[]wire.Level{{Price: 99.80, Size: 100}},
		[]wire.Level{{Price: 100.20, Size: 900}},
		1, 1,
	)

	var signals []wire.TradingSignal
	handle := func(s wire.TradingSignal) { signals = append(signals, s) }
	now := func() uint64 { return 0 }

	s := NewOrderBookMomentumStrategy(1, handle, books, now, nil)
	s.OnMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 99.98, AskPrice: 100.02})
	s.OnMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 101.98, AskPrice: 102.02})

	assert.Empty(t, signals, "momentum and order book flow disagree, no signal expected")
}

func TestOrderBookMomentumStrategyRespectsCooldown(t *testing.T) {
	books := book.NewManager()
	b := books.Get("AAPL")
	b.ApplySnapshot(
		[]wire.Level{{Price: 99.80, Size: 900}},
		[]wire.Level{{Price: 100.20, Size: 100}},
		1, 1,
	)

	var signals []wire.TradingSignal
	handle := func(s wire.TradingSignal) { signals = append(signals, s) }
	now := uint64(0)
	nowFn := func() uint64 { return now }

	s := NewOrderBookMomentumStrategy(1, handle, books, nowFn, nil)
	s.OnMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 99.98, AskPrice: 100.02})
	s.OnMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 101.98, AskPrice: 102.02})
	require.Len(t, signals, 1)

	now = uint64(200 * time.Millisecond)
	s.OnMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 103.98, AskPrice: 104.02})
	assert.Len(t, signals, 1, "a second signal before MinSignalInterval elapses should be suppressed")
}
