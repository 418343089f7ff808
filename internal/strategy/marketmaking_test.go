package strategy

import (
	"testing"

	"github.com/abdoElHodaky/hft-core/internal/book"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedBook(books *book.Manager, symbol string, bid, ask float64, bidSize, askSize uint32) {
	b := books.Get(symbol)
	b.ApplySnapshot(
		[]wire.Level{{Price: bid, Size: bidSize}},
		[]wire.Level{{Price: ask, Size: askSize}},
		1, 1,
	)
}

func TestMarketMakingStrategyQuotesBothSidesWhenSpreadWideEnough(t *testing.T) {
	books := book.NewManager()
	seedBook(books, "AAPL", 99.80, 100.20, 1000, 1000) // spread ~0.4%, above 0.1% threshold

	var signals []wire.TradingSignal
	done := make(chan struct{})
	handle := func(s wire.TradingSignal) {
		signals = append(signals, s)
		if len(signals) == 2 {
			close(done)
		}
	}
	now := func() uint64 { return 1 }

	s, err := NewMarketMakingStrategy(handle, books, now, nil)
	require.NoError(t, err)

	s.OnMarketData(wire.MarketData{Symbol: "AAPL"})
	<-done

	require.Len(t, signals, 2)
	assert.Equal(t, wire.ActionBuy, signals[0].Action)
	assert.Equal(t, wire.ActionSell, signals[1].Action)
	assert.Equal(t, wire.OrderLimit, signals[0].OrderType)
}

func TestMarketMakingStrategySkipsNarrowSpread(t *testing.T) {
	books := book.NewManager()
	seedBook(books, "AAPL", 99.999, 100.001, 1000, 1000) // spread ~0.002%, below threshold

	var signals []wire.TradingSignal
	handle := func(s wire.TradingSignal) { signals = append(signals, s) }
	now := func() uint64 { return 1 }

	s, err := NewMarketMakingStrategy(handle, books, now, nil)
	require.NoError(t, err)

	s.evaluate("AAPL")
	assert.Empty(t, signals)
}

func TestMarketMakingStrategyInventorySkewsQuotes(t *testing.T) {
	books := book.NewManager()
	seedBook(books, "AAPL", 99.80, 100.20, 1000, 1000)

	var signals []wire.TradingSignal
	handle := func(s wire.TradingSignal) { signals = append(signals, s) }
	now := func() uint64 { return 1 }

	s, err := NewMarketMakingStrategy(handle, books, now, nil)
	require.NoError(t, err)
	s.positions["AAPL"] = 500 // long inventory should skew quotes down

	s.evaluate("AAPL")
	require.Len(t, signals, 2)
	skew := s.quoteSkew("AAPL")
	assert.Greater(t, skew, 0.0)
}
