package risk

import (
	"testing"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	sent [][]byte
}

func (f *fakeSink) Send(data []byte, nonBlocking bool) (bool, error) {
	f.sent = append(f.sent, data)
	return true, nil
}

func fixedNow() uint64 { return 1_000_000 }

func newTestService(limits Limits, alert AlertFunc) (*Service, *fakeSink) {
	sink := &fakeSink{}
	c := metrics.NewCollector()
	return NewService(limits, sink, alert, c, fixedNow, nil), sink
}

func TestHandleExecutionCreatesPositionAndPublishes(t *testing.T) {
	svc, sink := newTestService(Limits{}, nil)

	svc.HandleExecution(wire.OrderExecution{
		OrderID: 1, Symbol: "AAPL", Type: wire.ExecFill, Side: wire.ActionBuy,
		FillPrice: 100.0, FillQty: 50,
	})

	p, ok := svc.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 50.0, p.Quantity)
	assert.Equal(t, 100.0, p.AvgPrice)
	require.Len(t, sink.sent, 1)

	update := wire.DecodePositionUpdate(sink.sent[0][wire.HeaderSize:])
	assert.Equal(t, "AAPL", update.Symbol)
	assert.Equal(t, 50.0, update.NetQuantity)
	assert.Equal(t, 100.0, update.AvgCost)
}

func TestHandleExecutionIgnoresNonFillTypes(t *testing.T) {
	svc, sink := newTestService(Limits{}, nil)

	svc.HandleExecution(wire.OrderExecution{OrderID: 1, Symbol: "AAPL", Type: wire.ExecNew, FillQty: 10})
	svc.HandleExecution(wire.OrderExecution{OrderID: 1, Symbol: "AAPL", Type: wire.ExecRejected, FillQty: 10})

	_, ok := svc.Position("AAPL")
	assert.False(t, ok)
	assert.Empty(t, sink.sent)
}

func TestHandleMarketDataMarksToMarket(t *testing.T) {
	svc, sink := newTestService(Limits{}, nil)

	svc.HandleExecution(wire.OrderExecution{
		OrderID: 1, Symbol: "AAPL", Type: wire.ExecFill, Side: wire.ActionBuy,
		FillPrice: 100.0, FillQty: 100,
	})
	svc.HandleMarketData(wire.MarketData{Symbol: "AAPL", BidPrice: 104.0, AskPrice: 106.0})

	p, ok := svc.Position("AAPL")
	require.True(t, ok)
	assert.Equal(t, 105.0, p.LastPrice)
	assert.InDelta(t, 500.0, p.UnrealizedPL, 1e-9)
	assert.Len(t, sink.sent, 2)
}

func TestHandleMarketDataIgnoresUntrackedSymbols(t *testing.T) {
	svc, sink := newTestService(Limits{}, nil)

	svc.HandleMarketData(wire.MarketData{Symbol: "TSLA", BidPrice: 200, AskPrice: 201})

	_, ok := svc.Position("TSLA")
	assert.False(t, ok)
	assert.Empty(t, sink.sent)
}

func TestCheckSignalDeniesOverPerSymbolLimit(t *testing.T) {
	var alerts []RiskAlert
	svc, _ := newTestService(Limits{PositionLimitPerSymbol: 500}, func(a RiskAlert) { alerts = append(alerts, a) })

	ok, alert := svc.CheckSignal(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, Quantity: 1000})

	require.False(t, ok)
	require.NotNil(t, alert)
	assert.Equal(t, "position_limit_per_symbol", alert.LimitType)
	assert.True(t, alert.PreTrade)
	require.Len(t, alerts, 1)
}

func TestCheckSignalDeniesOverMaxPositionValue(t *testing.T) {
	svc, _ := newTestService(Limits{MaxPositionValue: 10_000}, nil)

	svc.HandleExecution(wire.OrderExecution{
		OrderID: 1, Symbol: "AAPL", Type: wire.ExecFill, Side: wire.ActionBuy,
		FillPrice: 100.0, FillQty: 50,
	})

	// projected 150 shares * 100 = 15000 > 10000
	ok, alert := svc.CheckSignal(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, Quantity: 100})
	require.False(t, ok)
	assert.Equal(t, "max_position_value", alert.LimitType)
	assert.Equal(t, Critical, alert.Severity)
}

func TestCheckSignalAcceptsSilently(t *testing.T) {
	var alerts []RiskAlert
	svc, _ := newTestService(
		Limits{MaxPositionValue: 1_000_000, MaxDailyLoss: 1_000_000, PositionLimitPerSymbol: 10_000},
		func(a RiskAlert) { alerts = append(alerts, a) },
	)

	ok, alert := svc.CheckSignal(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, Quantity: 100})

	assert.True(t, ok)
	assert.Nil(t, alert)
	assert.Empty(t, alerts)
}

func TestCheckSignalDeniesAfterDailyLossBreach(t *testing.T) {
	svc, _ := newTestService(Limits{MaxDailyLoss: 100}, nil)

	// buy 100 @ 100, sell 100 @ 95: realized -500 on the day
	svc.HandleExecution(wire.OrderExecution{
		OrderID: 1, Symbol: "AAPL", Type: wire.ExecFill, Side: wire.ActionBuy,
		FillPrice: 100.0, FillQty: 100,
	})
	svc.HandleExecution(wire.OrderExecution{
		OrderID: 2, Symbol: "AAPL", Type: wire.ExecFill, Side: wire.ActionSell,
		FillPrice: 95.0, FillQty: 100,
	})

	ok, alert := svc.CheckSignal(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, Quantity: 10})
	require.False(t, ok)
	assert.Equal(t, "max_daily_loss", alert.LimitType)
}
