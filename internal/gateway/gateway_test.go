package gateway

import (
	"testing"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	submitted []uint64
	cancelled []uint64
}

func (f *fakeEngine) SubmitOrder(orderID uint64, symbol string, action wire.SignalAction, orderType wire.OrderType, price float64, quantity uint32) {
	f.submitted = append(f.submitted, orderID)
}

func (f *fakeEngine) CancelOrder(orderID uint64) {
	f.cancelled = append(f.cancelled, orderID)
}

type fakeSink struct {
	sent [][]byte
}

func (f *fakeSink) Send(data []byte, nonBlocking bool) (bool, error) {
	f.sent = append(f.sent, data)
	return true, nil
}

func fixedNow() uint64 { return 1 }

func TestGatewayAssignsMonotonicOrderIDsAndSubmits(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	g := New(engine, sink, c, fixedNow, nil)

	g.HandleSignal(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, OrderType: wire.OrderMarket, Quantity: 100})
	g.HandleSignal(wire.TradingSignal{Symbol: "MSFT", Action: wire.ActionBuy, OrderType: wire.OrderMarket, Quantity: 50})

	require.Len(t, engine.submitted, 2)
	assert.Equal(t, uint64(1), engine.submitted[0])
	assert.Equal(t, uint64(2), engine.submitted[1])
	assert.Equal(t, 2, g.ActiveCount())
}

func TestGatewayRejectsZeroQuantitySignal(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	g := New(engine, sink, c, fixedNow, nil)

	g.HandleSignal(wire.TradingSignal{Symbol: "AAPL", OrderType: wire.OrderMarket, Quantity: 0})

	assert.Empty(t, engine.submitted)
	assert.Equal(t, uint64(1), g.OrdersRejected())
	require.Len(t, sink.sent, 1)
	h := wire.DecodeHeader(sink.sent[0])
	assert.Equal(t, wire.TypeOrderExecution, h.Type)
}

func TestGatewayEvictsOrderOnFill(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	g := New(engine, sink, c, fixedNow, nil)

	g.HandleSignal(wire.TradingSignal{Symbol: "AAPL", OrderType: wire.OrderMarket, Quantity: 100})
	require.Equal(t, 1, g.ActiveCount())

	g.HandleExecution(wire.OrderExecution{OrderID: 1, ExecSeq: 1, Symbol: "AAPL", Type: wire.ExecFill, FillQty: 100, RemainQty: 0})

	assert.Equal(t, 0, g.ActiveCount())
	assert.Equal(t, uint64(1), g.OrdersFilled())
	_, ok := g.ActiveOrder(1)
	assert.False(t, ok)
}

func TestGatewayHandlesPartialThenFillSequence(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	g := New(engine, sink, c, fixedNow, nil)

	g.HandleSignal(wire.TradingSignal{Symbol: "AAPL", OrderType: wire.OrderMarket, Quantity: 100})

	g.HandleExecution(wire.OrderExecution{OrderID: 1, ExecSeq: 1, Symbol: "AAPL", Type: wire.ExecPartialFill, FillQty: 40, RemainQty: 60})
	order, ok := g.ActiveOrder(1)
	require.True(t, ok)
	assert.Equal(t, StatePartial, order.State)
	assert.Equal(t, uint32(40), order.FilledQuantity)

	g.HandleExecution(wire.OrderExecution{OrderID: 1, ExecSeq: 2, Symbol: "AAPL", Type: wire.ExecFill, FillQty: 60, RemainQty: 0})
	_, ok = g.ActiveOrder(1)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), g.OrdersFilled())
}

func TestGatewayDropsDuplicateExecutionByOrderIDAndExecSeq(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	g := New(engine, sink, c, fixedNow, nil)

	g.HandleSignal(wire.TradingSignal{Symbol: "AAPL", OrderType: wire.OrderMarket, Quantity: 100})

	exec := wire.OrderExecution{OrderID: 1, ExecSeq: 1, Symbol: "AAPL", Type: wire.ExecFill, FillQty: 100, RemainQty: 0}
	g.HandleExecution(exec)
	g.HandleExecution(exec) // duplicate, should be ignored

	assert.Equal(t, uint64(1), g.OrdersFilled())
}

func TestGatewayCancelOrderForwardsToEngineOnlyWhenActive(t *testing.T) {
	engine := &fakeEngine{}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	g := New(engine, sink, c, fixedNow, nil)

	g.CancelOrder(42) // no active order, should be a no-op
	assert.Empty(t, engine.cancelled)

	g.HandleSignal(wire.TradingSignal{Symbol: "AAPL", OrderType: wire.OrderMarket, Quantity: 100})
	g.CancelOrder(1)
	require.Len(t, engine.cancelled, 1)
	assert.Equal(t, uint64(1), engine.cancelled[0])
}
