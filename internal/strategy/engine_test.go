package strategy

import (
	"testing"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	sent   [][]byte
	reject bool
}

func (f *fakeSink) Send(data []byte, nonBlocking bool) (bool, error) {
	if f.reject {
		return false, nil
	}
	f.sent = append(f.sent, data)
	return true, nil
}

type recordingStrategy struct {
	id      uint64
	name    string
	ticks   []wire.MarketData
	execs   []wire.OrderExecution
	handle  SignalHandle
}

func (r *recordingStrategy) ID() uint64   { return r.id }
func (r *recordingStrategy) Name() string { return r.name }
func (r *recordingStrategy) OnMarketData(tick wire.MarketData) {
	r.ticks = append(r.ticks, tick)
}
func (r *recordingStrategy) OnExecution(exec wire.OrderExecution) {
	r.execs = append(r.execs, exec)
}

func fixedNow() uint64 { return 1000 }

func TestEngineFansOutInRegistrationOrder(t *testing.T) {
	sink := &fakeSink{}
	c := metrics.NewCollector()
	e := NewEngine(sink, c, fixedNow, nil)

	var order []uint64
	first := &recordingStrategy{id: 1, name: "first"}
	second := &recordingStrategy{id: 2, name: "second"}
	first.handle = e.Register(first)
	second.handle = e.Register(second)

	for _, s := range e.Strategies() {
		order = append(order, s.ID())
	}
	assert.Equal(t, []uint64{1, 2}, order)

	tick := wire.MarketData{Symbol: "AAPL", BidPrice: 100, AskPrice: 101}
	e.HandleMarketData(tick)

	require.Len(t, first.ticks, 1)
	require.Len(t, second.ticks, 1)
	assert.Equal(t, uint64(1), e.MarketDataProcessed())
}

func TestEngineHandleExecutionFansOutToAllStrategies(t *testing.T) {
	sink := &fakeSink{}
	c := metrics.NewCollector()
	e := NewEngine(sink, c, fixedNow, nil)

	s1 := &recordingStrategy{id: 1, name: "s1"}
	s2 := &recordingStrategy{id: 2, name: "s2"}
	e.Register(s1)
	e.Register(s2)

	exec := wire.OrderExecution{OrderID: 7, Symbol: "AAPL", Type: wire.ExecFill, FillQty: 100}
	e.HandleExecution(exec)

	require.Len(t, s1.execs, 1)
	require.Len(t, s2.execs, 1)
	assert.Equal(t, uint64(7), s1.execs[0].OrderID)
}

func TestEngineSignalHandlePublishesOverSink(t *testing.T) {
	sink := &fakeSink{}
	c := metrics.NewCollector()
	e := NewEngine(sink, c, fixedNow, nil)

	s := &recordingStrategy{id: 1, name: "s1"}
	handle := e.Register(s)

	handle(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, OrderType: wire.OrderMarket, Quantity: 100, StrategyID: 1, Confidence: 1.0})

	require.Len(t, sink.sent, 1)
	h := wire.DecodeHeader(sink.sent[0])
	assert.Equal(t, wire.TypeTradingSignal, h.Type)
	assert.Equal(t, uint64(1), e.SignalsGenerated())
}

func TestEngineSignalHandleDropSilentlyOnBackpressure(t *testing.T) {
	sink := &fakeSink{reject: true}
	c := metrics.NewCollector()
	e := NewEngine(sink, c, fixedNow, nil)

	s := &recordingStrategy{id: 1, name: "s1"}
	handle := e.Register(s)
	handle(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, StrategyID: 1})

	assert.Equal(t, uint64(0), e.SignalsGenerated())
}
