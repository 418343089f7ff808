package backtest

import (
	"testing"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/historical"
	"github.com/abdoElHodaky/hft-core/internal/strategy"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleData() []historical.DataPoint {
	return []historical.DataPoint{
		{TimestampMs: 1000, Symbol: "AAPL", LastPrice: 100.0, BidPrice: 99.95, AskPrice: 100.05, TotalVolume: 1000},
		{TimestampMs: 2000, Symbol: "AAPL", LastPrice: 100.5, BidPrice: 100.45, AskPrice: 100.55, TotalVolume: 1000},
		{TimestampMs: 3000, Symbol: "AAPL", LastPrice: 101.5, BidPrice: 101.45, AskPrice: 101.55, TotalVolume: 1000},
		{TimestampMs: 4000, Symbol: "AAPL", LastPrice: 102.5, BidPrice: 102.45, AskPrice: 102.55, TotalVolume: 1000},
	}
}

func TestHarnessRunsMomentumStrategyAgainstReplay(t *testing.T) {
	cfg := DefaultConfig("t1")
	cfg.SimulatorConfig.Model = 0 // Immediate
	cfg.SimulatorConfig.RespectMarketHours = false

	h, err := New(cfg, sampleData(), nil)
	require.NoError(t, err)
	defer h.Close()

	momentum := strategy.NewMomentumStrategy(1, h.Engine.Handle(), h.Now, nil)
	h.Engine.Register(momentum)

	h.Run()

	summary := h.Summary()
	assert.Equal(t, uint64(4), summary.MessagesReplayed)
	// Ticks are 1s apart in data time, which the virtual clock follows,
	// so the 1s momentum cooldown elapses between every pair of ticks:
	// tick 1 seeds, ticks 2-4 each move >0.1% and each fire.
	assert.Equal(t, uint64(3), summary.SignalsGenerated)
}

func TestHarnessDefaultConfigProducesDistinctEndpoints(t *testing.T) {
	a := DefaultConfig("a")
	b := DefaultConfig("b")
	assert.NotEqual(t, a.MarketDataEndpoint, b.MarketDataEndpoint)
	assert.Contains(t, a.MarketDataEndpoint, "ring://")
}

func TestHarnessRejectsMissingEndpoints(t *testing.T) {
	_, err := New(Config{}, sampleData(), nil)
	assert.Error(t, err)
}

func TestHarnessWithoutStrategiesStillReplaysAndStops(t *testing.T) {
	cfg := DefaultConfig("t2")
	h, err := New(cfg, sampleData(), nil)
	require.NoError(t, err)
	defer h.Close()

	h.Run()
	summary := h.Summary()
	assert.Equal(t, uint64(0), summary.SignalsGenerated)
	assert.Equal(t, uint64(4), summary.MessagesReplayed)
}

func TestHarnessPropagatesExecutionsToRisk(t *testing.T) {
	cfg := DefaultConfig("t3")
	h, err := New(cfg, sampleData(), nil)
	require.NoError(t, err)
	defer h.Close()

	// Directly exercise the wiring path instead of depending on a
	// strategy's signal thresholds: submit straight to the gateway and
	// drain the simulator, then confirm risk observed the fill.
	h.Start()
	defer h.Stop()

	h.Gateway.HandleSignal(wire.TradingSignal{Symbol: "AAPL", Action: wire.ActionBuy, OrderType: wire.OrderMarket, Quantity: 10})
	h.Simulator.UpdateMarketState(wire.MarketData{Symbol: "AAPL", BidPrice: 100, AskPrice: 100.1, LastPrice: 100.05})
	h.drainPendingFills()

	// The execution crosses the ring asynchronously before risk sees it.
	require.Eventually(t, func() bool {
		_, ok := h.Risk.Position("AAPL")
		return ok
	}, 2*time.Second, 5*time.Millisecond)
}
