// Package backtest wires the historical data player and fill simulator
// into the same live pipeline (marketdata -> strategy -> gateway -> risk)
// that production uses, so a strategy under test runs unmodified code
// against a deterministic replay. The player and simulator stand in for
// the live feed and the broker over the same transport endpoints,
// here internal/transport's ring:// backend.
package backtest

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/gateway"
	"github.com/abdoElHodaky/hft-core/internal/historical"
	"github.com/abdoElHodaky/hft-core/internal/marketdata"
	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/risk"
	"github.com/abdoElHodaky/hft-core/internal/simulator"
	"github.com/abdoElHodaky/hft-core/internal/strategy"
	"github.com/abdoElHodaky/hft-core/internal/transport"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// Config configures one Harness run.
type Config struct {
	MarketDataEndpoint string // DefaultConfig: "ring://backtest-marketdata-<runID>"
	SignalsEndpoint    string // DefaultConfig: "ring://backtest-signals-<runID>"
	ExecutionsEndpoint string // DefaultConfig: "ring://backtest-executions-<runID>"
	PositionsEndpoint  string // DefaultConfig: "ring://backtest-positions-<runID>"

	SimulatorConfig simulator.Config
	SimulatorSeed   int64
	RiskLimits      risk.Limits
}

// DefaultConfig returns a Config using unique per-run ring endpoints so
// multiple Harness instances never collide in the process-wide ring
// registry.
func DefaultConfig(runID string) Config {
	return Config{
		MarketDataEndpoint: "ring://backtest-marketdata-" + runID,
		SignalsEndpoint:    "ring://backtest-signals-" + runID,
		ExecutionsEndpoint: "ring://backtest-executions-" + runID,
		PositionsEndpoint:  "ring://backtest-positions-" + runID,
		SimulatorConfig:    simulator.DefaultConfig(),
		SimulatorSeed:      1,
	}
}

// Harness composes a historical.Player, marketdata.Service,
// strategy.Engine, simulator.Simulator, gateway.Gateway, and risk.Service
// over an in-process transport.Factory, so registered strategies run
// against a deterministic replay instead of a live feed.
type Harness struct {
	cfg    Config
	clock  *virtualClock
	logger *zap.Logger

	factory    *transport.Factory
	mdPub      transport.Publisher
	mdSub      transport.Subscriber
	sigPub     transport.Publisher
	sigSub     transport.Subscriber
	execPub    transport.Publisher
	execSub    transport.Subscriber
	posPub     transport.Publisher

	Player     *historical.Player
	MarketData *marketdata.Service
	Engine     *strategy.Engine
	Gateway    *gateway.Gateway
	Risk       *risk.Service
	Simulator  *simulator.Simulator

	collector *metrics.Collector
}

// virtualClock lets the harness run a replay without depending on
// internal/timing.Clock's TSC calibration: it advances to each replayed
// tick's exchange timestamp as the tick is dispatched, and by explicit
// steps while fills drain, which keeps strategy cooldowns and fill-event
// scheduling deterministic. Atomic because ticks are dispatched on the
// subscriber goroutines while fill draining advances from Run's.
type virtualClock struct {
	nowNs atomic.Uint64
}

func (c *virtualClock) Now() uint64 { return c.nowNs.Load() }

func (c *virtualClock) Advance(deltaNs uint64) { c.nowNs.Add(deltaNs) }

// AdvanceTo moves the clock forward to ns; it never goes backward.
func (c *virtualClock) AdvanceTo(ns uint64) {
	for {
		cur := c.nowNs.Load()
		if ns <= cur {
			return
		}
		if c.nowNs.CompareAndSwap(cur, ns) {
			return
		}
	}
}

// New builds a Harness over data, wiring a fresh simulator instance and
// risk service. The historical.Player's sleep function is a no-op: replay
// speed in a backtest is governed by how fast the harness drains the
// pipeline, not wall-clock pacing.
func New(cfg Config, data []historical.DataPoint, logger *zap.Logger) (*Harness, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MarketDataEndpoint == "" || cfg.SignalsEndpoint == "" || cfg.ExecutionsEndpoint == "" || cfg.PositionsEndpoint == "" {
		return nil, fmt.Errorf("backtest: Config endpoints must be set (use DefaultConfig)")
	}

	clock := &virtualClock{}
	nowFn := clock.Now
	collector := metrics.NewCollector()
	factory := transport.NewFactory(logger)

	mdPub, err := factory.Publisher(transport.Config{Endpoint: cfg.MarketDataEndpoint})
	if err != nil {
		return nil, fmt.Errorf("backtest: market data publisher: %w", err)
	}
	mdSub, err := factory.Subscriber(transport.Config{Endpoint: cfg.MarketDataEndpoint}, "")
	if err != nil {
		return nil, fmt.Errorf("backtest: market data subscriber: %w", err)
	}

	sigPub, err := factory.Publisher(transport.Config{Endpoint: cfg.SignalsEndpoint})
	if err != nil {
		return nil, fmt.Errorf("backtest: signals publisher: %w", err)
	}
	sigSub, err := factory.Subscriber(transport.Config{Endpoint: cfg.SignalsEndpoint}, "")
	if err != nil {
		return nil, fmt.Errorf("backtest: signals subscriber: %w", err)
	}

	execPub, err := factory.Publisher(transport.Config{Endpoint: cfg.ExecutionsEndpoint})
	if err != nil {
		return nil, fmt.Errorf("backtest: executions publisher: %w", err)
	}
	execSub, err := factory.Subscriber(transport.Config{Endpoint: cfg.ExecutionsEndpoint}, "")
	if err != nil {
		return nil, fmt.Errorf("backtest: executions subscriber: %w", err)
	}

	posPub, err := factory.Publisher(transport.Config{Endpoint: cfg.PositionsEndpoint})
	if err != nil {
		return nil, fmt.Errorf("backtest: positions publisher: %w", err)
	}

	player := historical.New(data, func(d time.Duration) {}, logger)

	mdService := marketdata.NewService(player, mdPub, collector, nowFn, logger)
	engine := strategy.NewEngine(sigPub, collector, nowFn, logger)

	sim := simulator.New(cfg.SimulatorConfig, cfg.SimulatorSeed, collector, nowFn, logger)
	gw := gateway.New(sim, execPub, collector, nowFn, logger)
	sim.SetExecutionCallback(gw.HandleExecution)

	riskSvc := risk.NewService(cfg.RiskLimits, posPub, nil, collector, nowFn, logger)

	h := &Harness{
		cfg:        cfg,
		clock:      clock,
		logger:     logger,
		factory:    factory,
		mdPub:      mdPub,
		mdSub:      mdSub,
		sigPub:     sigPub,
		sigSub:     sigSub,
		execPub:    execPub,
		execSub:    execSub,
		posPub:     posPub,
		Player:     player,
		MarketData: mdService,
		Engine:     engine,
		Gateway:    gw,
		Risk:       riskSvc,
		Simulator:  sim,
		collector:  collector,
	}

	mdSub.SetReceiveCallback(h.onMarketDataFrame)
	sigSub.SetReceiveCallback(h.onSignalFrame)
	execSub.SetReceiveCallback(h.onExecutionFrame)

	return h, nil
}

func (h *Harness) onMarketDataFrame(data []byte) {
	tick := wire.DecodeMarketData(data[wire.HeaderSize:])
	// The replay's own timestamps drive the virtual clock, so per-symbol
	// strategy cooldowns elapse tick-by-tick exactly as they would live.
	h.clock.AdvanceTo(tick.ExchangeTsNs)
	h.Engine.HandleMarketData(tick)
	h.Simulator.UpdateMarketState(tick)
	h.Risk.HandleMarketData(tick)
}

func (h *Harness) onSignalFrame(data []byte) {
	signal := wire.DecodeTradingSignal(data[wire.HeaderSize:])
	if ok, alert := h.Risk.CheckSignal(signal); !ok {
		h.logger.Warn("backtest signal denied by risk", zap.String("symbol", signal.Symbol), zap.String("limit_type", alert.LimitType))
		return
	}
	h.Gateway.HandleSignal(signal)
}

func (h *Harness) onExecutionFrame(data []byte) {
	exec := wire.DecodeOrderExecution(data[wire.HeaderSize:])
	h.Risk.HandleExecution(exec)
}

// Start begins async delivery on every internal subscriber. Run calls it;
// tests that drive the gateway or simulator directly call it themselves.
func (h *Harness) Start() {
	h.mdSub.StartAsyncReceive()
	h.sigSub.StartAsyncReceive()
	h.execSub.StartAsyncReceive()
}

// Stop halts async delivery started by Start.
func (h *Harness) Stop() {
	h.mdSub.StopAsyncReceive()
	h.sigSub.StopAsyncReceive()
	h.execSub.StopAsyncReceive()
}

// Run drives the historical player to exhaustion, with the virtual clock
// following each replayed tick's exchange timestamp, waits for in-flight
// frames to be delivered, then drains the simulator's pending fills by
// stepping the clock and waits again. Fills are processed once the replay
// has finished, not between ticks.
func (h *Harness) Run() {
	h.Start()
	defer h.Stop()

	h.MarketData.Run()
	h.quiesce()
	h.drainPendingFills()
	h.quiesce()
}

// quiesce blocks until every frame published on the harness's rings has
// been delivered to its subscriber, so Run never stops with messages
// still in flight. Bounded so a wedged consumer can't hang the run.
func (h *Harness) quiesce() {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if h.mdSub.Stats().MessagesReceived >= h.mdPub.Stats().MessagesSent &&
			h.sigSub.Stats().MessagesReceived >= h.sigPub.Stats().MessagesSent &&
			h.execSub.Stats().MessagesReceived >= h.execPub.Stats().MessagesSent {
			return
		}
		time.Sleep(time.Millisecond)
	}
}

// drainPendingFills repeatedly advances the virtual clock and processes
// scheduled fills until the simulator has none left, bounding total
// advancement so a misconfigured latency can't spin forever.
func (h *Harness) drainPendingFills() {
	const maxIterations = 100_000
	const stepNs = uint64(1_000_000) // 1ms
	for i := 0; i < maxIterations && h.Simulator.HasPendingOrders(); i++ {
		h.clock.Advance(stepNs)
		h.Simulator.ProcessPendingFills()
	}
}

// Now returns the harness's virtual clock reading in nanoseconds,
// suitable as the NowFunc a strategy or other component under test needs.
func (h *Harness) Now() uint64 { return h.clock.Now() }

// Close releases every transport endpoint the harness opened.
func (h *Harness) Close() error {
	_ = h.mdPub.Close()
	_ = h.mdSub.Close()
	_ = h.sigPub.Close()
	_ = h.sigSub.Close()
	_ = h.execPub.Close()
	_ = h.execSub.Close()
	_ = h.posPub.Close()
	return nil
}

// Stats summarizes a completed run.
type Stats struct {
	MessagesReplayed uint64
	SignalsGenerated uint64
	OrdersProcessed  uint64
	OrdersFilled     uint64
	OrdersRejected   uint64
	TotalFills       uint64
	AverageSlippage  float64
	TotalCommission  float64
}

// Summary collects post-run statistics across every wired component.
func (h *Harness) Summary() Stats {
	return Stats{
		MessagesReplayed: h.Player.MessagesSent(),
		SignalsGenerated: h.Engine.SignalsGenerated(),
		OrdersProcessed:  h.Gateway.OrdersProcessed(),
		OrdersFilled:     h.Gateway.OrdersFilled(),
		OrdersRejected:   h.Gateway.OrdersRejected(),
		TotalFills:       h.Simulator.TotalFills(),
		AverageSlippage:  h.Simulator.AverageSlippage(),
		TotalCommission:  h.Simulator.TotalCommission(),
	}
}
