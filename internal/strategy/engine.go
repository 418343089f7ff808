// Package strategy implements the strategy engine: it fans market data
// and executions into registered strategies on a single thread and
// forwards the signals they produce to the signals transport.
//
// The engine hands each strategy a SignalHandle closure at registration
// time instead of a reference to itself, so a Strategy never holds a
// pointer to the Engine.
package strategy

import (
	"sync"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// SignalHandle lets a registered strategy publish a signal without
// holding a reference to the Engine.
type SignalHandle func(wire.TradingSignal)

// Strategy is the capability set every strategy implements.
type Strategy interface {
	ID() uint64
	Name() string
	OnMarketData(tick wire.MarketData)
	OnExecution(exec wire.OrderExecution)
}

// SignalSink is the minimal publish contract the signals transport
// satisfies.
type SignalSink interface {
	Send(data []byte, nonBlocking bool) (bool, error)
}

// NowFunc returns the current time in nanoseconds.
type NowFunc func() uint64

// Engine dispatches market data and executions to registered strategies
// in registration order on a single goroutine, and forwards any signals
// they emit to the signals transport.
type Engine struct {
	mu         sync.Mutex
	strategies []Strategy

	sink   SignalSink
	ingest *metrics.Ingest
	now    NowFunc
	logger *zap.Logger

	marketDataProcessed uint64
	signalsGenerated    uint64
}

// NewEngine creates an engine publishing signals on sink.
func NewEngine(sink SignalSink, collector *metrics.Collector, now NowFunc, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		sink:   sink,
		ingest: metrics.NewIngest(collector),
		now:    now,
		logger: logger,
	}
}

// Register adds a strategy to the dispatch list and returns the
// SignalHandle it should use to publish signals.
func (e *Engine) Register(s Strategy) SignalHandle {
	e.mu.Lock()
	e.strategies = append(e.strategies, s)
	e.mu.Unlock()
	e.logger.Info("registered strategy", zap.Uint64("id", s.ID()), zap.String("name", s.Name()))
	return e.publishSignal
}

// Handle returns the SignalHandle every registered strategy shares,
// without registering anything. Composition roots use this to build a
// strategy's constructor argument and only call Register once the
// strategy value itself exists.
func (e *Engine) Handle() SignalHandle {
	return e.publishSignal
}

// Strategies returns the currently registered strategies, in registration order.
func (e *Engine) Strategies() []Strategy {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Strategy, len(e.strategies))
	copy(out, e.strategies)
	return out
}

// HandleMarketData fans tick out to every registered strategy in
// registration order, on the caller's goroutine.
func (e *Engine) HandleMarketData(tick wire.MarketData) {
	for _, s := range e.Strategies() {
		s.OnMarketData(tick)
	}
	e.marketDataProcessed++
	e.ingest.Record("strategy.market_data_processed", 1, metrics.Counter, e.now())
}

// HandleExecution fans exec out to every registered strategy.
func (e *Engine) HandleExecution(exec wire.OrderExecution) {
	for _, s := range e.Strategies() {
		s.OnExecution(exec)
	}
}

func (e *Engine) publishSignal(signal wire.TradingSignal) {
	msg := wire.EncodeTradingSignalMessage(e.now(), signal)
	sent, err := e.sink.Send(msg, true)
	if err != nil || !sent {
		e.logger.Warn("dropped trading signal", zap.String("symbol", signal.Symbol), zap.Error(err))
		return
	}
	e.signalsGenerated++
	e.ingest.Record("strategy.signals_generated", 1, metrics.Counter, e.now())
}

// MarketDataProcessed returns the number of ticks dispatched so far.
func (e *Engine) MarketDataProcessed() uint64 { return e.marketDataProcessed }

// SignalsGenerated returns the number of signals successfully published.
func (e *Engine) SignalsGenerated() uint64 { return e.signalsGenerated }
