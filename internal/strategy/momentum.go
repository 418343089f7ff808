package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// MomentumThreshold is the default minimum relative mid-price change that
// triggers a signal.
const MomentumThreshold = 0.001

// MinSignalIntervalMs is the default cooldown between signals for the
// same symbol.
const MinSignalIntervalMs = 1000

// MomentumStrategy is the reference strategy implementation: it signals
// BUY/SELL when a symbol's mid price moves more than Threshold since the
// last observed tick, rate-limited per symbol by MinSignalInterval.
type MomentumStrategy struct {
	id     uint64
	signal SignalHandle
	logger *zap.Logger

	Threshold         float64
	MinSignalInterval time.Duration

	nowFn NowFunc

	mu              sync.Mutex
	lastPrice       map[string]float64
	lastSignalTime  map[string]uint64 // nanoseconds, per nowFn
}

// NewMomentumStrategy creates a momentum strategy with the default
// threshold and signal interval. signal is the handle Engine.Register
// returned for this strategy.
func NewMomentumStrategy(id uint64, signal SignalHandle, now NowFunc, logger *zap.Logger) *MomentumStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MomentumStrategy{
		id:                id,
		signal:            signal,
		logger:            logger,
		Threshold:         MomentumThreshold,
		MinSignalInterval: MinSignalIntervalMs * time.Millisecond,
		nowFn:             now,
		lastPrice:         make(map[string]float64),
		lastSignalTime:    make(map[string]uint64),
	}
}

func (m *MomentumStrategy) ID() uint64   { return m.id }
func (m *MomentumStrategy) Name() string { return "MomentumStrategy" }

// OnMarketData implements the momentum signal rule: compare the new mid
// against the last observed mid for the symbol, and signal if the
// relative change exceeds Threshold and the per-symbol cooldown has
// elapsed.
func (m *MomentumStrategy) OnMarketData(tick wire.MarketData) {
	mid := (tick.BidPrice + tick.AskPrice) / 2
	now := m.nowFn()

	m.mu.Lock()
	prev, hasPrev := m.lastPrice[tick.Symbol]
	m.lastPrice[tick.Symbol] = mid
	lastSig, hasSig := m.lastSignalTime[tick.Symbol]
	m.mu.Unlock()

	if !hasPrev || prev == 0 {
		return
	}
	change := (mid - prev) / prev

	cooldownElapsed := !hasSig || time.Duration(now-lastSig) >= m.MinSignalInterval
	if !cooldownElapsed || math.Abs(change) <= m.Threshold {
		return
	}

	action := wire.ActionSell
	if change > 0 {
		action = wire.ActionBuy
	}
	confidence := math.Min(math.Abs(change)/m.Threshold, 1.0)

	m.mu.Lock()
	m.lastSignalTime[tick.Symbol] = now
	m.mu.Unlock()

	m.signal(wire.TradingSignal{
		Symbol:     tick.Symbol,
		Action:     action,
		OrderType:  wire.OrderMarket,
		Quantity:   100,
		StrategyID: m.id,
		Confidence: confidence,
	})
}

// OnExecution logs fills; the reference momentum strategy carries no
// execution-driven state.
func (m *MomentumStrategy) OnExecution(exec wire.OrderExecution) {
	m.logger.Info("execution",
		zap.String("symbol", exec.Symbol),
		zap.Uint32("fill_qty", exec.FillQty),
		zap.Float64("fill_price", exec.FillPrice),
	)
}
