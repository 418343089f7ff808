package strategy

import (
	"math"
	"sync"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/book"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// OrderBookMomentumParams tunes the momentum/flow agreement gate.
type OrderBookMomentumParams struct {
	MomentumThreshold  float64
	FlowThreshold      float64
	MomentumWindow     int
	MinSignalInterval  time.Duration
	BaseSignalSize     uint32
	MaxSignalMultiplier float64
}

// DefaultOrderBookMomentumParams returns the stock tuning.
func DefaultOrderBookMomentumParams() OrderBookMomentumParams {
	return OrderBookMomentumParams{
		MomentumThreshold:   0.01,
		FlowThreshold:       0.2,
		MomentumWindow:      10,
		MinSignalInterval:   time.Second,
		BaseSignalSize:      100,
		MaxSignalMultiplier: 3.0,
	}
}

type momentumState struct {
	priceChanges  []float64
	flowImbalance []float64
	lastMid       float64
}

// OrderBookMomentumStrategy enhances the plain momentum rule with order
// book flow: it only signals when both price momentum and book imbalance
// agree, sizing the signal by their combined conviction via go-talib's
// Sma over the recent momentum window.
type OrderBookMomentumStrategy struct {
	id     uint64
	signal SignalHandle
	logger *zap.Logger
	nowFn  NowFunc
	books  *book.Manager

	params OrderBookMomentumParams

	mu         sync.Mutex
	states     map[string]*momentumState
	lastSignal map[string]uint64 // nanoseconds, per nowFn
}

// NewOrderBookMomentumStrategy creates a strategy reading book state from
// books (shared with the rest of the pipeline via internal/book.Manager).
func NewOrderBookMomentumStrategy(id uint64, signal SignalHandle, books *book.Manager, now NowFunc, logger *zap.Logger) *OrderBookMomentumStrategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderBookMomentumStrategy{
		id:         id,
		signal:     signal,
		logger:     logger,
		nowFn:      now,
		books:      books,
		params:     DefaultOrderBookMomentumParams(),
		states:     make(map[string]*momentumState),
		lastSignal: make(map[string]uint64),
	}
}

func (s *OrderBookMomentumStrategy) ID() uint64   { return s.id }
func (s *OrderBookMomentumStrategy) Name() string { return "OrderBookMomentumStrategy" }

func (s *OrderBookMomentumStrategy) OnMarketData(tick wire.MarketData) {
	b := s.books.Get(tick.Symbol)
	mid := (tick.BidPrice + tick.AskPrice) / 2
	if mid == 0 {
		return
	}
	imbalance := b.Imbalance()

	s.mu.Lock()
	st, ok := s.states[tick.Symbol]
	if !ok {
		st = &momentumState{lastMid: mid}
		s.states[tick.Symbol] = st
		s.mu.Unlock()
		return
	}
	change := (mid - st.lastMid) / st.lastMid
	st.priceChanges = appendBounded(st.priceChanges, change, s.params.MomentumWindow)
	st.flowImbalance = appendBounded(st.flowImbalance, imbalance, s.params.MomentumWindow)
	st.lastMid = mid
	score := momentumScore(st.priceChanges)
	flow := avg(st.flowImbalance)
	s.mu.Unlock()

	if math.Abs(score) <= s.params.MomentumThreshold || math.Abs(flow) <= s.params.FlowThreshold {
		return
	}
	// Momentum and flow must agree in direction.
	if (score > 0) != (flow > 0) {
		return
	}
	if !s.intervalElapsed(tick.Symbol) {
		return
	}

	confidence := s.confidence(score, flow)
	size := s.signalSize(confidence)
	action := wire.ActionSell
	if score > 0 {
		action = wire.ActionBuy
	}

	s.markSignaled(tick.Symbol)
	s.signal(wire.TradingSignal{
		Symbol: tick.Symbol, Action: action, OrderType: wire.OrderMarket,
		Quantity: size, StrategyID: s.id, Confidence: confidence,
	})
}

func (s *OrderBookMomentumStrategy) OnExecution(exec wire.OrderExecution) {}

func appendBounded(series []float64, v float64, window int) []float64 {
	series = append(series, v)
	if len(series) > window {
		series = series[len(series)-window:]
	}
	return series
}

// momentumScore smooths the price-change window with go-talib's SMA over
// every change it holds and returns its most recent value, i.e. the mean
// of the window (which holds fewer than MomentumWindow changes early on).
func momentumScore(changes []float64) float64 {
	sma := talibSMA(changes, len(changes))
	if len(sma) == 0 {
		return avg(changes)
	}
	return sma[len(sma)-1]
}

func avg(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func (s *OrderBookMomentumStrategy) confidence(momentum, flow float64) float64 {
	c := (math.Abs(momentum)/s.params.MomentumThreshold + math.Abs(flow)/s.params.FlowThreshold) / 2
	if c > 1 {
		c = 1
	}
	return c
}

func (s *OrderBookMomentumStrategy) signalSize(confidence float64) uint32 {
	mult := 1 + confidence*(s.params.MaxSignalMultiplier-1)
	return uint32(float64(s.params.BaseSignalSize) * mult)
}

func (s *OrderBookMomentumStrategy) intervalElapsed(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastSignal[symbol]
	return !ok || time.Duration(s.nowFn()-last) >= s.params.MinSignalInterval
}

func (s *OrderBookMomentumStrategy) markSignaled(symbol string) {
	s.mu.Lock()
	s.lastSignal[symbol] = s.nowFn()
	s.mu.Unlock()
}
