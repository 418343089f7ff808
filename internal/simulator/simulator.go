// Package simulator implements the event-driven fill simulator: it
// models fills against a tracked market snapshot under five policies and
// emits OrderExecution messages through a delay queue, for both the paper
// order-gateway path and backtests.
package simulator

import (
	"container/heap"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/segmentio/ksuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// FillModel selects the price/quantity/latency policy Simulator applies
// to an eligible order.
type FillModel uint8

const (
	Immediate FillModel = iota
	RealisticSlippage
	MarketImpact
	LatencyAware
	PartialFills
)

// Config holds the fill model and its tuning knobs.
type Config struct {
	Model                  FillModel
	SlippageFactor         float64
	MarketImpactFactor     float64
	MinLatencyMs           int
	MaxLatencyMs           int
	PartialFillProbability float64
	VolatilityImpact       float64

	CommissionPerShare   float64
	CommissionPercentage float64
	MinimumCommission    float64

	RespectMarketHours bool
	MarketOpen         time.Duration // offset from UTC midnight
	MarketClose        time.Duration
}

// DefaultConfig returns sensible paper-trading defaults.
func DefaultConfig() Config {
	return Config{
		Model:                  RealisticSlippage,
		SlippageFactor:         0.001,
		MarketImpactFactor:     0.0001,
		MinLatencyMs:           1,
		MaxLatencyMs:           50,
		PartialFillProbability: 0.1,
		VolatilityImpact:       0.5,
		MarketOpen:             9*time.Hour + 30*time.Minute,
		MarketClose:            16 * time.Hour,
	}
}

// MarketState is the simulator's per-symbol tracked snapshot, fed by
// UpdateMarketState from the same MarketData stream live strategies see.
type MarketState struct {
	Symbol      string
	BidPrice    float64
	AskPrice    float64
	LastPrice   float64
	BidSize     uint32
	AskSize     uint32
	Spread      float64
	Volatility  float64
	TimestampNs uint64

	returns []float64 // rolling relative price-change window for Volatility
}

// Mid returns (bid+ask)/2.
func (m *MarketState) Mid() float64 { return (m.BidPrice + m.AskPrice) / 2 }

// SpreadBps returns the spread in basis points of mid price.
func (m *MarketState) SpreadBps() float64 {
	mid := m.Mid()
	if mid == 0 {
		return 0
	}
	return (m.AskPrice - m.BidPrice) / mid * 10000
}

// PendingOrder is an order the simulator is still working.
type PendingOrder struct {
	OrderID        uint64
	Symbol         string
	Action         wire.SignalAction
	Type           wire.OrderType
	Price          float64
	Quantity       uint32
	FilledQuantity uint32
	SubmitTimeNs   uint64
	LastUpdateNs   uint64

	// scheduled is true while a FillEvent for this order sits on the
	// heap; evaluation is skipped until it drains so an order never has
	// two in-flight events.
	scheduled bool
}

// FillEvent schedules a future fill, ordered in a min-heap by FillTimeNs.
type FillEvent struct {
	ID        ksuid.KSUID
	OrderID   uint64
	FillTimeNs uint64
	FillPrice float64
	FillQty   uint32
	ExecType  wire.ExecType
}

type fillHeap []FillEvent

func (h fillHeap) Len() int            { return len(h) }
func (h fillHeap) Less(i, j int) bool  { return h[i].FillTimeNs < h[j].FillTimeNs }
func (h fillHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *fillHeap) Push(x interface{}) { *h = append(*h, x.(FillEvent)) }
func (h *fillHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// ExecutionCallback receives every execution the simulator emits.
type ExecutionCallback func(wire.OrderExecution)

// NowFunc returns the current time in nanoseconds.
type NowFunc func() uint64

const returnsWindow = 20

// Simulator models fills against tracked market state under one of five
// FillModels. It never blocks: market updates, order submission, and
// pending-fill draining are all synchronous, single-threaded operations
// guarded by one mutex.
type Simulator struct {
	mu sync.Mutex

	cfg Config
	rng *rand.Rand

	marketStates map[string]*MarketState
	pending      map[uint64]*PendingOrder
	execSeq      map[uint64]uint32
	heap         fillHeap

	callback ExecutionCallback
	ingest   *metrics.Ingest
	now      NowFunc
	logger   *zap.Logger

	totalFills     uint64
	partialFills   uint64
	totalSlippage  float64
	totalCommission float64
}

// New creates a Simulator. seed is used explicitly (never global rand
// state) so replays are deterministic across runs.
func New(cfg Config, seed int64, collector *metrics.Collector, now NowFunc, logger *zap.Logger) *Simulator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Simulator{
		cfg:          cfg,
		rng:          rand.New(rand.NewSource(seed)),
		marketStates: make(map[string]*MarketState),
		pending:      make(map[uint64]*PendingOrder),
		execSeq:      make(map[uint64]uint32),
		ingest:       metrics.NewIngest(collector),
		now:          now,
		logger:       logger,
	}
}

// SetExecutionCallback registers the sink every emitted OrderExecution is
// delivered to (typically gateway.Gateway.HandleExecution).
func (s *Simulator) SetExecutionCallback(cb ExecutionCallback) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callback = cb
}

// UpdateMarketState folds a tick into the tracked MarketState for its
// symbol, updates the rolling volatility estimate, and re-evaluates any
// pending orders for that symbol.
func (s *Simulator) UpdateMarketState(tick wire.MarketData) {
	s.mu.Lock()
	state, ok := s.marketStates[tick.Symbol]
	if !ok {
		state = &MarketState{Symbol: tick.Symbol}
		s.marketStates[tick.Symbol] = state
	}
	oldPrice := state.LastPrice

	state.BidPrice = tick.BidPrice
	state.AskPrice = tick.AskPrice
	state.LastPrice = tick.LastPrice
	state.BidSize = tick.BidSize
	state.AskSize = tick.AskSize
	state.Spread = tick.AskPrice - tick.BidPrice
	state.TimestampNs = tick.ExchangeTsNs

	if oldPrice > 0 && state.LastPrice > 0 {
		change := math.Abs(state.LastPrice-oldPrice) / oldPrice
		state.returns = append(state.returns, change)
		if len(state.returns) > returnsWindow {
			state.returns = state.returns[len(state.returns)-returnsWindow:]
		}
		if len(state.returns) >= 2 {
			state.Volatility = stat.StdDev(state.returns, nil)
		}
	}

	var toEvaluate []*PendingOrder
	for _, order := range s.pending {
		if order.Symbol == tick.Symbol {
			toEvaluate = append(toEvaluate, order)
		}
	}
	s.mu.Unlock()

	for _, order := range toEvaluate {
		s.evaluateOrder(order)
	}
}

// SubmitOrder registers a new PendingOrder and, for the IMMEDIATE model,
// evaluates it right away — satisfies gateway.FillEngine.
func (s *Simulator) SubmitOrder(orderID uint64, symbol string, action wire.SignalAction, orderType wire.OrderType, price float64, quantity uint32) {
	now := s.now()
	order := &PendingOrder{
		OrderID:      orderID,
		Symbol:       symbol,
		Action:       action,
		Type:         orderType,
		Price:        price,
		Quantity:     quantity,
		SubmitTimeNs: now,
		LastUpdateNs: now,
	}

	s.mu.Lock()
	s.pending[orderID] = order
	model := s.cfg.Model
	s.mu.Unlock()

	s.logger.Info("order submitted to simulator",
		zap.Uint64("order_id", orderID), zap.String("symbol", symbol), zap.Uint32("quantity", quantity))

	if model == Immediate {
		s.evaluateOrder(order)
	}
}

// CancelOrder removes orderID from the pending set, satisfying
// gateway.FillEngine.
func (s *Simulator) CancelOrder(orderID uint64) {
	s.mu.Lock()
	_, ok := s.pending[orderID]
	if ok {
		delete(s.pending, orderID)
	}
	s.mu.Unlock()
	if ok {
		s.logger.Info("order cancelled in simulator", zap.Uint64("order_id", orderID))
	}
}

// evaluateOrder checks fill eligibility and, if eligible, schedules a
// FillEvent on the heap.
func (s *Simulator) evaluateOrder(order *PendingOrder) {
	s.mu.Lock()
	state, ok := s.marketStates[order.Symbol]
	if !ok {
		s.mu.Unlock()
		return // hold the order; no market state yet
	}
	if order.scheduled {
		s.mu.Unlock()
		return
	}
	if s.cfg.RespectMarketHours && !s.isMarketOpen(time.Unix(0, int64(s.now()))) {
		s.mu.Unlock()
		return
	}

	if !s.canFill(order, state) {
		s.mu.Unlock()
		return
	}
	event := s.calculateFillEvent(order, state)
	if event.FillQty > 0 {
		order.scheduled = true
		heap.Push(&s.heap, event)
	}
	s.mu.Unlock()
}

func (s *Simulator) canFill(order *PendingOrder, state *MarketState) bool {
	switch order.Type {
	case wire.OrderMarket:
		return true
	case wire.OrderLimit:
		if order.Action == wire.ActionBuy {
			return order.Price >= state.AskPrice
		}
		if order.Action == wire.ActionSell {
			return order.Price <= state.BidPrice
		}
	}
	return false
}

// calculateFillEvent computes price, quantity, and latency for order
// against state, per the configured FillModel.
func (s *Simulator) calculateFillEvent(order *PendingOrder, state *MarketState) FillEvent {
	latencyMs := s.calculateLatencyMs()
	price := s.calculateFillPrice(order, state)
	qty := s.calculateFillQuantity(order, state)

	remaining := order.Quantity - order.FilledQuantity
	execType := wire.ExecPartialFill
	if qty >= remaining {
		qty = remaining
		execType = wire.ExecFill
	}

	return FillEvent{
		ID:         ksuid.New(),
		OrderID:    order.OrderID,
		FillTimeNs: s.now() + uint64(latencyMs)*uint64(time.Millisecond),
		FillPrice:  price,
		FillQty:    qty,
		ExecType:   execType,
	}
}

func (s *Simulator) calculateFillPrice(order *PendingOrder, state *MarketState) float64 {
	var base float64
	if order.Type == wire.OrderMarket {
		if order.Action == wire.ActionBuy {
			base = state.AskPrice
		} else {
			base = state.BidPrice
		}
	} else {
		base = order.Price
	}

	var slippage float64
	switch s.cfg.Model {
	case Immediate:
		slippage = 0
	case RealisticSlippage:
		slippage = s.calculateSlippage(state)
	case MarketImpact:
		slippage = s.calculateMarketImpact(order, state)
	case LatencyAware, PartialFills:
		slippage = s.calculateSlippage(state) + s.calculateMarketImpact(order, state)
	}

	if order.Action == wire.ActionBuy {
		return base * (1 + slippage)
	}
	return base * (1 - slippage)
}

func (s *Simulator) calculateFillQuantity(order *PendingOrder, state *MarketState) uint32 {
	remaining := order.Quantity - order.FilledQuantity

	if s.cfg.Model == Immediate || s.cfg.Model == RealisticSlippage {
		return remaining
	}

	if s.cfg.Model == PartialFills {
		if s.rng.Float64() < s.cfg.PartialFillProbability {
			ratio := 0.2 + s.rng.Float64()*0.6 // Uniform(0.2, 0.8)
			qty := uint32(float64(remaining) * ratio)
			if qty == 0 {
				qty = 1 // a tiny remainder still makes progress
			}
			return qty
		}
		// Bernoulli check failed: fill in full, no liquidity cap.
		return remaining
	}

	opposite := state.AskSize
	if order.Action == wire.ActionSell {
		opposite = state.BidSize
	}
	if opposite > 0 && remaining > opposite {
		return opposite
	}
	return remaining
}

// calculateSlippage implements s = slippage_factor*(1+vol*vol_impact) +
// (spread_bps/10000)/2 * U(0.5,1.5).
func (s *Simulator) calculateSlippage(state *MarketState) float64 {
	base := s.cfg.SlippageFactor * (1 + state.Volatility*s.cfg.VolatilityImpact)
	spreadImpact := state.SpreadBps() / 10000 * 0.5
	return base + spreadImpact*s.uniform(0.5, 1.5)
}

// calculateMarketImpact implements impact =
// market_impact_factor * qty / max(1, avg(bid_size,ask_size)).
func (s *Simulator) calculateMarketImpact(order *PendingOrder, state *MarketState) float64 {
	avgVolume := float64(state.BidSize+state.AskSize) / 2
	if avgVolume < 1 {
		avgVolume = 1
	}
	return s.cfg.MarketImpactFactor * float64(order.Quantity) / avgVolume
}

func (s *Simulator) calculateLatencyMs() int {
	if s.cfg.MaxLatencyMs <= s.cfg.MinLatencyMs {
		return s.cfg.MinLatencyMs
	}
	return s.cfg.MinLatencyMs + s.rng.Intn(s.cfg.MaxLatencyMs-s.cfg.MinLatencyMs+1)
}

func (s *Simulator) uniform(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}

func (s *Simulator) isMarketOpen(now time.Time) bool {
	midnight := now.Truncate(24 * time.Hour)
	sinceMidnight := now.Sub(midnight)
	return sinceMidnight >= s.cfg.MarketOpen && sinceMidnight <= s.cfg.MarketClose
}

// ProcessPendingFills drains every FillEvent whose FillTimeNs has
// elapsed, emits an OrderExecution for each, and re-evaluates orders that
// still have market data but no scheduled event.
func (s *Simulator) ProcessPendingFills() {
	now := s.now()
	var executions []wire.OrderExecution

	s.mu.Lock()
	for len(s.heap) > 0 && s.heap[0].FillTimeNs <= now {
		event := heap.Pop(&s.heap).(FillEvent)

		order, ok := s.pending[event.OrderID]
		if !ok {
			continue
		}
		order.scheduled = false

		execSeq := s.execSeq[event.OrderID] + 1
		s.execSeq[event.OrderID] = execSeq

		remaining := order.Quantity - order.FilledQuantity - event.FillQty
		commission := s.calculateCommission(event.FillPrice, event.FillQty)

		exec := wire.OrderExecution{
			OrderID:    event.OrderID,
			ExecSeq:    execSeq,
			Symbol:     order.Symbol,
			Type:       event.ExecType,
			Side:       order.Action,
			FillPrice:  event.FillPrice,
			FillQty:    event.FillQty,
			RemainQty:  remaining,
			Commission: commission,
		}

		order.FilledQuantity += event.FillQty
		order.LastUpdateNs = now

		s.totalFills++
		s.totalCommission += commission
		if event.ExecType == wire.ExecPartialFill {
			s.partialFills++
		}
		if order.Price > 0 {
			s.totalSlippage += math.Abs(event.FillPrice-order.Price) / order.Price
		}

		if order.FilledQuantity >= order.Quantity {
			delete(s.pending, event.OrderID)
			delete(s.execSeq, event.OrderID)
		}

		executions = append(executions, exec)
	}

	var reEvaluate []*PendingOrder
	for _, order := range s.pending {
		if _, hasState := s.marketStates[order.Symbol]; hasState {
			reEvaluate = append(reEvaluate, order)
		}
	}
	cb := s.callback
	s.mu.Unlock()

	for _, exec := range executions {
		s.ingest.Record("simulator.fills", 1, metrics.Counter, now)
		if cb != nil {
			cb(exec)
		}
	}
	for _, order := range reEvaluate {
		s.evaluateOrder(order)
	}
}

// calculateCommission implements per_share*qty + percentage*(px*qty),
// bounded below by minimum_commission.
func (s *Simulator) calculateCommission(fillPrice float64, fillQty uint32) float64 {
	commission := s.cfg.CommissionPerShare*float64(fillQty) + s.cfg.CommissionPercentage*(fillPrice*float64(fillQty))
	if commission < s.cfg.MinimumCommission {
		return s.cfg.MinimumCommission
	}
	return commission
}

// HasPendingOrders reports whether any order is still being worked.
func (s *Simulator) HasPendingOrders() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) > 0
}

// SetVolatility overrides the tracked volatility for symbol (primarily
// for tests and scenario seeding).
func (s *Simulator) SetVolatility(symbol string, volatility float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.marketStates[symbol]
	if !ok {
		state = &MarketState{Symbol: symbol}
		s.marketStates[symbol] = state
	}
	state.Volatility = volatility
}

// TotalFills returns the number of fill events processed so far.
func (s *Simulator) TotalFills() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalFills
}

// PartialFills returns the number of PARTIAL_FILL executions emitted.
func (s *Simulator) PartialFills() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.partialFills
}

// AverageSlippage returns total relative slippage divided by total fills.
func (s *Simulator) AverageSlippage() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.totalFills == 0 {
		return 0
	}
	return s.totalSlippage / float64(s.totalFills)
}

// TotalCommission returns the running sum of every fill's commission.
func (s *Simulator) TotalCommission() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalCommission
}
