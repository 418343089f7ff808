// Package gateway implements the order gateway: it turns trading
// signals into orders, forwards them to a fill engine (the in-process
// simulator in paper mode, a broker adapter in live mode), and publishes
// executions while tolerating duplicate (order_id, exec_seq) pairs.
package gateway

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// State is the gateway's per-order lifecycle:
// received -> validated -> submitted -> {filled | partial -> submitted |
// cancelled | rejected}.
type State uint8

const (
	StateReceived State = iota + 1
	StateValidated
	StateSubmitted
	StatePartial
	StateFilled
	StateCancelled
	StateRejected
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateValidated:
		return "validated"
	case StateSubmitted:
		return "submitted"
	case StatePartial:
		return "partial"
	case StateFilled:
		return "filled"
	case StateCancelled:
		return "cancelled"
	case StateRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

func (s State) terminal() bool {
	return s == StateFilled || s == StateCancelled || s == StateRejected
}

// Order is the gateway's view of an in-flight order.
type Order struct {
	OrderID        uint64
	Symbol         string
	Action         wire.SignalAction
	Type           wire.OrderType
	Price          float64
	Quantity       uint32
	FilledQuantity uint32
	State          State
	CreatedAt      time.Time
}

// FillEngine is satisfied by the in-process fill simulator in paper mode,
// or a broker adapter in live mode.
type FillEngine interface {
	SubmitOrder(orderID uint64, symbol string, action wire.SignalAction, orderType wire.OrderType, price float64, quantity uint32)
	CancelOrder(orderID uint64)
}

// ExecutionSink is the minimal publish contract the executions transport
// satisfies.
type ExecutionSink interface {
	Send(data []byte, nonBlocking bool) (bool, error)
}

// NowFunc returns the current time in nanoseconds.
type NowFunc func() uint64

// Gateway assigns monotonically increasing order IDs, tracks active
// orders, and de-duplicates executions by (order_id, exec_seq).
type Gateway struct {
	mu           sync.RWMutex
	activeOrders map[uint64]*Order

	nextOrderID atomic.Uint64
	lastExecSeq map[uint64]uint32 // highest exec_seq seen per order_id

	dedup  *cache.Cache
	engine FillEngine
	sink   ExecutionSink
	ingest *metrics.Ingest
	now    NowFunc
	logger *zap.Logger

	ordersProcessed atomic.Uint64
	ordersFilled    atomic.Uint64
	ordersRejected  atomic.Uint64
}

// New creates a Gateway forwarding accepted orders to engine and
// publishing executions on sink.
func New(engine FillEngine, sink ExecutionSink, collector *metrics.Collector, now NowFunc, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		activeOrders: make(map[uint64]*Order),
		lastExecSeq:  make(map[uint64]uint32),
		dedup:        cache.New(5*time.Minute, 10*time.Minute),
		engine:       engine,
		sink:         sink,
		ingest:       metrics.NewIngest(collector),
		now:          now,
		logger:       logger,
	}
}

// HandleSignal assigns an order_id to signal, validates it, and — if
// accepted — forwards it to the fill engine. Rejections are published as
// a terminal OrderExecution with no active-order bookkeeping.
func (g *Gateway) HandleSignal(signal wire.TradingSignal) {
	orderID := g.nextOrderID.Add(1)
	order := &Order{
		OrderID:   orderID,
		Symbol:    signal.Symbol,
		Action:    signal.Action,
		Type:      signal.OrderType,
		Price:     signal.Price,
		Quantity:  signal.Quantity,
		State:     StateReceived,
		CreatedAt: time.Now(),
	}
	g.ordersProcessed.Add(1)

	if err := validate(signal); err != nil {
		g.logger.Warn("rejected trading signal", zap.String("symbol", signal.Symbol), zap.Error(err))
		order.State = StateRejected
		g.ordersRejected.Add(1)
		g.publish(wire.OrderExecution{
			OrderID:   orderID,
			ExecSeq:   1,
			Symbol:    signal.Symbol,
			Type:      wire.ExecRejected,
			Side:      signal.Action,
			RemainQty: signal.Quantity,
		})
		return
	}
	order.State = StateValidated

	g.mu.Lock()
	g.activeOrders[orderID] = order
	g.mu.Unlock()

	order.State = StateSubmitted
	g.engine.SubmitOrder(orderID, signal.Symbol, signal.Action, signal.OrderType, signal.Price, signal.Quantity)
	g.ingest.Record("gateway.orders_processed", 1, metrics.Counter, g.now())
}

func validate(signal wire.TradingSignal) error {
	if signal.Symbol == "" {
		return fmt.Errorf("gateway: empty symbol")
	}
	if signal.Quantity == 0 {
		return fmt.Errorf("gateway: zero quantity")
	}
	if signal.OrderType == wire.OrderLimit && signal.Price <= 0 {
		return fmt.Errorf("gateway: limit order with non-positive price")
	}
	return nil
}

// HandleExecution is the FillEngine's callback. It de-duplicates by
// (order_id, exec_seq), updates the active order's state, publishes the
// execution, and evicts the order on a terminal state.
func (g *Gateway) HandleExecution(exec wire.OrderExecution) {
	key := dedupKey(exec.OrderID, exec.ExecSeq)
	if _, seen := g.dedup.Get(key); seen {
		g.logger.Debug("dropped duplicate execution", zap.Uint64("order_id", exec.OrderID), zap.Uint32("exec_seq", exec.ExecSeq))
		return
	}
	g.dedup.SetDefault(key, struct{}{})

	g.mu.Lock()
	order, ok := g.activeOrders[exec.OrderID]
	if ok {
		order.FilledQuantity += exec.FillQty
		order.State = stateFor(exec.Type)
		if order.State.terminal() {
			delete(g.activeOrders, exec.OrderID)
			delete(g.lastExecSeq, exec.OrderID)
		} else {
			g.lastExecSeq[exec.OrderID] = exec.ExecSeq
		}
	}
	g.mu.Unlock()

	if exec.Type == wire.ExecFill {
		g.ordersFilled.Add(1)
	}

	g.publish(exec)
}

func stateFor(t wire.ExecType) State {
	switch t {
	case wire.ExecFill:
		return StateFilled
	case wire.ExecPartialFill:
		return StatePartial
	case wire.ExecCancelled:
		return StateCancelled
	case wire.ExecRejected:
		return StateRejected
	default:
		return StateSubmitted
	}
}

func dedupKey(orderID uint64, execSeq uint32) string {
	return fmt.Sprintf("%d:%d", orderID, execSeq)
}

func (g *Gateway) publish(exec wire.OrderExecution) {
	msg := wire.EncodeOrderExecutionMessage(g.now(), exec)
	sent, err := g.sink.Send(msg, true)
	if err != nil || !sent {
		g.logger.Warn("dropped execution publish", zap.Uint64("order_id", exec.OrderID), zap.Error(err))
		return
	}
	g.ingest.Record("gateway.executions_published", 1, metrics.Counter, g.now())
}

// CancelOrder requests cancellation of an active order from the fill
// engine.
func (g *Gateway) CancelOrder(orderID uint64) {
	g.mu.RLock()
	_, ok := g.activeOrders[orderID]
	g.mu.RUnlock()
	if !ok {
		return
	}
	g.engine.CancelOrder(orderID)
}

// ActiveOrder returns a copy of the tracked order for orderID, if still active.
func (g *Gateway) ActiveOrder(orderID uint64) (Order, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	o, ok := g.activeOrders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// ActiveCount returns the number of orders still in flight.
func (g *Gateway) ActiveCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.activeOrders)
}

func (g *Gateway) OrdersProcessed() uint64 { return g.ordersProcessed.Load() }
func (g *Gateway) OrdersFilled() uint64    { return g.ordersFilled.Load() }
func (g *Gateway) OrdersRejected() uint64  { return g.ordersRejected.Load() }
