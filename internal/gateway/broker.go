package gateway

import (
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// BrokerAdapter is the contract a live broker wrapper satisfies. The
// wrapper itself (REST/WebSocket plumbing, credentials, rate limits)
// lives outside this module; the gateway only needs this surface.
type BrokerAdapter interface {
	SubmitMarketOrder(orderID uint64, symbol string, action wire.SignalAction, quantity uint32) error
	SubmitLimitOrder(orderID uint64, symbol string, action wire.SignalAction, price float64, quantity uint32) error
	CancelOrder(orderID uint64) error
	GetOrderStatus(orderID uint64) (State, error)
	IsMarketOpen() bool
	GetBuyingPower() (float64, error)
}

// BrokerEngine adapts a BrokerAdapter to the FillEngine interface the
// gateway drives, so live and paper modes share one submission path.
// Submission errors are logged; the broker's own execution stream is
// expected to carry the authoritative REJECTED if one applies.
type BrokerEngine struct {
	adapter BrokerAdapter
	logger  *zap.Logger
}

// NewBrokerEngine wraps adapter as a FillEngine.
func NewBrokerEngine(adapter BrokerAdapter, logger *zap.Logger) *BrokerEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BrokerEngine{adapter: adapter, logger: logger}
}

func (e *BrokerEngine) SubmitOrder(orderID uint64, symbol string, action wire.SignalAction, orderType wire.OrderType, price float64, quantity uint32) {
	var err error
	if orderType == wire.OrderMarket {
		err = e.adapter.SubmitMarketOrder(orderID, symbol, action, quantity)
	} else {
		err = e.adapter.SubmitLimitOrder(orderID, symbol, action, price, quantity)
	}
	if err != nil {
		e.logger.Warn("broker order submission failed",
			zap.Uint64("order_id", orderID), zap.String("symbol", symbol), zap.Error(err))
	}
}

func (e *BrokerEngine) CancelOrder(orderID uint64) {
	if err := e.adapter.CancelOrder(orderID); err != nil {
		e.logger.Warn("broker cancel failed", zap.Uint64("order_id", orderID), zap.Error(err))
	}
}
