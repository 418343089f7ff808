package risk

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// Severity is the level at which a RiskAlert is surfaced.
type Severity uint8

const (
	Info Severity = iota
	Warning
	Critical
)

func (sev Severity) String() string {
	switch sev {
	case Warning:
		return "WARNING"
	case Critical:
		return "CRITICAL"
	default:
		return "INFO"
	}
}

// RiskAlert is surfaced on the logging bus whenever a limit check fails.
// A pre-trade alert denies the signal; a post-trade alert is
// informational.
type RiskAlert struct {
	Symbol    string
	Severity  Severity
	Message   string
	LimitType string
	Current   float64
	Limit     float64
	PreTrade  bool
}

// Limits holds the three risk bounds this service evaluates. A zero
// value disables that bound.
type Limits struct {
	MaxPositionValue       float64
	MaxDailyLoss           float64
	PositionLimitPerSymbol uint32
}

// PositionSink is the minimal publish contract the positions transport
// satisfies.
type PositionSink interface {
	Send(data []byte, nonBlocking bool) (bool, error)
}

// AlertFunc receives every RiskAlert the service raises, pre- or
// post-trade. nil is a valid value (alerts are then only logged).
type AlertFunc func(RiskAlert)

// NowFunc returns the current time in nanoseconds.
type NowFunc func() uint64

// Service maintains per-symbol positions from the executions and
// market-data streams and centralizes pre-/post-trade risk evaluation;
// it is the sole risk authority on both paths.
type Service struct {
	mu        sync.RWMutex
	positions map[string]*Position

	limits          Limits
	dailyRealizedAt time.Time // UTC day this dailyRealized tally covers
	dailyRealized   float64

	sink   PositionSink
	alert  AlertFunc
	ingest *metrics.Ingest
	now    NowFunc
	logger *zap.Logger
}

// NewService creates a risk/position service publishing position updates
// on sink and surfacing risk alerts via alert (may be nil).
func NewService(limits Limits, sink PositionSink, alert AlertFunc, collector *metrics.Collector, now NowFunc, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		positions: make(map[string]*Position),
		limits:    limits,
		sink:      sink,
		alert:     alert,
		ingest:    metrics.NewIngest(collector),
		now:       now,
		logger:    logger,
	}
}

func (s *Service) positionFor(symbol string) *Position {
	p, ok := s.positions[symbol]
	if !ok {
		p = &Position{Symbol: symbol}
		s.positions[symbol] = p
	}
	return p
}

// HandleExecution updates the symbol's position from a fill using the
// cost-basis rule in position.go, and publishes a PositionUpdate. Only
// FILL/PARTIAL_FILL executions move positions.
func (s *Service) HandleExecution(exec wire.OrderExecution) {
	if exec.Type != wire.ExecFill && exec.Type != wire.ExecPartialFill {
		return
	}
	now := s.now()
	at := time.Unix(0, int64(now))

	s.mu.Lock()
	p := s.positionFor(exec.Symbol)
	before := p.RealizedPL
	applyFill(p, sideFor(exec.Side), exec.FillPrice, float64(exec.FillQty), at)
	p.LastPrice = exec.FillPrice
	p.UnrealizedPL = (p.LastPrice - p.AvgPrice) * p.Quantity
	s.addRealized(p.RealizedPL-before, at)
	snap := *p
	s.mu.Unlock()

	s.ingest.Record("risk.positions_updated", 1, metrics.Counter, now)
	s.publish(snap, now)
	s.evaluatePostTrade(snap)
}

// HandleMarketData marks a symbol's tracked position to market and
// publishes an updated PositionUpdate.
func (s *Service) HandleMarketData(tick wire.MarketData) {
	mid := tick.Mid()
	if mid == 0 {
		return
	}
	now := s.now()

	s.mu.Lock()
	p, ok := s.positions[tick.Symbol]
	if !ok || p.Quantity == 0 {
		s.mu.Unlock()
		return
	}
	p.LastPrice = mid
	p.UnrealizedPL = (p.LastPrice - p.AvgPrice) * p.Quantity
	p.LastUpdate = time.Unix(0, int64(now))
	snap := *p
	s.mu.Unlock()

	s.publish(snap, now)
	s.evaluatePostTrade(snap)
}

func (s *Service) addRealized(delta float64, at time.Time) {
	day := at.Truncate(24 * time.Hour)
	if !s.dailyRealizedAt.Equal(day) {
		s.dailyRealizedAt = day
		s.dailyRealized = 0
	}
	s.dailyRealized += delta
}

// CheckSignal evaluates signal against the configured Limits before the
// gateway is allowed to submit it: denies if projected notional would
// exceed MaxPositionValue, if today's realized+unrealized P&L would fall
// below -MaxDailyLoss, or if the requested quantity exceeds
// PositionLimitPerSymbol. Acceptance is silent: (true, nil).
func (s *Service) CheckSignal(signal wire.TradingSignal) (bool, *RiskAlert) {
	s.mu.RLock()
	p, ok := s.positions[signal.Symbol]
	dailyRealized := s.dailyRealized
	s.mu.RUnlock()

	if s.limits.PositionLimitPerSymbol > 0 && signal.Quantity > s.limits.PositionLimitPerSymbol {
		alert := &RiskAlert{
			Symbol: signal.Symbol, Severity: Warning, PreTrade: true,
			LimitType: "position_limit_per_symbol",
			Current:   float64(signal.Quantity), Limit: float64(s.limits.PositionLimitPerSymbol),
			Message: "signal quantity exceeds per-symbol position limit",
		}
		s.raise(*alert)
		return false, alert
	}

	if ok && s.limits.MaxPositionValue > 0 {
		projectedQty := p.Quantity
		if signal.Action == wire.ActionBuy {
			projectedQty += float64(signal.Quantity)
		} else if signal.Action == wire.ActionSell {
			projectedQty -= float64(signal.Quantity)
		}
		projectedValue := projectedQty * p.LastPrice
		if abs(projectedValue) > s.limits.MaxPositionValue {
			alert := &RiskAlert{
				Symbol: signal.Symbol, Severity: Critical, PreTrade: true,
				LimitType: "max_position_value",
				Current:   abs(projectedValue), Limit: s.limits.MaxPositionValue,
				Message: "projected position value exceeds max_position_value",
			}
			s.raise(*alert)
			return false, alert
		}
	}

	if s.limits.MaxDailyLoss > 0 && ok {
		total := dailyRealized + p.UnrealizedPL
		if total < -s.limits.MaxDailyLoss {
			alert := &RiskAlert{
				Symbol: signal.Symbol, Severity: Critical, PreTrade: true,
				LimitType: "max_daily_loss",
				Current:   total, Limit: -s.limits.MaxDailyLoss,
				Message: "realized+unrealized P&L breaches max_daily_loss",
			}
			s.raise(*alert)
			return false, alert
		}
	}

	return true, nil
}

// evaluatePostTrade re-checks the daily-loss limit informationally after
// a position changes; breaches here never deny anything, they only
// surface an alert.
func (s *Service) evaluatePostTrade(p Position) {
	if s.limits.MaxDailyLoss <= 0 {
		return
	}
	s.mu.RLock()
	total := s.dailyRealized + p.UnrealizedPL
	s.mu.RUnlock()
	if total < -s.limits.MaxDailyLoss {
		s.raise(RiskAlert{
			Symbol: p.Symbol, Severity: Warning, PreTrade: false,
			LimitType: "max_daily_loss", Current: total, Limit: -s.limits.MaxDailyLoss,
			Message: "realized+unrealized P&L below max_daily_loss (informational)",
		})
	}
}

func (s *Service) raise(a RiskAlert) {
	field := zap.String("symbol", a.Symbol)
	switch a.Severity {
	case Critical:
		s.logger.Error(a.Message, field, zap.String("limit_type", a.LimitType), zap.Float64("current", a.Current), zap.Float64("limit", a.Limit))
	case Warning:
		s.logger.Warn(a.Message, field, zap.String("limit_type", a.LimitType))
	default:
		s.logger.Info(a.Message, field, zap.String("limit_type", a.LimitType))
	}
	s.ingest.Record("risk.alerts", 1, metrics.Counter, s.now())
	if s.alert != nil {
		s.alert(a)
	}
}

func (s *Service) publish(p Position, now uint64) {
	if s.sink == nil {
		return
	}
	update := wire.PositionUpdate{
		Symbol:        p.Symbol,
		NetQuantity:   p.Quantity,
		AvgCost:       p.AvgPrice,
		UnrealizedPnL: p.UnrealizedPL,
		RealizedPnL:   p.RealizedPL,
		MarketValue:   p.MarketValue(),
	}
	msg := wire.EncodePositionUpdateMessage(now, update)
	sent, err := s.sink.Send(msg, true)
	if err != nil || !sent {
		s.logger.Warn("dropped position update publish", zap.String("symbol", p.Symbol), zap.Error(err))
		return
	}
	s.ingest.Record("risk.position_updates_published", 1, metrics.Counter, now)
}

// Position returns a copy of the tracked position for symbol, if any.
func (s *Service) Position(symbol string) (Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[symbol]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
