package strategy

import (
	"context"
	"sync"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/book"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/google/uuid"
	"github.com/markcheno/go-talib"
	"github.com/panjf2000/ants/v2"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"
)

// MarketMakingParams tunes quote width, size, and inventory bounds.
type MarketMakingParams struct {
	SpreadThreshold    float64
	QuoteSizeRatio     float64
	MaxInventory       float64
	InventorySkewFactor float64
	MinQuoteSize       uint32
	MaxQuoteSize       uint32
}

// DefaultMarketMakingParams returns conservative defaults.
func DefaultMarketMakingParams() MarketMakingParams {
	return MarketMakingParams{
		SpreadThreshold:     0.001,
		QuoteSizeRatio:      0.1,
		MaxInventory:        1000.0,
		InventorySkewFactor: 0.5,
		MinQuoteSize:        100,
		MaxQuoteSize:        500,
	}
}

// MarketMakingStrategy quotes both sides of the book when the spread is
// wide enough, skewing its quote prices by current inventory to
// mean-revert its position.
type MarketMakingStrategy struct {
	id     uint64
	name   string
	signal SignalHandle
	logger *zap.Logger
	nowFn  NowFunc

	params MarketMakingParams
	books  *book.Manager
	pool   *ants.Pool
	limit  *limiter.Limiter

	mu         sync.Mutex
	positions  map[string]float64
	lastQuote  map[string]uint64 // nanoseconds, per nowFn
}

// NewMarketMakingStrategy creates a market-making strategy with a bounded
// worker pool (panjf2000/ants) fanning quote evaluation across symbols,
// and a per-symbol rate limiter (ulule/limiter) enforcing the >=100ms
// quote refresh floor.
func NewMarketMakingStrategy(signal SignalHandle, books *book.Manager, now NowFunc, logger *zap.Logger) (*MarketMakingStrategy, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	pool, err := ants.NewPool(16)
	if err != nil {
		return nil, err
	}
	rate := limiter.Rate{Period: 100 * time.Millisecond, Limit: 1}
	lim := limiter.New(memory.NewStore(), rate)

	return &MarketMakingStrategy{
		id:        uuidToID(uuid.New()),
		name:      "MarketMakingStrategy",
		signal:    signal,
		logger:    logger,
		nowFn:     now,
		params:    DefaultMarketMakingParams(),
		books:     books,
		pool:      pool,
		limit:     lim,
		positions: make(map[string]float64),
		lastQuote: make(map[string]uint64),
	}, nil
}

func (s *MarketMakingStrategy) ID() uint64   { return s.id }
func (s *MarketMakingStrategy) Name() string { return s.name }

// OnMarketData hands off quote evaluation to the bounded worker pool so a
// burst of ticks across many symbols doesn't serialize behind one slow
// evaluation.
func (s *MarketMakingStrategy) OnMarketData(tick wire.MarketData) {
	symbol := tick.Symbol
	err := s.pool.Submit(func() {
		s.evaluate(symbol)
	})
	if err != nil {
		s.logger.Warn("market making pool saturated, evaluating inline", zap.Error(err))
		s.evaluate(symbol)
	}
}

func (s *MarketMakingStrategy) evaluate(symbol string) {
	b := s.books.Get(symbol)
	bid, okBid := b.BestBid()
	ask, okAsk := b.BestAsk()
	if !okBid || !okAsk || bid <= 0 {
		return
	}
	spread := (ask - bid) / bid
	if spread < s.params.SpreadThreshold {
		return
	}
	if !s.shouldQuote(symbol) {
		return
	}

	s.mu.Lock()
	inv := s.positions[symbol]
	s.mu.Unlock()

	fair := (bid + ask) / 2
	skew := s.quoteSkew(symbol)
	quoteSize := s.quoteSize(b)

	s.markQuoted(symbol)

	// Max inventory bounds each side before emission: a full long book
	// stops bidding, a full short book stops offering.
	if inv < s.params.MaxInventory {
		s.signal(wire.TradingSignal{
			Symbol: symbol, Action: wire.ActionBuy, OrderType: wire.OrderLimit,
			Price: fair*(1-skew) - spread*fair/2, Quantity: quoteSize,
			StrategyID: s.id, Confidence: 1.0,
		})
	}
	if inv > -s.params.MaxInventory {
		s.signal(wire.TradingSignal{
			Symbol: symbol, Action: wire.ActionSell, OrderType: wire.OrderLimit,
			Price: fair*(1-skew) + spread*fair/2, Quantity: quoteSize,
			StrategyID: s.id, Confidence: 1.0,
		})
	}
}

func (s *MarketMakingStrategy) shouldQuote(symbol string) bool {
	ctx, err := s.limit.Get(context.Background(), "marketmaking:"+symbol)
	if err != nil {
		// Rate limiter store errors fail open to the interval check below
		// rather than silently disabling quoting.
		return s.intervalElapsed(symbol)
	}
	return ctx.Reached == false && s.intervalElapsed(symbol)
}

func (s *MarketMakingStrategy) intervalElapsed(symbol string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastQuote[symbol]
	return !ok || time.Duration(s.nowFn()-last) >= 100*time.Millisecond
}

func (s *MarketMakingStrategy) markQuoted(symbol string) {
	s.mu.Lock()
	s.lastQuote[symbol] = s.nowFn()
	s.mu.Unlock()
}

// quoteSkew biases the quote midpoint against current inventory so the
// strategy mean-reverts its position.
func (s *MarketMakingStrategy) quoteSkew(symbol string) float64 {
	s.mu.Lock()
	inv := s.positions[symbol]
	s.mu.Unlock()
	return (inv / s.params.MaxInventory) * s.params.InventorySkewFactor
}

func (s *MarketMakingStrategy) quoteSize(b *book.Book) uint32 {
	touch := b.SizeAtLevel(wire.SideBid, 0)
	size := uint32(float64(touch) * s.params.QuoteSizeRatio)
	if size < s.params.MinQuoteSize {
		size = s.params.MinQuoteSize
	}
	if size > s.params.MaxQuoteSize {
		size = s.params.MaxQuoteSize
	}
	return size
}

// OnExecution updates the strategy's tracked inventory for the filled
// symbol, which feeds back into future quote skew.
func (s *MarketMakingStrategy) OnExecution(exec wire.OrderExecution) {
	if exec.Type != wire.ExecFill && exec.Type != wire.ExecPartialFill {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delta := float64(exec.FillQty)
	if exec.Side == wire.ActionSell {
		delta = -delta
	}
	s.positions[exec.Symbol] += delta
}

// talibSMA exposes a moving average helper via go-talib for strategies
// that want to smooth a price series before evaluating a signal — used
// by OrderBookMomentumStrategy's momentum score.
func talibSMA(series []float64, period int) []float64 {
	if len(series) < period {
		return nil
	}
	return talib.Sma(series, period)
}

func uuidToID(u uuid.UUID) uint64 {
	b := u[:8]
	var id uint64
	for _, v := range b {
		id = (id << 8) | uint64(v)
	}
	return id
}
