// Package book maintains per-symbol in-memory Level 2 order books from a
// stream of OrderBookUpdates: ordered price levels (bids descending, asks
// ascending),
// "replace" tie-break semantics, and the VWAP/market-impact/imbalance
// query surface strategies depend on.
package book

import (
	"math"
	"sort"
	"sync"

	"github.com/abdoElHodaky/hft-core/internal/wire"
)

// Book is a single symbol's in-memory order book.
type Book struct {
	mu     sync.RWMutex
	symbol string

	bids map[float64]wire.Level
	asks map[float64]wire.Level

	lastSequence uint64
	lastUpdateNs uint64
}

// New creates an empty book for symbol.
func New(symbol string) *Book {
	return &Book{
		symbol: symbol,
		bids:   make(map[float64]wire.Level),
		asks:   make(map[float64]wire.Level),
	}
}

// Symbol returns the book's symbol.
func (b *Book) Symbol() string { return b.symbol }

// ApplyUpdate mutates the book per u.UpdateType/Side. Returns false (no
// mutation) when u.Sequence <= the last applied sequence:
// stale, duplicate, and out-of-order updates are discarded.
func (b *Book) ApplyUpdate(u wire.OrderBookUpdate, exchangeTsNs uint64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.lastSequence != 0 && u.Sequence <= b.lastSequence {
		return false
	}
	b.lastSequence = u.Sequence
	b.lastUpdateNs = exchangeTsNs

	side := b.bids
	if u.Side == wire.SideAsk {
		side = b.asks
	}
	applyLevel(side, u.UpdateType, u.Level)
	return true
}

func applyLevel(side map[float64]wire.Level, t wire.BookUpdateType, lvl wire.Level) {
	switch t {
	case wire.BookAdd, wire.BookUpdate:
		if lvl.Size > 0 {
			side[lvl.Price] = lvl // replace, not additive
		} else {
			delete(side, lvl.Price)
		}
	case wire.BookDelete:
		delete(side, lvl.Price)
	case wire.BookSnapshot:
		// snapshots go through ApplySnapshot, not per-level updates.
	}
}

// ApplySnapshot replaces the entire book with bids/asks; zero-size
// levels are dropped.
func (b *Book) ApplySnapshot(bids, asks []wire.Level, sequence uint64, exchangeTsNs uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = make(map[float64]wire.Level, len(bids))
	b.asks = make(map[float64]wire.Level, len(asks))
	for _, lvl := range bids {
		if lvl.Size > 0 {
			b.bids[lvl.Price] = lvl
		}
	}
	for _, lvl := range asks {
		if lvl.Size > 0 {
			b.asks[lvl.Price] = lvl
		}
	}
	b.lastSequence = sequence
	b.lastUpdateNs = exchangeTsNs
}

// sortedPrices returns the book's price keys sorted bids-descending or
// asks-ascending as desc indicates.
func sortedPrices(side map[float64]wire.Level, desc bool) []float64 {
	prices := make([]float64, 0, len(side))
	for p := range side {
		prices = append(prices, p)
	}
	if desc {
		sort.Sort(sort.Reverse(sort.Float64Slice(prices)))
	} else {
		sort.Float64s(prices)
	}
	return prices
}

// BestBid returns the highest bid price, or (0, false) if the book has no bids.
func (b *Book) BestBid() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestLocked(b.bids, true)
}

// BestAsk returns the lowest ask price, or (0, false) if the book has no asks.
func (b *Book) BestAsk() (float64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bestLocked(b.asks, false)
}

func (b *Book) bestLocked(side map[float64]wire.Level, desc bool) (float64, bool) {
	if len(side) == 0 {
		return 0, false
	}
	prices := sortedPrices(side, desc)
	return prices[0], true
}

// Mid returns the mid price, or 0 if either side is empty.
func (b *Book) Mid() float64 {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if okB && okA {
		return (bid + ask) / 2
	}
	return 0
}

// Spread returns best ask minus best bid, or 0 if either side is empty.
func (b *Book) Spread() float64 {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if okB && okA {
		return ask - bid
	}
	return 0
}

// SizeAtLevel returns the size at the given depth index (0 = best) on side.
func (b *Book) SizeAtLevel(side wire.BookSide, level int) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, desc := b.sideMap(side)
	prices := sortedPrices(m, desc)
	if level < 0 || level >= len(prices) {
		return 0
	}
	return m[prices[level]].Size
}

func (b *Book) sideMap(side wire.BookSide) (map[float64]wire.Level, bool) {
	if side == wire.SideBid {
		return b.bids, true
	}
	return b.asks, false
}

// VWAP returns the volume-weighted average price to fill shares by
// walking the book on side from the touch outward; 0 if the side is
// empty or shares is 0.
func (b *Book) VWAP(side wire.BookSide, shares uint32) float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if shares == 0 {
		return 0
	}
	m, desc := b.sideMap(side)
	if len(m) == 0 {
		return 0
	}
	remaining := shares
	var totalCost float64
	var totalShares uint32
	for _, price := range sortedPrices(m, desc) {
		lvl := m[price]
		take := lvl.Size
		if take > remaining {
			take = remaining
		}
		totalCost += price * float64(take)
		totalShares += take
		remaining -= take
		if remaining == 0 {
			break
		}
	}
	if totalShares == 0 {
		return 0
	}
	return totalCost / float64(totalShares)
}

// MarketImpact returns |vwap - touch| / touch for filling shares on side.
func (b *Book) MarketImpact(side wire.BookSide, shares uint32) float64 {
	if shares == 0 {
		return 0
	}
	var touch float64
	if side == wire.SideBid {
		touch, _ = b.BestBid()
	} else {
		touch, _ = b.BestAsk()
	}
	vwap := b.VWAP(side, shares)
	if touch > 0 && vwap > 0 {
		return math.Abs(vwap-touch) / touch
	}
	return 0
}

// TotalSize sums the size of the top `levels` price levels on side.
func (b *Book) TotalSize(side wire.BookSide, levels int) uint32 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, desc := b.sideMap(side)
	prices := sortedPrices(m, desc)
	var total uint32
	for i, p := range prices {
		if i >= levels {
			break
		}
		total += m[p].Size
	}
	return total
}

// Imbalance returns (bidSize-askSize)/(bidSize+askSize) at the touch, 0 if
// both touch sizes are zero.
func (b *Book) Imbalance() float64 {
	bidSize := b.SizeAtLevel(wire.SideBid, 0)
	askSize := b.SizeAtLevel(wire.SideAsk, 0)
	if bidSize+askSize == 0 {
		return 0
	}
	return float64(int64(bidSize)-int64(askSize)) / float64(bidSize+askSize)
}

// Depth returns the number of distinct price levels on side.
func (b *Book) Depth(side wire.BookSide) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	m, _ := b.sideMap(side)
	return len(m)
}

// IsValid reports whether the book satisfies best_bid < best_ask, or one
// side is empty.
func (b *Book) IsValid() bool {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if okB && okA {
		return bid < ask
	}
	return true
}

// LastUpdateNs returns the exchange timestamp of the most recently
// applied update.
func (b *Book) LastUpdateNs() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastUpdateNs
}

// LastSequence returns the last applied exchange sequence number.
func (b *Book) LastSequence() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSequence
}
