// Package risk maintains per-symbol positions from the executions stream,
// marks them to market from the market-data stream, and evaluates
// pre-trade risk limits.
package risk

import (
	"time"

	"github.com/abdoElHodaky/hft-core/internal/wire"
)

// Position is one symbol's signed net position and its cost basis.
type Position struct {
	Symbol       string
	Quantity     float64
	AvgPrice     float64
	LastPrice    float64
	UnrealizedPL float64
	RealizedPL   float64
	LastUpdate   time.Time
}

// MarketValue returns the position's mark-to-market notional.
func (p Position) MarketValue() float64 {
	return p.LastPrice * p.Quantity
}

// applyFill updates a position using the standard cost-basis rule:
// additions weight the average by fill price; reductions realize P&L at
// the prevailing average price; crossing zero resets the average to this
// trade's fill price.
func applyFill(p *Position, side float64, fillPrice float64, fillQty float64, at time.Time) {
	qtyChange := side * fillQty
	oldQty := p.Quantity
	newQty := oldQty + qtyChange

	sameDirection := (oldQty >= 0 && qtyChange > 0) || (oldQty <= 0 && qtyChange < 0)
	switch {
	case oldQty == 0 || sameDirection:
		totalValue := oldQty*p.AvgPrice + qtyChange*fillPrice
		if newQty != 0 {
			p.AvgPrice = totalValue / newQty
		} else {
			p.AvgPrice = 0
		}
	default:
		// Reducing or reversing through zero: only the portion that
		// closes the existing position realizes P&L, at the prevailing
		// average price. Longs realize (fill - avg), shorts (avg - fill).
		closed := fillQty
		if closed > abs(oldQty) {
			closed = abs(oldQty)
		}
		realized := (fillPrice - p.AvgPrice) * closed
		if oldQty < 0 {
			realized = -realized
		}
		p.RealizedPL += realized
		if newQty == 0 {
			p.AvgPrice = 0
		} else if (oldQty > 0 && newQty < 0) || (oldQty < 0 && newQty > 0) {
			// Crossed zero: the excess establishes a fresh position at
			// this trade's fill price.
			p.AvgPrice = fillPrice
		}
	}

	p.Quantity = newQty
	p.LastUpdate = at
}

func sideFor(action wire.SignalAction) float64 {
	if action == wire.ActionSell {
		return -1
	}
	return 1
}
