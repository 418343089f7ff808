package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApplyFillOpensAndAveragesLong(t *testing.T) {
	p := &Position{Symbol: "AAPL"}
	at := time.Unix(0, 0)

	applyFill(p, 1, 100.0, 100, at)
	assert.Equal(t, 100.0, p.Quantity)
	assert.Equal(t, 100.0, p.AvgPrice)

	applyFill(p, 1, 110.0, 100, at)
	assert.Equal(t, 200.0, p.Quantity)
	assert.Equal(t, 105.0, p.AvgPrice)
	assert.Equal(t, 0.0, p.RealizedPL)
}

func TestApplyFillReducingLongRealizesPL(t *testing.T) {
	p := &Position{Symbol: "AAPL"}
	at := time.Unix(0, 0)

	applyFill(p, 1, 100.0, 100, at)
	applyFill(p, -1, 110.0, 40, at)

	assert.Equal(t, 60.0, p.Quantity)
	assert.Equal(t, 100.0, p.AvgPrice) // reductions never move the average
	assert.InDelta(t, 400.0, p.RealizedPL, 1e-9)
}

func TestApplyFillCoveringShortRealizesProfitWhenPriceFalls(t *testing.T) {
	p := &Position{Symbol: "AAPL"}
	at := time.Unix(0, 0)

	applyFill(p, -1, 100.0, 100, at) // short 100 @ 100
	applyFill(p, 1, 95.0, 100, at)   // cover @ 95

	assert.Equal(t, 0.0, p.Quantity)
	assert.Equal(t, 0.0, p.AvgPrice)
	assert.InDelta(t, 500.0, p.RealizedPL, 1e-9)
}

func TestApplyFillCrossingZeroResetsAverageToFillPrice(t *testing.T) {
	p := &Position{Symbol: "AAPL"}
	at := time.Unix(0, 0)

	applyFill(p, 1, 100.0, 100, at)
	applyFill(p, -1, 105.0, 150, at) // close 100, establish short 50 @ 105

	assert.Equal(t, -50.0, p.Quantity)
	assert.Equal(t, 105.0, p.AvgPrice)
	// only the closing 100 shares realize P&L
	assert.InDelta(t, 500.0, p.RealizedPL, 1e-9)
}

func TestApplyFillFlatPositionHasZeroAverage(t *testing.T) {
	p := &Position{Symbol: "AAPL"}
	at := time.Unix(0, 0)

	applyFill(p, 1, 100.0, 100, at)
	applyFill(p, -1, 100.0, 100, at)

	assert.Equal(t, 0.0, p.Quantity)
	assert.Equal(t, 0.0, p.AvgPrice)
}
