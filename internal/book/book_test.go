package book

import (
	"testing"

	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBookAssemblyFromSnapshot(t *testing.T) {
	b := New("AAPL")
	b.ApplySnapshot(
		[]wire.Level{{Price: 100, Size: 10}, {Price: 99, Size: 5}},
		[]wire.Level{{Price: 101, Size: 7}, {Price: 102, Size: 3}},
		1, 1000,
	)

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, 100.0, bid)

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.Equal(t, 101.0, ask)

	assert.Equal(t, 100.5, b.Mid())
	assert.Equal(t, 1.0, b.Spread())
	assert.InDelta(t, float64(10-7)/17, b.Imbalance(), 1e-9)
}

func TestBookOutOfOrderUpdateDiscarded(t *testing.T) {
	b := New("AAPL")
	b.ApplySnapshot(
		[]wire.Level{{Price: 100, Size: 10}},
		[]wire.Level{{Price: 101, Size: 7}},
		1, 1000,
	)

	applied := b.ApplyUpdate(wire.OrderBookUpdate{
		Symbol: "AAPL", UpdateType: wire.BookUpdate, Side: wire.SideBid,
		Level: wire.Level{Price: 100, Size: 15}, Sequence: 5,
	}, 2000)
	require.True(t, applied)
	assert.Equal(t, uint32(15), b.SizeAtLevel(wire.SideBid, 0))

	applied = b.ApplyUpdate(wire.OrderBookUpdate{
		Symbol: "AAPL", UpdateType: wire.BookUpdate, Side: wire.SideBid,
		Level: wire.Level{Price: 100, Size: 1}, Sequence: 4,
	}, 3000)
	assert.False(t, applied)
	assert.Equal(t, uint32(15), b.SizeAtLevel(wire.SideBid, 0))
	assert.Equal(t, uint64(2000), b.LastUpdateNs())
}

func TestBookZeroSizeUpdateDeletesLevel(t *testing.T) {
	b := New("AAPL")
	b.ApplySnapshot([]wire.Level{{Price: 100, Size: 10}}, nil, 1, 1)
	ok := b.ApplyUpdate(wire.OrderBookUpdate{
		Symbol: "AAPL", UpdateType: wire.BookUpdate, Side: wire.SideBid,
		Level: wire.Level{Price: 100, Size: 0}, Sequence: 2,
	}, 2)
	require.True(t, ok)
	_, found := b.BestBid()
	assert.False(t, found)
	assert.Equal(t, 0, b.Depth(wire.SideBid))
}

func TestBookDeleteUpdateRemovesLevel(t *testing.T) {
	b := New("AAPL")
	b.ApplySnapshot([]wire.Level{{Price: 100, Size: 10}, {Price: 99, Size: 3}}, nil, 1, 1)
	ok := b.ApplyUpdate(wire.OrderBookUpdate{
		Symbol: "AAPL", UpdateType: wire.BookDelete, Side: wire.SideBid,
		Level: wire.Level{Price: 100}, Sequence: 2,
	}, 2)
	require.True(t, ok)
	bid, _ := b.BestBid()
	assert.Equal(t, 99.0, bid)
}

func TestBookVWAPWalksMultipleLevels(t *testing.T) {
	b := New("AAPL")
	b.ApplySnapshot(nil, []wire.Level{{Price: 101, Size: 5}, {Price: 102, Size: 5}}, 1, 1)
	// 8 shares: 5 @ 101 + 3 @ 102 => (505+306)/8 = 101.375
	vwap := b.VWAP(wire.SideAsk, 8)
	assert.InDelta(t, 101.375, vwap, 1e-9)
}

func TestBookIsValidWhenCrossed(t *testing.T) {
	b := New("AAPL")
	b.ApplySnapshot([]wire.Level{{Price: 102, Size: 1}}, []wire.Level{{Price: 101, Size: 1}}, 1, 1)
	assert.False(t, b.IsValid())
}

func TestBookReplaceIsNotAdditive(t *testing.T) {
	b := New("AAPL")
	b.ApplySnapshot([]wire.Level{{Price: 100, Size: 10}}, nil, 1, 1)
	b.ApplyUpdate(wire.OrderBookUpdate{
		Symbol: "AAPL", UpdateType: wire.BookUpdate, Side: wire.SideBid,
		Level: wire.Level{Price: 100, Size: 4}, Sequence: 2,
	}, 2)
	assert.Equal(t, uint32(4), b.SizeAtLevel(wire.SideBid, 0))
}

func TestManagerAutoCreatesBooksPerSymbol(t *testing.T) {
	m := NewManager()
	m.ProcessUpdate(wire.OrderBookUpdate{
		Symbol: "AAPL", UpdateType: wire.BookAdd, Side: wire.SideBid,
		Level: wire.Level{Price: 100, Size: 1}, Sequence: 1,
	}, 1)
	m.ProcessUpdate(wire.OrderBookUpdate{
		Symbol: "MSFT", UpdateType: wire.BookAdd, Side: wire.SideAsk,
		Level: wire.Level{Price: 200, Size: 1}, Sequence: 1,
	}, 1)
	assert.Equal(t, 2, m.Count())
	assert.ElementsMatch(t, []string{"AAPL", "MSFT"}, m.Symbols())
}
