package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarketDataRoundTrip(t *testing.T) {
	md := MarketData{
		Symbol:       "AAPL",
		BidPrice:     189.50,
		AskPrice:     189.52,
		BidSize:      100,
		AskSize:      200,
		LastPrice:    189.51,
		LastSize:     50,
		ExchangeTsNs: 1234567890,
	}
	require.True(t, md.Valid())

	msg := EncodeMarketDataMessage(42, md)
	h := DecodeHeader(msg)
	assert.Equal(t, TypeMarketData, h.Type)
	assert.Equal(t, uint64(42), h.TimestampNs)
	assert.Equal(t, int(h.PayloadSize), len(msg)-HeaderSize)

	got := DecodeMarketData(msg[HeaderSize:])
	assert.Equal(t, md, got)
}

func TestMarketDataInvalidCrossedBook(t *testing.T) {
	md := MarketData{Symbol: "X", BidPrice: 10, AskPrice: 9}
	assert.False(t, md.Valid())
}

func TestTradingSignalRoundTrip(t *testing.T) {
	s := TradingSignal{
		Symbol:     "MSFT",
		Action:     ActionBuy,
		OrderType:  OrderLimit,
		Price:      410.25,
		Quantity:   10,
		StrategyID: 7,
		Confidence: 0.82,
	}
	msg := EncodeTradingSignalMessage(1, s)
	got := DecodeTradingSignal(msg[HeaderSize:])
	assert.Equal(t, s, got)
}

func TestOrderExecutionRoundTrip(t *testing.T) {
	e := OrderExecution{
		OrderID:    99,
		ExecSeq:    3,
		Symbol:     "TSLA",
		Type:       ExecPartialFill,
		Side:       ActionSell,
		FillPrice:  250.1,
		FillQty:    40,
		RemainQty:  60,
		Commission: 1.23,
	}
	msg := EncodeOrderExecutionMessage(2, e)
	got := DecodeOrderExecution(msg[HeaderSize:])
	assert.Equal(t, e, got)
}

func TestPositionUpdateRoundTrip(t *testing.T) {
	p := PositionUpdate{
		Symbol:        "SPY",
		NetQuantity:   -50,
		AvgCost:       450.0,
		UnrealizedPnL: 12.5,
		RealizedPnL:   -3.0,
		MarketValue:   22500,
	}
	msg := EncodePositionUpdateMessage(3, p)
	got := DecodePositionUpdate(msg[HeaderSize:])
	assert.Equal(t, p, got)
}

func TestOrderBookUpdateRoundTrip(t *testing.T) {
	u := OrderBookUpdate{
		Symbol:     "AAPL",
		UpdateType: BookUpdate,
		Side:       SideBid,
		Level:      Level{Price: 100.0, Size: 15, OrderCount: 2},
		Sequence:   5,
	}
	msg := EncodeOrderBookUpdateMessage(4, u)
	got := DecodeOrderBookUpdate(msg[HeaderSize:])
	assert.Equal(t, u, got)
}

func TestMetricsSnapshotRoundTrip(t *testing.T) {
	snap := MetricsSnapshot{
		ServiceName: "marketdata",
		TimestampNs: 555,
		Metrics: []MetricSample{
			{Name: "tick_latency_ns", Value: 1500, Kind: MetricLatency},
			{Name: "messages_processed", Value: 42, Kind: MetricCounter},
		},
	}
	msg := EncodeMetricsSnapshotMessage(5, snap)
	got := DecodeMetricsSnapshot(msg[HeaderSize:])
	assert.Equal(t, snap, got)
}

func TestControlMessageRoundTrip(t *testing.T) {
	c := ControlMessage{Command: CmdUpdateConfig, Payload: "risk.max_position_value=100000"}
	msg := EncodeControlMessage(6, c)
	got := DecodeControlMessage(msg[HeaderSize:])
	assert.Equal(t, c, got)
}

func TestSequenceMonotonic(t *testing.T) {
	a := NextSequence()
	b := NextSequence()
	assert.Greater(t, b, a)
}

func TestFixedStringTruncatesAndPads(t *testing.T) {
	b := FixedString("AB", 5)
	assert.Equal(t, []byte{'A', 'B', 0, 0, 0}, b)
	assert.Equal(t, "AB", ParseFixedString(b))

	b2 := FixedString("TOOLONGSYMBOL", 4)
	assert.Len(t, b2, 4)
}
