package marketdata

import (
	"testing"

	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	ticks []wire.MarketData
	idx   int
}

func (f *fakeSource) Next() (wire.MarketData, bool) {
	if f.idx >= len(f.ticks) {
		return wire.MarketData{}, false
	}
	t := f.ticks[f.idx]
	f.idx++
	return t, true
}

type fakeSink struct {
	sent   [][]byte
	reject bool
}

func (f *fakeSink) Send(data []byte, nonBlocking bool) (bool, error) {
	if f.reject {
		return false, nil
	}
	f.sent = append(f.sent, data)
	return true, nil
}

func fixedNow() uint64 { return 42 }

func TestServicePublishesValidTicks(t *testing.T) {
	src := &fakeSource{ticks: []wire.MarketData{
		{Symbol: "AAPL", BidPrice: 100, AskPrice: 101, BidSize: 10, AskSize: 10},
	}}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	svc := NewService(src, sink, c, fixedNow, nil)

	svc.Run()

	require.Len(t, sink.sent, 1)
	h := wire.DecodeHeader(sink.sent[0])
	assert.Equal(t, wire.TypeMarketData, h.Type)
	assert.Equal(t, uint64(0), svc.Drops())
}

func TestServiceDiscardsInvalidTick(t *testing.T) {
	src := &fakeSource{ticks: []wire.MarketData{
		{Symbol: "AAPL", BidPrice: 101, AskPrice: 100}, // crossed, invalid
	}}
	sink := &fakeSink{}
	c := metrics.NewCollector()
	svc := NewService(src, sink, c, fixedNow, nil)

	svc.Run()

	assert.Empty(t, sink.sent)
}

func TestServiceCountsDropsOnBackpressure(t *testing.T) {
	src := &fakeSource{ticks: []wire.MarketData{
		{Symbol: "AAPL", BidPrice: 100, AskPrice: 101},
	}}
	sink := &fakeSink{reject: true}
	c := metrics.NewCollector()
	svc := NewService(src, sink, c, fixedNow, nil)

	svc.Run()

	assert.Equal(t, uint64(1), svc.Drops())
}
