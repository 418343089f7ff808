// Package marketdata implements the market-data fan-out service:
// it ingests normalized ticks from a source adapter — live feed or
// historical replay, both satisfy the same Source contract — stamps the
// wire header, and publishes on the market-data transport, recording
// latency and throughput along the way.
package marketdata

import (
	"fmt"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/errs"
	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/zap"
)

// Source is anything that yields normalized ticks — a live broker feed
// adapter or internal/historical.Player in replay. Its internals (PCAP
// parsing, vendor protocol decoding, replay pacing) live behind this
// contract.
type Source interface {
	// Next blocks until the next tick is available or the source is
	// exhausted (ok=false).
	Next() (tick wire.MarketData, ok bool)
}

// Sink is the minimal publish contract the transport layer satisfies.
type Sink interface {
	Send(data []byte, nonBlocking bool) (bool, error)
}

// NowFunc returns the current time in nanoseconds since an arbitrary
// monotonic epoch (internal/timing.Clock.NowNanos in production).
type NowFunc func() uint64

// Service is the fan-out loop from Source to the market-data topic.
type Service struct {
	source Source
	sink   Sink
	ingest *metrics.Ingest
	now    NowFunc
	logger *zap.Logger

	drops uint64
}

// NewService wires a market-data fan-out service. collector is used to
// create this service's metrics.Ingest so its latencies and counters
// flow into the standard four-layer pipeline.
func NewService(source Source, sink Sink, collector *metrics.Collector, now NowFunc, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		source: source,
		sink:   sink,
		ingest: metrics.NewIngest(collector),
		now:    now,
		logger: logger,
	}
}

// Run drives the fan-out loop until source is exhausted. Each tick is
// timed three ways: parse latency (the time spent in Source.Next),
// publish latency (the Send call), and tick latency (their sum).
func (s *Service) Run() {
	for {
		t0 := s.now()
		tick, ok := s.source.Next()
		if !ok {
			return
		}
		parseNs := s.now() - t0

		if !tick.Valid() {
			errs.Report(s.logger, errs.New(errs.Parse, "marketdata",
				fmt.Errorf("invalid tick for %s: crossed quote", tick.Symbol)))
			continue
		}

		tsNs := s.now()
		msg := wire.EncodeMarketDataMessage(tsNs, tick)

		t1 := s.now()
		sent, err := s.sink.Send(msg, true)
		publishNs := s.now() - t1

		s.ingest.Record("marketdata.parse_latency_ns", parseNs, metrics.Latency, tsNs)
		s.ingest.Record("marketdata.publish_latency_ns", publishNs, metrics.Latency, tsNs)
		s.ingest.Record("marketdata.tick_latency_ns", parseNs+publishNs, metrics.Latency, tsNs)

		if err != nil || !sent {
			s.drops++
			s.ingest.Record("marketdata.drops", 1, metrics.Counter, tsNs)
			if err != nil {
				errs.Report(s.logger, errs.New(errs.Transport, "marketdata", err))
			}
			continue
		}
		s.ingest.Record("marketdata.messages_processed", 1, metrics.Counter, tsNs)
	}
}

// Drops returns the number of ticks dropped to back-pressure so far.
func (s *Service) Drops() uint64 { return s.drops }

// SystemNow is the NowFunc every long-running service falls back to when
// it isn't driven by internal/timing.Clock (e.g. in tests).
func SystemNow() uint64 { return uint64(time.Now().UnixNano()) }
