package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/config"
	"github.com/abdoElHodaky/hft-core/internal/historical"
	historicalcsv "github.com/abdoElHodaky/hft-core/internal/historical/csv"
	"github.com/abdoElHodaky/hft-core/internal/marketdata"
	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/timing"
	"github.com/abdoElHodaky/hft-core/internal/transport"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "hft.conf", "path to the key=value config file")
	dataPath := flag.String("data", "", "historical CSV/CSV.gz file to replay instead of mock data")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	app := fx.New(
		fx.Supply(logger),
		fx.Provide(
			func() (*config.Config, error) { return loadConfig(*configPath, logger) },
			timing.New,
			metrics.NewCollector,
			transport.NewFactory,
			newPublisher,
			newMetricsPublisher,
			func(cfg *config.Config, logger *zap.Logger) (marketdata.Source, error) {
				return newSource(*dataPath, cfg, logger)
			},
			func(source marketdata.Source, pub transport.Publisher, collector *metrics.Collector, clock *timing.Clock, logger *zap.Logger) *marketdata.Service {
				return marketdata.NewService(source, pub, collector, clock.NowNanos, logger)
			},
		),
		fx.Invoke(run),
	)
	app.Run()
}

func loadConfig(path string, logger *zap.Logger) (*config.Config, error) {
	cfg, err := config.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no config file, using defaults", zap.String("path", path))
		return config.Default(), nil
	}
	return cfg, err
}

func newPublisher(cfg *config.Config, f *transport.Factory) (transport.Publisher, error) {
	return f.Publisher(transport.Config{Endpoint: cfg.Endpoints.MarketData})
}

func newMetricsPublisher(cfg *config.Config, f *transport.Factory, collector *metrics.Collector, clock *timing.Clock, logger *zap.Logger) (*metrics.Publisher, error) {
	sink, err := f.Publisher(transport.Config{Endpoint: cfg.Endpoints.Metrics})
	if err != nil {
		return nil, err
	}
	return metrics.NewPublisher("marketdata", collector, sink, nil, clock.NowNanos, logger), nil
}

func newSource(dataPath string, cfg *config.Config, logger *zap.Logger) (marketdata.Source, error) {
	if dataPath != "" {
		points, err := historicalcsv.Load(dataPath, logger)
		if err != nil {
			return nil, err
		}
		return historical.New(points, nil, logger), nil
	}
	hz := cfg.Trading.MockDataHz
	if hz <= 0 {
		hz = 10
	}
	return newMockSource([]string{"AAPL", "MSFT", "SPY"}, hz), nil
}

func run(lc fx.Lifecycle, svc *marketdata.Service, source marketdata.Source, collector *metrics.Collector, mp *metrics.Publisher, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go collector.Run()
			go mp.Run()
			go func() {
				svc.Run()
				logger.Info("market data source exhausted")
			}()
			logger.Info("market data service started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if m, ok := source.(*mockSource); ok {
				m.stopped.Store(true)
			}
			mp.Stop()
			collector.Stop()
			return nil
		},
	})
}

// mockSource emits a random-walk tick stream at a fixed rate, for running
// the service standalone without a feed adapter or a data file.
type mockSource struct {
	symbols []string
	period  time.Duration
	rng     *rand.Rand
	mids    []float64
	i       int
	stopped atomic.Bool
}

func newMockSource(symbols []string, hz float64) *mockSource {
	mids := make([]float64, len(symbols))
	for i := range mids {
		mids[i] = 100
	}
	return &mockSource{
		symbols: symbols,
		period:  time.Duration(float64(time.Second) / hz),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		mids:    mids,
	}
}

func (m *mockSource) Next() (wire.MarketData, bool) {
	if m.stopped.Load() {
		return wire.MarketData{}, false
	}
	time.Sleep(m.period)

	idx := m.i % len(m.symbols)
	m.i++
	m.mids[idx] *= 1 + (m.rng.Float64()-0.5)*0.002
	mid := m.mids[idx]

	return wire.MarketData{
		Symbol:       m.symbols[idx],
		BidPrice:     mid * 0.9995,
		AskPrice:     mid * 1.0005,
		BidSize:      uint32(100 + m.rng.Intn(900)),
		AskSize:      uint32(100 + m.rng.Intn(900)),
		LastPrice:    mid,
		LastSize:     uint32(1 + m.rng.Intn(500)),
		ExchangeTsNs: uint64(time.Now().UnixNano()),
	}, true
}
