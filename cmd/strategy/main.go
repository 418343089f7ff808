package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/config"
	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/strategy"
	"github.com/abdoElHodaky/hft-core/internal/timing"
	"github.com/abdoElHodaky/hft-core/internal/transport"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "hft.conf", "path to the key=value config file")
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
			newEngine,
			newMetricsPublisher,
		),
		fx.Invoke(registerStrategies),
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

func newEngine(cfg *config.Config, f *transport.Factory, clock *timing.Clock, collector *metrics.Collector, logger *zap.Logger) (*strategy.Engine, error) {
	sigPub, err := f.Publisher(transport.Config{Endpoint: cfg.Endpoints.Signals})
	if err != nil {
		return nil, err
	}
	return strategy.NewEngine(sigPub, collector, clock.NowNanos, logger), nil
}

func newMetricsPublisher(cfg *config.Config, f *transport.Factory, collector *metrics.Collector, clock *timing.Clock, logger *zap.Logger) (*metrics.Publisher, error) {
	sink, err := f.Publisher(transport.Config{Endpoint: cfg.Endpoints.Metrics})
	if err != nil {
		return nil, err
	}
	return metrics.NewPublisher("strategy", collector, sink, nil, clock.NowNanos, logger), nil
}

func registerStrategies(cfg *config.Config, engine *strategy.Engine, clock *timing.Clock, logger *zap.Logger) {
	momentum := strategy.NewMomentumStrategy(1, engine.Handle(), clock.NowNanos, logger)
	momentum.Threshold = cfg.Momentum.Threshold
	momentum.MinSignalInterval = time.Duration(cfg.Momentum.MinSignalIntervalMs) * time.Millisecond
	engine.Register(momentum)
}

func run(lc fx.Lifecycle, cfg *config.Config, f *transport.Factory, engine *strategy.Engine, collector *metrics.Collector, mp *metrics.Publisher, logger *zap.Logger) error {
	mdSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.MarketData})
	if err != nil {
		return err
	}
	execSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.Executions})
	if err != nil {
		return err
	}

	mdSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		engine.HandleMarketData(wire.DecodeMarketData(data[wire.HeaderSize:]))
	})
	execSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		engine.HandleExecution(wire.DecodeOrderExecution(data[wire.HeaderSize:]))
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go collector.Run()
			go mp.Run()
			mdSub.StartAsyncReceive()
			execSub.StartAsyncReceive()
			logger.Info("strategy engine started", zap.Int("strategies", len(engine.Strategies())))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			mdSub.StopAsyncReceive()
			execSub.StopAsyncReceive()
			mp.Stop()
			collector.Stop()
			_ = mdSub.Close()
			_ = execSub.Close()
			return nil
		},
	})
	return nil
}
