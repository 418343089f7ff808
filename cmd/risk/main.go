package main

import (
	"context"
	"errors"
	"flag"
	"os"

	"github.com/abdoElHodaky/hft-core/internal/config"
	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/risk"
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
			newService,
			newMetricsPublisher,
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

// newService builds the standalone position tracker: it owns the
// positions topic and raises post-trade alerts. The pre-trade gate runs
// in the gateway process, where a denial can actually stop the order —
// both are the same risk.Service type with the same limits.
func newService(cfg *config.Config, f *transport.Factory, clock *timing.Clock, collector *metrics.Collector, logger *zap.Logger) (*risk.Service, error) {
	posPub, err := f.Publisher(transport.Config{Endpoint: cfg.Endpoints.Positions})
	if err != nil {
		return nil, err
	}
	limits := risk.Limits{
		MaxPositionValue:       cfg.Risk.MaxPositionValue,
		MaxDailyLoss:           cfg.Risk.MaxDailyLoss,
		PositionLimitPerSymbol: cfg.Risk.PositionLimitPerSymbol,
	}
	return risk.NewService(limits, posPub, nil, collector, clock.NowNanos, logger), nil
}

func newMetricsPublisher(cfg *config.Config, f *transport.Factory, collector *metrics.Collector, clock *timing.Clock, logger *zap.Logger) (*metrics.Publisher, error) {
	sink, err := f.Publisher(transport.Config{Endpoint: cfg.Endpoints.Metrics})
	if err != nil {
		return nil, err
	}
	return metrics.NewPublisher("risk", collector, sink, nil, clock.NowNanos, logger), nil
}

func run(lc fx.Lifecycle, cfg *config.Config, f *transport.Factory, svc *risk.Service, collector *metrics.Collector, mp *metrics.Publisher, logger *zap.Logger) error {
	execSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.Executions})
	if err != nil {
		return err
	}
	mdSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.MarketData})
	if err != nil {
		return err
	}

	execSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		svc.HandleExecution(wire.DecodeOrderExecution(data[wire.HeaderSize:]))
	})
	mdSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		svc.HandleMarketData(wire.DecodeMarketData(data[wire.HeaderSize:]))
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go collector.Run()
			go mp.Run()
			execSub.StartAsyncReceive()
			mdSub.StartAsyncReceive()
			logger.Info("position/risk service started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			execSub.StopAsyncReceive()
			mdSub.StopAsyncReceive()
			mp.Stop()
			collector.Stop()
			_ = execSub.Close()
			_ = mdSub.Close()
			return nil
		},
	})
	return nil
}
