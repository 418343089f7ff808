package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"sync/atomic"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/config"
	"github.com/abdoElHodaky/hft-core/internal/control"
	"github.com/abdoElHodaky/hft-core/internal/gateway"
	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/risk"
	"github.com/abdoElHodaky/hft-core/internal/simulator"
	"github.com/abdoElHodaky/hft-core/internal/timing"
	"github.com/abdoElHodaky/hft-core/internal/transport"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "hft.conf", "path to the key=value config file")
	seed := flag.Int64("seed", time.Now().UnixNano(), "fill simulator RNG seed")
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
			func(clock *timing.Clock, collector *metrics.Collector, logger *zap.Logger) *simulator.Simulator {
				return simulator.New(simulator.DefaultConfig(), *seed, collector, clock.NowNanos, logger)
			},
			newGateway,
			newRiskService,
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

func newGateway(cfg *config.Config, f *transport.Factory, sim *simulator.Simulator, clock *timing.Clock, collector *metrics.Collector, logger *zap.Logger) (*gateway.Gateway, error) {
	execPub, err := f.Publisher(transport.Config{Endpoint: cfg.Endpoints.Executions})
	if err != nil {
		return nil, err
	}
	// A live BrokerAdapter is wired by the deployment that has one; this
	// binary always runs the paper path against the simulator.
	if !cfg.Trading.PaperMode {
		logger.Warn("trading.paper_mode=false but no broker adapter is linked in, running paper")
	}
	gw := gateway.New(sim, execPub, collector, clock.NowNanos, logger)
	sim.SetExecutionCallback(gw.HandleExecution)
	return gw, nil
}

// newRiskService embeds the pre-trade risk authority in the gateway
// process, so every signal is checked against the configured limits
// before it can become an order. It tracks positions from the executions
// topic and market data but publishes no PositionUpdates of its own —
// the standalone risk binary owns the positions topic.
func newRiskService(cfg *config.Config, clock *timing.Clock, collector *metrics.Collector, logger *zap.Logger) *risk.Service {
	limits := risk.Limits{
		MaxPositionValue:       cfg.Risk.MaxPositionValue,
		MaxDailyLoss:           cfg.Risk.MaxDailyLoss,
		PositionLimitPerSymbol: cfg.Risk.PositionLimitPerSymbol,
	}
	return risk.NewService(limits, nil, nil, collector, clock.NowNanos, logger)
}

func newMetricsPublisher(cfg *config.Config, f *transport.Factory, collector *metrics.Collector, clock *timing.Clock, logger *zap.Logger) (*metrics.Publisher, error) {
	sink, err := f.Publisher(transport.Config{Endpoint: cfg.Endpoints.Metrics})
	if err != nil {
		return nil, err
	}
	return metrics.NewPublisher("gateway", collector, sink, nil, clock.NowNanos, logger), nil
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, f *transport.Factory, gw *gateway.Gateway, riskSvc *risk.Service, sim *simulator.Simulator, collector *metrics.Collector, mp *metrics.Publisher, logger *zap.Logger) error {
	sigSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.Signals})
	if err != nil {
		return err
	}
	mdSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.MarketData})
	if err != nil {
		return err
	}
	execSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.Executions})
	if err != nil {
		return err
	}
	ctlSub, err := f.Subscriber(transport.Config{Endpoint: cfg.Endpoints.Control})
	if err != nil {
		return err
	}

	var tradingEnabled atomic.Bool
	tradingEnabled.Store(cfg.Trading.Enabled)

	sigSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		if !tradingEnabled.Load() {
			return
		}
		signal := wire.DecodeTradingSignal(data[wire.HeaderSize:])
		if ok, alert := riskSvc.CheckSignal(signal); !ok {
			logger.Warn("signal denied by pre-trade risk",
				zap.String("symbol", signal.Symbol), zap.String("limit_type", alert.LimitType))
			return
		}
		gw.HandleSignal(signal)
	})
	mdSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		tick := wire.DecodeMarketData(data[wire.HeaderSize:])
		sim.UpdateMarketState(tick)
		riskSvc.HandleMarketData(tick)
	})
	execSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		riskSvc.HandleExecution(wire.DecodeOrderExecution(data[wire.HeaderSize:]))
	})
	ctlSub.SetReceiveCallback(func(data []byte) {
		if len(data) <= wire.HeaderSize {
			return
		}
		control.Dispatch(data, func(cmd control.Command, payload string) {
			logger.Info("control command received", zap.String("command", cmd.String()))
			switch cmd {
			case control.StartTrading:
				tradingEnabled.Store(true)
			case control.StopTrading, control.PauseTrading:
				tradingEnabled.Store(false)
			case control.ShutdownSystem:
				_ = shutdowner.Shutdown()
			}
		})
	})

	fillTicker := time.NewTicker(time.Millisecond)
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go collector.Run()
			go mp.Run()
			sigSub.StartAsyncReceive()
			mdSub.StartAsyncReceive()
			execSub.StartAsyncReceive()
			ctlSub.StartAsyncReceive()
			go func() {
				for {
					select {
					case <-done:
						return
					case <-fillTicker.C:
						sim.ProcessPendingFills()
					}
				}
			}()
			logger.Info("order gateway started", zap.Bool("paper_mode", true))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			close(done)
			fillTicker.Stop()
			sigSub.StopAsyncReceive()
			mdSub.StopAsyncReceive()
			execSub.StopAsyncReceive()
			ctlSub.StopAsyncReceive()
			mp.Stop()
			collector.Stop()
			_ = sigSub.Close()
			_ = mdSub.Close()
			_ = execSub.Close()
			_ = ctlSub.Close()
			return nil
		},
	})
	return nil
}
