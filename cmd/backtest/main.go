package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/backtest"
	historicalcsv "github.com/abdoElHodaky/hft-core/internal/historical/csv"
	"github.com/abdoElHodaky/hft-core/internal/risk"
	"github.com/abdoElHodaky/hft-core/internal/simulator"
	"github.com/abdoElHodaky/hft-core/internal/strategy"
	"go.uber.org/zap"
)

func main() {
	dataPath := flag.String("data", "", "historical CSV/CSV.gz file to replay (required)")
	model := flag.String("model", "slippage", "fill model: immediate|slippage|impact|latency|partial")
	seed := flag.Int64("seed", 1, "fill simulator RNG seed")
	threshold := flag.Float64("threshold", 0.001, "momentum threshold")
	maxPositionValue := flag.Float64("max-position-value", 0, "risk: max position notional (0 disables)")
	flag.Parse()

	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	if *dataPath == "" {
		fmt.Fprintln(os.Stderr, "usage: backtest -data <file.csv> [-model slippage] [-seed 1]")
		os.Exit(2)
	}

	fillModel, err := parseModel(*model)
	if err != nil {
		logger.Fatal("invalid fill model", zap.Error(err))
	}

	points, err := historicalcsv.Load(*dataPath, logger)
	if err != nil {
		logger.Fatal("failed to load historical data", zap.Error(err))
	}
	if len(points) == 0 {
		logger.Fatal("historical data file is empty", zap.String("path", *dataPath))
	}

	cfg := backtest.DefaultConfig(strconv.FormatInt(time.Now().UnixNano(), 36))
	cfg.SimulatorConfig.Model = fillModel
	cfg.SimulatorSeed = *seed
	cfg.RiskLimits = risk.Limits{MaxPositionValue: *maxPositionValue}

	h, err := backtest.New(cfg, points, logger)
	if err != nil {
		logger.Fatal("failed to build backtest harness", zap.Error(err))
	}
	defer h.Close()

	momentum := strategy.NewMomentumStrategy(1, h.Engine.Handle(), h.Now, logger)
	momentum.Threshold = *threshold
	h.Engine.Register(momentum)

	start := time.Now()
	h.Run()
	elapsed := time.Since(start)

	s := h.Summary()
	logger.Info("backtest complete",
		zap.Duration("elapsed", elapsed),
		zap.Uint64("messages_replayed", s.MessagesReplayed),
		zap.Uint64("signals_generated", s.SignalsGenerated),
		zap.Uint64("orders_processed", s.OrdersProcessed),
		zap.Uint64("orders_filled", s.OrdersFilled),
		zap.Uint64("orders_rejected", s.OrdersRejected),
		zap.Uint64("total_fills", s.TotalFills),
		zap.Float64("average_slippage", s.AverageSlippage),
		zap.Float64("total_commission", s.TotalCommission),
	)
}

func parseModel(s string) (simulator.FillModel, error) {
	switch s {
	case "immediate":
		return simulator.Immediate, nil
	case "slippage":
		return simulator.RealisticSlippage, nil
	case "impact":
		return simulator.MarketImpact, nil
	case "latency":
		return simulator.LatencyAware, nil
	case "partial":
		return simulator.PartialFills, nil
	default:
		return 0, fmt.Errorf("unknown fill model %q", s)
	}
}
