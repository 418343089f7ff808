package main

import (
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/config"
	"github.com/abdoElHodaky/hft-core/internal/metrics"
	"github.com/abdoElHodaky/hft-core/internal/transport"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// monitor subscribes to every service's metrics topic, runs the
// cross-service aggregator, logs a one-line status summary per sweep, and
// serves the process's Prometheus registry for scraping.
func main() {
	configPath := flag.String("config", "hft.conf", "path to the key=value config file")
	listen := flag.String("listen", ":9100", "Prometheus scrape listen address")
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no config file, using defaults", zap.String("path", *configPath))
		cfg = config.Default()
	} else if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	factory := transport.NewFactory(logger)
	sub, err := factory.Subscriber(transport.Config{Endpoint: cfg.Endpoints.Metrics})
	if err != nil {
		logger.Fatal("failed to connect metrics subscriber", zap.Error(err))
	}
	defer sub.Close()

	agg := metrics.NewAggregator(sub, logger)
	go agg.Run()
	defer agg.Stop()

	http.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(*listen, nil); err != nil {
			logger.Error("prometheus listener stopped", zap.Error(err))
		}
	}()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("metrics monitor started",
		zap.String("endpoint", cfg.Endpoints.Metrics), zap.String("listen", *listen))

	for {
		select {
		case <-sigCh:
			logger.Info("metrics monitor stopping")
			return
		case <-ticker.C:
			logSummary(agg, logger)
		}
	}
}

func logSummary(agg *metrics.Aggregator, logger *zap.Logger) {
	snap := agg.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v := snap[name]
		state := "online"
		if v.State == metrics.StateOffline {
			state = "offline"
		}
		logger.Info("service status",
			zap.String("service", name),
			zap.String("state", state),
			zap.Time("last_update", v.LastUpdate),
			zap.Int("metrics", len(v.Metrics)),
		)
	}
}
