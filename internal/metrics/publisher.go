package metrics

import (
	"time"

	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const publishCadence = 2 * time.Second

// Sink is the minimal transport capability the Publisher needs — avoids a
// direct dependency on internal/transport so metrics stays a leaf package.
// internal/transport.Publisher satisfies this interface.
type Sink interface {
	Send(data []byte, nonBlocking bool) (bool, error)
}

// NowFunc returns the current nanosecond timestamp; injected so tests can
// control time without sleeping.
type NowFunc func() uint64

// Publisher serializes the collector's snapshot onto a dedicated pub
// socket every 2s and mirrors the same values onto Prometheus gauges.
type Publisher struct {
	serviceName string
	collector   *Collector
	sink        Sink
	now         NowFunc
	logger      *zap.Logger

	promGauges map[string]prometheus.Gauge
	registerer prometheus.Registerer

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewPublisher creates a Publisher for serviceName, publishing the given
// Collector's snapshots over sink and mirroring them into registerer.
func NewPublisher(serviceName string, collector *Collector, sink Sink, registerer prometheus.Registerer, now NowFunc, logger *zap.Logger) *Publisher {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Publisher{
		serviceName: serviceName,
		collector:   collector,
		sink:        sink,
		now:         now,
		logger:      logger,
		promGauges:  make(map[string]prometheus.Gauge),
		registerer:  registerer,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
}

// Run publishes snapshots every 2s until Stop is called. Intended to run
// in its own goroutine.
func (p *Publisher) Run() {
	ticker := time.NewTicker(publishCadence)
	defer ticker.Stop()
	defer close(p.doneCh)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.publishOnce()
		}
	}
}

// Stop signals the publish loop to exit.
func (p *Publisher) Stop() {
	close(p.stopCh)
	<-p.doneCh
}

func (p *Publisher) publishOnce() {
	snap := p.collector.Snapshot()
	samples := make([]wire.MetricSample, 0, len(snap))
	for name, st := range snap {
		value := st.Mean
		kind := toWireKind(st.Kind)
		switch st.Kind {
		case Counter:
			value = float64(st.Sum)
		case Gauge:
			value = float64(st.Sum)
		}
		samples = append(samples, wire.MetricSample{Name: name, Value: value, Kind: kind})
		p.mirrorToPrometheus(name, value)
	}

	msg := wire.EncodeMetricsSnapshotMessage(p.now(), wire.MetricsSnapshot{
		ServiceName: p.serviceName,
		TimestampNs: p.now(),
		Metrics:     samples,
	})

	// publisher failures are logged, not counted, and never block the
	// collector.
	if ok, err := p.sink.Send(msg, true); err != nil || !ok {
		if p.logger != nil {
			p.logger.Warn("metrics publish failed", zap.Error(err), zap.Bool("sent", ok))
		}
	}
}

func (p *Publisher) mirrorToPrometheus(name string, value float64) {
	g, ok := p.promGauges[name]
	if !ok {
		g = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "hft_" + sanitizeMetricName(name),
			Help: "mirrored internal metric: " + name,
		})
		if err := p.registerer.Register(g); err != nil {
			if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
				g = are.ExistingCollector.(prometheus.Gauge)
			}
		}
		p.promGauges[name] = g
	}
	g.Set(value)
}

func toWireKind(k Kind) wire.MetricKind {
	switch k {
	case Counter:
		return wire.MetricCounter
	case Gauge:
		return wire.MetricGauge
	case Histogram:
		return wire.MetricHistogram
	default:
		return wire.MetricLatency
	}
}

func sanitizeMetricName(name string) string {
	out := make([]byte, 0, len(name))
	for _, c := range []byte(name) {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			out = append(out, c)
		} else {
			out = append(out, '_')
		}
	}
	return string(out)
}
