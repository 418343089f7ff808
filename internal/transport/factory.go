package transport

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Factory selects and constructs the right backend for an endpoint
// scheme: "ring://" picks the in-process SPMCTransport, "tcp://"/"nats://"
// pick the networked NATSBroker.
type Factory struct {
	logger *zap.Logger
}

// NewFactory creates a transport factory that logs backend selection
// through logger (may be nil).
func NewFactory(logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{logger: logger}
}

func (f *Factory) build(cfg Config) (Transport, error) {
	switch {
	case strings.HasPrefix(cfg.Endpoint, "ring://"):
		return NewSPMCTransport(cfg), nil
	case strings.HasPrefix(cfg.Endpoint, "tcp://"), strings.HasPrefix(cfg.Endpoint, "nats://"):
		return NewNATSBroker(cfg, f.logger), nil
	default:
		return nil, fmt.Errorf("transport: unrecognized endpoint scheme %q", cfg.Endpoint)
	}
}

// Publisher builds and binds a Publisher-role transport for cfg.
func (f *Factory) Publisher(cfg Config) (Publisher, error) {
	cfg.Pattern = PatternPubSub
	t, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	pub, ok := t.(Publisher)
	if !ok {
		return nil, fmt.Errorf("transport: backend for %q does not implement Publisher", cfg.Endpoint)
	}
	if err := pub.Bind(cfg.Endpoint); err != nil {
		return nil, err
	}
	f.logger.Info("transport publisher bound", zap.String("endpoint", cfg.Endpoint))
	return pub, nil
}

// Subscriber builds and connects a Subscriber-role transport for cfg,
// subscribing to each of topics.
func (f *Factory) Subscriber(cfg Config, topics ...string) (Subscriber, error) {
	cfg.Pattern = PatternPubSub
	t, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	sub, ok := t.(Subscriber)
	if !ok {
		return nil, fmt.Errorf("transport: backend for %q does not implement Subscriber", cfg.Endpoint)
	}
	if err := sub.Connect(cfg.Endpoint); err != nil {
		return nil, err
	}
	for _, topic := range topics {
		if err := sub.Subscribe(topic); err != nil {
			return nil, err
		}
	}
	f.logger.Info("transport subscriber connected", zap.String("endpoint", cfg.Endpoint))
	return sub, nil
}

// Pusher builds and binds a Pusher-role transport for cfg.
func (f *Factory) Pusher(cfg Config) (Pusher, error) {
	cfg.Pattern = PatternPushPull
	t, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	p, ok := t.(Pusher)
	if !ok {
		return nil, fmt.Errorf("transport: backend for %q does not implement Pusher", cfg.Endpoint)
	}
	if err := p.Bind(cfg.Endpoint); err != nil {
		return nil, err
	}
	return p, nil
}

// Puller builds and connects a Puller-role transport for cfg.
func (f *Factory) Puller(cfg Config) (Puller, error) {
	cfg.Pattern = PatternPushPull
	t, err := f.build(cfg)
	if err != nil {
		return nil, err
	}
	p, ok := t.(Puller)
	if !ok {
		return nil, fmt.Errorf("transport: backend for %q does not implement Puller", cfg.Endpoint)
	}
	if err := p.Connect(cfg.Endpoint); err != nil {
		return nil, err
	}
	return p, nil
}
