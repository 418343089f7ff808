package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// defaultPushPullTopic is the subject push/pull frames travel on — the
// pattern has no routing key, so Send/Receive just fix one subject.
const defaultPushPullTopic = "hft.pushpull"

// NATSBroker is the networked transport backend: a watermill Publisher/
// Subscriber pair riding NATS core, with reconnect attempts gated by a
// circuit breaker so a flapping broker degrades to dropped sends instead
// of stalling the caller.
type NATSBroker struct {
	cfg    Config
	logger *zap.Logger

	pub *nats.Publisher
	sub *nats.Subscriber
	cb  *gobreaker.CircuitBreaker

	subMu      sync.Mutex
	subscribed map[string]context.CancelFunc
	msgs       chan *message.Message

	recvCb    MessageCallback
	stopAsync chan struct{}

	sent, recv           atomic.Uint64
	bytesSent, bytesRecv atomic.Uint64
}

// NewNATSBroker builds a broker; Bind or Connect must still be called
// with the NATS server URL before Send/Receive.
func NewNATSBroker(cfg Config, logger *zap.Logger) *NATSBroker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSBroker{
		cfg:        cfg,
		logger:     logger,
		subscribed: make(map[string]context.CancelFunc),
		msgs:       make(chan *message.Message, 256),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "nats-transport",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     5 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

// connOptions tunes the underlying NATS connection: bounded reconnect
// backoff, and handlers that surface connection flaps in the service log.
func (b *NATSBroker) connOptions() []nc.Option {
	return []nc.Option{
		nc.Name("hft-core-transport"),
		nc.Timeout(2 * time.Second),
		nc.MaxReconnects(10),
		nc.ReconnectWait(250 * time.Millisecond),
		nc.DisconnectErrHandler(func(conn *nc.Conn, err error) {
			b.logger.Warn("nats disconnected", zap.Error(err))
		}),
		nc.ReconnectHandler(func(conn *nc.Conn) {
			b.logger.Info("nats reconnected", zap.String("url", conn.ConnectedUrl()))
		}),
	}
}

// Bind dials the NATS server and prepares the publisher side. NATS has no
// server-side bind concept, so Bind and Connect both just connect.
func (b *NATSBroker) Bind(endpoint string) error {
	wlog := watermill.NewStdLogger(false, false)
	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:         endpoint,
		NatsOptions: b.connOptions(),
		Marshaler:   nats.GobMarshaler{},
	}, wlog)
	if err != nil {
		return err
	}
	b.pub = pub
	return nil
}

// Connect dials the NATS server and prepares the subscriber side.
func (b *NATSBroker) Connect(endpoint string) error {
	wlog := watermill.NewStdLogger(false, false)
	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:         endpoint,
		NatsOptions: b.connOptions(),
		Unmarshaler:      nats.GobMarshaler{},
		QueueGroupPrefix: "hft-core",
	}, wlog)
	if err != nil {
		return err
	}
	b.sub = sub
	// Push/pull callers connect and implicitly pull from the fixed
	// subject; pub/sub callers call Subscribe explicitly afterward.
	if b.cfg.Pattern == PatternPushPull {
		return b.Subscribe(defaultPushPullTopic)
	}
	return nil
}

// Close shuts down both the publisher and subscriber connections.
func (b *NATSBroker) Close() error {
	b.StopAsyncReceive()
	b.subMu.Lock()
	for _, cancel := range b.subscribed {
		cancel()
	}
	b.subscribed = make(map[string]context.CancelFunc)
	b.subMu.Unlock()

	var firstErr error
	if b.sub != nil {
		if err := b.sub.Close(); err != nil {
			firstErr = err
		}
	}
	if b.pub != nil {
		if err := b.pub.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Send publishes on the fixed push/pull subject.
func (b *NATSBroker) Send(data []byte, nonBlocking bool) (bool, error) {
	return b.Publish(defaultPushPullTopic, data)
}

// Push is an alias of Send for the Pusher role.
func (b *NATSBroker) Push(data []byte) (bool, error) { return b.Send(data, true) }

// Publish sends data on topic. Reconnect attempts are gated by the
// circuit breaker: an open breaker fails fast with ErrDisconnected rather
// than blocking on a broker known to be down.
func (b *NATSBroker) Publish(topic string, data []byte) (bool, error) {
	if b.pub == nil {
		return false, ErrDisconnected
	}
	_, err := b.cb.Execute(func() (interface{}, error) {
		msg := message.NewMessage(watermill.NewUUID(), data)
		return nil, b.pub.Publish(topic, msg)
	})
	if err == gobreaker.ErrOpenState {
		b.logger.Warn("nats transport circuit open, dropping publish", zap.String("topic", topic))
		return false, ErrDisconnected
	}
	if err != nil {
		return false, err
	}
	b.sent.Add(1)
	b.bytesSent.Add(uint64(len(data)))
	return true, nil
}

// Subscribe opens a watermill subscription to topic and fans its
// messages into the channel Receive drains.
func (b *NATSBroker) Subscribe(topic string) error {
	if b.sub == nil {
		return ErrDisconnected
	}
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if _, ok := b.subscribed[topic]; ok {
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	msgs, err := b.sub.Subscribe(ctx, topic)
	if err != nil {
		cancel()
		return err
	}
	b.subscribed[topic] = cancel
	go func() {
		for msg := range msgs {
			b.msgs <- msg
		}
	}()
	return nil
}

// Unsubscribe cancels the subscription context for topic, closing its
// message channel.
func (b *NATSBroker) Unsubscribe(topic string) error {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	if cancel, ok := b.subscribed[topic]; ok {
		cancel()
		delete(b.subscribed, topic)
	}
	return nil
}

// Receive returns the next message acked from any subscribed topic.
func (b *NATSBroker) Receive(buf []byte, nonBlocking bool) (int, bool, error) {
	if nonBlocking {
		select {
		case msg := <-b.msgs:
			return b.deliver(buf, msg), true, nil
		default:
			return 0, false, nil
		}
	}
	msg, ok := <-b.msgs
	if !ok {
		return 0, false, nil
	}
	return b.deliver(buf, msg), true, nil
}

func (b *NATSBroker) deliver(buf []byte, msg *message.Message) int {
	msg.Ack()
	n := copy(buf, msg.Payload)
	b.recv.Add(1)
	b.bytesRecv.Add(uint64(n))
	return n
}

// Pull is an alias of Receive for the Puller role.
func (b *NATSBroker) Pull(buf []byte, nonBlocking bool) (int, bool, error) {
	return b.Receive(buf, nonBlocking)
}

// SetReceiveCallback registers the callback StartAsyncReceive delivers to.
func (b *NATSBroker) SetReceiveCallback(cb MessageCallback) { b.recvCb = cb }

// StartAsyncReceive launches a goroutine that drains the message channel
// and invokes the registered callback for each delivered message.
func (b *NATSBroker) StartAsyncReceive() {
	if b.stopAsync != nil {
		return
	}
	b.stopAsync = make(chan struct{})
	go func() {
		buf := make([]byte, 1<<16)
		for {
			select {
			case <-b.stopAsync:
				return
			case msg := <-b.msgs:
				n := b.deliver(buf, msg)
				if b.recvCb != nil {
					cp := make([]byte, n)
					copy(cp, buf[:n])
					b.recvCb(cp)
				}
			}
		}
	}()
}

// StopAsyncReceive stops the async receive goroutine, if any.
func (b *NATSBroker) StopAsyncReceive() {
	if b.stopAsync == nil {
		return
	}
	close(b.stopAsync)
	b.stopAsync = nil
}

// Stats returns current send/receive counters.
func (b *NATSBroker) Stats() Stats {
	return Stats{
		MessagesSent:     b.sent.Load(),
		MessagesReceived: b.recv.Load(),
		BytesSent:        b.bytesSent.Load(),
		BytesReceived:    b.bytesRecv.Load(),
	}
}
