package transport

import (
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/abdoElHodaky/hft-core/internal/lockfree"
)

// ringRegistry lets multiple SPMCTransport instances in the same process
// share one named ring: "binding" creates it, "connecting" looks it up.
type ringRegistry struct {
	mu    sync.Mutex
	rings map[string]*lockfree.SPMCRing
}

var rings = &ringRegistry{rings: make(map[string]*lockfree.SPMCRing)}

func (r *ringRegistry) getOrCreate(name string, bufSize int, hwm int) *lockfree.SPMCRing {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ring, ok := r.rings[name]; ok {
		return ring
	}
	ring := lockfree.NewSPMCRing(bufSize, uint64(hwm*256))
	r.rings[name] = ring
	return ring
}

func ringName(endpoint string) string {
	return strings.TrimPrefix(endpoint, "ring://")
}

// SPMCTransport is the in-process, zero-copy transport backend built on
// internal/lockfree.SPMCRing. It implements Publisher, Subscriber, Pusher,
// and Puller — role selection is just which methods the caller uses.
type SPMCTransport struct {
	cfg        Config
	ring       *lockfree.SPMCRing
	consumerID uint32
	hasCursor  bool
	topics     map[string]struct{}
	topicsMu   sync.Mutex

	cb        MessageCallback
	stopAsync chan struct{}

	sent, recv         atomic.Uint64
	bytesSent, bytesRecv atomic.Uint64

	closed atomic.Bool
}

// NewSPMCTransport creates a transport with the given config; Bind or
// Connect must be called before Send/Receive.
func NewSPMCTransport(cfg Config) *SPMCTransport {
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.HighWaterMark == 0 {
		cfg.HighWaterMark = DefaultHighWaterMark
	}
	return &SPMCTransport{cfg: cfg, topics: make(map[string]struct{})}
}

// Bind creates (or attaches to) the named ring as its producer side.
func (t *SPMCTransport) Bind(endpoint string) error {
	t.ring = rings.getOrCreate(ringName(endpoint), t.cfg.BufferSize, t.cfg.HighWaterMark)
	return nil
}

// Connect registers this transport as a consumer of the named ring.
func (t *SPMCTransport) Connect(endpoint string) error {
	t.ring = rings.getOrCreate(ringName(endpoint), t.cfg.BufferSize, t.cfg.HighWaterMark)
	id, err := t.ring.Register()
	if err != nil {
		return err
	}
	t.consumerID = id
	t.hasCursor = true
	return nil
}

// Close releases this transport's consumer cursor, if any.
func (t *SPMCTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	t.StopAsyncReceive()
	if t.hasCursor {
		t.ring.Unregister(t.consumerID)
	}
	return nil
}

// Send writes data as a push-pull frame: an empty topic prefix, so every
// frame on the ring uniformly starts with a null-terminated topic and
// binary payloads survive the receive-side topic split intact.
func (t *SPMCTransport) Send(data []byte, nonBlocking bool) (bool, error) {
	return t.Publish("", data)
}

// Push is an alias of Send for the Pusher role.
func (t *SPMCTransport) Push(data []byte) (bool, error) {
	return t.Send(data, true)
}

// Publish writes data prefixed with a null-terminated topic; subscribers
// filter by that prefix after dequeue.
func (t *SPMCTransport) Publish(topic string, data []byte) (bool, error) {
	framed := make([]byte, len(topic)+1+len(data))
	copy(framed, topic)
	framed[len(topic)] = 0
	copy(framed[len(topic)+1:], data)
	return t.publishRaw(framed)
}

func (t *SPMCTransport) publishRaw(data []byte) (bool, error) {
	if t.ring == nil {
		return false, ErrDisconnected
	}
	err := t.ring.Push(data)
	if err != nil {
		if errors.Is(err, lockfree.ErrRingFull) {
			return false, ErrSendBackpressure
		}
		return false, err
	}
	t.sent.Add(1)
	t.bytesSent.Add(uint64(len(data)))
	return true, nil
}

// Subscribe records a topic filter; an empty topic matches everything.
func (t *SPMCTransport) Subscribe(topic string) error {
	t.topicsMu.Lock()
	defer t.topicsMu.Unlock()
	t.topics[topic] = struct{}{}
	return nil
}

// Unsubscribe removes a topic filter.
func (t *SPMCTransport) Unsubscribe(topic string) error {
	t.topicsMu.Lock()
	defer t.topicsMu.Unlock()
	delete(t.topics, topic)
	return nil
}

func (t *SPMCTransport) matchesSubscription(topic string) bool {
	t.topicsMu.Lock()
	defer t.topicsMu.Unlock()
	if len(t.topics) == 0 {
		return true // Pusher/Puller role: no filtering
	}
	if _, ok := t.topics[""]; ok {
		return true
	}
	_, ok := t.topics[topic]
	return ok
}

// splitTopic strips the null-terminated topic prefix every ring frame
// carries. The scan is bounded to the prefix: payload bytes after the
// first NUL are never inspected.
func splitTopic(frame []byte) (topic string, payload []byte) {
	for i, b := range frame {
		if b == 0 {
			return string(frame[:i]), frame[i+1:]
		}
	}
	return "", frame
}

// Receive dequeues the next message this consumer hasn't seen yet that
// matches its topic subscriptions, copying at most len(buf) bytes into
// buf. Returns ok=false (not an error) when nothing is available.
func (t *SPMCTransport) Receive(buf []byte, nonBlocking bool) (int, bool, error) {
	if !t.hasCursor {
		return 0, false, ErrDisconnected
	}
	var bo lockfree.Backoff
	for {
		frame, _, ok, err := t.ring.Pop(t.consumerID)
		if err != nil {
			return 0, false, err
		}
		if !ok {
			if nonBlocking {
				return 0, false, nil
			}
			bo.Pause()
			continue
		}
		topic, payload := splitTopic(frame)
		if !t.matchesSubscription(topic) {
			continue
		}
		n := copy(buf, payload)
		t.recv.Add(1)
		t.bytesRecv.Add(uint64(n))
		return n, true, nil
	}
}

// Pull is an alias of Receive for the Puller role.
func (t *SPMCTransport) Pull(buf []byte, nonBlocking bool) (int, bool, error) {
	return t.Receive(buf, nonBlocking)
}

// SetReceiveCallback registers the callback StartAsyncReceive delivers to.
func (t *SPMCTransport) SetReceiveCallback(cb MessageCallback) { t.cb = cb }

// StartAsyncReceive launches a goroutine that polls Receive in a
// pause/yield/sleep backoff loop and invokes the registered callback for
// each delivered message, until StopAsyncReceive is called.
func (t *SPMCTransport) StartAsyncReceive() {
	if t.stopAsync != nil {
		return
	}
	t.stopAsync = make(chan struct{})
	go func() {
		buf := make([]byte, 1<<16)
		var bo lockfree.Backoff
		for {
			select {
			case <-t.stopAsync:
				return
			default:
			}
			n, ok, err := t.Receive(buf, true)
			if err != nil {
				bo.Pause()
				continue
			}
			if !ok {
				bo.Pause()
				continue
			}
			bo.Reset()
			if t.cb != nil {
				cp := make([]byte, n)
				copy(cp, buf[:n])
				t.cb(cp)
			}
		}
	}()
}

// StopAsyncReceive stops the async receive goroutine started by
// StartAsyncReceive, if any.
func (t *SPMCTransport) StopAsyncReceive() {
	if t.stopAsync == nil {
		return
	}
	close(t.stopAsync)
	t.stopAsync = nil
}

// Stats returns current send/receive counters.
func (t *SPMCTransport) Stats() Stats {
	return Stats{
		MessagesSent:     t.sent.Load(),
		MessagesReceived: t.recv.Load(),
		BytesSent:        t.bytesSent.Load(),
		BytesReceived:    t.bytesRecv.Load(),
	}
}
