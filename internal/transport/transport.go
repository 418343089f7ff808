// Package transport implements the pluggable inter-process messaging
// fabric: an abstract pub/sub + push/pull role set bound to either a
// networked broker (NATS via watermill) or an in-process SPMC ring. Both
// backends deliver whole messages and preserve per-producer order.
package transport

import "errors"

// Pattern is the messaging pattern a transport endpoint is configured for.
type Pattern uint8

const (
	PatternPubSub Pattern = iota
	PatternPushPull
)

// Config selects a pattern, endpoint, buffer size, and high-water mark
// for one endpoint role.
type Config struct {
	Pattern     Pattern
	Endpoint    string // "tcp://host:port" or "ring://name"
	BufferSize  int    // default 1MB-equivalent for ring backends
	HighWaterMark int  // default 1000
	Blocking    bool
}

// DefaultBufferSize is the default ring capacity.
const DefaultBufferSize = 1 << 20

// DefaultHighWaterMark is the default backlog bound.
const DefaultHighWaterMark = 1000

// Stats are the send/receive counters every transport tracks.
type Stats struct {
	MessagesSent     uint64
	MessagesReceived uint64
	BytesSent        uint64
	BytesReceived    uint64
}

// MessageCallback is invoked for each message delivered by async receive.
type MessageCallback func(data []byte)

// Transport is the role-agnostic capability every backend provides.
type Transport interface {
	Bind(endpoint string) error
	Connect(endpoint string) error
	Close() error

	Send(data []byte, nonBlocking bool) (bool, error)
	Receive(buf []byte, nonBlocking bool) (n int, ok bool, err error)

	SetReceiveCallback(cb MessageCallback)
	StartAsyncReceive()
	StopAsyncReceive()

	Stats() Stats
}

// Publisher is a one-to-many producer role.
type Publisher interface {
	Transport
	Publish(topic string, data []byte) (bool, error)
}

// Subscriber is a one-to-many consumer role.
type Subscriber interface {
	Transport
	Subscribe(topic string) error
	Unsubscribe(topic string) error
}

// Pusher is a many-to-one producer role.
type Pusher interface {
	Transport
	Push(data []byte) (bool, error)
}

// Puller is a many-to-one consumer role.
type Puller interface {
	Transport
	Pull(buf []byte, nonBlocking bool) (n int, ok bool, err error)
}

// Errors returned by backends.
var (
	ErrSendBackpressure = errors.New("transport: send dropped, queue at capacity")
	ErrDisconnected     = errors.New("transport: endpoint not connected")
	ErrReceiveEmpty     = errors.New("transport: no message available")
	ErrPartialFrame     = errors.New("transport: partial frame (protocol violation)")
	ErrClosed           = errors.New("transport: transport closed")
)
