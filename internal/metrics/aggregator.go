package metrics

import (
	"sync"
	"time"

	"github.com/abdoElHodaky/hft-core/internal/lockfree"
	"github.com/abdoElHodaky/hft-core/internal/wire"
	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const offlineAfter = 5 * time.Second

// Source is the minimal transport capability the Aggregator needs to
// receive metrics snapshots — internal/transport.Subscriber satisfies it.
type Source interface {
	Receive(buf []byte, nonBlocking bool) (n int, ok bool, err error)
}

// ServiceState is a service's online/offline state as tracked by the
// Aggregator: UNSEEN -> ONLINE -> OFFLINE -> ONLINE.
type ServiceState uint8

const (
	StateUnseen ServiceState = iota
	StateOnline
	StateOffline
)

// ServiceView is the aggregator's merged view of one service.
type ServiceView struct {
	Name       string
	State      ServiceState
	LastUpdate time.Time
	Metrics    []wire.MetricSample
}

// Aggregator subscribes to every service's publisher socket and merges
// their snapshots into a cross-service view, marking a service offline
// after 5s of silence and back online on its next message — implemented
// with a TTL cache whose expiry is the offline detector; Run sweeps
// expired entries into OFFLINE every 100ms.
type Aggregator struct {
	src    Source
	logger *zap.Logger

	mu    sync.RWMutex
	views map[string]*ServiceView

	ttl *cache.Cache

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewAggregator creates an Aggregator reading snapshots from src.
func NewAggregator(src Source, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		src:    src,
		logger: logger,
		views:  make(map[string]*ServiceView),
		ttl:    cache.New(offlineAfter, offlineAfter/2),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Run polls the source non-blocking in a short pause/backoff loop and also
// sweeps expired TTL entries into OFFLINE, until Stop is called.
func (a *Aggregator) Run() {
	defer close(a.doneCh)
	buf := make([]byte, 1<<16)
	var bo lockfree.Backoff
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-a.stopCh:
			return
		case <-ticker.C:
			a.sweepOffline()
		default:
		}

		n, ok, err := a.src.Receive(buf, true)
		if err != nil {
			if a.logger != nil {
				a.logger.Warn("aggregator receive error", zap.Error(err))
			}
			bo.Pause()
			continue
		}
		if !ok {
			bo.Pause()
			continue
		}
		bo.Reset()
		a.handle(buf[:n])
	}
}

// Stop signals Run to exit.
func (a *Aggregator) Stop() {
	close(a.stopCh)
	<-a.doneCh
}

func (a *Aggregator) handle(msg []byte) {
	h := wire.DecodeHeader(msg)
	if h.Type != wire.TypeMetricsSnapshot {
		return
	}
	snap := wire.DecodeMetricsSnapshot(msg[wire.HeaderSize:])

	a.mu.Lock()
	v, exists := a.views[snap.ServiceName]
	if !exists {
		v = &ServiceView{Name: snap.ServiceName}
		a.views[snap.ServiceName] = v
	}
	v.State = StateOnline
	v.LastUpdate = time.Now()
	v.Metrics = snap.Metrics
	a.mu.Unlock()

	a.ttl.Set(snap.ServiceName, struct{}{}, offlineAfter)
}

// sweepOffline marks any service whose TTL cache entry has expired (no
// message for > 5s) as OFFLINE, preserving its last-known metric history.
func (a *Aggregator) sweepOffline() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, v := range a.views {
		if v.State != StateOnline {
			continue
		}
		if _, found := a.ttl.Get(name); !found {
			v.State = StateOffline
		}
	}
}

// Snapshot returns a defensive copy of every known service's current view.
func (a *Aggregator) Snapshot() map[string]ServiceView {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]ServiceView, len(a.views))
	for k, v := range a.views {
		out[k] = *v
	}
	return out
}
