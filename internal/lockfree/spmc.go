package lockfree

import (
	"encoding/binary"
	"errors"
	"sync"
	"sync/atomic"
)

// MaxConsumers bounds the number of independent readers a single SPMCRing
// supports.
const MaxConsumers = 32

// frameHeaderSize is {size:u32, sequence:u32}.
const frameHeaderSize = 8

var (
	// ErrMessageTooLarge is returned by Push when a frame would exceed the
	// ring's per-message cap (25% of capacity).
	ErrMessageTooLarge = errors.New("lockfree: message exceeds max frame size")
	// ErrRingFull is returned by Push when no consumer has enough room
	// left ahead of it for the new frame (the slowest live consumer sets
	// the write horizon).
	ErrRingFull = errors.New("lockfree: ring full, slowest consumer has not caught up")
	// ErrConsumerEvicted is returned by Pop once a consumer has been closed
	// by the HWM policy for falling too far behind.
	ErrConsumerEvicted = errors.New("lockfree: consumer evicted for exceeding high-water mark")
	// ErrNoConsumerSlot is returned by Register when all MaxConsumers slots
	// are in use.
	ErrNoConsumerSlot = errors.New("lockfree: no free consumer slot")
)

// consumerCursor tracks one registered reader's position as an ever-
// increasing byte offset into the logical (unbounded) stream; physical
// buffer offset is offset % capacity.
type consumerCursor struct {
	offset PaddedUint64
	active atomic.Bool
	evicted atomic.Bool
}

// SPMCRing is the in-process single-producer/multi-consumer transport
// backend: one producer appends framed messages, and up to MaxConsumers
// readers each hold an independent cursor. The producer never overwrites
// bytes a live consumer hasn't read; the HWM policy evicts (closes) a
// consumer instead of letting it stall the producer.
type SPMCRing struct {
	buf  []byte
	mask uint64
	cap  uint64

	writeOffset PaddedUint64 // logical byte offset of next write
	sequence    atomic.Uint64

	// mu serializes slot allocation in Register; every other reader of
	// cursors (producer horizon/evict scans, Pop) goes through the
	// atomic.Pointer loads so a concurrent Register never races them.
	mu      sync.Mutex
	cursors [MaxConsumers]atomic.Pointer[consumerCursor]

	hwmBytes uint64 // how far behind (in bytes) a consumer may lag before eviction
}

// NewSPMCRing creates a ring with the given power-of-two byte capacity and
// high-water mark (in bytes of lag) before a slow consumer is evicted.
func NewSPMCRing(capacity int, hwmBytes uint64) *SPMCRing {
	capacity = nextPowerOfTwo(capacity)
	return &SPMCRing{
		buf:      make([]byte, capacity),
		mask:     uint64(capacity - 1),
		cap:      uint64(capacity),
		hwmBytes: hwmBytes,
	}
}

// Register allocates a new consumer cursor starting at the current write
// position (new consumers only see messages published after they join).
func (r *SPMCRing) Register() (uint32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := 0; i < MaxConsumers; i++ {
		existing := r.cursors[i].Load()
		if existing == nil || existing.evicted.Load() || !existing.active.Load() {
			c := &consumerCursor{}
			c.offset.Store(r.writeOffset.Load())
			c.active.Store(true)
			r.cursors[i].Store(c)
			return uint32(i), nil
		}
	}
	return 0, ErrNoConsumerSlot
}

// Unregister releases a consumer slot.
func (r *SPMCRing) Unregister(id uint32) {
	if int(id) >= MaxConsumers {
		return
	}
	if c := r.cursors[id].Load(); c != nil {
		c.active.Store(false)
	}
}

// horizon returns the minimum read offset across all live consumers; the
// producer may never write past horizon+capacity.
func (r *SPMCRing) horizon() uint64 {
	min := r.writeOffset.Load()
	found := false
	for i := 0; i < MaxConsumers; i++ {
		c := r.cursors[i].Load()
		if c == nil || !c.active.Load() || c.evicted.Load() {
			continue
		}
		off := c.offset.Load()
		if !found || off < min {
			min = off
			found = true
		}
	}
	if !found {
		return r.writeOffset.Load()
	}
	return min
}

// evictSlowConsumers closes any consumer lagging beyond the configured HWM
// instead of letting it block producer progress.
func (r *SPMCRing) evictSlowConsumers(writeOff uint64) {
	for i := 0; i < MaxConsumers; i++ {
		c := r.cursors[i].Load()
		if c == nil || !c.active.Load() || c.evicted.Load() {
			continue
		}
		if writeOff-c.offset.Load() > r.hwmBytes {
			c.evicted.Store(true)
			c.active.Store(false)
		}
	}
}

// Push writes one framed message {size, sequence, payload}. Single
// producer only. Returns ErrRingFull if the slowest live consumer hasn't
// freed enough space — callers (the transport layer) evict delinquent
// consumers via the HWM check performed here before reporting full.
func (r *SPMCRing) Push(payload []byte) error {
	total := uint64(frameHeaderSize + len(payload))
	if total > r.cap/4 {
		return ErrMessageTooLarge
	}

	writeOff := r.writeOffset.Load()
	r.evictSlowConsumers(writeOff)
	h := r.horizon()

	if writeOff+total-h > r.cap {
		return ErrRingFull
	}

	seq := r.sequence.Add(1)

	var hdr [frameHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(seq))

	r.writeAt(writeOff, hdr[:])
	r.writeAt(writeOff+frameHeaderSize, payload)
	r.writeOffset.Store(writeOff + total)
	return nil
}

func (r *SPMCRing) writeAt(offset uint64, data []byte) {
	for i := 0; i < len(data); i++ {
		r.buf[(offset+uint64(i))&r.mask] = data[i]
	}
}

func (r *SPMCRing) readAt(offset uint64, out []byte) {
	for i := range out {
		out[i] = r.buf[(offset+uint64(i))&r.mask]
	}
}

// Pop reads the next whole message for the given consumer id. Returns
// ErrConsumerEvicted once the HWM policy has closed this consumer, and
// (nil, 0, false, nil) when no new message is available yet.
func (r *SPMCRing) Pop(id uint32) (payload []byte, sequence uint32, ok bool, err error) {
	if int(id) >= MaxConsumers {
		return nil, 0, false, ErrNoConsumerSlot
	}
	c := r.cursors[id].Load()
	if c == nil {
		return nil, 0, false, ErrNoConsumerSlot
	}
	if c.evicted.Load() {
		return nil, 0, false, ErrConsumerEvicted
	}

	readOff := c.offset.Load()
	writeOff := r.writeOffset.Load()
	if readOff >= writeOff {
		return nil, 0, false, nil
	}

	var hdr [frameHeaderSize]byte
	r.readAt(readOff, hdr[:])
	size := binary.LittleEndian.Uint32(hdr[0:4])
	seq := binary.LittleEndian.Uint32(hdr[4:8])

	payload = make([]byte, size)
	r.readAt(readOff+frameHeaderSize, payload)

	c.offset.Store(readOff + frameHeaderSize + uint64(size))
	return payload, seq, true, nil
}
