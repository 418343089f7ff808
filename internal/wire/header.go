// Package wire defines the fixed-layout, little-endian wire messages
// shared across every component, and their binary codec. Message bodies
// are plain data, copied by value across transport boundaries.
package wire

import (
	"encoding/binary"
	"sync/atomic"
)

// MessageType identifies the body that follows a Header.
type MessageType uint16

const (
	TypeMarketData MessageType = iota + 1
	TypeTradingSignal
	TypeOrderExecution
	TypePositionUpdate
	TypeOrderBookUpdate
	TypeMetricsSnapshot
	TypeControlCommand
)

// HeaderSize is the encoded byte size of Header.
const HeaderSize = 2 + 4 + 8 + 2

// Header is the fixed-layout record every wire message begins with.
type Header struct {
	Type        MessageType
	Sequence    uint32
	TimestampNs uint64
	PayloadSize uint16
}

// sequenceCounter is the process-wide monotonic sequence generator shared
// by every message producer in this process.
var sequenceCounter atomic.Uint32

// NextSequence returns the next process-wide monotonic sequence number.
func NextSequence() uint32 {
	return sequenceCounter.Add(1)
}

// Encode writes the header in little-endian order into dst, which must be
// at least HeaderSize bytes.
func (h Header) Encode(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:2], uint16(h.Type))
	binary.LittleEndian.PutUint32(dst[2:6], h.Sequence)
	binary.LittleEndian.PutUint64(dst[6:14], h.TimestampNs)
	binary.LittleEndian.PutUint16(dst[14:16], h.PayloadSize)
}

// DecodeHeader reads a Header from the front of src.
func DecodeHeader(src []byte) Header {
	return Header{
		Type:        MessageType(binary.LittleEndian.Uint16(src[0:2])),
		Sequence:    binary.LittleEndian.Uint32(src[2:6]),
		TimestampNs: binary.LittleEndian.Uint64(src[6:14]),
		PayloadSize: binary.LittleEndian.Uint16(src[14:16]),
	}
}

// FixedString encodes s into a null-padded field of width n, truncating
// to n-1 bytes so a terminating null always fits.
func FixedString(s string, n int) []byte {
	out := make([]byte, n)
	b := []byte(s)
	if len(b) > n-1 {
		b = b[:n-1]
	}
	copy(out, b)
	return out
}

// ParseFixedString trims trailing NUL bytes from a fixed-width field.
func ParseFixedString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
