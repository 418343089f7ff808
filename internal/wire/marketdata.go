package wire

import (
	"encoding/binary"
	"math"
)

const symbolFieldSize = 16 // 15 chars + NUL

// MarketData is a normalized top-of-book + last-trade tick.
type MarketData struct {
	Symbol       string
	BidPrice     float64
	AskPrice     float64
	BidSize      uint32
	AskSize      uint32
	LastPrice    float64
	LastSize     uint32
	ExchangeTsNs uint64
}

// Valid reports whether bid <= ask whenever both sides are quoted.
func (m MarketData) Valid() bool {
	if m.BidPrice > 0 && m.AskPrice > 0 && m.BidPrice > m.AskPrice {
		return false
	}
	return true
}

const marketDataBodySize = symbolFieldSize + 8*3 + 4*3 + 8

// EncodeBody serializes the body only (no header) in little-endian order.
func (m MarketData) EncodeBody() []byte {
	buf := make([]byte, marketDataBodySize)
	off := 0
	copy(buf[off:], FixedString(m.Symbol, symbolFieldSize))
	off += symbolFieldSize
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.BidPrice))
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.AskPrice))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], m.BidSize)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], m.AskSize)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(m.LastPrice))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], m.LastSize)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], m.ExchangeTsNs)
	off += 8
	return buf
}

// DecodeMarketData reads a MarketData body from src.
func DecodeMarketData(src []byte) MarketData {
	off := 0
	symbol := ParseFixedString(src[off : off+symbolFieldSize])
	off += symbolFieldSize
	bid := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	ask := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	bidSize := binary.LittleEndian.Uint32(src[off:])
	off += 4
	askSize := binary.LittleEndian.Uint32(src[off:])
	off += 4
	last := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	lastSize := binary.LittleEndian.Uint32(src[off:])
	off += 4
	exTs := binary.LittleEndian.Uint64(src[off:])
	return MarketData{
		Symbol:       symbol,
		BidPrice:     bid,
		AskPrice:     ask,
		BidSize:      bidSize,
		AskSize:      askSize,
		LastPrice:    last,
		LastSize:     lastSize,
		ExchangeTsNs: exTs,
	}
}

// Mid returns (bid+ask)/2 when both sides are present, else 0.
func (m MarketData) Mid() float64 {
	if m.BidPrice > 0 && m.AskPrice > 0 {
		return (m.BidPrice + m.AskPrice) / 2
	}
	return 0
}

// EncodeMarketDataMessage encodes a full header+body frame.
func EncodeMarketDataMessage(tsNs uint64, m MarketData) []byte {
	body := m.EncodeBody()
	h := Header{Type: TypeMarketData, Sequence: NextSequence(), TimestampNs: tsNs, PayloadSize: uint16(len(body))}
	out := make([]byte, HeaderSize+len(body))
	h.Encode(out)
	copy(out[HeaderSize:], body)
	return out
}
