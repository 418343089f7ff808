package wire

import (
	"encoding/binary"
	"math"
)

// PositionUpdate reports a position's post-trade or post-tick state.
type PositionUpdate struct {
	Symbol        string
	NetQuantity   float64 // signed: positive long, negative short
	AvgCost       float64
	UnrealizedPnL float64
	RealizedPnL   float64
	MarketValue   float64
}

const positionUpdateBodySize = symbolFieldSize + 8*5

func (p PositionUpdate) EncodeBody() []byte {
	buf := make([]byte, positionUpdateBodySize)
	off := 0
	copy(buf[off:], FixedString(p.Symbol, symbolFieldSize))
	off += symbolFieldSize
	for _, v := range []float64{p.NetQuantity, p.AvgCost, p.UnrealizedPnL, p.RealizedPnL, p.MarketValue} {
		binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(v))
		off += 8
	}
	return buf
}

func DecodePositionUpdate(src []byte) PositionUpdate {
	off := 0
	symbol := ParseFixedString(src[off : off+symbolFieldSize])
	off += symbolFieldSize
	vals := make([]float64, 5)
	for i := range vals {
		vals[i] = math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
		off += 8
	}
	return PositionUpdate{
		Symbol:        symbol,
		NetQuantity:   vals[0],
		AvgCost:       vals[1],
		UnrealizedPnL: vals[2],
		RealizedPnL:   vals[3],
		MarketValue:   vals[4],
	}
}

func EncodePositionUpdateMessage(tsNs uint64, p PositionUpdate) []byte {
	body := p.EncodeBody()
	h := Header{Type: TypePositionUpdate, Sequence: NextSequence(), TimestampNs: tsNs, PayloadSize: uint16(len(body))}
	out := make([]byte, HeaderSize+len(body))
	h.Encode(out)
	copy(out[HeaderSize:], body)
	return out
}
