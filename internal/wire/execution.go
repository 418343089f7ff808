package wire

import (
	"encoding/binary"
	"math"
)

// ExecType is the lifecycle state an OrderExecution reports.
type ExecType uint8

const (
	ExecNew ExecType = iota + 1
	ExecPartialFill
	ExecFill
	ExecCancelled
	ExecRejected
)

// OrderExecution reports a fill, partial fill, or terminal state for an
// order previously submitted through the gateway. Side carries the
// originating signal's action so downstream cost-basis accounting
// (internal/risk) can tell a buy fill from a sell fill without tracking
// order_id->action out of band.
type OrderExecution struct {
	OrderID     uint64
	ExecSeq     uint32
	Symbol      string
	Type        ExecType
	Side        SignalAction
	FillPrice   float64
	FillQty     uint32
	RemainQty   uint32
	Commission  float64
}

const orderExecutionBodySize = 8 + 4 + symbolFieldSize + 1 + 1 + 8 + 4 + 4 + 8

func (e OrderExecution) EncodeBody() []byte {
	buf := make([]byte, orderExecutionBodySize)
	off := 0
	binary.LittleEndian.PutUint64(buf[off:], e.OrderID)
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], e.ExecSeq)
	off += 4
	copy(buf[off:], FixedString(e.Symbol, symbolFieldSize))
	off += symbolFieldSize
	buf[off] = byte(e.Type)
	off++
	buf[off] = byte(e.Side)
	off++
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(e.FillPrice))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], e.FillQty)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], e.RemainQty)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(e.Commission))
	return buf
}

func DecodeOrderExecution(src []byte) OrderExecution {
	off := 0
	orderID := binary.LittleEndian.Uint64(src[off:])
	off += 8
	execSeq := binary.LittleEndian.Uint32(src[off:])
	off += 4
	symbol := ParseFixedString(src[off : off+symbolFieldSize])
	off += symbolFieldSize
	typ := ExecType(src[off])
	off++
	side := SignalAction(src[off])
	off++
	fillPrice := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	fillQty := binary.LittleEndian.Uint32(src[off:])
	off += 4
	remainQty := binary.LittleEndian.Uint32(src[off:])
	off += 4
	commission := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	return OrderExecution{
		OrderID:    orderID,
		ExecSeq:    execSeq,
		Symbol:     symbol,
		Type:       typ,
		Side:       side,
		FillPrice:  fillPrice,
		FillQty:    fillQty,
		RemainQty:  remainQty,
		Commission: commission,
	}
}

func EncodeOrderExecutionMessage(tsNs uint64, e OrderExecution) []byte {
	body := e.EncodeBody()
	h := Header{Type: TypeOrderExecution, Sequence: NextSequence(), TimestampNs: tsNs, PayloadSize: uint16(len(body))}
	out := make([]byte, HeaderSize+len(body))
	h.Encode(out)
	copy(out[HeaderSize:], body)
	return out
}
