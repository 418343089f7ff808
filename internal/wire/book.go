package wire

import (
	"encoding/binary"
	"math"
)

// BookUpdateType is the kind of order-book mutation an OrderBookUpdate
// carries.
type BookUpdateType uint8

const (
	BookAdd BookUpdateType = iota + 1
	BookUpdate
	BookDelete
	BookSnapshot
)

// BookSide distinguishes bid from ask levels.
type BookSide uint8

const (
	SideBid BookSide = iota + 1
	SideAsk
)

// Level is a single price/size/order-count point in the book.
type Level struct {
	Price      float64
	Size       uint32
	OrderCount uint32
}

// OrderBookUpdate is a single level mutation with an exchange sequence
// number; updates with Sequence <= the book's last applied sequence are
// discarded.
type OrderBookUpdate struct {
	Symbol     string
	UpdateType BookUpdateType
	Side       BookSide
	Level      Level
	Sequence   uint64
}

const orderBookUpdateBodySize = symbolFieldSize + 1 + 1 + 8 + 4 + 4 + 8

func (u OrderBookUpdate) EncodeBody() []byte {
	buf := make([]byte, orderBookUpdateBodySize)
	off := 0
	copy(buf[off:], FixedString(u.Symbol, symbolFieldSize))
	off += symbolFieldSize
	buf[off] = byte(u.UpdateType)
	off++
	buf[off] = byte(u.Side)
	off++
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(u.Level.Price))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], u.Level.Size)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], u.Level.OrderCount)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], u.Sequence)
	return buf
}

func DecodeOrderBookUpdate(src []byte) OrderBookUpdate {
	off := 0
	symbol := ParseFixedString(src[off : off+symbolFieldSize])
	off += symbolFieldSize
	updateType := BookUpdateType(src[off])
	off++
	side := BookSide(src[off])
	off++
	price := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	size := binary.LittleEndian.Uint32(src[off:])
	off += 4
	orderCount := binary.LittleEndian.Uint32(src[off:])
	off += 4
	seq := binary.LittleEndian.Uint64(src[off:])
	return OrderBookUpdate{
		Symbol:     symbol,
		UpdateType: updateType,
		Side:       side,
		Level:      Level{Price: price, Size: size, OrderCount: orderCount},
		Sequence:   seq,
	}
}

func EncodeOrderBookUpdateMessage(tsNs uint64, u OrderBookUpdate) []byte {
	body := u.EncodeBody()
	h := Header{Type: TypeOrderBookUpdate, Sequence: NextSequence(), TimestampNs: tsNs, PayloadSize: uint16(len(body))}
	out := make([]byte, HeaderSize+len(body))
	h.Encode(out)
	copy(out[HeaderSize:], body)
	return out
}
