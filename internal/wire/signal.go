package wire

import (
	"encoding/binary"
	"math"
)

// SignalAction is the trading action a TradingSignal requests.
type SignalAction uint8

const (
	ActionBuy SignalAction = iota + 1
	ActionSell
	ActionCancel
	ActionModify
)

// OrderType is the order style a TradingSignal requests.
type OrderType uint8

const (
	OrderMarket OrderType = iota + 1
	OrderLimit
	OrderStop
	OrderStopLimit
)

// TradingSignal is emitted by a strategy and consumed by the order gateway.
type TradingSignal struct {
	Symbol     string
	Action     SignalAction
	OrderType  OrderType
	Price      float64 // 0 for market orders
	Quantity   uint32
	StrategyID uint64
	Confidence float64 // [0,1]
}

const tradingSignalBodySize = symbolFieldSize + 1 + 1 + 8 + 4 + 8 + 8

func (s TradingSignal) EncodeBody() []byte {
	buf := make([]byte, tradingSignalBodySize)
	off := 0
	copy(buf[off:], FixedString(s.Symbol, symbolFieldSize))
	off += symbolFieldSize
	buf[off] = byte(s.Action)
	off++
	buf[off] = byte(s.OrderType)
	off++
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(s.Price))
	off += 8
	binary.LittleEndian.PutUint32(buf[off:], s.Quantity)
	off += 4
	binary.LittleEndian.PutUint64(buf[off:], s.StrategyID)
	off += 8
	binary.LittleEndian.PutUint64(buf[off:], math.Float64bits(s.Confidence))
	return buf
}

func DecodeTradingSignal(src []byte) TradingSignal {
	off := 0
	symbol := ParseFixedString(src[off : off+symbolFieldSize])
	off += symbolFieldSize
	action := SignalAction(src[off])
	off++
	orderType := OrderType(src[off])
	off++
	price := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	off += 8
	qty := binary.LittleEndian.Uint32(src[off:])
	off += 4
	strategyID := binary.LittleEndian.Uint64(src[off:])
	off += 8
	confidence := math.Float64frombits(binary.LittleEndian.Uint64(src[off:]))
	return TradingSignal{
		Symbol:     symbol,
		Action:     action,
		OrderType:  orderType,
		Price:      price,
		Quantity:   qty,
		StrategyID: strategyID,
		Confidence: confidence,
	}
}

func EncodeTradingSignalMessage(tsNs uint64, s TradingSignal) []byte {
	body := s.EncodeBody()
	h := Header{Type: TypeTradingSignal, Sequence: NextSequence(), TimestampNs: tsNs, PayloadSize: uint16(len(body))}
	out := make([]byte, HeaderSize+len(body))
	h.Encode(out)
	copy(out[HeaderSize:], body)
	return out
}
