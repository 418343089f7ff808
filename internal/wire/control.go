package wire

// ControlCommand is the set of commands the control plane issues on the
// control topic.
type ControlCommand uint8

const (
	CmdStartTrading ControlCommand = iota + 1
	CmdStopTrading
	CmdPauseTrading
	CmdRestartService
	CmdShutdownSystem
	CmdUpdateConfig
)

const controlPayloadFieldSize = 128

// ControlMessage wraps a ControlCommand with an optional opaque payload
// (e.g. a "key=value" pair for CmdUpdateConfig).
type ControlMessage struct {
	Command ControlCommand
	Payload string
}

const controlMessageBodySize = 1 + controlPayloadFieldSize

func (c ControlMessage) EncodeBody() []byte {
	buf := make([]byte, controlMessageBodySize)
	buf[0] = byte(c.Command)
	copy(buf[1:], FixedString(c.Payload, controlPayloadFieldSize))
	return buf
}

func DecodeControlMessage(src []byte) ControlMessage {
	cmd := ControlCommand(src[0])
	payload := ParseFixedString(src[1 : 1+controlPayloadFieldSize])
	return ControlMessage{Command: cmd, Payload: payload}
}

func EncodeControlMessage(tsNs uint64, c ControlMessage) []byte {
	body := c.EncodeBody()
	h := Header{Type: TypeControlCommand, Sequence: NextSequence(), TimestampNs: tsNs, PayloadSize: uint16(len(body))}
	out := make([]byte, HeaderSize+len(body))
	h.Encode(out)
	copy(out[HeaderSize:], body)
	return out
}
