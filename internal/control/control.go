// Package control wraps internal/wire's control-plane message shape in a
// named command enum and a subscriber contract. The control plane itself
// (an HTTP/gRPC endpoint issuing these commands) lives in another
// process; only the command vocabulary and the dispatch contract are
// implemented here.
package control

import (
	"github.com/abdoElHodaky/hft-core/internal/wire"
)

// Command is the control-plane action vocabulary.
type Command uint8

const (
	StartTrading Command = iota + 1
	StopTrading
	PauseTrading
	RestartService
	ShutdownSystem
	UpdateConfig
)

func (c Command) String() string {
	switch c {
	case StartTrading:
		return "START_TRADING"
	case StopTrading:
		return "STOP_TRADING"
	case PauseTrading:
		return "PAUSE_TRADING"
	case RestartService:
		return "RESTART_SERVICE"
	case ShutdownSystem:
		return "SHUTDOWN_SYSTEM"
	case UpdateConfig:
		return "UPDATE_CONFIG"
	default:
		return "UNKNOWN"
	}
}

// toWire maps Command onto the existing internal/wire control
// command byte values, and back.
var toWire = map[Command]wire.ControlCommand{
	StartTrading:   wire.CmdStartTrading,
	StopTrading:    wire.CmdStopTrading,
	PauseTrading:   wire.CmdPauseTrading,
	RestartService: wire.CmdRestartService,
	ShutdownSystem: wire.CmdShutdownSystem,
	UpdateConfig:   wire.CmdUpdateConfig,
}

var fromWire = func() map[wire.ControlCommand]Command {
	out := make(map[wire.ControlCommand]Command, len(toWire))
	for c, w := range toWire {
		out[w] = c
	}
	return out
}()

// ToWire converts c to the wire-level command byte. Returns false if c is
// not a recognized command.
func (c Command) ToWire() (wire.ControlCommand, bool) {
	w, ok := toWire[c]
	return w, ok
}

// FromWire converts a wire-level control command into a Command. Returns
// false if w is not recognized.
func FromWire(w wire.ControlCommand) (Command, bool) {
	c, ok := fromWire[w]
	return c, ok
}

// Handler reacts to a single dispatched Command, optionally carrying a
// payload (e.g. UPDATE_CONFIG's "key=value" string).
type Handler func(cmd Command, payload string)

// Subscriber is the contract a control-plane consumer satisfies: receive
// raw control-command frames off the wire and dispatch them to a Handler.
// Concrete wiring is internal/transport.Subscriber plus Dispatch below;
// this type documents the contract independent of any one transport.
type Subscriber interface {
	SetReceiveCallback(cb func(data []byte))
	StartAsyncReceive()
	StopAsyncReceive()
}

// Dispatch decodes a raw control-command wire frame and invokes handler,
// silently dropping frames bearing an unrecognized command (forward
// compatibility with future command values, symmetric with config's
// unknown-keys-are-ignored rule).
func Dispatch(frame []byte, handler Handler) {
	msg := wire.DecodeControlMessage(frame[wire.HeaderSize:])
	cmd, ok := FromWire(msg.Command)
	if !ok {
		return
	}
	handler(cmd, msg.Payload)
}

// Subscribe wires sub's async receive loop to call Dispatch for every
// delivered frame, forwarding to handler.
func Subscribe(sub Subscriber, handler Handler) {
	sub.SetReceiveCallback(func(data []byte) {
		Dispatch(data, handler)
	})
	sub.StartAsyncReceive()
}
