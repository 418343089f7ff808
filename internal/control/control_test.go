package control

import (
	"testing"

	"github.com/abdoElHodaky/hft-core/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToWireAndFromWireRoundTrip(t *testing.T) {
	for _, c := range []Command{StartTrading, StopTrading, PauseTrading, RestartService, ShutdownSystem, UpdateConfig} {
		w, ok := c.ToWire()
		require.True(t, ok)
		back, ok := FromWire(w)
		require.True(t, ok)
		assert.Equal(t, c, back)
	}
}

func TestFromWireUnknownIsRejected(t *testing.T) {
	_, ok := FromWire(wire.ControlCommand(99))
	assert.False(t, ok)
}

func TestDispatchInvokesHandlerWithPayload(t *testing.T) {
	msg := wire.ControlMessage{Command: wire.CmdUpdateConfig, Payload: "risk.max_daily_loss=2000"}
	frame := wire.EncodeControlMessage(1, msg)

	var gotCmd Command
	var gotPayload string
	Dispatch(frame, func(cmd Command, payload string) {
		gotCmd = cmd
		gotPayload = payload
	})

	assert.Equal(t, UpdateConfig, gotCmd)
	assert.Equal(t, "risk.max_daily_loss=2000", gotPayload)
}

func TestDispatchDropsUnknownCommandSilently(t *testing.T) {
	msg := wire.ControlMessage{Command: wire.ControlCommand(99)}
	frame := wire.EncodeControlMessage(1, msg)

	called := false
	Dispatch(frame, func(cmd Command, payload string) { called = true })
	assert.False(t, called)
}

func TestCommandString(t *testing.T) {
	assert.Equal(t, "START_TRADING", StartTrading.String())
	assert.Equal(t, "UNKNOWN", Command(0).String())
}
