package ipc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandRoundtrip(t *testing.T) {
	got := make(chan ControlMessage, 1)
	require.NoError(t, StartServer(func(msg ControlMessage) { got <- msg }))

	require.NoError(t, SendCommand(CmdAsk, "what's the status on billing"))

	select {
	case msg := <-got:
		assert.Equal(t, CmdAsk, msg.Cmd)
		assert.Equal(t, "what's the status on billing", msg.Arg)
	case <-time.After(2 * time.Second):
		t.Fatal("command never reached the handler")
	}

	require.NoError(t, SendCommand(CmdRepeat, ""))

	select {
	case msg := <-got:
		assert.Equal(t, CmdRepeat, msg.Cmd)
		assert.Empty(t, msg.Arg)
	case <-time.After(2 * time.Second):
		t.Fatal("command never reached the handler")
	}
}
