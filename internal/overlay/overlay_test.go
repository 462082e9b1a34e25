package overlay

import (
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskmind/internal/copilot"
)

func dialHub(t *testing.T, hub *Hub) *ws.Conn {
	t.Helper()

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readEvent(t *testing.T, conn *ws.Conn) Event {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var ev Event
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestLateJoinerGetsCurrentState(t *testing.T) {
	hub := NewHub(slog.Default())
	hub.Listening(true, "standup in progress")

	conn := dialHub(t, hub)

	ev := readEvent(t, conn)
	assert.Equal(t, StateListening, ev.State)
	assert.True(t, ev.IsListening)
	assert.Equal(t, "standup in progress", ev.Transcript)
}

func TestShowResponseBroadcast(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := dialHub(t, hub)
	readEvent(t, conn) // initial hidden state

	hub.ShowResponse(&copilot.Response{
		ID:         "r-1",
		Answer:     "Two tasks shipped last sprint.",
		Confidence: 0.9,
	})

	ev := readEvent(t, conn)
	assert.Equal(t, StateResponding, ev.State)
	require.NotNil(t, ev.Response)
	assert.Equal(t, "r-1", ev.Response.ID)
}

func TestDismissHidesAndFiresCallback(t *testing.T) {
	hub := NewHub(slog.Default())

	dismissed := make(chan struct{}, 1)
	hub.OnDismiss(func() { dismissed <- struct{}{} })

	conn := dialHub(t, hub)
	readEvent(t, conn)

	hub.ShowResponse(&copilot.Response{ID: "r-2", Answer: "ok", Confidence: 0.5})
	readEvent(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]string{"cmd": "dismiss"}))

	select {
	case <-dismissed:
	case <-time.After(2 * time.Second):
		t.Fatal("dismiss callback never fired")
	}

	ev := readEvent(t, conn)
	assert.Equal(t, StateHidden, ev.State)
}

func TestThinkingCarriesStatus(t *testing.T) {
	hub := NewHub(slog.Default())
	conn := dialHub(t, hub)
	readEvent(t, conn)

	hub.Thinking("Analyzing question...")

	ev := readEvent(t, conn)
	assert.Equal(t, StateThinking, ev.State)
	assert.Equal(t, "Analyzing question...", ev.Status)
}
