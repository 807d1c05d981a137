package signalws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
)

var upgrader = websocket.Upgrader{}

// startServer runs a websocket endpoint and returns its ws:// url.
func startServer(t *testing.T, handler func(*websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func waitSignal(t *testing.T, tr *Transport) core.SignalEvent {
	t.Helper()
	select {
	case ev := <-tr.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no signal event within deadline")
		return nil
	}
}

func TestDialSendsBearerToken(t *testing.T) {
	headers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("Authorization")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "token-123")
	require.NoError(t, err)
	defer tr.Close()

	assert.Equal(t, "Bearer token-123", <-headers)
}

func TestReadPumpDecodesFrames(t *testing.T) {
	url := startServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		frames := []string{
			`{"type":"propose","sessionId":"s-1","conversationId":"c-1","fromJid":"sip:agent@sip.example.com","autoAnswer":true}`,
			`{"type":"weird-new-frame","sessionId":"s-1"}`,
			`{"type":"sessionInit","sessionId":"s-1","fromJid":"sip:agent@sip.example.com","sessionType":"softphone"}`,
			`{"type":"terminated","sessionId":"s-1","reason":"remote-hangup"}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr, err := Dial(ctx, url, "")
	require.NoError(t, err)
	defer tr.Close()

	ev := waitSignal(t, tr)
	propose, ok := ev.(core.ProposeEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, domain.SessionID("s-1"), propose.Info.SessionID)
	assert.Equal(t, domain.ConversationID("c-1"), propose.Info.ConversationID)
	assert.Equal(t, "sip:agent@sip.example.com", propose.Info.Address)
	assert.True(t, propose.Info.AutoAnswer)

	// The unknown frame type is skipped, sessionInit comes next.
	ev = waitSignal(t, tr)
	initEv, ok := ev.(core.SessionInitEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, domain.SessionID("s-1"), initEv.Session.ID)
	assert.Equal(t, domain.SessionTypeSoftphone, initEv.Session.Type)
	assert.Equal(t, domain.SessionStateInit, initEv.Session.State)

	ev = waitSignal(t, tr)
	term, ok := ev.(core.TerminatedEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, "remote-hangup", term.Reason)
}

func TestCommandsGoOverTheWire(t *testing.T) {
	received := make(chan []byte, 8)
	url := startServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr, err := Dial(ctx, url, "")
	require.NoError(t, err)
	defer tr.Close()

	require.NoError(t, tr.AcceptRtcSession(ctx, "s-1"))

	var cmd sessionCommand
	select {
	case data := <-received:
		require.NoError(t, json.Unmarshal(data, &cmd))
	case <-time.After(2 * time.Second):
		t.Fatal("no command frame within deadline")
	}
	assert.Equal(t, "accept", cmd.Type)
	assert.Equal(t, "s-1", cmd.SessionID)

	sid, err := tr.InitiateRtcSession(ctx, core.InitiateOptions{
		Address:     "+13115552368@sip.example.com",
		SessionType: domain.SessionTypeSoftphone,
	})
	require.NoError(t, err)
	require.NotEmpty(t, sid)

	var init struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		Address   string `json:"address"`
	}
	select {
	case data := <-received:
		require.NoError(t, json.Unmarshal(data, &init))
	case <-time.After(2 * time.Second):
		t.Fatal("no initiate frame within deadline")
	}
	assert.Equal(t, "initiate", init.Type)
	assert.Equal(t, string(sid), init.SessionID)
	assert.Equal(t, "+13115552368@sip.example.com", init.Address)
}

func TestSendAfterCloseFails(t *testing.T) {
	url := startServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tr, err := Dial(ctx, url, "")
	require.NoError(t, err)

	tr.Close()
	tr.Close() // idempotent
	assert.Error(t, tr.AcceptRtcSession(ctx, "s-1"))
}
