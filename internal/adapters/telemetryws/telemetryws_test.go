package telemetryws

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
)

var upgrader = websocket.Upgrader{}

func TestDialRequiresUserID(t *testing.T) {
	_, err := Dial(context.Background(), "ws://localhost:1/notifications", "", "")
	assert.Error(t, err)
}

func TestSubscribesAndFiltersTopic(t *testing.T) {
	subscribed := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, sub, err := conn.ReadMessage()
		if err != nil {
			return
		}
		subscribed <- sub

		frames := []string{
			// Noise from an unrelated topic is dropped.
			`{"topicName":"v2.users.u-2.conversations","eventBody":{"id":"other"}}`,
			`{"topicName":"v2.users.u-1.conversations","eventBody":{"id":"c-1","participants":[]}}`,
		}
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		_, _, _ = conn.ReadMessage()
	}))
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream, err := Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), "token-123", "u-1")
	require.NoError(t, err)
	defer stream.Close()

	var sub struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
	}
	require.NoError(t, json.Unmarshal(<-subscribed, &sub))
	assert.Equal(t, "subscribe", sub.Type)
	assert.Equal(t, "v2.users.u-1.conversations", sub.Topic)

	select {
	case raw := <-stream.Updates():
		var body struct {
			ID string `json:"id"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		assert.Equal(t, "c-1", body.ID, "only the subscribed topic gets through")
	case <-time.After(2 * time.Second):
		t.Fatal("no update within deadline")
	}
}
