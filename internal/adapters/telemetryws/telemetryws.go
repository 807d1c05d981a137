// Package telemetryws subscribes to the per-user conversation telemetry
// topic over websocket and hands raw payloads to the engine; normalization
// happens in the conversation package.
package telemetryws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeDeadline = 5 * time.Second

type Stream struct {
	conn    *websocket.Conn
	updates chan json.RawMessage

	mu     sync.Mutex
	closed bool
}

// Dial connects and subscribes to the conversations topic of the given user.
func Dial(ctx context.Context, url, accessToken, userID string) (*Stream, error) {
	if userID == "" {
		return nil, errors.New("telemetry subscription requires a user id")
	}
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}

	topic := fmt.Sprintf("v2.users.%s.conversations", userID)
	sub := struct {
		Type  string `json:"type"`
		Topic string `json:"topic"`
	}{Type: "subscribe", Topic: topic}
	b, _ := json.Marshal(sub)
	_ = conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		_ = conn.Close()
		return nil, err
	}

	s := &Stream{
		conn:    conn,
		updates: make(chan json.RawMessage, 32),
	}
	go s.readPump(ctx, topic)
	log.Info().Str("module", "adapters.telemetryws").Str("topic", topic).Msg("telemetry subscribed")
	return s, nil
}

func (s *Stream) Updates() <-chan json.RawMessage { return s.updates }

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	_ = s.conn.Close()
}

func (s *Stream) readPump(ctx context.Context, topic string) {
	defer func() {
		log.Info().Str("module", "adapters.telemetryws").Msg("readPump closing")
		s.Close()
		close(s.updates)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.telemetryws").Msg("readPump ctx done")
			return
		default:
			_, data, err := s.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.telemetryws").Msg("readPump read error")
				return
			}
			var frame struct {
				TopicName string          `json:"topicName"`
				EventBody json.RawMessage `json:"eventBody"`
			}
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Error().Err(err).Str("module", "adapters.telemetryws").Msg("bad frame")
				continue
			}
			if frame.TopicName != topic || len(frame.EventBody) == 0 {
				continue
			}
			// Blocking send preserves per-conversation arrival order.
			select {
			case s.updates <- frame.EventBody:
			case <-ctx.Done():
				return
			}
		}
	}
}
