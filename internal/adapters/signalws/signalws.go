// Package signalws is the websocket client for the signaling channel. The
// engine never sees the wire protocol; this adapter decodes frames into the
// typed events of core.SignalTransport.
package signalws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
)

var ErrBackpressure = errors.New("backpressure")

const writeDeadline = 5 * time.Second

type Transport struct {
	conn   *websocket.Conn
	send   chan []byte
	events chan core.SignalEvent

	mu     sync.RWMutex
	closed bool
}

// Dial connects and starts the read/write pumps. The connection lives until
// Close or until ctx is done.
func Dial(ctx context.Context, url, accessToken string) (*Transport, error) {
	header := http.Header{}
	if accessToken != "" {
		header.Set("Authorization", "Bearer "+accessToken)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	t := &Transport{
		conn:   conn,
		send:   make(chan []byte, 32),
		events: make(chan core.SignalEvent, 32),
	}
	go t.writePump(ctx)
	go t.readPump(ctx)
	log.Info().Str("module", "adapters.signalws").Str("url", url).Msg("signaling connected")
	return t, nil
}

func (t *Transport) Events() <-chan core.SignalEvent { return t.events }

func (t *Transport) trySend(data []byte) error {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return errors.New("connection closed")
	}
	select {
	case t.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (t *Transport) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.send)
	_ = t.conn.Close()
	t.mu.Unlock()
}

func (t *Transport) writePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.signalws").Msg("writePump ctx done")
			t.Close()
			return
		case data, ok := <-t.send:
			if !ok {
				log.Warn().Str("module", "adapters.signalws").Msg("writePump channel closed")
				return
			}
			if err := t.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "adapters.signalws").Msg("writePump set deadline")
				return
			}
			if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "adapters.signalws").Msg("writePump write error")
				return
			}
		}
	}
}

func (t *Transport) readPump(ctx context.Context) {
	defer func() {
		log.Info().Str("module", "adapters.signalws").Msg("readPump closing")
		t.Close()
		close(t.events)
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "adapters.signalws").Msg("readPump ctx done")
			return
		default:
			_, data, err := t.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "adapters.signalws").Msg("readPump read error")
				return
			}
			t.handleFrame(ctx, data)
		}
	}
}

// deliver preserves FIFO ordering; the event loop must keep consuming.
func (t *Transport) deliver(ctx context.Context, ev core.SignalEvent) {
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

func (t *Transport) handleFrame(ctx context.Context, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "adapters.signalws").Msg("bad json")
		return
	}

	switch env.Type {
	case "propose":
		t.handlePropose(ctx, data)
	case "sessionInit":
		t.handleSessionInit(ctx, data)
	case "terminated":
		t.handleTerminated(ctx, data)
	default:
		log.Warn().Str("module", "adapters.signalws").Str("type", env.Type).Msg("unknown signal")
	}
}

func (t *Transport) handlePropose(ctx context.Context, data []byte) {
	var p struct {
		SessionID      string `json:"sessionId"`
		ConversationID string `json:"conversationId"`
		FromJid        string `json:"fromJid"`
		AutoAnswer     bool   `json:"autoAnswer"`
		SessionType    string `json:"sessionType"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "adapters.signalws").Msg("bad propose payload")
		return
	}
	t.deliver(ctx, core.ProposeEvent{Info: core.SessionInfo{
		SessionID:      domain.SessionID(p.SessionID),
		ConversationID: domain.ConversationID(p.ConversationID),
		Address:        p.FromJid,
		AutoAnswer:     p.AutoAnswer,
		SessionType:    domain.SessionType(p.SessionType),
	}})
}

func (t *Transport) handleSessionInit(ctx context.Context, data []byte) {
	var p struct {
		SessionID   string `json:"sessionId"`
		FromJid     string `json:"fromJid"`
		SessionType string `json:"sessionType"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "adapters.signalws").Msg("bad sessionInit payload")
		return
	}
	t.deliver(ctx, core.SessionInitEvent{Session: &domain.Session{
		ID:      domain.SessionID(p.SessionID),
		Address: p.FromJid,
		Type:    domain.SessionType(p.SessionType),
		State:   domain.SessionStateInit,
	}})
}

func (t *Transport) handleTerminated(ctx context.Context, data []byte) {
	var p struct {
		SessionID string `json:"sessionId"`
		Reason    string `json:"reason"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "adapters.signalws").Msg("bad terminated payload")
		return
	}
	t.deliver(ctx, core.TerminatedEvent{
		SessionID: domain.SessionID(p.SessionID),
		Reason:    p.Reason,
	})
}
