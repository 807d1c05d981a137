package signalws

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
)

func (t *Transport) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "adapters.signalws").Msg("sendJSON marshal")
		return err
	}
	return t.trySend(b)
}

type sessionCommand struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

func (t *Transport) AcceptRtcSession(_ context.Context, id domain.SessionID) error {
	return t.sendJSON(sessionCommand{Type: "accept", SessionID: string(id)})
}

func (t *Transport) RejectRtcSession(_ context.Context, id domain.SessionID) error {
	return t.sendJSON(sessionCommand{Type: "reject", SessionID: string(id)})
}

func (t *Transport) EndRtcSession(_ context.Context, id domain.SessionID) error {
	return t.sendJSON(sessionCommand{Type: "terminate", SessionID: string(id)})
}

// InitiateRtcSession requests an outbound session. The session id is minted
// here; the backend confirms it with a sessionInit frame.
func (t *Transport) InitiateRtcSession(_ context.Context, opts core.InitiateOptions) (domain.SessionID, error) {
	sid := domain.SessionID(uuid.NewString())
	cmd := struct {
		Type           string `json:"type"`
		SessionID      string `json:"sessionId"`
		Address        string `json:"address"`
		ConversationID string `json:"conversationId,omitempty"`
		SessionType    string `json:"sessionType,omitempty"`
		Provider       string `json:"provider,omitempty"`
	}{
		Type:           "initiate",
		SessionID:      string(sid),
		Address:        opts.Address,
		ConversationID: string(opts.ConversationID),
		SessionType:    string(opts.SessionType),
		Provider:       opts.Provider,
	}
	if err := t.sendJSON(cmd); err != nil {
		return "", err
	}
	return sid, nil
}
