package core

import (
	"context"

	"github.com/dkeye/callkit/internal/domain"
)

// ParticipantPatch mutates a participant's server-side state. Nil fields are
// left untouched.
type ParticipantPatch struct {
	State string `json:"state,omitempty"`
	Muted *bool  `json:"muted,omitempty"`
	Held  *bool  `json:"held,omitempty"`
}

const ParticipantStateDisconnected = "disconnected"

// ConversationAPI is the backend conversation service. Under persistent
// connection, ending or muting a call goes through here so the underlying
// transport session stays alive for other conversations.
type ConversationAPI interface {
	PatchParticipant(ctx context.Context, conversationID domain.ConversationID, participantID string, patch ParticipantPatch) error
}
