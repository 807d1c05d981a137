package core

import (
	"context"

	"github.com/dkeye/callkit/internal/domain"
)

// StartSessionParams parameterize a locally-initiated session. Most session
// types can only be initiated by the backend and reject this.
type StartSessionParams struct {
	SessionType    domain.SessionType
	Address        string
	ConversationID domain.ConversationID
	Provider       string
}

type AcceptSessionParams struct {
	SessionID     domain.SessionID
	AudioDeviceID string
	VideoDeviceID string
	// MediaStream, when set, is consumer-supplied and will not be stopped
	// by the engine on termination.
	MediaStream *MediaStream
}

type EndSessionParams struct {
	SessionID      domain.SessionID
	ConversationID domain.ConversationID
	Reason         string
}

type MuteParams struct {
	ConversationID domain.ConversationID
	SessionID      domain.SessionID
	Mute           bool
}

// SessionHandler is the capability contract every session kind implements.
// Concrete handlers override the subset relevant to their type; defaults come
// from the free functions in the handlers package.
type SessionHandler interface {
	SessionType() domain.SessionType

	// ShouldHandleSessionByJid is the routing predicate used when no explicit
	// session type is known. Predicates of enabled handlers must be mutually
	// exclusive; registration probes ExampleJids to assert that.
	ShouldHandleSessionByJid(jid string) bool
	ExampleJids() []string

	StartSession(ctx context.Context, params StartSessionParams) (domain.SessionID, error)
	HandlePropose(ctx context.Context, pending *domain.PendingSession)
	HandleSessionInit(ctx context.Context, sess *ManagedSession) error
	AcceptSession(ctx context.Context, sess *ManagedSession, params AcceptSessionParams) error
	SetAudioMute(ctx context.Context, sess *ManagedSession, params MuteParams) error
	SetVideoMute(ctx context.Context, sess *ManagedSession, params MuteParams) error
	UpdateOutgoingMedia(ctx context.Context, sess *ManagedSession, opts MediaOptions) error
	EndSession(ctx context.Context, sess *ManagedSession, params EndSessionParams) error
	HandleSessionTerminated(ctx context.Context, sess *ManagedSession, reason string)
	HandleConversationUpdate(ctx context.Context, update domain.ConversationUpdate, sessions []*ManagedSession)
}

// SessionTable is the read side of the live session table handlers consult
// during reconciliation.
type SessionTable interface {
	All() []*ManagedSession
	Get(id domain.SessionID) (*ManagedSession, bool)
	// FindByConversation scans for a session currently associated with the
	// conversation; the secondary index is rebuilt on demand, not maintained.
	FindByConversation(id domain.ConversationID) (*ManagedSession, bool)
	// ActiveSession is the single globally active session, if any.
	ActiveSession() (*ManagedSession, bool)
	SetActiveSession(id domain.SessionID)
	Remove(id domain.SessionID)
}
