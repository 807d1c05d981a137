package core

import (
	"context"

	"github.com/dkeye/callkit/internal/domain"
)

// SessionInfo describes an inbound invitation (propose) from the signaling
// channel. SessionType may be empty when the transport only knows the peer
// address; routing then falls back to the handler address predicates.
type SessionInfo struct {
	SessionID      domain.SessionID
	ConversationID domain.ConversationID
	Address        string
	AutoAnswer     bool
	SessionType    domain.SessionType
}

// SignalEvent is the closed set of events the signaling transport emits.
type SignalEvent interface{ signalEvent() }

type ProposeEvent struct {
	Info SessionInfo
}

type SessionInitEvent struct {
	Session *domain.Session
}

type TerminatedEvent struct {
	SessionID domain.SessionID
	Reason    string
}

func (ProposeEvent) signalEvent()     {}
func (SessionInitEvent) signalEvent() {}
func (TerminatedEvent) signalEvent()  {}

// InitiateOptions parameterize an outbound session request.
type InitiateOptions struct {
	Address        string
	ConversationID domain.ConversationID
	SessionType    domain.SessionType
	Provider       string
}

// SignalTransport abstracts the signaling channel. The engine never parses
// the wire protocol; it only consumes these typed events and calls.
// Owned by the adapter; the adapter must Close() it.
type SignalTransport interface {
	Events() <-chan SignalEvent
	AcceptRtcSession(ctx context.Context, id domain.SessionID) error
	RejectRtcSession(ctx context.Context, id domain.SessionID) error
	InitiateRtcSession(ctx context.Context, opts InitiateOptions) (domain.SessionID, error)
	EndRtcSession(ctx context.Context, id domain.SessionID) error
	Close()
}
