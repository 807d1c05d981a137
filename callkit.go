// Package callkit is a client-side orchestration layer for real-time media
// sessions. Consumers request a session type; the engine negotiates its
// lifecycle against the signaling channel and the per-user conversation
// telemetry feed, and exposes a small set of lifecycle events and commands.
package callkit

import (
	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
)

// Aliases re-export the engine types consumers interact with: identifiers,
// entities, the event set, command parameters and the dependency contracts.
type (
	SessionID      = domain.SessionID
	ConversationID = domain.ConversationID
	SessionType    = domain.SessionType
	SessionState   = domain.SessionState
	CallState      = domain.CallState

	Session              = domain.Session
	SessionDTO           = domain.SessionDTO
	PendingSession       = domain.PendingSession
	Participant          = domain.Participant
	Call                 = domain.Call
	CallErrorInfo        = domain.CallErrorInfo
	ConversationSnapshot = domain.ConversationSnapshot

	Event                      = core.Event
	PendingSessionEvent        = core.PendingSessionEvent
	HandledPendingSessionEvent = core.HandledPendingSessionEvent
	CancelPendingSessionEvent  = core.CancelPendingSessionEvent
	SessionStartedEvent        = core.SessionStartedEvent
	SessionEndedEvent          = core.SessionEndedEvent
	ConversationUpdateEvent    = core.ConversationUpdateEvent
	ErrorEvent                 = core.ErrorEvent

	StartSessionParams  = core.StartSessionParams
	AcceptSessionParams = core.AcceptSessionParams
	EndSessionParams    = core.EndSessionParams
	MuteParams          = core.MuteParams

	MediaOptions = core.MediaOptions
	MediaStream  = core.MediaStream

	// Types needed to implement the dependency contracts outside this module.
	SignalEvent           = core.SignalEvent
	SignalProposeEvent    = core.ProposeEvent
	SignalInitEvent       = core.SessionInitEvent
	SignalTerminatedEvent = core.TerminatedEvent
	SessionInfo           = core.SessionInfo
	InitiateOptions       = core.InitiateOptions
	ParticipantPatch      = core.ParticipantPatch

	SignalTransport = core.SignalTransport
	TelemetryStream = core.TelemetryStream
	MediaProvider   = core.MediaProvider
	ConversationAPI = core.ConversationAPI
)

const (
	SessionTypeSoftphone        = domain.SessionTypeSoftphone
	SessionTypeCollaborateVideo = domain.SessionTypeCollaborateVideo
	SessionTypeAcdScreenShare   = domain.SessionTypeAcdScreenShare
	SessionTypeScreenRecording  = domain.SessionTypeScreenRecording
	SessionTypeLiveMonitoring   = domain.SessionTypeLiveMonitoring
)
