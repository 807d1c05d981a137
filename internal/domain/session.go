// Package domain contains entity without logic, just meta-data
package domain

type (
	SessionID      string
	ConversationID string
)

// SessionType discriminates the per-type handler a session is dispatched to.
type SessionType string

const (
	SessionTypeSoftphone        SessionType = "softphone"
	SessionTypeCollaborateVideo SessionType = "collaborateVideo"
	SessionTypeAcdScreenShare   SessionType = "acdScreenShare"
	SessionTypeScreenRecording  SessionType = "screenRecording"
	SessionTypeLiveMonitoring   SessionType = "liveScreenMonitoring"
)

// SessionState is the transport-reported connection phase.
// It is necessary but not sufficient for lifecycle decisions; the
// authoritative signal is the per-participant CallState from telemetry.
type SessionState string

const (
	SessionStateInit       SessionState = "init"
	SessionStatePending    SessionState = "pending"
	SessionStateActive     SessionState = "active"
	SessionStateTerminated SessionState = "terminated"
)

// Session is a live real-time media session negotiated via the signaling
// transport. ConversationID may be unset at creation and attached later,
// and may be reassigned under persistent-connection reuse.
type Session struct {
	ID             SessionID
	ConversationID ConversationID
	Address        string
	Type           SessionType
	State          SessionState
	AutoAnswer     bool
	AudioMuted     bool
	VideoMuted     bool

	// PCParticipant is the most recent matched conversation participant.
	PCParticipant *Participant
}

// SessionDTO is a read-only view for diagnostics (no transport fields).
type SessionDTO struct {
	ID             SessionID      `json:"id"`
	ConversationID ConversationID `json:"conversationId,omitempty"`
	Address        string         `json:"address,omitempty"`
	Type           SessionType    `json:"sessionType"`
	State          SessionState   `json:"state"`
	AudioMuted     bool           `json:"audioMuted"`
	VideoMuted     bool           `json:"videoMuted"`
}

func (s *Session) DTO() SessionDTO {
	return SessionDTO{
		ID:             s.ID,
		ConversationID: s.ConversationID,
		Address:        s.Address,
		Type:           s.Type,
		State:          s.State,
		AudioMuted:     s.AudioMuted,
		VideoMuted:     s.VideoMuted,
	}
}
