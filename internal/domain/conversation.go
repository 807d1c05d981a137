package domain

// CallState is the authoritative per-participant call status reported by
// conversation telemetry, distinct from the transport SessionState.
type CallState string

const (
	CallStateAlerting     CallState = "alerting"
	CallStateContacting   CallState = "contacting"
	CallStateDialing      CallState = "dialing"
	CallStateHold         CallState = "hold"
	CallStateConnected    CallState = "connected"
	CallStateDisconnected CallState = "disconnected"
	CallStateTerminated   CallState = "terminated"
)

// Pending reports whether the state is an invitation-equivalent state.
func (s CallState) Pending() bool {
	return s == CallStateAlerting || s == CallStateContacting
}

// Ended reports whether the call has finished.
func (s CallState) Ended() bool {
	return s == CallStateDisconnected || s == CallStateTerminated
}

// CallErrorInfo is a business-level call error reported via telemetry.
type CallErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Call is one softphone leg of a participant, pruned to the fields the
// reconciler consumes.
type Call struct {
	ID        string         `json:"id"`
	State     CallState      `json:"state"`
	Muted     bool           `json:"muted"`
	Held      bool           `json:"held"`
	Confined  bool           `json:"confined"`
	Direction string         `json:"direction"`
	Provider  string         `json:"provider"`
	ErrorInfo *CallErrorInfo `json:"errorInfo,omitempty"`
}

// Video is one video/screen leg of a participant.
type Video struct {
	State         CallState `json:"state"`
	AudioMuted    bool      `json:"audioMuted"`
	VideoMuted    bool      `json:"videoMuted"`
	SharingScreen bool      `json:"sharingScreen"`
	PeerCount     int       `json:"peerCount"`
}

type Participant struct {
	ID      string  `json:"id"`
	UserID  string  `json:"userId"`
	Purpose string  `json:"purpose"`
	Calls   []Call  `json:"calls,omitempty"`
	Videos  []Video `json:"videos,omitempty"`
}

// ConversationUpdate is normalized telemetry for one conversation.
type ConversationUpdate struct {
	ID           ConversationID `json:"id"`
	Participants []Participant  `json:"participants"`
}

// ConversationSnapshot is the per-conversation view handed to consumers on
// update events and to the diagnostics surface.
type ConversationSnapshot struct {
	ConversationID ConversationID `json:"conversationId"`
	SessionID      SessionID      `json:"sessionId,omitempty"`
	State          CallState      `json:"state,omitempty"`
	Muted          bool           `json:"muted"`
	Held           bool           `json:"held"`
	Confined       bool           `json:"confined"`
	Direction      string         `json:"direction,omitempty"`
}
