package conversation

import (
	"github.com/dkeye/callkit/internal/domain"
)

// EventKind classifies the single lifecycle decision a reconciliation turn
// produces.
type EventKind int

const (
	// EventNone: nothing to surface; stored state may still be refreshed.
	EventNone EventKind = iota
	// EventDropped: the update belongs to a conversation this client never
	// owned (or already fully processed); no state is created.
	EventDropped
	// EventPending: an invitation-equivalent state on the active session.
	EventPending
	// EventStarted: the conversation effectively started on its session.
	EventStarted
	// EventUpdated: an observable field changed without a start/end.
	EventUpdated
	// EventCancel: the invitation went away before being handled.
	EventCancel
	// EventEnded: the conversation finished.
	EventEnded
)

func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "none"
	case EventDropped:
		return "dropped"
	case EventPending:
		return "pending"
	case EventStarted:
		return "started"
	case EventUpdated:
		return "updated"
	case EventCancel:
		return "cancel"
	case EventEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// SessionRef is the narrow view of a live session the reconciler consults.
type SessionRef struct {
	ID             domain.SessionID
	ConversationID domain.ConversationID
}

// Snapshot is everything outside the update itself that reconciliation may
// read. It is assembled by the caller in the same event-loop turn, so the
// reconciler stays a pure function of (update, prev, snapshot).
type Snapshot struct {
	UserID string
	// ConcurrentSessions: each conversation gets its own session
	// ("line appearance"). When false, the single active session carries
	// whichever conversation is current.
	ConcurrentSessions bool
	// PersistentConnection: one long-lived session is silently reused across
	// sequential conversations.
	PersistentConnection bool
	Sessions             []SessionRef
	ActiveSessionID      domain.SessionID
	// Claims maps live sessions to the stored conversation currently
	// claiming them.
	Claims map[domain.SessionID]domain.ConversationID
}

// Decision is the outcome of one reconciliation turn: at most one lifecycle
// event plus the replacement stored state (nil means delete/absent).
type Decision struct {
	Event       EventKind
	SessionID   domain.SessionID
	AssignToSID bool
	Stored      *StoredState
	Call        *domain.Call
	Participant *domain.Participant
	CallError   *domain.CallErrorInfo
}

// Reconcile merges one normalized conversation update with the previous
// stored state and the live-table snapshot, deciding exactly once whether
// the conversation started, updated or ended. It performs no I/O and never
// blocks; all side effects are applied by the caller from the Decision.
func Reconcile(update domain.ConversationUpdate, prev *StoredState, snap Snapshot) Decision {
	participant := selectParticipant(update, prev, snap.UserID)
	if participant == nil {
		// No matching participant: expected race, treated as a no-op.
		return Decision{Event: EventNone, Stored: prev}
	}

	call := selectCall(participant)
	if call == nil {
		return Decision{Event: EventNone, Stored: prev}
	}

	var callErr *domain.CallErrorInfo
	if call.ErrorInfo != nil {
		callErr = call.ErrorInfo
	}

	sid := resolveSession(update.ID, prev, snap)

	// A state record is created only for conversations this client owns from
	// the start: either one already exists, or the call is still in an
	// invitation-equivalent state. Anything else was answered elsewhere or
	// already fully processed.
	if prev == nil && !call.State.Pending() {
		return Decision{Event: EventDropped, SessionID: sid, Call: call, Participant: participant, CallError: callErr}
	}

	var prevCall *domain.Call
	if prev != nil {
		prevCall = prev.MostRecentCallState
	}

	next := &StoredState{
		ConversationID:        update.ID,
		MostRecentCallState:   call,
		MostRecentParticipant: participant,
		Update:                update,
		SessionID:             sid,
	}

	if !Changed(prevCall, call) {
		// No observable diff; still refresh the raw update for later use.
		return Decision{Event: EventNone, SessionID: sid, Stored: next, Call: call, Participant: participant, CallError: callErr}
	}

	d := Decision{SessionID: sid, Stored: next, Call: call, Participant: participant, CallError: callErr}

	stateChanged := prevCall == nil || prevCall.State != call.State
	if !stateChanged {
		d.Event = EventUpdated
		return d
	}

	switch {
	case call.State.Pending():
		// Surface only when the resolved session is the active one;
		// otherwise this conversation is queued behind an existing call.
		if sid != "" && sid == snap.ActiveSessionID {
			d.Event = EventPending
		} else {
			d.Event = EventNone
		}
	case call.State.Ended():
		d.Stored = nil
		if prevCall != nil && prevCall.State.Pending() {
			d.Event = EventCancel
		} else {
			d.Event = EventEnded
		}
	case call.State == domain.CallStateConnected:
		alreadyOnSession := prev != nil && prev.SessionID != "" && prev.SessionID == sid
		alreadyConnected := prevCall != nil && prevCall.State == domain.CallStateConnected
		if !alreadyOnSession || !alreadyConnected {
			d.Event = EventStarted
			d.AssignToSID = sid != ""
		} else {
			d.Event = EventUpdated
		}
	default:
		d.Event = EventUpdated
	}
	return d
}

// selectParticipant extracts the current user's relevant participant. The
// same user can appear under multiple participant records transiently during
// transfer/consult scenarios.
func selectParticipant(update domain.ConversationUpdate, prev *StoredState, userID string) *domain.Participant {
	var matches []*domain.Participant
	for i := range update.Participants {
		if update.Participants[i].UserID == userID {
			matches = append(matches, &update.Participants[i])
		}
	}
	switch len(matches) {
	case 0:
		return nil
	case 1:
		return matches[0]
	}

	if prev != nil && prev.MostRecentCallState != nil {
		expected := prev.MostRecentCallState.State
		for _, p := range matches {
			for i := range p.Calls {
				if p.Calls[i].State == expected {
					return p
				}
			}
		}
	}
	for _, p := range matches {
		if len(p.Calls) > 0 {
			return p
		}
	}
	return matches[0]
}

// selectCall extracts the participant's authoritative call: the only call if
// there is one, else the single non-ended call, else the last in the list
// (assumed most recent).
func selectCall(p *domain.Participant) *domain.Call {
	switch len(p.Calls) {
	case 0:
		return nil
	case 1:
		return &p.Calls[0]
	}
	var live []*domain.Call
	for i := range p.Calls {
		if !p.Calls[i].State.Ended() {
			live = append(live, &p.Calls[i])
		}
	}
	if len(live) == 1 {
		return live[0]
	}
	return &p.Calls[len(p.Calls)-1]
}

// resolveSession picks the session this conversation rides on, in priority
// order: the stored association, the single active session outside
// concurrent-sessions mode, a live-table scan by conversation id, and
// finally the persistent-connection multiplexing fallback.
func resolveSession(convID domain.ConversationID, prev *StoredState, snap Snapshot) domain.SessionID {
	if prev != nil && prev.SessionID != "" {
		for _, ref := range snap.Sessions {
			if ref.ID == prev.SessionID {
				return prev.SessionID
			}
		}
	}
	if !snap.ConcurrentSessions && snap.ActiveSessionID != "" {
		return snap.ActiveSessionID
	}
	for _, ref := range snap.Sessions {
		if ref.ConversationID == convID {
			return ref.ID
		}
	}
	if snap.PersistentConnection && snap.ActiveSessionID != "" {
		// Reassign the long-lived session only if no other stored
		// conversation still claims it.
		claimed, ok := snap.Claims[snap.ActiveSessionID]
		if !ok || claimed == convID {
			return snap.ActiveSessionID
		}
	}
	return ""
}
