package conversation

import (
	"sync"

	"github.com/dkeye/callkit/internal/domain"
)

// StoredState is the reconciler's memory for one conversation. It exists
// only while this client is responsible for the conversation.
type StoredState struct {
	ConversationID        domain.ConversationID
	MostRecentCallState   *domain.Call
	MostRecentParticipant *domain.Participant
	Update                domain.ConversationUpdate
	// SessionID is the session currently associated with this conversation.
	// Empty when another client is handling it.
	SessionID domain.SessionID
}

// Store is the table of per-conversation state plus the id of the
// conversation currently considered active. Mutated only from the single
// reconciliation path.
type Store struct {
	mu     sync.RWMutex
	states map[domain.ConversationID]*StoredState
	active domain.ConversationID
}

func NewStore() *Store {
	return &Store{states: make(map[domain.ConversationID]*StoredState)}
}

func (s *Store) Get(id domain.ConversationID) (*StoredState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[id]
	return st, ok
}

func (s *Store) Set(st *StoredState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ConversationID] = st
}

func (s *Store) Delete(id domain.ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, id)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// Claims maps session ids to the conversation currently claiming them, used
// by the persistent-connection fallback to avoid stealing a session that is
// still in use.
func (s *Store) Claims() map[domain.SessionID]domain.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[domain.SessionID]domain.ConversationID, len(s.states))
	for _, st := range s.states {
		if st.SessionID != "" {
			out[st.SessionID] = st.ConversationID
		}
	}
	return out
}

func (s *Store) ActiveConversationID() domain.ConversationID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) SetActiveConversationID(id domain.ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
}

// Snapshot is the refreshed per-conversation view handed to consumers and
// the diagnostics surface.
func (s *Store) Snapshot() []domain.ConversationSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConversationSnapshot, 0, len(s.states))
	for _, st := range s.states {
		snap := domain.ConversationSnapshot{
			ConversationID: st.ConversationID,
			SessionID:      st.SessionID,
		}
		if c := st.MostRecentCallState; c != nil {
			snap.State = c.State
			snap.Muted = c.Muted
			snap.Held = c.Held
			snap.Confined = c.Confined
			snap.Direction = c.Direction
		}
		out = append(out, snap)
	}
	return out
}

// DetermineActiveConversationID picks the conversation consumers should
// treat as current: with no stored conversations the session's own id, with
// exactly one that one, with several the unique connected-and-not-held one,
// otherwise whatever was previously active.
func DetermineActiveConversationID(snaps []domain.ConversationSnapshot, fallback, previous domain.ConversationID) domain.ConversationID {
	switch len(snaps) {
	case 0:
		return fallback
	case 1:
		return snaps[0].ConversationID
	}
	var connected []domain.ConversationID
	for _, sn := range snaps {
		if sn.State == domain.CallStateConnected && !sn.Held {
			connected = append(connected, sn.ConversationID)
		}
	}
	if len(connected) == 1 {
		return connected[0]
	}
	return previous
}
