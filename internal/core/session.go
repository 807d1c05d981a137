package core

import (
	"sync"

	"github.com/dkeye/callkit/internal/domain"
)

// ManagedSession binds session meta-data and its transient media resources.
// This is what the live table stores and handlers operate on.
type ManagedSession struct {
	mu   sync.Mutex
	meta *domain.Session

	streams     []*MediaStream
	stopOnce    sync.Once
	terminated  chan struct{}
	termOnce    sync.Once
	endReported bool
}

func NewManagedSession(meta *domain.Session) *ManagedSession {
	return &ManagedSession{
		meta:       meta,
		terminated: make(chan struct{}),
	}
}

func (s *ManagedSession) ID() domain.SessionID     { return s.meta.ID }
func (s *ManagedSession) Type() domain.SessionType { return s.meta.Type }
func (s *ManagedSession) Address() string          { return s.meta.Address }
func (s *ManagedSession) AutoAnswer() bool         { return s.meta.AutoAnswer }

func (s *ManagedSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.State
}

func (s *ManagedSession) SetState(state domain.SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.State = state
}

func (s *ManagedSession) ConversationID() domain.ConversationID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.ConversationID
}

// SetConversationID attaches (or, under persistent-connection reuse,
// reassigns) the business-level conversation this session implements.
// Reassignment reopens the ended-notification gate for the new conversation.
func (s *ManagedSession) SetConversationID(id domain.ConversationID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.ConversationID = id
	if id != "" {
		s.endReported = false
	}
}

func (s *ManagedSession) Participant() *domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.PCParticipant
}

func (s *ManagedSession) SetParticipant(p *domain.Participant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.PCParticipant = p
}

func (s *ManagedSession) SetAudioMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.AudioMuted = muted
}

func (s *ManagedSession) SetVideoMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta.VideoMuted = muted
}

func (s *ManagedSession) DTO() domain.SessionDTO {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.meta.DTO()
}

// AttachStream records a locally-created output stream for later cleanup.
func (s *ManagedSession) AttachStream(ms *MediaStream) {
	if ms == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.streams = append(s.streams, ms)
}

func (s *ManagedSession) StreamCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.streams)
}

// DetachStreams returns and forgets the attached streams without stopping
// them; used when outgoing media is being replaced.
func (s *ManagedSession) DetachStreams() []*MediaStream {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.streams
	s.streams = nil
	return out
}

// StopLocalStreams stops every locally-created output track exactly once,
// regardless of whether termination was initiated locally or remotely.
func (s *ManagedSession) StopLocalStreams(media MediaProvider) {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		streams := s.streams
		s.streams = nil
		s.mu.Unlock()
		for _, ms := range streams {
			media.StopMedia(ms)
		}
	})
}

// MarkEndReported records that an ended notification went out for this
// session. Reports true on the first call only; telemetry and transport
// termination race, and the consumer must see exactly one ended event.
func (s *ManagedSession) MarkEndReported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.endReported {
		return false
	}
	s.endReported = true
	return true
}

// MarkTerminated closes the terminate-confirmation channel. Idempotent.
func (s *ManagedSession) MarkTerminated() {
	s.termOnce.Do(func() {
		s.SetState(domain.SessionStateTerminated)
		close(s.terminated)
	})
}

// Terminated is closed once the transport confirms the session ended.
func (s *ManagedSession) Terminated() <-chan struct{} {
	return s.terminated
}
