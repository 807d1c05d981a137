package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/domain"
)

// Event is the closed set of lifecycle notifications the engine emits.
// Delivery goes through a single Emitter so tests can exhaustively match.
type Event interface{ sdkEvent() }

// PendingSessionEvent surfaces an invitation awaiting accept/reject.
type PendingSessionEvent struct {
	ID             domain.SessionID      `json:"id"`
	ConversationID domain.ConversationID `json:"conversationId"`
	Address        string                `json:"address"`
	AutoAnswer     bool                  `json:"autoAnswer"`
	SessionType    domain.SessionType    `json:"sessionType"`
}

// HandledPendingSessionEvent fires when a propose is consumed by an
// accept or reject.
type HandledPendingSessionEvent struct {
	ID             domain.SessionID
	ConversationID domain.ConversationID
	Accepted       bool
}

// CancelPendingSessionEvent fires when an invitation goes away before being
// handled (remote cancel, another client answered).
type CancelPendingSessionEvent struct {
	ID             domain.SessionID
	ConversationID domain.ConversationID
}

type SessionStartedEvent struct {
	Session domain.SessionDTO
}

type SessionEndedEvent struct {
	Session domain.SessionDTO
	Reason  string
}

// ConversationUpdateEvent carries the refreshed per-conversation snapshots
// plus the active conversation for consumers juggling concurrent calls.
type ConversationUpdateEvent struct {
	ConversationID       domain.ConversationID
	ActiveConversationID domain.ConversationID
	Snapshots            []domain.ConversationSnapshot
}

type ErrorEvent struct {
	Err error
}

func (PendingSessionEvent) sdkEvent()        {}
func (HandledPendingSessionEvent) sdkEvent() {}
func (CancelPendingSessionEvent) sdkEvent()  {}
func (SessionStartedEvent) sdkEvent()        {}
func (SessionEndedEvent) sdkEvent()          {}
func (ConversationUpdateEvent) sdkEvent()    {}
func (ErrorEvent) sdkEvent()                 {}

// Emitter fans lifecycle events out to the consumer over one buffered
// channel. Emit never blocks the engine turn; on backpressure the event is
// dropped with a warning.
type Emitter struct {
	mu     sync.RWMutex
	out    chan Event
	closed bool
}

func NewEmitter(buffer int) *Emitter {
	return &Emitter{out: make(chan Event, buffer)}
}

func (e *Emitter) Events() <-chan Event { return e.out }

func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return
	}
	select {
	case e.out <- ev:
	default:
		log.Warn().Str("module", "core.emitter").Type("event", ev).Msg("dropped event: consumer backpressure")
	}
}

func (e *Emitter) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	close(e.out)
}
