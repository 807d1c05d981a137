// Package pending is the short-lived store of session invitations awaiting
// accept or reject.
package pending

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/domain"
)

// DefaultExpiry bounds registry memory and closes race windows with
// duplicate proposes for the same conversation.
const DefaultExpiry = 1000 * time.Millisecond

type entry struct {
	ps    *domain.PendingSession
	timer *time.Timer
}

// Registry holds pending sessions keyed by session id, de-duplicated by
// conversation id. Every entry expires automatically unless consumed first.
type Registry struct {
	mu      sync.Mutex
	byID    map[domain.SessionID]*entry
	expiry  time.Duration
	expired func(*domain.PendingSession)
}

func NewRegistry(expiry time.Duration) *Registry {
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Registry{
		byID:   make(map[domain.SessionID]*entry),
		expiry: expiry,
	}
}

// OnExpired installs a hook invoked after an entry is removed by its timer.
func (r *Registry) OnExpired(fn func(*domain.PendingSession)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = fn
}

// Add stores the pending session and schedules its expiry. If an entry for
// the same conversation already exists the new one is a duplicate invite:
// it is logged and dropped, and Add returns false.
func (r *Registry) Add(ps *domain.PendingSession) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.byID {
		if e.ps.ConversationID == ps.ConversationID {
			log.Warn().
				Str("module", "pending.registry").
				Str("sessionId", string(ps.ID)).
				Str("conversationId", string(ps.ConversationID)).
				Msg("duplicate invite for conversation, dropping")
			return false
		}
	}

	id := ps.ID
	r.byID[id] = &entry{
		ps: ps,
		timer: time.AfterFunc(r.expiry, func() {
			r.expire(id)
		}),
	}
	log.Info().
		Str("module", "pending.registry").
		Str("sessionId", string(ps.ID)).
		Str("conversationId", string(ps.ConversationID)).
		Msg("pending session added")
	return true
}

func (r *Registry) expire(id domain.SessionID) {
	r.mu.Lock()
	e, ok := r.byID[id]
	if ok {
		delete(r.byID, id)
	}
	hook := r.expired
	r.mu.Unlock()
	if !ok {
		return
	}
	log.Info().
		Str("module", "pending.registry").
		Str("sessionId", string(id)).
		Msg("pending session expired")
	if hook != nil {
		hook(e.ps)
	}
}

func (r *Registry) GetBySessionID(id domain.SessionID) (*domain.PendingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.byID[id]; ok {
		return e.ps, true
	}
	return nil, false
}

func (r *Registry) GetByConversationID(id domain.ConversationID) (*domain.PendingSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.byID {
		if e.ps.ConversationID == id {
			return e.ps, true
		}
	}
	return nil, false
}

// Remove deletes the entry and clears its expiry timer. Idempotent.
func (r *Registry) Remove(id domain.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return
	}
	e.timer.Stop()
	delete(r.byID, id)
	log.Info().
		Str("module", "pending.registry").
		Str("sessionId", string(id)).
		Msg("pending session removed")
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Snapshot is a read-only view for diagnostics.
func (r *Registry) Snapshot() []domain.PendingSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.PendingSession, 0, len(r.byID))
	for _, e := range r.byID {
		out = append(out, *e.ps)
	}
	return out
}
