// Package session holds the dispatcher: the single point of entry for
// incoming and outgoing session events, the live session table and the
// handler routing.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/pending"
	"github.com/dkeye/callkit/internal/sdkerr"
)

// Config carries the deployment knobs the dispatcher and handlers consult.
type Config struct {
	UserID               string
	ConcurrentSessions   bool
	PersistentConnection bool
	DisabledTypes        []domain.SessionType
	PendingExpiry        time.Duration
	EndSessionTimeout    time.Duration
}

const DefaultEndSessionTimeout = 5 * time.Second

// Manager resolves the correct handler by session type or signaling-address
// pattern and owns the live session table. All mutations happen from the
// client's single event-loop turn or a consumer command; both paths take the
// table lock.
type Manager struct {
	cfg      Config
	emitter  *core.Emitter
	pending  *pending.Registry
	handlers []core.SessionHandler
	disabled map[domain.SessionType]bool

	mu       sync.RWMutex
	sessions map[domain.SessionID]*core.ManagedSession
	activeID domain.SessionID
}

func NewManager(cfg Config, emitter *core.Emitter, reg *pending.Registry) *Manager {
	if cfg.EndSessionTimeout <= 0 {
		cfg.EndSessionTimeout = DefaultEndSessionTimeout
	}
	disabled := make(map[domain.SessionType]bool, len(cfg.DisabledTypes))
	for _, t := range cfg.DisabledTypes {
		disabled[t] = true
	}
	return &Manager{
		cfg:      cfg,
		emitter:  emitter,
		pending:  reg,
		disabled: disabled,
		sessions: make(map[domain.SessionID]*core.ManagedSession),
	}
}

func (m *Manager) Config() Config { return m.cfg }

func (m *Manager) Pending() *pending.Registry { return m.pending }

// RegisterHandler appends a handler in declaration order. Address predicates
// must be mutually exclusive across enabled handlers; each registration
// probes the existing handlers with the newcomer's example addresses (and
// vice versa) and fails on overlap.
func (m *Manager) RegisterHandler(h core.SessionHandler) error {
	if m.disabled[h.SessionType()] {
		log.Info().
			Str("module", "session.manager").
			Str("sessionType", string(h.SessionType())).
			Msg("session type disabled, handler not registered")
		return nil
	}
	for _, existing := range m.handlers {
		for _, jid := range h.ExampleJids() {
			if existing.ShouldHandleSessionByJid(jid) {
				return sdkerr.Newf(sdkerr.KindInvalidOptions,
					"handler %s address pattern overlaps %s on %q",
					h.SessionType(), existing.SessionType(), jid)
			}
		}
		for _, jid := range existing.ExampleJids() {
			if h.ShouldHandleSessionByJid(jid) {
				return sdkerr.Newf(sdkerr.KindInvalidOptions,
					"handler %s address pattern overlaps %s on %q",
					h.SessionType(), existing.SessionType(), jid)
			}
		}
	}
	m.handlers = append(m.handlers, h)
	return nil
}

// HandlerLookup carries whatever the caller knows; resolution tries the
// explicit type first, then the address predicates, then a live session.
type HandlerLookup struct {
	SessionType domain.SessionType
	Jid         string
	SessionID   domain.SessionID
}

// GetSessionHandler resolves a handler or fails with a session-kind error
// carrying the lookup parameters. A miss is never swallowed: it indicates a
// configuration or routing bug.
func (m *Manager) GetSessionHandler(lookup HandlerLookup) (core.SessionHandler, error) {
	if lookup.SessionType != "" {
		if m.disabled[lookup.SessionType] {
			return nil, sdkerr.Newf(sdkerr.KindSession, "session type %s is disabled", lookup.SessionType).
				WithDetails(map[string]any{"sessionType": lookup.SessionType})
		}
		for _, h := range m.handlers {
			if h.SessionType() == lookup.SessionType {
				return h, nil
			}
		}
	}

	if lookup.SessionID != "" {
		if sess, ok := m.Get(lookup.SessionID); ok {
			return m.GetSessionHandler(HandlerLookup{SessionType: sess.Type()})
		}
	}

	if lookup.Jid != "" {
		var matched core.SessionHandler
		for _, h := range m.handlers {
			if !h.ShouldHandleSessionByJid(lookup.Jid) {
				continue
			}
			if matched == nil {
				matched = h
				continue
			}
			// First match wins; a second match means the exclusivity
			// invariant broke somewhere.
			log.Warn().
				Str("module", "session.manager").
				Str("jid", lookup.Jid).
				Str("kept", string(matched.SessionType())).
				Str("ignored", string(h.SessionType())).
				Msg("multiple handlers match address")
		}
		if matched != nil {
			return matched, nil
		}
	}

	return nil, sdkerr.New(sdkerr.KindSession, "no session handler matches").
		WithDetails(map[string]any{
			"sessionType": lookup.SessionType,
			"jid":         lookup.Jid,
			"sessionId":   lookup.SessionID,
		})
}

// ---- live session table (core.SessionTable) ----

func (m *Manager) Add(sess *core.ManagedSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.ID()] = sess
	log.Info().
		Str("module", "session.manager").
		Str("sessionId", string(sess.ID())).
		Str("sessionType", string(sess.Type())).
		Msg("session added to live table")
}

func (m *Manager) Get(id domain.SessionID) (*core.ManagedSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

func (m *Manager) All() []*core.ManagedSession {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*core.ManagedSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	return out
}

// FindByConversation scans the table; the conversation index is rebuilt on
// demand rather than maintained incrementally.
func (m *Manager) FindByConversation(id domain.ConversationID) (*core.ManagedSession, bool) {
	if id == "" {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.ConversationID() == id {
			return s, true
		}
	}
	return nil, false
}

func (m *Manager) ActiveSession() (*core.ManagedSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.activeID == "" {
		return nil, false
	}
	s, ok := m.sessions[m.activeID]
	return s, ok
}

func (m *Manager) SetActiveSession(id domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeID = id
}

func (m *Manager) Remove(id domain.SessionID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	if m.activeID == id {
		m.activeID = ""
	}
	log.Info().
		Str("module", "session.manager").
		Str("sessionId", string(id)).
		Msg("session removed from live table")
}

// SessionsSnapshot is a read-only view for diagnostics.
func (m *Manager) SessionsSnapshot() []domain.SessionDTO {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.SessionDTO, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.DTO())
	}
	return out
}

// ---- signaling entry points ----

// OnPropose dedupes the invite against the pending registry and forwards it
// to the resolved handler.
func (m *Manager) OnPropose(ctx context.Context, info core.SessionInfo) {
	h, err := m.GetSessionHandler(HandlerLookup{SessionType: info.SessionType, Jid: info.Address})
	if err != nil {
		m.fail(err)
		return
	}

	ps := &domain.PendingSession{
		ID:             info.SessionID,
		ConversationID: info.ConversationID,
		Address:        info.Address,
		AutoAnswer:     info.AutoAnswer,
		Type:           h.SessionType(),
		ReceivedAt:     time.Now(),
	}
	if !m.pending.Add(ps) {
		return
	}
	h.HandlePropose(ctx, ps)
}

// OnSessionInit consumes any matching pending session, transfers its
// conversation id onto the session and hands it to the handler.
func (m *Manager) OnSessionInit(ctx context.Context, meta *domain.Session) {
	meta.State = domain.SessionStateInit
	if ps, ok := m.pending.GetBySessionID(meta.ID); ok {
		meta.ConversationID = ps.ConversationID
		meta.AutoAnswer = ps.AutoAnswer
		if meta.Type == "" {
			meta.Type = ps.Type
		}
		m.pending.Remove(ps.ID)
	}

	h, err := m.GetSessionHandler(HandlerLookup{SessionType: meta.Type, Jid: meta.Address})
	if err != nil {
		m.fail(err)
		return
	}
	if meta.Type == "" {
		meta.Type = h.SessionType()
	}

	sess := core.NewManagedSession(meta)
	m.Add(sess)
	if err := h.HandleSessionInit(ctx, sess); err != nil {
		m.fail(err)
	}
}

// OnTerminated marks the session terminated and delegates type-specific
// cleanup; the handler guarantees locally-created tracks stop exactly once.
func (m *Manager) OnTerminated(ctx context.Context, id domain.SessionID, reason string) {
	sess, ok := m.Get(id)
	if !ok {
		// Terminate for an unknown session: the propose was never accepted
		// here, or cleanup already ran.
		if ps, had := m.pending.GetBySessionID(id); had {
			m.pending.Remove(id)
			m.emitter.Emit(core.CancelPendingSessionEvent{ID: ps.ID, ConversationID: ps.ConversationID})
			return
		}
		log.Debug().
			Str("module", "session.manager").
			Str("sessionId", string(id)).
			Msg("terminate for unknown session")
		return
	}
	sess.MarkTerminated()

	h, err := m.GetSessionHandler(HandlerLookup{SessionType: sess.Type()})
	if err != nil {
		m.fail(err)
		m.Remove(id)
		return
	}
	h.HandleSessionTerminated(ctx, sess, reason)
}

// OnConversationUpdate forwards normalized telemetry to every registered
// handler along with the live table; each handler decides whether the update
// concerns its sessions.
func (m *Manager) OnConversationUpdate(ctx context.Context, update domain.ConversationUpdate) {
	live := m.All()
	for _, h := range m.handlers {
		h.HandleConversationUpdate(ctx, update, live)
	}
}

func (m *Manager) fail(err error) {
	log.Error().Err(err).Str("module", "session.manager").Msg("dispatch failure")
	m.emitter.Emit(core.ErrorEvent{Err: err})
}
