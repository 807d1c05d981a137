package handlers

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/conversation"
	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/debounce"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/sdkerr"
)

// callErrorDebounce is the flush interval for telemetry-reported call
// errors; leading-edge, so the first error in a burst goes out immediately.
const callErrorDebounce = 500 * time.Millisecond

// Softphone handles audio calls. It hosts the conversation-state
// reconciler: telemetry, not transport state, decides when a call has
// effectively started, updated or ended.
type Softphone struct {
	Base
	callErrors *debounce.Debouncer
}

func NewSoftphone(svc *Services) *Softphone {
	return &Softphone{
		Base:       NewBase(svc, domain.SessionTypeSoftphone),
		callErrors: debounce.New(callErrorDebounce),
	}
}

func (h *Softphone) ShouldHandleSessionByJid(jid string) bool {
	return strings.HasPrefix(jid, "sip:") || strings.Contains(jid, "@sip.")
}

func (h *Softphone) ExampleJids() []string {
	return []string{"sip:agent@sip.example.com", "+13115552368@sip.example.com"}
}

// StartSession places an outbound call through the signaling transport.
func (h *Softphone) StartSession(ctx context.Context, params core.StartSessionParams) (domain.SessionID, error) {
	if params.Address == "" {
		return "", sdkerr.New(sdkerr.KindInvalidOptions, "startSession requires an address")
	}
	sid, err := h.svc.Signal.InitiateRtcSession(ctx, core.InitiateOptions{
		Address:        params.Address,
		ConversationID: params.ConversationID,
		SessionType:    domain.SessionTypeSoftphone,
		Provider:       params.Provider,
	})
	if err != nil {
		return "", sdkerr.Wrap(sdkerr.KindSession, "initiate failed", err)
	}
	return sid, nil
}

func (h *Softphone) HandlePropose(ctx context.Context, ps *domain.PendingSession) {
	h.Base.HandlePropose(ctx, ps)
	if ps.AutoAnswer {
		autoAccept(ctx, h.svc, ps, "handlers.softphone")
	}
}

func (h *Softphone) HandleSessionInit(ctx context.Context, sess *core.ManagedSession) error {
	if err := h.Base.HandleSessionInit(ctx, sess); err != nil {
		return err
	}
	if sess.AutoAnswer() {
		return h.AcceptSession(ctx, sess, core.AcceptSessionParams{SessionID: sess.ID()})
	}
	return nil
}

// AcceptSession attaches local audio and issues the transport accept.
func (h *Softphone) AcceptSession(ctx context.Context, sess *core.ManagedSession, params core.AcceptSessionParams) error {
	// A consumer-supplied stream is never attached, so we never stop it.
	if params.MediaStream == nil {
		deviceID, err := h.svc.Media.GetValidDeviceID("audioinput", params.AudioDeviceID)
		if err != nil {
			return sdkerr.Wrap(sdkerr.KindGeneric, "no usable audio device", err)
		}
		stream, err := h.svc.Media.StartMedia(ctx, core.MediaOptions{
			SessionID:     sess.ID(),
			Audio:         true,
			AudioDeviceID: deviceID,
		})
		if err != nil {
			return sdkerr.Wrap(sdkerr.KindGeneric, "audio acquisition failed", err)
		}
		sess.AttachStream(stream)
	}
	return h.Base.AcceptSession(ctx, sess, params)
}

// SetAudioMute goes through the backend so the far end and other clients
// observe the mute, not just the local tracks.
func (h *Softphone) SetAudioMute(ctx context.Context, sess *core.ManagedSession, params core.MuteParams) error {
	convID := params.ConversationID
	if convID == "" {
		convID = sess.ConversationID()
	}
	participant := sess.Participant()
	if participant == nil {
		if st, ok := h.svc.Store.Get(convID); ok {
			participant = st.MostRecentParticipant
		}
	}
	if convID == "" || participant == nil {
		return sdkerr.New(sdkerr.KindInvalidOptions, "no conversation participant known for mute")
	}
	mute := params.Mute
	if err := h.svc.API.PatchParticipant(ctx, convID, participant.ID, core.ParticipantPatch{Muted: &mute}); err != nil {
		return sdkerr.Wrap(sdkerr.KindSession, "mute request failed", err)
	}
	sess.SetAudioMuted(mute)
	return nil
}

// EndSession funnels every softphone termination through one idempotent
// path. Under persistent connection the conversation is ended server-side
// so the shared transport session survives for the other conversations.
func (h *Softphone) EndSession(ctx context.Context, sess *core.ManagedSession, params core.EndSessionParams) error {
	convID := params.ConversationID
	if convID == "" {
		convID = sess.ConversationID()
	}

	if h.svc.Cfg.PersistentConnection && convID != "" {
		if err := h.endViaAPI(ctx, sess, convID); err == nil {
			return nil
		} else if h.sessionSharedByOthers(sess.ID(), convID) {
			// Forcing a transport terminate here would kill unrelated calls.
			return sdkerr.Wrap(sdkerr.KindSession, "server-side disconnect failed on shared persistent session", err)
		} else {
			log.Warn().Err(err).
				Str("module", "handlers.softphone").
				Str("conversationId", string(convID)).
				Msg("server-side disconnect failed, falling back to direct terminate")
		}
	}

	err := endDirect(ctx, h.svc, sess, h.svc.Cfg.EndSessionTimeout)
	sess.StopLocalStreams(h.svc.Media)
	return err
}

func (h *Softphone) endViaAPI(ctx context.Context, sess *core.ManagedSession, convID domain.ConversationID) error {
	participant := sess.Participant()
	if participant == nil {
		if st, ok := h.svc.Store.Get(convID); ok {
			participant = st.MostRecentParticipant
		}
	}
	if participant == nil {
		return sdkerr.New(sdkerr.KindSession, "no participant known for server-side disconnect")
	}
	return h.svc.API.PatchParticipant(ctx, convID, participant.ID,
		core.ParticipantPatch{State: core.ParticipantStateDisconnected})
}

func (h *Softphone) sessionSharedByOthers(sid domain.SessionID, convID domain.ConversationID) bool {
	for claimedSID, claimedConv := range h.svc.Store.Claims() {
		if claimedSID == sid && claimedConv != convID {
			return true
		}
	}
	return false
}

func (h *Softphone) HandleSessionTerminated(ctx context.Context, sess *core.ManagedSession, reason string) {
	sess.StopLocalStreams(h.svc.Media)
	h.svc.Table.Remove(sess.ID())
	log.Info().
		Str("module", "handlers.softphone").
		Str("sessionId", string(sess.ID())).
		Str("reason", reason).
		Msg("session terminated")
	// The reconciler owns the ended emission while it still tracks the
	// conversation; it reports once the disconnect shows up in telemetry.
	if _, tracked := h.svc.Store.Get(sess.ConversationID()); tracked {
		return
	}
	if sess.MarkEndReported() {
		h.svc.Emitter.Emit(core.SessionEndedEvent{Session: sess.DTO(), Reason: reason})
	}
}

// HandleConversationUpdate runs one reconciliation turn and applies its
// decision: stored-state bookkeeping, session association and exactly one
// lifecycle emission.
func (h *Softphone) HandleConversationUpdate(ctx context.Context, update domain.ConversationUpdate, sessions []*core.ManagedSession) {
	snap := conversation.Snapshot{
		UserID:               h.svc.Cfg.UserID,
		ConcurrentSessions:   h.svc.Cfg.ConcurrentSessions,
		PersistentConnection: h.svc.Cfg.PersistentConnection,
		Claims:               h.svc.Store.Claims(),
	}
	for _, s := range sessions {
		if s.Type() != domain.SessionTypeSoftphone {
			continue
		}
		snap.Sessions = append(snap.Sessions, conversation.SessionRef{
			ID:             s.ID(),
			ConversationID: s.ConversationID(),
		})
	}
	if active, ok := h.svc.Table.ActiveSession(); ok && active.Type() == domain.SessionTypeSoftphone {
		snap.ActiveSessionID = active.ID()
	}

	prev, _ := h.svc.Store.Get(update.ID)
	d := conversation.Reconcile(update, prev, snap)

	if d.CallError != nil && h.callErrors.Allow() {
		h.svc.Emitter.Emit(core.ErrorEvent{
			Err: sdkerr.Newf(sdkerr.KindCall, "call error %s: %s", d.CallError.Code, d.CallError.Message),
		})
	}

	switch d.Event {
	case conversation.EventDropped:
		log.Debug().
			Str("module", "handlers.softphone").
			Str("conversationId", string(update.ID)).
			Str("state", string(d.Call.State)).
			Msg("update for conversation not owned by this client, dropping")
		return
	case conversation.EventNone:
		if d.Stored != nil {
			h.svc.Store.Set(d.Stored)
		}
		return
	}

	if d.Stored != nil {
		h.svc.Store.Set(d.Stored)
	} else {
		h.svc.Store.Delete(update.ID)
	}

	var sess *core.ManagedSession
	if d.SessionID != "" {
		sess, _ = h.svc.Table.Get(d.SessionID)
	}
	if sess != nil && d.Participant != nil {
		sess.SetParticipant(d.Participant)
	}

	snaps := h.svc.Store.Snapshot()
	fallback := update.ID
	if sess != nil && sess.ConversationID() != "" {
		fallback = sess.ConversationID()
	}
	activeConv := conversation.DetermineActiveConversationID(snaps, fallback, h.svc.Store.ActiveConversationID())
	h.svc.Store.SetActiveConversationID(activeConv)

	switch d.Event {
	case conversation.EventPending:
		// The propose path already surfaced invitations it saw; only
		// telemetry-first races reach the consumer from here.
		if _, surfaced := h.svc.Pending.GetByConversationID(update.ID); surfaced {
			return
		}
		ev := core.PendingSessionEvent{
			ID:             d.SessionID,
			ConversationID: update.ID,
			SessionType:    domain.SessionTypeSoftphone,
		}
		if sess != nil {
			ev.Address = sess.Address()
		}
		h.svc.Emitter.Emit(ev)

	case conversation.EventStarted:
		dto := domain.SessionDTO{ConversationID: update.ID, Type: domain.SessionTypeSoftphone}
		if sess != nil {
			if d.AssignToSID {
				// Reassignment under persistent-connection reuse; the last
				// write of this turn.
				sess.SetConversationID(update.ID)
			}
			dto = sess.DTO()
			dto.ConversationID = update.ID
		}
		h.svc.Emitter.Emit(core.SessionStartedEvent{Session: dto})

	case conversation.EventCancel:
		if ps, ok := h.svc.Pending.GetByConversationID(update.ID); ok {
			h.svc.Pending.Remove(ps.ID)
		}
		h.svc.Emitter.Emit(core.CancelPendingSessionEvent{
			ID:             d.SessionID,
			ConversationID: update.ID,
		})

	case conversation.EventEnded:
		dto := domain.SessionDTO{ConversationID: update.ID, Type: domain.SessionTypeSoftphone}
		if sess != nil {
			if !sess.MarkEndReported() {
				return
			}
			dto = sess.DTO()
			dto.ConversationID = update.ID
			if h.svc.Cfg.PersistentConnection && sess.ConversationID() == update.ID {
				// Free the long-lived session for the next conversation.
				sess.SetConversationID("")
			}
		}
		h.svc.Emitter.Emit(core.SessionEndedEvent{Session: dto, Reason: string(d.Call.State)})

	case conversation.EventUpdated:
		h.svc.Emitter.Emit(core.ConversationUpdateEvent{
			ConversationID:       update.ID,
			ActiveConversationID: activeConv,
			Snapshots:            snaps,
		})
	}
}
