// Package handlers implements the per-session-type capability contract.
// Shared default behavior lives in Base and a few free functions the
// concrete types call explicitly.
package handlers

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/conversation"
	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/pending"
	"github.com/dkeye/callkit/internal/sdkerr"
	"github.com/dkeye/callkit/internal/session"
)

// Services are the injected collaborators every handler works against.
// No module-level singletons; the client wires one Services per instance.
type Services struct {
	Cfg     session.Config
	Table   core.SessionTable
	Signal  core.SignalTransport
	Media   core.MediaProvider
	API     core.ConversationAPI
	Emitter *core.Emitter
	Pending *pending.Registry
	Store   *conversation.Store
}

// Base supplies the default behavior: log and forward, and fail with
// not_supported for operations most session types cannot perform locally.
type Base struct {
	svc         *Services
	sessionType domain.SessionType
}

func NewBase(svc *Services, t domain.SessionType) Base {
	return Base{svc: svc, sessionType: t}
}

func (b *Base) SessionType() domain.SessionType { return b.sessionType }

func (b *Base) ShouldHandleSessionByJid(string) bool { return false }

func (b *Base) ExampleJids() []string { return nil }

// StartSession fails by default: most session types can only be initiated
// by the backend.
func (b *Base) StartSession(context.Context, core.StartSessionParams) (domain.SessionID, error) {
	return "", sdkerr.Newf(sdkerr.KindNotSupported, "%s sessions cannot be started locally", b.sessionType)
}

// HandlePropose surfaces the invitation to the consumer.
func (b *Base) HandlePropose(ctx context.Context, ps *domain.PendingSession) {
	log.Info().
		Str("module", "handlers."+string(b.sessionType)).
		Str("sessionId", string(ps.ID)).
		Str("conversationId", string(ps.ConversationID)).
		Bool("autoAnswer", ps.AutoAnswer).
		Msg("propose received")
	b.svc.Emitter.Emit(core.PendingSessionEvent{
		ID:             ps.ID,
		ConversationID: ps.ConversationID,
		Address:        ps.Address,
		AutoAnswer:     ps.AutoAnswer,
		SessionType:    ps.Type,
	})
}

// HandleSessionInit moves the session into the pending-accept phase and
// accepts immediately when the invite asked for auto-answer.
func (b *Base) HandleSessionInit(ctx context.Context, sess *core.ManagedSession) error {
	sess.SetState(domain.SessionStatePending)
	log.Info().
		Str("module", "handlers."+string(b.sessionType)).
		Str("sessionId", string(sess.ID())).
		Str("conversationId", string(sess.ConversationID())).
		Msg("session init")
	return nil
}

// AcceptSession issues the transport-level accept and marks the session as
// the globally active one. Media acquisition is type-specific and happens in
// the concrete handlers before calling this.
func (b *Base) AcceptSession(ctx context.Context, sess *core.ManagedSession, _ core.AcceptSessionParams) error {
	if err := b.svc.Signal.AcceptRtcSession(ctx, sess.ID()); err != nil {
		return sdkerr.Wrap(sdkerr.KindSession, "accept failed", err)
	}
	sess.SetState(domain.SessionStateActive)
	b.svc.Table.SetActiveSession(sess.ID())
	log.Info().
		Str("module", "handlers."+string(b.sessionType)).
		Str("sessionId", string(sess.ID())).
		Msg("session accepted")
	return nil
}

func (b *Base) SetAudioMute(context.Context, *core.ManagedSession, core.MuteParams) error {
	return sdkerr.Newf(sdkerr.KindNotSupported, "audio mute is not supported for %s sessions", b.sessionType)
}

func (b *Base) SetVideoMute(context.Context, *core.ManagedSession, core.MuteParams) error {
	return sdkerr.Newf(sdkerr.KindNotSupported, "video mute is not supported for %s sessions", b.sessionType)
}

func (b *Base) UpdateOutgoingMedia(context.Context, *core.ManagedSession, core.MediaOptions) error {
	return sdkerr.Newf(sdkerr.KindNotSupported, "outgoing media cannot be replaced for %s sessions", b.sessionType)
}

func (b *Base) EndSession(context.Context, *core.ManagedSession, core.EndSessionParams) error {
	return sdkerr.Newf(sdkerr.KindNotSupported, "%s sessions cannot be ended locally", b.sessionType)
}

// HandleSessionTerminated runs the shared cleanup: stop locally-created
// tracks exactly once, drop the session from the live table, notify.
func (b *Base) HandleSessionTerminated(ctx context.Context, sess *core.ManagedSession, reason string) {
	sess.StopLocalStreams(b.svc.Media)
	b.svc.Table.Remove(sess.ID())
	log.Info().
		Str("module", "handlers."+string(b.sessionType)).
		Str("sessionId", string(sess.ID())).
		Str("reason", reason).
		Msg("session terminated")
	b.svc.Emitter.Emit(core.SessionEndedEvent{Session: sess.DTO(), Reason: reason})
}

// HandleConversationUpdate is a no-op by default; type-specific handlers
// override it when telemetry drives their lifecycle.
func (b *Base) HandleConversationUpdate(ctx context.Context, update domain.ConversationUpdate, _ []*core.ManagedSession) {
	log.Debug().
		Str("module", "handlers."+string(b.sessionType)).
		Str("conversationId", string(update.ID)).
		Msg("conversation update ignored")
}

// endDirect issues a transport terminate and waits, bounded, for the
// confirmation. A timeout surfaces as a session error but does not retract
// the terminate already sent.
func endDirect(ctx context.Context, svc *Services, sess *core.ManagedSession, timeout time.Duration) error {
	if err := svc.Signal.EndRtcSession(ctx, sess.ID()); err != nil {
		return sdkerr.Wrap(sdkerr.KindSession, "terminate request failed", err)
	}
	if timeout <= 0 {
		timeout = session.DefaultEndSessionTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sess.Terminated():
		return nil
	case <-timer.C:
		return sdkerr.Newf(sdkerr.KindSession, "timed out waiting for terminate confirmation of session %s", sess.ID())
	case <-ctx.Done():
		return sdkerr.Wrap(sdkerr.KindSession, "end session canceled", ctx.Err())
	}
}

// autoAccept consumes a backend-initiated invite without surfacing it.
func autoAccept(ctx context.Context, svc *Services, ps *domain.PendingSession, module string) {
	svc.Pending.Remove(ps.ID)
	if err := svc.Signal.AcceptRtcSession(ctx, ps.ID); err != nil {
		log.Error().Err(err).
			Str("module", module).
			Str("sessionId", string(ps.ID)).
			Msg("auto-accept failed")
		svc.Emitter.Emit(core.ErrorEvent{Err: sdkerr.Wrap(sdkerr.KindSession, "auto-accept failed", err)})
		return
	}
	svc.Emitter.Emit(core.HandledPendingSessionEvent{
		ID:             ps.ID,
		ConversationID: ps.ConversationID,
		Accepted:       true,
	})
}
