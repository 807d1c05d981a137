package handlers

import (
	"context"
	"strings"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/sdkerr"
)

// AcdScreenShare handles agent screen shares requested by the ACD backend.
// Invites are never surfaced to the consumer; the backend asked for them, so
// they are accepted automatically.
type AcdScreenShare struct {
	Base
}

func NewAcdScreenShare(svc *Services) *AcdScreenShare {
	return &AcdScreenShare{Base: NewBase(svc, domain.SessionTypeAcdScreenShare)}
}

func (h *AcdScreenShare) ShouldHandleSessionByJid(jid string) bool {
	return strings.HasPrefix(jid, "acd-")
}

func (h *AcdScreenShare) ExampleJids() []string {
	return []string{"acd-videoconf-1234@example.com"}
}

func (h *AcdScreenShare) HandlePropose(ctx context.Context, ps *domain.PendingSession) {
	autoAccept(ctx, h.svc, ps, "handlers.acdscreenshare")
}

func (h *AcdScreenShare) HandleSessionInit(ctx context.Context, sess *core.ManagedSession) error {
	if err := h.Base.HandleSessionInit(ctx, sess); err != nil {
		return err
	}
	return h.AcceptSession(ctx, sess, core.AcceptSessionParams{SessionID: sess.ID()})
}

func (h *AcdScreenShare) AcceptSession(ctx context.Context, sess *core.ManagedSession, params core.AcceptSessionParams) error {
	stream, err := h.svc.Media.StartMedia(ctx, core.MediaOptions{
		SessionID:    sess.ID(),
		DisplayShare: true,
	})
	if err != nil {
		return sdkerr.Wrap(sdkerr.KindGeneric, "display acquisition failed", err)
	}
	sess.AttachStream(stream)
	if err := h.Base.AcceptSession(ctx, sess, params); err != nil {
		return err
	}
	h.svc.Emitter.Emit(core.SessionStartedEvent{Session: sess.DTO()})
	return nil
}

func (h *AcdScreenShare) EndSession(ctx context.Context, sess *core.ManagedSession, _ core.EndSessionParams) error {
	err := endDirect(ctx, h.svc, sess, h.svc.Cfg.EndSessionTimeout)
	sess.StopLocalStreams(h.svc.Media)
	return err
}
