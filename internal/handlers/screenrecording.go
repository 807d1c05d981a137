package handlers

import (
	"context"
	"strings"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/sdkerr"
)

// ScreenRecording handles compliance screen recordings. They are started and
// stopped by the backend only; the local client can never end one.
type ScreenRecording struct {
	Base
}

func NewScreenRecording(svc *Services) *ScreenRecording {
	return &ScreenRecording{Base: NewBase(svc, domain.SessionTypeScreenRecording)}
}

func (h *ScreenRecording) ShouldHandleSessionByJid(jid string) bool {
	return strings.HasPrefix(jid, "screenrecording-")
}

func (h *ScreenRecording) ExampleJids() []string {
	return []string{"screenrecording-5678@example.com"}
}

func (h *ScreenRecording) HandlePropose(ctx context.Context, ps *domain.PendingSession) {
	autoAccept(ctx, h.svc, ps, "handlers.screenrecording")
}

func (h *ScreenRecording) HandleSessionInit(ctx context.Context, sess *core.ManagedSession) error {
	if err := h.Base.HandleSessionInit(ctx, sess); err != nil {
		return err
	}
	return h.AcceptSession(ctx, sess, core.AcceptSessionParams{SessionID: sess.ID()})
}

func (h *ScreenRecording) AcceptSession(ctx context.Context, sess *core.ManagedSession, params core.AcceptSessionParams) error {
	stream, err := h.svc.Media.StartMedia(ctx, core.MediaOptions{
		SessionID:    sess.ID(),
		DisplayShare: true,
	})
	if err != nil {
		return sdkerr.Wrap(sdkerr.KindGeneric, "display acquisition failed", err)
	}
	sess.AttachStream(stream)
	return h.Base.AcceptSession(ctx, sess, params)
}

// EndSession always fails: recordings must be ended remotely.
func (h *ScreenRecording) EndSession(context.Context, *core.ManagedSession, core.EndSessionParams) error {
	return sdkerr.New(sdkerr.KindNotSupported, "screen recording sessions can only be ended remotely")
}
