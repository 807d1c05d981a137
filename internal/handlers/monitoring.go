package handlers

import (
	"context"
	"strings"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
)

// LiveMonitoring handles supervisor live-screen-monitoring sessions. They
// are receive-only: no local media is ever attached.
type LiveMonitoring struct {
	Base
}

func NewLiveMonitoring(svc *Services) *LiveMonitoring {
	return &LiveMonitoring{Base: NewBase(svc, domain.SessionTypeLiveMonitoring)}
}

func (h *LiveMonitoring) ShouldHandleSessionByJid(jid string) bool {
	return strings.HasPrefix(jid, "monitor-")
}

func (h *LiveMonitoring) ExampleJids() []string {
	return []string{"monitor-9876@example.com"}
}

func (h *LiveMonitoring) HandleSessionInit(ctx context.Context, sess *core.ManagedSession) error {
	if err := h.Base.HandleSessionInit(ctx, sess); err != nil {
		return err
	}
	if sess.AutoAnswer() {
		return h.AcceptSession(ctx, sess, core.AcceptSessionParams{SessionID: sess.ID()})
	}
	return nil
}

func (h *LiveMonitoring) AcceptSession(ctx context.Context, sess *core.ManagedSession, params core.AcceptSessionParams) error {
	if err := h.Base.AcceptSession(ctx, sess, params); err != nil {
		return err
	}
	h.svc.Emitter.Emit(core.SessionStartedEvent{Session: sess.DTO()})
	return nil
}

func (h *LiveMonitoring) EndSession(ctx context.Context, sess *core.ManagedSession, _ core.EndSessionParams) error {
	return endDirect(ctx, h.svc, sess, h.svc.Cfg.EndSessionTimeout)
}
