package session

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/pending"
	"github.com/dkeye/callkit/internal/sdkerr"
)

// stubHandler records dispatcher calls; routing is by address prefix.
type stubHandler struct {
	typ    domain.SessionType
	prefix string
	jids   []string

	proposed   []*domain.PendingSession
	inited     []*core.ManagedSession
	terminated []domain.SessionID
	updates    []domain.ConversationID
}

func (s *stubHandler) SessionType() domain.SessionType { return s.typ }

func (s *stubHandler) ShouldHandleSessionByJid(jid string) bool {
	return s.prefix != "" && strings.HasPrefix(jid, s.prefix)
}

func (s *stubHandler) ExampleJids() []string { return s.jids }

func (s *stubHandler) StartSession(context.Context, core.StartSessionParams) (domain.SessionID, error) {
	return "", sdkerr.New(sdkerr.KindNotSupported, "stub")
}

func (s *stubHandler) HandlePropose(_ context.Context, ps *domain.PendingSession) {
	s.proposed = append(s.proposed, ps)
}

func (s *stubHandler) HandleSessionInit(_ context.Context, sess *core.ManagedSession) error {
	s.inited = append(s.inited, sess)
	return nil
}

func (s *stubHandler) AcceptSession(context.Context, *core.ManagedSession, core.AcceptSessionParams) error {
	return nil
}

func (s *stubHandler) SetAudioMute(context.Context, *core.ManagedSession, core.MuteParams) error {
	return nil
}

func (s *stubHandler) SetVideoMute(context.Context, *core.ManagedSession, core.MuteParams) error {
	return nil
}

func (s *stubHandler) UpdateOutgoingMedia(context.Context, *core.ManagedSession, core.MediaOptions) error {
	return nil
}

func (s *stubHandler) EndSession(context.Context, *core.ManagedSession, core.EndSessionParams) error {
	return nil
}

func (s *stubHandler) HandleSessionTerminated(_ context.Context, sess *core.ManagedSession, _ string) {
	s.terminated = append(s.terminated, sess.ID())
}

func (s *stubHandler) HandleConversationUpdate(_ context.Context, update domain.ConversationUpdate, _ []*core.ManagedSession) {
	s.updates = append(s.updates, update.ID)
}

func newTestManager(cfg Config) (*Manager, *core.Emitter, *pending.Registry) {
	emitter := core.NewEmitter(16)
	reg := pending.NewRegistry(time.Minute)
	return NewManager(cfg, emitter, reg), emitter, reg
}

func drain(emitter *core.Emitter) []core.Event {
	var out []core.Event
	for {
		select {
		case ev := <-emitter.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestRegisterHandlerSkipsDisabledType(t *testing.T) {
	m, _, _ := newTestManager(Config{DisabledTypes: []domain.SessionType{domain.SessionTypeCollaborateVideo}})
	require.NoError(t, m.RegisterHandler(&stubHandler{typ: domain.SessionTypeCollaborateVideo}))

	_, err := m.GetSessionHandler(HandlerLookup{SessionType: domain.SessionTypeCollaborateVideo})
	require.Error(t, err)
	assert.True(t, sdkerr.IsKind(err, sdkerr.KindSession))
}

func TestRegisterHandlerRejectsOverlappingPredicates(t *testing.T) {
	m, _, _ := newTestManager(Config{})
	require.NoError(t, m.RegisterHandler(&stubHandler{
		typ: domain.SessionTypeSoftphone, prefix: "sip:", jids: []string{"sip:one@example.com"},
	}))

	err := m.RegisterHandler(&stubHandler{
		typ: domain.SessionTypeCollaborateVideo, prefix: "sip:", jids: []string{"sip:two@example.com"},
	})
	require.Error(t, err)
	assert.True(t, sdkerr.IsKind(err, sdkerr.KindInvalidOptions))
}

func TestGetSessionHandlerResolution(t *testing.T) {
	m, _, _ := newTestManager(Config{})
	phone := &stubHandler{typ: domain.SessionTypeSoftphone, prefix: "sip:", jids: []string{"sip:x@example.com"}}
	video := &stubHandler{typ: domain.SessionTypeCollaborateVideo, prefix: "conf-", jids: []string{"conf-1@example.com"}}
	require.NoError(t, m.RegisterHandler(phone))
	require.NoError(t, m.RegisterHandler(video))

	h, err := m.GetSessionHandler(HandlerLookup{SessionType: domain.SessionTypeCollaborateVideo})
	require.NoError(t, err)
	assert.Same(t, core.SessionHandler(video), h)

	h, err = m.GetSessionHandler(HandlerLookup{Jid: "sip:agent@sip.example.com"})
	require.NoError(t, err)
	assert.Same(t, core.SessionHandler(phone), h)

	m.Add(core.NewManagedSession(&domain.Session{ID: "s-1", Type: domain.SessionTypeCollaborateVideo}))
	h, err = m.GetSessionHandler(HandlerLookup{SessionID: "s-1"})
	require.NoError(t, err)
	assert.Same(t, core.SessionHandler(video), h)
}

func TestGetSessionHandlerMissCarriesDetails(t *testing.T) {
	m, _, _ := newTestManager(Config{})
	_, err := m.GetSessionHandler(HandlerLookup{Jid: "tel:+13115552368"})
	require.Error(t, err)
	assert.True(t, sdkerr.IsKind(err, sdkerr.KindSession))

	var se *sdkerr.Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "tel:+13115552368", se.Details["jid"])
}

func TestOnProposeRoutesAndDedupes(t *testing.T) {
	m, _, reg := newTestManager(Config{})
	phone := &stubHandler{typ: domain.SessionTypeSoftphone, prefix: "sip:", jids: []string{"sip:x@example.com"}}
	require.NoError(t, m.RegisterHandler(phone))

	info := core.SessionInfo{
		SessionID:      "s-1",
		ConversationID: "c-1",
		Address:        "sip:agent@sip.example.com",
	}
	m.OnPropose(context.Background(), info)

	// Duplicate invite for the same conversation under a new session id.
	dup := info
	dup.SessionID = "s-2"
	m.OnPropose(context.Background(), dup)

	require.Len(t, phone.proposed, 1, "duplicate invite never reaches the handler")
	assert.Equal(t, domain.SessionID("s-1"), phone.proposed[0].ID)
	assert.Equal(t, domain.SessionTypeSoftphone, phone.proposed[0].Type)
	assert.Equal(t, 1, reg.Len())
}

func TestOnProposeUnroutableEmitsError(t *testing.T) {
	m, emitter, reg := newTestManager(Config{})
	m.OnPropose(context.Background(), core.SessionInfo{SessionID: "s-1", Address: "tel:+13115552368"})

	events := drain(emitter)
	require.Len(t, events, 1)
	ee, ok := events[0].(core.ErrorEvent)
	require.True(t, ok)
	assert.True(t, sdkerr.IsKind(ee.Err, sdkerr.KindSession))
	assert.Equal(t, 0, reg.Len())
}

func TestOnSessionInitConsumesPending(t *testing.T) {
	m, _, reg := newTestManager(Config{})
	phone := &stubHandler{typ: domain.SessionTypeSoftphone, prefix: "sip:", jids: []string{"sip:x@example.com"}}
	require.NoError(t, m.RegisterHandler(phone))

	m.OnPropose(context.Background(), core.SessionInfo{
		SessionID:      "s-1",
		ConversationID: "c-1",
		Address:        "sip:agent@sip.example.com",
		AutoAnswer:     true,
	})
	require.Equal(t, 1, reg.Len())

	m.OnSessionInit(context.Background(), &domain.Session{ID: "s-1", Address: "sip:agent@sip.example.com"})

	assert.Equal(t, 0, reg.Len(), "init consumes the invitation")
	require.Len(t, phone.inited, 1)
	sess := phone.inited[0]
	assert.Equal(t, domain.ConversationID("c-1"), sess.ConversationID())
	assert.True(t, sess.AutoAnswer())
	assert.Equal(t, domain.SessionTypeSoftphone, sess.Type())

	got, ok := m.Get("s-1")
	require.True(t, ok)
	assert.Same(t, sess, got)
}

func TestOnTerminatedPendingOnlyCancels(t *testing.T) {
	m, emitter, reg := newTestManager(Config{})
	phone := &stubHandler{typ: domain.SessionTypeSoftphone, prefix: "sip:", jids: []string{"sip:x@example.com"}}
	require.NoError(t, m.RegisterHandler(phone))

	m.OnPropose(context.Background(), core.SessionInfo{
		SessionID: "s-1", ConversationID: "c-1", Address: "sip:agent@sip.example.com",
	})
	drain(emitter)

	m.OnTerminated(context.Background(), "s-1", "remote-cancel")

	events := drain(emitter)
	require.Len(t, events, 1)
	cancel, ok := events[0].(core.CancelPendingSessionEvent)
	require.True(t, ok)
	assert.Equal(t, domain.SessionID("s-1"), cancel.ID)
	assert.Equal(t, domain.ConversationID("c-1"), cancel.ConversationID)
	assert.Equal(t, 0, reg.Len())
	assert.Empty(t, phone.terminated)
}

func TestOnTerminatedUnknownIsNoop(t *testing.T) {
	m, emitter, _ := newTestManager(Config{})
	m.OnTerminated(context.Background(), "never-seen", "whatever")
	assert.Empty(t, drain(emitter))
}

func TestOnTerminatedLiveSession(t *testing.T) {
	m, _, _ := newTestManager(Config{})
	phone := &stubHandler{typ: domain.SessionTypeSoftphone, prefix: "sip:", jids: []string{"sip:x@example.com"}}
	require.NoError(t, m.RegisterHandler(phone))

	sess := core.NewManagedSession(&domain.Session{ID: "s-1", Type: domain.SessionTypeSoftphone})
	m.Add(sess)

	m.OnTerminated(context.Background(), "s-1", "remote-hangup")

	select {
	case <-sess.Terminated():
	default:
		t.Fatal("session not marked terminated")
	}
	assert.Equal(t, []domain.SessionID{"s-1"}, phone.terminated)
}

func TestOnConversationUpdateFansOut(t *testing.T) {
	m, _, _ := newTestManager(Config{})
	phone := &stubHandler{typ: domain.SessionTypeSoftphone, prefix: "sip:", jids: []string{"sip:x@example.com"}}
	video := &stubHandler{typ: domain.SessionTypeCollaborateVideo, prefix: "conf-", jids: []string{"conf-1@example.com"}}
	require.NoError(t, m.RegisterHandler(phone))
	require.NoError(t, m.RegisterHandler(video))

	m.OnConversationUpdate(context.Background(), domain.ConversationUpdate{ID: "c-1"})

	assert.Equal(t, []domain.ConversationID{"c-1"}, phone.updates)
	assert.Equal(t, []domain.ConversationID{"c-1"}, video.updates)
}

func TestActiveSessionTracking(t *testing.T) {
	m, _, _ := newTestManager(Config{})
	sess := core.NewManagedSession(&domain.Session{ID: "s-1", Type: domain.SessionTypeSoftphone, ConversationID: "c-1"})
	m.Add(sess)
	m.SetActiveSession("s-1")

	got, ok := m.ActiveSession()
	require.True(t, ok)
	assert.Same(t, sess, got)

	found, ok := m.FindByConversation("c-1")
	require.True(t, ok)
	assert.Same(t, sess, found)

	m.Remove("s-1")
	_, ok = m.ActiveSession()
	assert.False(t, ok, "removing the active session clears the pointer")
	_, ok = m.FindByConversation("c-1")
	assert.False(t, ok)
}
