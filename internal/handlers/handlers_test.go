package handlers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dkeye/callkit/internal/conversation"
	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/pending"
	"github.com/dkeye/callkit/internal/session"
)

type fakeSignal struct {
	mu        sync.Mutex
	accepted  []domain.SessionID
	rejected  []domain.SessionID
	ended     []domain.SessionID
	initiated []core.InitiateOptions
	acceptErr error
	endErr    error
	events    chan core.SignalEvent
}

func newFakeSignal() *fakeSignal {
	return &fakeSignal{events: make(chan core.SignalEvent, 16)}
}

func (f *fakeSignal) Events() <-chan core.SignalEvent { return f.events }

func (f *fakeSignal) AcceptRtcSession(_ context.Context, id domain.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acceptErr != nil {
		return f.acceptErr
	}
	f.accepted = append(f.accepted, id)
	return nil
}

func (f *fakeSignal) RejectRtcSession(_ context.Context, id domain.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejected = append(f.rejected, id)
	return nil
}

func (f *fakeSignal) InitiateRtcSession(_ context.Context, opts core.InitiateOptions) (domain.SessionID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initiated = append(f.initiated, opts)
	return domain.SessionID(fmt.Sprintf("out-%d", len(f.initiated))), nil
}

func (f *fakeSignal) EndRtcSession(_ context.Context, id domain.SessionID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.endErr != nil {
		return f.endErr
	}
	f.ended = append(f.ended, id)
	return nil
}

func (f *fakeSignal) Close() {}

func (f *fakeSignal) endedIDs() []domain.SessionID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SessionID(nil), f.ended...)
}

type fakeMedia struct {
	mu       sync.Mutex
	started  []core.MediaOptions
	stopped  []string
	startErr error
}

func (f *fakeMedia) GetValidDeviceID(kind, requested string) (string, error) {
	if requested != "" {
		return requested, nil
	}
	return "default-" + kind, nil
}

func (f *fakeMedia) StartMedia(_ context.Context, opts core.MediaOptions) (*core.MediaStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.started = append(f.started, opts)
	return &core.MediaStream{ID: fmt.Sprintf("stream-%d", len(f.started))}, nil
}

func (f *fakeMedia) StopMedia(stream *core.MediaStream) {
	if stream == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, stream.ID)
}

func (f *fakeMedia) stoppedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stopped...)
}

type patchCall struct {
	conv  domain.ConversationID
	pid   string
	patch core.ParticipantPatch
}

type fakeAPI struct {
	mu      sync.Mutex
	patches []patchCall
	err     error
}

func (f *fakeAPI) PatchParticipant(_ context.Context, conv domain.ConversationID, pid string, patch core.ParticipantPatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.patches = append(f.patches, patchCall{conv: conv, pid: pid, patch: patch})
	return nil
}

func (f *fakeAPI) calls() []patchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]patchCall(nil), f.patches...)
}

// fixture wires a real dispatcher, registry and store against fakes for the
// external collaborators.
type fixture struct {
	svc     *Services
	manager *session.Manager
	emitter *core.Emitter
	signal  *fakeSignal
	media   *fakeMedia
	api     *fakeAPI
	store   *conversation.Store
	reg     *pending.Registry
}

func newFixture(t *testing.T, cfg session.Config) *fixture {
	t.Helper()
	if cfg.UserID == "" {
		cfg.UserID = "u-1"
	}
	emitter := core.NewEmitter(32)
	reg := pending.NewRegistry(time.Minute)
	manager := session.NewManager(cfg, emitter, reg)
	sig := newFakeSignal()
	media := &fakeMedia{}
	api := &fakeAPI{}
	store := conversation.NewStore()

	return &fixture{
		svc: &Services{
			Cfg:     manager.Config(),
			Table:   manager,
			Signal:  sig,
			Media:   media,
			API:     api,
			Emitter: emitter,
			Pending: reg,
			Store:   store,
		},
		manager: manager,
		emitter: emitter,
		signal:  sig,
		media:   media,
		api:     api,
		store:   store,
		reg:     reg,
	}
}

// addSession puts an initialized session straight into the live table.
func (f *fixture) addSession(id domain.SessionID, typ domain.SessionType, conv domain.ConversationID) *core.ManagedSession {
	sess := core.NewManagedSession(&domain.Session{
		ID:             id,
		Type:           typ,
		ConversationID: conv,
		State:          domain.SessionStatePending,
	})
	f.manager.Add(sess)
	return sess
}

func (f *fixture) drain() []core.Event {
	var out []core.Event
	for {
		select {
		case ev := <-f.emitter.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func (f *fixture) softphoneUpdate(conv domain.ConversationID, call domain.Call) domain.ConversationUpdate {
	return domain.ConversationUpdate{
		ID: conv,
		Participants: []domain.Participant{
			{ID: "p-1", UserID: f.svc.Cfg.UserID, Purpose: "agent", Calls: []domain.Call{call}},
		},
	}
}

// storedConnState seeds the reconciler's memory for a conversation.
func storedConnState(conv domain.ConversationID, sid domain.SessionID, state domain.CallState) *conversation.StoredState {
	return &conversation.StoredState{
		ConversationID:      conv,
		SessionID:           sid,
		MostRecentCallState: &domain.Call{ID: "call-1", State: state},
	}
}

func requireEventTypes(t *testing.T, events []core.Event, want ...string) {
	t.Helper()
	var got []string
	for _, ev := range events {
		got = append(got, fmt.Sprintf("%T", ev))
	}
	require.Equal(t, want, got)
}
