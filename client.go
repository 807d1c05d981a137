package callkit

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/conversation"
	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/handlers"
	"github.com/dkeye/callkit/internal/pending"
	"github.com/dkeye/callkit/internal/sdkerr"
	"github.com/dkeye/callkit/internal/session"
)

// Config carries the deployment knobs of one client instance.
type Config struct {
	UserID string
	// ConcurrentSessions allows more than one simultaneous conversation,
	// each with its own session ("line appearance").
	ConcurrentSessions bool
	// PersistentConnection reuses one long-lived session across sequential
	// conversations instead of renegotiating each time.
	PersistentConnection bool
	DisabledSessionTypes []SessionType
	PendingExpiry        time.Duration
	EndSessionTimeout    time.Duration
}

// Dependencies are the external collaborators; all injected, no singletons.
type Dependencies struct {
	Signal    SignalTransport
	Telemetry TelemetryStream
	Media     MediaProvider
	API       ConversationAPI
}

// Client is the public surface: commands in, lifecycle events out. All
// engine state is mutated from a single event-loop turn per incoming event.
type Client struct {
	cfg     Config
	deps    Dependencies
	emitter *core.Emitter
	manager *session.Manager
	pending *pending.Registry
	store   *conversation.Store
}

func New(cfg Config, deps Dependencies) (*Client, error) {
	if _, err := domain.NewUser(cfg.UserID); err != nil {
		return nil, sdkerr.Wrap(sdkerr.KindInvalidOptions, "config requires a valid user id", err)
	}
	if deps.Signal == nil {
		return nil, sdkerr.New(sdkerr.KindInvalidOptions, "a signal transport is required")
	}
	if deps.Media == nil {
		return nil, sdkerr.New(sdkerr.KindInvalidOptions, "a media provider is required")
	}
	if cfg.PersistentConnection && deps.API == nil {
		return nil, sdkerr.New(sdkerr.KindInvalidOptions, "persistent connection requires a conversation API")
	}

	emitter := core.NewEmitter(64)
	reg := pending.NewRegistry(cfg.PendingExpiry)
	store := conversation.NewStore()

	mcfg := session.Config{
		UserID:               cfg.UserID,
		ConcurrentSessions:   cfg.ConcurrentSessions,
		PersistentConnection: cfg.PersistentConnection,
		DisabledTypes:        cfg.DisabledSessionTypes,
		PendingExpiry:        cfg.PendingExpiry,
		EndSessionTimeout:    cfg.EndSessionTimeout,
	}
	manager := session.NewManager(mcfg, emitter, reg)

	svc := &handlers.Services{
		Cfg:     mcfg,
		Table:   manager,
		Signal:  deps.Signal,
		Media:   deps.Media,
		API:     deps.API,
		Emitter: emitter,
		Pending: reg,
		Store:   store,
	}
	for _, h := range []core.SessionHandler{
		handlers.NewSoftphone(svc),
		handlers.NewVideo(svc),
		handlers.NewAcdScreenShare(svc),
		handlers.NewScreenRecording(svc),
		handlers.NewLiveMonitoring(svc),
	} {
		if err := manager.RegisterHandler(h); err != nil {
			return nil, err
		}
	}

	return &Client{
		cfg:     cfg,
		deps:    deps,
		emitter: emitter,
		manager: manager,
		pending: reg,
		store:   store,
	}, nil
}

// Events is the lifecycle stream. Consumers who ignore command errors still
// observe every failure here.
func (c *Client) Events() <-chan Event { return c.emitter.Events() }

// Run drives the single event loop merging the two external sources. Same-
// source ordering is preserved; the two sources may interleave.
func (c *Client) Run(ctx context.Context) error {
	signalCh := c.deps.Signal.Events()
	rawCh := rawUpdates(c.deps.Telemetry)

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-signalCh:
			if !ok {
				return sdkerr.New(sdkerr.KindSession, "signaling channel closed")
			}
			c.dispatchSignal(ctx, ev)

		case raw, ok := <-rawCh:
			if !ok {
				rawCh = nil
				continue
			}
			update, err := conversation.Normalize(raw)
			if err != nil {
				// Malformed telemetry is an expected race, never thrown.
				log.Debug().Err(err).Str("module", "callkit").Msg("unusable conversation payload")
				continue
			}
			c.manager.OnConversationUpdate(ctx, update)
		}
	}
}

func rawUpdates(t TelemetryStream) <-chan []byte {
	if t == nil {
		return nil
	}
	out := make(chan []byte)
	go func() {
		defer close(out)
		for raw := range t.Updates() {
			out <- raw
		}
	}()
	return out
}

func (c *Client) dispatchSignal(ctx context.Context, ev core.SignalEvent) {
	switch e := ev.(type) {
	case core.ProposeEvent:
		c.manager.OnPropose(ctx, e.Info)
	case core.SessionInitEvent:
		c.manager.OnSessionInit(ctx, e.Session)
	case core.TerminatedEvent:
		c.manager.OnTerminated(ctx, e.SessionID, e.Reason)
	default:
		log.Warn().Str("module", "callkit").Type("event", ev).Msg("unknown signal event")
	}
}

// Close releases the transports and the event stream.
func (c *Client) Close() {
	c.deps.Signal.Close()
	if c.deps.Telemetry != nil {
		c.deps.Telemetry.Close()
	}
	c.emitter.Close()
}

// ---- commands ----

// StartSession initiates an outbound session of the given type.
func (c *Client) StartSession(ctx context.Context, params StartSessionParams) (SessionID, error) {
	if params.SessionType == "" {
		return "", c.fail(sdkerr.New(sdkerr.KindInvalidOptions, "startSession requires a session type"))
	}
	h, err := c.manager.GetSessionHandler(session.HandlerLookup{SessionType: params.SessionType})
	if err != nil {
		return "", c.fail(err)
	}
	sid, err := h.StartSession(ctx, params)
	if err != nil {
		return "", c.fail(err)
	}
	return sid, nil
}

// AcceptPendingSession consumes the invitation and proceeds with the session.
func (c *Client) AcceptPendingSession(ctx context.Context, id SessionID) error {
	ps, ok := c.pending.GetBySessionID(id)
	if !ok {
		return c.fail(sdkerr.Newf(sdkerr.KindSession, "no pending session %s", id).
			WithDetails(map[string]any{"sessionId": id}))
	}
	if err := c.deps.Signal.AcceptRtcSession(ctx, id); err != nil {
		return c.fail(sdkerr.Wrap(sdkerr.KindSession, "accept failed", err))
	}
	c.pending.Remove(id)
	c.emitter.Emit(core.HandledPendingSessionEvent{
		ID:             ps.ID,
		ConversationID: ps.ConversationID,
		Accepted:       true,
	})
	return nil
}

// RejectPendingSession declines the invitation.
func (c *Client) RejectPendingSession(ctx context.Context, id SessionID) error {
	ps, ok := c.pending.GetBySessionID(id)
	if !ok {
		return c.fail(sdkerr.Newf(sdkerr.KindSession, "no pending session %s", id).
			WithDetails(map[string]any{"sessionId": id}))
	}
	if err := c.deps.Signal.RejectRtcSession(ctx, id); err != nil {
		return c.fail(sdkerr.Wrap(sdkerr.KindSession, "reject failed", err))
	}
	c.pending.Remove(id)
	c.emitter.Emit(core.HandledPendingSessionEvent{
		ID:             ps.ID,
		ConversationID: ps.ConversationID,
		Accepted:       false,
	})
	return nil
}

// AcceptSession attaches media and activates an initialized session.
func (c *Client) AcceptSession(ctx context.Context, params AcceptSessionParams) error {
	sess, h, err := c.resolve(params.SessionID, "")
	if err != nil {
		return c.fail(err)
	}
	if err := h.AcceptSession(ctx, sess, params); err != nil {
		return c.fail(err)
	}
	return nil
}

// EndSession terminates by session id or conversation id.
func (c *Client) EndSession(ctx context.Context, params EndSessionParams) error {
	sess, h, err := c.resolve(params.SessionID, params.ConversationID)
	if err != nil {
		return c.fail(err)
	}
	if err := h.EndSession(ctx, sess, params); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Client) SetAudioMute(ctx context.Context, params MuteParams) error {
	sess, h, err := c.resolve(params.SessionID, params.ConversationID)
	if err != nil {
		return c.fail(err)
	}
	if err := h.SetAudioMute(ctx, sess, params); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Client) SetVideoMute(ctx context.Context, params MuteParams) error {
	sess, h, err := c.resolve(params.SessionID, params.ConversationID)
	if err != nil {
		return c.fail(err)
	}
	if err := h.SetVideoMute(ctx, sess, params); err != nil {
		return c.fail(err)
	}
	return nil
}

// UpdateOutgoingMedia swaps the outgoing tracks of a live session.
func (c *Client) UpdateOutgoingMedia(ctx context.Context, id SessionID, opts core.MediaOptions) error {
	sess, h, err := c.resolve(id, "")
	if err != nil {
		return c.fail(err)
	}
	if err := h.UpdateOutgoingMedia(ctx, sess, opts); err != nil {
		return c.fail(err)
	}
	return nil
}

func (c *Client) resolve(sid SessionID, convID ConversationID) (*core.ManagedSession, core.SessionHandler, error) {
	if sid == "" && convID == "" {
		return nil, nil, sdkerr.New(sdkerr.KindInvalidOptions, "a session id or conversation id is required")
	}
	var sess *core.ManagedSession
	var ok bool
	if sid != "" {
		sess, ok = c.manager.Get(sid)
	} else {
		sess, ok = c.manager.FindByConversation(convID)
	}
	if !ok {
		return nil, nil, sdkerr.New(sdkerr.KindSession, "no such session").
			WithDetails(map[string]any{"sessionId": sid, "conversationId": convID})
	}
	h, err := c.manager.GetSessionHandler(session.HandlerLookup{SessionType: sess.Type()})
	if err != nil {
		return nil, nil, err
	}
	return sess, h, nil
}

// fail reports an engine failure on both paths: the error event stream and
// the caller's return value.
func (c *Client) fail(err error) error {
	log.Error().Err(err).Str("module", "callkit").Msg("command failed")
	c.emitter.Emit(core.ErrorEvent{Err: err})
	return err
}

// ---- diagnostics (debughttp.Source) ----

func (c *Client) SessionsSnapshot() []domain.SessionDTO { return c.manager.SessionsSnapshot() }

func (c *Client) PendingSnapshot() []domain.PendingSession { return c.pending.Snapshot() }

func (c *Client) ConversationsSnapshot() []domain.ConversationSnapshot { return c.store.Snapshot() }
