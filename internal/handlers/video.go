package handlers

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
	"github.com/dkeye/callkit/internal/sdkerr"
)

// Video handles collaborate video conferences. Unlike softphone, mute is a
// local track concern and outgoing media can be swapped mid-session.
type Video struct {
	Base
}

func NewVideo(svc *Services) *Video {
	return &Video{Base: NewBase(svc, domain.SessionTypeCollaborateVideo)}
}

func (h *Video) ShouldHandleSessionByJid(jid string) bool {
	return strings.Contains(jid, "@conference.")
}

func (h *Video) ExampleJids() []string {
	return []string{"room-1234@conference.example.com"}
}

// StartSession joins (or creates) a conference room.
func (h *Video) StartSession(ctx context.Context, params core.StartSessionParams) (domain.SessionID, error) {
	if params.Address == "" {
		return "", sdkerr.New(sdkerr.KindInvalidOptions, "startSession requires a conference address")
	}
	sid, err := h.svc.Signal.InitiateRtcSession(ctx, core.InitiateOptions{
		Address:        params.Address,
		ConversationID: params.ConversationID,
		SessionType:    domain.SessionTypeCollaborateVideo,
	})
	if err != nil {
		return "", sdkerr.Wrap(sdkerr.KindSession, "initiate failed", err)
	}
	return sid, nil
}

func (h *Video) HandleSessionInit(ctx context.Context, sess *core.ManagedSession) error {
	if err := h.Base.HandleSessionInit(ctx, sess); err != nil {
		return err
	}
	if sess.AutoAnswer() {
		return h.AcceptSession(ctx, sess, core.AcceptSessionParams{SessionID: sess.ID()})
	}
	return nil
}

func (h *Video) AcceptSession(ctx context.Context, sess *core.ManagedSession, params core.AcceptSessionParams) error {
	if params.MediaStream == nil {
		audioID, err := h.svc.Media.GetValidDeviceID("audioinput", params.AudioDeviceID)
		if err != nil {
			return sdkerr.Wrap(sdkerr.KindGeneric, "no usable audio device", err)
		}
		videoID, err := h.svc.Media.GetValidDeviceID("videoinput", params.VideoDeviceID)
		if err != nil {
			return sdkerr.Wrap(sdkerr.KindGeneric, "no usable video device", err)
		}
		stream, err := h.svc.Media.StartMedia(ctx, core.MediaOptions{
			SessionID:     sess.ID(),
			Audio:         true,
			Video:         true,
			AudioDeviceID: audioID,
			VideoDeviceID: videoID,
		})
		if err != nil {
			return sdkerr.Wrap(sdkerr.KindGeneric, "media acquisition failed", err)
		}
		sess.AttachStream(stream)
	}
	if err := h.Base.AcceptSession(ctx, sess, params); err != nil {
		return err
	}
	// Video lifecycle is transport-driven; there is no telemetry reconciler
	// deciding the start.
	h.svc.Emitter.Emit(core.SessionStartedEvent{Session: sess.DTO()})
	return nil
}

func (h *Video) SetAudioMute(ctx context.Context, sess *core.ManagedSession, params core.MuteParams) error {
	sess.SetAudioMuted(params.Mute)
	log.Info().
		Str("module", "handlers.video").
		Str("sessionId", string(sess.ID())).
		Bool("mute", params.Mute).
		Msg("audio mute")
	return nil
}

func (h *Video) SetVideoMute(ctx context.Context, sess *core.ManagedSession, params core.MuteParams) error {
	sess.SetVideoMuted(params.Mute)
	if !params.Mute && sess.StreamCount() == 0 {
		// Unmute after device loss: reacquire the camera.
		stream, err := h.svc.Media.StartMedia(ctx, core.MediaOptions{
			SessionID: sess.ID(),
			Audio:     true,
			Video:     true,
		})
		if err != nil {
			return sdkerr.Wrap(sdkerr.KindGeneric, "video reacquisition failed", err)
		}
		sess.AttachStream(stream)
	}
	log.Info().
		Str("module", "handlers.video").
		Str("sessionId", string(sess.ID())).
		Bool("mute", params.Mute).
		Msg("video mute")
	return nil
}

// UpdateOutgoingMedia swaps the outgoing stream: the replacement is acquired
// first so a failure leaves the session sending the old tracks.
func (h *Video) UpdateOutgoingMedia(ctx context.Context, sess *core.ManagedSession, opts core.MediaOptions) error {
	opts.SessionID = sess.ID()
	stream, err := h.svc.Media.StartMedia(ctx, opts)
	if err != nil {
		return sdkerr.Wrap(sdkerr.KindGeneric, "replacement media failed", err)
	}
	for _, old := range sess.DetachStreams() {
		h.svc.Media.StopMedia(old)
	}
	sess.AttachStream(stream)
	return nil
}

func (h *Video) EndSession(ctx context.Context, sess *core.ManagedSession, _ core.EndSessionParams) error {
	err := endDirect(ctx, h.svc, sess, h.svc.Cfg.EndSessionTimeout)
	sess.StopLocalStreams(h.svc.Media)
	return err
}

// HandleConversationUpdate tracks the matched participant's video state for
// sessions on this conversation.
func (h *Video) HandleConversationUpdate(ctx context.Context, update domain.ConversationUpdate, sessions []*core.ManagedSession) {
	for _, sess := range sessions {
		if sess.Type() != domain.SessionTypeCollaborateVideo || sess.ConversationID() != update.ID {
			continue
		}
		for i := range update.Participants {
			p := &update.Participants[i]
			if p.UserID != h.svc.Cfg.UserID || len(p.Videos) == 0 {
				continue
			}
			sess.SetParticipant(p)
			sess.SetAudioMuted(p.Videos[0].AudioMuted)
			sess.SetVideoMuted(p.Videos[0].VideoMuted)
			h.svc.Emitter.Emit(core.ConversationUpdateEvent{
				ConversationID:       update.ID,
				ActiveConversationID: h.svc.Store.ActiveConversationID(),
			})
			return
		}
	}
}
