// Package rtcmedia is the pion-backed media provider: it creates local
// output tracks and validates device choices, falling back to a default
// device when the requested one disappeared.
package rtcmedia

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/core"
)

type Provider struct {
	mu      sync.Mutex
	devices map[string][]string
	streams map[string]*core.MediaStream
}

func NewProvider() *Provider {
	return &Provider{
		devices: make(map[string][]string),
		streams: make(map[string]*core.MediaStream),
	}
}

// SetDevices feeds the known devices for a kind ("audioinput",
// "videoinput"); enumeration itself happens outside the engine.
func (p *Provider) SetDevices(kind string, ids []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.devices[kind] = ids
}

// GetValidDeviceID returns the requested device if it is still present, else
// the first known device of that kind.
func (p *Provider) GetValidDeviceID(kind, requested string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	known := p.devices[kind]
	if len(known) == 0 {
		if requested != "" {
			return requested, nil
		}
		return "", fmt.Errorf("no %s devices known", kind)
	}
	for _, id := range known {
		if id == requested {
			return id, nil
		}
	}
	if requested != "" {
		log.Warn().
			Str("module", "adapters.rtcmedia").
			Str("kind", kind).
			Str("requested", requested).
			Str("fallback", known[0]).
			Msg("requested device gone, using fallback")
	}
	return known[0], nil
}

func (p *Provider) StartMedia(ctx context.Context, opts core.MediaOptions) (*core.MediaStream, error) {
	if !opts.Audio && !opts.Video && !opts.DisplayShare {
		return nil, fmt.Errorf("startMedia: no media requested")
	}

	streamID := uuid.NewString()
	stream := &core.MediaStream{ID: streamID}

	if opts.Audio {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
			"audio-"+uuid.NewString(), streamID)
		if err != nil {
			return nil, fmt.Errorf("create audio track: %w", err)
		}
		stream.Tracks = append(stream.Tracks, track)
	}
	if opts.Video || opts.DisplayShare {
		track, err := webrtc.NewTrackLocalStaticRTP(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video-"+uuid.NewString(), streamID)
		if err != nil {
			return nil, fmt.Errorf("create video track: %w", err)
		}
		stream.Tracks = append(stream.Tracks, track)
	}

	p.mu.Lock()
	p.streams[streamID] = stream
	p.mu.Unlock()

	log.Info().
		Str("module", "adapters.rtcmedia").
		Str("streamId", streamID).
		Str("sessionId", string(opts.SessionID)).
		Bool("audio", opts.Audio).
		Bool("video", opts.Video).
		Bool("display", opts.DisplayShare).
		Msg("media started")
	return stream, nil
}

// StopMedia releases the stream. Idempotent: a stream is only ever stopped
// once, later calls are no-ops.
func (p *Provider) StopMedia(stream *core.MediaStream) {
	if stream == nil {
		return
	}
	p.mu.Lock()
	_, ok := p.streams[stream.ID]
	delete(p.streams, stream.ID)
	p.mu.Unlock()
	if !ok {
		return
	}
	log.Info().
		Str("module", "adapters.rtcmedia").
		Str("streamId", stream.ID).
		Msg("media stopped")
}

// ActiveStreams reports how many streams are currently live.
func (p *Provider) ActiveStreams() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.streams)
}
