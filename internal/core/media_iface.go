package core

import (
	"context"

	"github.com/pion/webrtc/v4"

	"github.com/dkeye/callkit/internal/domain"
)

// MediaOptions selects which local tracks to acquire.
type MediaOptions struct {
	SessionID     domain.SessionID
	Audio         bool
	Video         bool
	DisplayShare  bool
	AudioDeviceID string
	VideoDeviceID string
}

// MediaStream is a bundle of locally-created output tracks. The provider
// that created it is the only party allowed to stop it.
type MediaStream struct {
	ID     string
	Tracks []*webrtc.TrackLocalStaticRTP
}

// MediaProvider acquires and releases local media. Handlers call it only at
// well-defined points (accept, unmute, device-loss recovery) and never
// inspect device internals.
type MediaProvider interface {
	StartMedia(ctx context.Context, opts MediaOptions) (*MediaStream, error)
	StopMedia(stream *MediaStream)
	GetValidDeviceID(kind string, requested string) (string, error)
}
