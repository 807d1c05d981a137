// Package conversation holds the conversation-state reconciliation engine:
// the telemetry normalizer, the call-state diff, the stored-state table and
// the pure reconciler that merges telemetry with the live session table.
package conversation

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/callkit/internal/domain"
)

// Wire shapes carry more than the engine consumes; Normalize prunes them to
// the stable domain form so downstream code never sees transport noise.

type rawCall struct {
	ID        string                `json:"id"`
	State     string                `json:"state"`
	Muted     bool                  `json:"muted"`
	Held      bool                  `json:"held"`
	Confined  bool                  `json:"confined"`
	Direction string                `json:"direction"`
	Provider  string                `json:"provider"`
	ErrorInfo *domain.CallErrorInfo `json:"errorInfo"`
}

type rawVideo struct {
	State         string `json:"state"`
	AudioMuted    bool   `json:"audioMuted"`
	VideoMuted    bool   `json:"videoMuted"`
	SharingScreen bool   `json:"sharingScreen"`
	PeerCount     int    `json:"peerCount"`
}

type rawParticipant struct {
	ID      string     `json:"id"`
	UserID  string     `json:"userId"`
	Purpose string     `json:"purpose"`
	Calls   []rawCall  `json:"calls"`
	Videos  []rawVideo `json:"videos"`
}

type rawUpdate struct {
	ID           string           `json:"id"`
	Participants []rawParticipant `json:"participants"`
}

// Normalize converts a raw telemetry payload into the stable shape with only
// the fields the engine needs.
func Normalize(payload []byte) (domain.ConversationUpdate, error) {
	var raw rawUpdate
	if err := json.Unmarshal(payload, &raw); err != nil {
		return domain.ConversationUpdate{}, fmt.Errorf("decode conversation payload: %w", err)
	}
	if raw.ID == "" {
		return domain.ConversationUpdate{}, fmt.Errorf("conversation payload missing id")
	}

	update := domain.ConversationUpdate{
		ID:           domain.ConversationID(raw.ID),
		Participants: make([]domain.Participant, 0, len(raw.Participants)),
	}
	for _, rp := range raw.Participants {
		p := domain.Participant{
			ID:      rp.ID,
			UserID:  rp.UserID,
			Purpose: rp.Purpose,
		}
		for _, rc := range rp.Calls {
			p.Calls = append(p.Calls, domain.Call{
				ID:        rc.ID,
				State:     domain.CallState(rc.State),
				Muted:     rc.Muted,
				Held:      rc.Held,
				Confined:  rc.Confined,
				Direction: rc.Direction,
				Provider:  rc.Provider,
				ErrorInfo: rc.ErrorInfo,
			})
		}
		for _, rv := range rp.Videos {
			p.Videos = append(p.Videos, domain.Video{
				State:         domain.CallState(rv.State),
				AudioMuted:    rv.AudioMuted,
				VideoMuted:    rv.VideoMuted,
				SharingScreen: rv.SharingScreen,
				PeerCount:     rv.PeerCount,
			})
		}
		update.Participants = append(update.Participants, p)
	}
	return update, nil
}
