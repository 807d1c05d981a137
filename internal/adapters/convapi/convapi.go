// Package convapi is the HTTP client for the backend conversation service.
// The engine calls it only for participant state changes; retries and
// backoff are the caller's concern, not modeled here.
package convapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dkeye/callkit/internal/core"
	"github.com/dkeye/callkit/internal/domain"
)

const requestTimeout = 10 * time.Second

type Client struct {
	base  string
	token string
	http  *http.Client
}

func New(baseURL, accessToken string) *Client {
	return &Client{
		base:  baseURL,
		token: accessToken,
		http:  &http.Client{Timeout: requestTimeout},
	}
}

// PatchParticipant mutates a participant's server-side state (disconnect,
// mute, hold).
func (c *Client) PatchParticipant(ctx context.Context, conversationID domain.ConversationID, participantID string, patch core.ParticipantPatch) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode participant patch: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/conversations/%s/participants/%s", c.base, conversationID, participantID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Correlation-Id", domain.NewCorrelationID())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("participant patch request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Error().
			Str("module", "adapters.convapi").
			Str("conversationId", string(conversationID)).
			Str("participantId", participantID).
			Int("status", resp.StatusCode).
			Msg("participant patch rejected")
		return fmt.Errorf("participant patch failed: status %d: %s", resp.StatusCode, msg)
	}
	return nil
}
