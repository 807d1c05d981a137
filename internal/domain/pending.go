package domain

import "time"

// PendingSession is an unconfirmed invitation to join a session.
// It lives in the pending registry until accepted, rejected or expired.
type PendingSession struct {
	ID             SessionID      `json:"id"`
	ConversationID ConversationID `json:"conversationId"`
	Address        string         `json:"address"`
	AutoAnswer     bool           `json:"autoAnswer"`
	Type           SessionType    `json:"sessionType"`
	ReceivedAt     time.Time      `json:"receivedAt"`
}
