package domain

import (
	"errors"

	"github.com/google/uuid"
)

const MaxUserIDLen = 64

var (
	ErrUserIDEmpty   = errors.New("user id empty")
	ErrUserIDTooLong = errors.New("user id too long")
)

type UserID string

// User is the authenticated local user the telemetry subscription belongs to.
type User struct {
	ID   UserID `json:"id"`
	Name string `json:"name,omitempty"`
}

// NewUser is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewUser(id string) (*User, error) {
	if id == "" {
		return nil, ErrUserIDEmpty
	}
	if len(id) > MaxUserIDLen {
		return nil, ErrUserIDTooLong
	}
	return &User{ID: UserID(id)}, nil
}

// NewCorrelationID returns a fresh id for outbound requests and streams.
func NewCorrelationID() string {
	return uuid.NewString()
}
