package sdkerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	err := New(KindSession, "no such session")
	assert.Equal(t, KindSession, KindOf(err))
	assert.True(t, IsKind(err, KindSession))
	assert.False(t, IsKind(err, KindCall))
}

func TestKindOfWrapped(t *testing.T) {
	inner := New(KindNotSupported, "cannot mute")
	outer := fmt.Errorf("command failed: %w", inner)
	assert.Equal(t, KindNotSupported, KindOf(outer))
	assert.True(t, IsKind(outer, KindNotSupported))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindGeneric, KindOf(errors.New("plain")))
	assert.Equal(t, KindGeneric, KindOf(nil))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(KindSession, "accept failed", cause)
	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "session")
	assert.Contains(t, err.Error(), "accept failed")
	assert.Contains(t, err.Error(), "refused")
}

func TestWithDetails(t *testing.T) {
	err := New(KindSession, "no session handler matches").
		WithDetails(map[string]any{"sessionId": "s-1"})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "s-1", se.Details["sessionId"])
}
