package debounce

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAllowLeadingEdge(t *testing.T) {
	d := New(time.Hour)
	assert.True(t, d.Allow(), "first call passes")
	assert.False(t, d.Allow(), "second call inside the window is coalesced")
	assert.False(t, d.Allow())
}

func TestAllowAfterWindow(t *testing.T) {
	d := New(10 * time.Millisecond)
	assert.True(t, d.Allow())
	time.Sleep(20 * time.Millisecond)
	assert.True(t, d.Allow(), "window elapsed, next call passes")
}

func TestReset(t *testing.T) {
	d := New(time.Hour)
	assert.True(t, d.Allow())
	d.Reset()
	assert.True(t, d.Allow(), "reset reopens the window")
}
