package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dkeye/callkit/internal/domain"
)

func TestChangedAbsence(t *testing.T) {
	c := &domain.Call{State: domain.CallStateConnected}
	assert.True(t, Changed(nil, c))
	assert.True(t, Changed(c, nil))
	assert.True(t, Changed(nil, nil))
}

func TestChangedFields(t *testing.T) {
	base := domain.Call{State: domain.CallStateConnected}

	tests := []struct {
		name string
		next domain.Call
		want bool
	}{
		{"identical", base, false},
		{"state", domain.Call{State: domain.CallStateHold}, true},
		{"held", domain.Call{State: domain.CallStateConnected, Held: true}, true},
		{"muted", domain.Call{State: domain.CallStateConnected, Muted: true}, true},
		{"confined", domain.Call{State: domain.CallStateConnected, Confined: true}, true},
		// Fields consumers never observe do not count as a change.
		{"direction only", domain.Call{State: domain.CallStateConnected, Direction: "outbound"}, false},
		{"provider only", domain.Call{State: domain.CallStateConnected, Provider: "edge-2"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := base
			assert.Equal(t, tt.want, Changed(&prev, &tt.next))
		})
	}
}
