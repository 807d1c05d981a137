package conversation

import "github.com/dkeye/callkit/internal/domain"

// Changed reports whether two call snapshots differ on the fields consumers
// observe: state, confined, held, muted. Absence on either side is a change.
func Changed(prev, next *domain.Call) bool {
	if prev == nil || next == nil {
		return true
	}
	return prev.State != next.State ||
		prev.Confined != next.Confined ||
		prev.Held != next.Held ||
		prev.Muted != next.Muted
}
