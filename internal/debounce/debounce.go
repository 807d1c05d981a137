// Package debounce provides a small leading-edge coalescing primitive used
// to rate-limit side effects such as error emission.
package debounce

import (
	"sync"
	"time"
)

// Debouncer fires on the leading edge: the first call in a quiet window is
// allowed through, everything else inside the window is coalesced away.
type Debouncer struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

func New(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval, now: time.Now}
}

// Allow reports whether the caller should perform the side effect now.
func (d *Debouncer) Allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if !d.last.IsZero() && now.Sub(d.last) < d.interval {
		return false
	}
	d.last = now
	return true
}

// Reset reopens the window immediately.
func (d *Debouncer) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.last = time.Time{}
}
