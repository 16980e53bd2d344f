// Package util holds small helpers shared by the solvers and the command line tools.
package util

import "time"

// SkipThrottler rate limits an action by skipping calls that come too soon after the last allowed one.
type SkipThrottler struct {
	d    time.Duration
	last time.Time
}

// NewSkipThrottler returns a throttler that allows at most one call per d.
func NewSkipThrottler(d time.Duration) *SkipThrottler {
	tt := &SkipThrottler{d: d}
	return tt
}

// Ok reports whether the action may run now, and if so records the time.
func (tt *SkipThrottler) Ok() bool {
	now := time.Now()
	if !tt.last.IsZero() && now.Before(tt.last.Add(tt.d)) {
		return false
	}

	tt.last = now
	return true
}
