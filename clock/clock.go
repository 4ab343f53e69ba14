// Package clock provides the shared timer facility that drives every periodic
// job of the agent: perception ticks, game-state polling, the game-start retry
// and the simulator step.
//
// All jobs registered on one Scheduler run on a single logical thread and
// never overlap, so the state they share needs no locking.
package clock

import "time"

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// Scheduler runs periodic jobs. The returned stop function cancels the job;
// a stopped job never runs again, even if a tick was already pending.
type Scheduler interface {
	Clock
	Every(d time.Duration, fn func()) (stop func())
}

// Wrap decorates a named job before it is registered.
type Wrap func(job string, fn func()) func()

// Apply returns fn decorated by w, or fn itself when w is nil.
func (w Wrap) Apply(job string, fn func()) func() {
	if w == nil {
		return fn
	}
	return w(job, fn)
}

// Since returns the time elapsed on c since t.
func Since(c Clock, t time.Time) time.Duration {
	return c.Now().Sub(t)
}
