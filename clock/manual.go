package clock

import "time"

// Manual is a deterministic Scheduler driven by explicit Advance calls.
// Jobs fire in due-time order (registration order on ties) and observe Now()
// equal to their due time. It is used by tests, fast headless runs and the
// parameter optimizer.
type Manual struct {
	now  time.Time
	seq  uint64
	jobs []*manualJob
}

type manualJob struct {
	every   time.Duration
	next    time.Time
	seq     uint64
	fn      func()
	stopped bool
}

// NewManual creates a manual scheduler starting at start.
func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

// Now returns the current virtual time.
func (m *Manual) Now() time.Time {
	return m.now
}

// Every registers fn to run every d of virtual time, first at Now()+d.
func (m *Manual) Every(d time.Duration, fn func()) func() {
	if d <= 0 {
		panic("clock: non-positive interval")
	}
	m.seq++
	j := &manualJob{every: d, next: m.now.Add(d), seq: m.seq, fn: fn}
	m.jobs = append(m.jobs, j)
	return func() { j.stopped = true }
}

// Advance moves virtual time forward by d, running every job that falls due.
func (m *Manual) Advance(d time.Duration) {
	target := m.now.Add(d)
	for {
		j := m.nextDue(target)
		if j == nil {
			break
		}
		m.now = j.next
		j.next = j.next.Add(j.every)
		j.fn()
	}
	m.now = target
}

// AdvanceUntil advances in steps of step until done reports true or max
// virtual time has elapsed. It reports whether done was reached.
func (m *Manual) AdvanceUntil(step, max time.Duration, done func() bool) bool {
	deadline := m.now.Add(max)
	for !done() {
		if !m.now.Before(deadline) {
			return false
		}
		m.Advance(step)
	}
	return true
}

// Pending returns the number of live jobs.
func (m *Manual) Pending() int {
	m.compact()
	return len(m.jobs)
}

// nextDue returns the earliest live job due at or before target.
func (m *Manual) nextDue(target time.Time) *manualJob {
	m.compact()
	var best *manualJob
	for _, j := range m.jobs {
		if j.next.After(target) {
			continue
		}
		if best == nil || j.next.Before(best.next) || (j.next.Equal(best.next) && j.seq < best.seq) {
			best = j
		}
	}
	return best
}

// compact drops stopped jobs.
func (m *Manual) compact() {
	live := m.jobs[:0]
	for _, j := range m.jobs {
		if !j.stopped {
			live = append(live, j)
		}
	}
	for i := len(live); i < len(m.jobs); i++ {
		m.jobs[i] = nil
	}
	m.jobs = live
}
