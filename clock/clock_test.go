package clock

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualOrdering(t *testing.T) {
	m := NewManual(epoch)
	var log []string

	m.Every(40*time.Millisecond, func() { log = append(log, "sensor") })
	m.Every(200*time.Millisecond, func() { log = append(log, "state") })

	m.Advance(200 * time.Millisecond)

	// 40,80,120,160,200 sensor ticks; the state tick at 200 was registered later
	want := []string{"sensor", "sensor", "sensor", "sensor", "sensor", "state"}
	if len(log) != len(want) {
		t.Fatalf("log = %v, want %v", log, want)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("log[%d] = %s, want %s", i, log[i], want[i])
		}
	}
	if !m.Now().Equal(epoch.Add(200 * time.Millisecond)) {
		t.Errorf("Now = %v, want epoch+200ms", m.Now())
	}
}

func TestManualJobSeesDueTime(t *testing.T) {
	m := NewManual(epoch)
	var seen []time.Duration
	m.Every(30*time.Millisecond, func() { seen = append(seen, m.Now().Sub(epoch)) })
	m.Advance(100 * time.Millisecond)

	want := []time.Duration{30 * time.Millisecond, 60 * time.Millisecond, 90 * time.Millisecond}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Errorf("seen[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func TestManualStopFromInsideJob(t *testing.T) {
	m := NewManual(epoch)
	count := 0
	var stop func()
	stop = m.Every(10*time.Millisecond, func() {
		count++
		if count == 3 {
			stop()
		}
	})
	m.Advance(time.Second)
	if count != 3 {
		t.Errorf("count = %d, want 3", count)
	}
	if m.Pending() != 0 {
		t.Errorf("pending = %d, want 0", m.Pending())
	}
}

func TestManualAdvanceUntil(t *testing.T) {
	m := NewManual(epoch)
	ticks := 0
	m.Every(10*time.Millisecond, func() { ticks++ })

	if !m.AdvanceUntil(5*time.Millisecond, time.Second, func() bool { return ticks >= 5 }) {
		t.Fatal("AdvanceUntil did not reach condition")
	}
	if ticks != 5 {
		t.Errorf("ticks = %d, want 5", ticks)
	}
	if m.AdvanceUntil(5*time.Millisecond, 20*time.Millisecond, func() bool { return false }) {
		t.Error("AdvanceUntil reported success for an unreachable condition")
	}
}

func TestLoopRunsJobsAndDo(t *testing.T) {
	l := NewLoop()
	var ticks atomic.Int32
	stop := l.Every(time.Millisecond, func() { ticks.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ticks.Load() < 3 {
		t.Fatalf("ticks = %d, want >= 3", ticks.Load())
	}

	ran := false
	if err := l.Do(func() { ran = true }); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !ran {
		t.Error("Do did not run the closure")
	}

	stop()
	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run = %v, want context.Canceled", err)
	}
	if err := l.Do(func() {}); err != ErrLoopStopped {
		t.Errorf("Do after stop = %v, want ErrLoopStopped", err)
	}
}

func TestWrapApply(t *testing.T) {
	calls := 0
	fn := func() { calls++ }

	var none Wrap
	none.Apply("job", fn)()
	if calls != 1 {
		t.Errorf("calls = %d, want 1 through a nil wrap", calls)
	}

	var names []string
	w := Wrap(func(job string, fn func()) func() {
		return func() {
			names = append(names, job)
			fn()
		}
	})
	w.Apply("sensors", fn)()
	if calls != 2 || len(names) != 1 || names[0] != "sensors" {
		t.Errorf("calls = %d names = %v, want 2 [sensors]", calls, names)
	}
}
