package telemetry

import (
	"testing"
	"time"
)

// fakeNow advances by a scripted duration on every call.
func fakeNow(steps ...time.Duration) func() time.Time {
	t := time.Unix(0, 0)
	i := 0
	return func() time.Time {
		t = t.Add(steps[i%len(steps)])
		i++
		return t
	}
}

func TestPerfCollector_Wrap(t *testing.T) {
	pc := NewPerfCollector(10)
	// start, end pairs: each job takes 3ms.
	pc.now = fakeNow(time.Millisecond, 3*time.Millisecond)

	calls := 0
	job := pc.Wrap(PhaseSensors, func() { calls++ })
	for i := 0; i < 4; i++ {
		job()
	}

	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
	stats := pc.Stats()
	if stats.PhaseCount[PhaseSensors] != 4 {
		t.Errorf("sensor samples = %d, want 4", stats.PhaseCount[PhaseSensors])
	}
	if stats.PhaseAvg[PhaseSensors] != 3*time.Millisecond {
		t.Errorf("sensor avg = %v, want 3ms", stats.PhaseAvg[PhaseSensors])
	}
	if stats.Busy != 12*time.Millisecond {
		t.Errorf("busy = %v, want 12ms", stats.Busy)
	}
}

func TestPerfCollector_RollingWindow(t *testing.T) {
	pc := NewPerfCollector(5)

	for i := 0; i < 10; i++ {
		pc.Record(PhaseSimStep, time.Duration(i)*time.Millisecond)
	}

	stats := pc.Stats()
	if stats.Samples != 5 {
		t.Errorf("samples = %d, want 5", stats.Samples)
	}
	// Window holds 5..9
	if stats.PhaseAvg[PhaseSimStep] != 7*time.Millisecond {
		t.Errorf("avg = %v, want 7ms", stats.PhaseAvg[PhaseSimStep])
	}
	if stats.PhaseMax[PhaseSimStep] != 9*time.Millisecond {
		t.Errorf("max = %v, want 9ms", stats.PhaseMax[PhaseSimStep])
	}
}

func TestPerfCollector_PhasesSeparate(t *testing.T) {
	pc := NewPerfCollector(10)
	pc.Record(PhaseSensors, time.Millisecond)
	pc.Record(PhaseGameState, 5*time.Millisecond)
	pc.Record(PhaseSensors, 3*time.Millisecond)

	stats := pc.Stats()
	if stats.PhaseAvg[PhaseSensors] != 2*time.Millisecond {
		t.Errorf("sensors avg = %v, want 2ms", stats.PhaseAvg[PhaseSensors])
	}
	row := stats.ToCSV(3)
	if row.Generation != 3 || row.GameStateAvgUS != 5000 || row.SensorsMaxUS != 3000 {
		t.Errorf("csv row = %+v", row)
	}
}

func TestPerfCollector_EmptyStats(t *testing.T) {
	pc := NewPerfCollector(10)

	stats := pc.Stats()

	if stats.Busy != 0 || stats.Samples != 0 {
		t.Error("expected zero values for empty collector")
	}
	if stats.PhaseAvg == nil {
		t.Error("expected non-nil PhaseAvg map")
	}
}
