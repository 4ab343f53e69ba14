package control

import (
	"testing"
	"time"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
)

type fakeKeyboard struct {
	held map[Key]bool
	taps map[Key]int
}

func newFakeKeyboard() *fakeKeyboard {
	return &fakeKeyboard{held: map[Key]bool{}, taps: map[Key]int{}}
}

func (k *fakeKeyboard) Toggle(key Key, down bool) { k.held[key] = down }
func (k *fakeKeyboard) Tap(key Key)               { k.taps[key]++ }

func newTestMapper() (*Mapper, *fakeKeyboard, *clock.Manual) {
	kb := newFakeKeyboard()
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	cfg := config.ControlConfig{DownBelow: 0.45, JumpAbove: 0.55, JumpRelease: 3 * time.Second}
	return NewMapper(kb, clk, cfg), kb, clk
}

func TestDiscretize(t *testing.T) {
	th := Thresholds{DownBelow: 0.45, JumpAbove: 0.55}
	tests := []struct {
		in   float64
		want Action
	}{
		{0.0, ActionDown},
		{0.449, ActionDown},
		{0.45, ActionNorm},
		{0.5, ActionNorm},
		{0.55, ActionNorm},
		{0.551, ActionJump},
		{1.0, ActionJump},
	}
	for _, tt := range tests {
		if got := th.Discretize(tt.in); got != tt.want {
			t.Errorf("Discretize(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMapperNormReleasesBoth(t *testing.T) {
	m, kb, _ := newTestMapper()
	m.Set(0.9)
	m.Set(0.50)

	if m.Action() != ActionNorm {
		t.Errorf("action = %v, want NORM", m.Action())
	}
	if kb.held[KeyUp] || kb.held[KeyDown] {
		t.Errorf("keys = %v, want both released", kb.held)
	}
}

func TestMapperDown(t *testing.T) {
	m, kb, _ := newTestMapper()
	m.Set(0.1)
	if !kb.held[KeyDown] || kb.held[KeyUp] {
		t.Errorf("keys = %v, want down pressed, up released", kb.held)
	}
}

func TestMapperJumpSafetyWindow(t *testing.T) {
	tests := []struct {
		name     string
		held     time.Duration
		wantUp   bool
		released bool
	}{
		{"fresh", 0, true, false},
		{"just before window", 2999 * time.Millisecond, true, false},
		{"past window", 3001 * time.Millisecond, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, kb, clk := newTestMapper()
			m.Set(0.9)
			clk.Advance(tt.held)
			m.Set(0.9)

			if kb.held[KeyUp] != tt.wantUp {
				t.Errorf("up held = %v, want %v", kb.held[KeyUp], tt.wantUp)
			}
			if kb.held[KeyDown] {
				t.Error("down must be released while jumping")
			}
			if m.ForcedRelease() != tt.released {
				t.Errorf("forced release = %v, want %v", m.ForcedRelease(), tt.released)
			}
			if m.Action() != ActionJump {
				t.Errorf("action = %v, want JUMP", m.Action())
			}
		})
	}
}

func TestMapperJumpReentryRestartsTimer(t *testing.T) {
	m, kb, clk := newTestMapper()
	m.Set(0.9)
	clk.Advance(2500 * time.Millisecond)
	m.Set(0.5)
	clk.Advance(100 * time.Millisecond)
	m.Set(0.9)
	clk.Advance(2500 * time.Millisecond)
	m.Set(0.9)

	if !kb.held[KeyUp] {
		t.Error("re-entering JUMP should restart the safety window")
	}
}

func TestMapperResetClearsHysteresis(t *testing.T) {
	m, kb, clk := newTestMapper()
	m.Set(0.9)
	clk.Advance(4 * time.Second)
	m.Reset()
	m.Set(0.9)

	if !kb.held[KeyUp] {
		t.Error("after Reset a JUMP should be asserted again")
	}
}
