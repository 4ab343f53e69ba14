// Package control maps the controller's continuous output onto the game's
// discrete, debounced key actions.
package control

import (
	"image"
	"time"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
)

// Key is a logical game key.
type Key uint8

const (
	KeyUp    Key = iota // jump
	KeyDown             // duck / fast fall
	KeyStart            // starts a new game when over
)

func (k Key) String() string {
	switch k {
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyStart:
		return "start"
	}
	return "unknown"
}

// Keyboard injects key events into the game.
type Keyboard interface {
	Toggle(k Key, down bool)
	Tap(k Key)
}

// Pointer is an optional capability used to focus the game window.
type Pointer interface {
	Click(p image.Point)
}

// Action is the discretized controller output.
type Action uint8

const (
	ActionNone Action = iota // nothing set yet
	ActionDown
	ActionNorm
	ActionJump
)

func (a Action) String() string {
	switch a {
	case ActionDown:
		return "DOWN"
	case ActionNorm:
		return "NORM"
	case ActionJump:
		return "JUMP"
	}
	return "NONE"
}

// Neutral is the output that releases every key.
const Neutral = 0.5

// Thresholds split the output range into DOWN | NORM | JUMP.
type Thresholds struct {
	DownBelow float64
	JumpAbove float64
}

// Discretize maps an output value to an action. Values inside the dead zone
// [DownBelow, JumpAbove] map to NORM.
func (t Thresholds) Discretize(v float64) Action {
	if v < t.DownBelow {
		return ActionDown
	}
	if v > t.JumpAbove {
		return ActionJump
	}
	return ActionNorm
}

// Mapper drives the keyboard from controller output. A JUMP held longer than
// the release window is turned into a release of both keys until the output
// leaves JUMP and enters it again.
type Mapper struct {
	kb         Keyboard
	clk        clock.Clock
	thresholds Thresholds
	release    time.Duration

	output    float64
	action    Action
	last      Action
	jumpSince time.Time
	released  bool
}

// NewMapper creates a mapper writing to kb.
func NewMapper(kb Keyboard, clk clock.Clock, cfg config.ControlConfig) *Mapper {
	return &Mapper{
		kb:         kb,
		clk:        clk,
		thresholds: Thresholds{DownBelow: cfg.DownBelow, JumpAbove: cfg.JumpAbove},
		release:    cfg.JumpRelease,
		output:     Neutral,
		action:     ActionNone,
		last:       ActionNone,
	}
}

// Thresholds returns the discretization thresholds.
func (m *Mapper) Thresholds() Thresholds {
	return m.thresholds
}

// Set applies an output value to the keyboard.
func (m *Mapper) Set(out float64) {
	m.output = out
	m.action = m.thresholds.Discretize(out)
	m.released = false

	switch m.action {
	case ActionDown:
		m.kb.Toggle(KeyUp, false)
		m.kb.Toggle(KeyDown, true)
	case ActionNorm:
		m.kb.Toggle(KeyUp, false)
		m.kb.Toggle(KeyDown, false)
	case ActionJump:
		now := m.clk.Now()
		if m.last != ActionJump {
			m.jumpSince = now
		}
		if now.Sub(m.jumpSince) < m.release {
			m.kb.Toggle(KeyUp, true)
			m.kb.Toggle(KeyDown, false)
		} else {
			m.kb.Toggle(KeyUp, false)
			m.kb.Toggle(KeyDown, false)
			m.released = true
		}
	}

	m.last = m.action
}

// Reset clears the JUMP hysteresis bookkeeping.
func (m *Mapper) Reset() {
	m.last = ActionNone
	m.jumpSince = time.Time{}
	m.released = false
}

// Output returns the last value passed to Set.
func (m *Mapper) Output() float64 {
	return m.output
}

// Action returns the last discretized action.
func (m *Mapper) Action() Action {
	return m.action
}

// ForcedRelease reports whether the last Set suppressed a held JUMP.
func (m *Mapper) ForcedRelease() bool {
	return m.released
}
