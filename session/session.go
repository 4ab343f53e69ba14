// Package session owns the live perception state of one game: the sensors,
// the score and the game-state observer. Sensor fusion runs on the fast tick,
// state detection on the slow tick; both fire one-shot listeners that the
// episode orchestrator binds per genome.
package session

import (
	"image/color"
	"log/slog"
	"time"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/control"
	"github.com/pthm-cable/dinoevo/vision"
)

// GameState is the observed game phase.
type GameState uint8

const (
	StateOver GameState = iota
	StatePlaying
)

func (s GameState) String() string {
	if s == StatePlaying {
		return "PLAYING"
	}
	return "OVER"
}

// Session is the explicit owner of game state, score and sensors.
type Session struct {
	screen   vision.Screen
	viewport vision.Viewport
	width    int
	target   color.Color
	cfg      *config.Config

	sched  clock.Scheduler
	kb     control.Keyboard
	mapper *control.Mapper

	state   GameState
	score   int
	sensors []*Sensor

	onStart  Slot[struct{}]
	onEnd    Slot[int]
	onSensor Slot[struct{}]

	stopRetry func()
	stopJobs  []func()
}

// New creates a session bound to a located viewport.
func New(screen vision.Screen, vp vision.Viewport, sched clock.Scheduler, kb control.Keyboard, cfg *config.Config) *Session {
	width := cfg.Perception.ViewportWidth
	if width <= 0 {
		width = vp.Width
	}

	s := &Session{
		screen:   screen,
		viewport: vp,
		width:    width,
		target:   cfg.Derived.ObstacleColor,
		cfg:      cfg,
		sched:    sched,
		kb:       kb,
		mapper:   control.NewMapper(kb, sched, cfg.Control),
		state:    StateOver,
	}
	for _, sc := range cfg.Sensors {
		s.sensors = append(s.sensors, NewSensor(sc))
	}
	return s
}

// Job names of the perception and state ticks.
const (
	JobSensors   = "sensors"
	JobGameState = "game_state"
)

// Start registers the perception and state ticks on the scheduler, decorated
// by wrap.
func (s *Session) Start(wrap clock.Wrap) {
	s.stopJobs = append(s.stopJobs,
		s.sched.Every(s.cfg.Timing.SensorInterval, wrap.Apply(JobSensors, s.ReadSensors)),
		s.sched.Every(s.cfg.Timing.StateInterval, wrap.Apply(JobGameState, s.ReadGameState)),
	)
}

// Stop cancels the periodic ticks and any pending start retry.
func (s *Session) Stop() {
	for _, stop := range s.stopJobs {
		stop()
	}
	s.stopJobs = nil
	s.cancelRetry()
}

// OnGameStart registers the one-shot listener for the next OVER -> PLAYING edge.
func (s *Session) OnGameStart(fn func()) {
	if fn == nil {
		s.onStart.Clear()
		return
	}
	s.onStart.Set(func(struct{}) { fn() })
}

// OnGameEnd registers the one-shot listener for the next PLAYING -> OVER edge.
func (s *Session) OnGameEnd(fn func(score int)) {
	s.onEnd.Set(fn)
}

// OnSensorData registers the one-shot listener for the next sensor tick.
func (s *Session) OnSensorData(fn func()) {
	if fn == nil {
		s.onSensor.Clear()
		return
	}
	s.onSensor.Set(func(struct{}) { fn() })
}

// ListenersPending reports which listeners are registered (start, end, sensor).
func (s *Session) ListenersPending() (start, end, sensor bool) {
	return s.onStart.Pending(), s.onEnd.Pending(), s.onSensor.Pending()
}

// ReadSensors is the fast tick: measure every sensor, count points and notify.
func (s *Session) ReadSensors() {
	f := fusion{
		screen: s.screen,
		origin: s.viewport.Origin,
		width:  s.width,
		target: s.target,
		score:  s.score,
		now:    s.sched.Now(),
		cfg:    &s.cfg.Perception,
	}
	for _, sensor := range s.sensors {
		sensor.read(f)
	}

	for _, sensor := range s.sensors {
		if sensor.scored(&s.cfg.Perception) {
			s.score++
		}
	}

	s.onSensor.Fire(struct{}{})
}

// ReadGameState is the slow tick: sample the game-over marker and act on edges.
func (s *Session) ReadGameState() {
	origin := s.viewport.Origin.Add(s.cfg.Derived.GameOverOffset)
	_, over := vision.Scan(s.screen, origin, s.cfg.Derived.GameOverStep, s.target, false, s.cfg.Perception.GameOverSteps)

	switch {
	case over && s.state != StateOver:
		s.state = StateOver
		s.mapper.Set(control.Neutral)

		slog.Debug("game over", "score", s.score)
		s.onEnd.Fire(s.score)

	case !over && s.state != StatePlaying:
		s.state = StatePlaying
		s.score = 0
		for _, sensor := range s.sensors {
			sensor.Reset()
		}
		s.mapper.Reset()
		s.mapper.Set(control.Neutral)

		slog.Debug("game running")
		s.onStart.Fire(struct{}{})
	}
}

// StartNewGame requests a fresh game and calls next once it is running. When
// the game is over the start key is tapped every retry period until the
// observer sees PLAYING. When a game is running the request waits for it to
// end and then retries.
func (s *Session) StartNewGame(next func()) {
	s.ReadGameState()

	if s.state == StatePlaying {
		s.OnGameEnd(func(int) { s.StartNewGame(next) })
		return
	}

	s.cancelRetry()
	s.OnGameStart(func() {
		s.cancelRetry()
		if next != nil {
			next()
		}
	})
	s.stopRetry = s.sched.Every(s.cfg.Timing.StartRetry, func() {
		s.kb.Tap(control.KeyStart)
	})

	s.ReadGameState()
}

func (s *Session) cancelRetry() {
	if s.stopRetry != nil {
		s.stopRetry()
		s.stopRetry = nil
	}
}

// Retrying reports whether the start key is being tapped.
func (s *Session) Retrying() bool {
	return s.stopRetry != nil
}

// SetOutput forwards a controller output to the control mapper.
func (s *Session) SetOutput(v float64) {
	s.mapper.Set(v)
}

// Thresholds returns the control discretization thresholds.
func (s *Session) Thresholds() control.Thresholds {
	return s.mapper.Thresholds()
}

// Inputs returns the controller input vector [distance, size, speed] of the
// first sensor.
func (s *Session) Inputs() []float64 {
	sensor := s.sensors[0]
	return []float64{sensor.Value, sensor.Size, sensor.Speed}
}

// State returns the observed game state.
func (s *Session) State() GameState {
	return s.state
}

// Score returns the points of the current episode.
func (s *Session) Score() int {
	return s.score
}

// Sensors returns the live sensors.
func (s *Session) Sensors() []*Sensor {
	return s.sensors
}

// Viewport returns the located game area.
func (s *Session) Viewport() vision.Viewport {
	return s.viewport
}

// SensorReading is a read-only copy of a sensor's signals.
type SensorReading struct {
	Value float64
	Size  float64
	Speed float64
}

// Snapshot is a read-only view for hosts and dashboards.
type Snapshot struct {
	State   GameState
	Score   int
	Sensors []SensorReading
	Output  float64
	Action  control.Action
	At      time.Time
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	snap := Snapshot{
		State:  s.state,
		Score:  s.score,
		Output: s.mapper.Output(),
		Action: s.mapper.Action(),
		At:     s.sched.Now(),
	}
	for _, sensor := range s.sensors {
		snap.Sensors = append(snap.Sensors, SensorReading{Value: sensor.Value, Size: sensor.Size, Speed: sensor.Speed})
	}
	return snap
}
