// Package sim is a self-contained side-scrolling runner game. It renders into
// an in-memory frame that the perception layer samples like a screenshot and
// accepts the same key events the control mapper sends to a real game.
//
// Obstacles are ECS entities scrolled by a fixed-step update registered on the
// agent's scheduler. Gaps between obstacles follow a simplex noise curve over
// the distance travelled so each seed produces a repeatable course.
package sim

import (
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math/rand"

	"github.com/mlange-42/ark/ecs"
	"github.com/ojrac/opensimplex-go"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/control"
)

// gapScale maps travelled pixels onto the noise domain.
const gapScale = 1.0 / 900

var background = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

// Game is the simulated runner. It implements image.Image, control.Keyboard
// and control.Pointer. All methods must be called from the scheduler's thread.
type Game struct {
	cfg    config.SimConfig
	ink    color.RGBA
	marker image.Rectangle

	frame *image.RGBA

	obstacles *ecs.Map2[Position, Extent]
	drawable  ecs.Filter2[Position, Extent]
	mover     *moveSystem
	collider  *collisionSystem

	noise opensimplex.Noise
	rng   *rand.Rand

	runner   Runner
	upHeld   bool
	downHeld bool

	over       bool
	speed      float64
	distance   float64
	untilSpawn float64
	cleared    int
	live       int
	games      int
	focused    bool

	stop func()
}

// New creates a game that starts in the over state with the marker drawn.
// A zero cfg.Sim.Seed uses seed.
func New(cfg *config.Config, seed int64) *Game {
	sc := cfg.Sim
	if sc.Seed != 0 {
		seed = sc.Seed
	}

	mo := image.Pt(sc.OriginX, sc.GroundY).Add(cfg.Derived.GameOverOffset)
	world := ecs.NewWorld()

	g := &Game{
		cfg:       sc,
		ink:       cfg.Derived.ObstacleColor,
		marker:    image.Rect(mo.X, mo.Y-sc.MarkerHeight/2, mo.X+sc.MarkerWidth, mo.Y+sc.MarkerHeight-sc.MarkerHeight/2),
		frame:     image.NewRGBA(image.Rect(0, 0, sc.Width, sc.Height)),
		obstacles: ecs.NewMap2[Position, Extent](world),
		drawable:  *ecs.NewFilter2[Position, Extent](world),
		mover:     newMoveSystem(world),
		collider:  newCollisionSystem(world, sc.GroundY),
		noise:     opensimplex.NewNormalized(seed),
		rng:       rand.New(rand.NewSource(seed)),
		runner:    Runner{Grounded: true},
		over:      true,
	}
	g.render()
	return g
}

// JobStep names the fixed-step update job.
const JobStep = "sim_step"

// Start registers the fixed-step update on sched, decorated by wrap.
func (g *Game) Start(sched clock.Scheduler, wrap clock.Wrap) {
	g.Stop()
	g.stop = sched.Every(g.cfg.StepInterval, wrap.Apply(JobStep, g.Step))
}

// Stop cancels the update job.
func (g *Game) Stop() {
	if g.stop != nil {
		g.stop()
		g.stop = nil
	}
}

// Step advances the game by one fixed interval and redraws the frame.
func (g *Game) Step() {
	if g.over {
		return
	}
	dt := g.cfg.StepInterval.Seconds()

	g.updateRunner(dt)

	dx := g.speed * dt
	runnerBox := g.runnerRect()
	dead, cleared := g.mover.Update(dx, 0, float64(runnerBox.Min.X))
	for _, e := range dead {
		g.obstacles.Remove(e)
	}
	g.live -= len(dead)
	g.cleared += cleared

	g.distance += dx
	g.untilSpawn -= dx
	if g.untilSpawn <= 0 {
		g.spawn()
	}

	g.speed += g.cfg.Acceleration * dt
	if g.speed > g.cfg.MaxSpeed {
		g.speed = g.cfg.MaxSpeed
	}

	if g.collider.Update(g.runnerRect()) {
		g.over = true
		slog.Debug("sim_crash", "cleared", g.cleared, "distance", int(g.distance), "speed", int(g.speed))
	}
	g.render()
}

func (g *Game) updateRunner(dt float64) {
	r := &g.runner
	if r.Grounded && g.upHeld {
		r.VY = g.cfg.JumpVelocity
		r.Grounded = false
	}
	if r.Grounded {
		return
	}

	gravity := g.cfg.Gravity
	if g.downHeld {
		gravity *= g.cfg.FastFall
	}
	r.VY -= gravity * dt
	r.Y += r.VY * dt
	if r.Y <= 0 {
		r.Y, r.VY = 0, 0
		r.Grounded = true
	}
}

// spawn places a new obstacle just past the right edge of the frame.
func (g *Game) spawn() {
	w := g.between(g.cfg.MinObstacleWidth, g.cfg.MaxObstacleWidth)
	h := g.between(g.cfg.MinObstacleHeight, g.cfg.MaxObstacleHeight)
	g.obstacles.NewEntity(&Position{X: float64(g.cfg.Width)}, &Extent{W: w, H: h})
	g.live++

	gap := g.cfg.MinGap + g.cfg.GapJitter*g.noise.Eval2(g.distance*gapScale, 0)
	g.untilSpawn = gap + float64(w)
}

func (g *Game) between(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + g.rng.Intn(hi-lo+1)
}

// restart clears the course and begins a new run.
func (g *Game) restart() {
	var all []ecs.Entity
	query := g.drawable.Query()
	for query.Next() {
		all = append(all, query.Entity())
	}
	for _, e := range all {
		g.obstacles.Remove(e)
	}
	g.live = 0

	g.runner = Runner{Grounded: true}
	g.speed = g.cfg.InitialSpeed
	g.distance = 0
	g.untilSpawn = g.cfg.MinGap
	g.cleared = 0
	g.over = false
	g.games++
	slog.Debug("sim_start", "game", g.games)
	g.render()
}

func (g *Game) runnerRect() image.Rectangle {
	x := g.cfg.OriginX + g.cfg.RunnerX
	bottom := g.cfg.GroundY - int(g.runner.Y)
	return image.Rect(x, bottom-g.cfg.RunnerHeight, x+g.cfg.RunnerWidth, bottom)
}

func (g *Game) render() {
	ink := image.NewUniform(g.ink)
	draw.Draw(g.frame, g.frame.Bounds(), image.NewUniform(background), image.Point{}, draw.Src)

	ground := image.Rect(g.cfg.OriginX, g.cfg.GroundY, g.cfg.OriginX+g.cfg.GroundWidth, g.cfg.GroundY+1)
	draw.Draw(g.frame, ground, ink, image.Point{}, draw.Src)

	query := g.drawable.Query()
	for query.Next() {
		pos, ext := query.Get()
		draw.Draw(g.frame, obstacleRect(pos, ext, g.cfg.GroundY), ink, image.Point{}, draw.Src)
	}

	draw.Draw(g.frame, g.runnerRect(), ink, image.Point{}, draw.Src)

	if g.over {
		draw.Draw(g.frame, g.marker, ink, image.Point{}, draw.Src)
	}
}

// ColorModel implements image.Image.
func (g *Game) ColorModel() color.Model { return g.frame.ColorModel() }

// Bounds implements image.Image.
func (g *Game) Bounds() image.Rectangle { return g.frame.Bounds() }

// At implements image.Image.
func (g *Game) At(x, y int) color.Color { return g.frame.At(x, y) }

// Toggle implements control.Keyboard.
func (g *Game) Toggle(k control.Key, down bool) {
	switch k {
	case control.KeyUp:
		g.upHeld = down
	case control.KeyDown:
		g.downHeld = down
	}
}

// Tap implements control.Keyboard. Start restarts a finished game; up jumps.
func (g *Game) Tap(k control.Key) {
	switch k {
	case control.KeyStart:
		if g.over {
			g.restart()
		}
	case control.KeyUp:
		if !g.over && g.runner.Grounded {
			g.runner.VY = g.cfg.JumpVelocity
			g.runner.Grounded = false
		}
	}
}

// Click implements control.Pointer. Any click focuses the game.
func (g *Game) Click(image.Point) {
	g.focused = true
}

// Focused reports whether the game received a click.
func (g *Game) Focused() bool { return g.focused }

// Over reports whether the current run has ended.
func (g *Game) Over() bool { return g.over }

// Cleared returns the number of obstacles the runner passed this run.
func (g *Game) Cleared() int { return g.cleared }

// Games returns the number of runs started.
func (g *Game) Games() int { return g.games }

// Speed returns the current scroll speed in px/s.
func (g *Game) Speed() float64 { return g.speed }

// Obstacles returns the number of live obstacles.
func (g *Game) Obstacles() int { return g.live }

// Runner returns the runner state.
func (g *Game) Runner() Runner { return g.runner }
