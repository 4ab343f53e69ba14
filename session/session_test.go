package session

import (
	"image"
	"image/color"
	"image/draw"
	"testing"
	"time"

	"github.com/pthm-cable/dinoevo/clock"
	"github.com/pthm-cable/dinoevo/config"
	"github.com/pthm-cable/dinoevo/control"
	"github.com/pthm-cable/dinoevo/vision"
)

var (
	white = color.RGBA{0xff, 0xff, 0xff, 0xff}
	grey  = color.RGBA{0x53, 0x53, 0x53, 0xff}
)

// scene is a hand-drawn game frame: ground at y=200 from x=40, sensor row at
// y=185 starting at x=124, game-over marker row at y=118 from x=230.
type scene struct {
	img *image.RGBA
}

func newScene() *scene {
	sc := &scene{img: image.NewRGBA(image.Rect(0, 0, 720, 240))}
	sc.clear()
	return sc
}

func (sc *scene) clear() {
	draw.Draw(sc.img, sc.img.Bounds(), &image.Uniform{white}, image.Point{}, draw.Src)
	draw.Draw(sc.img, image.Rect(40, 200, 640, 201), &image.Uniform{grey}, image.Point{}, draw.Src)
}

// obstacle draws an obstacle whose left edge is dx pixels past the sensor start.
func (sc *scene) obstacle(dx, width int) {
	x := 124 + dx
	draw.Draw(sc.img, image.Rect(x, 170, x+width, 200), &image.Uniform{grey}, image.Point{}, draw.Src)
}

func (sc *scene) marker(on bool) {
	c := white
	if on {
		c = grey
	}
	draw.Draw(sc.img, image.Rect(230, 112, 270, 126), &image.Uniform{c}, image.Point{}, draw.Src)
}

type fakeKeyboard struct {
	held  map[control.Key]bool
	taps  int
	onTap func()
}

func (k *fakeKeyboard) Toggle(key control.Key, down bool) { k.held[key] = down }
func (k *fakeKeyboard) Tap(key control.Key) {
	if key == control.KeyStart {
		k.taps++
		if k.onTap != nil {
			k.onTap()
		}
	}
}

type fixture struct {
	sc  *scene
	clk *clock.Manual
	kb  *fakeKeyboard
	s   *Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.MustLoad("")
	sc := newScene()
	clk := clock.NewManual(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	kb := &fakeKeyboard{held: map[control.Key]bool{}}
	vp := vision.Viewport{Origin: image.Pt(40, 200), Width: 600}
	return &fixture{sc: sc, clk: clk, kb: kb, s: New(sc.img, vp, clk, kb, cfg)}
}

// play forces the session into PLAYING.
func (f *fixture) play() {
	f.sc.marker(false)
	f.s.ReadGameState()
}

func TestSensorClearWhenNothingInRange(t *testing.T) {
	f := newFixture(t)
	f.play()
	f.sc.obstacle(300, 20) // beyond the 180px range
	f.s.ReadSensors()

	sensor := f.s.Sensors()[0]
	if sensor.Value != 1 || sensor.Size != 0 {
		t.Errorf("value,size = %v,%v, want 1,0", sensor.Value, sensor.Size)
	}
}

func TestSensorValueAndSize(t *testing.T) {
	f := newFixture(t)
	f.play()
	f.sc.obstacle(36, 20)
	f.s.ReadSensors()

	sensor := f.s.Sensors()[0]
	if want := 36.0 / 180.0; sensor.Value != want {
		t.Errorf("value = %v, want %v", sensor.Value, want)
	}
	if want := 0.19; sensor.Size < want-1e-9 || sensor.Size > want+1e-9 {
		t.Errorf("size = %v, want %v", sensor.Size, want)
	}
}

func TestScoringIsEdgeTriggered(t *testing.T) {
	f := newFixture(t)
	f.play()

	// Edges giving values of roughly [0.6, 0.7, 0.2, 0.1, 0.6]
	offsets := []int{108, 126, 36, 18, 108}
	var scores []int
	for _, dx := range offsets {
		f.sc.clear()
		f.sc.obstacle(dx, 10)
		f.clk.Advance(40 * time.Millisecond)
		f.s.ReadSensors()
		scores = append(scores, f.s.Score())
	}

	want := []int{0, 0, 0, 0, 1}
	for i := range want {
		if scores[i] != want[i] {
			t.Fatalf("scores = %v, want %v", scores, want)
		}
	}
}

func TestSizeGrowsForSameObstacleAndResetsForNew(t *testing.T) {
	f := newFixture(t)
	f.play()

	f.sc.obstacle(100, 20)
	f.s.ReadSensors()
	first := f.s.Sensors()[0].Size

	// Same score: a smaller estimate must not shrink the size
	f.sc.clear()
	f.sc.obstacle(96, 6)
	f.s.ReadSensors()
	if got := f.s.Sensors()[0].Size; got != first {
		t.Errorf("size = %v, want unchanged %v", got, first)
	}

	// Pass the obstacle to score a point, then measure a new small one
	f.sc.clear()
	f.sc.obstacle(0, 6)
	f.s.ReadSensors()
	f.sc.clear()
	f.s.ReadSensors()
	if f.s.Score() != 1 {
		t.Fatalf("score = %d, want 1", f.s.Score())
	}
	f.sc.obstacle(120, 6)
	f.s.ReadSensors()
	if got := f.s.Sensors()[0].Size; got >= first {
		t.Errorf("size = %v, want reset below %v for a new obstacle", got, first)
	}
}

func TestSpeedRatchetsAndHistoryIsBounded(t *testing.T) {
	f := newFixture(t)
	f.play()

	prev := 0.0
	for i := 0; i < 12; i++ {
		f.sc.clear()
		f.sc.obstacle(176-16*i, 10)
		f.clk.Advance(40 * time.Millisecond)
		f.s.ReadSensors()

		sensor := f.s.Sensors()[0]
		if sensor.Speed < prev {
			t.Fatalf("tick %d: speed regressed %v -> %v", i, prev, sensor.Speed)
		}
		prev = sensor.Speed
		if n := len(sensor.SpeedHistory()); n > 10 {
			t.Fatalf("tick %d: history length %d > 10", i, n)
		}
		if sensor.Value < 0 || sensor.Value > 1 || sensor.Size < 0 || sensor.Size > 1 {
			t.Fatalf("tick %d: value/size out of range: %v/%v", i, sensor.Value, sensor.Size)
		}
	}
	// 16px per 40ms over a 180px span is 2.22 values/s, above the 1.5 offset
	if prev <= 0 {
		t.Errorf("speed = %v, want > 0", prev)
	}
}

func TestSpeedResetsForNewObstacle(t *testing.T) {
	f := newFixture(t)
	f.play()

	for i := 0; i < 12; i++ {
		f.sc.clear()
		f.sc.obstacle(176-16*i, 10)
		f.clk.Advance(40 * time.Millisecond)
		f.s.ReadSensors()
	}
	sensor := f.s.Sensors()[0]
	if sensor.Speed <= 0 || len(sensor.SpeedHistory()) == 0 {
		t.Fatalf("speed = %v history = %d, want both built up", sensor.Speed, len(sensor.SpeedHistory()))
	}

	// The obstacle leaves the sensor and scores
	f.sc.clear()
	f.clk.Advance(40 * time.Millisecond)
	f.s.ReadSensors()
	if f.s.Score() != 1 {
		t.Fatalf("score = %d, want 1", f.s.Score())
	}

	// First sighting of the next obstacle, in the same instant
	f.sc.obstacle(150, 10)
	f.s.ReadSensors()
	sensor = f.s.Sensors()[0]
	if sensor.Speed != 0 || len(sensor.SpeedHistory()) != 0 {
		t.Errorf("speed = %v history = %d, want 0 0 for a new obstacle", sensor.Speed, len(sensor.SpeedHistory()))
	}

	// The new obstacle approaches and builds speed from scratch
	f.sc.clear()
	f.sc.obstacle(134, 10)
	f.clk.Advance(40 * time.Millisecond)
	f.s.ReadSensors()
	sensor = f.s.Sensors()[0]
	if n := len(sensor.SpeedHistory()); n != 1 {
		t.Errorf("history = %d, want 1", n)
	}
	if sensor.Speed <= 0 {
		t.Errorf("speed = %v, want > 0", sensor.Speed)
	}
}

func TestGameStateEdges(t *testing.T) {
	f := newFixture(t)
	f.sc.marker(true)

	started, ended := 0, -1
	f.s.OnGameStart(func() { started++ })
	f.s.OnGameEnd(func(score int) { ended = score })

	f.s.ReadGameState()
	if started != 0 || f.s.State() != StateOver {
		t.Fatalf("steady OVER must not fire start (started=%d, state=%v)", started, f.s.State())
	}

	f.sc.marker(false)
	f.s.ReadGameState()
	f.s.ReadGameState()
	if started != 1 || f.s.State() != StatePlaying {
		t.Fatalf("started = %d state = %v, want 1 PLAYING", started, f.s.State())
	}

	// Score a point during play
	f.sc.obstacle(0, 6)
	f.s.ReadSensors()
	f.sc.clear()
	f.s.ReadSensors()

	f.sc.marker(true)
	f.s.SetOutput(0.9)
	f.s.ReadGameState()
	if ended != 1 {
		t.Errorf("end listener score = %d, want 1", ended)
	}
	if f.kb.held[control.KeyUp] || f.kb.held[control.KeyDown] {
		t.Error("keys must be released on game over")
	}
	if start, end, _ := f.s.ListenersPending(); start || end {
		t.Error("listeners must be cleared after firing")
	}
}

func TestPlayingResetsEpisodeState(t *testing.T) {
	f := newFixture(t)
	f.play()
	f.sc.obstacle(0, 6)
	f.s.ReadSensors()
	f.sc.clear()
	f.s.ReadSensors()

	f.sc.marker(true)
	f.s.ReadGameState()
	f.sc.marker(false)
	f.s.ReadGameState()

	if f.s.Score() != 0 {
		t.Errorf("score = %d, want 0 after restart", f.s.Score())
	}
	sensor := f.s.Sensors()[0]
	if sensor.Value != 1 || sensor.Size != 0 || sensor.Speed != 0 || len(sensor.SpeedHistory()) != 0 {
		t.Errorf("sensor not reset: %+v", sensor)
	}
}

func TestStartNewGameRetriesUntilPlaying(t *testing.T) {
	f := newFixture(t)
	f.sc.marker(true)
	f.s.Start(nil)

	// The game needs two taps before it restarts
	f.kb.onTap = func() {
		if f.kb.taps >= 2 {
			f.sc.marker(false)
		}
	}

	calls := 0
	f.s.StartNewGame(func() { calls++ })
	if !f.s.Retrying() {
		t.Fatal("expected start retry to be running")
	}

	f.clk.Advance(2 * time.Second)

	if calls != 1 {
		t.Errorf("next called %d times, want 1", calls)
	}
	if f.s.Retrying() {
		t.Error("retry must stop once playing")
	}
	if f.kb.taps != 2 {
		t.Errorf("taps = %d, want 2", f.kb.taps)
	}
}

func TestStartNewGameWhilePlayingWaitsForEnd(t *testing.T) {
	f := newFixture(t)
	f.play()

	calls := 0
	f.s.StartNewGame(func() { calls++ })
	if f.s.Retrying() {
		t.Fatal("must not tap start while a game is running")
	}
	if _, end, _ := f.s.ListenersPending(); !end {
		t.Fatal("expected the request to wait on game end")
	}

	f.sc.marker(true)
	f.s.ReadGameState()
	if !f.s.Retrying() {
		t.Fatal("expected retry after the game ended")
	}
	f.sc.marker(false)
	f.s.ReadGameState()
	if calls != 1 {
		t.Errorf("next called %d times, want 1", calls)
	}
}

func TestSensorListenerIsOneShot(t *testing.T) {
	f := newFixture(t)
	f.play()
	n := 0
	f.s.OnSensorData(func() { n++ })
	f.s.ReadSensors()
	f.s.ReadSensors()
	if n != 1 {
		t.Errorf("sensor listener ran %d times, want 1", n)
	}
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t)
	f.play()
	f.sc.obstacle(36, 20)
	f.s.ReadSensors()
	f.s.SetOutput(0.2)

	snap := f.s.Snapshot()
	if snap.State != StatePlaying || snap.Action != control.ActionDown || snap.Output != 0.2 {
		t.Errorf("snapshot = %+v", snap)
	}
	if len(snap.Sensors) != 1 || snap.Sensors[0].Value != f.s.Sensors()[0].Value {
		t.Errorf("snapshot sensors = %+v", snap.Sensors)
	}
}
