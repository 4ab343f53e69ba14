// Package dashboard renders a terminal status view of a training run and
// forwards the operator's key commands.
package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/pthm-cable/dinoevo/episode"
	"github.com/pthm-cable/dinoevo/session"
)

// View is a read-only copy of everything the dashboard shows.
type View struct {
	Game    session.Snapshot
	Status  episode.Status
	Fitness []int // per genome of the current generation, -1 = pending
	Best    int   // best fitness seen this run
	Saved   string
	RunID   string
}

// Controller is the agent side of the dashboard. Implementations marshal each
// call onto the scheduler goroutine.
type Controller interface {
	View() (View, error)
	ToggleLearning() error
	Save() (string, error)
	Saved() ([]string, error)
	Load(name string, replace bool) error
}

var (
	styleTitle = tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	styleLabel = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleValue = tcell.StyleDefault.Foreground(tcell.ColorWhite)
	styleAlert = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleBest  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
)

// Dashboard owns a tcell screen. The caller initializes and finalizes it.
type Dashboard struct {
	screen   tcell.Screen
	ctrl     Controller
	interval time.Duration

	view    View
	message string

	// Saved population browser, open while saves is non-nil
	saves  []string
	cursor int
}

// New creates a dashboard refreshing every interval.
func New(screen tcell.Screen, ctrl Controller, interval time.Duration) *Dashboard {
	return &Dashboard{screen: screen, ctrl: ctrl, interval: interval}
}

// Run refreshes the view and handles keys until ctx ends or the quit key is
// pressed. It returns nil on quit.
func (d *Dashboard) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 16)
	done := make(chan struct{})
	defer close(done)
	go d.poll(events, done)

	d.Refresh()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !d.HandleEvent(ev) {
				return nil
			}
			d.Draw()
		case <-ticker.C:
			d.Refresh()
		}
	}
}

// poll forwards terminal events until the screen is finalized or done closes.
func (d *Dashboard) poll(events chan<- tcell.Event, done <-chan struct{}) {
	for {
		ev := d.screen.PollEvent()
		if ev == nil {
			close(events)
			return
		}
		select {
		case events <- ev:
		case <-done:
			return
		}
	}
}

// Refresh pulls a new view from the controller and redraws.
func (d *Dashboard) Refresh() {
	v, err := d.ctrl.View()
	if err != nil {
		d.message = err.Error()
	} else {
		d.view = v
	}
	d.Draw()
}

// HandleEvent processes one terminal event. It returns false on quit.
func (d *Dashboard) HandleEvent(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyCtrlC {
			return false
		}
		if d.saves != nil {
			d.browse(ev)
			return true
		}
		if ev.Key() == tcell.KeyEscape {
			return false
		}
		if ev.Key() != tcell.KeyRune {
			return true
		}
		switch ev.Rune() {
		case 'q':
			return false
		case 's':
			if err := d.ctrl.ToggleLearning(); err != nil {
				d.message = err.Error()
			} else {
				d.message = ""
			}
		case 'w':
			name, err := d.ctrl.Save()
			if err != nil {
				d.message = "save failed: " + err.Error()
			} else {
				d.message = "saved " + name
			}
		case 'l':
			saves, err := d.ctrl.Saved()
			switch {
			case err != nil:
				d.message = "listing saves failed: " + err.Error()
			case len(saves) == 0:
				d.message = "no saved populations"
			default:
				d.saves, d.cursor = saves, 0
				d.message = ""
			}
		}
	case *tcell.EventResize:
		d.screen.Sync()
	}
	return true
}

// browse handles a key while the saved population list is open. Enter loads
// the selection in place of the population, a adds it to the population.
func (d *Dashboard) browse(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape:
		d.saves = nil
	case tcell.KeyUp:
		if d.cursor > 0 {
			d.cursor--
		}
	case tcell.KeyDown:
		if d.cursor < len(d.saves)-1 {
			d.cursor++
		}
	case tcell.KeyEnter:
		d.load(true)
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'a':
			d.load(false)
		case 'l':
			d.saves = nil
		}
	}
}

func (d *Dashboard) load(replace bool) {
	name := d.saves[d.cursor]
	d.saves = nil
	if err := d.ctrl.Load(name, replace); err != nil {
		d.message = "load failed: " + err.Error()
		return
	}
	d.message = "loaded " + name
}

// Draw renders the last view.
func (d *Dashboard) Draw() {
	d.screen.Clear()
	v := d.view

	y := 0
	d.text(0, y, styleTitle, "dinoevo")
	if v.RunID != "" {
		d.text(12, y, styleLabel, "run "+v.RunID)
	}
	y += 2

	learning := "stopped"
	if v.Status.Learning {
		learning = "learning"
	}
	y = d.field(y, "trainer", learning)
	y = d.field(y, "state", v.Status.State.String())
	y = d.field(y, "generation", fmt.Sprintf("%d", v.Status.Generation))
	y = d.field(y, "genome", fmt.Sprintf("%d/%d", v.Status.Index+1, v.Status.Size))
	y = d.field(y, "best", fmt.Sprintf("%d", v.Best))
	y++

	y = d.field(y, "game", v.Game.State.String())
	y = d.field(y, "score", fmt.Sprintf("%d", v.Game.Score))
	y = d.field(y, "output", fmt.Sprintf("%.3f %s", v.Game.Output, v.Game.Action))
	for i, s := range v.Game.Sensors {
		y = d.field(y, fmt.Sprintf("sensor %d", i), fmt.Sprintf("dist %.2f  size %.2f  speed %.2f", s.Value, s.Size, s.Speed))
	}
	y++

	x := 0
	d.text(x, y, styleLabel, "fitness")
	x = 12
	for i, f := range v.Fitness {
		style := styleValue
		if i == v.Status.Index && v.Status.Learning {
			style = style.Reverse(true)
		}
		if f > 0 && f == v.Best {
			style = styleBest
		}
		cell := "  -"
		if f >= 0 {
			cell = fmt.Sprintf("%3d", f)
		}
		x += d.text(x, y, style, cell) + 1
	}
	y += 2

	if v.Saved != "" {
		y = d.field(y, "last save", v.Saved)
	}
	if d.message != "" {
		d.text(0, y, styleAlert, d.message)
		y++
	}
	if d.saves != nil {
		y++
		d.text(0, y, styleTitle, "saved populations")
		y++
		for i, name := range d.saves {
			style := styleValue
			if i == d.cursor {
				style = style.Reverse(true)
			}
			d.text(2, y, style, name)
			y++
		}
		d.text(0, y+1, styleLabel, "[enter] load  [a] add to population  [esc] close")
	} else {
		d.text(0, y+1, styleLabel, "[s] start/stop  [w] save  [l] load  [q] quit")
	}

	d.screen.Show()
}

func (d *Dashboard) field(y int, label, value string) int {
	d.text(0, y, styleLabel, label)
	d.text(12, y, styleValue, value)
	return y + 1
}

// text draws s at (x, y) and returns its width in cells.
func (d *Dashboard) text(x, y int, style tcell.Style, s string) int {
	n := 0
	for _, r := range s {
		d.screen.SetContent(x+n, y, r, nil, style)
		n++
	}
	return n
}
