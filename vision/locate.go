package vision

import (
	"errors"
	"image"
	"image/color"

	"github.com/pthm-cable/dinoevo/config"
)

// ErrViewportNotFound is returned when the game cannot be located on screen.
var ErrViewportNotFound = errors.New("vision: game viewport not found")

// Viewport is the located game area. Origin is the left end of the ground
// line; every sensor and marker offset is relative to it.
type Viewport struct {
	Origin image.Point
	Width  int
}

// Locate finds the game viewport by searching for the obstacle color.
//
// A coarse pass scans columns every SkipX pixels downward from StartY. The
// first hit is refined by scanning 1px columns starting RefineBack pixels to
// its left, which lands on the leftmost colored pixel of that row. The ground
// line is then walked rightward until the color ends to measure the width.
func Locate(s Screen, target color.Color, cfg config.LocateConfig) (Viewport, error) {
	bounds := s.Bounds()

	var (
		hit   image.Point
		found bool
	)
	for x := cfg.StartX; x < bounds.Max.X && !found; x += cfg.SkipX {
		hit, found = Scan(s, image.Pt(x, cfg.StartY), image.Pt(0, 1), target, false, cfg.Depth)
	}
	if !found {
		return Viewport{}, ErrViewportNotFound
	}

	var origin image.Point
	found = false
	for x := hit.X - cfg.RefineBack; x <= hit.X && !found; x++ {
		origin, found = Scan(s, image.Pt(x, hit.Y-2), image.Pt(0, 1), target, false, cfg.RefineDepth)
	}
	if !found {
		return Viewport{}, ErrViewportNotFound
	}

	end, ok := Scan(s, origin, image.Pt(cfg.WalkStep, 0), target, true, cfg.WalkLimit)
	if !ok {
		return Viewport{}, ErrViewportNotFound
	}

	return Viewport{Origin: origin, Width: end.X - origin.X}, nil
}
