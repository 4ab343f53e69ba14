// Package vision implements the ray-scan perception primitive over a color field
// and the one-time search for the game viewport.
package vision

import (
	"image"
	"image/color"
)

// Screen is anything that can be sampled for pixel colors. A captured desktop
// frame and the simulator frame both satisfy it.
type Screen = image.Image

// Scan walks from origin by step, at most maxSteps times, and returns the first
// position whose color matches target (or mismatches it when inverted).
// The origin is clamped into the visible bounds first. Scan reports false when
// the walk leaves the bounds, exhausts the step limit, or step is zero.
func Scan(s Screen, origin, step image.Point, target color.Color, inverted bool, maxSteps int) (image.Point, bool) {
	if step.X == 0 && step.Y == 0 {
		return image.Point{}, false
	}

	bounds := s.Bounds()
	cur := Clamp(origin, bounds)
	tr, tg, tb := rgb(target)

	for steps := 0; cur.In(bounds); steps++ {
		if steps > maxSteps {
			return image.Point{}, false
		}
		r, g, b := rgb(s.At(cur.X, cur.Y))
		match := r == tr && g == tg && b == tb
		if match != inverted {
			return cur, true
		}
		cur = cur.Add(step)
	}
	return image.Point{}, false
}

// Matches reports whether the pixel at p has the target color.
func Matches(s Screen, p image.Point, target color.Color) bool {
	if !p.In(s.Bounds()) {
		return false
	}
	r, g, b := rgb(s.At(p.X, p.Y))
	tr, tg, tb := rgb(target)
	return r == tr && g == tg && b == tb
}

// Clamp limits p to the rectangle r.
func Clamp(p image.Point, r image.Rectangle) image.Point {
	if p.X < r.Min.X {
		p.X = r.Min.X
	}
	if p.X >= r.Max.X {
		p.X = r.Max.X - 1
	}
	if p.Y < r.Min.Y {
		p.Y = r.Min.Y
	}
	if p.Y >= r.Max.Y {
		p.Y = r.Max.Y - 1
	}
	return p
}

// rgb returns 8-bit channels, ignoring alpha.
func rgb(c color.Color) (uint8, uint8, uint8) {
	if rgba, ok := c.(color.RGBA); ok {
		return rgba.R, rgba.G, rgba.B
	}
	r, g, b, _ := c.RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}
