package sim

// Position is an obstacle's left edge in screen pixels. Obstacles always sit
// on the ground line, so only X moves.
type Position struct {
	X float64
}

// Extent is an obstacle's size in pixels.
type Extent struct {
	W, H int
}

// Runner is the player's vertical state. Y is the height of the runner's feet
// above the ground line.
type Runner struct {
	Y, VY    float64
	Grounded bool
}
