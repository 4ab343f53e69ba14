package sim

import (
	"image"

	"github.com/mlange-42/ark/ecs"
)

// moveSystem scrolls obstacles toward the runner and despawns those that
// have left the screen.
type moveSystem struct {
	filter ecs.Filter2[Position, Extent]
	dead   []ecs.Entity
}

func newMoveSystem(w *ecs.World) *moveSystem {
	return &moveSystem{
		filter: *ecs.NewFilter2[Position, Extent](w),
	}
}

// Update moves every obstacle left by dx. It returns the entities whose right
// edge is now left of minX and the number of obstacles whose right edge
// crossed runnerX during this step. Removal is left to the caller since the
// world cannot be modified while a query is open.
func (s *moveSystem) Update(dx, minX, runnerX float64) (dead []ecs.Entity, cleared int) {
	s.dead = s.dead[:0]
	query := s.filter.Query()
	for query.Next() {
		pos, ext := query.Get()
		right := pos.X + float64(ext.W)
		pos.X -= dx
		if right > runnerX && right-dx <= runnerX {
			cleared++
		}
		if right-dx < minX {
			s.dead = append(s.dead, query.Entity())
		}
	}
	return s.dead, cleared
}

// collisionSystem reports whether any obstacle overlaps the runner's box.
type collisionSystem struct {
	filter  ecs.Filter2[Position, Extent]
	groundY int
}

func newCollisionSystem(w *ecs.World, groundY int) *collisionSystem {
	return &collisionSystem{
		filter:  *ecs.NewFilter2[Position, Extent](w),
		groundY: groundY,
	}
}

// Update checks every obstacle against the runner box.
func (s *collisionSystem) Update(runner image.Rectangle) bool {
	hit := false
	query := s.filter.Query()
	for query.Next() {
		pos, ext := query.Get()
		if obstacleRect(pos, ext, s.groundY).Overlaps(runner) {
			hit = true
		}
	}
	return hit
}

func obstacleRect(pos *Position, ext *Extent, groundY int) image.Rectangle {
	x := int(pos.X)
	return image.Rect(x, groundY-ext.H, x+ext.W, groundY)
}
