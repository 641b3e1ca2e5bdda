// Package collision keeps a circular actor out of static rectangular
// obstacles on the X/Z plane.
package collision

import "waypoint-walk/server/internal/geom"

// ObstacleSet answers whether a circle placed at center overlaps anything.
type ObstacleSet interface {
	Blocked(center geom.Vec2, radius float64) bool
}

// Obstacles is the plain linear ObstacleSet. It stops at the first hit.
type Obstacles []geom.Rect

// Blocked implements ObstacleSet.
func (o Obstacles) Blocked(center geom.Vec2, radius float64) bool {
	for _, rect := range o {
		if Overlaps(center, radius, rect) {
			return true
		}
	}
	return false
}

// Overlaps reports whether a circle intersects rect. A circle exactly touching
// an edge does not overlap, so an actor resting against a wall stays put.
func Overlaps(center geom.Vec2, radius float64, rect geom.Rect) bool {
	closestX := geom.Clamp(center.X, rect.MinX, rect.MaxX)
	closestZ := geom.Clamp(center.Z, rect.MinZ, rect.MaxZ)
	dx := center.X - closestX
	dz := center.Z - closestZ
	return dx*dx+dz*dz < radius*radius
}

// Resolve moves an actor from prev towards next and returns where it ends up.
// The full move is tried first, then X alone, then Z alone; if all three are
// blocked the actor keeps prev.
func Resolve(prev, next geom.Vec2, radius float64, obstacles ObstacleSet) geom.Vec2 {
	if obstacles == nil {
		return next
	}
	if !obstacles.Blocked(next, radius) {
		return next
	}

	slideX := geom.Vec2{X: next.X, Z: prev.Z}
	if !obstacles.Blocked(slideX, radius) {
		return slideX
	}

	slideZ := geom.Vec2{X: prev.X, Z: next.Z}
	if !obstacles.Blocked(slideZ, radius) {
		return slideZ
	}

	return prev
}

// SpawnBlocked reports a spawn point the actor could never walk away from
// cleanly because it already overlaps an obstacle.
func SpawnBlocked(spawn geom.Vec2, radius float64, obstacles ObstacleSet) bool {
	if obstacles == nil {
		return false
	}
	return obstacles.Blocked(spawn, radius)
}
