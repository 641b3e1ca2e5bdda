package collision

import (
	"math"
	"math/rand"
	"testing"

	"waypoint-walk/server/internal/geom"
)

const actorRadius = 0.35

func wall() geom.Rect {
	return geom.Rect{MinX: 1, MaxX: 3, MinZ: -1, MaxZ: 1}
}

func TestOverlapsTouchingIsClear(t *testing.T) {
	rect := wall()
	touching := geom.Vec2{X: rect.MinX - 0.5, Z: 0}
	if Overlaps(touching, 0.5, rect) {
		t.Fatalf("circle touching the edge must not overlap")
	}
	if !Overlaps(geom.Vec2{X: rect.MinX - 0.49, Z: 0}, 0.5, rect) {
		t.Fatalf("circle crossing the edge must overlap")
	}
	if !Overlaps(geom.Vec2{X: 2, Z: 0}, 0.1, rect) {
		t.Fatalf("center inside rect must overlap")
	}
}

func TestResolveAcceptsClearMove(t *testing.T) {
	prev := geom.Vec2{X: 0, Z: 0}
	next := geom.Vec2{X: 0, Z: -3}
	got := Resolve(prev, next, actorRadius, Obstacles{wall()})
	if got != next {
		t.Fatalf("expected clear move to be accepted, got %+v", got)
	}
}

func TestResolveStraightIntoWall(t *testing.T) {
	prev := geom.Vec2{X: 0, Z: 0}
	got := Resolve(prev, geom.Vec2{X: 2, Z: 0}, actorRadius, Obstacles{wall()})
	if got.X >= 1-actorRadius {
		t.Fatalf("expected x short of %.2f, got %+v", 1-actorRadius, got)
	}
	if got.Z != 0 {
		t.Fatalf("expected z unchanged, got %+v", got)
	}
}

func TestResolveDiagonalSlidesAlongZ(t *testing.T) {
	// Tall enough that both the diagonal and the X-only move land inside it.
	tall := geom.Rect{MinX: 1, MaxX: 3, MinZ: -1, MaxZ: 3}
	got := Resolve(geom.Vec2{}, geom.Vec2{X: 2, Z: 2}, actorRadius, Obstacles{tall})
	want := geom.Vec2{X: 0, Z: 2}
	if got != want {
		t.Fatalf("expected slide to %+v, got %+v", want, got)
	}
}

func TestResolvePrefersXSlideOverZSlide(t *testing.T) {
	// Blocks the diagonal only; both single-axis moves are clear, so the X
	// slide wins.
	corner := geom.Rect{MinX: 0.8, MaxX: 2, MinZ: 0.8, MaxZ: 2}
	got := Resolve(geom.Vec2{}, geom.Vec2{X: 1, Z: 1}, actorRadius, Obstacles{corner})
	want := geom.Vec2{X: 1, Z: 0}
	if got != want {
		t.Fatalf("expected X slide %+v, got %+v", want, got)
	}
}

func TestResolveCornerRejects(t *testing.T) {
	prev := geom.Vec2{X: 0, Z: 0}
	obstacles := Obstacles{
		{MinX: 0.9, MaxX: 3, MinZ: -0.5, MaxZ: 3},
		{MinX: -0.5, MaxX: 0.5, MinZ: 0.9, MaxZ: 2},
	}
	got := Resolve(prev, geom.Vec2{X: 1, Z: 1}, actorRadius, obstacles)
	if got != prev {
		t.Fatalf("expected rejection to return prev %+v, got %+v", prev, got)
	}
	if math.Float64bits(got.X) != math.Float64bits(prev.X) || math.Float64bits(got.Z) != math.Float64bits(prev.Z) {
		t.Fatalf("rejection must return prev bit-for-bit")
	}
}

func TestResolveNilObstacles(t *testing.T) {
	next := geom.Vec2{X: 4, Z: 4}
	if got := Resolve(geom.Vec2{}, next, actorRadius, nil); got != next {
		t.Fatalf("expected unconstrained move, got %+v", got)
	}
}

func TestResolveNeverPenetrates(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	obstacles := make(Obstacles, 0, 12)
	for i := 0; i < 12; i++ {
		x := rng.Float64()*20 - 10
		z := rng.Float64()*20 - 10
		obstacles = append(obstacles, geom.Rect{MinX: x, MaxX: x + 0.5 + rng.Float64()*3, MinZ: z, MaxZ: z + 0.5 + rng.Float64()*3})
	}

	pos := geom.Vec2{X: -12, Z: -12}
	for obstacles.Blocked(pos, actorRadius) {
		pos.X -= 1
	}

	for step := 0; step < 5000; step++ {
		next := pos.Add(geom.Vec2{X: rng.Float64()*0.6 - 0.3, Z: rng.Float64()*0.6 - 0.3})
		pos = Resolve(pos, next, actorRadius, obstacles)
		for i, rect := range obstacles {
			if Overlaps(pos, actorRadius, rect) {
				t.Fatalf("step %d: actor at %+v penetrates obstacle %d %+v", step, pos, i, rect)
			}
		}
	}
}

func TestResolveDoesNotWorsenExistingPenetration(t *testing.T) {
	rect := wall()
	prev := geom.Vec2{X: 1.1, Z: 0}
	got := Resolve(prev, geom.Vec2{X: 1.5, Z: 0.2}, actorRadius, Obstacles{rect})
	if got != prev {
		t.Fatalf("expected penetrating actor to stay at %+v, got %+v", prev, got)
	}
}

func TestSpawnBlocked(t *testing.T) {
	obstacles := Obstacles{wall()}
	if !SpawnBlocked(geom.Vec2{X: 2, Z: 0}, actorRadius, obstacles) {
		t.Fatalf("spawn inside obstacle should be flagged")
	}
	if SpawnBlocked(geom.Vec2{X: -2, Z: 0}, actorRadius, obstacles) {
		t.Fatalf("clear spawn flagged as blocked")
	}
	if SpawnBlocked(geom.Vec2{}, actorRadius, nil) {
		t.Fatalf("nil obstacle set should never block")
	}
}
