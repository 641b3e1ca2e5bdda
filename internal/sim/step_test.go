package sim

import (
	"math"
	"testing"

	"waypoint-walk/server/internal/collision"
	"waypoint-walk/server/internal/geom"
	"waypoint-walk/server/internal/interact"
)

func newState(obstacles collision.ObstacleSet, cfg interact.Config, onChange interact.ChangeFunc) *State {
	return &State{
		Actor:    Actor{Radius: 0.35},
		World:    World{Bounds: geom.Vec2{X: 10, Z: 10}, Speed: 4, Obstacles: obstacles},
		Selector: interact.NewSelector(cfg, onChange),
	}
}

func TestIntentNormalized(t *testing.T) {
	cases := []struct {
		name string
		in   Intent
		want Intent
	}{
		{name: "unit", in: Intent{DX: 1}, want: Intent{DX: 1}},
		{name: "short", in: Intent{DX: 0.25, DZ: -0.5}, want: Intent{DX: 0.25, DZ: -0.5}},
		{name: "long", in: Intent{DX: 3, DZ: 4}, want: Intent{DX: 0.6, DZ: 0.8}},
		{name: "nan", in: Intent{DX: math.NaN(), DZ: 1}, want: Intent{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.in.Normalized()
			if math.Abs(got.DX-tc.want.DX) > 1e-9 || math.Abs(got.DZ-tc.want.DZ) > 1e-9 {
				t.Fatalf("expected %+v, got %+v", tc.want, got)
			}
		})
	}
}

func TestStepMovesAndClamps(t *testing.T) {
	state := newState(nil, interact.Config{}, nil)
	frame := Step(state, Intent{DX: 1}, 0.5)
	if frame.Position != (geom.Vec2{X: 2}) {
		t.Fatalf("expected (2,0), got %+v", frame.Position)
	}
	for i := 0; i < 20; i++ {
		frame = Step(state, Intent{DX: 1}, 0.5)
	}
	if frame.Position.X != 10 {
		t.Fatalf("expected position clamped to bound 10, got %+v", frame.Position)
	}
}

func TestStepSlidesAlongObstacle(t *testing.T) {
	wall := collision.Obstacles{{MinX: 1, MaxX: 3, MinZ: -1, MaxZ: 3}}
	state := newState(wall, interact.Config{}, nil)
	frame := Step(state, Intent{DX: 2, DZ: 2}, 1/math.Sqrt2)
	if frame.Position.X != 0 {
		t.Fatalf("expected X to be held at 0, got %+v", frame.Position)
	}
	if frame.Position.Z <= 0 {
		t.Fatalf("expected to slide along Z, got %+v", frame.Position)
	}
	if !frame.Blocked {
		t.Fatalf("expected frame to report a blocked move")
	}
}

func TestStepEvaluatesResolvedPosition(t *testing.T) {
	// The sign sits behind a wall. The proposal would land within range,
	// the resolved position does not.
	wall := collision.Obstacles{{MinX: 0.5, MaxX: 3, MinZ: -5, MaxZ: 5}}
	cfg := interact.Config{
		Definitions: []interact.Definition{{Point: "waypointSign", Label: "Read Sign", Radius: 1}},
		Waypoints:   map[string]geom.Vec3{"waypointSign": {X: 2}},
		Metric:      geom.MetricPlanar,
	}
	calls := 0
	state := newState(wall, cfg, func(*interact.Active) { calls++ })
	frame := Step(state, Intent{DX: 1}, 0.5)
	if frame.Position != (geom.Vec2{}) {
		t.Fatalf("expected move to be rejected, got %+v", frame.Position)
	}
	if frame.Active != nil || calls != 0 {
		t.Fatalf("expected no interaction from behind the wall, got %+v (calls=%d)", frame.Active, calls)
	}
}

func TestStepSuppressionFreezesActor(t *testing.T) {
	cfg := interact.Config{
		Definitions: []interact.Definition{{Point: "waypointNpc", Label: "Talk", Radius: 2}},
		Waypoints:   map[string]geom.Vec3{"waypointNpc": {Z: 1}},
	}
	var changes []*interact.Active
	state := newState(nil, cfg, func(a *interact.Active) { changes = append(changes, a) })

	if frame := Step(state, Intent{}, 0.1); frame.Active == nil || frame.Active.Label != "Talk" {
		t.Fatalf("expected Talk to be active, got %+v", frame.Active)
	}
	state.DialogOpen = true
	for i := 0; i < 5; i++ {
		frame := Step(state, Intent{DX: 1}, 0.1)
		if frame.Active != nil {
			t.Fatalf("expected no interaction while suppressed")
		}
		if frame.Position != (geom.Vec2{}) {
			t.Fatalf("expected actor to stay put while suppressed, got %+v", frame.Position)
		}
	}
	if len(changes) != 2 || changes[1] != nil {
		t.Fatalf("expected one activation then one nil, got %d changes", len(changes))
	}
}

func TestStepTracksFacing(t *testing.T) {
	state := newState(nil, interact.Config{}, nil)
	frame := Step(state, Intent{DZ: -1}, 0.1)
	if math.Abs(frame.Facing) > 1e-9 {
		t.Fatalf("expected facing 0 when moving -Z, got %v", frame.Facing)
	}
	frame = Step(state, Intent{}, 0.1)
	if math.Abs(frame.Facing) > 1e-9 {
		t.Fatalf("expected facing to persist when idle, got %v", frame.Facing)
	}
}
