// Package sim advances walking actors one frame at a time: movement is
// clamped to the walkable area, resolved against obstacles and only then
// offered to the interaction selector.
package sim

import (
	"math"

	"waypoint-walk/server/internal/collision"
	"waypoint-walk/server/internal/geom"
	"waypoint-walk/server/internal/interact"
)

// Intent is the per-frame movement request in input space. A vector longer
// than 1 is normalised so diagonals are not faster than straight lines.
type Intent struct {
	DX float64 `json:"dx"`
	DZ float64 `json:"dz"`
}

// Normalized clamps the intent to unit length and drops non-finite input.
func (in Intent) Normalized() Intent {
	if math.IsNaN(in.DX) || math.IsInf(in.DX, 0) || math.IsNaN(in.DZ) || math.IsInf(in.DZ, 0) {
		return Intent{}
	}
	length := math.Hypot(in.DX, in.DZ)
	if length <= 1 {
		return in
	}
	return Intent{DX: in.DX / length, DZ: in.DZ / length}
}

// Zero reports whether the intent requests no movement.
func (in Intent) Zero() bool {
	return in.DX == 0 && in.DZ == 0
}

// Actor is the walking body. Height is the constant Y used for interaction
// distances.
type Actor struct {
	Position geom.Vec2
	Height   float64
	Radius   float64
	// Facing is the yaw in radians of the last non-zero move.
	Facing float64
}

// Point lifts the actor into world space.
func (a Actor) Point() geom.Vec3 {
	return a.Position.Lift(a.Height)
}

// World is the static part of a scene the step needs.
type World struct {
	Bounds    geom.Vec2
	Speed     float64
	Obstacles collision.ObstacleSet
}

func (w World) clamp(p geom.Vec2) geom.Vec2 {
	if w.Bounds.X <= 0 && w.Bounds.Z <= 0 {
		return p
	}
	return geom.Vec2{
		X: geom.Clamp(p.X, -w.Bounds.X, w.Bounds.X),
		Z: geom.Clamp(p.Z, -w.Bounds.Z, w.Bounds.Z),
	}
}

// State is everything one actor carries between frames.
type State struct {
	Actor    Actor
	World    World
	Selector *interact.Selector

	DialogOpen  bool
	MenuOpen    bool
	ConsoleOpen bool
}

// Suppressed reports whether an overlay owns the input. While suppressed the
// actor does not move and no interaction is offered.
func (s *State) Suppressed() bool {
	return s.DialogOpen || s.MenuOpen || s.ConsoleOpen
}

// Frame is the outcome of one step.
type Frame struct {
	Position geom.Vec2
	Facing   float64
	// Blocked is set when the proposed move was shortened or rejected.
	Blocked bool
	Active  *interact.Active
}

// Step advances state by dt seconds.
func Step(state *State, in Intent, dt float64) Frame {
	if state == nil {
		return Frame{}
	}
	suppressed := state.Suppressed()
	blocked := false
	if !suppressed && dt > 0 {
		in = in.Normalized()
		if !in.Zero() {
			prev := state.Actor.Position
			step := geom.Vec2{X: in.DX, Z: in.DZ}.Scale(state.World.Speed * dt)
			proposed := state.World.clamp(prev.Add(step))
			resolved := collision.Resolve(prev, proposed, state.Actor.Radius, state.World.Obstacles)
			blocked = resolved != proposed
			state.Actor.Position = resolved
			state.Actor.Facing = math.Atan2(-in.DX, -in.DZ)
		}
	}

	// The selector must see the resolved position, never the proposal.
	active := state.Selector.Evaluate(state.Actor.Point(), suppressed)
	return Frame{
		Position: state.Actor.Position,
		Facing:   state.Actor.Facing,
		Blocked:  blocked,
		Active:   active,
	}
}
