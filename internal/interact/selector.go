// Package interact picks the single interaction an actor can trigger right
// now and reports it only when it changes.
package interact

import (
	"math"

	"waypoint-walk/server/internal/geom"
)

// Definition binds a labelled trigger to a named waypoint. Trigger is an
// opaque token handed back to the caller; the selector never runs it.
type Definition struct {
	Point   string
	Label   string
	Radius  float64
	Trigger any
}

// Config is everything the selector needs for one scene.
type Config struct {
	Definitions []Definition
	Waypoints   map[string]geom.Vec3
	Metric      geom.Metric
}

// Active is the interaction currently offered to the player.
type Active struct {
	Index    int
	Point    string
	Label    string
	Trigger  any
	Distance float64
}

// ChangeFunc receives the new active interaction, or nil when none applies.
type ChangeFunc func(active *Active)

// Nearest returns the closest definition whose waypoint lies within its own
// radius of actor. Definitions pointing at unknown waypoints are skipped. On an
// exact distance tie the earlier definition wins.
func Nearest(actor geom.Vec3, cfg Config) (Active, bool) {
	best := Active{Index: -1, Distance: math.Inf(1)}
	for i, def := range cfg.Definitions {
		wp, ok := cfg.Waypoints[def.Point]
		if !ok {
			continue
		}
		d := geom.Distance(actor, wp, cfg.Metric)
		if d > def.Radius || d >= best.Distance {
			continue
		}
		best = Active{Index: i, Point: def.Point, Label: def.Label, Trigger: def.Trigger, Distance: d}
	}
	if best.Index < 0 {
		return Active{}, false
	}
	return best, true
}

// Dangling lists the definitions whose waypoint does not exist.
func Dangling(cfg Config) []Definition {
	var out []Definition
	for _, def := range cfg.Definitions {
		if _, ok := cfg.Waypoints[def.Point]; !ok {
			out = append(out, def)
		}
	}
	return out
}

// Selector tracks the last reported interaction for one actor. It is driven
// from a single frame loop and is not safe for concurrent use.
type Selector struct {
	cfg      Config
	onChange ChangeFunc
	current  *Active
}

// NewSelector builds a selector. onChange may be nil.
func NewSelector(cfg Config, onChange ChangeFunc) *Selector {
	return &Selector{cfg: cfg, onChange: onChange}
}

// Reconfigure swaps the scene definitions. The last reported interaction is
// kept so an unchanged winner is not reported twice.
func (s *Selector) Reconfigure(cfg Config) {
	if s == nil {
		return
	}
	s.cfg = cfg
}

// Config returns the active configuration.
func (s *Selector) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.cfg
}

// Current returns the last reported interaction.
func (s *Selector) Current() *Active {
	if s == nil || s.current == nil {
		return nil
	}
	copied := *s.current
	return &copied
}

// Clear withdraws the last reported interaction. Listeners see a nil
// transition only if something was active.
func (s *Selector) Clear() {
	if s == nil {
		return
	}
	s.update(nil)
}

// Evaluate runs one frame. While suppressed nothing is offered regardless of
// proximity. The change callback fires only on transitions.
func (s *Selector) Evaluate(actor geom.Vec3, suppressed bool) *Active {
	if s == nil {
		return nil
	}
	if suppressed {
		s.update(nil)
		return nil
	}
	best, ok := Nearest(actor, s.cfg)
	if !ok {
		s.update(nil)
		return nil
	}
	if s.current != nil && sameWinner(*s.current, best) {
		// Distance moves every frame and Reconfigure may swap the token.
		s.current.Distance = best.Distance
		s.current.Trigger = best.Trigger
		return s.Current()
	}
	s.update(&best)
	return s.Current()
}

func (s *Selector) update(next *Active) {
	if next == nil {
		if s.current == nil {
			return
		}
		s.current = nil
		s.notify(nil)
		return
	}
	s.current = next
	s.notify(s.Current())
}

func (s *Selector) notify(active *Active) {
	if s.onChange != nil {
		s.onChange(active)
	}
}

// sameWinner compares label and definition identity; two signs sharing a
// label are still different interactions.
func sameWinner(a, b Active) bool {
	return a.Label == b.Label && a.Index == b.Index && a.Point == b.Point
}
