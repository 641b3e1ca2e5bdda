package scene

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"waypoint-walk/server/internal/collision"
	"waypoint-walk/server/internal/geom"
	"waypoint-walk/server/internal/interact"
)

const (
	DefaultPlayerRadius = 0.35
	DefaultPlayerSpeed  = 4.0
	DefaultBound        = 10.0

	// GridThreshold is the obstacle count above which a scene is indexed
	// with a collision.Grid instead of a linear scan.
	GridThreshold = 48

	// FallbackExitName is synthesised when a building has no exit waypoint.
	FallbackExitName = "fallbackExit"

	autoExitRadius     = 2.0
	fallbackExitRadius = 2.5
	autoExitLabel      = "Leave Building"
)

var (
	fallbackExitPoint = geom.Vec3{X: 0, Y: 0, Z: 5}
	fallbackSpawn     = geom.Vec3{X: 0, Y: 0, Z: 4}
	defaultSpawn      = geom.Vec3{X: 0, Y: 0, Z: 2}
	spawnOffset       = geom.Vec3{X: 0, Y: 0, Z: 1}
)

// ErrInvalidScene wraps every structural problem that prevents a scene file
// from being used at all.
var ErrInvalidScene = errors.New("invalid scene")

// File is the on-disk description of one scene.
type File struct {
	ID           string            `json:"id" yaml:"id" jsonschema:"required"`
	Scale        float64           `json:"scale,omitempty" yaml:"scale,omitempty"`
	Bounds       *geom.Vec2        `json:"bounds,omitempty" yaml:"bounds,omitempty" jsonschema:"description=Half extents of the walkable area"`
	Player       PlayerSpec        `json:"player,omitempty" yaml:"player,omitempty"`
	Metric       string            `json:"metric,omitempty" yaml:"metric,omitempty" jsonschema:"enum=spatial,enum=planar"`
	Spawn        SpawnSpec         `json:"spawn,omitempty" yaml:"spawn,omitempty"`
	Exit         *ExitSpec         `json:"exit,omitempty" yaml:"exit,omitempty"`
	Nodes        []Node            `json:"nodes" yaml:"nodes"`
	Interactions []InteractionSpec `json:"interactions,omitempty" yaml:"interactions,omitempty"`
}

type PlayerSpec struct {
	Radius float64 `json:"radius,omitempty" yaml:"radius,omitempty"`
	Speed  float64 `json:"speed,omitempty" yaml:"speed,omitempty"`
}

// SpawnSpec places the actor when no return waypoint applies.
type SpawnSpec struct {
	Waypoint string     `json:"waypoint,omitempty" yaml:"waypoint,omitempty"`
	Default  *geom.Vec3 `json:"default,omitempty" yaml:"default,omitempty"`
}

// ExitSpec asks for an automatic "Leave Building" interaction.
type ExitSpec struct {
	Scene string `json:"scene" yaml:"scene"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

type InteractionSpec struct {
	Point  string  `json:"point" yaml:"point"`
	Label  string  `json:"label" yaml:"label"`
	Radius float64 `json:"radius" yaml:"radius"`
	Action Action  `json:"action" yaml:"action"`
}

// Scene is a loaded, read-only scene. It is shared by every session.
type Scene struct {
	ID           string
	Source       string
	Bounds       geom.Vec2
	Radius       float64
	Speed        float64
	Metric       geom.Metric
	Geometry     Geometry
	Obstacles    collision.ObstacleSet
	Interactions []interact.Definition
	ExitPoint    string
	Issues       []Issue

	spawn SpawnSpec
}

// Build validates f and assembles the scene. Authoring problems that do not
// break the scene are collected in Scene.Issues rather than returned.
func Build(f File, source string) (*Scene, error) {
	id := strings.TrimSpace(f.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: %s: missing id", ErrInvalidScene, source)
	}
	metric, err := geom.ParseMetric(f.Metric)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScene, id, err)
	}
	if !geom.Finite(f.Player.Radius) || !geom.Finite(f.Player.Speed) || !geom.Finite(f.Scale) {
		return nil, fmt.Errorf("%w: %s: scale and player settings must be finite", ErrInvalidScene, id)
	}
	if f.Bounds != nil && (!geom.Finite(f.Bounds.X) || !geom.Finite(f.Bounds.Z)) {
		return nil, fmt.Errorf("%w: %s: bounds must be finite", ErrInvalidScene, id)
	}
	if f.Spawn.Default != nil && !f.Spawn.Default.Finite() {
		return nil, fmt.Errorf("%w: %s: default spawn must be finite", ErrInvalidScene, id)
	}
	if f.Player.Radius < 0 || f.Player.Speed < 0 {
		return nil, fmt.Errorf("%w: %s: player radius and speed must not be negative", ErrInvalidScene, id)
	}

	s := &Scene{
		ID:     id,
		Source: source,
		Radius: valueOr(f.Player.Radius, DefaultPlayerRadius),
		Speed:  valueOr(f.Player.Speed, DefaultPlayerSpeed),
		Metric: metric,
		spawn:  f.Spawn,
	}
	s.Bounds = geom.Vec2{X: DefaultBound, Z: DefaultBound}
	if f.Bounds != nil {
		s.Bounds = geom.Vec2{X: abs(f.Bounds.X), Z: abs(f.Bounds.Z)}
	}

	s.Geometry = Extract(f.Nodes, f.Scale)
	if len(s.Geometry.NonFinite) > 0 {
		return nil, fmt.Errorf("%w: %s: non-finite coordinates in %s", ErrInvalidScene, id, strings.Join(s.Geometry.NonFinite, ", "))
	}
	if len(s.Geometry.Obstacles) > GridThreshold {
		s.Obstacles = collision.NewGrid(s.Geometry.Obstacles, collision.DefaultGridCellSize)
	} else {
		s.Obstacles = collision.Obstacles(s.Geometry.Obstacles)
	}

	for i, entry := range f.Interactions {
		if err := entry.Action.validate(); err != nil {
			return nil, fmt.Errorf("%w: %s: interaction %d (%s): %v", ErrInvalidScene, id, i, entry.Label, err)
		}
		s.Interactions = append(s.Interactions, interact.Definition{
			Point:   entry.Point,
			Label:   entry.Label,
			Radius:  entry.Radius,
			Trigger: entry.Action,
		})
	}

	if f.Exit != nil {
		if err := s.addExit(*f.Exit); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidScene, id, err)
		}
	}

	s.Issues = Validate(s)
	return s, nil
}

// addExit appends the building exit after the authored interactions. Without
// a matching waypoint a fallback exit point is synthesised near the origin.
func (s *Scene) addExit(exit ExitSpec) error {
	if exit.Scene == "" {
		return fmt.Errorf("exit needs a scene")
	}
	label := exit.Label
	if label == "" {
		label = autoExitLabel
	}
	action := Action{Kind: ActionExit, Target: exit.Scene}
	if name, ok := s.Geometry.FindExit(); ok {
		s.ExitPoint = name
		s.Interactions = append(s.Interactions, interact.Definition{Point: name, Label: label, Radius: autoExitRadius, Trigger: action})
		return nil
	}
	s.ExitPoint = FallbackExitName
	s.Geometry.Waypoints[FallbackExitName] = fallbackExitPoint
	s.Geometry.WaypointOrder = append(s.Geometry.WaypointOrder, FallbackExitName)
	s.Interactions = append(s.Interactions, interact.Definition{Point: FallbackExitName, Label: label, Radius: fallbackExitRadius, Trigger: action})
	return nil
}

// InteractConfig is the selector configuration for this scene.
func (s *Scene) InteractConfig() interact.Config {
	return interact.Config{
		Definitions: s.Interactions,
		Waypoints:   s.Geometry.Waypoints,
		Metric:      s.Metric,
	}
}

// SpawnPoint picks where an actor appears. A known return waypoint wins, then
// the configured spawn waypoint, then the building exit, then the defaults.
// Waypoint-based spawns stand one unit in front (+Z) of the waypoint.
func (s *Scene) SpawnPoint(returnWaypoint string) geom.Vec3 {
	for _, name := range []string{returnWaypoint, s.spawn.Waypoint} {
		if name == "" {
			continue
		}
		if wp, ok := s.Geometry.Waypoints[name]; ok {
			return wp.Add(spawnOffset)
		}
	}
	if s.ExitPoint != "" && s.ExitPoint != FallbackExitName {
		wp := s.Geometry.Waypoints[s.ExitPoint]
		return geom.Vec3{X: wp.X, Y: 0, Z: wp.Z}.Add(spawnOffset)
	}
	if s.spawn.Default != nil {
		return *s.spawn.Default
	}
	if s.ExitPoint == FallbackExitName {
		return fallbackSpawn
	}
	return defaultSpawn
}

// Clamp keeps p within the scene's walkable bounds.
func (s *Scene) Clamp(p geom.Vec2) geom.Vec2 {
	return geom.Vec2{
		X: geom.Clamp(p.X, -s.Bounds.X, s.Bounds.X),
		Z: geom.Clamp(p.Z, -s.Bounds.Z, s.Bounds.Z),
	}
}

// ReturnWaypoint is the city waypoint named after a building id, e.g.
// "projects" -> "waypointProjects".
func ReturnWaypoint(buildingID string) string {
	if buildingID == "" {
		return ""
	}
	runes := []rune(buildingID)
	runes[0] = unicode.ToUpper(runes[0])
	return WaypointPrefix + string(runes)
}

func valueOr(v, fallback float64) float64 {
	if v == 0 {
		return fallback
	}
	return v
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
