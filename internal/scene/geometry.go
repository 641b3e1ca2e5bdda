// Package scene turns authored level data into the obstacle and waypoint
// snapshots consumed by the collision and interaction packages.
package scene

import (
	"strings"

	"waypoint-walk/server/internal/geom"
)

const (
	// CollisionPrefix marks level objects whose footprint blocks movement.
	CollisionPrefix = "COLL_"
	// WaypointPrefix marks named points of interest.
	WaypointPrefix = "waypoint"
)

// Node is one already-extracted level object in world space.
type Node struct {
	Name     string    `json:"name" yaml:"name"`
	Position geom.Vec3 `json:"position" yaml:"position"`
	Min      geom.Vec3 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      geom.Vec3 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Geometry is the immutable per-scene snapshot.
type Geometry struct {
	Obstacles     []geom.Rect
	ObstacleNames []string
	Waypoints     map[string]geom.Vec3
	// WaypointOrder keeps authoring order, which decides exit detection.
	WaypointOrder []string
	// Inverted names the collision nodes whose bounds had to be swapped.
	Inverted []string
	// NonFinite names the nodes dropped for NaN or infinite coordinates.
	NonFinite []string
}

// Extract applies the naming conventions to nodes. Positions and bounds are
// scaled uniformly about the origin; a non-positive scale means 1. Nodes with
// NaN or infinite coordinates are left out and listed in NonFinite.
func Extract(nodes []Node, scale float64) Geometry {
	if scale <= 0 || !geom.Finite(scale) {
		scale = 1
	}
	geo := Geometry{Waypoints: make(map[string]geom.Vec3)}
	for _, node := range nodes {
		switch {
		case strings.HasPrefix(node.Name, CollisionPrefix):
			raw := geom.Rect{
				MinX: node.Min.X * scale,
				MaxX: node.Max.X * scale,
				MinZ: node.Min.Z * scale,
				MaxZ: node.Max.Z * scale,
			}
			if !raw.Finite() {
				geo.NonFinite = append(geo.NonFinite, node.Name)
				continue
			}
			if raw.Inverted() {
				geo.Inverted = append(geo.Inverted, node.Name)
			}
			geo.Obstacles = append(geo.Obstacles, raw.Normalize())
			geo.ObstacleNames = append(geo.ObstacleNames, node.Name)
		case strings.HasPrefix(node.Name, WaypointPrefix):
			pos := node.Position.Scale(scale)
			if !pos.Finite() {
				geo.NonFinite = append(geo.NonFinite, node.Name)
				continue
			}
			if _, seen := geo.Waypoints[node.Name]; !seen {
				geo.WaypointOrder = append(geo.WaypointOrder, node.Name)
			}
			geo.Waypoints[node.Name] = pos
		}
	}
	return geo
}

var exitKeywords = []string{"exit", "stairs", "door", "room"}

// FindExit returns the first waypoint, in authoring order, whose name mentions
// an exit keyword.
func (g Geometry) FindExit() (string, bool) {
	for _, name := range g.WaypointOrder {
		lower := strings.ToLower(name)
		for _, kw := range exitKeywords {
			if strings.Contains(lower, kw) {
				return name, true
			}
		}
	}
	return "", false
}
