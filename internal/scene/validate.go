package scene

import (
	"fmt"

	"waypoint-walk/server/internal/collision"
	"waypoint-walk/server/internal/interact"
)

// Issue codes.
const (
	IssueObstacleInverted   = "obstacle_inverted"
	IssueObstacleDegenerate = "obstacle_degenerate"
	IssueDanglingPoint      = "interaction_dangling"
	IssueRadius             = "interaction_radius"
	IssueSpawnBlocked       = "spawn_blocked"
	IssueSpawnWaypoint      = "spawn_waypoint_missing"
	IssueActionTarget       = "action_target_missing"
	IssueReturnWaypoint     = "return_waypoint_missing"
)

// Issue is one authoring problem. None of them stop a scene from running:
// the runtime degrades to "no movement" or "no interaction".
type Issue struct {
	Code    string
	Subject string
	Detail  string
}

func (i Issue) String() string {
	if i.Subject == "" {
		return fmt.Sprintf("%s: %s", i.Code, i.Detail)
	}
	return fmt.Sprintf("%s %s: %s", i.Code, i.Subject, i.Detail)
}

// Validate reports authoring problems in s.
func Validate(s *Scene) []Issue {
	if s == nil {
		return nil
	}
	var issues []Issue

	for _, name := range s.Geometry.Inverted {
		issues = append(issues, Issue{Code: IssueObstacleInverted, Subject: name, Detail: "min/max swapped during ingestion"})
	}
	for i, rect := range s.Geometry.Obstacles {
		if rect.Degenerate() {
			issues = append(issues, Issue{
				Code:    IssueObstacleDegenerate,
				Subject: s.Geometry.ObstacleNames[i],
				Detail:  fmt.Sprintf("zero area footprint %.3fx%.3f", rect.Width(), rect.Depth()),
			})
		}
	}

	for _, def := range interact.Dangling(s.InteractConfig()) {
		issues = append(issues, Issue{Code: IssueDanglingPoint, Subject: def.Point, Detail: fmt.Sprintf("interaction %q will never trigger", def.Label)})
	}
	for _, def := range s.Interactions {
		if def.Radius <= 0 {
			issues = append(issues, Issue{Code: IssueRadius, Subject: def.Point, Detail: fmt.Sprintf("interaction %q has non-positive radius %.3f", def.Label, def.Radius)})
		}
	}

	if name := s.spawn.Waypoint; name != "" {
		if _, ok := s.Geometry.Waypoints[name]; !ok {
			issues = append(issues, Issue{Code: IssueSpawnWaypoint, Subject: name, Detail: "spawn waypoint not found, using fallback"})
		}
	}
	spawn := s.Clamp(s.SpawnPoint("").Planar())
	if collision.SpawnBlocked(spawn, s.Radius, s.Obstacles) {
		issues = append(issues, Issue{Code: IssueSpawnBlocked, Detail: fmt.Sprintf("spawn (%.2f, %.2f) overlaps an obstacle; the actor cannot move", spawn.X, spawn.Z)})
	}
	return issues
}

// ValidateCatalog reports problems that span scenes and appends them to the
// affected scene. Every action target must exist, and leaving a building must
// land on a free spot at the waypoint named after it in the exit's scene.
func ValidateCatalog(c *Catalog) {
	if c == nil {
		return
	}
	type landing struct {
		scene    string
		waypoint string
	}
	checked := make(map[landing]bool)
	for _, id := range c.order {
		s := c.scenes[id]
		for _, def := range s.Interactions {
			action, ok := def.Trigger.(Action)
			if !ok || action.Kind == ActionDialog {
				continue
			}
			target, err := c.Get(action.Target)
			if err != nil {
				s.Issues = append(s.Issues, Issue{Code: IssueActionTarget, Subject: def.Point, Detail: fmt.Sprintf("interaction %q targets unknown scene %q", def.Label, action.Target)})
				continue
			}
			if action.Kind != ActionEnter {
				continue
			}
			waypoint := ReturnWaypoint(target.ID)
			for _, dest := range exitScenes(c, target) {
				key := landing{scene: dest.ID, waypoint: waypoint}
				if checked[key] {
					continue
				}
				checked[key] = true
				if _, ok := dest.Geometry.Waypoints[waypoint]; !ok {
					dest.Issues = append(dest.Issues, Issue{Code: IssueReturnWaypoint, Subject: waypoint, Detail: fmt.Sprintf("leaving %q falls back to the default spawn", target.ID)})
					continue
				}
				spawn := dest.Clamp(dest.SpawnPoint(waypoint).Planar())
				if collision.SpawnBlocked(spawn, dest.Radius, dest.Obstacles) {
					dest.Issues = append(dest.Issues, Issue{Code: IssueSpawnBlocked, Subject: waypoint, Detail: fmt.Sprintf("return spawn (%.2f, %.2f) from %q overlaps an obstacle", spawn.X, spawn.Z, target.ID)})
				}
			}
		}
	}
}

func exitScenes(c *Catalog, building *Scene) []*Scene {
	var out []*Scene
	for _, def := range building.Interactions {
		action, ok := def.Trigger.(Action)
		if !ok || action.Kind != ActionExit {
			continue
		}
		if dest, err := c.Get(action.Target); err == nil {
			out = append(out, dest)
		}
	}
	return out
}
