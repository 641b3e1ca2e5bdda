// Package content publishes authoring problems found while loading scenes.
package content

import (
	"context"

	"waypoint-walk/server/logging"
)

const (
	// EventSceneLoaded is emitted once per scene that finished loading.
	EventSceneLoaded logging.EventType = "content.scene_loaded"
	// EventSceneIssue is emitted for every authoring problem found in a scene.
	EventSceneIssue logging.EventType = "content.scene_issue"
)

// SceneLoadedPayload summarises the extracted geometry.
type SceneLoadedPayload struct {
	Source       string `json:"source"`
	Obstacles    int    `json:"obstacles"`
	Waypoints    int    `json:"waypoints"`
	Interactions int    `json:"interactions"`
}

// SceneLoaded records a successfully ingested scene.
func SceneLoaded(ctx context.Context, pub logging.Publisher, sceneID string, payload SceneLoadedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSceneLoaded,
		Subject:  logging.EntityRef{ID: sceneID, Kind: logging.EntityKindScene},
		Scene:    sceneID,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryContent,
		Payload:  payload,
	})
}

// SceneIssuePayload describes one authoring problem.
type SceneIssuePayload struct {
	Code    string `json:"code"`
	Subject string `json:"subject,omitempty"`
	Detail  string `json:"detail"`
}

// SceneIssue publishes an authoring warning. These never stop the scene from
// loading.
func SceneIssue(ctx context.Context, pub logging.Publisher, sceneID string, payload SceneIssuePayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSceneIssue,
		Subject:  logging.EntityRef{ID: sceneID, Kind: logging.EntityKindScene},
		Scene:    sceneID,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryContent,
		Payload:  payload,
	})
}
