package simulation

import (
	"context"

	"waypoint-walk/server/logging"
)

const (
	// EventTickBudgetOverrun is emitted when a tick takes longer than its budget.
	EventTickBudgetOverrun logging.EventType = "simulation.tick_budget_overrun"
	// EventInteractionChanged is emitted when a session's active interaction changes.
	EventInteractionChanged logging.EventType = "simulation.interaction_changed"
	// EventSceneChanged is emitted when a session moves to another scene.
	EventSceneChanged logging.EventType = "simulation.scene_changed"
	// EventSessionLifecycle is emitted on join and disconnect.
	EventSessionLifecycle logging.EventType = "simulation.session"
)

// TickBudgetOverrunPayload captures timing details for a tick budget breach.
type TickBudgetOverrunPayload struct {
	DurationMillis int64   `json:"durationMillis"`
	BudgetMillis   int64   `json:"budgetMillis"`
	Ratio          float64 `json:"ratio"`
	Streak         uint64  `json:"streak"`
}

// TickBudgetOverrun publishes a warning when a tick exceeds its budget.
func TickBudgetOverrun(ctx context.Context, pub logging.Publisher, tick uint64, payload TickBudgetOverrunPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTickBudgetOverrun,
		Tick:     tick,
		Subject:  logging.EntityRef{Kind: logging.EntityKindServer},
		Severity: logging.SeverityWarn,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

// InteractionChangedPayload carries the new label; empty means none.
type InteractionChangedPayload struct {
	Label string `json:"label,omitempty"`
	Point string `json:"point,omitempty"`
}

func InteractionChanged(ctx context.Context, pub logging.Publisher, tick uint64, sessionID, sceneID string, payload InteractionChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventInteractionChanged,
		Tick:     tick,
		Subject:  logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Scene:    sceneID,
		Severity: logging.SeverityDebug,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

type SceneChangedPayload struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Spawn string `json:"spawn,omitempty"`
}

func SceneChanged(ctx context.Context, pub logging.Publisher, tick uint64, sessionID string, payload SceneChangedPayload) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSceneChanged,
		Tick:     tick,
		Subject:  logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Scene:    payload.To,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySimulation,
		Payload:  payload,
	})
}

type SessionPayload struct {
	Action string `json:"action"`
}

func Session(ctx context.Context, pub logging.Publisher, sessionID, sceneID, action string) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventSessionLifecycle,
		Subject:  logging.EntityRef{ID: sessionID, Kind: logging.EntityKindSession},
		Scene:    sceneID,
		Severity: logging.SeverityInfo,
		Category: logging.CategorySimulation,
		Payload:  SessionPayload{Action: action},
	})
}
