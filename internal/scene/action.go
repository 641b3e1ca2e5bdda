package scene

import "fmt"

// ActionKind names what the application does when an interaction fires.
type ActionKind string

const (
	// ActionDialog opens a text box.
	ActionDialog ActionKind = "dialog"
	// ActionScene switches to Target.
	ActionScene ActionKind = "scene"
	// ActionEnter walks into the building scene Target and remembers where
	// to come back to.
	ActionEnter ActionKind = "enter"
	// ActionExit leaves a building for Target, spawning at the remembered
	// return waypoint.
	ActionExit ActionKind = "exit"
)

// Action is the trigger token carried by interaction definitions. The
// collision and interaction packages never look inside it.
type Action struct {
	Kind   ActionKind `json:"kind" yaml:"kind" jsonschema:"enum=dialog,enum=scene,enum=enter,enum=exit"`
	Target string     `json:"target,omitempty" yaml:"target,omitempty"`
	Title  string     `json:"title,omitempty" yaml:"title,omitempty"`
	Body   string     `json:"body,omitempty" yaml:"body,omitempty"`
}

func (a Action) validate() error {
	switch a.Kind {
	case ActionDialog:
		if a.Body == "" && a.Title == "" {
			return fmt.Errorf("dialog action needs a title or body")
		}
	case ActionScene, ActionEnter, ActionExit:
		if a.Target == "" {
			return fmt.Errorf("%s action needs a target", a.Kind)
		}
	default:
		return fmt.Errorf("unknown action kind %q", a.Kind)
	}
	return nil
}
