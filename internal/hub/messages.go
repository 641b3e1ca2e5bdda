package hub

import "waypoint-walk/server/internal/geom"

// Message types pushed to clients.
const (
	MessageFrame       = "frame"
	MessageDialog      = "dialog"
	MessageScene       = "scene"
	MessageInteraction = "interaction"
)

// InteractionView is the prompt shown for the active interaction.
type InteractionView struct {
	Label string `json:"label"`
	Point string `json:"point"`
}

// InteractionMessage is sent when the offered interaction changes. A nil
// Interaction hides the prompt.
type InteractionMessage struct {
	Type        string           `json:"type"`
	Interaction *InteractionView `json:"interaction"`
}

// FrameMessage is sent to a session after every tick.
type FrameMessage struct {
	Type       string  `json:"type"`
	Tick       uint64  `json:"tick"`
	Scene      string  `json:"scene"`
	X          float64 `json:"x"`
	Z          float64 `json:"z"`
	Facing     float64 `json:"facing"`
	Suppressed bool    `json:"suppressed,omitempty"`
}

// DialogMessage opens a text box on the client.
type DialogMessage struct {
	Type  string `json:"type"`
	Title string `json:"title,omitempty"`
	Body  string `json:"body,omitempty"`
}

// SceneMessage tells the client to load another scene.
type SceneMessage struct {
	Type   string    `json:"type"`
	ID     string    `json:"id"`
	X      float64   `json:"x"`
	Z      float64   `json:"z"`
	Bounds geom.Vec2 `json:"bounds"`
}

// JoinResponse is returned to a client that registered a new session.
type JoinResponse struct {
	ID     string    `json:"id"`
	Scene  string    `json:"scene"`
	X      float64   `json:"x"`
	Z      float64   `json:"z"`
	Bounds geom.Vec2 `json:"bounds"`
	Radius float64   `json:"radius"`
}

// SessionDiagnostics is the per-session row of the diagnostics endpoint.
type SessionDiagnostics struct {
	ID          string  `json:"id"`
	Scene       string  `json:"scene"`
	X           float64 `json:"x"`
	Z           float64 `json:"z"`
	Interaction string  `json:"interaction,omitempty"`
	Suppressed  bool    `json:"suppressed"`
	Subscribed  bool    `json:"subscribed"`
	JoinedAt    int64   `json:"joinedAt"`
}
