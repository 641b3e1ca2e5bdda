package sim

import "time"

// CommandType enumerates what a session can ask of the simulation.
type CommandType string

const (
	CommandInput       CommandType = "input"
	CommandInteract    CommandType = "interact"
	CommandCloseDialog CommandType = "closeDialog"
	CommandMenu        CommandType = "menu"
	CommandConsole     CommandType = "console"
)

// ToggleCommand opens or closes an overlay.
type ToggleCommand struct {
	Open bool `json:"open"`
}

// Command is an intent captured for processing on the next tick.
type Command struct {
	ActorID  string         `json:"actorId"`
	Type     CommandType    `json:"type"`
	IssuedAt time.Time      `json:"issuedAt"`
	Input    *Intent        `json:"input,omitempty"`
	Toggle   *ToggleCommand `json:"toggle,omitempty"`
}
