// Package hub owns the live sessions: it stages their input through the
// simulation loop, applies interaction actions and pushes frames back.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"waypoint-walk/server/internal/interact"
	"waypoint-walk/server/internal/scene"
	"waypoint-walk/server/internal/sim"
	"waypoint-walk/server/internal/telemetry"
	"waypoint-walk/server/logging"
	loggingsimulation "waypoint-walk/server/logging/simulation"
)

var (
	// ErrUnknownSession is returned for ids that never joined or already left.
	ErrUnknownSession = errors.New("unknown session")
	// ErrCommandRejected wraps the loop's backpressure reason.
	ErrCommandRejected = errors.New("command rejected")
)

const (
	metricSessions           = "hub_sessions"
	metricJoins              = "hub_joins_total"
	metricInteractionChanges = "hub_interaction_changes_total"
	metricSceneChanges       = "hub_scene_changes_total"
	metricSendFailures       = "hub_send_failures_total"
)

// Subscriber receives encoded messages for one session.
type Subscriber interface {
	Send(data []byte) error
	Close() error
}

// Config selects the entry scene and tunes the loop.
type Config struct {
	DefaultScene string
	ActorHeight  float64
	Loop         sim.LoopConfig
}

// Deps carries shared infrastructure. Every field is optional.
type Deps struct {
	Logger    telemetry.Logger
	Metrics   telemetry.Metrics
	Publisher logging.Publisher
	Clock     logging.Clock
}

// Hub owns all live sessions.
type Hub struct {
	catalog *scene.Catalog
	cfg     Config
	deps    Deps
	loop    *sim.Loop

	mu       sync.Mutex
	sessions map[string]*session
	tick     uint64
	// stepCtx is the context of the tick in progress; selector callbacks
	// fire inside Step.
	stepCtx context.Context
}

type session struct {
	id       string
	joinedAt time.Time
	scene    *scene.Scene
	state    sim.State
	intent   sim.Intent
	// returnWaypoint is where an exit action puts the actor back.
	returnWaypoint string
	subscriber     Subscriber
	outbox         []any
}

// New builds a hub over catalog. The default scene must exist.
func New(catalog *scene.Catalog, cfg Config, deps Deps) (*Hub, error) {
	if _, err := catalog.Get(cfg.DefaultScene); err != nil {
		return nil, fmt.Errorf("default scene: %w", err)
	}
	if deps.Clock == nil {
		deps.Clock = logging.SystemClock{}
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	h := &Hub{
		catalog:  catalog,
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*session),
		stepCtx:  context.Background(),
	}
	h.loop = sim.NewLoop(h, cfg.Loop, sim.LoopDeps{
		Logger:    deps.Logger,
		Metrics:   deps.Metrics,
		Publisher: deps.Publisher,
		Clock:     deps.Clock,
	})
	return h, nil
}

// Loop exposes the simulation loop driving this hub.
func (h *Hub) Loop() *sim.Loop {
	return h.loop
}

// Run advances the simulation until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	h.loop.Run(ctx)
}

// Catalog returns the scenes the hub serves.
func (h *Hub) Catalog() *scene.Catalog {
	return h.catalog
}

// Join registers a new session in sceneID, or the default scene when empty.
func (h *Hub) Join(ctx context.Context, sceneID string) (JoinResponse, error) {
	if sceneID == "" {
		sceneID = h.cfg.DefaultScene
	}
	sc, err := h.catalog.Get(sceneID)
	if err != nil {
		return JoinResponse{}, err
	}

	s := &session{id: uuid.NewString(), joinedAt: h.deps.Clock.Now()}
	s.state.Selector = interact.NewSelector(interact.Config{}, h.changeHandler(s))
	h.place(s, sc, "")

	h.mu.Lock()
	h.sessions[s.id] = s
	count := len(h.sessions)
	h.mu.Unlock()

	if h.deps.Metrics != nil {
		h.deps.Metrics.Add(metricJoins, 1)
		h.deps.Metrics.Store(metricSessions, uint64(count))
	}
	loggingsimulation.Session(ctx, h.deps.Publisher, s.id, sc.ID, "join")

	return JoinResponse{
		ID:     s.id,
		Scene:  sc.ID,
		X:      s.state.Actor.Position.X,
		Z:      s.state.Actor.Position.Z,
		Bounds: sc.Bounds,
		Radius: sc.Radius,
	}, nil
}

// Subscribe attaches the outgoing channel of a session. A previous
// subscriber is closed.
func (h *Hub) Subscribe(id string, sub Subscriber) error {
	h.mu.Lock()
	s, ok := h.sessions[id]
	if !ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	previous := s.subscriber
	s.subscriber = sub
	s.outbox = append(s.outbox, h.sceneMessage(s))
	if active := s.state.Selector.Current(); active != nil {
		s.outbox = append(s.outbox, interactionMessage(active))
	}
	h.mu.Unlock()

	if previous != nil && previous != sub {
		previous.Close()
	}
	return nil
}

// Disconnect removes a session and closes its subscriber. It reports whether
// the session existed.
func (h *Hub) Disconnect(ctx context.Context, id string) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	var sceneID string
	var sub Subscriber
	if ok {
		delete(h.sessions, id)
		sceneID = s.scene.ID
		sub = s.subscriber
	}
	count := len(h.sessions)
	h.mu.Unlock()
	if !ok {
		return false
	}

	h.loop.Forget(id)
	if sub != nil {
		sub.Close()
	}
	if h.deps.Metrics != nil {
		h.deps.Metrics.Store(metricSessions, uint64(count))
	}
	loggingsimulation.Session(ctx, h.deps.Publisher, id, sceneID, "disconnect")
	return true
}

// Release disconnects the session only while sub is still attached to it. A
// connection replaced by a newer one must not take the session down.
func (h *Hub) Release(ctx context.Context, id string, sub Subscriber) bool {
	h.mu.Lock()
	s, ok := h.sessions[id]
	current := ok && s.subscriber == sub
	h.mu.Unlock()
	if !current {
		return false
	}
	return h.Disconnect(ctx, id)
}

// UpdateIntent stages the latest movement vector for a session.
func (h *Hub) UpdateIntent(id string, in sim.Intent) error {
	return h.enqueue(sim.Command{ActorID: id, Type: sim.CommandInput, Input: &in})
}

// Interact triggers the session's active interaction on the next tick.
func (h *Hub) Interact(id string) error {
	return h.enqueue(sim.Command{ActorID: id, Type: sim.CommandInteract})
}

// CloseDialog dismisses the open dialog.
func (h *Hub) CloseDialog(id string) error {
	return h.enqueue(sim.Command{ActorID: id, Type: sim.CommandCloseDialog})
}

// SetMenu opens or closes the pause menu.
func (h *Hub) SetMenu(id string, open bool) error {
	return h.enqueue(sim.Command{ActorID: id, Type: sim.CommandMenu, Toggle: &sim.ToggleCommand{Open: open}})
}

// SetConsole opens or closes the in-game console.
func (h *Hub) SetConsole(id string, open bool) error {
	return h.enqueue(sim.Command{ActorID: id, Type: sim.CommandConsole, Toggle: &sim.ToggleCommand{Open: open}})
}

func (h *Hub) enqueue(cmd sim.Command) error {
	h.mu.Lock()
	_, ok := h.sessions[cmd.ActorID]
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSession, cmd.ActorID)
	}
	if accepted, reason := h.loop.Enqueue(cmd); !accepted {
		return fmt.Errorf("%w: %s %s", ErrCommandRejected, cmd.Type, reason)
	}
	return nil
}

// Step implements sim.Stepper. Commands are applied in arrival order, then
// every session advances by the tick delta and its messages are flushed.
func (h *Hub) Step(ctx context.Context, tick sim.TickContext, commands []sim.Command) {
	h.mu.Lock()
	h.tick = tick.Tick
	h.stepCtx = ctx
	for _, cmd := range commands {
		s, ok := h.sessions[cmd.ActorID]
		if !ok {
			continue
		}
		h.applyLocked(ctx, s, cmd)
	}

	deliveries := make([]delivery, 0, len(h.sessions))
	for _, s := range h.sessions {
		frame := sim.Step(&s.state, s.intent, tick.Delta)
		s.outbox = append(s.outbox, h.frameMessage(s, frame))
		if s.subscriber != nil {
			deliveries = append(deliveries, delivery{id: s.id, sub: s.subscriber, messages: s.outbox})
		}
		s.outbox = nil
	}
	h.mu.Unlock()

	h.flush(ctx, deliveries)
}

func (h *Hub) applyLocked(ctx context.Context, s *session, cmd sim.Command) {
	switch cmd.Type {
	case sim.CommandInput:
		if cmd.Input != nil {
			s.intent = cmd.Input.Normalized()
		}
	case sim.CommandInteract:
		h.interactLocked(ctx, s)
	case sim.CommandCloseDialog:
		s.state.DialogOpen = false
	case sim.CommandMenu:
		if cmd.Toggle != nil {
			s.state.MenuOpen = cmd.Toggle.Open
		}
	case sim.CommandConsole:
		if cmd.Toggle != nil {
			s.state.ConsoleOpen = cmd.Toggle.Open
		}
	}
}

// interactLocked runs the action of the currently offered interaction.
// Nothing happens when no interaction is offered or an overlay is open.
func (h *Hub) interactLocked(ctx context.Context, s *session) {
	if s.state.Suppressed() {
		return
	}
	active := s.state.Selector.Current()
	if active == nil {
		return
	}
	action, ok := active.Trigger.(scene.Action)
	if !ok {
		return
	}
	switch action.Kind {
	case scene.ActionDialog:
		s.state.DialogOpen = true
		s.outbox = append(s.outbox, DialogMessage{Type: MessageDialog, Title: action.Title, Body: action.Body})
	case scene.ActionScene:
		h.switchLocked(ctx, s, action.Target, "")
		s.returnWaypoint = ""
	case scene.ActionEnter:
		if h.switchLocked(ctx, s, action.Target, "") {
			s.returnWaypoint = scene.ReturnWaypoint(action.Target)
		}
	case scene.ActionExit:
		if h.switchLocked(ctx, s, action.Target, s.returnWaypoint) {
			s.returnWaypoint = ""
		}
	}
}

func (h *Hub) switchLocked(ctx context.Context, s *session, target, spawnWaypoint string) bool {
	next, err := h.catalog.Get(target)
	if err != nil {
		if h.deps.Logger != nil {
			h.deps.Logger.Printf("[hub] session %s: cannot switch from %s: %v", s.id, s.scene.ID, err)
		}
		return false
	}
	from := s.scene.ID
	h.place(s, next, spawnWaypoint)
	s.outbox = append(s.outbox, h.sceneMessage(s))

	if h.deps.Metrics != nil {
		h.deps.Metrics.Add(metricSceneChanges, 1)
	}
	loggingsimulation.SceneChanged(ctx, h.deps.Publisher, h.tick, s.id, loggingsimulation.SceneChangedPayload{
		From:  from,
		To:    next.ID,
		Spawn: spawnWaypoint,
	})
	return true
}

// place moves the session into sc at its spawn point. The previous scene's
// interaction is withdrawn before the new definitions are installed.
func (h *Hub) place(s *session, sc *scene.Scene, spawnWaypoint string) {
	s.state.Selector.Clear()
	spawn := sc.SpawnPoint(spawnWaypoint)
	s.scene = sc
	s.intent = sim.Intent{}
	s.state.Actor = sim.Actor{
		Position: sc.Clamp(spawn.Planar()),
		Height:   h.cfg.ActorHeight,
		Radius:   sc.Radius,
	}
	s.state.World = sim.World{Bounds: sc.Bounds, Speed: sc.Speed, Obstacles: sc.Obstacles}
	s.state.DialogOpen = false
	s.state.Selector.Reconfigure(sc.InteractConfig())
}

func (h *Hub) changeHandler(s *session) interact.ChangeFunc {
	return func(active *interact.Active) {
		payload := loggingsimulation.InteractionChangedPayload{}
		if active != nil {
			payload.Label = active.Label
			payload.Point = active.Point
		}
		if h.deps.Metrics != nil {
			h.deps.Metrics.Add(metricInteractionChanges, 1)
		}
		s.outbox = append(s.outbox, interactionMessage(active))
		loggingsimulation.InteractionChanged(h.stepCtx, h.deps.Publisher, h.tick, s.id, s.scene.ID, payload)
	}
}

func interactionMessage(active *interact.Active) InteractionMessage {
	msg := InteractionMessage{Type: MessageInteraction}
	if active != nil {
		msg.Interaction = &InteractionView{Label: active.Label, Point: active.Point}
	}
	return msg
}

func (h *Hub) frameMessage(s *session, frame sim.Frame) FrameMessage {
	return FrameMessage{
		Type:       MessageFrame,
		Tick:       h.tick,
		Scene:      s.scene.ID,
		X:          frame.Position.X,
		Z:          frame.Position.Z,
		Facing:     frame.Facing,
		Suppressed: s.state.Suppressed(),
	}
}

func (h *Hub) sceneMessage(s *session) SceneMessage {
	return SceneMessage{
		Type:   MessageScene,
		ID:     s.scene.ID,
		X:      s.state.Actor.Position.X,
		Z:      s.state.Actor.Position.Z,
		Bounds: s.scene.Bounds,
	}
}

type delivery struct {
	id       string
	sub      Subscriber
	messages []any
}

// flush sends queued messages outside the hub lock. A failed send drops the
// session.
func (h *Hub) flush(ctx context.Context, deliveries []delivery) {
	for _, d := range deliveries {
		for _, msg := range d.messages {
			data, err := json.Marshal(msg)
			if err != nil {
				if h.deps.Logger != nil {
					h.deps.Logger.Printf("[hub] failed to marshal %T: %v", msg, err)
				}
				continue
			}
			if err := d.sub.Send(data); err != nil {
				if h.deps.Metrics != nil {
					h.deps.Metrics.Add(metricSendFailures, 1)
				}
				if h.deps.Logger != nil {
					h.deps.Logger.Printf("[hub] failed to send update to %s: %v", d.id, err)
				}
				h.Disconnect(ctx, d.id)
				break
			}
		}
	}
}

// Diagnostics lists every live session, oldest first.
func (h *Hub) Diagnostics() []SessionDiagnostics {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SessionDiagnostics, 0, len(h.sessions))
	for _, s := range h.sessions {
		row := SessionDiagnostics{
			ID:         s.id,
			Scene:      s.scene.ID,
			X:          s.state.Actor.Position.X,
			Z:          s.state.Actor.Position.Z,
			Suppressed: s.state.Suppressed(),
			Subscribed: s.subscriber != nil,
			JoinedAt:   s.joinedAt.UnixMilli(),
		}
		if active := s.state.Selector.Current(); active != nil {
			row.Interaction = active.Label
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].JoinedAt != out[j].JoinedAt {
			return out[i].JoinedAt < out[j].JoinedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Sessions reports the number of live sessions.
func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

var _ sim.Stepper = (*Hub)(nil)
