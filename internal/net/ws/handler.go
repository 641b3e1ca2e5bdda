// Package ws carries a session's input and frames over a websocket.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	nethttp "net/http"
	"time"

	"github.com/gorilla/websocket"

	"waypoint-walk/server/internal/hub"
	"waypoint-walk/server/internal/sim"
	"waypoint-walk/server/internal/telemetry"
)

const (
	defaultWriteWait = 10 * time.Second
	maxMessageSize   = 4096
)

type HandlerConfig struct {
	Logger    telemetry.Logger
	WriteWait time.Duration
}

// Handler upgrades /ws requests and runs one read loop per connection.
type Handler struct {
	hub       *hub.Hub
	logger    telemetry.Logger
	writeWait time.Duration
	upgrader  websocket.Upgrader
}

func NewHandler(h *hub.Hub, cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = telemetry.WrapLogger(log.Default())
	}
	writeWait := cfg.WriteWait
	if writeWait <= 0 {
		writeWait = defaultWriteWait
	}
	return &Handler{
		hub:       h,
		logger:    logger,
		writeWait: writeWait,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *nethttp.Request) bool {
				return true
			},
		},
	}
}

func (h *Handler) Handle(w nethttp.ResponseWriter, r *nethttp.Request) {
	sessionID := r.URL.Query().Get("id")
	if sessionID == "" {
		nethttp.Error(w, "missing id", nethttp.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("upgrade failed for %s: %v", sessionID, err)
		return
	}
	h.Serve(context.WithoutCancel(r.Context()), sessionID, conn)
}

// Serve attaches conn to the session and processes client messages until the
// connection drops.
func (h *Handler) Serve(ctx context.Context, sessionID string, conn *websocket.Conn) {
	if h == nil || h.hub == nil || conn == nil {
		return
	}

	sub := newConnSubscriber(conn, h.writeWait)
	if err := h.hub.Subscribe(sessionID, sub); err != nil {
		message := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "unknown session")
		conn.WriteMessage(websocket.CloseMessage, message)
		conn.Close()
		return
	}
	defer h.hub.Release(ctx, sessionID, sub)

	conn.SetReadLimit(maxMessageSize)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			h.logger.Printf("discarding malformed message from %s: %v", sessionID, err)
			continue
		}
		if !h.dispatch(sessionID, sub, msg) {
			return
		}
	}
}

// dispatch handles one message and reports whether the connection is still
// usable.
func (h *Handler) dispatch(sessionID string, sub *connSubscriber, msg clientMessage) bool {
	seq := uint64(0)
	if msg.CommandSeq != nil {
		seq = *msg.CommandSeq
	}
	if seq > 0 {
		if last := sub.LastCommandSeq(); last > 0 && seq <= last {
			return h.write(sub, commandAckMessage{Type: "commandAck", Seq: seq})
		}
	}

	var err error
	switch msg.Type {
	case "input":
		err = h.hub.UpdateIntent(sessionID, sim.Intent{DX: msg.DX, DZ: msg.DZ})
	case "interact":
		err = h.hub.Interact(sessionID)
	case "closeDialog":
		err = h.hub.CloseDialog(sessionID)
	case "menu":
		err = h.hub.SetMenu(sessionID, msg.Open)
	case "console":
		err = h.hub.SetConsole(sessionID, msg.Open)
	case "heartbeat":
		now := time.Now()
		rtt := int64(0)
		if msg.SentAt > 0 {
			rtt = now.UnixMilli() - msg.SentAt
		}
		return h.write(sub, heartbeatMessage{
			Type:       "heartbeat",
			ServerTime: now.UnixMilli(),
			ClientTime: msg.SentAt,
			RTTMillis:  rtt,
		})
	default:
		h.logger.Printf("unknown message type %q from %s", msg.Type, sessionID)
		return true
	}

	if errors.Is(err, hub.ErrUnknownSession) {
		h.logger.Printf("%s ignored for unknown session %s", msg.Type, sessionID)
		return false
	}
	if seq == 0 {
		return true
	}
	if err != nil {
		return h.write(sub, commandRejectMessage{
			Type:   "commandReject",
			Seq:    seq,
			Reason: err.Error(),
			Retry:  errors.Is(err, hub.ErrCommandRejected),
		})
	}
	if !h.write(sub, commandAckMessage{Type: "commandAck", Seq: seq}) {
		return false
	}
	sub.StoreLastCommandSeq(seq)
	return true
}

func (h *Handler) write(sub *connSubscriber, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Printf("failed to marshal %T: %v", payload, err)
		return true
	}
	return sub.Send(data) == nil
}
