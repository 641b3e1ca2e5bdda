package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type clientMessage struct {
	Type       string  `json:"type"`
	DX         float64 `json:"dx"`
	DZ         float64 `json:"dz"`
	Open       bool    `json:"open"`
	SentAt     int64   `json:"sentAt"`
	CommandSeq *uint64 `json:"seq,omitempty"`
}

type commandAckMessage struct {
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

type commandRejectMessage struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Reason string `json:"reason"`
	Retry  bool   `json:"retry,omitempty"`
}

type heartbeatMessage struct {
	Type       string `json:"type"`
	ServerTime int64  `json:"serverTime"`
	ClientTime int64  `json:"clientTime"`
	RTTMillis  int64  `json:"rtt"`
}

// connSubscriber serialises writes to one websocket connection. The hub
// flushes frames from the tick goroutine while the read loop writes acks.
type connSubscriber struct {
	conn      *websocket.Conn
	writeWait time.Duration

	mu      sync.Mutex
	lastSeq uint64
}

func newConnSubscriber(conn *websocket.Conn, writeWait time.Duration) *connSubscriber {
	return &connSubscriber{conn: conn, writeWait: writeWait}
}

func (c *connSubscriber) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.writeWait > 0 {
		c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *connSubscriber) Close() error {
	return c.conn.Close()
}

func (c *connSubscriber) LastCommandSeq() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSeq
}

func (c *connSubscriber) StoreLastCommandSeq(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if seq > c.lastSeq {
		c.lastSeq = seq
	}
}
