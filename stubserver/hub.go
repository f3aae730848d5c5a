package stubserver

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/KBoateng4/Mentorlink-client/cmd/models"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

type wsClient struct {
	userID uint
	conn   *websocket.Conn
	send   chan []byte
}

// Hub tracks the live push connections per user id.
type Hub struct {
	logger *zap.Logger

	mu      sync.RWMutex
	clients map[uint][]*wsClient
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[uint][]*wsClient),
	}
}

func (h *Hub) register(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.userID] = append(h.clients[c.userID], c)
}

func (h *Hub) unregister(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[c.userID]
	for i, conn := range conns {
		if conn == c {
			h.clients[c.userID] = append(conns[:i], conns[i+1:]...)
			close(c.send)
			break
		}
	}
}

// BroadcastToUser pushes one event to every live connection of a user.
// Slow consumers are dropped rather than blocking the sender.
func (h *Hub) BroadcastToUser(userID uint, ev models.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshaling push event", zap.Error(err))
		return
	}

	h.mu.RLock()
	conns := append([]*wsClient(nil), h.clients[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("dropping slow push consumer", zap.Uint("user_id", userID))
			c.conn.Close()
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so control frames are processed and the
// hub learns about disconnects.
func (c *wsClient) readPump(hub *Hub) {
	defer func() {
		hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPingHandler(func(appData string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return c.conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
	}
}
