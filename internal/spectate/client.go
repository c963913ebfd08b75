package spectate

import (
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/hexlog/catan-server-go/internal/config"
	"github.com/hexlog/catan-server-go/internal/game/gameerr"
)

// Client is one websocket connection.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	gameID string
}

func newUpgrader(cfg config.WebSocketConfig) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin: func(r *http.Request) bool {
			if len(cfg.AllowedOrigins) == 0 || slices.Contains(cfg.AllowedOrigins, "*") {
				return true
			}
			origin := r.Header.Get("Origin")
			return origin == "" || slices.Contains(cfg.AllowedOrigins, origin)
		},
	}
}

// ServeHTTP upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	upgrader := newUpgrader(h.ws)
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	sendBuffer := h.ws.SendBuffer
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	client := &Client{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go h.writePump(client)
	go h.readPump(client)
}

func (h *Hub) readPump(c *Client) {
	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
		c.conn.Close()
	}()

	if h.ws.MaxMessageSize > 0 {
		c.conn.SetReadLimit(h.ws.MaxMessageSize)
	}
	if h.ws.PongTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(h.ws.PongTimeout))
		c.conn.SetPongHandler(func(string) error {
			return c.conn.SetReadDeadline(time.Now().Add(h.ws.PongTimeout))
		})
	}

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read failed", zap.String("client_id", c.id), zap.Error(err))
			}
			return
		}

		var cmd Command
		var decodeErr error
		if err := json.Unmarshal(message, &cmd); err != nil {
			decodeErr = gameerr.Invalid("malformed command: %v", err)
		}

		select {
		case h.inbound <- inbound{client: c, cmd: cmd, err: decodeErr}:
		case <-h.done:
			return
		}
	}
}

func (h *Hub) writePump(c *Client) {
	pingPeriod := h.ws.PongTimeout * 9 / 10
	if pingPeriod <= 0 {
		pingPeriod = time.Minute
	}
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			h.setWriteDeadline(c)
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			h.setWriteDeadline(c)
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) setWriteDeadline(c *Client) {
	if h.ws.WriteTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(h.ws.WriteTimeout))
	}
}
