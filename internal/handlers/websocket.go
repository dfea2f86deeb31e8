package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"minefield-backend/internal/services"
	"minefield-backend/pkg/logger"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler pushes settlement events to the owning player's open
// connections. It implements services.Broadcaster; delivery is best-effort.
type WebSocketHandler struct {
	hub *webSocketHub
}

type webSocketHub struct {
	clients    map[int64]map[*websocket.Conn]bool
	register   chan *wsClient
	unregister chan *wsClient
	send       chan *wsMessage
}

type wsClient struct {
	userID int64
	conn   *websocket.Conn
}

type wsMessage struct {
	userID  int64
	payload interface{}
}

func NewWebSocketHandler() *WebSocketHandler {
	hub := &webSocketHub{
		clients:    make(map[int64]map[*websocket.Conn]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		send:       make(chan *wsMessage, 100),
	}

	go hub.run()

	return &WebSocketHandler{hub: hub}
}

func (h *webSocketHub) run() {
	for {
		select {
		case client := <-h.register:
			conns := h.clients[client.userID]
			if conns == nil {
				conns = make(map[*websocket.Conn]bool)
				h.clients[client.userID] = conns
			}
			conns[client.conn] = true

		case client := <-h.unregister:
			if conns, ok := h.clients[client.userID]; ok {
				delete(conns, client.conn)
				if len(conns) == 0 {
					delete(h.clients, client.userID)
				}
			}
			client.conn.Close()

		case msg := <-h.send:
			for conn := range h.clients[msg.userID] {
				conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteJSON(gin.H{"type": "settlement", "data": msg.payload}); err != nil {
					conn.Close()
					delete(h.clients[msg.userID], conn)
				}
			}
		}
	}
}

// NotifySettlement implements services.Broadcaster.
func (h *WebSocketHandler) NotifySettlement(userID int64, event services.SettlementEvent) {
	select {
	case h.hub.send <- &wsMessage{userID: userID, payload: event}:
	default:
		// Slow consumers never hold up settlement.
	}
}

func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	userID := c.GetInt64("user_id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn(c.Request.Context()).Err(err).Msg("Failed to upgrade to WebSocket")
		return
	}

	client := &wsClient{userID: userID, conn: conn}
	h.hub.register <- client

	go func() {
		defer func() {
			h.hub.unregister <- client
		}()

		conn.SetReadLimit(512)
		for {
			// The client only listens; reads exist to notice disconnects.
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
