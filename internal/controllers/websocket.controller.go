package controllers

import (
	"net/http"
	"time"

	"aegisnet/internal/middleware"
	"aegisnet/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

func (ctl *Controller) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no Origin
			return origin == "" || middleware.OriginAllowed(origin, ctl.AllowedOrigins)
		},
	}
}

// HandleWebSocket streams alerts, actions, attack and window events to dashboards.
// When auth is enabled the token comes from the ?token query parameter.
func (ctl *Controller) HandleWebSocket(c *gin.Context) {
	subject := "anonymous"
	if ctl.Auth != nil {
		token := c.Query("token")
		if !middleware.ValidTokenFormat(token) {
			ctl.Security.LogFailedAuth(c.ClientIP(), "missing token")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		claims, err := ctl.Auth.ValidateToken(token)
		if err != nil {
			ctl.Security.LogFailedAuth(c.ClientIP(), "invalid token: "+err.Error())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		subject = claims.AgentID
	}

	upgrader := ctl.upgrader()
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctl.Logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &services.ClientConnection{
		ID:    subject + "-" + uuid.NewString(),
		Conn:  ws,
		Send:  make(chan services.WebSocketMessage, 256),
		Close: make(chan struct{}),
	}
	ctl.Security.LogWebSocketConnected(c.ClientIP(), client.ID)
	ctl.Hub.Register(client)

	// replies are owned by this connection; the hub only ever closes Send
	replies := make(chan services.WebSocketMessage, 8)
	go ctl.readPump(client, c.ClientIP(), replies)
	go ctl.writePump(client, replies)
}

// readPump handles client control messages until the connection drops
func (ctl *Controller) readPump(client *services.ClientConnection, ip string, replies chan<- services.WebSocketMessage) {
	defer func() {
		close(client.Close)
		ctl.Hub.Unregister(client.ID)
		client.Conn.Close()
		ctl.Security.LogWebSocketDisconnected(ip, client.ID)
	}()

	client.Conn.SetReadLimit(4096)
	client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	client.Conn.SetPongHandler(func(string) error {
		return client.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg services.WebSocketMessage
		if err := client.Conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ctl.Logger.Warn("websocket read error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return
		}

		switch msg.Type {
		case "ping":
			select {
			case replies <- services.WebSocketMessage{Type: "pong", Timestamp: time.Now()}:
			default:
			}
		case "unsubscribe":
			return
		default:
			ctl.Logger.Debug("ignoring websocket message", zap.String("client_id", client.ID), zap.String("type", msg.Type))
		}
	}
}

// writePump is the only writer on the connection
func (ctl *Controller) writePump(client *services.ClientConnection, replies <-chan services.WebSocketMessage) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	write := func(msg services.WebSocketMessage) bool {
		client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.Conn.WriteJSON(msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				ctl.Logger.Warn("websocket write error", zap.String("client_id", client.ID), zap.Error(err))
			}
			return false
		}
		return true
	}

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if !write(msg) {
				return
			}

		case msg := <-replies:
			if !write(msg) {
				return
			}

		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-client.Close:
			client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
