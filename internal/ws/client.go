package ws

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/dentlab/api/internal/auth"
	"github.com/dentlab/api/internal/enum"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Keepalive timings for order event streams.
const (
	writeTimeout = 10 * time.Second
	idleTimeout  = 60 * time.Second
	pingInterval = 50 * time.Second // below idleTimeout

	// Subscribers only send control frames.
	inboundLimit = 512

	sendBuffer = 256
)

var (
	errMissingToken = errors.New("missing token")
	errNoRoom       = errors.New("clinic access denied")
)

// Origins are not checked; the JWT authorizes the stream.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Client is one subscriber to a clinic's order events (or all of them, in adminRoom).
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	room uuid.UUID
	send chan []byte
}

// ServeWS upgrades an authenticated request to an order event stream.
// Endpoint: WS /ws/orders?token=JWT (an Authorization bearer header also works).
// Clinic logins receive their own clinic's events; admins receive all of them.
func ServeWS(hub *Hub, jwtSecret string, w http.ResponseWriter, r *http.Request) {
	room, err := authorize(jwtSecret, r)
	switch {
	case errors.Is(err, errNoRoom):
		http.Error(w, err.Error(), http.StatusForbidden)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ERROR: websocket upgrade: %v", err)
		return
	}

	c := &Client{hub: hub, conn: conn, room: room, send: make(chan []byte, sendBuffer)}
	select {
	case hub.register <- c:
	case <-hub.done:
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeTimeout))
		conn.Close()
		return
	}

	go c.stream()
	go c.listen()
}

// authorize resolves the request's token to the room its events come from.
func authorize(secret string, r *http.Request) (uuid.UUID, error) {
	token := r.URL.Query().Get("token")
	if token == "" {
		token = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return uuid.Nil, errMissingToken
	}

	claims, err := auth.ValidateToken(secret, token)
	if err != nil {
		return uuid.Nil, errors.New("invalid token")
	}
	room, ok := roomFor(claims)
	if !ok {
		return uuid.Nil, errNoRoom
	}
	return room, nil
}

func roomFor(claims *auth.Claims) (uuid.UUID, bool) {
	switch claims.Role {
	case enum.RoleAdmin:
		return adminRoom, true
	case enum.RoleClinic:
		if claims.ClinicID == uuid.Nil {
			return uuid.Nil, false
		}
		return claims.ClinicID, true
	default:
		return uuid.Nil, false
	}
}

// listen consumes inbound frames until the subscriber goes away, then leaves the hub.
func (c *Client) listen() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(inboundLimit)
	c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WARN: order stream for room %s: %v", c.room, err)
			}
			return
		}
	}
}

// stream writes each order event as its own JSON text frame and keeps the connection alive.
func (c *Client) stream() {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case event, open := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !open {
				// Dropped by the hub: slow consumer or shutdown.
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, event); err != nil {
				return
			}

		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				return
			}
		}
	}
}
