package main

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	maxMessageSize    = 4096
	sendBufSize       = 256
	maxMessagesPerSec = 50
)

// Client represents a WebSocket connection holding one player's token.
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	send       chan []byte
	player     *Player
	userAuth   string // the authenticator the connection presented
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client
func NewClient(hub *Hub, conn *websocket.Conn, player *Player, userAuth, remoteAddr string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan []byte, sendBufSize),
		player:     player,
		userAuth:   userAuth,
		remoteAddr: remoteAddr,
	}
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer func() {
		c.hub.TrackDisconnect(c.remoteAddr)
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws error: %v", err)
			}
			break
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > maxMessagesPerSec {
			log.Printf("rate limit exceeded for %s, disconnecting", c.remoteAddr)
			break
		}

		c.handleMessage(message)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
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

// SendRaw sends pre-marshaled bytes as a text message to the client
func (c *Client) SendRaw(data []byte) {
	defer func() { recover() }()
	select {
	case c.send <- data:
	default:
		// Client too slow, drop message
	}
}

// handleMessage routes an inbound frame by its 3-digit intent prefix.
func (c *Client) handleMessage(raw []byte) {
	intent, body, err := parseInbound(raw)
	if err != nil {
		log.Printf("parse error from %s: %v", c.player.Username, err)
		c.SendRaw(errorMessage(intent, err.Error()))
		return
	}

	switch intent {
	case IntentRoster:
		c.handleAttach()
	case IntentLocation:
		c.handleLocation(body)
	case IntentRadar:
		c.handleRadar()
	case IntentLeaderboard:
		c.handleLeaderboard()
	}
}

// handleAttach resolves the player's session and associates the connection
// with it. The first attach broadcasts the roster to the whole session;
// re-attaching only whispers it back to the caller.
func (c *Client) handleAttach() {
	sess := c.hub.registry.SessionOf(c.player)
	if sess == nil {
		c.SendRaw(errorMessage(IntentRoster, "player is not in a session"))
		return
	}
	sessionAuth := sess.CurrentToken().Authenticator
	msg := rosterMessage(c.hub.registry.Roster(sess), sess.CurrentPasscode())

	if c.hub.SessionAuthFor(c.userAuth) != "" {
		c.SendRaw(msg)
		return
	}
	c.hub.AssociateSession(c.userAuth, sessionAuth)
	// Deliver to self directly; the hub may still be processing this
	// connection's registration.
	c.SendRaw(msg)
	c.hub.Broadcast(sessionAuth, msg, c.userAuth)
}

func (c *Client) handleLocation(body []byte) {
	var loc Coordinate
	if err := json.Unmarshal(body, &loc); err != nil {
		c.SendRaw(errorMessage(IntentLocation, err.Error()))
		return
	}
	c.player.SetLocation(loc)
	c.hub.registry.savePlayer(c.player)
}

// handleRadar asks every attached session member to refresh their
// location, then reports the players and items inside the caller's view
// radius. Spotted players get told.
func (c *Client) handleRadar() {
	sess := c.hub.registry.SessionOf(c.player)
	if sess == nil {
		c.SendRaw(errorMessage(IntentRadar, "player is not in a session"))
		return
	}
	sessionAuth := c.hub.SessionAuthFor(c.userAuth)
	if sessionAuth == "" {
		c.SendRaw(errorMessage(IntentRadar, "connection has no attached session"))
		return
	}

	c.hub.Broadcast(sessionAuth, locationRequestMessage(), "")

	players, placed := c.hub.registry.InView(sess, c.player)

	users := make([]RadarUser, 0, len(players))
	for _, p := range players {
		at := p.GetLocation()
		users = append(users, RadarUser{
			Username: p.Username,
			Location: WireLocation{Latitude: at.Latitude, Longitude: at.Longitude},
		})
		c.hub.Whisper(p.CurrentToken().Authenticator, spottedMessage())
	}

	items := make([]RadarItem, 0, len(placed))
	for _, pi := range placed {
		items = append(items, RadarItem{
			Name:     pi.Item.Name,
			Location: WireLocation{Latitude: pi.Location.Latitude, Longitude: pi.Location.Longitude},
		})
	}

	c.SendRaw(radarMessage(users, items))
}

func (c *Client) handleLeaderboard() {
	sess := c.hub.registry.SessionOf(c.player)
	if sess == nil {
		c.SendRaw(errorMessage(IntentLeaderboard, "player is not in a session"))
		return
	}
	c.SendRaw(leaderboardMessage(c.hub.registry.Leaderboard(sess)))
}
