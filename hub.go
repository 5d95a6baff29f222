package main

import "sync"

const (
	maxConnsPerIP = 5
	maxTotalConns = 1000
)

// Hub manages all connected clients and the push-routing associations:
// which connection holds which player token, and which session token that
// player has attached to. Both maps are keyed by authenticator strings.
type Hub struct {
	mu            sync.RWMutex
	clients       map[*Client]bool
	connByUser    map[string]*Client // player authenticator -> connection
	sessionByUser map[string]string  // player authenticator -> session authenticator

	register   chan *Client
	unregister chan *Client

	// Connection limiting (mutex-protected, accessed from HTTP handlers)
	connMu     sync.Mutex
	ipConns    map[string]int
	totalConns int

	players  *PlayerRegistry
	registry *SessionRegistry
	auth     *Auth
	db       *DB
}

func NewHub(players *PlayerRegistry, registry *SessionRegistry, auth *Auth, db *DB) *Hub {
	return &Hub{
		clients:       make(map[*Client]bool),
		connByUser:    make(map[string]*Client),
		sessionByUser: make(map[string]string),
		register:      make(chan *Client, 64),
		unregister:    make(chan *Client, 64),
		ipConns:       make(map[string]int),
		players:       players,
		registry:      registry,
		auth:          auth,
		db:            db,
	}
}

func (h *Hub) CanAccept(ip string) bool {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	if h.totalConns >= maxTotalConns {
		return false
	}
	if h.ipConns[ip] >= maxConnsPerIP {
		return false
	}
	return true
}

func (h *Hub) TrackConnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]++
	h.totalConns++
}

func (h *Hub) TrackDisconnect(ip string) {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	h.ipConns[ip]--
	if h.ipConns[ip] <= 0 {
		delete(h.ipConns, ip)
	}
	h.totalConns--
}

// Run processes register/unregister events
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.connByUser[client.userAuth] = client
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			// Only purge associations still pointing at this connection;
			// a reconnect may already have replaced them.
			if h.connByUser[client.userAuth] == client {
				delete(h.connByUser, client.userAuth)
				delete(h.sessionByUser, client.userAuth)
			}
			h.mu.Unlock()
		}
	}
}

// AssociateSession records which session a player's pushes route through.
func (h *Hub) AssociateSession(userAuth, sessionAuth string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sessionByUser[userAuth] = sessionAuth
}

// SessionAuthFor returns the session authenticator a player is attached
// to, or "" when the player never sent an attach.
func (h *Hub) SessionAuthFor(userAuth string) string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionByUser[userAuth]
}

// Whisper pushes a message to one player's connection, if online.
func (h *Hub) Whisper(userAuth string, msg []byte) {
	if msg == nil {
		return
	}
	h.mu.RLock()
	c := h.connByUser[userAuth]
	h.mu.RUnlock()
	if c != nil {
		c.SendRaw(msg)
	}
}

// Broadcast pushes a message to every connection attached to the session,
// skipping the connection holding except (pass "" to reach everyone).
func (h *Hub) Broadcast(sessionAuth string, msg []byte, except string) {
	if msg == nil || sessionAuth == "" {
		return
	}
	h.mu.RLock()
	var targets []*Client
	for userAuth, attached := range h.sessionByUser {
		if attached != sessionAuth || userAuth == except {
			continue
		}
		if c := h.connByUser[userAuth]; c != nil {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.SendRaw(msg)
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// TotalConns returns the tracked connection count
func (h *Hub) TotalConns() int {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	return h.totalConns
}
