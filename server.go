package main

import (
	"log"
	"net"
	"net/http"
	"net/url"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Non-browser clients don't send Origin
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return u.Host == r.Host
	},
}

func extractIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// SetupRoutes configures HTTP routes
func SetupRoutes(hub *Hub, api *API) *mux.Router {
	router := mux.NewRouter()
	api.Register(router)

	// WebSocket endpoint; the bearer token rides in the path as
	// "<authenticator>,<expirationEpochMillis>".
	router.HandleFunc("/ws/{tokenString}", func(w http.ResponseWriter, r *http.Request) {
		tokenString := mux.Vars(r)["tokenString"]
		token, err := ParseTokenString(tokenString)
		if err != nil {
			http.Error(w, "malformed token", http.StatusBadRequest)
			return
		}
		player, gerr := hub.registry.ValidatePlayerToken(token)
		if gerr != nil {
			http.Error(w, gerr.Message, http.StatusUnauthorized)
			return
		}

		ip := extractIP(r)
		if !hub.CanAccept(ip) {
			http.Error(w, "too many connections", http.StatusServiceUnavailable)
			return
		}

		conn, upErr := upgrader.Upgrade(w, r, nil)
		if upErr != nil {
			log.Printf("upgrade error: %v", upErr)
			return
		}

		hub.TrackConnect(ip)

		client := NewClient(hub, conn, player, token.Authenticator, ip)
		hub.register <- client

		go client.WritePump()
		go client.ReadPump()
	})

	return router
}
