package main

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	qrcode "github.com/skip2/go-qrcode"
)

// API is the REST surface driving the session lifecycle. Player tokens
// ride in the Authorization header as "Bearer <authenticator>,<expMillis>";
// session tokens ride in request bodies.
type API struct {
	registry *SessionRegistry
	auth     *Auth
}

func NewAPI(registry *SessionRegistry, auth *Auth) *API {
	return &API{registry: registry, auth: auth}
}

type apiEnvelope struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message"`
	Object  interface{} `json:"object"`
}

func writeJSON(w http.ResponseWriter, status int, env apiEnvelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeOK(w http.ResponseWriter, message string, object interface{}) {
	if object == nil {
		object = struct{}{}
	}
	writeJSON(w, http.StatusOK, apiEnvelope{OK: true, Message: message, Object: object})
}

func writeError(w http.ResponseWriter, gerr *GameError) {
	writeJSON(w, statusFor(gerr.Kind), apiEnvelope{OK: false, Message: gerr.Message, Object: struct{}{}})
}

func statusFor(kind ErrorKind) int {
	switch kind {
	case ErrInvalidToken:
		return http.StatusUnauthorized
	case ErrInvalidModerator, ErrInvalidAdministrator:
		return http.StatusForbidden
	case ErrInvalidSession, ErrInvalidUser:
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// bearerToken pulls the caller's token out of the Authorization header.
func bearerToken(r *http.Request) (Token, *GameError) {
	header := r.Header.Get("Authorization")
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return Token{}, errf(ErrInvalidToken, "missing bearer token")
	}
	t, err := ParseTokenString(raw)
	if err != nil {
		return Token{}, errf(ErrInvalidToken, "malformed bearer token")
	}
	return t, nil
}

func decodeBody(r *http.Request, v interface{}) *GameError {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errf(ErrInvalidList, "malformed request body: %v", err)
	}
	return nil
}

// Register wires all REST routes onto the router.
func (a *API) Register(router *mux.Router) {
	router.HandleFunc("/register", a.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/login", a.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/players", a.handleDeletePlayer).Methods(http.MethodDelete)

	router.HandleFunc("/sessions", a.handleCreateSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions", a.handleListSessions).Methods(http.MethodGet)
	router.HandleFunc("/sessions/join", a.handleJoinSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/start", a.handleStartSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/stop", a.handleStopSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions", a.handleDeleteSession).Methods(http.MethodDelete)
	router.HandleFunc("/sessions/leave", a.handleLeaveSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/clear", a.handleClearSession).Methods(http.MethodPost)
	router.HandleFunc("/sessions/{passcode}/qr", a.handlePasscodeQR).Methods(http.MethodGet)

	router.HandleFunc("/location", a.handleLocation).Methods(http.MethodPost)
	router.HandleFunc("/tap", a.handleTap).Methods(http.MethodPost)
	router.HandleFunc("/leaderboard", a.handleLeaderboard).Methods(http.MethodGet)
}

/* ---- accounts ---- */

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Tier     int    `json:"tier"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	_, token, gerr := a.auth.Register(req.Username, req.Password, req.Tier)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "registered", token)
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	_, token, gerr := a.auth.Login(req.Username, req.Password, extractIP(r))
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "logged in", token)
}

func (a *API) handleDeletePlayer(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	var req struct {
		Target Token `json:"target"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	if gerr := a.auth.DeletePlayer(req.Target, caller, a.registry); gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "player deleted", nil)
}

/* ---- session lifecycle ---- */

func (a *API) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	var req struct {
		Name   string     `json:"name"`
		Center Coordinate `json:"center"`
		Radius float64    `json:"radius"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	sess, gerr := a.registry.CreateSession(req.Name, req.Center, req.Radius, caller)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "session created", struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Passcode int    `json:"passcode"`
		Token    Token  `json:"token"`
	}{sess.ID, sess.Name, sess.CurrentPasscode(), sess.CurrentToken()})
}

func (a *API) handleListSessions(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	summaries, gerr := a.registry.Sessions(caller)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "all sessions", summaries)
}

func (a *API) handleJoinSession(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	var req struct {
		Passcode int `json:"passcode"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	token, gerr := a.registry.JoinSession(req.Passcode, caller)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "joined session", token)
}

func (a *API) handleStartSession(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	var req struct {
		Session Token `json:"session"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	if gerr := a.registry.StartSession(req.Session, caller); gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "session started", nil)
}

func (a *API) handleStopSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Session Token `json:"session"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	if gerr := a.registry.StopSession(req.Session); gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "session stopped", nil)
}

func (a *API) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Session Token `json:"session"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	if gerr := a.registry.DeleteSession(req.Session); gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "session deleted", nil)
}

func (a *API) handleLeaveSession(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	var req struct {
		Session Token `json:"session"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	if gerr := a.registry.RemovePlayer(req.Session, caller); gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "left session", nil)
}

func (a *API) handleClearSession(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	if _, gerr := a.registry.ValidateModeratorToken(caller); gerr != nil {
		writeError(w, gerr)
		return
	}
	var req struct {
		Session Token `json:"session"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	if gerr := a.registry.RemoveAllPlayers(req.Session); gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "session cleared", nil)
}

// handlePasscodeQR renders a session's passcode as a QR PNG so moderators
// can share joins out of band.
func (a *API) handlePasscodeQR(w http.ResponseWriter, r *http.Request) {
	passcode, err := strconv.Atoi(mux.Vars(r)["passcode"])
	if err != nil {
		writeError(w, errf(ErrInvalidSession, "malformed passcode"))
		return
	}
	if a.registry.SessionByPasscode(passcode) == nil {
		writeError(w, errf(ErrInvalidSession, "passcode does not correspond to an existing session"))
		return
	}
	png, err := qrcode.Encode(strconv.Itoa(passcode), qrcode.Medium, 256)
	if err != nil {
		writeError(w, errf(ErrInvalidSession, "could not render QR code"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

/* ---- gameplay ---- */

func (a *API) handleLocation(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	p, gerr := a.registry.ValidatePlayerToken(caller)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	var loc Coordinate
	if gerr := decodeBody(r, &loc); gerr != nil {
		writeError(w, gerr)
		return
	}
	p.SetLocation(loc)
	a.registry.savePlayer(p)
	writeOK(w, "location updated", nil)
}

func (a *API) handleTap(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	var req struct {
		Session Token      `json:"session"`
		Tapped  Coordinate `json:"tapped"`
	}
	if gerr := decodeBody(r, &req); gerr != nil {
		writeError(w, gerr)
		return
	}
	outcome, gerr := a.registry.ResolveTap(req.Session, caller, req.Tapped)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	writeOK(w, "tap resolved", struct {
		Result string `json:"result"`
	}{outcome.String()})
}

func (a *API) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	caller, gerr := bearerToken(r)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	p, gerr := a.registry.ValidatePlayerToken(caller)
	if gerr != nil {
		writeError(w, gerr)
		return
	}
	sess := a.registry.SessionOf(p)
	if sess == nil {
		writeError(w, errf(ErrInvalidSession, "player is not in a session"))
		return
	}
	writeOK(w, "leaderboard", a.registry.Leaderboard(sess))
}
