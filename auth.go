package main

import (
	"log"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost       = 12
	minPasswordLen   = 4
	minUsernameLen   = 2
	maxUsernameLen   = 16
	loginRateWindow  = 60 * time.Second
	maxLoginAttempts = 10
)

// Auth handles account registration and login. Successful auth mints an
// opaque bearer token seeded from the credentials.
type Auth struct {
	players *PlayerRegistry
	db      *DB // nil in tests
	cfg     Config

	// Rate limiting for login attempts (IP -> attempts)
	rateMu  sync.Mutex
	rateMap map[string]*rateEntry
}

type rateEntry struct {
	Count   int
	ResetAt time.Time
}

func NewAuth(players *PlayerRegistry, db *DB, cfg Config) *Auth {
	return &Auth{
		players: players,
		db:      db,
		cfg:     cfg,
		rateMap: make(map[string]*rateEntry),
	}
}

// Register creates a new account and returns its first bearer token.
func (a *Auth) Register(username, password string, tier int) (*Player, Token, *GameError) {
	username = strings.TrimSpace(username)

	if len(username) < minUsernameLen || len(username) > maxUsernameLen {
		return nil, Token{}, errf(ErrInvalidUser, "username must be %d-%d characters", minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen {
		return nil, Token{}, errf(ErrInvalidUser, "password must be at least %d characters", minPasswordLen)
	}
	if tier < TierPlayer || tier > TierAdministrator {
		return nil, Token{}, errf(ErrInvalidUser, "unknown authorization tier %d", tier)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, Token{}, errf(ErrInvalidUser, "internal error")
	}

	p := NewPlayer(username, string(hash), tier)
	p.Token = a.mintPlayerToken(username, password)
	if gerr := a.players.Add(p); gerr != nil {
		return nil, Token{}, gerr
	}
	a.save(p)

	log.Printf("registered player %q (tier %d)", username, tier)
	return p, p.CurrentToken(), nil
}

// Login verifies credentials and replaces the player's token with a fresh
// one. Per-IP rate limited.
func (a *Auth) Login(username, password, ip string) (*Player, Token, *GameError) {
	if !a.checkRate(ip) {
		return nil, Token{}, errf(ErrInvalidUser, "too many login attempts, try again later")
	}

	p := a.players.ByName(strings.TrimSpace(username))
	if p == nil {
		return nil, Token{}, errf(ErrInvalidUser, "invalid username or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.PassHash), []byte(password)); err != nil {
		return nil, Token{}, errf(ErrInvalidUser, "invalid username or password")
	}

	t := a.mintPlayerToken(username, password)
	p.SetToken(t)
	a.save(p)
	return p, t, nil
}

// DeletePlayer removes an account entirely. Administrator only.
func (a *Auth) DeletePlayer(target Token, caller Token, registry *SessionRegistry) *GameError {
	if _, err := registry.ValidateAdministratorToken(caller); err != nil {
		return err
	}
	p, err := registry.ValidatePlayerToken(target)
	if err != nil {
		return err
	}
	if sess := registry.SessionOf(p); sess != nil {
		if err := registry.RemovePlayer(sess.CurrentToken(), target); err != nil {
			return err
		}
	}
	a.players.Remove(p.ID)
	if a.db != nil {
		if dberr := a.db.DeletePlayer(p.ID); dberr != nil {
			log.Printf("delete player %s: %v", p.Username, dberr)
		}
	}
	return nil
}

// mintPlayerToken issues a token seeded from the credentials, re-rolling
// on the (unlikely) authenticator collision with a live token.
func (a *Auth) mintPlayerToken(username, password string) Token {
	for {
		t := NewToken([]string{username, password}, a.cfg.PlayerTokenTTLHours)
		if a.players.ByToken(t.Authenticator) == nil {
			return t
		}
	}
}

func (a *Auth) save(p *Player) {
	if a.db == nil {
		return
	}
	if err := a.db.SavePlayer(p); err != nil {
		log.Printf("persist player %s: %v", p.Username, err)
	}
}

func (a *Auth) checkRate(ip string) bool {
	a.rateMu.Lock()
	defer a.rateMu.Unlock()

	now := time.Now()
	entry, ok := a.rateMap[ip]
	if !ok || now.After(entry.ResetAt) {
		a.rateMap[ip] = &rateEntry{Count: 1, ResetAt: now.Add(loginRateWindow)}
		return true
	}
	entry.Count++
	return entry.Count <= maxLoginAttempts
}
