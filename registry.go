package main

import (
	"log"
	"math"
	"math/rand"
	"sort"
	"strings"
	"sync"
)

const maxPasscode = 999999 // passcodes are 1..999999

// SessionRegistry owns session lifecycle and coordinates the target cycle,
// geo resolution and item spawning on state transitions. Lock order is
// always registry -> session -> player, never the reverse.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*GameSession // by session ID

	players   *PlayerRegistry
	db        *DB        // nil in tests
	analytics *Analytics // nil in tests
	cfg       Config
}

func NewSessionRegistry(players *PlayerRegistry, db *DB, analytics *Analytics, cfg Config) *SessionRegistry {
	return &SessionRegistry{
		sessions:  make(map[string]*GameSession),
		players:   players,
		db:        db,
		analytics: analytics,
		cfg:       cfg,
	}
}

/* ---- token validation ---- */

// ValidatePlayerToken resolves the player holding the token. An expired
// token has a side effect: the owner is reissued a fresh blank token
// before the failure is reported.
func (r *SessionRegistry) ValidatePlayerToken(t Token) (*Player, *GameError) {
	if t.Authenticator == "" {
		return nil, errf(ErrInvalidToken, "token has no authenticator")
	}
	p := r.players.ByToken(t.Authenticator)
	if p == nil {
		return nil, errf(ErrInvalidToken, "token does not correspond to an existing player")
	}
	if !t.IsValid() {
		p.SetToken(NewBlankToken())
		r.savePlayer(p)
		return nil, errf(ErrInvalidToken, "token is expired")
	}
	return p, nil
}

// ValidateModeratorToken additionally requires tier >= moderator.
func (r *SessionRegistry) ValidateModeratorToken(t Token) (*Player, *GameError) {
	p, err := r.ValidatePlayerToken(t)
	if err != nil {
		return nil, err
	}
	if p.Tier < TierModerator {
		return nil, errf(ErrInvalidModerator, "player %q is not a moderator", p.Username)
	}
	return p, nil
}

// ValidateAdministratorToken additionally requires tier >= administrator.
func (r *SessionRegistry) ValidateAdministratorToken(t Token) (*Player, *GameError) {
	p, err := r.ValidatePlayerToken(t)
	if err != nil {
		return nil, err
	}
	if p.Tier < TierAdministrator {
		return nil, errf(ErrInvalidAdministrator, "player %q is not an administrator", p.Username)
	}
	return p, nil
}

// SessionByToken resolves a live session from its bearer token.
func (r *SessionRegistry) SessionByToken(t Token) (*GameSession, *GameError) {
	if t.Authenticator == "" {
		return nil, errf(ErrInvalidToken, "session token has no authenticator")
	}
	if !t.IsValid() {
		return nil, errf(ErrInvalidToken, "session token is expired")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.CurrentToken().Authenticator == t.Authenticator {
			return s, nil
		}
	}
	return nil, errf(ErrInvalidToken, "token does not correspond to an existing session")
}

func (r *SessionRegistry) SessionByID(id string) *GameSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id]
}

// SessionOf returns the session the player currently belongs to, or nil.
func (r *SessionRegistry) SessionOf(p *Player) *GameSession {
	id := p.CurrentSessionID()
	if id == "" {
		return nil
	}
	return r.SessionByID(id)
}

/* ---- lifecycle ---- */

// CreateSession mints a joinable session with a unique passcode and a
// fresh session token. Caller must hold a moderator token.
func (r *SessionRegistry) CreateSession(name string, center Coordinate, radius float64, caller Token) (*GameSession, *GameError) {
	mod, err := r.ValidateModeratorToken(caller)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" || radius == 0 {
		return nil, errf(ErrInvalidSession, "cannot add a session with a blank name, no center, or radius of 0")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if !s.IsStarted() && s.Name == name {
			return nil, errf(ErrInvalidSession, "name for session already exists")
		}
	}

	sess := newGameSession(name, center, radius)
	sess.Passcode = r.reservePasscodeLocked()
	sess.Token = r.mintSessionTokenLocked(name)
	r.sessions[sess.ID] = sess

	r.persist(sess.Snapshot())
	r.track(EvtSessionCreate, mod.ID, sess.ID, "")
	log.Printf("session %q created by %s (passcode %d)", name, mod.Username, sess.Passcode)
	return sess, nil
}

// JoinSession adds the token's player to the joinable session matching the
// passcode. Returns the session token the client uses from then on.
func (r *SessionRegistry) JoinSession(passcode int, playerToken Token) (Token, *GameError) {
	p, err := r.ValidatePlayerToken(playerToken)
	if err != nil {
		return Token{}, err
	}

	var sess *GameSession
	r.mu.RLock()
	for _, s := range r.sessions {
		if passcode > 0 && s.CurrentPasscode() == passcode {
			sess = s
			break
		}
	}
	r.mu.RUnlock()
	if sess == nil {
		return Token{}, errf(ErrInvalidSession, "passcode does not correspond to an existing session")
	}

	sess.mu.Lock()
	if sess.Started {
		sess.mu.Unlock()
		return Token{}, errf(ErrInvalidList, "session has been started, cannot add any more users")
	}
	if sess.hasMember(p.ID) {
		sess.mu.Unlock()
		return Token{}, errf(ErrInvalidList, "player %q is already a member of this session", p.Username)
	}
	if !p.claimSession(sess.ID) {
		sess.mu.Unlock()
		return Token{}, errf(ErrInvalidList, "player %q is already in a session", p.Username)
	}
	sess.addMember(p.ID)
	snap := sess.snapshot()
	token := sess.Token
	sess.mu.Unlock()

	r.persist(snap)
	r.savePlayer(p)
	r.track(EvtSessionJoin, p.ID, sess.ID, "")
	return token, nil
}

// StartSession flips a joinable session to started: targets are assigned,
// the passcode is cleared, items are spawned.
func (r *SessionRegistry) StartSession(sessionToken, caller Token) *GameError {
	mod, err := r.ValidateModeratorToken(caller)
	if err != nil {
		return err
	}
	sess, err := r.SessionByToken(sessionToken)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if sess.Started {
		sess.mu.Unlock()
		return errf(ErrInvalidSession, "session %q has already started", sess.Name)
	}
	if len(sess.memberIDs) < 2 {
		sess.mu.Unlock()
		return errf(ErrInvalidSession, "session %q needs at least two players to start", sess.Name)
	}
	sess.targets = assignTargets(sess.memberIDs)
	sess.Passcode = -1
	sess.spawnItems()
	sess.Started = true
	snap := sess.snapshot()
	sess.mu.Unlock()

	r.persist(snap)
	r.track(EvtSessionStart, mod.ID, sess.ID, "")
	log.Printf("session %q started with %d players", sess.Name, len(snap.MemberIDs))
	return nil
}

// ResolveTap resolves a physical tap at tappedPoint. The tap must land
// within tap range; a detected target beats a detected item; tapping a
// non-target player is never a kill.
func (r *SessionRegistry) ResolveTap(sessionToken, tapperToken Token, tapped Coordinate) (TapOutcome, *GameError) {
	sess, err := r.SessionByToken(sessionToken)
	if err != nil {
		return 0, err
	}
	tapper, err := r.ValidatePlayerToken(tapperToken)
	if err != nil {
		return 0, err
	}
	if tapper.CurrentSessionID() != sess.ID {
		return 0, errf(ErrInvalidUser, "player %q is not a member of this session", tapper.Username)
	}

	loc := tapper.GetLocation()
	killRadius := tapper.EffectiveKillRadius()

	sess.mu.Lock()
	if !sess.Started {
		sess.mu.Unlock()
		return 0, errf(ErrInvalidSession, "session %q has not started", sess.Name)
	}
	if !WithinTapRange(loc, killRadius, tapped) {
		sess.mu.Unlock()
		return 0, errf(ErrInvalidLocation, "tapped outside of kill radius")
	}

	// Player candidate: only the tapper's assigned target counts.
	if targetID := sess.targets[tapper.ID]; targetID != "" {
		if target := r.players.ByID(targetID); target != nil && Detected(loc, killRadius, target.GetLocation()) {
			win := contractCycle(sess.targets, tapper.ID, targetID)
			sess.removeMember(targetID)
			target.setSessionID("")
			tapper.recordKill()
			target.recordDeath()
			outcome := TapContinue
			if win {
				tapper.levelUp()
				delete(sess.targets, tapper.ID) // the winner has no target
				outcome = TapWin
			}
			snap := sess.snapshot()
			sess.mu.Unlock()

			r.persist(snap)
			r.savePlayer(tapper)
			r.savePlayer(target)
			r.track(EvtKill, tapper.ID, sess.ID, target.Username)
			if win {
				r.track(EvtWin, tapper.ID, sess.ID, "")
			}
			return outcome, nil
		}
	}

	// Item candidate: the nearest detected placed item.
	var (
		bestAt   Coordinate
		bestDist = math.MaxFloat64
		found    bool
	)
	for at := range sess.items {
		if !Detected(loc, killRadius, at) {
			continue
		}
		if d := DistanceMeters(loc, at); d < bestDist {
			bestAt, bestDist, found = at, d, true
		}
	}
	if found {
		it, _ := sess.pickupAt(bestAt)
		tapper.AddItem(it)
		snap := sess.snapshot()
		sess.mu.Unlock()

		r.persist(snap)
		r.savePlayer(tapper)
		r.track(EvtItemPickup, tapper.ID, sess.ID, it.Name)
		return TapItemPickup, nil
	}

	sess.mu.Unlock()
	return 0, errf(ErrInvalidLocation, "no detectable candidate at the tapped location")
}

// StopSession clears the session's token, making it unreachable by token.
func (r *SessionRegistry) StopSession(sessionToken Token) *GameError {
	sess, err := r.SessionByToken(sessionToken)
	if err != nil {
		return err
	}
	sess.mu.Lock()
	sess.Token.Authenticator = ""
	snap := sess.snapshot()
	sess.mu.Unlock()

	r.persist(snap)
	log.Printf("session %q stopped, token cleared", sess.Name)
	return nil
}

// DeleteSession removes the session and reverts membership on all players.
func (r *SessionRegistry) DeleteSession(sessionToken Token) *GameError {
	sess, err := r.SessionByToken(sessionToken)
	if err != nil {
		return err
	}
	if err := r.RemoveAllPlayers(sessionToken); err != nil {
		return err
	}

	r.mu.Lock()
	delete(r.sessions, sess.ID)
	r.mu.Unlock()

	if r.db != nil {
		if dberr := r.db.DeleteSessionSnapshot(sess.ID); dberr != nil {
			log.Printf("delete snapshot %s: %v", sess.ID, dberr)
		}
	}
	r.track(EvtSessionDelete, "", sess.ID, sess.Name)
	return nil
}

// RemovePlayer takes one player out of the session, repairing the target
// cycle around the gap.
func (r *SessionRegistry) RemovePlayer(sessionToken, playerToken Token) *GameError {
	sess, err := r.SessionByToken(sessionToken)
	if err != nil {
		return err
	}
	p, err := r.ValidatePlayerToken(playerToken)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	if !sess.removeMember(p.ID) {
		sess.mu.Unlock()
		return errf(ErrInvalidUser, "player %q is not a member of this session", p.Username)
	}
	repairCycle(sess.targets, p.ID)
	if len(sess.memberIDs) == 1 {
		delete(sess.targets, sess.memberIDs[0])
	}
	p.setSessionID("")
	snap := sess.snapshot()
	sess.mu.Unlock()

	r.persist(snap)
	r.savePlayer(p)
	return nil
}

// RemoveAllPlayers reverts membership for every member of the session.
func (r *SessionRegistry) RemoveAllPlayers(sessionToken Token) *GameError {
	sess, err := r.SessionByToken(sessionToken)
	if err != nil {
		return err
	}

	sess.mu.Lock()
	members := append([]string(nil), sess.memberIDs...)
	sess.memberIDs = nil
	sess.targets = make(map[string]string)
	snap := sess.snapshot()
	sess.mu.Unlock()

	for _, id := range members {
		if p := r.players.ByID(id); p != nil {
			p.setSessionID("")
			r.savePlayer(p)
		}
	}
	r.persist(snap)
	return nil
}

// repairCycle splices a removed player out of the target relation:
// whoever targeted them now targets their old target.
func repairCycle(targets map[string]string, removedID string) {
	next := targets[removedID]
	delete(targets, removedID)
	for k, v := range targets {
		if v == removedID {
			targets[k] = next
		}
	}
}

/* ---- queries ---- */

// Roster returns usernames in join order.
func (r *SessionRegistry) Roster(sess *GameSession) []string {
	ids := sess.MemberIDs()
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if p := r.players.ByID(id); p != nil {
			names = append(names, p.Username)
		}
	}
	return names
}

// InView returns the other members and the placed items within the
// viewer's effective view radius.
func (r *SessionRegistry) InView(sess *GameSession, viewer *Player) ([]*Player, []PlacedItem) {
	viewRadius := viewer.EffectiveViewRadius()
	at := viewer.GetLocation()

	var users []*Player
	for _, id := range sess.MemberIDs() {
		if id == viewer.ID {
			continue
		}
		p := r.players.ByID(id)
		if p == nil {
			continue
		}
		if DistanceMeters(at, p.GetLocation()) <= viewRadius {
			users = append(users, p)
		}
	}

	var items []PlacedItem
	for loc, it := range sess.PlacedItems() {
		if DistanceMeters(at, loc) <= viewRadius {
			items = append(items, PlacedItem{Location: loc, Item: it})
		}
	}
	return users, items
}

// LeaderboardEntry is one row of a session leaderboard.
type LeaderboardEntry struct {
	Username string  `json:"username"`
	KD       float64 `json:"kd"`
}

// Leaderboard returns the session's members ranked by kill/death ratio.
func (r *SessionRegistry) Leaderboard(sess *GameSession) []LeaderboardEntry {
	ids := sess.MemberIDs()
	entries := make([]LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		if p := r.players.ByID(id); p != nil {
			entries = append(entries, LeaderboardEntry{Username: p.Username, KD: p.KDRatio()})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].KD > entries[j].KD })
	return entries
}

// SessionSummary is the admin-facing view of one session.
type SessionSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Passcode int    `json:"passcode"`
	Started  bool   `json:"started"`
	Players  int    `json:"players"`
}

// Sessions lists every live session. Administrator only.
func (r *SessionRegistry) Sessions(caller Token) ([]SessionSummary, *GameError) {
	if _, err := r.ValidateAdministratorToken(caller); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SessionSummary, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, SessionSummary{
			ID:       s.ID,
			Name:     s.Name,
			Passcode: s.CurrentPasscode(),
			Started:  s.IsStarted(),
			Players:  s.MemberCount(),
		})
	}
	return out, nil
}

// SessionByPasscode finds the joinable session matching a passcode.
func (r *SessionRegistry) SessionByPasscode(passcode int) *GameSession {
	if passcode <= 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.CurrentPasscode() == passcode {
			return s
		}
	}
	return nil
}

/* ---- persistence plumbing ---- */

// Restore reloads persisted sessions on boot.
func (r *SessionRegistry) Restore(snaps []*sessionSnapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, snap := range snaps {
		r.sessions[snap.ID] = restoreSession(snap)
	}
}

func (r *SessionRegistry) persist(snap *sessionSnapshot) {
	if r.db == nil {
		return
	}
	if err := r.db.SaveSessionSnapshot(snap); err != nil {
		log.Printf("persist session %s: %v", snap.ID, err)
	}
}

func (r *SessionRegistry) savePlayer(p *Player) {
	if r.db == nil {
		return
	}
	if err := r.db.SavePlayer(p); err != nil {
		log.Printf("persist player %s: %v", p.Username, err)
	}
}

func (r *SessionRegistry) track(evtType, playerID, sessionID, data string) {
	if r.analytics == nil {
		return
	}
	r.analytics.Track(evtType, playerID, sessionID, data)
}

/* ---- uniqueness reservations (caller holds r.mu) ---- */

func (r *SessionRegistry) reservePasscodeLocked() int {
	for {
		pc := rand.Intn(maxPasscode) + 1
		clash := false
		for _, s := range r.sessions {
			if s.CurrentPasscode() == pc {
				clash = true
				break
			}
		}
		if !clash {
			return pc
		}
	}
}

func (r *SessionRegistry) mintSessionTokenLocked(name string) Token {
	for {
		t := NewToken([]string{name}, r.cfg.SessionTokenTTLHours)
		clash := false
		for _, s := range r.sessions {
			if s.CurrentToken().Authenticator == t.Authenticator {
				clash = true
				break
			}
		}
		if !clash && r.players.ByToken(t.Authenticator) == nil {
			return t
		}
	}
}
