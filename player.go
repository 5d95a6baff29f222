package main

import "sync"

// Authorization tiers.
const (
	TierPlayer        = 0
	TierModerator     = 1
	TierAdministrator = 2
)

const (
	baseViewRadius = 30.0 // meters
	baseKillRadius = 1.0  // meters
)

// Player is one account. Mutable fields are guarded by the player's own
// mutex; session membership and targets are mutated only through the
// session registry under the owning session's lock.
type Player struct {
	mu sync.Mutex

	ID       string
	Username string
	PassHash string
	Tier     int

	Location   Coordinate
	ViewRadius float64
	KillRadius float64

	Kills  int
	Deaths int
	Level  int

	Token     Token
	SessionID string // at most one session at a time
	Items     []Item // held inventory (buffs and picked-up map entities)
}

// NewPlayer creates a player with base radii, level 1 and no session.
func NewPlayer(username, passHash string, tier int) *Player {
	return &Player{
		ID:         GenerateUUID(),
		Username:   username,
		PassHash:   passHash,
		Tier:       tier,
		ViewRadius: baseViewRadius,
		KillRadius: baseKillRadius,
		Level:      1,
	}
}

func (p *Player) GetLocation() Coordinate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Location
}

func (p *Player) SetLocation(loc Coordinate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Location = loc
}

func (p *Player) CurrentToken() Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Token
}

func (p *Player) SetToken(t Token) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Token = t
}

func (p *Player) CurrentSessionID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.SessionID
}

func (p *Player) setSessionID(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.SessionID = id
}

// claimSession atomically records membership iff the player is not already
// in a session. Two racing joins cannot both succeed.
func (p *Player) claimSession(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.SessionID != "" {
		return false
	}
	p.SessionID = id
	return true
}

// EffectiveViewRadius is the base view radius plus every held view buff.
func (p *Player) EffectiveViewRadius() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.ViewRadius
	for _, it := range p.Items {
		if it.Kind == ItemBuff && it.BuffTarget == BuffView {
			r += it.Effect
		}
	}
	return r
}

// EffectiveKillRadius is the base kill radius plus every held kill buff.
func (p *Player) EffectiveKillRadius() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	r := p.KillRadius
	for _, it := range p.Items {
		if it.Kind == ItemBuff && it.BuffTarget == BuffKill {
			r += it.Effect
		}
	}
	return r
}

func (p *Player) AddItem(it Item) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Items = append(p.Items, it)
}

// KDRatio is kills per death; with zero deaths it is just the kill count.
func (p *Player) KDRatio() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Deaths == 0 {
		return float64(p.Kills)
	}
	return float64(p.Kills) / float64(p.Deaths)
}

func (p *Player) recordKill() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Kills++
}

func (p *Player) recordDeath() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Deaths++
}

func (p *Player) levelUp() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Level++
}

// PlayerRegistry is the id-indexed arena of all known players.
// Relationships to sessions are id fields, not embedded references.
type PlayerRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*Player
	byName map[string]*Player
}

func NewPlayerRegistry() *PlayerRegistry {
	return &PlayerRegistry{
		byID:   make(map[string]*Player),
		byName: make(map[string]*Player),
	}
}

// Add registers a player; duplicate usernames are rejected.
func (r *PlayerRegistry) Add(p *Player) *GameError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byName[p.Username]; ok {
		return errf(ErrInvalidUser, "username %q already exists", p.Username)
	}
	r.byID[p.ID] = p
	r.byName[p.Username] = p
	return nil
}

func (r *PlayerRegistry) ByID(id string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

func (r *PlayerRegistry) ByName(username string) *Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byName[username]
}

// ByToken finds the player currently holding the given authenticator.
func (r *PlayerRegistry) ByToken(authenticator string) *Player {
	if authenticator == "" {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.byID {
		if p.CurrentToken().Authenticator == authenticator {
			return p
		}
	}
	return nil
}

func (r *PlayerRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		delete(r.byName, p.Username)
		delete(r.byID, id)
	}
}

func (r *PlayerRegistry) All() []*Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Player, 0, len(r.byID))
	for _, p := range r.byID {
		out = append(out, p)
	}
	return out
}

func (r *PlayerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
