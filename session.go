package main

import "sync"

// GameSession is one geofenced elimination game. All mutable state is
// guarded by the session's own mutex; the registry serializes every
// membership, target and item mutation through it.
type GameSession struct {
	mu sync.Mutex

	ID     string
	Name   string
	Center Coordinate
	Radius float64

	Token    Token
	Passcode int // joinable passcode; -1 once started
	Started  bool

	memberIDs []string            // ordered join order
	items     map[Coordinate]Item // placed map items
	targets   map[string]string   // playerID -> targetID elimination cycle
}

func newGameSession(name string, center Coordinate, radius float64) *GameSession {
	return &GameSession{
		ID:      GenerateUUID(),
		Name:    name,
		Center:  center,
		Radius:  radius,
		items:   make(map[Coordinate]Item),
		targets: make(map[string]string),
	}
}

func (s *GameSession) addMember(id string) {
	s.memberIDs = append(s.memberIDs, id)
}

func (s *GameSession) removeMember(id string) bool {
	for i, m := range s.memberIDs {
		if m == id {
			s.memberIDs = append(s.memberIDs[:i], s.memberIDs[i+1:]...)
			return true
		}
	}
	return false
}

func (s *GameSession) hasMember(id string) bool {
	for _, m := range s.memberIDs {
		if m == id {
			return true
		}
	}
	return false
}

func (s *GameSession) CurrentToken() Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Token
}

func (s *GameSession) CurrentPasscode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Passcode
}

func (s *GameSession) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Started
}

// MemberIDs returns a copy of the ordered member list.
func (s *GameSession) MemberIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.memberIDs))
	copy(out, s.memberIDs)
	return out
}

func (s *GameSession) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.memberIDs)
}

// TargetOf returns the current target of a player, or "" if none.
func (s *GameSession) TargetOf(playerID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets[playerID]
}

// PlacedItems returns a copy of the location->item map.
func (s *GameSession) PlacedItems() map[Coordinate]Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[Coordinate]Item, len(s.items))
	for k, v := range s.items {
		out[k] = v
	}
	return out
}

// PlacedItem is a map item with the coordinate it sits at; used in
// snapshots and radar payloads.
type PlacedItem struct {
	Location Coordinate `json:"location" msgpack:"location"`
	Item     Item       `json:"item" msgpack:"item"`
}

// sessionSnapshot is the msgpack-encoded persistent form of a session.
// Latest write wins; no durability guarantee beyond that.
type sessionSnapshot struct {
	ID        string            `msgpack:"id"`
	Name      string            `msgpack:"name"`
	Center    Coordinate        `msgpack:"center"`
	Radius    float64           `msgpack:"radius"`
	Token     Token             `msgpack:"token"`
	Passcode  int               `msgpack:"passcode"`
	Started   bool              `msgpack:"started"`
	MemberIDs []string          `msgpack:"member_ids"`
	Items     []PlacedItem      `msgpack:"items"`
	Targets   map[string]string `msgpack:"targets"`
}

// snapshot captures the session state. Caller must hold the session lock.
func (s *GameSession) snapshot() *sessionSnapshot {
	snap := &sessionSnapshot{
		ID:        s.ID,
		Name:      s.Name,
		Center:    s.Center,
		Radius:    s.Radius,
		Token:     s.Token,
		Passcode:  s.Passcode,
		Started:   s.Started,
		MemberIDs: append([]string(nil), s.memberIDs...),
		Targets:   make(map[string]string, len(s.targets)),
	}
	for loc, it := range s.items {
		snap.Items = append(snap.Items, PlacedItem{Location: loc, Item: it})
	}
	for k, v := range s.targets {
		snap.Targets[k] = v
	}
	return snap
}

// Snapshot captures the session state under the session lock.
func (s *GameSession) Snapshot() *sessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// restoreSession rebuilds a session from its persisted snapshot.
func restoreSession(snap *sessionSnapshot) *GameSession {
	s := &GameSession{
		ID:        snap.ID,
		Name:      snap.Name,
		Center:    snap.Center,
		Radius:    snap.Radius,
		Token:     snap.Token,
		Passcode:  snap.Passcode,
		Started:   snap.Started,
		memberIDs: append([]string(nil), snap.MemberIDs...),
		items:     make(map[Coordinate]Item, len(snap.Items)),
		targets:   make(map[string]string, len(snap.Targets)),
	}
	for _, pi := range snap.Items {
		s.items[pi.Location] = pi.Item
	}
	for k, v := range snap.Targets {
		s.targets[k] = v
	}
	return s
}
