package main

import "testing"

func newTestRegistry() (*SessionRegistry, *PlayerRegistry) {
	players := NewPlayerRegistry()
	cfg := Config{PlayerTokenTTLHours: 24, SessionTokenTTLHours: 8760}
	return NewSessionRegistry(players, nil, nil, cfg), players
}

func addTestPlayer(t *testing.T, players *PlayerRegistry, name string, tier int) *Player {
	t.Helper()
	p := NewPlayer(name, "", tier)
	p.Token = NewToken([]string{name, "pw"}, 24)
	if gerr := players.Add(p); gerr != nil {
		t.Fatalf("add player %s: %v", name, gerr)
	}
	return p
}

func joinAll(t *testing.T, reg *SessionRegistry, passcode int, members ...*Player) Token {
	t.Helper()
	var token Token
	for _, p := range members {
		tok, gerr := reg.JoinSession(passcode, p.Token)
		if gerr != nil {
			t.Fatalf("join %s: %v", p.Username, gerr)
		}
		token = tok
	}
	return token
}

var testCenter = Coordinate{Latitude: 40.1105, Longitude: -88.2284}

func TestCreateSessionValidation(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	normal := addTestPlayer(t, players, "pleb", TierPlayer)

	if _, gerr := reg.CreateSession("game", testCenter, 100, normal.Token); gerr == nil || gerr.Kind != ErrInvalidModerator {
		t.Errorf("non-moderator create = %v, want invalid moderator", gerr)
	}
	if _, gerr := reg.CreateSession("  ", testCenter, 100, mod.Token); gerr == nil || gerr.Kind != ErrInvalidSession {
		t.Errorf("blank name create = %v, want invalid session", gerr)
	}
	if _, gerr := reg.CreateSession("game", testCenter, 0, mod.Token); gerr == nil || gerr.Kind != ErrInvalidSession {
		t.Errorf("zero radius create = %v, want invalid session", gerr)
	}

	if _, gerr := reg.CreateSession("game", testCenter, 100, mod.Token); gerr != nil {
		t.Fatalf("valid create: %v", gerr)
	}
	if _, gerr := reg.CreateSession("game", testCenter, 100, mod.Token); gerr == nil || gerr.Kind != ErrInvalidSession {
		t.Errorf("duplicate joinable name = %v, want invalid session", gerr)
	}
}

func TestPasscodeRange(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)

	sess, gerr := reg.CreateSession("game", testCenter, 100, mod.Token)
	if gerr != nil {
		t.Fatal(gerr)
	}
	pc := sess.CurrentPasscode()
	if pc < 1 || pc > 999999 {
		t.Errorf("passcode %d outside 1..999999", pc)
	}
}

func TestJoinUnknownPasscode(t *testing.T) {
	reg, players := newTestRegistry()
	p := addTestPlayer(t, players, "alice", TierPlayer)

	if _, gerr := reg.JoinSession(123456, p.Token); gerr == nil || gerr.Kind != ErrInvalidSession {
		t.Errorf("join unknown passcode = %v, want invalid session", gerr)
	}
}

func TestJoinStartLifecycle(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	a := addTestPlayer(t, players, "alice", TierPlayer)
	b := addTestPlayer(t, players, "bob", TierPlayer)
	c := addTestPlayer(t, players, "carol", TierPlayer)

	sess, gerr := reg.CreateSession("game", testCenter, 100, mod.Token)
	if gerr != nil {
		t.Fatal(gerr)
	}
	passcode := sess.CurrentPasscode()
	sessToken := joinAll(t, reg, passcode, a, b, c)
	if !sessToken.Equal(sess.CurrentToken()) {
		t.Error("join should return the session token")
	}

	// Double join, and joining a second session, are both rejected.
	if _, gerr := reg.JoinSession(passcode, a.Token); gerr == nil || gerr.Kind != ErrInvalidList {
		t.Errorf("double join = %v, want invalid list", gerr)
	}

	if gerr := reg.StartSession(sessToken, a.Token); gerr == nil || gerr.Kind != ErrInvalidModerator {
		t.Errorf("player start = %v, want invalid moderator", gerr)
	}
	if gerr := reg.StartSession(sessToken, mod.Token); gerr != nil {
		t.Fatalf("start: %v", gerr)
	}

	if sess.CurrentPasscode() != -1 {
		t.Errorf("passcode after start = %d, want -1", sess.CurrentPasscode())
	}
	if _, gerr := reg.JoinSession(passcode, mod.Token); gerr == nil {
		t.Error("old passcode should no longer resolve after start")
	}
	if len(sess.PlacedItems()) == 0 {
		t.Error("start should spawn items")
	}

	// Join order a,b,c gives the rotation a->b->c->a.
	if sess.TargetOf(a.ID) != b.ID || sess.TargetOf(b.ID) != c.ID || sess.TargetOf(c.ID) != a.ID {
		t.Error("targets do not form the join-order rotation")
	}

	if gerr := reg.StartSession(sessToken, mod.Token); gerr == nil {
		t.Error("second start should fail")
	}
}

func TestStartNeedsTwoPlayers(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	a := addTestPlayer(t, players, "alice", TierPlayer)

	sess, _ := reg.CreateSession("game", testCenter, 100, mod.Token)
	token := joinAll(t, reg, sess.CurrentPasscode(), a)
	if gerr := reg.StartSession(token, mod.Token); gerr == nil || gerr.Kind != ErrInvalidSession {
		t.Errorf("one-player start = %v, want invalid session", gerr)
	}
}

// startedSession builds a started three-player session far away from the
// fence center so spawned items never interfere with player taps.
func startedSession(t *testing.T, reg *SessionRegistry, players *PlayerRegistry) (Token, *GameSession, *Player, *Player, *Player) {
	t.Helper()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	a := addTestPlayer(t, players, "alice", TierPlayer)
	b := addTestPlayer(t, players, "bob", TierPlayer)
	c := addTestPlayer(t, players, "carol", TierPlayer)

	fenceCenter := OffsetCoordinate(testCenter, 0, 5000)
	sess, gerr := reg.CreateSession("game", fenceCenter, 10, mod.Token)
	if gerr != nil {
		t.Fatal(gerr)
	}
	token := joinAll(t, reg, sess.CurrentPasscode(), a, b, c)
	if gerr := reg.StartSession(token, mod.Token); gerr != nil {
		t.Fatal(gerr)
	}

	base := testCenter
	base.Accuracy = 5
	a.SetLocation(base)
	bLoc := OffsetCoordinate(base, 0, 2)
	bLoc.Accuracy = 5
	b.SetLocation(bLoc)
	cLoc := OffsetCoordinate(base, 1.5, 3)
	cLoc.Accuracy = 5
	c.SetLocation(cLoc)

	return token, sess, a, b, c
}

func TestResolveTapKillThenWin(t *testing.T) {
	reg, players := newTestRegistry()
	token, sess, a, b, c := startedSession(t, reg, players)

	outcome, gerr := reg.ResolveTap(token, a.Token, b.GetLocation())
	if gerr != nil {
		t.Fatalf("tap target: %v", gerr)
	}
	if outcome != TapContinue {
		t.Errorf("first kill outcome = %s, want continue", outcome)
	}
	if a.Kills != 1 || b.Deaths != 1 {
		t.Errorf("counters kills=%d deaths=%d, want 1/1", a.Kills, b.Deaths)
	}
	if b.CurrentSessionID() != "" {
		t.Error("eliminated player should leave the session")
	}
	if sess.TargetOf(a.ID) != c.ID {
		t.Error("tapper should inherit the tapped player's target")
	}

	outcome, gerr = reg.ResolveTap(token, a.Token, c.GetLocation())
	if gerr != nil {
		t.Fatalf("tap last target: %v", gerr)
	}
	if outcome != TapWin {
		t.Errorf("final kill outcome = %s, want win", outcome)
	}
	if a.Level != 2 {
		t.Errorf("winner level = %d, want 2", a.Level)
	}
	if sess.TargetOf(a.ID) != "" {
		t.Error("sole survivor should have no target")
	}
}

func TestResolveTapOutOfRange(t *testing.T) {
	reg, players := newTestRegistry()
	token, _, a, _, _ := startedSession(t, reg, players)

	farPoint := OffsetCoordinate(a.GetLocation(), 0, 50)
	if _, gerr := reg.ResolveTap(token, a.Token, farPoint); gerr == nil || gerr.Kind != ErrInvalidLocation {
		t.Errorf("out-of-range tap = %v, want invalid location", gerr)
	}
}

func TestResolveTapNonTargetIsNoKill(t *testing.T) {
	reg, players := newTestRegistry()
	token, _, a, b, c := startedSession(t, reg, players)

	// Move a's target out of detection range; only the non-target c
	// remains close. The tap must not resolve against c.
	farLoc := OffsetCoordinate(testCenter, 0, 2000)
	farLoc.Accuracy = 5
	b.SetLocation(farLoc)

	if _, gerr := reg.ResolveTap(token, a.Token, c.GetLocation()); gerr == nil || gerr.Kind != ErrInvalidLocation {
		t.Errorf("non-target tap = %v, want invalid location", gerr)
	}
	if c.Deaths != 0 {
		t.Error("non-target player must not be eliminated")
	}
}

func TestResolveTapBeforeStart(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	a := addTestPlayer(t, players, "alice", TierPlayer)
	b := addTestPlayer(t, players, "bob", TierPlayer)

	sess, _ := reg.CreateSession("game", testCenter, 100, mod.Token)
	token := joinAll(t, reg, sess.CurrentPasscode(), a, b)

	loc := testCenter
	loc.Accuracy = 5
	a.SetLocation(loc)
	if _, gerr := reg.ResolveTap(token, a.Token, loc); gerr == nil || gerr.Kind != ErrInvalidSession {
		t.Errorf("tap before start = %v, want invalid session", gerr)
	}
}

func TestResolveTapItemPickup(t *testing.T) {
	reg, players := newTestRegistry()
	token, sess, a, b, _ := startedSession(t, reg, players)

	// Move the target away and plant an item next to the tapper.
	farLoc := OffsetCoordinate(testCenter, 0, 2000)
	farLoc.Accuracy = 5
	b.SetLocation(farLoc)

	at := OffsetCoordinate(a.GetLocation(), 2.0, 2)
	at.Accuracy = itemAccuracy
	sess.mu.Lock()
	sess.items[at] = ItemCatalogMap[2]
	sess.mu.Unlock()

	outcome, gerr := reg.ResolveTap(token, a.Token, at)
	if gerr != nil {
		t.Fatalf("tap item: %v", gerr)
	}
	if outcome != TapItemPickup {
		t.Errorf("outcome = %s, want item-pickup", outcome)
	}
	if len(a.Items) != 1 || a.Items[0].Name != "Sword" {
		t.Errorf("inventory = %v, want one Sword", a.Items)
	}
	if _, ok := sess.PlacedItems()[at]; ok {
		t.Error("picked-up item should be gone from the map")
	}
}

func TestRemovePlayerRepairsCycle(t *testing.T) {
	reg, players := newTestRegistry()
	token, sess, a, b, c := startedSession(t, reg, players)

	if gerr := reg.RemovePlayer(token, b.Token); gerr != nil {
		t.Fatalf("remove: %v", gerr)
	}
	if b.CurrentSessionID() != "" {
		t.Error("removed player should have no session")
	}
	if sess.TargetOf(a.ID) != c.ID {
		t.Error("cycle not repaired around the removed player")
	}

	if gerr := reg.RemovePlayer(token, c.Token); gerr != nil {
		t.Fatalf("remove second: %v", gerr)
	}
	if sess.TargetOf(a.ID) != "" {
		t.Error("lone survivor should have no target")
	}
}

func TestRemoveAllPlayers(t *testing.T) {
	reg, players := newTestRegistry()
	token, sess, a, b, c := startedSession(t, reg, players)

	if gerr := reg.RemoveAllPlayers(token); gerr != nil {
		t.Fatal(gerr)
	}
	if sess.MemberCount() != 0 {
		t.Errorf("member count = %d, want 0", sess.MemberCount())
	}
	for _, p := range []*Player{a, b, c} {
		if p.CurrentSessionID() != "" {
			t.Errorf("player %s still has a session", p.Username)
		}
	}
}

func TestStopSessionClearsToken(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	sess, _ := reg.CreateSession("game", testCenter, 100, mod.Token)

	token := sess.CurrentToken()
	if gerr := reg.StopSession(token); gerr != nil {
		t.Fatal(gerr)
	}
	if _, gerr := reg.SessionByToken(token); gerr == nil {
		t.Error("stopped session should not resolve by its old token")
	}
}

func TestDeleteSession(t *testing.T) {
	reg, players := newTestRegistry()
	token, sess, a, _, _ := startedSession(t, reg, players)

	if gerr := reg.DeleteSession(token); gerr != nil {
		t.Fatal(gerr)
	}
	if reg.SessionByID(sess.ID) != nil {
		t.Error("deleted session still resolvable by ID")
	}
	if a.CurrentSessionID() != "" {
		t.Error("membership should be reverted on delete")
	}
}

func TestExpiredTokenReissuesBlank(t *testing.T) {
	reg, players := newTestRegistry()
	p := addTestPlayer(t, players, "stale", TierPlayer)
	expired := p.CurrentToken()
	expired.Expiration = 1 // long past
	p.SetToken(expired)

	if _, gerr := reg.ValidatePlayerToken(expired); gerr == nil || gerr.Kind != ErrInvalidToken {
		t.Fatalf("expired validate = %v, want invalid token", gerr)
	}

	reissued := p.CurrentToken()
	if reissued.Authenticator != "" {
		t.Error("expired player should hold a blank token afterwards")
	}
	if !reissued.IsValid() {
		t.Error("reissued blank token should not be expired")
	}
}

func TestValidateUnknownToken(t *testing.T) {
	reg, _ := newTestRegistry()
	unknown := NewToken([]string{"ghost", "pw"}, 24)
	if _, gerr := reg.ValidatePlayerToken(unknown); gerr == nil || gerr.Kind != ErrInvalidToken {
		t.Errorf("unknown validate = %v, want invalid token", gerr)
	}
	if _, gerr := reg.ValidatePlayerToken(Token{}); gerr == nil || gerr.Kind != ErrInvalidToken {
		t.Errorf("blank validate = %v, want invalid token", gerr)
	}
}

func TestTierValidation(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	admin := addTestPlayer(t, players, "admin", TierAdministrator)

	if _, gerr := reg.ValidateAdministratorToken(mod.Token); gerr == nil || gerr.Kind != ErrInvalidAdministrator {
		t.Errorf("moderator as admin = %v, want invalid administrator", gerr)
	}
	if _, gerr := reg.ValidateModeratorToken(admin.Token); gerr != nil {
		t.Errorf("admin as moderator: %v", gerr)
	}
}

func TestSessionsListing(t *testing.T) {
	reg, players := newTestRegistry()
	mod := addTestPlayer(t, players, "mod", TierModerator)
	admin := addTestPlayer(t, players, "admin", TierAdministrator)

	reg.CreateSession("one", testCenter, 100, mod.Token)
	reg.CreateSession("two", testCenter, 100, mod.Token)

	if _, gerr := reg.Sessions(mod.Token); gerr == nil {
		t.Error("session listing should require an administrator")
	}
	list, gerr := reg.Sessions(admin.Token)
	if gerr != nil {
		t.Fatal(gerr)
	}
	if len(list) != 2 {
		t.Errorf("listed %d sessions, want 2", len(list))
	}
}

func TestLeaderboardOrdering(t *testing.T) {
	reg, players := newTestRegistry()
	_, sess, a, b, _ := startedSession(t, reg, players)

	a.recordKill()
	a.recordKill()
	b.recordKill()
	b.recordDeath()

	entries := reg.Leaderboard(sess)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Username != "alice" || entries[0].KD != 2 {
		t.Errorf("top entry = %+v, want alice with 2", entries[0])
	}
	if entries[1].Username != "bob" || entries[1].KD != 1 {
		t.Errorf("second entry = %+v, want bob with 1", entries[1])
	}
}
