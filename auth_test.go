package main

import "testing"

func newTestAuth() (*Auth, *PlayerRegistry) {
	players := NewPlayerRegistry()
	cfg := Config{PlayerTokenTTLHours: 24, SessionTokenTTLHours: 8760}
	return NewAuth(players, nil, cfg), players
}

func TestRegisterAndLogin(t *testing.T) {
	auth, _ := newTestAuth()

	p, token, gerr := auth.Register("alice", "hunter22", TierPlayer)
	if gerr != nil {
		t.Fatalf("register: %v", gerr)
	}
	if p.Username != "alice" || p.Level != 1 {
		t.Errorf("unexpected player %+v", p)
	}
	if !token.IsValid() || token.Authenticator == "" {
		t.Error("register should mint a live token")
	}

	_, fresh, gerr := auth.Login("alice", "hunter22", "1.2.3.4")
	if gerr != nil {
		t.Fatalf("login: %v", gerr)
	}
	if fresh.Equal(token) {
		t.Error("login should replace the token, not reuse it")
	}
	if !p.CurrentToken().Equal(fresh) {
		t.Error("player should hold the freshly minted token")
	}
}

func TestRegisterValidation(t *testing.T) {
	auth, _ := newTestAuth()

	if _, _, gerr := auth.Register("a", "password", TierPlayer); gerr == nil {
		t.Error("too-short username should be rejected")
	}
	if _, _, gerr := auth.Register("bob", "pw", TierPlayer); gerr == nil {
		t.Error("too-short password should be rejected")
	}
	if _, _, gerr := auth.Register("bob", "password", 7); gerr == nil {
		t.Error("unknown tier should be rejected")
	}

	if _, _, gerr := auth.Register("bob", "password", TierPlayer); gerr != nil {
		t.Fatalf("valid register: %v", gerr)
	}
	if _, _, gerr := auth.Register("bob", "different", TierPlayer); gerr == nil || gerr.Kind != ErrInvalidUser {
		t.Errorf("duplicate username = %v, want invalid user", gerr)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	auth, _ := newTestAuth()
	auth.Register("carol", "correct-horse", TierPlayer)

	if _, _, gerr := auth.Login("carol", "wrong", "1.2.3.4"); gerr == nil {
		t.Error("wrong password should fail")
	}
	if _, _, gerr := auth.Login("nobody", "whatever", "1.2.3.4"); gerr == nil {
		t.Error("unknown username should fail")
	}
}

func TestLoginRateLimit(t *testing.T) {
	auth, _ := newTestAuth()
	auth.Register("dave", "password", TierPlayer)

	for i := 0; i < maxLoginAttempts; i++ {
		auth.Login("dave", "wrong", "9.9.9.9")
	}
	if _, _, gerr := auth.Login("dave", "password", "9.9.9.9"); gerr == nil {
		t.Error("attempt past the limit should be rejected even with correct credentials")
	}
	// A different IP is unaffected.
	if _, _, gerr := auth.Login("dave", "password", "8.8.8.8"); gerr != nil {
		t.Errorf("other IP login: %v", gerr)
	}
}

func TestDeletePlayer(t *testing.T) {
	auth, players := newTestAuth()
	cfg := Config{PlayerTokenTTLHours: 24, SessionTokenTTLHours: 8760}
	reg := NewSessionRegistry(players, nil, nil, cfg)

	_, adminToken, _ := auth.Register("admin", "password", TierAdministrator)
	target, targetToken, _ := auth.Register("victim", "password", TierPlayer)

	if gerr := auth.DeletePlayer(targetToken, targetToken, reg); gerr == nil || gerr.Kind != ErrInvalidAdministrator {
		t.Errorf("non-admin delete = %v, want invalid administrator", gerr)
	}
	if gerr := auth.DeletePlayer(targetToken, adminToken, reg); gerr != nil {
		t.Fatalf("admin delete: %v", gerr)
	}
	if players.ByID(target.ID) != nil {
		t.Error("deleted player still registered")
	}
}
