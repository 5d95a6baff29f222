package main

import (
	"strings"
	"testing"
	"time"
)

func TestAuthenticatorShape(t *testing.T) {
	for i := 0; i < 50; i++ {
		tok := NewToken([]string{"alice", "hunter22"}, 24)
		auth := tok.Authenticator

		if len(auth) < 20 {
			t.Errorf("authenticator %q shorter than 20", auth)
		}
		if len(auth)%10 != 0 {
			t.Errorf("authenticator %q length %d not a multiple of 10", auth, len(auth))
		}
		if strings.Count(auth, ".") != 1 {
			t.Errorf("authenticator %q should contain exactly one '.'", auth)
		}
		for _, c := range auth {
			if c == '.' {
				continue
			}
			if forbiddenChar(int(c)) {
				t.Errorf("authenticator %q contains reserved char %q", auth, c)
			}
			if c < 33 || c > 126 {
				t.Errorf("authenticator %q contains non-printable char %d", auth, c)
			}
		}
	}
}

func TestSingleSeedAuthenticator(t *testing.T) {
	tok := NewToken([]string{"session-name"}, 1)
	if len(tok.Authenticator) < 20 || len(tok.Authenticator)%10 != 0 {
		t.Errorf("single-seed authenticator %q violates length rules", tok.Authenticator)
	}
}

func TestTokenValidity(t *testing.T) {
	tok := NewToken([]string{"bob", "pw"}, 1)
	if !tok.IsValid() {
		t.Error("freshly minted token should be valid")
	}

	expired := Token{Authenticator: "x", Expiration: time.Now().Add(-time.Minute).UnixMilli()}
	if expired.IsValid() {
		t.Error("past-expiry token should be invalid")
	}
}

func TestBlankToken(t *testing.T) {
	b := NewBlankToken()
	if b.Authenticator != "" {
		t.Errorf("blank token has authenticator %q", b.Authenticator)
	}
	if !b.IsValid() {
		t.Error("blank token should not be expired on issue")
	}
}

func TestTokenEqual(t *testing.T) {
	a := Token{Authenticator: "abc", Expiration: 1}
	b := Token{Authenticator: "abc", Expiration: 999}
	c := Token{Authenticator: "xyz", Expiration: 1}
	if !a.Equal(b) {
		t.Error("tokens with the same authenticator should be equal")
	}
	if a.Equal(c) {
		t.Error("tokens with different authenticators should not be equal")
	}
}

func TestTokenStringRoundTrip(t *testing.T) {
	tok := NewToken([]string{"carol", "pw"}, 24)
	parsed, err := ParseTokenString(tok.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != tok {
		t.Errorf("round trip mismatch: %+v vs %+v", parsed, tok)
	}
}

func TestParseTokenStringErrors(t *testing.T) {
	if _, err := ParseTokenString("no-separator"); err == nil {
		t.Error("expected error for missing comma")
	}
	if _, err := ParseTokenString("auth,notanumber"); err == nil {
		t.Error("expected error for malformed expiration")
	}
}
