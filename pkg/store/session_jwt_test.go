package store

import (
	"testing"
	"time"
)

func TestJWTSessionRoundTrip(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret-0123456789", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("GetUserIDByToken: %v", err)
	}
	if !ok || uid != "user-1" {
		t.Fatalf("expected user-1 session, got uid=%q ok=%v", uid, ok)
	}
}

func TestJWTSessionRejectsGarbage(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret-0123456789", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}
	for _, tok := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, ok, _ := s.GetUserIDByToken(tok); ok {
			t.Fatalf("token %q should not validate", tok)
		}
	}
}

func TestJWTSessionRejectsForeignSignature(t *testing.T) {
	a, _ := NewJWTSessionStore("secret-aaaaaaaaaaaa", time.Hour, nil)
	b, _ := NewJWTSessionStore("secret-bbbbbbbbbbbb", time.Hour, nil)

	token, err := a.NewSession("user-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if _, ok, _ := b.GetUserIDByToken(token); ok {
		t.Fatal("token signed with another secret should not validate")
	}
}

func TestJWTSessionLogoutRevokes(t *testing.T) {
	s, err := NewJWTSessionStore("test-secret-0123456789", time.Hour, NewMemoryTokenRevoker())
	if err != nil {
		t.Fatalf("NewJWTSessionStore: %v", err)
	}
	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatal("revoked token should not validate")
	}
}
