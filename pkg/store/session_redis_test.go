package store

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestRedisSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)

	s := NewRedisSessionStore(mr.Addr(), "", time.Hour)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	uid, ok, err := s.GetUserIDByToken(token)
	if err != nil {
		t.Fatalf("GetUserIDByToken: %v", err)
	}
	if !ok || uid != "user-1" {
		t.Fatalf("expected user-1, got uid=%q ok=%v", uid, ok)
	}

	if err := s.DeleteSession(token); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatal("deleted session should not resolve")
	}
}

func TestRedisSessionExpiry(t *testing.T) {
	mr := miniredis.RunT(t)

	s := NewRedisSessionStore(mr.Addr(), "", time.Minute)

	token, err := s.NewSession("user-1")
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, ok, _ := s.GetUserIDByToken(token); ok {
		t.Fatal("expired session should not resolve")
	}
}
