package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"ecojourney/pkg/domain"
	"ecojourney/pkg/mailer"
	"ecojourney/pkg/queue"
	"ecojourney/pkg/store"
)

func newDispatcher(t *testing.T, dataStore store.Store, m mailer.Mailer) *Dispatcher {
	t.Helper()
	d, err := New(Config{
		Store:   dataStore,
		Mailer:  m,
		Queue:   queue.NewMemoryQueue(),
		BaseURL: "https://eco.example/",
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return d
}

func seedUser(t *testing.T, s *store.MemoryStore) domain.User {
	t.Helper()
	user := domain.User{
		ID:        "user-1",
		Username:  "alice",
		Email:     "alice@eco.example",
		Role:      domain.RoleContentProducer,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return user
}

func TestDeliverSendsTemplatedMail(t *testing.T) {
	dataStore := store.NewMemoryStore()
	user := seedUser(t, dataStore)
	content := domain.Content{
		ID:        "content-1",
		Title:     "Ocean Cleanup",
		Type:      domain.TypeImage,
		Status:    domain.StatusRejected,
		CreatorID: user.ID,
	}
	if err := dataStore.CreateContent(content); err != nil {
		t.Fatalf("save content: %v", err)
	}
	rec := mailer.NewRecordingMailer()
	d := newDispatcher(t, dataStore, rec)

	err := d.Deliver(context.Background(), domain.Notification{
		Kind:      domain.NotifyRejected,
		UserID:    user.ID,
		ContentID: content.ID,
		Feedback:  "too blurry",
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	sent := rec.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sent))
	}
	if sent[0].To != user.Email {
		t.Fatalf("expected mail to %s, got %s", user.Email, sent[0].To)
	}
	if !strings.Contains(sent[0].Body, "Ocean Cleanup") || !strings.Contains(sent[0].Body, "too blurry") {
		t.Fatalf("body missing title or feedback: %q", sent[0].Body)
	}
}

func TestDeliverBuildsResetLink(t *testing.T) {
	dataStore := store.NewMemoryStore()
	user := seedUser(t, dataStore)
	rec := mailer.NewRecordingMailer()
	d := newDispatcher(t, dataStore, rec)

	err := d.Deliver(context.Background(), domain.Notification{
		Kind:   domain.NotifyPasswordReset,
		UserID: user.ID,
		Token:  "tok en+1",
	})
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	sent := rec.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 mail, got %d", len(sent))
	}
	want := "https://eco.example/reset-password?token=tok+en%2B1"
	if !strings.Contains(sent[0].Body, want) {
		t.Fatalf("expected escaped reset link %q in body: %q", want, sent[0].Body)
	}
}

func TestDeliverSkipsMissingRecipient(t *testing.T) {
	rec := mailer.NewRecordingMailer()
	d := newDispatcher(t, store.NewMemoryStore(), rec)

	// no error: a deleted recipient must not keep the job retrying
	if err := d.Deliver(context.Background(), domain.Notification{
		Kind:   domain.NotifyWelcome,
		UserID: "gone",
	}); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if len(rec.Sent()) != 0 {
		t.Fatal("expected no mail for missing recipient")
	}
}

func TestDeliverPropagatesSendFailure(t *testing.T) {
	dataStore := store.NewMemoryStore()
	user := seedUser(t, dataStore)
	rec := mailer.NewRecordingMailer()
	rec.Err = errors.New("smtp down")
	d := newDispatcher(t, dataStore, rec)

	err := d.Deliver(context.Background(), domain.Notification{
		Kind:   domain.NotifyWelcome,
		UserID: user.ID,
	})
	if err == nil || !strings.Contains(err.Error(), "smtp down") {
		t.Fatalf("expected send failure to surface, got %v", err)
	}
}
