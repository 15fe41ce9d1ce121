package app

import (
	"errors"
	"testing"
	"time"

	"ecojourney/internal/util"
	"ecojourney/pkg/auth"
	"ecojourney/pkg/domain"
	"ecojourney/pkg/queue"
	"ecojourney/pkg/storage"
	"ecojourney/pkg/store"
)

const testPassword = "Str0ngPass!x"

type testEnv struct {
	app     *App
	store   *store.MemoryStore
	queue   *queue.MemoryQueue
	objects *storage.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dataStore := store.NewMemoryStore()
	jobQueue := queue.NewMemoryQueue()
	objects := storage.NewMemoryStore()
	a, err := New(Config{
		Store:    dataStore,
		Sessions: store.NewMemorySessionStore(),
		Objects:  objects,
		Queue:    jobQueue,
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return &testEnv{app: a, store: dataStore, queue: jobQueue, objects: objects}
}

// seedUser writes a user with a known password directly to the store.
func (e *testEnv) seedUser(t *testing.T, username string, role domain.RoleName) domain.User {
	t.Helper()
	hash, err := auth.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        username + "@eco.example",
		PasswordHash: hash,
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.SaveUser(user); err != nil {
		t.Fatalf("save user: %v", err)
	}
	return user
}

func (e *testEnv) notificationsOfKind(kind domain.NotificationKind) []domain.Notification {
	var out []domain.Notification
	for _, n := range e.queue.Enqueued() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	env := newTestEnv(t)

	first, token, err := env.app.Register(RegisterInput{
		Username: "root", Email: "root@eco.example", Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if first.Role != domain.RoleAdmin {
		t.Fatalf("expected first user to be admin, got %s", first.Role)
	}
	if token == "" {
		t.Fatal("expected a session token")
	}

	second, _, err := env.app.Register(RegisterInput{
		Username: "alice", Email: "alice@eco.example", Password: testPassword,
	})
	if err != nil {
		t.Fatalf("register second: %v", err)
	}
	if second.Role != domain.RoleContentProducer {
		t.Fatalf("expected content_producer, got %s", second.Role)
	}

	welcomes := env.notificationsOfKind(domain.NotifyWelcome)
	if len(welcomes) != 2 {
		t.Fatalf("expected 2 welcome notifications, got %d", len(welcomes))
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", domain.RoleContentProducer)

	_, _, err := env.app.Register(RegisterInput{
		Username: "alice", Email: "other@eco.example", Password: testPassword,
	})
	if !isConflict(err) {
		t.Fatalf("expected conflict for duplicate username, got %v", err)
	}
	_, _, err = env.app.Register(RegisterInput{
		Username: "alice2", Email: "alice@eco.example", Password: testPassword,
	})
	if !isConflict(err) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.app.Register(RegisterInput{
		Username: "bob", Email: "bob@eco.example", Password: "short",
	})
	if !isValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginByUsernameAndEmail(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", domain.RoleContentProducer)

	if _, _, err := env.app.Login("alice", testPassword); err != nil {
		t.Fatalf("login by username: %v", err)
	}
	if _, _, err := env.app.Login("alice@eco.example", testPassword); err != nil {
		t.Fatalf("login by email: %v", err)
	}
	if _, _, err := env.app.Login("alice", "Wrong1ngPass!"); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestLoginLockoutAfterFiveFailures(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)

	for i := 0; i < 5; i++ {
		if _, _, err := env.app.Login("alice", "Wrong1ngPass!"); err != ErrInvalidCredentials {
			t.Fatalf("attempt %d: expected invalid credentials, got %v", i+1, err)
		}
	}
	// correct password no longer helps while locked
	if _, _, err := env.app.Login("alice", testPassword); err != ErrAccountLocked {
		t.Fatalf("expected account locked, got %v", err)
	}

	// expire the lock and try again
	stored, _, _ := env.store.GetUserByID(user.ID)
	past := time.Now().UTC().Add(-time.Minute)
	stored.LockedUntil = &past
	if err := env.store.SaveUser(stored); err != nil {
		t.Fatalf("save user: %v", err)
	}
	if _, _, err := env.app.Login("alice", testPassword); err != nil {
		t.Fatalf("login after lock expiry: %v", err)
	}
}

func TestSessionLifecycle(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", domain.RoleContentProducer)

	user, token, err := env.app.Login("alice", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, ok := env.app.UserFromToken(token)
	if !ok || got.ID != user.ID {
		t.Fatalf("expected session to resolve to %s", user.ID)
	}
	if err := env.app.Logout(token); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := env.app.UserFromToken(token); ok {
		t.Fatal("expected session to be gone after logout")
	}
}

func TestDeactivatedUserLosesAccess(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "root", domain.RoleAdmin)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)

	_, token, err := env.app.Login("alice", testPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	inactive := false
	if _, err := env.app.AdminUpdateUser(admin, user.ID, nil, &inactive); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, ok := env.app.UserFromToken(token); ok {
		t.Fatal("expected deactivated user's session to stop resolving")
	}
	if _, _, err := env.app.Login("alice", testPassword); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials for deactivated account, got %v", err)
	}
	if got := env.notificationsOfKind(domain.NotifyAccountDisabled); len(got) != 1 || got[0].UserID != user.ID {
		t.Fatalf("expected one account_disabled notification for %s, got %+v", user.ID, got)
	}
}

func TestAdminUpdateUserRole(t *testing.T) {
	env := newTestEnv(t)
	admin := env.seedUser(t, "root", domain.RoleAdmin)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)

	role := domain.RoleContentManager
	updated, err := env.app.AdminUpdateUser(admin, user.ID, &role, nil)
	if err != nil {
		t.Fatalf("update role: %v", err)
	}
	if updated.Role != domain.RoleContentManager {
		t.Fatalf("expected content_manager, got %s", updated.Role)
	}
	if got := env.notificationsOfKind(domain.NotifyRoleAssigned); len(got) != 1 {
		t.Fatalf("expected one role_assigned notification, got %d", len(got))
	}

	// self-demotion and self-deactivation are rejected
	producer := domain.RoleContentProducer
	if _, err := env.app.AdminUpdateUser(admin, admin.ID, &producer, nil); !isConflict(err) {
		t.Fatalf("expected conflict changing own role, got %v", err)
	}
	inactive := false
	if _, err := env.app.AdminUpdateUser(admin, admin.ID, nil, &inactive); !isConflict(err) {
		t.Fatalf("expected conflict deactivating self, got %v", err)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	producer := env.seedUser(t, "alice", domain.RoleContentProducer)
	other := env.seedUser(t, "bob", domain.RoleContentProducer)

	if _, err := env.app.ListUsers(producer); err != ErrForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
	role := domain.RoleAdmin
	if _, err := env.app.AdminUpdateUser(producer, other.ID, &role, nil); err != ErrForbidden {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)

	if err := env.app.ChangePassword(user.ID, "Wrong1ngPass!", "An0therPass!x"); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if err := env.app.ChangePassword(user.ID, testPassword, testPassword); !isValidation(err) {
		t.Fatalf("expected validation error for unchanged password, got %v", err)
	}
	if err := env.app.ChangePassword(user.ID, testPassword, "An0therPass!x"); err != nil {
		t.Fatalf("change password: %v", err)
	}
	if _, _, err := env.app.Login("alice", "An0therPass!x"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)

	if err := env.app.RequestPasswordReset("alice@eco.example"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	resets := env.notificationsOfKind(domain.NotifyPasswordReset)
	if len(resets) != 1 || resets[0].UserID != user.ID || resets[0].Token == "" {
		t.Fatalf("expected one reset notification with token, got %+v", resets)
	}

	token := resets[0].Token
	if err := env.app.ConfirmPasswordReset(token, "An0therPass!x"); err != nil {
		t.Fatalf("confirm reset: %v", err)
	}
	if _, _, err := env.app.Login("alice", "An0therPass!x"); err != nil {
		t.Fatalf("login with reset password: %v", err)
	}

	// token is single-use
	if err := env.app.ConfirmPasswordReset(token, "Th1rdPass!xx"); err != ErrInvalidResetToken {
		t.Fatalf("expected invalid token on reuse, got %v", err)
	}
}

func TestPasswordResetUnknownEmailIsSilent(t *testing.T) {
	env := newTestEnv(t)
	if err := env.app.RequestPasswordReset("ghost@eco.example"); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}
	if got := env.notificationsOfKind(domain.NotifyPasswordReset); len(got) != 0 {
		t.Fatalf("expected no reset notification, got %d", len(got))
	}
}

func TestPasswordResetExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)

	expired := domain.PasswordResetToken{
		ID:        util.NewID(),
		UserID:    user.ID,
		Token:     util.NewID(),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
		CreatedAt: time.Now().UTC().Add(-25 * time.Hour),
	}
	if err := env.store.SavePasswordResetToken(expired); err != nil {
		t.Fatalf("save token: %v", err)
	}
	if err := env.app.ConfirmPasswordReset(expired.Token, "An0therPass!x"); err != ErrInvalidResetToken {
		t.Fatalf("expected invalid token for expired reset, got %v", err)
	}
}

func TestNewResetRequestReplacesOldToken(t *testing.T) {
	env := newTestEnv(t)
	env.seedUser(t, "alice", domain.RoleContentProducer)

	if err := env.app.RequestPasswordReset("alice@eco.example"); err != nil {
		t.Fatalf("first request: %v", err)
	}
	if err := env.app.RequestPasswordReset("alice@eco.example"); err != nil {
		t.Fatalf("second request: %v", err)
	}
	resets := env.notificationsOfKind(domain.NotifyPasswordReset)
	if len(resets) != 2 {
		t.Fatalf("expected 2 reset notifications, got %d", len(resets))
	}
	if err := env.app.ConfirmPasswordReset(resets[0].Token, "An0therPass!x"); err != ErrInvalidResetToken {
		t.Fatalf("expected first token to be superseded, got %v", err)
	}
	if err := env.app.ConfirmPasswordReset(resets[1].Token, "An0therPass!x"); err != nil {
		t.Fatalf("confirm with latest token: %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)
	env.seedUser(t, "bob", domain.RoleContentProducer)

	org := "Green Org"
	updated, err := env.app.UpdateProfile(user, ProfileUpdate{Organization: &org})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Organization != "Green Org" {
		t.Fatalf("expected organization update, got %q", updated.Organization)
	}

	taken := "bob@eco.example"
	if _, err := env.app.UpdateProfile(user, ProfileUpdate{Email: &taken}); !isConflict(err) {
		t.Fatalf("expected conflict for taken email, got %v", err)
	}
	bad := "not-an-email"
	if _, err := env.app.UpdateProfile(user, ProfileUpdate{Email: &bad}); !isValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func isConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

func isValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

func TestPasswordResetRefusedForDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	user := env.seedUser(t, "alice", domain.RoleContentProducer)

	if err := env.app.RequestPasswordReset("alice@eco.example"); err != nil {
		t.Fatalf("request reset: %v", err)
	}
	resets := env.notificationsOfKind(domain.NotifyPasswordReset)
	if len(resets) != 1 || resets[0].Token == "" {
		t.Fatalf("expected one reset notification with token, got %+v", resets)
	}

	// account disabled between request and confirm
	user.Active = false
	if err := env.store.SaveUser(user); err != nil {
		t.Fatalf("disable user: %v", err)
	}
	err := env.app.ConfirmPasswordReset(resets[0].Token, "An0therPass!x")
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}
}
