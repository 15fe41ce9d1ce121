package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"ecojourney/internal/util"
	"ecojourney/pkg/auth"
	"ecojourney/pkg/domain"
	"ecojourney/pkg/queue"
	"ecojourney/pkg/storage"
	"ecojourney/pkg/store"
)

const (
	maxLoginAttempts = 5
	lockoutWindow    = 15 * time.Minute
	resetTokenTTL    = 24 * time.Hour
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration
	JWTSecret     string
	Store         store.Store
	Sessions      store.SessionStore
	Objects       storage.ObjectStore
	Queue         queue.Queue
	MaxUploadSize int64
}

// App is the core application service wiring together storage, workflow and
// notification logic.
type App struct {
	store         store.Store
	sessions      store.SessionStore
	objects       storage.ObjectStore
	queue         queue.Queue
	maxUploadSize int64
}

// New constructs the application with database storage and session management.
func New(cfg Config) (*App, error) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.MaxUploadSize <= 0 {
		cfg.MaxUploadSize = 100 << 20
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	sessionStore := cfg.Sessions
	if sessionStore == nil {
		switch {
		case strings.TrimSpace(cfg.JWTSecret) != "":
			revoker := store.NewRedisTokenRevoker(cfg.RedisAddr, cfg.RedisPassword)
			var err error
			sessionStore, err = store.NewJWTSessionStore(cfg.JWTSecret, cfg.SessionTTL, revoker)
			if err != nil {
				return nil, fmt.Errorf("init jwt session store: %w", err)
			}
		case strings.TrimSpace(cfg.RedisAddr) != "":
			sessionStore = store.NewRedisSessionStore(cfg.RedisAddr, cfg.RedisPassword, cfg.SessionTTL)
		default:
			return nil, fmt.Errorf("session store required (jwtSecret or redisAddr)")
		}
	}

	if cfg.Objects == nil {
		return nil, fmt.Errorf("object store required")
	}
	if cfg.Queue == nil {
		return nil, fmt.Errorf("notification queue required")
	}

	return &App{
		store:         dataStore,
		sessions:      sessionStore,
		objects:       cfg.Objects,
		queue:         cfg.Queue,
		maxUploadSize: cfg.MaxUploadSize,
	}, nil
}

// RegisterInput carries the self-registration fields.
type RegisterInput struct {
	Username     string
	Email        string
	Password     string
	Organization string
	Phone        string
}

// Register creates a new account with the content producer role and issues a
// session token. The first registered account becomes the administrator.
func (a *App) Register(in RegisterInput) (domain.User, string, error) {
	username := strings.TrimSpace(in.Username)
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if username == "" {
		return domain.User{}, "", fmt.Errorf("%w: username required", ErrValidation)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	if err := auth.ValidatePassword(in.Password); err != nil {
		return domain.User{}, "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if exists, err := a.store.HasUsername(username); err != nil {
		return domain.User{}, "", fmt.Errorf("check username: %w", err)
	} else if exists {
		return domain.User{}, "", fmt.Errorf("%w: username already taken", ErrConflict)
	}
	if exists, err := a.store.HasUserEmail(email); err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	} else if exists {
		return domain.User{}, "", fmt.Errorf("%w: email already registered", ErrConflict)
	}

	role := domain.RoleContentProducer
	existing, err := a.store.ListUsers()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("list users: %w", err)
	}
	if len(existing) == 0 {
		role = domain.RoleAdmin
	}

	passwordHash, err := auth.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		Organization: strings.TrimSpace(in.Organization),
		Phone:        strings.TrimSpace(in.Phone),
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}

	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	a.notify(domain.Notification{Kind: domain.NotifyWelcome, UserID: user.ID})
	return user, token, nil
}

// Login validates credentials and issues a session token. Five consecutive
// failures lock the account for fifteen minutes.
func (a *App) Login(identifier, password string) (domain.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	user, ok, err := a.lookupUser(identifier)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, "", ErrInvalidCredentials
	}
	now := time.Now().UTC()
	if user.Locked(now) {
		return domain.User{}, "", ErrAccountLocked
	}
	if !user.Active {
		return domain.User{}, "", ErrInvalidCredentials
	}
	if !auth.CheckPassword(password, user.PasswordHash) {
		if err := a.recordFailedLogin(user, now); err != nil {
			slog.Error("record failed login", "user_id", user.ID, "err", err)
		}
		return domain.User{}, "", ErrInvalidCredentials
	}

	if user.LoginAttempts != 0 || user.LockedUntil != nil {
		user.LoginAttempts = 0
		user.LockedUntil = nil
		user.UpdatedAt = now
		if err := a.store.SaveUser(user); err != nil {
			return domain.User{}, "", fmt.Errorf("reset login attempts: %w", err)
		}
	}
	token, err := a.sessions.NewSession(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

func (a *App) lookupUser(identifier string) (domain.User, bool, error) {
	if strings.Contains(identifier, "@") {
		return a.store.GetUserByEmail(strings.ToLower(identifier))
	}
	return a.store.GetUserByUsername(identifier)
}

func (a *App) recordFailedLogin(user domain.User, now time.Time) error {
	user.LoginAttempts++
	if user.LoginAttempts >= maxLoginAttempts {
		until := now.Add(lockoutWindow)
		user.LockedUntil = &until
		user.LoginAttempts = 0
	}
	user.UpdatedAt = now
	return a.store.SaveUser(user)
}

// UserFromToken resolves a user from a session token. Deactivated accounts do
// not resolve, which also cuts off their existing sessions.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found || !user.Active {
		return domain.User{}, false
	}
	return user, true
}

// Logout removes a session token.
func (a *App) Logout(token string) error {
	return a.sessions.DeleteSession(token)
}

// ProfileUpdate carries optional profile changes.
type ProfileUpdate struct {
	Email        *string
	Organization *string
	Phone        *string
}

// UpdateProfile updates the current user's own profile fields.
func (a *App) UpdateProfile(user domain.User, update ProfileUpdate) (domain.User, error) {
	if update.Email != nil {
		email := strings.TrimSpace(strings.ToLower(*update.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return domain.User{}, fmt.Errorf("%w: invalid email address", ErrValidation)
		}
		if email != user.Email {
			existing, ok, err := a.store.GetUserByEmail(email)
			if err != nil {
				return domain.User{}, fmt.Errorf("check email: %w", err)
			}
			if ok && existing.ID != user.ID {
				return domain.User{}, fmt.Errorf("%w: email already registered", ErrConflict)
			}
			user.Email = email
		}
	}
	if update.Organization != nil {
		user.Organization = strings.TrimSpace(*update.Organization)
	}
	if update.Phone != nil {
		user.Phone = strings.TrimSpace(*update.Phone)
	}
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ChangePassword updates the user's password after verifying the current one.
func (a *App) ChangePassword(userID, currentPassword, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	if !auth.CheckPassword(currentPassword, user.PasswordHash) {
		return ErrInvalidCredentials
	}
	if currentPassword == newPassword {
		return fmt.Errorf("%w: new password must differ from current password", ErrValidation)
	}
	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// RequestPasswordReset creates a single-use reset token and mails it to the
// account, when one exists. The result never reveals whether the address is
// registered.
func (a *App) RequestPasswordReset(email string) error {
	email = strings.TrimSpace(strings.ToLower(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return fmt.Errorf("%w: invalid email address", ErrValidation)
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !user.Active {
		return nil
	}
	now := time.Now().UTC()
	token := domain.PasswordResetToken{
		ID:        util.NewID(),
		UserID:    user.ID,
		Token:     util.NewID(),
		ExpiresAt: now.Add(resetTokenTTL),
		CreatedAt: now,
	}
	if err := a.store.SavePasswordResetToken(token); err != nil {
		return fmt.Errorf("save reset token: %w", err)
	}
	a.notify(domain.Notification{
		Kind:   domain.NotifyPasswordReset,
		UserID: user.ID,
		Token:  token.Token,
	})
	return nil
}

// ConfirmPasswordReset redeems a reset token and sets a new password. Tokens
// are single-use: a second confirm with the same token fails.
func (a *App) ConfirmPasswordReset(token, newPassword string) error {
	if err := auth.ValidatePassword(newPassword); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	reset, ok, err := a.store.GetPasswordResetToken(strings.TrimSpace(token))
	if err != nil {
		return fmt.Errorf("fetch reset token: %w", err)
	}
	if !ok || !reset.Valid(time.Now().UTC()) {
		return ErrInvalidResetToken
	}
	won, err := a.store.MarkResetTokenUsed(reset.ID)
	if err != nil {
		return fmt.Errorf("consume reset token: %w", err)
	}
	if !won {
		return ErrInvalidResetToken
	}
	user, ok, err := a.store.GetUserByID(reset.UserID)
	if err != nil {
		return fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return ErrInvalidResetToken
	}
	// the token proves mailbox control, so this reveals nothing new
	if !user.Active {
		return ErrAccountDisabled
	}
	passwordHash, err := auth.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	user.PasswordHash = passwordHash
	user.LoginAttempts = 0
	user.LockedUntil = nil
	user.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(user); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// ListUsers returns all users (admin use only).
func (a *App) ListUsers(actor domain.User) ([]domain.User, error) {
	if !Can(actor.Role, ActionUserManage) {
		return nil, ErrForbidden
	}
	return a.store.ListUsers()
}

// ListRoles returns the seeded role set.
func (a *App) ListRoles(actor domain.User) ([]domain.Role, error) {
	if !Can(actor.Role, ActionUserManage) {
		return nil, ErrForbidden
	}
	return a.store.ListRoles()
}

// AdminUpdateUser changes a user's role or active flag. Role changes and
// deactivations send the matching notification email.
func (a *App) AdminUpdateUser(admin domain.User, userID string, role *domain.RoleName, active *bool) (domain.User, error) {
	if !Can(admin.Role, ActionUserManage) {
		return domain.User{}, ErrForbidden
	}
	target, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if target.ID == admin.ID {
		if role != nil && *role != admin.Role {
			return domain.User{}, fmt.Errorf("%w: cannot change own role", ErrConflict)
		}
		if active != nil && !*active {
			return domain.User{}, fmt.Errorf("%w: cannot deactivate self", ErrConflict)
		}
	}
	roleChanged := false
	if role != nil && *role != target.Role {
		switch *role {
		case domain.RoleAdmin, domain.RoleContentManager, domain.RoleContentProducer:
		default:
			return domain.User{}, fmt.Errorf("%w: unknown role %q", ErrValidation, *role)
		}
		target.Role = *role
		roleChanged = true
	}
	deactivated := false
	if active != nil && *active != target.Active {
		target.Active = *active
		deactivated = !*active
	}
	target.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveUser(target); err != nil {
		return domain.User{}, fmt.Errorf("update user: %w", err)
	}
	if roleChanged {
		a.notify(domain.Notification{Kind: domain.NotifyRoleAssigned, UserID: target.ID})
	}
	if deactivated {
		a.notify(domain.Notification{Kind: domain.NotifyAccountDisabled, UserID: target.ID})
	}
	return target, nil
}

// notify enqueues an email job. Delivery is best-effort and never fails the
// calling operation.
func (a *App) notify(n domain.Notification) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := a.queue.Enqueue(ctx, n); err != nil {
		slog.Error("enqueue notification", "kind", n.Kind, "user_id", n.UserID, "err", err)
	}
}
