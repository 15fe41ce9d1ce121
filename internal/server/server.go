package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ecojourney/internal/app"
	"ecojourney/internal/ratelimit"
	"ecojourney/internal/util"
	"ecojourney/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	RegisterRateLimitPerMinute int
	LoginRateLimitPerMinute    int
	PasswordRateLimitPerMinute int
	MaxUploadBytes             int64
	TrustedProxyCIDRs          []string
}

// Server exposes HTTP endpoints for the backend.
type Server struct {
	app             *app.App
	mux             *http.ServeMux
	maxUploadBytes  int64
	trustedProxies  *util.TrustedProxies
	registerLimiter *ratelimit.FixedWindowLimiter
	loginLimiter    *ratelimit.FixedWindowLimiter
	passwordLimiter *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured.
func New(cfg Config) (*Server, error) {
	registerLimit := cfg.RegisterRateLimitPerMinute
	if registerLimit <= 0 {
		registerLimit = 5
	}
	loginLimit := cfg.LoginRateLimitPerMinute
	if loginLimit <= 0 {
		loginLimit = 10
	}
	passwordLimit := cfg.PasswordRateLimitPerMinute
	if passwordLimit <= 0 {
		passwordLimit = 10
	}
	rateWindow := time.Minute
	newLimiter := func(name string, limit int) (*ratelimit.FixedWindowLimiter, error) {
		prefix := "ecojourney:ratelimit:" + name
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, prefix, limit, rateWindow)
		if err != nil {
			return nil, fmt.Errorf("init %s limiter: %w", name, err)
		}
		return limiter, nil
	}
	registerLimiter, err := newLimiter("register", registerLimit)
	if err != nil {
		return nil, err
	}
	loginLimiter, err := newLimiter("login", loginLimit)
	if err != nil {
		return nil, err
	}
	passwordLimiter, err := newLimiter("password", passwordLimit)
	if err != nil {
		return nil, err
	}
	trustedProxies, err := util.NewTrustedProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxy CIDRs: %w", err)
	}
	s := &Server{
		app:             cfg.App,
		mux:             http.NewServeMux(),
		maxUploadBytes:  normalizeMaxBytes(cfg.MaxUploadBytes),
		trustedProxies:  trustedProxies,
		registerLimiter: registerLimiter,
		loginLimiter:    loginLimiter,
		passwordLimiter: passwordLimiter,
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/auth/register", s.handleRegister)
	s.mux.HandleFunc("/api/auth/login", s.handleLogin)
	s.mux.Handle("/api/auth/logout", s.authenticated(s.handleLogout))
	s.mux.HandleFunc("/api/auth/password-reset/request", s.handleResetRequest)
	s.mux.HandleFunc("/api/auth/password-reset/confirm", s.handleResetConfirm)
	s.mux.Handle("/api/users/me", s.authenticated(s.handleMe))
	s.mux.Handle("/api/users/me/password", s.authenticated(s.handleChangePassword))

	// content & workflow
	s.mux.Handle("/api/content", s.authenticated(s.handleContent))
	s.mux.Handle("/api/content/", s.authenticated(s.handleContentByID))
	s.mux.Handle("/api/workflows/pending", s.authenticated(s.handlePendingApprovals))

	// categories
	s.mux.Handle("/api/categories", s.authenticated(s.handleCategories))
	s.mux.Handle("/api/categories/", s.authenticated(s.handleCategoryByID))

	// admin
	s.mux.Handle("/api/admin/users", s.adminOnly(s.handleAdminUsers))
	s.mux.Handle("/api/admin/users/", s.adminOnly(s.handleAdminUserByID))
	s.mux.Handle("/api/admin/roles", s.adminOnly(s.handleAdminRoles))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// auth wrappers
type authHandler func(http.ResponseWriter, *http.Request, domain.User)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "api.authorize", "fail")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, user)
	})
}

func (s *Server) adminOnly(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authorize(r)
		if !ok {
			s.audit(r, "api.admin.authorize", "fail", "reason", "unauthorized")
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if user.Role != domain.RoleAdmin {
			s.audit(r, "api.admin.authorize", "fail", "user_id", user.ID, "reason", "forbidden")
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		s.audit(r, "api.admin.authorize", "success", "user_id", user.ID)
		next(w, r, user)
	})
}

func (s *Server) authorize(r *http.Request) (domain.User, bool) {
	token, ok := bearerToken(r)
	if !ok {
		return domain.User{}, false
	}
	return s.app.UserFromToken(token)
}

// auth handlers
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.registerLimiter, "too many registration attempts") {
		s.audit(r, "api.register", "rate_limited")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "api.register", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	user, token, err := s.app.Register(app.RegisterInput{
		Username:     req.Username,
		Email:        req.Email,
		Password:     req.Password,
		Organization: req.Organization,
		Phone:        req.Phone,
	})
	if err != nil {
		s.audit(r, "api.register", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.register", "success", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.loginLimiter, "too many login attempts") {
		s.audit(r, "api.login", "rate_limited")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		s.audit(r, "api.login", "fail", "reason", "invalid_json")
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	user, token, err := s.app.Login(identifier, req.Password)
	if err != nil {
		s.audit(r, "api.login", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.login", "success", "user_id", user.ID)
	writeJSON(w, http.StatusOK, authResponse{Token: token, User: user})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(token); err != nil {
		s.audit(r, "api.logout", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.logout", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleResetRequest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.passwordLimiter, "too many password reset attempts") {
		s.audit(r, "api.password.reset.request", "rate_limited")
		return
	}
	var req resetRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.RequestPasswordReset(req.Email); err != nil {
		s.audit(r, "api.password.reset.request", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	// same response whether or not the address exists
	s.audit(r, "api.password.reset.request", "success")
	writeJSON(w, http.StatusAccepted, map[string]string{
		"status": "if the address is registered, a reset email has been sent",
	})
}

func (s *Server) handleResetConfirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.passwordLimiter, "too many password reset attempts") {
		s.audit(r, "api.password.reset.confirm", "rate_limited")
		return
	}
	var req resetConfirmRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Token == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "token and newPassword are required")
		return
	}
	if err := s.app.ConfirmPasswordReset(req.Token, req.NewPassword); err != nil {
		s.audit(r, "api.password.reset.confirm", "fail", "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.password.reset.confirm", "success")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user domain.User) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, user)
	case http.MethodPatch:
		var req updateMeRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		updated, err := s.app.UpdateProfile(user, app.ProfileUpdate{
			Email:        req.Email,
			Organization: req.Organization,
			Phone:        req.Phone,
		})
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, s.passwordLimiter, "too many password change attempts") {
		s.audit(r, "api.password.change", "rate_limited")
		return
	}
	var req changePasswordRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		writeError(w, http.StatusBadRequest, "currentPassword and newPassword are required")
		return
	}
	if err := s.app.ChangePassword(user.ID, req.CurrentPassword, req.NewPassword); err != nil {
		s.audit(r, "api.password.change", "fail", "user_id", user.ID, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.password.change", "success", "user_id", user.ID)
	w.WriteHeader(http.StatusNoContent)
}

// admin handlers
func (s *Server) handleAdminUsers(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	users, err := s.app.ListUsers(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": users,
		"count": len(users),
	})
}

func (s *Server) handleAdminUserByID(w http.ResponseWriter, r *http.Request, user domain.User) {
	id := strings.TrimPrefix(r.URL.Path, "/api/admin/users/")
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPatch {
		methodNotAllowed(w)
		return
	}
	var req adminUserUpdateRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	var role *domain.RoleName
	if req.Role != "" {
		parsed, ok := parseRoleName(req.Role)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid role")
			return
		}
		role = &parsed
	}
	if role == nil && req.Active == nil {
		writeError(w, http.StatusBadRequest, "role or active is required")
		return
	}
	updated, err := s.app.AdminUpdateUser(user, id, role, req.Active)
	if err != nil {
		s.audit(r, "api.admin.user.update", "fail", "user_id", user.ID, "target_id", id, "reason", err.Error())
		writeAppError(w, err)
		return
	}
	s.audit(r, "api.admin.user.update", "success", "user_id", user.ID, "target_id", id)
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAdminRoles(w http.ResponseWriter, r *http.Request, user domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	roles, err := s.app.ListRoles(user)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": roles,
		"count": len(roles),
	})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

type registerRequest struct {
	Username     string `json:"username"`
	Email        string `json:"email"`
	Password     string `json:"password"`
	Organization string `json:"organization"`
	Phone        string `json:"phone"`
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type updateMeRequest struct {
	Email        *string `json:"email"`
	Organization *string `json:"organization"`
	Phone        *string `json:"phone"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type adminUserUpdateRequest struct {
	Role   string `json:"role"`
	Active *bool  `json:"active"`
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func parseRoleName(role string) (domain.RoleName, bool) {
	switch strings.ToLower(strings.TrimSpace(role)) {
	case string(domain.RoleAdmin):
		return domain.RoleAdmin, true
	case string(domain.RoleContentManager):
		return domain.RoleContentManager, true
	case string(domain.RoleContentProducer):
		return domain.RoleContentProducer, true
	default:
		return "", false
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeAppError maps application error kinds to HTTP statuses.
func writeAppError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrInvalidCredentials),
		errors.Is(err, app.ErrAccountLocked),
		errors.Is(err, app.ErrAccountDisabled):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, app.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInvalidResetToken):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		slog.Error("internal error", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 100 * 1024 * 1024
	}
	return value
}

func (s *Server) audit(r *http.Request, event, outcome string, attrs ...any) {
	logAttrs := []any{
		"event", event,
		"outcome", outcome,
		"path", r.URL.Path,
		"method", r.Method,
		"ip", util.ClientIP(r, s.trustedProxies),
	}
	logAttrs = append(logAttrs, attrs...)
	if outcome == "success" {
		slog.Info("security_event", logAttrs...)
		return
	}
	slog.Warn("security_event", logAttrs...)
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, limiter *ratelimit.FixedWindowLimiter, msg string) bool {
	key := r.URL.Path + "|" + util.ClientIP(r, s.trustedProxies)
	if limiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}
