package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"

	"ecojourney/internal/app"
	"ecojourney/pkg/domain"
	"ecojourney/pkg/queue"
	"ecojourney/pkg/storage"
	"ecojourney/pkg/store"
)

const testPassword = "Str0ngPass!x"

func newTestServer(t *testing.T, mutate func(*Config)) *httptest.Server {
	t.Helper()
	redis := miniredis.RunT(t)
	a, err := app.New(app.Config{
		Store:    store.NewMemoryStore(),
		Sessions: store.NewMemorySessionStore(),
		Objects:  storage.NewMemoryStore(),
		Queue:    queue.NewMemoryQueue(),
	})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	cfg := Config{
		App:       a,
		RedisAddr: redis.Addr(),
		// generous defaults so functional tests never trip the limiter
		RegisterRateLimitPerMinute: 100,
		LoginRateLimitPerMinute:    100,
		PasswordRateLimitPerMinute: 100,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url, token string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func getJSON(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodeAuth(t *testing.T, resp *http.Response) authResponse {
	t.Helper()
	defer resp.Body.Close()
	var out authResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode auth response: %v", err)
	}
	return out
}

func register(t *testing.T, baseURL, username string) authResponse {
	t.Helper()
	resp := postJSON(t, baseURL+"/api/auth/register", "", registerRequest{
		Username: username,
		Email:    username + "@eco.example",
		Password: testPassword,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d", username, resp.StatusCode)
	}
	return decodeAuth(t, resp)
}

func TestRegisterLoginLogoutFlow(t *testing.T) {
	ts := newTestServer(t, nil)

	created := register(t, ts.URL, "root")
	if created.User.Role != domain.RoleAdmin {
		t.Fatalf("first user should be admin, got %s", created.User.Role)
	}
	if created.Token == "" {
		t.Fatal("expected a session token on register")
	}

	resp := postJSON(t, ts.URL+"/api/auth/login", "", loginRequest{Username: "root", Password: testPassword})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login expected 200, got %d", resp.StatusCode)
	}
	session := decodeAuth(t, resp)

	resp = getJSON(t, ts.URL+"/api/users/me", session.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me with token expected 200, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/api/auth/logout", session.Token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout expected 204, got %d", resp.StatusCode)
	}

	resp = getJSON(t, ts.URL+"/api/users/me", session.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("me after logout expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthErrorStatusCodes(t *testing.T) {
	ts := newTestServer(t, nil)
	register(t, ts.URL, "root")

	// wrong password
	resp := postJSON(t, ts.URL+"/api/auth/login", "", loginRequest{Username: "root", Password: "WrongPass!1"})
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad password expected 401, got %d", resp.StatusCode)
	}

	// duplicate username
	resp = postJSON(t, ts.URL+"/api/auth/register", "", registerRequest{
		Username: "root", Email: "other@eco.example", Password: testPassword,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate username expected 409, got %d", resp.StatusCode)
	}

	// weak password
	resp = postJSON(t, ts.URL+"/api/auth/register", "", registerRequest{
		Username: "weak", Email: "weak@eco.example", Password: "short",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("weak password expected 400, got %d", resp.StatusCode)
	}

	// malformed body
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/auth/login", bytes.NewReader([]byte("{")))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("malformed body expected 400, got %d", resp.StatusCode)
	}
}

func TestAdminRoutesRequireAdminRole(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := register(t, ts.URL, "root")
	producer := register(t, ts.URL, "alice")
	if producer.User.Role != domain.RoleContentProducer {
		t.Fatalf("later users should be producers, got %s", producer.User.Role)
	}

	resp := getJSON(t, ts.URL+"/api/admin/users", "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token expected 401, got %d", resp.StatusCode)
	}

	resp = getJSON(t, ts.URL+"/api/admin/users", producer.Token)
	resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("producer expected 403, got %d", resp.StatusCode)
	}

	resp = getJSON(t, ts.URL+"/api/admin/users", admin.Token)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin expected 200, got %d", resp.StatusCode)
	}
	var out struct {
		Items []domain.User `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode users: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected 2 users, got %d", len(out.Items))
	}
}

func TestAdminPromotesUserRole(t *testing.T) {
	ts := newTestServer(t, nil)
	admin := register(t, ts.URL, "root")
	producer := register(t, ts.URL, "mia")

	req, _ := http.NewRequest(http.MethodPatch, ts.URL+"/api/admin/users/"+producer.User.ID,
		bytes.NewReader([]byte(`{"role":"content_manager"}`)))
	req.Header.Set("Authorization", "Bearer "+admin.Token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var updated domain.User
	if err := json.NewDecoder(resp.Body).Decode(&updated); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if updated.Role != domain.RoleContentManager {
		t.Fatalf("expected content_manager, got %s", updated.Role)
	}
}

func TestPasswordResetRequestIsNonRevealing(t *testing.T) {
	ts := newTestServer(t, nil)
	register(t, ts.URL, "root")

	for _, email := range []string{"root@eco.example", "ghost@eco.example"} {
		resp := postJSON(t, ts.URL+"/api/auth/password-reset/request", "", resetRequest{Email: email})
		resp.Body.Close()
		if resp.StatusCode != http.StatusAccepted {
			t.Fatalf("reset request for %s expected 202, got %d", email, resp.StatusCode)
		}
	}
}
