package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/latchkey-io/latchkey/internal/adapters/memory"
	"github.com/latchkey-io/latchkey/internal/adapters/security"
	"github.com/latchkey-io/latchkey/internal/application"
	"github.com/latchkey-io/latchkey/internal/auth"
	"github.com/latchkey-io/latchkey/internal/domain"
	"github.com/latchkey-io/latchkey/internal/ports"
)

const (
	testEmail    = "alice@mail.com"
	testPassword = "open sesame"
)

// fixture wires a full router the way bootstrap does, over in-memory
// stores and a low bcrypt cost.
type fixture struct {
	server   *httptest.Server
	strategy auth.Strategy
	users    *memory.UserDirectory
}

func newFixture(t *testing.T, authType string) *fixture {
	t.Helper()

	users := memory.NewUserDirectory()
	hasher := security.NewBcryptHasher(4)
	hash, err := hasher.Hash(testPassword)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	if _, err := users.Create(context.Background(), domain.User{
		ID:           "u1",
		Email:        testEmail,
		PasswordHash: hash,
	}); err != nil {
		t.Fatalf("create user: %v", err)
	}

	store := memory.NewSessionStore()
	strategy, err := auth.NewRegistry().Create(authType, auth.Config{SessionDuration: time.Hour}, auth.Collaborators{
		Users:           users,
		Verifier:        hasher,
		Sessions:        store,
		DurableSessions: store,
	})
	if err != nil {
		t.Fatalf("create strategy: %v", err)
	}

	manager, _ := strategy.(auth.SessionManager)
	svc := application.NewService(application.Dependencies{
		Users:    users,
		Writer:   users,
		Verifier: hasher,
		Sessions: store,
		Manager:  manager,
	})

	handler := NewHandler(svc, strategy, auth.DefaultCookieName, time.Hour)
	guard := NewAuthMiddleware(strategy, DefaultExcludedPaths)
	server := httptest.NewServer(NewRouter(handler, guard))
	t.Cleanup(server.Close)

	return &fixture{server: server, strategy: strategy, users: users}
}

func decodeErrorBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body errorBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

func TestExcludedPathsNeedNoCredential(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeBasic)
	for _, path := range []string{"/healthz", "/api/v1/status"} {
		resp, err := http.Get(fx.server.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status = %d, want 200", path, resp.StatusCode)
		}
	}
}

func TestMissingCredentialIs401(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeBasic)
	resp, err := http.Get(fx.server.URL + "/api/v1/users/me")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
	if msg := decodeErrorBody(t, resp); msg != "Unauthorized" {
		t.Fatalf("body error = %q, want Unauthorized", msg)
	}
}

func TestWrongPasswordIs403(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeBasic)
	req, _ := http.NewRequest("GET", fx.server.URL+"/api/v1/users/me", nil)
	payload := base64.StdEncoding.EncodeToString([]byte(testEmail + ":wrong"))
	req.Header.Set("Authorization", "Basic "+payload)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if msg := decodeErrorBody(t, resp); msg != "Forbidden" {
		t.Fatalf("body error = %q, want Forbidden", msg)
	}
}

func TestMalformedBasicHeaderIs401(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeBasic)
	req, _ := http.NewRequest("GET", fx.server.URL+"/api/v1/users/me", nil)
	req.Header.Set("Authorization", "Basic not-base64!!!")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestValidBasicCredentialResolvesUser(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeBasic)
	req, _ := http.NewRequest("GET", fx.server.URL+"/api/v1/users/me", nil)
	payload := base64.StdEncoding.EncodeToString([]byte(testEmail + ":" + testPassword))
	req.Header.Set("Authorization", "Basic "+payload)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var view userView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Email != testEmail {
		t.Fatalf("email = %q, want %q", view.Email, testEmail)
	}
}

func TestSessionLoginFlow(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeSessionExp)
	client := fx.server.Client()

	// 1. Guarded route without a cookie is 401.
	resp, err := client.Get(fx.server.URL + "/api/v1/users/me")
	if err != nil {
		t.Fatalf("GET me: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("pre-login status = %d, want 401", resp.StatusCode)
	}

	// 2. Login issues the session cookie.
	form := url.Values{"email": {testEmail}, "password": {testPassword}}
	resp, err = client.PostForm(fx.server.URL+"/api/v1/auth_session/login", form)
	if err != nil {
		t.Fatalf("POST login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d, want 200", resp.StatusCode)
	}
	var sessionCookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == auth.DefaultCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil || sessionCookie.Value == "" {
		t.Fatal("login did not set the session cookie")
	}

	// 3. The cookie authenticates the guarded route.
	req, _ := http.NewRequest("GET", fx.server.URL+"/api/v1/users/me", nil)
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET me: %v", err)
	}
	var view userView
	if err := json.NewDecoder(resp.Body).Decode(&view); err != nil {
		t.Fatalf("decode me: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || view.ID != "u1" {
		t.Fatalf("me status=%d user=%+v, want 200/u1", resp.StatusCode, view)
	}

	// 4. Logout destroys the session.
	req, _ = http.NewRequest("DELETE", fx.server.URL+"/api/v1/auth_session/logout", nil)
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("DELETE logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout status = %d, want 200", resp.StatusCode)
	}

	// 5. The old cookie no longer authenticates.
	req, _ = http.NewRequest("GET", fx.server.URL+"/api/v1/users/me", nil)
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("GET me after logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("post-logout status = %d, want 401", resp.StatusCode)
	}

	// 6. Logging out again is 404.
	req, _ = http.NewRequest("DELETE", fx.server.URL+"/api/v1/auth_session/logout", nil)
	req.AddCookie(sessionCookie)
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("repeat logout: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("repeat logout status = %d, want 404", resp.StatusCode)
	}
}

func TestLoginFormValidation(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeSession)
	client := fx.server.Client()

	cases := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantError  string
	}{
		{"missing email", url.Values{"password": {"x"}}, http.StatusBadRequest, "email missing"},
		{"missing password", url.Values{"email": {testEmail}}, http.StatusBadRequest, "password missing"},
		{"unknown email", url.Values{"email": {"ghost@mail.com"}, "password": {"x"}}, http.StatusNotFound, "no user found for this email"},
		{"wrong password", url.Values{"email": {testEmail}, "password": {"bad"}}, http.StatusUnauthorized, "wrong password"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			resp, err := client.PostForm(fx.server.URL+"/api/v1/auth_session/login", tc.form)
			if err != nil {
				t.Fatalf("POST login: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
			if msg := decodeErrorBody(t, resp); msg != tc.wantError {
				t.Fatalf("body error = %q, want %q", msg, tc.wantError)
			}
		})
	}
}

func TestSessionRoutesAbsentForBasicAuth(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, auth.TypeBasic)
	resp, err := http.PostForm(fx.server.URL+"/api/v1/auth_session/login", url.Values{
		"email": {testEmail}, "password": {testPassword},
	})
	if err != nil {
		t.Fatalf("POST login: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound && resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 404 or 405", resp.StatusCode)
	}
}

// failingStore simulates a durable backend outage.
type failingStore struct{}

func (failingStore) Create(context.Context, domain.Session) error {
	return storeDown()
}
func (failingStore) Get(context.Context, string) (domain.Session, error) {
	return domain.Session{}, storeDown()
}
func (failingStore) Delete(context.Context, string) (bool, error) { return false, storeDown() }
func (failingStore) ListByUser(context.Context, string) ([]domain.Session, error) {
	return nil, storeDown()
}
func (failingStore) DeleteByUser(context.Context, string) (int, error) { return 0, storeDown() }
func (failingStore) CleanupExpired(context.Context, time.Time) (int, error) {
	return 0, storeDown()
}

func storeDown() error {
	return domain.ErrStoreUnavailable
}

var _ ports.SessionStore = failingStore{}

func TestStoreOutageFailsClosedWith500(t *testing.T) {
	t.Parallel()

	users := memory.NewUserDirectory()
	strategy, err := auth.NewRegistry().Create(auth.TypeSessionDB, auth.Config{SessionDuration: time.Hour}, auth.Collaborators{
		Users:           users,
		Verifier:        security.NewBcryptHasher(4),
		DurableSessions: failingStore{},
	})
	if err != nil {
		t.Fatalf("create strategy: %v", err)
	}

	manager, _ := strategy.(auth.SessionManager)
	svc := application.NewService(application.Dependencies{
		Users:    users,
		Verifier: security.NewBcryptHasher(4),
		Sessions: failingStore{},
		Manager:  manager,
	})
	handler := NewHandler(svc, strategy, auth.DefaultCookieName, time.Hour)
	guard := NewAuthMiddleware(strategy, DefaultExcludedPaths)
	server := httptest.NewServer(NewRouter(handler, guard))
	defer server.Close()

	req, _ := http.NewRequest("GET", server.URL+"/api/v1/users/me", nil)
	req.AddCookie(&http.Cookie{Name: auth.DefaultCookieName, Value: "some-session"})
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", resp.StatusCode)
	}
	if msg := decodeErrorBody(t, resp); !strings.Contains(msg, "Internal Server Error") {
		t.Fatalf("body error = %q, want internal server error", msg)
	}
}
