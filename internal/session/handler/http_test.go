package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/moneywright/moneywright/internal/security"
	"github.com/moneywright/moneywright/internal/server/api"
	"github.com/moneywright/moneywright/internal/server/cookies"
	"github.com/moneywright/moneywright/internal/server/middleware"
	"github.com/moneywright/moneywright/internal/session/domain"
	"github.com/moneywright/moneywright/internal/session/service"
	userdomain "github.com/moneywright/moneywright/internal/user/domain"
)

type stubSessions struct {
	bundle        *service.TokenBundle
	refreshErr    error
	infos         []service.SessionInfo
	revokeUserErr error
	revokedOthers int64

	gotRefreshToken string
	gotFingerprint  string
	revokedSession  string
	revokedByToken  string
	gotUserID       string
	gotSessionID    string
}

func (s *stubSessions) RefreshSession(ctx context.Context, refreshToken, fingerprint string, meta domain.ClientMeta) (*service.TokenBundle, error) {
	s.gotRefreshToken = refreshToken
	s.gotFingerprint = fingerprint
	if s.refreshErr != nil {
		return nil, s.refreshErr
	}
	return s.bundle, nil
}

func (s *stubSessions) RevokeSession(ctx context.Context, sessionID string) error {
	s.revokedSession = sessionID
	return nil
}

func (s *stubSessions) RevokeByRefreshToken(ctx context.Context, refreshToken string) error {
	s.revokedByToken = refreshToken
	return nil
}

func (s *stubSessions) RevokeUserSession(ctx context.Context, userID, sessionID string) error {
	s.gotUserID = userID
	s.revokedSession = sessionID
	return s.revokeUserErr
}

func (s *stubSessions) RevokeOtherSessions(ctx context.Context, userID, currentSessionID string) (int64, error) {
	s.gotUserID = userID
	s.gotSessionID = currentSessionID
	return s.revokedOthers, nil
}

func (s *stubSessions) ListSessions(ctx context.Context, userID, currentSessionID string) ([]service.SessionInfo, error) {
	s.gotUserID = userID
	s.gotSessionID = currentSessionID
	return s.infos, nil
}

type fakeUsers struct {
	users map[string]*userdomain.User
}

func (f *fakeUsers) GetByID(ctx context.Context, id string) (*userdomain.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) GetByGoogleID(ctx context.Context, googleID string) (*userdomain.User, error) {
	return nil, nil
}
func (f *fakeUsers) Create(ctx context.Context, u *userdomain.User) error { return nil }

func (f *fakeUsers) Delete(ctx context.Context, id string) error { return nil }

// newTestHandler wires the handler behind a real mux and authenticator so
// routing, method patterns, and the auth middleware are all exercised.
func newTestHandler(t *testing.T, stub *stubSessions) (*http.ServeMux, *security.TokenProvider, *fakeUsers) {
	t.Helper()
	tokens, err := security.NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	cookieCfg := &cookies.Config{AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour}
	auth := middleware.NewAuthenticator(tokens, cookieCfg, nil, "")
	users := &fakeUsers{users: map[string]*userdomain.User{
		"user-1": {ID: "user-1", Email: "a@example.com", DisplayName: "A"},
	}}
	mux := http.NewServeMux()
	New(stub, users, cookieCfg, auth).Register(mux)
	return mux, tokens, users
}

// credentials mints a valid access token and its paired fingerprint.
func credentials(t *testing.T, tokens *security.TokenProvider, sessionID, userID string) (access, fingerprint string) {
	t.Helper()
	fingerprint, err := security.NewSecret(32)
	if err != nil {
		t.Fatalf("NewSecret: %v", err)
	}
	access, _, _, err = tokens.IssueAccess(sessionID, userID, security.HashSecret(fingerprint))
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	return access, fingerprint
}

func errorCode(t *testing.T, body string) string {
	t.Helper()
	var e api.ErrorBody
	if err := json.Unmarshal([]byte(body), &e); err != nil {
		t.Fatalf("unmarshal error body %q: %v", body, err)
	}
	return e.Error
}

func setCookieNames(res *http.Response) map[string]string {
	out := make(map[string]string)
	for _, c := range res.Cookies() {
		out[c.Name] = c.Value
	}
	return out
}

func TestRefresh_FromBody(t *testing.T) {
	stub := &stubSessions{bundle: &service.TokenBundle{
		AccessToken:  "new-access",
		RefreshToken: "new-refresh",
		Fingerprint:  "new-fp",
		ExpiresIn:    900,
		SessionID:    "sess-1",
		UserID:       "user-1",
	}}
	mux, _, _ := newTestHandler(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh",
		strings.NewReader(`{"refreshToken":"old-refresh","fingerprint":"old-fp"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if stub.gotRefreshToken != "old-refresh" || stub.gotFingerprint != "old-fp" {
		t.Errorf("service got (%q, %q), want body values", stub.gotRefreshToken, stub.gotFingerprint)
	}

	var resp api.AuthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.AccessToken != "new-access" || resp.RefreshToken != "new-refresh" || resp.Fingerprint != "new-fp" {
		t.Errorf("response = %+v, want rotated bundle", resp)
	}
	if resp.User == nil || resp.User.ID != "user-1" {
		t.Errorf("response user = %+v, want user-1", resp.User)
	}

	got := setCookieNames(rec.Result())
	if got["mw_access_token"] != "new-access" || got["mw_refresh_token"] != "new-refresh" || got["mw_fingerprint"] != "new-fp" {
		t.Errorf("cookies = %v, want rotated credentials", got)
	}
	if got["mw_session"] != "1" {
		t.Errorf("session hint cookie = %q, want 1", got["mw_session"])
	}
}

func TestRefresh_FromCookies(t *testing.T) {
	stub := &stubSessions{bundle: &service.TokenBundle{UserID: "user-1", SessionID: "sess-1"}}
	mux, _, _ := newTestHandler(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", nil)
	req.AddCookie(&http.Cookie{Name: "mw_refresh_token", Value: "cookie-refresh"})
	req.AddCookie(&http.Cookie{Name: "mw_fingerprint", Value: "cookie-fp"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if stub.gotRefreshToken != "cookie-refresh" || stub.gotFingerprint != "cookie-fp" {
		t.Errorf("service got (%q, %q), want cookie values", stub.gotRefreshToken, stub.gotFingerprint)
	}
}

func TestRefresh_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"reuse", service.ErrRefreshReuse, http.StatusUnauthorized, "session_revoked"},
		{"invalid", service.ErrSessionInvalid, http.StatusUnauthorized, "invalid_session"},
		{"storage", errors.New("db down"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mux, _, _ := newTestHandler(t, &stubSessions{refreshErr: tc.err})
			req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh",
				strings.NewReader(`{"refreshToken":"x","fingerprint":"y"}`))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := errorCode(t, rec.Body.String()); got != tc.wantCode {
				t.Errorf("error code = %q, want %q", got, tc.wantCode)
			}
			if tc.wantStatus == http.StatusUnauthorized {
				cs := rec.Result().Cookies()
				if len(cs) == 0 {
					t.Fatal("auth failure must clear cookies")
				}
				for _, c := range cs {
					if c.MaxAge >= 0 {
						t.Errorf("cookie %s MaxAge = %d, want deletion", c.Name, c.MaxAge)
					}
				}
			}
		})
	}
}

func TestRefresh_MalformedBody(t *testing.T) {
	mux, _, _ := newTestHandler(t, &stubSessions{})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/refresh", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestLogout_AuthenticatedRevokesSession(t *testing.T) {
	stub := &stubSessions{}
	mux, tokens, _ := newTestHandler(t, stub)
	access, fp := credentials(t, tokens, "sess-1", "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("X-Fingerprint", fp)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if stub.revokedSession != "sess-1" {
		t.Errorf("revoked session = %q, want sess-1", stub.revokedSession)
	}
	if cs := rec.Result().Cookies(); len(cs) == 0 {
		t.Error("logout must clear cookies")
	}
}

func TestLogout_RefreshCookieFallback(t *testing.T) {
	stub := &stubSessions{}
	mux, _, _ := newTestHandler(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "mw_refresh_token", Value: "the-refresh"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if stub.revokedByToken != "the-refresh" {
		t.Errorf("revoked by token = %q, want the-refresh", stub.revokedByToken)
	}
}

func TestLogout_AnonymousStillSucceeds(t *testing.T) {
	stub := &stubSessions{}
	mux, _, _ := newTestHandler(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if stub.revokedSession != "" || stub.revokedByToken != "" {
		t.Error("nothing should be revoked without credentials")
	}
}

func TestProbe(t *testing.T) {
	stub := &stubSessions{}
	mux, tokens, _ := newTestHandler(t, stub)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous probe status = %d, want 200", rec.Code)
	}
	var anon probeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &anon); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if anon.Authenticated || anon.User != nil {
		t.Errorf("anonymous probe = %+v, want unauthenticated", anon)
	}

	access, fp := credentials(t, tokens, "sess-1", "user-1")
	req = httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("X-Fingerprint", fp)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var authed probeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &authed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !authed.Authenticated || authed.User == nil || authed.User.ID != "user-1" {
		t.Errorf("authenticated probe = %+v, want user-1", authed)
	}
}

func TestListSessions(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	stub := &stubSessions{infos: []service.SessionInfo{
		{ID: "sess-1", UserAgent: "ua-1", IP: "1.2.3.4", CreatedAt: now, LastUsedAt: now, ExpiresAt: now.Add(time.Hour), Current: true},
		{ID: "sess-2", UserAgent: "ua-2", CreatedAt: now, LastUsedAt: now, ExpiresAt: now.Add(time.Hour)},
	}}
	mux, tokens, _ := newTestHandler(t, stub)
	access, fp := credentials(t, tokens, "sess-1", "user-1")

	req := httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("X-Fingerprint", fp)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if stub.gotUserID != "user-1" || stub.gotSessionID != "sess-1" {
		t.Errorf("service got (%q, %q), want principal ids", stub.gotUserID, stub.gotSessionID)
	}
	var resp listResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Sessions) != 2 || !resp.Sessions[0].Current || resp.Sessions[1].Current {
		t.Errorf("sessions = %+v, want first current", resp.Sessions)
	}
}

func TestListSessions_RequiresAuth(t *testing.T) {
	mux, _, _ := newTestHandler(t, &stubSessions{})
	req := httptest.NewRequest(http.MethodGet, "/api/auth/sessions", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if got := errorCode(t, rec.Body.String()); got != "no_token" {
		t.Errorf("error code = %q, want no_token", got)
	}
}

func TestRevokeSession(t *testing.T) {
	t.Run("owned", func(t *testing.T) {
		stub := &stubSessions{}
		mux, tokens, _ := newTestHandler(t, stub)
		access, fp := credentials(t, tokens, "sess-1", "user-1")

		req := httptest.NewRequest(http.MethodDelete, "/api/auth/sessions/sess-2", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		req.Header.Set("X-Fingerprint", fp)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want 204", rec.Code)
		}
		if stub.gotUserID != "user-1" || stub.revokedSession != "sess-2" {
			t.Errorf("service got (%q, %q), want (user-1, sess-2)", stub.gotUserID, stub.revokedSession)
		}
	})

	t.Run("not found", func(t *testing.T) {
		stub := &stubSessions{revokeUserErr: service.ErrSessionNotFound}
		mux, tokens, _ := newTestHandler(t, stub)
		access, fp := credentials(t, tokens, "sess-1", "user-1")

		req := httptest.NewRequest(http.MethodDelete, "/api/auth/sessions/other", nil)
		req.Header.Set("Authorization", "Bearer "+access)
		req.Header.Set("X-Fingerprint", fp)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Fatalf("status = %d, want 404", rec.Code)
		}
		if got := errorCode(t, rec.Body.String()); got != "session_not_found" {
			t.Errorf("error code = %q, want session_not_found", got)
		}
	})
}

func TestRevokeOthers(t *testing.T) {
	stub := &stubSessions{revokedOthers: 3}
	mux, tokens, _ := newTestHandler(t, stub)
	access, fp := credentials(t, tokens, "sess-1", "user-1")

	req := httptest.NewRequest(http.MethodPost, "/api/auth/sessions/revoke-others", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.Header.Set("X-Fingerprint", fp)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp revokeOthersResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Revoked != 3 {
		t.Errorf("revoked = %d, want 3", resp.Revoked)
	}
	if stub.gotSessionID != "sess-1" {
		t.Errorf("current session passed = %q, want sess-1", stub.gotSessionID)
	}
}
