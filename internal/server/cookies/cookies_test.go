package cookies

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func testConfig(secure bool) *Config {
	return &Config{Secure: secure, AccessTTL: 15 * time.Minute, RefreshTTL: 7 * 24 * time.Hour}
}

func setCookies(t *testing.T, rr *httptest.ResponseRecorder) map[string]*http.Cookie {
	t.Helper()
	out := make(map[string]*http.Cookie)
	for _, raw := range rr.Header().Values("Set-Cookie") {
		cookie, err := http.ParseSetCookie(raw)
		if err != nil {
			t.Fatalf("ParseSetCookie(%q): %v", raw, err)
		}
		out[cookie.Name] = cookie
	}
	return out
}

func TestSet(t *testing.T) {
	cfg := testConfig(false)
	rr := httptest.NewRecorder()
	cfg.Set(rr, "access-1", "refresh-1", "fp-1")

	got := setCookies(t, rr)
	if len(got) != 4 {
		t.Fatalf("set %d cookies, want 4", len(got))
	}
	access := got["mw_access_token"]
	if access == nil {
		t.Fatal("missing mw_access_token cookie")
	}
	if access.Value != "access-1" {
		t.Errorf("access value = %q, want %q", access.Value, "access-1")
	}
	if !access.HttpOnly {
		t.Error("access cookie must be httpOnly")
	}
	if access.SameSite != http.SameSiteLaxMode {
		t.Errorf("access SameSite = %v, want Lax", access.SameSite)
	}
	if access.Path != "/" {
		t.Errorf("access Path = %q, want /", access.Path)
	}
	if access.MaxAge != int((15 * time.Minute).Seconds()) {
		t.Errorf("access MaxAge = %d, want %d", access.MaxAge, int((15*time.Minute).Seconds()))
	}
	if access.Secure {
		t.Error("access cookie must not be Secure on an http deployment")
	}

	refresh := got["mw_refresh_token"]
	if refresh == nil || refresh.Value != "refresh-1" {
		t.Fatalf("refresh cookie = %+v, want value refresh-1", refresh)
	}
	if refresh.MaxAge != int((7 * 24 * time.Hour).Seconds()) {
		t.Errorf("refresh MaxAge = %d, want refresh TTL", refresh.MaxAge)
	}

	hint := got["mw_session"]
	if hint == nil {
		t.Fatal("missing mw_session hint cookie")
	}
	if hint.Value != "1" {
		t.Errorf("hint value = %q, want %q", hint.Value, "1")
	}
	if hint.HttpOnly {
		t.Error("hint cookie must be readable by page scripts")
	}
}

func TestSet_SecureUsesHostPrefix(t *testing.T) {
	cfg := testConfig(true)
	rr := httptest.NewRecorder()
	cfg.Set(rr, "a", "r", "f")

	got := setCookies(t, rr)
	for _, name := range []string{"__Host-mw_access_token", "__Host-mw_refresh_token", "__Host-mw_fingerprint", "__Host-mw_session"} {
		cookie := got[name]
		if cookie == nil {
			t.Errorf("missing cookie %s", name)
			continue
		}
		if !cookie.Secure {
			t.Errorf("%s must be Secure", name)
		}
		if cookie.Path != "/" {
			t.Errorf("%s Path = %q, want / (required by __Host-)", name, cookie.Path)
		}
		if cookie.Domain != "" {
			t.Errorf("%s Domain = %q, want empty (required by __Host-)", name, cookie.Domain)
		}
	}
}

func TestClear(t *testing.T) {
	cfg := testConfig(false)
	rr := httptest.NewRecorder()
	cfg.Clear(rr)

	got := setCookies(t, rr)
	if len(got) != 4 {
		t.Fatalf("cleared %d cookies, want 4", len(got))
	}
	for name, cookie := range got {
		if cookie.Value != "" {
			t.Errorf("%s value = %q, want empty", name, cookie.Value)
		}
		if cookie.MaxAge != -1 {
			t.Errorf("%s MaxAge = %d, want -1", name, cookie.MaxAge)
		}
	}
}

func TestRead(t *testing.T) {
	cfg := testConfig(false)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := cfg.ReadAccessToken(r); ok {
		t.Fatal("expected missing access cookie")
	}

	r.AddCookie(&http.Cookie{Name: "mw_access_token", Value: "  tok-1  "})
	r.AddCookie(&http.Cookie{Name: "mw_refresh_token", Value: "ref-1"})
	r.AddCookie(&http.Cookie{Name: "mw_fingerprint", Value: "fp-1"})

	if got, ok := cfg.ReadAccessToken(r); !ok || got != "tok-1" {
		t.Errorf("ReadAccessToken = %q, %v; want tok-1, true", got, ok)
	}
	if got, ok := cfg.ReadRefreshToken(r); !ok || got != "ref-1" {
		t.Errorf("ReadRefreshToken = %q, %v; want ref-1, true", got, ok)
	}
	if got, ok := cfg.ReadFingerprint(r); !ok || got != "fp-1" {
		t.Errorf("ReadFingerprint = %q, %v; want fp-1, true", got, ok)
	}
}

func TestRead_SecureNames(t *testing.T) {
	cfg := testConfig(true)
	r := httptest.NewRequest(http.MethodGet, "https://app.example.test/", nil)
	r.AddCookie(&http.Cookie{Name: "__Host-mw_access_token", Value: "tok-1"})
	r.AddCookie(&http.Cookie{Name: "mw_access_token", Value: "wrong"})

	if got, ok := cfg.ReadAccessToken(r); !ok || got != "tok-1" {
		t.Errorf("ReadAccessToken = %q, %v; want prefixed cookie tok-1, true", got, ok)
	}
}
