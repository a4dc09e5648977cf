package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load returned nil config")
	}
	if cfg.HTTPAddr != ":17777" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":17777")
	}
	if cfg.PublicURL != "http://localhost:17777" {
		t.Errorf("PublicURL = %q, want default", cfg.PublicURL)
	}
	if cfg.AuthMode != AuthModeLocal {
		t.Errorf("AuthMode = %q, want %q", cfg.AuthMode, AuthModeLocal)
	}
	if cfg.JWTIssuer != "moneywright" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "moneywright")
	}
	if cfg.JWTAudience != "moneywright-app" {
		t.Errorf("JWTAudience = %q, want %q", cfg.JWTAudience, "moneywright-app")
	}
	if cfg.AccessTokenTTL != "15m" {
		t.Errorf("AccessTokenTTL = %q, want %q", cfg.AccessTokenTTL, "15m")
	}
	if cfg.RefreshTokenTTL != "168h" {
		t.Errorf("RefreshTokenTTL = %q, want %q", cfg.RefreshTokenTTL, "168h")
	}
	if cfg.SessionAbsoluteTTL != "720h" {
		t.Errorf("SessionAbsoluteTTL = %q, want %q", cfg.SessionAbsoluteTTL, "720h")
	}
	if cfg.BcryptCost != 12 {
		t.Errorf("BcryptCost = %d, want 12", cfg.BcryptCost)
	}
	if cfg.PinMaxAttempts != 5 {
		t.Errorf("PinMaxAttempts = %d, want 5", cfg.PinMaxAttempts)
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_ADDR", ":9090")
	os.Setenv("JWT_ISSUER", "custom-issuer")
	os.Setenv("BCRYPT_COST", "14")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q, want %q", cfg.HTTPAddr, ":9090")
	}
	if cfg.JWTIssuer != "custom-issuer" {
		t.Errorf("JWTIssuer = %q, want %q", cfg.JWTIssuer, "custom-issuer")
	}
	if cfg.BcryptCost != 14 {
		t.Errorf("BcryptCost = %d, want 14", cfg.BcryptCost)
	}
}

func TestLoad_AuthModeValidation(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_MODE", "saml")

	if _, err := Load(); err == nil {
		t.Fatal("Load should reject unknown AUTH_MODE")
	}
}

func TestLoad_GoogleModeRequiresCredentials(t *testing.T) {
	os.Clearenv()
	os.Setenv("AUTH_MODE", "google")

	if _, err := Load(); err == nil {
		t.Fatal("Load should require GOOGLE_CLIENT_ID/SECRET when AUTH_MODE=google")
	}

	os.Setenv("GOOGLE_CLIENT_ID", "client-id")
	os.Setenv("GOOGLE_CLIENT_SECRET", "client-secret")
	if _, err := Load(); err == nil {
		t.Fatal("Load should require STATE_SECRET when AUTH_MODE=google")
	}

	os.Setenv("STATE_SECRET", "not-hex")
	if _, err := Load(); err == nil {
		t.Fatal("Load should reject a malformed STATE_SECRET")
	}

	os.Setenv("STATE_SECRET", "0f0e0d0c0b0a09080706050403020100000102030405060708090a0b0c0d0e0f")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.GoogleRedirectURL != "http://localhost:17777/auth/callback" {
		t.Errorf("GoogleRedirectURL = %q, want derived default", cfg.GoogleRedirectURL)
	}
	key, err := cfg.StateKey()
	if err != nil {
		t.Fatalf("StateKey: %v", err)
	}
	if len(key) != 32 {
		t.Errorf("StateKey length = %d, want 32", len(key))
	}
}

func TestLoad_BCRYPT_COSTRange(t *testing.T) {
	testCases := []struct {
		name  string
		value string
		want  int
		err   bool
	}{
		{"valid min", "4", 4, false},
		{"valid max", "31", 31, false},
		{"valid middle", "12", 12, false},
		{"too low", "3", 0, true},
		{"too high", "32", 0, true},
		{"zero", "0", 12, false}, // Should default to 12
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			os.Clearenv()
			os.Setenv("BCRYPT_COST", tc.value)

			cfg, err := Load()
			if tc.err {
				if err == nil {
					t.Fatal("Load should return error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if cfg.BcryptCost != tc.want {
				t.Errorf("BcryptCost = %d, want %d", cfg.BcryptCost, tc.want)
			}
		})
	}
}

func TestAccessTTL_ValidDuration(t *testing.T) {
	os.Clearenv()
	os.Setenv("ACCESS_TOKEN_TTL", "30m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AccessTTL(); ttl != 30*time.Minute {
		t.Errorf("AccessTTL = %v, want %v", ttl, 30*time.Minute)
	}
}

func TestAccessTTL_InvalidDuration(t *testing.T) {
	for _, bad := range []string{"invalid", "0", "-5m"} {
		os.Clearenv()
		os.Setenv("ACCESS_TOKEN_TTL", bad)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if ttl := cfg.AccessTTL(); ttl != 15*time.Minute {
			t.Errorf("AccessTTL(%q) = %v, want %v (default)", bad, ttl, 15*time.Minute)
		}
	}
}

func TestRefreshTTL_Durations(t *testing.T) {
	os.Clearenv()
	os.Setenv("REFRESH_TOKEN_TTL", "336h") // 14 days

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.RefreshTTL(); ttl != 14*24*time.Hour {
		t.Errorf("RefreshTTL = %v, want %v", ttl, 14*24*time.Hour)
	}

	for _, bad := range []string{"invalid", "0", "-1h"} {
		os.Clearenv()
		os.Setenv("REFRESH_TOKEN_TTL", bad)
		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if ttl := cfg.RefreshTTL(); ttl != 168*time.Hour {
			t.Errorf("RefreshTTL(%q) = %v, want %v (default)", bad, ttl, 168*time.Hour)
		}
	}
}

func TestAbsoluteTTL_Default(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ttl := cfg.AbsoluteTTL(); ttl != 720*time.Hour {
		t.Errorf("AbsoluteTTL = %v, want %v", ttl, 720*time.Hour)
	}
}

func TestDatabaseDSN(t *testing.T) {
	os.Clearenv()
	os.Setenv("DATA_DIR", "/var/lib/moneywright")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := filepath.Join("/var/lib/moneywright", "data", "moneywright.db")
	if got := cfg.DatabaseDSN(); got != want {
		t.Errorf("DatabaseDSN = %q, want %q", got, want)
	}

	os.Setenv("DATABASE_URL", "postgres://mw:mw@localhost:5432/moneywright?sslmode=disable")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.DatabaseDSN(); got != "postgres://mw:mw@localhost:5432/moneywright?sslmode=disable" {
		t.Errorf("DatabaseDSN = %q, want DATABASE_URL passthrough", got)
	}
}

func TestSecureCookies(t *testing.T) {
	os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SecureCookies() {
		t.Error("SecureCookies should be false for http PUBLIC_URL")
	}

	os.Setenv("PUBLIC_URL", "https://money.example.com")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SecureCookies() {
		t.Error("SecureCookies should be true for https PUBLIC_URL")
	}
}
