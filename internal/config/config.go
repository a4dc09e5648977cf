// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"encoding/hex"
	"errors"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Auth modes. Local uses the PIN authenticator (or no auth until a PIN is set);
// Google federates identity through Google OAuth with PKCE.
const (
	AuthModeLocal  = "local"
	AuthModeGoogle = "google"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is the address the HTTP server listens on (e.g. :17777).
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// PublicURL is the externally visible origin (e.g. http://localhost:17777). Cookies are
	// marked Secure and use the __Host- prefix when this is https.
	PublicURL string `mapstructure:"PUBLIC_URL"`
	// DataDir is the directory for local state (SQLite database). Default ".".
	DataDir string `mapstructure:"DATA_DIR"`
	// DatabaseURL is the Postgres DSN; when empty the server uses SQLite under DATA_DIR.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// AuthMode selects the authentication path: "local" (PIN) or "google" (federated).
	AuthMode string `mapstructure:"AUTH_MODE"`
	// JWTPrivateKey is the PEM-encoded private key (RSA or ECDSA) or path to file; used with JWT_PUBLIC_KEY for RS256/ES256.
	JWTPrivateKey string `mapstructure:"JWT_PRIVATE_KEY"`
	// JWTPublicKey is the PEM-encoded public key or path to file; used with JWT_PRIVATE_KEY.
	JWTPublicKey string `mapstructure:"JWT_PUBLIC_KEY"`
	// JWTIssuer is the iss claim (e.g. "moneywright").
	JWTIssuer string `mapstructure:"JWT_ISSUER"`
	// JWTAudience is the aud claim (e.g. "moneywright-app").
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`
	// AccessTokenTTL is the access token lifetime (e.g. "15m").
	AccessTokenTTL string `mapstructure:"ACCESS_TOKEN_TTL"`
	// RefreshTokenTTL is the refresh token lifetime and the session's rolling expiry window (e.g. "168h").
	RefreshTokenTTL string `mapstructure:"REFRESH_TOKEN_TTL"`
	// SessionAbsoluteTTL is the hard session lifetime ceiling rotation can never extend past (e.g. "720h").
	SessionAbsoluteTTL string `mapstructure:"SESSION_ABSOLUTE_TTL"`
	// StateSecret is a 32-byte hex key sealing the OAuth state blob. Required when AUTH_MODE=google.
	StateSecret string `mapstructure:"STATE_SECRET"`
	// GoogleClientID is the OAuth client ID. Required when AUTH_MODE=google.
	GoogleClientID string `mapstructure:"GOOGLE_CLIENT_ID"`
	// GoogleClientSecret is the OAuth client secret. Required when AUTH_MODE=google.
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	// GoogleRedirectURL is the registered OAuth redirect; defaults to PUBLIC_URL + /auth/callback.
	GoogleRedirectURL string `mapstructure:"GOOGLE_REDIRECT_URL"`
	// BcryptCost is the bcrypt cost factor (4–31); default 12.
	BcryptCost int `mapstructure:"BCRYPT_COST"`
	// PinMaxAttempts is the failed-attempt threshold before PIN lockout; default 5.
	PinMaxAttempts int `mapstructure:"PIN_MAX_ATTEMPTS"`
	// PinLockoutBase is the first lockout window (e.g. "1m"); doubles per lockout, capped at 1h.
	PinLockoutBase string `mapstructure:"PIN_LOCKOUT_BASE"`
	// CleanupInterval is how often the janitor sweeps sessions past absolute expiry (e.g. "1h").
	CleanupInterval string `mapstructure:"CLEANUP_INTERVAL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`
	// OTLPEndpoint is the OTLP gRPC collector address (host:port). Empty disables export.
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	// OTELInsecure disables TLS on the OTLP exporter connection (local collectors).
	OTELInsecure bool `mapstructure:"OTEL_INSECURE"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env. Returns an error if required fields are invalid.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":17777")
	v.SetDefault("PUBLIC_URL", "http://localhost:17777")
	v.SetDefault("DATA_DIR", ".")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("AUTH_MODE", AuthModeLocal)
	v.SetDefault("JWT_ISSUER", "moneywright")
	v.SetDefault("JWT_AUDIENCE", "moneywright-app")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")    // 7d
	v.SetDefault("SESSION_ABSOLUTE_TTL", "720h") // 30d
	v.SetDefault("BCRYPT_COST", 12)
	v.SetDefault("PIN_MAX_ATTEMPTS", 5)
	v.SetDefault("PIN_LOCKOUT_BASE", "1m")
	v.SetDefault("CLEANUP_INTERVAL", "1h")
	v.SetDefault("APP_ENV", "")
	v.SetDefault("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	v.SetDefault("OTEL_INSECURE", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.HTTPAddr == "" {
		return nil, errors.New("config: HTTP_ADDR must be set")
	}

	switch cfg.AuthMode {
	case AuthModeLocal:
	case AuthModeGoogle:
		if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
			return nil, errors.New("config: GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET must be set when AUTH_MODE=google")
		}
		if _, err := cfg.StateKey(); err != nil {
			return nil, err
		}
		if cfg.GoogleRedirectURL == "" {
			cfg.GoogleRedirectURL = strings.TrimRight(cfg.PublicURL, "/") + "/auth/callback"
		}
	default:
		return nil, errors.New("config: AUTH_MODE must be local or google")
	}

	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return nil, errors.New("config: BCRYPT_COST must be between 4 and 31")
	}

	if cfg.PinMaxAttempts < 1 {
		return nil, errors.New("config: PIN_MAX_ATTEMPTS must be at least 1")
	}

	return &cfg, nil
}

// AccessTTL parses AccessTokenTTL as a time.Duration. Returns 15m if unset or invalid.
func (c *Config) AccessTTL() time.Duration {
	d, err := time.ParseDuration(c.AccessTokenTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

// RefreshTTL parses RefreshTokenTTL as a time.Duration. Returns 168h if unset or invalid.
func (c *Config) RefreshTTL() time.Duration {
	d, err := time.ParseDuration(c.RefreshTokenTTL)
	if err != nil || d <= 0 {
		return 168 * time.Hour
	}
	return d
}

// AbsoluteTTL parses SessionAbsoluteTTL as a time.Duration. Returns 720h if unset or invalid.
func (c *Config) AbsoluteTTL() time.Duration {
	d, err := time.ParseDuration(c.SessionAbsoluteTTL)
	if err != nil || d <= 0 {
		return 720 * time.Hour
	}
	return d
}

// LockoutBase parses PinLockoutBase as a time.Duration. Returns 1m if unset or invalid.
func (c *Config) LockoutBase() time.Duration {
	d, err := time.ParseDuration(c.PinLockoutBase)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

// CleanupEvery parses CleanupInterval as a time.Duration. Returns 1h if unset or invalid.
func (c *Config) CleanupEvery() time.Duration {
	d, err := time.ParseDuration(c.CleanupInterval)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// DatabaseDSN returns DATABASE_URL when set, otherwise the SQLite file path under DATA_DIR.
// The db package picks the driver from the DSN shape.
func (c *Config) DatabaseDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return filepath.Join(c.DataDir, "data", "moneywright.db")
}

// StateKey decodes StateSecret as a 32-byte hex key for sealing OAuth state.
func (c *Config) StateKey() ([]byte, error) {
	key, err := hex.DecodeString(c.StateSecret)
	if err != nil || len(key) != 32 {
		return nil, errors.New("config: STATE_SECRET must be 64 hex characters (32 bytes)")
	}
	return key, nil
}

// SecureCookies reports whether cookies should be marked Secure (https deployment).
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.PublicURL, "https://")
}
