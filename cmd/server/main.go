// Server runs the MoneyWright identity and session trust core: an HTTP API
// for sign-in (Google federation or local PIN), token refresh with reuse
// detection, and session management. Migrations run on startup so a desktop
// install works from an empty DATA_DIR.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/moneywright/moneywright/internal/audit"
	auditrepo "github.com/moneywright/moneywright/internal/audit/repository"
	"github.com/moneywright/moneywright/internal/config"
	"github.com/moneywright/moneywright/internal/db"
	"github.com/moneywright/moneywright/internal/db/migrate"
	"github.com/moneywright/moneywright/internal/identity/replay"
	identityservice "github.com/moneywright/moneywright/internal/identity/service"
	pinrepo "github.com/moneywright/moneywright/internal/pin/repository"
	pinservice "github.com/moneywright/moneywright/internal/pin/service"
	"github.com/moneywright/moneywright/internal/security"
	"github.com/moneywright/moneywright/internal/server"
	"github.com/moneywright/moneywright/internal/server/cookies"
	"github.com/moneywright/moneywright/internal/server/middleware"
	sessionrepo "github.com/moneywright/moneywright/internal/session/repository"
	sessionservice "github.com/moneywright/moneywright/internal/session/service"
	"github.com/moneywright/moneywright/internal/telemetry/otel"
	userrepo "github.com/moneywright/moneywright/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	providers, err := otel.NewProviders(context.Background(), cfg.OTLPEndpoint, "moneywright", cfg.OTELInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	dsn := cfg.DatabaseDSN()
	if err := migrate.Run(dsn, "up"); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migrate: %v", err)
	}
	conn, err := db.Open(dsn)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	privKey, err := security.ParsePrivateKey(cfg.JWTPrivateKey)
	if err != nil {
		log.Fatalf("JWT_PRIVATE_KEY: %v (run cmd/keygen to create a signing key pair)", err)
	}
	pubKey, err := security.ParsePublicKey(cfg.JWTPublicKey)
	if err != nil {
		log.Fatalf("JWT_PUBLIC_KEY: %v", err)
	}
	tokens := security.NewTokenProvider(privKey, pubKey, cfg.JWTIssuer, cfg.JWTAudience, cfg.AccessTTL(), cfg.RefreshTTL())

	users := userrepo.NewSQLRepository(conn)
	sessions := sessionrepo.NewSQLRepository(conn)
	audits := auditrepo.NewSQLRepository(conn)
	auditLog := audit.NewLogger(audits, otel.NewAuditEmitter(providers.LoggerProvider))

	manager := sessionservice.NewManager(sessions, auditLog, audits, tokens, cfg.AbsoluteTTL())

	cookieCfg := &cookies.Config{
		Secure:     cfg.SecureCookies(),
		AccessTTL:  cfg.AccessTTL(),
		RefreshTTL: cfg.RefreshTTL(),
	}

	deps := server.Deps{
		Sessions: manager,
		Users:    users,
		Audit:    auditLog,
		DB:       conn,
		Cookies:  cookieCfg,
	}

	var localBypass func() bool
	var localUserID string
	switch cfg.AuthMode {
	case config.AuthModeGoogle:
		provider, err := oidc.NewProvider(context.Background(), "https://accounts.google.com")
		if err != nil {
			log.Fatalf("oidc discovery: %v", err)
		}
		stateKey, err := cfg.StateKey()
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		sealer, err := security.NewSealer(stateKey)
		if err != nil {
			log.Fatalf("state sealer: %v", err)
		}
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     provider.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		}
		verifier := identityservice.NewOIDCVerifier(provider.Verifier(&oidc.Config{ClientID: cfg.GoogleClientID}))
		deps.Google = identityservice.NewExchange(oauthCfg, verifier, sealer, replay.NewStore(), users, manager, auditLog)

	case config.AuthModeLocal:
		pins := pinservice.NewService(pinrepo.NewSQLRepository(conn), security.NewHasher(cfg.BcryptCost), auditLog, cfg.PinMaxAttempts, cfg.LockoutBase())
		if err := pins.Prime(context.Background()); err != nil {
			log.Fatalf("pin state: %v", err)
		}
		local := identityservice.NewLocal(users, manager, pins.Configured, auditLog)
		deps.Local = local
		deps.Pins = pins
		deps.PinSessions = local
		// Until a PIN exists every request belongs to the single local user.
		localBypass = func() bool { return !pins.Configured() }
		localUserID = identityservice.LocalUserID
	}

	deps.Auth = middleware.NewAuthenticator(tokens, cookieCfg, localBypass, localUserID)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("http server listening on %s (auth mode %s)", cfg.HTTPAddr, cfg.AuthMode)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	// In-process janitor. cmd/worker runs the same sweep standalone for
	// deployments that prefer an external schedule.
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go func() {
		ticker := time.NewTicker(cfg.CleanupEvery())
		defer ticker.Stop()
		for {
			select {
			case <-cleanupCtx.Done():
				return
			case <-ticker.C:
				n, err := manager.CleanupExpiredSessions(cleanupCtx)
				if err != nil {
					log.Printf("cleanup: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("cleanup: removed %d expired sessions", n)
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down http server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Printf("telemetry shutdown: %v", err)
	}
	log.Println("http server stopped")
}
