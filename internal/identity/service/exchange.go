package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/moneywright/moneywright/internal/audit"
	auditdomain "github.com/moneywright/moneywright/internal/audit/domain"
	"github.com/moneywright/moneywright/internal/identity/domain"
	"github.com/moneywright/moneywright/internal/identity/replay"
	"github.com/moneywright/moneywright/internal/security"
	sessiondomain "github.com/moneywright/moneywright/internal/session/domain"
	sessionservice "github.com/moneywright/moneywright/internal/session/service"
	userdomain "github.com/moneywright/moneywright/internal/user/domain"
	userrepo "github.com/moneywright/moneywright/internal/user/repository"
)

// Sentinel errors for the identity exchange; handlers map them to HTTP codes.
var (
	ErrInvalidState        = errors.New("invalid or expired state")
	ErrTokenExchangeFailed = errors.New("provider code exchange failed")
	ErrProfileIncomplete   = errors.New("provider profile missing subject or email")
)

const (
	// stateTTL bounds how long an issued state stays redeemable.
	stateTTL = 10 * time.Minute
	// exchangeTimeout bounds the outbound call to the provider.
	exchangeTimeout = 10 * time.Second
)

// StatePayload rides inside the sealed state parameter. The verifier never
// leaves the server in plaintext; the nonce makes each state single-use.
type StatePayload struct {
	Nonce    string `json:"n"`
	Verifier string `json:"v"`
	Redirect string `json:"r,omitempty"`
}

// codeExchanger is the outbound OAuth2 surface. *oauth2.Config satisfies it;
// tests substitute a fake.
type codeExchanger interface {
	AuthCodeURL(state string, opts ...oauth2.AuthCodeOption) string
	Exchange(ctx context.Context, code string, opts ...oauth2.AuthCodeOption) (*oauth2.Token, error)
}

// IDTokenVerifier verifies a raw ID token and returns the asserted profile.
type IDTokenVerifier interface {
	VerifyIDToken(ctx context.Context, rawIDToken string) (*domain.Profile, error)
}

// SessionCreator is the session surface the exchange needs.
type SessionCreator interface {
	CreateSession(ctx context.Context, userID string, meta sessiondomain.ClientMeta) (*sessionservice.TokenBundle, error)
}

// Exchange drives the federated login: challenge issuance with PKCE, code
// exchange, ID-token verification, user resolution, session creation.
type Exchange struct {
	oauth    codeExchanger
	verifier IDTokenVerifier
	sealer   *security.Sealer
	replay   *replay.Store
	users    userrepo.Repository
	sessions SessionCreator
	audit    audit.Recorder
}

// NewExchange returns an Exchange with the given dependencies.
func NewExchange(
	oauth codeExchanger,
	verifier IDTokenVerifier,
	sealer *security.Sealer,
	replayStore *replay.Store,
	users userrepo.Repository,
	sessions SessionCreator,
	auditLog audit.Recorder,
) *Exchange {
	return &Exchange{
		oauth:    oauth,
		verifier: verifier,
		sealer:   sealer,
		replay:   replayStore,
		users:    users,
		sessions: sessions,
		audit:    auditLog,
	}
}

// GenerateAuthURL starts a login: mints a PKCE verifier and its S256
// challenge, seals {nonce, verifier, redirect} into the state parameter, and
// registers the nonce so the state works exactly once.
func (e *Exchange) GenerateAuthURL(ctx context.Context, redirectTarget string) (url, state string, err error) {
	verifier, err := security.GenerateVerifier()
	if err != nil {
		return "", "", err
	}
	nonce, err := security.NewSecret(16)
	if err != nil {
		return "", "", err
	}
	payload, err := json.Marshal(StatePayload{
		Nonce:    nonce,
		Verifier: verifier,
		Redirect: sanitizeRedirect(redirectTarget),
	})
	if err != nil {
		return "", "", err
	}
	state, err = e.sealer.Seal(payload)
	if err != nil {
		return "", "", err
	}
	e.replay.Put(nonce, time.Now().UTC().Add(stateTTL))
	url = e.oauth.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("code_challenge", security.ComputeS256Challenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
	return url, state, nil
}

// ParseState opens and consumes a sealed state. Returns ErrInvalidState when
// decryption fails, the payload shape is wrong, or the nonce was already
// consumed or expired.
func (e *Exchange) ParseState(state string) (*StatePayload, error) {
	raw, err := e.sealer.Open(state)
	if err != nil {
		return nil, ErrInvalidState
	}
	var p StatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, ErrInvalidState
	}
	if p.Nonce == "" || p.Verifier == "" {
		return nil, ErrInvalidState
	}
	if !e.replay.Consume(p.Nonce) {
		return nil, ErrInvalidState
	}
	return &p, nil
}

// ExchangeCode redeems the authorization code with the provider, proves
// possession of the PKCE verifier, and verifies the returned ID token.
func (e *Exchange) ExchangeCode(ctx context.Context, code, verifier string) (*domain.Profile, error) {
	ctx, cancel := context.WithTimeout(ctx, exchangeTimeout)
	defer cancel()
	token, err := e.oauth.Exchange(ctx, code, oauth2.SetAuthURLParam("code_verifier", verifier))
	if err != nil {
		return nil, ErrTokenExchangeFailed
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrTokenExchangeFailed
	}
	profile, err := e.verifier.VerifyIDToken(ctx, rawIDToken)
	if err != nil {
		return nil, ErrTokenExchangeFailed
	}
	if profile.Subject == "" || profile.Email == "" {
		return nil, ErrProfileIncomplete
	}
	return profile, nil
}

// FindOrCreateUser resolves the federated identity to a local account,
// creating it on first sight.
func (e *Exchange) FindOrCreateUser(ctx context.Context, federatedID string, p *domain.Profile) (*userdomain.User, bool, error) {
	existing, err := e.users.GetByGoogleID(ctx, federatedID)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}
	user := &userdomain.User{
		ID:          uuid.New().String(),
		GoogleID:    federatedID,
		Email:       p.Email,
		DisplayName: p.Name,
		CreatedAt:   time.Now().UTC(),
	}
	if err := user.Validate(); err != nil {
		return nil, false, err
	}
	if err := e.users.Create(ctx, user); err != nil {
		return nil, false, err
	}
	e.audit.Record(ctx, user.ID, auditdomain.ActionUserCreated, user.Email, "", "")
	return user, true, nil
}

// Login is the terminal step of the federation flow: consume the state,
// redeem the code, resolve the user, and mint a session.
func (e *Exchange) Login(ctx context.Context, code, state string, meta sessiondomain.ClientMeta) (*sessionservice.TokenBundle, *userdomain.User, string, error) {
	payload, err := e.ParseState(state)
	if err != nil {
		return nil, nil, "", err
	}
	profile, err := e.ExchangeCode(ctx, code, payload.Verifier)
	if err != nil {
		return nil, nil, "", err
	}
	user, _, err := e.FindOrCreateUser(ctx, profile.Subject, profile)
	if err != nil {
		return nil, nil, "", err
	}
	bundle, err := e.sessions.CreateSession(ctx, user.ID, meta)
	if err != nil {
		return nil, nil, "", err
	}
	redirect := payload.Redirect
	if redirect == "" {
		redirect = "/"
	}
	return bundle, user, redirect, nil
}

// sanitizeRedirect keeps redirect targets on this origin: a relative path
// starting with a single "/". Anything else falls back to "/".
func sanitizeRedirect(target string) string {
	if target == "" || !strings.HasPrefix(target, "/") {
		return "/"
	}
	if strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return "/"
	}
	return target
}

// OIDCVerifier adapts go-oidc's ID token verifier to the IDTokenVerifier
// interface.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier wraps v.
func NewOIDCVerifier(v *oidc.IDTokenVerifier) *OIDCVerifier {
	return &OIDCVerifier{verifier: v}
}

// VerifyIDToken verifies signature, issuer, audience, and expiry, then
// extracts the profile claims.
func (o *OIDCVerifier) VerifyIDToken(ctx context.Context, rawIDToken string) (*domain.Profile, error) {
	idToken, err := o.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, err
	}
	var claims struct {
		Email         string `json:"email"`
		EmailVerified bool   `json:"email_verified"`
		Name          string `json:"name"`
		Picture       string `json:"picture"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, err
	}
	return &domain.Profile{
		Subject:       idToken.Subject,
		Email:         claims.Email,
		Name:          claims.Name,
		Picture:       claims.Picture,
		EmailVerified: claims.EmailVerified,
	}, nil
}
