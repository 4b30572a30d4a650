// Package session verifies provider session tokens against the instance's
// signing keys.
package session

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/smallbiznis/fieldrunner/internal/auth/domain"
	"github.com/smallbiznis/fieldrunner/internal/clock"
	"github.com/smallbiznis/fieldrunner/internal/config"
	obsmetrics "github.com/smallbiznis/fieldrunner/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrNoKeySource   = errors.New("no session key source configured")
	ErrInvalidJWTKey = errors.New("invalid CLERK_JWT_KEY")
)

type Params struct {
	fx.In

	Cfg     config.Config
	Log     *zap.Logger
	Clock   clock.Clock         `optional:"true"`
	Metrics *obsmetrics.Metrics `optional:"true"`
}

type Verifier struct {
	verifier          *oidc.IDTokenVerifier
	authorizedParties []string
	log               *zap.Logger
	metrics           *obsmetrics.Metrics
}

type claims struct {
	Subject         string `json:"sub"`
	SessionID       string `json:"sid"`
	AuthorizedParty string `json:"azp"`
	OrgID           string `json:"org_id"`
	OrgSlug         string `json:"org_slug"`
	OrgRole         string `json:"org_role"`

	// Version 2 session tokens nest the active organization.
	Org *struct {
		ID   string `json:"id"`
		Slug string `json:"slg"`
		Role string `json:"rol"`
	} `json:"o"`
}

// NewVerifier prefers the PEM key in CLERK_JWT_KEY, which needs no network,
// and falls back to the JWKS endpoint. Without either every token is
// rejected.
func NewVerifier(p Params) (domain.SessionVerifier, error) {
	log := p.Log.Named("auth.session")
	clerk := p.Cfg.Clerk

	keySet, err := keySetFromConfig(clerk)
	if err != nil {
		if errors.Is(err, ErrNoKeySource) {
			log.Warn("session verification disabled, set CLERK_JWT_KEY or CLERK_ISSUER")
			return &Verifier{log: log, metrics: p.Metrics}, nil
		}
		return nil, err
	}

	oidcCfg := &oidc.Config{
		SkipClientIDCheck:    true,
		SkipIssuerCheck:      clerk.Issuer == "",
		SupportedSigningAlgs: []string{oidc.RS256},
	}
	if p.Clock != nil {
		oidcCfg.Now = p.Clock.Now
	}

	return &Verifier{
		verifier:          oidc.NewVerifier(clerk.Issuer, keySet, oidcCfg),
		authorizedParties: clerk.AuthorizedParties,
		log:               log,
		metrics:           p.Metrics,
	}, nil
}

func keySetFromConfig(clerk config.ClerkConfig) (oidc.KeySet, error) {
	if clerk.JWTKey != "" {
		key, err := ParsePublicKey(clerk.JWTKey)
		if err != nil {
			return nil, err
		}
		return &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key}}, nil
	}

	jwksURL := clerk.JWKSURL
	if jwksURL == "" && clerk.Issuer != "" {
		jwksURL = clerk.Issuer + "/.well-known/jwks.json"
	}
	if jwksURL == "" {
		return nil, ErrNoKeySource
	}
	return oidc.NewRemoteKeySet(context.Background(), jwksURL), nil
}

// ParsePublicKey reads a PEM encoded public key. Escaped newlines, as found
// in single-line environment values, are accepted.
func ParsePublicKey(raw string) (crypto.PublicKey, error) {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), `\n`, "\n")
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrInvalidJWTKey)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJWTKey, err)
	}
	return key, nil
}

func (v *Verifier) VerifySessionToken(ctx context.Context, token string) (*domain.Principal, error) {
	principal, err := v.verify(ctx, strings.TrimSpace(token))
	if err != nil {
		v.log.Debug("session token rejected", zap.Error(err))
		v.metrics.RecordSessionVerification(ctx, "rejected")
		return nil, fmt.Errorf("%w: %v", domain.ErrUnauthorized, err)
	}
	v.metrics.RecordSessionVerification(ctx, "verified")
	return principal, nil
}

func (v *Verifier) verify(ctx context.Context, token string) (*domain.Principal, error) {
	if v.verifier == nil {
		return nil, ErrNoKeySource
	}
	if token == "" {
		return nil, errors.New("empty token")
	}

	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	var c claims
	if err := idToken.Claims(&c); err != nil {
		return nil, err
	}
	if c.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	if len(v.authorizedParties) > 0 && !slices.Contains(v.authorizedParties, c.AuthorizedParty) {
		return nil, fmt.Errorf("authorized party %q not allowed", c.AuthorizedParty)
	}

	principal := &domain.Principal{
		UserID:    c.Subject,
		SessionID: c.SessionID,
		OrgID:     c.OrgID,
		OrgSlug:   c.OrgSlug,
		OrgRole:   c.OrgRole,
	}
	if principal.OrgID == "" && c.Org != nil && c.Org.ID != "" {
		principal.OrgID = c.Org.ID
		principal.OrgSlug = c.Org.Slug
		principal.OrgRole = c.Org.Role
		if principal.OrgRole != "" && !strings.HasPrefix(principal.OrgRole, "org:") {
			principal.OrgRole = "org:" + principal.OrgRole
		}
	}
	return principal, nil
}
