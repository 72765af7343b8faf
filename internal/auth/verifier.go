// Package auth validates bearer tokens against a remote JWKS key set.
//
// Verification is stateless: each call is a pure function of the token and
// the current key set. The only mutable state is the key cache inside the
// JWKS client, which this package never inspects directly.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/semgrep-mcp/semgrep-mcp/internal/config"
)

// leeway is the clock-skew tolerance applied to all time-based claims.
const leeway = 10 * time.Second

// fixedScopes is the scope set granted to every verified token.
var fixedScopes = []string{"openid", "profile", "email"}

// VerifiedToken is the outcome of a successful verification. It is
// constructed fresh per call and never cached.
type VerifiedToken struct {
	Token     string
	ClientID  string
	Scopes    []string
	ExpiresAt time.Time
}

// Verifier validates JWTs signed by keys published at a JWKS endpoint.
type Verifier struct {
	keyfunc      jwt.Keyfunc
	issuer       string
	audience     string
	skipAudience bool
}

// NewVerifier builds a verifier bound to the configured JWKS endpoint.
// The underlying JWKS client fetches and caches signing keys by key ID,
// refreshing them in the background until ctx is cancelled.
func NewVerifier(ctx context.Context, cfg config.AuthConfig) (*Verifier, error) {
	kf, err := keyfunc.NewDefaultCtx(ctx, []string{cfg.JWKSURL})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWKS client for %s: %w", cfg.JWKSURL, err)
	}
	if cfg.SkipAudienceCheck {
		log.Warn().Msg("Audience claim check is DISABLED (AUTH_SKIP_AUDIENCE_CHECK); only intended for dynamic client registration")
	}
	return newVerifier(kf.Keyfunc, cfg), nil
}

// newVerifier wires an explicit key resolver; split out for tests.
func newVerifier(kf jwt.Keyfunc, cfg config.AuthConfig) *Verifier {
	return &Verifier{
		keyfunc:      kf,
		issuer:       cfg.Issuer,
		audience:     cfg.Audience,
		skipAudience: cfg.SkipAudienceCheck,
	}
}

// Verify checks a bearer token and returns the verified identity, or nil
// if the token is invalid for any reason. Failure reasons are logged but
// never returned: the caller only learns "unauthenticated".
//
// Enforced hard requirements:
//   - RS256 only; the algorithm is pinned, never read from the token
//   - exp, iat, iss, aud must all be present
//   - iss must equal the configured issuer
//   - aud must match the configured audience unless skipAudience is set
func (v *Verifier) Verify(tokenString string) *VerifiedToken {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(v.issuer),
	}
	if !v.skipAudience {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, v.keyfunc, opts...)
	if err != nil || !token.Valid {
		log.Warn().Err(err).Msg("JWT validation failed")
		return nil
	}

	// The parser validates values; presence of every required claim is
	// enforced here.
	for _, required := range []string{"exp", "iat", "iss", "aud"} {
		if _, ok := claims[required]; !ok {
			log.Warn().Str("claim", required).Msg("JWT rejected: required claim missing")
			return nil
		}
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		log.Warn().Err(err).Msg("JWT rejected: unreadable exp claim")
		return nil
	}

	return &VerifiedToken{
		Token:     tokenString,
		ClientID:  clientIDFromAudience(claims),
		Scopes:    fixedScopes,
		ExpiresAt: exp.Time,
	}
}

// clientIDFromAudience derives the client identifier from the aud claim,
// falling back to a fixed placeholder if it cannot be read.
func clientIDFromAudience(claims jwt.MapClaims) string {
	switch aud := claims["aud"].(type) {
	case string:
		return aud
	case []any:
		if len(aud) > 0 {
			if s, ok := aud[0].(string); ok {
				return s
			}
		}
	}
	return "unknown"
}
