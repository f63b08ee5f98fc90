package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/outreachhq/outreach-backend/internal/config"
)

// Claims is what a bearer token asserts about its holder. Subject and Email
// may both be empty; Raw holds every claim exactly as decoded.
type Claims struct {
	Subject   string         `json:"sub,omitempty"`
	Email     string         `json:"email,omitempty"`
	IssuedAt  time.Time      `json:"iat,omitzero"`
	ExpiresAt time.Time      `json:"exp,omitzero"`
	Raw       map[string]any `json:"claims"`
}

// SecretSource yields the HMAC secret for an environment. *config.Config
// implements it.
type SecretSource interface {
	JWTSecret(env config.Environment) []byte
}

// Verifier checks HS256 bearer tokens. The environment and its secret are
// looked up on every call, so a changed APP_ENV takes effect without a
// restart.
type Verifier struct {
	env     func() config.Environment
	secrets SecretSource
	parser  *jwt.Parser
}

// NewVerifier builds a Verifier. env is the environment selector, normally
// (*config.Config).CurrentEnvironment.
func NewVerifier(env func() config.Environment, secrets SecretSource, opts ...jwt.ParserOption) *Verifier {
	opts = append([]jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}, opts...)
	return &Verifier{
		env:     env,
		secrets: secrets,
		parser:  jwt.NewParser(opts...),
	}
}

// Verify validates token against the secret of the current environment.
// Every failure is an *AuthError.
func (v *Verifier) Verify(token string) (*Claims, error) {
	return v.VerifyFor(v.env(), token)
}

// VerifyFor is Verify with the environment already chosen by the caller.
func (v *Verifier) VerifyFor(env config.Environment, token string) (*Claims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, newAuthError(KindMissing, nil)
	}

	secret := v.secrets.JWTSecret(env)
	if len(secret) == 0 {
		return nil, newAuthError(KindGeneric, fmt.Errorf("no signing secret configured for %s", env))
	}

	mc := jwt.MapClaims{}
	_, err := v.parser.ParseWithClaims(token, mc, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, newAuthError(KindExpired, err)
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, newAuthError(KindInvalidSignature, err)
		default:
			return nil, newAuthError(KindGeneric, err)
		}
	}

	return claimsFrom(mc), nil
}

// Decode parses token without checking its signature or expiry. It is for
// diagnostics only and returns nil for anything that is not a well-formed
// JWT.
func Decode(token string) *Claims {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, mc); err != nil {
		return nil
	}
	return claimsFrom(mc)
}

func claimsFrom(mc jwt.MapClaims) *Claims {
	c := &Claims{Raw: map[string]any(mc)}
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if email, ok := mc["email"].(string); ok {
		c.Email = email
	}
	if iat, err := mc.GetIssuedAt(); err == nil && iat != nil {
		c.IssuedAt = iat.Time
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	return c
}
