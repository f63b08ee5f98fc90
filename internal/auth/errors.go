// Package auth verifies bearer tokens, resolves the caller's roles from the
// accounts table, and decides whether a role set satisfies a requirement.
package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized means the caller is not authenticated: no identity, or a
	// token that failed verification.
	ErrUnauthorized = errors.New("missing authorization")
	// ErrForbidden means the caller is authenticated but lacks every
	// required role.
	ErrForbidden = errors.New("forbidden")
)

// Kind classifies a verification failure.
type Kind string

const (
	KindMissing          Kind = "missing"
	KindExpired          Kind = "expired"
	KindInvalidSignature Kind = "invalid_signature"
	KindGeneric          Kind = "generic"
)

var kindMessages = map[Kind]string{
	KindMissing:          "missing authorization token",
	KindExpired:          "token has expired",
	KindInvalidSignature: "invalid token signature",
	KindGeneric:          "invalid token",
}

// AuthError is returned by Verifier.Verify. It matches ErrUnauthorized under
// errors.Is whatever its kind.
type AuthError struct {
	Kind  Kind
	cause error
}

func newAuthError(kind Kind, cause error) *AuthError {
	return &AuthError{Kind: kind, cause: cause}
}

// Message is the client-facing text for the failure. It never includes the
// underlying cause.
func (e *AuthError) Message() string {
	if m, ok := kindMessages[e.Kind]; ok {
		return m
	}
	return kindMessages[KindGeneric]
}

func (e *AuthError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("auth: %s: %v", e.Message(), e.cause)
	}
	return "auth: " + e.Message()
}

func (e *AuthError) Unwrap() error { return e.cause }

func (e *AuthError) Is(target error) bool { return target == ErrUnauthorized }
