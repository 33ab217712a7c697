// Package errs defines the error taxonomy shared across the platform. Each
// kind is a sentinel that call sites match with errors.Is, plus (where the
// kind carries data) a typed wrapper that call sites unwrap with errors.As.
package errs

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel kinds. Wrap one of these with fmt.Errorf("...: %w", ErrXxx) to
// preserve the kind while adding context.
var (
	// ErrConfig marks an invalid or conflicting module descriptor, or a
	// missing required environment variable.
	ErrConfig = errors.New("config error")

	// ErrDependency marks an ambiguous or unresolved registry lookup, or a
	// cyclic dependency detected at kernel start.
	ErrDependency = errors.New("dependency error")

	// ErrLifecycle marks a module that refused to start, or exceeded its
	// shutdown deadline.
	ErrLifecycle = errors.New("lifecycle error")

	// ErrAuthorization marks a principal lacking permission for an operation.
	ErrAuthorization = errors.New("authorization error")

	// ErrAuthentication marks invalid credentials, an expired or tampered
	// token, a refresh token that could not be found, or an OAuth/SAML
	// state mismatch.
	ErrAuthentication = errors.New("authentication error")

	// ErrBlocked marks an account that is temporarily or permanently blocked.
	ErrBlocked = errors.New("account blocked")

	// ErrNotFound marks an absent user, role, group, or other resource.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks a duplicate username or email.
	ErrConflict = errors.New("conflict")

	// ErrValidation marks a malformed request body.
	ErrValidation = errors.New("validation error")

	// ErrTimeout marks a worker dispatch or store call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrIntegrity marks a refresh rotation that lost the race to a
	// concurrent rotation of the same token.
	ErrIntegrity = errors.New("integrity error")
)

// AuthorizationError carries a stable, machine-readable denial code, e.g.
// "identity.users.DELETE.denied".
type AuthorizationError struct {
	Code string
}

func (e *AuthorizationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthorization, e.Code)
}

func (e *AuthorizationError) Unwrap() error { return ErrAuthorization }

// NewAuthorizationError builds an AuthorizationError with the given code.
func NewAuthorizationError(code string) error {
	return &AuthorizationError{Code: code}
}

// BlockedError carries the block status (§3 Block status).
type BlockedError struct {
	BlockedUntil *time.Time
	Permanent    bool
	Reason       string
}

func (e *BlockedError) Error() string {
	if e.Permanent {
		return fmt.Sprintf("%s: permanently blocked: %s", ErrBlocked, e.Reason)
	}

	return fmt.Sprintf("%s: temporarily blocked until %s: %s", ErrBlocked, e.BlockedUntil, e.Reason)
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// AuthenticationError optionally signals that the caller must re-authenticate
// from scratch (e.g. after a geographic change invalidated their session, §4.10).
type AuthenticationError struct {
	Reason          string
	RequireRelogin  bool
	UsedPreviousKey bool
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrAuthentication, e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return ErrAuthentication }

// NewAuthenticationError builds an AuthenticationError with the given reason.
func NewAuthenticationError(reason string) error {
	return &AuthenticationError{Reason: reason}
}

// ConflictError names the field that collided (e.g. "username", "email").
type ConflictError struct {
	Field string
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s: %s %q already exists", ErrConflict, e.Field, e.Value)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ErrorKey is a stable, wire-safe identifier for a structured error response (§6.2).
type ErrorKey string

// Well-known error keys surfaced on the wire.
const (
	ErrorKeyInvalidCredentials      ErrorKey = "INVALID_CREDENTIALS"
	ErrorKeyAccountBlockedTemporary ErrorKey = "ACCOUNT_BLOCKED_TEMPORARY"
	ErrorKeyAccountBlockedPermanent ErrorKey = "ACCOUNT_BLOCKED_PERMANENT"
	ErrorKeyRefreshNotFound         ErrorKey = "REFRESH_TOKEN_NOT_FOUND"
	ErrorKeyRequireRelogin          ErrorKey = "REQUIRE_RELOGIN"
	ErrorKeyUsernameTaken           ErrorKey = "USERNAME_TAKEN"
	ErrorKeyEmailTaken              ErrorKey = "EMAIL_TAKEN"
	ErrorKeyValidation              ErrorKey = "VALIDATION_ERROR"
	ErrorKeyForbidden               ErrorKey = "FORBIDDEN"
	ErrorKeyInternal                ErrorKey = "INTERNAL"
)

// Response is the wire shape for a structured error response (§6.2).
type Response struct {
	Status   int            `json:"status"`
	ErrorKey ErrorKey       `json:"errorKey"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
}
