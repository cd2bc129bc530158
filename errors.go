package authsync

import (
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	textCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	textCodeProfilePersistence = "PROFILE_PERSISTENCE"
	textCodeSignUpTimeout      = "SIGNUP_TIMEOUT"
	textCodeSaveTimeout        = "SAVE_TIMEOUT"
	textCodeRateLimited        = "RATE_LIMITED"
	textCodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
	textCodeBadCredentials     = "INVALID_CREDENTIALS"
	textCodeServiceError       = "SERVICE_ERROR"
)

// ErrNotAuthenticated is returned when an operation requires a held identity.
var ErrNotAuthenticated = goerrors.New("no identity held", goerrors.CategoryAuth).
	WithTextCode(textCodeNotAuthenticated).
	WithCode(goerrors.CodeUnauthorized)

// ErrProfileNotFound signals the profile row does not exist for the identity.
var ErrProfileNotFound = goerrors.New("profile not found", goerrors.CategoryNotFound).
	WithTextCode(textCodeProfileNotFound)

// ErrProfileNotPersisted is returned when a profile save yields no row.
var ErrProfileNotPersisted = goerrors.New("no profile row returned from save", goerrors.CategoryOperation).
	WithTextCode(textCodeProfilePersistence)

// ErrSignUpTimeout is the user-facing error when registration overruns its budget.
// The underlying call is not aborted; the caller may retry manually.
var ErrSignUpTimeout = goerrors.New("sign up is taking longer than expected, please try again", goerrors.CategoryInternal).
	WithTextCode(textCodeSignUpTimeout)

// ErrSaveTimeout is surfaced by the profile editor when a save overruns
// its own ceiling, distinct from the orchestrator's internal timeouts.
var ErrSaveTimeout = goerrors.New("profile save timed out, please try again", goerrors.CategoryInternal).
	WithTextCode(textCodeSaveTimeout)

// ErrSaveInProgress is returned when a save is started while another one
// is still in flight.
var ErrSaveInProgress = goerrors.New("a profile save is already in progress", goerrors.CategoryConflict).
	WithTextCode("SAVE_IN_PROGRESS").
	WithCode(goerrors.CodeConflict)

// ErrRateLimited deliberately rewrites the backend's throttling message
// into a generic one so backend behavior does not leak to users.
var ErrRateLimited = goerrors.New("too many attempts, please wait a moment and try again", goerrors.CategoryRateLimit).
	WithTextCode(textCodeRateLimited)

// ErrEmailNotVerified is returned when sign-in is gated on email confirmation.
var ErrEmailNotVerified = goerrors.New("please verify your email before signing in, check your inbox for the confirmation link", goerrors.CategoryAuth).
	WithTextCode(textCodeEmailNotVerified).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidCredentials covers failed password sign-ins.
var ErrInvalidCredentials = goerrors.New("invalid email or password", goerrors.CategoryAuth).
	WithTextCode(textCodeBadCredentials).
	WithCode(goerrors.CodeUnauthorized)

// IsRateLimitedMessage checks whether a remote error message signals throttling.
func IsRateLimitedMessage(msg string) bool {
	if msg == "" {
		return false
	}
	return strings.Contains(msg, "security purposes") ||
		strings.Contains(msg, "request this after")
}

// IsEmailUnverifiedMessage checks whether a remote error message signals a
// pending email confirmation.
func IsEmailUnverifiedMessage(msg string) bool {
	if msg == "" {
		return false
	}
	return strings.Contains(msg, "Email not confirmed") ||
		strings.Contains(msg, "verify your email")
}

// ClassifyRemoteMessage maps a raw backend error message into the error
// taxonomy. Unrecognized messages come back wrapped as a service error.
func ClassifyRemoteMessage(msg string) error {
	switch {
	case IsRateLimitedMessage(msg):
		return ErrRateLimited
	case IsEmailUnverifiedMessage(msg):
		return ErrEmailNotVerified
	case strings.Contains(msg, "Invalid login credentials"):
		return ErrInvalidCredentials
	default:
		return goerrors.New(msg, goerrors.CategoryAuth).
			WithTextCode(textCodeServiceError)
	}
}
