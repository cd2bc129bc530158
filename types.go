package authsync

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Identity holds the stable id/email pair issued by the remote service.
// It is immutable once created; the backend owns its lifecycle.
type Identity struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

// Session is the bearer credential proving a live authenticated state.
// Present iff the user is authenticated; the remote service refreshes it.
type Session struct {
	AccessToken  string     `json:"access_token"`
	TokenType    string     `json:"token_type,omitempty"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Identity     Identity   `json:"identity"`
}

// Expired reports whether the session's lifetime has elapsed. Sessions
// without an expiry are treated as live.
func (s *Session) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	if s.ExpiresAt == nil {
		return false
	}
	return !now.Before(*s.ExpiresAt)
}

func (s *Session) String() string {
	if s == nil {
		return "<nil>"
	}
	expires := "<nil>"
	if s.ExpiresAt != nil {
		expires = s.ExpiresAt.Format(time.RFC1123)
	}
	return fmt.Sprintf("user=%s exp=%s", s.Identity.ID, expires)
}

// GuardConfig holds the options the route guard needs to admit or
// redirect navigation into protected areas.
type GuardConfig interface {
	GetSignInPath() string
	GetRejectedRouteKey() string
	GetRejectedRouteDefault() string
}

// DefaultLogger returns the fallback printf-style logger.
func DefaultLogger() Logger {
	return defLogger{}
}

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] AUTHSYNC "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] AUTHSYNC "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}
