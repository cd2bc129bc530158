package authsync

import (
	"context"

	"github.com/google/uuid"
)

// AuthEventKind enumerates the auth-state notifications a backend delivers.
type AuthEventKind string

const (
	AuthEventSignedIn       AuthEventKind = "SIGNED_IN"
	AuthEventSignedOut      AuthEventKind = "SIGNED_OUT"
	AuthEventTokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
	AuthEventUserUpdated    AuthEventKind = "USER_UPDATED"
)

// AuthEvent is a single auth-state-change notification. Session is nil for
// SIGNED_OUT events. Events must be delivered in the order the backend
// produced them; the orchestrator is the single consumer.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// Provider is the remote auth service contract. Implementations wrap a
// hosted backend (see provider/supabase) or an embedded one for local
// development and tests (see provider/local).
type Provider interface {
	// GetSession returns the current session, or (nil, nil) when none exists.
	GetSession(ctx context.Context) (*Session, error)

	// SignUp registers a new identity. Metadata rides along for server-side
	// provisioning triggers. A created identity is not yet authenticated
	// when the backend gates sign-in on email verification.
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*Identity, error)

	// SignInWithPassword exchanges credentials for a session.
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)

	// SignOut revokes the current session on the backend.
	SignOut(ctx context.Context) error

	// Events returns the auth-state-change channel for the lifetime of the
	// provider. Repeated calls return the same channel.
	Events() <-chan AuthEvent
}

// ProfileStore is the row-oriented profile storage contract. SelectProfile
// returns ErrProfileNotFound (category not-found) for missing rows.
// UpsertProfile is an insert-or-update keyed by id and returns the
// persisted row as the backend sees it.
type ProfileStore interface {
	SelectProfile(ctx context.Context, id uuid.UUID) (*Profile, error)
	UpsertProfile(ctx context.Context, row *Profile) (*Profile, error)
}
