package authsync

import (
	"context"
	"time"
)

// ActivityEventType enumerates the diagnostic events emitted per state
// transition.
type ActivityEventType string

const (
	ActivityEventInitResolved    ActivityEventType = "auth.init.resolved"
	ActivityEventInitTimeout     ActivityEventType = "auth.init.timeout"
	ActivityEventSignInSuccess   ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure   ActivityEventType = "auth.signin.failure"
	ActivityEventSignUpSuccess   ActivityEventType = "auth.signup.success"
	ActivityEventSignUpFailure   ActivityEventType = "auth.signup.failure"
	ActivityEventSignOut         ActivityEventType = "auth.signout"
	ActivityEventSessionAdopted  ActivityEventType = "session.adopted"
	ActivityEventSessionCleared  ActivityEventType = "session.cleared"
	ActivityEventProfileAdopted  ActivityEventType = "profile.adopted"
	ActivityEventProfileFallback ActivityEventType = "profile.fallback"
	ActivityEventProfileUpdated  ActivityEventType = "profile.updated"
)

// ActivityEvent captures audit-friendly information about a transition.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
