package authsync_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/teamblitzer/go-authsync"
)

// MockProvider is a testify mock for the session backend.
type MockProvider struct {
	mock.Mock
	events chan authsync.AuthEvent
}

func NewMockProvider() *MockProvider {
	return &MockProvider{
		events: make(chan authsync.AuthEvent, 8),
	}
}

func (m *MockProvider) GetSession(ctx context.Context) (*authsync.Session, error) {
	args := m.Called(ctx)
	var session *authsync.Session
	if v := args.Get(0); v != nil {
		session = v.(*authsync.Session)
	}
	return session, args.Error(1)
}

func (m *MockProvider) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*authsync.Identity, error) {
	args := m.Called(ctx, email, password, metadata)
	var identity *authsync.Identity
	if v := args.Get(0); v != nil {
		identity = v.(*authsync.Identity)
	}
	return identity, args.Error(1)
}

func (m *MockProvider) SignInWithPassword(ctx context.Context, email, password string) (*authsync.Session, error) {
	args := m.Called(ctx, email, password)
	var session *authsync.Session
	if v := args.Get(0); v != nil {
		session = v.(*authsync.Session)
	}
	return session, args.Error(1)
}

func (m *MockProvider) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockProvider) Events() <-chan authsync.AuthEvent {
	return m.events
}

// Push delivers an auth-state-change notification as the backend would.
func (m *MockProvider) Push(event authsync.AuthEvent) {
	m.events <- event
}

// MockProfileStore is a testify mock for the profiles table.
type MockProfileStore struct {
	mock.Mock
}

func (m *MockProfileStore) SelectProfile(ctx context.Context, id uuid.UUID) (*authsync.Profile, error) {
	args := m.Called(ctx, id)
	var profile *authsync.Profile
	if v := args.Get(0); v != nil {
		profile = v.(*authsync.Profile)
	}
	return profile, args.Error(1)
}

func (m *MockProfileStore) UpsertProfile(ctx context.Context, profile *authsync.Profile) (*authsync.Profile, error) {
	args := m.Called(ctx, profile)
	var persisted *authsync.Profile
	if v := args.Get(0); v != nil {
		persisted = v.(*authsync.Profile)
	}
	return persisted, args.Error(1)
}

// capturingSink records every activity event for assertions.
type capturingSink struct {
	mu     sync.Mutex
	events []authsync.ActivityEvent
}

func (s *capturingSink) Record(_ context.Context, event authsync.ActivityEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *capturingSink) Types() []authsync.ActivityEventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]authsync.ActivityEventType, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e.EventType)
	}
	return out
}

func (s *capturingSink) Has(t authsync.ActivityEventType) bool {
	for _, et := range s.Types() {
		if et == t {
			return true
		}
	}
	return false
}

func newTestSession(id uuid.UUID, email string) *authsync.Session {
	expires := time.Now().Add(time.Hour)
	return &authsync.Session{
		AccessToken:  "token-" + id.String(),
		TokenType:    "bearer",
		RefreshToken: "refresh-" + id.String(),
		ExpiresAt:    &expires,
		Identity:     authsync.Identity{ID: id, Email: email},
	}
}

func newTestProfile(id uuid.UUID, email, fullName string) *authsync.Profile {
	p := &authsync.Profile{ID: id, Email: email}
	if fullName != "" {
		p.FullName = &fullName
	}
	return p
}
