package authsync

import (
	"context"
	"errors"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

const (
	// DefaultInitTimeout is the ceiling on session initialization. A hung
	// remote call settles the store to unauthenticated once it fires.
	DefaultInitTimeout = 5 * time.Second

	// DefaultSignUpTimeout bounds how long a registration may block its
	// caller before reporting a "taking longer than expected" error.
	DefaultSignUpTimeout = 15 * time.Second
)

// Orchestrator is the sole owner of the session/profile store. Every state
// transition (initialize, sign up, sign in, sign out, profile update,
// profile refresh) goes through it; nothing else writes to the store.
type Orchestrator struct {
	provider Provider
	profiles ProfileStore
	store    *Store
	logger   Logger
	sink     ActivitySink
	now      func() time.Time

	initTimeout   time.Duration
	signUpTimeout time.Duration

	initOnce  sync.Once
	loopOnce  sync.Once
	closeOnce sync.Once
	done      chan struct{}
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithLogger overrides the default logger.
func WithLogger(logger Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithActivitySink sets the sink that receives per-transition events.
func WithActivitySink(sink ActivitySink) Option {
	return func(o *Orchestrator) {
		o.sink = normalizeActivitySink(sink)
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) {
		if clock != nil {
			o.now = clock
		}
	}
}

// WithInitTimeout overrides the initialization ceiling.
func WithInitTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.initTimeout = d
		}
	}
}

// WithSignUpTimeout overrides the registration budget.
func WithSignUpTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.signUpTimeout = d
		}
	}
}

// WithStore installs an externally constructed store, so callers holding
// subscriptions can create it first.
func WithStore(store *Store) Option {
	return func(o *Orchestrator) {
		if store != nil {
			o.store = store
		}
	}
}

// New returns an orchestrator over the given backend. Call Initialize once
// to resolve the initial session and start consuming auth events.
func New(provider Provider, profiles ProfileStore, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		provider:      provider,
		profiles:      profiles,
		store:         NewStore(),
		logger:        defLogger{},
		sink:          noopActivitySink{},
		now:           time.Now,
		initTimeout:   DefaultInitTimeout,
		signUpTimeout: DefaultSignUpTimeout,
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(o)
		}
	}

	return o
}

// Store exposes the owned store for snapshot readers and subscribers.
func (o *Orchestrator) Store() *Store {
	return o.store
}

// Snapshot returns the current store state.
func (o *Orchestrator) Snapshot() State {
	return o.store.Snapshot()
}

// Close stops the auth event consumer. The store keeps its last state.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
	})
}

// Initialize resolves the initial session under the configured ceiling and
// starts consuming the provider's auth-state-change events. Subsequent
// calls are no-ops. Whatever happens, the store leaves the loading state.
func (o *Orchestrator) Initialize(ctx context.Context) error {
	var err error
	o.initOnce.Do(func() {
		err = o.initialize(ctx)
	})
	return err
}

func (o *Orchestrator) initialize(ctx context.Context) error {
	type sessionResult struct {
		session *Session
		err     error
	}

	results := make(chan sessionResult, 1)
	go func() {
		session, err := o.provider.GetSession(ctx)
		results <- sessionResult{session: session, err: err}
	}()

	timer := time.NewTimer(o.initTimeout)
	defer timer.Stop()

	var settleErr error
	select {
	case res := <-results:
		settleErr = o.resolveInitialSession(ctx, res.session, res.err)
	case <-timer.C:
		o.logger.Warn("session initialization exceeded %s ceiling, settling unauthenticated", o.initTimeout)
		o.store.settleLoading()
		o.emit(ctx, ActivityEventInitTimeout, "", map[string]any{
			"ceiling": o.initTimeout.String(),
		})
		// result is superseded once the fallback fired
		go func() { <-results }()
	case <-ctx.Done():
		o.store.settleLoading()
		settleErr = ctx.Err()
		go func() { <-results }()
	}

	o.loopOnce.Do(func() {
		go o.consumeEvents()
	})

	return settleErr
}

func (o *Orchestrator) resolveInitialSession(ctx context.Context, session *Session, err error) error {
	if err != nil {
		o.store.settleLoading()
		o.emit(ctx, ActivityEventInitResolved, "", map[string]any{"error": err.Error()})
		return goerrors.Wrap(err, goerrors.CategoryInternal, "session lookup failed")
	}

	if session == nil {
		o.store.settleLoading()
		o.emit(ctx, ActivityEventInitResolved, "", map[string]any{"authenticated": false})
		return nil
	}

	o.adoptSession(ctx, session)
	o.emit(ctx, ActivityEventInitResolved, session.Identity.ID.String(), map[string]any{"authenticated": true})
	return nil
}

// SignUp registers a new identity with the seed embedded as metadata, then
// redundantly upserts the profile row itself: the server-side provisioning
// trigger is not guaranteed to have run by the time the client needs the
// row. Success never authenticates the caller; the backend gates sign-in
// on email verification.
func (o *Orchestrator) SignUp(ctx context.Context, email, password string, seed ProfilePatch) error {
	ctx, cancel := context.WithTimeout(ctx, o.signUpTimeout)
	defer cancel()

	identity, err := o.provider.SignUp(ctx, email, password, seed.Metadata())
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrSignUpTimeout
		}
		o.emit(ctx, ActivityEventSignUpFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return err
	}

	if _, err := o.profiles.UpsertProfile(ctx, seed.Apply(*identity)); err != nil {
		// non-fatal: the row can still be provisioned server-side and
		// re-fetched on the first refresh
		o.logger.Warn("signup profile upsert failed for %s: %v", identity.ID, err)
	}

	o.emit(ctx, ActivityEventSignUpSuccess, identity.ID.String(), map[string]any{"email": email})
	return nil
}

// SignIn exchanges credentials for a session and completes profile
// adoption before returning, so callers can rely on the profile being
// populated immediately after success.
func (o *Orchestrator) SignIn(ctx context.Context, email, password string) error {
	session, err := o.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		o.emit(ctx, ActivityEventSignInFailure, "", map[string]any{
			"email": email,
			"error": err.Error(),
		})
		return err
	}

	o.adoptSession(ctx, session)
	o.emit(ctx, ActivityEventSignInSuccess, session.Identity.ID.String(), map[string]any{"email": email})
	return nil
}

// SignOut clears the store before awaiting the remote call; a remote
// failure is reported but never rolls back the local clear.
func (o *Orchestrator) SignOut(ctx context.Context) error {
	snap := o.store.Snapshot()
	userID := ""
	if snap.Identity != nil {
		userID = snap.Identity.ID.String()
	}

	o.store.clear()
	o.emit(ctx, ActivityEventSignOut, userID, nil)

	if err := o.provider.SignOut(ctx); err != nil {
		o.logger.Warn("remote sign out failed: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "remote sign out failed")
	}
	return nil
}

// UpdateProfile normalizes the patch, upserts it merged with the current
// identity's id/email, then re-reads the row and adopts the re-read value
// as authoritative. The store is untouched on failure.
func (o *Orchestrator) UpdateProfile(ctx context.Context, patch ProfilePatch) error {
	snap := o.store.Snapshot()
	if !snap.Authenticated() {
		return ErrNotAuthenticated
	}
	identity := *snap.Identity
	epoch := o.store.currentEpoch()

	updated, err := o.profiles.UpsertProfile(ctx, patch.Apply(identity))
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "profile update failed").
			WithTextCode(textCodeProfilePersistence)
	}
	if updated == nil {
		return ErrProfileNotPersisted
	}

	// read-after-write: adopt what the backend actually holds, including
	// server-side defaults the upsert response may not reflect
	verified, err := o.profiles.SelectProfile(ctx, identity.ID)
	if err != nil || verified == nil {
		o.logger.Warn("profile verify read failed for %s: %v", identity.ID, err)
		verified = updated
	}

	o.store.adoptProfile(epoch, verified)
	o.emit(ctx, ActivityEventProfileUpdated, identity.ID.String(), nil)
	return nil
}

// RefreshProfile re-runs the fetch/adopt step. No-op without an identity.
func (o *Orchestrator) RefreshProfile(ctx context.Context) error {
	snap := o.store.Snapshot()
	if snap.Identity == nil {
		return nil
	}

	identity := *snap.Identity
	epoch := o.store.currentEpoch()

	profile, fallback := o.fetchProfile(ctx, identity)
	if o.store.adoptProfile(epoch, profile) {
		evt := ActivityEventProfileAdopted
		if fallback {
			evt = ActivityEventProfileFallback
		}
		o.emit(ctx, evt, identity.ID.String(), nil)
	}
	return nil
}

// adoptSession installs the session and runs profile adoption under the
// epoch captured at adoption time, so a concurrent sign-out wins.
func (o *Orchestrator) adoptSession(ctx context.Context, session *Session) {
	epoch := o.store.adopt(session)
	o.emit(ctx, ActivityEventSessionAdopted, session.Identity.ID.String(), nil)

	profile, fallback := o.fetchProfile(ctx, session.Identity)
	if o.store.adoptProfile(epoch, profile) {
		evt := ActivityEventProfileAdopted
		if fallback {
			evt = ActivityEventProfileFallback
		}
		o.emit(ctx, evt, session.Identity.ID.String(), nil)
	}
}

// fetchProfile resolves the profile for an identity: existing row, lazily
// created row, or an in-memory fallback when the backend cannot serve or
// persist one. The second return reports the fallback case.
func (o *Orchestrator) fetchProfile(ctx context.Context, identity Identity) (*Profile, bool) {
	row, err := o.profiles.SelectProfile(ctx, identity.ID)
	if err == nil && row != nil {
		return row, false
	}

	if err != nil && !goerrors.IsNotFound(err) {
		o.logger.Warn("profile fetch failed for %s: %v", identity.ID, err)
		return FallbackProfile(identity, o.now()), true
	}

	created, err := o.profiles.UpsertProfile(ctx, SeedProfile(identity))
	if err != nil || created == nil {
		if err != nil {
			o.logger.Warn("profile create failed for %s: %v", identity.ID, err)
		}
		return FallbackProfile(identity, o.now()), true
	}

	return created, false
}

func (o *Orchestrator) consumeEvents() {
	events := o.provider.Events()
	if events == nil {
		return
	}

	for {
		select {
		case evt, ok := <-events:
			if !ok {
				return
			}
			o.handleAuthEvent(evt)
		case <-o.done:
			return
		}
	}
}

// handleAuthEvent re-runs the adoption/clearing logic for every
// notification, in delivery order. A signed-out notification clears state
// unconditionally, superseding any fetch still in flight.
func (o *Orchestrator) handleAuthEvent(evt AuthEvent) {
	ctx := context.Background()

	if evt.Kind == AuthEventSignedOut || evt.Session == nil {
		o.store.clear()
		o.emit(ctx, ActivityEventSessionCleared, "", map[string]any{"event": string(evt.Kind)})
		return
	}

	o.adoptSession(ctx, evt.Session)
}

func (o *Orchestrator) emit(ctx context.Context, eventType ActivityEventType, userID string, metadata map[string]any) {
	sink := normalizeActivitySink(o.sink)
	event := ActivityEvent{
		EventType:  eventType,
		UserID:     userID,
		Metadata:   metadata,
		OccurredAt: o.now(),
	}

	if event.Metadata == nil {
		event.Metadata = map[string]any{}
	}

	if err := sink.Record(ctx, event); err != nil {
		o.logger.Warn("activity sink record error: %v", err)
	}
}
