package authsync

import "sync"

// State is an immutable snapshot of the session/profile store.
type State struct {
	Identity *Identity
	Session  *Session
	Profile  *Profile
	Loading  bool
}

// Authenticated reports whether both a session and an identity are held.
// A partial state (one present, one absent) reads as unauthenticated.
func (s State) Authenticated() bool {
	return s.Identity != nil && s.Session != nil
}

// Store holds the current identity, session and profile. Construct one per
// orchestrator; there is no package-level instance. All mutation goes
// through the orchestrator's transition methods, readers get snapshots.
//
// Every adoption or clear bumps an epoch counter. Async results captured
// under an older epoch are dropped before they can write, which is how a
// sign-out wins over any profile fetch still in flight.
type Store struct {
	mu        sync.Mutex
	identity  *Identity
	session   *Session
	profile   *Profile
	loading   bool
	epoch     uint64
	nextSubID int
	subs      map[int]chan State
}

// NewStore returns a store in the loading state.
func NewStore() *Store {
	return &Store{
		loading: true,
		subs:    map[int]chan State{},
	}
}

// Snapshot returns the current state. Profile is cloned so callers cannot
// mutate the held record.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers a listener for derived state changes. The returned
// cancel func must be called to release the subscription. Slow listeners
// miss intermediate states rather than blocking the writer.
func (s *Store) Subscribe() (<-chan State, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++

	ch := make(chan State, 8)
	s.subs[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}

	return ch, cancel
}

func (s *Store) snapshotLocked() State {
	return State{
		Identity: s.identity,
		Session:  s.session,
		Profile:  s.profile.Clone(),
		Loading:  s.loading,
	}
}

func (s *Store) currentEpoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// adopt installs a new identity+session pair, clearing any profile held
// for a previous identity, and resolves the loading flag.
func (s *Store) adopt(session *Session) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	identity := session.Identity
	if s.identity == nil || s.identity.ID != identity.ID {
		s.profile = nil
	}
	s.identity = &identity
	s.session = session
	s.loading = false
	s.epoch++

	s.publishLocked()
	return s.epoch
}

// adoptProfile installs a profile only if the store is still in the epoch
// the fetch started under; stale results are dropped.
func (s *Store) adoptProfile(epoch uint64, profile *Profile) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if epoch != s.epoch || s.identity == nil {
		return false
	}
	if profile != nil && profile.ID != s.identity.ID {
		return false
	}

	s.profile = profile.Clone()
	s.publishLocked()
	return true
}

// clear unconditionally drops identity, session and profile, superseding
// any async work started before it.
func (s *Store) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.session = nil
	s.profile = nil
	s.loading = false
	s.epoch++

	s.publishLocked()
}

// settleLoading resolves the loading flag without touching held state.
// Used by the init ceiling timer and failed session lookups.
func (s *Store) settleLoading() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loading {
		return
	}
	s.loading = false
	s.publishLocked()
}

func (s *Store) publishLocked() {
	if len(s.subs) == 0 {
		return
	}
	snapshot := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
