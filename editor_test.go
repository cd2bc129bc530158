package authsync_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teamblitzer/go-authsync"
)

// fakeCommitter satisfies ProfileCommitter with pluggable behavior.
type fakeCommitter struct {
	mu      sync.Mutex
	state   authsync.State
	update  func(ctx context.Context, patch authsync.ProfilePatch) error
	applied []authsync.ProfilePatch
}

func newFakeCommitter(profile *authsync.Profile) *fakeCommitter {
	f := &fakeCommitter{}
	f.setProfile(profile)
	f.update = func(_ context.Context, patch authsync.ProfilePatch) error {
		identity := authsync.Identity{ID: profile.ID, Email: profile.Email}
		f.setProfile(patch.Apply(identity))
		return nil
	}
	return f
}

func (f *fakeCommitter) setProfile(profile *authsync.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity := authsync.Identity{ID: profile.ID, Email: profile.Email}
	f.state = authsync.State{
		Identity: &identity,
		Session:  &authsync.Session{AccessToken: "token", Identity: identity},
		Profile:  profile,
	}
}

func (f *fakeCommitter) Snapshot() authsync.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeCommitter) UpdateProfile(ctx context.Context, patch authsync.ProfilePatch) error {
	f.mu.Lock()
	f.applied = append(f.applied, patch)
	update := f.update
	f.mu.Unlock()
	return update(ctx, patch)
}

func (f *fakeCommitter) appliedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.applied)
}

func TestEditorStagesCurrentProfile(t *testing.T) {
	committer := newFakeCommitter(newTestProfile(uuid.New(), "rider@example.com", "Road Rider"))

	editor := authsync.NewProfileEditor(committer)

	staged := editor.Staged()
	assert.Equal(t, "Road Rider", staged.FullName)
}

func TestEditorCancelRevertsStagedEdits(t *testing.T) {
	committer := newFakeCommitter(newTestProfile(uuid.New(), "rider@example.com", "Road Rider"))

	editor := authsync.NewProfileEditor(committer)
	editor.Stage(authsync.ProfilePatch{FullName: "Track Rider"})
	require.Equal(t, "Track Rider", editor.Staged().FullName)

	editor.Cancel()
	assert.Equal(t, "Road Rider", editor.Staged().FullName)
}

func TestEditorSaveCommitsAndRestages(t *testing.T) {
	committer := newFakeCommitter(newTestProfile(uuid.New(), "rider@example.com", "Road Rider"))

	editor := authsync.NewProfileEditor(committer)
	editor.Stage(authsync.ProfilePatch{FullName: "Track Rider", Department: "CSE"})

	require.NoError(t, editor.Save(context.Background()))

	staged := editor.Staged()
	assert.Equal(t, "Track Rider", staged.FullName)
	assert.Equal(t, "CSE", staged.Department)
	assert.Equal(t, 1, committer.appliedCount())
}

func TestEditorSaveSurfacesCommitError(t *testing.T) {
	committer := newFakeCommitter(newTestProfile(uuid.New(), "rider@example.com", "Road Rider"))
	committer.update = func(context.Context, authsync.ProfilePatch) error {
		return authsync.ErrProfileNotPersisted
	}

	editor := authsync.NewProfileEditor(committer)
	editor.Stage(authsync.ProfilePatch{FullName: "Track Rider"})

	err := editor.Save(context.Background())
	require.ErrorIs(t, err, authsync.ErrProfileNotPersisted)

	// staged edits survive a failed save so the user can retry
	assert.Equal(t, "Track Rider", editor.Staged().FullName)
}

func TestEditorSaveTimeout(t *testing.T) {
	committer := newFakeCommitter(newTestProfile(uuid.New(), "rider@example.com", "Road Rider"))

	release := make(chan struct{})
	committer.update = func(context.Context, authsync.ProfilePatch) error {
		<-release
		return nil
	}

	editor := authsync.NewProfileEditor(committer, authsync.WithSaveTimeout(20*time.Millisecond))
	editor.Stage(authsync.ProfilePatch{FullName: "Track Rider"})

	err := editor.Save(context.Background())
	require.ErrorIs(t, err, authsync.ErrSaveTimeout)

	// the late result is dropped: the staged copy keeps the user's edits
	close(release)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, "Track Rider", editor.Staged().FullName)
}

func TestEditorSaveAgainAfterTimeout(t *testing.T) {
	committer := newFakeCommitter(newTestProfile(uuid.New(), "rider@example.com", "Road Rider"))

	release := make(chan struct{})
	var calls atomic.Int32
	committer.update = func(context.Context, authsync.ProfilePatch) error {
		if calls.Add(1) == 1 {
			<-release
		}
		return nil
	}

	editor := authsync.NewProfileEditor(committer, authsync.WithSaveTimeout(20*time.Millisecond))
	editor.Stage(authsync.ProfilePatch{FullName: "Track Rider"})

	require.ErrorIs(t, editor.Save(context.Background()), authsync.ErrSaveTimeout)
	close(release)

	// the timeout released the in-flight guard
	require.NoError(t, editor.Save(context.Background()))
}

func TestEditorRejectsConcurrentSaves(t *testing.T) {
	committer := newFakeCommitter(newTestProfile(uuid.New(), "rider@example.com", "Road Rider"))

	started := make(chan struct{})
	release := make(chan struct{})
	committer.update = func(context.Context, authsync.ProfilePatch) error {
		close(started)
		<-release
		return nil
	}

	editor := authsync.NewProfileEditor(committer, authsync.WithSaveTimeout(5*time.Second))

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- editor.Save(context.Background())
	}()

	<-started
	require.ErrorIs(t, editor.Save(context.Background()), authsync.ErrSaveInProgress)

	close(release)
	require.NoError(t, <-firstDone)
}
