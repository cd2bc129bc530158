package authsync

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingCommitter struct {
	profile *Profile
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *blockingCommitter) Snapshot() State {
	return State{Profile: c.profile}
}

func (c *blockingCommitter) UpdateProfile(ctx context.Context, patch ProfilePatch) error {
	c.once.Do(func() { close(c.entered) })
	<-c.release
	return nil
}

// A commit landing in the instant the ceiling fires must be reported as the
// save's outcome, never as a timeout while the edit was already applied.
func TestSaveCommitLandingWithCeilingIsReported(t *testing.T) {
	name := "Committed Rider"
	committer := &blockingCommitter{
		profile: &Profile{ID: uuid.New(), Email: "rider@example.com", FullName: &name},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}

	e := NewProfileEditor(committer, WithSaveTimeout(30*time.Millisecond))
	e.Stage(ProfilePatch{FullName: "Draft Rider"})

	errs := make(chan error, 1)
	go func() { errs <- e.Save(context.Background()) }()

	<-committer.entered
	// hold the editor lock across the ceiling so the commit's writeback
	// queues ahead of the timeout branch for it
	e.mu.Lock()
	close(committer.release)
	time.Sleep(80 * time.Millisecond)
	e.mu.Unlock()

	require.NoError(t, <-errs)
	assert.Equal(t, "Committed Rider", e.Staged().FullName, "delivered result is restaged")

	// editor accepts a fresh save afterwards
	assert.False(t, e.saving)
}
