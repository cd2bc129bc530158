package authsync

import (
	"context"
	"sync"
	"time"
)

// DefaultSaveTimeout is the profile editor's own ceiling around a save,
// distinct from the orchestrator's internal timeouts.
const DefaultSaveTimeout = 30 * time.Second

// ProfileCommitter is the subset of the orchestrator the editor commits
// staged edits through.
type ProfileCommitter interface {
	SnapshotSource
	UpdateProfile(ctx context.Context, patch ProfilePatch) error
}

// ProfileEditor stages a local copy of profile fields. Save commits the
// staged copy; Cancel reverts to the last adopted profile. A save result
// arriving after the editor's own timeout fired is dropped.
type ProfileEditor struct {
	mu          sync.Mutex
	committer   ProfileCommitter
	staged      ProfilePatch
	saveSeq     uint64
	saving      bool
	saveTimeout time.Duration
	logger      Logger
}

// EditorOption customizes editor construction.
type EditorOption func(*ProfileEditor)

// WithSaveTimeout overrides the save ceiling.
func WithSaveTimeout(d time.Duration) EditorOption {
	return func(e *ProfileEditor) {
		if d > 0 {
			e.saveTimeout = d
		}
	}
}

// WithEditorLogger overrides the default logger.
func WithEditorLogger(logger Logger) EditorOption {
	return func(e *ProfileEditor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewProfileEditor stages the committer's current profile.
func NewProfileEditor(committer ProfileCommitter, opts ...EditorOption) *ProfileEditor {
	e := &ProfileEditor{
		committer:   committer,
		staged:      PatchFromProfile(committer.Snapshot().Profile),
		saveTimeout: DefaultSaveTimeout,
		logger:      defLogger{},
	}

	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	return e
}

// Stage replaces the staged copy.
func (e *ProfileEditor) Stage(patch ProfilePatch) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staged = patch
}

// Staged returns the current staged copy.
func (e *ProfileEditor) Staged() ProfilePatch {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.staged
}

// Cancel discards staged edits and reverts to the last adopted profile.
func (e *ProfileEditor) Cancel() {
	patch := PatchFromProfile(e.committer.Snapshot().Profile)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.staged = patch
}

// Save commits the staged copy. When the ceiling fires first it returns
// ErrSaveTimeout and the eventual result is discarded: the sequence
// counter is bumped, so the commit goroutine's writeback no longer
// matches and gets dropped. A result already delivered by then wins
// over the timeout.
func (e *ProfileEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	if e.saving {
		e.mu.Unlock()
		return ErrSaveInProgress
	}
	e.saving = true
	patch := e.staged
	seq := e.saveSeq
	e.mu.Unlock()

	results := make(chan error, 1)
	go func() {
		err := e.committer.UpdateProfile(ctx, patch)

		e.mu.Lock()
		stale := e.saveSeq != seq
		if !stale {
			e.saving = false
			if err == nil {
				e.staged = PatchFromProfile(e.committer.Snapshot().Profile)
			}
		}
		e.mu.Unlock()

		if stale {
			e.logger.Warn("dropping profile save result that arrived after timeout")
			return
		}
		results <- err
	}()

	timer := time.NewTimer(e.saveTimeout)
	defer timer.Stop()

	select {
	case err := <-results:
		return err
	case <-timer.C:
		e.mu.Lock()
		if !e.saving {
			// the commit goroutine already delivered its result between
			// the timer firing and this branch taking the lock; report
			// that result instead of a timeout the caller would mistrust
			e.mu.Unlock()
			return <-results
		}
		e.saveSeq++
		e.saving = false
		e.mu.Unlock()
		return ErrSaveTimeout
	}
}
