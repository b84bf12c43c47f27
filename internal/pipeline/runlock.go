package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"scribe/internal/jobs"
)

const runLockPoll = 50 * time.Millisecond

// RunLock coordinates processes that share one job store. Each process
// running pipelines holds it shared; interrupted-job recovery takes it
// exclusively, so a run still active elsewhere is never failed.
type RunLock struct {
	lock *flock.Flock
}

// NewRunLock returns a lock backed by the file at path.
func NewRunLock(path string) *RunLock {
	return &RunLock{lock: flock.New(path)}
}

// Acquire holds the lock shared until release is called. It waits while
// another process is recovering interrupted jobs.
func (l *RunLock) Acquire(ctx context.Context) (release func(), err error) {
	ok, err := l.lock.TryRLockContext(ctx, runLockPoll)
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("acquire run lock: %s is held", l.lock.Path())
	}
	return func() { _ = l.lock.Unlock() }, nil
}

// Recover fails the jobs left processing by a stopped process. When another
// process holds the lock it touches nothing and reports checked=false.
func (l *RunLock) Recover(ctx context.Context, store jobs.Store) (recovered int, checked bool, err error) {
	ok, err := l.lock.TryLock()
	if err != nil {
		return 0, false, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return 0, false, nil
	}
	defer func() { _ = l.lock.Unlock() }()

	recovered, err = store.FailInterrupted(ctx, jobs.InterruptedReason)
	if err != nil {
		return 0, true, err
	}
	return recovered, true, nil
}
