package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/mikan-comb/app/session"
)

type fakeLoader struct {
	mu       sync.Mutex
	calls    int
	failures int
	forced   []bool
}

func (f *fakeLoader) Load(ctx context.Context, fx session.Effects, force bool) (session.LoadResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	f.forced = append(f.forced, force)
	if f.failures > 0 {
		f.failures--
		return session.LoadResult{}, errors.New("HTTP error: 503")
	}
	return session.LoadResult{Source: session.SourceFeed, Count: 3}, nil
}

func (f *fakeLoader) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakePruner struct {
	mu     sync.Mutex
	calls  int
	maxAge time.Duration
}

func (f *fakePruner) DeleteExpired(maxAge time.Duration, now time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.maxAge = maxAge
	return 1, nil
}

func (f *fakePruner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("Timed out waiting for condition")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestNewTask(t *testing.T) {
	first := NewTask(TaskTypeRefreshFeed, "https://mikanani.me/RSS/Classic")
	second := NewTask(TaskTypeRefreshFeed, "https://mikanani.me/RSS/Classic")

	if first.ID == "" || first.ID == second.ID {
		t.Errorf("Expected unique task IDs, got %q and %q", first.ID, second.ID)
	}
	if first.MaxRetries != DefaultMaxRetries {
		t.Errorf("Expected %d max retries, got %d", DefaultMaxRetries, first.MaxRetries)
	}
	if first.GetDuration() != 0 {
		t.Error("Expected zero duration before start")
	}

	first.IncrementRetryCount()
	first.IncrementRetryCount()
	first.IncrementRetryCount()
	if first.CanRetry() {
		t.Error("Expected no retries left")
	}
}

func TestRefreshFeedTaskForcesLoad(t *testing.T) {
	loader := &fakeLoader{}
	task := NewRefreshFeedTask("https://mikanani.me/RSS/Classic", loader)
	task.Start()

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(loader.forced) != 1 || !loader.forced[0] {
		t.Errorf("Expected one forced load, got %v", loader.forced)
	}
}

func TestRefreshFeedTaskCancelled(t *testing.T) {
	loader := &fakeLoader{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewRefreshFeedTask("feed", loader).Execute(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if loader.count() != 0 {
		t.Errorf("Expected no load after cancel, got %d", loader.count())
	}
}

func TestPruneSnapshotsTask(t *testing.T) {
	pruner := &fakePruner{}
	task := NewPruneSnapshotsTask(pruner, 30*time.Minute)

	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if pruner.maxAge != 30*time.Minute {
		t.Errorf("Expected max age 30m, got %s", pruner.maxAge)
	}
}

func TestSchedulerRefreshesAndPrunes(t *testing.T) {
	loader := &fakeLoader{}
	pruner := &fakePruner{}
	scheduler := NewScheduler(loader, pruner, "feed", 20*time.Millisecond, 10*time.Millisecond, time.Hour, 1)

	scheduler.Start()
	waitFor(t, func() bool { return loader.count() >= 1 && pruner.count() >= 2 })
	scheduler.Stop()
}

func TestSchedulerRetriesFailedTask(t *testing.T) {
	loader := &fakeLoader{failures: 2}
	scheduler := NewScheduler(loader, nil, "feed", time.Hour, time.Hour, time.Hour, 1)
	scheduler.retryBase = time.Millisecond

	scheduler.Start()
	if err := scheduler.EnqueueTask(NewRefreshFeedTask("feed", loader)); err != nil {
		t.Fatalf("Failed to enqueue task: %v", err)
	}

	waitFor(t, func() bool { return loader.count() == 3 })
	scheduler.Stop()
}

func TestSchedulerZeroWorkersFallsBackToOne(t *testing.T) {
	scheduler := NewScheduler(&fakeLoader{}, nil, "feed", time.Hour, time.Hour, time.Hour, 0)
	if scheduler.workerCount != 1 {
		t.Errorf("Expected 1 worker, got %d", scheduler.workerCount)
	}
}

type blockingLoader struct {
	deadline chan time.Time
}

func (f *blockingLoader) Load(ctx context.Context, fx session.Effects, force bool) (session.LoadResult, error) {
	deadline, _ := ctx.Deadline()
	f.deadline <- deadline
	<-ctx.Done()
	return session.LoadResult{}, ctx.Err()
}

func TestTaskPolicies(t *testing.T) {
	refresh := NewTask(TaskTypeRefreshFeed, "feed")
	prune := NewTask(TaskTypePruneSnapshots, "snapshots")
	other := NewTask(TaskType("unknown"), "x")

	if refresh.GetTimeout() != 2*time.Minute {
		t.Errorf("Expected refresh timeout 2m, got %s", refresh.GetTimeout())
	}
	if prune.MaxRetries != 0 || prune.CanRetry() {
		t.Errorf("Expected prune to never retry, got max %d", prune.MaxRetries)
	}
	if prune.GetTimeout() != 30*time.Second {
		t.Errorf("Expected prune timeout 30s, got %s", prune.GetTimeout())
	}
	if other.MaxRetries != DefaultMaxRetries || other.GetTimeout() != DefaultTimeout {
		t.Errorf("Expected defaults for unknown type, got %d/%s", other.MaxRetries, other.GetTimeout())
	}

	zero := Task{}
	if zero.GetTimeout() != DefaultTimeout {
		t.Errorf("Expected default timeout for zero task, got %s", zero.GetTimeout())
	}
}

func TestTaskRetryDelay(t *testing.T) {
	task := NewTask(TaskTypeRefreshFeed, "feed")

	tests := []struct {
		retries  int
		expected time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{6, 10 * time.Second},
		{80, 10 * time.Second},
	}

	for _, test := range tests {
		task.RetryCount = test.retries
		if got := task.RetryDelay(time.Second, 10*time.Second); got != test.expected {
			t.Errorf("Expected delay %s after %d retries, got %s", test.expected, test.retries, got)
		}
	}
}

func TestTaskQueueWait(t *testing.T) {
	task := NewTask(TaskTypeRefreshFeed, "feed")
	if task.GetQueueWait() != 0 {
		t.Error("Expected zero queue wait before start")
	}

	task.EnqueuedAt = task.EnqueuedAt.Add(-time.Second)
	task.Start()
	if task.GetQueueWait() < time.Second {
		t.Errorf("Expected at least 1s queue wait, got %s", task.GetQueueWait())
	}
}

func TestExecuteTaskUsesTaskTimeout(t *testing.T) {
	loader := &blockingLoader{deadline: make(chan time.Time, 1)}
	scheduler := NewScheduler(loader, nil, "feed", time.Hour, time.Hour, time.Hour, 1)

	task := NewRefreshFeedTask("feed", loader)
	task.Timeout = 20 * time.Millisecond
	task.MaxRetries = 0

	start := time.Now()
	scheduler.executeTask(0, task)

	deadline := <-loader.deadline
	if deadline.IsZero() || deadline.Sub(start) > time.Second {
		t.Errorf("Expected a deadline near 20ms, got %s", deadline.Sub(start))
	}
}
