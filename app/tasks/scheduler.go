package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

type Scheduler struct {
	loader          FeedLoader
	pruner          SnapshotPruner // nil when the snapshot cache is disabled
	feedURL         string
	refreshInterval time.Duration
	interval        time.Duration
	cacheMaxAge     time.Duration
	workerCount     int
	retryBase       time.Duration
	maxRetryDelay   time.Duration

	mu          sync.Mutex
	lastRefresh time.Time

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	taskQueue chan TaskInterface
}

func NewScheduler(loader FeedLoader, pruner SnapshotPruner, feedURL string,
	refreshInterval, interval, cacheMaxAge time.Duration, workerCount int) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		loader:          loader,
		pruner:          pruner,
		feedURL:         feedURL,
		refreshInterval: refreshInterval,
		interval:        interval,
		cacheMaxAge:     cacheMaxAge,
		workerCount:     max(workerCount, 1),
		retryBase:       time.Second,
		maxRetryDelay:   30 * time.Second,
		ctx:             ctx,
		cancel:          cancel,
		taskQueue:       make(chan TaskInterface, 32),
	}
}

// Start launches the workers and the ticker. The feed is assumed to have been
// loaded just before, so the first refresh is due one refresh interval later.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.lastRefresh = time.Now()
	s.mu.Unlock()

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.enqueueStartupTasks()

		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				s.enqueueTasks()
			}
		}
	}()
}

func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) enqueueStartupTasks() {
	s.enqueuePrune()
}

func (s *Scheduler) enqueueTasks() {
	now := time.Now()

	s.mu.Lock()
	due := now.Sub(s.lastRefresh) >= s.refreshInterval
	if due {
		s.lastRefresh = now
	}
	s.mu.Unlock()

	if due {
		if err := s.EnqueueTask(NewRefreshFeedTask(s.feedURL, s.loader)); err != nil {
			slog.Warn("Failed to enqueue RefreshFeedTask", "feed", s.feedURL, "error", err)
		}
	} else {
		slog.Debug("Feed not due for refresh yet", "feed", s.feedURL, "next_refresh_at", s.nextRefresh())
	}

	s.enqueuePrune()
}

func (s *Scheduler) enqueuePrune() {
	if s.pruner == nil {
		return
	}
	if err := s.EnqueueTask(NewPruneSnapshotsTask(s.pruner, s.cacheMaxAge)); err != nil {
		slog.Warn("Failed to enqueue PruneSnapshotsTask", "error", err)
	}
}

func (s *Scheduler) nextRefresh() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRefresh.Add(s.refreshInterval)
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()
	slog.Debug("Task started", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "queue_wait", task.GetQueueWait().String())

	taskCtx, cancel := context.WithTimeout(s.ctx, task.GetTimeout())
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := task.RetryDelay(s.retryBase, s.maxRetryDelay)

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "subject", task.GetSubject(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		timer := time.NewTimer(retryDelay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-timer.C:
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}
