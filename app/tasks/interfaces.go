package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/mikan-comb/app/session"
)

// TaskSchedulerInterface is what main needs from the scheduler.
//
//	scheduler := NewScheduler(sess, snapshots, feedURL, refreshInterval, interval, cacheMaxAge, workers)
//	scheduler.Start()
//	defer scheduler.Stop()
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type FeedLoader interface {
	Load(ctx context.Context, fx session.Effects, force bool) (session.LoadResult, error)
}

var _ FeedLoader = (*session.Session)(nil)

type SnapshotPruner interface {
	DeleteExpired(maxAge time.Duration, now time.Time) (int64, error)
}
