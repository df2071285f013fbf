package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type PruneSnapshotsTask struct {
	Task
	pruner SnapshotPruner
	maxAge time.Duration
	now    func() time.Time
}

func NewPruneSnapshotsTask(pruner SnapshotPruner, maxAge time.Duration) *PruneSnapshotsTask {
	return &PruneSnapshotsTask{
		Task:   NewTask(TaskTypePruneSnapshots, "snapshots"),
		pruner: pruner,
		maxAge: maxAge,
		now:    time.Now,
	}
}

func (t *PruneSnapshotsTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	deleted, err := t.pruner.DeleteExpired(t.maxAge, t.now())
	if err != nil {
		return fmt.Errorf("failed to prune snapshots: %w", err)
	}

	if deleted > 0 {
		slog.Info("Task completed", "type", string(t.Type), "deleted", deleted)
	} else {
		slog.Debug("No expired snapshots", "max_age", t.maxAge.String())
	}

	return nil
}
