package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/mikan-comb/app/session"
)

type RefreshFeedTask struct {
	Task
	loader FeedLoader
}

func NewRefreshFeedTask(feedURL string, loader FeedLoader) *RefreshFeedTask {
	return &RefreshFeedTask{
		Task:   NewTask(TaskTypeRefreshFeed, feedURL),
		loader: loader,
	}
}

func (t *RefreshFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	result, err := t.loader.Load(ctx, session.Discard{}, true)
	if err != nil {
		return fmt.Errorf("failed to refresh feed: %w", err)
	}

	slog.Info("Task completed", "type", string(t.Type), "feed", t.Subject,
		"items", result.Count, "today", result.Today, "duration", t.GetDuration().String())

	return nil
}
