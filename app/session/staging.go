package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/staging"
)

func (s *Session) Stage(fx Effects, key string) error {
	item, ok := s.list.Find(key)
	if !ok {
		return ErrUnknownItem
	}

	if err := s.staged.Stage(item); err != nil {
		if errors.Is(err, staging.ErrAlreadyStaged) {
			fx.Notify(Notification{Style: StyleFailure, Title: "已在暂存列表中"})
		}
		return err
	}

	fx.Notify(Notification{Style: StyleSuccess, Title: "已加入暂存"})
	return nil
}

// Unstage reports whether key was staged. Removing an absent key is not an
// error.
func (s *Session) Unstage(fx Effects, key string) bool {
	removed := s.staged.Unstage(key)
	fx.Notify(Notification{Style: StyleSuccess, Title: "已从暂存移除"})
	return removed
}

func (s *Session) IsStaged(key string) bool {
	return s.staged.IsStaged(key)
}

func (s *Session) Staged() []feed.Item {
	return s.staged.Items()
}

func (s *Session) ClearStaged() {
	s.staged.Clear()
}

// ExportStaged resolves every staged item and copies the magnets found, one
// per line. The staging set is cleared only when something was found.
func (s *Session) ExportStaged(ctx context.Context, fx Effects) (staging.Export, error) {
	count := s.staged.Len()
	if count == 0 {
		fx.Notify(Notification{Style: StyleFailure, Title: "没有暂存的项目"})
		return staging.Export{}, staging.ErrNothingStaged
	}

	fx.Notify(Notification{Style: StyleAnimated, Title: fmt.Sprintf("正在获取 %d 个磁力链...", count)})

	export, err := s.staged.ResolveAndExportAll(ctx, s.cache)
	if err != nil {
		switch {
		case errors.Is(err, staging.ErrNothingFound):
			fx.Notify(Notification{Style: StyleFailure, Title: "未找到任何磁力链"})
		case errors.Is(err, staging.ErrNothingStaged):
			fx.Notify(Notification{Style: StyleFailure, Title: "没有暂存的项目"})
		default:
			fx.Notify(Notification{Style: StyleFailure, Title: "获取磁力链失败", Message: err.Error()})
		}
		return export, err
	}

	fx.Copy(export.Payload)
	fx.Notify(Notification{
		Style:   StyleSuccess,
		Title:   fmt.Sprintf("已复制 %d 个磁力链", len(export.Magnets)),
		Message: "暂存已清空",
	})

	return export, nil
}
