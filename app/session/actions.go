package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/mikan-comb/app/magnet"
)

var ErrUnknownMode = errors.New("unknown action mode")

type Mode string

const (
	ModeBrowserPikPak Mode = "browser_pikpak"
	ModeDownload      Mode = "download"
	ModeCopy          Mode = "copy"
)

func ParseMode(raw string) (Mode, error) {
	switch mode := Mode(raw); mode {
	case ModeBrowserPikPak, ModeDownload, ModeCopy:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, raw)
	}
}

// Execute carries out a user action on one item. Without a magnet it falls
// back to the torrent file (download mode) or the detail page.
func (s *Session) Execute(ctx context.Context, fx Effects, key string, mode Mode) error {
	if _, err := ParseMode(string(mode)); err != nil {
		return err
	}

	item, ok := s.list.Find(key)
	if !ok {
		return ErrUnknownItem
	}

	uri, found := s.magnetFor(ctx, fx, item.Link)

	if !found {
		if mode == ModeDownload && item.TorrentURL != "" {
			fx.Open(item.TorrentURL)
			fx.Notify(Notification{Style: StyleSuccess, Title: "已下载种子"})
			return nil
		}
		fx.Open(item.Link)
		fx.Notify(Notification{Style: StyleFailure, Title: "直接打开网页"})
		return nil
	}

	switch mode {
	case ModeBrowserPikPak:
		fx.Copy(uri)
		fx.Open(item.Link)
		fx.Notify(Notification{Style: StyleSuccess, Title: "复制成功 & 打开网页"})
	case ModeDownload:
		fx.Open(uri)
		fx.Notify(Notification{Style: StyleSuccess, Title: "已唤起下载"})
	case ModeCopy:
		fx.Copy(uri)
		fx.Notify(Notification{Style: StyleSuccess, Title: "已复制"})
	}

	slog.Debug("Action executed", "key", key, "mode", string(mode))
	return nil
}

func (s *Session) magnetFor(ctx context.Context, fx Effects, link string) (string, bool) {
	if entry := s.cache.Lookup(link); entry.Magnet.State == magnet.Resolved {
		return entry.Magnet.URI, entry.Magnet.Found()
	}

	fx.Notify(Notification{Style: StyleAnimated, Title: "解析磁力链..."})
	return s.cache.Resolve(ctx, link)
}
