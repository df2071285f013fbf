package api

import (
	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/session"
)

type Handler struct {
	session     *session.Session
	version     string
	defaultMode session.Mode
}

type itemView struct {
	feed.Item
	SubGroup  string `json:"sub_group"`
	UpdatedAt string `json:"updated_at"`
	Staged    bool   `json:"staged"`
}

func (h *Handler) view(item feed.Item) itemView {
	return itemView{
		Item:      item,
		SubGroup:  feed.SubGroup(item.Title),
		UpdatedAt: feed.FormatDate(item.PublishedAt),
		Staged:    h.session.IsStaged(item.Key),
	}
}

func (h *Handler) views(items []feed.Item) []itemView {
	views := make([]itemView, 0, len(items))
	for _, item := range items {
		views = append(views, h.view(item))
	}
	return views
}
