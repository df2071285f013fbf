package session

import (
	"time"

	"github.com/lysyi3m/mikan-comb/app/database"
	"github.com/lysyi3m/mikan-comb/app/feed"
)

func toSnapshotItems(items []feed.Item) []database.SnapshotItem {
	snapshot := make([]database.SnapshotItem, 0, len(items))
	for _, item := range items {
		snapshot = append(snapshot, database.SnapshotItem{
			Key:             item.Key,
			Title:           item.Title,
			DisplayName:     item.DisplayName,
			Link:            item.Link,
			PubDate:         item.PubDate,
			PublishedAt:     item.PublishedAt,
			TorrentURL:      item.TorrentURL,
			EnclosureLength: item.EnclosureLength,
			ListedSize:      item.ListedSize,
		})
	}
	return snapshot
}

// fromSnapshotItems restores list items. Recency is recomputed because the
// snapshot may have been taken on another day.
func fromSnapshotItems(snapshot []database.SnapshotItem, now time.Time) []feed.Item {
	items := make([]feed.Item, 0, len(snapshot))
	for _, s := range snapshot {
		item := feed.Item{
			Key:             s.Key,
			Title:           s.Title,
			DisplayName:     s.DisplayName,
			Link:            s.Link,
			PubDate:         s.PubDate,
			PublishedAt:     s.PublishedAt,
			TorrentURL:      s.TorrentURL,
			EnclosureLength: s.EnclosureLength,
			ListedSize:      s.ListedSize,
		}
		item.IsRecent = item.HasPublishedAt() && feed.IsSameLocalDay(item.PublishedAt, now)
		items = append(items, item)
	}
	return items
}
