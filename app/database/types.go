package database

import (
	"time"
)

// SnapshotKey is the single row the item list is persisted under.
const SnapshotKey = "anime-rss-cache"

type Snapshot struct {
	Key      string
	Items    []SnapshotItem
	StoredAt time.Time
}

// SnapshotItem is the persisted form of a list item. Enrichment fields are
// not stored; they are refetched on demand.
type SnapshotItem struct {
	Key             string    `json:"key"`
	Title           string    `json:"title"`
	DisplayName     string    `json:"display_name"`
	Link            string    `json:"link"`
	PubDate         string    `json:"pub_date"`
	PublishedAt     time.Time `json:"published_at"`
	TorrentURL      string    `json:"torrent_url,omitempty"`
	EnclosureLength int64     `json:"enclosure_length,omitempty"`
	ListedSize      string    `json:"listed_size,omitempty"`
}
