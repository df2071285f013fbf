package feed

import (
	"time"
)

// Feed ingestion types

type Metadata struct {
	Title           string
	Link            string
	Description     string
	FeedPublishedAt *time.Time
}

// Entry is one raw syndication entry, immutable once ingested.
type Entry struct {
	Title           string
	Link            string
	PubDate         string     // raw publication timestamp
	PublishedAt     *time.Time // nil when the raw timestamp could not be parsed
	GUID            string
	Description     string
	EnclosureURL    string // torrent file
	EnclosureLength int64  // bytes, 0 when unknown
}

// Item is the canonical record rendered by the host.
type Item struct {
	Key             string    `json:"key"`
	Title           string    `json:"title"`
	DisplayName     string    `json:"display_name"`
	Link            string    `json:"link"`
	PubDate         string    `json:"pub_date"`
	PublishedAt     time.Time `json:"published_at"` // zero means unknown
	IsRecent        bool      `json:"is_recent"`
	TorrentURL      string    `json:"torrent_url,omitempty"`
	EnclosureLength int64     `json:"enclosure_length,omitempty"`
	ListedSize      string    `json:"listed_size,omitempty"` // "[1.2GB]" tag from title or description

	// Populated only by enrichment; empty is a valid final state.
	CoverURL string `json:"cover_url,omitempty"`
	FileSize string `json:"file_size,omitempty"`
}

func (i Item) HasPublishedAt() bool {
	return !i.PublishedAt.IsZero()
}

// Site profile types

type Site struct {
	BaseURL         string `yaml:"base_url"`
	MirrorURL       string `yaml:"mirror_url"`
	UseMirror       bool   `yaml:"use_mirror"`
	MaxItems        int    `yaml:"max_items"`
	RefreshInterval int    `yaml:"refresh_interval"` // seconds
	DefaultMode     string `yaml:"default_mode"`
}
