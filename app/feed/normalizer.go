package feed

import (
	"cmp"
	"regexp"
	"strings"
	"time"
)

// DefaultMaxItems bounds the list and with it the enrichment fan-out.
const DefaultMaxItems = 50

// displayNamePattern captures the name in "[group] name - 01" style titles.
var displayNamePattern = regexp.MustCompile(`^\[.*?\]\s*(.*?)(?:\s-|\[|\()`)

type Normalizer struct {
	maxItems int
}

func NewNormalizer(maxItems int) *Normalizer {
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	return &Normalizer{maxItems: maxItems}
}

// Run turns raw entries into items. Entries without a link are dropped and the
// result is capped at the configured maximum.
func (n *Normalizer) Run(entries []Entry, now time.Time) []Item {
	items := make([]Item, 0, min(len(entries), n.maxItems))
	for _, entry := range entries {
		if len(items) == n.maxItems {
			break
		}
		if entry.Link == "" {
			continue
		}
		items = append(items, n.normalize(entry, now))
	}
	return items
}

func (n *Normalizer) normalize(entry Entry, now time.Time) Item {
	item := Item{
		Key:             cmp.Or(entry.GUID, entry.Link),
		Title:           entry.Title,
		DisplayName:     DisplayName(entry.Title),
		Link:            entry.Link,
		PubDate:         entry.PubDate,
		TorrentURL:      entry.EnclosureURL,
		EnclosureLength: entry.EnclosureLength,
		ListedSize:      cmp.Or(BracketFileSize(entry.Title), BracketFileSize(entry.Description)),
	}

	if entry.PublishedAt != nil {
		item.PublishedAt = *entry.PublishedAt
		item.IsRecent = IsSameLocalDay(item.PublishedAt, now)
	}

	return item
}

// DisplayName extracts the show name from a release title, falling back to the
// title verbatim. Only ASCII brackets delimit the group and the name.
func DisplayName(title string) string {
	match := displayNamePattern.FindStringSubmatch(title)
	if match == nil {
		return title
	}
	name := strings.TrimSpace(match[1])
	if name == "" {
		return title
	}
	return name
}

// IsSameLocalDay compares calendar days in time.Local, not a rolling 24h window.
func IsSameLocalDay(a, b time.Time) bool {
	ay, am, ad := a.In(time.Local).Date()
	by, bm, bd := b.In(time.Local).Date()
	return ay == by && am == bm && ad == bd
}
