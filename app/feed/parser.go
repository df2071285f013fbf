package feed

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// Layouts seen in the torrent extension block, which carries no zone.
var torrentDateLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

type Parser struct {
	gofeedParser *gofeed.Parser
}

func NewParser() *Parser {
	return &Parser{
		gofeedParser: gofeed.NewParser(),
	}
}

func (p *Parser) Run(data []byte) (*Metadata, []Entry, error) {
	feed, err := p.gofeedParser.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, nil, &ParseError{Err: err}
	}

	metadata := &Metadata{
		Title:       feed.Title,
		Link:        feed.Link,
		Description: feed.Description,
	}

	if feed.PublishedParsed != nil {
		metadata.FeedPublishedAt = feed.PublishedParsed
	}

	entries := make([]Entry, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entries = append(entries, p.toEntry(item))
	}

	return metadata, entries, nil
}

func (p *Parser) toEntry(item *gofeed.Item) Entry {
	entry := Entry{
		Title:       item.Title,
		Link:        strings.TrimSpace(item.Link),
		PubDate:     item.Published,
		GUID:        item.GUID,
		Description: item.Description,
	}

	if item.PublishedParsed != nil {
		published := *item.PublishedParsed
		entry.PublishedAt = &published
	} else if raw := torrentPubDate(item); raw != "" {
		entry.PubDate = raw
		entry.PublishedAt = parseTorrentDate(raw)
	}

	if len(item.Enclosures) > 0 && item.Enclosures[0] != nil {
		enclosure := item.Enclosures[0]
		entry.EnclosureURL = enclosure.URL

		if enclosure.Length != "" {
			if length, err := strconv.ParseInt(enclosure.Length, 10, 64); err == nil {
				entry.EnclosureLength = length
			}
		}
	}

	return entry
}

// torrentPubDate reads <torrent><pubDate> from whichever namespace gofeed filed it under.
func torrentPubDate(item *gofeed.Item) string {
	for _, namespace := range item.Extensions {
		for _, ext := range namespace["torrent"] {
			for _, child := range ext.Children["pubDate"] {
				if value := strings.TrimSpace(child.Value); value != "" {
					return value
				}
			}
		}
	}
	return ""
}

func parseTorrentDate(raw string) *time.Time {
	for _, layout := range torrentDateLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.Local); err == nil {
			return &t
		}
	}
	return nil
}
