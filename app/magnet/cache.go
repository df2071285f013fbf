package magnet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/lysyi3m/mikan-comb/app/detail"
)

// Cache memoizes detail pages by URL. At most one fetch per URL is in flight;
// concurrent callers wait on the same fetch.
type Cache struct {
	fetcher Fetcher

	mu       sync.Mutex
	entries  map[string]*Entry
	inflight map[string]bool

	group   singleflight.Group
	fetches atomic.Int64
}

func NewCache(fetcher Fetcher) *Cache {
	return &Cache{
		fetcher:  fetcher,
		entries:  make(map[string]*Entry),
		inflight: make(map[string]bool),
	}
}

// Lookup returns the cached state without I/O. A URL with a fetch in flight
// and no settled magnet reports Pending.
func (c *Cache) Lookup(url string) Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var entry Entry
	if e, ok := c.entries[url]; ok {
		entry = *e
	}
	if entry.Magnet.State != Resolved && c.inflight[url] {
		entry.Magnet.State = Pending
	}
	return entry
}

// Resolve returns the magnet for a detail page, fetching it at most once over
// the cache lifetime. Fetch failures settle as "no magnet" and are only logged.
func (c *Cache) Resolve(ctx context.Context, url string) (string, bool) {
	if magnet, ok := c.settled(url); ok {
		return magnet.URI, magnet.Found()
	}

	ch := c.group.DoChan(url, func() (interface{}, error) {
		return c.fetch(ctx, url, true)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			c.settleAbsent(url)
		}
	case <-ctx.Done():
		return "", false
	}

	magnet, _ := c.settled(url)
	return magnet.URI, magnet.Found()
}

// Fetch loads the detail page for enrichment, joining any fetch already in
// flight for url. A failure leaves the magnet unresolved so the page can be
// retried later.
func (c *Cache) Fetch(ctx context.Context, url string) (detail.Record, error) {
	ch := c.group.DoChan(url, func() (interface{}, error) {
		return c.fetch(ctx, url, false)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return detail.Record{}, res.Err
		}
		return res.Val.(detail.Record), nil
	case <-ctx.Done():
		return detail.Record{}, ctx.Err()
	}
}

// Stats reports the number of cached URLs and network fetches performed.
func (c *Cache) Stats() (int, int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries), c.fetches.Load()
}

func (c *Cache) fetch(ctx context.Context, url string, settleOnError bool) (detail.Record, error) {
	// A settled entry is terminal, including one settled by a flight that
	// finished between the caller's check and this call.
	if entry, ok := c.settledEntry(url); ok {
		return detail.Record{CoverURL: entry.CoverURL, FileSize: entry.FileSize, Magnet: entry.Magnet.URI}, nil
	}

	c.mu.Lock()
	c.inflight[url] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, url)
		c.mu.Unlock()
	}()

	c.fetches.Add(1)
	record, err := c.fetcher.Run(context.WithoutCancel(ctx), url)

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entryLocked(url)
	if err != nil {
		slog.Warn("Failed to fetch detail page", "url", url, "error", err)
		if settleOnError && entry.Magnet.State != Resolved {
			entry.Magnet = Magnet{State: Resolved}
		}
		return detail.Record{}, fmt.Errorf("failed to fetch detail page: %w", err)
	}

	entry.CoverURL = record.CoverURL
	entry.FileSize = record.FileSize
	entry.HasDetail = true
	if entry.Magnet.State != Resolved {
		entry.Magnet = Magnet{State: Resolved, URI: record.Magnet}
	}

	if record.Magnet == "" {
		slog.Debug("No magnet link on detail page", "url", url)
	}

	return record, nil
}

func (c *Cache) settled(url string) (Magnet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok || entry.Magnet.State != Resolved {
		return Magnet{}, false
	}
	return entry.Magnet, true
}

func (c *Cache) settledEntry(url string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[url]
	if !ok || !entry.Settled() {
		return Entry{}, false
	}
	return *entry, true
}

func (c *Cache) settleAbsent(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry := c.entryLocked(url)
	if entry.Magnet.State != Resolved {
		entry.Magnet = Magnet{State: Resolved}
	}
}

func (c *Cache) entryLocked(url string) *Entry {
	entry, ok := c.entries[url]
	if !ok {
		entry = &Entry{}
		c.entries[url] = entry
	}
	return entry
}
