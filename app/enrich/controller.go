package enrich

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lysyi3m/mikan-comb/app/detail"
	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/magnet"
)

type Outcome int

const (
	OutcomeUnknownItem Outcome = iota
	OutcomeCached
	OutcomeSkipped
	OutcomeApplied
	OutcomeDiscarded
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCached:
		return "cached"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeApplied:
		return "applied"
	case OutcomeDiscarded:
		return "discarded"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown_item"
	}
}

type DetailSource interface {
	Lookup(url string) magnet.Entry
	Fetch(ctx context.Context, url string) (detail.Record, error)
}

var _ DetailSource = (*magnet.Cache)(nil)

// Controller fills cover and file size into list items as they are selected.
// Only the most recent dispatch may write its result; older ones are dropped.
type Controller struct {
	list   *feed.List
	source DetailSource

	mu      sync.Mutex
	token   uint64
	pending map[string]bool // link -> enrichment in flight

	wg sync.WaitGroup
}

func NewController(list *feed.List, source DetailSource) *Controller {
	return &Controller{
		list:    list,
		source:  source,
		pending: make(map[string]bool),
	}
}

// Select enriches the item with the given key and blocks until the outcome
// is known.
func (c *Controller) Select(ctx context.Context, key string) Outcome {
	item, ok := c.list.Find(key)
	if !ok {
		return OutcomeUnknownItem
	}

	if entry := c.source.Lookup(item.Link); entry.Settled() {
		if item.CoverURL != entry.CoverURL || item.FileSize != entry.FileSize {
			c.list.ApplyDetail(item.Link, entry.CoverURL, entry.FileSize)
		}
		return OutcomeCached
	}

	c.mu.Lock()
	if c.pending[item.Link] {
		c.mu.Unlock()
		return OutcomeSkipped
	}
	c.token++
	token := c.token
	c.pending[item.Link] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, item.Link)
		c.mu.Unlock()
	}()

	record, err := c.source.Fetch(ctx, item.Link)
	if err != nil {
		slog.Warn("Failed to enrich item", "key", key, "link", item.Link, "error", err)
		return OutcomeFailed
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if token != c.token {
		slog.Debug("Discarding stale enrichment", "key", key, "token", token, "current", c.token)
		return OutcomeDiscarded
	}

	updated := c.list.ApplyDetail(item.Link, record.CoverURL, record.FileSize)
	slog.Debug("Item enriched", "key", key, "updated", updated, "file_size", record.FileSize)

	return OutcomeApplied
}

// OnSelect runs Select in the background so the caller is never blocked on
// the network.
func (c *Controller) OnSelect(ctx context.Context, key string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.Select(context.WithoutCancel(ctx), key)
	}()
}

// Wait blocks until all background selections have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) Token() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Controller) IsPending(link string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending[link]
}
