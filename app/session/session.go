package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lysyi3m/mikan-comb/app/database"
	"github.com/lysyi3m/mikan-comb/app/enrich"
	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/magnet"
	"github.com/lysyi3m/mikan-comb/app/staging"
)

var ErrUnknownItem = errors.New("unknown item")

type FeedSource interface {
	Run(ctx context.Context) ([]byte, error)
}

var _ FeedSource = (*feed.Fetcher)(nil)

type LoadSource string

const (
	SourceFeed     LoadSource = "feed"
	SourceSnapshot LoadSource = "snapshot"
)

type LoadResult struct {
	Source    LoadSource `json:"source"`
	FeedTitle string     `json:"feed_title,omitempty"` // empty when restored from a snapshot
	Count     int        `json:"count"`
	Today     int        `json:"today"`
	LoadedAt  time.Time  `json:"loaded_at"`
}

type Stats struct {
	Items         int       `json:"items"`
	Staged        int       `json:"staged"`
	CachedPages   int       `json:"cached_pages"`
	DetailFetches int64     `json:"detail_fetches"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// Session owns the item list, the magnet cache, the enrichment controller
// and the staging set. Hosts drive it through its methods only.
type Session struct {
	fetcher     FeedSource
	parser      *feed.Parser
	normalizer  *feed.Normalizer
	snapshots   database.SnapshotRepository // nil disables the snapshot cache
	cacheMaxAge time.Duration

	list     *feed.List
	cache    *magnet.Cache
	enricher *enrich.Controller
	staged   *staging.Set

	mu         sync.Mutex
	prefetched bool
	loadedAt   time.Time

	now func() time.Time
}

func New(fetcher FeedSource, parser *feed.Parser, normalizer *feed.Normalizer, cache *magnet.Cache,
	snapshots database.SnapshotRepository, cacheMaxAge time.Duration) *Session {
	list := feed.NewList()

	return &Session{
		fetcher:     fetcher,
		parser:      parser,
		normalizer:  normalizer,
		snapshots:   snapshots,
		cacheMaxAge: cacheMaxAge,
		list:        list,
		cache:       cache,
		enricher:    enrich.NewController(list, cache),
		staged:      staging.NewSet(),
		now:         time.Now,
	}
}

// Load replaces the item list, from a fresh snapshot when one exists unless
// force is set, otherwise from the feed. The first item is prefetched once
// per session.
func (s *Session) Load(ctx context.Context, fx Effects, force bool) (LoadResult, error) {
	now := s.now()

	if !force {
		if result, ok := s.loadSnapshot(now); ok {
			s.prefetchFirst(ctx)
			return result, nil
		}
	}

	metadata, items, err := s.ingest(ctx, now)
	if err != nil {
		fx.Notify(Notification{Style: StyleFailure, Title: "RSS 获取失败", Message: err.Error()})
		return LoadResult{}, err
	}

	s.list.Replace(items)
	s.reapplyDetails()
	s.markLoaded(now)

	if s.snapshots != nil {
		snapshot := database.Snapshot{Key: database.SnapshotKey, Items: toSnapshotItems(items), StoredAt: now}
		if err := s.snapshots.Save(snapshot); err != nil {
			slog.Warn("Failed to save snapshot", "error", err)
		}
	}

	result := s.result(SourceFeed, now)
	result.FeedTitle = metadata.Title
	slog.Info("Feed loaded", "title", result.FeedTitle, "items", result.Count, "today", result.Today)

	s.prefetchFirst(ctx)
	return result, nil
}

func (s *Session) ingest(ctx context.Context, now time.Time) (*feed.Metadata, []feed.Item, error) {
	data, err := s.fetcher.Run(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	metadata, entries, err := s.parser.Run(data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	slog.Debug("Feed parsed", "title", metadata.Title, "link", metadata.Link, "entries", len(entries))

	return metadata, s.normalizer.Run(entries, now), nil
}

func (s *Session) loadSnapshot(now time.Time) (LoadResult, bool) {
	if s.snapshots == nil {
		return LoadResult{}, false
	}

	snapshot, err := s.snapshots.Load(database.SnapshotKey, s.cacheMaxAge, now)
	if err != nil {
		slog.Warn("Failed to load snapshot", "error", err)
		return LoadResult{}, false
	}
	if snapshot == nil || len(snapshot.Items) == 0 {
		return LoadResult{}, false
	}

	s.list.Replace(fromSnapshotItems(snapshot.Items, now))
	s.reapplyDetails()
	s.markLoaded(snapshot.StoredAt)

	result := s.result(SourceSnapshot, snapshot.StoredAt)
	slog.Info("Feed loaded from snapshot", "items", result.Count, "stored_at", snapshot.StoredAt)
	return result, true
}

// reapplyDetails carries cover and size already in the cache over to a
// freshly replaced list.
func (s *Session) reapplyDetails() {
	seen := make(map[string]bool)
	for _, item := range s.list.Snapshot() {
		if seen[item.Link] {
			continue
		}
		seen[item.Link] = true

		if entry := s.cache.Lookup(item.Link); entry.HasDetail {
			s.list.ApplyDetail(item.Link, entry.CoverURL, entry.FileSize)
		}
	}
}

func (s *Session) prefetchFirst(ctx context.Context) {
	s.mu.Lock()
	if s.prefetched {
		s.mu.Unlock()
		return
	}
	first, ok := s.list.First()
	if !ok {
		s.mu.Unlock()
		return
	}
	s.prefetched = true
	s.mu.Unlock()

	slog.Debug("Prefetching first item", "key", first.Key)
	s.enricher.OnSelect(ctx, first.Key)
}

func (s *Session) markLoaded(at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadedAt = at
}

func (s *Session) result(source LoadSource, at time.Time) LoadResult {
	today, _ := s.list.Sections()
	return LoadResult{Source: source, Count: s.list.Len(), Today: len(today), LoadedAt: at}
}

// Select enriches an item for display and returns its latest state.
func (s *Session) Select(ctx context.Context, key string) (feed.Item, enrich.Outcome, error) {
	outcome := s.enricher.Select(ctx, key)
	if outcome == enrich.OutcomeUnknownItem {
		return feed.Item{}, outcome, ErrUnknownItem
	}

	item, _ := s.list.Find(key)
	return item, outcome, nil
}

// OnSelect is the non-blocking form of Select.
func (s *Session) OnSelect(ctx context.Context, key string) {
	s.enricher.OnSelect(ctx, key)
}

func (s *Session) Item(key string) (feed.Item, bool) {
	return s.list.Find(key)
}

func (s *Session) Sections() ([]feed.Item, []feed.Item) {
	return s.list.Sections()
}

func (s *Session) Stats() Stats {
	entries, fetches := s.cache.Stats()

	s.mu.Lock()
	loadedAt := s.loadedAt
	s.mu.Unlock()

	return Stats{
		Items:         s.list.Len(),
		Staged:        s.staged.Len(),
		CachedPages:   entries,
		DetailFetches: fetches,
		LoadedAt:      loadedAt,
	}
}

// Wait blocks until background enrichment has settled.
func (s *Session) Wait() {
	s.enricher.Wait()
}
