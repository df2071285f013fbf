package staging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"

	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/magnet"
)

var (
	ErrAlreadyStaged = errors.New("item already staged")
	ErrNothingStaged = errors.New("nothing staged")
	ErrNothingFound  = errors.New("no magnet links found")
)

type Resolver interface {
	Resolve(ctx context.Context, url string) (string, bool)
}

var _ Resolver = (*magnet.Cache)(nil)

// Export is the result of a bulk resolution.
type Export struct {
	Payload string   `json:"payload"`
	Magnets []string `json:"magnets"`
	Total   int      `json:"total"`
}

// Set keeps staged items in insertion order.
type Set struct {
	mu    sync.Mutex
	items []feed.Item
	index map[string]int
}

func NewSet() *Set {
	return &Set{index: make(map[string]int)}
}

func (s *Set) Stage(item feed.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[item.Key]; ok {
		return ErrAlreadyStaged
	}
	s.index[item.Key] = len(s.items)
	s.items = append(s.items, item)
	return nil
}

// Unstage removes key and reports whether it was present.
func (s *Set) Unstage(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(key)
}

func (s *Set) IsStaged(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.index[key]
	return ok
}

func (s *Set) Items() []feed.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]feed.Item, len(s.items))
	copy(items, s.items)
	return items
}

func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *Set) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = nil
	s.index = make(map[string]int)
}

// ResolveAndExportAll resolves every staged item one at a time, in the order
// they were staged, and joins the magnets found with newlines. The set is
// only cleared when at least one magnet was found.
func (s *Set) ResolveAndExportAll(ctx context.Context, resolver Resolver) (Export, error) {
	staged := s.Items()
	if len(staged) == 0 {
		return Export{}, ErrNothingStaged
	}

	magnets := make([]string, 0, len(staged))
	for _, item := range staged {
		if err := ctx.Err(); err != nil {
			return Export{}, err
		}

		uri, found := resolver.Resolve(ctx, item.Link)
		if !found {
			slog.Debug("No magnet for staged item", "key", item.Key, "link", item.Link)
			continue
		}
		magnets = append(magnets, uri)
	}

	if len(magnets) == 0 {
		return Export{Total: len(staged)}, ErrNothingFound
	}

	s.mu.Lock()
	for _, item := range staged {
		s.removeLocked(item.Key)
	}
	s.mu.Unlock()

	slog.Info("Staged items exported", "total", len(staged), "found", len(magnets))

	return Export{
		Payload: strings.Join(magnets, "\n"),
		Magnets: magnets,
		Total:   len(staged),
	}, nil
}

func (s *Set) removeLocked(key string) bool {
	pos, ok := s.index[key]
	if !ok {
		return false
	}

	s.items = append(s.items[:pos], s.items[pos+1:]...)
	delete(s.index, key)
	for i := pos; i < len(s.items); i++ {
		s.index[s.items[i].Key] = i
	}
	return true
}
