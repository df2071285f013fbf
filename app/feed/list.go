package feed

import (
	"sync"
)

// List holds the current item list. Readers always observe the latest
// replacement; callbacks must go through it rather than keep their own copy.
type List struct {
	mu    sync.RWMutex
	items []Item
	index map[string]int // key -> position
}

func NewList() *List {
	return &List{index: make(map[string]int)}
}

// Replace swaps in a new list. Later duplicates of a key are dropped so that
// keys stay unique across the displayed list.
func (l *List) Replace(items []Item) {
	next := make([]Item, 0, len(items))
	index := make(map[string]int, len(items))
	for _, item := range items {
		if _, dup := index[item.Key]; dup {
			continue
		}
		index[item.Key] = len(next)
		next = append(next, item)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = next
	l.index = index
}

func (l *List) Snapshot() []Item {
	l.mu.RLock()
	defer l.mu.RUnlock()

	snapshot := make([]Item, len(l.items))
	copy(snapshot, l.items)
	return snapshot
}

func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *List) Find(key string) (Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	pos, ok := l.index[key]
	if !ok {
		return Item{}, false
	}
	return l.items[pos], true
}

// First returns the item at the top of the list.
func (l *List) First() (Item, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if len(l.items) == 0 {
		return Item{}, false
	}
	return l.items[0], true
}

// ApplyDetail writes enrichment fields into every item pointing at link and
// reports how many were updated.
func (l *List) ApplyDetail(link, coverURL, fileSize string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	updated := 0
	for i := range l.items {
		if l.items[i].Link == link {
			l.items[i].CoverURL = coverURL
			l.items[i].FileSize = fileSize
			updated++
		}
	}
	return updated
}

// Sections splits the list into today's releases and the rest, keeping feed order.
func (l *List) Sections() (today []Item, earlier []Item) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	today = make([]Item, 0)
	earlier = make([]Item, 0)
	for _, item := range l.items {
		if item.IsRecent {
			today = append(today, item)
		} else {
			earlier = append(earlier, item)
		}
	}
	return today, earlier
}
