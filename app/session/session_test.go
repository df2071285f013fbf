package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lysyi3m/mikan-comb/app/database"
	"github.com/lysyi3m/mikan-comb/app/detail"
	"github.com/lysyi3m/mikan-comb/app/feed"
	"github.com/lysyi3m/mikan-comb/app/magnet"
	"github.com/lysyi3m/mikan-comb/app/staging"
)

const testMagnet = "magnet:?xt=urn:btih:0123456789ABCDEF0123456789ABCDEF01234567&dn=a"

const feedTemplate = `<?xml version="1.0" encoding="utf-8"?>
<rss version="2.0">
  <channel>
    <title>Mikan Project</title>
    <item>
      <link>%[1]s/Home/Episode/a</link>
      <title>[ANi] Alpha - 01 [1080P]</title>
      <pubDate>%[2]s</pubDate>
      <enclosure type="application/x-bittorrent" length="1024" url="%[1]s/Download/a.torrent" />
    </item>
    <item>
      <link>%[1]s/Home/Episode/b</link>
      <title>[ANi] Beta - 01 [1080P]</title>
      <pubDate>%[2]s</pubDate>
      <enclosure type="application/x-bittorrent" length="2048" url="%[1]s/Download/b.torrent" />
    </item>
    <item>
      <link>%[1]s/Home/Episode/c</link>
      <title>[ANi] Gamma - 01 [1080P]</title>
      <pubDate>Mon, 03 Jul 2023 10:00:00 GMT</pubDate>
    </item>
  </channel>
</rss>`

type origin struct {
	*httptest.Server

	mu       sync.Mutex
	hits     map[string]int
	feedCode int
}

func newOrigin(t *testing.T) *origin {
	t.Helper()

	o := &origin{hits: make(map[string]int), feedCode: http.StatusOK}
	o.Server = httptest.NewServer(http.HandlerFunc(o.serve))
	t.Cleanup(o.Close)
	return o
}

func (o *origin) serve(w http.ResponseWriter, r *http.Request) {
	o.mu.Lock()
	o.hits[r.URL.Path]++
	feedCode := o.feedCode
	o.mu.Unlock()

	switch r.URL.Path {
	case "/RSS/Classic":
		if feedCode != http.StatusOK {
			w.WriteHeader(feedCode)
			return
		}
		fmt.Fprintf(w, feedTemplate, o.URL, time.Now().Format(time.RFC1123Z))
	case "/Home/Episode/a":
		fmt.Fprintf(w, `<div class="bangumi-poster" style="background-image: url('/img/a.jpg')"></div>`+
			`<p class="bangumi-info">文件大小：1.2GB</p><a href="%s">磁力链接</a>`, testMagnet)
	case "/Home/Episode/b":
		fmt.Fprint(w, `<p class="bangumi-info">文件大小：300MB</p>`)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func (o *origin) count(path string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[path]
}

func (o *origin) link(path string) string {
	return o.URL + path
}

type memorySnapshots struct {
	mu        sync.Mutex
	snapshots map[string]database.Snapshot
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{snapshots: make(map[string]database.Snapshot)}
}

func (m *memorySnapshots) Save(snapshot database.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.Key] = snapshot
	return nil
}

func (m *memorySnapshots) Load(key string, maxAge time.Duration, now time.Time) (*database.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot, ok := m.snapshots[key]
	if !ok || now.Sub(snapshot.StoredAt) >= maxAge {
		return nil, nil
	}
	return &snapshot, nil
}

func (m *memorySnapshots) DeleteExpired(maxAge time.Duration, now time.Time) (int64, error) {
	return 0, nil
}

func newTestSession(o *origin, snapshots database.SnapshotRepository) *Session {
	client := o.Client()
	fetcher := feed.NewFetcher(client, o.link("/RSS/Classic"), "test-agent")
	details := detail.NewFetcher(client, detail.NewExtractor(o.URL), "test-agent")
	return New(fetcher, feed.NewParser(), feed.NewNormalizer(feed.DefaultMaxItems), magnet.NewCache(details), snapshots, 30*time.Minute)
}

func loadSession(t *testing.T, s *Session) {
	t.Helper()
	if _, err := s.Load(context.Background(), Discard{}, false); err != nil {
		t.Fatalf("Failed to load session: %v", err)
	}
	s.Wait()
}

func notifications(effects []Effect) []string {
	titles := make([]string, 0)
	for _, effect := range effects {
		if effect.Kind == EffectNotify {
			titles = append(titles, effect.Notification.Title)
		}
	}
	return titles
}

func TestLoadFromFeed(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)

	result, err := s.Load(context.Background(), Discard{}, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s.Wait()

	if result.Source != SourceFeed {
		t.Errorf("Expected feed source, got %s", result.Source)
	}
	if result.Count != 3 || result.Today != 2 {
		t.Errorf("Expected 3 items with 2 today, got %d/%d", result.Count, result.Today)
	}
	if result.FeedTitle != "Mikan Project" {
		t.Errorf("Expected feed title 'Mikan Project', got %q", result.FeedTitle)
	}

	first, _ := s.Item(o.link("/Home/Episode/a"))
	if first.CoverURL != o.URL+"/img/a.jpg" || first.FileSize != "1.2GB" {
		t.Errorf("Expected first item to be prefetched, got cover=%q size=%q", first.CoverURL, first.FileSize)
	}

	// A second load must not prefetch again, and keeps the cached detail.
	if _, err := s.Load(context.Background(), Discard{}, true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s.Wait()

	refreshed, _ := s.Item(o.link("/Home/Episode/a"))
	if refreshed.FileSize != "1.2GB" {
		t.Errorf("Expected cached detail to survive a forced reload, got size=%q", refreshed.FileSize)
	}

	if hits := o.count("/Home/Episode/a"); hits != 1 {
		t.Errorf("Expected 1 detail fetch, got %d", hits)
	}
}

func TestLoadUsesFreshSnapshot(t *testing.T) {
	o := newOrigin(t)
	snapshots := newMemorySnapshots()

	loadSession(t, newTestSession(o, snapshots))

	s := newTestSession(o, snapshots)
	result, err := s.Load(context.Background(), Discard{}, false)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	s.Wait()

	if result.Source != SourceSnapshot || result.Count != 3 {
		t.Errorf("Expected 3 items from snapshot, got %d from %s", result.Count, result.Source)
	}
	if hits := o.count("/RSS/Classic"); hits != 1 {
		t.Errorf("Expected feed to be fetched once, got %d", hits)
	}

	if _, err := s.Load(context.Background(), Discard{}, true); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if hits := o.count("/RSS/Classic"); hits != 2 {
		t.Errorf("Expected forced load to hit the feed, got %d", hits)
	}
}

func TestLoadFailureNotifies(t *testing.T) {
	o := newOrigin(t)
	o.feedCode = http.StatusBadGateway
	s := newTestSession(o, nil)

	fx := NewRecorder()
	_, err := s.Load(context.Background(), fx, false)
	if err == nil {
		t.Fatal("Expected error for failed feed")
	}

	var netErr *feed.NetworkError
	if !errors.As(err, &netErr) || netErr.StatusCode != http.StatusBadGateway {
		t.Errorf("Expected NetworkError with 502, got %v", err)
	}

	effects := fx.Effects()
	if len(effects) != 1 || effects[0].Notification.Style != StyleFailure || effects[0].Notification.Title != "RSS 获取失败" {
		t.Errorf("Expected one failure notification, got %+v", effects)
	}
}

func TestExecuteCopyUsesCachedMagnet(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	fx := NewRecorder()
	if err := s.Execute(context.Background(), fx, o.link("/Home/Episode/a"), ModeCopy); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	effects := fx.Effects()
	if len(effects) != 2 {
		t.Fatalf("Expected 2 effects, got %+v", effects)
	}
	if effects[0].Kind != EffectCopy || effects[0].Text != testMagnet {
		t.Errorf("Expected magnet to be copied, got %+v", effects[0])
	}
	if effects[1].Notification.Title != "已复制" {
		t.Errorf("Expected copy notification, got %q", effects[1].Notification.Title)
	}
	if hits := o.count("/Home/Episode/a"); hits != 1 {
		t.Errorf("Expected prefetched page to be reused, got %d fetches", hits)
	}
}

func TestExecuteBrowserPikPak(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	fx := NewRecorder()
	s.Execute(context.Background(), fx, o.link("/Home/Episode/a"), ModeBrowserPikPak)

	effects := fx.Effects()
	if len(effects) != 3 || effects[0].Kind != EffectCopy || effects[1].Kind != EffectOpen {
		t.Fatalf("Expected copy, open, notify, got %+v", effects)
	}
	if effects[1].Target != o.link("/Home/Episode/a") {
		t.Errorf("Expected detail page to be opened, got %q", effects[1].Target)
	}
}

func TestExecuteDownloadFallsBackToTorrent(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	fx := NewRecorder()
	if err := s.Execute(context.Background(), fx, o.link("/Home/Episode/b"), ModeDownload); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	effects := fx.Effects()
	if len(effects) != 3 {
		t.Fatalf("Expected 3 effects, got %+v", effects)
	}
	if effects[0].Notification.Style != StyleAnimated {
		t.Errorf("Expected resolving notification first, got %+v", effects[0])
	}
	if effects[1].Kind != EffectOpen || effects[1].Target != o.link("/Download/b.torrent") {
		t.Errorf("Expected torrent URL to be opened, got %+v", effects[1])
	}
	if effects[2].Notification.Title != "已下载种子" {
		t.Errorf("Expected torrent notification, got %q", effects[2].Notification.Title)
	}
}

func TestExecuteWithoutMagnetOpensPage(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	key := o.link("/Home/Episode/c")
	for i := 0; i < 2; i++ {
		fx := NewRecorder()
		if err := s.Execute(context.Background(), fx, key, ModeCopy); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}

		titles := notifications(fx.Effects())
		expected := 1
		if i == 0 {
			expected = 2
		}
		if len(titles) != expected || titles[len(titles)-1] != "直接打开网页" {
			t.Errorf("Call %d: expected fallback notification, got %v", i, titles)
		}
	}

	if hits := o.count("/Home/Episode/c"); hits != 1 {
		t.Errorf("Expected failed page to be fetched once, got %d", hits)
	}
}

func TestExecuteRejectsUnknownInput(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	if err := s.Execute(context.Background(), Discard{}, "missing", ModeCopy); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem, got %v", err)
	}
	if err := s.Execute(context.Background(), Discard{}, o.link("/Home/Episode/a"), Mode("torrent")); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
}

func TestSelectEnrichesItem(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	item, _, err := s.Select(context.Background(), o.link("/Home/Episode/b"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if item.FileSize != "300MB" {
		t.Errorf("Expected file size '300MB', got %q", item.FileSize)
	}

	if _, _, err := s.Select(context.Background(), "missing"); !errors.Is(err, ErrUnknownItem) {
		t.Errorf("Expected ErrUnknownItem, got %v", err)
	}
}

func TestStageAndExport(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	a, b := o.link("/Home/Episode/a"), o.link("/Home/Episode/b")

	if err := s.Stage(Discard{}, a); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := s.Stage(Discard{}, b); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	fx := NewRecorder()
	if err := s.Stage(fx, a); !errors.Is(err, staging.ErrAlreadyStaged) {
		t.Errorf("Expected ErrAlreadyStaged, got %v", err)
	}
	if titles := notifications(fx.Effects()); len(titles) != 1 || titles[0] != "已在暂存列表中" {
		t.Errorf("Expected conflict notification, got %v", titles)
	}

	fx = NewRecorder()
	export, err := s.ExportStaged(context.Background(), fx)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if export.Payload != testMagnet {
		t.Errorf("Expected one magnet line, got %q", export.Payload)
	}
	if len(s.Staged()) != 0 {
		t.Errorf("Expected staging to be cleared, got %d items", len(s.Staged()))
	}

	var copied string
	for _, effect := range fx.Effects() {
		if effect.Kind == EffectCopy {
			copied = effect.Text
		}
	}
	if copied != testMagnet {
		t.Errorf("Expected payload to be copied, got %q", copied)
	}
}

func TestExportStagedErrors(t *testing.T) {
	o := newOrigin(t)
	s := newTestSession(o, nil)
	loadSession(t, s)

	if _, err := s.ExportStaged(context.Background(), Discard{}); !errors.Is(err, staging.ErrNothingStaged) {
		t.Errorf("Expected ErrNothingStaged, got %v", err)
	}

	s.Stage(Discard{}, o.link("/Home/Episode/c"))
	if _, err := s.ExportStaged(context.Background(), Discard{}); !errors.Is(err, staging.ErrNothingFound) {
		t.Errorf("Expected ErrNothingFound, got %v", err)
	}
	if !s.IsStaged(o.link("/Home/Episode/c")) {
		t.Error("Expected staging to be untouched when nothing was found")
	}
}

func TestParseMode(t *testing.T) {
	for _, raw := range []string{"browser_pikpak", "download", "copy"} {
		if _, err := ParseMode(raw); err != nil {
			t.Errorf("Expected %q to parse, got %v", raw, err)
		}
	}
	if _, err := ParseMode("seed"); !errors.Is(err, ErrUnknownMode) {
		t.Errorf("Expected ErrUnknownMode, got %v", err)
	}
}
