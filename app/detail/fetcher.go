package detail

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/lysyi3m/mikan-comb/app/feed"
)

// Fetcher downloads a detail page and runs the extractor over it. It never
// retries; that is the caller's decision.
type Fetcher struct {
	httpClient *http.Client
	extractor  *Extractor
	userAgent  string
}

func NewFetcher(httpClient *http.Client, extractor *Extractor, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		extractor:  extractor,
		userAgent:  userAgent,
	}
}

func (f *Fetcher) Run(ctx context.Context, url string) (Record, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return Record{}, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return Record{}, &feed.NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Record{}, &feed.NetworkError{URL: url, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Record{}, &feed.NetworkError{URL: url, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	record := f.extractor.Run(string(data))

	slog.Debug("Detail page extracted",
		"url", url,
		"cover", record.CoverURL != "",
		"file_size", record.FileSize,
		"magnet", record.Magnet != "")

	return record, nil
}
