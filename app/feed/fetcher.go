package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

type Fetcher struct {
	httpClient *http.Client
	feedURL    string
	userAgent  string
	now        func() time.Time
}

func NewFetcher(httpClient *http.Client, feedURL, userAgent string) *Fetcher {
	return &Fetcher{
		httpClient: httpClient,
		feedURL:    feedURL,
		userAgent:  userAgent,
		now:        time.Now,
	}
}

// Run downloads the feed body. A cache-busting query parameter is appended on
// every request.
func (f *Fetcher) Run(ctx context.Context) ([]byte, error) {
	requestURL, err := f.bustedURL()
	if err != nil {
		return nil, fmt.Errorf("failed to build feed URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", requestURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, &NetworkError{URL: f.feedURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &NetworkError{URL: f.feedURL, StatusCode: resp.StatusCode}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: f.feedURL, Err: fmt.Errorf("failed to read response body: %w", err)}
	}

	return data, nil
}

func (f *Fetcher) bustedURL() (string, error) {
	u, err := url.Parse(f.feedURL)
	if err != nil {
		return "", err
	}
	query := u.Query()
	query.Set("t", strconv.FormatInt(f.now().UnixMilli(), 10))
	u.RawQuery = query.Encode()
	return u.String(), nil
}
