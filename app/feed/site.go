package feed

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL         = "https://mikanani.me"
	DefaultMirrorURL       = "https://mikan.tangbai.cc"
	DefaultRefreshInterval = 1800
	DefaultMode            = "browser_pikpak"
)

var validModes = map[string]bool{
	"browser_pikpak": true,
	"download":       true,
	"copy":           true,
}

func DefaultSite() *Site {
	return &Site{
		BaseURL:         DefaultBaseURL,
		MirrorURL:       DefaultMirrorURL,
		MaxItems:        DefaultMaxItems,
		RefreshInterval: DefaultRefreshInterval,
		DefaultMode:     DefaultMode,
	}
}

// LoadSite reads the YAML site profile. A missing file yields the defaults.
func LoadSite(path string) (*Site, error) {
	if path == "" {
		return DefaultSite(), nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Debug("Site profile not found, using defaults", "path", path)
		return DefaultSite(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	site, err := parseSite(data)
	if err != nil {
		return nil, fmt.Errorf("invalid site profile %s: %w", path, err)
	}

	slog.Debug("Site profile loaded", "path", path, "origin", site.Origin(), "max_items", site.MaxItems)
	return site, nil
}

func parseSite(data []byte) (*Site, error) {
	site := DefaultSite()
	if err := yaml.Unmarshal(data, site); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if site.BaseURL == "" {
		site.BaseURL = DefaultBaseURL
	}
	if site.MaxItems == 0 {
		site.MaxItems = DefaultMaxItems
	}
	if site.RefreshInterval == 0 {
		site.RefreshInterval = DefaultRefreshInterval
	}
	if site.DefaultMode == "" {
		site.DefaultMode = DefaultMode
	}

	site.BaseURL = strings.TrimRight(site.BaseURL, "/")
	site.MirrorURL = strings.TrimRight(site.MirrorURL, "/")

	if err := validateSite(site); err != nil {
		return nil, err
	}
	return site, nil
}

func validateSite(site *Site) error {
	nonNegativeFields := map[string]int{
		"max items":        site.MaxItems,
		"refresh interval": site.RefreshInterval,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	urlFields := map[string]string{
		"base URL":   site.BaseURL,
		"mirror URL": site.MirrorURL,
	}

	for fieldName, fieldValue := range urlFields {
		if fieldValue == "" {
			continue
		}
		u, err := url.Parse(fieldValue)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("%s must be an absolute http(s) URL: %s", fieldName, fieldValue)
		}
	}

	if site.UseMirror && site.MirrorURL == "" {
		return fmt.Errorf("use_mirror requires mirror_url")
	}

	if !validModes[site.DefaultMode] {
		return fmt.Errorf("invalid default mode: %s", site.DefaultMode)
	}

	return nil
}

// Origin is the base used to absolutize site-relative URLs.
func (s *Site) Origin() string {
	if s.UseMirror && s.MirrorURL != "" {
		return s.MirrorURL
	}
	return s.BaseURL
}

func (s *Site) GetRefreshInterval() time.Duration {
	if s.RefreshInterval <= 0 {
		return DefaultRefreshInterval * time.Second
	}
	return time.Duration(s.RefreshInterval) * time.Second
}
