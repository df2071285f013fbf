package cfg

import (
	"cmp"
	"fmt"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

// DefaultUserAgent is a desktop browser string; the origin rejects default client identifiers.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Server configuration
	Port string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`

	// Origin configuration
	FeedURL        string `long:"feed-url" env:"FEED_URL" default:"https://mikanani.me/RSS/Classic" description:"Syndication feed URL"`
	SiteFile       string `long:"site-file" env:"SITE_FILE" default:"./site.yml" description:"Optional YAML site profile"`
	UserAgent      string `long:"user-agent" env:"USER_AGENT" description:"User agent string for HTTP requests (defaults to a desktop browser string)"`
	RequestTimeout int    `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"30" description:"HTTP request timeout in seconds"`

	// Snapshot cache
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./mikan-comb.db" description:"SQLite file for the feed snapshot cache (empty disables it)"`
	CacheMaxAge int    `long:"cache-max-age" env:"CACHE_MAX_AGE" default:"1800" description:"Feed snapshot max age in seconds"`

	// Background tasks
	WorkerCount       int `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	SchedulerInterval int `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"60" description:"Scheduler interval in seconds"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" description:"Timezone used for the same-day check (e.g., Asia/Shanghai)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	return load(nil)
}

func load(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	var err error
	if args == nil {
		_, err = parser.Parse()
	} else {
		_, err = parser.ParseArgs(args)
	}
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Port:              raw.Port,
		FeedURL:           raw.FeedURL,
		SiteFile:          raw.SiteFile,
		UserAgent:         cmp.Or(raw.UserAgent, DefaultUserAgent),
		RequestTimeout:    raw.RequestTimeout,
		DBPath:            raw.DBPath,
		CacheMaxAge:       raw.CacheMaxAge,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		Timezone:          raw.Timezone,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		fmt.Printf("Warning: Invalid timezone '%s', using system default: %v\n", cfg.Timezone, err)
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

func (c *Cfg) GetRequestTimeout() time.Duration {
	if c.RequestTimeout <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Cfg) GetCacheMaxAge() time.Duration {
	if c.CacheMaxAge <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.CacheMaxAge) * time.Second
}

func (c *Cfg) GetSchedulerInterval() time.Duration {
	if c.SchedulerInterval <= 0 {
		return time.Minute
	}
	return time.Duration(c.SchedulerInterval) * time.Second
}

func validate(c *Cfg) error {
	nonNegativeFields := map[string]int{
		"request timeout":    c.RequestTimeout,
		"cache max age":      c.CacheMaxAge,
		"worker count":       c.WorkerCount,
		"scheduler interval": c.SchedulerInterval,
	}

	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	if c.FeedURL == "" {
		return fmt.Errorf("feed URL is required")
	}

	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
			fmt.Printf("Timezone configured: %s\n", timezone)
		}
	}
	return nil
}
