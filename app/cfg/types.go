package cfg

type Cfg struct {
	// Server configuration
	Port string

	// Origin configuration
	FeedURL        string
	SiteFile       string
	UserAgent      string
	RequestTimeout int // seconds

	// Snapshot cache
	DBPath      string
	CacheMaxAge int // seconds

	// Background tasks
	WorkerCount       int
	SchedulerInterval int // seconds

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}
