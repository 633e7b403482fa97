package cfg

import "time"

type Cfg struct {
	// Storage
	DBPath      string
	SourcesFile string

	// HTTP server and background work
	Port              string
	APIAccessKey      string
	WorkerCount       int
	IntegrityInterval time.Duration

	// Outbound fetching
	UserAgent        string
	RateLimitCalls   int
	RateLimitWindow  time.Duration
	RequestTimeout   time.Duration
	MaxContentLength int64
	MaxRetries       int

	// Harvest
	SourcePacing       time.Duration
	HarvestConcurrency int

	// License
	LicenseKey    string
	LicenseServer string
	DeviceID      string

	// Application metadata
	Timezone string
	Debug    bool
	Version  string
}

// LicenseEnabled reports whether harvests must be authorized by a license server.
func (c *Cfg) LicenseEnabled() bool {
	return c.LicenseServer != "" && c.LicenseKey != ""
}
