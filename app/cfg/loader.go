package cfg

import (
	"cmp"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage
	DBPath      string `long:"db-path" env:"DB_PATH" default:"./carfast.db" description:"SQLite database file"`
	SourcesFile string `long:"sources-file" env:"SOURCES_FILE" description:"YAML file listing review sites (built-in list when empty)"`

	// HTTP server and background work
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"2" description:"Number of background workers"`
	IntegrityInterval int    `long:"integrity-interval" env:"INTEGRITY_INTERVAL" default:"3600" description:"Seconds between integrity checks (0 runs it at startup only)"`

	// Outbound fetching
	UserAgent        string `long:"user-agent" env:"USER_AGENT" description:"User agent for outbound requests (browser-like default when empty)"`
	RateLimitCalls   int    `long:"rate-limit-calls" env:"RATE_LIMIT_CALLS" default:"30" description:"Requests allowed per rate limit window"`
	RateLimitWindow  int    `long:"rate-limit-window" env:"RATE_LIMIT_WINDOW" default:"60" description:"Rate limit window in seconds"`
	RequestTimeout   int    `long:"request-timeout" env:"REQUEST_TIMEOUT" default:"10" description:"Per-request timeout in seconds"`
	MaxContentLength int64  `long:"max-content-length" env:"MAX_CONTENT_LENGTH" default:"5242880" description:"Largest accepted response body in bytes"`
	MaxRetries       int    `long:"max-retries" env:"MAX_RETRIES" default:"3" description:"Retries after transient fetch failures"`

	// Harvest
	SourcePacing       int `long:"source-pacing" env:"SOURCE_PACING" default:"2000" description:"Pause between sources in milliseconds"`
	HarvestConcurrency int `long:"harvest-concurrency" env:"HARVEST_CONCURRENCY" default:"1" description:"Sources harvested in parallel (1 keeps them sequential)"`

	// License
	LicenseKey    string `long:"license-key" env:"LICENSE_KEY" description:"License key (license checks disabled when empty)"`
	LicenseServer string `long:"license-server" env:"LICENSE_SERVER" description:"License server verification URL"`
	DeviceID      string `long:"device-id" env:"DEVICE_ID" description:"Stable device identifier sent to the license server"`

	// Application metadata
	Timezone string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Paris)"`
	Debug    bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

// Load parses the process arguments and environment.
func Load() (*Cfg, error) {
	return Parse(os.Args[1:])
}

// Parse builds the configuration from args and the environment and makes it
// available through Get. A nil config with a nil error means help was printed.
func Parse(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if err := validate(raw); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:             raw.DBPath,
		SourcesFile:        raw.SourcesFile,
		Port:               raw.Port,
		APIAccessKey:       raw.APIAccessKey,
		WorkerCount:        raw.WorkerCount,
		IntegrityInterval:  time.Duration(raw.IntegrityInterval) * time.Second,
		UserAgent:          raw.UserAgent,
		RateLimitCalls:     raw.RateLimitCalls,
		RateLimitWindow:    time.Duration(raw.RateLimitWindow) * time.Second,
		RequestTimeout:     time.Duration(raw.RequestTimeout) * time.Second,
		MaxContentLength:   raw.MaxContentLength,
		MaxRetries:         raw.MaxRetries,
		SourcePacing:       time.Duration(raw.SourcePacing) * time.Millisecond,
		HarvestConcurrency: raw.HarvestConcurrency,
		LicenseKey:         raw.LicenseKey,
		LicenseServer:      raw.LicenseServer,
		DeviceID:           raw.DeviceID,
		Timezone:           raw.Timezone,
		Debug:              raw.Debug,
		Version:            GetVersion(),
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

func validate(raw rawCfg) error {
	positive := map[string]int{
		"rate-limit-calls":  raw.RateLimitCalls,
		"rate-limit-window": raw.RateLimitWindow,
		"request-timeout":   raw.RequestTimeout,
		"worker-count":      raw.WorkerCount,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, value)
		}
	}

	if raw.MaxContentLength <= 0 {
		return fmt.Errorf("max-content-length must be positive, got %d", raw.MaxContentLength)
	}
	if raw.MaxRetries < 0 || raw.SourcePacing < 0 || raw.IntegrityInterval < 0 || raw.HarvestConcurrency < 0 {
		return fmt.Errorf("max-retries, source-pacing, integrity-interval and harvest-concurrency cannot be negative")
	}
	if (raw.LicenseKey == "") != (raw.LicenseServer == "") {
		return fmt.Errorf("license-key and license-server must be set together")
	}
	return nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		if loc, err := time.LoadLocation(timezone); err != nil {
			return err
		} else {
			time.Local = loc
		}
	}
	return nil
}
