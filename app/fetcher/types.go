package fetcher

import (
	"context"
	"time"
)

const (
	DefaultUserAgent        = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	DefaultRateLimitCalls   = 30
	DefaultRateLimitWindow  = 60 * time.Second
	DefaultTimeout          = 10 * time.Second
	DefaultMaxContentLength = 5 * 1024 * 1024
	DefaultMaxRetries       = 3
	maxRedirects            = 10
)

type Status int

const (
	StatusOK Status = iota
	StatusRejected
	StatusNetworkError
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRejected:
		return "rejected"
	case StatusNetworkError:
		return "network_error"
	}
	return "unknown"
}

// Result is the outcome of one Fetch call. Err explains a non-OK status and
// is for logging only.
type Result struct {
	Status      Status
	Body        []byte
	ContentType string
	FinalURL    string
	Err         error
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Observer is told about every attempt that reached the network.
type Observer interface {
	RecordRequest(ctx context.Context, url string, success bool, errMsg string) error
}

type Config struct {
	UserAgent        string
	Timeout          time.Duration
	MaxContentLength int64
	MaxRetries       int
	Limiter          *SlidingWindow
	Clock            Clock
	Observer         Observer
}
