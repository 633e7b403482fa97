package fetcher

import (
	"cmp"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"time"

	"github.com/BRA7534/CARFAST/app/metrics"
	"golang.org/x/time/rate"
)

var allowedContentTypes = map[string]bool{
	"text/html":             true,
	"application/xhtml+xml": true,
	"application/xml":       true,
	"text/xml":              true,
}

var errTooManyRedirects = errors.New("stopped after too many redirects")

type Fetcher struct {
	client           *http.Client
	limiter          *SlidingWindow
	clock            Clock
	observer         Observer
	userAgent        string
	maxContentLength int64
	maxRetries       int
	waitLog          rate.Sometimes
}

func New(c Config) *Fetcher {
	clock := c.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	limiter := c.Limiter
	if limiter == nil {
		limiter = NewSlidingWindow(DefaultRateLimitCalls, DefaultRateLimitWindow, clock)
	}
	maxRetries := c.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Fetcher{
		client:           newHTTPClient(cmp.Or(c.Timeout, DefaultTimeout)),
		limiter:          limiter,
		clock:            clock,
		observer:         c.Observer,
		userAgent:        cmp.Or(c.UserAgent, DefaultUserAgent),
		maxContentLength: cmp.Or(c.MaxContentLength, DefaultMaxContentLength),
		maxRetries:       maxRetries,
		waitLog:          rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
}

func newHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errTooManyRedirects
			}
			return nil
		},
	}
}

// Fetch performs a screened GET of rawURL. It never returns an error; every
// outcome is reported through Result.Status.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) Result {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Result{Status: StatusRejected, Err: fmt.Errorf("invalid URL: %w", err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Status: StatusRejected, Err: fmt.Errorf("unsupported URL: %s", rawURL)}
	}

	var res Result
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			slog.Debug("Retrying request", "url", rawURL, "attempt", attempt, "delay", delay.String(), "error", res.Err)
			if err := f.clock.Sleep(ctx, delay); err != nil {
				return Result{Status: StatusNetworkError, Err: fmt.Errorf("retry aborted: %w", err)}
			}
		}

		waited, err := f.limiter.Wait(ctx)
		if err != nil {
			return Result{Status: StatusNetworkError, Err: fmt.Errorf("rate limit wait aborted: %w", err)}
		}
		if waited > 0 {
			metrics.RateLimitWaits.Inc()
			f.waitLog.Do(func() {
				slog.Info("Rate limit reached, request delayed", "url", rawURL, "waited", waited.String())
			})
		}

		var retry bool
		res, retry = f.attempt(ctx, u.String())
		if !retry || ctx.Err() != nil {
			return res
		}
	}

	slog.Warn("Request failed after retries", "url", rawURL, "attempts", f.maxRetries+1, "error", res.Err)
	return res
}

// attempt performs one GET and reports whether the failure is worth retrying.
func (f *Fetcher) attempt(ctx context.Context, target string) (Result, bool) {
	started := f.clock.Now()
	res, retry := f.do(ctx, target)

	metrics.ObserveFetch(res.Status.String(), f.clock.Now().Sub(started))
	f.observe(ctx, target, res)

	return res, retry
}

func (f *Fetcher) do(ctx context.Context, target string) (Result, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Status: StatusRejected, Err: fmt.Errorf("failed to create request: %w", err)}, false
	}
	setBrowserHeaders(req, f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Status: StatusNetworkError, Err: fmt.Errorf("failed to fetch: %w", err)}, true
	}
	defer resp.Body.Close()

	finalURL := target
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return Result{Status: StatusNetworkError, FinalURL: finalURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}, true
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{Status: StatusRejected, FinalURL: finalURL, Err: fmt.Errorf("HTTP %d", resp.StatusCode)}, false
	}

	if resp.ContentLength > f.maxContentLength {
		return Result{Status: StatusRejected, FinalURL: finalURL, Err: fmt.Errorf("content length %d exceeds %d", resp.ContentLength, f.maxContentLength)}, false
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil || !allowedContentTypes[mediaType] {
		return Result{Status: StatusRejected, FinalURL: finalURL, ContentType: contentType, Err: fmt.Errorf("content type %q not allowed", contentType)}, false
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxContentLength+1))
	if err != nil {
		return Result{Status: StatusNetworkError, FinalURL: finalURL, Err: fmt.Errorf("failed to read response body: %w", err)}, true
	}
	if int64(len(body)) > f.maxContentLength {
		return Result{Status: StatusRejected, FinalURL: finalURL, ContentType: mediaType, Err: fmt.Errorf("body exceeds %d bytes", f.maxContentLength)}, false
	}

	return Result{Status: StatusOK, Body: body, ContentType: mediaType, FinalURL: finalURL}, false
}

func (f *Fetcher) observe(ctx context.Context, target string, res Result) {
	if f.observer == nil {
		return
	}

	var errMsg string
	if res.Err != nil {
		errMsg = res.Err.Error()
	}
	if err := f.observer.RecordRequest(context.WithoutCancel(ctx), target, res.OK(), errMsg); err != nil {
		slog.Warn("Failed to record request history", "url", target, "error", err)
	}
}

func setBrowserHeaders(req *http.Request, userAgent string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9")
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7")
	req.Header.Set("DNT", "1")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
}
