package license

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	cacheTTL       = 24 * time.Hour
	requestTimeout = 10 * time.Second
	appVersion     = "1.0.0"
)

type verifyData struct {
	LicenseKey string `json:"license_key"`
	DeviceID   string `json:"device_id"`
	Timestamp  int64  `json:"timestamp"`
	AppVersion string `json:"app_version"`
}

type verifyRequest struct {
	Data      verifyData `json:"data"`
	Signature string     `json:"signature"`
}

type verifyResponse struct {
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

type licenseData struct {
	Active            bool     `json:"active"`
	DeviceLimit       int      `json:"device_limit"`
	RegisteredDevices []string `json:"registered_devices"`
	ValidUntil        string   `json:"valid_until"`
}

type grant struct {
	verifiedAt time.Time
	validUntil time.Time
}

type ServerGateConfig struct {
	ServerURL  string
	LicenseKey string
	DeviceID   string
	HTTPClient *http.Client
	Now        func() time.Time
}

// ServerGate validates a license key against a remote server. Requests and
// responses are signed with HMAC-SHA256 keyed by the license key. A
// successful answer is cached for 24 hours, never past the license expiry.
// When the license carries an expiry, the cached answer also covers periods
// where the server is unreachable.
type ServerGate struct {
	serverURL  string
	licenseKey string
	deviceID   string
	client     *http.Client
	now        func() time.Time

	mu     sync.Mutex
	cached *grant
}

func NewServerGate(c ServerGateConfig) (*ServerGate, error) {
	if c.ServerURL == "" {
		return nil, fmt.Errorf("license server URL is required")
	}
	if c.LicenseKey == "" {
		return nil, fmt.Errorf("license key is required")
	}

	deviceID := c.DeviceID
	if deviceID == "" {
		deviceID = uuid.NewString()
		slog.Warn("No device ID configured, using a generated one", "device_id", deviceID)
	}

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	now := c.Now
	if now == nil {
		now = time.Now
	}

	return &ServerGate{
		serverURL:  c.ServerURL,
		licenseKey: c.LicenseKey,
		deviceID:   deviceID,
		client:     client,
		now:        now,
	}, nil
}

func (g *ServerGate) Authorize(ctx context.Context) (bool, string) {
	now := g.now()

	g.mu.Lock()
	cached := g.cached
	g.mu.Unlock()

	if cached != nil && now.Sub(cached.verifiedAt) < cacheTTL && cached.allows(now) {
		return true, "license valid (cached)"
	}

	data, err := g.verify(ctx, now)
	if err != nil {
		if cached != nil && !cached.validUntil.IsZero() && cached.allows(now) {
			slog.Warn("License server unreachable, using cached grant", "valid_until", cached.validUntil, "error", err)
			return true, "license valid (offline)"
		}
		slog.Error("License verification failed", "error", err)
		return false, fmt.Sprintf("license verification error: %v", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if ok, reason := g.check(data, now); !ok {
		g.cached = nil
		return false, reason
	}

	validUntil, _ := parseValidUntil(data.ValidUntil)
	g.cached = &grant{verifiedAt: now, validUntil: validUntil}
	return true, "license valid"
}

func (g *ServerGate) verify(ctx context.Context, now time.Time) (*licenseData, error) {
	payload := verifyData{
		LicenseKey: g.licenseKey,
		DeviceID:   g.deviceID,
		Timestamp:  now.Unix(),
		AppVersion: appVersion,
	}
	signed, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification data: %w", err)
	}

	body, err := json.Marshal(verifyRequest{Data: payload, Signature: g.sign(signed)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode verification request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.serverURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach license server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("license server returned HTTP %d", resp.StatusCode)
	}

	var out verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode license response: %w", err)
	}

	if !hmac.Equal([]byte(out.Signature), []byte(g.sign(out.Data))) {
		return nil, fmt.Errorf("invalid license signature")
	}

	var data licenseData
	if err := json.Unmarshal(out.Data, &data); err != nil {
		return nil, fmt.Errorf("failed to decode license data: %w", err)
	}

	return &data, nil
}

func (g *ServerGate) check(data *licenseData, now time.Time) (bool, string) {
	if !data.Active {
		return false, "license inactive"
	}

	if data.DeviceLimit > 0 && !slices.Contains(data.RegisteredDevices, g.deviceID) &&
		len(data.RegisteredDevices) >= data.DeviceLimit {
		return false, "device limit reached"
	}

	if data.ValidUntil != "" {
		validUntil, err := parseValidUntil(data.ValidUntil)
		if err != nil {
			return false, fmt.Sprintf("invalid license expiry %q", data.ValidUntil)
		}
		if !now.Before(validUntil) {
			return false, "license expired"
		}
	}

	return true, ""
}

func (g *ServerGate) sign(data []byte) string {
	mac := hmac.New(sha256.New, []byte(g.licenseKey))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

func (c *grant) allows(now time.Time) bool {
	return c.validUntil.IsZero() || now.Before(c.validUntil)
}

func parseValidUntil(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time format: %s", s)
}
