package cfg

import (
	"strings"
	"testing"
	"time"
)

func TestGetVersion(t *testing.T) {
	if GetVersion() == "" {
		t.Error("GetVersion should never return empty string")
	}

	version := GetVersion()
	if version != "dev" && version != "unknown" {
		// Set at build time
		t.Logf("Version: %s", version)
	}
}

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "./carfast.db" {
		t.Errorf("Expected db path './carfast.db', got '%s'", cfg.DBPath)
	}
	if cfg.RateLimitCalls != 30 {
		t.Errorf("Expected 30 calls per window, got %d", cfg.RateLimitCalls)
	}
	if cfg.RateLimitWindow != time.Minute {
		t.Errorf("Expected 1m window, got %v", cfg.RateLimitWindow)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("Expected 10s timeout, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxContentLength != 5*1024*1024 {
		t.Errorf("Expected 5 MiB content limit, got %d", cfg.MaxContentLength)
	}
	if cfg.SourcePacing != 2*time.Second {
		t.Errorf("Expected 2s pacing, got %v", cfg.SourcePacing)
	}
	if cfg.IntegrityInterval != time.Hour {
		t.Errorf("Expected 1h integrity interval, got %v", cfg.IntegrityInterval)
	}
	if cfg.LicenseEnabled() {
		t.Error("Expected license checks to be disabled by default")
	}
	if Get() != cfg {
		t.Error("Expected Get to return the parsed configuration")
	}
}

func TestParseFlags(t *testing.T) {
	cfg, err := Parse([]string{
		"--db-path", "/tmp/reviews.db",
		"--rate-limit-calls", "5",
		"--rate-limit-window", "30",
		"--source-pacing", "250",
		"--integrity-interval", "0",
		"--harvest-concurrency", "3",
		"--license-key", "secret",
		"--license-server", "https://license.example.com/verify",
		"--debug",
	})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.DBPath != "/tmp/reviews.db" {
		t.Errorf("Expected db path '/tmp/reviews.db', got '%s'", cfg.DBPath)
	}
	if cfg.RateLimitCalls != 5 || cfg.RateLimitWindow != 30*time.Second {
		t.Errorf("Expected 5 calls per 30s, got %d per %v", cfg.RateLimitCalls, cfg.RateLimitWindow)
	}
	if cfg.SourcePacing != 250*time.Millisecond {
		t.Errorf("Expected 250ms pacing, got %v", cfg.SourcePacing)
	}
	if cfg.IntegrityInterval != 0 {
		t.Errorf("Expected startup-only integrity checks, got %v", cfg.IntegrityInterval)
	}
	if cfg.HarvestConcurrency != 3 {
		t.Errorf("Expected concurrency 3, got %d", cfg.HarvestConcurrency)
	}
	if !cfg.LicenseEnabled() {
		t.Error("Expected license checks to be enabled")
	}
	if !cfg.Debug {
		t.Error("Expected debug to be enabled")
	}
}

func TestParseEnvironment(t *testing.T) {
	t.Setenv("API_ACCESS_KEY", "from-env")
	t.Setenv("MAX_RETRIES", "1")

	cfg, err := Parse([]string{})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.APIAccessKey != "from-env" {
		t.Errorf("Expected API key 'from-env', got '%s'", cfg.APIAccessKey)
	}
	if cfg.MaxRetries != 1 {
		t.Errorf("Expected 1 retry, got %d", cfg.MaxRetries)
	}
}

func TestParseRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		errPart string
	}{
		{"zero calls", []string{"--rate-limit-calls", "0"}, "rate-limit-calls"},
		{"zero timeout", []string{"--request-timeout", "0"}, "request-timeout"},
		{"negative pacing", []string{"--source-pacing=-1"}, "cannot be negative"},
		{"key without server", []string{"--license-key", "secret"}, "set together"},
		{"unknown flag", []string{"--feeds-dir", "./feeds"}, "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args)
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("Expected error containing '%s', got '%v'", tt.errPart, err)
			}
		})
	}
}
