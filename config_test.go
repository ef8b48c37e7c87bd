/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		bind:           "0.0.0.0",
		logFormat:      "console",
		port:           8080,
		resultsLimit:   20,
		sessionTimeout: time.Hour,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"cert without key", func(c *Config) { c.tlsCert = "cert.pem" }, false},
		{"cert and key", func(c *Config) { c.tlsCert, c.tlsKey = "cert.pem", "key.pem" }, true},
		{"port zero", func(c *Config) { c.port = 0 }, false},
		{"port too high", func(c *Config) { c.port = 65536 }, false},
		{"both archives", func(c *Config) { c.redisURL, c.databaseURL = "redis://localhost", "postgres://localhost" }, false},
		{"redis only", func(c *Config) { c.redisURL = "redis://localhost" }, true},
		{"negative timeout", func(c *Config) { c.sessionTimeout = -time.Second }, false},
		{"reaper disabled", func(c *Config) { c.sessionTimeout = 0 }, true},
		{"zero results", func(c *Config) { c.resultsLimit = 0 }, false},
		{"json logs", func(c *Config) { c.logFormat = "json" }, true},
		{"unknown log format", func(c *Config) { c.logFormat = "xml" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatalf("expected an error")
			}
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := validConfig()
	if got := cfg.scheme(); got != "http" {
		t.Fatalf("scheme = %q, want http", got)
	}
	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	if got := cfg.scheme(); got != "https" {
		t.Fatalf("scheme = %q, want https", got)
	}
}

func TestFlagDefaults(t *testing.T) {
	cfg := &Config{}
	cmd := newCmd(cfg)
	if err := cmd.ParseFlags(nil); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	if cfg.port != 8080 || cfg.bind != "0.0.0.0" || cfg.resultsLimit != 20 {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.sessionTimeout != 60*time.Minute {
		t.Fatalf("unexpected session timeout %s", cfg.sessionTimeout)
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestFlagsFromEnvironment(t *testing.T) {
	t.Setenv("CHECKERS_SESSION_TIMEOUT", "5m")
	t.Setenv("CHECKERS_REDIS_URL", "redis://cache:6379/1")
	t.Setenv("PORT", "9001")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 9001 {
		t.Fatalf("expected PORT to set the port, got %d", cfg.port)
	}
	if cfg.sessionTimeout != 5*time.Minute {
		t.Fatalf("expected session timeout from env, got %s", cfg.sessionTimeout)
	}
	if cfg.redisURL != "redis://cache:6379/1" {
		t.Fatalf("expected redis url from env, got %q", cfg.redisURL)
	}
}

func TestPrefixedPortWins(t *testing.T) {
	t.Setenv("CHECKERS_PORT", "9100")
	t.Setenv("PORT", "9001")

	cfg := &Config{}
	newCmd(cfg)

	if cfg.port != 9100 {
		t.Fatalf("expected CHECKERS_PORT to take precedence, got %d", cfg.port)
	}
}

func TestHumanReadableSize(t *testing.T) {
	tests := map[int64]string{
		0:         "0 B",
		999:       "999 B",
		1000:      "1.0 kB",
		1_500_000: "1.5 MB",
	}
	for in, want := range tests {
		if got := humanReadableSize(in); got != want {
			t.Fatalf("humanReadableSize(%d) = %q, want %q", in, got, want)
		}
	}
}
