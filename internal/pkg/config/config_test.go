package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("placemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Geocoder.RequestsPerSecond != 1 {
		t.Errorf("expected 1 req/s for the public geocoder, got %v", cfg.Geocoder.RequestsPerSecond)
	}
	if cfg.Geocoder.CacheTTL != 24*time.Hour || cfg.Geocoder.NegativeCacheTTL != 5*time.Minute {
		t.Errorf("unexpected cache TTLs %v/%v", cfg.Geocoder.CacheTTL, cfg.Geocoder.NegativeCacheTTL)
	}
	if cfg.Sessions.IdleTTL != 30*time.Minute {
		t.Errorf("expected 30m idle TTL, got %v", cfg.Sessions.IdleTTL)
	}
	if cfg.Telemetry.ServiceName != "placemap-test" {
		t.Errorf("expected service name from Load, got %q", cfg.Telemetry.ServiceName)
	}
	if cfg.Telemetry.Enabled {
		t.Error("telemetry should be off by default")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PLACEMAP_SERVER_PORT", "9090")
	t.Setenv("PLACEMAP_GEOCODER_BASE_URL", "http://nominatim.internal:8080")
	t.Setenv("PLACEMAP_SESSIONS_IDLE_TTL", "5m")

	cfg, err := Load("placemap-test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Geocoder.BaseURL != "http://nominatim.internal:8080" {
		t.Errorf("unexpected base url %q", cfg.Geocoder.BaseURL)
	}
	if cfg.Sessions.IdleTTL != 5*time.Minute {
		t.Errorf("expected 5m idle TTL, got %v", cfg.Sessions.IdleTTL)
	}
}

func TestValidate_AggregatesProblems(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 0, ReadTimeout: 10, WriteTimeout: 10, RequestTimeout: 15},
		Geocoder: GeocoderConfig{BaseURL: "", UserAgent: "x", Timeout: time.Second},
		Sessions: SessionsConfig{IdleTTL: time.Minute, Max: 0},
	}

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{"server.port", "geocoder.base_url", "sessions.max"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in %q", want, msg)
		}
	}
}

func TestValidate_OptionalDeps(t *testing.T) {
	cfg := &Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10, RequestTimeout: 15},
		Geocoder: GeocoderConfig{BaseURL: "http://x", UserAgent: "x", Timeout: time.Second},
		Sessions: SessionsConfig{IdleTTL: time.Minute, Max: 10},
		NATS:     NATSConfig{Enabled: false},
		Valkey:   ValkeyConfig{Enabled: true, Addr: ""},
	}

	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "valkey.addr") {
		t.Fatalf("expected valkey.addr error, got %v", err)
	}

	cfg.Valkey.Enabled = false
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled deps need no address: %v", err)
	}
}
