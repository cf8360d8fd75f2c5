package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Full(t *testing.T) {
	path := writeConfig(t, `
server:
  host: 127.0.0.1
  port: 9090
database:
  url: postgres://localhost/loadshift
engine:
  url: http://engine:8989
scheduler:
  mode: energy-aware
  tick_interval: 2s
prices:
  url: http://oracle:9500/energy-price
  timeout: 1s
security:
  signing_key: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if cfg.Scheduler.Mode != ModeEnergyAware {
		t.Errorf("expected energy-aware mode, got %q", cfg.Scheduler.Mode)
	}
	if cfg.Scheduler.TickInterval != 2*time.Second {
		t.Errorf("expected 2s tick interval, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Prices.URL != "http://oracle:9500/energy-price" {
		t.Errorf("unexpected prices URL %q", cfg.Prices.URL)
	}
}

func TestLoad_DefaultsFillGaps(t *testing.T) {
	cfg, err := Load(writeConfig(t, "server:\n  port: 1234\n"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Scheduler.TickInterval != time.Second {
		t.Errorf("expected default 1s tick interval, got %v", cfg.Scheduler.TickInterval)
	}
	if cfg.Prices.URL != "http://localhost:9500/energy-price" {
		t.Errorf("expected default oracle URL, got %q", cfg.Prices.URL)
	}
}

func TestLoad_Malformed(t *testing.T) {
	if _, err := Load(writeConfig(t, "server: [not a map")); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestResolveMode(t *testing.T) {
	cases := []struct {
		name string
		cfg  SchedulerConfig
		want string
	}{
		{"default", SchedulerConfig{}, ModeImmediately},
		{"legacy toggle", SchedulerConfig{LastMinute: true}, ModeLastMinute},
		{"mode wins over toggle", SchedulerConfig{Mode: ModeEnergyAware, LastMinute: true}, ModeEnergyAware},
		{"unknown passes through", SchedulerConfig{Mode: "ERROR"}, "ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.ResolveMode(); got != tc.want {
				t.Errorf("ResolveMode() = %q, want %q", got, tc.want)
			}
		})
	}
}
