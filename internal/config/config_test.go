// ABOUTME: Tests for configuration loading
// ABOUTME: Covers defaults, YAML files, flag precedence and validation
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/harperreed/dualclock/internal/display"
	"github.com/harperreed/dualclock/internal/scheduler"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dualclock.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg, err := Load(nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Time.Server != "ch.pool.ntp.org" {
		t.Errorf("unexpected server %q", cfg.Time.Server)
	}
	if cfg.Time.SyncTimeout != 10*time.Second {
		t.Errorf("unexpected sync timeout %v", cfg.Time.SyncTimeout)
	}
	if cfg.Render.Quantum != 3*time.Millisecond {
		t.Errorf("unexpected quantum %v", cfg.Render.Quantum)
	}
	if cfg.Display.Width != 240 || cfg.Display.Height != 240 {
		t.Errorf("unexpected size %dx%d", cfg.Display.Width, cfg.Display.Height)
	}

	analog, digital, err := cfg.Backgrounds()
	if err != nil {
		t.Fatalf("Backgrounds failed: %v", err)
	}
	if analog != display.Olive || digital != display.Purple {
		t.Errorf("unexpected backgrounds %v %v", analog, digital)
	}

	loc, err := cfg.Location()
	if err != nil {
		t.Fatalf("Location failed: %v", err)
	}
	if loc.String() != "Europe/Zurich" {
		t.Errorf("unexpected zone %s", loc)
	}
}

func TestFlagsOverrideDefaults(t *testing.T) {
	cfg, err := Load([]string{"-ntp-server", "time.example.org", "-pace", "timer", "-cs-pins", "GPIO5, GPIO6", "-no-tui"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Time.Server != "time.example.org" {
		t.Errorf("unexpected server %q", cfg.Time.Server)
	}
	if mode, _ := cfg.PaceMode(); mode != scheduler.PaceTimer {
		t.Errorf("expected timer pacing, got %v", mode)
	}
	if strings.Join(cfg.Display.CSPins, ",") != "GPIO5,GPIO6" {
		t.Errorf("unexpected pins %v", cfg.Display.CSPins)
	}
	if !cfg.NoTUI {
		t.Error("expected no-tui set")
	}
}

func TestFileThenFlags(t *testing.T) {
	path := writeConfig(t, `
time:
  server: ntp.file.example
  zone: UTC
  sync_timeout: 5s
render:
  quantum: 10ms
display:
  digital_background: "#000080"
  cs_pins: [GPIO1, GPIO2]
mirror:
  enabled: true
  port: 9000
`)

	cfg, err := Load([]string{"-config", path, "-mirror-port", "9100"})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.File != path {
		t.Errorf("expected file %s recorded, got %s", path, cfg.File)
	}
	if cfg.Time.Server != "ntp.file.example" || cfg.Time.Zone != "UTC" {
		t.Errorf("file values not applied: %+v", cfg.Time)
	}
	if cfg.Time.SyncTimeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Time.SyncTimeout)
	}
	if cfg.Render.Quantum != 10*time.Millisecond {
		t.Errorf("expected 10ms quantum, got %v", cfg.Render.Quantum)
	}
	if !cfg.Mirror.Enabled {
		t.Error("expected mirror enabled from file")
	}
	if cfg.Mirror.Port != 9100 {
		t.Errorf("expected flag to win with 9100, got %d", cfg.Mirror.Port)
	}
	if strings.Join(cfg.Display.CSPins, ",") != "GPIO1,GPIO2" {
		t.Errorf("unexpected pins %v", cfg.Display.CSPins)
	}
	// Unset keys keep their defaults.
	if cfg.Display.AnalogBackground != display.Hex(display.Olive) {
		t.Errorf("expected default analog background, got %s", cfg.Display.AnalogBackground)
	}
	if cfg.Time.MinYear != 2023 {
		t.Errorf("expected default min year, got %d", cfg.Time.MinYear)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Load([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestBadYAML(t *testing.T) {
	path := writeConfig(t, "time: [unclosed")
	if _, err := Load([]string{"-config", path}); err == nil {
		t.Error("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad size", func(c *Config) { c.Display.Width = 0 }},
		{"bad colour", func(c *Config) { c.Display.AnalogBackground = "olive" }},
		{"bad bus", func(c *Config) { c.Display.Bus = "i2c" }},
		{"gpio pins", func(c *Config) { c.Display.Bus = BusGPIO; c.Display.CSPins = []string{"GPIO22"} }},
		{"bad pace", func(c *Config) { c.Render.Pace = "lazy" }},
		{"bad smoothing", func(c *Config) { c.Render.Smoothing = 1.5 }},
		{"bad timeout", func(c *Config) { c.Time.SyncTimeout = 0 }},
		{"bad zone", func(c *Config) { c.Time.Zone = "Mars/Olympus" }},
		{"bad mirror port", func(c *Config) { c.Mirror.Enabled = true; c.Mirror.Port = 70000 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}

	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestSchedulerConfig(t *testing.T) {
	cfg := Default()
	sc := cfg.Scheduler()

	if sc.Quantum != 3*time.Millisecond || sc.Smoothing != 0.5 || sc.InitialFPS != 18 {
		t.Errorf("unexpected scheduler config %+v", sc)
	}
	if sc.Mode != scheduler.PaceBusy {
		t.Errorf("expected busy pacing, got %v", sc.Mode)
	}
}
