// ABOUTME: Clock configuration from defaults, an optional YAML file and flags
// ABOUTME: Flags given on the command line override values from the file
package config

import (
	"errors"
	"flag"
	"fmt"
	"image/color"
	"os"
	"strings"
	"time"
	_ "time/tzdata" // zone database for hosts without one

	"github.com/harperreed/dualclock/internal/display"
	"github.com/harperreed/dualclock/internal/scheduler"
	"gopkg.in/yaml.v3"
)

// Bus kinds.
const (
	BusVirtual = "virtual"
	BusGPIO    = "gpio"
)

// Config is the full clock configuration.
type Config struct {
	File    string        `yaml:"-"`
	Time    TimeConfig    `yaml:"time"`
	Render  RenderConfig  `yaml:"render"`
	Display DisplayConfig `yaml:"display"`
	Mirror  MirrorConfig  `yaml:"mirror"`
	LogFile string        `yaml:"log_file"`
	NoTUI   bool          `yaml:"no_tui"`
	APName  string        `yaml:"ap_name"`
}

// TimeConfig controls network time sync.
type TimeConfig struct {
	Server         string        `yaml:"server"` // empty browses mDNS for _ntp._udp
	Zone           string        `yaml:"zone"`
	SyncTimeout    time.Duration `yaml:"sync_timeout"`
	ResyncInterval time.Duration `yaml:"resync_interval"` // 0 disables periodic resync
	MinYear        int           `yaml:"min_year"`
}

// RenderConfig controls frame pacing.
type RenderConfig struct {
	Quantum    time.Duration `yaml:"quantum"`
	Pace       string        `yaml:"pace"`
	Smoothing  float64       `yaml:"smoothing"`
	InitialFPS float64       `yaml:"initial_fps"`
}

// DisplayConfig describes the panels.
type DisplayConfig struct {
	Width             int      `yaml:"width"`
	Height            int      `yaml:"height"`
	AnalogBackground  string   `yaml:"analog_background"`
	DigitalBackground string   `yaml:"digital_background"`
	Bus               string   `yaml:"bus"`
	CSPins            []string `yaml:"cs_pins"` // analog first, then digital
	FontDir           string   `yaml:"font_dir"`
}

// MirrorConfig controls the websocket frame mirror.
type MirrorConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Port      int     `yaml:"port"`
	MaxFPS    float64 `yaml:"max_fps"`
	Advertise bool    `yaml:"advertise"`
	Name      string  `yaml:"name"`
}

// Default returns the stock configuration.
func Default() Config {
	pace := scheduler.DefaultConfig()
	return Config{
		Time: TimeConfig{
			Server:      "ch.pool.ntp.org",
			Zone:        "Europe/Zurich",
			SyncTimeout: 10 * time.Second,
			MinYear:     2023,
		},
		Render: RenderConfig{
			Quantum:    pace.Quantum,
			Pace:       pace.Mode.String(),
			Smoothing:  pace.Smoothing,
			InitialFPS: pace.InitialFPS,
		},
		Display: DisplayConfig{
			Width:             240,
			Height:            240,
			AnalogBackground:  display.Hex(display.Olive),
			DigitalBackground: display.Hex(display.Purple),
			Bus:               BusVirtual,
			CSPins:            []string{"GPIO22", "GPIO21"},
		},
		Mirror: MirrorConfig{
			Port:      8930,
			MaxFPS:    10,
			Advertise: true,
		},
		LogFile: "dualclock.log",
		APName:  "ESP32 Clock - Round Displays",
	}
}

// Load builds the configuration from args (without the program name).
// A -config file is applied over the defaults, then flags over the file.
func Load(args []string) (*Config, error) {
	cfg := Default()
	if err := cfg.flagSet().Parse(args); err != nil {
		return nil, err
	}

	if cfg.File != "" {
		path := cfg.File
		fromFile := Default()
		if err := fromFile.loadFile(path); err != nil {
			return nil, err
		}
		fromFile.File = path
		cfg = fromFile

		if err := cfg.flagSet().Parse(args); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return nil
}

func (c *Config) flagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("dualclock", flag.ContinueOnError)

	fs.StringVar(&c.File, "config", c.File, "YAML config file")

	fs.StringVar(&c.Time.Server, "ntp-server", c.Time.Server, "NTP server (empty: discover via mDNS)")
	fs.StringVar(&c.Time.Zone, "zone", c.Time.Zone, "IANA time zone")
	fs.DurationVar(&c.Time.SyncTimeout, "sync-timeout", c.Time.SyncTimeout, "Initial time sync timeout")
	fs.DurationVar(&c.Time.ResyncInterval, "resync", c.Time.ResyncInterval, "Periodic resync interval (0 disables)")
	fs.IntVar(&c.Time.MinYear, "min-year", c.Time.MinYear, "Reject synced times in or before this year")

	fs.DurationVar(&c.Render.Quantum, "quantum", c.Render.Quantum, "Minimum time between frames")
	fs.StringVar(&c.Render.Pace, "pace", c.Render.Pace, "Pacing mode: busy or timer")
	fs.Float64Var(&c.Render.Smoothing, "fps-smoothing", c.Render.Smoothing, "Weight of the latest second in the FPS average")

	fs.IntVar(&c.Display.Width, "width", c.Display.Width, "Panel width in pixels")
	fs.IntVar(&c.Display.Height, "height", c.Display.Height, "Panel height in pixels")
	fs.StringVar(&c.Display.AnalogBackground, "analog-bg", c.Display.AnalogBackground, "Analog face background colour")
	fs.StringVar(&c.Display.DigitalBackground, "digital-bg", c.Display.DigitalBackground, "Digital face background colour")
	fs.StringVar(&c.Display.Bus, "bus", c.Display.Bus, "Display bus: virtual or gpio")
	fs.Func("cs-pins", "Comma-separated chip-select pins, analog first (default "+strings.Join(c.Display.CSPins, ",")+")",
		func(s string) error {
			c.Display.CSPins = splitList(s)
			return nil
		})
	fs.StringVar(&c.Display.FontDir, "font-dir", c.Display.FontDir, "Directory with hours.ttf, minutes.ttf, dial.ttf")

	fs.BoolVar(&c.Mirror.Enabled, "mirror", c.Mirror.Enabled, "Serve panel frames over websocket")
	fs.IntVar(&c.Mirror.Port, "mirror-port", c.Mirror.Port, "Mirror listen port")
	fs.Float64Var(&c.Mirror.MaxFPS, "mirror-fps", c.Mirror.MaxFPS, "Maximum mirrored frames per second per panel")
	fs.BoolVar(&c.Mirror.Advertise, "mirror-mdns", c.Mirror.Advertise, "Advertise the mirror via mDNS")

	fs.StringVar(&c.LogFile, "log-file", c.LogFile, "Log file path")
	fs.BoolVar(&c.NoTUI, "no-tui", c.NoTUI, "Disable TUI, use streaming logs instead")
	fs.StringVar(&c.APName, "ap-name", c.APName, "Provisioning access point name")

	return fs
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks values that would otherwise fail deep inside startup.
func (c *Config) Validate() error {
	var errs []error

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		errs = append(errs, fmt.Errorf("invalid panel size %dx%d", c.Display.Width, c.Display.Height))
	}
	if _, _, err := c.Backgrounds(); err != nil {
		errs = append(errs, err)
	}
	switch c.Display.Bus {
	case BusVirtual:
	case BusGPIO:
		if len(c.Display.CSPins) != 2 {
			errs = append(errs, fmt.Errorf("gpio bus needs 2 chip-select pins, got %d", len(c.Display.CSPins)))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown bus %q", c.Display.Bus))
	}
	if _, err := c.PaceMode(); err != nil {
		errs = append(errs, err)
	}
	if c.Render.Smoothing <= 0 || c.Render.Smoothing > 1 {
		errs = append(errs, fmt.Errorf("fps smoothing %v not in (0, 1]", c.Render.Smoothing))
	}
	if c.Time.SyncTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sync timeout must be positive"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if c.Mirror.Enabled && (c.Mirror.Port <= 0 || c.Mirror.Port > 65535) {
		errs = append(errs, fmt.Errorf("invalid mirror port %d", c.Mirror.Port))
	}

	return errors.Join(errs...)
}

// Location resolves the configured zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Time.Zone)
	if err != nil {
		return nil, fmt.Errorf("invalid zone %q: %w", c.Time.Zone, err)
	}
	return loc, nil
}

// Backgrounds returns the analog and digital background colours.
func (c *Config) Backgrounds() (analog, digital color.RGBA, err error) {
	if analog, err = display.ParseHex(c.Display.AnalogBackground); err != nil {
		return analog, digital, fmt.Errorf("analog background: %w", err)
	}
	if digital, err = display.ParseHex(c.Display.DigitalBackground); err != nil {
		return analog, digital, fmt.Errorf("digital background: %w", err)
	}
	return analog, digital, nil
}

// PaceMode parses the pacing mode.
func (c *Config) PaceMode() (scheduler.PaceMode, error) {
	return scheduler.ParsePaceMode(c.Render.Pace)
}

// Scheduler returns the scheduler settings.
func (c *Config) Scheduler() scheduler.Config {
	mode, _ := c.PaceMode()
	return scheduler.Config{
		Quantum:    c.Render.Quantum,
		InitialFPS: c.Render.InitialFPS,
		Smoothing:  c.Render.Smoothing,
		Mode:       mode,
	}
}
