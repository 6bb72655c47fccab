// ABOUTME: Clock application orchestration
// ABOUTME: Owns every component and runs the startup sequence then the render loop
package app

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"log"
	"net"
	"time"

	"github.com/harperreed/dualclock/internal/clockerr"
	"github.com/harperreed/dualclock/internal/config"
	"github.com/harperreed/dualclock/internal/discovery"
	"github.com/harperreed/dualclock/internal/display"
	"github.com/harperreed/dualclock/internal/face"
	"github.com/harperreed/dualclock/internal/mirror"
	"github.com/harperreed/dualclock/internal/scheduler"
	"github.com/harperreed/dualclock/internal/timesource"
	"github.com/harperreed/dualclock/internal/ui"
	pdisplay "periph.io/x/conn/v3/display"
)

// Target ids on the shared bus
const (
	AnalogTarget  = 0
	DigitalTarget = 1
)

// Options carries collaborators that cannot come from configuration.
// Every field is optional.
type Options struct {
	// Panel is the hardware driver behind the gpio bus.
	Panel pdisplay.Drawer
	// Fetcher replaces the NTP fetcher.
	Fetcher timesource.Fetcher
	// Network replaces host interface detection.
	Network timesource.Network
	// Setup receives network setup events; logged if nil.
	Setup timesource.SetupHandler
	// Clock replaces the local wall clock.
	Clock func() time.Time
	// Monotonic replaces the render loop's tick clock.
	Monotonic scheduler.Monotonic
	// OnStatus receives a status snapshot once per second.
	OnStatus func(ui.StatusMsg)
}

// ClockSystem is the whole clock: time source, panels, faces, scheduler
// and the optional mirror.
type ClockSystem struct {
	config *config.Config
	opts   Options

	fonts      *display.FontSet
	network    timesource.Network
	source     *timesource.Source
	serverName string

	bus    display.Bus
	panels []*display.Framebuffer

	digital *face.DigitalFace
	analog  *face.AnalogFace
	sched   *scheduler.Scheduler

	mirror    *mirror.Server
	discovery *discovery.Manager

	runCtx     context.Context
	lastResync time.Time
	ready      bool
}

// New creates a clock system. Nothing is started until Init or Run.
func New(cfg *config.Config, opts Options) *ClockSystem {
	return &ClockSystem{config: cfg, opts: opts, runCtx: context.Background()}
}

// Init runs the startup sequence: fonts, network, time sync, panels.
// Only display failures are returned; network and sync problems are logged
// and the clock runs on local time.
func (c *ClockSystem) Init(ctx context.Context) error {
	cfg := c.config

	analogBg, digitalBg, err := cfg.Backgrounds()
	if err != nil {
		return clockerr.New("app.Init", clockerr.KindDisplayInit, err)
	}

	log.Printf("Loading fonts")
	c.fonts, err = display.LoadFonts(cfg.Display.FontDir)
	if err != nil {
		log.Printf("Font initialisation failed: %v", err)
		return err
	}
	log.Printf("Initialisation done")

	c.connect(ctx)

	if err := c.initPanels(digitalBg); err != nil {
		log.Printf("Display initialisation failed: %v", err)
		return err
	}

	w, h := cfg.Display.Width, cfg.Display.Height
	c.digital = face.NewDigitalFace(
		display.NewSprite(w/2, h/2, c.fonts.Hours, c.bus),
		display.NewSprite(w/2, h/2, c.fonts.Minutes, c.bus),
		w, h,
	)
	c.analog = face.NewAnalogFace(
		display.NewSprite(w, h, c.fonts.Dial, c.bus),
		face.DefaultAnalogStyle(),
	)

	schedCfg := cfg.Scheduler()
	schedCfg.Monotonic = c.opts.Monotonic
	c.sched = scheduler.New(c.source, c.bus,
		scheduler.Target{ID: AnalogTarget, Background: analogBg, Renderer: c.analog},
		scheduler.Target{ID: DigitalTarget, Background: digitalBg, Renderer: c.digital},
		schedCfg)
	c.sched.OnSecond(c.onSecond)

	if cfg.Mirror.Enabled {
		c.initMirror()
	}

	c.ready = true
	return nil
}

// connect associates with the network, picks a time server and runs the
// initial sync. Failures leave the local clock in charge.
func (c *ClockSystem) connect(ctx context.Context) {
	cfg := c.config

	c.network = c.opts.Network
	if c.network == nil {
		c.network = timesource.NewHostNetwork()
	}

	setup := c.opts.Setup
	if setup == nil {
		setup = logSetup{}
	}

	log.Printf("Connecting to network")
	if err := c.network.Associate(ctx, cfg.APName, setup); err != nil {
		log.Printf("ERROR: network connect failure: %v", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		log.Printf("Invalid zone, using UTC: %v", err)
		loc = time.UTC
	}

	tsCfg := timesource.DefaultConfig()
	tsCfg.Location = loc
	tsCfg.MinPlausibleYear = cfg.Time.MinYear
	tsCfg.Clock = c.opts.Clock

	fetcher := c.opts.Fetcher
	if fetcher == nil {
		fetcher = c.ntpFetcher(ctx)
	} else {
		c.serverName = fmt.Sprint(fetcher)
	}

	c.source = timesource.NewSource(fetcher, c.network, tsCfg)

	log.Printf("Getting current time")
	if err := c.source.Sync(ctx, cfg.Time.SyncTimeout); err != nil {
		log.Printf("Error: NTP time update failed: %v", err)
	} else {
		log.Printf("Time sync complete")
	}
	c.lastResync = time.Now()
}

// ntpFetcher returns a fetcher for the configured server, or for one found
// via mDNS. A nil return makes Sync report the network as unavailable.
func (c *ClockSystem) ntpFetcher(ctx context.Context) timesource.Fetcher {
	server := c.config.Time.Server
	if server == "" {
		log.Printf("No time server configured, browsing mDNS for %s", discovery.NTPService)
		disc := discovery.NewManager(discovery.Config{Browse: discovery.NTPService})
		defer disc.Stop()

		findCtx, cancel := context.WithTimeout(ctx, c.config.Time.SyncTimeout)
		defer cancel()

		info, err := disc.FindServer(findCtx)
		if err != nil {
			log.Printf("Time server discovery failed: %v", err)
			return nil
		}
		server = info.Addr()
	}

	c.serverName = server
	return timesource.NewNTPFetcher(server, 5*time.Second)
}

// initPanels builds the bus, clears every panel and paints the digital
// panel's static background disc. Any failure is fatal.
func (c *ClockSystem) initPanels(digitalBg color.RGBA) error {
	const op = "app.initPanels"
	cfg := c.config
	w, h := cfg.Display.Width, cfg.Display.Height

	switch cfg.Display.Bus {
	case config.BusGPIO:
		pins, err := display.ResolvePins(cfg.Display.CSPins)
		if err != nil {
			return err
		}
		bus, err := display.NewGPIOMux(c.opts.Panel, pins...)
		if err != nil {
			return err
		}
		c.bus = bus
	default:
		c.panels = []*display.Framebuffer{
			display.NewFramebuffer(AnalogTarget, w, h),
			display.NewFramebuffer(DigitalTarget, w, h),
		}
		c.bus = display.NewMux(c.panels[0], c.panels[1])
	}
	log.Printf("Display bus: %s", c.bus)

	screen := display.NewSprite(w, h, nil, c.bus)
	screen.Fill(display.Black)
	if err := c.bus.Broadcast(func() error { return screen.Present(0, 0, nil) }); err != nil {
		return clockerr.New(op, clockerr.KindDisplayInit, fmt.Errorf("failed to clear panels: %w", err))
	}

	r := float64(min(w, h)) / 2
	key := display.TransparentKey
	screen.Fill(key)
	screen.FillCircle(r-1, r-1, r, digitalBg)

	if err := c.bus.Select(DigitalTarget); err != nil {
		return clockerr.New(op, clockerr.KindDisplayInit, err)
	}
	err := screen.Present(0, 0, &key)
	if derr := c.bus.Deselect(DigitalTarget); err == nil {
		err = derr
	}
	if err != nil {
		return clockerr.New(op, clockerr.KindDisplayInit, fmt.Errorf("failed to paint background: %w", err))
	}
	return nil
}

func (c *ClockSystem) initMirror() {
	cfg := c.config
	if len(c.panels) == 0 {
		log.Printf("Frame mirror needs the virtual bus; disabled")
		return
	}

	c.mirror = mirror.New(mirror.Config{
		Port:   cfg.Mirror.Port,
		Name:   cfg.Mirror.Name,
		MaxFPS: cfg.Mirror.MaxFPS,
		Panels: len(c.panels),
	})
	for _, fb := range c.panels {
		fb.SetObserver(c.mirror.Publish)
	}

	if cfg.Mirror.Advertise {
		c.discovery = discovery.NewManager(discovery.Config{
			ServiceName: cfg.Mirror.Name,
			Port:        cfg.Mirror.Port,
		})
		if err := c.discovery.Advertise(); err != nil {
			log.Printf("Failed to advertise mirror: %v", err)
		}
	}
}

// Run initializes the clock if needed and renders until ctx is cancelled.
func (c *ClockSystem) Run(ctx context.Context) error {
	if !c.ready {
		if err := c.Init(ctx); err != nil {
			return err
		}
	}
	c.runCtx = ctx

	if c.mirror != nil {
		go func() {
			if err := c.mirror.Start(ctx); err != nil {
				log.Printf("Mirror stopped: %v", err)
			}
		}()
	}

	err := c.sched.Run(ctx)
	c.shutdown()

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

func (c *ClockSystem) shutdown() {
	if c.discovery != nil {
		c.discovery.Stop()
	}
	if c.mirror != nil {
		c.mirror.Close()
	}
	if err := c.bus.Halt(); err != nil {
		log.Printf("Failed to halt displays: %v", err)
	}
}

// onSecond runs on the render loop after each second boundary.
func (c *ClockSystem) onSecond(st scheduler.Status) {
	log.Printf(" FPS > %d", st.LastFrames)

	if iv := c.config.Time.ResyncInterval; iv > 0 && time.Since(c.lastResync) >= iv {
		c.lastResync = time.Now()
		log.Printf("Resyncing time")
		if err := c.source.Sync(c.runCtx, c.config.Time.SyncTimeout); err != nil {
			log.Printf("Error: NTP time update failed: %v", err)
		}
	}

	if c.opts.OnStatus != nil {
		c.opts.OnStatus(c.status(st))
	}
}

func (c *ClockSystem) status(st scheduler.Status) ui.StatusMsg {
	synced := c.source.Synced()
	offset, rtt, quality := c.source.Stats()

	msg := ui.StatusMsg{
		Clock:       fmt.Sprintf("%02d:%02d:%02d", st.Now.Hour, st.Now.Minute, st.Now.Second),
		AvgFPS:      st.Stats.AverageFPS,
		LastFrames:  st.LastFrames,
		Frames:      st.Stats.Total,
		Errors:      st.Stats.Errors,
		Server:      c.serverName,
		Synced:      &synced,
		SyncOffset:  offset,
		SyncRTT:     rtt,
		SyncQuality: quality,
		LastSync:    c.source.LastSync(),
	}
	if c.mirror != nil {
		viewers := c.mirror.ViewerCount()
		msg.Viewers = &viewers
		msg.MirrorAddr = fmt.Sprintf(":%d", c.config.Mirror.Port)
	}
	return msg
}

// Source returns the time source
func (c *ClockSystem) Source() *timesource.Source {
	return c.source
}

// Scheduler returns the render loop
func (c *ClockSystem) Scheduler() *scheduler.Scheduler {
	return c.sched
}

// Panels returns the virtual panels, nil on the gpio bus
func (c *ClockSystem) Panels() []*display.Framebuffer {
	return c.panels
}

// logSetup logs network setup events
type logSetup struct{}

func (logSetup) OnConfigMode(portal string) {
	log.Printf("Entered config mode, connect to %q to provision", portal)
}

func (logSetup) OnAssociated(ips []net.IP) {
	log.Printf("Network connected, IP addresses: %v", ips)
}
