// ABOUTME: Frame pacing loop driving the analog and digital faces
// ABOUTME: Detects second boundaries, interpolates sub-second time, tracks FPS
package scheduler

import (
	"context"
	"fmt"
	"image/color"
	"log"
	"runtime"
	"strings"
	"time"

	"github.com/harperreed/dualclock/internal/timesource"
)

// TimeSource supplies the current wall-clock time without blocking
type TimeSource interface {
	Now() timesource.WallClock
}

// Renderer draws one face for time t (seconds since midnight)
type Renderer interface {
	Render(t float64, bg color.RGBA) error
}

// Bus addresses one target at a time
type Bus interface {
	Select(id int) error
	Deselect(id int) error
}

// Monotonic is a millisecond counter that never goes backwards
type Monotonic interface {
	Millis() int64
}

// Target is one panel with its face
type Target struct {
	ID         int
	Background color.RGBA
	Renderer   Renderer
}

// PaceMode selects how the loop waits between ticks
type PaceMode int

const (
	// PaceBusy polls continuously, yielding the processor between polls.
	PaceBusy PaceMode = iota
	// PaceTimer sleeps until the next tick deadline.
	PaceTimer
)

func (m PaceMode) String() string {
	switch m {
	case PaceBusy:
		return "busy"
	case PaceTimer:
		return "timer"
	default:
		return fmt.Sprintf("PaceMode(%d)", int(m))
	}
}

// ParsePaceMode parses "busy" or "timer"
func ParsePaceMode(s string) (PaceMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "busy", "":
		return PaceBusy, nil
	case "timer":
		return PaceTimer, nil
	}
	return PaceBusy, fmt.Errorf("unknown pace mode %q", s)
}

// Config holds scheduler configuration
type Config struct {
	Quantum    time.Duration // Minimum spacing between ticks
	InitialFPS float64       // FPS estimate before the first boundary
	Smoothing  float64       // Weight of the newest second in the FPS average, (0, 1]
	Mode       PaceMode
	Monotonic  Monotonic // Tick clock; process uptime if nil
}

// DefaultConfig returns the stock pacing settings
func DefaultConfig() Config {
	return Config{
		Quantum:    3 * time.Millisecond,
		InitialFPS: 18,
		Smoothing:  0.5,
		Mode:       PaceBusy,
	}
}

// ScheduleState drives pacing and sub-second interpolation
type ScheduleState struct {
	NextTick   int64 // Monotonic ms at which the next tick is due
	LastSecond int   // Second value seen on the previous tick
	BoundaryMs int64 // Monotonic ms of the most recent second boundary
}

// FrameStats tracks achieved frame rate
type FrameStats struct {
	Frames     int     // Analog frames since the last boundary
	AverageFPS float64 // Smoothed frames per second
	Boundaries int64   // Second boundaries seen
	Total      int64   // Analog frames since start
	Errors     int64   // Failed selects or renders
}

// Status is the snapshot passed to the OnSecond hook
type Status struct {
	Now        timesource.WallClock
	LastFrames int // Frames rendered during the second that just ended
	Stats      FrameStats
}

// Scheduler is the single-threaded render loop. It is not safe for
// concurrent use; everything it owns is mutated on the loop goroutine.
type Scheduler struct {
	config  Config
	source  TimeSource
	bus     Bus
	analog  Target
	digital Target

	state  ScheduleState
	stats  FrameStats
	primed bool

	onSecond func(Status)
}

// New creates a scheduler rendering analog and digital through bus
func New(source TimeSource, bus Bus, analog, digital Target, config Config) *Scheduler {
	def := DefaultConfig()
	if config.Quantum <= 0 {
		config.Quantum = def.Quantum
	}
	if config.InitialFPS <= 0 {
		config.InitialFPS = def.InitialFPS
	}
	if config.Smoothing <= 0 || config.Smoothing > 1 {
		config.Smoothing = def.Smoothing
	}
	if config.Monotonic == nil {
		config.Monotonic = uptime{start: time.Now()}
	}

	return &Scheduler{
		config:  config,
		source:  source,
		bus:     bus,
		analog:  analog,
		digital: digital,
		stats:   FrameStats{AverageFPS: config.InitialFPS},
	}
}

// OnSecond registers fn to run on the loop goroutine after every second
// boundary. A slow fn freezes both faces while it runs.
func (s *Scheduler) OnSecond(fn func(Status)) {
	s.onSecond = fn
}

// Stats returns the current frame statistics
func (s *Scheduler) Stats() FrameStats {
	return s.stats
}

// State returns the current pacing state
func (s *Scheduler) State() ScheduleState {
	return s.state
}

// Step runs one pass of the control loop. It returns false without doing
// anything if the next tick is not yet due. The analog face gets the
// clamped interpolation described on interpolate.
func (s *Scheduler) Step() bool {
	m := s.config.Monotonic.Millis()
	if m < s.state.NextTick {
		return false
	}
	s.state.NextTick = m + s.config.Quantum.Milliseconds()

	now := s.source.Now()
	base := now.WholeSeconds()

	switch {
	case !s.primed:
		// The first tick has no previous second to compare against.
		s.primed = true
		s.state.LastSecond = now.Second
		s.state.BoundaryMs = m
		s.render(s.digital, base)

	case now.Second != s.state.LastSecond:
		s.state.LastSecond = now.Second
		s.state.BoundaryMs = m

		frames := s.stats.Frames
		s.stats.AverageFPS += s.config.Smoothing * (float64(frames) - s.stats.AverageFPS)
		s.stats.Frames = 0
		s.stats.Boundaries++

		s.render(s.digital, base)

		if s.onSecond != nil {
			s.onSecond(Status{Now: now, LastFrames: frames, Stats: s.stats})
		}
	}

	s.render(s.analog, s.interpolate(base))
	s.stats.Frames++
	s.stats.Total++
	return true
}

// interpolate adds the time elapsed since the last boundary to base. Unlike
// a plain base+elapsed/1000, the fraction is clamped to [0, 0.999]: after a
// stall longer than a second the analog hands hold just short of the next
// second instead of running past it before the boundary is seen.
func (s *Scheduler) interpolate(base float64) float64 {
	frac := float64(s.config.Monotonic.Millis()-s.state.BoundaryMs) / 1000
	frac = max(0, min(frac, 0.999))
	return timesource.WrapDay(base + frac)
}

func (s *Scheduler) render(target Target, t float64) {
	if err := s.bus.Select(target.ID); err != nil {
		s.renderFailed(target, fmt.Errorf("failed to select target: %w", err))
		return
	}

	err := target.Renderer.Render(t, target.Background)
	if derr := s.bus.Deselect(target.ID); derr != nil && err == nil {
		err = fmt.Errorf("failed to deselect target: %w", derr)
	}
	if err != nil {
		s.renderFailed(target, err)
	}
}

func (s *Scheduler) renderFailed(target Target, err error) {
	s.stats.Errors++
	// Log the first few, then sample, so a stuck panel does not flood the log.
	if s.stats.Errors <= 5 || s.stats.Errors%1000 == 0 {
		log.Printf("Render error on target %d (#%d): %v", target.ID, s.stats.Errors, err)
	}
}

// Run drives Step until ctx is cancelled
func (s *Scheduler) Run(ctx context.Context) error {
	log.Printf("Render loop started (quantum %v, %s pacing)", s.config.Quantum, s.config.Mode)

	var timer *time.Timer
	if s.config.Mode == PaceTimer {
		timer = time.NewTimer(time.Hour)
		timer.Stop()
		defer timer.Stop()
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("Render loop stopped after %d frames", s.stats.Total)
			return ctx.Err()
		default:
		}

		if s.Step() {
			continue
		}

		switch s.config.Mode {
		case PaceTimer:
			wait := time.Duration(s.state.NextTick-s.config.Monotonic.Millis()) * time.Millisecond
			if wait <= 0 {
				continue
			}
			timer.Reset(wait)
			select {
			case <-ctx.Done():
			case <-timer.C:
			}
		default:
			runtime.Gosched()
		}
	}
}

// uptime counts milliseconds since start using Go's monotonic clock reading
type uptime struct {
	start time.Time
}

func (u uptime) Millis() int64 {
	return time.Since(u.start).Milliseconds()
}
