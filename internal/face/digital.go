// ABOUTME: Digital clock face: large hours beside stacked minutes and seconds
// ABOUTME: Skips the hours redraw unless the hour changed since the last frame
package face

import (
	"fmt"
	"image/color"
	"math"

	"github.com/harperreed/dualclock/internal/display"
)

// Decompose splits seconds since midnight into whole hours, minutes and
// seconds. t must be in [0, 86400).
func Decompose(t float64) (h, m, s int) {
	whole := int(math.Floor(t))
	return whole / 3600, whole / 60 % 60, whole % 60
}

// DigitalFace renders into two sub-surfaces: hours on the left half of the
// screen, minutes over seconds on the right.
type DigitalFace struct {
	hours   display.Canvas
	minutes display.Canvas
	screenW int
	screenH int

	// lastHour is the hour currently on screen, -1 before the first render.
	lastHour int
}

// NewDigitalFace creates a digital face for a screenW×screenH panel.
func NewDigitalFace(hours, minutes display.Canvas, screenW, screenH int) *DigitalFace {
	return &DigitalFace{
		hours:    hours,
		minutes:  minutes,
		screenW:  screenW,
		screenH:  screenH,
		lastHour: -1,
	}
}

// Invalidate forces the next Render to redraw the hours group, e.g. after
// the panel was cleared.
func (f *DigitalFace) Invalidate() {
	f.lastHour = -1
}

// Render draws time t (seconds since midnight) on background bg.
func (f *DigitalFace) Render(t float64, bg color.RGBA) error {
	h, m, s := Decompose(t)

	if h != f.lastHour {
		if err := f.renderHours(h, bg); err != nil {
			return err
		}
		f.lastHour = h
	}

	_, ht := f.minutes.Size()
	f.minutes.Fill(bg)
	f.minutes.DrawText(fmt.Sprintf("%02d", m), 0, float64(ht)*0.3,
		display.TextStyle{Fg: display.Orange, Bg: bg, Anchor: display.AnchorMiddleLeft})
	f.minutes.DrawText(fmt.Sprintf("%02d", s), 0, float64(ht)*0.7,
		display.TextStyle{Fg: display.SkyBlue, Bg: bg, Anchor: display.AnchorMiddleLeft})

	x := int(float64(f.screenW) / 1.8)
	if err := f.minutes.Present(x, f.screenH/2-ht/2, nil); err != nil {
		return fmt.Errorf("failed to present minutes: %w", err)
	}
	return nil
}

func (f *DigitalFace) renderHours(h int, bg color.RGBA) error {
	w, ht := f.hours.Size()
	f.hours.Fill(bg)
	f.hours.DrawText(fmt.Sprintf("%02d", h), float64(w-2), float64(ht)/2,
		display.TextStyle{Fg: display.LightGrey, Bg: bg, Anchor: display.AnchorMiddleRight})

	if err := f.hours.Present(2, f.screenH/2-ht/2, nil); err != nil {
		return fmt.Errorf("failed to present hours: %w", err)
	}
	return nil
}
