// ABOUTME: Analog clock face with continuously moving hands
// ABOUTME: Fully redraws dial, digits and hands on every call
package face

import (
	"fmt"
	"image/color"
	"math"
	"strconv"

	"github.com/harperreed/dualclock/internal/display"
	"github.com/harperreed/dualclock/pkg/geometry"
)

// Hand periods in seconds.
const (
	hourPeriod   = 12 * 3600
	minutePeriod = 3600
	secondPeriod = 60
)

// HourAngle returns the hour hand angle in degrees, [0, 360).
func HourAngle(t float64) float64 {
	return handAngle(t, hourPeriod)
}

// MinuteAngle returns the minute hand angle in degrees, [0, 360).
func MinuteAngle(t float64) float64 {
	return handAngle(t, minutePeriod)
}

// SecondAngle returns the second hand angle in degrees, [0, 360).
func SecondAngle(t float64) float64 {
	return handAngle(t, secondPeriod)
}

func handAngle(t, period float64) float64 {
	a := math.Mod(t*360/period, 360)
	if a < 0 {
		a += 360
	}
	return a
}

// AnalogStyle holds the colours and stroke widths of the analog face.
type AnalogStyle struct {
	Dial           color.RGBA // digits, hand outlines and pivot
	MinuteHand     color.RGBA
	HourHand       color.RGBA
	SecondHand     color.RGBA
	OutlineW       float64
	HandW          float64
	PivotR         float64
	SecondW0       float64 // second hand width at the pivot
	SecondW1       float64 // second hand width at the tip
	DigitInset     float64 // distance from the rim to the digit centres
	DigitDrop      float64 // downward nudge applied to each digit
	TransparentKey color.RGBA
}

// DefaultAnalogStyle returns the stock look.
func DefaultAnalogStyle() AnalogStyle {
	return AnalogStyle{
		Dial:           display.LightGrey,
		MinuteHand:     display.Green,
		HourHand:       display.GreenYellow,
		SecondHand:     display.Yellow,
		OutlineW:       8,
		HandW:          4,
		PivotR:         8,
		SecondW0:       3.5,
		SecondW1:       1.5,
		DigitInset:     15,
		DigitDrop:      2,
		TransparentKey: display.TransparentKey,
	}
}

// AnalogFace draws a full-screen dial. It holds no time state.
type AnalogFace struct {
	canvas display.Canvas
	style  AnalogStyle
}

// NewAnalogFace creates an analog face drawing into canvas, which should
// cover the whole panel.
func NewAnalogFace(canvas display.Canvas, style AnalogStyle) *AnalogFace {
	return &AnalogFace{canvas: canvas, style: style}
}

// Render draws time t (seconds since midnight, fractional) on background bg.
func (f *AnalogFace) Render(t float64, bg color.RGBA) error {
	c, st := f.canvas, f.style

	w, h := c.Size()
	r := float64(min(w, h)) / 2
	cx, cy := r, r

	c.Fill(bg)

	digit := display.TextStyle{Fg: st.Dial, Bg: bg, Anchor: display.AnchorMiddleCenter}
	for i, p := range geometry.DialPositions(cx, cy, r-st.DigitInset) {
		c.DrawText(strconv.Itoa(i+1), p.X, p.Y+st.DigitDrop, digit)
	}

	mx, my := geometry.PointOnCircle(cx, cy, r/1.5, MinuteAngle(t))
	c.DrawThickLine(cx, cy, mx, my, st.OutlineW, st.Dial)
	c.DrawThickLine(cx, cy, mx, my, st.HandW, st.MinuteHand)

	hx, hy := geometry.PointOnCircle(cx, cy, r/2.2, HourAngle(t))
	c.DrawThickLine(cx, cy, hx, hy, st.OutlineW, st.Dial)
	c.DrawThickLine(cx, cy, hx, hy, st.HandW, st.HourHand)

	c.FillCircle(cx, cy, st.PivotR, st.Dial)

	sx, sy := geometry.PointOnCircle(cx, cy, r/1.2, SecondAngle(t))
	c.DrawWedge(cx, cy, sx, sy, st.SecondW0, st.SecondW1, st.SecondHand)

	key := st.TransparentKey
	if err := c.Present(0, 0, &key); err != nil {
		return fmt.Errorf("failed to present analog face: %w", err)
	}
	return nil
}
