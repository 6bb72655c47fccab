// ABOUTME: Drawing surface contract consumed by the clock faces
// ABOUTME: Primitive set: fill, glyph groups, wide lines, wedges, discs, present
package display

import "image/color"

// Anchor selects which point of a glyph group sits at the given position.
type Anchor int

const (
	// AnchorMiddleCenter centres the text on the point.
	AnchorMiddleCenter Anchor = iota
	// AnchorMiddleLeft puts the left edge, vertically centred, on the point.
	AnchorMiddleLeft
	// AnchorMiddleRight puts the right edge, vertically centred, on the point.
	AnchorMiddleRight
)

// TextStyle describes how a glyph group is drawn. A zero Bg leaves the
// area behind the glyphs as it is.
type TextStyle struct {
	Fg     color.RGBA
	Bg     color.RGBA
	Anchor Anchor
}

// Canvas is an off-screen drawing surface that can be pushed to a panel.
type Canvas interface {
	// Size returns the surface size in pixels.
	Size() (w, h int)

	// Fill paints the whole surface.
	Fill(c color.RGBA)

	// DrawText draws a glyph group anchored at (x, y).
	DrawText(text string, x, y float64, style TextStyle)

	// DrawThickLine draws a round-capped line of the given width.
	DrawThickLine(x0, y0, x1, y1, width float64, c color.RGBA)

	// DrawWedge draws a line tapering from width w0 at (x0, y0) to w1 at (x1, y1).
	DrawWedge(x0, y0, x1, y1, w0, w1 float64, c color.RGBA)

	// FillCircle draws an anti-aliased filled disc.
	FillCircle(x, y, r float64, c color.RGBA)

	// Present transfers the surface to the selected panel with its top-left
	// corner at (x, y). Pixels equal to *key are skipped when key is non-nil.
	Present(x, y int, key *color.RGBA) error
}
