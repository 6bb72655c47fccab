// ABOUTME: Colour palette for the clock faces
// ABOUTME: RGB equivalents of the TFT panel colour constants
package display

import (
	"fmt"
	"image/color"
	"strings"
)

// Panel colours. Values match the 565 constants the faces were designed with.
var (
	Black       = color.RGBA{0, 0, 0, 255}
	Olive       = color.RGBA{128, 128, 0, 255}
	Purple      = color.RGBA{128, 0, 128, 255}
	LightGrey   = color.RGBA{211, 211, 211, 255}
	Brown       = color.RGBA{150, 75, 0, 255}
	Yellow      = color.RGBA{255, 255, 0, 255}
	Red         = color.RGBA{255, 0, 0, 255}
	Green       = color.RGBA{0, 255, 0, 255}
	GreenYellow = color.RGBA{180, 255, 0, 255}
	Orange      = color.RGBA{255, 180, 0, 255}
	SkyBlue     = color.RGBA{135, 206, 235, 255}

	// TransparentKey marks pixels a keyed Present leaves untouched.
	TransparentKey = color.RGBA{0, 36, 0, 255}
)

// ParseHex parses "#rrggbb" or "rrggbb".
func ParseHex(s string) (color.RGBA, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: want 6 hex digits", s)
	}

	var r, g, b uint8
	if _, err := fmt.Sscanf(s, "%02x%02x%02x", &r, &g, &b); err != nil {
		return color.RGBA{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// Hex formats c as "#rrggbb".
func Hex(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
