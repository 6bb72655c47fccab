// ABOUTME: Software sprite: an off-screen RGBA buffer with anti-aliased primitives
// ABOUTME: Rasterizes with x/image/vector and pushes to a periph display.Drawer
package display

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
	pdisplay "periph.io/x/conn/v3/display"
)

// ErrNoPanel is returned by Present when the sprite has no destination.
var ErrNoPanel = errors.New("display: sprite has no panel")

// Sprite is a Canvas backed by an in-memory image.
type Sprite struct {
	img    *image.RGBA
	face   font.Face
	dst    pdisplay.Drawer
	raster *vector.Rasterizer
}

// NewSprite creates a w×h sprite that draws text with face and presents to
// dst. dst is usually the shared bus, not a specific panel.
func NewSprite(w, h int, face font.Face, dst pdisplay.Drawer) *Sprite {
	return &Sprite{
		img:    image.NewRGBA(image.Rect(0, 0, w, h)),
		face:   face,
		dst:    dst,
		raster: vector.NewRasterizer(w, h),
	}
}

// Image exposes the backing buffer.
func (s *Sprite) Image() *image.RGBA {
	return s.img
}

// Size returns the sprite size in pixels.
func (s *Sprite) Size() (w, h int) {
	b := s.img.Bounds()
	return b.Dx(), b.Dy()
}

// Fill paints every pixel with c.
func (s *Sprite) Fill(c color.RGBA) {
	draw.Draw(s.img, s.img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
}

// DrawText draws text anchored at (x, y) in the sprite's font.
func (s *Sprite) DrawText(text string, x, y float64, style TextStyle) {
	if s.face == nil || text == "" {
		return
	}

	width := float64(font.MeasureString(s.face, text)) / 64
	m := s.face.Metrics()
	ascent := float64(m.Ascent) / 64
	descent := float64(m.Descent) / 64

	left := x
	switch style.Anchor {
	case AnchorMiddleCenter:
		left = x - width/2
	case AnchorMiddleRight:
		left = x - width
	}
	baseline := y + (ascent-descent)/2

	if style.Bg.A != 0 {
		box := image.Rect(
			int(math.Floor(left)), int(math.Floor(baseline-ascent)),
			int(math.Ceil(left+width)), int(math.Ceil(baseline+descent)),
		)
		draw.Draw(s.img, box, image.NewUniform(style.Bg), image.Point{}, draw.Src)
	}

	d := font.Drawer{
		Dst:  s.img,
		Src:  image.NewUniform(style.Fg),
		Face: s.face,
		Dot:  fixed.Point26_6{X: fixed.Int26_6(left * 64), Y: fixed.Int26_6(baseline * 64)},
	}
	d.DrawString(text)
}

// DrawThickLine draws a round-capped line.
func (s *Sprite) DrawThickLine(x0, y0, x1, y1, width float64, c color.RGBA) {
	s.DrawWedge(x0, y0, x1, y1, width, width, c)
}

// DrawWedge draws a round-capped line whose width tapers from w0 to w1.
func (s *Sprite) DrawWedge(x0, y0, x1, y1, w0, w1 float64, c color.RGBA) {
	r0, r1 := w0/2, w1/2
	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length < 1e-6 {
		s.FillCircle(x0, y0, math.Max(r0, r1), c)
		return
	}

	// Normal to the line direction; arcs sweep from +n round to -n.
	nx, ny := -dy/length, dx/length
	theta := math.Atan2(ny, nx)

	s.fill(c, func(z *vector.Rasterizer) {
		z.MoveTo(float32(x0+r0*nx), float32(y0+r0*ny))
		z.LineTo(float32(x1+r1*nx), float32(y1+r1*ny))
		arc(z, x1, y1, r1, theta, theta-math.Pi)
		z.LineTo(float32(x0-r0*nx), float32(y0-r0*ny))
		arc(z, x0, y0, r0, theta+math.Pi, theta)
		z.ClosePath()
	})
}

// FillCircle draws a filled disc.
func (s *Sprite) FillCircle(x, y, r float64, c color.RGBA) {
	if r <= 0 {
		return
	}
	s.fill(c, func(z *vector.Rasterizer) {
		z.MoveTo(float32(x+r), float32(y))
		arc(z, x, y, r, 0, -2*math.Pi)
		z.ClosePath()
	})
}

// Present pushes the sprite to its panel at (x, y).
func (s *Sprite) Present(x, y int, key *color.RGBA) error {
	if s.dst == nil {
		return ErrNoPanel
	}

	var src image.Image = s.img
	if key != nil {
		src = &keyedImage{img: s.img, key: *key}
	}

	w, h := s.Size()
	return s.dst.Draw(image.Rect(x, y, x+w, y+h), src, image.Point{})
}

func (s *Sprite) fill(c color.RGBA, path func(z *vector.Rasterizer)) {
	b := s.img.Bounds()
	s.raster.Reset(b.Dx(), b.Dy())
	s.raster.DrawOp = draw.Over
	path(s.raster)
	s.raster.Draw(s.img, b, image.NewUniform(c), image.Point{})
}

// arc appends a polyline arc around (cx, cy) from angle a0 to a1 (radians).
func arc(z *vector.Rasterizer, cx, cy, r, a0, a1 float64) {
	steps := int(math.Ceil(math.Abs(a1-a0) * math.Max(r, 2) / 2))
	if steps < 8 {
		steps = 8
	}
	if steps > 96 {
		steps = 96
	}
	for i := 0; i <= steps; i++ {
		a := a0 + (a1-a0)*float64(i)/float64(steps)
		z.LineTo(float32(cx+r*math.Cos(a)), float32(cy+r*math.Sin(a)))
	}
}

// keyedImage reports pixels matching key as fully transparent. It only
// implements image.Image so draw cannot take an RGBA fast path around At.
type keyedImage struct {
	img *image.RGBA
	key color.RGBA
}

func (k *keyedImage) ColorModel() color.Model { return color.RGBAModel }

func (k *keyedImage) Bounds() image.Rectangle { return k.img.Bounds() }

func (k *keyedImage) At(x, y int) color.Color {
	c := k.img.RGBAAt(x, y)
	if c == k.key {
		return color.RGBA{}
	}
	return c
}
