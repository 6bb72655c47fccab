// ABOUTME: In-memory panel implementing periph's display.Drawer
// ABOUTME: Stands in for a physical panel and notifies an observer per draw
package display

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
)

// Framebuffer is a virtual panel.
type Framebuffer struct {
	id       int
	img      *image.RGBA
	observer func(id int, img *image.RGBA)
}

// NewFramebuffer creates a w×h black panel.
func NewFramebuffer(id, w, h int) *Framebuffer {
	fb := &Framebuffer{
		id:  id,
		img: image.NewRGBA(image.Rect(0, 0, w, h)),
	}
	draw.Draw(fb.img, fb.img.Bounds(), image.NewUniform(Black), image.Point{}, draw.Src)
	return fb
}

// SetObserver registers fn to run after every Draw. fn must not retain img.
func (f *Framebuffer) SetObserver(fn func(id int, img *image.RGBA)) {
	f.observer = fn
}

// Image returns the panel contents.
func (f *Framebuffer) Image() *image.RGBA {
	return f.img
}

func (f *Framebuffer) String() string {
	return fmt.Sprintf("framebuffer%d", f.id)
}

// Halt is a no-op for a virtual panel.
func (f *Framebuffer) Halt() error {
	return nil
}

// ColorModel implements display.Drawer.
func (f *Framebuffer) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds implements display.Drawer.
func (f *Framebuffer) Bounds() image.Rectangle {
	return f.img.Bounds()
}

// Draw composites src over the panel; transparent source pixels keep what
// is already on screen.
func (f *Framebuffer) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	draw.Draw(f.img, r, src, sp, draw.Over)
	if f.observer != nil {
		f.observer(f.id, f.img)
	}
	return nil
}
