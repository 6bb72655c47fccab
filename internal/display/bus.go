// ABOUTME: Shared display bus with per-target selection
// ABOUTME: Enforces that at most one panel is addressed at a time
package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	pdisplay "periph.io/x/conn/v3/display"
)

var (
	// ErrBusContention is returned when selecting a target while another is selected.
	ErrBusContention = errors.New("display: another target is selected")
	// ErrNoTargetSelected is returned when drawing with nothing selected.
	ErrNoTargetSelected = errors.New("display: no target selected")
	// ErrUnknownTarget is returned for target ids outside the bus.
	ErrUnknownTarget = errors.New("display: unknown target")
)

const none = -1

// Bus addresses one of several panels sharing a single write path.
type Bus interface {
	pdisplay.Drawer

	// Select addresses target id. Fails if another target is selected.
	Select(id int) error
	// Deselect releases target id.
	Deselect(id int) error
	// Broadcast addresses every target while fn runs. Only used during
	// panel initialization, before the render loop starts.
	Broadcast(fn func() error) error
}

// selection tracks the one-at-a-time invariant shared by both bus kinds.
type selection struct {
	targets   int
	selected  int
	broadcast bool
}

func (s *selection) acquire(id int) error {
	if id < 0 || id >= s.targets {
		return fmt.Errorf("%w: %d", ErrUnknownTarget, id)
	}
	if s.broadcast || (s.selected != none && s.selected != id) {
		return fmt.Errorf("%w: want %d, have %d", ErrBusContention, id, s.selected)
	}
	s.selected = id
	return nil
}

func (s *selection) release(id int) error {
	if s.selected != id {
		return fmt.Errorf("display: target %d is not selected", id)
	}
	s.selected = none
	return nil
}

func (s *selection) beginBroadcast() error {
	if s.selected != none {
		return fmt.Errorf("%w: broadcast while %d selected", ErrBusContention, s.selected)
	}
	s.broadcast = true
	return nil
}

// Mux is a Bus over virtual or individually addressable panels.
type Mux struct {
	sel    selection
	panels []pdisplay.Drawer
}

// NewMux creates a bus over panels; target id is the index.
func NewMux(panels ...pdisplay.Drawer) *Mux {
	return &Mux{
		sel:    selection{targets: len(panels), selected: none},
		panels: panels,
	}
}

// Select implements Bus.
func (m *Mux) Select(id int) error {
	return m.sel.acquire(id)
}

// Deselect implements Bus.
func (m *Mux) Deselect(id int) error {
	return m.sel.release(id)
}

// Broadcast implements Bus.
func (m *Mux) Broadcast(fn func() error) error {
	if err := m.sel.beginBroadcast(); err != nil {
		return err
	}
	defer func() { m.sel.broadcast = false }()
	return fn()
}

// Selected returns the selected target, if any.
func (m *Mux) Selected() (int, bool) {
	return m.sel.selected, m.sel.selected != none
}

func (m *Mux) String() string {
	return fmt.Sprintf("mux(%d)", len(m.panels))
}

// Halt halts every panel.
func (m *Mux) Halt() error {
	var errs []error
	for _, p := range m.panels {
		if err := p.Halt(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ColorModel implements display.Drawer.
func (m *Mux) ColorModel() color.Model {
	return color.RGBAModel
}

// Bounds returns the selected panel's bounds, or the first panel's.
func (m *Mux) Bounds() image.Rectangle {
	if len(m.panels) == 0 {
		return image.Rectangle{}
	}
	if m.sel.selected != none {
		return m.panels[m.sel.selected].Bounds()
	}
	return m.panels[0].Bounds()
}

// Draw routes to the selected panel, or to all of them during a broadcast.
func (m *Mux) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if m.sel.broadcast {
		var errs []error
		for _, p := range m.panels {
			if err := p.Draw(r, src, sp); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	if m.sel.selected == none {
		return ErrNoTargetSelected
	}
	return m.panels[m.sel.selected].Draw(r, src, sp)
}
