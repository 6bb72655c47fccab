// ABOUTME: Chip-select bus for panels sharing one SPI controller
// ABOUTME: Drives active-low CS lines through periph.io GPIO
package display

import (
	"errors"
	"fmt"
	"image"
	"image/color"

	"github.com/harperreed/dualclock/internal/clockerr"
	pdisplay "periph.io/x/conn/v3/display"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// GPIOMux is a Bus where every target is the same panel driver, addressed
// by pulling its chip-select line low.
type GPIOMux struct {
	sel   selection
	pins  []gpio.PinIO
	panel pdisplay.Drawer
}

// ResolvePins initializes the host drivers and looks up pins by name
// (e.g. "GPIO22").
func ResolvePins(names []string) ([]gpio.PinIO, error) {
	if _, err := host.Init(); err != nil {
		return nil, clockerr.New("display.ResolvePins", clockerr.KindDisplayInit, err)
	}

	pins := make([]gpio.PinIO, 0, len(names))
	for _, name := range names {
		p := gpioreg.ByName(name)
		if p == nil {
			return nil, clockerr.New("display.ResolvePins", clockerr.KindDisplayInit,
				fmt.Errorf("no such pin %q", name))
		}
		pins = append(pins, p)
	}
	return pins, nil
}

// NewGPIOMux creates a chip-select bus and deselects every target.
func NewGPIOMux(panel pdisplay.Drawer, pins ...gpio.PinIO) (*GPIOMux, error) {
	if panel == nil {
		return nil, clockerr.New("display.NewGPIOMux", clockerr.KindDisplayInit,
			errors.New("no panel driver"))
	}

	m := &GPIOMux{
		sel:   selection{targets: len(pins), selected: none},
		pins:  pins,
		panel: panel,
	}
	if err := m.setAll(gpio.High); err != nil {
		return nil, clockerr.New("display.NewGPIOMux", clockerr.KindDisplayInit, err)
	}
	return m, nil
}

func (m *GPIOMux) setAll(l gpio.Level) error {
	for _, p := range m.pins {
		if err := p.Out(l); err != nil {
			return fmt.Errorf("failed to drive %s: %w", p, err)
		}
	}
	return nil
}

// Select implements Bus.
func (m *GPIOMux) Select(id int) error {
	if err := m.sel.acquire(id); err != nil {
		return err
	}
	if err := m.pins[id].Out(gpio.Low); err != nil {
		m.sel.selected = none
		return fmt.Errorf("failed to select target %d: %w", id, err)
	}
	return nil
}

// Deselect implements Bus.
func (m *GPIOMux) Deselect(id int) error {
	if err := m.sel.release(id); err != nil {
		return err
	}
	return m.pins[id].Out(gpio.High)
}

// Broadcast pulls every CS line low while fn runs.
func (m *GPIOMux) Broadcast(fn func() error) error {
	if err := m.sel.beginBroadcast(); err != nil {
		return err
	}
	defer func() { m.sel.broadcast = false }()

	if err := m.setAll(gpio.Low); err != nil {
		_ = m.setAll(gpio.High)
		return err
	}
	fnErr := fn()
	if err := m.setAll(gpio.High); err != nil {
		return errors.Join(fnErr, err)
	}
	return fnErr
}

func (m *GPIOMux) String() string {
	return fmt.Sprintf("gpiomux(%s, %d targets)", m.panel, len(m.pins))
}

// Halt deselects everything and halts the panel driver.
func (m *GPIOMux) Halt() error {
	return errors.Join(m.setAll(gpio.High), m.panel.Halt())
}

// ColorModel implements display.Drawer.
func (m *GPIOMux) ColorModel() color.Model {
	return m.panel.ColorModel()
}

// Bounds implements display.Drawer.
func (m *GPIOMux) Bounds() image.Rectangle {
	return m.panel.Bounds()
}

// Draw writes through the shared controller to whichever panels are selected.
func (m *GPIOMux) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	if m.sel.selected == none && !m.sel.broadcast {
		return ErrNoTargetSelected
	}
	return m.panel.Draw(r, src, sp)
}
