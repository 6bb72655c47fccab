// ABOUTME: Tests for the shared display bus
// ABOUTME: Covers single selection, routing and broadcast
package display

import (
	"errors"
	"image"
	"testing"

	pdisplay "periph.io/x/conn/v3/display"
)

func newTestMux() (*Mux, *Framebuffer, *Framebuffer) {
	a := NewFramebuffer(0, 8, 8)
	b := NewFramebuffer(1, 8, 8)
	return NewMux(a, b), a, b
}

func TestMuxImplementsDrawer(t *testing.T) {
	var _ pdisplay.Drawer = &Mux{}
	var _ Bus = &Mux{}
	var _ Bus = &GPIOMux{}
}

func TestMuxSelectExclusive(t *testing.T) {
	m, _, _ := newTestMux()

	if err := m.Select(0); err != nil {
		t.Fatalf("select 0 failed: %v", err)
	}
	if err := m.Select(1); !errors.Is(err, ErrBusContention) {
		t.Errorf("expected ErrBusContention, got %v", err)
	}
	if err := m.Deselect(0); err != nil {
		t.Fatalf("deselect 0 failed: %v", err)
	}
	if err := m.Select(1); err != nil {
		t.Errorf("select 1 after deselect failed: %v", err)
	}
	if id, ok := m.Selected(); !ok || id != 1 {
		t.Errorf("expected 1 selected, got %d (%v)", id, ok)
	}
}

func TestMuxUnknownTarget(t *testing.T) {
	m, _, _ := newTestMux()

	for _, id := range []int{-1, 2} {
		if err := m.Select(id); !errors.Is(err, ErrUnknownTarget) {
			t.Errorf("select %d: expected ErrUnknownTarget, got %v", id, err)
		}
	}
}

func TestMuxDeselectNotSelected(t *testing.T) {
	m, _, _ := newTestMux()
	if err := m.Deselect(0); err == nil {
		t.Error("expected error deselecting an unselected target")
	}
}

func TestMuxDrawRoutesToSelected(t *testing.T) {
	m, a, b := newTestMux()
	red := image.NewUniform(Red)

	if err := m.Draw(image.Rect(0, 0, 8, 8), red, image.Point{}); !errors.Is(err, ErrNoTargetSelected) {
		t.Fatalf("expected ErrNoTargetSelected, got %v", err)
	}

	m.Select(1)
	if err := m.Draw(image.Rect(0, 0, 8, 8), red, image.Point{}); err != nil {
		t.Fatalf("draw failed: %v", err)
	}
	m.Deselect(1)

	if got := a.Image().RGBAAt(4, 4); got != Black {
		t.Errorf("panel 0: expected untouched, got %v", got)
	}
	if got := b.Image().RGBAAt(4, 4); got != Red {
		t.Errorf("panel 1: expected red, got %v", got)
	}
}

func TestMuxBroadcast(t *testing.T) {
	m, a, b := newTestMux()

	err := m.Broadcast(func() error {
		return m.Draw(image.Rect(0, 0, 8, 8), image.NewUniform(Olive), image.Point{})
	})
	if err != nil {
		t.Fatalf("broadcast failed: %v", err)
	}

	for i, fb := range []*Framebuffer{a, b} {
		if got := fb.Image().RGBAAt(1, 1); got != Olive {
			t.Errorf("panel %d: expected olive, got %v", i, got)
		}
	}

	// Broadcast releases the bus.
	if err := m.Select(0); err != nil {
		t.Errorf("select after broadcast failed: %v", err)
	}
}

func TestMuxBroadcastWhileSelected(t *testing.T) {
	m, _, _ := newTestMux()
	m.Select(0)

	called := false
	err := m.Broadcast(func() error { called = true; return nil })
	if !errors.Is(err, ErrBusContention) {
		t.Errorf("expected ErrBusContention, got %v", err)
	}
	if called {
		t.Error("broadcast body ran while a target was selected")
	}
}

func TestMuxBroadcastBlocksSelect(t *testing.T) {
	m, _, _ := newTestMux()

	var inner error
	m.Broadcast(func() error {
		inner = m.Select(0)
		return nil
	})
	if !errors.Is(inner, ErrBusContention) {
		t.Errorf("expected ErrBusContention inside broadcast, got %v", inner)
	}
}

func TestFramebufferObserver(t *testing.T) {
	fb := NewFramebuffer(3, 4, 4)

	var gotID, calls int
	fb.SetObserver(func(id int, img *image.RGBA) {
		gotID = id
		calls++
	})

	fb.Draw(fb.Bounds(), image.NewUniform(Red), image.Point{})
	if calls != 1 || gotID != 3 {
		t.Errorf("expected one call for panel 3, got %d calls for %d", calls, gotID)
	}
	if fb.String() != "framebuffer3" {
		t.Errorf("unexpected name %q", fb.String())
	}
}
