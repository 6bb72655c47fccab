// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, message handling, and state transitions
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/harperreed/dualclock/internal/timesource"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil)

	if model.synced {
		t.Error("expected synced to be false initially")
	}
	if model.syncQuality != timesource.QualityLost {
		t.Errorf("expected QualityLost initially, got %v", model.syncQuality)
	}
	if model.clock != "--:--:--" {
		t.Errorf("expected placeholder clock, got %q", model.clock)
	}
}

func TestStatusMsgClock(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Clock:      "14:05:30",
		AvgFPS:     42.5,
		LastFrames: 44,
		Frames:     1000,
		Errors:     2,
	})

	if model.clock != "14:05:30" {
		t.Errorf("expected clock '14:05:30', got '%s'", model.clock)
	}
	if model.avgFPS != 42.5 || model.lastFrames != 44 {
		t.Errorf("unexpected fps %v/%d", model.avgFPS, model.lastFrames)
	}
	if model.frames != 1000 || model.errors != 2 {
		t.Errorf("unexpected counters %d/%d", model.frames, model.errors)
	}
}

func TestStatusMsgSync(t *testing.T) {
	model := NewModel(nil)

	synced := true
	last := time.Date(2026, 10, 15, 14, 0, 0, 0, time.UTC)
	model.applyStatus(StatusMsg{
		Synced:      &synced,
		SyncOffset:  -1500,
		SyncRTT:     20000,
		SyncQuality: timesource.QualityGood,
		LastSync:    last,
	})

	if !model.synced {
		t.Error("expected synced after status update")
	}
	if model.syncOffset != -1500 || model.syncRTT != 20000 {
		t.Errorf("unexpected offset/rtt %d/%d", model.syncOffset, model.syncRTT)
	}
	if model.syncQuality != timesource.QualityGood {
		t.Errorf("expected QualityGood, got %v", model.syncQuality)
	}
	if !model.lastSync.Equal(last) {
		t.Errorf("unexpected last sync %v", model.lastSync)
	}
}

func TestPartialUpdatesRetainValues(t *testing.T) {
	model := NewModel(nil)

	viewers := 3
	model.applyStatus(StatusMsg{Server: "ch.pool.ntp.org", Viewers: &viewers, MirrorAddr: ":8930"})
	model.applyStatus(StatusMsg{Clock: "00:00:01"})

	if model.server != "ch.pool.ntp.org" {
		t.Error("server lost after unrelated update")
	}
	if model.viewers != 3 || model.mirrorAddr != ":8930" {
		t.Error("mirror state lost after unrelated update")
	}

	// Zero viewers is a real value when sent explicitly.
	none := 0
	model.applyStatus(StatusMsg{Viewers: &none})
	if model.viewers != 0 {
		t.Errorf("expected 0 viewers, got %d", model.viewers)
	}
}

func TestQuitKey(t *testing.T) {
	quit := make(chan struct{}, 1)
	model := NewModel(quit)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Error("expected quit command")
	}
	if !updated.(Model).quitting {
		t.Error("expected quitting state")
	}

	select {
	case <-quit:
	default:
		t.Error("expected quit signal")
	}
}

func TestViewShowsStatus(t *testing.T) {
	model := NewModel(nil)
	synced := true
	model.applyStatus(StatusMsg{
		Clock:       "14:05:30",
		Server:      "ch.pool.ntp.org",
		Synced:      &synced,
		SyncQuality: timesource.QualityGood,
	})

	view := model.View()
	for _, want := range []string{"14:05:30", "ch.pool.ntp.org", "good"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestViewUnsynced(t *testing.T) {
	view := NewModel(nil).View()
	if !strings.Contains(view, "local clock") {
		t.Error("expected unsynced notice")
	}
}
