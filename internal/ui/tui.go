// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program with a non-blocking update channel
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// TUI manages the status screen
type TUI struct {
	program  *tea.Program
	updates  chan StatusMsg
	quitChan chan struct{}
}

// NewTUI creates a status screen
func NewTUI() *TUI {
	t := &TUI{
		updates:  make(chan StatusMsg, 10),
		quitChan: make(chan struct{}, 1),
	}
	t.program = tea.NewProgram(NewModel(t.quitChan), tea.WithAltScreen())
	return t
}

// Run shows the TUI and blocks until it exits
func (t *TUI) Run() error {
	go func() {
		for status := range t.updates {
			t.program.Send(status)
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update without blocking the caller
func (t *TUI) Update(status StatusMsg) {
	select {
	case t.updates <- status:
	default:
		// Don't block the render loop if the TUI is behind
	}
}

// Stop stops the TUI
func (t *TUI) Stop() {
	t.program.Quit()
	close(t.updates)
}

// QuitChan signals when the user asked to quit
func (t *TUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
