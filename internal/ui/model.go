// ABOUTME: Bubbletea model for the clock status screen
// ABOUTME: Shows time, frame rate, sync state and mirror viewers
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/harperreed/dualclock/internal/timesource"
)

// Model represents the TUI state
type Model struct {
	// Clock
	clock      string
	avgFPS     float64
	lastFrames int
	frames     int64
	errors     int64

	// Sync
	server      string
	synced      bool
	syncOffset  int64
	syncRTT     int64
	syncQuality timesource.Quality
	lastSync    time.Time

	// Mirror
	viewers    int
	mirrorAddr string

	startTime time.Time
	quitting  bool
	quitChan  chan struct{}

	width  int
	height int
}

// StatusMsg updates TUI state. Zero or nil groups are left unchanged.
type StatusMsg struct {
	// Per-second render snapshot, applied when Clock is set
	Clock      string
	AvgFPS     float64
	LastFrames int
	Frames     int64
	Errors     int64

	Server string

	// Sync state, applied when Synced is set
	Synced      *bool
	SyncOffset  int64
	SyncRTT     int64
	SyncQuality timesource.Quality
	LastSync    time.Time

	Viewers    *int
	MirrorAddr string
}

type tickMsg time.Time

// NewModel creates a new TUI model. quit may be nil.
func NewModel(quit chan struct{}) Model {
	return Model{
		clock:       "--:--:--",
		syncQuality: timesource.QualityLost,
		startTime:   time.Now(),
		quitChan:    quit,
	}
}

// Init starts the uptime ticker
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.quitChan != nil {
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	}
	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Clock != "" {
		m.clock = msg.Clock
		m.avgFPS = msg.AvgFPS
		m.lastFrames = msg.LastFrames
		m.frames = msg.Frames
		m.errors = msg.Errors
	}
	if msg.Server != "" {
		m.server = msg.Server
	}
	if msg.Synced != nil {
		m.synced = *msg.Synced
		m.syncOffset = msg.SyncOffset
		m.syncRTT = msg.SyncRTT
		m.syncQuality = msg.SyncQuality
		if !msg.LastSync.IsZero() {
			m.lastSync = msg.LastSync
		}
	}
	if msg.Viewers != nil {
		m.viewers = *msg.Viewers
	}
	if msg.MirrorAddr != "" {
		m.mirrorAddr = msg.MirrorAddr
	}
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping clock...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		MarginBottom(1)

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("250"))

	clockStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("214"))

	var b strings.Builder

	b.WriteString(titleStyle.Render("Dual Display Clock"))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Time: "))
	b.WriteString(clockStyle.Render(m.clock))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("FPS: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%.1f avg, %d last second", m.avgFPS, m.lastFrames)))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Frames: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("%d (%d errors)", m.frames, m.errors)))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render("Server: "))
	server := m.server
	if server == "" {
		server = "(none)"
	}
	b.WriteString(valueStyle.Render(server))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Sync: "))
	b.WriteString(syncStyle(m.syncQuality).Render(m.syncText()))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Uptime: "))
	b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString("\n")

	if m.mirrorAddr != "" {
		b.WriteString("\n")
		b.WriteString(headerStyle.Render("Mirror: "))
		b.WriteString(valueStyle.Render(fmt.Sprintf("%s (%d viewers)", m.mirrorAddr, m.viewers)))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

func (m Model) syncText() string {
	if !m.synced {
		return "not synced, running on local clock"
	}

	text := fmt.Sprintf("%s (offset: %+.1fms, rtt: %.1fms)",
		m.syncQuality, float64(m.syncOffset)/1000.0, float64(m.syncRTT)/1000.0)
	if !m.lastSync.IsZero() {
		text += ", last " + m.lastSync.Format("15:04:05")
	}
	return text
}

func syncStyle(q timesource.Quality) lipgloss.Style {
	color := "196"
	switch q {
	case timesource.QualityGood:
		color = "42"
	case timesource.QualityDegraded:
		color = "220"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color))
}
