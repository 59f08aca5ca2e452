// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package tui renders pipeline snapshots in a tabbed terminal UI. The UI is
// a pure consumer: it asks the backend for one tick per refresh interval and
// reads nothing outside the returned Snapshot.
package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/blackjk83/netmon-tui/internal/pipeline"
)

// View represents the currently active screen.
type View int

const (
	ViewDashboard View = iota
	ViewConnections
	ViewPackets
	ViewFlows
	ViewFirewall
	ViewEvents
	viewCount
)

// Backend produces one snapshot per refresh. The pipeline driver satisfies
// it; ticks run synchronously between renders, keeping the whole system
// single-threaded.
type Backend interface {
	Tick() pipeline.Snapshot
}

// TickMsg requests the next pipeline tick.
type TickMsg time.Time

// Model is the main application state.
type Model struct {
	Backend  Backend
	Refresh  time.Duration
	Firewall bool // firewall tab enabled

	ActiveView View
	Width      int
	Height     int
	Snapshot   pipeline.Snapshot
	HaveData   bool

	connTable table.Model
	flowTable table.Model
}

// NewModel creates the initial model.
func NewModel(backend Backend, refresh time.Duration, firewallEnabled bool) Model {
	if refresh <= 0 {
		refresh = time.Second
	}
	return Model{
		Backend:   backend,
		Refresh:   refresh,
		Firewall:  firewallEnabled,
		connTable: newConnTable(),
		flowTable: newFlowTable(),
	}
}

// Init schedules the first tick.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.Refresh, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TickMsg:
		m.Snapshot = m.Backend.Tick()
		m.HaveData = true
		m.refreshTables()
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab":
			m.ActiveView = (m.ActiveView + 1) % viewCount
			return m, nil
		case "1":
			m.ActiveView = ViewDashboard
		case "2":
			m.ActiveView = ViewConnections
		case "3":
			m.ActiveView = ViewPackets
		case "4":
			m.ActiveView = ViewFlows
		case "5":
			if m.Firewall {
				m.ActiveView = ViewFirewall
			}
		case "6":
			m.ActiveView = ViewEvents
		}

	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.connTable.SetHeight(maxInt(msg.Height-10, 5))
		m.flowTable.SetHeight(maxInt(msg.Height-10, 5))
	}

	var cmd tea.Cmd
	switch m.ActiveView {
	case ViewConnections:
		m.connTable, cmd = m.connTable.Update(msg)
	case ViewFlows:
		m.flowTable, cmd = m.flowTable.Update(msg)
	}
	return m, cmd
}

// View renders the application.
func (m Model) View() string {
	if !m.HaveData {
		return StyleApp.Render("Collecting first snapshot...")
	}

	doc := m.viewTopBar() + "\n"
	switch m.ActiveView {
	case ViewDashboard:
		doc += m.viewDashboard()
	case ViewConnections:
		doc += m.viewConnections()
	case ViewPackets:
		doc += m.viewPackets()
	case ViewFlows:
		doc += m.viewFlows()
	case ViewFirewall:
		doc += m.viewFirewall()
	case ViewEvents:
		doc += m.viewEvents()
	}

	if len(m.Snapshot.Diagnostics) > 0 {
		doc += "\n" + m.viewDiagnostics()
	}
	return StyleApp.Render(doc)
}

func (m Model) viewTopBar() string {
	menus := []struct {
		View  View
		Label string
		Key   string
	}{
		{ViewDashboard, "Dashboard", "1"},
		{ViewConnections, "Connections", "2"},
		{ViewPackets, "Packets", "3"},
		{ViewFlows, "Flows", "4"},
		{ViewFirewall, "Firewall", "5"},
		{ViewEvents, "Events", "6"},
	}

	var items []string
	for _, menu := range menus {
		if menu.View == ViewFirewall && !m.Firewall {
			continue
		}
		key := StyleMenuKey.Render("[" + menu.Key + "]")
		if m.ActiveView == menu.View {
			items = append(items, StyleMenuItemActive.Render(key+" "+menu.Label))
		} else {
			items = append(items, StyleMenuItem.Render(key+" "+menu.Label))
		}
	}

	brand := StyleTitle.Render("NETMON ")
	bar := lipgloss.JoinHorizontal(lipgloss.Top, append([]string{brand}, items...)...)
	return StyleTopBar.Render(bar)
}

func (m Model) viewDiagnostics() string {
	var lines string
	for component, msg := range m.Snapshot.Diagnostics {
		lines += StyleWarn.Render("degraded "+component+": ") + StyleLabel.Render(msg) + "\n"
	}
	return lines
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
