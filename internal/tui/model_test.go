// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"net/netip"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackjk83/netmon-tui/internal/connections"
	"github.com/blackjk83/netmon-tui/internal/firewall"
	"github.com/blackjk83/netmon-tui/internal/flows"
	"github.com/blackjk83/netmon-tui/internal/pipeline"
	"github.com/blackjk83/netmon-tui/internal/protocols"
	"github.com/blackjk83/netmon-tui/internal/stats"
)

type mockBackend struct {
	snapshot pipeline.Snapshot
	ticks    int
}

func (m *mockBackend) Tick() pipeline.Snapshot {
	m.ticks++
	return m.snapshot
}

func sampleSnapshot() pipeline.Snapshot {
	return pipeline.Snapshot{
		Timestamp:       time.Now(),
		PacketsCaptured: 100,
		BytesCaptured:   10_000,
		Connections: map[string]connections.Info{
			"c1": {
				Local:     netip.MustParseAddrPort("192.168.1.2:22"),
				Remote:    netip.MustParseAddrPort("203.0.113.5:50000"),
				Protocol:  protocols.SSH,
				State:     connections.StateEstablished,
				BytesSent: 2048,
			},
		},
		Flows: map[string]flows.Flow{
			"f1": {
				ID:             "f1",
				Src:            netip.MustParseAddrPort("192.168.1.2:22"),
				Dst:            netip.MustParseAddrPort("203.0.113.5:50000"),
				Protocol:       protocols.SSH,
				Direction:      flows.DirectionOutbound,
				BytesPerSecond: 1000,
				PacketCount:    10,
			},
		},
		Network: stats.NetworkStatistics{
			TotalPackets: 100,
			TotalBytes:   10_000,
			TopProtocols: []protocols.Info{{Protocol: protocols.SSH, PacketCount: 100, ByteCount: 10_000}},
		},
		FlowStats:     flows.Stats{TotalActiveFlows: 1, TotalBandwidthBps: 1000},
		FirewallStats: firewall.Stats{TotalProcessed: 100, Allowed: 99, Blocked: 1, ActiveRules: 5, EnabledRules: 5},
		Diagnostics:   map[string]string{},
	}
}

func tick(m Model) Model {
	updated, _ := m.Update(TickMsg(time.Now()))
	return updated.(Model)
}

func TestFirstTickPopulatesView(t *testing.T) {
	backend := &mockBackend{snapshot: sampleSnapshot()}
	m := NewModel(backend, time.Second, true)

	assert.Contains(t, m.View(), "Collecting")

	m = tick(m)
	require.Equal(t, 1, backend.ticks)

	view := m.View()
	assert.Contains(t, view, "NETMON")
	assert.Contains(t, view, "Dashboard")
	assert.Contains(t, view, "100")
}

func TestTabCycling(t *testing.T) {
	backend := &mockBackend{snapshot: sampleSnapshot()}
	m := NewModel(backend, time.Second, true)
	m = tick(m)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyTab})
	m = updated.(Model)
	assert.Equal(t, ViewConnections, m.ActiveView)

	view := m.View()
	assert.Contains(t, view, "192.168.1.2:22")
	assert.Contains(t, view, "ESTABLISHED")
}

func TestNumberShortcuts(t *testing.T) {
	backend := &mockBackend{snapshot: sampleSnapshot()}
	m := NewModel(backend, time.Second, true)
	m = tick(m)

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'4'}})
	m = updated.(Model)
	assert.Equal(t, ViewFlows, m.ActiveView)
	assert.Contains(t, m.View(), "OUTBOUND")

	updated, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'5'}})
	m = updated.(Model)
	assert.Equal(t, ViewFirewall, m.ActiveView)
	assert.Contains(t, m.View(), "Processed")
}

func TestFirewallTabHiddenWhenDisabled(t *testing.T) {
	backend := &mockBackend{snapshot: sampleSnapshot()}
	m := NewModel(backend, time.Second, false)
	m = tick(m)

	assert.NotContains(t, m.View(), "Firewall")

	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'5'}})
	m = updated.(Model)
	assert.Equal(t, ViewDashboard, m.ActiveView, "disabled tab shortcut is inert")
}

func TestQuitKeys(t *testing.T) {
	backend := &mockBackend{snapshot: sampleSnapshot()}
	m := NewModel(backend, time.Second, true)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestDiagnosticsShown(t *testing.T) {
	snapshot := sampleSnapshot()
	snapshot.Diagnostics["capture"] = "live capture unavailable, running in proc-only mode"
	backend := &mockBackend{snapshot: snapshot}

	m := NewModel(backend, time.Second, true)
	m = tick(m)

	view := m.View()
	assert.Contains(t, view, "degraded capture")
	assert.Contains(t, strings.ToLower(view), "proc-only")
}
