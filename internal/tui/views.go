// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/blackjk83/netmon-tui/internal/netutil"
)

func newConnTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Local", Width: 22},
			{Title: "Remote", Width: 22},
			{Title: "Proto", Width: 8},
			{Title: "State", Width: 13},
			{Title: "Sent", Width: 10},
			{Title: "Recv", Width: 10},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	applyTableStyles(&t)
	return t
}

func newFlowTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Source", Width: 22},
			{Title: "Destination", Width: 22},
			{Title: "Proto", Width: 8},
			{Title: "Dir", Width: 9},
			{Title: "Rate", Width: 12},
			{Title: "Packets", Width: 9},
		}),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	applyTableStyles(&t)
	return t
}

func applyTableStyles(t *table.Model) {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorDeep).
		BorderBottom(true).
		Bold(true)
	s.Selected = s.Selected.
		Foreground(ColorIce).
		Background(ColorDeep).
		Bold(false)
	t.SetStyles(s)
}

func (m *Model) refreshTables() {
	conns := make([]table.Row, 0, len(m.Snapshot.Connections))
	keys := make([]string, 0, len(m.Snapshot.Connections))
	for key := range m.Snapshot.Connections {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		conn := m.Snapshot.Connections[key]
		conns = append(conns, table.Row{
			conn.Local.String(),
			conn.Remote.String(),
			conn.Protocol.String(),
			conn.State.String(),
			netutil.FormatBytes(conn.BytesSent),
			netutil.FormatBytes(conn.BytesRecv),
		})
	}
	m.connTable.SetRows(conns)

	flowIDs := make([]string, 0, len(m.Snapshot.Flows))
	for id := range m.Snapshot.Flows {
		flowIDs = append(flowIDs, id)
	}
	sort.Strings(flowIDs)
	flowRows := make([]table.Row, 0, len(flowIDs))
	for _, id := range flowIDs {
		flow := m.Snapshot.Flows[id]
		flowRows = append(flowRows, table.Row{
			flow.Src.String(),
			flow.Dst.String(),
			flow.Protocol.String(),
			flow.Direction.String(),
			netutil.FormatBandwidth(flow.BytesPerSecond),
			fmt.Sprintf("%d", flow.PacketCount),
		})
	}
	m.flowTable.SetRows(flowRows)
}

func (m Model) viewDashboard() string {
	s := m.Snapshot
	net := s.Network

	totals := StyleCard.Render(
		StyleTitle.Render("Traffic") + "\n" +
			row("Packets", fmt.Sprintf("%d", net.TotalPackets)) +
			row("Bytes", netutil.FormatBytes(net.TotalBytes)) +
			row("Rate", netutil.FormatBandwidth(net.BytesPerSecond)) +
			row("Pkt rate", fmt.Sprintf("%.1f pps", net.PacketsPerSecond)) +
			row("Uptime", netutil.FormatDuration(uint64(net.Uptime.Seconds()))))

	conns := StyleCard.Render(
		StyleTitle.Render("Connections") + "\n" +
			row("Active", fmt.Sprintf("%d", net.ActiveConnections)) +
			row("Flows", fmt.Sprintf("%d", s.FlowStats.TotalActiveFlows)) +
			row("Flow bw", netutil.FormatBandwidth(s.FlowStats.TotalBandwidthBps)))

	var ifaceLines string
	names := make([]string, 0, len(s.Interfaces))
	for name := range s.Interfaces {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		iface := s.Interfaces[name]
		ifaceLines += row(name+" rx", netutil.FormatBandwidth(iface.RxRateBps)) +
			row(name+" tx", netutil.FormatBandwidth(iface.TxRateBps))
	}
	if ifaceLines == "" {
		ifaceLines = StyleLabel.Render("no interface selected") + "\n"
	}
	ifaces := StyleCard.Render(StyleTitle.Render("Interfaces") + "\n" + ifaceLines)

	var protoLines string
	for i, info := range net.TopProtocols {
		if i >= 5 {
			break
		}
		protoLines += row(info.Protocol.String(), fmt.Sprintf("%d pkts, %s",
			info.PacketCount, netutil.FormatBytes(info.ByteCount)))
	}
	if protoLines == "" {
		protoLines = StyleLabel.Render("no traffic yet") + "\n"
	}
	protos := StyleCard.Render(StyleTitle.Render("Top Protocols") + "\n" + protoLines)

	top := lipgloss.JoinHorizontal(lipgloss.Top, totals, conns)
	bottom := lipgloss.JoinHorizontal(lipgloss.Top, ifaces, protos)
	return lipgloss.JoinVertical(lipgloss.Left, top, bottom)
}

func (m Model) viewConnections() string {
	return m.connTable.View()
}

func (m Model) viewPackets() string {
	packets := m.Snapshot.RecentPackets
	if len(packets) == 0 {
		return StyleLabel.Render("No packets captured (proc-only mode?)")
	}

	var b strings.Builder
	shown := 0
	for i := len(packets) - 1; i >= 0 && shown < 20; i-- {
		pkt := packets[i]
		line := fmt.Sprintf("%s %-5s %5dB", pkt.Timestamp.Format("15:04:05"), pkt.Protocol, pkt.Length)
		if pkt.HasEndpoints() {
			line += fmt.Sprintf("  %s -> %s",
				netutil.FormatIP(pkt.Src().String()), netutil.FormatIP(pkt.Dst().String()))
		}
		b.WriteString(StyleValue.Render(line) + "\n")
		shown++
	}
	return b.String()
}

func (m Model) viewFlows() string {
	summary := fmt.Sprintf("active: %d   bandwidth: %s   packet rate: %.1f pps",
		m.Snapshot.FlowStats.TotalActiveFlows,
		netutil.FormatBandwidth(m.Snapshot.FlowStats.TotalBandwidthBps),
		m.Snapshot.FlowStats.TotalPacketRate)
	return StyleLabel.Render(summary) + "\n" + m.flowTable.View()
}

func (m Model) viewFirewall() string {
	s := m.Snapshot
	stats := StyleCard.Render(
		StyleTitle.Render("Firewall") + "\n" +
			row("Processed", fmt.Sprintf("%d", s.FirewallStats.TotalProcessed)) +
			row("Allowed", fmt.Sprintf("%d", s.FirewallStats.Allowed)) +
			row("Blocked", fmt.Sprintf("%d", s.FirewallStats.Blocked)) +
			row("Logged", fmt.Sprintf("%d", s.FirewallStats.Logged)) +
			row("Block rate", fmt.Sprintf("%.1f%%", s.FirewallStats.BlockRate())) +
			row("Rules", fmt.Sprintf("%d (%d enabled)", s.FirewallStats.ActiveRules, s.FirewallStats.EnabledRules)))

	var eventLines string
	for i, event := range s.FirewallEvents {
		if i >= 10 {
			break
		}
		eventLines += fmt.Sprintf("%s %-13s %s:%d -> %s:%d (%s)\n",
			event.Timestamp.Format("15:04:05"),
			event.Action, event.SrcIP, event.SrcPort, event.DstIP, event.DstPort, event.RuleName)
	}
	if eventLines == "" {
		eventLines = StyleLabel.Render("no rule matches yet") + "\n"
	}
	events := StyleCard.Render(StyleTitle.Render("Recent Matches") + "\n" + eventLines)

	return lipgloss.JoinVertical(lipgloss.Left, stats, events)
}

func (m Model) viewEvents() string {
	events := m.Snapshot.FlowEvents
	if len(events) == 0 {
		return StyleLabel.Render("No traffic events")
	}

	var b strings.Builder
	for i, event := range events {
		if i >= 25 {
			break
		}
		style := severityStyle(event.Severity.String())
		b.WriteString(fmt.Sprintf("%s %s %s\n",
			event.Timestamp.Format("15:04:05"),
			style.Render(fmt.Sprintf("%-5s", event.Severity)),
			event.Description))
	}
	return b.String()
}

func row(label, value string) string {
	return StyleLabel.Render(fmt.Sprintf("%-10s ", label)) + StyleValue.Render(value) + "\n"
}
