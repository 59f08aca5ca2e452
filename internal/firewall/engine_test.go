// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackjk83/netmon-tui/internal/capture"
)

func tcpPacket(src, dst string, length int) capture.PacketMeta {
	s := netip.MustParseAddrPort(src)
	d := netip.MustParseAddrPort(dst)
	return capture.PacketMeta{
		Timestamp: time.Now(),
		Length:    length,
		Protocol:  capture.ProtoTCP,
		SrcIP:     s.Addr(),
		DstIP:     d.Addr(),
		SrcPort:   s.Port(),
		DstPort:   d.Port(),
		HasPorts:  true,
	}
}

func TestPriorityOrdering(t *testing.T) {
	e := NewEngine()

	e.AddRule(NewRule("Low", ActionAllow, DirectionInbound, ProtocolTCP).WithPriority(100))
	e.AddRule(NewRule("High", ActionBlock, DirectionInbound, ProtocolTCP).WithPriority(200))

	rules := e.Rules()
	require.Len(t, rules, 2)
	assert.Equal(t, uint8(200), rules[0].Priority)
	assert.Equal(t, uint8(100), rules[1].Priority)
}

func TestEqualPriorityKeepsInsertionOrder(t *testing.T) {
	e := NewEngine()

	e.AddRule(NewRule("First", ActionAllow, DirectionInbound, ProtocolTCP).WithPriority(100))
	e.AddRule(NewRule("Second", ActionBlock, DirectionInbound, ProtocolTCP).WithPriority(100))

	rules := e.Rules()
	assert.Equal(t, "First", rules[0].Name)
	assert.Equal(t, "Second", rules[1].Name)
}

func TestFirstMatchWins(t *testing.T) {
	e := NewEngine()

	e.AddRule(NewRule("Block SSH", ActionBlock, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(22).WithPriority(200))
	e.AddRule(NewRule("Allow TCP", ActionAllow, DirectionInbound, ProtocolTCP).WithPriority(100))

	// Inbound: source outside the local set.
	assert.Equal(t, ActionBlock, e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:22", 64)))
	assert.Equal(t, ActionAllow, e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:80", 64)))

	stats := e.Stats()
	assert.Equal(t, uint64(2), stats.TotalProcessed)
	assert.Equal(t, uint64(1), stats.Blocked)
	assert.Equal(t, uint64(1), stats.Allowed)
}

func TestLogContinuesEvaluation(t *testing.T) {
	e := NewEngine()

	e.AddRule(NewRule("Log everything", ActionLog, DirectionBidirectional, ProtocolAny).WithPriority(250))
	e.AddRule(NewRule("Block SSH", ActionBlock, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(22).WithPriority(200))

	action := e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:22", 64))

	assert.Equal(t, ActionBlock, action, "Log must not terminate evaluation")

	stats := e.Stats()
	assert.Equal(t, uint64(1), stats.Logged)
	assert.Equal(t, uint64(1), stats.Blocked)
	assert.Equal(t, uint64(2), stats.RulesMatched)
	assert.Len(t, e.RecentEvents(10), 2, "both matches must record events")
}

func TestFallThroughAllows(t *testing.T) {
	e := NewEngine()

	e.AddRule(NewRule("Block SSH", ActionBlock, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(22).WithPriority(200))

	assert.Equal(t, ActionAllow, e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:443", 64)))
	assert.Equal(t, uint64(1), e.Stats().Allowed)
}

func TestDisabledEngineFailsOpen(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewRule("Block all", ActionBlock, DirectionBidirectional, ProtocolAny).WithPriority(200))
	e.SetEnabled(false)

	assert.Equal(t, ActionAllow, e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:22", 64)))
	assert.Zero(t, e.Stats().TotalProcessed, "disabled engine does not account")
}

func TestUnparseablePacketFailsOpen(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewRule("Block all", ActionBlock, DirectionBidirectional, ProtocolAny).WithPriority(200))

	pkt := capture.PacketMeta{Protocol: "IPv6", Length: 80}
	assert.Equal(t, ActionAllow, e.ProcessPacket(pkt))
	assert.Equal(t, uint64(1), e.Stats().TotalProcessed)
	assert.Zero(t, e.Stats().Blocked)
}

func TestDisabledRuleNeverMatches(t *testing.T) {
	e := NewEngine()
	id := e.AddRule(NewRule("Block SSH", ActionBlock, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(22).WithPriority(200))
	require.True(t, e.DisableRule(id))

	assert.Equal(t, ActionAllow, e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:22", 64)))

	require.True(t, e.EnableRule(id))
	assert.Equal(t, ActionBlock, e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:22", 64)))
}

func TestDirectionFromLocalSource(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewRule("Block outbound telnet", ActionBlock, DirectionOutbound, ProtocolTCP).
		WithDestinationPorts(23).WithPriority(200))

	// Local source: outbound, matches.
	assert.Equal(t, ActionBlock, e.ProcessPacket(tcpPacket("192.168.1.1:40000", "203.0.113.5:23", 64)))
	// Remote source: inbound, does not match the outbound rule.
	assert.Equal(t, ActionAllow, e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:23", 64)))
}

func TestMatchCountAndLastMatched(t *testing.T) {
	now := time.Now()
	e := NewEngine()
	e.SetNow(func() time.Time { return now })

	id := e.AddRule(NewRule("Block SSH", ActionBlock, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(22).WithPriority(200))

	e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:22", 64))
	e.ProcessPacket(tcpPacket("203.0.113.5:40001", "192.168.1.1:22", 64))

	rule, ok := e.Rule(id)
	require.True(t, ok)
	assert.Equal(t, uint64(2), rule.MatchCount)
	require.NotNil(t, rule.LastMatched)
	assert.Equal(t, now, *rule.LastMatched)
}

func TestEventRingBounded(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewRule("Log everything", ActionLog, DirectionBidirectional, ProtocolAny).WithPriority(200))

	for n := 0; n < 1500; n++ {
		e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:80", 64))
	}

	assert.LessOrEqual(t, len(e.events), 1000)
	events := e.RecentEvents(5)
	assert.Len(t, events, 5)
}

func TestRemoveRule(t *testing.T) {
	e := NewEngine()
	id := e.AddRule(AllowSSH())

	assert.True(t, e.RemoveRule(id))
	assert.Empty(t, e.Rules())
	assert.False(t, e.RemoveRule(999))
	assert.Zero(t, e.Stats().ActiveRules)
}

func TestExportImportRoundTrip(t *testing.T) {
	e := NewEngine()
	e.AddRule(AllowSSH())
	e.AddRule(BlockSuspiciousPorts())

	data, err := e.ExportRules()
	require.NoError(t, err)

	fresh := NewEngine()
	count, err := fresh.ImportRules(data)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	rules := fresh.Rules()
	require.Len(t, rules, 2)
	// Ids re-assigned through the insertion path; priority order preserved.
	assert.Equal(t, "Allow SSH", rules[0].Name)
	assert.Equal(t, uint32(1), rules[0].ID)
	assert.True(t, rules[1].DestinationPorts[3306])

	_, err = fresh.ImportRules([]byte("not json"))
	assert.Error(t, err)
}

func TestLoadDefaultRules(t *testing.T) {
	e := NewEngine()
	e.LoadDefaultRules()

	rules := e.Rules()
	require.Len(t, rules, 5)
	assert.Equal(t, "Allow Localhost", rules[0].Name, "highest priority first")
	assert.Equal(t, "Log All Connections", rules[4].Name)
	assert.Equal(t, 5, e.Stats().EnabledRules)
}

func TestStatsRates(t *testing.T) {
	e := NewEngine()
	e.AddRule(NewRule("Block SSH", ActionBlock, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(22).WithPriority(200))

	e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:22", 64))
	e.ProcessPacket(tcpPacket("203.0.113.5:40000", "192.168.1.1:80", 64))

	stats := e.Stats()
	assert.InDelta(t, 50.0, stats.BlockRate(), 0.01)
	assert.InDelta(t, 50.0, stats.AllowRate(), 0.01)

	e.ResetStats()
	assert.Zero(t, e.Stats().TotalProcessed)
	assert.Zero(t, Stats{}.BlockRate())
}
