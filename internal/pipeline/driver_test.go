// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package pipeline

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blackjk83/netmon-tui/internal/analyzer"
	"github.com/blackjk83/netmon-tui/internal/capture"
	"github.com/blackjk83/netmon-tui/internal/connections"
	"github.com/blackjk83/netmon-tui/internal/firewall"
	"github.com/blackjk83/netmon-tui/internal/flows"
	"github.com/blackjk83/netmon-tui/internal/procnet"
	"github.com/blackjk83/netmon-tui/internal/protocols"
	"github.com/blackjk83/netmon-tui/internal/stats"
)

// fakeSource replays a fixed packet list.
type fakeSource struct {
	packets []capture.PacketMeta
	pos     int
	stats   capture.Stats
}

func (f *fakeSource) Next() (capture.PacketMeta, bool, error) {
	if f.pos >= len(f.packets) {
		return capture.PacketMeta{}, false, nil
	}
	pkt := f.packets[f.pos]
	f.pos++
	f.stats.PacketsCaptured++
	f.stats.BytesCaptured += uint64(pkt.Length)
	return pkt, true, nil
}

func (f *fakeSource) Stats() capture.Stats { return f.stats }
func (f *fakeSource) Close() error         { return nil }

// fakeProc serves canned socket tables and counters.
type fakeProc struct {
	tcp     []procnet.SockEntry
	udp     []procnet.SockEntry
	ifStats procnet.InterfaceStats
	tcpErr  error
}

func (f *fakeProc) TCPConnections() ([]procnet.SockEntry, error) {
	return f.tcp, f.tcpErr
}
func (f *fakeProc) UDPConnections() ([]procnet.SockEntry, error) { return f.udp, nil }
func (f *fakeProc) InterfaceStats(string) (procnet.InterfaceStats, error) {
	return f.ifStats, nil
}

func pkt(src, dst string, length int) capture.PacketMeta {
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

func newDriver(source capture.Source, proc ProcReader) *Driver {
	classifier := protocols.NewClassifier()
	engine := firewall.NewEngine()
	return NewDriver(Components{
		Source:     source,
		Proc:       proc,
		Interface:  "eth0",
		Classifier: classifier,
		Tracker:    connections.NewTracker(classifier),
		Inspector:  flows.NewInspector(),
		Collector:  stats.NewCollector(),
		Analyzer:   analyzer.New(),
		Firewall:   engine,
	})
}

func TestTickProcessesPackets(t *testing.T) {
	source := &fakeSource{packets: []capture.PacketMeta{
		pkt("192.168.1.1:50000", "8.8.8.8:443", 512),
		pkt("192.168.1.1:50001", "8.8.8.8:80", 256),
	}}
	proc := &fakeProc{ifStats: procnet.InterfaceStats{Name: "eth0", RxBytes: 1000}}

	driver := newDriver(source, proc)
	snapshot := driver.Tick()

	assert.Equal(t, uint64(2), snapshot.PacketsCaptured)
	assert.Equal(t, uint64(768), snapshot.BytesCaptured)
	assert.Len(t, snapshot.RecentPackets, 2)
	assert.Len(t, snapshot.Connections, 2)
	assert.Equal(t, 2, snapshot.FlowStats.TotalActiveFlows)
	assert.Equal(t, uint64(2), snapshot.FirewallStats.TotalProcessed)
	assert.Contains(t, snapshot.Interfaces, "eth0")
	assert.Empty(t, snapshot.Diagnostics)

	https := snapshot.Network.ProtocolStats[protocols.HTTPS]
	assert.Equal(t, uint64(1), https.PacketCount)
	assert.Equal(t, uint64(512), https.ByteCount)
}

func TestProcOnlyMode(t *testing.T) {
	proc := &fakeProc{
		tcp: []procnet.SockEntry{{
			Proto:  "TCP",
			Local:  netip.MustParseAddrPort("192.168.1.2:22"),
			Remote: netip.MustParseAddrPort("203.0.113.5:50000"),
			State:  procnet.StateEstablished,
		}},
	}

	driver := newDriver(nil, proc)
	snapshot := driver.Tick()

	// Without capture the system still observes and applies policy.
	assert.Len(t, snapshot.Connections, 1)
	assert.Equal(t, 1, snapshot.FlowStats.TotalActiveFlows)
	assert.Equal(t, uint64(1), snapshot.FirewallStats.TotalProcessed,
		"synthetic packets must flow through the firewall")
	assert.Contains(t, snapshot.Diagnostics, "capture")
	assert.Zero(t, snapshot.PacketsCaptured)
}

func TestBatchBudget(t *testing.T) {
	var packets []capture.PacketMeta
	for n := 0; n < 30; n++ {
		packets = append(packets, pkt("192.168.1.1:50000", "8.8.8.8:443", 100))
	}
	source := &fakeSource{packets: packets}

	driver := newDriver(source, &fakeProc{})
	driver.Tick()

	assert.Equal(t, uint64(10), source.stats.PacketsCaptured, "at most 10 packets per tick")
}

func TestRecentPacketsBounded(t *testing.T) {
	var packets []capture.PacketMeta
	for n := 0; n < 300; n++ {
		packets = append(packets, pkt("192.168.1.1:50000", "8.8.8.8:443", 100))
	}
	source := &fakeSource{packets: packets}

	driver := newDriver(source, &fakeProc{})
	var snapshot Snapshot
	for n := 0; n < 30; n++ {
		snapshot = driver.Tick()
	}

	assert.LessOrEqual(t, len(snapshot.RecentPackets), 100)
}

func TestProcReadFailureIsNonFatal(t *testing.T) {
	proc := &fakeProc{tcpErr: assert.AnError}

	driver := newDriver(nil, proc)
	snapshot := driver.Tick()

	assert.Contains(t, snapshot.Diagnostics, "proc")
	assert.NotNil(t, snapshot.Network)
}

func TestUDPEntriesReachTracker(t *testing.T) {
	proc := &fakeProc{
		udp: []procnet.SockEntry{{
			Proto:  "UDP",
			Local:  netip.MustParseAddrPort("192.168.1.2:53"),
			Remote: netip.MustParseAddrPort("0.0.0.0:0"),
			State:  procnet.StateListen,
		}},
	}

	driver := newDriver(nil, proc)
	snapshot := driver.Tick()

	require.Len(t, snapshot.Connections, 1)
	for _, conn := range snapshot.Connections {
		assert.Equal(t, connections.StateEstablished, conn.State)
		assert.Equal(t, protocols.DNS, conn.Protocol)
	}
}

func TestRunObservesCancellation(t *testing.T) {
	driver := newDriver(nil, &fakeProc{})

	ctx, cancel := context.WithTimeout(context.Background(), 250*time.Millisecond)
	defer cancel()

	var ticks int
	driver.Run(ctx, 50*time.Millisecond, func(Snapshot) { ticks++ })

	assert.Greater(t, ticks, 0)
}
