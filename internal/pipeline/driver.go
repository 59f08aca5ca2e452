// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package pipeline drives the observation loop: drain the packet source,
// refresh the proc sources, fan out to the trackers and analyzers, publish a
// Snapshot. The driver is the sole mutator of core state; consumers read
// snapshots at tick boundaries only.
package pipeline

import (
	"context"
	"time"

	"github.com/blackjk83/netmon-tui/internal/analyzer"
	"github.com/blackjk83/netmon-tui/internal/capture"
	"github.com/blackjk83/netmon-tui/internal/connections"
	"github.com/blackjk83/netmon-tui/internal/firewall"
	"github.com/blackjk83/netmon-tui/internal/flows"
	"github.com/blackjk83/netmon-tui/internal/logging"
	"github.com/blackjk83/netmon-tui/internal/procnet"
	"github.com/blackjk83/netmon-tui/internal/protocols"
	"github.com/blackjk83/netmon-tui/internal/stats"
)

const (
	packetBatchSize  = 10
	recentPacketsCap = 100
)

// ProcReader is the kernel pseudo-filesystem surface the driver needs.
// procnet.FS satisfies it.
type ProcReader interface {
	TCPConnections() ([]procnet.SockEntry, error)
	UDPConnections() ([]procnet.SockEntry, error)
	InterfaceStats(name string) (procnet.InterfaceStats, error)
}

// Snapshot is the tick-boundary publication: the sole read view exposed to
// consumers.
type Snapshot struct {
	Timestamp       time.Time
	PacketsCaptured uint64
	BytesCaptured   uint64
	Connections     map[string]connections.Info
	Interfaces      map[string]stats.InterfaceMetrics
	Network         stats.NetworkStatistics
	Analysis        analyzer.Result
	FirewallStats   firewall.Stats
	FirewallEvents  []firewall.Event
	Flows           map[string]flows.Flow
	FlowStats       flows.Stats
	FlowEvents      []flows.Event
	RecentPackets   []capture.PacketMeta
	Diagnostics     map[string]string
}

// Driver owns the pipeline components and runs the periodic tick.
type Driver struct {
	source     capture.Source // nil in proc-only mode
	proc       ProcReader
	iface      string
	classifier *protocols.Classifier
	tracker    *connections.Tracker
	inspector  *flows.Inspector
	collector  *stats.Collector
	analyzer   *analyzer.Analyzer
	firewall   *firewall.Engine
	logger     *logging.Logger

	recentPackets []capture.PacketMeta
	diagnostics   map[string]string
	now           func() time.Time
}

// Components bundles the driver's collaborators.
type Components struct {
	Source     capture.Source
	Proc       ProcReader
	Interface  string
	Classifier *protocols.Classifier
	Tracker    *connections.Tracker
	Inspector  *flows.Inspector
	Collector  *stats.Collector
	Analyzer   *analyzer.Analyzer
	Firewall   *firewall.Engine
	Logger     *logging.Logger
}

// NewDriver wires the pipeline. A nil Source means proc-only mode; the
// condition is recorded as a capture diagnostic so the UI can surface it.
func NewDriver(c Components) *Driver {
	logger := c.Logger
	if logger == nil {
		logger = logging.WithComponent("pipeline")
	}

	d := &Driver{
		source:      c.Source,
		proc:        c.Proc,
		iface:       c.Interface,
		classifier:  c.Classifier,
		tracker:     c.Tracker,
		inspector:   c.Inspector,
		collector:   c.Collector,
		analyzer:    c.Analyzer,
		firewall:    c.Firewall,
		logger:      logger,
		diagnostics: make(map[string]string),
		now:         time.Now,
	}
	if d.source == nil {
		d.diagnostics["capture"] = "live capture unavailable, running in proc-only mode"
	}
	return d
}

// SetCaptureDiagnostic records why live capture is degraded.
func (d *Driver) SetCaptureDiagnostic(msg string) {
	d.diagnostics["capture"] = msg
}

// Tick runs one pipeline pass and returns the resulting snapshot.
func (d *Driver) Tick() Snapshot {
	d.drainPackets()
	d.refreshProc()
	d.inspector.ExpireIdle()

	interfaces := d.refreshInterfaces()

	var captured capture.Stats
	if d.source != nil {
		captured = d.source.Stats()
	}
	d.collector.UpdatePacketStats(captured.PacketsCaptured, captured.BytesCaptured)

	network := d.collector.Generate(
		d.classifier.Stats(),
		d.classifier.Top(10),
		interfaces,
		d.tracker.Count(),
	)

	activeFlows := d.inspector.Active()
	analysis := d.analyzer.Analyze(activeFlows)

	diagnostics := make(map[string]string, len(d.diagnostics))
	for k, v := range d.diagnostics {
		diagnostics[k] = v
	}

	return Snapshot{
		Timestamp:       d.now(),
		PacketsCaptured: captured.PacketsCaptured,
		BytesCaptured:   captured.BytesCaptured,
		Connections:     d.tracker.Active(),
		Interfaces:      interfaces,
		Network:         network,
		Analysis:        analysis,
		FirewallStats:   d.firewall.Stats(),
		FirewallEvents:  d.firewall.RecentEvents(20),
		Flows:           activeFlows,
		FlowStats:       d.inspector.Stats(),
		FlowEvents:      d.inspector.RecentEvents(50),
		RecentPackets:   append([]capture.PacketMeta(nil), d.recentPackets...),
		Diagnostics:     diagnostics,
	}
}

// drainPackets pulls up to the batch budget from the live source and fans
// each packet out in order: classifier, tracker, inspector, firewall.
func (d *Driver) drainPackets() {
	if d.source == nil {
		return
	}

	for n := 0; n < packetBatchSize; n++ {
		pkt, ok, err := d.source.Next()
		if err != nil {
			d.diagnostics["capture"] = err.Error()
			d.logger.Debug("Capture read failed", "error", err)
			return
		}
		if !ok {
			break // backpressure: nothing within the poll budget
		}
		delete(d.diagnostics, "capture")
		d.processPacket(pkt)

		d.recentPackets = append(d.recentPackets, pkt)
		if len(d.recentPackets) > recentPacketsCap {
			d.recentPackets = d.recentPackets[len(d.recentPackets)-recentPacketsCap:]
		}
	}
}

func (d *Driver) processPacket(pkt capture.PacketMeta) {
	proto := d.classifier.Classify(pkt)
	d.tracker.TrackPacket(pkt)
	d.inspector.InspectPacket(pkt, proto)
	d.firewall.ProcessPacket(pkt)
}

// refreshProc reconciles the tracker against the socket tables and feeds
// synthetic packets through the flow and firewall paths so observability and
// policy keep working without live capture.
func (d *Driver) refreshProc() {
	tcp, err := d.proc.TCPConnections()
	if err != nil {
		d.diagnostics["proc"] = err.Error()
		d.logger.Debug("Socket table read failed", "error", err)
		return
	}
	udp, err := d.proc.UDPConnections()
	if err != nil {
		// TCP alone still keeps the tracker alive.
		d.diagnostics["proc"] = err.Error()
		udp = nil
	} else {
		delete(d.diagnostics, "proc")
	}

	entries := append(append([]procnet.SockEntry(nil), tcp...), udp...)
	d.tracker.UpdateFromProc(entries)

	now := d.now()
	for _, entry := range entries {
		transport := entry.Proto
		if transport == "" {
			transport = capture.ProtoTCP
		}
		pkt := capture.Synthetic(now, transport, entry.Local, entry.Remote)
		proto := d.classifier.Identify(pkt)
		d.inspector.InspectPacket(pkt, proto)
		d.firewall.ProcessPacket(pkt)
	}
}

func (d *Driver) refreshInterfaces() map[string]stats.InterfaceMetrics {
	current := make(map[string]procnet.InterfaceStats)
	if d.iface != "" {
		ifStats, err := d.proc.InterfaceStats(d.iface)
		if err != nil {
			d.diagnostics["interface"] = err.Error()
		} else {
			delete(d.diagnostics, "interface")
			current[d.iface] = ifStats
		}
	}
	return d.collector.UpdateInterfaceStats(current)
}

// Run ticks the pipeline at the given interval until the context is
// cancelled, handing each snapshot to consume. The quit signal is observed
// at tick boundaries only.
func (d *Driver) Run(ctx context.Context, interval time.Duration, consume func(Snapshot)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	d.logger.Info("Pipeline started", "interface", d.iface, "interval", interval)
	for {
		select {
		case <-ctx.Done():
			d.logger.Info("Pipeline stopped")
			return
		case <-ticker.C:
			snapshot := d.Tick()
			if consume != nil {
				consume(snapshot)
			}
		}
	}
}

// SetNow overrides the driver's clock. Test hook.
func (d *Driver) SetNow(f func() time.Time) {
	d.now = f
}
