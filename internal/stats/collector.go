// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package stats derives interface rates and pipeline totals with a bounded
// sliding history window.
package stats

import (
	"sort"
	"time"

	"github.com/blackjk83/netmon-tui/internal/procnet"
	"github.com/blackjk83/netmon-tui/internal/protocols"
)

// InterfaceMetrics augments raw counters with derived per-second rates.
type InterfaceMetrics struct {
	Name      string
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64
	RxErrors  uint64
	TxErrors  uint64
	RxDropped uint64
	TxDropped uint64
	RxRateBps float64
	TxRateBps float64
	UpdatedAt time.Time
}

// TotalRateBps is the combined rx+tx rate.
func (m InterfaceMetrics) TotalRateBps() float64 { return m.RxRateBps + m.TxRateBps }

// TotalBytes is the combined rx+tx byte counter.
func (m InterfaceMetrics) TotalBytes() uint64 { return m.RxBytes + m.TxBytes }

// TotalPackets is the combined rx+tx packet counter.
func (m InterfaceMetrics) TotalPackets() uint64 { return m.RxPackets + m.TxPackets }

// NetworkStatistics is the aggregate view handed to consumers each tick.
type NetworkStatistics struct {
	TotalPackets      uint64
	TotalBytes        uint64
	PacketsPerSecond  float64
	BytesPerSecond    float64
	ActiveConnections int
	ProtocolStats     map[protocols.Protocol]protocols.Info
	TopProtocols      []protocols.Info
	InterfaceMetrics  map[string]InterfaceMetrics
	Uptime            time.Duration
	StartTime         time.Time
}

// TopProtocol returns the busiest protocol, if any traffic has been seen.
func (s NetworkStatistics) TopProtocol() (protocols.Protocol, bool) {
	if len(s.TopProtocols) == 0 {
		return protocols.Unknown, false
	}
	return s.TopProtocols[0].Protocol, true
}

// ProtocolPercentage returns the protocol's share of total packets.
func (s NetworkStatistics) ProtocolPercentage(proto protocols.Protocol) float64 {
	info, ok := s.ProtocolStats[proto]
	if !ok || s.TotalPackets == 0 {
		return 0
	}
	return float64(info.PacketCount) / float64(s.TotalPackets) * 100
}

// TotalInterfaceRate sums rates across all interfaces.
func (s NetworkStatistics) TotalInterfaceRate() float64 {
	var total float64
	for _, m := range s.InterfaceMetrics {
		total += m.TotalRateBps()
	}
	return total
}

type sample struct {
	at    time.Time
	value uint64
}

// Collector accumulates interface baselines and packet/byte history.
type Collector struct {
	startTime     time.Time
	lastUpdate    time.Time
	previous      map[string]procnet.InterfaceStats
	totalPackets  uint64
	totalBytes    uint64
	packetHistory []sample
	byteHistory   []sample
	window        time.Duration
	now           func() time.Time
}

// NewCollector creates a collector with a 60 second history window.
func NewCollector() *Collector {
	now := time.Now
	return &Collector{
		startTime:  now(),
		lastUpdate: now(),
		previous:   make(map[string]procnet.InterfaceStats),
		window:     time.Minute,
		now:        now,
	}
}

// UpdateInterfaceStats computes per-second rates from counter deltas and
// stores the current counters as the next baseline. Saturating subtraction
// keeps rates non-negative across counter resets.
func (c *Collector) UpdateInterfaceStats(current map[string]procnet.InterfaceStats) map[string]InterfaceMetrics {
	now := c.now()
	metrics := make(map[string]InterfaceMetrics, len(current))

	for name, stats := range current {
		m := InterfaceMetrics{
			Name:      name,
			RxBytes:   stats.RxBytes,
			TxBytes:   stats.TxBytes,
			RxPackets: stats.RxPackets,
			TxPackets: stats.TxPackets,
			RxErrors:  stats.RxErrors,
			TxErrors:  stats.TxErrors,
			RxDropped: stats.RxDropped,
			TxDropped: stats.TxDropped,
			UpdatedAt: now,
		}

		if prev, ok := c.previous[name]; ok {
			if dt := now.Sub(c.lastUpdate).Seconds(); dt > 0 {
				m.RxRateBps = float64(saturatingSub(stats.RxBytes, prev.RxBytes)) / dt
				m.TxRateBps = float64(saturatingSub(stats.TxBytes, prev.TxBytes)) / dt
			}
		}
		metrics[name] = m
	}

	c.previous = make(map[string]procnet.InterfaceStats, len(current))
	for name, stats := range current {
		c.previous[name] = stats
	}
	c.lastUpdate = now

	return metrics
}

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// UpdatePacketStats records the running totals and appends them to the
// history rings, purging anything older than the window.
func (c *Collector) UpdatePacketStats(packets, bytes uint64) {
	now := c.now()

	c.totalPackets = packets
	c.totalBytes = bytes
	c.packetHistory = append(c.packetHistory, sample{now, packets})
	c.byteHistory = append(c.byteHistory, sample{now, bytes})

	cutoff := now.Add(-c.window)
	c.packetHistory = purge(c.packetHistory, cutoff)
	c.byteHistory = purge(c.byteHistory, cutoff)
}

func purge(history []sample, cutoff time.Time) []sample {
	idx := sort.Search(len(history), func(i int) bool {
		return history[i].at.After(cutoff)
	})
	return history[idx:]
}

// CalculateRates derives packet and byte rates over the last 10 seconds.
func (c *Collector) CalculateRates() (pps, bps float64) {
	now := c.now()
	windowStart := now.Add(-10 * time.Second)

	packetsStart := earliestSince(c.packetHistory, windowStart)
	bytesStart := earliestSince(c.byteHistory, windowStart)

	const window = 10.0
	pps = float64(saturatingSub(c.totalPackets, packetsStart)) / window
	bps = float64(saturatingSub(c.totalBytes, bytesStart)) / window
	return pps, bps
}

func earliestSince(history []sample, start time.Time) uint64 {
	for _, s := range history {
		if !s.at.Before(start) {
			return s.value
		}
	}
	return 0
}

// Generate assembles the aggregate statistics view.
func (c *Collector) Generate(
	protoStats map[protocols.Protocol]protocols.Info,
	topProtocols []protocols.Info,
	interfaces map[string]InterfaceMetrics,
	activeConnections int,
) NetworkStatistics {
	pps, bps := c.CalculateRates()

	return NetworkStatistics{
		TotalPackets:      c.totalPackets,
		TotalBytes:        c.totalBytes,
		PacketsPerSecond:  pps,
		BytesPerSecond:    bps,
		ActiveConnections: activeConnections,
		ProtocolStats:     protoStats,
		TopProtocols:      topProtocols,
		InterfaceMetrics:  interfaces,
		Uptime:            c.now().Sub(c.startTime),
		StartTime:         c.startTime,
	}
}

// BandwidthUtilization returns the interface's load as a percentage of the
// given link speed, clamped to 100.
func BandwidthUtilization(m InterfaceMetrics, linkSpeedMbps uint64) float64 {
	if linkSpeedMbps == 0 {
		return 0
	}
	speedBps := float64(linkSpeedMbps) * 1_000_000
	utilization := m.TotalRateBps() / speedBps * 100
	if utilization > 100 {
		return 100
	}
	return utilization
}

// ErrorRate returns errored packets as a percentage of all packets.
func ErrorRate(m InterfaceMetrics) float64 {
	total := m.RxPackets + m.TxPackets
	if total == 0 {
		return 0
	}
	return float64(m.RxErrors+m.TxErrors) / float64(total) * 100
}

// DropRate returns dropped packets as a percentage of all packets.
func DropRate(m InterfaceMetrics) float64 {
	total := m.RxPackets + m.TxPackets
	if total == 0 {
		return 0
	}
	return float64(m.RxDropped+m.TxDropped) / float64(total) * 100
}

// Reset reinitializes counters and history atomically with respect to the
// tick loop.
func (c *Collector) Reset() {
	now := c.now()
	c.startTime = now
	c.lastUpdate = now
	c.previous = make(map[string]procnet.InterfaceStats)
	c.totalPackets = 0
	c.totalBytes = 0
	c.packetHistory = nil
	c.byteHistory = nil
}

// SetNow overrides the collector's clock. Test hook.
func (c *Collector) SetNow(f func() time.Time) {
	c.now = f
}
