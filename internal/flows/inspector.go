// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package flows maintains bidirectional traffic flows: direction assignment,
// per-flow rates, lifecycle events, and expiry into a bounded history.
package flows

import (
	"fmt"
	"net/netip"
	"sort"
	"time"

	"github.com/blackjk83/netmon-tui/internal/capture"
	"github.com/blackjk83/netmon-tui/internal/protocols"
)

// Direction classifies a flow relative to the local network set.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionInbound
	DirectionOutbound
	DirectionInternal
)

func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "INBOUND"
	case DirectionOutbound:
		return "OUTBOUND"
	case DirectionInternal:
		return "INTERNAL"
	default:
		return "UNKNOWN"
	}
}

// EventType tags a traffic event.
type EventType int

const (
	EventFlowStarted EventType = iota
	EventFlowEnded
	EventHighBandwidth
	EventSuspiciousActivity
	EventProtocolAnomaly
	EventConnectionSpike
)

func (e EventType) String() string {
	switch e {
	case EventFlowStarted:
		return "FLOW_STARTED"
	case EventFlowEnded:
		return "FLOW_ENDED"
	case EventHighBandwidth:
		return "HIGH_BANDWIDTH"
	case EventSuspiciousActivity:
		return "SUSPICIOUS_ACTIVITY"
	case EventProtocolAnomaly:
		return "PROTOCOL_ANOMALY"
	default:
		return "CONNECTION_SPIKE"
	}
}

// Severity grades an event.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "WARN"
	case SeverityCritical:
		return "CRIT"
	default:
		return "INFO"
	}
}

// Flow is one bidirectional traffic flow.
type Flow struct {
	ID               string
	Src              netip.AddrPort
	Dst              netip.AddrPort
	Protocol         protocols.Protocol
	Direction        Direction
	StartTime        time.Time
	LastSeen         time.Time
	PacketCount      uint64
	ByteCount        uint64
	PacketsPerSecond float64
	BytesPerSecond   float64
	Active           bool

	lastBandwidthAlert time.Time
}

// Event is a flow lifecycle or threshold event.
type Event struct {
	Timestamp   time.Time
	Type        EventType
	FlowID      string
	Description string
	Severity    Severity
}

// Stats aggregates the inspector's current state.
type Stats struct {
	TotalActiveFlows  int
	TotalBandwidthBps float64
	TotalPacketRate   float64
	FlowsByDirection  map[Direction]int
	RecentEventCount  int
}

// DefaultLocalNetworks covers loopback and RFC 1918.
func DefaultLocalNetworks() []netip.Prefix {
	return []netip.Prefix{
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
	}
}

const bandwidthAlertInterval = 10 * time.Second

// Inspector maintains the flow table and event ring.
type Inspector struct {
	active        map[string]*Flow
	history       []Flow
	events        []Event
	bandwidthBps  float64
	flowTimeout   time.Duration
	maxHistory    int
	maxEvents     int
	localNetworks []netip.Prefix
	now           func() time.Time
}

// Option configures an Inspector.
type Option func(*Inspector)

// WithBandwidthThreshold overrides the high-bandwidth alert threshold in
// bytes per second.
func WithBandwidthThreshold(bps float64) Option {
	return func(i *Inspector) { i.bandwidthBps = bps }
}

// WithFlowTimeout overrides the idle timeout.
func WithFlowTimeout(d time.Duration) Option {
	return func(i *Inspector) { i.flowTimeout = d }
}

// WithLocalNetworks replaces the local CIDR set.
func WithLocalNetworks(prefixes []netip.Prefix) Option {
	return func(i *Inspector) { i.localNetworks = prefixes }
}

// NewInspector creates an inspector with loopback + RFC 1918 local networks.
func NewInspector(opts ...Option) *Inspector {
	i := &Inspector{
		active:        make(map[string]*Flow),
		bandwidthBps:  1_000_000,
		flowTimeout:   5 * time.Minute,
		maxHistory:    10000,
		maxEvents:     1000,
		localNetworks: DefaultLocalNetworks(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// AddLocalNetwork appends a CIDR to the local set.
func (i *Inspector) AddLocalNetwork(cidr string) error {
	prefix, err := netip.ParsePrefix(cidr)
	if err != nil {
		return err
	}
	i.localNetworks = append(i.localNetworks, prefix)
	return nil
}

// IsLocal reports whether the address falls in the local network set.
func (i *Inspector) IsLocal(addr netip.Addr) bool {
	for _, prefix := range i.localNetworks {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func (i *Inspector) direction(src, dst netip.Addr) Direction {
	srcLocal, dstLocal := i.IsLocal(src), i.IsLocal(dst)
	switch {
	case srcLocal && dstLocal:
		return DirectionInternal
	case srcLocal:
		return DirectionOutbound
	case dstLocal:
		return DirectionInbound
	default:
		return DirectionUnknown
	}
}

// InspectPacket updates or creates the packet's flow and emits lifecycle and
// threshold events. High-bandwidth alerts are debounced per flow.
func (i *Inspector) InspectPacket(pkt capture.PacketMeta, proto protocols.Protocol) {
	if !pkt.HasEndpoints() || !pkt.HasPorts {
		return
	}

	now := i.now()
	src, dst := pkt.Src(), pkt.Dst()
	id := capture.PairKey(src, dst)

	flow, ok := i.active[id]
	if !ok {
		flow = &Flow{
			ID:        id,
			Src:       src,
			Dst:       dst,
			Protocol:  proto,
			Direction: i.direction(src.Addr(), dst.Addr()),
			StartTime: now,
			LastSeen:  now,
			Active:    true,
		}
		i.active[id] = flow
		i.addEvent(Event{
			Timestamp:   now,
			Type:        EventFlowStarted,
			FlowID:      id,
			Description: fmt.Sprintf("New %s flow: %s -> %s", proto, src, dst),
			Severity:    SeverityInfo,
		})
	}

	flow.PacketCount++
	flow.ByteCount += uint64(pkt.Length)
	flow.LastSeen = now
	flow.Protocol = proto

	if elapsed := now.Sub(flow.StartTime).Seconds(); elapsed > 0 {
		flow.PacketsPerSecond = float64(flow.PacketCount) / elapsed
		flow.BytesPerSecond = float64(flow.ByteCount) / elapsed

		if flow.BytesPerSecond > i.bandwidthBps && now.Sub(flow.lastBandwidthAlert) >= bandwidthAlertInterval {
			flow.lastBandwidthAlert = now
			i.addEvent(Event{
				Timestamp:   now,
				Type:        EventHighBandwidth,
				FlowID:      id,
				Description: fmt.Sprintf("High bandwidth detected: %.2f MB/s", flow.BytesPerSecond/1_000_000),
				Severity:    SeverityWarning,
			})
		}
	}
}

// ExpireIdle retires flows idle longer than the flow timeout, moving them to
// the history ring and emitting FlowEnded events. Called once per batch.
func (i *Inspector) ExpireIdle() {
	now := i.now()
	for id, flow := range i.active {
		if now.Sub(flow.LastSeen) <= i.flowTimeout {
			continue
		}
		delete(i.active, id)
		flow.Active = false

		i.addEvent(Event{
			Timestamp:   now,
			Type:        EventFlowEnded,
			FlowID:      id,
			Description: fmt.Sprintf("Flow ended: %s (%ds duration)", id, int(now.Sub(flow.StartTime).Seconds())),
			Severity:    SeverityInfo,
		})

		i.history = append(i.history, *flow)
		if len(i.history) > i.maxHistory {
			i.history = i.history[len(i.history)-i.maxHistory:]
		}
	}
}

func (i *Inspector) addEvent(event Event) {
	i.events = append(i.events, event)
	if len(i.events) > i.maxEvents {
		i.events = i.events[len(i.events)-i.maxEvents:]
	}
}

// Active returns a snapshot copy of the active flows keyed by flow id.
func (i *Inspector) Active() map[string]Flow {
	out := make(map[string]Flow, len(i.active))
	for id, flow := range i.active {
		out[id] = *flow
	}
	return out
}

// ByDirection returns the active flows with the given direction.
func (i *Inspector) ByDirection(dir Direction) []Flow {
	var out []Flow
	for _, flow := range i.active {
		if flow.Direction == dir {
			out = append(out, *flow)
		}
	}
	return out
}

// TopByBandwidth returns up to limit flows ordered by byte rate.
func (i *Inspector) TopByBandwidth(limit int) []Flow {
	return i.top(limit, func(a, b *Flow) bool { return a.BytesPerSecond > b.BytesPerSecond })
}

// TopByPacketRate returns up to limit flows ordered by packet rate.
func (i *Inspector) TopByPacketRate(limit int) []Flow {
	return i.top(limit, func(a, b *Flow) bool { return a.PacketsPerSecond > b.PacketsPerSecond })
}

func (i *Inspector) top(limit int, less func(a, b *Flow) bool) []Flow {
	flows := make([]*Flow, 0, len(i.active))
	for _, flow := range i.active {
		flows = append(flows, flow)
	}
	sort.Slice(flows, func(a, b int) bool { return less(flows[a], flows[b]) })
	if len(flows) > limit {
		flows = flows[:limit]
	}
	out := make([]Flow, len(flows))
	for idx, flow := range flows {
		out[idx] = *flow
	}
	return out
}

// RecentEvents returns up to limit events, newest first.
func (i *Inspector) RecentEvents(limit int) []Event {
	n := len(i.events)
	if limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for idx := n - 1; idx >= n-limit; idx-- {
		out = append(out, i.events[idx])
	}
	return out
}

// EventsBySeverity returns all retained events of the given severity.
func (i *Inspector) EventsBySeverity(severity Severity) []Event {
	var out []Event
	for _, event := range i.events {
		if event.Severity == severity {
			out = append(out, event)
		}
	}
	return out
}

// History returns a copy of the retired flow ring.
func (i *Inspector) History() []Flow {
	out := make([]Flow, len(i.history))
	copy(out, i.history)
	return out
}

// Stats aggregates totals over the active flows.
func (i *Inspector) Stats() Stats {
	stats := Stats{
		TotalActiveFlows: len(i.active),
		FlowsByDirection: make(map[Direction]int),
		RecentEventCount: len(i.events),
	}
	for _, flow := range i.active {
		stats.TotalBandwidthBps += flow.BytesPerSecond
		stats.TotalPacketRate += flow.PacketsPerSecond
		stats.FlowsByDirection[flow.Direction]++
	}
	return stats
}

// SetNow overrides the inspector's clock. Test hook.
func (i *Inspector) SetNow(f func() time.Time) {
	i.now = f
}
