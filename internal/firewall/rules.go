// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package firewall evaluates an ordered rule set against observed packets.
// The engine is observational: it classifies and accounts, it does not drop
// anything in the datapath.
package firewall

import (
	"encoding/json"
	"net/netip"
	"sort"
	"time"
)

// Action is a rule's verdict.
type Action int

const (
	ActionAllow Action = iota
	ActionBlock
	ActionLog
	ActionLogAndBlock
)

func (a Action) String() string {
	switch a {
	case ActionBlock:
		return "BLOCK"
	case ActionLog:
		return "LOG"
	case ActionLogAndBlock:
		return "LOG_AND_BLOCK"
	default:
		return "ALLOW"
	}
}

// MarshalText implements encoding.TextMarshaler for the rule exchange format.
func (a Action) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Action) UnmarshalText(text []byte) error {
	switch string(text) {
	case "BLOCK":
		*a = ActionBlock
	case "LOG":
		*a = ActionLog
	case "LOG_AND_BLOCK":
		*a = ActionLogAndBlock
	default:
		*a = ActionAllow
	}
	return nil
}

// Direction constrains which way a rule applies.
type Direction int

const (
	DirectionBidirectional Direction = iota
	DirectionInbound
	DirectionOutbound
)

func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "INBOUND"
	case DirectionOutbound:
		return "OUTBOUND"
	default:
		return "BIDIRECTIONAL"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Direction) UnmarshalText(text []byte) error {
	switch string(text) {
	case "INBOUND":
		*d = DirectionInbound
	case "OUTBOUND":
		*d = DirectionOutbound
	default:
		*d = DirectionBidirectional
	}
	return nil
}

// Protocol constrains a rule to a transport protocol.
type Protocol int

const (
	ProtocolAny Protocol = iota
	ProtocolTCP
	ProtocolUDP
	ProtocolICMP
)

func (p Protocol) String() string {
	switch p {
	case ProtocolTCP:
		return "TCP"
	case ProtocolUDP:
		return "UDP"
	case ProtocolICMP:
		return "ICMP"
	default:
		return "ANY"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Protocol) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Protocol) UnmarshalText(text []byte) error {
	switch string(text) {
	case "TCP":
		*p = ProtocolTCP
	case "UDP":
		*p = ProtocolUDP
	case "ICMP":
		*p = ProtocolICMP
	default:
		*p = ProtocolAny
	}
	return nil
}

// Rule is one firewall rule. A nil address or port set means "any"; a
// non-empty set requires membership. Higher priority evaluates first.
type Rule struct {
	ID               uint32
	Name             string
	Enabled          bool
	Action           Action
	Direction        Direction
	Protocol         Protocol
	SourceIPs        map[netip.Addr]bool
	DestinationIPs   map[netip.Addr]bool
	SourcePorts      map[uint16]bool
	DestinationPorts map[uint16]bool
	Priority         uint8
	Description      string
	CreatedAt        time.Time
	LastMatched      *time.Time
	MatchCount       uint64
}

// NewRule creates an enabled rule with the default medium priority.
func NewRule(name string, action Action, direction Direction, protocol Protocol) Rule {
	return Rule{
		Name:      name,
		Enabled:   true,
		Action:    action,
		Direction: direction,
		Protocol:  protocol,
		Priority:  128,
		CreatedAt: time.Now(),
	}
}

// WithSourceIPs adds addresses to the source set.
func (r Rule) WithSourceIPs(ips ...netip.Addr) Rule {
	if r.SourceIPs == nil {
		r.SourceIPs = make(map[netip.Addr]bool)
	}
	for _, ip := range ips {
		r.SourceIPs[ip] = true
	}
	return r
}

// WithDestinationIPs adds addresses to the destination set.
func (r Rule) WithDestinationIPs(ips ...netip.Addr) Rule {
	if r.DestinationIPs == nil {
		r.DestinationIPs = make(map[netip.Addr]bool)
	}
	for _, ip := range ips {
		r.DestinationIPs[ip] = true
	}
	return r
}

// WithSourcePorts adds ports to the source set.
func (r Rule) WithSourcePorts(ports ...uint16) Rule {
	if r.SourcePorts == nil {
		r.SourcePorts = make(map[uint16]bool)
	}
	for _, port := range ports {
		r.SourcePorts[port] = true
	}
	return r
}

// WithDestinationPorts adds ports to the destination set.
func (r Rule) WithDestinationPorts(ports ...uint16) Rule {
	if r.DestinationPorts == nil {
		r.DestinationPorts = make(map[uint16]bool)
	}
	for _, port := range ports {
		r.DestinationPorts[port] = true
	}
	return r
}

// WithPriority sets the rule priority.
func (r Rule) WithPriority(priority uint8) Rule {
	r.Priority = priority
	return r
}

// WithDescription sets the description.
func (r Rule) WithDescription(description string) Rule {
	r.Description = description
	return r
}

// Matches checks the rule against a packet's fields. Disabled rules never
// match.
func (r *Rule) Matches(srcIP, dstIP netip.Addr, srcPort, dstPort uint16, proto Protocol, dir Direction) bool {
	if !r.Enabled {
		return false
	}
	if r.Protocol != ProtocolAny && r.Protocol != proto {
		return false
	}
	if r.Direction != DirectionBidirectional && r.Direction != dir {
		return false
	}
	if len(r.SourceIPs) > 0 && !r.SourceIPs[srcIP] {
		return false
	}
	if len(r.DestinationIPs) > 0 && !r.DestinationIPs[dstIP] {
		return false
	}
	if len(r.SourcePorts) > 0 && !r.SourcePorts[srcPort] {
		return false
	}
	if len(r.DestinationPorts) > 0 && !r.DestinationPorts[dstPort] {
		return false
	}
	return true
}

// RecordMatch bumps the match counters.
func (r *Rule) RecordMatch(now time.Time) {
	r.MatchCount++
	r.LastMatched = &now
}

// Age is the time since the rule was created.
func (r *Rule) Age(now time.Time) time.Duration {
	return now.Sub(r.CreatedAt)
}

// SinceLastMatch is the time since the rule last matched, if it ever did.
func (r *Rule) SinceLastMatch(now time.Time) (time.Duration, bool) {
	if r.LastMatched == nil {
		return 0, false
	}
	return now.Sub(*r.LastMatched), true
}

// ruleWire is the exchange representation: the membership sets flatten to
// sorted slices.
type ruleWire struct {
	ID               uint32     `json:"id"`
	Name             string     `json:"name"`
	Enabled          bool       `json:"enabled"`
	Action           Action     `json:"action"`
	Direction        Direction  `json:"direction"`
	Protocol         Protocol   `json:"protocol"`
	SourceIPs        []string   `json:"source_ips"`
	DestinationIPs   []string   `json:"destination_ips"`
	SourcePorts      []uint16   `json:"source_ports"`
	DestinationPorts []uint16   `json:"destination_ports"`
	Priority         uint8      `json:"priority"`
	Description      string     `json:"description"`
	CreatedAt        time.Time  `json:"created_at"`
	LastMatched      *time.Time `json:"last_matched,omitempty"`
	MatchCount       uint64     `json:"match_count"`
}

// MarshalJSON implements json.Marshaler.
func (r Rule) MarshalJSON() ([]byte, error) {
	wire := ruleWire{
		ID:               r.ID,
		Name:             r.Name,
		Enabled:          r.Enabled,
		Action:           r.Action,
		Direction:        r.Direction,
		Protocol:         r.Protocol,
		SourceIPs:        addrSetToSlice(r.SourceIPs),
		DestinationIPs:   addrSetToSlice(r.DestinationIPs),
		SourcePorts:      portSetToSlice(r.SourcePorts),
		DestinationPorts: portSetToSlice(r.DestinationPorts),
		Priority:         r.Priority,
		Description:      r.Description,
		CreatedAt:        r.CreatedAt,
		LastMatched:      r.LastMatched,
		MatchCount:       r.MatchCount,
	}
	return json.Marshal(wire)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var wire ruleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*r = Rule{
		ID:          wire.ID,
		Name:        wire.Name,
		Enabled:     wire.Enabled,
		Action:      wire.Action,
		Direction:   wire.Direction,
		Protocol:    wire.Protocol,
		Priority:    wire.Priority,
		Description: wire.Description,
		CreatedAt:   wire.CreatedAt,
		LastMatched: wire.LastMatched,
		MatchCount:  wire.MatchCount,
	}
	for _, s := range wire.SourceIPs {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return err
		}
		*r = r.WithSourceIPs(addr)
	}
	for _, s := range wire.DestinationIPs {
		addr, err := netip.ParseAddr(s)
		if err != nil {
			return err
		}
		*r = r.WithDestinationIPs(addr)
	}
	if len(wire.SourcePorts) > 0 {
		*r = r.WithSourcePorts(wire.SourcePorts...)
	}
	if len(wire.DestinationPorts) > 0 {
		*r = r.WithDestinationPorts(wire.DestinationPorts...)
	}
	return nil
}

func addrSetToSlice(set map[netip.Addr]bool) []string {
	if len(set) == 0 {
		return nil
	}
	addrs := make([]netip.Addr, 0, len(set))
	for addr := range set {
		addrs = append(addrs, addr)
	}
	// Stable export order.
	sort.Slice(addrs, func(i, j int) bool { return addrs[i].Less(addrs[j]) })
	out := make([]string, len(addrs))
	for i, addr := range addrs {
		out[i] = addr.String()
	}
	return out
}

func portSetToSlice(set map[uint16]bool) []uint16 {
	if len(set) == 0 {
		return nil
	}
	out := make([]uint16, 0, len(set))
	for port := range set {
		out = append(out, port)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
