// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import (
	"encoding/json"
	"net/netip"
	"time"

	"github.com/blackjk83/netmon-tui/internal/capture"
	"github.com/blackjk83/netmon-tui/internal/errors"
)

// Stats tracks engine-wide counters. Counters are append-only until Reset.
type Stats struct {
	TotalProcessed uint64
	Allowed        uint64
	Blocked        uint64
	Logged         uint64
	RulesMatched   uint64
	ActiveRules    int
	EnabledRules   int
	LastReset      time.Time
}

// BlockRate is the percentage of processed packets that were blocked.
func (s Stats) BlockRate() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.Blocked) / float64(s.TotalProcessed) * 100
}

// AllowRate is the percentage of processed packets that were allowed.
func (s Stats) AllowRate() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.Allowed) / float64(s.TotalProcessed) * 100
}

// Event records one rule match.
type Event struct {
	Timestamp  time.Time
	RuleID     uint32
	RuleName   string
	Action     Action
	SrcIP      netip.Addr
	DstIP      netip.Addr
	SrcPort    uint16
	DstPort    uint16
	Protocol   Protocol
	Direction  Direction
	PacketSize int
}

const maxEvents = 1000

// localNets marks an address as "local" for direction determination:
// loopback, RFC 1918, IPv4 link-local, IPv6 loopback/unique-local/link-local.
var localNets = []netip.Prefix{
	netip.MustParsePrefix("127.0.0.0/8"),
	netip.MustParsePrefix("10.0.0.0/8"),
	netip.MustParsePrefix("172.16.0.0/12"),
	netip.MustParsePrefix("192.168.0.0/16"),
	netip.MustParsePrefix("169.254.0.0/16"),
	netip.MustParsePrefix("::1/128"),
	netip.MustParsePrefix("fc00::/7"),
	netip.MustParsePrefix("fe80::/10"),
}

// Engine holds the ordered rule set and its statistics.
type Engine struct {
	rules       []Rule
	stats       Stats
	events      []Event
	ruleCounter uint32
	enabled     bool
	now         func() time.Time
}

// NewEngine creates an enabled engine with no rules.
func NewEngine() *Engine {
	now := time.Now
	return &Engine{
		enabled: true,
		stats:   Stats{LastReset: now()},
		now:     now,
	}
}

// AddRule assigns the next rule id and inserts the rule before the first
// lower-priority rule, keeping insertion order within equal priorities.
func (e *Engine) AddRule(rule Rule) uint32 {
	e.ruleCounter++
	rule.ID = e.ruleCounter
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = e.now()
	}

	pos := len(e.rules)
	for i, existing := range e.rules {
		if existing.Priority < rule.Priority {
			pos = i
			break
		}
	}
	e.rules = append(e.rules, Rule{})
	copy(e.rules[pos+1:], e.rules[pos:])
	e.rules[pos] = rule

	e.refreshRuleCounts()
	return rule.ID
}

// RemoveRule deletes a rule by id.
func (e *Engine) RemoveRule(id uint32) bool {
	for i, rule := range e.rules {
		if rule.ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			e.refreshRuleCounts()
			return true
		}
	}
	return false
}

// EnableRule sets a rule's enabled flag.
func (e *Engine) EnableRule(id uint32) bool { return e.setEnabled(id, true) }

// DisableRule clears a rule's enabled flag.
func (e *Engine) DisableRule(id uint32) bool { return e.setEnabled(id, false) }

func (e *Engine) setEnabled(id uint32, enabled bool) bool {
	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules[i].Enabled = enabled
			e.refreshRuleCounts()
			return true
		}
	}
	return false
}

// Rule returns a copy of the rule with the given id.
func (e *Engine) Rule(id uint32) (Rule, bool) {
	for _, rule := range e.rules {
		if rule.ID == id {
			return rule, true
		}
	}
	return Rule{}, false
}

// Rules returns a copy of the rule set in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Stats returns the current counters.
func (e *Engine) Stats() Stats {
	return e.stats
}

// RecentEvents returns up to limit events, newest first.
func (e *Engine) RecentEvents(limit int) []Event {
	n := len(e.events)
	if limit > n {
		limit = n
	}
	out := make([]Event, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, e.events[i])
	}
	return out
}

// ClearEvents drops the event ring.
func (e *Engine) ClearEvents() {
	e.events = nil
}

// ResetStats reinitializes the counters.
func (e *Engine) ResetStats() {
	e.stats = Stats{LastReset: e.now()}
	e.refreshRuleCounts()
}

// SetEnabled toggles the whole engine.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled = enabled
}

// Enabled reports whether the engine evaluates packets.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// ProcessPacket evaluates the packet against the rule set in stored order
// and returns the verdict of the first terminating rule. Log matches record
// an event and continue. Unparseable packets and a disabled engine fail
// open.
func (e *Engine) ProcessPacket(pkt capture.PacketMeta) Action {
	if !e.enabled {
		return ActionAllow
	}

	e.stats.TotalProcessed++

	if !pkt.HasEndpoints() {
		return ActionAllow
	}

	srcIP, dstIP := pkt.SrcIP, pkt.DstIP
	srcPort, dstPort := pkt.SrcPort, pkt.DstPort

	proto := ProtocolAny
	switch pkt.Protocol {
	case capture.ProtoTCP:
		proto = ProtocolTCP
	case capture.ProtoUDP:
		proto = ProtocolUDP
	case capture.ProtoICMP:
		proto = ProtocolICMP
	}

	dir := DirectionInbound
	if isLocal(srcIP) {
		dir = DirectionOutbound
	}

	for i := range e.rules {
		rule := &e.rules[i]
		if !rule.Matches(srcIP, dstIP, srcPort, dstPort, proto, dir) {
			continue
		}

		now := e.now()
		rule.RecordMatch(now)
		e.stats.RulesMatched++
		e.pushEvent(Event{
			Timestamp:  now,
			RuleID:     rule.ID,
			RuleName:   rule.Name,
			Action:     rule.Action,
			SrcIP:      srcIP,
			DstIP:      dstIP,
			SrcPort:    srcPort,
			DstPort:    dstPort,
			Protocol:   proto,
			Direction:  dir,
			PacketSize: pkt.Length,
		})

		switch rule.Action {
		case ActionAllow:
			e.stats.Allowed++
			return ActionAllow
		case ActionBlock:
			e.stats.Blocked++
			return ActionBlock
		case ActionLogAndBlock:
			e.stats.Logged++
			e.stats.Blocked++
			return ActionLogAndBlock
		case ActionLog:
			e.stats.Logged++
			// Side effect only; evaluation continues.
		}
	}

	e.stats.Allowed++
	return ActionAllow
}

func isLocal(addr netip.Addr) bool {
	for _, prefix := range localNets {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

func (e *Engine) pushEvent(event Event) {
	e.events = append(e.events, event)
	if len(e.events) > maxEvents {
		e.events = e.events[len(e.events)-maxEvents:]
	}
}

func (e *Engine) refreshRuleCounts() {
	e.stats.ActiveRules = len(e.rules)
	enabled := 0
	for _, rule := range e.rules {
		if rule.Enabled {
			enabled++
		}
	}
	e.stats.EnabledRules = enabled
}

// ExportRules serializes the rule set.
func (e *Engine) ExportRules() ([]byte, error) {
	return json.MarshalIndent(e.rules, "", "  ")
}

// ImportRules appends rules from a prior export. Ids are re-assigned through
// the insertion path; a zero created_at is re-stamped.
func (e *Engine) ImportRules(data []byte) (int, error) {
	var imported []Rule
	if err := json.Unmarshal(data, &imported); err != nil {
		return 0, errors.Wrap(err, errors.KindRuleImport, "decoding rules")
	}
	for _, rule := range imported {
		e.AddRule(rule)
	}
	return len(imported), nil
}

// SetNow overrides the engine's clock. Test hook.
func (e *Engine) SetNow(f func() time.Time) {
	e.now = f
}
