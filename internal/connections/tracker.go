// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package connections tracks observed endpoint pairs, reconciling packet
// observations with kernel socket-table snapshots.
package connections

import (
	"net/netip"
	"sort"
	"time"

	"github.com/blackjk83/netmon-tui/internal/capture"
	"github.com/blackjk83/netmon-tui/internal/procnet"
	"github.com/blackjk83/netmon-tui/internal/protocols"
)

// State is the coarse UI-facing connection state.
type State int

const (
	StateUnknown State = iota
	StateEstablishing
	StateEstablished
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateEstablishing:
		return "ESTABLISHING"
	case StateEstablished:
		return "ESTABLISHED"
	case StateClosing:
		return "CLOSING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// FoldState maps a kernel TCP state onto the coarse state. Listening sockets
// count as established: they are live endpoints worth showing.
func FoldState(s procnet.TCPState) State {
	switch s {
	case procnet.StateEstablished, procnet.StateListen:
		return StateEstablished
	case procnet.StateSynSent, procnet.StateSynRecv:
		return StateEstablishing
	case procnet.StateFinWait1, procnet.StateFinWait2, procnet.StateTimeWait,
		procnet.StateCloseWait, procnet.StateLastAck, procnet.StateClosing:
		return StateClosing
	case procnet.StateClose:
		return StateClosed
	default:
		return StateUnknown
	}
}

// origin records which source created an entry. Proc reconciliation only
// removes proc-sourced entries so short-lived packet observations survive
// until the idle timeout.
type origin int

const (
	originPacket origin = iota
	originProc
)

// Info is one tracked connection.
type Info struct {
	Local       netip.AddrPort
	Remote      netip.AddrPort
	Protocol    protocols.Protocol
	State       State
	FirstSeen   time.Time
	LastSeen    time.Time
	BytesSent   uint64
	BytesRecv   uint64
	PacketsSent uint64
	PacketsRecv uint64

	// Reserved for external enrichment via the inode→pid mapping.
	ProcessID   uint32
	ProcessName string

	source origin
}

// TotalBytes is the transfer volume in both directions.
func (i Info) TotalBytes() uint64 {
	return i.BytesSent + i.BytesRecv
}

// Tracker maintains the keyed connection map.
type Tracker struct {
	active     map[string]*Info
	classifier *protocols.Classifier
	timeout    time.Duration
	maxConns   int
	isLocal    func(netip.Addr) bool
	now        func() time.Time
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithTimeout overrides the idle eviction timeout.
func WithTimeout(d time.Duration) Option {
	return func(t *Tracker) { t.timeout = d }
}

// WithMaxConnections overrides the active-set cap.
func WithMaxConnections(n int) Option {
	return func(t *Tracker) { t.maxConns = n }
}

// WithLocalFunc supplies the local-network predicate used to split
// sent/received accounting.
func WithLocalFunc(f func(netip.Addr) bool) Option {
	return func(t *Tracker) { t.isLocal = f }
}

// NewTracker creates a tracker sharing the given classifier.
func NewTracker(classifier *protocols.Classifier, opts ...Option) *Tracker {
	t := &Tracker{
		active:     make(map[string]*Info),
		classifier: classifier,
		timeout:    5 * time.Minute,
		maxConns:   1000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// UpdateFromProc reconciles the active set against a socket-table snapshot.
// Proc-sourced entries absent from the snapshot are dropped; packet-sourced
// entries are left for the idle timeout.
func (t *Tracker) UpdateFromProc(entries []procnet.SockEntry) {
	now := t.now()

	present := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		present[capture.PairKey(entry.Local, entry.Remote)] = struct{}{}
	}

	for key, info := range t.active {
		if info.source != originProc {
			continue
		}
		if _, ok := present[key]; !ok {
			delete(t.active, key)
		}
	}

	for _, entry := range entries {
		key := capture.PairKey(entry.Local, entry.Remote)
		transport := entry.Proto
		if transport == "" {
			transport = capture.ProtoTCP
		}
		// Zero-length dummies go through the counting path so per-protocol
		// packet counts reflect proc-only operation; byte counts are
		// unaffected.
		proto := t.classifier.Classify(capture.Synthetic(now, transport, entry.Local, entry.Remote))

		info, ok := t.active[key]
		if !ok {
			info = &Info{
				Local:     entry.Local,
				Remote:    entry.Remote,
				FirstSeen: now,
				source:    originProc,
			}
			t.active[key] = info
		}
		info.State = FoldState(entry.State)
		info.LastSeen = now
		info.Protocol = proto
	}

	t.evict(now)
}

// TrackPacket upserts the packet's endpoint pair. Bytes and packets are
// accounted as sent when the observed source endpoint is local, received
// when the destination is; with neither side local the traffic counts as
// sent.
func (t *Tracker) TrackPacket(pkt capture.PacketMeta) {
	if !pkt.HasEndpoints() || !pkt.HasPorts {
		return
	}

	now := t.now()
	src, dst := pkt.Src(), pkt.Dst()
	key := capture.PairKey(src, dst)
	proto := t.classifier.Identify(pkt)

	info, ok := t.active[key]
	if !ok {
		info = &Info{
			Local:     src,
			Remote:    dst,
			State:     StateEstablished,
			FirstSeen: now,
			source:    originPacket,
		}
		t.active[key] = info
	}

	if t.isLocal != nil && !t.isLocal(src.Addr()) && t.isLocal(dst.Addr()) {
		info.PacketsRecv++
		info.BytesRecv += uint64(pkt.Length)
	} else {
		info.PacketsSent++
		info.BytesSent += uint64(pkt.Length)
	}
	info.LastSeen = now
	info.Protocol = proto

	t.evict(now)
}

// evict drops idle entries, then trims the oldest entries over the cap.
func (t *Tracker) evict(now time.Time) {
	for key, info := range t.active {
		if now.Sub(info.LastSeen) >= t.timeout {
			delete(t.active, key)
		}
	}

	if len(t.active) <= t.maxConns {
		return
	}

	type aged struct {
		key      string
		lastSeen time.Time
	}
	entries := make([]aged, 0, len(t.active))
	for key, info := range t.active {
		entries = append(entries, aged{key, info.LastSeen})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastSeen.Before(entries[j].lastSeen)
	})
	for _, entry := range entries[:len(t.active)-t.maxConns] {
		delete(t.active, entry.key)
	}
}

// Active returns a snapshot copy of the active connections keyed by pair.
func (t *Tracker) Active() map[string]Info {
	out := make(map[string]Info, len(t.active))
	for key, info := range t.active {
		out[key] = *info
	}
	return out
}

// Count returns the number of active connections.
func (t *Tracker) Count() int {
	return len(t.active)
}

// ByProtocol returns the connections classified as the given protocol.
func (t *Tracker) ByProtocol(proto protocols.Protocol) []Info {
	var out []Info
	for _, info := range t.active {
		if info.Protocol == proto {
			out = append(out, *info)
		}
	}
	return out
}

// ByState returns the connections in the given coarse state.
func (t *Tracker) ByState(state State) []Info {
	var out []Info
	for _, info := range t.active {
		if info.State == state {
			out = append(out, *info)
		}
	}
	return out
}

// Top returns up to limit connections ordered by total transfer.
func (t *Tracker) Top(limit int) []Info {
	out := make([]Info, 0, len(t.active))
	for _, info := range t.active {
		out = append(out, *info)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].TotalBytes() > out[j].TotalBytes()
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// TotalBytes returns the sent and received byte totals over all connections.
func (t *Tracker) TotalBytes() (sent, received uint64) {
	for _, info := range t.active {
		sent += info.BytesSent
		received += info.BytesRecv
	}
	return sent, received
}

// SetNow overrides the tracker's clock. Test hook.
func (t *Tracker) SetNow(f func() time.Time) {
	t.now = f
}
