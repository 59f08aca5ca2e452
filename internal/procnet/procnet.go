// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package procnet reads socket tables and interface counters from the
// kernel's pseudo-filesystems. All functions are stateless; malformed lines
// are skipped rather than failing the whole read.
package procnet

import (
	"net/netip"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/blackjk83/netmon-tui/internal/errors"
)

// TCPState is the raw kernel socket state byte.
type TCPState uint8

// Kernel TCP states, /proc/net/tcp field [3].
const (
	StateEstablished TCPState = 0x01
	StateSynSent     TCPState = 0x02
	StateSynRecv     TCPState = 0x03
	StateFinWait1    TCPState = 0x04
	StateFinWait2    TCPState = 0x05
	StateTimeWait    TCPState = 0x06
	StateClose       TCPState = 0x07
	StateCloseWait   TCPState = 0x08
	StateLastAck     TCPState = 0x09
	StateListen      TCPState = 0x0A
	StateClosing     TCPState = 0x0B
)

func (s TCPState) String() string {
	switch s {
	case StateEstablished:
		return "ESTABLISHED"
	case StateSynSent:
		return "SYN_SENT"
	case StateSynRecv:
		return "SYN_RECV"
	case StateFinWait1:
		return "FIN_WAIT1"
	case StateFinWait2:
		return "FIN_WAIT2"
	case StateTimeWait:
		return "TIME_WAIT"
	case StateClose:
		return "CLOSE"
	case StateCloseWait:
		return "CLOSE_WAIT"
	case StateLastAck:
		return "LAST_ACK"
	case StateListen:
		return "LISTEN"
	case StateClosing:
		return "CLOSING"
	default:
		return "UNKNOWN(" + strconv.Itoa(int(s)) + ")"
	}
}

// SockEntry is one row of a socket table.
type SockEntry struct {
	Proto  string // "TCP" or "UDP"
	Local  netip.AddrPort
	Remote netip.AddrPort
	State  TCPState
	UID    uint32
	Inode  uint64
}

// InterfaceStats holds the raw counters under /sys/class/net/<if>/statistics.
type InterfaceStats struct {
	Name      string
	RxBytes   uint64
	TxBytes   uint64
	RxPackets uint64
	TxPackets uint64
	RxErrors  uint64
	TxErrors  uint64
	RxDropped uint64
	TxDropped uint64
}

// FS locates the kernel pseudo-filesystems. The zero value is not usable;
// use NewFS, or point the roots somewhere else in tests.
type FS struct {
	Proc string
	Sys  string
}

// NewFS returns the standard /proc and /sys/class/net roots.
func NewFS() FS {
	return FS{Proc: "/proc", Sys: "/sys/class/net"}
}

// Interfaces lists interface names sorted, skipping loopback and virtual
// ethernet devices.
func (fs FS) Interfaces() ([]string, error) {
	entries, err := os.ReadDir(fs.Sys)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindProcRead, "listing %s", fs.Sys)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "lo") || strings.HasPrefix(name, "veth") {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// InterfaceStats reads the per-interface statistics directory.
func (fs FS) InterfaceStats(name string) (InterfaceStats, error) {
	base := filepath.Join(fs.Sys, name, "statistics")
	stats := InterfaceStats{Name: name}

	for _, f := range []struct {
		file string
		dst  *uint64
	}{
		{"rx_bytes", &stats.RxBytes},
		{"tx_bytes", &stats.TxBytes},
		{"rx_packets", &stats.RxPackets},
		{"tx_packets", &stats.TxPackets},
		{"rx_errors", &stats.RxErrors},
		{"tx_errors", &stats.TxErrors},
		{"rx_dropped", &stats.RxDropped},
		{"tx_dropped", &stats.TxDropped},
	} {
		v, err := readCounter(filepath.Join(base, f.file))
		if err != nil {
			return InterfaceStats{}, err
		}
		*f.dst = v
	}
	return stats, nil
}

func readCounter(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindProcRead, "reading %s", path)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, errors.KindProcParse, "parsing %s", path)
	}
	return v, nil
}

// TCPConnections snapshots /proc/net/tcp.
func (fs FS) TCPConnections() ([]SockEntry, error) {
	return fs.readSocketTable(filepath.Join(fs.Proc, "net", "tcp"), "TCP", 0)
}

// UDPConnections snapshots /proc/net/udp. UDP sockets have no connection
// state; entries are synthesized with state LISTEN.
func (fs FS) UDPConnections() ([]SockEntry, error) {
	return fs.readSocketTable(filepath.Join(fs.Proc, "net", "udp"), "UDP", StateListen)
}

func (fs FS) readSocketTable(path, proto string, forceState TCPState) ([]SockEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.KindProcRead, "reading %s", path)
	}

	lines := strings.Split(string(data), "\n")
	var entries []SockEntry
	for i, line := range lines {
		if i == 0 {
			continue // header
		}
		entry, ok := ParseSocketLine(line)
		if !ok {
			continue
		}
		entry.Proto = proto
		if forceState != 0 {
			entry.State = forceState
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ParseSocketLine parses one whitespace-split record of a socket table:
// field [1] local address, [2] remote address, [3] state (hex byte),
// [7] UID (decimal), [9] inode (decimal).
func ParseSocketLine(line string) (SockEntry, bool) {
	fields := strings.Fields(line)
	if len(fields) < 10 {
		return SockEntry{}, false
	}

	local, ok := ParseHexAddr(fields[1])
	if !ok {
		return SockEntry{}, false
	}
	remote, ok := ParseHexAddr(fields[2])
	if !ok {
		return SockEntry{}, false
	}
	state, err := strconv.ParseUint(fields[3], 16, 8)
	if err != nil {
		return SockEntry{}, false
	}
	uid, err := strconv.ParseUint(fields[7], 10, 32)
	if err != nil {
		return SockEntry{}, false
	}
	inode, err := strconv.ParseUint(fields[9], 10, 64)
	if err != nil {
		return SockEntry{}, false
	}

	return SockEntry{
		Local:  local,
		Remote: remote,
		State:  TCPState(state),
		UID:    uint32(uid),
		Inode:  inode,
	}, true
}

// ParseHexAddr parses the procfs IIIIIIII:PPPP format. The IP octets are
// little-endian in the hex and must be reversed for display order; the port
// is big-endian.
func ParseHexAddr(s string) (netip.AddrPort, bool) {
	ipHex, portHex, ok := strings.Cut(s, ":")
	if !ok || len(ipHex) != 8 {
		return netip.AddrPort{}, false
	}

	var octets [4]byte
	for i := 0; i < 4; i++ {
		b, err := strconv.ParseUint(ipHex[i*2:i*2+2], 16, 8)
		if err != nil {
			return netip.AddrPort{}, false
		}
		// Reverse little-endian hex into display order.
		octets[3-i] = byte(b)
	}

	port, err := strconv.ParseUint(portHex, 16, 16)
	if err != nil {
		return netip.AddrPort{}, false
	}

	return netip.AddrPortFrom(netip.AddrFrom4(octets), uint16(port)), true
}
