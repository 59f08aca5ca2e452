// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package protocols maps observed packets to application protocols using the
// classic well-known-port table and keeps per-protocol traffic counters.
package protocols

import (
	"fmt"
	"sort"

	"github.com/blackjk83/netmon-tui/internal/capture"
)

// Kind enumerates the protocol families the classifier can name.
type Kind int

const (
	KindUnknown Kind = iota
	KindHTTP
	KindHTTPS
	KindSSH
	KindDNS
	KindFTP
	KindSMTP
	KindPOP3
	KindIMAP
	KindTelnet
	KindICMP
	KindTCP // port-qualified
	KindUDP // port-qualified
)

// Protocol is a classified protocol. TCP and UDP kinds carry the observed
// port; every other kind leaves Port zero. The value is comparable and is
// used as a map key throughout the pipeline.
type Protocol struct {
	Kind Kind
	Port uint16
}

// Named protocol values.
var (
	HTTP    = Protocol{Kind: KindHTTP}
	HTTPS   = Protocol{Kind: KindHTTPS}
	SSH     = Protocol{Kind: KindSSH}
	DNS     = Protocol{Kind: KindDNS}
	FTP     = Protocol{Kind: KindFTP}
	SMTP    = Protocol{Kind: KindSMTP}
	POP3    = Protocol{Kind: KindPOP3}
	IMAP    = Protocol{Kind: KindIMAP}
	Telnet  = Protocol{Kind: KindTelnet}
	ICMP    = Protocol{Kind: KindICMP}
	Unknown = Protocol{Kind: KindUnknown}
)

// TCP returns the port-qualified TCP protocol.
func TCP(port uint16) Protocol { return Protocol{Kind: KindTCP, Port: port} }

// UDP returns the port-qualified UDP protocol.
func UDP(port uint16) Protocol { return Protocol{Kind: KindUDP, Port: port} }

func (p Protocol) String() string {
	switch p.Kind {
	case KindHTTP:
		return "HTTP"
	case KindHTTPS:
		return "HTTPS"
	case KindSSH:
		return "SSH"
	case KindDNS:
		return "DNS"
	case KindFTP:
		return "FTP"
	case KindSMTP:
		return "SMTP"
	case KindPOP3:
		return "POP3"
	case KindIMAP:
		return "IMAP"
	case KindTelnet:
		return "TELNET"
	case KindICMP:
		return "ICMP"
	case KindTCP:
		return fmt.Sprintf("TCP:%d", p.Port)
	case KindUDP:
		return fmt.Sprintf("UDP:%d", p.Port)
	default:
		return "UNKNOWN"
	}
}

// Description returns the protocol's long name.
func (p Protocol) Description() string {
	switch p.Kind {
	case KindHTTP:
		return "Hypertext Transfer Protocol"
	case KindHTTPS:
		return "HTTP Secure (TLS/SSL)"
	case KindSSH:
		return "Secure Shell"
	case KindDNS:
		return "Domain Name System"
	case KindFTP:
		return "File Transfer Protocol"
	case KindSMTP:
		return "Simple Mail Transfer Protocol"
	case KindPOP3:
		return "Post Office Protocol v3"
	case KindIMAP:
		return "Internet Message Access Protocol"
	case KindTelnet:
		return "Telnet Protocol"
	case KindICMP:
		return "Internet Control Message Protocol"
	case KindTCP:
		return fmt.Sprintf("TCP (port %d)", p.Port)
	case KindUDP:
		return fmt.Sprintf("UDP (port %d)", p.Port)
	default:
		return "Unknown Protocol"
	}
}

// Encrypted reports whether traffic for this protocol is encrypted on the
// wire. POP3 and IMAP count via their TLS variants on 995/993.
func (p Protocol) Encrypted() bool {
	switch p.Kind {
	case KindHTTPS, KindSSH, KindPOP3, KindIMAP:
		return true
	default:
		return false
	}
}

// DefaultPort returns the protocol's conventional port, if it has one.
func (p Protocol) DefaultPort() (uint16, bool) {
	switch p.Kind {
	case KindHTTP:
		return 80, true
	case KindHTTPS:
		return 443, true
	case KindSSH:
		return 22, true
	case KindDNS:
		return 53, true
	case KindFTP:
		return 21, true
	case KindSMTP:
		return 25, true
	case KindPOP3:
		return 110, true
	case KindIMAP:
		return 143, true
	case KindTelnet:
		return 23, true
	case KindTCP, KindUDP:
		return p.Port, true
	default:
		return 0, false
	}
}

// wellKnownPorts is the authoritative port table.
var wellKnownPorts = map[uint16]Protocol{
	80:   HTTP,
	8080: HTTP,
	443:  HTTPS,
	8443: HTTPS,
	22:   SSH,
	53:   DNS,
	21:   FTP,
	20:   FTP,
	25:   SMTP,
	587:  SMTP,
	110:  POP3,
	995:  POP3,
	143:  IMAP,
	993:  IMAP,
	23:   Telnet,
}

// Info is the accumulated record for one protocol.
type Info struct {
	Protocol    Protocol
	PacketCount uint64
	ByteCount   uint64
}

// Classifier classifies packets and accumulates per-protocol counters.
type Classifier struct {
	stats map[Protocol]*Info
}

// NewClassifier creates an empty classifier.
func NewClassifier() *Classifier {
	return &Classifier{stats: make(map[Protocol]*Info)}
}

// Identify maps a packet to a protocol without touching the counters.
// Destination port wins over source port; port-qualified TCP/UDP fall back to
// whichever port is present, preferring destination.
func (c *Classifier) Identify(pkt capture.PacketMeta) Protocol {
	switch pkt.Protocol {
	case capture.ProtoICMP:
		return ICMP
	case capture.ProtoTCP, capture.ProtoUDP:
		if p, ok := wellKnownPorts[pkt.DstPort]; ok && pkt.DstPort != 0 {
			return p
		}
		if p, ok := wellKnownPorts[pkt.SrcPort]; ok && pkt.SrcPort != 0 {
			return p
		}
		port := pkt.DstPort
		if port == 0 {
			port = pkt.SrcPort
		}
		if port == 0 {
			return Unknown
		}
		if pkt.Protocol == capture.ProtoTCP {
			return TCP(port)
		}
		return UDP(port)
	default:
		return Unknown
	}
}

// Classify identifies a packet and updates that protocol's counters.
func (c *Classifier) Classify(pkt capture.PacketMeta) Protocol {
	proto := c.Identify(pkt)

	info, ok := c.stats[proto]
	if !ok {
		info = &Info{Protocol: proto}
		c.stats[proto] = info
	}
	info.PacketCount++
	info.ByteCount += uint64(pkt.Length)

	return proto
}

// Stats returns a copy of the per-protocol records.
func (c *Classifier) Stats() map[Protocol]Info {
	out := make(map[Protocol]Info, len(c.stats))
	for proto, info := range c.stats {
		out[proto] = *info
	}
	return out
}

// Top returns up to limit protocols ordered by packet count.
func (c *Classifier) Top(limit int) []Info {
	infos := make([]Info, 0, len(c.stats))
	for _, info := range c.stats {
		infos = append(infos, *info)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].PacketCount != infos[j].PacketCount {
			return infos[i].PacketCount > infos[j].PacketCount
		}
		return infos[i].Protocol.String() < infos[j].Protocol.String()
	})
	if len(infos) > limit {
		infos = infos[:limit]
	}
	return infos
}

// TotalPackets sums packet counts over all protocols.
func (c *Classifier) TotalPackets() uint64 {
	var total uint64
	for _, info := range c.stats {
		total += info.PacketCount
	}
	return total
}

// TotalBytes sums byte counts over all protocols.
func (c *Classifier) TotalBytes() uint64 {
	var total uint64
	for _, info := range c.stats {
		total += info.ByteCount
	}
	return total
}

// Reset clears all counters.
func (c *Classifier) Reset() {
	c.stats = make(map[Protocol]*Info)
}
