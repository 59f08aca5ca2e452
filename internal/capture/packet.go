// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package capture turns a link-layer source into a stream of PacketMeta
// values: the L3/L4 metadata the rest of the pipeline consumes.
package capture

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
)

// Transport tags carried by PacketMeta. Anything the parser cannot reduce to
// one of the three first-class protocols keeps a descriptive string instead.
const (
	ProtoTCP  = "TCP"
	ProtoUDP  = "UDP"
	ProtoICMP = "ICMP"
)

// PacketMeta is an observed frame reduced to the metadata the analysis
// pipeline needs. It is immutable once produced.
type PacketMeta struct {
	Timestamp time.Time
	Length    int
	Protocol  string
	SrcIP     netip.Addr // zero value when not parsed
	DstIP     netip.Addr
	SrcPort   uint16 // 0 when absent
	DstPort   uint16
	HasPorts  bool
}

// HasEndpoints reports whether both IP endpoints were parsed.
func (p PacketMeta) HasEndpoints() bool {
	return p.SrcIP.IsValid() && p.DstIP.IsValid()
}

// Src returns the source endpoint as addr:port.
func (p PacketMeta) Src() netip.AddrPort {
	return netip.AddrPortFrom(p.SrcIP, p.SrcPort)
}

// Dst returns the destination endpoint as addr:port.
func (p PacketMeta) Dst() netip.AddrPort {
	return netip.AddrPortFrom(p.DstIP, p.DstPort)
}

// Synthetic builds a zero-length PacketMeta from a socket-table entry so the
// flow and firewall paths keep working without live capture.
func Synthetic(now time.Time, proto string, src, dst netip.AddrPort) PacketMeta {
	return PacketMeta{
		Timestamp: now,
		Length:    0,
		Protocol:  proto,
		SrcIP:     src.Addr(),
		DstIP:     dst.Addr(),
		SrcPort:   src.Port(),
		DstPort:   dst.Port(),
		HasPorts:  true,
	}
}

// Parse decodes a raw frame into PacketMeta. Ethernet → IPv4 → TCP/UDP
// extracts the four-tuple; other IPv4 payloads (ICMP included) keep the
// addresses without ports; IPv6, other EtherTypes and undecodable frames keep
// a descriptive protocol tag with the address fields absent. Length is always
// the original frame length.
func Parse(data []byte, ts time.Time) PacketMeta {
	meta := PacketMeta{
		Timestamp: ts,
		Length:    len(data),
		Protocol:  "Unknown",
	}

	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	ethLayer := pkt.Layer(layers.LayerTypeEthernet)
	if ethLayer == nil {
		return meta
	}
	eth := ethLayer.(*layers.Ethernet)

	switch eth.EthernetType {
	case layers.EthernetTypeIPv4:
		ipLayer := pkt.Layer(layers.LayerTypeIPv4)
		if ipLayer == nil {
			meta.Protocol = "IPv4"
			return meta
		}
		ip := ipLayer.(*layers.IPv4)
		src, _ := netip.AddrFromSlice(ip.SrcIP.To4())
		dst, _ := netip.AddrFromSlice(ip.DstIP.To4())
		meta.SrcIP = src
		meta.DstIP = dst

		switch ip.Protocol {
		case layers.IPProtocolTCP:
			if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
				tcp := tcpLayer.(*layers.TCP)
				meta.Protocol = ProtoTCP
				meta.SrcPort = uint16(tcp.SrcPort)
				meta.DstPort = uint16(tcp.DstPort)
				meta.HasPorts = true
				return meta
			}
		case layers.IPProtocolUDP:
			if udpLayer := pkt.Layer(layers.LayerTypeUDP); udpLayer != nil {
				udp := udpLayer.(*layers.UDP)
				meta.Protocol = ProtoUDP
				meta.SrcPort = uint16(udp.SrcPort)
				meta.DstPort = uint16(udp.DstPort)
				meta.HasPorts = true
				return meta
			}
		case layers.IPProtocolICMPv4:
			meta.Protocol = ProtoICMP
			return meta
		}
		meta.Protocol = fmt.Sprintf("IPv4-%s", ip.Protocol)
		return meta

	case layers.EthernetTypeIPv6:
		meta.Protocol = "IPv6"
		meta.SrcIP = netip.Addr{}
		meta.DstIP = netip.Addr{}
		return meta

	default:
		meta.Protocol = fmt.Sprintf("Ethernet-%s", eth.EthernetType)
		return meta
	}
}
