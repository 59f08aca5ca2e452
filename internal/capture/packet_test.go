// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildFrame(t *testing.T, l4 gopacket.SerializableLayer, proto layers.IPProtocol) []byte {
	t.Helper()

	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: proto,
		SrcIP:    net.IPv4(192, 168, 1, 10),
		DstIP:    net.IPv4(10, 0, 0, 1),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}

	switch l4 := l4.(type) {
	case *layers.TCP:
		require.NoError(t, l4.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, l4, gopacket.Payload([]byte("hello"))))
	case *layers.UDP:
		require.NoError(t, l4.SetNetworkLayerForChecksum(ip))
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, l4, gopacket.Payload([]byte("hello"))))
	default:
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, l4))
	}
	return buf.Bytes()
}

func TestParseTCP(t *testing.T) {
	tcp := &layers.TCP{SrcPort: 54321, DstPort: 443, SYN: true}
	data := buildFrame(t, tcp, layers.IPProtocolTCP)

	meta := Parse(data, time.Now())

	assert.Equal(t, ProtoTCP, meta.Protocol)
	assert.Equal(t, netip.MustParseAddr("192.168.1.10"), meta.SrcIP)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), meta.DstIP)
	assert.Equal(t, uint16(54321), meta.SrcPort)
	assert.Equal(t, uint16(443), meta.DstPort)
	assert.True(t, meta.HasPorts)
	assert.True(t, meta.HasEndpoints())
	assert.Equal(t, len(data), meta.Length)
}

func TestParseUDP(t *testing.T) {
	udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
	data := buildFrame(t, udp, layers.IPProtocolUDP)

	meta := Parse(data, time.Now())

	assert.Equal(t, ProtoUDP, meta.Protocol)
	assert.Equal(t, uint16(53), meta.DstPort)
	assert.True(t, meta.HasEndpoints())
}

func TestParseICMP(t *testing.T) {
	icmp := &layers.ICMPv4{TypeCode: layers.CreateICMPv4TypeCode(layers.ICMPv4TypeEchoRequest, 0)}
	data := buildFrame(t, icmp, layers.IPProtocolICMPv4)

	meta := Parse(data, time.Now())

	assert.Equal(t, ProtoICMP, meta.Protocol)
	assert.True(t, meta.HasEndpoints())
	assert.False(t, meta.HasPorts)
}

func TestParseIPv6HasNoEndpoints(t *testing.T) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x01},
		DstMAC:       net.HardwareAddr{0x02, 0x00, 0x00, 0x00, 0x00, 0x02},
		EthernetType: layers.EthernetTypeIPv6,
	}
	ip6 := &layers.IPv6{
		Version:    6,
		HopLimit:   64,
		NextHeader: layers.IPProtocolNoNextHeader,
		SrcIP:      net.ParseIP("fe80::1"),
		DstIP:      net.ParseIP("fe80::2"),
	}
	buf := gopacket.NewSerializeBuffer()
	require.NoError(t, gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, eth, ip6))

	meta := Parse(buf.Bytes(), time.Now())

	assert.Equal(t, "IPv6", meta.Protocol)
	assert.False(t, meta.HasEndpoints())
	assert.Equal(t, len(buf.Bytes()), meta.Length)
}

func TestParseGarbage(t *testing.T) {
	meta := Parse([]byte{0x01, 0x02}, time.Now())
	assert.False(t, meta.HasEndpoints())
	assert.Equal(t, 2, meta.Length)
}

func TestSynthetic(t *testing.T) {
	now := time.Now()
	src := netip.MustParseAddrPort("127.0.0.1:5432")
	dst := netip.MustParseAddrPort("127.0.0.1:48000")

	meta := Synthetic(now, ProtoTCP, src, dst)

	assert.Zero(t, meta.Length)
	assert.Equal(t, ProtoTCP, meta.Protocol)
	assert.Equal(t, src, meta.Src())
	assert.Equal(t, dst, meta.Dst())
}
