// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package protocols

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/blackjk83/netmon-tui/internal/capture"
)

func tcpPacket(srcPort, dstPort uint16, length int) capture.PacketMeta {
	return capture.PacketMeta{
		Timestamp: time.Now(),
		Length:    length,
		Protocol:  capture.ProtoTCP,
		SrcPort:   srcPort,
		DstPort:   dstPort,
		HasPorts:  true,
	}
}

func TestClassifyWellKnownPort(t *testing.T) {
	c := NewClassifier()

	proto := c.Classify(tcpPacket(54321, 443, 512))
	assert.Equal(t, HTTPS, proto)

	stats := c.Stats()
	assert.Equal(t, uint64(1), stats[HTTPS].PacketCount)
	assert.Equal(t, uint64(512), stats[HTTPS].ByteCount)
}

func TestClassifySourcePortFallback(t *testing.T) {
	c := NewClassifier()

	// Response traffic: well-known port on the source side.
	assert.Equal(t, HTTP, c.Identify(tcpPacket(80, 54321, 100)))
	assert.Equal(t, SSH, c.Identify(tcpPacket(22, 50000, 100)))
}

func TestClassifyPortQualified(t *testing.T) {
	c := NewClassifier()

	assert.Equal(t, TCP(9999), c.Identify(tcpPacket(50000, 9999, 100)))

	udp := capture.PacketMeta{Protocol: capture.ProtoUDP, SrcPort: 40000, DstPort: 19132, HasPorts: true}
	assert.Equal(t, UDP(19132), c.Identify(udp))
}

func TestClassifyICMPAndUnknown(t *testing.T) {
	c := NewClassifier()

	assert.Equal(t, ICMP, c.Identify(capture.PacketMeta{Protocol: capture.ProtoICMP}))
	assert.Equal(t, Unknown, c.Identify(capture.PacketMeta{Protocol: "IPv6"}))
	assert.Equal(t, Unknown, c.Identify(capture.PacketMeta{Protocol: capture.ProtoTCP}))
}

func TestClassifyDeterministic(t *testing.T) {
	c := NewClassifier()
	pkt := tcpPacket(12345, 8080, 64)

	first := c.Identify(pkt)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, c.Identify(pkt))
	}
}

func TestZeroLengthPacketDoesNotAffectBytes(t *testing.T) {
	c := NewClassifier()

	c.Classify(tcpPacket(50000, 443, 0))
	assert.Equal(t, uint64(0), c.Stats()[HTTPS].ByteCount)
	assert.Equal(t, uint64(1), c.Stats()[HTTPS].PacketCount)
}

func TestTopAndTotals(t *testing.T) {
	c := NewClassifier()
	for i := 0; i < 5; i++ {
		c.Classify(tcpPacket(50000, 80, 100))
	}
	for i := 0; i < 3; i++ {
		c.Classify(tcpPacket(50000, 22, 50))
	}

	top := c.Top(1)
	assert.Len(t, top, 1)
	assert.Equal(t, HTTP, top[0].Protocol)

	assert.Equal(t, uint64(8), c.TotalPackets())
	assert.Equal(t, uint64(650), c.TotalBytes())

	c.Reset()
	assert.Zero(t, c.TotalPackets())
}

func TestProtocolProperties(t *testing.T) {
	assert.True(t, HTTPS.Encrypted())
	assert.True(t, SSH.Encrypted())
	assert.True(t, POP3.Encrypted())
	assert.True(t, IMAP.Encrypted())
	assert.False(t, HTTP.Encrypted())
	assert.False(t, DNS.Encrypted())

	port, ok := HTTPS.DefaultPort()
	assert.True(t, ok)
	assert.Equal(t, uint16(443), port)

	_, ok = Unknown.DefaultPort()
	assert.False(t, ok)

	assert.Equal(t, "TCP:9999", TCP(9999).String())
	assert.Equal(t, "HTTPS", HTTPS.String())
}
