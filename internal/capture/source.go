// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package capture

import (
	"net"
	"os"
	"time"

	"github.com/mdlayher/packet"
	"golang.org/x/sys/unix"

	"github.com/blackjk83/netmon-tui/internal/errors"
	"github.com/blackjk83/netmon-tui/internal/logging"
)

// Source yields parsed frames. Next returns (meta, true, nil) for a frame,
// (zero, false, nil) when nothing arrived within the poll budget, and an
// error on capture failure.
type Source interface {
	Next() (PacketMeta, bool, error)
	Stats() Stats
	Close() error
}

// Stats tracks what a source has seen since it was opened.
type Stats struct {
	PacketsCaptured uint64
	BytesCaptured   uint64
	Interface       string
}

// AFPacketSource reads raw frames from an AF_PACKET socket.
type AFPacketSource struct {
	conn    *packet.Conn
	iface   string
	buf     []byte
	timeout time.Duration
	stats   Stats
	logger  *logging.Logger
}

// Options tunes an AF_PACKET source.
type Options struct {
	BufferSize int
	Timeout    time.Duration
}

// Open attaches to the named interface. The typical failure is a missing
// CAP_NET_RAW capability; that surfaces as a KindCapture error whose message
// tells the operator how to grant it.
func Open(iface string, opts Options, logger *logging.Logger) (*AFPacketSource, error) {
	if logger == nil {
		logger = logging.New(logging.DefaultConfig())
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		names := interfaceNames()
		return nil, errors.InterfaceNotFound(iface, names)
	}

	conn, err := packet.Listen(ifi, packet.Raw, unix.ETH_P_ALL, nil)
	if err != nil {
		if os.IsPermission(err) {
			bin, _ := os.Executable()
			if bin == "" {
				bin = "netmon-tui"
			}
			return nil, errors.CaptureUnavailable(bin)
		}
		return nil, errors.Wrapf(err, errors.KindDevice, "opening capture on %s", iface)
	}

	bufSize := opts.BufferSize
	if bufSize <= 0 {
		bufSize = 65536
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = time.Second
	}

	logger.Info("Capture opened", "interface", iface, "buffer", bufSize)
	return &AFPacketSource{
		conn:    conn,
		iface:   iface,
		buf:     make([]byte, bufSize),
		timeout: timeout,
		stats:   Stats{Interface: iface},
		logger:  logger,
	}, nil
}

// Next polls for one frame within the source's timeout.
func (s *AFPacketSource) Next() (PacketMeta, bool, error) {
	if err := s.conn.SetReadDeadline(time.Now().Add(s.timeout)); err != nil {
		return PacketMeta{}, false, errors.Wrap(err, errors.KindCapture, "setting read deadline")
	}

	n, _, err := s.conn.ReadFrom(s.buf)
	if err != nil {
		if isTimeout(err) {
			return PacketMeta{}, false, nil
		}
		return PacketMeta{}, false, errors.Wrap(err, errors.KindCapture, "reading frame")
	}

	s.stats.PacketsCaptured++
	s.stats.BytesCaptured += uint64(n)

	data := make([]byte, n)
	copy(data, s.buf[:n])
	return Parse(data, time.Now()), true, nil
}

// Stats returns the counters accumulated so far.
func (s *AFPacketSource) Stats() Stats {
	return s.stats
}

// Close releases the socket.
func (s *AFPacketSource) Close() error {
	return s.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}

func interfaceNames() []string {
	ifis, err := net.Interfaces()
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(ifis))
	for _, ifi := range ifis {
		names = append(names, ifi.Name)
	}
	return names
}
