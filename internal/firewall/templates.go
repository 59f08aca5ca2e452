// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package firewall

import "net/netip"

// Rule templates for common scenarios.

// AllowLocalhost permits all loopback traffic.
func AllowLocalhost() Rule {
	lo := netip.MustParseAddr("127.0.0.1")
	return NewRule("Allow Localhost", ActionAllow, DirectionBidirectional, ProtocolAny).
		WithSourceIPs(lo).
		WithDestinationIPs(lo).
		WithDescription("Allow all localhost traffic").
		WithPriority(255)
}

// AllowSSH permits inbound SSH.
func AllowSSH() Rule {
	return NewRule("Allow SSH", ActionAllow, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(22).
		WithDescription("Allow SSH connections").
		WithPriority(250)
}

// AllowHTTPHTTPS permits inbound web traffic.
func AllowHTTPHTTPS() Rule {
	return NewRule("Allow HTTP/HTTPS", ActionAllow, DirectionInbound, ProtocolTCP).
		WithDestinationPorts(80, 443).
		WithDescription("Allow HTTP and HTTPS connections").
		WithPriority(240)
}

// BlockSuspiciousPorts logs and blocks commonly attacked service ports.
func BlockSuspiciousPorts() Rule {
	return NewRule("Block Suspicious Ports", ActionLogAndBlock, DirectionBidirectional, ProtocolAny).
		WithDestinationPorts(
			1433, 1521, 3306, 5432, // database ports
			135, 139, 445, // Windows SMB
			23, 21, // Telnet, FTP
		).
		WithDescription("Block commonly attacked ports").
		WithPriority(220)
}

// BlockAllIncoming gives every inbound packet a Block verdict.
func BlockAllIncoming() Rule {
	return NewRule("Block All Incoming", ActionBlock, DirectionInbound, ProtocolAny).
		WithDescription("Block all incoming connections").
		WithPriority(200)
}

// LogAllConnections records everything at the lowest priority.
func LogAllConnections() Rule {
	return NewRule("Log All Connections", ActionLog, DirectionBidirectional, ProtocolAny).
		WithDescription("Log all network connections for monitoring").
		WithPriority(1)
}

// LoadDefaultRules installs the standard rule set.
func (e *Engine) LoadDefaultRules() {
	e.AddRule(AllowLocalhost())
	e.AddRule(AllowSSH())
	e.AddRule(AllowHTTPHTTPS())
	e.AddRule(BlockSuspiciousPorts())
	e.AddRule(LogAllConnections())
}
