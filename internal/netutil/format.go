// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package netutil holds small display helpers shared by the TUI and logs.
package netutil

import (
	"fmt"
	"strings"
)

// FormatBytes renders a byte count as B/KB/MB/GB/TB.
func FormatBytes(bytes uint64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	idx := 0
	for size >= 1024 && idx < len(units)-1 {
		size /= 1024
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%d %s", bytes, units[idx])
	}
	return fmt.Sprintf("%.2f %s", size, units[idx])
}

// FormatBandwidth renders a byte rate as bits per second.
func FormatBandwidth(bytesPerSec float64) string {
	units := []string{"bps", "Kbps", "Mbps", "Gbps", "Tbps"}
	rate := bytesPerSec * 8
	idx := 0
	for rate >= 1000 && idx < len(units)-1 {
		rate /= 1000
		idx++
	}
	if idx == 0 {
		return fmt.Sprintf("%.0f %s", rate, units[idx])
	}
	return fmt.Sprintf("%.2f %s", rate, units[idx])
}

// FormatDuration renders whole seconds as s/m/h/d.
func FormatDuration(seconds uint64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
	case seconds < 86400:
		return fmt.Sprintf("%dh %dm", seconds/3600, (seconds%3600)/60)
	default:
		return fmt.Sprintf("%dd %dh", seconds/86400, (seconds%86400)/3600)
	}
}

// Truncate shortens a string to max length with an ellipsis.
func Truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return "..."
	}
	return s[:max-3] + "..."
}

// FormatIP strips IPv6 brackets and abbreviates long addresses for narrow
// table columns.
func FormatIP(addr string) string {
	cleaned := strings.TrimSuffix(strings.TrimPrefix(addr, "["), "]")
	if strings.Contains(cleaned, ":") && len(cleaned) > 20 {
		return Truncate(cleaned, 20)
	}
	return cleaned
}
