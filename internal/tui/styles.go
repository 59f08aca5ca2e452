// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package tui

import "github.com/charmbracelet/lipgloss"

var (
	ColorDeep   = lipgloss.Color("24")  // dark blue
	ColorIce    = lipgloss.Color("195") // pale blue
	ColorAccent = lipgloss.Color("39")  // bright blue
	ColorWarn   = lipgloss.Color("214") // orange
	ColorCrit   = lipgloss.Color("196") // red
	ColorOK     = lipgloss.Color("42")  // green
	ColorDim    = lipgloss.Color("240") // grey

	StyleApp    = lipgloss.NewStyle().Padding(0, 1)
	StyleTopBar = lipgloss.NewStyle().MarginBottom(1)
	StyleTitle  = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	StyleCard   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorDeep).
			Padding(0, 1)

	StyleMenuKey        = lipgloss.NewStyle().Foreground(ColorAccent)
	StyleMenuItem       = lipgloss.NewStyle().Foreground(ColorDim).Padding(0, 1)
	StyleMenuItemActive = lipgloss.NewStyle().Foreground(ColorIce).Background(ColorDeep).Padding(0, 1)

	StyleLabel = lipgloss.NewStyle().Foreground(ColorDim)
	StyleValue = lipgloss.NewStyle().Foreground(ColorIce)
	StyleWarn  = lipgloss.NewStyle().Foreground(ColorWarn)
	StyleCrit  = lipgloss.NewStyle().Foreground(ColorCrit).Bold(true)
	StyleOK    = lipgloss.NewStyle().Foreground(ColorOK)
)

func severityStyle(severity string) lipgloss.Style {
	switch severity {
	case "WARN":
		return StyleWarn
	case "CRIT":
		return StyleCrit
	default:
		return StyleLabel
	}
}
