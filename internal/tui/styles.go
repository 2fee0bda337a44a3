package tui

import "github.com/charmbracelet/lipgloss"

// Palette.
const (
	ColorHeader    = lipgloss.Color("39")
	ColorLabel     = lipgloss.Color("252")
	ColorValue     = lipgloss.Color("255")
	ColorMuted     = lipgloss.Color("246")
	ColorBorder    = lipgloss.Color("240")
	ColorHighlight = lipgloss.Color("229")
	ColorSelected  = lipgloss.Color("57")
	ColorSaving    = lipgloss.Color("42")
	ColorIncrease  = lipgloss.Color("214")
	ColorError     = lipgloss.Color("196")
)

// Icons.
const (
	IconArrowUp   = "↑"
	IconArrowDown = "↓"
	IconLocked    = "🔒"
	IconMissing   = "•"
)

//nolint:gochecknoglobals // Shared lipgloss styles.
var (
	headerStyle   = lipgloss.NewStyle().Foreground(ColorHeader).Bold(true)
	labelStyle    = lipgloss.NewStyle().Foreground(ColorLabel)
	valueStyle    = lipgloss.NewStyle().Foreground(ColorValue)
	mutedStyle    = lipgloss.NewStyle().Foreground(ColorMuted)
	savingStyle   = lipgloss.NewStyle().Foreground(ColorSaving).Bold(true)
	increaseStyle = lipgloss.NewStyle().Foreground(ColorIncrease)
	errorStyle    = lipgloss.NewStyle().Foreground(ColorError).Bold(true)
	cursorStyle   = lipgloss.NewStyle().Foreground(ColorHighlight).Background(ColorSelected)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
	activePanelStyle = panelStyle.BorderForeground(ColorHeader)
)
