package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorRed     = lipgloss.Color("#F38BA8")
	colorGreen   = lipgloss.Color("#A6E3A1")
	colorYellow  = lipgloss.Color("#F9E2AF")
	colorBlue    = lipgloss.Color("#89B4FA")
	colorMauve   = lipgloss.Color("#CBA6F7")
	colorGray    = lipgloss.Color("#6C7086")
	colorDimGray = lipgloss.Color("#45475A")
	colorWhite   = lipgloss.Color("#CDD6F4")
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBlue)

	dimStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	dividerStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)

	selectedStyle = lipgloss.NewStyle().
			Foreground(colorBlue).
			Bold(true)

	questionStyle = lipgloss.NewStyle().
			Foreground(colorWhite).
			Bold(true)

	recordingStyle = lipgloss.NewStyle().
			Foreground(colorRed).
			Bold(true)

	busyStyle = lipgloss.NewStyle().
			Foreground(colorMauve)

	readyStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	errorStyle = lipgloss.NewStyle().
			Foreground(colorRed)

	draftStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(colorYellow).
			Bold(true)

	footerDescStyle = lipgloss.NewStyle().
			Foreground(colorGray)

	levelOnStyle = lipgloss.NewStyle().
			Foreground(colorGreen)

	levelHotStyle = lipgloss.NewStyle().
			Foreground(colorYellow)

	levelOffStyle = lipgloss.NewStyle().
			Foreground(colorDimGray)
)
