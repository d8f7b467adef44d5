package ui

import "github.com/charmbracelet/lipgloss"

// Color palette: one green accent over grays.
const (
	ColorAccent   = "78"  // Headers, success, spinner
	ColorAccentLo = "29"  // Borders of active panels
	ColorWhite    = "255" // Values
	ColorGray     = "245" // Labels
	ColorDarkGray = "238" // Rules and table borders
	ColorRed      = "196" // Errors
	ColorYellow   = "220" // Warnings
)

// Styles holds the lipgloss styles used by the renderers and printers.
type Styles struct {
	Header  lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Dim     lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Active  lipgloss.Style

	Panel       lipgloss.Style
	TableBorder lipgloss.Style
	TableHeader lipgloss.Style
	Cell        lipgloss.Style
}

// DefaultStyles returns the colored styles.
func DefaultStyles() Styles {
	return Styles{
		Header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),
		Success: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorAccent)),
		Warning: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorYellow)),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorRed)),
		Dim:     lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		Label:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorGray)),
		Value:   lipgloss.NewStyle().Foreground(lipgloss.Color(ColorWhite)),
		Active:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(ColorAccentLo)).
			Padding(0, 1),
		TableBorder: lipgloss.NewStyle().Foreground(lipgloss.Color(ColorDarkGray)),
		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(ColorAccent)).Padding(0, 1),
		Cell:        lipgloss.NewStyle().Padding(0, 1),
	}
}

// NoColorStyles returns unstyled components. Cells keep their padding so
// tables stay aligned.
func NoColorStyles() Styles {
	return Styles{
		Header:      lipgloss.NewStyle(),
		Success:     lipgloss.NewStyle(),
		Warning:     lipgloss.NewStyle(),
		Error:       lipgloss.NewStyle(),
		Dim:         lipgloss.NewStyle(),
		Label:       lipgloss.NewStyle(),
		Value:       lipgloss.NewStyle(),
		Active:      lipgloss.NewStyle(),
		Panel:       lipgloss.NewStyle(),
		TableBorder: lipgloss.NewStyle(),
		TableHeader: lipgloss.NewStyle().Padding(0, 1),
		Cell:        lipgloss.NewStyle().Padding(0, 1),
	}
}

// GetStyles returns the styles for the color preference.
func GetStyles(noColor bool) Styles {
	if noColor {
		return NoColorStyles()
	}
	return DefaultStyles()
}
