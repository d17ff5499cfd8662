package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/fossilsync/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle renders table header cells.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue).
	Padding(0, 1)

// CellStyle is the base style of table body cells.
var CellStyle = lipgloss.NewStyle().Padding(0, 1)

// BorderStyle colors table borders.
var BorderStyle = lipgloss.NewStyle().Foreground(ColorBorder)

// ErrorStyle highlights failures in command output.
var ErrorStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorRed)

// HintStyle is used for remediation hints under an error.
var HintStyle = lipgloss.NewStyle().Foreground(ColorGray).Italic(true)

// SuccessStyle marks targets that synchronized cleanly.
var SuccessStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorGreen)

// StatusStyle returns a color-coded cell style for a task status.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case model.StatusPending:
		return CellStyle.Foreground(ColorBlue)
	case model.StatusCompleted:
		return CellStyle.Foreground(ColorGreen)
	default:
		return CellStyle.Foreground(ColorGray)
	}
}

// PriorityStyle returns a color-coded cell style for a task priority.
func PriorityStyle(p model.Priority) lipgloss.Style {
	base := CellStyle.Bold(true)

	switch p {
	case model.PriorityHigh:
		return base.Foreground(ColorRed)
	case model.PriorityMedium:
		return base.Foreground(ColorYellow)
	case model.PriorityLow:
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}
