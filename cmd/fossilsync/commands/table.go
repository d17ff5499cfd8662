package commands

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/nhle/fossilsync/internal/theme"
)

// cellStyler picks the style of a body cell.
type cellStyler func(row, col int) lipgloss.Style

func renderTable(headers []string, rows [][]string, style cellStyler) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(theme.BorderStyle).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return theme.HeaderStyle
			}
			if style != nil {
				return style(row, col)
			}
			return theme.CellStyle
		})
	return t.String()
}
