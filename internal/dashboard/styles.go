package dashboard

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/snapdash/internal/snapper"
)

// MinTableWidth is the minimum character width for the table pane.
const MinTableWidth = 48

// CursorMarker is the prefix shown on the highlighted table row.
const CursorMarker = "▸ "

// SelectMarker flags a row in the multi-select set.
const SelectMarker = "●"

// Snapshot type colors: single=default, pre=yellow, post=blue.
var typeColors = map[snapper.Type]lipgloss.AdaptiveColor{
	snapper.TypePre:  {Light: "3", Dark: "11"},
	snapper.TypePost: {Light: "4", Dark: "12"},
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	headerStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "1", Dark: "9"})
	mutedText = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "240", Dark: "245"})
	busyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.AdaptiveColor{Light: "3", Dark: "11"})
)

// TypeBadge returns the snapshot type styled by kind.
func TypeBadge(t snapper.Type) string {
	if c, ok := typeColors[t]; ok {
		return lipgloss.NewStyle().Foreground(c).Render(string(t))
	}
	return string(t)
}

// FocusedBorder returns a lipgloss style with an accent-colored rounded border.
func FocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "4", Dark: "12"})
}

// UnfocusedBorder returns a lipgloss style with a dim rounded border.
func UnfocusedBorder() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.AdaptiveColor{Light: "240", Dark: "240"})
}

// PaneWidths calculates the table and detail pane widths from a total
// width. The table gets 2/3 (minimum MinTableWidth), the detail pane
// the rest.
func PaneWidths(totalWidth int) (table, detail int) {
	if totalWidth <= 0 {
		return 0, 0
	}
	table = totalWidth * 2 / 3
	if table < MinTableWidth {
		table = MinTableWidth
	}
	detail = totalWidth - table
	if detail < 0 {
		detail = 0
	}
	return table, detail
}
