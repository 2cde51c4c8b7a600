package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/kass/civicmap/pkg/layer"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF79C6")).
			Background(lipgloss.Color("#282A36")).
			Padding(0, 1)

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	statStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#BD93F9")).
			Padding(0, 1)
)

// statsTable renders per-layer phase counters
func statsTable(rows map[string]layer.Stats, order []string) string {
	var b strings.Builder
	header := fmt.Sprintf("%-16s %7s %7s %8s %9s %8s %8s", "layer", "mounts", "toggles", "resyncs", "refreshes", "skipped", "swaps")
	b.WriteString(dimStyle.Render(header))
	for _, name := range order {
		s := rows[name]
		b.WriteString("\n")
		b.WriteString(fmt.Sprintf("%-16s %7d %7d %8d %9d %8d ", name, s.Mounts, s.Toggles, s.Resyncs, s.Refreshes, s.SkippedRefreshes))
		b.WriteString(statStyle.Render(fmt.Sprintf("%8d", s.IconSwaps)))
	}
	return boxStyle.Render(b.String())
}
