package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/custodia-labs/contentsync/internal/core/domain"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

func printTitle(w io.Writer, title string) {
	fmt.Fprintln(w, titleStyle.Render(title))
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		value = mutedStyle.Render("-")
	}
	fmt.Fprintf(w, "  %s %s\n", labelStyle.Render(fmt.Sprintf("%-16s", label)), value)
}

// runLine renders one run on a single line.
func runLine(run domain.SyncRun) string {
	state := okStyle.Render("ok")
	if !run.Success {
		state = errStyle.Render("failed")
	}
	line := fmt.Sprintf("%s  %-7s %-6s updated=%d deleted=%d  %s",
		run.StartedAt.Local().Format(time.DateTime), run.Mode, state,
		run.Updated, run.Deleted, run.Duration().Round(time.Millisecond))
	if run.Error != "" {
		line += "  " + errStyle.Render(run.Error)
	}
	return line
}
