package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/haskel/cubetime/internal/average"
	"github.com/haskel/cubetime/internal/solve"
)

// rows of chrome around the time list
const chromeHeight = 12

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	sections := []string{
		m.renderTitleBar(),
		m.renderTimeList(),
		m.renderDisplayed(),
	}

	if m.err != nil {
		sections = append(sections, errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
	}

	sections = append(sections, m.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) visibleRows() int {
	return max(m.height-chromeHeight, 3)
}

func (m Model) renderTitleBar() string {
	title := titleStyle.Render("CUBETIME · " + m.session.Name)
	if m.selectMode {
		title += markedStyle.Render("  [select]")
	}

	help := helpStyle.Render("q:quit ↑↓:move enter:select m:select-mode space:mark d:delete c:clear t:add")

	spacing := m.width - lipgloss.Width(title) - lipgloss.Width(help) - 2
	if spacing < 1 {
		spacing = 1
	}

	return fmt.Sprintf("%s%s%s", title, strings.Repeat(" ", spacing), help)
}

func (m Model) renderTimeList() string {
	var lines []string

	header := fmt.Sprintf("  %4s  %-18s  %s", "#", "AVERAGE", "SOLVES")
	lines = append(lines, tableHeaderStyle.Render(header))

	if len(m.rows) == 0 {
		lines = append(lines, helpStyle.Render("  no solves yet, press t to add one"))
		return strings.Join(lines, "\n")
	}

	start := min(m.offset, len(m.rows))
	end := min(start+m.visibleRows(), len(m.rows))

	for i := start; i < end; i++ {
		r := m.rows[i]

		prefix := "  "
		if i == m.cursor {
			prefix = cursorStyle.Render("> ")
		}
		if m.selectMode {
			if m.state.IsMarked(r.snap.ID) {
				prefix += markedStyle.Render("[x] ")
			} else {
				prefix += "[ ] "
			}
		}

		label := fmt.Sprintf("%-18s", shortAverage(r.avg))
		if r.snap.ID == m.displayedID {
			label = displayedStyle.Render(label)
		}

		lines = append(lines, fmt.Sprintf("%s%4d  %s  %s", prefix, i+1, label, m.renderSolves(r.avg)))
	}

	if len(m.rows) > end-start {
		lines = append(lines, helpStyle.Render(fmt.Sprintf("  [%d-%d of %d groups]", start+1, end, len(m.rows))))
	}

	return strings.Join(lines, "\n")
}

// renderSolves prints a group's times with trimmed ones greyed in
// parentheses.
func (m Model) renderSolves(avg *average.CalculatedAverage) string {
	parts := make([]string, 0, len(avg.Considered))
	for _, sv := range avg.Considered {
		t := solve.FormatSolve(sv, m.config.PlusTwo)
		if avg.IsTrimmed(sv.ID) {
			parts = append(parts, trimmedStyle.Render("("+t+")"))
			continue
		}
		parts = append(parts, valueStyle.Render(t))
	}
	return strings.Join(parts, " ")
}

func shortAverage(avg *average.CalculatedAverage) string {
	if avg.IsCurrent() {
		return fmt.Sprintf("… %d", len(avg.Considered))
	}
	return fmt.Sprintf("%s %s", avg.Label, avg.String())
}

func (m Model) renderDisplayed() string {
	if m.displayed == nil {
		return panelStyle.Render(labelStyle.Render("No average selected"))
	}

	avg := m.displayed
	var lines []string
	if avg.IsCurrent() {
		lines = append(lines, sectionHeaderStyle.Render(avg.Label))
		lines = append(lines, labelStyle.Render(fmt.Sprintf("%d solve(s) so far", len(avg.Considered))))
	} else {
		lines = append(lines, sectionHeaderStyle.Render(avg.Label)+"  "+valueStyle.Render(avg.String()))
		lines = append(lines, labelStyle.Render(fmt.Sprintf("counted %d, trimmed %d", len(avg.Counted()), len(avg.Trimmed))))
	}
	lines = append(lines, m.renderSolves(avg))

	return panelStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) renderFooter() string {
	if m.inputMode {
		return cursorStyle.Render("time> ") + m.input + helpStyle.Render("_  (12.34, 12.34+ or DNF; enter records, esc cancels)")
	}
	return helpStyle.Render("  " + m.status)
}
