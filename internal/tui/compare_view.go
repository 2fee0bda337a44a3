package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rshade/tcocalc/internal/compare"
	"github.com/rshade/tcocalc/internal/instance"
	"github.com/rshade/tcocalc/internal/schema"
)

// Column widths for the comparison table.
const (
	metricWidth = 26
	amountWidth = 12
	fieldWidth  = 28
	inputWidth  = 16
)

// RenderDiffTable renders the comparison rows. Rows where B is cheaper than
// A are highlighted as savings.
func RenderDiffTable(rows []compare.DiffRow) string {
	if len(rows) == 0 {
		return mutedStyle.Italic(true).Render("No results to compare yet")
	}

	var sb strings.Builder
	sb.WriteString(headerStyle.Render(fmt.Sprintf("%-*s %*s %*s %*s %*s",
		metricWidth, "Metric", amountWidth, "A", amountWidth, "B", amountWidth, "Difference", amountWidth, "Change")))
	sb.WriteString("\n")
	sb.WriteString(mutedStyle.Render(strings.Repeat("─", metricWidth+4*(amountWidth+1))))
	sb.WriteString("\n")

	for _, row := range rows {
		line := fmt.Sprintf("%-*s %*s %*s",
			metricWidth, truncate(row.Label, metricWidth),
			amountWidth, FormatValue(row.A),
			amountWidth, FormatValue(row.B))
		sb.WriteString(labelStyle.Render(line))
		sb.WriteString(" ")
		sb.WriteString(renderChange(row))
		sb.WriteString("\n")
	}
	return sb.String()
}

func renderChange(row compare.DiffRow) string {
	if !row.Numeric {
		if row.IsDifferent {
			return increaseStyle.Render(fmt.Sprintf("%*s", 2*amountWidth+1, "differs"))
		}
		return mutedStyle.Render(fmt.Sprintf("%*s", 2*amountWidth+1, "-"))
	}
	text := fmt.Sprintf("%*s %*s", amountWidth, FormatDelta(row.Difference), amountWidth, FormatPercent(row.Percentage))
	switch {
	case row.Saving():
		return savingStyle.Render(text + " " + IconArrowDown)
	case row.IsDifferent:
		return increaseStyle.Render(text + " " + IconArrowUp)
	default:
		return mutedStyle.Render(text)
	}
}

// RenderPhase renders the comparison status line. spin is drawn while a
// calculation round is running.
func RenderPhase(snap compare.Snapshot, spin string) string {
	var status string
	switch snap.Phase {
	case compare.PhaseIdle:
		status = mutedStyle.Render("Comparison inactive")
	case compare.PhaseAwaitingBoth:
		status = increaseStyle.Render("Waiting for both configurations to be complete")
	case compare.PhaseBothValid:
		status = labelStyle.Render("Both configurations complete")
	case compare.PhaseComputing:
		status = labelStyle.Render(spin + " Calculating")
	case compare.PhaseComplete:
		status = savingStyle.Render("Comparison ready")
	}
	it := "IT cost excluded"
	if snap.IncludeITCost {
		it = "IT cost included"
	}
	return fmt.Sprintf("%s  %s", status, mutedStyle.Render(fmt.Sprintf("(round %d, %s)", snap.Round, it)))
}

// sidePanel is everything needed to draw one configuration.
type sidePanel struct {
	snap    instance.Snapshot
	active  bool
	cursor  int
	editing bool
	input   string
	width   int
}

func (p sidePanel) render() string {
	var sb strings.Builder
	sb.WriteString(headerStyle.Render("Configuration " + p.snap.Label))
	sb.WriteString("\n")
	sel := p.snap.Selection
	name := sel.SolutionName
	if name == "" {
		name = "no solution"
	}
	sb.WriteString(mutedStyle.Render(fmt.Sprintf("%s / %s", name, valueOr(sel.State.VariantID, "no variant"))))
	sb.WriteString("\n\n")

	switch {
	case p.snap.Loading:
		sb.WriteString(mutedStyle.Render("Loading schema..."))
	case p.snap.SchemaErr != nil:
		sb.WriteString(errorStyle.Render("Schema unavailable: " + p.snap.SchemaErr.Error()))
	case p.snap.Fields == nil || p.snap.Fields.Len() == 0:
		sb.WriteString(mutedStyle.Render("Select a variant to load its fields"))
	default:
		for i, f := range p.snap.Fields.Fields() {
			sb.WriteString(p.renderField(i, f))
			sb.WriteString("\n")
		}
	}

	if n := len(p.snap.Problems); n > 0 {
		sb.WriteString("\n")
		sb.WriteString(increaseStyle.Render(fmt.Sprintf("%d item(s) missing", n)))
	}
	if p.snap.ResultErr != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render(p.snap.ResultErr.Error()))
	}

	style := panelStyle
	if p.active {
		style = activePanelStyle
	}
	if p.width > 0 {
		style = style.Width(p.width)
	}
	return style.Render(sb.String())
}

func (p sidePanel) renderField(i int, f schema.FieldDescriptor) string {
	marker := "  "
	if f.Required && schema.IsUnselected(f.Value) {
		marker = increaseStyle.Render(IconMissing) + " "
	}
	label := f.Label
	if label == "" {
		label = f.ID
	}
	value := f.Value
	if p.active && p.editing && i == p.cursor {
		value = p.input
	}
	if f.Unit != "" && value != "" && !(p.active && p.editing && i == p.cursor) {
		value += " " + f.Unit
	}
	if f.IsDerived {
		value += " " + IconLocked
	}
	line := fmt.Sprintf("%-*s %-*s", fieldWidth, truncate(label, fieldWidth), inputWidth, value)
	if p.active && i == p.cursor {
		return marker + cursorStyle.Render(line)
	}
	return marker + labelStyle.Render(line)
}

// RenderPanels draws both configurations side by side.
func RenderPanels(snap compare.Snapshot, active compare.Side, cursor int, editing bool, input string, width int) string {
	panelWidth := 0
	if width > 0 {
		panelWidth = width/2 - 2
	}
	a := sidePanel{snap: snap.A, active: active == compare.SideA, cursor: cursor, editing: editing, input: input, width: panelWidth}
	b := sidePanel{snap: snap.B, active: active == compare.SideB, cursor: cursor, editing: editing, input: input, width: panelWidth}
	return lipgloss.JoinHorizontal(lipgloss.Top, a.render(), b.render())
}

// RenderCompareHelp renders the key bindings.
func RenderCompareHelp(editing bool) string {
	if editing {
		return mutedStyle.Render("enter: save  esc: cancel")
	}
	return mutedStyle.Render("tab: switch side  ↑/↓: move  enter: edit  i: toggle IT cost  r: recalculate  q: quit")
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-3]) + "..."
}
