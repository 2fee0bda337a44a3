package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rshade/tcocalc/internal/compare"
	"github.com/rshade/tcocalc/internal/schema"
)

// Comparison is the part of compare.Orchestrator the model drives.
type Comparison interface {
	Events() <-chan compare.Event
	Snapshot() compare.Snapshot
	SetField(ctx context.Context, side compare.Side, id, value string) error
	SetIncludeITCost(include bool)
	Recalculate(ctx context.Context) error
}

// eventMsg carries one orchestrator event into the update loop.
type eventMsg struct {
	event compare.Event
}

// eventsClosedMsg is sent once the event channel is closed.
type eventsClosedMsg struct{}

// actionDoneMsg reports the outcome of a field edit or recalculation.
type actionDoneMsg struct {
	err error
}

// CompareModel is the Bubble Tea model for the side-by-side comparison.
type CompareModel struct {
	ctx  context.Context
	comp Comparison

	snap    compare.Snapshot
	side    compare.Side
	cursor  int
	editing bool
	input   textinput.Model
	spinner spinner.Model

	err      error
	quitting bool
	width    int
	height   int
}

// NewCompareModel builds a model over an active comparison.
func NewCompareModel(ctx context.Context, comp Comparison) *CompareModel {
	in := textinput.New()
	in.CharLimit = 64
	in.Prompt = ""

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = headerStyle

	return &CompareModel{
		ctx:     ctx,
		comp:    comp,
		snap:    comp.Snapshot(),
		input:   in,
		spinner: sp,
	}
}

// Init starts the spinner and the event subscription.
func (m *CompareModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForEvent(m.comp.Events()))
}

func waitForEvent(ch <-chan compare.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg{event: ev}
	}
}

// Update handles messages and updates the model state.
func (m *CompareModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case eventMsg:
		m.refresh()
		if msg.event.Kind == compare.EventResult && msg.event.Err != nil {
			m.err = msg.event.Err
		}
		return m, waitForEvent(m.comp.Events())

	case eventsClosedMsg:
		return m, nil

	case actionDoneMsg:
		m.err = msg.err
		m.refresh()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if m.editing {
			return m.handleEditKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

//nolint:exhaustive // Only navigation keys are handled.
func (m *CompareModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyTab:
		m.switchSide()
		return m, nil
	case tea.KeyUp:
		m.moveCursor(-1)
		return m, nil
	case tea.KeyDown:
		m.moveCursor(1)
		return m, nil
	case tea.KeyEnter:
		return m, m.startEdit()
	case tea.KeyRunes:
		switch string(msg.Runes) {
		case "q":
			m.quitting = true
			return m, tea.Quit
		case "k":
			m.moveCursor(-1)
		case "j":
			m.moveCursor(1)
		case "i":
			m.comp.SetIncludeITCost(!m.snap.IncludeITCost)
			m.refresh()
		case "r":
			return m, m.recalculate()
		}
	}
	return m, nil
}

//nolint:exhaustive // Remaining keys go to the text input.
func (m *CompareModel) handleEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		field, ok := m.focusedField()
		m.editing = false
		m.input.Blur()
		if !ok {
			return m, nil
		}
		return m, m.setField(field.ID, strings.TrimSpace(m.input.Value()))
	case tea.KeyEsc:
		m.editing = false
		m.input.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *CompareModel) switchSide() {
	if m.side == compare.SideA {
		m.side = compare.SideB
	} else {
		m.side = compare.SideA
	}
	m.clampCursor()
}

func (m *CompareModel) moveCursor(delta int) {
	m.cursor += delta
	m.clampCursor()
}

func (m *CompareModel) clampCursor() {
	n := len(m.fields())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *CompareModel) fields() []schema.FieldDescriptor {
	snap := m.snap.A
	if m.side == compare.SideB {
		snap = m.snap.B
	}
	if snap.Fields == nil {
		return nil
	}
	return snap.Fields.Fields()
}

func (m *CompareModel) focusedField() (schema.FieldDescriptor, bool) {
	fields := m.fields()
	if m.cursor < 0 || m.cursor >= len(fields) {
		return schema.FieldDescriptor{}, false
	}
	return fields[m.cursor], true
}

func (m *CompareModel) startEdit() tea.Cmd {
	field, ok := m.focusedField()
	if !ok {
		return nil
	}
	m.editing = true
	m.input.SetValue(field.Value)
	m.input.CursorEnd()
	return m.input.Focus()
}

// setField and recalculate run outside the update loop; their outcome comes
// back as an actionDoneMsg.
func (m *CompareModel) setField(id, value string) tea.Cmd {
	ctx, comp, side := m.ctx, m.comp, m.side
	return func() tea.Msg {
		return actionDoneMsg{err: comp.SetField(ctx, side, id, value)}
	}
}

func (m *CompareModel) recalculate() tea.Cmd {
	ctx, comp := m.ctx, m.comp
	return func() tea.Msg {
		return actionDoneMsg{err: comp.Recalculate(ctx)}
	}
}

func (m *CompareModel) refresh() {
	m.snap = m.comp.Snapshot()
	m.clampCursor()
}

// View renders the current view.
func (m *CompareModel) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(RenderPhase(m.snap, m.spinner.View()))
	sb.WriteString("\n\n")
	sb.WriteString(RenderPanels(m.snap, m.side, m.cursor, m.editing, m.input.View(), m.width))
	sb.WriteString("\n\n")
	sb.WriteString(RenderDiffTable(m.snap.Diff))
	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	}
	sb.WriteString("\n\n")
	sb.WriteString(RenderCompareHelp(m.editing))
	return sb.String()
}

// Snapshot returns the last snapshot the model rendered.
func (m *CompareModel) Snapshot() compare.Snapshot { return m.snap }

// Run starts an interactive session and blocks until the user quits.
func Run(ctx context.Context, comp Comparison) error {
	p := tea.NewProgram(NewCompareModel(ctx, comp), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
