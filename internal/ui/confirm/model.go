// Package confirm is a yes/no dialog gating destructive actions.
package confirm

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
)

// ResultMsg is dispatched when the dialog closes. OnYes is the message
// passed to Ask, returned only when the user agreed.
type ResultMsg struct {
	Confirmed bool
	OnYes     tea.Msg
}

// Model wraps a single huh confirm field.
type Model struct {
	form   *huh.Form
	answer *bool
	onYes  tea.Msg
	width  int
}

// New creates an idle dialog.
func New(width int) Model {
	return Model{answer: new(bool), width: width}
}

// Ask opens the dialog. onYes is handed back in ResultMsg.
func (m *Model) Ask(title, description string, onYes tea.Msg) tea.Cmd {
	*m.answer = false
	m.onYes = onYes
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(m.answer),
		),
	).WithWidth(min(max(m.width-4, 40), 80))
	return m.form.Init()
}

// Update handles messages for the dialog.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.form = nil
		return m, func() tea.Msg { return ResultMsg{} }
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted, huh.StateAborted:
		res := ResultMsg{Confirmed: m.form.State == huh.StateCompleted && *m.answer}
		if res.Confirmed {
			res.OnYes = m.onYes
		}
		m.form = nil
		return m, func() tea.Msg { return res }
	}
	return m, cmd
}

// View renders the dialog.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
}

// SetSize updates the dialog width.
func (m *Model) SetSize(width, _ int) {
	m.width = width
}
