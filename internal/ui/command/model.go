// Package command is the ":" command palette.
package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/theme"
)

// CommandMsg is emitted when the user executes a command. It always holds
// one of Commands.
type CommandMsg string

// Commands lists the palette commands, offered as completions.
var Commands = []string{
	"refresh",
	"new",
	"popular",
	"drafts",
	"profile",
	"tags",
	"notifications",
	"mark read",
	"clear notifications",
	"poll on",
	"poll off",
	"check now",
	"settings",
	"login",
	"logout",
	"quit",
}

var aliases = map[string]string{
	"r":     "refresh",
	"q":     "quit",
	"clear": "clear notifications",
	"check": "check now",
}

// Resolve maps typed input to a command: an exact name, an alias, or an
// unambiguous prefix. Otherwise it returns the candidates that matched.
func Resolve(input string) (string, []string) {
	input = strings.Join(strings.Fields(strings.ToLower(input)), " ")
	if input == "" {
		return "", nil
	}
	if cmd, ok := aliases[input]; ok {
		return cmd, nil
	}
	var matches []string
	for _, c := range Commands {
		if c == input {
			return c, nil
		}
		if strings.HasPrefix(c, input) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return "", matches
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	errMsg string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command, tab completes..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(Commands)
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && key.String() == "enter" {
		typed := m.input.Value()
		if strings.TrimSpace(typed) == "" {
			return m, nil
		}
		cmd, candidates := Resolve(typed)
		switch {
		case cmd != "":
			m.errMsg = ""
			m.input.Reset()
			return m, func() tea.Msg { return CommandMsg(cmd) }
		case len(candidates) > 0:
			m.errMsg = "ambiguous: " + strings.Join(candidates, ", ")
		default:
			m.errMsg = fmt.Sprintf("unknown command %q", strings.TrimSpace(typed))
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.errMsg != "" {
		parts = append(parts, lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.errMsg))
	}
	parts = append(parts, "", theme.HelpStyle.Render(strings.Join(Commands, " · ")))

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus clears the previous input and gives keyboard focus to it.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	m.errMsg = ""
	return m.input.Focus()
}
