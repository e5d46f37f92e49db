// Package help renders the key map and the notification legend.
package help

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// Legend describes how long notifications stay around.
type Legend struct {
	DefaultDuration time.Duration
	SocialDuration  time.Duration
	Retention       time.Duration
}

var legendTypes = []model.NotificationType{
	model.NotificationLike,
	model.NotificationComment,
	model.NotificationSuccess,
	model.NotificationInfo,
	model.NotificationWarning,
	model.NotificationError,
}

// Model is the help overlay view.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	legend Legend
	width  int
	height int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, legend Legend, width, height int) Model {
	h := help.New()
	h.Width = width
	h.ShowAll = true
	return Model{
		keys:   keys,
		help:   h,
		legend: legend,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	m.help.Width = m.width - 4
	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		"",
		titleStyle.Render("Notifications"),
		m.renderLegend(),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func (m Model) renderLegend() string {
	var b strings.Builder
	for _, typ := range legendTypes {
		icon := lipgloss.NewStyle().Foreground(theme.NotificationColor(typ)).Render(theme.NotificationIcon(typ))
		fmt.Fprintf(&b, "%s %s  ", icon, typ)
	}
	b.WriteString("\n")

	var notes []string
	if m.legend.SocialDuration > 0 && m.legend.DefaultDuration > 0 {
		notes = append(notes, fmt.Sprintf("likes and comments stay %s, other toasts %s",
			m.legend.SocialDuration, m.legend.DefaultDuration))
	}
	if m.legend.Retention > 0 {
		notes = append(notes, fmt.Sprintf("the panel keeps %s of history", m.legend.Retention))
	}
	if len(notes) > 0 {
		b.WriteString(theme.HelpStyle.Render(strings.Join(notes, "; ") + "."))
	}
	return b.String()
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
