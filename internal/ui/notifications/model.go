// Package notifications is the full-screen notification history panel.
package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/notify"
	"github.com/nhle/memebox/internal/theme"
)

// CloseMsg signals the parent to close the panel.
type CloseMsg struct{}

// Store is the part of the notification store the panel drives.
type Store interface {
	MarkAsRead(id string)
	MarkAllAsRead()
	ClearAll()
	Remove(id string)
	Click(id string) bool
}

// Model lists every notification of the last retention window.
type Model struct {
	store       Store
	keys        *keys.KeyMap
	items       []model.Notification
	unread      int
	selectedIdx int
	now         func() time.Time
	width       int
	height      int
}

// New creates the panel.
func New(s Store, k *keys.KeyMap, width, height int) Model {
	return Model{store: s, keys: k, now: time.Now, width: width, height: height}
}

// SetSnapshot refreshes the list from the store.
func (m *Model) SetSnapshot(s notify.Snapshot) {
	m.items = s.Notifications
	m.unread = s.Unread
	if m.selectedIdx >= len(m.items) {
		m.selectedIdx = max(0, len(m.items)-1)
	}
}

// Update handles messages for the panel.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(keyMsg, m.keys.Down):
		if len(m.items) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.items)
		}

	case key.Matches(keyMsg, m.keys.Up):
		if len(m.items) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.items) - 1
			}
		}

	case key.Matches(keyMsg, m.keys.Select):
		if n, ok := m.selected(); ok {
			s := m.store
			return m, func() tea.Msg {
				s.Click(n.ID)
				return nil
			}
		}

	case key.Matches(keyMsg, m.keys.DismissToast), key.Matches(keyMsg, m.keys.Delete):
		if n, ok := m.selected(); ok {
			m.store.Remove(n.ID)
		}

	case key.Matches(keyMsg, m.keys.Like):
		// "l" doubles as "mark this one read" here.
		if n, ok := m.selected(); ok {
			m.store.MarkAsRead(n.ID)
		}

	case key.Matches(keyMsg, m.keys.MarkAllRead):
		m.store.MarkAllAsRead()

	case key.Matches(keyMsg, m.keys.ClearAll):
		m.store.ClearAll()
	}
	return m, nil
}

func (m Model) selected() (model.Notification, bool) {
	if m.selectedIdx < 0 || m.selectedIdx >= len(m.items) {
		return model.Notification{}, false
	}
	return m.items[m.selectedIdx], true
}

// View renders the panel.
func (m Model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	b.WriteString(titleStyle.Render(fmt.Sprintf("Notifications (%d unread)", m.unread)))
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true).
			Render("Nothing in the last 24 hours."))
	}

	now := m.now()
	for i, n := range m.items {
		icon := lipgloss.NewStyle().Foreground(theme.NotificationColor(n.Type)).
			Render(theme.NotificationIcon(n.Type))
		age := humanize.RelTime(n.Timestamp, now, "ago", "from now")
		line := fmt.Sprintf("%s %s  %s  %s", icon, n.Title, n.Message,
			theme.DimmedStyle.Render(age))
		if n.Read {
			line = theme.DimmedStyle.Render(line)
		} else {
			line = "• " + line
		}

		if i == m.selectedIdx {
			b.WriteString(theme.SelectedItemStyle.Render(line))
		} else {
			b.WriteString(theme.ListItemStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(theme.HelpStyle.Render(
		"enter open | l mark read | x remove | m mark all read | C clear all | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
