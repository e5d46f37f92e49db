// Package toast renders the stack of transient notifications shown above
// the active view.
package toast

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/notify"
	"github.com/nhle/memebox/internal/theme"
)

// Width is the width of a single toast, border included.
const Width = 44

// Model holds the latest notification snapshot. It renders only; dismissal
// and clicks go through the notify store.
type Model struct {
	snapshot notify.Snapshot
	limit    int
}

// New creates a toast stack showing at most limit toasts.
func New(limit int) Model {
	if limit <= 0 {
		limit = notify.VisibleToasts
	}
	return Model{limit: limit}
}

// SetSnapshot replaces the rendered state.
func (m *Model) SetSnapshot(s notify.Snapshot) {
	m.snapshot = s
}

// Top returns the newest visible notification.
func (m Model) Top() (model.Notification, bool) {
	visible := m.snapshot.Visible(m.limit)
	if len(visible) == 0 {
		return model.Notification{}, false
	}
	return visible[0], true
}

// Unread returns the unread count of the latest snapshot.
func (m Model) Unread() int {
	return m.snapshot.Unread
}

// View renders the visible toasts, newest on top, or "" when there are none.
func (m Model) View() string {
	visible := m.snapshot.Visible(m.limit)
	if len(visible) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(visible))
	for _, n := range visible {
		rendered = append(rendered, renderToast(n))
	}
	return lipgloss.JoinVertical(lipgloss.Right, rendered...)
}

func renderToast(n model.Notification) string {
	accent := lipgloss.NewStyle().Bold(true).Foreground(theme.NotificationColor(n.Type))
	inner := Width - 4

	title := accent.Render(theme.NotificationIcon(n.Type) + " " + truncate(n.Title, inner-2))
	lines := []string{title}
	if n.Message != "" {
		lines = append(lines, lipgloss.NewStyle().Width(inner).Render(n.Message))
	}
	if n.MemeThumbnail != "" {
		lines = append(lines, theme.DimmedStyle.Render(truncate(n.MemeThumbnail, inner)))
	}
	if n.Action != nil {
		lines = append(lines, theme.HelpStyle.Render("o open · x dismiss"))
	}

	return theme.ToastBorder(n.Type).Width(Width - 2).Render(strings.Join(lines, "\n"))
}

func truncate(s string, n int) string {
	if n <= 0 || lipgloss.Width(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n-1 {
		r = r[:n-1]
	}
	return string(r) + "…"
}
