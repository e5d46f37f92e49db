package ui

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/theme"
)

// Layout manages the multi-panel terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the top header bar with a title, an unread badge and
// the polling status on the right.
func (l Layout) RenderHeader(title string, unread int, pollStatus string) string {
	titleRendered := theme.HeaderStyle.Render(title)

	badge := ""
	if unread > 0 {
		badge = theme.UnreadBadgeStyle.Render(unreadLabel(unread))
	}

	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(pollStatus)

	gap := l.Width -
		lipgloss.Width(titleRendered) -
		lipgloss.Width(badge) -
		lipgloss.Width(statusRendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.HeaderStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.HeaderStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		titleRendered,
		badge,
		filler,
		statusRendered,
	)
}

func unreadLabel(n int) string {
	if n > 99 {
		return "99+"
	}
	return strconv.Itoa(n)
}

// RenderStatusBar renders the bottom status bar with keyboard hints.
func (l Layout) RenderStatusBar(hints string) string {
	rendered := theme.StatusBarStyle.Render(hints)

	gap := l.Width - lipgloss.Width(rendered)
	if gap < 0 {
		gap = 0
	}

	filler := theme.StatusBarStyle.Render(
		lipgloss.NewStyle().
			Width(gap).
			Background(theme.StatusBarStyle.GetBackground()).
			Render(""),
	)

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered, filler)
}

// RenderWithFrame composes a full terminal view: the header, the toast
// stack right-aligned under it, the content clipped to the remaining
// height, and the status bar.
func (l Layout) RenderWithFrame(
	header string,
	toasts string,
	content string,
	statusBar string,
) string {
	height := l.ContentHeight()
	parts := []string{header}
	if toasts != "" {
		toasts = lipgloss.PlaceHorizontal(l.Width, lipgloss.Right, toasts)
		parts = append(parts, toasts)
		height -= lipgloss.Height(toasts)
	}
	if height < 0 {
		height = 0
	}
	parts = append(parts,
		lipgloss.NewStyle().MaxHeight(height).Render(content),
		statusBar,
	)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}
