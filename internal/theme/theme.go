package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorPink    = lipgloss.AdaptiveColor{Dark: "#F783AC", Light: "#B83280"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the detail view content area.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the currently focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders secondary text such as read notifications.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// TagStyle renders a meme tag badge.
var TagStyle = lipgloss.NewStyle().
	Foreground(ColorMagenta)

// UnreadBadgeStyle renders the unread counter in the header.
var UnreadBadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("#FFFFFF")).
	Background(ColorRed).
	Padding(0, 1)

// ToastStyle is the frame of a single toast. Its border color is set per
// notification type by ToastBorder.
var ToastStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	Padding(0, 1)

// NotificationColor returns the accent color of a notification type.
func NotificationColor(typ model.NotificationType) lipgloss.AdaptiveColor {
	switch typ {
	case model.NotificationSuccess:
		return ColorGreen
	case model.NotificationError:
		return ColorRed
	case model.NotificationWarning:
		return ColorYellow
	case model.NotificationLike:
		return ColorPink
	case model.NotificationComment:
		return ColorMagenta
	default:
		return ColorBlue
	}
}

// NotificationIcon returns a one-character marker for a notification type.
func NotificationIcon(typ model.NotificationType) string {
	switch typ {
	case model.NotificationSuccess:
		return "✓"
	case model.NotificationError:
		return "✗"
	case model.NotificationWarning:
		return "!"
	case model.NotificationLike:
		return "♥"
	case model.NotificationComment:
		return "✎"
	default:
		return "i"
	}
}

// ToastBorder returns the toast frame for a notification type.
func ToastBorder(typ model.NotificationType) lipgloss.Style {
	return ToastStyle.BorderForeground(NotificationColor(typ))
}

// StatusStyle returns a color-coded style for the given meme status.
func StatusStyle(status model.MemeStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch status {
	case model.MemePublished:
		return base.Foreground(ColorGreen)
	case model.MemeDraft:
		return base.Foreground(ColorYellow)
	case model.MemeArchived:
		return base.Foreground(ColorGray)
	default:
		return base.Foreground(ColorGray)
	}
}
