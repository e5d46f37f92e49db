package gallery

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// MemeItem wraps a model.Meme so it can be used in a bubbles/list.
type MemeItem struct {
	Meme  model.Meme
	Liked bool
}

// FilterValue returns the string used for fuzzy filtering.
func (i MemeItem) FilterValue() string { return i.Meme.Title }

// Title returns the meme title for the list.
func (i MemeItem) Title() string { return i.Meme.Title }

// Description returns a short summary line for the list.
func (i MemeItem) Description() string {
	parts := []string{
		i.Meme.UserCreated.Name(),
		fmt.Sprintf("%d likes", i.Meme.Likes),
		humanize.Time(i.Meme.DateCreated),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering memes.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single meme line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MemeItem)
	if !ok {
		return
	}
	meme := mi.Meme

	heart := lipgloss.NewStyle().Foreground(theme.ColorGray).Render("♡")
	if mi.Liked {
		heart = lipgloss.NewStyle().Foreground(theme.ColorPink).Render("♥")
	}

	counts := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(fmt.Sprintf("%s %d  👁 %d", heart, meme.Likes, meme.Views))

	statusBadge := ""
	if meme.Status != "" && meme.Status != model.MemePublished {
		statusBadge = theme.StatusStyle(meme.Status).Render(string(meme.Status)) + " "
	}

	tagBadge := ""
	if names := meme.TagNames(); len(names) > 0 {
		// Show max 3 tags to avoid overflow
		if len(names) > 3 {
			names = append(names[:3:3], "…")
		}
		tagBadge = theme.TagStyle.Render(" #" + strings.Join(names, " #"))
	}

	author := ""
	if name := meme.UserCreated.Name(); name != "" {
		author = theme.DimmedStyle.Render(" by " + name)
	}

	age := theme.DimmedStyle.Render(humanize.Time(meme.DateCreated))

	line := fmt.Sprintf("%s %s%s%s%s  %s", counts, statusBadge, meme.Title, author, tagBadge, age)

	if index == m.Index() {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}
