// Package profile shows the signed-in user, their memes and the totals
// across them.
package profile

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// CloseMsg signals the parent to leave the profile.
type CloseMsg struct{}

// OpenMemeMsg asks the parent to show one of the user's memes.
type OpenMemeMsg struct {
	ID model.ID
}

// SetAvatarMsg asks the parent to upload the image at Path as the avatar.
type SetAvatarMsg struct {
	Path string
}

// RemoveAvatarMsg asks the parent to clear the avatar.
type RemoveAvatarMsg struct{}

// Memes lists the memes of a user.
type Memes interface {
	UserMemes(ctx context.Context, userID model.ID) ([]model.Meme, error)
}

// Stats are the totals shown on the profile.
type Stats struct {
	Memes     int
	Published int
	Drafts    int
	Likes     int
	Views     int
}

// Summarize totals a user's memes.
func Summarize(memes []model.Meme) Stats {
	s := Stats{Memes: len(memes)}
	for _, m := range memes {
		if m.Status == model.MemeDraft {
			s.Drafts++
		} else {
			s.Published++
		}
		s.Likes += m.Likes
		s.Views += m.Views
	}
	return s
}

type loadedMsg struct {
	owner model.ID
	memes []model.Meme
	err   error
}

// Model is the profile view.
type Model struct {
	memes    Memes
	keys     *keys.KeyMap
	assetURL func(fileID, transforms string) string

	user     *model.User
	list     []model.Meme
	stats    Stats
	err      error
	loading  bool
	selected int

	form       *huh.Form
	avatarPath *string

	width  int
	height int
}

// New creates the profile view.
func New(src Memes, k *keys.KeyMap, assetURL func(fileID, transforms string) string, width, height int) Model {
	return Model{
		memes:      src,
		keys:       k,
		assetURL:   assetURL,
		avatarPath: new(string),
		width:      width,
		height:     height,
	}
}

// SetUser sets whose profile is shown. The meme list is dropped when the
// user changes.
func (m *Model) SetUser(u *model.User) {
	if u == nil || m.user == nil || u.ID != m.user.ID {
		m.list = nil
		m.stats = Stats{}
		m.selected = 0
		m.err = nil
	}
	m.user = u
}

// Load fetches the user's memes.
func (m *Model) Load() tea.Cmd {
	if m.user == nil {
		return nil
	}
	m.loading = true
	src := m.memes
	owner := m.user.ID
	return func() tea.Msg {
		memes, err := src.UserMemes(context.Background(), owner)
		return loadedMsg{owner: owner, memes: memes, err: err}
	}
}

// Editing reports whether the avatar form has focus.
func (m Model) Editing() bool {
	return m.form != nil
}

// Update handles messages for the profile.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if loaded, ok := msg.(loadedMsg); ok {
		if m.user == nil || loaded.owner != m.user.ID {
			return m, nil
		}
		m.loading = false
		m.err = loaded.err
		if loaded.err == nil {
			m.list = loaded.memes
			m.stats = Summarize(loaded.memes)
			if m.selected >= len(m.list) {
				m.selected = max(len(m.list)-1, 0)
			}
		}
		return m, nil
	}

	if m.form != nil {
		return m.updateForm(msg)
	}

	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(keyMsg, m.keys.Down):
		if m.selected < len(m.list)-1 {
			m.selected++
		}

	case key.Matches(keyMsg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}

	case key.Matches(keyMsg, m.keys.Select):
		if m.selected < len(m.list) {
			id := m.list[m.selected].ID
			return m, func() tea.Msg { return OpenMemeMsg{ID: id} }
		}

	case key.Matches(keyMsg, m.keys.Refresh):
		cmd := m.Load()
		return m, cmd

	case key.Matches(keyMsg, m.keys.Avatar):
		*m.avatarPath = ""
		m.form = huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Avatar image").
					Description("Path to a JPEG, PNG, GIF or WebP file up to 5 MB.").
					Placeholder("~/Pictures/me.png").
					Value(m.avatarPath).
					Validate(func(s string) error {
						return gallery.ValidateImage(gallery.ExpandPath(s))
					}),
			),
		).WithWidth(min(max(m.width-4, 40), 100))
		return m, m.form.Init()

	case key.Matches(keyMsg, m.keys.RemoveAvatar):
		if m.user != nil && !m.user.Avatar.IsZero() {
			return m, func() tea.Msg { return RemoveAvatarMsg{} }
		}
	}
	return m, nil
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.form = nil
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		path := gallery.ExpandPath(*m.avatarPath)
		return m, func() tea.Msg { return SetAvatarMsg{Path: path} }
	case huh.StateAborted:
		m.form = nil
		return m, nil
	}
	return m, cmd
}

// View renders the profile.
func (m Model) View() string {
	if m.form != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.form.View())
	}
	if m.user == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("Sign in to see your profile.")
	}

	var b strings.Builder
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	dim := lipgloss.NewStyle().Foreground(theme.ColorGray)

	b.WriteString(titleStyle.Render(m.user.DisplayName()))
	if m.user.Email != "" {
		b.WriteString("  " + dim.Render(m.user.Email))
	}
	b.WriteString("\n")
	if m.user.Avatar.IsZero() {
		b.WriteString(dim.Render("No avatar. Press a to upload one."))
	} else if m.assetURL != nil {
		b.WriteString(dim.Render("Avatar: " + m.assetURL(m.user.Avatar.String(), "width=100&height=100&fit=cover")))
	}
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s memes (%s published, %s drafts) · %s likes · %s views\n\n",
		humanize.Comma(int64(m.stats.Memes)),
		humanize.Comma(int64(m.stats.Published)),
		humanize.Comma(int64(m.stats.Drafts)),
		humanize.Comma(int64(m.stats.Likes)),
		humanize.Comma(int64(m.stats.Views)),
	))

	switch {
	case m.err != nil:
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorRed).Render("Could not load memes: " + m.err.Error()))
	case m.loading && len(m.list) == 0:
		b.WriteString(dim.Render("Loading..."))
	case len(m.list) == 0:
		b.WriteString(dim.Italic(true).Render("You have not posted anything yet."))
	default:
		for i, meme := range m.list {
			line := fmt.Sprintf("%s  %s  ♥ %d  👁 %d",
				theme.StatusStyle(meme.Status).Render(string(meme.Status)),
				meme.Title, meme.Likes, meme.Views)
			if i == m.selected {
				b.WriteString(theme.SelectedItemStyle.Render(line))
			} else {
				b.WriteString(theme.ListItemStyle.Render(line))
			}
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
