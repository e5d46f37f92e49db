package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// DetailLoadedMsg carries the loaded meme.
type DetailLoadedMsg struct {
	Meme *model.Meme
	Err  error
}

// LikeRequestMsg asks the parent to toggle the like on the shown meme.
type LikeRequestMsg struct {
	ID model.ID
}

// DeleteRequestMsg asks the parent to delete the shown meme.
type DeleteRequestMsg struct {
	ID    model.ID
	Title string
}

// UpdateRequestMsg asks the parent to save changes to the shown meme.
type UpdateRequestMsg struct {
	ID    model.ID
	Input gallery.UpdateInput
}

// AssetURLFunc builds the URL of an image asset.
type AssetURLFunc func(fileID, transforms string) string

// Model is the meme detail view component.
type Model struct {
	meme     *model.Meme
	err      error
	liked    bool
	canEdit  bool
	editForm *huh.Form
	title    *string
	viewport viewport.Model
	keys     *keys.KeyMap
	assetURL AssetURLFunc
	width    int
	height   int
	loading  bool
}

// New creates a new detail view model.
func New(k *keys.KeyMap, assetURL AssetURLFunc, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		assetURL: assetURL,
		title:    new(string),
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case DetailLoadedMsg:
		m.editForm = nil
		m.meme = msg.Meme
		m.err = msg.Err
		m.loading = false
		m.refresh()
		m.viewport.GotoTop()
		return m, nil
	}

	if m.editForm != nil {
		return m.updateEdit(msg)
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg {
				return BackMsg{}
			}

		case key.Matches(msg, m.keys.Like):
			if m.meme != nil {
				id := m.meme.ID
				return m, func() tea.Msg {
					return LikeRequestMsg{ID: id}
				}
			}

		case key.Matches(msg, m.keys.Delete):
			if m.meme != nil && m.canEdit {
				req := DeleteRequestMsg{ID: m.meme.ID, Title: m.meme.Title}
				return m, func() tea.Msg {
					return req
				}
			}

		case key.Matches(msg, m.keys.Publish):
			if m.meme != nil && m.canEdit {
				status := model.MemePublished
				if m.meme.Status == model.MemePublished {
					status = model.MemeDraft
				}
				req := UpdateRequestMsg{ID: m.meme.ID, Input: gallery.UpdateInput{Status: &status}}
				return m, func() tea.Msg {
					return req
				}
			}

		case key.Matches(msg, m.keys.Edit):
			if m.meme != nil && m.canEdit {
				*m.title = m.meme.Title
				m.editForm = huh.NewForm(
					huh.NewGroup(
						huh.NewInput().
							Title("Title").
							CharLimit(gallery.MaxTitleLen).
							Value(m.title).
							Validate(gallery.ValidateTitle),
					),
				).WithWidth(min(max(m.width-4, 40), 100))
				return m, m.editForm.Init()
			}
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) updateEdit(msg tea.Msg) (Model, tea.Cmd) {
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.editForm = nil
		return m, nil
	}
	mdl, cmd := m.editForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.editForm = f
	}
	switch m.editForm.State {
	case huh.StateCompleted:
		m.editForm = nil
		title := *m.title
		if m.meme == nil || title == m.meme.Title {
			return m, nil
		}
		req := UpdateRequestMsg{ID: m.meme.ID, Input: gallery.UpdateInput{Title: &title}}
		return m, func() tea.Msg { return req }
	case huh.StateAborted:
		m.editForm = nil
		return m, nil
	}
	return m, cmd
}

// Editing reports whether the title form has focus.
func (m Model) Editing() bool {
	return m.editForm != nil
}

// View renders the detail view.
func (m Model) View() string {
	if m.editForm != nil {
		return lipgloss.NewStyle().Padding(1, 2).Render(m.editForm.View())
	}

	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return centered.Render("Loading meme...")
	case m.err != nil:
		return centered.Render(fmt.Sprintf("Could not load meme.\n%v", m.err))
	case m.meme == nil:
		return centered.Render("No meme selected")
	}
	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.meme == nil {
		return ""
	}

	meme := m.meme
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(meme.Title))

	heart := "♡ like"
	if m.liked {
		heart = lipgloss.NewStyle().Foreground(theme.ColorPink).Render("♥ liked")
	}
	badgeLine := lipgloss.JoinHorizontal(
		lipgloss.Top,
		theme.StatusStyle(meme.Status).Render(string(meme.Status)),
		"  ", heart,
	)
	sections = append(sections, badgeLine, "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) {
		sections = append(sections, fmt.Sprintf("%-10s %s",
			metaStyle.Render(label), valStyle.Render(value)))
	}

	if name := meme.UserCreated.Name(); name != "" {
		row("Author:", name)
	}
	if !meme.DateCreated.IsZero() {
		row("Posted:", fmt.Sprintf("%s (%s)",
			meme.DateCreated.Format("2006-01-02 15:04"), humanize.Time(meme.DateCreated)))
	}
	row("Likes:", humanize.Comma(int64(meme.Likes)))
	row("Views:", humanize.Comma(int64(meme.Views)))
	if names := meme.TagNames(); len(names) > 0 {
		row("Tags:", theme.TagStyle.Render("#"+strings.Join(names, " #")))
	}

	if m.assetURL != nil && !meme.Image.IsZero() {
		sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
		separator := sepStyle.Render(strings.Repeat("─", min(m.width-4, 80)))
		sections = append(sections, "", separator, "")
		row("Image:", m.assetURL(meme.Image.String(), ""))
		row("Preview:", m.assetURL(meme.Image.String(), "width=400&fit=inside"))
	}

	hints := "l like | esc back"
	if m.canEdit {
		hints = "l like | e edit | p publish/unpublish | d delete | esc back"
	}
	sections = append(sections, "", theme.HelpStyle.Render(hints))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m *Model) refresh() {
	m.viewport.SetContent(m.renderContent())
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	m.err = nil
}

// SetLiked updates the like marker.
func (m *Model) SetLiked(liked bool) {
	m.liked = liked
	m.refresh()
}

// SetLikes updates the shown like counter after a toggle.
func (m *Model) SetLikes(id model.ID, count int) {
	if m.meme != nil && m.meme.ID == id {
		m.meme.Likes = count
		m.refresh()
	}
}

// SetCanEdit allows owner actions such as delete.
func (m *Model) SetCanEdit(canEdit bool) {
	m.canEdit = canEdit
	m.refresh()
}

// Current returns the meme on screen.
func (m Model) Current() (*model.Meme, bool) {
	return m.meme, m.meme != nil
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
}
