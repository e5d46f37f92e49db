// Package gallery is the paged meme list: the published gallery and the
// signed-in user's drafts.
package gallery

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// PageLoadedMsg is sent when a page of memes has been fetched.
type PageLoadedMsg struct {
	Drafts  bool
	Popular bool
	Page    gallery.Page
	Err     error
}

// SelectedMemeMsg is sent when a user selects a meme to view details.
type SelectedMemeMsg struct {
	ID model.ID
}

// Source lists memes page by page.
type Source interface {
	List(ctx context.Context, opts gallery.ListOptions) (gallery.Page, error)
	Drafts(ctx context.Context, userID model.ID, page, limit int) (gallery.Page, error)
	Popular(ctx context.Context, limit int) ([]model.Meme, error)
}

// LikeChecker reports whether the local user liked a meme.
type LikeChecker interface {
	IsLiked(id model.ID) bool
}

// Model is a paged meme list view.
type Model struct {
	list        list.Model
	source      Source
	likes       LikeChecker
	keys        *keys.KeyMap
	drafts      bool
	popular     bool
	owner       model.ID
	page        gallery.Page
	pageNum     int
	search      string
	loadErr     error
	searchMode  bool
	searchInput textinput.Model
	width       int
	height      int
}

// New creates the published gallery view.
func New(src Source, likes LikeChecker, k *keys.KeyMap, width, height int) Model {
	return newModel(src, likes, k, "Gallery", false, width, height)
}

// NewDrafts creates the drafts view of the signed-in user.
func NewDrafts(src Source, likes LikeChecker, k *keys.KeyMap, width, height int) Model {
	return newModel(src, likes, k, "My drafts", true, width, height)
}

func newModel(src Source, likes LikeChecker, k *keys.KeyMap, title string, drafts bool, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = title
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	si := textinput.New()
	si.Placeholder = "search titles..."
	si.Prompt = "/ "
	si.Width = width - 4

	return Model{
		list:        l,
		source:      src,
		likes:       likes,
		keys:        k,
		drafts:      drafts,
		pageNum:     1,
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.Load()
}

// SetOwner sets whose drafts are listed.
func (m *Model) SetOwner(id model.ID) {
	if m.owner != id {
		m.owner = id
		m.pageNum = 1
	}
}

// Update handles messages for the list.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PageLoadedMsg:
		if msg.Drafts != m.drafts || msg.Popular != m.popular {
			return m, nil
		}
		m.loadErr = msg.Err
		if msg.Err != nil {
			return m, nil
		}
		m.page = msg.Page
		m.pageNum = msg.Page.Page
		cmd := m.list.SetItems(m.items())
		return m, cmd

	case tea.KeyMsg:
		if m.searchMode {
			return m.handleSearchKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) items() []list.Item {
	items := make([]list.Item, len(m.page.Memes))
	for i, meme := range m.page.Memes {
		liked := m.likes != nil && m.likes.IsLiked(meme.ID)
		items[i] = MemeItem{Meme: meme, Liked: liked}
	}
	return items
}

// RefreshLikes re-renders the like markers after a toggle.
func (m *Model) RefreshLikes() tea.Cmd {
	return m.list.SetItems(m.items())
}

// UpdateMeme replaces a meme of the current page in place.
func (m *Model) UpdateMeme(meme model.Meme) tea.Cmd {
	for i := range m.page.Memes {
		if m.page.Memes[i].ID == meme.ID {
			m.page.Memes[i].Likes = meme.Likes
			m.page.Memes[i].Views = meme.Views
		}
	}
	return m.list.SetItems(m.items())
}

func (m Model) handleSearchKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searchMode = false
		m.search = m.searchInput.Value()
		m.pageNum = 1
		return m, m.Load()

	case "esc":
		m.searchMode = false
		m.searchInput.Reset()
		m.search = ""
		m.pageNum = 1
		return m, m.Load()
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		item, ok := m.list.SelectedItem().(MemeItem)
		if !ok {
			return m, nil
		}
		return m, func() tea.Msg {
			return SelectedMemeMsg{ID: item.Meme.ID}
		}

	case key.Matches(msg, m.keys.Search):
		if m.drafts {
			return m, nil
		}
		m.searchMode = true
		m.searchInput.Reset()
		m.setPopular(false)
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Popular):
		if m.drafts {
			return m, nil
		}
		cmd := m.SetPopular(!m.popular)
		return m, cmd

	case key.Matches(msg, m.keys.NextPage):
		if m.page.HasMore() {
			m.pageNum++
			return m, m.Load()
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if m.pageNum > 1 {
			m.pageNum--
			return m, m.Load()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// SetPopular switches between the newest-first gallery and the most liked
// memes, then reloads.
func (m *Model) SetPopular(on bool) tea.Cmd {
	m.setPopular(on)
	if on {
		m.search = ""
	}
	return m.Load()
}

func (m *Model) setPopular(on bool) {
	m.popular = on
	m.pageNum = 1
	if on {
		m.list.Title = "Popular"
	} else {
		m.list.Title = "Gallery"
	}
}

// Popular reports whether the most liked memes are listed.
func (m Model) Popular() bool {
	return m.popular
}

// Searching reports whether the search input has focus.
func (m Model) Searching() bool {
	return m.searchMode
}

// Selected returns the highlighted meme.
func (m Model) Selected() (model.Meme, bool) {
	item, ok := m.list.SelectedItem().(MemeItem)
	return item.Meme, ok
}

// View renders the list.
func (m Model) View() string {
	var header string
	if m.searchMode {
		header = lipgloss.NewStyle().
			Foreground(theme.ColorWhite).
			Padding(0, 1).
			Render(m.searchInput.View())
	}

	var body string
	switch {
	case m.loadErr != nil:
		body = m.centered(fmt.Sprintf("Could not load memes.\n%v\n\nPress r to retry.", m.loadErr))
	case len(m.list.Items()) == 0:
		body = m.renderEmptyState()
	default:
		body = lipgloss.JoinVertical(lipgloss.Left, m.list.View(), m.pager())
	}

	if header == "" {
		return body
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body)
}

func (m Model) pager() string {
	if m.popular {
		return theme.HelpStyle.PaddingLeft(2).Render(
			fmt.Sprintf("top %d by likes · p newest first", len(m.page.Memes)))
	}
	pages := 1
	if m.page.Limit > 0 && m.page.Total > 0 {
		pages = (m.page.Total + m.page.Limit - 1) / m.page.Limit
	}
	text := fmt.Sprintf("page %d/%d · %d memes", m.pageNum, pages, m.page.Total)
	if m.search != "" {
		text += fmt.Sprintf(" · search %q", m.search)
	}
	return theme.HelpStyle.PaddingLeft(2).Render(text)
}

func (m Model) renderEmptyState() string {
	switch {
	case m.search != "":
		return m.centered("No memes match your search.")
	case m.drafts:
		return m.centered("No drafts.\n\nPress n to create a meme.")
	default:
		return m.centered("No memes yet.\n\nPress n to post the first one.")
	}
}

func (m Model) centered(text string) string {
	return lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray).
		Render(text)
}

// Load returns a tea.Cmd fetching the current page.
func (m Model) Load() tea.Cmd {
	src := m.source
	drafts := m.drafts
	popular := m.popular
	owner := m.owner
	opts := gallery.ListOptions{Page: m.pageNum, Search: m.search}
	return func() tea.Msg {
		ctx := context.Background()
		var (
			page gallery.Page
			err  error
		)
		switch {
		case drafts:
			page, err = src.Drafts(ctx, owner, opts.Page, 0)
		case popular:
			var memes []model.Meme
			memes, err = src.Popular(ctx, gallery.PopularLimit)
			page = gallery.Page{Memes: memes, Page: 1, Limit: len(memes), Total: len(memes)}
		default:
			page, err = src.List(ctx, opts)
		}
		return PageLoadedMsg{Drafts: drafts, Popular: popular, Page: page, Err: err}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
	m.searchInput.Width = width - 4
}
