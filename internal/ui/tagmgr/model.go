package tagmgr

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// TagListCloseMsg signals the parent to close the tag view.
type TagListCloseMsg struct{}

// TagChangedMsg signals that tags were modified.
type TagChangedMsg struct{}

// Tags is the tag catalogue the view manages.
type Tags interface {
	List(ctx context.Context) ([]model.Tag, error)
	Search(ctx context.Context, query string) ([]model.Tag, error)
	Create(ctx context.Context, name string) (model.Tag, error)
	Delete(ctx context.Context, id model.ID) error
}

type tagMode int

const (
	modeList tagMode = iota
	modeForm
	modeConfirmDelete
)

type formBindings struct {
	name    string
	confirm bool
}

type tagsLoadedMsg struct {
	tags []model.Tag
	err  error
}

type tagSavedMsg struct {
	tag model.Tag
	err error
}

type tagDeletedMsg struct{ err error }

// Model is the Bubble Tea model for tag management.
type Model struct {
	mode        tagMode
	tags        Tags
	keys        *keys.KeyMap
	list        []model.Tag
	selectedIdx int
	form        *huh.Form
	confirmForm *huh.Form
	fb          *formBindings
	searching   bool
	searchInput textinput.Model
	query       string
	statusMsg   string
	width       int
	height      int
}

// New creates a new tag manager model.
func New(t Tags, k *keys.KeyMap, width, height int) Model {
	si := textinput.New()
	si.Placeholder = "filter tags..."
	si.Prompt = "/ "
	return Model{
		mode:        modeList,
		tags:        t,
		keys:        k,
		fb:          &formBindings{},
		searchInput: si,
		width:       width,
		height:      height,
	}
}

// Init loads tags from the backend.
func (m Model) Init() tea.Cmd {
	return m.loadTags()
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tagsLoadedMsg:
		if msg.err != nil {
			m.statusMsg = "Error: " + directus.Describe(msg.err)
			return m, nil
		}
		m.list = msg.tags
		if m.selectedIdx >= len(m.list) && m.selectedIdx > 0 {
			m.selectedIdx = len(m.list) - 1
		}
		return m, nil

	case tagSavedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %s", directus.Describe(msg.err))
		} else {
			m.statusMsg = fmt.Sprintf("Tag %q saved", msg.tag.Name)
		}
		m.mode = modeList
		return m, tea.Batch(m.loadTags(), func() tea.Msg { return TagChangedMsg{} })

	case tagDeletedMsg:
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("Error: %s", directus.Describe(msg.err))
		} else {
			m.statusMsg = "Tag deleted"
		}
		m.mode = modeList
		return m, tea.Batch(m.loadTags(), func() tea.Msg { return TagChangedMsg{} })

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m.updateActiveForm(msg)
}

func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch m.mode {
	case modeList:
		if m.searching {
			return m.handleSearchKey(msg)
		}
		return m.handleListKey(msg)
	case modeForm, modeConfirmDelete:
		if msg.String() == "esc" {
			m.form, m.confirmForm = nil, nil
			m.mode = modeList
			return m, nil
		}
		if m.mode == modeForm {
			return m.updateForm(msg)
		}
		return m.updateConfirm(msg)
	}
	return m, nil
}

func (m Model) handleListKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		if m.query != "" {
			m.query = ""
			return m, m.loadTags()
		}
		return m, func() tea.Msg { return TagListCloseMsg{} }

	case key.Matches(msg, m.keys.Search):
		m.searching = true
		m.searchInput.SetValue(m.query)
		cmd := m.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.Down):
		if len(m.list) > 0 {
			m.selectedIdx = (m.selectedIdx + 1) % len(m.list)
		}
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if len(m.list) > 0 {
			m.selectedIdx--
			if m.selectedIdx < 0 {
				m.selectedIdx = len(m.list) - 1
			}
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		return m, m.loadTags()

	case key.Matches(msg, m.keys.New):
		m.fb.name = ""
		m.form = m.buildForm()
		m.mode = modeForm
		return m, m.form.Init()

	case key.Matches(msg, m.keys.Delete):
		if len(m.list) == 0 {
			return m, nil
		}
		m.fb.confirm = false
		m.confirmForm = m.buildConfirmForm()
		m.mode = modeConfirmDelete
		return m, m.confirmForm.Init()
	}
	return m, nil
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		m.query = strings.TrimSpace(m.searchInput.Value())
		m.selectedIdx = 0
		return m, m.loadTags()
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Name").
				Description("Stored lowercase; an existing tag is reused.").
				Placeholder("reaction").
				Value(&m.fb.name).
				Validate(func(s string) error {
					if gallery.NormalizeTagName(s) == "" {
						return gallery.ErrEmptyTagName
					}
					return nil
				}),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) buildConfirmForm() *huh.Form {
	name := ""
	if m.selectedIdx < len(m.list) {
		name = m.list[m.selectedIdx].Name
	}
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Delete tag %q?", name)).
				Description("Memes keep their images but lose this tag.").
				Affirmative("Yes, delete").
				Negative("Cancel").
				Value(&m.fb.confirm),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}
	if m.form.State == huh.StateCompleted {
		m.form = nil
		return m, m.saveTag()
	}
	if m.form.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateConfirm(msg tea.Msg) (Model, tea.Cmd) {
	if m.confirmForm == nil {
		return m, nil
	}
	mdl, cmd := m.confirmForm.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.confirmForm = f
	}
	if m.confirmForm.State == huh.StateCompleted {
		m.confirmForm = nil
		if m.fb.confirm && m.selectedIdx < len(m.list) {
			return m, m.deleteTag(m.list[m.selectedIdx].ID)
		}
		m.mode = modeList
		return m, nil
	}
	if m.confirmForm.State == huh.StateAborted {
		m.mode = modeList
		return m, nil
	}
	return m, cmd
}

func (m Model) updateActiveForm(msg tea.Msg) (Model, tea.Cmd) {
	switch m.mode {
	case modeForm:
		return m.updateForm(msg)
	case modeConfirmDelete:
		return m.updateConfirm(msg)
	}
	return m, nil
}

// View renders the tag manager.
func (m Model) View() string {
	switch m.mode {
	case modeForm:
		return m.viewForm(m.form)
	case modeConfirmDelete:
		return m.viewForm(m.confirmForm)
	default:
		return m.viewList()
	}
}

func (m Model) viewList() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	title := fmt.Sprintf("Tags (%d)", len(m.list))
	if m.query != "" {
		title = fmt.Sprintf("Tags matching %q (%d)", m.query, len(m.list))
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")
	if m.searching {
		b.WriteString(m.searchInput.View())
		b.WriteString("\n\n")
	}

	switch {
	case len(m.list) == 0 && m.query != "":
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("No tags match."))
	case len(m.list) == 0:
		emptyStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)
		b.WriteString(emptyStyle.Render("No tags yet. Press 'n' to create one."))
	default:
		for i, t := range m.list {
			label := theme.TagStyle.Render("#" + t.Name)

			if i == m.selectedIdx {
				b.WriteString(theme.SelectedItemStyle.Render(label))
			} else {
				b.WriteString(theme.ListItemStyle.Render(label))
			}
			b.WriteString("\n")
		}
	}

	if m.statusMsg != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorYellow).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render(
		"n new | d delete | / filter | r reload | esc back",
	))

	return lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height).Render(b.String())
}

func (m Model) viewForm(f *huh.Form) string {
	if f == nil {
		return ""
	}
	return lipgloss.NewStyle().Padding(1, 2).Render(f.View())
}

// SetSize updates dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func (m Model) formHeight() int {
	h := m.height - 4
	if h < 10 {
		h = 10
	}
	return h
}

func (m Model) loadTags() tea.Cmd {
	t := m.tags
	query := m.query
	return func() tea.Msg {
		var (
			tags []model.Tag
			err  error
		)
		if query != "" {
			tags, err = t.Search(context.Background(), query)
		} else {
			tags, err = t.List(context.Background())
		}
		return tagsLoadedMsg{tags: tags, err: err}
	}
}

// Searching reports whether the filter input has focus.
func (m Model) Searching() bool {
	return m.searching
}

func (m Model) saveTag() tea.Cmd {
	t := m.tags
	name := m.fb.name
	return func() tea.Msg {
		tag, err := t.Create(context.Background(), name)
		return tagSavedMsg{tag: tag, err: err}
	}
}

func (m Model) deleteTag(id model.ID) tea.Cmd {
	t := m.tags
	return func() tea.Msg {
		err := t.Delete(context.Background(), id)
		return tagDeletedMsg{err: err}
	}
}
