// Package memeform is the form used to post a new meme.
package memeform

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// SubmitMsg is dispatched when the form is completed.
type SubmitMsg struct {
	Input gallery.CreateInput
}

// CancelMsg is dispatched when the user cancels the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title     string
	imagePath string
	status    model.MemeStatus
	tagIDs    []model.ID
}

// Model is the Bubble Tea model for the meme form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	tags   []model.Tag
	width  int
	height int
}

// New creates a new meme form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{status: model.MemePublished},
		width:  width,
		height: height,
	}
}

// SetTags sets the tags offered by the form.
func (m *Model) SetTags(tags []model.Tag) {
	m.tags = tags
}

// Start initializes an empty form.
func (m *Model) Start() tea.Cmd {
	*m.fb = formBindings{status: model.MemePublished}
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.form = nil
		return m, func() tea.Msg { return CancelMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		submit := m.handleSubmit()
		m.form = nil
		return m, submit
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("New meme") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Title").
			Placeholder("Make it funny").
			CharLimit(gallery.MaxTitleLen).
			Value(&m.fb.title).
			Validate(gallery.ValidateTitle),
		huh.NewInput().
			Title("Image").
			Placeholder("/path/to/meme.png (JPEG, PNG, GIF or WebP, max 5 MB)").
			Value(&m.fb.imagePath).
			Validate(func(s string) error {
				return gallery.ValidateImage(gallery.ExpandPath(s))
			}),
		huh.NewSelect[model.MemeStatus]().
			Title("Status").
			Options(
				huh.NewOption("Published", model.MemePublished),
				huh.NewOption("Draft", model.MemeDraft),
			).
			Value(&m.fb.status),
	}
	if len(m.tags) > 0 {
		opts := make([]huh.Option[model.ID], len(m.tags))
		for i, t := range m.tags {
			opts[i] = huh.NewOption(t.Name, t.ID)
		}
		fields = append(fields, huh.NewMultiSelect[model.ID]().
			Title("Tags").
			Options(opts...).
			Value(&m.fb.tagIDs))
	}

	return huh.NewForm(
		huh.NewGroup(fields...),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	in := gallery.CreateInput{
		Title:     strings.TrimSpace(m.fb.title),
		ImagePath: gallery.ExpandPath(m.fb.imagePath),
		Status:    m.fb.status,
		TagIDs:    append([]model.ID(nil), m.fb.tagIDs...),
	}
	return func() tea.Msg { return SubmitMsg{Input: in} }
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
