// Package login holds the sign-in and registration forms.
package login

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/session"
	"github.com/nhle/memebox/internal/theme"
)

// LoginMsg is dispatched when the sign-in form is submitted.
type LoginMsg struct {
	Email    string
	Password string
}

// RegisterMsg is dispatched when the registration form is submitted.
type RegisterMsg struct {
	Input session.RegisterInput
}

// OAuthMsg is dispatched when the user picks the external provider.
type OAuthMsg struct {
	Provider string
}

// CancelMsg is dispatched when the user leaves the form.
type CancelMsg struct{}

const (
	methodPassword = "password"
	methodRegister = "register"
	methodOAuth    = "oauth"
)

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	method    string
	email     string
	password  string
	firstName string
	lastName  string
}

// Model is the Bubble Tea model for signing in.
type Model struct {
	form     *huh.Form
	fb       *formBindings
	provider string
	errMsg   string
	width    int
	height   int
}

// New creates the sign-in view. provider names the OAuth identity provider;
// empty hides that option.
func New(provider string, width, height int) Model {
	return Model{
		fb:       &formBindings{method: methodPassword},
		provider: provider,
		width:    width,
		height:   height,
	}
}

// Start resets the form. errMsg is shown above it, typically the reason
// the previous attempt failed.
func (m *Model) Start(errMsg string) tea.Cmd {
	m.errMsg = errMsg
	m.fb.password = ""
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

	switch m.form.State {
	case huh.StateCompleted:
		submit := m.handleSubmit()
		m.form = nil
		return m, submit
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}
	return m, cmd
}

// View renders the form.
func (m Model) View() string {
	if m.form == nil {
		return lipgloss.NewStyle().Padding(1, 2).Foreground(theme.ColorGray).Render("Signing in...")
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Sign in to memebox")
	if m.errMsg != "" {
		content += "\n" + lipgloss.NewStyle().Foreground(theme.ColorRed).Render(m.errMsg)
	}
	content += "\n" + m.form.View()

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
	methods := []huh.Option[string]{
		huh.NewOption("Email and password", methodPassword),
		huh.NewOption("Create an account", methodRegister),
	}
	if m.provider != "" {
		methods = append(methods, huh.NewOption("Continue with "+m.provider, methodOAuth))
	}

	fb := m.fb
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How do you want to sign in?").
				Options(methods...).
				Value(&fb.method),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Value(&fb.email).
				Validate(session.ValidateEmail),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&fb.password).
				Validate(session.ValidatePassword),
		).WithHideFunc(func() bool { return fb.method == methodOAuth }),
		huh.NewGroup(
			huh.NewInput().
				Title("First name").
				Value(&fb.firstName).
				Validate(session.ValidateName),
			huh.NewInput().
				Title("Last name").
				Value(&fb.lastName).
				Validate(session.ValidateName),
		).WithHideFunc(func() bool { return fb.method != methodRegister }),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func (m Model) handleSubmit() tea.Cmd {
	fb := *m.fb
	email := strings.TrimSpace(fb.email)

	switch fb.method {
	case methodOAuth:
		provider := m.provider
		return func() tea.Msg { return OAuthMsg{Provider: provider} }
	case methodRegister:
		in := session.RegisterInput{
			Email:     email,
			Password:  fb.password,
			FirstName: strings.TrimSpace(fb.firstName),
			LastName:  strings.TrimSpace(fb.lastName),
		}
		return func() tea.Msg { return RegisterMsg{Input: in} }
	default:
		return func() tea.Msg { return LoginMsg{Email: email, Password: fb.password} }
	}
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 80)
}

func (m Model) formHeight() int {
	return max(m.height-6, 10)
}
