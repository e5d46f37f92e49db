// Package settings edits the configuration file from inside the UI.
package settings

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/theme"
)

// Mode represents the current state of the settings view.
type Mode int

const (
	ModeSummary Mode = iota
	ModeForm
	ModeTesting
)

// DoneMsg signals the settings view should close.
type DoneMsg struct{}

// SavedMsg carries the configuration after it was written to disk.
type SavedMsg struct {
	Config model.AppConfig
}

// Pinger checks that a backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc builds a Pinger for a backend URL.
type PingerFunc func(baseURL string) Pinger

type pingResultMsg struct {
	url string
	err error
}

type savedInternalMsg struct {
	cfg model.AppConfig
	err error
}

// formBindings keeps huh's value pointers stable across model copies.
type formBindings struct {
	url           string
	oauthProvider string
	polling       bool
	interval      string
	visible       string
}

// Model is the Bubble Tea model for the settings view.
type Model struct {
	mode    Mode
	path    string
	cfg     model.AppConfig
	pinger  PingerFunc
	form    *huh.Form
	fb      *formBindings
	spinner spinner.Model

	statusMsg string
	statusErr bool

	keys          *keys.KeyMap
	width, height int
}

// New creates the settings view for the config file at path.
func New(path string, cfg model.AppConfig, pinger PingerFunc, k *keys.KeyMap, width, height int) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		mode:    ModeSummary,
		path:    path,
		cfg:     cfg,
		pinger:  pinger,
		fb:      &formBindings{},
		spinner: sp,
		keys:    k,
		width:   width,
		height:  height,
	}
}

// DirectusPinger returns a PingerFunc backed by a fresh Directus client.
func DirectusPinger(baseURL string) Pinger {
	return directus.NewClient(baseURL, directus.WithMaxRetries(0))
}

// Update handles messages and dispatches based on the current mode.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case pingResultMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.statusMsg = fmt.Sprintf("%s is not reachable: %s", msg.url, directus.Describe(msg.err))
			m.statusErr = true
		} else {
			m.statusMsg = msg.url + " is reachable"
			m.statusErr = false
		}
		return m, nil

	case savedInternalMsg:
		m.mode = ModeSummary
		if msg.err != nil {
			m.statusMsg = "Could not save: " + msg.err.Error()
			m.statusErr = true
			return m, nil
		}
		m.cfg = msg.cfg
		m.statusMsg = "Saved to " + m.path
		m.statusErr = false
		saved := msg.cfg
		return m, func() tea.Msg { return SavedMsg{Config: saved} }

	case spinner.TickMsg:
		if m.mode == ModeTesting {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeSummary {
			return m.handleSummaryKeys(msg)
		}
		if m.mode == ModeTesting {
			if key.Matches(msg, m.keys.Back) {
				m.mode = ModeSummary
			}
			return m, nil
		}
	}

	if m.mode == ModeForm {
		return m.updateForm(msg)
	}
	return m, nil
}

func (m Model) handleSummaryKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return DoneMsg{} }

	case msg.String() == "e", key.Matches(msg, m.keys.Select):
		m.resetForm()
		m.form = m.buildForm()
		m.mode = ModeForm
		return m, m.form.Init()

	case msg.String() == "p":
		m.mode = ModeTesting
		return m, tea.Batch(m.spinner.Tick, m.ping(m.cfg.Directus.URL))
	}
	return m, nil
}

func (m *Model) resetForm() {
	n := m.cfg.Notifications
	*m.fb = formBindings{
		url:           m.cfg.Directus.URL,
		oauthProvider: m.cfg.Directus.OAuthProvider,
		polling:       n.Polling,
		interval:      strconv.Itoa(n.PollIntervalSec),
		visible:       strconv.Itoa(n.VisibleToasts),
	}
}

func (m Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Directus URL").
				Description("Takes effect on the next start").
				Placeholder("http://localhost:8055").
				Value(&m.fb.url).
				Validate(validateURL),
			huh.NewInput().
				Title("OAuth provider").
				Description("Leave empty to hide provider sign-in").
				Placeholder("github").
				Value(&m.fb.oauthProvider),
			huh.NewConfirm().
				Title("Live notifications").
				Description("Poll the backend for likes and comments").
				Affirmative("On").
				Negative("Off").
				Value(&m.fb.polling),
			huh.NewInput().
				Title("Poll interval (seconds)").
				Value(&m.fb.interval).
				Validate(validateRange("Poll interval", 5, 3600)),
			huh.NewInput().
				Title("Visible toasts").
				Value(&m.fb.visible).
				Validate(validateRange("Visible toasts", 1, 10)),
		),
	).WithWidth(m.formWidth())
}

func (m Model) updateForm(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		m.form = nil
		m.mode = ModeSummary
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.form = nil
		return m, m.save(m.applyForm())
	case huh.StateAborted:
		m.form = nil
		m.mode = ModeSummary
		return m, nil
	}
	return m, cmd
}

// applyForm returns the configuration with the form values applied.
// Values were validated by the form.
func (m Model) applyForm() model.AppConfig {
	cfg := m.cfg
	newURL := strings.TrimRight(strings.TrimSpace(m.fb.url), "/")
	if newURL != cfg.Directus.URL && cfg.Directus.AssetsURL == cfg.Directus.URL+"/assets" {
		cfg.Directus.AssetsURL = newURL + "/assets"
	}
	cfg.Directus.URL = newURL
	cfg.Directus.OAuthProvider = strings.TrimSpace(m.fb.oauthProvider)
	cfg.Notifications.Polling = m.fb.polling
	cfg.Notifications.PollIntervalSec, _ = strconv.Atoi(strings.TrimSpace(m.fb.interval))
	cfg.Notifications.VisibleToasts, _ = strconv.Atoi(strings.TrimSpace(m.fb.visible))
	return cfg
}

// View renders the settings view based on the current mode.
func (m Model) View() string {
	style := lipgloss.NewStyle().Padding(1, 2).Width(m.width).Height(m.height)

	switch m.mode {
	case ModeForm:
		if m.form == nil {
			return ""
		}
		return style.Render(m.form.View())
	case ModeTesting:
		return style.Render(fmt.Sprintf(
			"%s Contacting %s...\n\nPress esc to cancel.",
			m.spinner.View(), m.cfg.Directus.URL,
		))
	default:
		return style.Render(m.viewSummary())
	}
}

func (m Model) viewSummary() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).MarginBottom(1)
	labelStyle := lipgloss.NewStyle().Foreground(theme.ColorGray).Width(22)

	b.WriteString(titleStyle.Render("Settings"))
	b.WriteString("\n\n")

	n := m.cfg.Notifications
	polling := "off"
	if n.Polling {
		polling = "on"
	}
	rows := [][2]string{
		{"Directus URL", m.cfg.Directus.URL},
		{"Assets URL", m.cfg.Directus.AssetsURL},
		{"OAuth provider", orDash(m.cfg.Directus.OAuthProvider)},
		{"Live notifications", polling},
		{"Poll interval", (time.Duration(n.PollIntervalSec) * time.Second).String()},
		{"Visible toasts", strconv.Itoa(n.VisibleToasts)},
		{"Config file", m.path},
	}
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r[0]))
		b.WriteString(r[1])
		b.WriteString("\n")
	}

	if m.statusMsg != "" {
		color := theme.ColorGreen
		if m.statusErr {
			color = theme.ColorRed
		}
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Foreground(color).Italic(true).Render(m.statusMsg))
	}

	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Foreground(theme.ColorGray).Render("e edit | p test connection | esc back"))
	return b.String()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) ping(baseURL string) tea.Cmd {
	pinger := m.pinger
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return pingResultMsg{url: baseURL, err: pinger(baseURL).Ping(ctx)}
	}
}

func (m Model) save(cfg model.AppConfig) tea.Cmd {
	path := m.path
	return func() tea.Msg {
		err := model.SaveConfig(path, &cfg)
		return savedInternalMsg{cfg: cfg, err: err}
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func validateURL(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("URL is required")
	}
	parsed, err := url.Parse(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" || parsed.Host == "" {
		return fmt.Errorf("URL must include scheme and host (e.g., https://example.com)")
	}
	return nil
}

func validateRange(field string, lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("%s must be a number", field)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%s must be between %d and %d", field, lo, hi)
		}
		return nil
	}
}
