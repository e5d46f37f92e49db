package app

import (
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/keys"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/notify"
	"github.com/nhle/memebox/internal/session"
	appsync "github.com/nhle/memebox/internal/sync"
	"github.com/nhle/memebox/internal/ui"
	"github.com/nhle/memebox/internal/ui/command"
	"github.com/nhle/memebox/internal/ui/confirm"
	"github.com/nhle/memebox/internal/ui/detail"
	galleryview "github.com/nhle/memebox/internal/ui/gallery"
	helpview "github.com/nhle/memebox/internal/ui/help"
	"github.com/nhle/memebox/internal/ui/login"
	"github.com/nhle/memebox/internal/ui/memeform"
	"github.com/nhle/memebox/internal/ui/notifications"
	"github.com/nhle/memebox/internal/ui/profile"
	"github.com/nhle/memebox/internal/ui/settings"
	"github.com/nhle/memebox/internal/ui/tagmgr"
	"github.com/nhle/memebox/internal/ui/toast"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewGallery ViewState = iota
	ViewDrafts
	ViewDetail
	ViewLogin
	ViewCreate
	ViewTags
	ViewNotifications
	ViewHelp
	ViewCommand
	ViewConfirm
	ViewSettings
	ViewProfile
)

// Deps are the services the UI drives.
type Deps struct {
	Client        *directus.Client
	Session       *session.Manager
	Memes         *gallery.Memes
	Tags          *gallery.Tags
	Likes         *gallery.Likes
	Notifications *notify.Store
	Reconciler    *appsync.Reconciler
	Events        *Events
	Config        *model.AppConfig
	ConfigPath    string
	Logger        *slog.Logger
}

// Model is the root Bubble Tea model that manages view routing, layout,
// the toast stack and the background notification feeds.
type Model struct {
	deps Deps
	log  *slog.Logger

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap

	galleryView  galleryview.Model
	draftsView   galleryview.Model
	detail       detail.Model
	loginView    login.Model
	formView     memeform.Model
	tagView      tagmgr.Model
	panel        notifications.Model
	helpView     helpview.Model
	commandView  command.Model
	confirmView  confirm.Model
	settingsView settings.Model
	profileView  profile.Model
	toasts       toast.Model

	snapshots   <-chan notify.Snapshot
	unsubscribe func()
	pollStatus  appsync.Status
	user        *model.User
	ready       bool
}

// New creates a new root application model.
func New(deps Deps) Model {
	k := keys.DefaultKeyMap()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	var cfg model.AppConfig
	if deps.Config != nil {
		cfg = *deps.Config
	}
	visible := cfg.Notifications.VisibleToasts
	if visible <= 0 {
		visible = notify.VisibleToasts
	}

	snapshots, unsubscribe := deps.Notifications.Subscribe()

	return Model{
		deps:         deps,
		log:          logger.With("component", "ui"),
		currentView:  ViewGallery,
		keys:         k,
		galleryView:  galleryview.New(deps.Memes, deps.Likes, k, 80, 24),
		draftsView:   galleryview.NewDrafts(deps.Memes, deps.Likes, k, 80, 24),
		detail:       detail.New(k, deps.Client.AssetURL, 80, 24),
		loginView:    login.New(cfg.Directus.OAuthProvider, 80, 24),
		formView:     memeform.New(80, 24),
		tagView:      tagmgr.New(deps.Tags, k, 80, 24),
		panel:        notifications.New(deps.Notifications, k, 80, 24),
		helpView:     helpview.New(k, legendFor(cfg), 80, 24),
		commandView:  command.New(80, 24),
		confirmView:  confirm.New(80),
		settingsView: settings.New(deps.ConfigPath, cfg, settings.DirectusPinger, k, 80, 24),
		profileView:  profile.New(deps.Memes, k, deps.Client.AssetURL, 80, 24),
		toasts:       toast.New(visible),
		snapshots:    snapshots,
		unsubscribe:  unsubscribe,
		pollStatus:   deps.Reconciler.Status(),
		user:         deps.Session.CurrentUser(),
	}
}

func legendFor(cfg model.AppConfig) helpview.Legend {
	n := cfg.Notifications
	return helpview.Legend{
		DefaultDuration: time.Duration(n.DefaultDurationMS) * time.Millisecond,
		SocialDuration:  time.Duration(n.SocialDurationMS) * time.Millisecond,
		Retention:       time.Duration(n.RetentionHours) * time.Hour,
	}
}

// Init loads the first gallery page and starts listening to the
// notification store, the reconciler and out-of-loop events.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.galleryView.Init(),
		waitForSnapshot(m.snapshots),
		m.deps.Reconciler.WaitForStatus(),
		m.deps.Events.Wait(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.galleryView.SetSize(contentWidth, contentHeight)
		m.draftsView.SetSize(contentWidth, contentHeight)
		m.detail.SetSize(contentWidth, contentHeight)
		m.loginView.SetSize(contentWidth, contentHeight)
		m.formView.SetSize(contentWidth, contentHeight)
		m.tagView.SetSize(contentWidth, contentHeight)
		m.panel.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.commandView.SetSize(contentWidth, contentHeight)
		m.confirmView.SetSize(contentWidth, contentHeight)
		m.settingsView.SetSize(contentWidth, contentHeight)
		m.profileView.SetSize(contentWidth, contentHeight)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case snapshotMsg:
		m.toasts.SetSnapshot(msg.snapshot)
		m.panel.SetSnapshot(msg.snapshot)
		return m, waitForSnapshot(m.snapshots)

	case appsync.StatusMsg:
		prev := m.pollStatus
		m.pollStatus = msg.Status
		cmds := []tea.Cmd{m.deps.Reconciler.WaitForStatus()}
		if msg.Status.LastErr != nil && prev.LastErr == nil {
			m.deps.Notifications.Warning("Live notifications paused",
				pollFailureMessage(msg.Status.LastErr), 0)
		}
		return m, tea.Batch(cmds...)

	case NavigateMsg:
		cmd := m.navigate(msg.Path)
		return m, tea.Batch(m.deps.Events.Wait(), cmd)

	case SessionChangedMsg:
		m.user = msg.User
		m.profileView.SetUser(msg.User)
		cmds := []tea.Cmd{m.deps.Events.Wait()}
		if msg.User == nil {
			switch m.currentView {
			case ViewDrafts, ViewCreate, ViewTags, ViewProfile:
				m.currentView = ViewGallery
			}
		} else {
			m.draftsView.SetOwner(msg.User.ID)
			cmds = append(cmds, m.loadLikes())
		}
		return m, tea.Batch(cmds...)

	case galleryview.PageLoadedMsg:
		var cmd1, cmd2 tea.Cmd
		m.galleryView, cmd1 = m.galleryView.Update(msg)
		m.draftsView, cmd2 = m.draftsView.Update(msg)
		if msg.Err != nil {
			m.log.Warn("loading memes", "error", msg.Err)
		}
		return m, tea.Batch(cmd1, cmd2)

	case galleryview.SelectedMemeMsg:
		cmd := m.openMeme(msg.ID)
		return m, cmd

	case detail.DetailLoadedMsg:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		if msg.Meme != nil {
			m.detail.SetLiked(m.deps.Likes.IsLiked(msg.Meme.ID))
			m.detail.SetCanEdit(m.canEdit(*msg.Meme))
		}
		return m, cmd

	case detail.BackMsg:
		m.currentView = m.previousView
		if m.currentView == ViewDetail {
			m.currentView = ViewGallery
		}
		return m, nil

	case detail.UpdateRequestMsg:
		return m, m.updateMeme(msg.ID, msg.Input)

	case memeUpdatedMsg:
		if msg.err != nil {
			m.deps.Notifications.Error("Update failed", directus.Describe(msg.err), 0)
			return m, nil
		}
		m.deps.Notifications.Success(updateSummary(msg.input), msg.meme.Title, 0)
		meme := msg.meme
		if cur, ok := m.detail.Current(); ok && cur.ID == meme.ID {
			meme.Views = cur.Views
			m.detail, _ = m.detail.Update(detail.DetailLoadedMsg{Meme: &meme})
			m.detail.SetLiked(m.deps.Likes.IsLiked(meme.ID))
			m.detail.SetCanEdit(m.canEdit(meme))
		}
		profileCmd := m.profileView.Load()
		return m, tea.Batch(m.galleryView.Load(), m.draftsView.Load(), profileCmd)

	case profile.CloseMsg:
		m.currentView = ViewGallery
		return m, nil

	case profile.OpenMemeMsg:
		cmd := m.openMeme(msg.ID)
		return m, cmd

	case profile.SetAvatarMsg:
		m.deps.Notifications.Info("Uploading avatar", "", 0)
		return m, m.setAvatar(msg.Path)

	case profile.RemoveAvatarMsg:
		return m, m.removeAvatar()

	case avatarResultMsg:
		if msg.err != nil {
			m.deps.Notifications.Error("Avatar not saved", directus.Describe(msg.err), 0)
			return m, nil
		}
		if msg.removed {
			m.deps.Notifications.Success("Avatar removed", "", 0)
		} else {
			m.deps.Notifications.Success("Avatar updated", "", 0)
		}
		m.user = m.deps.Session.CurrentUser()
		m.profileView.SetUser(m.user)
		return m, nil

	case detail.LikeRequestMsg:
		return m, m.toggleLike(msg.ID)

	case likeResultMsg:
		cmd := m.applyLike(msg)
		return m, cmd

	case detail.DeleteRequestMsg:
		m.currentView = ViewConfirm
		cmd := m.confirmView.Ask(
			fmt.Sprintf("Delete %q?", msg.Title),
			"The meme and its image link are removed for everyone.",
			deleteMemeMsg{id: msg.ID},
		)
		return m, cmd

	case confirm.ResultMsg:
		m.currentView = ViewDetail
		if msg.Confirmed {
			if del, ok := msg.OnYes.(deleteMemeMsg); ok {
				return m, m.deleteMeme(del.id)
			}
		}
		return m, nil

	case memeDeletedMsg:
		if msg.err != nil {
			m.deps.Notifications.Error("Delete failed", directus.Describe(msg.err), 0)
			return m, nil
		}
		m.deps.Notifications.Success("Meme deleted", "", 0)
		m.currentView = ViewGallery
		return m, tea.Batch(m.galleryView.Load(), m.draftsView.Load())

	case login.LoginMsg:
		return m, m.login(msg.Email, msg.Password)

	case login.RegisterMsg:
		return m, m.register(msg.Input)

	case login.OAuthMsg:
		return m, m.oauthLogin(msg.Provider)

	case login.CancelMsg:
		m.currentView = ViewGallery
		return m, nil

	case authResultMsg:
		if msg.err != nil {
			m.deps.Notifications.Error("Sign-in failed", directus.Describe(msg.err), 0)
			cmd := m.loginView.Start(directus.Describe(msg.err))
			return m, cmd
		}
		m.currentView = ViewGallery
		name := model.DefaultSenderName
		if u := m.deps.Session.CurrentUser(); u != nil {
			name = u.DisplayName()
		}
		m.deps.Notifications.Success("Welcome", "Signed in as "+name, 0)
		return m, m.galleryView.Load()

	case likesLoadedMsg:
		cmd := tea.Batch(m.galleryView.RefreshLikes(), m.draftsView.RefreshLikes())
		return m, cmd

	case checkDoneMsg:
		m.handleCheckDone(msg)
		return m, nil

	case tagsForFormMsg:
		m.formView.SetTags(msg.tags)
		cmd := m.formView.Start()
		return m, cmd

	case memeform.SubmitMsg:
		m.currentView = ViewGallery
		m.deps.Notifications.Info("Uploading", msg.Input.Title, 0)
		return m, m.createMeme(msg.Input)

	case memeform.CancelMsg:
		m.currentView = ViewGallery
		return m, nil

	case memeCreatedMsg:
		if msg.err != nil {
			m.deps.Notifications.Error("Upload failed", directus.Describe(msg.err), 0)
			return m, nil
		}
		if msg.meme.Status == model.MemeDraft {
			m.deps.Notifications.Success("Draft saved", msg.meme.Title, 0)
		} else {
			m.deps.Notifications.Success("Meme posted", msg.meme.Title, 0)
		}
		return m, tea.Batch(m.galleryView.Load(), m.draftsView.Load())

	case tagmgr.TagListCloseMsg:
		m.currentView = ViewGallery
		return m, nil

	case tagmgr.TagChangedMsg:
		return m, nil

	case notifications.CloseMsg:
		m.currentView = m.previousView
		if m.currentView == ViewNotifications {
			m.currentView = ViewGallery
		}
		return m, nil

	case settings.SavedMsg:
		cmd := m.applySettings(msg.Config)
		return m, cmd

	case settings.DoneMsg:
		m.currentView = ViewGallery
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		cmd := m.executeCommand(string(msg))
		return m, cmd

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work across browsing views. Views
// with text input only see ctrl+c here.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return m, m.quit(), true
	}
	if !m.browsing() {
		return m, nil, false
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewGallery {
			return m, m.quit(), true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case ":":
		m.previousView = m.currentView
		m.currentView = ViewCommand
		cmd := m.commandView.Focus()
		return m, cmd, true

	case "x":
		if top, ok := m.toasts.Top(); ok && m.currentView != ViewNotifications {
			m.deps.Notifications.Remove(top.ID)
			return m, nil, true
		}

	case "o":
		if top, ok := m.toasts.Top(); ok && m.currentView != ViewNotifications {
			store := m.deps.Notifications
			return m, func() tea.Msg {
				store.Click(top.ID)
				return nil
			}, true
		}

	case "N":
		if m.currentView != ViewNotifications {
			m.previousView = m.currentView
			m.currentView = ViewNotifications
			return m, nil, true
		}

	case "S":
		if m.currentView == ViewGallery {
			m.currentView = ViewSettings
			return m, nil, true
		}

	case "u":
		if m.currentView == ViewGallery {
			cmd := m.openProfile()
			return m, cmd, true
		}

	case "L":
		if m.currentView == ViewGallery {
			if m.user != nil {
				return m, m.logout(), true
			}
			m.currentView = ViewLogin
			cmd := m.loginView.Start("")
			return m, cmd, true
		}
	}

	if m.currentView != ViewGallery && m.currentView != ViewDrafts {
		return m, nil, false
	}

	switch msg.String() {
	case "r":
		return m, m.activeList().Load(), true

	case "n":
		cmd := m.startCreate()
		return m, cmd, true

	case "D":
		if m.user == nil {
			return m, m.requireSignIn("Sign in to see your drafts"), true
		}
		m.draftsView.SetOwner(m.user.ID)
		m.currentView = ViewDrafts
		return m, m.draftsView.Load(), true

	case "t":
		if !m.deps.Session.IsAdmin() {
			m.deps.Notifications.Warning("Admins only", "Tag management needs an admin account", 0)
			return m, nil, true
		}
		m.currentView = ViewTags
		return m, m.tagView.Init(), true

	case "l":
		if meme, ok := m.activeList().Selected(); ok {
			return m, m.toggleLike(meme.ID), true
		}

	case "esc":
		if m.currentView == ViewDrafts {
			m.currentView = ViewGallery
			return m, nil, true
		}
	}
	return m, nil, false
}

// browsing reports whether the active view has no text input focused.
func (m Model) browsing() bool {
	switch m.currentView {
	case ViewGallery:
		return !m.galleryView.Searching()
	case ViewDetail:
		return !m.detail.Editing()
	case ViewProfile:
		return !m.profileView.Editing()
	case ViewDrafts, ViewNotifications, ViewHelp:
		return true
	}
	return false
}

func (m *Model) activeList() *galleryview.Model {
	if m.currentView == ViewDrafts {
		return &m.draftsView
	}
	return &m.galleryView
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewGallery:
		m.galleryView, cmd = m.galleryView.Update(msg)
	case ViewDrafts:
		m.draftsView, cmd = m.draftsView.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewCreate:
		m.formView, cmd = m.formView.Update(msg)
	case ViewTags:
		m.tagView, cmd = m.tagView.Update(msg)
	case ViewNotifications:
		m.panel, cmd = m.panel.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		if key, ok := msg.(tea.KeyMsg); ok && key.String() == "esc" {
			m.currentView = m.previousView
			return m, nil
		}
		m.commandView, cmd = m.commandView.Update(msg)
	case ViewConfirm:
		m.confirmView, cmd = m.confirmView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewProfile:
		m.profileView, cmd = m.profileView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "memebox"
	if m.user != nil {
		title = "memebox · " + m.user.DisplayName()
	}
	header := m.layout.RenderHeader(title, m.toasts.Unread(), m.pollLabel())
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, m.toasts.View(), m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewGallery:
		return m.galleryView.View()
	case ViewDrafts:
		return m.draftsView.View()
	case ViewDetail:
		return m.detail.View()
	case ViewLogin:
		return m.loginView.View()
	case ViewCreate:
		return m.formView.View()
	case ViewTags:
		return m.tagView.View()
	case ViewNotifications:
		return m.panel.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	case ViewConfirm:
		return m.confirmView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewProfile:
		return m.profileView.View()
	default:
		return ""
	}
}

// pollLabel describes the reconciler for the header.
func (m Model) pollLabel() string {
	switch m.pollStatus.State {
	case appsync.Polling:
		return "● live"
	case appsync.Idle:
		return "○ sign in for live updates"
	default:
		if m.pollStatus.LastErr != nil {
			return "⚠ live updates paused"
		}
		return "○ live updates off"
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	case ViewDetail:
		if m.detail.Editing() {
			return "enter save | esc cancel"
		}
		return "l like | e edit | p publish | d delete | j/k scroll | esc back"
	case ViewProfile:
		if m.profileView.Editing() {
			return "enter upload | esc cancel"
		}
		return "enter open | a avatar | A remove avatar | r reload | esc back"
	case ViewLogin, ViewCreate:
		return "enter next | esc cancel"
	case ViewTags:
		return "n new | d delete | esc back"
	case ViewNotifications:
		return "enter open | m mark all read | C clear | esc back"
	case ViewConfirm:
		return "←/→ choose | enter confirm"
	case ViewSettings:
		return "e edit | p test connection | esc back"
	case ViewDrafts:
		return "enter open | [ ] page | esc gallery"
	default:
		signIn := "L sign in"
		if m.user != nil {
			signIn = "L sign out"
		}
		return "q quit | ? help | / search | p popular | n new | l like | u profile | N notifications | " + signIn
	}
}

// executeCommand handles a command string from the command palette.
func (m *Model) executeCommand(cmd string) tea.Cmd {
	switch cmd {
	case "refresh":
		return m.galleryView.Load()
	case "quit":
		return m.quit()
	case "new":
		return m.startCreate()
	case "popular":
		m.currentView = ViewGallery
		return m.galleryView.SetPopular(!m.galleryView.Popular())
	case "profile":
		return m.openProfile()
	case "drafts":
		if m.user == nil {
			return m.requireSignIn("Sign in to see your drafts")
		}
		m.draftsView.SetOwner(m.user.ID)
		m.currentView = ViewDrafts
		return m.draftsView.Load()
	case "tags":
		if !m.deps.Session.IsAdmin() {
			m.deps.Notifications.Warning("Admins only", "Tag management needs an admin account", 0)
			return nil
		}
		m.currentView = ViewTags
		return m.tagView.Init()
	case "notifications":
		m.currentView = ViewNotifications
		return nil
	case "mark read":
		m.deps.Notifications.MarkAllAsRead()
		return nil
	case "clear notifications":
		m.deps.Notifications.ClearAll()
		return nil
	case "poll on":
		m.deps.Reconciler.EnablePolling()
		return nil
	case "poll off":
		m.deps.Reconciler.DisablePolling()
		return nil
	case "check now":
		return m.checkNow()
	case "settings":
		m.currentView = ViewSettings
		return nil
	case "login":
		m.currentView = ViewLogin
		return m.loginView.Start("")
	case "logout":
		return m.logout()
	default:
		m.deps.Notifications.Warning("Unknown command", cmd, 0)
		return nil
	}
}

// applySettings puts saved settings into effect. The backend URL is only
// read at startup.
func (m *Model) applySettings(cfg model.AppConfig) tea.Cmd {
	prev := m.deps.Config
	if prev != nil {
		*prev = cfg
	}
	if cfg.Notifications.Polling {
		m.deps.Reconciler.EnablePolling()
	} else {
		m.deps.Reconciler.DisablePolling()
	}
	m.toasts = toast.New(cfg.Notifications.VisibleToasts)
	m.toasts.SetSnapshot(m.deps.Notifications.Snapshot())
	m.deps.Notifications.Success("Settings saved", "Interval and URL changes apply on restart", 0)
	return nil
}

// quit releases the subscription and stops the program.
func (m Model) quit() tea.Cmd {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.deps.Events.Close()
	return tea.Quit
}

func pollFailureMessage(err error) string {
	if directus.IsMisconfigured(err) {
		return "The notifications collection is missing or not readable. Use \":poll on\" once it exists."
	}
	return directus.Describe(err) + ". Use \":poll on\" to retry."
}
