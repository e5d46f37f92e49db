package app

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/session"
	appsync "github.com/nhle/memebox/internal/sync"
)

// authResultMsg is sent after a sign-in attempt of any kind.
type authResultMsg struct{ err error }

// likesLoadedMsg is sent once the liked set has been reloaded.
type likesLoadedMsg struct{}

// checkDoneMsg is sent after a manual notification check.
type checkDoneMsg struct{ err error }

func (m Model) login(email, password string) tea.Cmd {
	sess := m.deps.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return authResultMsg{err: sess.Login(ctx, email, password)}
	}
}

func (m Model) register(in session.RegisterInput) tea.Cmd {
	sess := m.deps.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return authResultMsg{err: sess.Register(ctx, in)}
	}
}

func (m Model) oauthLogin(provider string) tea.Cmd {
	sess := m.deps.Session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return authResultMsg{err: sess.OAuthLogin(ctx, provider)}
	}
}

// logout ends the session. The session change event takes care of the
// reconciler and the views.
func (m Model) logout() tea.Cmd {
	sess := m.deps.Session
	store := m.deps.Notifications
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		sess.Logout(ctx)
		store.Info("Signed out", "", 0)
		return nil
	}
}

func (m Model) loadLikes() tea.Cmd {
	likes := m.deps.Likes
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		likes.Load(ctx)
		return likesLoadedMsg{}
	}
}

// checkNow runs one reconciliation outside the polling schedule.
func (m Model) checkNow() tea.Cmd {
	rec := m.deps.Reconciler
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return checkDoneMsg{err: rec.CheckNow(ctx)}
	}
}

func (m *Model) handleCheckDone(msg checkDoneMsg) {
	switch {
	case msg.err == nil:
		m.deps.Notifications.Info("Notifications checked", "", 0)
	case errors.Is(msg.err, appsync.ErrTickInFlight):
		m.deps.Notifications.Info("Check already running", "", 0)
	case errors.Is(msg.err, appsync.ErrNotAuthenticated):
		m.deps.Notifications.Warning("Not signed in", "Sign in to receive notifications", 0)
	default:
		// The reconciler reports the failure through its status.
		m.log.Warn("manual notification check", "error", directus.Describe(msg.err))
	}
}
