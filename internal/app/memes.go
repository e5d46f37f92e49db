package app

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/memebox/internal/directus"
	"github.com/nhle/memebox/internal/gallery"
	"github.com/nhle/memebox/internal/model"
	"github.com/nhle/memebox/internal/notify"
	"github.com/nhle/memebox/internal/ui/detail"
)

const requestTimeout = 30 * time.Second

// snapshotMsg carries a new notification store state.
type snapshotMsg struct {
	snapshot notify.Snapshot
}

// likeResultMsg is sent after a like toggle.
type likeResultMsg struct {
	id    model.ID
	liked bool
	count int
	err   error
}

// deleteMemeMsg is the confirm payload for deleting a meme.
type deleteMemeMsg struct {
	id model.ID
}

// memeDeletedMsg is sent after a meme is deleted.
type memeDeletedMsg struct{ err error }

// memeCreatedMsg is sent after an upload completes.
type memeCreatedMsg struct {
	meme model.Meme
	err  error
}

// tagsForFormMsg carries the tag options of the create form.
type tagsForFormMsg struct {
	tags []model.Tag
}

// waitForSnapshot blocks until the notification store publishes.
func waitForSnapshot(ch <-chan notify.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg{snapshot: snap}
	}
}

// openMeme switches to the detail view and loads the meme. The view count
// is bumped on a best-effort basis.
func (m *Model) openMeme(id model.ID) tea.Cmd {
	if m.currentView != ViewDetail {
		m.previousView = m.currentView
	}
	m.currentView = ViewDetail
	m.detail.SetLoading(true)

	memes := m.deps.Memes
	log := m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		meme, err := memes.Get(ctx, id)
		if err != nil {
			return detail.DetailLoadedMsg{Err: err}
		}
		if err := memes.IncrementViews(ctx, id); err != nil {
			log.Warn("incrementing views", "meme", id, "error", err)
		} else {
			meme.Views++
		}
		return detail.DetailLoadedMsg{Meme: &meme}
	}
}

// navigate opens an in-app link such as "/gallery?meme=42".
func (m *Model) navigate(path string) tea.Cmd {
	u, err := url.Parse(path)
	if err != nil {
		m.log.Warn("ignoring malformed link", "path", path, "error", err)
		return nil
	}
	if strings.TrimSuffix(u.Path, "/") != "/gallery" {
		m.log.Warn("ignoring unknown link", "path", path)
		return nil
	}
	if id := u.Query().Get("meme"); id != "" {
		return m.openMeme(model.ID(id))
	}
	m.currentView = ViewGallery
	return m.galleryView.Load()
}

func (m Model) toggleLike(id model.ID) tea.Cmd {
	likes := m.deps.Likes
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		liked, count, err := likes.Toggle(ctx, id)
		return likeResultMsg{id: id, liked: liked, count: count, err: err}
	}
}

func (m *Model) applyLike(msg likeResultMsg) tea.Cmd {
	if msg.err != nil {
		if errors.Is(msg.err, gallery.ErrSignInRequired) {
			m.deps.Notifications.Warning("Sign in to like memes", "Press L on the gallery to sign in", 0)
			return nil
		}
		m.deps.Notifications.Error("Like failed", directus.Describe(msg.err), 0)
		return nil
	}
	if cur, ok := m.detail.Current(); ok && cur.ID == msg.id {
		m.detail.SetLiked(msg.liked)
		m.detail.SetLikes(msg.id, msg.count)
	}
	update := model.Meme{ID: msg.id, Likes: msg.count}
	if cur, ok := m.detail.Current(); ok && cur.ID == msg.id {
		update.Views = cur.Views
	} else if sel, ok := m.activeList().Selected(); ok && sel.ID == msg.id {
		update.Views = sel.Views
	}
	return tea.Batch(m.galleryView.UpdateMeme(update), m.draftsView.UpdateMeme(update))
}

func (m Model) deleteMeme(id model.ID) tea.Cmd {
	memes := m.deps.Memes
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		return memeDeletedMsg{err: memes.Delete(ctx, id)}
	}
}

// startCreate loads the tag options and then opens the create form.
func (m *Model) startCreate() tea.Cmd {
	if m.user == nil {
		return m.requireSignIn("Sign in to post memes")
	}
	m.currentView = ViewCreate
	tags := m.deps.Tags
	log := m.log
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		list, err := tags.List(ctx)
		if err != nil {
			log.Warn("loading tags for form", "error", err)
		}
		return tagsForFormMsg{tags: list}
	}
}

func (m Model) createMeme(in gallery.CreateInput) tea.Cmd {
	memes := m.deps.Memes
	return func() tea.Msg {
		// Uploads can be slow; give them twice the usual budget.
		ctx, cancel := context.WithTimeout(context.Background(), 2*requestTimeout)
		defer cancel()
		meme, err := memes.Create(ctx, in)
		return memeCreatedMsg{meme: meme, err: err}
	}
}

// canEdit reports whether the signed-in user may delete the meme.
func (m Model) canEdit(meme model.Meme) bool {
	if m.user == nil {
		return false
	}
	return meme.UserCreated.ID == m.user.ID || m.deps.Session.IsAdmin()
}

func (m Model) requireSignIn(reason string) tea.Cmd {
	m.deps.Notifications.Warning("Not signed in", reason, 0)
	return nil
}
